package partition

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// ShardFile is one worker's partial output
type ShardFile struct {
	Path   string
	Worker int
}

// DiscoverShards finds <prefix>_part_<n>.parquet files in dir, ordered by
// numeric worker index. A missing directory or no matches is not an error.
func DiscoverShards(dir, prefix string) ([]ShardFile, error) {
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(prefix) + `_part_(\d+)\.parquet$`)

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list shard dir %s: %w", dir, err)
	}

	var shards []ShardFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		m := pattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		shards = append(shards, ShardFile{Path: filepath.Join(dir, e.Name()), Worker: n})
	}

	sort.Slice(shards, func(i, j int) bool {
		return shards[i].Worker < shards[j].Worker
	})
	return shards, nil
}

// SingleShard returns the named file as a one-element shard set, or nothing
// when it does not exist
func SingleShard(dir, name string) ([]ShardFile, error) {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, nil
	}
	return []ShardFile{{Path: path}}, nil
}

// Paths returns the shard paths in arrival order
func Paths(shards []ShardFile) []string {
	out := make([]string, len(shards))
	for i, s := range shards {
		out[i] = s.Path
	}
	return out
}
