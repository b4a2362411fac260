package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/wonny/consolidator/internal/scheduler"
	"github.com/wonny/consolidator/pkg/logger"
	"github.com/wonny/consolidator/pkg/redis"
)

// CleanupJob removes leftovers of interrupted runs: hidden partition temp
// files in the output dir and partial copies in the publish dir
type CleanupJob struct {
	locker *redis.Locker
	dirs   []string
	maxAge time.Duration
	logger *logger.Logger
	now    func() time.Time
}

// NewCleanupJob creates a new cleanup job over dirs
func NewCleanupJob(locker *redis.Locker, dirs []string, maxAge time.Duration, log *logger.Logger) *CleanupJob {
	return &CleanupJob{
		locker: locker,
		dirs:   dirs,
		maxAge: maxAge,
		logger: log,
		now:    time.Now,
	}
}

// Name returns the job name
func (j *CleanupJob) Name() string {
	return "cleanup"
}

// Schedule returns the cron schedule (hourly)
func (j *CleanupJob) Schedule() string {
	return "0 0 * * * *"
}

// Run removes stale temp files while no consolidation holds the run lock
func (j *CleanupJob) Run(ctx context.Context) error {
	lease, ok, err := j.locker.Acquire(ctx, RunLockName, 10*time.Minute)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		j.logger.Debug("Consolidation running, cleanup deferred")
		scheduler.RecordRun(ctx, scheduler.RunRecord{Skipped: true})
		return nil
	}
	defer lease.Release(context.Background())

	removed := 0
	for _, dir := range j.dirs {
		n, err := j.sweep(dir)
		if err != nil {
			return err
		}
		removed += n
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Cleanup completed")
	}
	return nil
}

func (j *CleanupJob) sweep(dir string) (int, error) {
	if dir == "" {
		return 0, nil
	}
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read %s: %w", dir, err)
	}

	cutoff := j.now().Add(-j.maxAge)
	removed := 0
	for _, e := range entries {
		if e.IsDir() || !IsLeftover(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			j.logger.WithError(err).WithField("path", path).Warn("Failed to remove leftover")
			continue
		}
		removed++
	}
	return removed, nil
}

// IsLeftover reports whether name is an unfinished write of the splitter or
// the local sink
func IsLeftover(name string) bool {
	if strings.HasPrefix(name, ".") && strings.HasSuffix(name, ".tmp.parquet") {
		return true
	}
	return strings.HasSuffix(name, ".partial")
}
