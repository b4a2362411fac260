package runner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/partition"
	"github.com/wonny/consolidator/internal/publish"
	"github.com/wonny/consolidator/internal/report"
	"github.com/wonny/consolidator/pkg/config"
	"github.com/wonny/consolidator/pkg/duckdb"
	"github.com/wonny/consolidator/pkg/logger"
	"github.com/wonny/consolidator/pkg/redis"
)

type fakeStore struct {
	mu      sync.Mutex
	saved   []*contracts.QualityReport
	failErr error
}

func (s *fakeStore) SaveRun(ctx context.Context, rep *contracts.QualityReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	s.saved = append(s.saved, rep)
	return nil
}

type failingSink struct{}

func (failingSink) Name() string { return "failing" }
func (failingSink) Upload(ctx context.Context, localPath, remoteName string) error {
	return errors.New("hub unavailable")
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping engine test in short mode")
	}

	dir := t.TempDir()
	cfg := &config.Config{
		Env: "development",
		Paths: config.PathsConfig{
			ShardDir:  filepath.Join(dir, "all_artifacts"),
			OutputDir: filepath.Join(dir, "output"),
		},
		DuckDB: config.DuckDBConfig{
			MemoryLimit: "256MB",
			TempDir:     filepath.Join(dir, "spill"),
			Threads:     2,
		},
		Publish: config.PublishConfig{Mode: config.PublishLocal, Dir: filepath.Join(dir, "mirror"), Concurrency: 2},
	}
	require.NoError(t, os.MkdirAll(cfg.Paths.ShardDir, 0o755))

	// 샤드 작성용 별도 엔진
	ctx := context.Background()
	eng, err := duckdb.Open(ctx, duckdb.Options{MemoryLimit: "128MB", TempDir: filepath.Join(dir, "spill-w")})
	require.NoError(t, err)
	defer eng.Close()

	path := filepath.Join(cfg.Paths.ShardDir, "kline_part_0.parquet")
	require.NoError(t, eng.Exec(ctx, fmt.Sprintf(
		"COPY (SELECT * FROM (VALUES ('2024-01-02', '600000', 10.0, 9.0, 9.5, 100.0)) AS t(date, code, high, low, close, volume)) TO %s (FORMAT PARQUET)",
		duckdb.Literal(path))))
	return cfg
}

func TestRunner_RunPersistsAndPublishes(t *testing.T) {
	cfg := testConfig(t)
	store := &fakeStore{}
	log := logger.Nop()

	r := New(cfg, nil, Deps{
		Store: store,
		Cache: redis.NewCache(redis.Disabled(), "consolidator"),
		Sink:  publish.NewLocalSink(cfg.Publish.Dir, log),
	}, log)

	out, err := r.Run(context.Background(), partition.YearSelector{Year: 2024})
	require.NoError(t, err)
	require.NotNil(t, out.Result)

	require.Len(t, store.saved, 1)
	assert.Equal(t, out.Result.RunID, store.saved[0].RunID)
	assert.Contains(t, store.saved[0].Stats, "stock_kline_2024")

	require.NotNil(t, out.Publish)
	assert.Empty(t, out.Publish.Failed)
	assert.Contains(t, out.Publish.Uploaded, "stock_kline_2024.parquet")
	assert.Contains(t, out.Publish.Uploaded, report.JSONFile)
	assert.FileExists(t, filepath.Join(cfg.Publish.Dir, "stock_kline_2024.parquet"))
	assert.FileExists(t, filepath.Join(cfg.Publish.Dir, report.MarkdownFile))
}

func TestRunner_StoreFailureIsNotFatal(t *testing.T) {
	cfg := testConfig(t)

	r := New(cfg, nil, Deps{Store: &fakeStore{failErr: errors.New("db down")}}, logger.Nop())

	out, err := r.Run(context.Background(), partition.YearSelector{Year: 2024})
	require.NoError(t, err)
	assert.Nil(t, out.Publish)
	assert.FileExists(t, out.Result.ReportPaths.JSON)
}

func TestRunner_PublishFailureReturned(t *testing.T) {
	cfg := testConfig(t)

	r := New(cfg, nil, Deps{Sink: failingSink{}}, logger.Nop())

	out, err := r.Run(context.Background(), partition.YearSelector{Year: 2024})
	require.Error(t, err)
	require.NotNil(t, out)
	require.NotNil(t, out.Publish)
	assert.Equal(t, len(out.Result.Artifacts), len(out.Publish.Failed))
}
