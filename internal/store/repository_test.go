package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/quality"
	"github.com/wonny/consolidator/pkg/config"
	"github.com/wonny/consolidator/pkg/database"
)

func newRepository(t *testing.T) *ReportRepository {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database test in short mode")
	}
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	db, err := database.New(context.Background(), &config.Config{
		Database: config.DatabaseConfig{URL: url, MaxConns: 2},
	})
	require.NoError(t, err)
	t.Cleanup(db.Close)

	repo := NewReportRepository(db)
	require.NoError(t, repo.EnsureSchema(context.Background()))
	return repo
}

func sampleReport(now time.Time) *contracts.QualityReport {
	rep := contracts.NewQualityReport(uuid.NewString(), now)
	rep.ConfigHash = "abc123"
	rep.Errors = append(rep.Errors, "stock_money_flow_2024 is empty!")

	stats := contracts.ArtifactStats{
		TotalRows:     2,
		Columns:       []string{"date", "code", "close", "volume"},
		UniqueCodes:   1,
		StartDate:     "2024-01-02",
		EndDate:       "2024-01-03",
		FileSizeBytes: 3 * 1024 * 1024,
		Anomalies:     map[string]int{quality.AnomalyNegVolume: 1, quality.NullAnomaly("close"): 2},
	}
	stats.FileSizeMB = quality.SizeMB(stats.FileSizeBytes)
	quality.Tally(&stats)
	rep.Stats["stock_kline_2024"] = stats
	return rep
}

func TestReportRepository_SaveAndLoad(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	// 마이크로초 정밀도로 저장되므로 미리 절삭
	rep := sampleReport(time.Now().Add(time.Hour).Truncate(time.Millisecond))
	require.NoError(t, repo.SaveRun(ctx, rep))

	got, err := repo.GetRun(ctx, rep.RunID)
	require.NoError(t, err)
	assert.True(t, rep.GeneratedAt.Equal(got.GeneratedAt))
	got.GeneratedAt = rep.GeneratedAt
	if diff := cmp.Diff(rep, got); diff != "" {
		t.Errorf("report mismatch (-want +got):\n%s", diff)
	}

	latest, err := repo.LatestRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, rep.RunID, latest.RunID)

	runs, err := repo.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.NotEmpty(t, runs)
	assert.Equal(t, rep.RunID, runs[0].RunID)
	assert.Equal(t, 1, runs[0].ErrorCount)
	assert.Equal(t, 3, runs[0].AnomalyCount)
}

func TestReportRepository_SaveRunReplacesArtifacts(t *testing.T) {
	repo := newRepository(t)
	ctx := context.Background()

	rep := sampleReport(time.Now())
	require.NoError(t, repo.SaveRun(ctx, rep))

	delete(rep.Stats, "stock_kline_2024")
	require.NoError(t, repo.SaveRun(ctx, rep))

	got, err := repo.GetRun(ctx, rep.RunID)
	require.NoError(t, err)
	assert.Empty(t, got.Stats)
}

func TestReportRepository_GetRunNotFound(t *testing.T) {
	repo := newRepository(t)

	_, err := repo.GetRun(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrNotFound)
}
