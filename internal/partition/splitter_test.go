package partition

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/pkg/duckdb"
	"github.com/wonny/consolidator/pkg/logger"
)

type fixture struct {
	ctx      context.Context
	engine   *duckdb.Engine
	registry *Registry
	splitter *Splitter
	shardDir string
	outDir   string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping engine test in short mode")
	}

	ctx := context.Background()
	dir := t.TempDir()

	eng, err := duckdb.Open(ctx, duckdb.Options{
		MemoryLimit: "256MB",
		TempDir:     filepath.Join(dir, "spill"),
		Threads:     2,
	})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })

	log := logger.Nop()
	reg := NewRegistry(eng, log)
	f := &fixture{
		ctx:      ctx,
		engine:   eng,
		registry: reg,
		shardDir: filepath.Join(dir, "shards"),
		outDir:   filepath.Join(dir, "output"),
	}
	f.splitter = NewSplitter(eng, reg, f.outDir, log)
	require.NoError(t, os.MkdirAll(f.shardDir, 0o755))
	return f
}

// writeShard materializes a VALUES list as a parquet shard
func (f *fixture) writeShard(t *testing.T, name, columns, values string) string {
	t.Helper()
	path := filepath.Join(f.shardDir, name)
	stmt := fmt.Sprintf("COPY (SELECT * FROM (VALUES %s) AS t(%s)) TO %s (FORMAT PARQUET)",
		values, columns, duckdb.Literal(path))
	require.NoError(t, f.engine.Exec(f.ctx, stmt))
	return path
}

func (f *fixture) readArtifact(t *testing.T, path string) *duckdb.Table {
	t.Helper()
	table, err := f.engine.QueryTable(f.ctx, fmt.Sprintf("SELECT * FROM read_parquet(%s)", duckdb.Literal(path)))
	require.NoError(t, err)
	return table
}

func TestSplit_LaterShardWins(t *testing.T) {
	f := newFixture(t)

	f.writeShard(t, "kline_part_0.parquet", "code, date, volume, close",
		"('600000', '2024-01-02', -5.0, 10.0), ('600001', '2024-01-03', 1.0, 2.0)")
	f.writeShard(t, "kline_part_1.parquet", "code, date, volume, close",
		"('600000', '2024-01-02', 100.0, 11.0)")

	shards, err := DiscoverShards(f.shardDir, "kline")
	require.NoError(t, err)
	_, err = f.registry.Register(f.ctx, contracts.KindStockKline, Paths(shards))
	require.NoError(t, err)

	out, err := f.splitter.Split(f.ctx, contracts.KindStockKline, 2024)
	require.NoError(t, err)
	assert.EqualValues(t, 2, out.Rows)
	assert.Equal(t, "stock_kline_2024.parquet", out.Artifact.RemoteName)
	assert.Equal(t, filepath.Join(f.outDir, "stock_kline_2024.parquet"), out.Artifact.LocalPath)
	assert.Positive(t, out.Artifact.SizeBytes)

	table := f.readArtifact(t, out.Artifact.LocalPath)
	assert.Equal(t, []string{
		"date", "code", "open", "high", "low", "close", "volume", "amount",
		"turn", "pctChg", "peTTM", "pbMRQ", "adjustFactor", "isST",
	}, table.Columns)
	require.Len(t, table.Rows, 2)

	first := table.Rows[0]
	assert.Equal(t, "2024-01-02", first[0])
	assert.Equal(t, "600000", first[1])
	assert.Equal(t, float32(11), first[5])
	assert.Equal(t, 100.0, first[6])
	assert.Equal(t, int8(0), first[13])
	assert.Equal(t, "600001", table.Rows[1][1])
}

func TestSplit_LastRowWithinShardWins(t *testing.T) {
	f := newFixture(t)

	f.writeShard(t, "kline_part_0.parquet", "code, date, volume",
		"('600000', '20240102', -5.0), ('600000', '2024-01-02', 100.0)")

	_, err := f.registry.Register(f.ctx, contracts.KindStockKline, []string{filepath.Join(f.shardDir, "kline_part_0.parquet")})
	require.NoError(t, err)

	out, err := f.splitter.Split(f.ctx, contracts.KindStockKline, 2024)
	require.NoError(t, err)

	table := f.readArtifact(t, out.Artifact.LocalPath)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 100.0, table.Rows[0][6])
}

func TestSplit_PartitionCompleteness(t *testing.T) {
	f := newFixture(t)

	f.writeShard(t, "flow_part_0.parquet", "code, date, net_amount",
		"('600000', '2019-03-01', 10000.0), ('600000', '2020-12-31', 20000.0), ('600001', '2021-01-01', 30000.0)")

	_, err := f.registry.Register(f.ctx, contracts.KindMoneyFlow, []string{filepath.Join(f.shardDir, "flow_part_0.parquet")})
	require.NoError(t, err)

	years := ResolveYears(YearSelector{Year: AllYears}, time.Date(2022, 1, 5, 0, 0, 0, 0, time.UTC))

	var written []int
	for _, y := range years {
		out, err := f.splitter.Split(f.ctx, contracts.KindMoneyFlow, y)
		if errors.Is(err, ErrNoRows) {
			_, statErr := os.Stat(filepath.Join(f.outDir, contracts.KindMoneyFlow.FileName(y)))
			assert.True(t, os.IsNotExist(statErr), "year %d must not leave a file", y)
			continue
		}
		require.NoError(t, err)
		assert.EqualValues(t, 1, out.Rows)
		written = append(written, y)
	}
	assert.Equal(t, []int{2019, 2020, 2021}, written)

	entries, err := os.ReadDir(f.outDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3, "no temp files left behind")
}

func TestSplit_EmptyShardSet(t *testing.T) {
	f := newFixture(t)

	view, err := f.registry.Register(f.ctx, contracts.KindMoneyFlow, nil)
	require.NoError(t, err)
	assert.True(t, view.Empty())
	assert.Contains(t, view.Columns, "date")
	assert.Contains(t, view.Columns, "code")

	for _, y := range []int{2019, 2020, 2021} {
		out, err := f.splitter.Split(f.ctx, contracts.KindMoneyFlow, y)
		assert.ErrorIs(t, err, ErrNoRows)
		assert.Nil(t, out)
	}
}

func TestSplit_FlowSchemaDrift(t *testing.T) {
	f := newFixture(t)

	f.writeShard(t, "flow_part_0.parquet", "code, date, net_amount",
		"('600000', '2024-01-02', 123450000.0)")
	f.writeShard(t, "flow_part_1.parquet", "code, date, net_amount, main_net, vendor_extra",
		"('600001', '2024-01-02', 123450000.0, '123450000', 'x')")

	shards, err := DiscoverShards(f.shardDir, "flow")
	require.NoError(t, err)
	_, err = f.registry.Register(f.ctx, contracts.KindMoneyFlow, Paths(shards))
	require.NoError(t, err)

	out, err := f.splitter.Split(f.ctx, contracts.KindMoneyFlow, 2024)
	require.NoError(t, err)

	table := f.readArtifact(t, out.Artifact.LocalPath)
	assert.Equal(t, []string{
		"date", "code", "net_amount", "main_net", "super_net",
		"large_net", "medium_net", "small_net", "unit_scale",
	}, table.Columns)
	assert.Equal(t, [][]any{
		{"2024-01-02", "600000", 12345.0, 0.0, 0.0, 0.0, 0.0, 0.0, int32(10000)},
		{"2024-01-02", "600001", 12345.0, 12345.0, 0.0, 0.0, 0.0, 0.0, int32(10000)},
	}, table.Rows)
}

func TestSplit_NotRegistered(t *testing.T) {
	f := newFixture(t)

	_, err := f.splitter.Split(f.ctx, contracts.KindSectorKline, 2024)
	assert.ErrorIs(t, err, ErrViewNotRegistered)
}

func TestCopySnapshot(t *testing.T) {
	f := newFixture(t)

	snapshot := f.writeShard(t, "sector_constituents_latest.parquet", "sector_code, stock_code, sector_name, date",
		"('BK0475', '600000', '银行', '2024-06-28')")
	original, err := os.ReadFile(snapshot)
	require.NoError(t, err)

	for _, y := range []int{2023, 2024} {
		out, err := f.splitter.CopySnapshot(f.ctx, snapshot, y)
		require.NoError(t, err)
		assert.EqualValues(t, 1, out.Rows)
		assert.Equal(t, fmt.Sprintf("sector_constituents_%d.parquet", y), out.Artifact.RemoteName)

		copied, err := os.ReadFile(out.Artifact.LocalPath)
		require.NoError(t, err)
		assert.Equal(t, original, copied)
	}

	_, err = f.splitter.CopySnapshot(f.ctx, "", 2024)
	assert.ErrorIs(t, err, ErrNoRows)
}

func TestMetadataLists(t *testing.T) {
	f := newFixture(t)

	kline := f.writeShard(t, "kline_part_0.parquet", "code, date",
		"('600001', '2024-01-02'), ('600000', '2024-01-02'), ('600000', '2024-02-01')")
	sector := f.writeShard(t, "sector_kline_full.parquet", "code, date, name, type",
		"('BK1', '2024-01-02', 'old', 'industry'), ('BK1', '2024-03-01', 'new', 'industry'), ('BK2', '2024-01-02', 'c', 'concept')")

	_, err := f.registry.Register(f.ctx, contracts.KindStockKline, []string{kline})
	require.NoError(t, err)
	_, err = f.registry.Register(f.ctx, contracts.KindSectorKline, []string{sector})
	require.NoError(t, err)

	stocks, err := f.splitter.StockList(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, "stock_list.parquet", stocks.Artifact.RemoteName)
	assert.Equal(t, [][]any{
		{"600000", "2024-02-01"},
		{"600001", "2024-01-02"},
	}, f.readArtifact(t, stocks.Artifact.LocalPath).Rows)

	sectors, err := f.splitter.SectorList(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]any{
		{"BK1", "new", "industry"},
		{"BK2", "c", "concept"},
	}, f.readArtifact(t, sectors.Artifact.LocalPath).Rows)
}

func TestMetadataLists_EmptyView(t *testing.T) {
	f := newFixture(t)

	_, err := f.registry.Register(f.ctx, contracts.KindStockKline, nil)
	require.NoError(t, err)

	_, err = f.splitter.StockList(f.ctx)
	assert.ErrorIs(t, err, ErrNoRows)
}
