package duckdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestEngine(t *testing.T) *Engine {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping duckdb-backed test")
	}

	e, err := Open(context.Background(), Options{
		MemoryLimit: "256MB",
		TempDir:     filepath.Join(t.TempDir(), "spill"),
		Threads:     1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestOpen_AppliesSettings(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	threads, err := e.Setting(ctx, "threads")
	require.NoError(t, err)
	assert.Equal(t, "1", threads)

	tempDir, err := e.Setting(ctx, "temp_directory")
	require.NoError(t, err)
	assert.Contains(t, tempDir, "spill")
}

func TestOpen_InvalidMemoryLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping duckdb-backed test")
	}

	_, err := Open(context.Background(), Options{MemoryLimit: "lots"})
	assert.Error(t, err)
}

func TestQueryTable(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	table, err := e.QueryTable(ctx, `
		SELECT * FROM (VALUES ('600000', 1.5::FLOAT), ('000001', NULL)) t(code, close)
		ORDER BY code`)
	require.NoError(t, err)

	assert.Equal(t, []string{"code", "close"}, table.Columns)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, "000001", table.Rows[0][0])
	assert.Nil(t, table.Rows[0][1])
	assert.Equal(t, float32(1.5), table.Rows[1][1])
}

func TestQueryTable_DecimalAsFloat(t *testing.T) {
	e := openTestEngine(t)

	table, err := e.QueryTable(context.Background(), "SELECT CAST(123450000.5 AS DECIMAL(12,1)) AS v")
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Equal(t, 123450000.5, table.Rows[0][0])
}

func TestQueryIntAndStrings(t *testing.T) {
	e := openTestEngine(t)
	ctx := context.Background()

	require.NoError(t, e.Exec(ctx, "CREATE TABLE t AS SELECT range AS n, 'c' || range AS s FROM range(5)"))

	n, err := e.QueryInt(ctx, "SELECT count(*) FROM t")
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)

	names, err := e.QueryStrings(ctx, "SELECT s FROM t ORDER BY n LIMIT 2")
	require.NoError(t, err)
	assert.Equal(t, []string{"c0", "c1"}, names)
}

func TestHealthCheck(t *testing.T) {
	e := openTestEngine(t)

	status, err := e.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.NotEmpty(t, status.Version)
}

func TestLiteralAndIdent(t *testing.T) {
	assert.Equal(t, "'it''s'", Literal("it's"))
	assert.Equal(t, "'output/a.parquet'", Literal("output/a.parquet"))
	assert.Equal(t, `"pctChg"`, Ident("pctChg"))
	assert.Equal(t, `"a""b"`, Ident(`a"b`))
}
