package dedup

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/pkg/duckdb"
)

func vol(v float64) sql.Null[float64] {
	return sql.Null[float64]{V: v, Valid: true}
}

func TestRecords_LastRowWins(t *testing.T) {
	rows := []contracts.MarketRecord{
		{Code: "600000", Date: "2024-01-02", Volume: vol(-5)},
		{Code: "600000", Date: "2024-01-02", Volume: vol(100)},
	}

	out := Records(rows)
	require.Len(t, out, 1)
	assert.Equal(t, 100.0, out[0].Volume.V)
}

func TestRecords_SortedByCodeThenDate(t *testing.T) {
	rows := []contracts.FlowRecord{
		{Code: "600001", Date: "2024-01-03", NetAmount: 1},
		{Code: "600000", Date: "2024-01-03", NetAmount: 2},
		{Code: "600001", Date: "2024-01-02", NetAmount: 3},
		{Code: "600000", Date: "2024-01-02", NetAmount: 4},
		{Code: "600000", Date: "2024-01-03", NetAmount: 5},
	}

	out := Records(rows)

	want := []contracts.FlowRecord{
		{Code: "600000", Date: "2024-01-02", NetAmount: 4},
		{Code: "600000", Date: "2024-01-03", NetAmount: 5},
		{Code: "600001", Date: "2024-01-02", NetAmount: 3},
		{Code: "600001", Date: "2024-01-03", NetAmount: 1},
	}
	if diff := cmp.Diff(want, out); diff != "" {
		t.Errorf("Records() mismatch (-want +got):\n%s", diff)
	}
}

func TestRecords_Idempotent(t *testing.T) {
	rows := []contracts.SectorRecord{
		{Code: "BK1", Date: "2024-01-02", Name: "a"},
		{Code: "BK1", Date: "2024-01-02", Name: "b"},
		{Code: "BK0", Date: "2024-01-05", Name: "c"},
		{Code: "BK1", Date: "2024-01-01", Name: "d"},
		{Code: "BK0", Date: "2024-01-05", Name: "e"},
	}

	once := Records(rows)
	twice := Records(once)

	if diff := cmp.Diff(once, twice); diff != "" {
		t.Errorf("dedup not idempotent (-once +twice):\n%s", diff)
	}
	assert.Len(t, once, 3)
}

func TestRecords_DoesNotMutateInput(t *testing.T) {
	rows := []contracts.FlowRecord{
		{Code: "b", Date: "2024-01-02"},
		{Code: "a", Date: "2024-01-02"},
	}
	_ = Records(rows)
	assert.Equal(t, "b", rows[0].Code)
}

func TestRecords_Empty(t *testing.T) {
	out := Records[contracts.MarketRecord](nil)
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

func TestClause(t *testing.T) {
	got := Clause(KeyColumns, ArrivalColumns)
	assert.Equal(t,
		`QUALIFY row_number() OVER (PARTITION BY "code", "date" ORDER BY "_shard" DESC, "_row" DESC) = 1`,
		got)
	assert.Equal(t, `ORDER BY "code", "date"`, OrderBy(KeyColumns))
}

func TestClause_EngineTieBreak(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping engine test in short mode")
	}

	ctx := context.Background()
	eng, err := duckdb.Open(ctx, duckdb.Options{Threads: 2})
	require.NoError(t, err)
	defer eng.Close()

	// shard 1 이 shard 0 보다 나중에 생산됨, 같은 shard 내에서는 row 번호가 큰 쪽이 최신
	require.NoError(t, eng.Exec(ctx, `CREATE TABLE raw AS SELECT * FROM (VALUES
		('600000', '2024-01-02', 1, 0, 'shard1-row0'),
		('600000', '2024-01-02', 0, 7, 'shard0-row7'),
		('600000', '2024-01-02', 1, 3, 'shard1-row3'),
		('600001', '2024-01-02', 0, 0, 'only')
	) AS t(code, date, _shard, _row, v)`))

	table, err := eng.QueryTable(ctx,
		"SELECT code, v FROM raw "+Clause(KeyColumns, ArrivalColumns)+" "+OrderBy(KeyColumns))
	require.NoError(t, err)

	assert.Equal(t, [][]any{
		{"600000", "shard1-row3"},
		{"600001", "only"},
	}, table.Rows)
}
