package normalize

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/pkg/duckdb"
)

func TestProjection_SynthesizesAbsentColumns(t *testing.T) {
	sel, err := Projection(contracts.KindMoneyFlow, []string{"date", "code", "net_amount", "vendor_extra"})
	require.NoError(t, err)

	assert.Contains(t, sel, `COALESCE(TRY_CAST("net_amount" AS DOUBLE), 0) * 1 / 10000`)
	assert.Contains(t, sel, `COALESCE(TRY_CAST(NULL AS DOUBLE), 0) * 1 / 10000 AS DOUBLE) AS "main_net"`)
	assert.Contains(t, sel, `CAST(10000 AS INTEGER) AS "unit_scale"`)
	assert.NotContains(t, sel, "vendor_extra")
}

func TestProjection_UnitScaleGuard(t *testing.T) {
	sel, err := Projection(contracts.KindMoneyFlow, []string{"date", "code", "net_amount", "unit_scale"})
	require.NoError(t, err)
	assert.Contains(t, sel, `CASE WHEN TRY_CAST("unit_scale" AS BIGINT) > 0`)
}

func TestProjection_UnknownKind(t *testing.T) {
	_, err := Projection("bond_kline", nil)
	assert.Error(t, err)
}

func openEngine(t *testing.T) *duckdb.Engine {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping engine test in short mode")
	}

	eng, err := duckdb.Open(context.Background(), duckdb.Options{MemoryLimit: "256MB", Threads: 1})
	require.NoError(t, err)
	t.Cleanup(func() { eng.Close() })
	return eng
}

// 엔진 경로와 in-process 경로는 같은 결과를 내야 함
func TestProjection_MatchesInProcessFlow(t *testing.T) {
	eng := openEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE raw AS SELECT * FROM (VALUES
		('2024-01-02', '600000', '123450000', 5, NULL),
		('20240103',   '600000', 'n/a',       NULL, 10000)
	) AS t(date, code, net_amount, main_net, unit_scale)`))

	sel, err := Projection(contracts.KindMoneyFlow, []string{"date", "code", "net_amount", "main_net", "unit_scale"})
	require.NoError(t, err)

	got, err := eng.QueryTable(ctx, fmt.Sprintf("SELECT %s FROM raw ORDER BY 1", sel))
	require.NoError(t, err)

	want, err := newTestNormalizer().Frame(contracts.KindMoneyFlow, []contracts.RawRow{
		{"date": "2024-01-02", "code": "600000", "net_amount": "123450000", "main_net": 5},
		{"date": "20240103", "code": "600000", "net_amount": "n/a", "unit_scale": 10000},
	})
	require.NoError(t, err)

	assert.Equal(t, want.Columns, got.Columns)
	assert.Equal(t, want.Rows, got.Rows)
}

func TestProjection_MarketTypes(t *testing.T) {
	eng := openEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE raw AS SELECT * FROM (VALUES
		('2024/01/02', 600000, '10.5', '', 1)
	) AS t(date, code, open, close, isST)`))

	sel, err := Projection(contracts.KindStockKline, []string{"date", "code", "open", "close", "isST"})
	require.NoError(t, err)

	got, err := eng.QueryTable(ctx, "SELECT "+sel+" FROM raw")
	require.NoError(t, err)
	require.Len(t, got.Rows, 1)

	row := got.Rows[0]
	assert.Equal(t, "2024-01-02", row[0])
	assert.Equal(t, "600000", row[1])
	assert.Equal(t, float32(10.5), row[2])
	assert.Nil(t, row[5]) // close: '' → missing
	assert.Nil(t, row[6]) // volume: absent → missing
	assert.Equal(t, int8(1), row[13])
}

func TestProjection_InvalidDateFailsStatement(t *testing.T) {
	eng := openEngine(t)
	ctx := context.Background()

	require.NoError(t, eng.Exec(ctx, `CREATE TABLE raw AS SELECT * FROM (VALUES
		('2024-01-02', '600000'),
		('garbage',    '600001')
	) AS t(date, code)`))

	sel, err := Projection(contracts.KindStockKline, []string{"date", "code"})
	require.NoError(t, err)

	_, err = eng.QueryTable(ctx, "SELECT "+sel+" FROM raw")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid date")
}
