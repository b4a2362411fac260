package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/pkg/logger"
)

func TestDedupFrame(t *testing.T) {
	frame := contracts.Frame{
		Columns: []string{"date", "code", "volume"},
		Rows: [][]any{
			{"2024-01-02", "600000", -5.0},
			{"2024-01-01", "600001", 1.0},
			{"2024-01-02", "600000", 100.0},
		},
	}

	out := DedupFrame(frame)
	assert.Equal(t, [][]any{
		{"2024-01-02", "600000", 100.0},
		{"2024-01-01", "600001", 1.0},
	}, out.Rows)
	assert.Len(t, frame.Rows, 3)
}

func TestDedupFrame_NotTimeSeries(t *testing.T) {
	frame := contracts.Frame{Columns: []string{"sector_code"}, Rows: [][]any{{"a"}, {"a"}}}
	assert.Equal(t, frame, DedupFrame(frame))
}

func TestInspectShard(t *testing.T) {
	e := newEnv(t)

	path := e.shard(t, "kline_part_3.parquet", "date, code, volume, vendor_extra",
		"('2024-01-02', '600000', 100.0, 'x'), ('20240102', '600000', -5.0, 'y')")

	summary, err := InspectShard(e.ctx, e.engine, contracts.KindStockKline, path, []string{"close"}, logger.Nop())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.RawRows)
	assert.Contains(t, summary.RawColumns, "vendor_extra")
	assert.Equal(t, 1, summary.Rows)
	assert.Equal(t, 1, summary.Duplicates)

	// 두 번째 행이 남고 음수 거래량이 탐지됨
	assert.Equal(t, map[string]int{"neg_volume": 1, "null_close": 1}, summary.Stats.Anomalies)
	assert.NotContains(t, summary.Stats.Columns, "vendor_extra")
}

func TestInspectShard_Constituents(t *testing.T) {
	e := newEnv(t)

	path := e.shard(t, "sector_constituents_latest.parquet", "sector_code, stock_code, sector_name, date",
		"('BK1', '600000', 'bank', '2024-06-28'), ('BK1', '600000', 'bank', '2024-06-28')")

	summary, err := InspectShard(e.ctx, e.engine, contracts.KindSectorConstituents, path, nil, logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Rows, "snapshots are not deduplicated")
	assert.Zero(t, summary.Duplicates)
}

func TestInspectCode_Market(t *testing.T) {
	e := newEnv(t)

	path := e.shard(t, "kline_part_0.parquet", "date, code, close, volume",
		"('2024-01-03', '600000', 9.5, 10.0), ('2024-01-02', '600000', 9.0, -5.0), ('2024-01-02', '600001', 1.0, 1.0), ('20240102', '600000', 9.1, 20.0)")

	recs, err := InspectCode(e.ctx, e.engine, contracts.KindStockKline, path, "600000", logger.Nop())
	require.NoError(t, err)

	require.Equal(t, 2, recs.Len())
	assert.Equal(t, "2024-01-02", recs.Market[0].Date)
	assert.InDelta(t, 9.1, recs.Market[0].Close.V, 0.001, "later arrival wins")
	assert.Equal(t, 20.0, recs.Market[0].Volume.V)
	assert.Equal(t, "2024-01-03", recs.Market[1].Date)
	assert.False(t, recs.Market[1].Open.Valid)
	assert.Empty(t, recs.Flow)
}

func TestInspectCode_Flow(t *testing.T) {
	e := newEnv(t)

	path := e.shard(t, "flow_part_0.parquet", "date, code, net_amount",
		"('2024-01-02', '600000', 123450000), ('2024-01-02', '600001', 1)")

	recs, err := InspectCode(e.ctx, e.engine, contracts.KindMoneyFlow, path, "600000", logger.Nop())
	require.NoError(t, err)

	require.Len(t, recs.Flow, 1)
	assert.Equal(t, 12345.0, recs.Flow[0].NetAmount)
	assert.Equal(t, int32(10000), recs.Flow[0].UnitScale)
}

func TestInspectCode_Constituents(t *testing.T) {
	e := newEnv(t)

	path := e.shard(t, "sector_constituents_latest.parquet", "sector_code, stock_code, sector_name, date",
		"('BK1', '600000', 'bank', '2024-06-28'), ('BK2', '600001', 'steel', '2024-06-28')")

	byStock, err := InspectCode(e.ctx, e.engine, contracts.KindSectorConstituents, path, "600000", logger.Nop())
	require.NoError(t, err)
	require.Len(t, byStock.Constituents, 1)
	assert.Equal(t, "bank", byStock.Constituents[0].SectorName)

	bySector, err := InspectCode(e.ctx, e.engine, contracts.KindSectorConstituents, path, "BK2", logger.Nop())
	require.NoError(t, err)
	require.Len(t, bySector.Constituents, 1)
	assert.Equal(t, "600001", bySector.Constituents[0].StockCode)

	none, err := InspectCode(e.ctx, e.engine, contracts.KindSectorConstituents, path, "999999", logger.Nop())
	require.NoError(t, err)
	assert.Zero(t, none.Len())
}
