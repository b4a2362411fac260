package contracts

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewQualityReport(t *testing.T) {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.FixedZone("CST", 8*3600))
	r := NewQualityReport("run-1", now)

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, time.UTC, r.GeneratedAt.Location())
	assert.NotNil(t, r.Errors)
	assert.NotNil(t, r.Stats)
	assert.False(t, r.HasErrors())
}

func TestQualityReport_ArtifactNamesSorted(t *testing.T) {
	r := NewQualityReport("run-1", time.Now())
	r.Stats["stock_money_flow_2024"] = ArtifactStats{AnomalyCount: 2}
	r.Stats["sector_kline_2024"] = ArtifactStats{}
	r.Stats["stock_kline_2024"] = ArtifactStats{AnomalyCount: 3}

	assert.Equal(t, []string{"sector_kline_2024", "stock_kline_2024", "stock_money_flow_2024"}, r.ArtifactNames())
	assert.Equal(t, 5, r.TotalAnomalies())
}

func TestQualityReport_JSON(t *testing.T) {
	r := NewQualityReport("run-1", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC))
	r.Errors = append(r.Errors, "stock_kline_2024 is empty!")
	r.Stats["stock_money_flow_2024"] = ArtifactStats{
		TotalRows:    10,
		Columns:      []string{"date", "code"},
		Anomalies:    map[string]int{"null_net_amount": 1},
		AnomalyCount: 1,
		AnomalyTypes: []string{"null_net_amount"},
	}

	data, err := json.Marshal(r)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Len(t, decoded["errors"], 1)

	stats := decoded["stats"].(map[string]any)["stock_money_flow_2024"].(map[string]any)
	assert.EqualValues(t, 10, stats["total_rows"])
	assert.EqualValues(t, 1, stats["anomaly_count"])
	assert.NotContains(t, stats, "start_date")
}

func TestArtifactStats_DateRange(t *testing.T) {
	assert.Equal(t, "-", ArtifactStats{}.DateRange())
	assert.Equal(t, "2024-01-02 ~ 2024-12-31", ArtifactStats{StartDate: "2024-01-02", EndDate: "2024-12-31"}.DateRange())
}

func TestKind(t *testing.T) {
	k, err := ParseKind("stock_money_flow")
	require.NoError(t, err)
	assert.Equal(t, KindMoneyFlow, k)
	assert.Equal(t, "stock_money_flow_2021.parquet", k.FileName(2021))

	_, err = ParseKind("bond_kline")
	assert.Error(t, err)
}

func TestFrame(t *testing.T) {
	f := Frame{
		Columns: []string{"code", "date"},
		Rows:    [][]any{{"600000", "2024-01-02"}},
	}

	idx, ok := f.ColumnIndex("date")
	assert.True(t, ok)
	assert.Equal(t, 1, idx)
	assert.False(t, f.HasColumn("close"))
	assert.Equal(t, []RawRow{{"code": "600000", "date": "2024-01-02"}}, f.RawRows())
}
