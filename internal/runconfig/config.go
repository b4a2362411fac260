package runconfig

import "github.com/wonny/consolidator/internal/contracts"

// Config는 통합 실행 설정 (shard 위치, critical column)
type Config struct {
	Datasets Datasets `yaml:"datasets" json:"datasets"`
	Metadata Metadata `yaml:"metadata" json:"metadata"`
}

// Datasets holds one entry per kind.
// 주의: map 대신 struct 사용으로 해시 재현성 보장
type Datasets struct {
	StockKline         Dataset `yaml:"stock_kline" json:"stock_kline"`
	MoneyFlow          Dataset `yaml:"stock_money_flow" json:"stock_money_flow"`
	SectorKline        Dataset `yaml:"sector_kline" json:"sector_kline"`
	SectorConstituents Dataset `yaml:"sector_constituents" json:"sector_constituents"`
}

// Dataset locates a kind's shards and names the columns whose nulls are anomalies.
// Exactly one of ShardPrefix (per-worker <prefix>_part_<n>.parquet) and
// ShardFile (single file) is set.
type Dataset struct {
	ShardPrefix     string   `yaml:"shard_prefix,omitempty" json:"shard_prefix,omitempty"`
	ShardFile       string   `yaml:"shard_file,omitempty" json:"shard_file,omitempty"`
	CriticalColumns []string `yaml:"critical_columns,omitempty" json:"critical_columns,omitempty"`
}

// Sharded reports whether the dataset is split across worker shards
func (d Dataset) Sharded() bool {
	return d.ShardPrefix != ""
}

// Metadata toggles the optional list artifacts
type Metadata struct {
	StockList  bool `yaml:"stock_list" json:"stock_list"`
	SectorList bool `yaml:"sector_list" json:"sector_list"`
}

// For returns the dataset entry of a kind
func (c *Config) For(kind contracts.Kind) Dataset {
	switch kind {
	case contracts.KindStockKline:
		return c.Datasets.StockKline
	case contracts.KindMoneyFlow:
		return c.Datasets.MoneyFlow
	case contracts.KindSectorKline:
		return c.Datasets.SectorKline
	case contracts.KindSectorConstituents:
		return c.Datasets.SectorConstituents
	default:
		return Dataset{}
	}
}

// Default mirrors the shard layout produced by the fetch workers
func Default() *Config {
	return &Config{
		Datasets: Datasets{
			StockKline: Dataset{
				ShardPrefix:     "kline",
				CriticalColumns: []string{"close", "volume"},
			},
			MoneyFlow: Dataset{
				ShardPrefix:     "flow",
				CriticalColumns: []string{"net_amount"},
			},
			SectorKline: Dataset{
				ShardFile:       "sector_kline_full.parquet",
				CriticalColumns: []string{"close"},
			},
			SectorConstituents: Dataset{
				ShardFile: "sector_constituents_latest.parquet",
			},
		},
		Metadata: Metadata{
			StockList:  true,
			SectorList: true,
		},
	}
}
