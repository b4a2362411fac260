package contracts

import "database/sql"

// RawRow is one shard row after union-by-name reconciliation: column name → raw
// cell as delivered by the vendor (string, number, time.Time or nil).
type RawRow map[string]any

// RecordKey is the composite uniqueness key of a time-series record
type RecordKey struct {
	Code string
	Date string // YYYY-MM-DD
}

// Less orders keys ascending by (code, date)
func (k RecordKey) Less(o RecordKey) bool {
	if k.Code != o.Code {
		return k.Code < o.Code
	}
	return k.Date < o.Date
}

// Keyed is implemented by every deduplicable record
type Keyed interface {
	Key() RecordKey
}

// MarketRecord is one daily OHLCV row of a stock
// 가격/비율 = float32, 거래량/거래대금 = float64 (대형주 거래대금 오버플로 방지)
type MarketRecord struct {
	Date         string
	Code         string
	Open         sql.Null[float32]
	High         sql.Null[float32]
	Low          sql.Null[float32]
	Close        sql.Null[float32]
	Volume       sql.Null[float64]
	Amount       sql.Null[float64]
	Turn         sql.Null[float32]
	PctChg       sql.Null[float32]
	PeTTM        sql.Null[float32]
	PbMRQ        sql.Null[float32]
	AdjustFactor sql.Null[float32]
	IsST         int8
}

// Key implements Keyed
func (r MarketRecord) Key() RecordKey { return RecordKey{Code: r.Code, Date: r.Date} }

// FlowRecord is one daily capital-flow row, magnitudes in 10k currency units
type FlowRecord struct {
	Date      string
	Code      string
	NetAmount float64
	MainNet   float64
	SuperNet  float64
	LargeNet  float64
	MediumNet float64
	SmallNet  float64
	UnitScale int32 // provenance: currency units per stored unit (always 10000 after normalization)
}

// Key implements Keyed
func (r FlowRecord) Key() RecordKey { return RecordKey{Code: r.Code, Date: r.Date} }

// SectorRecord is one daily candle of a sector index
type SectorRecord struct {
	Date   string
	Code   string
	Name   string
	Type   SectorType
	Open   sql.Null[float32]
	High   sql.Null[float32]
	Low    sql.Null[float32]
	Close  sql.Null[float32]
	Volume sql.Null[float64]
	Amount sql.Null[float64]
	Turn   sql.Null[float32]
}

// Key implements Keyed. (sector_code, date) is the true key across sector types.
func (r SectorRecord) Key() RecordKey { return RecordKey{Code: r.Code, Date: r.Date} }

// ConstituentRecord is a point-in-time sector membership, not a time series
type ConstituentRecord struct {
	SectorCode string
	StockCode  string
	SectorName string
	Date       string // snapshot date
}
