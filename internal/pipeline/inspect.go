package pipeline

import (
	"context"
	"fmt"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/dedup"
	"github.com/wonny/consolidator/internal/normalize"
	"github.com/wonny/consolidator/internal/quality"
	"github.com/wonny/consolidator/internal/schema"
	"github.com/wonny/consolidator/pkg/duckdb"
	"github.com/wonny/consolidator/pkg/logger"
)

// ShardSummary describes one shard after in-process normalization and dedup
type ShardSummary struct {
	Kind       contracts.Kind          `json:"kind"`
	Path       string                  `json:"path"`
	RawRows    int                     `json:"raw_rows"`
	RawColumns []string                `json:"raw_columns"`
	Rows       int                     `json:"rows"`
	Duplicates int                     `json:"duplicates"`
	Stats      contracts.ArtifactStats `json:"stats"`
}

// keyedRow adapts a canonical frame row to dedup.Records
type keyedRow struct {
	key contracts.RecordKey
	row []any
}

func (r keyedRow) Key() contracts.RecordKey { return r.key }

// InspectShard normalizes, deduplicates and audits a single shard file in
// process. A shard is one worker's output, so it is safe to materialize.
func InspectShard(ctx context.Context, engine *duckdb.Engine, kind contracts.Kind, path string, critical []string, log *logger.Logger) (*ShardSummary, error) {
	raw, err := LoadFrame(ctx, engine, path)
	if err != nil {
		return nil, err
	}

	frame, err := normalize.New(log).Frame(kind, raw.RawRows())
	if err != nil {
		return nil, err
	}

	summary := &ShardSummary{
		Kind:       kind,
		Path:       path,
		RawRows:    raw.Len(),
		RawColumns: raw.Columns,
	}

	if schema.MustFor(kind).TimeSeries() {
		frame = DedupFrame(frame)
	}
	summary.Rows = frame.Len()
	summary.Duplicates = summary.RawRows - summary.Rows

	if !frame.Empty() {
		summary.Stats = quality.Check(frame, critical)
	}
	return summary, nil
}

// DedupFrame keeps the last row per (code, date) of a canonical frame and
// sorts by (code, date)
func DedupFrame(frame contracts.Frame) contracts.Frame {
	codeIdx, okCode := frame.ColumnIndex("code")
	dateIdx, okDate := frame.ColumnIndex("date")
	if !okCode || !okDate {
		return frame
	}

	rows := make([]keyedRow, len(frame.Rows))
	for i, r := range frame.Rows {
		code, _ := r[codeIdx].(string)
		date, _ := r[dateIdx].(string)
		rows[i] = keyedRow{key: contracts.RecordKey{Code: code, Date: date}, row: r}
	}

	kept := dedup.Records(rows)
	out := contracts.Frame{Columns: frame.Columns, Rows: make([][]any, len(kept))}
	for i, k := range kept {
		out.Rows[i] = k.row
	}
	return out
}

// CodeRecords is one code's normalized history within a single shard.
// Only the slice matching Kind is populated.
type CodeRecords struct {
	Kind         contracts.Kind
	Code         string
	Market       []contracts.MarketRecord
	Flow         []contracts.FlowRecord
	Sector       []contracts.SectorRecord
	Constituents []contracts.ConstituentRecord
}

// Len returns the number of matched records
func (c *CodeRecords) Len() int {
	return len(c.Market) + len(c.Flow) + len(c.Sector) + len(c.Constituents)
}

// InspectCode normalizes a shard into typed records and keeps the rows of one
// code, last arrival wins, sorted by date. For a constituents snapshot the
// code matches either the stock or the sector.
func InspectCode(ctx context.Context, engine *duckdb.Engine, kind contracts.Kind, path, code string, log *logger.Logger) (*CodeRecords, error) {
	raw, err := LoadFrame(ctx, engine, path)
	if err != nil {
		return nil, err
	}

	rows := raw.RawRows()
	n := normalize.New(log)
	out := &CodeRecords{Kind: kind, Code: code}

	switch kind {
	case contracts.KindStockKline:
		recs, err := n.Market(rows)
		if err != nil {
			return nil, err
		}
		out.Market = ofCode(recs, code)
	case contracts.KindMoneyFlow:
		recs, err := n.Flow(rows)
		if err != nil {
			return nil, err
		}
		out.Flow = ofCode(recs, code)
	case contracts.KindSectorKline:
		recs, err := n.Sector(rows)
		if err != nil {
			return nil, err
		}
		out.Sector = ofCode(recs, code)
	case contracts.KindSectorConstituents:
		recs, err := n.Constituents(rows)
		if err != nil {
			return nil, err
		}
		out.Constituents = make([]contracts.ConstituentRecord, 0)
		for _, r := range recs {
			if r.StockCode == code || r.SectorCode == code {
				out.Constituents = append(out.Constituents, r)
			}
		}
	default:
		return nil, fmt.Errorf("unsupported kind: %s", kind)
	}

	return out, nil
}

func ofCode[T contracts.Keyed](records []T, code string) []T {
	matched := make([]T, 0)
	for _, r := range records {
		if r.Key().Code == code {
			matched = append(matched, r)
		}
	}
	return dedup.Records(matched)
}
