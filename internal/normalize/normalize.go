// Package normalize enforces the per-kind schema on raw shard rows.
//
// Two renderings share the declarations in internal/schema: Normalizer works
// on bounded in-process rows, Projection renders the same policy as a DuckDB
// select list for the streaming path.
package normalize

import (
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/schema"
	"github.com/wonny/consolidator/pkg/logger"
)

// ErrInvalidDate is returned when a date cell is missing or unparseable.
// The whole normalization call fails; no partial output is produced.
var ErrInvalidDate = errors.New("invalid date")

var flowUnit = decimal.NewFromInt(schema.FlowUnit)

// Normalizer converts raw shard rows into canonical typed records
type Normalizer struct {
	logger *logger.Logger
}

// New creates a normalizer
func New(log *logger.Logger) *Normalizer {
	return &Normalizer{logger: log}
}

// Frame normalizes rows of any kind into a canonical frame whose columns are
// exactly the declared schema, in declared order. Missing cells are nil.
func (n *Normalizer) Frame(kind contracts.Kind, rows []contracts.RawRow) (contracts.Frame, error) {
	s, err := schema.For(kind)
	if err != nil {
		return contracts.Frame{}, err
	}

	frame := contracts.Frame{Columns: s.Names()}
	if len(rows) == 0 {
		return frame, nil
	}

	frame.Rows = make([][]any, 0, len(rows))
	for i, raw := range rows {
		out, err := normalizeRow(s, raw)
		if err != nil {
			return contracts.Frame{Columns: frame.Columns}, fmt.Errorf("%s row %d: %w", kind, i, err)
		}
		frame.Rows = append(frame.Rows, out)
	}

	n.logger.WithFields(map[string]interface{}{
		"kind": string(kind),
		"rows": len(frame.Rows),
	}).Debug("Normalized rows")

	return frame, nil
}

func normalizeRow(s schema.Schema, raw contracts.RawRow) ([]any, error) {
	scale := rowScale(raw)

	out := make([]any, len(s.Columns))
	for i, col := range s.Columns {
		v, err := Cell(col, raw[col.Name], scale)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// rowScale is the currency units per stored unit the row already carries.
// Missing or non-positive means raw base units.
func rowScale(raw contracts.RawRow) int64 {
	f, ok := ToFloat(raw[schema.UnitScaleColumn])
	if !ok || f <= 0 {
		return 1
	}
	return int64(f)
}

// Cell normalizes one cell. scale is the row's existing unit scale and only
// matters for scaled flow columns.
func Cell(col schema.Column, v any, scale int64) (any, error) {
	if col.Name == schema.UnitScaleColumn {
		return int32(schema.FlowUnit), nil
	}

	switch col.Type {
	case schema.Date:
		d, ok := ToDate(v)
		if !ok {
			return nil, fmt.Errorf("%w: %s=%v", ErrInvalidDate, col.Name, v)
		}
		return d, nil

	case schema.String:
		s, ok := ToString(v)
		if !ok {
			return nil, nil
		}
		return s, nil

	case schema.Float32, schema.Float64:
		if col.Scaled {
			return rescale(v, scale), nil
		}
		f, ok := ToFloat(v)
		if !ok {
			if col.Missing == schema.ZeroFill {
				f = 0
			} else {
				return nil, nil
			}
		}
		if col.Type == schema.Float32 {
			return float32(f), nil
		}
		return f, nil

	case schema.Int8:
		f, ok := ToFloat(v)
		if !ok || f < math.MinInt8 || f > math.MaxInt8 {
			if col.Missing == schema.ZeroFill {
				return int8(0), nil
			}
			return nil, nil
		}
		return int8(math.Round(f)), nil

	case schema.Int32:
		f, ok := ToFloat(v)
		if !ok || f < math.MinInt32 || f > math.MaxInt32 {
			if col.Missing == schema.ZeroFill {
				return int32(0), nil
			}
			return nil, nil
		}
		return int32(math.Round(f)), nil
	}

	return nil, fmt.Errorf("column %s: unsupported type %s", col.Name, col.Type)
}

// rescale converts a flow magnitude to ten-thousand units.
// value_out = value × scale / 10000, missing → 0
func rescale(v any, scale int64) float64 {
	d, ok := ToDecimal(v)
	if !ok {
		return 0
	}
	out, _ := d.Mul(decimal.NewFromInt(scale)).Div(flowUnit).Float64()
	return out
}

// Market normalizes stock kline rows
func (n *Normalizer) Market(rows []contracts.RawRow) ([]contracts.MarketRecord, error) {
	frame, err := n.Frame(contracts.KindStockKline, rows)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.MarketRecord, 0, frame.Len())
	for _, row := range frame.Rows {
		out = append(out, contracts.MarketRecord{
			Date:         row[0].(string),
			Code:         str(row[1]),
			Open:         nullOf[float32](row[2]),
			High:         nullOf[float32](row[3]),
			Low:          nullOf[float32](row[4]),
			Close:        nullOf[float32](row[5]),
			Volume:       nullOf[float64](row[6]),
			Amount:       nullOf[float64](row[7]),
			Turn:         nullOf[float32](row[8]),
			PctChg:       nullOf[float32](row[9]),
			PeTTM:        nullOf[float32](row[10]),
			PbMRQ:        nullOf[float32](row[11]),
			AdjustFactor: nullOf[float32](row[12]),
			IsST:         row[13].(int8),
		})
	}
	return out, nil
}

// Flow normalizes capital-flow rows. Only the designated columns survive.
func (n *Normalizer) Flow(rows []contracts.RawRow) ([]contracts.FlowRecord, error) {
	frame, err := n.Frame(contracts.KindMoneyFlow, rows)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.FlowRecord, 0, frame.Len())
	for _, row := range frame.Rows {
		out = append(out, contracts.FlowRecord{
			Date:      row[0].(string),
			Code:      str(row[1]),
			NetAmount: row[2].(float64),
			MainNet:   row[3].(float64),
			SuperNet:  row[4].(float64),
			LargeNet:  row[5].(float64),
			MediumNet: row[6].(float64),
			SmallNet:  row[7].(float64),
			UnitScale: row[8].(int32),
		})
	}
	return out, nil
}

// Sector normalizes sector index rows
func (n *Normalizer) Sector(rows []contracts.RawRow) ([]contracts.SectorRecord, error) {
	frame, err := n.Frame(contracts.KindSectorKline, rows)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.SectorRecord, 0, frame.Len())
	for _, row := range frame.Rows {
		out = append(out, contracts.SectorRecord{
			Date:   row[0].(string),
			Code:   str(row[1]),
			Name:   str(row[2]),
			Type:   contracts.SectorType(str(row[3])),
			Open:   nullOf[float32](row[4]),
			High:   nullOf[float32](row[5]),
			Low:    nullOf[float32](row[6]),
			Close:  nullOf[float32](row[7]),
			Volume: nullOf[float64](row[8]),
			Amount: nullOf[float64](row[9]),
			Turn:   nullOf[float32](row[10]),
		})
	}
	return out, nil
}

// Constituents normalizes a sector membership snapshot
func (n *Normalizer) Constituents(rows []contracts.RawRow) ([]contracts.ConstituentRecord, error) {
	frame, err := n.Frame(contracts.KindSectorConstituents, rows)
	if err != nil {
		return nil, err
	}

	out := make([]contracts.ConstituentRecord, 0, frame.Len())
	for _, row := range frame.Rows {
		out = append(out, contracts.ConstituentRecord{
			SectorCode: str(row[0]),
			StockCode:  str(row[1]),
			SectorName: str(row[2]),
			Date:       row[3].(string),
		})
	}
	return out, nil
}

func str(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func nullOf[T float32 | float64](v any) sql.Null[T] {
	if t, ok := v.(T); ok {
		return sql.Null[T]{V: t, Valid: true}
	}
	return sql.Null[T]{}
}
