// Package schema declares the canonical column layout of every dataset kind.
// Both the in-process normalizer and the engine projection render from here.
package schema

import (
	"fmt"

	"github.com/wonny/consolidator/internal/contracts"
)

// Type is a canonical storage type
type Type int

const (
	String Type = iota
	Date
	Float32
	Float64
	Int8
	Int32
)

// SQL returns the DuckDB type name
func (t Type) SQL() string {
	switch t {
	case String, Date:
		return "VARCHAR"
	case Float32:
		return "FLOAT"
	case Float64:
		return "DOUBLE"
	case Int8:
		return "TINYINT"
	case Int32:
		return "INTEGER"
	default:
		return "VARCHAR"
	}
}

func (t Type) String() string {
	switch t {
	case String:
		return "string"
	case Date:
		return "date"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int8:
		return "int8"
	case Int32:
		return "int32"
	default:
		return fmt.Sprintf("type(%d)", int(t))
	}
}

// Numeric reports whether the type is numeric
func (t Type) Numeric() bool {
	return t == Float32 || t == Float64 || t == Int8 || t == Int32
}

// Missing is the policy applied to a missing or unparseable cell
type Missing int

const (
	KeepNull Missing = iota // propagate as a true missing marker
	ZeroFill                // substitute 0
)

// Column is one declared output column
type Column struct {
	Name    string
	Type    Type
	Missing Missing
	Scaled  bool // flow magnitude, rescaled to FlowUnit
}

// Schema is the ordered column list of a kind
type Schema struct {
	Kind    contracts.Kind
	Columns []Column
}

// FlowUnit is the stored unit of flow magnitudes: ten-thousand currency units
const FlowUnit = 10000

// UnitScaleColumn carries the provenance of flow magnitudes
const UnitScaleColumn = "unit_scale"

var market = Schema{
	Kind: contracts.KindStockKline,
	Columns: []Column{
		{Name: "date", Type: Date},
		{Name: "code", Type: String},
		{Name: "open", Type: Float32},
		{Name: "high", Type: Float32},
		{Name: "low", Type: Float32},
		{Name: "close", Type: Float32},
		{Name: "volume", Type: Float64},
		{Name: "amount", Type: Float64},
		{Name: "turn", Type: Float32},
		{Name: "pctChg", Type: Float32},
		{Name: "peTTM", Type: Float32},
		{Name: "pbMRQ", Type: Float32},
		{Name: "adjustFactor", Type: Float32},
		{Name: "isST", Type: Int8, Missing: ZeroFill},
	},
}

var flow = Schema{
	Kind: contracts.KindMoneyFlow,
	Columns: []Column{
		{Name: "date", Type: Date},
		{Name: "code", Type: String},
		{Name: "net_amount", Type: Float64, Missing: ZeroFill, Scaled: true},
		{Name: "main_net", Type: Float64, Missing: ZeroFill, Scaled: true},
		{Name: "super_net", Type: Float64, Missing: ZeroFill, Scaled: true},
		{Name: "large_net", Type: Float64, Missing: ZeroFill, Scaled: true},
		{Name: "medium_net", Type: Float64, Missing: ZeroFill, Scaled: true},
		{Name: "small_net", Type: Float64, Missing: ZeroFill, Scaled: true},
		{Name: UnitScaleColumn, Type: Int32},
	},
}

var sector = Schema{
	Kind: contracts.KindSectorKline,
	Columns: []Column{
		{Name: "date", Type: Date},
		{Name: "code", Type: String},
		{Name: "name", Type: String},
		{Name: "type", Type: String},
		{Name: "open", Type: Float32},
		{Name: "high", Type: Float32},
		{Name: "low", Type: Float32},
		{Name: "close", Type: Float32},
		{Name: "volume", Type: Float64},
		{Name: "amount", Type: Float64},
		{Name: "turn", Type: Float32},
	},
}

var constituents = Schema{
	Kind: contracts.KindSectorConstituents,
	Columns: []Column{
		{Name: "sector_code", Type: String},
		{Name: "stock_code", Type: String},
		{Name: "sector_name", Type: String},
		{Name: "date", Type: Date},
	},
}

// For returns the schema of a kind
func For(kind contracts.Kind) (Schema, error) {
	switch kind {
	case contracts.KindStockKline:
		return market, nil
	case contracts.KindMoneyFlow:
		return flow, nil
	case contracts.KindSectorKline:
		return sector, nil
	case contracts.KindSectorConstituents:
		return constituents, nil
	default:
		return Schema{}, fmt.Errorf("no schema for kind %q", kind)
	}
}

// MustFor is For for statically known kinds
func MustFor(kind contracts.Kind) Schema {
	s, err := For(kind)
	if err != nil {
		panic(err)
	}
	return s
}

// Names returns the ordered column names
func (s Schema) Names() []string {
	names := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		names[i] = c.Name
	}
	return names
}

// Column looks up a column by name
func (s Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// Has reports whether the schema declares the column
func (s Schema) Has(name string) bool {
	_, ok := s.Column(name)
	return ok
}

// TimeSeries reports whether the kind is keyed by (code, date)
func (s Schema) TimeSeries() bool {
	return s.Has("code") && s.Has("date")
}
