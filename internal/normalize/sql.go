package normalize

import (
	"fmt"
	"strings"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/schema"
	"github.com/wonny/consolidator/pkg/duckdb"
)

// sqlDateFormats mirror dateLayouts in strptime syntax
var sqlDateFormats = []string{
	"%Y-%m-%d",
	"%Y%m%d",
	"%Y/%m/%d",
	"%Y-%m-%d %H:%M:%S",
	"%Y-%m-%dT%H:%M:%SZ",
}

// Projection renders the normalization policy of a kind as a DuckDB select
// list. present lists the columns the source relation actually carries;
// declared columns it lacks are synthesized (NULL, or 0 for zero-fill).
// The output columns are exactly the declared schema, in declared order.
func Projection(kind contracts.Kind, present []string) (string, error) {
	s, err := schema.For(kind)
	if err != nil {
		return "", err
	}

	have := make(map[string]bool, len(present))
	for _, c := range present {
		have[c] = true
	}

	scale := "1"
	if have[schema.UnitScaleColumn] {
		us := fmt.Sprintf("TRY_CAST(%s AS BIGINT)", duckdb.Ident(schema.UnitScaleColumn))
		scale = fmt.Sprintf("CASE WHEN %s > 0 THEN %s ELSE 1 END", us, us)
	}

	exprs := make([]string, 0, len(s.Columns))
	for _, col := range s.Columns {
		src := "NULL"
		if have[col.Name] {
			src = duckdb.Ident(col.Name)
		}
		exprs = append(exprs, fmt.Sprintf("%s AS %s", columnExpr(col, src, scale), duckdb.Ident(col.Name)))
	}

	return strings.Join(exprs, ",\n  "), nil
}

func columnExpr(col schema.Column, src, scale string) string {
	if col.Name == schema.UnitScaleColumn {
		return fmt.Sprintf("CAST(%d AS INTEGER)", schema.FlowUnit)
	}

	switch col.Type {
	case schema.Date:
		return dateExpr(col.Name, src)

	case schema.String:
		return fmt.Sprintf("NULLIF(trim(CAST(%s AS VARCHAR)), '')", src)

	case schema.Float32, schema.Float64:
		if col.Scaled {
			return fmt.Sprintf("CAST(COALESCE(TRY_CAST(%s AS DOUBLE), 0) * %s / %d AS DOUBLE)", src, scale, schema.FlowUnit)
		}
		expr := fmt.Sprintf("TRY_CAST(%s AS %s)", src, col.Type.SQL())
		if col.Missing == schema.ZeroFill {
			expr = fmt.Sprintf("COALESCE(%s, 0)", expr)
		}
		return fmt.Sprintf("CAST(%s AS %s)", expr, col.Type.SQL())

	default:
		expr := fmt.Sprintf("TRY_CAST(TRY_CAST(%s AS DOUBLE) AS %s)", src, col.Type.SQL())
		if col.Missing == schema.ZeroFill {
			expr = fmt.Sprintf("COALESCE(%s, 0)", expr)
		}
		return fmt.Sprintf("CAST(%s AS %s)", expr, col.Type.SQL())
	}
}

// dateExpr parses every accepted form and raises on anything else, so a
// single malformed date fails the whole statement.
func dateExpr(name, src string) string {
	text := fmt.Sprintf("trim(CAST(%s AS VARCHAR))", src)

	parts := make([]string, 0, len(sqlDateFormats)+1)
	for _, f := range sqlDateFormats {
		parts = append(parts, fmt.Sprintf("TRY_STRPTIME(%s, %s)", text, duckdb.Literal(f)))
	}
	parts = append(parts, fmt.Sprintf("TRY_CAST(%s AS TIMESTAMP)", text))
	parsed := "COALESCE(" + strings.Join(parts, ", ") + ")"

	return fmt.Sprintf(
		"CASE WHEN %s IS NULL THEN error(%s || COALESCE(%s, '<missing>')) ELSE strftime(%s, '%%Y-%%m-%%d') END",
		parsed, duckdb.Literal(ErrInvalidDate.Error()+": "+name+"="), text, parsed,
	)
}
