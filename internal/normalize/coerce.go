package normalize

import (
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cast"
)

// dateLayouts are the accepted textual date forms, tried in order
var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"2006/01/02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// ToFloat parses a numeric cell leniently. Unparseable, empty and NaN cells
// are missing (ok=false), never an error.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case nil:
		return 0, false
	case []byte:
		v = string(x)
	case time.Time, bool:
		return 0, false
	}

	if s, isStr := v.(string); isStr {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		v = s
	}

	f, err := cast.ToFloat64E(v)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ToDecimal parses a numeric cell into an exact decimal. Textual and integer
// cells keep every digit; float cells use their shortest representation.
func ToDecimal(v any) (decimal.Decimal, bool) {
	switch x := v.(type) {
	case nil:
		return decimal.Zero, false
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(x))
		if err == nil {
			return d, true
		}
	case []byte:
		d, err := decimal.NewFromString(strings.TrimSpace(string(x)))
		if err == nil {
			return d, true
		}
	case int:
		return decimal.NewFromInt(int64(x)), true
	case int32:
		return decimal.NewFromInt32(x), true
	case int64:
		return decimal.NewFromInt(x), true
	}

	f, ok := ToFloat(v)
	if !ok {
		return decimal.Zero, false
	}
	return decimal.NewFromFloat(f), true
}

// ToString renders an identifier-like cell (code, name). Missing → ("", false).
func ToString(v any) (string, bool) {
	if v == nil {
		return "", false
	}
	if b, isBytes := v.([]byte); isBytes {
		v = string(b)
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// ToDate canonicalizes a date cell to YYYY-MM-DD
func ToDate(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", false
	case time.Time:
		if x.IsZero() {
			return "", false
		}
		return x.Format("2006-01-02"), true
	case int, int32, int64:
		// 20240102 형식의 정수 날짜
		v = cast.ToString(x)
	case float64:
		if x != math.Trunc(x) {
			return "", false
		}
		v = cast.ToString(int64(x))
	case []byte:
		v = string(x)
	}

	s, isStr := v.(string)
	if !isStr {
		return "", false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
