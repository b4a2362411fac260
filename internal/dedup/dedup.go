// Package dedup collapses duplicate (code, date) keys and imposes the
// canonical (code, date) ordering.
//
// The last arriving row wins. Arrival is always explicit: an input index for
// in-process slices, (shard ordinal, file row number) for engine relations.
package dedup

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/pkg/duckdb"
)

// Arrival columns attached to every raw engine row
const (
	ShardColumn = "_shard"
	RowColumn   = "_row"
)

// KeyColumns is the composite uniqueness key
var KeyColumns = []string{"code", "date"}

// ArrivalColumns orders rows by production sequence
var ArrivalColumns = []string{ShardColumn, RowColumn}

// Records keeps the last row per key and sorts ascending by (code, date).
// The input slice is not modified. Idempotent.
func Records[T contracts.Keyed](rows []T) []T {
	if len(rows) == 0 {
		return []T{}
	}

	last := make(map[contracts.RecordKey]int, len(rows))
	for i, r := range rows {
		last[r.Key()] = i
	}

	out := make([]T, 0, len(last))
	for i, r := range rows {
		if last[r.Key()] == i {
			out = append(out, r)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Key().Less(out[j].Key())
	})
	return out
}

// Clause renders the engine equivalent of Records' winner selection:
// one row per key, the highest arrival tuple wins.
func Clause(keys, arrival []string) string {
	order := make([]string, len(arrival))
	for i, c := range arrival {
		order[i] = duckdb.Ident(c) + " DESC"
	}
	return fmt.Sprintf(
		"QUALIFY row_number() OVER (PARTITION BY %s ORDER BY %s) = 1",
		identList(keys), strings.Join(order, ", "),
	)
}

// OrderBy renders the canonical ordering
func OrderBy(keys []string) string {
	return "ORDER BY " + identList(keys)
}

func identList(cols []string) string {
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = duckdb.Ident(c)
	}
	return strings.Join(quoted, ", ")
}
