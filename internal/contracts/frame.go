package contracts

// Frame is a materialized, column-named table. A nil cell is a missing value.
// Frames are only built for bounded inputs (one artifact, one shard).
type Frame struct {
	Columns []string
	Rows    [][]any
}

// Len returns the number of rows
func (f Frame) Len() int { return len(f.Rows) }

// Empty reports whether the frame has no rows
func (f Frame) Empty() bool { return len(f.Rows) == 0 }

// ColumnIndex returns the position of a column
func (f Frame) ColumnIndex(name string) (int, bool) {
	for i, c := range f.Columns {
		if c == name {
			return i, true
		}
	}
	return -1, false
}

// HasColumn reports whether the frame carries the column
func (f Frame) HasColumn(name string) bool {
	_, ok := f.ColumnIndex(name)
	return ok
}

// RawRows converts the frame to union-by-name raw rows
func (f Frame) RawRows() []RawRow {
	out := make([]RawRow, 0, len(f.Rows))
	for _, row := range f.Rows {
		r := make(RawRow, len(f.Columns))
		for i, c := range f.Columns {
			if i < len(row) {
				r[c] = row[i]
			}
		}
		out = append(out, r)
	}
	return out
}
