package backend

// Row is an ordered column→value mapping. The zero Row is empty.
type Row struct {
	cols []string
	vals map[string]any
}

// NewRow builds a row from parallel column and value slices.
// A repeated column keeps its first position and its last value.
func NewRow(cols []string, vals []any) Row {
	r := Row{
		cols: make([]string, 0, len(cols)),
		vals: make(map[string]any, len(cols)),
	}
	for i, c := range cols {
		var v any
		if i < len(vals) {
			v = vals[i]
		}
		if _, seen := r.vals[c]; !seen {
			r.cols = append(r.cols, c)
		}
		r.vals[c] = v
	}
	return r
}

// RowFromMap builds a row from m with the given column order. Keys of m
// missing from order are appended in unspecified order.
func RowFromMap(m map[string]any, order ...string) Row {
	cols := make([]string, 0, len(m))
	vals := make([]any, 0, len(m))
	seen := make(map[string]bool, len(m))
	for _, c := range order {
		if v, ok := m[c]; ok && !seen[c] {
			cols = append(cols, c)
			vals = append(vals, v)
			seen[c] = true
		}
	}
	for c, v := range m {
		if !seen[c] {
			cols = append(cols, c)
			vals = append(vals, v)
		}
	}
	return NewRow(cols, vals)
}

// Get returns the value of column key.
func (r Row) Get(key string) (any, bool) {
	v, ok := r.vals[key]
	return v, ok
}

// Keys returns the columns in order.
func (r Row) Keys() []string {
	return append([]string(nil), r.cols...)
}

// Len returns the number of columns.
func (r Row) Len() int {
	return len(r.cols)
}

// Map returns a copy of the row as a map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.vals))
	for k, v := range r.vals {
		m[k] = v
	}
	return m
}
