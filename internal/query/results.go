package query

import (
	"fmt"
	"iter"
	"sort"

	"github.com/viggyfresh/prom/internal/backend"
)

// Iterator is the traversal surface shared by Results and Chunked.
//
//	for it.Next() {
//	    v := it.Value()
//	}
//	if err := it.Err(); err != nil { ... }
type Iterator interface {
	Next() bool
	Value() any
	Err() error

	// Reset restarts traversal from the first element.
	Reset()

	// At returns the element at index i, ignoring any filter.
	At(i int) (any, error)

	// Seq returns a range-over-func sequence. A materialization error is
	// yielded once as the final pair.
	Seq() iter.Seq2[any, error]
}

// Sequence is an Iterator over a single in-memory batch.
type Sequence interface {
	Iterator
	Len() int
	Pop(i int) (any, error)
	Reverse()
	Sort(less func(a, b backend.Row) bool)
}

var (
	_ Sequence = (*Results)(nil)
	_ Iterator = (*Chunked)(nil)
)

// Results is one fetched batch of rows. Rows are materialized only when
// they are visited.
type Results struct {
	rows   []backend.Row
	m      materializer
	filter func(any) bool

	// HasMore is true when the backend had rows past this batch.
	HasMore bool

	pos int
	cur any
	err error
}

func newResults(rows []backend.Row, m materializer, hasMore bool) *Results {
	if rows == nil {
		rows = []backend.Row{}
	}
	return &Results{rows: rows, m: m, HasMore: hasMore}
}

// Next advances to the next element that passes the filter.
func (r *Results) Next() bool {
	for r.err == nil && r.pos < len(r.rows) {
		v, err := r.m.materialize(r.rows[r.pos])
		r.pos++
		if err != nil {
			r.err = err
			break
		}
		if r.filter != nil && !r.filter(v) {
			continue
		}
		r.cur = v
		return true
	}
	r.cur = nil
	return false
}

// Value returns the element Next stopped at.
func (r *Results) Value() any {
	return r.cur
}

// Err returns the materialization error that stopped traversal.
func (r *Results) Err() error {
	return r.err
}

// Reset rewinds the cursor.
func (r *Results) Reset() {
	r.pos = 0
	r.cur = nil
	r.err = nil
}

// Seq iterates the batch independently of the cursor.
func (r *Results) Seq() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, row := range r.rows {
			v, err := r.m.materialize(row)
			if err != nil {
				yield(nil, err)
				return
			}
			if r.filter != nil && !r.filter(v) {
				continue
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Field yields one column of every row that passes the filter. Rows
// without the column yield nil. name is a column name, not an alias.
func (r *Results) Field(name string) iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for _, row := range r.rows {
			if r.filter != nil {
				v, err := r.m.materialize(row)
				if err != nil {
					yield(nil, err)
					return
				}
				if !r.filter(v) {
					continue
				}
			}
			v, _ := row.Get(name)
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Collect materializes every element that passes the filter.
func (r *Results) Collect() ([]any, error) {
	out := []any{}
	for v, err := range r.Seq() {
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// SetFilter skips elements for which pred returns false. The filter runs
// on materialized values. nil removes it.
func (r *Results) SetFilter(pred func(any) bool) *Results {
	r.filter = pred
	r.Reset()
	return r
}

// Values switches to projection mode: each element becomes the value of
// the single selected field, or a []any of all selected fields.
func (r *Results) Values() (*Results, error) {
	if len(r.m.fields) == 0 {
		return r, noSelectedFields()
	}
	r.m.values = true
	r.Reset()
	return r, nil
}

// Len returns the batch size. The filter is not applied.
func (r *Results) Len() int {
	return len(r.rows)
}

// Empty reports whether the batch has no rows.
func (r *Results) Empty() bool {
	return len(r.rows) == 0
}

// Rows returns the raw batch.
func (r *Results) Rows() []backend.Row {
	return append([]backend.Row(nil), r.rows...)
}

func (r *Results) index(i int) (int, error) {
	if i < 0 {
		i += len(r.rows)
	}
	if i < 0 || i >= len(r.rows) {
		return 0, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, i, len(r.rows))
	}
	return i, nil
}

// At materializes element i. Negative indexes count from the end.
func (r *Results) At(i int) (any, error) {
	idx, err := r.index(i)
	if err != nil {
		return nil, err
	}
	return r.m.materialize(r.rows[idx])
}

// Pop removes element i and returns it materialized. Negative indexes count
// from the end.
func (r *Results) Pop(i int) (any, error) {
	idx, err := r.index(i)
	if err != nil {
		return nil, err
	}
	row := r.rows[idx]
	r.rows = append(r.rows[:idx:idx], r.rows[idx+1:]...)
	if idx < r.pos {
		r.pos--
	}
	return r.m.materialize(row)
}

// Reverse reverses the batch in place and rewinds.
func (r *Results) Reverse() {
	for i, j := 0, len(r.rows)-1; i < j; i, j = i+1, j-1 {
		r.rows[i], r.rows[j] = r.rows[j], r.rows[i]
	}
	r.Reset()
}

// Sort stably sorts the raw batch in place and rewinds.
func (r *Results) Sort(less func(a, b backend.Row) bool) {
	sort.SliceStable(r.rows, func(i, j int) bool { return less(r.rows[i], r.rows[j]) })
	r.Reset()
}
