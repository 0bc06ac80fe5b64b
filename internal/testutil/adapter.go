package testutil

import (
	"context"
	"fmt"
	"reflect"

	"github.com/stretchr/testify/mock"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/criteria"
	"github.com/viggyfresh/prom/internal/schema"
)

// SliceAdapter is an in-memory backend.Adapter over a fixed row slice.
//
// It understands is and in criteria and honours limit/offset, which is all
// iteration tests need. Every call is recorded.
type SliceAdapter struct {
	Rows []backend.Row

	// Calls records each operation in order.
	Calls []Call
}

// Call is one recorded SliceAdapter invocation.
type Call struct {
	Op     backend.Operation
	Limit  int
	Offset int
}

// NewSliceAdapter builds rows with a single column from values.
func NewSliceAdapter(column string, values ...any) *SliceAdapter {
	rows := make([]backend.Row, len(values))
	for i, v := range values {
		rows[i] = backend.NewRow([]string{"_id", column}, []any{int64(i + 1), v})
	}
	return &SliceAdapter{Rows: rows}
}

// Count returns how many calls of op were made.
func (a *SliceAdapter) Count(op backend.Operation) int {
	n := 0
	for _, c := range a.Calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

func (a *SliceAdapter) match(set *criteria.Set) []backend.Row {
	out := []backend.Row{}
rows:
	for _, r := range a.Rows {
		for _, c := range set.Where {
			v, _ := r.Get(c.Field)
			switch c.Verb {
			case criteria.VerbIs:
				if !reflect.DeepEqual(v, c.Value) {
					continue rows
				}
			case criteria.VerbIn:
				found := false
				for _, want := range c.Values {
					if reflect.DeepEqual(v, want) {
						found = true
						break
					}
				}
				if !found {
					continue rows
				}
			}
		}
		out = append(out, r)
	}
	return out
}

// Query implements backend.Adapter.
func (a *SliceAdapter) Query(ctx context.Context, op backend.Operation, s *schema.Schema, set *criteria.Set) (backend.Result, error) {
	limit, offset, _ := set.GetBounds()
	if op == backend.OpGetOne {
		limit = 1
	}
	a.Calls = append(a.Calls, Call{Op: op, Limit: limit, Offset: offset})

	rows := a.match(set)
	if op == backend.OpCount {
		return backend.Result{Count: int64(len(rows))}, nil
	}
	if offset >= len(rows) {
		return backend.Result{Rows: []backend.Row{}}, nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return backend.Result{Rows: append([]backend.Row(nil), rows...)}, nil
}

// Insert appends a row.
func (a *SliceAdapter) Insert(ctx context.Context, s *schema.Schema, fields []criteria.FieldValue) (any, error) {
	a.Calls = append(a.Calls, Call{Op: backend.OpInsert})
	id := int64(len(a.Rows) + 1)
	cols := []string{"_id"}
	vals := []any{id}
	for _, f := range fields {
		cols = append(cols, f.Name)
		vals = append(vals, f.Value)
	}
	a.Rows = append(a.Rows, backend.NewRow(cols, vals))
	return id, nil
}

// Update is not supported beyond recording the call.
func (a *SliceAdapter) Update(ctx context.Context, s *schema.Schema, fields []criteria.FieldValue, set *criteria.Set) (int64, error) {
	a.Calls = append(a.Calls, Call{Op: backend.OpUpdate})
	return int64(len(a.match(set))), nil
}

// Delete removes matching rows.
func (a *SliceAdapter) Delete(ctx context.Context, s *schema.Schema, set *criteria.Set) (int64, error) {
	a.Calls = append(a.Calls, Call{Op: backend.OpDelete})
	matched := a.match(set)
	keep := a.Rows[:0]
	for _, r := range a.Rows {
		drop := false
		for _, m := range matched {
			if reflect.DeepEqual(r, m) {
				drop = true
				break
			}
		}
		if !drop {
			keep = append(keep, r)
		}
	}
	a.Rows = keep
	return int64(len(matched)), nil
}

// MockAdapter is a testify mock of backend.Adapter and backend.Repairer.
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Insert(ctx context.Context, s *schema.Schema, fields []criteria.FieldValue) (any, error) {
	args := m.Called(ctx, s, fields)
	return args.Get(0), args.Error(1)
}

func (m *MockAdapter) Update(ctx context.Context, s *schema.Schema, fields []criteria.FieldValue, set *criteria.Set) (int64, error) {
	args := m.Called(ctx, s, fields, set)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdapter) Delete(ctx context.Context, s *schema.Schema, set *criteria.Set) (int64, error) {
	args := m.Called(ctx, s, set)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAdapter) Query(ctx context.Context, op backend.Operation, s *schema.Schema, set *criteria.Set) (backend.Result, error) {
	args := m.Called(ctx, op, s, set)
	return args.Get(0).(backend.Result), args.Error(1)
}

func (m *MockAdapter) Repair(ctx context.Context, s *schema.Schema, err error) (bool, error) {
	args := m.Called(ctx, s, err)
	return args.Bool(0), args.Error(1)
}

// Letters returns n single-letter strings starting at "A".
func Letters(n int) []any {
	out := make([]any, n)
	for i := range out {
		out[i] = fmt.Sprintf("%c", 'A'+i)
	}
	return out
}
