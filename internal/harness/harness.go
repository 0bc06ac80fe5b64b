package harness

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/backend/sqlite"
	"github.com/viggyfresh/prom/internal/fingerprint"
	"github.com/viggyfresh/prom/internal/logging"
	"github.com/viggyfresh/prom/internal/query"
	"github.com/viggyfresh/prom/internal/schema"
)

// Harness runs the steps of one scenario against one database.
type Harness struct {
	db     *sqlite.DB
	schema *schema.Schema
	opts   []query.Option
	logger *slog.Logger
}

// Run executes scenario in a private in-memory database. opts are passed
// to every query the scenario builds, so a scenario can be replayed
// through middleware such as a cache and must give the same trace.
//
// The returned error covers setup only: a bad schema, an unknown table or
// a seed row that fails to insert. Failed expectations are reported in
// the Result.
func Run(ctx context.Context, scenario *Scenario, opts ...query.Option) (*Result, error) {
	set, err := schema.LoadFile(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}
	s, err := pickTable(set, scenario.Table)
	if err != nil {
		return nil, err
	}

	logger := logging.Discard()
	db, err := sqlite.Open(sqlite.Config{
		Path:   ":memory:",
		Driver: scenario.Driver,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory database: %w", err)
	}
	defer db.Close()

	if err := db.CreateTable(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create table %s: %w", s.Table, err)
	}

	h := &Harness{
		db:     db,
		schema: s,
		opts:   append([]query.Option{query.WithLogger(logger)}, opts...),
		logger: logger,
	}

	for i, row := range scenario.Seed {
		if _, err := h.query().SetFields(row).Insert(ctx); err != nil {
			return nil, fmt.Errorf("failed to insert seed row %d: %w", i+1, err)
		}
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.executeStep(ctx, i+1, step, result)
	}
	return result, nil
}

func pickTable(set schema.Set, table string) (*schema.Schema, error) {
	if table == "" {
		tables := set.Tables()
		if len(tables) != 1 {
			return nil, fmt.Errorf("schema defines %d tables; name one with table", len(tables))
		}
		table = tables[0]
	}
	s, ok := set.Get(table)
	if !ok {
		return nil, fmt.Errorf("table %q not found in schema", table)
	}
	return s, nil
}

func (h *Harness) query() *query.Query {
	return query.New(h.schema, h.db, h.opts...)
}

// build applies the step's calls, assignments and bounds to a new query.
func (h *Harness) build(step Step) *query.Query {
	q := h.query()
	for _, call := range step.Calls {
		q = q.Call(call.Method, call.Args...)
	}
	if len(step.Set) > 0 {
		q = q.SetFields(step.Set)
	}
	if step.Limit > 0 {
		q = q.SetLimit(step.Limit)
	}
	switch {
	case step.Page > 0:
		q = q.SetPage(step.Page)
	case step.Offset > 0:
		q = q.SetOffset(step.Offset)
	}
	return q
}

func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) {
	ev := TraceEvent{Step: n, Op: step.Op}
	value, hasMore, err := h.run(ctx, h.build(step), step.Op)
	if err != nil {
		ev.Error = err.Error()
	} else {
		ev.Value = traceValue(value)
		ev.HasMore = hasMore
	}
	result.AddEvent(ev)
	h.logger.Debug("step executed", "step", n, "op", step.Op, "error", ev.Error)

	checkExpect(n, step.Expect, ev, result)
}

func (h *Harness) run(ctx context.Context, q *query.Query, op string) (any, *bool, error) {
	switch op {
	case OpGet, OpValues:
		var res *query.Results
		var err error
		if op == OpGet {
			res, err = q.Get(ctx)
		} else {
			res, err = q.Values(ctx)
		}
		if err != nil {
			return nil, nil, err
		}
		values, err := res.Collect()
		if err != nil {
			return nil, nil, err
		}
		hasMore := res.HasMore
		return values, &hasMore, nil
	case OpAll:
		values := []any{}
		for v, err := range q.All(ctx).Seq() {
			if err != nil {
				return nil, nil, err
			}
			values = append(values, v)
		}
		return values, nil, nil
	case OpGetOne:
		v, err := q.GetOne(ctx)
		return v, nil, err
	case OpFirst:
		v, err := q.First(ctx)
		return v, nil, err
	case OpLast:
		v, err := q.Last(ctx)
		return v, nil, err
	case OpValue:
		v, err := q.Value(ctx)
		return v, nil, err
	case OpPKs:
		v, err := q.PKs(ctx)
		return v, nil, err
	case OpCount:
		v, err := q.Count(ctx)
		return v, nil, err
	case OpHas:
		v, err := q.Has(ctx)
		return v, nil, err
	case OpInsert:
		v, err := q.Insert(ctx)
		return v, nil, err
	case OpUpdate:
		v, err := q.Update(ctx)
		return v, nil, err
	case OpDelete:
		v, err := q.Delete(ctx)
		return v, nil, err
	}
	return nil, nil, fmt.Errorf("unknown op %q", op)
}

// traceValue flattens rows to plain maps so results can be compared and
// encoded canonically.
func traceValue(v any) any {
	switch val := v.(type) {
	case backend.Row:
		return val.Map()
	case []any:
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = traceValue(e)
		}
		return out
	}
	return v
}

func checkExpect(n int, exp *Expect, ev TraceEvent, result *Result) {
	if ev.Error != "" {
		switch {
		case exp == nil || exp.Error == "":
			result.AddError(n, "unexpected error: %s", ev.Error)
		case !strings.Contains(ev.Error, exp.Error):
			result.AddError(n, "expected error containing %q, got %q", exp.Error, ev.Error)
		}
		return
	}
	if exp == nil {
		return
	}
	if exp.Error != "" {
		result.AddError(n, "expected error containing %q, got none", exp.Error)
		return
	}

	if exp.Value != nil {
		if ok, err := sameValue(exp.Value, ev.Value); err != nil {
			result.AddError(n, "cannot compare value: %v", err)
		} else if !ok {
			result.AddError(n, "expected value %v, got %v", exp.Value, ev.Value)
		}
	}

	list, isList := ev.Value.([]any)
	if exp.Count != nil {
		if !isList {
			result.AddError(n, "count expected on a %s result", ev.Op)
		} else if len(list) != *exp.Count {
			result.AddError(n, "expected %d results, got %d", *exp.Count, len(list))
		}
	}

	if exp.HasMore != nil {
		if ev.HasMore == nil {
			result.AddError(n, "has_more expected on a %s result", ev.Op)
		} else if *ev.HasMore != *exp.HasMore {
			result.AddError(n, "expected has_more %t, got %t", *exp.HasMore, *ev.HasMore)
		}
	}

	if exp.Rows != nil {
		if !isList {
			if m, ok := ev.Value.(map[string]any); ok {
				list, isList = []any{m}, true
			}
		}
		checkRows(n, exp.Rows, list, isList, result)
	}
}

// checkRows matches each expected row as a subset of the actual row at
// the same position.
func checkRows(n int, want []map[string]any, got []any, isList bool, result *Result) {
	if !isList {
		result.AddError(n, "rows expected, got a scalar result")
		return
	}
	if len(want) != len(got) {
		result.AddError(n, "expected %d rows, got %d", len(want), len(got))
		return
	}
	for i, w := range want {
		row, ok := got[i].(map[string]any)
		if !ok {
			result.AddError(n, "row %d: expected a row, got %T", i, got[i])
			continue
		}
		for field, wv := range w {
			gv, present := row[field]
			if !present {
				result.AddError(n, "row %d: field %q not in result", i, field)
				continue
			}
			if ok, err := sameValue(wv, gv); err != nil {
				result.AddError(n, "row %d field %q: %v", i, field, err)
			} else if !ok {
				result.AddError(n, "row %d field %q: expected %v, got %v", i, field, wv, gv)
			}
		}
	}
}

// sameValue compares canonical encodings, so an int from YAML equals an
// int64 from the database.
func sameValue(want, got any) (bool, error) {
	w, err := fingerprint.MarshalCanonical(want)
	if err != nil {
		return false, err
	}
	g, err := fingerprint.MarshalCanonical(got)
	if err != nil {
		return false, err
	}
	return bytes.Equal(w, g), nil
}
