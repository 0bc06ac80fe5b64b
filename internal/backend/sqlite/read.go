package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/criteria"
	"github.com/viggyfresh/prom/internal/schema"
)

// timeLayouts are tried in order when a date column comes back as text.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC3339Nano,
}

// Query runs a get, get_one or count.
func (d *DB) Query(ctx context.Context, op backend.Operation, s *schema.Schema, set *criteria.Set) (backend.Result, error) {
	switch op {
	case backend.OpCount:
		query, args, err := d.compiler.Count(s, set)
		if err != nil {
			return backend.Result{}, err
		}
		var n int64
		if err := d.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
			return backend.Result{}, classify(s, fmt.Errorf("count %s: %w", s.Table, err))
		}
		return backend.Result{Count: n}, nil

	case backend.OpGet, backend.OpGetOne:
		if op == backend.OpGetOne {
			_, offset, _ := set.GetBounds()
			set = set.WithWindow(1, offset)
		}
		query, args, err := d.compiler.Select(s, set)
		if err != nil {
			return backend.Result{}, err
		}
		d.logger.Debug("query", "table", s.Table, "op", op, "sql", query)
		rows, err := d.queryRows(ctx, s, query, args...)
		if err != nil {
			return backend.Result{}, classify(s, fmt.Errorf("%s %s: %w", op, s.Table, err))
		}
		return backend.Result{Rows: rows}, nil

	default:
		return backend.Result{}, fmt.Errorf("sqlite: unsupported read operation %q", op)
	}
}

// Raw runs a hand-written query. Values are returned as the driver gives
// them, with text normalized to strings.
func (d *DB) Raw(ctx context.Context, query string, args ...any) ([]backend.Row, error) {
	rows, err := d.queryRows(ctx, nil, query, args...)
	if err != nil {
		return nil, fmt.Errorf("raw query: %w", err)
	}
	return rows, nil
}

func (d *DB) queryRows(ctx context.Context, s *schema.Schema, query string, args ...any) ([]backend.Row, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	out := []backend.Row{}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for i, c := range cols {
			vals[i] = adapt(s, c, vals[i])
		}
		out = append(out, backend.NewRow(cols, vals))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}

// adapt converts a scanned driver value to the Go type the schema field
// declares.
func adapt(s *schema.Schema, col string, v any) any {
	if b, ok := v.([]byte); ok {
		if s != nil {
			if f, ok := s.Field(col); ok && f.Type == schema.TypeBytes {
				return append([]byte(nil), b...)
			}
		}
		v = string(b)
	}
	if s == nil || v == nil {
		return v
	}
	f, ok := s.Field(col)
	if !ok {
		return v
	}

	switch f.Type {
	case schema.TypeBool:
		switch n := v.(type) {
		case int64:
			return n != 0
		case string:
			return n == "1" || strings.EqualFold(n, "true")
		}
	case schema.TypeDatetime, schema.TypeDate:
		if str, ok := v.(string); ok {
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, str); err == nil {
					return t
				}
			}
		}
	case schema.TypeFloat, schema.TypeDecimal:
		if n, ok := v.(int64); ok {
			return float64(n)
		}
	}
	return v
}
