package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/viggyfresh/prom/internal/query"
	"github.com/viggyfresh/prom/internal/schema"
)

// nullLiteral stands for a NULL value on the command line.
const nullLiteral = "null"

// filterOptions holds the criteria flags shared by read and write commands.
type filterOptions struct {
	Where  []string
	Sort   []string
	Select []string
	Limit  int
	Offset int
	Page   int
}

// register adds --where always, and the read-only flags when reads is set.
func (f *filterOptions) register(flags *pflag.FlagSet, reads bool) {
	flags.StringArrayVarP(&f.Where, "where", "w", nil,
		"criterion as <verb>_<field>[=<value>], e.g. gt_age=3, in_species=dog,cat, is_owner (repeatable)")
	if !reads {
		return
	}
	flags.StringArrayVar(&f.Sort, "sort", nil, "sort by field; prefix - for descending, suffix :a,b,c for an explicit order (repeatable)")
	flags.StringSliceVar(&f.Select, "select", nil, "fields to return")
	flags.IntVar(&f.Limit, "limit", 0, "maximum rows to return")
	flags.IntVar(&f.Offset, "offset", 0, "rows to skip")
	flags.IntVar(&f.Page, "page", 0, "1-based page of --limit rows (overrides --offset)")
}

// apply adds every parsed criterion to q and returns the first builder
// error.
func (f *filterOptions) apply(q *query.Query) error {
	s := q.Schema()
	for _, expr := range f.Where {
		if err := applyWhere(q, s, expr); err != nil {
			return err
		}
	}
	for _, expr := range f.Sort {
		if err := applySort(q, s, expr); err != nil {
			return err
		}
	}
	if len(f.Select) > 0 {
		q.Select(f.Select...)
	}
	if f.Limit > 0 {
		q.SetLimit(f.Limit)
	}
	if f.Offset > 0 {
		q.SetOffset(f.Offset)
	}
	if f.Page > 0 {
		q.SetPage(f.Page)
	}
	return q.Err()
}

// applyWhere routes "<verb>_<field>[=<value>]" through the method registry.
// Values are converted to the field's type; list verbs split on commas.
func applyWhere(q *query.Query, s *schema.Schema, expr string) error {
	method, raw, hasValue := strings.Cut(expr, "=")
	verb, field, ok := query.ParseMethod(method)
	if !ok {
		return q.Call(method).Err()
	}

	var args []any
	switch {
	case !hasValue:
	case verb == "in" || verb == "nin":
		list, err := coerceList(s, field, raw)
		if err != nil {
			return err
		}
		args = []any{list}
	case verb == "between":
		parts := strings.Split(raw, ",")
		if len(parts) != 2 {
			return fmt.Errorf("between_%s needs low,high, got %q", field, raw)
		}
		for _, p := range parts {
			v, err := coerce(s, field, p)
			if err != nil {
				return err
			}
			args = append(args, v)
		}
	default:
		v, err := coerce(s, field, raw)
		if err != nil {
			return err
		}
		args = []any{v}
	}
	return q.Call(method, args...).Err()
}

// applySort parses "[-]field[:v1,v2,...]".
func applySort(q *query.Query, s *schema.Schema, expr string) error {
	field, order, hasOrder := strings.Cut(expr, ":")
	desc := strings.HasPrefix(field, "-")
	field = strings.TrimPrefix(field, "-")
	if field == "" {
		return fmt.Errorf("empty sort field in %q", expr)
	}

	var values []any
	if hasOrder {
		list, err := coerceList(s, field, order)
		if err != nil {
			return err
		}
		values = list
	}
	if desc {
		q.Desc(field, values...)
	} else {
		q.Asc(field, values...)
	}
	return q.Err()
}

// parseAssignments parses repeated name=value pairs for insert and update.
func parseAssignments(s *schema.Schema, pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected name=value, got %q", pair)
		}
		v, err := coerce(s, name, raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

func coerceList(s *schema.Schema, field, raw string) ([]any, error) {
	if raw == "" {
		return []any{}, nil
	}
	parts := strings.Split(raw, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		v, err := coerce(s, field, p)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// coerce converts command-line text to the Go type of field. Unknown
// fields keep the text.
func coerce(s *schema.Schema, field, raw string) (any, error) {
	if raw == nullLiteral {
		return nil, nil
	}
	f, ok := s.Field(s.FieldName(field))
	if !ok {
		return raw, nil
	}

	var (
		v   any
		err error
	)
	switch f.Type {
	case schema.TypeBool:
		v, err = strconv.ParseBool(raw)
	case schema.TypeInt, schema.TypeBigInt:
		v, err = strconv.ParseInt(raw, 10, 64)
	case schema.TypeFloat, schema.TypeDecimal:
		v, err = strconv.ParseFloat(raw, 64)
	case schema.TypeDatetime:
		v, err = parseTime(raw, time.RFC3339Nano, time.DateTime, time.DateOnly)
	case schema.TypeDate:
		v, err = parseTime(raw, time.DateOnly)
	default:
		return raw, nil
	}
	if err != nil {
		return nil, fmt.Errorf("field %s: cannot use %q as %s", f.Name, raw, f.Type)
	}
	return v, nil
}

func parseTime(raw string, layouts ...string) (time.Time, error) {
	var err error
	for _, layout := range layouts {
		var t time.Time
		if t, err = time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
