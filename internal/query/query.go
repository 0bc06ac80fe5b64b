package query

import (
	"fmt"
	"log/slog"
	"reflect"
	"sort"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/criteria"
	"github.com/viggyfresh/prom/internal/schema"
)

// DefaultChunkSize is the chunk size All uses when no limit is set.
const DefaultChunkSize = 5000

// Query builds and runs queries against one schema.
//
// A Query is not safe for concurrent use. Clone gives an independent copy
// that shares the schema, adapter, executor chain and factory.
type Query struct {
	schema    *schema.Schema
	adapter   backend.Adapter
	exec      Executor
	factory   Factory
	logger    *slog.Logger
	chunkSize int

	set *criteria.Set
	err error
}

// Option configures a Query.
type Option func(*options)

type options struct {
	middleware []Middleware
	factory    Factory
	logger     *slog.Logger
	chunkSize  int
}

// WithMiddleware wraps the executor chain. The first middleware given is
// the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *options) { o.middleware = append(o.middleware, mw...) }
}

// WithFactory sets the function rows are materialized through.
func WithFactory(f Factory) Option {
	return func(o *options) { o.factory = f }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithChunkSize sets the chunk size All uses when no limit is set.
func WithChunkSize(n int) Option {
	return func(o *options) { o.chunkSize = n }
}

// New creates an empty query for s backed by adapter.
func New(s *schema.Schema, adapter backend.Adapter, opts ...Option) *Query {
	o := options{chunkSize: DefaultChunkSize}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	if o.chunkSize <= 0 {
		o.chunkSize = DefaultChunkSize
	}
	logger := o.logger.With("component", "query", "table", s.Table)

	var exec Executor = &direct{adapter: adapter, logger: logger}
	for i := len(o.middleware) - 1; i >= 0; i-- {
		exec = o.middleware[i](exec)
	}

	return &Query{
		schema:    s,
		adapter:   adapter,
		exec:      exec,
		factory:   o.factory,
		logger:    logger,
		chunkSize: o.chunkSize,
		set:       criteria.NewSet(),
	}
}

// Clone returns an independent copy of the accumulated state.
func (q *Query) Clone() *Query {
	c := *q
	c.set = q.set.Clone()
	return &c
}

// Err returns the first error recorded while building, if any.
func (q *Query) Err() error {
	return q.err
}

// Schema returns the schema the query runs against.
func (q *Query) Schema() *schema.Schema {
	return q.schema
}

// Criteria returns the accumulated criteria. Callers must not modify it.
func (q *Query) Criteria() *criteria.Set {
	return q.set
}

func (q *Query) fail(err error) *Query {
	if q.err == nil {
		q.err = err
	}
	return q
}

func (q *Query) field(name string) string {
	return q.schema.FieldName(name)
}

// Select adds fields to the selection.
func (q *Query) Select(fields ...string) *Query {
	for _, f := range fields {
		q.set.AddField(q.field(f), criteria.Unset)
	}
	return q
}

// SetField adds a field with a value, used by Insert and Update.
func (q *Query) SetField(name string, value any) *Query {
	q.set.AddField(q.field(name), value)
	return q
}

// SetFields adds every entry of fields, in sorted key order.
func (q *Query) SetFields(fields map[string]any) *Query {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		q.SetField(k, fields[k])
	}
	return q
}

// Where adds a criterion. It is the full form behind Is, Not, Lt, In and
// friends: value may be criteria.Unset, and options are passed to the
// adapter. For in/nin, value is normalized into a list and every option must
// map to a non-empty list. An in/nin with neither values nor options makes
// the query match nothing.
func (q *Query) Where(verb criteria.Verb, field string, value any, options map[string]any) *Query {
	name := q.field(field)
	if !verb.Valid() {
		return q.fail(&Error{Code: ErrCodeUnknownMethod, Message: fmt.Sprintf("unknown verb %q", verb), Field: name})
	}

	c := criteria.Criterion{Verb: verb, Field: name, Value: value}
	if len(options) > 0 {
		c.Options = make(map[string]any, len(options))
	}

	if !verb.IsList() {
		for k, v := range options {
			c.Options[k] = v
		}
		q.set.AddWhere(c)
		return q
	}

	for k, v := range options {
		list := normalizeList(v)
		if len(list) == 0 {
			return q.fail(&Error{Code: ErrCodeEmptyOption, Message: fmt.Sprintf("option %q of %s needs at least one value", k, verb), Field: name})
		}
		c.Options[k] = list
	}
	c.Value = criteria.Unset
	if !criteria.IsUnset(value) {
		c.Values = normalizeList(value)
	}
	if len(c.Values) == 0 && len(c.Options) == 0 {
		q.logger.Debug("no values or options, query can never match", "verb", verb, "field", name)
		q.set.MarkEmpty()
	}
	q.set.AddWhere(c)
	return q
}

// Is adds field = value. criteria.Unset or nil tests for NULL.
func (q *Query) Is(field string, value any) *Query {
	return q.Where(criteria.VerbIs, field, value, nil)
}

// Not adds field != value. criteria.Unset or nil tests for NOT NULL.
func (q *Query) Not(field string, value any) *Query {
	return q.Where(criteria.VerbNot, field, value, nil)
}

// IsNull adds field IS NULL.
func (q *Query) IsNull(field string) *Query {
	return q.Is(field, criteria.Unset)
}

// NotNull adds field IS NOT NULL.
func (q *Query) NotNull(field string) *Query {
	return q.Not(field, criteria.Unset)
}

// Lte adds field <= value.
func (q *Query) Lte(field string, value any) *Query {
	return q.Where(criteria.VerbLTE, field, value, nil)
}

// Lt adds field < value.
func (q *Query) Lt(field string, value any) *Query {
	return q.Where(criteria.VerbLT, field, value, nil)
}

// Gte adds field >= value.
func (q *Query) Gte(field string, value any) *Query {
	return q.Where(criteria.VerbGTE, field, value, nil)
}

// Gt adds field > value.
func (q *Query) Gt(field string, value any) *Query {
	return q.Where(criteria.VerbGT, field, value, nil)
}

// In adds a membership test. values may be a slice, an array or a single
// value; duplicates are dropped.
func (q *Query) In(field string, values any) *Query {
	return q.Where(criteria.VerbIn, field, values, nil)
}

// NotIn adds a negated membership test.
func (q *Query) NotIn(field string, values any) *Query {
	return q.Where(criteria.VerbNotIn, field, values, nil)
}

// Between adds low <= field <= high.
func (q *Query) Between(field string, low, high any) *Query {
	return q.Gte(field, low).Lte(field, high)
}

// Sort orders by field. order, when given, ranks rows by the position of
// the field's value in that list.
func (q *Query) Sort(field string, direction criteria.Direction, order ...any) *Query {
	name := q.field(field)
	if !direction.Valid() {
		return q.fail(&Error{Code: ErrCodeInvalidDirection, Message: "sort direction must be positive or negative", Field: name})
	}
	if direction > 0 {
		direction = criteria.Ascending
	} else {
		direction = criteria.Descending
	}
	if len(order) == 1 {
		order = normalizeList(order[0])
	}
	q.set.AddSort(criteria.SortCriterion{Direction: direction, Field: name, Order: order})
	return q
}

// Asc sorts ascending by field.
func (q *Query) Asc(field string, order ...any) *Query {
	return q.Sort(field, criteria.Ascending, order...)
}

// Desc sorts descending by field.
func (q *Query) Desc(field string, order ...any) *Query {
	return q.Sort(field, criteria.Descending, order...)
}

// SetLimit caps the rows returned; 0 is unbounded.
func (q *Query) SetLimit(limit int) *Query {
	q.set.SetLimit(limit)
	return q
}

// SetOffset skips rows and clears any page.
func (q *Query) SetOffset(offset int) *Query {
	q.set.SetOffset(offset)
	return q
}

// SetPage selects a 1-based page of SetLimit rows and clears any offset.
func (q *Query) SetPage(page int) *Query {
	q.set.SetPage(page)
	return q
}

// Bounds returns the effective limit, offset and has-more probe limit.
func (q *Query) Bounds() (limit, offset, probe int) {
	return q.set.GetBounds()
}

// normalizeList flattens slices and arrays into []any, wraps anything else,
// and drops repeated comparable values keeping the first occurrence. Strings
// and []byte are single values. nil is an empty list.
func normalizeList(v any) []any {
	if v == nil {
		return []any{}
	}
	var items []any
	switch val := v.(type) {
	case []any:
		items = val
	case string, []byte:
		items = []any{val}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			items = make([]any, rv.Len())
			for i := range items {
				items[i] = rv.Index(i).Interface()
			}
		} else {
			items = []any{v}
		}
	}

	out := make([]any, 0, len(items))
	seen := make(map[any]bool, len(items))
	for _, item := range items {
		if item != nil && reflect.TypeOf(item).Comparable() {
			if seen[item] {
				continue
			}
			seen[item] = true
		}
		out = append(out, item)
	}
	return out
}
