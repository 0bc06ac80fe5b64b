package query

import (
	"fmt"
	"sort"
	"strings"

	"github.com/viggyfresh/prom/internal/criteria"
)

// verbFunc applies one registry entry. field is already canonical.
type verbFunc func(q *Query, field string, args []any) error

// registry maps the verb token of a "<verb>_<field>" method name to its
// handler. It is fixed at init.
var registry = map[string]verbFunc{
	"is":      comparisonVerb(criteria.VerbIs),
	"not":     comparisonVerb(criteria.VerbNot),
	"lte":     comparisonVerb(criteria.VerbLTE),
	"lt":      comparisonVerb(criteria.VerbLT),
	"gte":     comparisonVerb(criteria.VerbGTE),
	"gt":      comparisonVerb(criteria.VerbGT),
	"in":      listVerb(criteria.VerbIn),
	"nin":     listVerb(criteria.VerbNotIn),
	"between": betweenVerb,
	"asc":     sortVerb(criteria.Ascending),
	"desc":    sortVerb(criteria.Descending),
	"sort":    sortWithDirection,
	"select":  selectVerb,
	"set":     setVerb,
}

// Methods returns the verb tokens Call understands, sorted.
func Methods() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ParseMethod splits "<verb>_<field>" at the first underscore. ok is false
// when the verb is not registered or the field is missing.
func ParseMethod(method string) (verb, field string, ok bool) {
	verb, field, found := strings.Cut(method, "_")
	if !found || field == "" {
		return "", "", false
	}
	if _, known := registry[verb]; !known {
		return "", "", false
	}
	return verb, field, true
}

// Call applies a method named "<verb>_<field>", for example
// Call("gt_age", 21), Call("in_id", []int{1, 2}) or Call("desc_created").
//
// Argument shapes by verb:
//
//	is, not, lte, lt, gte, gt   [value] [options map[string]any]
//	in, nin                     values... [options map[string]any]
//	between                     low high
//	asc, desc                   [order...]
//	sort                        direction [order...]
//	select                      (none)
//	set                         value
func (q *Query) Call(method string, args ...any) *Query {
	verb, field, ok := ParseMethod(method)
	if !ok {
		return q.fail(&Error{Code: ErrCodeUnknownMethod, Message: "no such query method", Method: method})
	}
	if err := registry[verb](q, field, args); err != nil {
		return q.fail(&Error{Code: ErrCodeInvalidArgument, Message: err.Error(), Method: method})
	}
	return q
}

// splitOptions removes a trailing options map from args.
func splitOptions(args []any) ([]any, map[string]any) {
	if n := len(args); n > 0 {
		if opts, ok := args[n-1].(map[string]any); ok {
			return args[:n-1], opts
		}
	}
	return args, nil
}

func comparisonVerb(verb criteria.Verb) verbFunc {
	return func(q *Query, field string, args []any) error {
		args, opts := splitOptions(args)
		switch len(args) {
		case 0:
			q.Where(verb, field, criteria.Unset, opts)
		case 1:
			q.Where(verb, field, args[0], opts)
		default:
			return fmt.Errorf("%s takes at most one value, got %d", verb, len(args))
		}
		return nil
	}
}

func listVerb(verb criteria.Verb) verbFunc {
	return func(q *Query, field string, args []any) error {
		args, opts := splitOptions(args)
		var values any = criteria.Unset
		switch len(args) {
		case 0:
			if len(opts) == 0 {
				return fmt.Errorf("%s needs values or options", verb)
			}
		case 1:
			values = args[0]
		default:
			values = args
		}
		q.Where(verb, field, values, opts)
		return nil
	}
}

func betweenVerb(q *Query, field string, args []any) error {
	if len(args) != 2 {
		return fmt.Errorf("between takes a low and a high value, got %d values", len(args))
	}
	q.Between(field, args[0], args[1])
	return nil
}

func sortVerb(direction criteria.Direction) verbFunc {
	return func(q *Query, field string, args []any) error {
		q.Sort(field, direction, args...)
		return nil
	}
}

func sortWithDirection(q *Query, field string, args []any) error {
	if len(args) == 0 {
		return fmt.Errorf("sort needs a direction")
	}
	var dir criteria.Direction
	switch d := args[0].(type) {
	case criteria.Direction:
		dir = d
	case int:
		dir = criteria.Direction(d)
	case int64:
		dir = criteria.Direction(d)
	default:
		return fmt.Errorf("sort direction must be an integer, got %T", args[0])
	}
	q.Sort(field, dir, args[1:]...)
	return nil
}

func selectVerb(q *Query, field string, args []any) error {
	if len(args) != 0 {
		return fmt.Errorf("select takes no values, got %d", len(args))
	}
	q.Select(field)
	return nil
}

func setVerb(q *Query, field string, args []any) error {
	if len(args) != 1 {
		return fmt.Errorf("set takes exactly one value, got %d", len(args))
	}
	q.SetField(field, args[0])
	return nil
}
