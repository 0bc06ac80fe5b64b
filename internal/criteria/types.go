package criteria

import "fmt"

// Verb is a where-criterion comparison.
type Verb string

const (
	VerbIs    Verb = "is"
	VerbNot   Verb = "not"
	VerbLTE   Verb = "lte"
	VerbLT    Verb = "lt"
	VerbGTE   Verb = "gte"
	VerbGT    Verb = "gt"
	VerbIn    Verb = "in"
	VerbNotIn Verb = "nin"
)

// Verbs lists every supported verb in a stable order.
var Verbs = []Verb{VerbIs, VerbNot, VerbLTE, VerbLT, VerbGTE, VerbGT, VerbIn, VerbNotIn}

// Valid reports whether v is a known verb.
func (v Verb) Valid() bool {
	switch v {
	case VerbIs, VerbNot, VerbLTE, VerbLT, VerbGTE, VerbGT, VerbIn, VerbNotIn:
		return true
	}
	return false
}

// IsList reports whether v compares against a list of values.
func (v Verb) IsList() bool {
	return v == VerbIn || v == VerbNotIn
}

// IsOrdering reports whether v is one of the ordering comparisons.
func (v Verb) IsOrdering() bool {
	switch v {
	case VerbLTE, VerbLT, VerbGTE, VerbGT:
		return true
	}
	return false
}

// UnsetValue is the type of Unset.
type UnsetValue struct{}

func (UnsetValue) String() string { return "<unset>" }

// Unset is the value of a comparison made without a value.
// Backends render is/not against Unset as a NULL check.
var Unset = UnsetValue{}

// IsUnset reports whether v is the Unset sentinel.
func IsUnset(v any) bool {
	_, ok := v.(UnsetValue)
	return ok
}

// FieldValue is one entry of the selected-fields multi-map.
// Value is Unset for a plain selection and set for insert/update values.
type FieldValue struct {
	Name  string
	Value any
}

// Criterion is a single where condition.
//
// Comparison verbs use Value. List verbs (in, nin) use Values; Value is
// left Unset for them. Options are backend specific and copied verbatim;
// for list verbs every option value is a non-empty []any.
type Criterion struct {
	Verb    Verb
	Field   string
	Value   any
	Values  []any
	Options map[string]any
}

// Clone returns a copy that shares no slices or maps with c.
func (c Criterion) Clone() Criterion {
	out := c
	if c.Values != nil {
		out.Values = append([]any(nil), c.Values...)
	}
	if c.Options != nil {
		out.Options = make(map[string]any, len(c.Options))
		for k, v := range c.Options {
			if list, ok := v.([]any); ok {
				v = append([]any(nil), list...)
			}
			out.Options[k] = v
		}
	}
	return out
}

func (c Criterion) String() string {
	if c.Verb.IsList() {
		return fmt.Sprintf("%s %s %v", c.Field, c.Verb, c.Values)
	}
	return fmt.Sprintf("%s %s %v", c.Field, c.Verb, c.Value)
}

// Direction is a sort direction. Only Ascending and Descending are valid.
type Direction int

const (
	Ascending  Direction = 1
	Descending Direction = -1
)

// Valid reports whether d is non-zero.
func (d Direction) Valid() bool {
	return d != 0
}

func (d Direction) String() string {
	switch {
	case d > 0:
		return "ASC"
	case d < 0:
		return "DESC"
	}
	return "INVALID"
}

// SortCriterion orders results by one field.
//
// When Order is non-empty the field is sorted by position in that list
// instead of by natural order: ascending keeps the list sequence and
// descending reverses it.
type SortCriterion struct {
	Direction Direction
	Field     string
	Order     []any
}

// Clone returns a copy that does not share Order with s.
func (s SortCriterion) Clone() SortCriterion {
	out := s
	if s.Order != nil {
		out.Order = append([]any(nil), s.Order...)
	}
	return out
}

// Bounds holds paging state. Offset and Page are mutually exclusive: setting
// one clears the other (see Set.SetOffset and Set.SetPage).
type Bounds struct {
	Limit  int
	Offset int
	Page   int
}

// Effective returns the limit and offset a backend should apply.
func (b Bounds) Effective() (limit, offset int) {
	limit = b.Limit
	offset = b.Offset
	if b.Page > 0 {
		offset = (b.Page - 1) * limit
	}
	return limit, offset
}

// Probe returns limit+1 for bounded queries and 0 otherwise.
func (b Bounds) Probe() int {
	if b.Limit > 0 {
		return b.Limit + 1
	}
	return 0
}

// IsZero reports whether no bound has been set.
func (b Bounds) IsZero() bool {
	return b.Limit == 0 && b.Offset == 0 && b.Page == 0
}
