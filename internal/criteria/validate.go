package criteria

import "fmt"

// ValidationResult lists every problem found in a Set.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	Problems []string
}

// Err returns the first problem as an error, or nil.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid criteria: %s", r.Problems[0])
}

// Validate checks a Set for states the builder should never produce.
// Backends call it before compiling so hand-built sets fail early.
//
// Validate is a pure function with no side effects.
func Validate(s *Set) ValidationResult {
	v := &validator{problems: []string{}}
	if s == nil {
		v.add("nil criteria set")
	} else {
		for _, c := range s.Where {
			v.validateCriterion(c)
		}
		for _, sc := range s.Sort {
			v.validateSort(sc)
		}
		v.validateBounds(s.Bounds)
	}
	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

type validator struct {
	problems []string
}

func (v *validator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateCriterion(c Criterion) {
	if !c.Verb.Valid() {
		v.add("unknown verb %q on field %q", c.Verb, c.Field)
		return
	}
	if c.Field == "" {
		v.add("%s criterion without a field", c.Verb)
	}
	if c.Verb.IsList() {
		if len(c.Values) == 0 && len(c.Options) == 0 {
			v.add("%s on field %q needs values or options", c.Verb, c.Field)
		}
		for k, opt := range c.Options {
			list, ok := opt.([]any)
			if !ok || len(list) == 0 {
				v.add("%s option %q on field %q needs a non-empty list", c.Verb, k, c.Field)
			}
		}
		return
	}
	if c.Verb.IsOrdering() && len(c.Options) == 0 && (c.Value == nil || IsUnset(c.Value)) {
		v.add("%s on field %q needs a value", c.Verb, c.Field)
	}
}

func (v *validator) validateSort(sc SortCriterion) {
	if !sc.Direction.Valid() {
		v.add("sort on field %q has zero direction", sc.Field)
	}
	if sc.Field == "" {
		v.add("sort criterion without a field")
	}
}

func (v *validator) validateBounds(b Bounds) {
	if b.Limit < 0 || b.Offset < 0 || b.Page < 0 {
		v.add("negative bounds %+v", b)
	}
}
