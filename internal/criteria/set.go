package criteria

// Set is the full accumulated state of a query.
//
// The zero value is not executable; use NewSet.
type Set struct {
	// Fields is the ordered selected-fields multi-map. Duplicates are kept.
	Fields []FieldValue

	// Where is ANDed together by backends, in insertion order.
	Where []Criterion

	// Sort is applied in insertion order.
	Sort []SortCriterion

	Bounds Bounds

	empty bool
	init  bool
}

// NewSet returns an executable, empty Set.
func NewSet() *Set {
	return &Set{init: true}
}

// CanExecute reports whether the set could match any row.
// It is false once an in/nin criterion with an empty value list was added.
func (s *Set) CanExecute() bool {
	return s.init && !s.empty
}

// MarkEmpty records that the set can match nothing.
func (s *Set) MarkEmpty() {
	s.empty = true
}

// AddField appends a selected field.
func (s *Set) AddField(name string, value any) {
	s.Fields = append(s.Fields, FieldValue{Name: name, Value: value})
}

// AddWhere appends a criterion.
func (s *Set) AddWhere(c Criterion) {
	s.Where = append(s.Where, c)
}

// AddSort appends a sort criterion.
func (s *Set) AddSort(sc SortCriterion) {
	s.Sort = append(s.Sort, sc)
}

// SetLimit sets the row limit; 0 is unbounded.
func (s *Set) SetLimit(limit int) {
	if limit < 0 {
		limit = 0
	}
	s.Bounds.Limit = limit
}

// SetOffset sets an explicit offset and clears the page.
func (s *Set) SetOffset(offset int) {
	if offset < 0 {
		offset = 0
	}
	s.Bounds.Offset = offset
	s.Bounds.Page = 0
}

// SetPage sets a 1-based page and clears the explicit offset.
func (s *Set) SetPage(page int) {
	if page < 0 {
		page = 0
	}
	s.Bounds.Page = page
	s.Bounds.Offset = 0
}

// WithWindow returns a clone reading limit rows from an explicit offset.
// The page, if any, is folded into the offset.
func (s *Set) WithWindow(limit, offset int) *Set {
	c := s.Clone()
	c.SetLimit(limit)
	c.SetOffset(offset)
	return c
}

// ClearBounds removes limit, offset and page.
func (s *Set) ClearBounds() {
	s.Bounds = Bounds{}
}

// ClearSort removes every sort criterion.
func (s *Set) ClearSort() {
	s.Sort = nil
}

// GetBounds returns the effective limit, offset and probe limit.
func (s *Set) GetBounds() (limit, offset, probe int) {
	limit, offset = s.Bounds.Effective()
	return limit, offset, s.Bounds.Probe()
}

// FieldNames returns the selected field names in order.
func (s *Set) FieldNames() []string {
	names := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		names = append(names, f.Name)
	}
	return names
}

// Assignments collapses the multi-map for writes: order of first
// appearance is kept and the last value for a name wins.
func (s *Set) Assignments() []FieldValue {
	index := make(map[string]int, len(s.Fields))
	out := make([]FieldValue, 0, len(s.Fields))
	for _, f := range s.Fields {
		if IsUnset(f.Value) {
			continue
		}
		if i, ok := index[f.Name]; ok {
			out[i].Value = f.Value
			continue
		}
		index[f.Name] = len(out)
		out = append(out, f)
	}
	return out
}

// Clone returns a deep copy. Values stored in criteria are copied by
// reference; the slices and maps holding them are not shared.
func (s *Set) Clone() *Set {
	out := &Set{
		Bounds: s.Bounds,
		empty:  s.empty,
		init:   s.init,
	}
	if s.Fields != nil {
		out.Fields = append([]FieldValue(nil), s.Fields...)
	}
	if s.Where != nil {
		out.Where = make([]Criterion, len(s.Where))
		for i, c := range s.Where {
			out.Where[i] = c.Clone()
		}
	}
	if s.Sort != nil {
		out.Sort = make([]SortCriterion, len(s.Sort))
		for i, sc := range s.Sort {
			out.Sort[i] = sc.Clone()
		}
	}
	return out
}
