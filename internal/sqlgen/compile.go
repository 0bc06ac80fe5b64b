package sqlgen

import (
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/viggyfresh/prom/internal/criteria"
	"github.com/viggyfresh/prom/internal/schema"
)

// ErrNoAssignments is returned for writes without any field values.
var ErrNoAssignments = errors.New("no field values to write")

// datePartExpr maps date-part option keys to SQLite expressions. %s is the
// quoted column.
var datePartExpr = map[string]string{
	"day":        "CAST(strftime('%%d', %s) AS integer)",
	"hour":       "CAST(strftime('%%H', %s) AS integer)",
	"doy":        "CAST(strftime('%%j', %s) AS integer)",
	"julian_day": "strftime('%%J', %s)",
	"month":      "CAST(strftime('%%m', %s) AS integer)",
	"minute":     "CAST(strftime('%%M', %s) AS integer)",
	"dow":        "CAST(strftime('%%w', %s) AS integer)",
	"week":       "CAST(strftime('%%W', %s) AS integer)",
	"year":       "CAST(strftime('%%Y', %s) AS integer)",
}

var comparison = map[criteria.Verb]string{
	criteria.VerbIs:  "=",
	criteria.VerbNot: "!=",
	criteria.VerbLTE: "<=",
	criteria.VerbLT:  "<",
	criteria.VerbGTE: ">=",
	criteria.VerbGT:  ">",
}

// Compiler builds SQL statements for one schema at a time.
type Compiler struct {
	builder sq.StatementBuilderType
}

// New creates a Compiler using '?' placeholders.
func New() *Compiler {
	return &Compiler{builder: sq.StatementBuilder.PlaceholderFormat(sq.Question)}
}

// Select compiles a row fetch honouring the set's effective bounds.
func (c *Compiler) Select(s *schema.Schema, set *criteria.Set) (string, []any, error) {
	if err := criteria.Validate(set).Err(); err != nil {
		return "", nil, err
	}

	q := c.builder.Select(selectColumns(set)...).From(Quote(s.Table))

	preds, err := wherePredicates(set)
	if err != nil {
		return "", nil, fmt.Errorf("compile where: %w", err)
	}
	for _, p := range preds {
		q = q.Where(p)
	}

	limit, offset, _ := set.GetBounds()
	sorted := make(map[string]bool, len(set.Sort))
	for _, sc := range set.Sort {
		clause, args := orderClause(sc)
		q = q.OrderByClause(clause, args...)
		sorted[sc.Field] = true
	}
	if (limit > 0 || offset > 0) && !sorted[s.PrimaryKeyName()] {
		q = q.OrderBy(Quote(s.PrimaryKeyName()) + " ASC")
	}

	switch {
	case limit > 0:
		q = q.Limit(uint64(limit))
		if offset > 0 {
			q = q.Offset(uint64(offset))
		}
	case offset > 0:
		q = q.Suffix(fmt.Sprintf("LIMIT -1 OFFSET %d", offset))
	}

	return q.ToSql()
}

// Count compiles a COUNT(*) over the where criteria. Sort and bounds are
// ignored.
func (c *Compiler) Count(s *schema.Schema, set *criteria.Set) (string, []any, error) {
	if err := criteria.Validate(set).Err(); err != nil {
		return "", nil, err
	}
	q := c.builder.Select("COUNT(*)").From(Quote(s.Table))
	preds, err := wherePredicates(set)
	if err != nil {
		return "", nil, fmt.Errorf("compile where: %w", err)
	}
	for _, p := range preds {
		q = q.Where(p)
	}
	return q.ToSql()
}

// Insert compiles a single-row insert.
func (c *Compiler) Insert(s *schema.Schema, fields []criteria.FieldValue) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, ErrNoAssignments
	}
	cols := make([]string, len(fields))
	vals := make([]any, len(fields))
	for i, f := range fields {
		cols[i] = Quote(f.Name)
		vals[i] = f.Value
	}
	return c.builder.Insert(Quote(s.Table)).Columns(cols...).Values(vals...).ToSql()
}

// Update compiles an update of fields over the rows matching set.
func (c *Compiler) Update(s *schema.Schema, fields []criteria.FieldValue, set *criteria.Set) (string, []any, error) {
	if len(fields) == 0 {
		return "", nil, ErrNoAssignments
	}
	if err := criteria.Validate(set).Err(); err != nil {
		return "", nil, err
	}
	q := c.builder.Update(Quote(s.Table))
	for _, f := range fields {
		q = q.Set(Quote(f.Name), f.Value)
	}
	preds, err := wherePredicates(set)
	if err != nil {
		return "", nil, fmt.Errorf("compile where: %w", err)
	}
	for _, p := range preds {
		q = q.Where(p)
	}
	return q.ToSql()
}

// Delete compiles a delete of the rows matching set.
func (c *Compiler) Delete(s *schema.Schema, set *criteria.Set) (string, []any, error) {
	if err := criteria.Validate(set).Err(); err != nil {
		return "", nil, err
	}
	q := c.builder.Delete(Quote(s.Table))
	preds, err := wherePredicates(set)
	if err != nil {
		return "", nil, fmt.Errorf("compile where: %w", err)
	}
	for _, p := range preds {
		q = q.Where(p)
	}
	return q.ToSql()
}

// Quote double-quotes an identifier.
func Quote(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func selectColumns(set *criteria.Set) []string {
	if len(set.Fields) == 0 {
		return []string{"*"}
	}
	seen := make(map[string]bool, len(set.Fields))
	cols := make([]string, 0, len(set.Fields))
	for _, f := range set.Fields {
		if seen[f.Name] {
			continue
		}
		seen[f.Name] = true
		cols = append(cols, Quote(f.Name))
	}
	return cols
}

func wherePredicates(set *criteria.Set) ([]sq.Sqlizer, error) {
	var preds []sq.Sqlizer
	for _, c := range set.Where {
		p, err := criterionPredicates(c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p...)
	}
	return preds, nil
}

func criterionPredicates(c criteria.Criterion) ([]sq.Sqlizer, error) {
	col := Quote(c.Field)
	var preds []sq.Sqlizer

	for _, k := range sortedKeys(c.Options) {
		tmpl, ok := datePartExpr[k]
		if !ok {
			return nil, fmt.Errorf("field %s: unsupported option %q", c.Field, k)
		}
		p, err := compare(c.Verb, fmt.Sprintf(tmpl, col), c.Options[k])
		if err != nil {
			return nil, fmt.Errorf("field %s option %s: %w", c.Field, k, err)
		}
		preds = append(preds, p)
	}

	if c.Verb.IsList() {
		if len(c.Values) > 0 {
			p, err := compare(c.Verb, col, c.Values)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", c.Field, err)
			}
			preds = append(preds, p)
		}
		return preds, nil
	}

	if len(c.Options) > 0 && criteria.IsUnset(c.Value) {
		return preds, nil
	}
	p, err := compare(c.Verb, col, c.Value)
	if err != nil {
		return nil, fmt.Errorf("field %s: %w", c.Field, err)
	}
	return append(preds, p), nil
}

// compare builds one predicate of expr against value.
func compare(verb criteria.Verb, expr string, value any) (sq.Sqlizer, error) {
	switch verb {
	case criteria.VerbIn, criteria.VerbNotIn:
		list, ok := value.([]any)
		if !ok {
			list = []any{value}
		}
		if verb == criteria.VerbIn {
			return sq.Eq{expr: list}, nil
		}
		return sq.NotEq{expr: list}, nil
	}

	op, ok := comparison[verb]
	if !ok {
		return nil, fmt.Errorf("unsupported verb %q", verb)
	}
	if value == nil || criteria.IsUnset(value) {
		switch verb {
		case criteria.VerbIs:
			return sq.Expr(expr + " IS NULL"), nil
		case criteria.VerbNot:
			return sq.Expr(expr + " IS NOT NULL"), nil
		}
		return nil, fmt.Errorf("%s needs a value", verb)
	}
	return sq.Expr(fmt.Sprintf("%s %s ?", expr, op), value), nil
}

// orderClause renders one ORDER BY term. An explicit order becomes a CASE
// ranking; descending reverses the list and still ranks ascending.
func orderClause(sc criteria.SortCriterion) (string, []any) {
	col := Quote(sc.Field)
	if len(sc.Order) == 0 {
		return fmt.Sprintf("%s %s", col, sc.Direction), nil
	}

	vals := append([]any(nil), sc.Order...)
	if sc.Direction < 0 {
		for i, j := 0, len(vals)-1; i < j; i, j = i+1, j-1 {
			vals[i], vals[j] = vals[j], vals[i]
		}
	}

	var b strings.Builder
	b.WriteString("CASE ")
	b.WriteString(col)
	for i := range vals {
		fmt.Fprintf(&b, " WHEN ? THEN %d", i)
	}
	fmt.Fprintf(&b, " ELSE %d END", len(vals))
	return b.String(), vals
}
