package query

import (
	"context"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/criteria"
)

func (q *Query) request(set *criteria.Set) Request {
	return Request{Schema: q.schema, Set: set}
}

func (q *Query) execute(ctx context.Context, op backend.Operation, req Request) (backend.Result, error) {
	if q.err != nil {
		return backend.Result{}, q.err
	}
	q.logger.Debug("execute", "op", op)
	return q.exec.Execute(ctx, op, req)
}

func (q *Query) materializer() materializer {
	return materializer{fields: q.set.FieldNames(), factory: q.factory}
}

// Get fetches the rows matching the query. When a limit is set one extra
// row is requested; if it arrives it is dropped and HasMore is set.
func (q *Query) Get(ctx context.Context) (*Results, error) {
	limit, offset, probe := q.set.GetBounds()
	set := q.set
	if probe > 0 {
		set = q.set.WithWindow(probe, offset)
	}

	res, err := q.execute(ctx, backend.OpGet, q.request(set))
	if err != nil {
		return nil, err
	}

	rows := res.Rows
	hasMore := false
	if probe > 0 && len(rows) > limit {
		hasMore = true
		rows = rows[:limit:limit]
	}
	return newResults(rows, q.materializer(), hasMore), nil
}

// GetPage fetches one page of limit rows. The query itself is not changed.
func (q *Query) GetPage(ctx context.Context, limit, page int) (*Results, error) {
	return q.Clone().SetLimit(limit).SetPage(page).Get(ctx)
}

// GetOne fetches the first matching row, materialized. It returns nil when
// nothing matches.
func (q *Query) GetOne(ctx context.Context) (any, error) {
	res, err := q.execute(ctx, backend.OpGetOne, q.request(q.set))
	if err != nil {
		return nil, err
	}
	row, ok := res.First()
	if !ok {
		return nil, nil
	}
	return q.materializer().materialize(row)
}

// All returns a chunked iterator over every matching row.
func (q *Query) All(ctx context.Context) *Chunked {
	return newChunked(ctx, q)
}

// Iterate picks the traversal for the current bounds: a single Get when a
// limit is set, otherwise a chunked walk over every row.
func (q *Query) Iterate(ctx context.Context) (Iterator, error) {
	if limit, _, _ := q.set.GetBounds(); limit > 0 {
		r, err := q.Get(ctx)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
	if q.err != nil {
		return nil, q.err
	}
	return q.All(ctx), nil
}

// Values fetches rows in projection mode.
func (q *Query) Values(ctx context.Context) (*Results, error) {
	if len(q.set.Fields) == 0 {
		return nil, noSelectedFields()
	}
	r, err := q.Get(ctx)
	if err != nil {
		return nil, err
	}
	return r.Values()
}

// Value returns the projection of the first matching row, or nil.
func (q *Query) Value(ctx context.Context) (any, error) {
	if len(q.set.Fields) == 0 {
		return nil, noSelectedFields()
	}
	res, err := q.execute(ctx, backend.OpGetOne, q.request(q.set))
	if err != nil {
		return nil, err
	}
	row, ok := res.First()
	if !ok {
		return nil, nil
	}
	return project(row, q.set.FieldNames()), nil
}

// pkQuery is a clone selecting only the primary key.
func (q *Query) pkQuery() *Query {
	c := q.Clone()
	c.set.Fields = nil
	return c.Select(q.schema.PrimaryKeyName())
}

// PKs returns the primary keys of every matching row.
func (q *Query) PKs(ctx context.Context) ([]any, error) {
	r, err := q.pkQuery().Values(ctx)
	if err != nil {
		return nil, err
	}
	return r.Collect()
}

// PK returns the primary key of the first matching row, or nil.
func (q *Query) PK(ctx context.Context) (any, error) {
	return q.pkQuery().Value(ctx)
}

// GetPK fetches the row with primary key id.
func (q *Query) GetPK(ctx context.Context, id any) (any, error) {
	return q.Clone().Is(q.schema.PrimaryKeyName(), id).GetOne(ctx)
}

// GetPKs fetches the rows whose primary key is in ids.
func (q *Query) GetPKs(ctx context.Context, ids any) (*Results, error) {
	return q.Clone().In(q.schema.PrimaryKeyName(), ids).Get(ctx)
}

// First returns the matching row with the lowest primary key.
func (q *Query) First(ctx context.Context) (any, error) {
	return q.Clone().Asc(q.schema.PrimaryKeyName()).GetOne(ctx)
}

// Last returns the matching row with the highest primary key.
func (q *Query) Last(ctx context.Context) (any, error) {
	return q.Clone().Desc(q.schema.PrimaryKeyName()).GetOne(ctx)
}

// Has reports whether any row matches.
func (q *Query) Has(ctx context.Context) (bool, error) {
	pk, err := q.pkQuery().Value(ctx)
	if err != nil {
		return false, err
	}
	return pk != nil, nil
}

// Count returns the number of matching rows. Sort criteria are ignored.
func (q *Query) Count(ctx context.Context) (int64, error) {
	c := q.Clone()
	c.set.ClearSort()
	res, err := c.execute(ctx, backend.OpCount, c.request(c.set))
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Insert writes the fields set with SetField and returns the new primary key.
func (q *Query) Insert(ctx context.Context) (any, error) {
	req := q.request(q.set)
	req.Fields = q.set.Assignments()
	res, err := q.execute(ctx, backend.OpInsert, req)
	if err != nil {
		return nil, err
	}
	return res.ID, nil
}

// Update writes the fields set with SetField to every matching row and
// returns how many rows changed.
func (q *Query) Update(ctx context.Context) (int64, error) {
	req := q.request(q.set)
	req.Fields = q.set.Assignments()
	res, err := q.execute(ctx, backend.OpUpdate, req)
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Delete removes every matching row and returns how many were removed.
func (q *Query) Delete(ctx context.Context) (int64, error) {
	res, err := q.execute(ctx, backend.OpDelete, q.request(q.set))
	if err != nil {
		return 0, err
	}
	return res.Count, nil
}

// Raw runs a hand-written query on adapters that support it. It bypasses
// the executor chain, so middleware such as a cache never sees it.
func (q *Query) Raw(ctx context.Context, sql string, args ...any) (*Results, error) {
	if q.err != nil {
		return nil, q.err
	}
	rq, ok := q.adapter.(backend.RawQuerier)
	if !ok {
		return nil, &Error{Code: ErrCodeUnsupported, Message: "adapter does not support raw queries"}
	}
	rows, err := rq.Raw(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return newResults(rows, materializer{factory: q.factory}, false), nil
}
