// Package backend defines the contract between the query layer and a
// storage engine.
//
// The query layer hands an Adapter a schema plus a criteria.Set and gets
// rows, a count, or a write outcome back. Adapters that can fix schema
// drift on the fly (a missing table, a missing column) also implement
// Repairer; the query layer then retries the failed operation once.
package backend

import (
	"context"

	"github.com/viggyfresh/prom/internal/criteria"
	"github.com/viggyfresh/prom/internal/schema"
)

// Operation names the kind of call made against an adapter.
type Operation string

const (
	OpGet    Operation = "get"
	OpGetOne Operation = "get_one"
	OpCount  Operation = "count"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// IsWrite reports whether op modifies stored data.
func (op Operation) IsWrite() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Result is the outcome of one adapter call.
//
//	get            Rows
//	get_one        Rows (zero or one)
//	count          Count
//	update/delete  Count (rows affected)
//	insert         ID
type Result struct {
	Rows  []Row
	Count int64
	ID    any
}

// First returns the first row, if any.
func (r Result) First() (Row, bool) {
	if len(r.Rows) == 0 {
		return Row{}, false
	}
	return r.Rows[0], true
}

// Clone returns a copy whose Rows slice is not shared with r.
func (r Result) Clone() Result {
	out := r
	if r.Rows != nil {
		out.Rows = append([]Row(nil), r.Rows...)
	}
	return out
}

// Default returns the result an operation produces when the criteria can
// never match: no rows, no row, zero counts, no id.
func Default(op Operation) Result {
	if op == OpGet {
		return Result{Rows: []Row{}}
	}
	return Result{}
}

// Adapter executes operations against a store.
type Adapter interface {
	Insert(ctx context.Context, s *schema.Schema, fields []criteria.FieldValue) (any, error)
	Update(ctx context.Context, s *schema.Schema, fields []criteria.FieldValue, set *criteria.Set) (int64, error)
	Delete(ctx context.Context, s *schema.Schema, set *criteria.Set) (int64, error)

	// Query runs a read. op is one of OpGet, OpGetOne or OpCount.
	Query(ctx context.Context, op Operation, s *schema.Schema, set *criteria.Set) (Result, error)
}

// Repairer is implemented by adapters that can fix schema drift.
//
// Repair is called with the error a previous call returned. It reports
// whether anything was changed; false means a retry would fail the same way.
type Repairer interface {
	Repair(ctx context.Context, s *schema.Schema, err error) (bool, error)
}

// RawQuerier is implemented by adapters that accept hand-written queries.
type RawQuerier interface {
	Raw(ctx context.Context, query string, args ...any) ([]Row, error)
}
