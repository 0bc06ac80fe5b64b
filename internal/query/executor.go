package query

import (
	"context"
	"errors"
	"log/slog"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/criteria"
	"github.com/viggyfresh/prom/internal/schema"
)

// Request is everything an executor needs to run one operation.
type Request struct {
	Schema *schema.Schema
	Set    *criteria.Set

	// Fields holds the values written by insert and update.
	Fields []criteria.FieldValue
}

// Executor runs an operation. The chain built by New always ends at an
// executor that talks to the adapter.
type Executor interface {
	Execute(ctx context.Context, op backend.Operation, req Request) (backend.Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, op backend.Operation, req Request) (backend.Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, op backend.Operation, req Request) (backend.Result, error) {
	return f(ctx, op, req)
}

// Middleware wraps an executor, for example with a cache.
type Middleware func(next Executor) Executor

// direct dispatches to the adapter, short-circuits unexecutable criteria
// and retries once after a successful schema repair.
type direct struct {
	adapter backend.Adapter
	logger  *slog.Logger
}

func (d *direct) Execute(ctx context.Context, op backend.Operation, req Request) (backend.Result, error) {
	if req.Set != nil && !req.Set.CanExecute() {
		d.logger.Debug("criteria can never match, skipping backend", "op", op, "table", req.Schema.Table)
		return backend.Default(op), nil
	}

	res, err := d.call(ctx, op, req)
	if err == nil {
		return res, nil
	}

	repairer, ok := d.adapter.(backend.Repairer)
	if !ok || !backend.IsSchemaDrift(err) {
		return res, err
	}
	repaired, rerr := repairer.Repair(ctx, req.Schema, err)
	if rerr != nil {
		return res, errors.Join(err, rerr)
	}
	if !repaired {
		return res, err
	}

	d.logger.Info("schema repaired, retrying", "op", op, "table", req.Schema.Table)
	return d.call(ctx, op, req)
}

func (d *direct) call(ctx context.Context, op backend.Operation, req Request) (backend.Result, error) {
	switch op {
	case backend.OpInsert:
		id, err := d.adapter.Insert(ctx, req.Schema, req.Fields)
		return backend.Result{ID: id}, err
	case backend.OpUpdate:
		n, err := d.adapter.Update(ctx, req.Schema, req.Fields, req.Set)
		return backend.Result{Count: n}, err
	case backend.OpDelete:
		n, err := d.adapter.Delete(ctx, req.Schema, req.Set)
		return backend.Result{Count: n}, err
	}
	return d.adapter.Query(ctx, op, req.Schema, req.Set)
}
