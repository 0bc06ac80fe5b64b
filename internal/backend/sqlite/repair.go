package sqlite

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/schema"
	"github.com/viggyfresh/prom/internal/sqlgen"
)

// classify wraps driver errors that mean the table does not match s.
func classify(s *schema.Schema, err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "no such table") && strings.Contains(msg, s.Table):
		return &backend.SchemaDriftError{Kind: backend.DriftMissingTable, Table: s.Table, Err: err}
	case strings.Contains(msg, "no such column"):
		return &backend.SchemaDriftError{Kind: backend.DriftMissingColumn, Table: s.Table, Column: after(msg, "no such column: "), Err: err}
	case strings.Contains(msg, "has no column named"):
		return &backend.SchemaDriftError{Kind: backend.DriftMissingColumn, Table: s.Table, Column: after(msg, "has no column named "), Err: err}
	}
	return err
}

func after(msg, marker string) string {
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexAny(rest, " \n"); j >= 0 {
		rest = rest[:j]
	}
	return strings.Trim(rest, `"`)
}

// Repair fixes the drift described by err. It reports false when err is not
// drift for s or nothing could be changed.
func (d *DB) Repair(ctx context.Context, s *schema.Schema, err error) (bool, error) {
	var drift *backend.SchemaDriftError
	if !errors.As(err, &drift) || drift.Table != s.Table {
		return false, nil
	}

	switch drift.Kind {
	case backend.DriftMissingTable:
		if err := d.CreateTable(ctx, s); err != nil {
			return false, err
		}
		d.logger.Info("created missing table", "table", s.Table)
		return true, nil

	case backend.DriftMissingColumn:
		added, err := d.AddMissingColumns(ctx, s)
		if err != nil {
			return false, err
		}
		if len(added) > 0 {
			d.logger.Info("added missing columns", "table", s.Table, "columns", added)
		}
		return len(added) > 0, nil
	}
	return false, nil
}

// CreateTable creates s and its indexes in one transaction.
func (d *DB) CreateTable(ctx context.Context, s *schema.Schema) error {
	stmts, err := sqlgen.CreateTable(s)
	if err != nil {
		return err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create table %s: %w", s.Table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create table %s: commit: %w", s.Table, err)
	}
	return nil
}

// HasTable reports whether table exists.
func (d *DB) HasTable(ctx context.Context, table string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("has table %s: %w", table, err)
	}
	return n > 0, nil
}

// Columns returns the column names of table in order.
func (d *DB) Columns(ctx context.Context, table string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, "SELECT name FROM pragma_table_info(?)", table)
	if err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}
	defer rows.Close()

	cols := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("columns %s: %w", table, err)
		}
		cols = append(cols, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("columns %s: %w", table, err)
	}
	return cols, nil
}

// AddMissingColumns adds every schema field the table lacks and returns
// their names. A missing required field is an error.
func (d *DB) AddMissingColumns(ctx context.Context, s *schema.Schema) ([]string, error) {
	existing, err := d.Columns(ctx, s.Table)
	if err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(existing))
	for _, c := range existing {
		have[c] = true
	}

	added := []string{}
	for _, f := range s.Fields() {
		if have[f.Name] {
			continue
		}
		stmt, err := sqlgen.AddColumn(s, f)
		if err != nil {
			return added, err
		}
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return added, fmt.Errorf("add column %s.%s: %w", s.Table, f.Name, err)
		}
		added = append(added, f.Name)
	}
	return added, nil
}
