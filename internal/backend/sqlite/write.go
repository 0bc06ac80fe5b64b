package sqlite

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/viggyfresh/prom/internal/criteria"
	"github.com/viggyfresh/prom/internal/schema"
)

// Insert writes one row and returns its primary key. A uuid primary key
// with no value gets a fresh UUIDv7.
func (d *DB) Insert(ctx context.Context, s *schema.Schema, fields []criteria.FieldValue) (any, error) {
	pk := s.PrimaryKey()

	var id any
	hasPK := false
	for _, f := range fields {
		if f.Name == pk.Name && f.Value != nil {
			id = f.Value
			hasPK = true
		}
	}
	if !hasPK && pk.Type == schema.TypeUUID {
		id = uuid.Must(uuid.NewV7()).String()
		fields = append(append([]criteria.FieldValue(nil), fields...), criteria.FieldValue{Name: pk.Name, Value: id})
		hasPK = true
	}

	query, args, err := d.compiler.Insert(s, fields)
	if err != nil {
		return nil, err
	}
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, classify(s, fmt.Errorf("insert %s: %w", s.Table, err))
	}
	if hasPK {
		return id, nil
	}

	lastID, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("insert %s: last insert id: %w", s.Table, err)
	}
	return lastID, nil
}

// Update changes the rows matching set and returns how many were affected.
func (d *DB) Update(ctx context.Context, s *schema.Schema, fields []criteria.FieldValue, set *criteria.Set) (int64, error) {
	query, args, err := d.compiler.Update(s, fields, set)
	if err != nil {
		return 0, err
	}
	return d.exec(ctx, s, "update", query, args)
}

// Delete removes the rows matching set and returns how many were removed.
func (d *DB) Delete(ctx context.Context, s *schema.Schema, set *criteria.Set) (int64, error) {
	query, args, err := d.compiler.Delete(s, set)
	if err != nil {
		return 0, err
	}
	return d.exec(ctx, s, "delete", query, args)
}

func (d *DB) exec(ctx context.Context, s *schema.Schema, what, query string, args []any) (int64, error) {
	res, err := d.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, classify(s, fmt.Errorf("%s %s: %w", what, s.Table, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s %s: rows affected: %w", what, s.Table, err)
	}
	d.logger.Debug(what, "table", s.Table, "rows", n)
	return n, nil
}
