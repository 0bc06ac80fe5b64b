package sqlgen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/viggyfresh/prom/internal/schema"
)

// FieldSQL returns the column definition for f, for example
// `"email" TEXT COLLATE NOCASE NOT NULL`.
func FieldSQL(f schema.Field) (string, error) {
	var typ string
	if f.PK {
		switch f.Type {
		case schema.TypeInt, schema.TypeBigInt:
			typ = "INTEGER PRIMARY KEY"
		case schema.TypeString, schema.TypeUUID:
			typ = "TEXT PRIMARY KEY"
		default:
			return "", fmt.Errorf("field %s: type %s cannot be a primary key", f.Name, f.Type)
		}
		return Quote(f.Name) + " " + typ, nil
	}

	switch f.Type {
	case schema.TypeBool:
		typ = "BOOLEAN"
	case schema.TypeInt:
		typ = "INTEGER"
	case schema.TypeBigInt:
		typ = "BIGINT"
	case schema.TypeString:
		switch {
		case f.Size > 0:
			typ = fmt.Sprintf("CHARACTER(%d)", f.Size)
		case f.MaxSize > 0:
			typ = fmt.Sprintf("VARCHAR(%d)", f.MaxSize)
		default:
			typ = "TEXT"
		}
		if f.IgnoreCase {
			typ += " COLLATE NOCASE"
		}
	case schema.TypeUUID:
		typ = "TEXT"
	case schema.TypeDatetime:
		typ = "TIMESTAMP"
	case schema.TypeDate:
		typ = "DATE"
	case schema.TypeFloat:
		typ = "REAL"
		if f.Size > 6 || f.MaxSize > 6 {
			typ = "DOUBLE PRECISION"
		}
	case schema.TypeDecimal:
		typ = "NUMERIC"
	case schema.TypeBytes:
		typ = "BLOB"
	case schema.TypeJSON:
		typ = "JSON"
	default:
		return "", fmt.Errorf("field %s: unknown type %q", f.Name, f.Type)
	}

	if f.Required {
		typ += " NOT NULL"
	} else {
		typ += " NULL"
	}
	if f.Ref != "" {
		typ += fmt.Sprintf(" REFERENCES %s ON UPDATE CASCADE", Quote(f.Ref))
		if f.Required {
			typ += " ON DELETE CASCADE"
		} else {
			typ += " ON DELETE SET NULL"
		}
	}
	return Quote(f.Name) + " " + typ, nil
}

// CreateTable returns the statements that create s and its indexes.
func CreateTable(s *schema.Schema) ([]string, error) {
	fields := s.Fields()
	cols := make([]string, 0, len(fields))
	for _, f := range fields {
		col, err := FieldSQL(f)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", s.Table, err)
		}
		cols = append(cols, col)
	}

	stmts := []string{
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", Quote(s.Table), strings.Join(cols, ",\n  ")),
	}
	for _, idx := range s.Indexes {
		stmts = append(stmts, CreateIndex(s, idx))
	}
	return stmts, nil
}

// CreateIndex returns the statement for one index of s.
func CreateIndex(s *schema.Schema, idx schema.Index) string {
	unique := ""
	if idx.Unique {
		unique = "UNIQUE "
	}
	cols := make([]string, len(idx.Fields))
	for i, f := range idx.Fields {
		cols[i] = Quote(f)
	}
	return fmt.Sprintf("CREATE %sINDEX IF NOT EXISTS %s ON %s (%s)",
		unique, Quote(s.Table+"_"+idx.Name), Quote(s.Table), strings.Join(cols, ", "))
}

// AddColumn returns the ALTER TABLE statement adding f to s. Required
// columns cannot be added to a populated table and are rejected.
func AddColumn(s *schema.Schema, f schema.Field) (string, error) {
	if f.PK || f.Required {
		return "", fmt.Errorf("table %s: cannot add required column %s", s.Table, f.Name)
	}
	col, err := FieldSQL(f)
	if err != nil {
		return "", fmt.Errorf("table %s: %w", s.Table, err)
	}
	return fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", Quote(s.Table), col), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
