package backend

import (
	"errors"
	"fmt"
)

// DriftKind says which part of a table is missing.
type DriftKind string

const (
	DriftMissingTable  DriftKind = "MISSING_TABLE"
	DriftMissingColumn DriftKind = "MISSING_COLUMN"
)

// SchemaDriftError reports that the stored table does not match the schema.
// Adapters wrap the driver error so callers can still inspect it.
type SchemaDriftError struct {
	Kind   DriftKind
	Table  string
	Column string
	Err    error
}

func (e *SchemaDriftError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("%s: table %s column %s: %v", e.Kind, e.Table, e.Column, e.Err)
	}
	return fmt.Sprintf("%s: table %s: %v", e.Kind, e.Table, e.Err)
}

func (e *SchemaDriftError) Unwrap() error {
	return e.Err
}

// IsSchemaDrift reports whether err is or wraps a SchemaDriftError.
func IsSchemaDrift(err error) bool {
	var de *SchemaDriftError
	return errors.As(err, &de)
}

// IsMissingTable reports whether err is a missing-table drift error.
func IsMissingTable(err error) bool {
	var de *SchemaDriftError
	if errors.As(err, &de) {
		return de.Kind == DriftMissingTable
	}
	return false
}

// IsMissingColumn reports whether err is a missing-column drift error.
func IsMissingColumn(err error) bool {
	var de *SchemaDriftError
	if errors.As(err, &de) {
		return de.Kind == DriftMissingColumn
	}
	return false
}
