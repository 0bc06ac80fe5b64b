// Package sqlgen compiles criteria sets into parameterized SQLite
// statements.
//
// Statements are assembled with squirrel using '?' placeholders. Every
// value a caller supplies travels as a bind argument; identifiers come from
// the schema and are always double-quoted. Nothing user-controlled is
// interpolated into SQL text.
//
// Bounded selects get the primary key appended as a final ORDER BY term
// so that LIMIT/OFFSET windows are deterministic across calls.
package sqlgen
