package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/query"
	"github.com/viggyfresh/prom/internal/schema"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Query failed (bad criteria, backend error)
	ExitCommandError = 2 // Command error (bad flags, config, schema file, database)
)

// Error codes reported for failures that carry no code of their own.
const (
	ErrCodeGeneric = "E001"
	ErrCodeConfig  = "E002"
	ErrCodeBackend = "E003"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// ErrorCode picks the most specific code for err: a query or schema error
// code when one is wrapped, else a generic code by exit status.
func ErrorCode(err error) string {
	var qe *query.Error
	if errors.As(err, &qe) {
		return string(qe.Code)
	}
	var le *schema.LoadError
	if errors.As(err, &le) {
		return le.Code
	}
	if backend.IsSchemaDrift(err) {
		return ErrCodeBackend
	}
	if GetExitCode(err) == ExitCommandError {
		return ErrCodeConfig
	}
	return ErrCodeGeneric
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// RowsResult is the payload of commands that return rows.
type RowsResult struct {
	Table   string           `json:"table"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
	HasMore bool             `json:"has_more"`
}

// NewRowsResult converts backend rows. columns is used when rows is empty.
func NewRowsResult(table string, columns []string, rows []backend.Row, hasMore bool) RowsResult {
	if len(rows) > 0 {
		columns = rows[0].Keys()
	}
	out := RowsResult{Table: table, Columns: columns, Rows: make([]map[string]any, len(rows)), HasMore: hasMore}
	for i, r := range rows {
		out.Rows[i] = r.Map()
	}
	return out
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Rows outputs a row set: a bordered table in text mode.
func (f *OutputFormatter) Rows(res RowsResult) error {
	if f.Format == "json" {
		return f.Success(res)
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(res.Columns...)
	for _, row := range res.Rows {
		cells := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			cells[i] = formatCell(row[c])
		}
		t.Row(cells...)
	}
	fmt.Fprintln(f.Writer, t.Render())

	summary := fmt.Sprintf("%d row(s)", len(res.Rows))
	if res.HasMore {
		summary += ", more available"
	}
	fmt.Fprintln(f.Writer, summary)
	return nil
}

func formatCell(v any) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case []byte:
		return fmt.Sprintf("%x", val)
	}
	return fmt.Sprint(v)
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}
