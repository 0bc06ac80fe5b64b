package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viggyfresh/prom/internal/backend"
	"github.com/viggyfresh/prom/internal/query"
	"github.com/viggyfresh/prom/internal/schema"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Success(CountResult{Table: "pets", Count: 3})
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]any{"table": "pets", "count": float64(3)}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E001", "query failed", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "query failed", resp.Error.Message)
}

func TestOutputFormatter_TextError(t *testing.T) {
	tests := []struct {
		name        string
		verbose     bool
		wantDetails bool
	}{
		{"quiet", false, false},
		{"verbose", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf, Verbose: tt.verbose}

			err := formatter.Error("E002", "bad config", map[string]string{"key": "log.level"})
			require.NoError(t, err)
			assert.Contains(t, buf.String(), "Error [E002]: bad config")
			if tt.wantDetails {
				assert.Contains(t, buf.String(), "Details:")
			} else {
				assert.NotContains(t, buf.String(), "Details:")
			}
		})
	}
}

func TestOutputFormatter_VerboseLogGoesToErrWriter(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: out, ErrWriter: errOut, Verbose: true}

	formatter.VerboseLog("chunk %d", 2)
	assert.Empty(t, out.String())
	assert.Equal(t, "chunk 2\n", errOut.String())
}

func TestOutputFormatter_TextRows(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	born := time.Date(2020, 5, 1, 0, 0, 0, 0, time.UTC)
	rows := []backend.Row{
		backend.NewRow([]string{"_id", "name", "born"}, []any{int64(1), "Rex", born}),
		backend.NewRow([]string{"_id", "name", "born"}, []any{int64(2), "Tom", nil}),
	}
	require.NoError(t, formatter.Rows(NewRowsResult("pets", nil, rows, true)))

	text := buf.String()
	for _, want := range []string{"_id", "name", "Rex", "Tom", "2020-05-01T00:00:00Z", "NULL", "2 row(s), more available"} {
		assert.Contains(t, text, want)
	}
}

func TestNewRowsResult_EmptyUsesColumns(t *testing.T) {
	res := NewRowsResult("pets", []string{"_id", "name"}, nil, false)
	assert.Equal(t, []string{"_id", "name"}, res.Columns)
	assert.NotNil(t, res.Rows)
	assert.Empty(t, res.Rows)
}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"query error", WrapExitError(ExitFailure, "invalid criteria", &query.Error{Code: query.ErrCodeUnknownMethod}), "UNKNOWN_METHOD"},
		{"schema error", WrapExitError(ExitCommandError, "load", &schema.LoadError{Code: schema.ErrCodeParse}), schema.ErrCodeParse},
		{"drift", &backend.SchemaDriftError{Kind: backend.DriftMissingTable, Table: "pets"}, ErrCodeBackend},
		{"command error", NewExitError(ExitCommandError, "no schema"), ErrCodeConfig},
		{"other", errors.New("boom"), ErrCodeGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "x")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("x")))
}
