package harness

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_ResolvesSchemaPath(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/pets_lifecycle.yaml")
	require.NoError(t, err)

	assert.Equal(t, "pets_lifecycle", sc.Name)
	assert.Equal(t, filepath.Join("testdata", "schemas", "pets.yaml"), sc.Schema)
	assert.Len(t, sc.Seed, 3)
	require.Len(t, sc.Steps, 8)

	first := sc.Steps[0]
	assert.Equal(t, OpValues, first.Op)
	require.Len(t, first.Calls, 3)
	assert.Equal(t, "gte_age", first.Calls[1].Method)
	assert.Equal(t, []any{2}, first.Calls[1].Args)
	require.NotNil(t, first.Expect.Count)
	assert.Equal(t, 2, *first.Expect.Count)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	assert.ErrorContains(t, err, "failed to read scenario file")
}

func TestParseScenario_RejectsUnknownFields(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
description: d
schema: s.yaml
steps:
  - op: get
    expects: { count: 1 }
`))
	assert.ErrorContains(t, err, "failed to parse YAML")
}

func TestParseScenario_Validation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"no name", "description: d\nschema: s\nsteps: [{op: get}]", "name is required"},
		{"no description", "name: n\nschema: s\nsteps: [{op: get}]", "description is required"},
		{"no schema", "name: n\ndescription: d\nsteps: [{op: get}]", "schema is required"},
		{"no steps", "name: n\ndescription: d\nschema: s", "steps list is required"},
		{"no op", "name: n\ndescription: d\nschema: s\nsteps: [{limit: 1}]", "step 1: op is required"},
		{"bad op", "name: n\ndescription: d\nschema: s\nsteps: [{op: explode}]", `unknown op "explode"`},
		{"no method", "name: n\ndescription: d\nschema: s\nsteps: [{op: get, calls: [{args: [1]}]}]", "method is required"},
		{"set on read", "name: n\ndescription: d\nschema: s\nsteps: [{op: get, set: {a: 1}}]", "set is only valid"},
		{"negative bound", "name: n\ndescription: d\nschema: s\nsteps: [{op: get, limit: -1}]", "must not be negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
