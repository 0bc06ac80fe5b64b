package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioYAML = `name: dogs
description: "Count and list dogs"
schema: ../pets.yaml
table: pets
seed:
  - { name: Rex, species: dog, age: 4 }
  - { name: Tom, species: cat, age: 7 }
  - { name: Fido, kind: dog, age: 9 }
steps:
  - op: count
    calls:
      - method: is_species
        args: [dog]
    expect:
      value: 2
  - op: values
    calls:
      - method: select_name
      - method: is_kind
        args: [dog]
      - method: desc_age
    expect:
      value: [Fido, Rex]
`

const dogsGolden = `{"scenario":"dogs","table":"pets","trace":[{"op":"count","step":1,"value":2},{"has_more":false,"op":"values","step":2,"value":["Fido","Rex"]}]}`

// writeScenarios lays out <dir>/scenarios/<name>.yaml next to the pets
// schema written by newEnv.
func writeScenarios(t *testing.T, e *env, files map[string]string) string {
	t.Helper()
	dir := filepath.Join(e.dir, "scenarios")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	return dir
}

func TestTest_PassesWithoutGolden(t *testing.T) {
	e := newEnv(t)
	dir := writeScenarios(t, e, map[string]string{"dogs.yaml": scenarioYAML})

	var res TestResult
	e.json(&res, "test", dir)
	assert.Equal(t, 1, res.Total)
	assert.Equal(t, 1, res.Passed)
	require.Len(t, res.Scenarios, 1)
	assert.Equal(t, "dogs", res.Scenarios[0].Name)
	assert.Equal(t, "missing", res.Scenarios[0].Golden)
}

func TestTest_UpdateThenMatchGolden(t *testing.T) {
	e := newEnv(t)
	dir := writeScenarios(t, e, map[string]string{"dogs.yaml": scenarioYAML})

	stdout, stderr, code := e.run("test", dir, "--update")
	require.Equal(t, ExitSuccess, code, stderr)
	assert.Contains(t, stdout, "✓ dogs (golden updated)")

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "dogs.golden"))
	require.NoError(t, err)
	assert.Equal(t, dogsGolden, string(golden))

	var res TestResult
	e.json(&res, "test", dir)
	assert.Equal(t, "match", res.Scenarios[0].Golden)
}

func TestTest_GoldenMismatchFails(t *testing.T) {
	e := newEnv(t)
	dir := writeScenarios(t, e, map[string]string{"dogs.yaml": scenarioYAML})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "dogs.golden"), []byte("{}"), 0o644))

	stdout, _, code := e.run("test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "✗ dogs")
	assert.Contains(t, stdout, "trace does not match golden file")
	assert.Contains(t, stdout, "Test Summary: 0 passed, 1 failed, 1 total")
}

func TestTest_FailedExpectationAndFilter(t *testing.T) {
	e := newEnv(t)
	broken := `name: broken
description: "Wrong count"
schema: ../pets.yaml
steps:
  - op: count
    expect:
      value: 3
`
	dir := writeScenarios(t, e, map[string]string{"dogs.yaml": scenarioYAML, "broken.yaml": broken})

	stdout, _, code := e.run("test", dir)
	assert.Equal(t, ExitFailure, code)
	assert.Contains(t, stdout, "step 1: expected value 3, got 0")
	assert.Contains(t, stdout, "1 passed, 1 failed, 2 total")

	_, stderr, code := e.run("test", dir, "--filter", "dog*")
	assert.Equal(t, ExitSuccess, code, stderr)
}

func TestTest_MissingDirectory(t *testing.T) {
	e := newEnv(t)
	_, stderr, code := e.run("test", filepath.Join(e.dir, "nope"))
	assert.Equal(t, ExitCommandError, code)
	assert.Contains(t, stderr, "scenarios directory not found")
}
