package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"
)

// Scenario is one query script: a schema, seed rows and the steps run
// against them.
type Scenario struct {
	// Name identifies the scenario and names its golden file.
	Name string `yaml:"name"`

	Description string `yaml:"description"`

	// Schema is a YAML or CUE schema file. LoadScenario resolves it
	// relative to the scenario file.
	Schema string `yaml:"schema"`

	// Table picks the schema table. It may be empty when the schema file
	// defines exactly one table.
	Table string `yaml:"table,omitempty"`

	// Driver is the sqlite driver; empty means the cgo driver.
	Driver string `yaml:"driver,omitempty"`

	// Seed rows are inserted in order before the first step.
	Seed []map[string]any `yaml:"seed,omitempty"`

	Steps []Step `yaml:"steps"`
}

// Step runs one terminal operation on a fresh query.
type Step struct {
	// Op is one of the Op* constants.
	Op string `yaml:"op"`

	// Calls are applied in order before Op runs.
	Calls []Call `yaml:"calls,omitempty"`

	// Set holds field assignments for insert and update.
	Set map[string]any `yaml:"set,omitempty"`

	Limit  int `yaml:"limit,omitempty"`
	Offset int `yaml:"offset,omitempty"`
	Page   int `yaml:"page,omitempty"`

	// Expect is optional; a step without it is only traced.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Call is a dynamic builder invocation such as gte_age(2).
type Call struct {
	Method string `yaml:"method"`
	Args   []any  `yaml:"args,omitempty"`
}

// Expect lists what a step must return.
type Expect struct {
	Value   any              `yaml:"value,omitempty"`
	Rows    []map[string]any `yaml:"rows,omitempty"`
	Count   *int             `yaml:"count,omitempty"`
	HasMore *bool            `yaml:"has_more,omitempty"`
	Error   string           `yaml:"error,omitempty"`
}

// Step operations.
const (
	OpGet    = "get"
	OpGetOne = "get_one"
	OpFirst  = "first"
	OpLast   = "last"
	OpAll    = "all"
	OpValues = "values"
	OpValue  = "value"
	OpPKs    = "pks"
	OpCount  = "count"
	OpHas    = "has"
	OpInsert = "insert"
	OpUpdate = "update"
	OpDelete = "delete"
)

var ops = []string{
	OpGet, OpGetOne, OpFirst, OpLast, OpAll, OpValues, OpValue,
	OpPKs, OpCount, OpHas, OpInsert, OpUpdate, OpDelete,
}

// LoadScenario reads and validates a scenario file. Unknown keys are
// rejected so a misspelled expectation cannot pass silently.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}
	if !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML. The schema path is
// left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if step.Op == "" {
			return fmt.Errorf("step %d: op is required", i+1)
		}
		if !slices.Contains(ops, step.Op) {
			return fmt.Errorf("step %d: unknown op %q", i+1, step.Op)
		}
		for j, call := range step.Calls {
			if call.Method == "" {
				return fmt.Errorf("step %d call %d: method is required", i+1, j+1)
			}
		}
		if len(step.Set) > 0 && step.Op != OpInsert && step.Op != OpUpdate {
			return fmt.Errorf("step %d: set is only valid for insert and update", i+1)
		}
		if step.Limit < 0 || step.Offset < 0 || step.Page < 0 {
			return fmt.Errorf("step %d: bounds must not be negative", i+1)
		}
	}
	return nil
}
