// Package harness runs YAML query scenarios against a fresh SQLite
// database and records what every step returned.
//
// # Scenario Format
//
//	name: pets_lifecycle
//	description: "What this scenario checks"
//	schema: ../schemas/pets.yaml
//	table: pets
//	seed:
//	  - { name: Rex, species: dog, age: 3 }
//	steps:
//	  - op: values
//	    calls:
//	      - method: select_name
//	      - method: gte_age
//	        args: [2]
//	      - method: asc_name
//	    expect:
//	      count: 2
//	      value: [Rex, Tom]
//	  - op: update
//	    set: { vaccinated: true }
//	    calls:
//	      - method: is_name
//	        args: [Nemo]
//	    expect:
//	      value: 1
//
// Calls go through query.Call, so a method is any verb_field name the
// query package accepts. Bounds are given per step with limit, offset and
// page. The schema path is relative to the scenario file.
//
// # Expectations
//
//   - value: the step result must encode to the same canonical JSON
//   - rows: each listed row is a subset of the row at the same position
//   - count: the number of rows or values returned
//   - has_more: the probe flag of a get or values step
//   - error: a substring the step error must contain
//
// # Golden Traces
//
// RunWithGolden encodes the trace with fingerprint.MarshalCanonical and
// compares it with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
