package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/viggyfresh/prom/internal/fingerprint"
	"github.com/viggyfresh/prom/internal/query"
)

// TraceSnapshot is the part of a run that golden files pin down.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario"`
	Table        string       `json:"table"`
	Trace        []TraceEvent `json:"trace"`
}

// toCanonicalMap converts the snapshot to plain maps, which is all
// fingerprint.MarshalCanonical encodes besides scalars.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	trace := make([]any, len(s.Trace))
	for i, ev := range s.Trace {
		m := map[string]any{
			"step": ev.Step,
			"op":   ev.Op,
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		} else {
			m["value"] = ev.Value
		}
		if ev.HasMore != nil {
			m["has_more"] = *ev.HasMore
		}
		trace[i] = m
	}
	return map[string]any{
		"scenario": s.ScenarioName,
		"table":    s.Table,
		"trace":    trace,
	}
}

// Marshal returns the canonical JSON form of the snapshot.
func (s *TraceSnapshot) Marshal() ([]byte, error) {
	return fingerprint.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden runs scenario and compares its trace with
// testdata/golden/<scenario.Name>.golden. Failed expectations fail t.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...query.Option) error {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		t.Errorf("%s: %s", scenario.Name, e)
	}
	return AssertGolden(t, scenario.Name, scenario.Table, result)
}

// AssertGolden compares an existing result's trace with a golden file.
func AssertGolden(t *testing.T, name, table string, result *Result) error {
	t.Helper()

	snapshot := TraceSnapshot{
		ScenarioName: name,
		Table:        table,
		Trace:        result.Trace,
	}
	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
