package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunWithGolden(t *testing.T) {
	require.NoError(t, RunWithGolden(t, loadScenario(t, "pets_lifecycle")))
}

func TestTraceSnapshot_Marshal(t *testing.T) {
	more := true
	snap := TraceSnapshot{
		ScenarioName: "s",
		Table:        "t",
		Trace: []TraceEvent{
			{Step: 1, Op: OpGet, Value: []any{map[string]any{"b": 1, "a": "x"}}, HasMore: &more},
			{Step: 2, Op: OpCount, Error: "boom"},
		},
	}
	data, err := snap.Marshal()
	require.NoError(t, err)
	assert.Equal(t,
		`{"scenario":"s","table":"t","trace":[{"has_more":true,"op":"get","step":1,"value":[{"a":"x","b":1}]},{"error":"boom","op":"count","step":2}]}`,
		string(data))
}

func TestTraceSnapshot_RejectsUnencodableValues(t *testing.T) {
	snap := TraceSnapshot{Trace: []TraceEvent{{Step: 1, Op: OpGet, Value: make(chan int)}}}
	_, err := snap.Marshal()
	assert.Error(t, err)
}
