package harness

import "fmt"

// TraceEvent is what one step returned.
type TraceEvent struct {
	Step int    `json:"step"`
	Op   string `json:"op"`

	// Value is the step result with rows flattened to maps.
	Value any `json:"value,omitempty"`

	// HasMore is set only for get and values steps.
	HasMore *bool `json:"has_more,omitempty"`

	Error string `json:"error,omitempty"`
}

// Result is the outcome of running a scenario.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	Trace []TraceEvent `json:"trace"`

	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a passing result with an empty trace.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records a failed expectation.
func (r *Result) AddError(step int, format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf("step %d: ", step)+fmt.Sprintf(format, args...))
	r.Pass = false
}

// AddEvent appends ev to the trace.
func (r *Result) AddEvent(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
