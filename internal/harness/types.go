package harness

import (
	"fmt"
	"strings"
)

// Trace event kinds.
const (
	EventState   = "state"
	EventReading = "reading"
	EventError   = "error"
)

// TraceEvent is one listener callback observed during a run.
type TraceEvent struct {
	At    int64  `json:"at"`
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

// Label is the event without its timestamp, as assertions match it.
func (e TraceEvent) Label() string {
	return e.ID + " " + e.Value
}

func (e TraceEvent) String() string {
	return fmt.Sprintf("@%d %s", e.At, e.Label())
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Trace contains every transition, reading update and error in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final holds the last state of each expression still registered when
	// the scenario ended. Never evaluated expressions are absent.
	Final map[string]string `json:"final,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Final:  make(map[string]string),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// TraceText renders the trace one event per line.
func (r *Result) TraceText() string {
	var b strings.Builder
	for _, e := range r.Trace {
		b.WriteString(e.String())
		b.WriteByte('\n')
	}
	return b.String()
}
