package harness

import "github.com/roach88/hyperhistory/internal/value"

// TraceEvent records what the engine did with one step.
type TraceEvent struct {
	Step   int    `json:"step"`
	Author string `json:"author"`
	Kind   string `json:"kind"`
	Status string `json:"status"`
	Code   string `json:"code,omitempty"` // set when rejected
	Seq    int64  `json:"seq,omitempty"`  // set when applied
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace holds one event per step, in step order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation and assertion failures.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the engine's final state with identities named.
	State State `json:"state"`
}

// State is engine state keyed by identity name.
type State struct {
	Applied   int                              `json:"applied"`
	Passports map[string]map[string]FieldState `json:"passports"`
	Channels  map[uint64][]MessageState        `json:"channels"`
}

// FieldState is one passport field.
type FieldState struct {
	Value  value.Value `json:"value"`
	Signer string      `json:"signer"`
}

// MessageState is one channel message.
type MessageState struct {
	Seq    int64  `json:"seq"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State: State{
			Passports: make(map[string]map[string]FieldState),
			Channels:  make(map[uint64][]MessageState),
		},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends a step event.
func (r *Result) AddTrace(event TraceEvent) {
	r.Trace = append(r.Trace, event)
}
