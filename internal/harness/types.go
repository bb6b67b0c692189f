package harness

// Step types recorded in the trace.
const (
	StepRequest  = "request"
	StepInline   = "inline"
	StepCrash    = "crash"
	StepRestart  = "restart"
	StepSafeMode = "safe_mode"
	StepRecover  = "recover"
)

// TraceEvent is one entry in a scenario trace.
type TraceEvent struct {
	Step      int    `json:"step"`
	Type      string `json:"type"`
	SnippetID string `json:"snippet_id,omitempty"`
	Outcome   string `json:"outcome,omitempty"`
	Detail    string `json:"-"`
	Output    string `json:"output,omitempty"`
}

// ErrorSummary is an error log entry without its volatile fields.
type ErrorSummary struct {
	SnippetID string `json:"snippet_id"`
	Count     int    `json:"count"`
}

// FinalState is what the store and state backend hold after the last step.
type FinalState struct {
	SafeMode bool            `json:"safe_mode"`
	Enabled  map[string]bool `json:"enabled"`
	ErrorLog []ErrorSummary  `json:"error_log"`
	Marker   string          `json:"marker,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
	State  FinalState   `json:"state"`

	// Messages holds the full error log text, keyed by snippet id.
	Messages map[string]string `json:"-"`

	// Outputs holds what each step rendered, keyed by 1-based step.
	Outputs map[int]string `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		Trace:    []TraceEvent{},
		Errors:   []string{},
		Messages: map[string]string{},
		Outputs:  map[int]string{},
		State: FinalState{
			Enabled:  map[string]bool{},
			ErrorLog: []ErrorSummary{},
		},
	}
}

// AddError records a failed assertion.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

func (r *Result) add(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
