package ir

// Mode is the execution context a scheduling pass runs for.
type Mode string

const (
	ModeFrontend Mode = "frontend"
	ModeAdmin    Mode = "admin"
	ModeInline   Mode = "inline"
)

// RequestContext is what the host knows about the request being served.
// The host supplies it; the engine never inspects transport details.
type RequestContext struct {
	Mode          Mode   `json:"mode" yaml:"mode"`
	Path          string `json:"path" yaml:"path"`
	Authenticated bool   `json:"authenticated" yaml:"authenticated"`
	Mobile        bool   `json:"mobile" yaml:"mobile"`
}

// IsAdmin reports whether the request targets an administrative surface.
func (rc RequestContext) IsAdmin() bool {
	return rc.Mode == ModeAdmin
}

// FatalKind classifies what the host runtime recorded about a failure.
type FatalKind string

const (
	FatalKindFatal   FatalKind = "fatal"   // runtime fatal error or unrecovered panic
	FatalKindPanic   FatalKind = "panic"   // panic recovered at the end of a request
	FatalKindWarning FatalKind = "warning" // recoverable, never attributed
	FatalKindNotice  FatalKind = "notice"  // informational, never attributed
)

// FatalRecord is the last failure information the host runtime recorded.
type FatalRecord struct {
	Kind    FatalKind `json:"kind"`
	Message string    `json:"message"`
	File    string    `json:"file"`
	Line    int       `json:"line"`
	Stack   string    `json:"stack,omitempty"`
}

// IsFatal reports whether the record describes a true fatal condition.
func (r *FatalRecord) IsFatal() bool {
	if r == nil {
		return false
	}
	return r.Kind == FatalKindFatal || r.Kind == FatalKindPanic
}
