package ir

import "time"

// Kind identifies what a snippet's content is and how it is delivered.
type Kind string

const (
	KindCode   Kind = "code"   // server-side Go source, evaluated in-process
	KindCSS    Kind = "css"    // stylesheet, emitted into the page head
	KindJS     Kind = "js"     // script, emitted into the page footer
	KindHTML   Kind = "html"   // markup, emitted into the page footer
	KindHeader Kind = "header" // markup, emitted into the page head
	KindFooter Kind = "footer" // markup, emitted into the page footer
)

// ValidKinds lists every accepted snippet kind.
var ValidKinds = map[Kind]bool{
	KindCode:   true,
	KindCSS:    true,
	KindJS:     true,
	KindHTML:   true,
	KindHeader: true,
	KindFooter: true,
}

// IsCode reports whether the kind is executed rather than emitted.
func (k Kind) IsCode() bool {
	return k == KindCode
}

// Scope controls where a snippet may run.
type Scope string

const (
	ScopeEverywhere Scope = "everywhere"
	ScopeFrontend   Scope = "frontend"
	ScopeAdmin      Scope = "admin"
	ScopeInline     Scope = "inline" // only when referenced by id
)

// ValidScopes lists every accepted scope.
var ValidScopes = map[Scope]bool{
	ScopeEverywhere: true,
	ScopeFrontend:   true,
	ScopeAdmin:      true,
	ScopeInline:     true,
}

// DefaultPriority is assigned to snippets created without an explicit priority.
const DefaultPriority = 10

// Login filter values for Conditions.Login.
const (
	LoginAny       = "any"
	LoginLoggedIn  = "logged_in"
	LoginLoggedOut = "logged_out"
)

// Device filter values for Conditions.Device.
const (
	DeviceAny     = "any"
	DeviceDesktop = "desktop"
	DeviceMobile  = "mobile"
)

// Conditions narrows when a snippet runs. The zero value matches every request.
type Conditions struct {
	Login       string   `json:"login,omitempty" yaml:"login,omitempty"`
	Device      string   `json:"device,omitempty" yaml:"device,omitempty"`
	URLPatterns []string `json:"url_patterns,omitempty" yaml:"url_patterns,omitempty"`
}

// IsZero reports whether no condition field is set.
func (c Conditions) IsZero() bool {
	return c.Login == "" && c.Device == "" && len(c.URLPatterns) == 0
}

// Snippet is a stored, operator-authored fragment with placement metadata.
type Snippet struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Kind        Kind       `json:"kind" yaml:"kind"`
	Scope       Scope      `json:"scope" yaml:"scope"`
	Enabled     bool       `json:"enabled" yaml:"enabled"`
	Priority    int        `json:"priority" yaml:"priority"`
	RunOnce     bool       `json:"run_once" yaml:"run_once"`
	Conditions  Conditions `json:"conditions" yaml:"conditions"`
	Content     string     `json:"content" yaml:"content"`
	Category    string     `json:"category,omitempty" yaml:"category,omitempty"`
	Tags        []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	CreatedAt   time.Time  `json:"created_at" yaml:"created_at"`
	ModifiedAt  time.Time  `json:"modified_at" yaml:"modified_at"`
}

// Revision is a content snapshot taken before a snippet's content changed.
type Revision struct {
	SnippetID   string    `json:"snippet_id"`
	Name        string    `json:"name"`
	Content     string    `json:"content"`
	ContentHash string    `json:"content_hash"`
	ModifiedAt  time.Time `json:"modified_at"`
}

// SystemLogID is the error log key used for engine-level messages.
const SystemLogID = "system"

// ErrorLogEntry is one row per distinct failing snippet.
type ErrorLogEntry struct {
	SnippetID string    `json:"snippet_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	URL       string    `json:"url"`
	Count     int       `json:"count"`
}
