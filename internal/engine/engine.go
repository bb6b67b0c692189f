package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/sanitize"
	"github.com/roach88/snipd/internal/state"
)

// SnippetStore is the persistence the engine needs.
// Implemented by *store.Store.
type SnippetStore interface {
	List(ctx context.Context) ([]ir.Snippet, error)
	Get(ctx context.Context, id string) (ir.Snippet, error)
	Save(ctx context.Context, sn ir.Snippet) error
	Delete(ctx context.Context, id string) error
	SetEnabled(ctx context.Context, id string, enabled bool, now time.Time) error
	DisableAll(ctx context.Context, now time.Time) error
	AppendRevision(ctx context.Context, rev ir.Revision, limit int) (bool, error)
	Revisions(ctx context.Context, id string) ([]ir.Revision, error)
	LogError(ctx context.Context, entry ir.ErrorLogEntry, limit int) error
	ErrorLog(ctx context.Context) ([]ir.ErrorLogEntry, error)
	ClearErrorLog(ctx context.Context) error
}

// Sanitizer cleans non-code content before it is emitted.
type Sanitizer func(kind ir.Kind, text string) string

// Defaults for Config.
const (
	DefaultErrorLogSize        = 20
	DefaultRevisionLimit       = 15
	DefaultSafeModeLogInterval = time.Hour
)

// DefaultCrashMarkers identify failures raised inside the execution
// machinery. They are matched case-insensitively against the message and
// file of a fatal record.
var DefaultCrashMarkers = []string{
	"github.com/traefik/yaegi",
	"snipd/internal/interp",
	"snippet_exec_",
	"snippet_hook_",
	"snipd/snippet",
}

// Config holds engine tunables.
type Config struct {
	ErrorLogSize        int
	RevisionLimit       int
	SafeModeLogInterval time.Duration
	CrashMarkers        []string
	SharedState         bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ErrorLogSize:        DefaultErrorLogSize,
		RevisionLimit:       DefaultRevisionLimit,
		SafeModeLogInterval: DefaultSafeModeLogInterval,
		CrashMarkers:        append([]string(nil), DefaultCrashMarkers...),
	}
}

// Engine runs snippets for requests and guards the process against them.
//
// Thread-safety model:
//   - All methods are safe for concurrent use.
//   - A Page belongs to one request and must not be shared.
type Engine struct {
	store    SnippetStore
	interp   Interpreter
	backend  state.Backend
	safeMode *state.SafeMode
	marker   *state.Marker
	clock    Clock
	ids      IDGenerator
	sanitize Sanitizer
	cfg      Config
	logger   *slog.Logger
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithConfig replaces the default configuration. Zero fields fall back to
// their defaults.
func WithConfig(cfg Config) Option {
	return func(e *Engine) {
		def := DefaultConfig()
		if cfg.ErrorLogSize <= 0 {
			cfg.ErrorLogSize = def.ErrorLogSize
		}
		if cfg.RevisionLimit <= 0 {
			cfg.RevisionLimit = def.RevisionLimit
		}
		if cfg.SafeModeLogInterval <= 0 {
			cfg.SafeModeLogInterval = def.SafeModeLogInterval
		}
		if len(cfg.CrashMarkers) == 0 {
			cfg.CrashMarkers = def.CrashMarkers
		}
		e.cfg = cfg
	}
}

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithIDGenerator sets the snippet id source.
func WithIDGenerator(g IDGenerator) Option {
	return func(e *Engine) {
		e.ids = g
	}
}

// WithSanitizer replaces the default sanitizer.
func WithSanitizer(s Sanitizer) Option {
	return func(e *Engine) {
		e.sanitize = s
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an Engine and loads the process-wide state from backend.
//
// On the very first start (no recorded safe-mode value) safe mode is on.
func New(ctx context.Context, s SnippetStore, in Interpreter, backend state.Backend, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:    s,
		interp:   in,
		backend:  backend,
		clock:    SystemClock{},
		ids:      UUIDv7Generator{},
		sanitize: sanitize.Content,
		cfg:      DefaultConfig(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	var err error
	e.safeMode, err = state.NewSafeMode(ctx, backend, e.cfg.SharedState)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.marker, err = state.NewMarker(ctx, backend, e.cfg.SharedState)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return e, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Now reads the engine clock.
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}

// IsSafeModeEnabled reports whether all snippet execution is suspended.
func (e *Engine) IsSafeModeEnabled(ctx context.Context) bool {
	return e.safeMode.Enabled(ctx)
}

// DisableSnippet clears a snippet's enabled flag.
func (e *Engine) DisableSnippet(ctx context.Context, id string) error {
	return e.store.SetEnabled(ctx, id, false, e.clock.Now())
}

// EnableSnippet sets a snippet's enabled flag.
func (e *Engine) EnableSnippet(ctx context.Context, id string) error {
	return e.store.SetEnabled(ctx, id, true, e.clock.Now())
}

// ErrorLog returns the error log, most recent first.
func (e *Engine) ErrorLog(ctx context.Context) ([]ir.ErrorLogEntry, error) {
	return e.store.ErrorLog(ctx)
}

// ClearErrorLog empties the error log.
func (e *Engine) ClearErrorLog(ctx context.Context) error {
	return e.store.ClearErrorLog(ctx)
}

// Marker returns the id currently recorded as executing.
func (e *Engine) Marker(ctx context.Context) (string, error) {
	return e.marker.Current(ctx)
}

// logError writes an error log entry and mirrors it to the logger.
// Store failures are logged, never returned: reporting must not break
// the request being served.
func (e *Engine) logError(ctx context.Context, id, message, url string) {
	if id == "" {
		id = "unknown"
	}
	e.logger.Warn("snippet error", "snippet", id, "message", message, "url", url)

	entry := ir.ErrorLogEntry{
		SnippetID: id,
		Message:   message,
		Timestamp: e.clock.Now(),
		URL:       url,
	}
	if err := e.store.LogError(ctx, entry, e.cfg.ErrorLogSize); err != nil {
		e.logger.Error("failed to write error log", "snippet", id, "error", err)
	}
}

// disable clears the enabled flag, logging failures.
func (e *Engine) disable(ctx context.Context, id string) {
	if id == "" {
		return
	}
	if err := e.DisableSnippet(ctx, id); err != nil {
		e.logger.Error("failed to disable snippet", "snippet", id, "error", err)
	}
}
