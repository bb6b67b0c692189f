package interp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"reflect"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"github.com/roach88/snipd/internal/symbols"
)

// Bridge package identity as seen by fragments.
const (
	BridgePath = "snipd/snippet"
	BridgeName = "snippet"
)

// Hooks the host fires while rendering a page.
const (
	HookHead   = "head"
	HookFooter = "footer"
	HookBody   = "body"
)

// DefaultPackages is the standard library allowlist used when Options
// leaves Packages empty.
var DefaultPackages = []string{
	"bytes",
	"encoding/json",
	"errors",
	"fmt",
	"html",
	"io",
	"math",
	"net/url",
	"regexp",
	"sort",
	"strconv",
	"strings",
	"time",
	"unicode",
	"unicode/utf8",
}

// Options configures new sessions.
type Options struct {
	// Packages lists importable standard library paths.
	Packages []string

	// Reserved names are treated as already declared in every session.
	Reserved []string
}

// Result is what a value-producing evaluation yielded.
type Result struct {
	Output   string // everything the fragment printed
	Value    any    // argument of snippet.Return, if called
	HasValue bool
}

// Text is the explicit value when one was returned, else the output.
func (r Result) Text() string {
	if !r.HasValue {
		return r.Output
	}
	if s, ok := r.Value.(string); ok {
		return s
	}
	if r.Value == nil {
		return ""
	}
	return fmt.Sprint(r.Value)
}

// Completed is false only when the fragment explicitly returned false.
func (r Result) Completed() bool {
	if !r.HasValue {
		return true
	}
	b, ok := r.Value.(bool)
	return !ok || b
}

// Hook is one callback a fragment registered.
type Hook struct {
	Name   string
	Owner  string // snippet id that registered it
	Action func(io.Writer)
	Filter func(string) string
}

// Factory creates sessions with fixed options.
type Factory struct {
	opts    Options
	exports interp.Exports
}

// NewFactory filters the interpreter's stdlib symbols down to the allowed
// packages once, so that creating sessions stays cheap.
func NewFactory(opts Options) *Factory {
	if len(opts.Packages) == 0 {
		opts.Packages = DefaultPackages
	}
	return &Factory{opts: opts, exports: allowedSymbols(opts.Packages)}
}

// Allowed reports whether importPath may be imported by fragments.
func (f *Factory) Allowed(importPath string) bool {
	if importPath == BridgePath {
		return true
	}
	for _, p := range f.opts.Packages {
		if p == importPath {
			return true
		}
	}
	return false
}

// Reserved returns the symbols every session starts with.
func (f *Factory) Reserved() []symbols.Symbol {
	out := []symbols.Symbol{{Class: symbols.ClassVar, Name: BridgeName}}
	for _, name := range f.opts.Reserved {
		out = append(out, symbols.Symbol{Class: symbols.ClassVar, Name: name})
	}
	return out
}

func allowedSymbols(packages []string) interp.Exports {
	allowed := make(map[string]bool, len(packages))
	for _, p := range packages {
		allowed[p] = true
	}
	out := interp.Exports{}
	for key, syms := range stdlib.Symbols {
		// Keys have the form "import/path/name".
		i := strings.LastIndex(key, "/")
		if i < 0 || !allowed[key[:i]] {
			continue
		}
		out[key] = syms
	}
	return out
}

// Session is one interpreter instance plus the hooks and declarations
// accumulated in it. Evaluation is serialized.
type Session struct {
	mu     sync.Mutex
	vm     *interp.Interpreter
	out    *switchWriter
	table  *symbols.Table
	owner  string
	ret    *Result
	hooks  map[string][]Hook
	filter map[string][]Hook
}

// NewSession creates a fresh interpreter.
func (f *Factory) NewSession() (*Session, error) {
	s := &Session{
		out:    &switchWriter{w: io.Discard},
		table:  symbols.NewTable(f.Reserved()...),
		hooks:  make(map[string][]Hook),
		filter: make(map[string][]Hook),
	}
	s.vm = interp.New(interp.Options{Stdout: s.out, Stderr: s.out})
	if err := s.vm.Use(f.exports); err != nil {
		return nil, fmt.Errorf("load packages: %w", err)
	}
	if err := s.vm.Use(s.bridge()); err != nil {
		return nil, fmt.Errorf("load bridge: %w", err)
	}
	return s, nil
}

// Symbols returns the names declared in this session so far.
func (s *Session) Symbols() *symbols.Table {
	return s.table
}

// Register evaluates a fragment for its side effects. Output is discarded.
func (s *Session) Register(ctx context.Context, owner, src string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.eval(ctx, owner, src, io.Discard)
	return err
}

// Produce evaluates a fragment and returns what it printed and what it
// passed to snippet.Return.
func (s *Session) Produce(ctx context.Context, owner, src string) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var buf bytes.Buffer
	res, err := s.eval(ctx, owner, src, &buf)
	if err != nil {
		return Result{}, err
	}
	res.Output = buf.String()
	return res, nil
}

func (s *Session) eval(ctx context.Context, owner, src string, w io.Writer) (res Result, err error) {
	prev := s.out.swap(w)
	s.owner = owner
	s.ret = &res
	defer func() {
		s.out.swap(prev)
		s.owner = ""
		s.ret = nil
	}()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	// Evaluation is never interrupted once started; the context only
	// stops fragments that have not begun.
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	for _, piece := range symbols.Split(src) {
		if _, err := s.vm.Eval(piece); err != nil {
			return Result{}, err
		}
		// Names stay defined in the interpreter even if a later piece fails.
		s.table.Add(symbols.Scan(piece)...)
	}
	return res, nil
}

// Actions returns the callbacks registered for hook, in registration order.
func (s *Session) Actions(hook string) []Hook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Hook(nil), s.hooks[hook]...)
}

// Filters returns the filters registered for hook, in registration order.
func (s *Session) Filters(hook string) []Hook {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Hook(nil), s.filter[hook]...)
}

// CallAction runs an action callback writing to w. A panic in the callback
// is returned as an error.
func (s *Session) CallAction(h Hook, w io.Writer) (err error) {
	if h.Action == nil {
		return nil
	}
	prev := s.out.swap(w)
	defer s.out.swap(prev)
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	h.Action(w)
	return nil
}

// CallFilter runs a filter callback. On panic the input is returned
// unchanged together with the error.
func (s *Session) CallFilter(h Hook, v string) (out string, err error) {
	if h.Filter == nil {
		return v, nil
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = v, fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Filter(v), nil
}

// bridge builds the per-session exports of the snippet package.
func (s *Session) bridge() interp.Exports {
	addAction := func(hook string, fn func(io.Writer)) {
		s.hooks[hook] = append(s.hooks[hook], Hook{Name: hook, Owner: s.owner, Action: fn})
	}
	addFilter := func(hook string, fn func(string) string) {
		s.filter[hook] = append(s.filter[hook], Hook{Name: hook, Owner: s.owner, Filter: fn})
	}
	removeAction := func(hook string) {
		delete(s.hooks, hook)
	}
	removeFilter := func(hook string) {
		delete(s.filter, hook)
	}
	doAction := func(hook string) {
		w := s.out.current()
		for _, h := range append([]Hook(nil), s.hooks[hook]...) {
			h.Action(w)
		}
	}
	applyFilters := func(hook, v string) string {
		for _, h := range append([]Hook(nil), s.filter[hook]...) {
			v = h.Filter(v)
		}
		return v
	}
	ret := func(v any) {
		if s.ret != nil {
			s.ret.Value = v
			s.ret.HasValue = true
		}
	}

	return interp.Exports{
		BridgePath + "/" + BridgeName: {
			"AddAction":    reflect.ValueOf(addAction),
			"AddFilter":    reflect.ValueOf(addFilter),
			"RemoveAction": reflect.ValueOf(removeAction),
			"RemoveFilter": reflect.ValueOf(removeFilter),
			"DoAction":     reflect.ValueOf(doAction),
			"ApplyFilters": reflect.ValueOf(applyFilters),
			"Return":       reflect.ValueOf(ret),
		},
	}
}

// switchWriter lets a long-lived interpreter print to whichever writer the
// current evaluation wants.
type switchWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (sw *switchWriter) Write(p []byte) (int, error) {
	sw.mu.Lock()
	w := sw.w
	sw.mu.Unlock()
	return w.Write(p)
}

func (sw *switchWriter) swap(w io.Writer) io.Writer {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	prev := sw.w
	sw.w = w
	return prev
}

func (sw *switchWriter) current() io.Writer {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.w
}
