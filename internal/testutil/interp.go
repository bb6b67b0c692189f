package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/roach88/snipd/internal/interp"
	"github.com/roach88/snipd/internal/symbols"
)

// Script is what a scripted fragment does when evaluated.
type Script struct {
	// Run is called with the owning snippet id. It may panic to simulate
	// a failure that escapes the interpreter. Nil means success.
	Run func(owner string) (interp.Result, error)

	// Actions and Filters are registered for the owner on success.
	Actions map[string]func(io.Writer)
	Filters map[string]func(string) string
}

// Call records one evaluation.
type Call struct {
	Owner    string
	Register bool
}

// ScriptedInterpreter stands in for the Go interpreter. Fragments are
// looked up by their exact content; unknown content fails to evaluate.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type ScriptedInterpreter struct {
	mu       sync.Mutex
	scripts  map[string]Script
	invalid  map[string]error
	reserved []symbols.Symbol
	calls    []Call
	sessions int
}

// NewScriptedInterpreter creates an interpreter whose sessions reserve the
// given names.
func NewScriptedInterpreter(reserved ...string) *ScriptedInterpreter {
	return &ScriptedInterpreter{
		scripts:  make(map[string]Script),
		invalid:  make(map[string]error),
		reserved: reservedSymbols(reserved),
	}
}

func reservedSymbols(names []string) []symbols.Symbol {
	out := make([]symbols.Symbol, len(names))
	for i, n := range names {
		out[i] = symbols.Symbol{Class: symbols.ClassVar, Name: n}
	}
	return out
}

// On sets the script for content.
func (si *ScriptedInterpreter) On(content string, s Script) *ScriptedInterpreter {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.scripts[content] = s
	return si
}

// Reject makes Validate fail for content.
func (si *ScriptedInterpreter) Reject(content string, err error) *ScriptedInterpreter {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.invalid[content] = err
	return si
}

// Validate fails only for content passed to Reject.
func (si *ScriptedInterpreter) Validate(src string) error {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.invalid[src]
}

// NewSession starts a session with a fresh symbol table.
func (si *ScriptedInterpreter) NewSession() *ScriptedSession {
	si.mu.Lock()
	si.sessions++
	si.mu.Unlock()
	return &ScriptedSession{
		parent:  si,
		symbols: symbols.NewTable(si.reserved...),
	}
}

// Calls returns every evaluation so far, in order.
func (si *ScriptedInterpreter) Calls() []Call {
	si.mu.Lock()
	defer si.mu.Unlock()
	return append([]Call(nil), si.calls...)
}

// Sessions returns how many sessions were started.
func (si *ScriptedInterpreter) Sessions() int {
	si.mu.Lock()
	defer si.mu.Unlock()
	return si.sessions
}

func (si *ScriptedInterpreter) lookup(owner, src string, register bool) (Script, bool) {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.calls = append(si.calls, Call{Owner: owner, Register: register})
	s, ok := si.scripts[src]
	return s, ok
}

// ScriptedSession is one scripted interpreter session.
type ScriptedSession struct {
	parent  *ScriptedInterpreter
	symbols *symbols.Table
	actions []interp.Hook
	filters []interp.Hook
}

// Symbols returns the session's symbol table.
func (s *ScriptedSession) Symbols() *symbols.Table {
	return s.symbols
}

// Register evaluates src for its hooks.
func (s *ScriptedSession) Register(ctx context.Context, owner, src string) error {
	_, err := s.eval(ctx, owner, src, true)
	return err
}

// Produce evaluates src for its value.
func (s *ScriptedSession) Produce(ctx context.Context, owner, src string) (interp.Result, error) {
	return s.eval(ctx, owner, src, false)
}

func (s *ScriptedSession) eval(ctx context.Context, owner, src string, register bool) (interp.Result, error) {
	if err := ctx.Err(); err != nil {
		return interp.Result{}, err
	}
	script, ok := s.parent.lookup(owner, src, register)
	if !ok {
		return interp.Result{}, fmt.Errorf("no script for %q", src)
	}

	var res interp.Result
	if script.Run != nil {
		var err error
		if res, err = script.Run(owner); err != nil {
			return interp.Result{}, err
		}
	}

	for name, fn := range script.Actions {
		s.actions = append(s.actions, interp.Hook{Name: name, Owner: owner, Action: fn})
	}
	for name, fn := range script.Filters {
		s.filters = append(s.filters, interp.Hook{Name: name, Owner: owner, Filter: fn})
	}
	s.symbols.Add(symbols.Scan(src)...)
	return res, nil
}

// Actions returns the actions registered for hook.
func (s *ScriptedSession) Actions(hook string) []interp.Hook {
	return pick(s.actions, hook)
}

// Filters returns the filters registered for hook.
func (s *ScriptedSession) Filters(hook string) []interp.Hook {
	return pick(s.filters, hook)
}

// CallAction runs an action. Panics are not recovered.
func (s *ScriptedSession) CallAction(h interp.Hook, w io.Writer) error {
	if h.Action == nil {
		return errors.New("not an action")
	}
	h.Action(w)
	return nil
}

// CallFilter runs a filter. Panics are not recovered.
func (s *ScriptedSession) CallFilter(h interp.Hook, v string) (string, error) {
	if h.Filter == nil {
		return v, errors.New("not a filter")
	}
	return h.Filter(v), nil
}

func pick(hooks []interp.Hook, name string) []interp.Hook {
	var out []interp.Hook
	for _, h := range hooks {
		if h.Name == name {
			out = append(out, h)
		}
	}
	return out
}
