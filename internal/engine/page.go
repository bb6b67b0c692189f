package engine

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/roach88/snipd/internal/interp"
	"github.com/roach88/snipd/internal/ir"
)

// Outcome records what happened to one snippet during a pass.
type Outcome string

const (
	OutcomeEmitted   Outcome = "emitted"   // non-code content queued for the page
	OutcomeRan       Outcome = "ran"       // code completed
	OutcomeStopped   Outcome = "stopped"   // code returned false
	OutcomeBlocked   Outcome = "blocked"   // collision preflight refused it
	OutcomeFailed    Outcome = "failed"    // ordinary execution error
	OutcomeDisabled  Outcome = "disabled"  // run-once flag cleared
	OutcomeCallback  Outcome = "callback"  // hook callback fired
	OutcomeUnhandled Outcome = "unhandled" // interpreter could not start
)

// Event is one entry in a page's execution trace.
type Event struct {
	SnippetID string  `json:"snippet_id"`
	Outcome   Outcome `json:"outcome"`
	Detail    string  `json:"detail,omitempty"`
}

// Page collects what one request's snippets contribute to the response.
// A Page is not safe for concurrent use.
type Page struct {
	eng    *Engine
	rc     ir.RequestContext
	sess   Session
	head   []string
	footer []string
	events []Event
}

// NewPage starts an empty page for rc. Nothing runs until ScheduleAndRun
// or RunSingle is called on it.
func (e *Engine) NewPage(rc ir.RequestContext) *Page {
	return &Page{eng: e, rc: rc}
}

// ScheduleAndRun runs every eligible snippet for rc in order and returns
// the page they produced. In safe mode nothing runs and the page is empty.
func (e *Engine) ScheduleAndRun(ctx context.Context, rc ir.RequestContext) (*Page, error) {
	p := e.NewPage(rc)
	if err := p.ScheduleAndRun(ctx); err != nil {
		return p, err
	}
	return p, nil
}

// RunSingle runs one snippet by id, as an inline reference does, and
// returns its output.
func (e *Engine) RunSingle(ctx context.Context, rc ir.RequestContext, id string) (string, error) {
	return e.NewPage(rc).RunSingle(ctx, id)
}

// ScheduleAndRun runs the scheduling pass for this page's request.
func (p *Page) ScheduleAndRun(ctx context.Context) error {
	e := p.eng
	if e.IsSafeModeEnabled(ctx) {
		return nil
	}

	all, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("schedule: %w", err)
	}

	for _, sn := range Schedule(all, p.rc, false) {
		// A crash attributed by another request trips the breaker mid-pass.
		if e.IsSafeModeEnabled(ctx) {
			return nil
		}
		p.handle(ctx, sn)
	}
	return nil
}

func (p *Page) handle(ctx context.Context, sn ir.Snippet) {
	if !sn.Kind.IsCode() {
		p.emit(sn)
		p.finish(ctx, sn)
		return
	}

	sess, err := p.session()
	if err != nil {
		p.eng.logger.Error("interpreter unavailable", "snippet", sn.ID, "error", err)
		p.record(sn.ID, OutcomeUnhandled, err.Error())
		return
	}

	res, err := p.eng.runCode(ctx, sess, sn, p.rc.Path)
	switch {
	case IsCollision(err):
		p.record(sn.ID, OutcomeBlocked, err.Error())
		return
	case err != nil:
		p.record(sn.ID, OutcomeFailed, err.Error())
		return
	case !res.Completed():
		p.record(sn.ID, OutcomeStopped, "")
		return
	}

	// Output produced during a page pass has nowhere to go; hooks are
	// how code contributes to the page.
	if out := res.Text(); out != "" {
		p.eng.logger.Debug("discarding snippet output", "snippet", sn.ID, "bytes", len(out))
	}
	p.record(sn.ID, OutcomeRan, "")
	p.finish(ctx, sn)
}

// finish applies run-once.
func (p *Page) finish(ctx context.Context, sn ir.Snippet) {
	if !sn.RunOnce {
		return
	}
	p.eng.disable(ctx, sn.ID)
	p.record(sn.ID, OutcomeDisabled, "")
}

func (p *Page) emit(sn ir.Snippet) {
	body := p.eng.sanitize(sn.Kind, sn.Content)
	if strings.TrimSpace(body) == "" {
		p.record(sn.ID, OutcomeEmitted, "empty")
		return
	}

	switch sn.Kind {
	case ir.KindCSS:
		body = "<style>" + body + "</style>"
	case ir.KindJS:
		body = "<script>" + body + "</script>"
	}
	block := fmt.Sprintf("<!-- snipd %s: %s -->\n%s\n<!-- /snipd %s -->",
		sn.Kind, commentSafe(sn.Name), body, sn.Kind)

	if sn.Kind == ir.KindCSS || sn.Kind == ir.KindHeader {
		p.head = append(p.head, block)
	} else {
		p.footer = append(p.footer, block)
	}
	p.record(sn.ID, OutcomeEmitted, "")
}

// RunSingle runs one snippet by id in this page's session.
//
// Safe mode, a disabled snippet, or unmet conditions yield "" without
// error. Scope is not checked: referencing a snippet by id is allowed for
// every scope. Code is never run inline on administrative surfaces.
func (p *Page) RunSingle(ctx context.Context, id string) (string, error) {
	e := p.eng
	if e.IsSafeModeEnabled(ctx) {
		return "", nil
	}

	sn, err := e.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !sn.Enabled || !Matches(sn.Conditions, p.rc) {
		return "", nil
	}

	var out string
	if sn.Kind.IsCode() {
		if p.rc.IsAdmin() {
			return "", nil
		}
		sess, err := p.session()
		if err != nil {
			return "", err
		}
		res, err := e.runCode(ctx, sess, sn, p.rc.Path)
		if err != nil {
			return "", err
		}
		if !res.Completed() {
			return "", nil
		}
		out = res.Text()
		p.record(sn.ID, OutcomeRan, "inline")
	} else {
		out = e.sanitize(sn.Kind, sn.Content)
		switch sn.Kind {
		case ir.KindCSS:
			out = "<style>" + out + "</style>"
		case ir.KindJS:
			out = "<script>" + out + "</script>"
		}
		p.record(sn.ID, OutcomeEmitted, "inline")
	}

	if sn.RunOnce {
		e.disable(ctx, sn.ID)
		p.record(sn.ID, OutcomeDisabled, "")
	}
	return out, nil
}

// Head returns the markup to insert before </head>: emitted fragments,
// then whatever "head" actions print.
func (p *Page) Head(ctx context.Context) string {
	return p.region(ctx, p.head, interp.HookHead)
}

// Footer returns the markup to insert before </body>.
func (p *Page) Footer(ctx context.Context) string {
	return p.region(ctx, p.footer, interp.HookFooter)
}

func (p *Page) region(ctx context.Context, blocks []string, hook string) string {
	var b strings.Builder
	for _, block := range blocks {
		b.WriteString("\n")
		b.WriteString(block)
	}
	if p.sess == nil || p.eng.IsSafeModeEnabled(ctx) {
		return b.String()
	}

	for _, h := range p.sess.Actions(hook) {
		var callErr error
		if err := p.eng.withMarker(ctx, h.Owner, func() {
			callErr = p.sess.CallAction(h, &b)
		}); err != nil {
			continue
		}
		if callErr != nil {
			p.eng.logError(ctx, h.Owner, "Hook callback failed: "+callErr.Error(), p.rc.Path)
			p.record(h.Owner, OutcomeFailed, hook)
			continue
		}
		p.record(h.Owner, OutcomeCallback, hook)
	}
	return b.String()
}

// FilterBody passes the response body through every "body" filter.
func (p *Page) FilterBody(ctx context.Context, body string) string {
	if p.sess == nil || p.eng.IsSafeModeEnabled(ctx) {
		return body
	}
	for _, h := range p.sess.Filters(interp.HookBody) {
		var (
			out     string
			callErr error
		)
		if err := p.eng.withMarker(ctx, h.Owner, func() {
			out, callErr = p.sess.CallFilter(h, body)
		}); err != nil {
			continue
		}
		if callErr != nil {
			p.eng.logError(ctx, h.Owner, "Hook callback failed: "+callErr.Error(), p.rc.Path)
			p.record(h.Owner, OutcomeFailed, interp.HookBody)
			continue
		}
		body = out
		p.record(h.Owner, OutcomeCallback, interp.HookBody)
	}
	return body
}

// Events returns the execution trace so far.
func (p *Page) Events() []Event {
	return append([]Event(nil), p.events...)
}

// Empty reports whether the page contributes nothing at all.
func (p *Page) Empty() bool {
	if len(p.head) > 0 || len(p.footer) > 0 {
		return false
	}
	if p.sess == nil {
		return true
	}
	return len(p.sess.Actions(interp.HookHead)) == 0 &&
		len(p.sess.Actions(interp.HookFooter)) == 0 &&
		len(p.sess.Filters(interp.HookBody)) == 0
}

func (p *Page) session() (Session, error) {
	if p.sess != nil {
		return p.sess, nil
	}
	sess, err := p.eng.interp.NewSession()
	if err != nil {
		return nil, fmt.Errorf("start interpreter: %w", err)
	}
	p.sess = sess
	return sess, nil
}

func (p *Page) record(id string, o Outcome, detail string) {
	p.events = append(p.events, Event{SnippetID: id, Outcome: o, Detail: detail})
}

// commentSafe keeps a snippet name from terminating the HTML comment it is
// written into.
func commentSafe(name string) string {
	return strings.ReplaceAll(html.EscapeString(name), "--", "- -")
}
