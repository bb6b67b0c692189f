package harness

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/roach88/snipd/internal/engine"
	"github.com/roach88/snipd/internal/interp"
	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/logging"
	"github.com/roach88/snipd/internal/state"
	"github.com/roach88/snipd/internal/store"
	"github.com/roach88/snipd/internal/testutil"
)

// StepInterval is how far the clock moves before each step.
const StepInterval = time.Minute

// defaultCrashOutput is the crash report a crash step writes when the
// scenario gives none: a runtime fatal inside the interpreter.
const defaultCrashOutput = `fatal error: concurrent map writes

goroutine 1 [running]:
github.com/traefik/yaegi/interp.(*Interpreter).Eval(0xc000132000, {0xc00001e0c0, 0x12})
	/go/pkg/mod/github.com/traefik/yaegi@v0.16.1/interp/interp.go:512 +0x65
main.main()
	/src/cmd/snipd/main.go:12 +0x25
`

// Harness drives one scenario against a real engine.
// Each scenario runs in a fresh temporary database.
type Harness struct {
	store     *store.Store
	backend   state.Backend
	engine    *engine.Engine
	factory   *interp.Factory
	clock     *testutil.FakeClock
	cfg       engine.Config
	crashFile string
	logger    *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Create a temporary database and crash file
//  2. Store the scenario's snippets and initial safe-mode flag
//  3. Start the engine as serve would, recovering from any crash
//  4. Execute steps, advancing the clock before each
//  5. Capture final state and evaluate assertions
func Run(scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "snipd-harness-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	st, err := store.Open(filepath.Join(dir, "harness.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	defer st.Close()

	cfg := engine.DefaultConfig()
	if len(scenario.CrashMarkers) > 0 {
		cfg.CrashMarkers = scenario.CrashMarkers
	}

	h := &Harness{
		store:     st,
		backend:   st.State(),
		factory:   interp.NewFactory(interp.Options{}),
		clock:     testutil.NewFakeClock(testutil.Epoch),
		cfg:       cfg,
		crashFile: filepath.Join(dir, "crash.log"),
		logger:    logging.Discard(),
	}

	ctx := context.Background()
	if err := h.seed(ctx, scenario); err != nil {
		return nil, err
	}
	if err := h.start(ctx); err != nil {
		return nil, err
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		h.clock.Advance(StepInterval)
		if err := h.executeStep(ctx, i+1, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}

	if err := h.captureState(ctx, result); err != nil {
		return nil, err
	}
	evaluateAssertions(result, scenario.Assertions)
	return result, nil
}

func (h *Harness) seed(ctx context.Context, scenario *Scenario) error {
	flag := "0"
	if scenario.SafeMode {
		flag = "1"
	}
	if err := h.backend.Set(ctx, state.KeySafeMode, flag); err != nil {
		return fmt.Errorf("seed safe mode: %w", err)
	}

	now := h.clock.Now()
	for _, sn := range scenario.Snippets {
		if sn.Name == "" {
			sn.Name = sn.ID
		}
		if sn.Priority == 0 {
			sn.Priority = ir.DefaultPriority
		}
		ir.Normalize(&sn)
		sn.CreatedAt = now
		sn.ModifiedAt = now
		if err := h.store.Save(ctx, sn); err != nil {
			return fmt.Errorf("seed snippet %q: %w", sn.ID, err)
		}
	}
	return nil
}

// start builds a new engine over the same store, as a process restart
// would, and runs startup crash recovery.
func (h *Harness) start(ctx context.Context) error {
	eng, err := engine.New(ctx, h.store, engine.Yaegi(h.factory), h.backend,
		engine.WithConfig(h.cfg),
		engine.WithClock(h.clock),
		engine.WithIDGenerator(engine.NewFixedGenerator("clone-1", "clone-2", "clone-3")),
		engine.WithLogger(h.logger),
	)
	if err != nil {
		return fmt.Errorf("start engine: %w", err)
	}
	if err := eng.RecoverCrash(ctx, h.crashFile); err != nil {
		return fmt.Errorf("recover crash: %w", err)
	}
	h.engine = eng
	return nil
}

func (h *Harness) executeStep(ctx context.Context, n int, step Step, result *Result) error {
	switch {
	case step.Request != nil:
		return h.request(ctx, n, step.Request, result)
	case step.Inline != nil:
		return h.inline(ctx, n, step.Inline, result)
	case step.Crash != nil:
		return h.crash(ctx, n, step.Crash, result)
	case step.SafeMode != "":
		return h.safeMode(ctx, n, step.SafeMode, result)
	case step.Recover:
		result.add(TraceEvent{Step: n, Type: StepRecover})
		return h.engine.EmergencyRecover(ctx)
	case step.Restart:
		result.add(TraceEvent{Step: n, Type: StepRestart})
		return h.start(ctx)
	}
	return fmt.Errorf("empty step")
}

func (h *Harness) request(ctx context.Context, n int, req *RequestStep, result *Result) error {
	rc := ir.RequestContext{
		Mode:          ir.ModeFrontend,
		Path:          req.Path,
		Authenticated: req.Authenticated,
		Mobile:        req.Mobile,
	}
	if rc.Path == "" {
		rc.Path = "/"
	}
	if req.Admin {
		rc.Mode = ir.ModeAdmin
	}

	page := h.engine.NewPage(rc)
	if err := page.ScheduleAndRun(ctx); err != nil {
		return err
	}
	head := page.Head(ctx)
	footer := page.Footer(ctx)
	body := page.FilterBody(ctx, req.Body)
	result.Outputs[n] = head + body + footer

	addPageEvents(result, n, StepRequest, page)
	return nil
}

func (h *Harness) inline(ctx context.Context, n int, in *InlineStep, result *Result) error {
	rc := ir.RequestContext{Mode: ir.ModeInline, Path: in.Path}
	if rc.Path == "" {
		rc.Path = "/"
	}
	if in.Admin {
		rc.Mode = ir.ModeAdmin
	}

	page := h.engine.NewPage(rc)
	out, err := page.RunSingle(ctx, in.ID)
	addPageEvents(result, n, StepInline, page)

	ev := TraceEvent{Step: n, Type: StepInline, SnippetID: in.ID, Output: out}
	switch {
	case engine.IsCollision(err):
		ev.Outcome = string(engine.OutcomeBlocked)
	case engine.IsExecution(err):
		ev.Outcome = string(engine.OutcomeFailed)
	case err != nil:
		ev.Outcome = "error"
	}
	if err != nil {
		ev.Detail = err.Error()
	}
	result.add(ev)
	result.Outputs[n] = out
	return nil
}

// crash leaves the marker naming the snippet, writes the crash report and
// restarts the engine.
func (h *Harness) crash(ctx context.Context, n int, c *CrashStep, result *Result) error {
	if err := h.backend.Set(ctx, state.KeyMarker, c.Snippet); err != nil {
		return fmt.Errorf("set marker: %w", err)
	}
	output := c.Output
	if output == "" {
		output = defaultCrashOutput
	}
	if err := os.WriteFile(h.crashFile, []byte(output), 0o644); err != nil {
		return fmt.Errorf("write crash file: %w", err)
	}
	result.add(TraceEvent{Step: n, Type: StepCrash, SnippetID: c.Snippet})
	return h.start(ctx)
}

func (h *Harness) safeMode(ctx context.Context, n int, op string, result *Result) error {
	result.add(TraceEvent{Step: n, Type: StepSafeMode, Outcome: op})
	switch op {
	case "on":
		return h.engine.EnableSafeMode(ctx, true)
	case "off":
		return h.engine.DisableSafeMode(ctx)
	default:
		return h.engine.ToggleSafeMode(ctx)
	}
}

func addPageEvents(result *Result, n int, typ string, page *engine.Page) {
	for _, ev := range page.Events() {
		result.add(TraceEvent{
			Step:      n,
			Type:      typ,
			SnippetID: ev.SnippetID,
			Outcome:   string(ev.Outcome),
			Detail:    ev.Detail,
		})
	}
}

func (h *Harness) captureState(ctx context.Context, result *Result) error {
	result.State.SafeMode = h.engine.IsSafeModeEnabled(ctx)

	snippets, err := h.store.List(ctx)
	if err != nil {
		return fmt.Errorf("capture snippets: %w", err)
	}
	for _, sn := range snippets {
		result.State.Enabled[sn.ID] = sn.Enabled
	}

	entries, err := h.engine.ErrorLog(ctx)
	if err != nil {
		return fmt.Errorf("capture error log: %w", err)
	}
	for _, e := range entries {
		result.State.ErrorLog = append(result.State.ErrorLog, ErrorSummary{SnippetID: e.SnippetID, Count: e.Count})
		result.Messages[e.SnippetID] = e.Message
	}

	marker, err := h.engine.Marker(ctx)
	if err != nil {
		return fmt.Errorf("capture marker: %w", err)
	}
	result.State.Marker = marker
	return nil
}
