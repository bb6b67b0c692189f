package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/snipd/internal/interp"
	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/state"
	"github.com/roach88/snipd/internal/store"
	"github.com/roach88/snipd/internal/testutil"
)

// scripted adapts testutil.ScriptedInterpreter to Interpreter.
type scripted struct {
	*testutil.ScriptedInterpreter
}

func (s scripted) NewSession() (Session, error) {
	return s.ScriptedInterpreter.NewSession(), nil
}

type testEnv struct {
	eng     *Engine
	store   *store.Store
	backend *state.MemoryBackend
	clock   *testutil.FakeClock
	interp  *testutil.ScriptedInterpreter
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(dir + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

// newTestEnv builds an engine with safe mode off, a scripted interpreter
// and a fake clock.
func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	ctx := context.Background()

	env := &testEnv{
		store:   setupTestStore(t),
		backend: state.NewMemoryBackend(),
		clock:   testutil.NewFakeClock(testutil.Epoch),
		interp:  testutil.NewScriptedInterpreter(interp.BridgeName),
	}
	require.NoError(t, env.backend.Set(ctx, state.KeySafeMode, "0"))

	all := append([]Option{
		WithClock(env.clock),
		WithIDGenerator(NewFixedGenerator("id-1", "id-2", "id-3", "id-4", "id-5")),
	}, opts...)
	eng, err := New(ctx, env.store, scripted{env.interp}, env.backend, all...)
	require.NoError(t, err)
	env.eng = eng
	return env
}

// newYaegiEnv is newTestEnv with the real interpreter.
func newYaegiEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	env := &testEnv{
		store:   setupTestStore(t),
		backend: state.NewMemoryBackend(),
		clock:   testutil.NewFakeClock(testutil.Epoch),
	}
	require.NoError(t, env.backend.Set(ctx, state.KeySafeMode, "0"))

	eng, err := New(ctx, env.store, Yaegi(interp.NewFactory(interp.Options{})), env.backend,
		WithClock(env.clock))
	require.NoError(t, err)
	env.eng = eng
	return env
}

// put stores a snippet directly, bypassing engine validation.
func (env *testEnv) put(t *testing.T, sn ir.Snippet) ir.Snippet {
	t.Helper()
	if sn.Name == "" {
		sn.Name = sn.ID
	}
	if sn.Kind == "" {
		sn.Kind = ir.KindCode
	}
	if sn.Scope == "" {
		sn.Scope = ir.ScopeEverywhere
	}
	sn.CreatedAt = env.clock.Now()
	sn.ModifiedAt = env.clock.Now()
	require.NoError(t, env.store.Save(context.Background(), sn))
	return sn
}

func (env *testEnv) get(t *testing.T, id string) ir.Snippet {
	t.Helper()
	sn, err := env.store.Get(context.Background(), id)
	require.NoError(t, err)
	return sn
}

func (env *testEnv) errorLog(t *testing.T) []ir.ErrorLogEntry {
	t.Helper()
	log, err := env.eng.ErrorLog(context.Background())
	require.NoError(t, err)
	return log
}

func frontend(path string) ir.RequestContext {
	return ir.RequestContext{Mode: ir.ModeFrontend, Path: path}
}

func outcomes(events []Event) []string {
	out := make([]string, len(events))
	for i, ev := range events {
		out[i] = ev.SnippetID + ":" + string(ev.Outcome)
	}
	return out
}
