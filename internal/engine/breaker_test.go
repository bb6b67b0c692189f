package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/state"
)

func TestNew_FirstActivationStartsInSafeMode(t *testing.T) {
	ctx := context.Background()
	backend := state.NewMemoryBackend()
	s := setupTestStore(t)

	eng, err := New(ctx, s, scripted{nil}, backend)
	require.NoError(t, err)
	assert.True(t, eng.IsSafeModeEnabled(ctx))

	v, ok, err := backend.Get(ctx, state.KeySafeMode)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestInspect_SimulatedFatalCrash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.put(t, ir.Snippet{ID: "X", Content: "x", Enabled: true})
	env.put(t, ir.Snippet{ID: "Y", Content: "y", Enabled: true})
	require.NoError(t, env.backend.Set(ctx, state.KeyMarker, "X"))
	env.eng = mustReload(t, env)

	rec := &ir.FatalRecord{
		Kind:    ir.FatalKindFatal,
		Message: "runtime error: invalid memory address or nil pointer dereference",
		File:    "/go/pkg/mod/github.com/traefik/yaegi@v0.16.1/interp/run.go",
		Line:    193,
	}
	require.NoError(t, env.eng.Inspect(ctx, rec))

	assert.True(t, env.eng.IsSafeModeEnabled(ctx))
	assert.False(t, env.get(t, "X").Enabled)
	assert.False(t, env.get(t, "Y").Enabled, "safe mode disables every snippet")

	var xEntries []ir.ErrorLogEntry
	for _, e := range env.errorLog(t) {
		if e.SnippetID == "X" {
			xEntries = append(xEntries, e)
		}
	}
	require.Len(t, xEntries, 1)
	assert.Equal(t,
		"Fatal error: runtime error: invalid memory address or nil pointer dereference in /go/pkg/mod/github.com/traefik/yaegi@v0.16.1/interp/run.go on line 193",
		xEntries[0].Message)

	marker, err := env.eng.Marker(ctx)
	require.NoError(t, err)
	assert.Empty(t, marker)
}

func TestInspect_IgnoresNonFatalAndUnrelated(t *testing.T) {
	tests := []struct {
		name string
		rec  *ir.FatalRecord
	}{
		{"nil record", nil},
		{"warning", &ir.FatalRecord{Kind: ir.FatalKindWarning, Message: "snippet_exec_ deprecated", File: "snipd/snippet"}},
		{"notice", &ir.FatalRecord{Kind: ir.FatalKindNotice, File: "github.com/traefik/yaegi/interp/run.go"}},
		{"unrelated fatal", &ir.FatalRecord{Kind: ir.FatalKindFatal, Message: "out of memory", File: "/usr/lib/go/src/runtime/malloc.go"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			env.put(t, ir.Snippet{ID: "X", Content: "x", Enabled: true})
			require.NoError(t, env.backend.Set(ctx, state.KeyMarker, "X"))
			env.eng = mustReload(t, env)

			require.NoError(t, env.eng.Inspect(ctx, tt.rec))

			assert.False(t, env.eng.IsSafeModeEnabled(ctx))
			assert.True(t, env.get(t, "X").Enabled)
			assert.Empty(t, env.errorLog(t))
			marker, err := env.eng.Marker(ctx)
			require.NoError(t, err)
			assert.Equal(t, "X", marker)
		})
	}
}

func TestInspect_MarkerMatchIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	rec := &ir.FatalRecord{Kind: ir.FatalKindPanic, Message: "boom in SNIPPET_HOOK_footer", File: "main.go", Line: 1}
	require.NoError(t, env.eng.Inspect(ctx, rec))
	assert.True(t, env.eng.IsSafeModeEnabled(ctx))
}

func TestInspect_EmptyMarkerStillTripsBreaker(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.put(t, ir.Snippet{ID: "X", Content: "x", Enabled: true})

	rec := &ir.FatalRecord{Kind: ir.FatalKindFatal, Message: "fault", File: "snipd/internal/interp/session.go"}
	require.NoError(t, env.eng.Inspect(ctx, rec))

	assert.True(t, env.eng.IsSafeModeEnabled(ctx))
	log := env.errorLog(t)
	require.Len(t, log, 1)
	assert.Equal(t, ir.SystemLogID, log[0].SnippetID)
}

func TestInspect_ConfiguredMarkers(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CrashMarkers = []string{"my-host/plugins"}
	env := newTestEnv(t, WithConfig(cfg))
	ctx := context.Background()

	rec := &ir.FatalRecord{Kind: ir.FatalKindFatal, File: "github.com/traefik/yaegi/interp/run.go"}
	require.NoError(t, env.eng.Inspect(ctx, rec))
	assert.False(t, env.eng.IsSafeModeEnabled(ctx))

	rec = &ir.FatalRecord{Kind: ir.FatalKindFatal, File: "/src/my-host/plugins/load.go"}
	require.NoError(t, env.eng.Inspect(ctx, rec))
	assert.True(t, env.eng.IsSafeModeEnabled(ctx))
}

func TestEnableSafeMode_LogSuppression(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	systemCount := func() int {
		for _, e := range env.errorLog(t) {
			if e.SnippetID == ir.SystemLogID {
				return e.Count
			}
		}
		return 0
	}

	require.NoError(t, env.eng.EnableSafeMode(ctx, true))
	assert.Equal(t, 1, systemCount())

	// Toggling off logs its own line under the same key.
	require.NoError(t, env.eng.ToggleSafeMode(ctx))
	assert.Equal(t, 2, systemCount())

	env.clock.Advance(30 * time.Minute)
	require.NoError(t, env.eng.EnableSafeMode(ctx, true))
	assert.Equal(t, 2, systemCount(), "suppressed within the hour")

	require.NoError(t, env.eng.DisableSafeMode(ctx))
	assert.Equal(t, 3, systemCount())

	env.clock.Advance(31 * time.Minute)
	require.NoError(t, env.eng.EnableSafeMode(ctx, true))
	assert.Equal(t, 4, systemCount())
}

func TestEnableSafeMode_IdempotentWhenOn(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.eng.EnableSafeMode(ctx, true))
	env.put(t, ir.Snippet{ID: "later", Content: "x", Enabled: true})

	require.NoError(t, env.eng.EnableSafeMode(ctx, true))
	assert.True(t, env.get(t, "later").Enabled, "already on: nothing is disabled again")
}

func TestToggleSafeMode(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.put(t, ir.Snippet{ID: "a", Content: "x", Enabled: true})

	require.NoError(t, env.eng.ToggleSafeMode(ctx))
	assert.True(t, env.eng.IsSafeModeEnabled(ctx))
	assert.False(t, env.get(t, "a").Enabled)

	require.NoError(t, env.eng.ToggleSafeMode(ctx))
	assert.False(t, env.eng.IsSafeModeEnabled(ctx))
	assert.False(t, env.get(t, "a").Enabled, "leaving safe mode re-enables nothing")

	log := env.errorLog(t)
	require.NotEmpty(t, log)
	assert.Equal(t, "Safe mode disabled by operator.", log[0].Message)

	v, _, err := env.backend.Get(ctx, state.KeySafeMode)
	require.NoError(t, err)
	assert.Equal(t, "0", v)
}

func TestEmergencyRecover(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.put(t, ir.Snippet{ID: "a", Content: "x", Enabled: true})
	require.NoError(t, env.eng.EnableSafeMode(ctx, true))
	require.NoError(t, env.eng.ToggleSafeMode(ctx))
	require.NoError(t, env.eng.EnableSnippet(ctx, "a"))
	require.NotEmpty(t, env.errorLog(t))

	require.NoError(t, env.eng.EmergencyRecover(ctx))

	assert.True(t, env.eng.IsSafeModeEnabled(ctx))
	assert.False(t, env.get(t, "a").Enabled)
	assert.Empty(t, env.errorLog(t))
}

func TestRecoverCrash_FromCrashFile(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.put(t, ir.Snippet{ID: "X", Content: "x", Enabled: true})
	require.NoError(t, env.backend.Set(ctx, state.KeyMarker, "X"))
	env.eng = mustReload(t, env)

	path := filepath.Join(t.TempDir(), "crash.log")
	require.NoError(t, os.WriteFile(path, []byte(sampleFatalOutput), 0o644))

	require.NoError(t, env.eng.RecoverCrash(ctx, path))

	assert.True(t, env.eng.IsSafeModeEnabled(ctx))
	assert.False(t, env.get(t, "X").Enabled)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data, "crash file truncated after inspection")
}

func TestRecoverCrash_StaleMarkerWithoutCrash(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.put(t, ir.Snippet{ID: "X", Content: "x", Enabled: true})
	require.NoError(t, env.backend.Set(ctx, state.KeyMarker, "X"))
	env.eng = mustReload(t, env)

	require.NoError(t, env.eng.RecoverCrash(ctx, filepath.Join(t.TempDir(), "missing.log")))

	assert.False(t, env.eng.IsSafeModeEnabled(ctx))
	assert.True(t, env.get(t, "X").Enabled)
	marker, err := env.eng.Marker(ctx)
	require.NoError(t, err)
	assert.Empty(t, marker)
}

func TestRecoverCrash_SharedStateKeepsMarker(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SharedState = true
	env := newTestEnv(t, WithConfig(cfg))
	ctx := context.Background()
	require.NoError(t, env.backend.Set(ctx, state.KeyMarker, "X"))

	require.NoError(t, env.eng.RecoverCrash(ctx, ""))

	marker, err := env.eng.Marker(ctx)
	require.NoError(t, err)
	assert.Equal(t, "X", marker)
}
