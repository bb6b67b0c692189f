package host

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/snipd/internal/engine"
	"github.com/roach88/snipd/internal/interp"
	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/logging"
	"github.com/roach88/snipd/internal/state"
	"github.com/roach88/snipd/internal/store"
	"github.com/roach88/snipd/internal/testutil"
)

const testPage = `<!DOCTYPE html>
<html>
<head>
<title>t</title>
</head>
<body>
<main>[snippet id="inline"]</main>
</body>
</html>
`

type testHost struct {
	srv     *Server
	eng     *engine.Engine
	store   *store.Store
	backend *state.MemoryBackend
}

type hostOption func(*hostConfig)

type hostConfig struct {
	engine  engine.Config
	marker  string
	handler http.Handler
}

func withMarkers(markers ...string) hostOption {
	return func(c *hostConfig) {
		c.engine.CrashMarkers = markers
	}
}

// withLeftoverMarker simulates a marker a previous run left set.
func withLeftoverMarker(id string) hostOption {
	return func(c *hostConfig) {
		c.marker = id
	}
}

func withHandler(h http.Handler) hostOption {
	return func(c *hostConfig) {
		c.handler = h
	}
}

func newTestHost(t *testing.T, opts ...hostOption) *testHost {
	t.Helper()
	ctx := context.Background()

	cfg := &hostConfig{
		engine: engine.DefaultConfig(),
		handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(testPage))
		}),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	st, err := store.Open(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	backend := state.NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, state.KeySafeMode, "0"))
	require.NoError(t, backend.Set(ctx, state.KeyMarker, cfg.marker))

	eng, err := engine.New(ctx, st, engine.Yaegi(interp.NewFactory(interp.Options{})), backend,
		engine.WithConfig(cfg.engine),
		engine.WithClock(testutil.NewFakeClock(testutil.Epoch)),
		engine.WithLogger(logging.Discard()),
	)
	require.NoError(t, err)

	srv := newServer(eng, Options{Logger: logging.Discard()})
	srv.mount(cfg.handler)
	return &testHost{srv: srv, eng: eng, store: st, backend: backend}
}

func (h *testHost) put(t *testing.T, sn ir.Snippet) {
	t.Helper()
	if sn.Name == "" {
		sn.Name = sn.ID
	}
	ir.Normalize(&sn)
	require.NoError(t, h.store.Save(context.Background(), sn))
}

func (h *testHost) get(t *testing.T, id string) ir.Snippet {
	t.Helper()
	sn, err := h.store.Get(context.Background(), id)
	require.NoError(t, err)
	return sn
}

func (h *testHost) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.srv.Handler().ServeHTTP(rec, req)
	return rec
}
