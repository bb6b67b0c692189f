package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.cue", `package defs

snippet: a: { name: "A", kind: "css" }`)

	loads := make(chan *LoadResult, 10)
	w := NewWatcher(dir, func(_ context.Context, res *LoadResult, _ []error) {
		loads <- res
	}).WithDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case res := <-loads:
		require.NotNil(t, res)
		assert.Len(t, res.Snippets, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("initial load not reported")
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.cue"),
		[]byte(`package defs

snippet: b: { name: "B", kind: "html" }`), 0o644))

	deadline := time.After(5 * time.Second)
	for {
		select {
		case res := <-loads:
			if res != nil && len(res.Snippets) == 2 {
				cancel()
				require.NoError(t, <-done)
				return
			}
		case <-deadline:
			cancel()
			t.Fatal("change not reported")
		}
	}
}
