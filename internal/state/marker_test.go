package state

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarker_SetAndClear(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	m, err := NewMarker(ctx, backend, false)
	require.NoError(t, err)

	id, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, m.Set(ctx, "snip-1"))
	id, err = m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "snip-1", id)

	durable, _, err := backend.Get(ctx, KeyMarker)
	require.NoError(t, err)
	assert.Equal(t, "snip-1", durable, "durable copy must be written by Set")

	require.NoError(t, m.Clear(ctx))
	id, err = m.Current(ctx)
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestMarker_SurvivesProcessDeath(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	dying, err := NewMarker(ctx, backend, false)
	require.NoError(t, err)
	require.NoError(t, dying.Set(ctx, "crasher"))

	next, err := NewMarker(ctx, backend, false)
	require.NoError(t, err)
	id, err := next.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "crasher", id)
}

func TestMarker_SharedReadError(t *testing.T) {
	ctx := context.Background()
	backend := NewMemoryBackend()

	m, err := NewMarker(ctx, backend, true)
	require.NoError(t, err)

	backend.FailReads = true
	_, err = m.Current(ctx)
	assert.Error(t, err)
}

func TestMarker_ConcurrentReadersSeeWholeValues(t *testing.T) {
	ctx := context.Background()
	m, err := NewMarker(ctx, NewMemoryBackend(), false)
	require.NoError(t, err)

	valid := map[string]bool{"": true, "aaaaaaaa": true, "bbbbbbbb": true}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if i%2 == 0 {
					_ = m.Set(ctx, "aaaaaaaa")
				} else {
					_ = m.Set(ctx, "bbbbbbbb")
				}
				id, err := m.Current(ctx)
				assert.NoError(t, err)
				assert.True(t, valid[id], "observed torn marker %q", id)
			}
		}(i)
	}
	wg.Wait()
}
