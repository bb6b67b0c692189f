package state

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs only when SNIPD_TEST_REDIS_URL points at a disposable Redis.
func TestRedisBackend_RoundTrip(t *testing.T) {
	url := os.Getenv("SNIPD_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SNIPD_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	backend, err := NewRedisBackend(ctx, url, "snipd-test:"+uuid.NewString()+":")
	require.NoError(t, err)
	defer backend.Close()

	_, ok, err := backend.Get(ctx, KeyMarker)
	require.NoError(t, err)
	assert.False(t, ok)

	m, err := NewMarker(ctx, backend, true)
	require.NoError(t, err)
	require.NoError(t, m.Set(ctx, "remote"))

	id, err := m.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "remote", id)
}

func TestNewRedisBackend_InvalidURL(t *testing.T) {
	_, err := NewRedisBackend(context.Background(), "://nope", "")
	assert.Error(t, err)
}
