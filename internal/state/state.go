package state

import (
	"context"
	"fmt"
	"sync"
)

// Durable keys.
const (
	KeySafeMode        = "safe_mode"
	KeyMarker          = "last_snippet"
	KeySafeModeLogTime = "last_safe_mode_log"
)

// Backend is a durable key/value location outside the process's memory.
// Set must not return before the value is durable.
type Backend interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// MemoryBackend keeps values in a map. It does not survive the process and
// is meant for tests and throwaway runs.
type MemoryBackend struct {
	mu     sync.Mutex
	values map[string]string

	// FailReads makes every Get fail. Used to exercise fail-closed reads.
	FailReads bool
}

// NewMemoryBackend returns an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string]string)}
}

// Get implements Backend.
func (b *MemoryBackend) Get(_ context.Context, key string) (string, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.FailReads {
		return "", false, fmt.Errorf("get %q: backend unavailable", key)
	}
	v, ok := b.values[key]
	return v, ok, nil
}

// Set implements Backend.
func (b *MemoryBackend) Set(_ context.Context, key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.values[key] = value
	return nil
}
