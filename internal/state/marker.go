package state

import (
	"context"
	"fmt"
	"sync/atomic"
)

// Marker records the id of the snippet whose code is executing right now.
//
// Set is called immediately before a snippet runs and Clear right after it
// returns. If the process dies in between, the durable copy still names the
// snippet and the next process can attribute the crash.
type Marker struct {
	backend Backend
	shared  bool
	id      atomic.Pointer[string]
}

// NewMarker loads whatever a previous process left behind.
func NewMarker(ctx context.Context, backend Backend, shared bool) (*Marker, error) {
	m := &Marker{backend: backend, shared: shared}

	v, _, err := backend.Get(ctx, KeyMarker)
	if err != nil {
		return nil, fmt.Errorf("load marker: %w", err)
	}
	m.id.Store(&v)
	return m, nil
}

// Set durably records id as executing.
func (m *Marker) Set(ctx context.Context, id string) error {
	if err := m.backend.Set(ctx, KeyMarker, id); err != nil {
		return fmt.Errorf("set marker: %w", err)
	}
	m.id.Store(&id)
	return nil
}

// Clear empties the marker.
func (m *Marker) Clear(ctx context.Context) error {
	return m.Set(ctx, "")
}

// Current returns the executing snippet id, or "" when none is.
func (m *Marker) Current(ctx context.Context) (string, error) {
	if m.shared {
		v, _, err := m.backend.Get(ctx, KeyMarker)
		if err != nil {
			return "", fmt.Errorf("read marker: %w", err)
		}
		return v, nil
	}
	if p := m.id.Load(); p != nil {
		return *p, nil
	}
	return "", nil
}
