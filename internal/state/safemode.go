package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// SafeMode is the process-wide kill switch. While it is on no snippet is
// scheduled.
type SafeMode struct {
	backend Backend
	shared  bool
	on      atomic.Bool
}

// NewSafeMode loads the flag from the backend.
//
// If the backend has never recorded a value the flag starts on and that
// value is persisted immediately. With shared set, Enabled consults the
// backend on every call.
func NewSafeMode(ctx context.Context, backend Backend, shared bool) (*SafeMode, error) {
	s := &SafeMode{backend: backend, shared: shared}

	v, ok, err := backend.Get(ctx, KeySafeMode)
	if err != nil {
		return nil, fmt.Errorf("load safe mode: %w", err)
	}
	if !ok {
		if err := backend.Set(ctx, KeySafeMode, encodeBool(true)); err != nil {
			return nil, fmt.Errorf("initialize safe mode: %w", err)
		}
		s.on.Store(true)
		return s, nil
	}

	s.on.Store(decodeBool(v))
	return s, nil
}

// Enabled reports whether safe mode is on.
// In shared mode a backend failure reports on.
func (s *SafeMode) Enabled(ctx context.Context) bool {
	if !s.shared {
		return s.on.Load()
	}

	v, ok, err := s.backend.Get(ctx, KeySafeMode)
	if err != nil {
		slog.Warn("safe mode read failed, treating as enabled", "error", err)
		return true
	}
	if !ok {
		return true
	}
	on := decodeBool(v)
	s.on.Store(on)
	return on
}

// Set persists the flag and then updates the in-memory copy.
func (s *SafeMode) Set(ctx context.Context, on bool) error {
	if err := s.backend.Set(ctx, KeySafeMode, encodeBool(on)); err != nil {
		return fmt.Errorf("set safe mode: %w", err)
	}
	s.on.Store(on)
	return nil
}

func encodeBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func decodeBool(v string) bool {
	return v != "0" && v != ""
}
