package store

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/snipd/internal/ir"
)

// createTestStore opens a fresh database in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// createTestSnippet returns an enabled code snippet with defaults applied.
func createTestSnippet(id, name, content string) ir.Snippet {
	return ir.Snippet{
		ID:         id,
		Name:       name,
		Kind:       ir.KindCode,
		Scope:      ir.ScopeEverywhere,
		Enabled:    true,
		Priority:   ir.DefaultPriority,
		Content:    content,
		CreatedAt:  testEpoch,
		ModifiedAt: testEpoch,
	}
}

// verifyPragma checks a pragma's value on the store's connection.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRow("PRAGMA " + name).Scan(&value); err != nil {
		return fmt.Errorf("query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
