package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// StateTable exposes the key/value state rows.
// It satisfies state.Backend.
type StateTable struct {
	db *sql.DB
}

// State returns the key/value view of this store.
func (s *Store) State() *StateTable {
	return &StateTable{db: s.db}
}

// Get returns the value for key and whether it was ever set.
func (t *StateTable) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := t.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get state %q: %w", key, err)
	}
	return value, true, nil
}

// Set writes value for key. The write is committed before Set returns.
func (t *StateTable) Set(ctx context.Context, key, value string) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set state %q: %w", key, err)
	}
	return nil
}
