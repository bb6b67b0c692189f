package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/snipd/internal/ir"
)

const snippetColumns = `id, name, description, kind, scope, enabled, priority, run_once,
	conditions, content, category, tags, created_at, modified_at`

// List returns every snippet in insertion order.
// Returns an empty slice (not nil) if the store is empty.
func (s *Store) List(ctx context.Context) ([]ir.Snippet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+snippetColumns+`
		FROM snippets
		ORDER BY position ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query snippets: %w", err)
	}
	defer rows.Close()

	snippets := []ir.Snippet{}
	for rows.Next() {
		sn, err := scanSnippet(rows)
		if err != nil {
			return nil, err
		}
		snippets = append(snippets, sn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snippets: %w", err)
	}

	return snippets, nil
}

// Get retrieves a single snippet by id.
// Returns ErrNotFound if the id does not exist.
func (s *Store) Get(ctx context.Context, id string) (ir.Snippet, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+snippetColumns+`
		FROM snippets
		WHERE id = ?
	`, id)

	sn, err := scanSnippet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Snippet{}, fmt.Errorf("get snippet %q: %w", id, ErrNotFound)
	}
	return sn, err
}

// Save inserts or replaces a snippet.
// New snippets are appended to the end of the insertion order; existing
// snippets keep their position and creation time.
func (s *Store) Save(ctx context.Context, sn ir.Snippet) error {
	condJSON, err := marshalConditions(sn.Conditions)
	if err != nil {
		return fmt.Errorf("save snippet: %w", err)
	}
	tagsJSON, err := marshalTags(sn.Tags)
	if err != nil {
		return fmt.Errorf("save snippet: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO snippets
		(id, position, name, description, kind, scope, enabled, priority, run_once,
		 conditions, content, category, tags, created_at, modified_at)
		VALUES (?, (SELECT COALESCE(MAX(position), 0) + 1 FROM snippets),
		        ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			kind = excluded.kind,
			scope = excluded.scope,
			enabled = excluded.enabled,
			priority = excluded.priority,
			run_once = excluded.run_once,
			conditions = excluded.conditions,
			content = excluded.content,
			category = excluded.category,
			tags = excluded.tags,
			modified_at = excluded.modified_at
	`,
		sn.ID,
		sn.Name,
		sn.Description,
		string(sn.Kind),
		string(sn.Scope),
		boolToInt(sn.Enabled),
		sn.Priority,
		boolToInt(sn.RunOnce),
		condJSON,
		sn.Content,
		sn.Category,
		tagsJSON,
		toUnix(sn.CreatedAt),
		toUnix(sn.ModifiedAt),
	)
	if err != nil {
		return fmt.Errorf("save snippet: %w", err)
	}
	return nil
}

// Delete removes a snippet and its revisions.
// Returns ErrNotFound if the id does not exist.
func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("delete snippet: begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM snippets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete snippet: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete snippet: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete snippet %q: %w", id, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM revisions WHERE snippet_id = ?`, id); err != nil {
		return fmt.Errorf("delete snippet: revisions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("delete snippet: commit: %w", err)
	}
	return nil
}

// SetEnabled flips a single snippet's enabled flag and bumps its
// modification time. Returns ErrNotFound if the id does not exist.
func (s *Store) SetEnabled(ctx context.Context, id string, enabled bool, now time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE snippets SET enabled = ?, modified_at = ? WHERE id = ?
	`, boolToInt(enabled), toUnix(now), id)
	if err != nil {
		return fmt.Errorf("set enabled: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("set enabled: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set enabled %q: %w", id, ErrNotFound)
	}
	return nil
}

// DisableAll clears the enabled flag on every snippet in one statement.
// Snippets that are already disabled keep their modification time.
func (s *Store) DisableAll(ctx context.Context, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE snippets SET enabled = 0, modified_at = ? WHERE enabled = 1
	`, toUnix(now))
	if err != nil {
		return fmt.Errorf("disable all: %w", err)
	}
	return nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner) (ir.Snippet, error) {
	var (
		sn                    ir.Snippet
		kind, scope           string
		enabled, runOnce      int
		condJSON, tagsJSON    string
		createdAt, modifiedAt int64
	)
	err := row.Scan(
		&sn.ID,
		&sn.Name,
		&sn.Description,
		&kind,
		&scope,
		&enabled,
		&sn.Priority,
		&runOnce,
		&condJSON,
		&sn.Content,
		&sn.Category,
		&tagsJSON,
		&createdAt,
		&modifiedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return ir.Snippet{}, err
	}
	if err != nil {
		return ir.Snippet{}, fmt.Errorf("scan snippet: %w", err)
	}

	tags, err := unmarshalTags(tagsJSON)
	if err != nil {
		return ir.Snippet{}, fmt.Errorf("scan snippet %q: %w", sn.ID, err)
	}

	sn.Kind = ir.Kind(kind)
	sn.Scope = ir.Scope(scope)
	sn.Enabled = enabled != 0
	sn.RunOnce = runOnce != 0
	sn.Conditions = unmarshalConditions(condJSON)
	sn.Tags = tags
	sn.CreatedAt = fromUnix(createdAt)
	sn.ModifiedAt = fromUnix(modifiedAt)
	return sn, nil
}
