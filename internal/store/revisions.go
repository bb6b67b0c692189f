package store

import (
	"context"
	"fmt"

	"github.com/roach88/snipd/internal/ir"
)

// AppendRevision stores a content snapshot for a snippet.
//
// Snapshots with empty content are ignored, and so is a snapshot whose
// content hash equals the most recent revision. Only the newest limit
// revisions are kept (limit <= 0 keeps everything).
//
// Returns whether a new revision row was written.
func (s *Store) AppendRevision(ctx context.Context, rev ir.Revision, limit int) (bool, error) {
	if rev.SnippetID == "" || rev.Content == "" {
		return false, nil
	}
	if rev.ContentHash == "" {
		rev.ContentHash = ir.ContentHash(rev.Content)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("append revision: begin tx: %w", err)
	}
	defer tx.Rollback()

	var lastHash string
	err = tx.QueryRowContext(ctx, `
		SELECT content_hash FROM revisions
		WHERE snippet_id = ?
		ORDER BY id DESC
		LIMIT 1
	`, rev.SnippetID).Scan(&lastHash)
	if err == nil && lastHash == rev.ContentHash {
		return false, nil
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO revisions (snippet_id, name, content, content_hash, modified_at)
		VALUES (?, ?, ?, ?, ?)
	`, rev.SnippetID, rev.Name, rev.Content, rev.ContentHash, toUnix(rev.ModifiedAt))
	if err != nil {
		return false, fmt.Errorf("append revision: insert: %w", err)
	}

	if limit > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM revisions
			WHERE snippet_id = ? AND id NOT IN (
				SELECT id FROM revisions WHERE snippet_id = ? ORDER BY id DESC LIMIT ?
			)
		`, rev.SnippetID, rev.SnippetID, limit)
		if err != nil {
			return false, fmt.Errorf("append revision: trim: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("append revision: commit: %w", err)
	}
	return true, nil
}

// Revisions returns a snippet's revisions, newest first.
// Index 0 is the snapshot taken most recently.
func (s *Store) Revisions(ctx context.Context, snippetID string) ([]ir.Revision, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snippet_id, name, content, content_hash, modified_at
		FROM revisions
		WHERE snippet_id = ?
		ORDER BY id DESC
	`, snippetID)
	if err != nil {
		return nil, fmt.Errorf("query revisions: %w", err)
	}
	defer rows.Close()

	revisions := []ir.Revision{}
	for rows.Next() {
		var (
			rev        ir.Revision
			modifiedAt int64
		)
		if err := rows.Scan(&rev.SnippetID, &rev.Name, &rev.Content, &rev.ContentHash, &modifiedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		rev.ModifiedAt = fromUnix(modifiedAt)
		revisions = append(revisions, rev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate revisions: %w", err)
	}
	return revisions, nil
}
