package store

import (
	"context"
	"fmt"

	"github.com/roach88/snipd/internal/ir"
)

// LogError records a failure against a snippet id.
//
// One row exists per snippet id. A repeated failure overwrites the message,
// timestamp and url, increments the count and moves the row to the front.
// After the write only the limit most recent rows are kept (limit <= 0
// keeps everything). entry.Count is ignored.
func (s *Store) LogError(ctx context.Context, entry ir.ErrorLogEntry, limit int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("log error: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO error_log (snippet_id, message, timestamp, url, count, recency)
		VALUES (?, ?, ?, ?, 1, (SELECT COALESCE(MAX(recency), 0) + 1 FROM error_log))
		ON CONFLICT(snippet_id) DO UPDATE SET
			message = excluded.message,
			timestamp = excluded.timestamp,
			url = excluded.url,
			count = error_log.count + 1,
			recency = excluded.recency
	`, entry.SnippetID, entry.Message, toUnix(entry.Timestamp), entry.URL)
	if err != nil {
		return fmt.Errorf("log error: upsert: %w", err)
	}

	if limit > 0 {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM error_log
			WHERE snippet_id NOT IN (
				SELECT snippet_id FROM error_log ORDER BY recency DESC LIMIT ?
			)
		`, limit)
		if err != nil {
			return fmt.Errorf("log error: trim: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("log error: commit: %w", err)
	}
	return nil
}

// ErrorLog returns the error log, most recent first.
func (s *Store) ErrorLog(ctx context.Context) ([]ir.ErrorLogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT snippet_id, message, timestamp, url, count
		FROM error_log
		ORDER BY recency DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query error log: %w", err)
	}
	defer rows.Close()

	entries := []ir.ErrorLogEntry{}
	for rows.Next() {
		var (
			e  ir.ErrorLogEntry
			ts int64
		)
		if err := rows.Scan(&e.SnippetID, &e.Message, &ts, &e.URL, &e.Count); err != nil {
			return nil, fmt.Errorf("scan error log: %w", err)
		}
		e.Timestamp = fromUnix(ts)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate error log: %w", err)
	}
	return entries, nil
}

// ClearErrorLog removes every error log row.
func (s *Store) ClearErrorLog(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM error_log`); err != nil {
		return fmt.Errorf("clear error log: %w", err)
	}
	return nil
}
