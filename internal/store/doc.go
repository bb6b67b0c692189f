// Package store provides SQLite-backed durable storage for snipd.
//
// The store holds:
//   - Snippets: operator-authored fragments with placement metadata
//   - Revisions: content snapshots taken before each content change
//   - Error log: one row per failing snippet, most recent first
//   - State: small key/value rows for process-wide flags (safe mode,
//     last executed snippet) that must survive a crash
//
// # Ordering
//
// Snippets are always listed in insertion order (position ASC). The
// scheduler relies on this for stable priority ties.
//
// The error log is ordered by a recency counter, never by timestamp, so
// two failures within the same clock tick still keep their order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// State writes go through the same connection and are committed before the
// call returns, which is what lets the last executed marker outlive a
// crashed process.
package store
