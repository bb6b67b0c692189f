// Package state holds the two process-wide values the execution engine
// depends on: the safe-mode flag and the last executed snippet marker.
//
// Both values live in memory behind atomics and are mirrored to a durable
// Backend. Every write reaches the backend before the in-memory value
// changes, so a process that dies right after Set returns still leaves the
// value behind for the next process to read.
//
// # Lifecycle
//
//   - Startup: NewSafeMode and NewMarker load the durable value. A safe-mode
//     flag that was never recorded defaults to on and is persisted.
//   - Runtime: only the engine mutates either value.
//   - Shared mode: when several processes serve requests without sharing
//     memory, reads go to the backend every time instead of the atomic.
//
// # Backends
//
//   - store.StateTable: the SQLite state table (single host)
//   - RedisBackend: a Redis keyspace (several hosts or processes)
//   - MemoryBackend: tests and ephemeral runs
package state
