// Package engine decides which snippets run for a request, runs them, and
// contains the damage when they misbehave.
//
// ARCHITECTURE:
//
// Request Flow:
// 1. Schedule filters the stored snippets: safe mode, enabled flag,
//    priority order, scope, then conditions
// 2. Non-code snippets are sanitized and queued for the page head or footer
// 3. Code snippets pass the collision preflight, then run through one of
//    two strategies (register hooks, or produce a value)
// 4. Run-once snippets are disabled as soon as they finish successfully
// 5. The host renders the Page, firing hook callbacks with attribution
//
// Failure Classes:
//   - Collision: the fragment would redeclare a name already defined in the
//     session. It is not run, it is disabled, and one log entry explains why.
//   - Execution error: the interpreter returned an error or recovered a
//     panic. The error is logged, the snippet stays enabled, and the next
//     snippet runs.
//   - Fatal crash: the process died or the host recovered a panic outside
//     the interpreter. The durable marker names the snippet that was
//     running; Inspect disables it and trips safe mode.
//
// CRITICAL PATTERNS:
//
// Marker Before Risk:
// The marker is written durably before any snippet code runs and cleared
// after it returns. A crash in between leaves the id behind for the next
// process.
//
// Safe Mode Is Sticky:
// Entering safe mode disables every snippet. Only an operator leaves it.
//
// No Retries:
// Every failure path ends in "log and continue" or "log, disable, trip".
package engine
