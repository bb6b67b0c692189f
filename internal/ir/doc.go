// Package ir provides the shared domain types for snipd.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import ir; ir imports nothing internal. This keeps
// it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Snippet ids are opaque strings, never reinterpreted
//   - Conditions zero value means "always match"
//   - All JSON tags use snake_case
//   - Content identity is NFC-normalized before hashing
package ir
