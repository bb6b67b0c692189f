// Package compiler turns declarative CUE snippet definitions into
// ir.Snippet values.
//
// A definitions directory holds any number of .cue files contributing to
// one top-level struct:
//
//	snippet: "analytics": {
//		name:     "Analytics"
//		kind:     "js"
//		scope:    "frontend"
//		priority: 5
//		enabled:  true
//		conditions: url_patterns: ["/blog*"]
//		content: """
//			console.log("hit")
//			"""
//	}
//
// The label is the snippet id. Definitions are unified with an embedded
// schema (schema.cue) that supplies defaults and rejects unknown kinds
// and scopes before any Go code sees them.
package compiler
