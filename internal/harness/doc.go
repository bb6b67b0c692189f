// Package harness runs scripted scenarios against a real engine.
//
// A scenario seeds a store with snippets, then drives the engine through
// steps: page requests, inline references, simulated crashes with restarts,
// and safe-mode operations. Every step appends to a trace, and assertions
// check the trace and the final state. The trace and final state can also
// be compared against a golden file:
//
//	name: collision
//	description: second declaration of a function is blocked
//	snippets:
//	  - id: first
//	    enabled: true
//	    content: "func greet() string { return \"hi\" }"
//	  - id: second
//	    enabled: true
//	    content: "func greet() string { return \"again\" }"
//	steps:
//	  - request: {path: /}
//	assertions:
//	  - type: outcome
//	    snippet: second
//	    outcome: blocked
//	  - type: enabled
//	    snippet: second
//	    expect: false
//
// Scenarios always run the real interpreter with a fixed clock, so the
// same scenario produces the same trace on every run.
package harness
