package engine

import (
	"cmp"
	"slices"

	"github.com/roach88/snipd/internal/ir"
)

// Schedule returns the snippets that should run for a request, in the
// order they should run.
//
// Safe mode yields nothing. Otherwise disabled snippets are dropped, the
// rest are stably sorted by ascending priority (ties keep store order), and
// each is kept only if its scope admits the request mode and its
// conditions match. Inline-scoped snippets never appear; they only run
// when referenced by id.
func Schedule(snippets []ir.Snippet, rc ir.RequestContext, safeMode bool) []ir.Snippet {
	if safeMode {
		return nil
	}

	enabled := make([]ir.Snippet, 0, len(snippets))
	for _, sn := range snippets {
		if sn.Enabled {
			enabled = append(enabled, sn)
		}
	}
	slices.SortStableFunc(enabled, func(a, b ir.Snippet) int {
		return cmp.Compare(a.Priority, b.Priority)
	})

	var out []ir.Snippet
	for _, sn := range enabled {
		if !ScopeAllows(sn.Scope, rc.Mode) {
			continue
		}
		if !Matches(sn.Conditions, rc) {
			continue
		}
		out = append(out, sn)
	}
	return out
}

// ScopeAllows reports whether a snippet scope takes part in a scheduling
// pass for mode.
func ScopeAllows(scope ir.Scope, mode ir.Mode) bool {
	switch mode {
	case ir.ModeFrontend:
		return scope == ir.ScopeEverywhere || scope == ir.ScopeFrontend
	case ir.ModeAdmin:
		return scope == ir.ScopeEverywhere || scope == ir.ScopeAdmin
	default:
		return false
	}
}
