// Package interp evaluates snippet code with the yaegi Go interpreter.
//
// A Session owns one interpreter instance and lives for one request or one
// CLI invocation. Declarations made by a fragment stay visible to the
// fragments evaluated after it in the same session, which is why every
// session also tracks a symbols.Table of what has been declared so far.
//
// Fragments reach the host through the bridge package, imported as
// "snipd/snippet":
//
//	snippet.AddAction(hook, func(w io.Writer))    // run when the host fires hook
//	snippet.AddFilter(hook, func(string) string)  // transform a value
//	snippet.RemoveAction(hook) / RemoveFilter(hook)
//	snippet.DoAction(hook)                         // fire hook now
//	snippet.ApplyFilters(hook, v) string
//	snippet.Return(v)                              // yield an explicit value
//
// Only the standard library packages named in Options.Packages can be
// imported. Everything runs in-process: a fragment that triggers a Go
// runtime fatal error takes the process down with it.
package interp
