// Package symbols finds the top-level names a Go source fragment declares,
// the packages it imports, and whether it calls the hook API of the
// snippet bridge package.
//
// Scanning is token based (go/scanner), not a full parse. It sees
// declarations written out in the fragment and nothing else: names
// introduced through reflection, code generation, or the interpreter's own
// package registry are invisible to it. Fragments that fail to tokenize
// still yield whatever declarations were found before the error.
//
// Go has one package block, so a new declaration collides with an existing
// name of any class. Traits do not exist in Go; the closest analogues
// (interfaces) are reported as their own class.
package symbols
