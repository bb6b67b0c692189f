package symbols

import "sync"

// Table is the set of names already defined in an interpreter session.
type Table struct {
	mu    sync.RWMutex
	names map[string]Symbol
}

// NewTable returns a table preloaded with reserved symbols.
func NewTable(reserved ...Symbol) *Table {
	t := &Table{names: make(map[string]Symbol, len(reserved))}
	t.Add(reserved...)
	return t
}

// Add records symbols as defined. The first definition of a name wins.
func (t *Table) Add(syms ...Symbol) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, s := range syms {
		if _, ok := t.names[s.Name]; !ok {
			t.names[s.Name] = s
		}
	}
}

// Lookup returns the existing definition of name.
func (t *Table) Lookup(name string) (Symbol, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.names[name]
	return s, ok
}

// Conflicts returns the names src would redeclare, in source order. A
// name declared twice within src is reported once. A short variable
// declaration conflicts only when none of its names is new, since ":="
// may reuse existing variables alongside a new one.
func (t *Table) Conflicts(src string) []Symbol {
	decls := scan(src)

	t.mu.RLock()
	defer t.mu.RUnlock()

	fresh := make(map[int]bool)
	for _, d := range decls {
		if _, ok := t.names[d.Name]; !ok && d.short != 0 {
			fresh[d.short] = true
		}
	}

	var out []Symbol
	seen := make(map[string]bool)
	for _, d := range decls {
		if seen[d.Name] || fresh[d.short] {
			continue
		}
		if _, ok := t.names[d.Name]; ok {
			out = append(out, d.Symbol)
			seen[d.Name] = true
		}
	}
	return out
}

// Len returns the number of defined names.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.names)
}
