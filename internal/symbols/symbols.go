package symbols

import (
	"go/scanner"
	"go/token"
	"strconv"
)

// Class is the kind of declaration a name was introduced by.
type Class string

const (
	ClassFunc      Class = "function"
	ClassType      Class = "type"
	ClassInterface Class = "interface"
	ClassConst     Class = "constant"
	ClassVar       Class = "variable"
)

// Symbol is one top-level declared name.
type Symbol struct {
	Class Class
	Name  string
}

// String renders the symbol the way collision messages list it,
// e.g. "function foo()" or "type Bar".
func (s Symbol) String() string {
	if s.Class == ClassFunc {
		return "function " + s.Name + "()"
	}
	return string(s.Class) + " " + s.Name
}

// Import is one import spec. Name is the explicit alias, or "" when the
// package name is used.
type Import struct {
	Name string
	Path string
}

type item struct {
	tok token.Token
	lit string
	off int
}

// tokenize returns every token of src (comments dropped, automatic
// semicolons included) and the first scan error, if any.
func tokenize(src string) ([]item, error) {
	fset := token.NewFileSet()
	file := fset.AddFile("fragment.go", fset.Base(), len(src))

	var errs scanner.ErrorList
	var s scanner.Scanner
	s.Init(file, []byte(src), func(pos token.Position, msg string) {
		errs.Add(pos, msg)
	}, 0)

	var items []item
	for {
		pos, tok, lit := s.Scan()
		if tok == token.EOF {
			break
		}
		items = append(items, item{tok: tok, lit: lit, off: file.Offset(pos)})
	}
	errs.Sort()
	return items, errs.Err()
}

// Check reports the first tokenization error in src, or nil.
func Check(src string) error {
	_, err := tokenize(src)
	return err
}

// Scan returns the top-level declarations in src, in source order.
// Methods, function literals and declarations nested in blocks are
// skipped. Short variable declarations at statement level count as
// variables, since the interpreter accepts them outside any function.
func Scan(src string) []Symbol {
	var out []Symbol
	for _, d := range scan(src) {
		out = append(out, d.Symbol)
	}
	return out
}

// decl is a scanned symbol. short numbers the statement-level ":="
// statement that introduced it, from 1; it is 0 for keyword declarations.
type decl struct {
	Symbol
	short int
}

func scan(src string) []decl {
	items, _ := tokenize(src)

	var out []decl
	add := func(syms []Symbol, short int) {
		for _, s := range syms {
			out = append(out, decl{Symbol: s, short: short})
		}
	}
	depth, stmts := 0, 0
	for i := 0; i < len(items); i++ {
		switch items[i].tok {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			depth++
			continue
		case token.RPAREN, token.RBRACK, token.RBRACE:
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth != 0 {
			continue
		}

		switch items[i].tok {
		case token.FUNC:
			if i+1 < len(items) && items[i+1].tok == token.IDENT {
				add([]Symbol{{Class: ClassFunc, Name: items[i+1].lit}}, 0)
			}
		case token.TYPE:
			var syms []Symbol
			syms, i = declSpecs(items, i+1, typeSpec)
			add(syms, 0)
		case token.CONST:
			var syms []Symbol
			syms, i = declSpecs(items, i+1, valueSpec(ClassConst))
			add(syms, 0)
		case token.VAR:
			var syms []Symbol
			syms, i = declSpecs(items, i+1, valueSpec(ClassVar))
			add(syms, 0)
		case token.IDENT:
			if i == 0 || items[i-1].tok == token.SEMICOLON {
				if syms := shortVarDecl(items, i); len(syms) > 0 {
					stmts++
					add(syms, stmts)
				}
			}
		}
	}
	return out
}

type specFunc func(items []item, i int) []Symbol

// declSpecs reads a single or grouped declaration starting at i (the token
// after the keyword). It returns the declared symbols and the index the
// caller's loop should continue from.
func declSpecs(items []item, i int, spec specFunc) ([]Symbol, int) {
	if i >= len(items) {
		return nil, i
	}
	if items[i].tok != token.LPAREN {
		// The caller's loop resumes at the name so bracket depth after
		// it is still counted.
		return spec(items, i), i
	}

	var out []Symbol
	depth := 0
	start := true
	for j := i + 1; j < len(items); j++ {
		switch items[j].tok {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACK, token.RBRACE:
			if depth == 0 {
				return out, j
			}
			depth--
		case token.SEMICOLON:
			if depth == 0 {
				start = true
				continue
			}
		}
		if depth == 0 && start && items[j].tok == token.IDENT {
			out = append(out, spec(items, j)...)
		}
		start = false
	}
	return out, len(items)
}

func typeSpec(items []item, i int) []Symbol {
	if i >= len(items) || items[i].tok != token.IDENT {
		return nil
	}
	name := items[i].lit

	j := i + 1
	if j < len(items) && items[j].tok == token.LBRACK {
		j = skipBalanced(items, j)
	}
	if j < len(items) && items[j].tok == token.ASSIGN {
		j++
	}
	class := ClassType
	if j < len(items) && items[j].tok == token.INTERFACE {
		class = ClassInterface
	}
	return []Symbol{{Class: class, Name: name}}
}

func valueSpec(class Class) specFunc {
	return func(items []item, i int) []Symbol {
		var out []Symbol
		for i < len(items) && items[i].tok == token.IDENT {
			if items[i].lit != "_" {
				out = append(out, Symbol{Class: class, Name: items[i].lit})
			}
			if i+1 < len(items) && items[i+1].tok == token.COMMA {
				i += 2
				continue
			}
			break
		}
		return out
	}
}

// shortVarDecl matches "a, b := ..." starting at i.
func shortVarDecl(items []item, i int) []Symbol {
	var names []string
	for i < len(items) && items[i].tok == token.IDENT {
		names = append(names, items[i].lit)
		if i+1 >= len(items) {
			return nil
		}
		switch items[i+1].tok {
		case token.COMMA:
			i += 2
		case token.DEFINE:
			var out []Symbol
			for _, n := range names {
				if n != "_" {
					out = append(out, Symbol{Class: ClassVar, Name: n})
				}
			}
			return out
		default:
			return nil
		}
	}
	return nil
}

// skipBalanced returns the index just past the bracket group opening at i.
func skipBalanced(items []item, i int) int {
	depth := 0
	for ; i < len(items); i++ {
		switch items[i].tok {
		case token.LPAREN, token.LBRACK, token.LBRACE:
			depth++
		case token.RPAREN, token.RBRACK, token.RBRACE:
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

// Imports returns the import specs of src.
func Imports(src string) []Import {
	items, _ := tokenize(src)

	var out []Import
	for i := 0; i < len(items); i++ {
		if items[i].tok != token.IMPORT {
			continue
		}
		if i+1 < len(items) && items[i+1].tok == token.LPAREN {
			j := i + 2
			for j < len(items) && items[j].tok != token.RPAREN {
				if imp, next, ok := importSpec(items, j); ok {
					out = append(out, imp)
					j = next
					continue
				}
				j++
			}
			i = j
			continue
		}
		if imp, next, ok := importSpec(items, i+1); ok {
			out = append(out, imp)
			i = next - 1
		}
	}
	return out
}

func importSpec(items []item, i int) (Import, int, bool) {
	var imp Import
	if i < len(items) && (items[i].tok == token.IDENT || items[i].tok == token.PERIOD) {
		imp.Name = items[i].lit
		if items[i].tok == token.PERIOD {
			imp.Name = "."
		}
		i++
	}
	if i >= len(items) || items[i].tok != token.STRING {
		return Import{}, i, false
	}
	path, err := strconv.Unquote(items[i].lit)
	if err != nil {
		return Import{}, i + 1, false
	}
	imp.Path = path
	return imp, i + 1, true
}

// LocalName returns the identifier src uses to refer to the package at
// importPath: its alias when one is given, otherwise defaultName.
func LocalName(src, importPath, defaultName string) string {
	for _, imp := range Imports(src) {
		if imp.Path == importPath && imp.Name != "" && imp.Name != "_" && imp.Name != "." {
			return imp.Name
		}
	}
	return defaultName
}

// HookFuncs are the bridge calls that register, remove or fire hooks.
var HookFuncs = map[string]bool{
	"AddAction":    true,
	"AddFilter":    true,
	"RemoveAction": true,
	"RemoveFilter": true,
	"DoAction":     true,
	"ApplyFilters": true,
}

// UsesHooks reports whether src calls pkg.<HookFunc>(...).
func UsesHooks(src, pkg string) bool {
	items, _ := tokenize(src)
	for i := 0; i+3 < len(items); i++ {
		if items[i].tok == token.IDENT && items[i].lit == pkg &&
			items[i+1].tok == token.PERIOD &&
			items[i+2].tok == token.IDENT && HookFuncs[items[i+2].lit] &&
			items[i+3].tok == token.LPAREN {
			return true
		}
	}
	return false
}
