package symbols

import (
	"go/token"
	"strings"
)

// Split cuts a fragment into consecutive runs of top-level declarations
// and runs of statements, in source order. Each piece can be evaluated on
// its own by an incremental interpreter, which accepts either kind but not
// a mix. A fragment with a package clause is returned whole. Blank pieces
// are dropped.
func Split(src string) []string {
	items, _ := tokenize(src)
	if len(items) == 0 {
		return nil
	}
	if items[0].tok == token.PACKAGE {
		return []string{src}
	}

	var (
		starts []int
		last   = -1 // 0 statement, 1 declaration
		depth  int
	)
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
		case token.SEMICOLON:
			continue
		}
		if depth != 0 || (i > 0 && items[i-1].tok != token.SEMICOLON) {
			continue
		}

		kind := 0
		if isDeclStart(items, i) {
			kind = 1
		}
		if kind != last {
			starts = append(starts, items[i].off)
			last = kind
		}
	}

	var out []string
	for n, start := range starts {
		end := len(src)
		if n+1 < len(starts) {
			end = starts[n+1]
		}
		if piece := src[start:end]; strings.TrimSpace(piece) != "" {
			out = append(out, piece)
		}
	}
	return out
}

func isDeclStart(items []item, i int) bool {
	switch items[i].tok {
	case token.IMPORT, token.CONST, token.VAR, token.TYPE:
		return true
	case token.FUNC:
		if i+1 >= len(items) {
			return false
		}
		if items[i+1].tok == token.IDENT {
			return true
		}
		if items[i+1].tok != token.LPAREN {
			return false
		}
		// A receiver is followed by the method name and its parameters;
		// a function literal is followed by results or its body.
		j := skipBalanced(items, i+1)
		return j+1 < len(items) && items[j].tok == token.IDENT &&
			(items[j+1].tok == token.LPAREN || items[j+1].tok == token.LBRACK)
	}
	return false
}
