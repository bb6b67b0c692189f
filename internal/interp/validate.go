package interp

import (
	"fmt"

	"github.com/roach88/snipd/internal/symbols"
)

// Validate checks code before it is stored: it must tokenize and may only
// import allowed packages. It does not type-check.
func (f *Factory) Validate(src string) error {
	if err := symbols.Check(src); err != nil {
		return fmt.Errorf("syntax: %w", err)
	}
	for _, imp := range symbols.Imports(src) {
		if !f.Allowed(imp.Path) {
			return fmt.Errorf("import %q is not allowed", imp.Path)
		}
	}
	return nil
}
