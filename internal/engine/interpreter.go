package engine

import (
	"context"
	"io"

	"github.com/roach88/snipd/internal/interp"
	"github.com/roach88/snipd/internal/symbols"
)

// Session is one interpreter instance. Declarations and hooks persist
// across calls on the same session.
type Session interface {
	Symbols() *symbols.Table
	Register(ctx context.Context, owner, src string) error
	Produce(ctx context.Context, owner, src string) (interp.Result, error)
	Actions(hook string) []interp.Hook
	Filters(hook string) []interp.Hook
	CallAction(h interp.Hook, w io.Writer) error
	CallFilter(h interp.Hook, v string) (string, error)
}

// Interpreter creates sessions and checks code before it is stored.
type Interpreter interface {
	NewSession() (Session, error)
	Validate(src string) error
}

// Yaegi adapts an interp.Factory to Interpreter.
func Yaegi(f *interp.Factory) Interpreter {
	return yaegiInterpreter{f: f}
}

type yaegiInterpreter struct {
	f *interp.Factory
}

func (y yaegiInterpreter) NewSession() (Session, error) {
	s, err := y.f.NewSession()
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (y yaegiInterpreter) Validate(src string) error {
	return y.f.Validate(src)
}
