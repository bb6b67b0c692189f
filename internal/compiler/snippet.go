package compiler

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/snipd/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// Schema compiles the embedded definition schema in ctx.
func Schema(ctx *cue.Context) cue.Value {
	return ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
}

// CompileSnippet parses one definition. The snippet id is the value's
// last path label.
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src).Unify(compiler.Schema(ctx))
//	sn, err := CompileSnippet(v.LookupPath(cue.ParsePath(`snippet.banner`)))
func CompileSnippet(v cue.Value) (ir.Snippet, error) {
	if err := v.Err(); err != nil {
		return ir.Snippet{}, formatCUEError(err)
	}

	var sn ir.Snippet
	sels := v.Path().Selectors()
	if len(sels) > 0 {
		sn.ID = selectorName(sels[len(sels)-1])
	}
	if sn.ID == "" {
		return ir.Snippet{}, &CompileError{Field: "id", Message: "snippet label is required", Pos: v.Pos()}
	}

	var err error
	if sn.Name, err = stringField(v, "name", true); err != nil {
		return ir.Snippet{}, err
	}
	if sn.Description, err = stringField(v, "description", false); err != nil {
		return ir.Snippet{}, err
	}
	kind, err := stringField(v, "kind", false)
	if err != nil {
		return ir.Snippet{}, err
	}
	sn.Kind = ir.Kind(kind)
	scope, err := stringField(v, "scope", false)
	if err != nil {
		return ir.Snippet{}, err
	}
	sn.Scope = ir.Scope(scope)
	if sn.Content, err = stringField(v, "content", false); err != nil {
		return ir.Snippet{}, err
	}
	if sn.Category, err = stringField(v, "category", false); err != nil {
		return ir.Snippet{}, err
	}
	if sn.Enabled, err = boolField(v, "enabled"); err != nil {
		return ir.Snippet{}, err
	}
	if sn.RunOnce, err = boolField(v, "run_once"); err != nil {
		return ir.Snippet{}, err
	}

	sn.Priority = ir.DefaultPriority
	pv, ok, err := lookup(v, "priority")
	if err != nil {
		return ir.Snippet{}, err
	}
	if ok {
		n, err := pv.Int64()
		if err != nil {
			return ir.Snippet{}, formatCUEError(err)
		}
		sn.Priority = int(n)
	}

	if sn.Tags, err = stringList(v, "tags"); err != nil {
		return ir.Snippet{}, err
	}

	cv, ok, err := lookup(v, "conditions")
	if err != nil {
		return ir.Snippet{}, err
	}
	if ok {
		if sn.Conditions.Login, err = stringField(cv, "login", false); err != nil {
			return ir.Snippet{}, err
		}
		if sn.Conditions.Device, err = stringField(cv, "device", false); err != nil {
			return ir.Snippet{}, err
		}
		if sn.Conditions.URLPatterns, err = stringList(cv, "url_patterns"); err != nil {
			return ir.Snippet{}, err
		}
	}

	ir.Normalize(&sn)
	return sn, nil
}

func selectorName(sel cue.Selector) string {
	if sel.LabelType() == cue.StringLabel {
		return sel.Unquoted()
	}
	return sel.String()
}

// lookup returns the field with its default applied. A field the schema
// declares but the definition leaves open counts as absent.
func lookup(v cue.Value, name string) (cue.Value, bool, error) {
	fv := v.LookupPath(cue.MakePath(cue.Str(name)))
	if !fv.Exists() {
		return fv, false, nil
	}
	if err := fv.Err(); err != nil {
		return fv, false, formatCUEError(err)
	}
	if d, ok := fv.Default(); ok {
		fv = d
	}
	if fv.IncompleteKind() != cue.ListKind && !fv.IsConcrete() {
		return fv, false, nil
	}
	return fv, true, nil
}

func stringField(v cue.Value, name string, required bool) (string, error) {
	fv, ok, err := lookup(v, name)
	if err != nil {
		return "", err
	}
	if !ok {
		if required {
			return "", &CompileError{Field: name, Message: name + " is required", Pos: v.Pos()}
		}
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func boolField(v cue.Value, name string) (bool, error) {
	fv, ok, err := lookup(v, name)
	if err != nil || !ok {
		return false, err
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

func stringList(v cue.Value, name string) ([]string, error) {
	fv, ok, err := lookup(v, name)
	if err != nil || !ok {
		return nil, err
	}
	iter, err := fv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, s)
	}
	return out, nil
}

// CompileError is a definition error with its CUE source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}
	return err
}
