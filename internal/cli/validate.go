package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/snipd/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Snippets int                        `json:"snippets"`
	Files    int                        `json:"files"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <defs-dir>",
		Short: "Validate snippet definitions without storing them",
		Long: `Validate CUE snippet definitions without touching the database.

Checks syntax and the definition schema, then each definition's fields,
condition values and URL patterns. Code content is parsed and its imports
checked against the interpreter allowlist; nothing is executed.

Exit codes:
  0 - All definitions valid
  1 - One or more definitions invalid
  2 - Command error (directory not found, no files, etc.)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, rootOpts)
			if err != nil {
				return err
			}
			return runValidate(newFormatter(cmd, rootOpts), newFactory(cfg).Validate, args[0])
		},
	}
	return cmd
}

func runValidate(out *OutputFormatter, check compiler.CodeChecker, dir string) error {
	res, loadErrs := compiler.Load(dir, compiler.LoadModeCollectAll)
	if res == nil {
		code, msg := compiler.ErrCodeGeneric, "nothing loaded"
		if len(loadErrs) > 0 {
			msg = loadErrs[0].Error()
			var loadErr *compiler.LoadError
			if errors.As(loadErrs[0], &loadErr) {
				code, msg = loadErr.Code, loadErr.Message
			}
		}
		if err := out.Error(code, msg, nil); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, msg)
	}

	out.VerboseLog("Found %d CUE file(s) in %s", res.FileCount, dir)

	result := ValidationResult{Snippets: len(res.Snippets), Files: res.FileCount}
	for _, err := range loadErrs {
		verr := compiler.ValidationError{Field: "load", Code: compiler.ErrCodeGeneric, Message: err.Error()}
		var loadErr *compiler.LoadError
		if errors.As(err, &loadErr) {
			verr.Code, verr.Message, verr.Line = loadErr.Code, loadErr.Message, loadErr.Line()
		}
		result.Errors = append(result.Errors, verr)
	}
	for _, sn := range res.Snippets {
		out.VerboseLog("Validating snippet: %s", sn.ID)
		result.Errors = append(result.Errors, compiler.Validate(sn, check)...)
	}
	result.Valid = len(result.Errors) == 0

	if out.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_INVALID",
				Message: fmt.Sprintf("%d validation error(s)", len(result.Errors)),
			}
		}
		if err := out.encode(resp); err != nil {
			return err
		}
	} else {
		printValidation(out.Writer, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(result.Errors)))
	}
	return nil
}

func printValidation(w io.Writer, result ValidationResult) {
	if result.Valid {
		fmt.Fprintf(w, "✓ %d definition(s) valid\n", result.Snippets)
		return
	}
	fmt.Fprintf(w, "✗ %d validation error(s):\n", len(result.Errors))
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
}

// ApplyResult reports what applying definitions changed.
type ApplyResult struct {
	Dir       string   `json:"dir"`
	Applied   int      `json:"applied"`
	Changed   []string `json:"changed"`
	Unchanged int      `json:"unchanged"`
	Errors    []string `json:"errors,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "apply <defs-dir>",
		Short: "Store snippet definitions from CUE files",
		Long: `Store every definition in a directory of CUE files under its own id.

New definitions are created with the enabled flag they declare. For
existing snippets the stored enabled flag is kept, so a snippet disabled by
an operator or by crash recovery stays disabled. Changed content is kept as
a revision first.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			res, loadErrs := compiler.Load(dir, compiler.LoadModeFailFast)
			if len(loadErrs) > 0 {
				return WrapExitError(ExitFailure, "failed to load definitions", loadErrs[0])
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				result := applyDefinitions(ctx, app, dir, res)
				if err := out.Print(result, func(w io.Writer) { printApply(w, result) }); err != nil {
					return err
				}
				if len(result.Errors) > 0 {
					return NewExitError(ExitFailure, fmt.Sprintf("%d definition(s) failed", len(result.Errors)))
				}
				return nil
			})
		},
	}
}

// applyDefinitions stores every loaded definition. Failures are collected
// so one bad definition does not hold back the rest.
func applyDefinitions(ctx context.Context, app *App, dir string, res *compiler.LoadResult) ApplyResult {
	result := ApplyResult{Dir: dir, Changed: []string{}}
	if res == nil {
		return result
	}
	for _, sn := range res.Snippets {
		changed, err := app.Engine.Apply(ctx, sn)
		if err != nil {
			app.Logger.Warn("definition not applied", "snippet", sn.ID, "error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", sn.ID, err))
			continue
		}
		result.Applied++
		if changed {
			result.Changed = append(result.Changed, sn.ID)
		} else {
			result.Unchanged++
		}
	}
	app.Logger.Info("definitions applied", "dir", dir, "applied", result.Applied, "changed", len(result.Changed))
	return result
}

func printApply(w io.Writer, result ApplyResult) {
	fmt.Fprintf(w, "Applied %d definition(s) from %s: %d changed, %d unchanged\n",
		result.Applied, result.Dir, len(result.Changed), result.Unchanged)
	for _, id := range result.Changed {
		fmt.Fprintf(w, "  ~ %s\n", id)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(w, "  ✗ %s\n", e)
	}
}
