package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/transfer"
)

// ImportResult reports what an import stored.
type ImportResult struct {
	File     string       `json:"file"`
	Imported int          `json:"imported"`
	Snippets []ir.Snippet `json:"snippets"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import snippets from an export document",
		Long: `Import snippets from a .json, .yaml or .yml export document. Every
snippet gets a new id and is stored disabled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := transfer.ReadFile(args[0])
			if err != nil {
				if errors.Is(err, transfer.ErrTooLarge) || errors.Is(err, transfer.ErrNoSnippets) {
					return WrapExitError(ExitFailure, "invalid document", err)
				}
				return WrapExitError(ExitCommandError, "failed to read document", err)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				stored, err := app.Engine.Import(ctx, doc.Snippets)
				if err != nil {
					return commandError(err)
				}
				res := ImportResult{File: args[0], Imported: len(stored), Snippets: stored}
				return out.Print(res, func(w io.Writer) {
					fmt.Fprintf(w, "Imported %d snippet(s) from %s (disabled)\n", res.Imported, res.File)
					for _, sn := range stored {
						fmt.Fprintln(w, "  "+describe(sn))
					}
				})
			})
		},
	}
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		output string
		yaml   bool
	)
	cmd := &cobra.Command{
		Use:   "export [id...]",
		Short: "Export snippets",
		Long: `Export the named snippets, or all of them, as an export document.
With --output the format follows the file extension; otherwise the document
is written to stdout as JSON (or YAML with --yaml).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				all, err := app.Engine.List(ctx)
				if err != nil {
					return err
				}
				selected := all
				if len(args) > 0 {
					selected = nil
					for _, id := range args {
						i := slices.IndexFunc(all, func(sn ir.Snippet) bool { return sn.ID == id })
						if i < 0 {
							return NewExitError(ExitCommandError, fmt.Sprintf("not found: %s", id))
						}
						selected = append(selected, all[i])
					}
				}

				doc := transfer.NewDocument(selected, app.Engine.Now())
				if output == "" {
					format := transfer.FormatJSON
					if yaml {
						format = transfer.FormatYAML
					}
					return transfer.Write(cmd.OutOrStdout(), doc, format)
				}

				if err := transfer.WriteFile(output, doc); err != nil {
					return WrapExitError(ExitCommandError, "failed to write export", err)
				}
				return out.Print(map[string]any{"file": output, "exported": len(selected)}, func(w io.Writer) {
					fmt.Fprintf(w, "Exported %d snippet(s) to %s\n", len(selected), output)
				})
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file (.json, .yaml or .yml)")
	cmd.Flags().BoolVar(&yaml, "yaml", false, "write YAML to stdout")
	return cmd
}
