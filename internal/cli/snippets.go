package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/roach88/snipd/internal/ir"
)

// snippetFlags are the editable snippet fields shared by add and edit.
type snippetFlags struct {
	name        string
	description string
	kind        string
	scope       string
	priority    int
	runOnce     bool
	enabled     bool
	login       string
	device      string
	urls        []string
	category    string
	tags        []string
	content     string
	file        string
}

func (f *snippetFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "snippet name")
	fs.StringVar(&f.description, "description", "", "free-form description")
	fs.StringVar(&f.kind, "kind", string(ir.KindCode), "code|css|js|html|header|footer")
	fs.StringVar(&f.scope, "scope", string(ir.ScopeEverywhere), "everywhere|frontend|admin|inline")
	fs.IntVar(&f.priority, "priority", ir.DefaultPriority, "lower runs first")
	fs.BoolVar(&f.runOnce, "run-once", false, "disable after the first successful run")
	fs.BoolVar(&f.enabled, "enabled", false, "enable the snippet")
	fs.StringVar(&f.login, "login", "", "any|logged_in|logged_out")
	fs.StringVar(&f.device, "device", "", "any|desktop|mobile")
	fs.StringSliceVar(&f.urls, "url", nil, "URL pattern, * matches any run of characters (repeatable)")
	fs.StringVar(&f.category, "category", "", "category label")
	fs.StringSliceVar(&f.tags, "tag", nil, "tag (repeatable)")
	fs.StringVar(&f.content, "content", "", "snippet content")
	fs.StringVarP(&f.file, "file", "f", "", "read content from file (- for stdin)")
}

// apply copies every flag the user set onto sn.
func (f *snippetFlags) apply(cmd *cobra.Command, sn *ir.Snippet) error {
	changed := cmd.Flags().Changed
	if changed("name") {
		sn.Name = f.name
	}
	if changed("description") {
		sn.Description = f.description
	}
	if changed("kind") || sn.Kind == "" {
		sn.Kind = ir.Kind(f.kind)
	}
	if changed("scope") || sn.Scope == "" {
		sn.Scope = ir.Scope(f.scope)
	}
	if changed("priority") || sn.Priority == 0 {
		sn.Priority = f.priority
	}
	if changed("run-once") {
		sn.RunOnce = f.runOnce
	}
	if changed("enabled") {
		sn.Enabled = f.enabled
	}
	if changed("login") {
		sn.Conditions.Login = f.login
	}
	if changed("device") {
		sn.Conditions.Device = f.device
	}
	if changed("url") {
		sn.Conditions.URLPatterns = f.urls
	}
	if changed("category") {
		sn.Category = f.category
	}
	if changed("tag") {
		sn.Tags = f.tags
	}

	if changed("content") && changed("file") {
		return NewExitError(ExitCommandError, "--content and --file are mutually exclusive")
	}
	if changed("content") {
		sn.Content = f.content
	}
	if changed("file") {
		data, err := readContent(cmd, f.file)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read content", err)
		}
		sn.Content = data
	}
	return nil
}

func readContent(cmd *cobra.Command, path string) (string, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		return string(data), err
	}
	data, err := os.ReadFile(path)
	return string(data), err
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	var kind string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List snippets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				all, err := app.Engine.List(ctx)
				if err != nil {
					return err
				}
				if kind != "" {
					filtered := all[:0]
					for _, sn := range all {
						if string(sn.Kind) == kind {
							filtered = append(filtered, sn)
						}
					}
					all = filtered
				}
				return out.Print(all, func(w io.Writer) {
					if len(all) == 0 {
						fmt.Fprintln(w, "No snippets.")
						return
					}
					for _, sn := range all {
						fmt.Fprintln(w, describe(sn))
					}
				})
			})
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only list snippets of this kind")
	return cmd
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one snippet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				sn, err := app.Engine.Get(ctx, args[0])
				if err != nil {
					return commandError(err)
				}
				return out.Print(sn, func(w io.Writer) { printSnippet(w, sn) })
			})
		},
	}
}

func printSnippet(w io.Writer, sn ir.Snippet) {
	fmt.Fprintf(w, "ID:        %s\n", sn.ID)
	fmt.Fprintf(w, "Name:      %s\n", sn.Name)
	if sn.Description != "" {
		fmt.Fprintf(w, "About:     %s\n", sn.Description)
	}
	fmt.Fprintf(w, "Kind:      %s\n", sn.Kind)
	fmt.Fprintf(w, "Scope:     %s\n", sn.Scope)
	fmt.Fprintf(w, "Enabled:   %t\n", sn.Enabled)
	fmt.Fprintf(w, "Priority:  %d\n", sn.Priority)
	if sn.RunOnce {
		fmt.Fprintln(w, "Run once:  true")
	}
	if !sn.Conditions.IsZero() {
		fmt.Fprintf(w, "Login:     %s\n", orAny(sn.Conditions.Login))
		fmt.Fprintf(w, "Device:    %s\n", orAny(sn.Conditions.Device))
		if len(sn.Conditions.URLPatterns) > 0 {
			fmt.Fprintf(w, "URLs:      %s\n", strings.Join(sn.Conditions.URLPatterns, ", "))
		}
	}
	if len(sn.Tags) > 0 {
		fmt.Fprintf(w, "Tags:      %s\n", strings.Join(sn.Tags, ", "))
	}
	fmt.Fprintf(w, "Modified:  %s\n", sn.ModifiedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintln(w)
	fmt.Fprintln(w, sn.Content)
}

func orAny(v string) string {
	if v == "" {
		return "any"
	}
	return v
}

// NewAddCommand creates the add command.
func NewAddCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &snippetFlags{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a snippet",
		Long: `Create a snippet. New snippets are disabled unless --enabled is given.
Code that does not parse, or imports a package outside the allowlist, is
stored disabled and the reason is written to the error log.

Examples:
  snipd add --name "Brand" --kind css --content "body { color: red }" --enabled
  snipd add --name "Greeting" --file greet.go --url "/blog/*"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sn ir.Snippet
			if err := flags.apply(cmd, &sn); err != nil {
				return err
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				created, err := app.Engine.Create(ctx, sn)
				if err != nil {
					return commandError(err)
				}
				return out.Print(created, func(w io.Writer) {
					fmt.Fprintf(w, "Created %s\n", describe(created))
				})
			})
		},
	}
	flags.bind(cmd.Flags())
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// NewEditCommand creates the edit command.
func NewEditCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &snippetFlags{}
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a snippet",
		Long: `Change the fields given as flags. When the content changes, the previous
content is kept as a revision.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				sn, err := app.Engine.Get(ctx, args[0])
				if err != nil {
					return commandError(err)
				}
				if err := flags.apply(cmd, &sn); err != nil {
					return err
				}
				updated, err := app.Engine.Update(ctx, sn)
				if err != nil {
					return commandError(err)
				}
				return out.Print(updated, func(w io.Writer) {
					fmt.Fprintf(w, "Updated %s\n", describe(updated))
				})
			})
		},
	}
	flags.bind(cmd.Flags())
	return cmd
}

// NewEnableCommand creates the enable command.
func NewEnableCommand(rootOpts *RootOptions) *cobra.Command {
	return newSwitchCommand(rootOpts, "enable", true)
}

// NewDisableCommand creates the disable command.
func NewDisableCommand(rootOpts *RootOptions) *cobra.Command {
	return newSwitchCommand(rootOpts, "disable", false)
}

func newSwitchCommand(rootOpts *RootOptions, name string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>...",
		Short: strings.ToUpper(name[:1]) + name[1:] + " snippets",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				changed := make([]ir.Snippet, 0, len(args))
				for _, id := range args {
					set := app.Engine.DisableSnippet
					if enabled {
						set = app.Engine.EnableSnippet
					}
					if err := set(ctx, id); err != nil {
						return commandError(err)
					}
					sn, err := app.Engine.Get(ctx, id)
					if err != nil {
						return commandError(err)
					}
					changed = append(changed, sn)
				}
				return out.Print(changed, func(w io.Writer) {
					for _, sn := range changed {
						fmt.Fprintln(w, describe(sn))
					}
				})
			})
		},
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a snippet and its revisions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := app.Engine.Delete(ctx, args[0]); err != nil {
					return commandError(err)
				}
				return out.Print(map[string]string{"deleted": args[0]}, func(w io.Writer) {
					fmt.Fprintf(w, "Deleted %s\n", args[0])
				})
			})
		},
	}
}

// NewCloneCommand creates the clone command.
func NewCloneCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clone <id>",
		Short: "Copy a snippet under a new id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				cp, err := app.Engine.Clone(ctx, args[0])
				if err != nil {
					return commandError(err)
				}
				return out.Print(cp, func(w io.Writer) {
					fmt.Fprintf(w, "Cloned %s\n", describe(cp))
				})
			})
		},
	}
}

// NewRevisionsCommand creates the revisions command.
func NewRevisionsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "revisions <id>",
		Short: "List saved revisions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if _, err := app.Engine.Get(ctx, args[0]); err != nil {
					return commandError(err)
				}
				revs, err := app.Engine.Revisions(ctx, args[0])
				if err != nil {
					return err
				}
				return out.Print(revs, func(w io.Writer) {
					if len(revs) == 0 {
						fmt.Fprintln(w, "No revisions.")
						return
					}
					for i, rev := range revs {
						fmt.Fprintf(w, "%3d  %s  %.12s  %s\n", i, rev.ModifiedAt.Format("2006-01-02 15:04:05"), rev.ContentHash, rev.Name)
					}
				})
			})
		},
	}
}

// NewRestoreCommand creates the restore command.
func NewRestoreCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "restore <id> <index>",
		Short: "Put a revision's content back",
		Long: `Put the content of revision <index> (as listed by revisions) back. The
current content is saved as a revision first.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			index, err := strconv.Atoi(args[1])
			if err != nil {
				return WrapExitError(ExitCommandError, "invalid revision index", err)
			}
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				sn, err := app.Engine.Restore(ctx, args[0], index)
				if err != nil {
					return commandError(err)
				}
				return out.Print(sn, func(w io.Writer) {
					fmt.Fprintf(w, "Restored %s\n", describe(sn))
				})
			})
		},
	}
}
