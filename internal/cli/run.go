package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/snipd/internal/engine"
	"github.com/roach88/snipd/internal/ir"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Path     string
	Admin    bool
	LoggedIn bool
	Mobile   bool
	Body     string
}

// RunResult is what one page pass produced.
type RunResult struct {
	Request ir.RequestContext `json:"request"`
	Events  []engine.Event    `json:"events"`
	Head    string            `json:"head,omitempty"`
	Body    string            `json:"body,omitempty"`
	Footer  string            `json:"footer,omitempty"`
	Output  string            `json:"output,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [id]",
		Short: "Run snippets for a simulated request",
		Long: `Run the scheduling pass for a simulated request and print what each
snippet did and what it would add to the page. With an id, run only that
snippet as an inline reference and print its output.

Runs against the real store: errors are logged, collisions and run-once
snippets are disabled, exactly as when serving.

Examples:
  snipd run --path /blog/post-1 --logged-in
  snipd run 0190c2a4-... --path /about`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if len(args) == 1 {
					return runSingle(ctx, app, out, opts, args[0])
				}
				return runPage(ctx, app, out, opts)
			})
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", "/", "request path")
	cmd.Flags().BoolVar(&opts.Admin, "admin", false, "treat the request as an administrative page")
	cmd.Flags().BoolVar(&opts.LoggedIn, "logged-in", false, "treat the visitor as logged in")
	cmd.Flags().BoolVar(&opts.Mobile, "mobile", false, "treat the visitor as using a mobile device")
	cmd.Flags().StringVar(&opts.Body, "body", "", "page body passed through body filters")

	return cmd
}

func (o *RunOptions) request(mode ir.Mode) ir.RequestContext {
	if o.Admin {
		mode = ir.ModeAdmin
	}
	return ir.RequestContext{
		Mode:          mode,
		Path:          o.Path,
		Authenticated: o.LoggedIn,
		Mobile:        o.Mobile,
	}
}

func runPage(ctx context.Context, app *App, out *OutputFormatter, opts *RunOptions) error {
	rc := opts.request(ir.ModeFrontend)
	if app.Engine.IsSafeModeEnabled(ctx) {
		out.VerboseLog("safe mode is on: nothing runs")
	}

	page := app.Engine.NewPage(rc)
	if err := page.ScheduleAndRun(ctx); err != nil {
		return err
	}
	res := RunResult{
		Request: rc,
		Head:    page.Head(ctx),
		Footer:  page.Footer(ctx),
	}
	res.Body = page.FilterBody(ctx, opts.Body)
	res.Events = page.Events()

	return out.Print(res, func(w io.Writer) {
		if len(res.Events) == 0 {
			fmt.Fprintln(w, "Nothing ran.")
		}
		for _, ev := range res.Events {
			fmt.Fprintf(w, "%-10s %s", ev.Outcome, ev.SnippetID)
			if ev.Detail != "" && opts.Verbose {
				fmt.Fprintf(w, "  %s", ev.Detail)
			}
			fmt.Fprintln(w)
		}
		printRegion(w, "head", res.Head)
		printRegion(w, "body", res.Body)
		printRegion(w, "footer", res.Footer)
	})
}

func runSingle(ctx context.Context, app *App, out *OutputFormatter, opts *RunOptions, id string) error {
	rc := opts.request(ir.ModeInline)
	page := app.Engine.NewPage(rc)
	output, err := page.RunSingle(ctx, id)
	if err != nil {
		if engine.IsCollision(err) || engine.IsExecution(err) {
			return WrapExitError(ExitFailure, "snippet failed", err)
		}
		return commandError(err)
	}
	res := RunResult{Request: rc, Events: page.Events(), Output: output}
	return out.Print(res, func(w io.Writer) {
		fmt.Fprint(w, output)
		if output != "" && output[len(output)-1] != '\n' {
			fmt.Fprintln(w)
		}
	})
}

func printRegion(w io.Writer, name, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(w, "\n--- %s ---\n%s\n", name, text)
}
