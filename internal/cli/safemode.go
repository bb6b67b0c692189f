package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

// SafeModeStatus is the safe-mode command's output.
type SafeModeStatus struct {
	Enabled bool   `json:"enabled"`
	Marker  string `json:"marker,omitempty"`
}

// NewSafeModeCommand creates the safe-mode command and its subcommands.
func NewSafeModeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "safe-mode",
		Short: "Show or change safe mode",
		Long: `While safe mode is on no snippet runs. Turning it on disables every
snippet; turning it off leaves them disabled so they can be enabled one
at a time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return safeModeOp(cmd, rootOpts, nil)
		},
	}

	ops := []struct {
		use, short string
		fn         func(ctx context.Context, app *App) error
	}{
		{"status", "Show whether safe mode is on", nil},
		{"on", "Turn safe mode on and disable every snippet", func(ctx context.Context, app *App) error {
			return app.Engine.EnableSafeMode(ctx, true)
		}},
		{"off", "Turn safe mode off", func(ctx context.Context, app *App) error {
			return app.Engine.DisableSafeMode(ctx)
		}},
		{"toggle", "Flip safe mode", func(ctx context.Context, app *App) error {
			return app.Engine.ToggleSafeMode(ctx)
		}},
	}
	for _, op := range ops {
		cmd.AddCommand(&cobra.Command{
			Use:   op.use,
			Short: op.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return safeModeOp(cmd, rootOpts, op.fn)
			},
		})
	}
	return cmd
}

func safeModeOp(cmd *cobra.Command, rootOpts *RootOptions, fn func(ctx context.Context, app *App) error) error {
	return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
		if fn != nil {
			if err := fn(ctx, app); err != nil {
				return err
			}
		}
		return printSafeMode(ctx, app, out)
	})
}

func printSafeMode(ctx context.Context, app *App, out *OutputFormatter) error {
	status := SafeModeStatus{Enabled: app.Engine.IsSafeModeEnabled(ctx)}
	marker, err := app.Engine.Marker(ctx)
	if err != nil {
		return err
	}
	status.Marker = marker
	return out.Print(status, func(w io.Writer) {
		if status.Enabled {
			fmt.Fprintln(w, "Safe mode: on")
		} else {
			fmt.Fprintln(w, "Safe mode: off")
		}
		if status.Marker != "" {
			fmt.Fprintf(w, "Executing: %s\n", status.Marker)
		}
	})
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	var crash bool
	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Force safe mode on, disable every snippet and clear the error log",
		Long: `Emergency recovery for a site that no longer serves pages: safe mode is
forced on, every snippet is disabled and the error log is cleared.

With --crash, the crash file left by a dead serve process is inspected
instead, as serve does on startup: the snippet that was running is logged
and disabled and safe mode is turned on.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if crash {
					if err := app.Engine.RecoverCrash(ctx, app.Config.Engine.CrashFile); err != nil {
						return err
					}
				} else if err := app.Engine.EmergencyRecover(ctx); err != nil {
					return err
				}
				return printSafeMode(ctx, app, out)
			})
		},
	}
	cmd.Flags().BoolVar(&crash, "crash", false, "inspect the crash file instead of forcing recovery")
	return cmd
}

// NewErrorsCommand creates the errors command.
func NewErrorsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "errors",
		Short: "Show the error log, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				entries, err := app.Engine.ErrorLog(ctx)
				if err != nil {
					return err
				}
				return out.Print(entries, func(w io.Writer) {
					if len(entries) == 0 {
						fmt.Fprintln(w, "No errors.")
						return
					}
					for _, e := range entries {
						fmt.Fprintf(w, "%s  %s  x%d", e.Timestamp.Format("2006-01-02 15:04:05"), e.SnippetID, e.Count)
						if e.URL != "" {
							fmt.Fprintf(w, "  %s", e.URL)
						}
						fmt.Fprintf(w, "\n  %s\n", e.Message)
					}
				})
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the error log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, rootOpts, func(ctx context.Context, app *App, out *OutputFormatter) error {
				if err := app.Engine.ClearErrorLog(ctx); err != nil {
					return err
				}
				return out.Print(map[string]bool{"cleared": true}, func(w io.Writer) {
					fmt.Fprintln(w, "Error log cleared.")
				})
			})
		},
	})
	return cmd
}
