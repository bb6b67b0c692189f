package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/snipd/internal/compiler"
	"github.com/roach88/snipd/internal/host"
)

// ServeOptions holds flags for the serve command. Each flag overrides the
// configuration key of the same meaning.
type ServeOptions struct {
	*RootOptions
	Addr      string
	Upstream  string
	Root      string
	Defs      string
	Watch     bool
	LogFormat string
	LogFile   string
	RedisURL  string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve pages with snippets injected",
		Long: `Serve pages with snippets injected, proxying an upstream site or serving a
static directory.

On startup the crash file of the previous process is inspected: if it
died inside a snippet, that snippet is disabled and safe mode is turned on.
The runtime is then told to write crash reports to the same file.

The management API is served under server.api_prefix (default /_snipd/api).

Examples:
  snipd serve --upstream http://localhost:3000
  snipd serve --root ./public --defs ./snippets --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (default :8080)")
	cmd.Flags().StringVar(&opts.Upstream, "upstream", "", "absolute URL of the site to proxy")
	cmd.Flags().StringVar(&opts.Root, "root", "", "directory to serve instead of an upstream")
	cmd.Flags().StringVar(&opts.Defs, "defs", "", "directory of CUE snippet definitions to apply")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "re-apply definitions when they change")
	cmd.Flags().StringVar(&opts.LogFormat, "log-format", "", "log format (text|json)")
	cmd.Flags().StringVar(&opts.LogFile, "log-file", "", "also append logs to this file")
	cmd.Flags().StringVar(&opts.RedisURL, "redis-url", "", "redis URL for shared state")

	return cmd
}

func runServe(opts *ServeOptions, cmd *cobra.Command) error {
	app, err := openApp(cmd, opts.RootOptions, true)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Error("error closing app", "error", err)
		}
	}()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := app.Config
	logger := app.Logger

	if err := app.Engine.RecoverCrash(ctx, cfg.Engine.CrashFile); err != nil {
		return WrapExitError(ExitFailure, "crash recovery failed", err)
	}
	if cfg.Engine.CrashFile != "" {
		f, err := host.EnableCrashOutput(cfg.Engine.CrashFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open crash file", err)
		}
		defer f.Close()
	}
	if app.Engine.IsSafeModeEnabled(ctx) {
		logger.Warn("safe mode is on: no snippet will run until it is turned off")
	}

	if cfg.Defs.Dir != "" {
		if err := startDefinitions(ctx, app, cfg.Defs.Dir, cfg.Defs.Watch); err != nil {
			return err
		}
	}

	srv, err := host.New(app.Engine, host.Options{
		AdminPrefix: cfg.Server.AdminPrefix,
		AuthCookie:  cfg.Server.AuthCookie,
		APIPrefix:   cfg.Server.APIPrefix,
		Upstream:    cfg.Server.Upstream,
		Root:        cfg.Server.Root,
		Logger:      logger,
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid server configuration", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "snipd listening on %s\n", cfg.Server.Addr)
	if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
		return WrapExitError(ExitFailure, "server error", err)
	}
	logger.Info("server stopped gracefully")
	return nil
}

// startDefinitions applies the definitions directory once, or keeps
// applying it on every change when watch is set.
func startDefinitions(ctx context.Context, app *App, dir string, watch bool) error {
	if !watch {
		res, errs := compiler.Load(dir, compiler.LoadModeCollectAll)
		for _, err := range errs {
			app.Logger.Warn("definition error", "dir", dir, "error", err)
		}
		if res == nil {
			return WrapExitError(ExitCommandError, "failed to load definitions", errs[0])
		}
		applyDefinitions(ctx, app, dir, res)
		return nil
	}

	w := compiler.NewWatcher(dir, func(ctx context.Context, res *compiler.LoadResult, _ []error) {
		applyDefinitions(ctx, app, dir, res)
	}).WithLogger(app.Logger)

	go func() {
		if err := w.Run(ctx); err != nil {
			app.Logger.Error("definition watcher stopped", "dir", dir, "error", err)
		}
	}()
	return nil
}
