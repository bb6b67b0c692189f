package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/snipd/internal/config"
	"github.com/roach88/snipd/internal/engine"
	"github.com/roach88/snipd/internal/interp"
	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/logging"
	"github.com/roach88/snipd/internal/state"
	"github.com/roach88/snipd/internal/store"
)

// App is everything a command needs once configuration is loaded.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Store   *store.Store
	Factory *interp.Factory
	Engine  *engine.Engine

	closers []io.Closer
}

// loadConfig reads the config file, SNIPD_ environment and the command's
// flags.
func loadConfig(cmd *cobra.Command, opts *RootOptions) (*config.Config, error) {
	loaderOpts := []config.LoaderOption{config.WithFlags(cmd.Flags())}
	if opts.ConfigFile != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(opts.ConfigFile))
	}
	cfg, err := config.NewLoader(loaderOpts...).Load()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. Short-lived commands only report
// warnings on the console unless --verbose is set; daemons log at the
// configured level.
func newLogger(cmd *cobra.Command, opts *RootOptions, cfg *config.Config, daemon bool) (*slog.Logger, io.Closer, error) {
	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "invalid configuration", err)
	}
	if !daemon && level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	if opts.Verbose {
		level = slog.LevelDebug
	}

	logOpts := []logging.Option{
		logging.WithLevel(level),
		logging.WithFormat(cfg.Log.Format),
		logging.WithConsole(cmd.ErrOrStderr()),
	}
	if opts.Quiet {
		logOpts = append(logOpts, logging.WithQuiet())
	}

	var closer io.Closer
	if cfg.Log.File != "" {
		f, err := logging.OpenFile(cfg.Log.File)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open log file", err)
		}
		logOpts = append(logOpts, logging.WithWriter(f))
		closer = f
	}
	return logging.New(logOpts...), closer, nil
}

// newFactory builds the interpreter factory from configuration.
func newFactory(cfg *config.Config) *interp.Factory {
	return interp.NewFactory(interp.Options{
		Packages: cfg.Interpreter.Packages,
		Reserved: cfg.Engine.ReservedSymbols,
	})
}

// openApp loads configuration and opens the store, the state backend and
// the engine. The caller must Close the result.
func openApp(cmd *cobra.Command, opts *RootOptions, daemon bool) (*App, error) {
	ctx := commandContext(cmd)

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg}
	logger, closer, err := newLogger(cmd, opts, cfg, daemon)
	if err != nil {
		return nil, err
	}
	if closer != nil {
		app.closers = append(app.closers, closer)
	}
	app.Logger = logger

	st, err := store.Open(cfg.Database)
	if err != nil {
		app.Close()
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	app.Store = st
	app.closers = append(app.closers, st)

	var backend state.Backend
	switch cfg.State.Backend {
	case config.BackendRedis:
		rb, err := state.NewRedisBackend(ctx, cfg.State.RedisURL, state.DefaultRedisPrefix)
		if err != nil {
			app.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open state backend", err)
		}
		backend = rb
		app.closers = append(app.closers, rb)
	default:
		backend = st.State()
	}

	app.Factory = newFactory(cfg)
	eng, err := engine.New(ctx, st, engine.Yaegi(app.Factory), backend,
		engine.WithConfig(engine.Config{
			ErrorLogSize:        cfg.Engine.ErrorLogSize,
			RevisionLimit:       cfg.Engine.RevisionLimit,
			SafeModeLogInterval: cfg.Engine.SafeModeLogInterval,
			CrashMarkers:        cfg.Engine.CrashMarkers,
			SharedState:         cfg.State.Shared,
		}),
		engine.WithLogger(logger),
	)
	if err != nil {
		app.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start engine", err)
	}
	app.Engine = eng

	logger.Debug("app ready", "database", cfg.Database, "state", cfg.State.Backend, "config", cfg.ConfigFile)
	return app, nil
}

// Close releases everything openApp opened, in reverse order.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newFormatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// commandContext returns the command's context, or Background when the
// command runs outside Execute (for tests).
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// withApp opens the app, runs fn and closes the app.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, app *App, out *OutputFormatter) error) error {
	app, err := openApp(cmd, opts, false)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			app.Logger.Error("error closing app", "error", err)
		}
	}()
	return fn(commandContext(cmd), app, newFormatter(cmd, opts))
}

// commandError gives engine errors an exit code.
func commandError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, store.ErrNotFound) || errors.Is(err, engine.ErrNoRevision) {
		return WrapExitError(ExitCommandError, "not found", err)
	}
	var verr *ir.ValidationError
	if errors.As(err, &verr) {
		return WrapExitError(ExitFailure, "invalid snippet", err)
	}
	return err
}

// describe is the one-line summary of a snippet used in text output.
func describe(sn ir.Snippet) string {
	status := "disabled"
	if sn.Enabled {
		status = "enabled"
	}
	return fmt.Sprintf("%s  %-8s %-10s %-8s p%-3d %s", sn.ID, sn.Kind, sn.Scope, status, sn.Priority, sn.Name)
}
