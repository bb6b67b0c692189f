package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/state"
)

// Messages written to the error log under ir.SystemLogID.
const (
	msgSafeModeEnabled  = "Safe mode enabled. All snippets disabled."
	msgSafeModeDisabled = "Safe mode disabled by operator."
)

// EnableSafeMode turns safe mode on and disables every snippet.
//
// It is a no-op when safe mode is already on. With logLine set, a system
// log entry is written unless one was written within the configured
// interval.
func (e *Engine) EnableSafeMode(ctx context.Context, logLine bool) error {
	if e.safeMode.Enabled(ctx) {
		return nil
	}
	return e.enterSafeMode(ctx, logLine)
}

func (e *Engine) enterSafeMode(ctx context.Context, logLine bool) error {
	now := e.clock.Now()
	if err := e.safeMode.Set(ctx, true); err != nil {
		return err
	}
	if err := e.store.DisableAll(ctx, now); err != nil {
		return fmt.Errorf("enable safe mode: %w", err)
	}
	e.logger.Warn("safe mode enabled")

	if logLine && e.safeModeLogDue(ctx, now) {
		e.logError(ctx, ir.SystemLogID, msgSafeModeEnabled, "")
		stamp := strconv.FormatInt(now.Unix(), 10)
		if err := e.backend.Set(ctx, state.KeySafeModeLogTime, stamp); err != nil {
			e.logger.Error("failed to record safe mode log time", "error", err)
		}
	}
	return nil
}

// safeModeLogDue is true when no safe-mode line was logged within the
// suppression interval. An unreadable timestamp counts as due.
func (e *Engine) safeModeLogDue(ctx context.Context, now time.Time) bool {
	v, ok, err := e.backend.Get(ctx, state.KeySafeModeLogTime)
	if err != nil || !ok {
		return true
	}
	last, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return true
	}
	return now.Sub(time.Unix(last, 0)) > e.cfg.SafeModeLogInterval
}

// DisableSafeMode turns safe mode off. Snippets stay disabled until an
// operator enables them one by one.
func (e *Engine) DisableSafeMode(ctx context.Context) error {
	if !e.safeMode.Enabled(ctx) {
		return nil
	}
	if err := e.safeMode.Set(ctx, false); err != nil {
		return err
	}
	e.logger.Info("safe mode disabled")
	e.logError(ctx, ir.SystemLogID, msgSafeModeDisabled, "")
	return nil
}

// ToggleSafeMode flips safe mode.
func (e *Engine) ToggleSafeMode(ctx context.Context) error {
	if e.safeMode.Enabled(ctx) {
		return e.DisableSafeMode(ctx)
	}
	return e.enterSafeMode(ctx, true)
}

// EmergencyRecover forces safe mode on, disables every snippet and clears
// the error log, without writing a safe-mode log line.
func (e *Engine) EmergencyRecover(ctx context.Context) error {
	if err := e.safeMode.Set(ctx, true); err != nil {
		return err
	}
	if err := e.store.DisableAll(ctx, e.clock.Now()); err != nil {
		return fmt.Errorf("emergency recover: %w", err)
	}
	if err := e.store.ClearErrorLog(ctx); err != nil {
		return fmt.Errorf("emergency recover: %w", err)
	}
	e.logger.Warn("emergency recovery performed")
	return nil
}

// Inspect examines the last failure the host recorded.
//
// Nil records and non-fatal kinds are ignored, and so are fatal records
// that carry none of the configured crash markers. Otherwise the snippet
// named by the marker (if any) is logged and disabled, safe mode is
// entered, and the marker is cleared.
func (e *Engine) Inspect(ctx context.Context, rec *ir.FatalRecord) error {
	return e.InspectAt(ctx, rec, "")
}

// InspectAt is Inspect with the URL of the request that failed.
func (e *Engine) InspectAt(ctx context.Context, rec *ir.FatalRecord, url string) error {
	if !rec.IsFatal() {
		return nil
	}
	if !e.fromExecution(rec) {
		e.logger.Debug("fatal error not attributed to snippets", "message", rec.Message, "file", rec.File)
		return nil
	}

	var errs []error
	id, err := e.marker.Current(ctx)
	if err != nil {
		errs = append(errs, err)
	}
	if id != "" {
		e.logError(ctx, id, fatalMessage(rec), url)
		if err := e.DisableSnippet(ctx, id); err != nil {
			errs = append(errs, fmt.Errorf("disable %s: %w", id, err))
		}
	}
	if err := e.EnableSafeMode(ctx, true); err != nil {
		errs = append(errs, err)
	}
	if err := e.marker.Clear(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func fatalMessage(rec *ir.FatalRecord) string {
	msg, file := rec.Message, rec.File
	if msg == "" {
		msg = "unknown error"
	}
	if file == "" {
		file = "unknown file"
	}
	return fmt.Sprintf("Fatal error: %s in %s on line %d", msg, file, rec.Line)
}

// fromExecution reports whether the record mentions a crash marker.
func (e *Engine) fromExecution(rec *ir.FatalRecord) bool {
	msg := strings.ToLower(rec.Message)
	file := strings.ToLower(rec.File)
	for _, m := range e.cfg.CrashMarkers {
		m = strings.ToLower(strings.TrimSpace(m))
		if m == "" {
			continue
		}
		if strings.Contains(msg, m) || strings.Contains(file, m) {
			return true
		}
	}
	return false
}

// RecoverCrash runs at startup. It parses the crash output file the
// previous process may have left, inspects it, and truncates the file.
//
// Without a crash record a leftover marker means the previous process was
// killed mid-snippet without the runtime reporting anything; the marker is
// logged and cleared, but nothing is disabled. Shared state skips that
// step because a live peer may own the marker.
func (e *Engine) RecoverCrash(ctx context.Context, crashFile string) error {
	var data []byte
	if crashFile != "" {
		b, err := os.ReadFile(crashFile)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read crash file: %w", err)
		}
		data = b
	}

	if rec := ParseCrashOutput(data, e.cfg.CrashMarkers); rec != nil {
		e.logger.Warn("previous process crashed", "message", rec.Message, "file", rec.File, "line", rec.Line)
		if err := e.Inspect(ctx, rec); err != nil {
			return err
		}
		if err := os.Truncate(crashFile, 0); err != nil {
			return fmt.Errorf("truncate crash file: %w", err)
		}
		return nil
	}

	if e.cfg.SharedState {
		return nil
	}
	id, err := e.marker.Current(ctx)
	if err != nil || id == "" {
		return err
	}
	e.logger.Warn("stale executing-snippet marker cleared", "snippet", id)
	return e.marker.Clear(ctx)
}
