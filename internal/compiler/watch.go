package compiler

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce groups the burst of events an editor save produces.
const DefaultDebounce = 200 * time.Millisecond

// Watcher reloads a definitions directory whenever a .cue file in it
// changes.
type Watcher struct {
	dir      string
	debounce time.Duration
	onLoad   func(context.Context, *LoadResult, []error)
	logger   *slog.Logger
}

// NewWatcher creates a watcher for dir. onLoad receives every reload
// result, including failed ones (nil result).
func NewWatcher(dir string, onLoad func(context.Context, *LoadResult, []error)) *Watcher {
	return &Watcher{
		dir:      dir,
		debounce: DefaultDebounce,
		onLoad:   onLoad,
		logger:   slog.Default(),
	}
}

// WithDebounce sets the quiet period before a reload.
func (w *Watcher) WithDebounce(d time.Duration) *Watcher {
	w.debounce = d
	return w
}

// WithLogger sets the logger.
func (w *Watcher) WithLogger(l *slog.Logger) *Watcher {
	w.logger = l
	return w
}

// Run watches until ctx is done. The directory is loaded once before
// watching starts.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.dir, err)
	}

	w.reload(ctx)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(event.Name) != ".cue" || event.Op == fsnotify.Chmod {
				continue
			}
			w.logger.Debug("definition changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(w.debounce)

		case <-timer.C:
			w.reload(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	res, errs := Load(w.dir, LoadModeCollectAll)
	for _, err := range errs {
		w.logger.Warn("definition error", "dir", w.dir, "error", err)
	}
	if res != nil {
		w.logger.Info("definitions loaded", "dir", w.dir, "snippets", len(res.Snippets), "files", res.FileCount)
	}
	w.onLoad(ctx, res, errs)
}
