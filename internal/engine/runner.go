package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/snipd/internal/interp"
	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/symbols"
)

// runCode executes a code snippet in sess.
//
// Blank content is a successful no-op. Otherwise the fragment must pass
// preflight, then runs with the marker pointing at it. Fragments that call
// the hook API are registered for their side effects; all others produce a
// value. Ordinary failures are logged and returned as *ExecutionError; the
// snippet stays enabled.
func (e *Engine) runCode(ctx context.Context, sess Session, sn ir.Snippet, url string) (interp.Result, error) {
	if strings.TrimSpace(sn.Content) == "" {
		return interp.Result{}, nil
	}
	if err := e.preflight(ctx, sess, sn, url); err != nil {
		return interp.Result{}, err
	}

	strategy := StrategyProduce
	pkg := symbols.LocalName(sn.Content, interp.BridgePath, interp.BridgeName)
	if symbols.UsesHooks(sn.Content, pkg) {
		strategy = StrategyRegister
	}

	var (
		res interp.Result
		err error
	)
	markErr := e.withMarker(ctx, sn.ID, func() {
		if strategy == StrategyRegister {
			err = sess.Register(ctx, sn.ID, sn.Content)
		} else {
			res, err = sess.Produce(ctx, sn.ID, sn.Content)
		}
	})
	if markErr != nil {
		return interp.Result{}, markErr
	}
	if err != nil {
		eerr := &ExecutionError{SnippetID: sn.ID, Strategy: strategy, Err: err}
		e.logError(ctx, sn.ID, eerr.LogMessage(), url)
		return interp.Result{}, eerr
	}

	e.logger.Debug("snippet executed", "snippet", sn.ID, "strategy", string(strategy))
	return res, nil
}

// withMarker records id as executing, runs fn, then clears the marker.
// If the marker cannot be recorded fn does not run: a crash could not be
// attributed.
func (e *Engine) withMarker(ctx context.Context, id string, fn func()) error {
	if err := e.marker.Set(ctx, id); err != nil {
		e.logger.Error("failed to record executing snippet", "snippet", id, "error", err)
		return fmt.Errorf("record executing snippet: %w", err)
	}
	fn()
	if err := e.marker.Clear(ctx); err != nil {
		e.logger.Error("failed to clear executing snippet", "snippet", id, "error", err)
	}
	return nil
}
