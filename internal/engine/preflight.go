package engine

import (
	"context"

	"github.com/roach88/snipd/internal/ir"
)

// preflight blocks a fragment that would redeclare a name already defined
// in the session. A blocked snippet is logged once and disabled.
func (e *Engine) preflight(ctx context.Context, sess Session, sn ir.Snippet, url string) error {
	collisions := sess.Symbols().Conflicts(sn.Content)
	if len(collisions) == 0 {
		return nil
	}

	cerr := &CollisionError{SnippetID: sn.ID, Symbols: collisions}
	e.logError(ctx, sn.ID, cerr.LogMessage(), url)
	e.disable(ctx, sn.ID)
	return cerr
}
