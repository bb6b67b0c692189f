package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/store"
)

const msgValidationFailed = "Code validation failed. Snippet disabled."

// List returns every stored snippet.
func (e *Engine) List(ctx context.Context) ([]ir.Snippet, error) {
	return e.store.List(ctx)
}

// Get returns one snippet.
func (e *Engine) Get(ctx context.Context, id string) (ir.Snippet, error) {
	return e.store.Get(ctx, id)
}

// Revisions returns a snippet's saved revisions, newest first.
func (e *Engine) Revisions(ctx context.Context, id string) ([]ir.Revision, error) {
	return e.store.Revisions(ctx, id)
}

// Create stores a new snippet under a fresh id and returns it.
func (e *Engine) Create(ctx context.Context, sn ir.Snippet) (ir.Snippet, error) {
	ir.Normalize(&sn)
	if err := ir.Validate(sn); err != nil {
		return ir.Snippet{}, err
	}

	now := e.clock.Now()
	sn.ID = e.ids.Generate()
	sn.CreatedAt = now
	sn.ModifiedAt = now

	sn = e.checkCode(ctx, sn)
	if err := e.store.Save(ctx, sn); err != nil {
		return ir.Snippet{}, fmt.Errorf("create snippet: %w", err)
	}
	e.logger.Info("snippet created", "snippet", sn.ID, "kind", string(sn.Kind))
	return sn, nil
}

// Update replaces a stored snippet. When the content changes the previous
// content is kept as a revision first.
func (e *Engine) Update(ctx context.Context, sn ir.Snippet) (ir.Snippet, error) {
	old, err := e.store.Get(ctx, sn.ID)
	if err != nil {
		return ir.Snippet{}, err
	}
	ir.Normalize(&sn)
	if err := ir.Validate(sn); err != nil {
		return ir.Snippet{}, err
	}

	if !ir.SameContent(old.Content, sn.Content) {
		e.snapshot(ctx, old)
	}

	sn.CreatedAt = old.CreatedAt
	sn.ModifiedAt = e.clock.Now()
	sn = e.checkCode(ctx, sn)
	if err := e.store.Save(ctx, sn); err != nil {
		return ir.Snippet{}, fmt.Errorf("update snippet: %w", err)
	}
	return sn, nil
}

// Clone copies a snippet under a new id. The copy keeps the enabled flag.
func (e *Engine) Clone(ctx context.Context, id string) (ir.Snippet, error) {
	src, err := e.store.Get(ctx, id)
	if err != nil {
		return ir.Snippet{}, err
	}
	now := e.clock.Now()
	cp := src
	cp.ID = e.ids.Generate()
	cp.Name = src.Name + " (Clone)"
	cp.Tags = append([]string(nil), src.Tags...)
	cp.Conditions.URLPatterns = append([]string(nil), src.Conditions.URLPatterns...)
	cp.CreatedAt = now
	cp.ModifiedAt = now
	if err := e.store.Save(ctx, cp); err != nil {
		return ir.Snippet{}, fmt.Errorf("clone snippet: %w", err)
	}
	return cp, nil
}

// Restore puts a revision's content back. The current content is saved
// as a revision first, so a restore can itself be undone.
func (e *Engine) Restore(ctx context.Context, id string, index int) (ir.Snippet, error) {
	sn, err := e.store.Get(ctx, id)
	if err != nil {
		return ir.Snippet{}, err
	}
	revs, err := e.store.Revisions(ctx, id)
	if err != nil {
		return ir.Snippet{}, err
	}
	if index < 0 || index >= len(revs) {
		return ir.Snippet{}, fmt.Errorf("restore %s: revision %d of %d: %w", id, index, len(revs), ErrNoRevision)
	}
	rev := revs[index]

	e.snapshot(ctx, sn)
	sn.Content = rev.Content
	sn.ModifiedAt = e.clock.Now()
	sn = e.checkCode(ctx, sn)
	if err := e.store.Save(ctx, sn); err != nil {
		return ir.Snippet{}, fmt.Errorf("restore snippet: %w", err)
	}
	return sn, nil
}

// Delete removes a snippet and its revisions.
func (e *Engine) Delete(ctx context.Context, id string) error {
	return e.store.Delete(ctx, id)
}

// Import stores snippets from an export document. Each gets a fresh id
// and timestamps and is stored disabled. Returns the stored snippets.
func (e *Engine) Import(ctx context.Context, in []ir.Snippet) ([]ir.Snippet, error) {
	out := make([]ir.Snippet, 0, len(in))
	for i, sn := range in {
		sn.Enabled = false
		stored, err := e.Create(ctx, sn)
		if err != nil {
			return out, fmt.Errorf("import snippet %d (%q): %w", i, sn.Name, err)
		}
		out = append(out, stored)
	}
	return out, nil
}

// Apply stores a snippet under the id it carries, creating it if needed.
// It is used for declarative definitions: the stored enabled flag wins
// over the definition's once the snippet exists, so an operator's or the
// breaker's decision survives a reload. Returns true when anything changed.
func (e *Engine) Apply(ctx context.Context, sn ir.Snippet) (bool, error) {
	ir.Normalize(&sn)
	if err := ir.Validate(sn); err != nil {
		return false, err
	}

	old, err := e.store.Get(ctx, sn.ID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return false, err
		}
		now := e.clock.Now()
		sn.CreatedAt, sn.ModifiedAt = now, now
		sn = e.checkCode(ctx, sn)
		if err := e.store.Save(ctx, sn); err != nil {
			return false, fmt.Errorf("apply snippet: %w", err)
		}
		return true, nil
	}

	sn.Enabled = old.Enabled
	sn.CreatedAt = old.CreatedAt
	sn.ModifiedAt = old.ModifiedAt
	if sameDefinition(old, sn) {
		return false, nil
	}
	if !ir.SameContent(old.Content, sn.Content) {
		e.snapshot(ctx, old)
	}
	sn.ModifiedAt = e.clock.Now()
	sn = e.checkCode(ctx, sn)
	if err := e.store.Save(ctx, sn); err != nil {
		return false, fmt.Errorf("apply snippet: %w", err)
	}
	return true, nil
}

// checkCode disables code that would not load, and logs why.
func (e *Engine) checkCode(ctx context.Context, sn ir.Snippet) ir.Snippet {
	if !sn.Kind.IsCode() || strings.TrimSpace(sn.Content) == "" {
		return sn
	}
	if err := e.interp.Validate(sn.Content); err != nil {
		e.logger.Warn("code validation failed", "snippet", sn.ID, "error", err)
		e.logError(ctx, sn.ID, msgValidationFailed, "")
		sn.Enabled = false
	}
	return sn
}

func (e *Engine) snapshot(ctx context.Context, sn ir.Snippet) {
	rev := ir.Revision{
		SnippetID:  sn.ID,
		Name:       sn.Name,
		Content:    sn.Content,
		ModifiedAt: sn.ModifiedAt,
	}
	if _, err := e.store.AppendRevision(ctx, rev, e.cfg.RevisionLimit); err != nil {
		e.logger.Error("failed to save revision", "snippet", sn.ID, "error", err)
	}
}

func sameDefinition(a, b ir.Snippet) bool {
	return a.Name == b.Name &&
		a.Description == b.Description &&
		a.Kind == b.Kind &&
		a.Scope == b.Scope &&
		a.Enabled == b.Enabled &&
		a.Priority == b.Priority &&
		a.RunOnce == b.RunOnce &&
		a.Content == b.Content &&
		a.Category == b.Category &&
		slices.Equal(a.Tags, b.Tags) &&
		a.Conditions.Login == b.Conditions.Login &&
		a.Conditions.Device == b.Conditions.Device &&
		slices.Equal(a.Conditions.URLPatterns, b.Conditions.URLPatterns)
}
