package host

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/roach88/snipd/internal/engine"
	"github.com/roach88/snipd/internal/ir"
	"github.com/roach88/snipd/internal/store"
	"github.com/roach88/snipd/internal/transfer"
)

// api is the JSON management surface.
type api struct {
	eng    *engine.Engine
	logger *slog.Logger
}

func newAPI(eng *engine.Engine, logger *slog.Logger) *api {
	return &api{eng: eng, logger: logger}
}

func (a *api) routes(r chi.Router) {
	r.Route("/snippets", func(r chi.Router) {
		r.Get("/", a.listSnippets)
		r.Post("/", a.createSnippet)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", a.getSnippet)
			r.Put("/", a.updateSnippet)
			r.Delete("/", a.deleteSnippet)
			r.Post("/enable", a.setEnabled(true))
			r.Post("/disable", a.setEnabled(false))
			r.Post("/clone", a.cloneSnippet)
			r.Get("/revisions", a.listRevisions)
			r.Post("/revisions/{index}/restore", a.restoreRevision)
		})
	})
	r.Get("/errors", a.listErrors)
	r.Delete("/errors", a.clearErrors)
	r.Get("/safe-mode", a.safeModeStatus)
	r.Put("/safe-mode", a.setSafeMode)
	r.Post("/safe-mode/toggle", a.toggleSafeMode)
	r.Post("/recover", a.emergencyRecover)
	r.Post("/import", a.importSnippets)
	r.Get("/export", a.exportSnippets)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type safeModeResponse struct {
	Enabled bool `json:"enabled"`
}

type importResponse struct {
	Imported []ir.Snippet `json:"imported"`
}

func (a *api) listSnippets(w http.ResponseWriter, r *http.Request) {
	snippets, err := a.eng.List(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, snippets)
}

func (a *api) getSnippet(w http.ResponseWriter, r *http.Request) {
	sn, err := a.eng.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, sn)
}

func (a *api) createSnippet(w http.ResponseWriter, r *http.Request) {
	var sn ir.Snippet
	if !a.decode(w, r, &sn) {
		return
	}
	created, err := a.eng.Create(r.Context(), sn)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, created)
}

func (a *api) updateSnippet(w http.ResponseWriter, r *http.Request) {
	var sn ir.Snippet
	if !a.decode(w, r, &sn) {
		return
	}
	sn.ID = chi.URLParam(r, "id")
	updated, err := a.eng.Update(r.Context(), sn)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, updated)
}

func (a *api) deleteSnippet(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) setEnabled(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		var err error
		if enabled {
			err = a.eng.EnableSnippet(r.Context(), id)
		} else {
			err = a.eng.DisableSnippet(r.Context(), id)
		}
		if err != nil {
			a.fail(w, err)
			return
		}
		a.getSnippet(w, r)
	}
}

func (a *api) cloneSnippet(w http.ResponseWriter, r *http.Request) {
	clone, err := a.eng.Clone(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusCreated, clone)
}

func (a *api) listRevisions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := a.eng.Get(r.Context(), id); err != nil {
		a.fail(w, err)
		return
	}
	revs, err := a.eng.Revisions(r.Context(), id)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, revs)
}

func (a *api) restoreRevision(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "revision index must be a number")
		return
	}
	sn, err := a.eng.Restore(r.Context(), chi.URLParam(r, "id"), index)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, sn)
}

func (a *api) listErrors(w http.ResponseWriter, r *http.Request) {
	entries, err := a.eng.ErrorLog(r.Context())
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, entries)
}

func (a *api) clearErrors(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.ClearErrorLog(r.Context()); err != nil {
		a.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) safeModeStatus(w http.ResponseWriter, r *http.Request) {
	a.respond(w, http.StatusOK, safeModeResponse{Enabled: a.eng.IsSafeModeEnabled(r.Context())})
}

func (a *api) setSafeMode(w http.ResponseWriter, r *http.Request) {
	var req safeModeResponse
	if !a.decode(w, r, &req) {
		return
	}
	var err error
	if req.Enabled {
		err = a.eng.EnableSafeMode(r.Context(), true)
	} else {
		err = a.eng.DisableSafeMode(r.Context())
	}
	if err != nil {
		a.fail(w, err)
		return
	}
	a.safeModeStatus(w, r)
}

func (a *api) toggleSafeMode(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.ToggleSafeMode(r.Context()); err != nil {
		a.fail(w, err)
		return
	}
	a.safeModeStatus(w, r)
}

func (a *api) emergencyRecover(w http.ResponseWriter, r *http.Request) {
	if err := a.eng.EmergencyRecover(r.Context()); err != nil {
		a.fail(w, err)
		return
	}
	a.safeModeStatus(w, r)
}

func (a *api) importSnippets(w http.ResponseWriter, r *http.Request) {
	format := transfer.FormatJSON
	if strings.Contains(r.Header.Get("Content-Type"), "yaml") {
		format = transfer.FormatYAML
	}
	doc, err := transfer.Read(r.Body, format)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, transfer.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		a.error(w, status, "invalid_document", err.Error())
		return
	}
	imported, err := a.eng.Import(r.Context(), doc.Snippets)
	if err != nil {
		a.fail(w, err)
		return
	}
	a.respond(w, http.StatusOK, importResponse{Imported: imported})
}

// exportSnippets writes every snippet, or only those named by repeated
// id parameters, as a download.
func (a *api) exportSnippets(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	format := transfer.FormatJSON
	if r.URL.Query().Get("format") == string(transfer.FormatYAML) {
		format = transfer.FormatYAML
	}

	var snippets []ir.Snippet
	if ids := r.URL.Query()["id"]; len(ids) > 0 {
		for _, id := range ids {
			sn, err := a.eng.Get(ctx, id)
			if err != nil {
				a.fail(w, err)
				return
			}
			snippets = append(snippets, sn)
		}
	} else {
		all, err := a.eng.List(ctx)
		if err != nil {
			a.fail(w, err)
			return
		}
		snippets = all
	}

	now := a.eng.Now()
	if format == transfer.FormatYAML {
		w.Header().Set("Content-Type", "application/yaml")
	} else {
		w.Header().Set("Content-Type", "application/json")
	}
	w.Header().Set("Content-Disposition", `attachment; filename="`+transfer.Filename(snippets, now, format)+`"`)
	if err := transfer.Write(w, transfer.NewDocument(snippets, now), format); err != nil {
		a.logger.Error("failed to write export", "error", err)
	}
}

func (a *api) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (a *api) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

func (a *api) error(w http.ResponseWriter, status int, code, message string) {
	a.respond(w, status, errorResponse{Code: code, Message: message})
}

// fail maps engine errors to status codes.
func (a *api) fail(w http.ResponseWriter, err error) {
	var verr *ir.ValidationError
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, engine.ErrNoRevision):
		a.error(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &verr):
		a.error(w, http.StatusBadRequest, "invalid_snippet", err.Error())
	default:
		a.logger.Error("request failed", "error", err)
		a.error(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
