package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/contentcore/internal/auth"
	"github.com/rpattn/contentcore/internal/authz"
	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/repository"
)

// Handler exposes revision history, diffs and rollback over HTTP.
type Handler struct {
	service    *Service
	documents  repository.DocumentRepository
	authorizer *authz.Resolver
}

// NewHTTPHandler wraps the history service with REST endpoints.
func NewHTTPHandler(service *Service, documents repository.DocumentRepository, authorizer *authz.Resolver) *Handler {
	return &Handler{service: service, documents: documents, authorizer: authorizer}
}

// Routes registers the history endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /content/{id}/history", h.history)
	mux.HandleFunc("GET /content/{id}/diff", h.diff)
	mux.HandleFunc("POST /content/{id}/rollback", h.rollback)
}

func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.authorize(w, r, domain.ActionRead)
	if !ok {
		return
	}

	revisions, err := h.service.History(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, revisions)
}

func (h *Handler) diff(w http.ResponseWriter, r *http.Request) {
	_, id, ok := h.authorize(w, r, domain.ActionRead)
	if !ok {
		return
	}

	base, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("base")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid base event id: %v", err), http.StatusBadRequest)
		return
	}
	target, err := uuid.Parse(strings.TrimSpace(r.URL.Query().Get("target")))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid target event id: %v", err), http.StatusBadRequest)
		return
	}

	diff, err := h.service.Diff(r.Context(), id, base, target)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"diff": diff})
}

func (h *Handler) rollback(w http.ResponseWriter, r *http.Request) {
	user, id, ok := h.authorize(w, r, domain.ActionUpdate)
	if !ok {
		return
	}

	var payload struct {
		TargetEventID uuid.UUID `json:"targetEventId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := h.service.Rollback(r.Context(), id, payload.TargetEventID, user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// authorize parses the path id and checks the caller's grant for the given
// action against the current document.
func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, action domain.Action) (domain.User, uuid.UUID, bool) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return domain.User{}, uuid.Nil, false
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid content id: %v", err), http.StatusBadRequest)
		return domain.User{}, uuid.Nil, false
	}

	doc, err := h.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return domain.User{}, uuid.Nil, false
	}

	allowed, err := h.authorizer.CanPerformAction(r.Context(), user, doc.ContentType, action, &doc)
	if err != nil {
		writeError(w, err)
		return domain.User{}, uuid.Nil, false
	}
	if !allowed {
		http.Error(w, fmt.Sprintf("user %s may not %s %s", user.ID, action, doc.ID), http.StatusForbidden)
		return domain.User{}, uuid.Nil, false
	}

	return user, id, true
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidationFailed):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrConcurrencyConflict):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedOperation):
		status = http.StatusUnprocessableEntity
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
