package workflow

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/rpattn/contentcore/internal/auth"
	"github.com/rpattn/contentcore/internal/authz"
	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/repository"
)

// Handler exposes workflow administration over HTTP. Definition management
// requires the SuperAdmin capability.
type Handler struct {
	engine     *Engine
	workflows  repository.WorkflowRepository
	documents  repository.DocumentRepository
	authorizer *authz.Resolver
}

// NewHTTPHandler wraps the engine and repositories with REST endpoints.
func NewHTTPHandler(engine *Engine, workflows repository.WorkflowRepository, documents repository.DocumentRepository, authorizer *authz.Resolver) *Handler {
	return &Handler{engine: engine, workflows: workflows, documents: documents, authorizer: authorizer}
}

// Routes registers the workflow endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /workflows", h.create)
	mux.HandleFunc("GET /workflows/{id}", h.get)
	mux.HandleFunc("GET /workflows/{id}/executions", h.executions)
	mux.HandleFunc("POST /workflows/dry-run", h.dryRun)
}

type definitionPayload struct {
	Name               string                  `json:"name"`
	TriggerContentType string                  `json:"triggerContentType"`
	TriggerEvent       string                  `json:"triggerEvent"`
	Conditions         map[string]string       `json:"conditions"`
	Actions            []domain.WorkflowAction `json:"actions"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var payload definitionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if payload.Name == "" || payload.TriggerContentType == "" || payload.TriggerEvent == "" {
		http.Error(w, "name, triggerContentType and triggerEvent are required", http.StatusBadRequest)
		return
	}

	definition := domain.NewWorkflowDefinition(
		payload.Name,
		payload.TriggerContentType,
		domain.EventType(payload.TriggerEvent),
		payload.Conditions,
		payload.Actions,
	)

	persisted, err := h.workflows.CreateDefinition(r.Context(), definition)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, persisted)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid workflow id: %v", err), http.StatusBadRequest)
		return
	}

	definition, err := h.workflows.GetDefinition(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, definition)
}

func (h *Handler) executions(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid workflow id: %v", err), http.StatusBadRequest)
		return
	}

	logs, err := h.workflows.ListExecutions(r.Context(), id, 50, 0)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

type dryRunPayload struct {
	ContentID uuid.UUID `json:"contentId"`
	Event     string    `json:"event"`
}

// dryRun evaluates matching workflows against an existing document without
// executing actions or mutating anything beyond the execution log.
func (h *Handler) dryRun(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var payload dryRunPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := h.documents.GetByID(r.Context(), payload.ContentID)
	if err != nil {
		writeError(w, err)
		return
	}

	logs, err := h.engine.DryRun(r.Context(), doc.ContentType, domain.EventType(payload.Event), doc)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return false
	}

	roles, err := h.authorizer.EffectiveRoles(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return false
	}
	for _, role := range roles {
		if role.HasCapability(domain.CapabilitySuperAdmin) {
			return true
		}
	}

	http.Error(w, "workflow administration requires SuperAdmin", http.StatusForbidden)
	return false
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrValidationFailed):
		status = http.StatusBadRequest
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
