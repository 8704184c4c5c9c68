package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/rpattn/contentcore/internal/auth"
	"github.com/rpattn/contentcore/internal/domain"
)

// Handler exposes the content service over HTTP.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with REST endpoints.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the content endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /content", h.create)
	mux.HandleFunc("GET /content", h.list)
	mux.HandleFunc("GET /content/{id}", h.get)
	mux.HandleFunc("PATCH /content/{id}", h.update)
	mux.HandleFunc("PUT /content/{id}/status", h.changeStatus)
	mux.HandleFunc("POST /content/{id}/rebuild", h.rebuild)
	mux.HandleFunc("POST /content-types", h.createContentType)
}

type createPayload struct {
	ContentType string             `json:"contentType"`
	Data        map[string]any     `json:"data"`
	Status      string             `json:"status"`
	Sensitivity string             `json:"sensitivity"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var payload createPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := h.service.Create(r.Context(), user, CreateRequest{
		ContentType:    payload.ContentType,
		Data:           payload.Data,
		Status:         domain.ContentStatus(payload.Status),
		Sensitivity:    domain.Sensitivity(payload.Sensitivity),
		IdempotencyKey: idempotencyKey(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid content id: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := h.service.Get(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	contentType := strings.TrimSpace(r.URL.Query().Get("type"))
	if contentType == "" {
		http.Error(w, "type query parameter is required", http.StatusBadRequest)
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	docs, err := h.service.ListByType(r.Context(), user, contentType, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, docs)
}

type updatePayload struct {
	Data            map[string]any `json:"data"`
	ExpectedVersion *int64         `json:"expectedVersion"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid content id: %v", err), http.StatusBadRequest)
		return
	}

	var payload updatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := h.service.Update(r.Context(), user, UpdateRequest{
		EntityID:        id,
		Data:            payload.Data,
		ExpectedVersion: payload.ExpectedVersion,
		IdempotencyKey:  idempotencyKey(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid content id: %v", err), http.StatusBadRequest)
		return
	}

	var payload struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := h.service.ChangeStatus(r.Context(), user, id, domain.ContentStatus(payload.Status))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) rebuild(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, fmt.Sprintf("invalid content id: %v", err), http.StatusBadRequest)
		return
	}

	doc, err := h.service.Rebuild(r.Context(), user, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

type contentTypePayload struct {
	Slug          string                   `json:"slug"`
	DisplayName   string                   `json:"displayName"`
	Fields        []domain.FieldDefinition `json:"fields"`
	FieldPolicies []domain.FieldPolicy     `json:"fieldPolicies"`
}

func (h *Handler) createContentType(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireUser(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	var payload contentTypePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	definition, err := h.service.CreateContentType(r.Context(), payload.Slug, payload.DisplayName, payload.Fields, payload.FieldPolicies)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, definition)
}

func idempotencyKey(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("Idempotency-Key"))
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func writeError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), statusFor(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrValidationFailed):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrConcurrencyConflict), errors.Is(err, domain.ErrDuplicateRequest):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnsupportedOperation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
