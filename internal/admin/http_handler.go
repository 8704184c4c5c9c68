// Package admin exposes role, user and group management. All endpoints
// require the SuperAdmin capability.
package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/rpattn/contentcore/internal/auth"
	"github.com/rpattn/contentcore/internal/authz"
	"github.com/rpattn/contentcore/internal/domain"
	"github.com/rpattn/contentcore/internal/repository"
)

// Handler exposes the administration endpoints.
type Handler struct {
	roles      repository.RoleRepository
	users      repository.UserRepository
	authorizer *authz.Resolver
}

// NewHTTPHandler wraps the repositories with admin endpoints.
func NewHTTPHandler(roles repository.RoleRepository, users repository.UserRepository, authorizer *authz.Resolver) *Handler {
	return &Handler{roles: roles, users: users, authorizer: authorizer}
}

// Routes registers the admin endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /roles", h.createRole)
	mux.HandleFunc("GET /roles", h.listRoles)
	mux.HandleFunc("POST /users", h.createUser)
	mux.HandleFunc("POST /groups", h.createGroup)
	mux.HandleFunc("GET /groups", h.listGroups)
}

type rolePayload struct {
	Name               string                         `json:"name"`
	Permissions        []domain.ContentTypePermission `json:"permissions"`
	SystemCapabilities []string                       `json:"systemCapabilities"`
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var payload rolePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if payload.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	role := domain.NewRole(payload.Name, payload.Permissions, payload.SystemCapabilities)
	persisted, err := h.roles.Create(r.Context(), role)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, persisted)
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	roles, err := h.roles.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, roles)
}

type userPayload struct {
	Username string      `json:"username"`
	Email    string      `json:"email"`
	RoleIDs  []uuid.UUID `json:"roleIds"`
	GroupIDs []uuid.UUID `json:"groupIds"`
}

func (h *Handler) createUser(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var payload userPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if payload.Username == "" {
		http.Error(w, "username is required", http.StatusBadRequest)
		return
	}

	now := time.Now()
	user := domain.User{
		ID:        uuid.New(),
		Username:  payload.Username,
		Email:     payload.Email,
		RoleIDs:   payload.RoleIDs,
		GroupIDs:  payload.GroupIDs,
		CreatedAt: now,
		UpdatedAt: now,
	}

	persisted, err := h.users.Create(r.Context(), user)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, persisted)
}

type groupPayload struct {
	Name          string      `json:"name"`
	MemberUserIDs []uuid.UUID `json:"memberUserIds"`
	RoleIDs       []uuid.UUID `json:"roleIds"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	if !h.requireAdmin(w, r) {
		return
	}

	var payload groupPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	if payload.Name == "" {
		http.Error(w, "name is required", http.StatusBadRequest)
		return
	}

	now := time.Now()
	group := domain.UserGroup{
		ID:            uuid.New(),
		Name:          payload.Name,
		MemberUserIDs: payload.MemberUserIDs,
		RoleIDs:       payload.RoleIDs,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	persisted, err := h.users.CreateGroup(r.Context(), group)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, persisted)
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

	http.Error(w, "administration requires SuperAdmin", http.StatusForbidden)
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
