package ingestion

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rpattn/contentcore/internal/auth"
	"github.com/rpattn/contentcore/internal/domain"
)

// Handler exposes bulk import as HTTP endpoints.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with import endpoints.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the import endpoints on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("POST /import", h.importFile)
	mux.HandleFunc("GET /import/logs", h.logs)
}

func (h *Handler) importFile(w http.ResponseWriter, r *http.Request) {
	user, err := auth.RequireUser(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		http.Error(w, fmt.Sprintf("invalid form data: %v", err), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, fmt.Sprintf("file required: %v", err), http.StatusBadRequest)
		return
	}
	defer file.Close()

	contentType := strings.TrimSpace(r.FormValue("contentType"))
	if contentType == "" {
		http.Error(w, "contentType is required", http.StatusBadRequest)
		return
	}

	req := Request{
		ContentType: contentType,
		FileName:    header.Filename,
		Status:      domain.ContentStatus(strings.TrimSpace(r.FormValue("status"))),
		Sensitivity: domain.Sensitivity(strings.TrimSpace(r.FormValue("sensitivity"))),
	}

	if raw := strings.TrimSpace(r.FormValue("headerRowIndex")); raw != "" {
		idx, err := strconv.Atoi(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid header row index: %v", err), http.StatusBadRequest)
			return
		}
		req.HeaderRowIndex = &idx
	}

	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, fmt.Sprintf("failed to read file: %v", err), http.StatusBadRequest)
		return
	}
	req.Data = bytes.NewReader(data)

	summary, err := h.service.Import(r.Context(), user, req)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, domain.ErrForbidden):
			status = http.StatusForbidden
		case errors.Is(err, domain.ErrNotFound):
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

func (h *Handler) logs(w http.ResponseWriter, r *http.Request) {
	if _, err := auth.RequireUser(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusUnauthorized)
		return
	}

	contentType := strings.TrimSpace(r.URL.Query().Get("type"))
	if contentType == "" {
		http.Error(w, "type query parameter is required", http.StatusBadRequest)
		return
	}

	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	entries, err := h.service.Logs(r.Context(), contentType, limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(payload)
}
