package export

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/rpattn/contentcore/internal/auth"
	"github.com/rpattn/contentcore/internal/domain"
)

// Handler exposes tabular export over HTTP.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with an export endpoint.
func NewHTTPHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes registers the export endpoint on the mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /export", h.export)
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
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

	format := Format(strings.TrimSpace(r.URL.Query().Get("format")))
	if format == "" {
		format = FormatCSV
	}

	mime := "text/csv"
	if format == FormatXLSX {
		mime = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	w.Header().Set("Content-Type", mime)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", FileName(contentType, format)))

	if _, err := h.service.Export(r.Context(), user, contentType, format, w); err != nil {
		// Headers may already be sent; map errors best effort.
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, ErrUnsupportedFormat):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	}
}
