package http

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/XLuisDX/dani-candles-sub001/internal/upload"
	"github.com/go-chi/chi/v5"
)

type SiteHandler struct {
	images        ImageStore
	publicBaseURL string
	log           *slog.Logger
}

func NewSiteHandler(images ImageStore, publicBaseURL string, log *slog.Logger) *SiteHandler {
	return &SiteHandler{images: images, publicBaseURL: publicBaseURL, log: log}
}

func (h *SiteHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *SiteHandler) Robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprintf(w, "User-agent: *\nDisallow: /admin\nDisallow: /api/\n\nSitemap: %s/sitemap.xml\n", h.publicBaseURL)
}

func (h *SiteHandler) Media(w http.ResponseWriter, r *http.Request) {
	rc, contentType, err := h.images.Open(r.Context(), chi.URLParam(r, "*"))
	if err != nil {
		if errors.Is(err, upload.ErrObjectNotFound) {
			h.NotFound(w, r)
			return
		}
		handleServiceError(w, r, h.log, err)
		return
	}
	defer rc.Close()

	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	// object names are unique per upload
	w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if _, err := io.Copy(w, rc); err != nil {
		h.log.WarnContext(r.Context(), "failed to stream media", "path", r.URL.Path, "error", err)
	}
}

func (h *SiteHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusNotFound, "not_found", "resource not found")
}

func (h *SiteHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}
