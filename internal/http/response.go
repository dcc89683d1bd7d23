package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/XLuisDX/dani-candles-sub001/internal/catalog"
	"github.com/XLuisDX/dani-candles-sub001/internal/notify"
	"github.com/XLuisDX/dani-candles-sub001/internal/upload"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleServiceError maps domain errors to HTTP responses. Anything unknown
// is logged and reported as a 500 without details.
func handleServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var (
		status int
		code   string
	)

	switch {
	case errors.Is(err, catalog.ErrNotFound), errors.Is(err, upload.ErrObjectNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, catalog.ErrInvalidInput), errors.Is(err, notify.ErrInvalidMessage),
		errors.Is(err, upload.ErrEmptyFile), errors.Is(err, upload.ErrInvalidOwner):
		status, code = http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, catalog.ErrConflict):
		status, code = http.StatusConflict, "conflict"
	case errors.Is(err, upload.ErrTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "file_too_large"
	case errors.Is(err, upload.ErrUnsupportedType):
		status, code = http.StatusUnsupportedMediaType, "unsupported_type"
	case errors.Is(err, notify.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "service_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "timeout"
	default:
		log.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	respondError(w, status, code, err.Error())
}
