package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/notify"
)

const maxContactMessage = 5000

type ContactHandler struct {
	notifier  notify.Notifier
	shopEmail string
	timeout   time.Duration
	log       *slog.Logger
}

func NewContactHandler(notifier notify.Notifier, shopEmail string, timeout time.Duration, log *slog.Logger) *ContactHandler {
	return &ContactHandler{
		notifier:  notifier,
		shopEmail: shopEmail,
		timeout:   timeout,
		log:       log,
	}
}

type ContactRequestDTO struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

type ContactResponse struct {
	ID string `json:"id"`
}

func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req ContactRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Message = strings.TrimSpace(req.Message)
	if req.Name == "" || req.Message == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "name and message are required")
		return
	}
	if strings.ContainsAny(req.Name, "\r\n") {
		respondError(w, http.StatusBadRequest, "invalid_request", "name must be a single line")
		return
	}
	if len(req.Message) > maxContactMessage {
		respondError(w, http.StatusBadRequest, "invalid_request", "message is too long")
		return
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_email", "email is not a valid address")
		return
	}

	body, err := notify.RenderContact(notify.ContactForm{
		Name:    req.Name,
		Email:   req.Email,
		Message: req.Message,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	id, err := h.notifier.Send(ctx, notify.Message{
		To:      h.shopEmail,
		ReplyTo: req.Email,
		Subject: "Contact form: " + req.Name,
		Body:    body,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusAccepted, ContactResponse{ID: id})
}
