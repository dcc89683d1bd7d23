package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/cartstore"
	"github.com/XLuisDX/dani-candles-sub001/internal/catalog"
	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
)

const maxLineQuantity = 99

// CartService is the session cart API the handlers drive.
type CartService interface {
	Snapshot(ctx context.Context, sessionID string) (cartstore.Snapshot, error)
	AddItem(ctx context.Context, sessionID string, item domain.CartItem) (cartstore.Snapshot, error)
	UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (cartstore.Snapshot, error)
	RemoveItem(ctx context.Context, sessionID, productID string) (cartstore.Snapshot, error)
	ClearCart(ctx context.Context, sessionID string) (cartstore.Snapshot, error)
}

type CartHandler struct {
	carts   CartService
	catalog catalog.Catalog
	timeout time.Duration
	log     *slog.Logger
}

func NewCartHandler(carts CartService, catalog catalog.Catalog, timeout time.Duration, log *slog.Logger) *CartHandler {
	return &CartHandler{
		carts:   carts,
		catalog: catalog,
		timeout: timeout,
		log:     log,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartItemResponse struct {
	ProductID           string `json:"product_id"`
	Name                string `json:"name"`
	Slug                string `json:"slug"`
	UnitPriceMinorUnits int64  `json:"unit_price_minor_units"`
	CurrencyCode        string `json:"currency_code"`
	Quantity            int    `json:"quantity"`
	SubtotalMinorUnits  int64  `json:"subtotal_minor_units"`
	UnitPrice           string `json:"unit_price"`
	Subtotal            string `json:"subtotal"`
}

type CartResponse struct {
	Items           []CartItemResponse `json:"items"`
	ItemCount       int                `json:"item_count"`
	TotalMinorUnits int64              `json:"total_minor_units"`
	Currency        string             `json:"currency"`
	Total           string             `json:"total"`
	Version         uint64             `json:"version"`
}

func newCartResponse(snap cartstore.Snapshot) CartResponse {
	resp := CartResponse{
		Items:           make([]CartItemResponse, len(snap.Items)),
		TotalMinorUnits: snap.TotalMinorUnits(),
		Currency:        cartCurrency(snap.Items),
		Version:         snap.Version,
	}

	for i, item := range snap.Items {
		resp.Items[i] = CartItemResponse{
			ProductID:           item.ProductID,
			Name:                item.Name,
			Slug:                item.Slug,
			UnitPriceMinorUnits: item.UnitPriceMinorUnits,
			CurrencyCode:        item.CurrencyCode,
			Quantity:            item.Quantity,
			SubtotalMinorUnits:  item.SubtotalMinorUnits(),
			UnitPrice:           domain.FormatMinorUnits(item.UnitPriceMinorUnits, item.CurrencyCode),
			Subtotal:            domain.FormatMinorUnits(item.SubtotalMinorUnits(), item.CurrencyCode),
		}
		resp.ItemCount += item.Quantity
	}
	// a sum across currencies has no meaningful display form
	if resp.Currency != "" {
		resp.Total = domain.FormatMinorUnits(resp.TotalMinorUnits, resp.Currency)
	}

	return resp
}

// cartCurrency returns the currency shared by all lines, the default
// currency for an empty cart, or "" when the lines disagree.
func cartCurrency(items []domain.CartItem) string {
	currency := ""
	for _, item := range items {
		switch {
		case currency == "":
			currency = item.CurrencyCode
		case item.CurrencyCode != currency:
			return ""
		}
	}
	if currency == "" {
		return domain.DefaultCurrency
	}
	return currency
}

// cartETag fingerprints the cart lines. The version is left out so that a
// no-op mutation does not invalidate clients.
func cartETag(snap cartstore.Snapshot) string {
	d := xxhash.New()
	for _, item := range snap.Items {
		d.WriteString(item.ProductID)
		d.WriteString("\x00")
		d.WriteString(strconv.FormatInt(item.UnitPriceMinorUnits, 10))
		d.WriteString(item.CurrencyCode)
		d.WriteString("\x00")
		d.WriteString(strconv.Itoa(item.Quantity))
		d.WriteString("\x01")
	}
	return fmt.Sprintf(`"%016x"`, d.Sum64())
}

func (h *CartHandler) respondCart(w http.ResponseWriter, status int, snap cartstore.Snapshot) {
	w.Header().Set("ETag", cartETag(snap))
	w.Header().Set("Cache-Control", "no-store")
	respondJSON(w, status, newCartResponse(snap))
}

func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing session")
		return
	}

	snap, err := h.carts.Snapshot(ctx, sessionID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	etag := cartETag(snap)
	if match := r.Header.Get("If-None-Match"); match != "" && match == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}

	h.respondCart(w, http.StatusOK, snap)
}

func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing session")
		return
	}

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	req.ProductID = strings.TrimSpace(req.ProductID)
	if req.ProductID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}
	if req.Quantity <= 0 || req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	product, err := h.catalog.GetProductByID(ctx, req.ProductID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	current, err := h.carts.Snapshot(ctx, sessionID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}
	item := product.CartItem(req.Quantity)
	for _, line := range current.Items {
		if line.CurrencyCode != item.CurrencyCode {
			respondError(w, http.StatusConflict, "currency_mismatch",
				fmt.Sprintf("cart is priced in %s, product is priced in %s", line.CurrencyCode, item.CurrencyCode))
			return
		}
		if line.ProductID == item.ProductID && line.Quantity+req.Quantity > maxLineQuantity {
			respondError(w, http.StatusBadRequest, "invalid_quantity",
				fmt.Sprintf("quantity in cart must be at most %d, already have %d", maxLineQuantity, line.Quantity))
			return
		}
	}

	snap, err := h.carts.AddItem(ctx, sessionID, item)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	h.respondCart(w, http.StatusCreated, snap)
}

func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing session")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	// zero or less removes the line
	if req.Quantity == nil || *req.Quantity > maxLineQuantity {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be at most 99")
		return
	}

	snap, err := h.carts.UpdateQuantity(ctx, sessionID, productID, *req.Quantity)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	h.respondCart(w, http.StatusOK, snap)
}

func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing session")
		return
	}

	productID := chi.URLParam(r, "product_id")
	if productID == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	snap, err := h.carts.RemoveItem(ctx, sessionID, productID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	h.respondCart(w, http.StatusOK, snap)
}

func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	sessionID := getSessionID(r.Context())
	if sessionID == "" {
		respondError(w, http.StatusUnauthorized, "no_session", "missing session")
		return
	}

	snap, err := h.carts.ClearCart(ctx, sessionID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	h.respondCart(w, http.StatusOK, snap)
}
