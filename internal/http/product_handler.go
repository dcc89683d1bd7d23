package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/catalog"
	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
	"github.com/go-chi/chi/v5"
)

type ProductHandler struct {
	catalog catalog.Catalog
	timeout time.Duration
	log     *slog.Logger
}

func NewProductHandler(catalog catalog.Catalog, timeout time.Duration, log *slog.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		timeout: timeout,
		log:     log,
	}
}

type ProductResponse struct {
	ID              string    `json:"id"`
	CollectionID    string    `json:"collection_id,omitempty"`
	Name            string    `json:"name"`
	Slug            string    `json:"slug"`
	Description     string    `json:"description"`
	PriceMinorUnits int64     `json:"price_minor_units"`
	Currency        string    `json:"currency"`
	Price           string    `json:"price"`
	ImageURL        string    `json:"image_url"`
	Featured        bool      `json:"featured"`
	CreatedAt       time.Time `json:"created_at"`
}

type ProductsResponse struct {
	Products []ProductResponse `json:"products"`
}

type CollectionResponse struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug"`
	Description string            `json:"description"`
	ImageURL    string            `json:"image_url"`
	Products    []ProductResponse `json:"products,omitempty"`
}

type CollectionsResponse struct {
	Collections []CollectionResponse `json:"collections"`
}

func newProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:              p.ID,
		CollectionID:    p.CollectionID,
		Name:            p.Name,
		Slug:            p.Slug,
		Description:     p.Description,
		PriceMinorUnits: p.Price.Amount,
		Currency:        p.Price.Currency,
		Price:           p.Price.String(),
		ImageURL:        p.ImageURL,
		Featured:        p.Featured,
		CreatedAt:       p.CreatedAt,
	}
}

func newProductsResponse(products []*domain.Product) ProductsResponse {
	resp := ProductsResponse{Products: make([]ProductResponse, len(products))}
	for i, p := range products {
		resp.Products[i] = newProductResponse(p)
	}
	return resp
}

func newCollectionResponse(c *domain.Collection) CollectionResponse {
	return CollectionResponse{
		ID:          c.ID,
		Name:        c.Name,
		Slug:        c.Slug,
		Description: c.Description,
		ImageURL:    c.ImageURL,
	}
}

// parseLimit reads the optional limit query parameter. Zero means default.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	filter := catalog.ProductFilter{
		CollectionSlug: r.URL.Query().Get("collection"),
	}

	if raw := r.URL.Query().Get("featured"); raw != "" {
		featured, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_featured", "featured must be true or false")
			return
		}
		filter.Featured = &featured
	}

	limit, ok := parseLimit(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
		return
	}
	filter.Limit = limit

	products, err := h.catalog.ListProducts(ctx, filter)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, newProductsResponse(products))
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	product, err := h.catalog.GetProductBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusOK, newProductResponse(product))
}

func (h *ProductHandler) ListCollections(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	limit, ok := parseLimit(r)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
		return
	}

	collections, err := h.catalog.ListCollections(ctx, limit)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	resp := CollectionsResponse{Collections: make([]CollectionResponse, len(collections))}
	for i, c := range collections {
		resp.Collections[i] = newCollectionResponse(c)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *ProductHandler) GetCollection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	collection, err := h.catalog.GetCollectionBySlug(ctx, chi.URLParam(r, "slug"))
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	products, err := h.catalog.ListProducts(ctx, catalog.ProductFilter{
		CollectionSlug: collection.Slug,
		Limit:          catalog.MaxLimit,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	resp := newCollectionResponse(collection)
	resp.Products = newProductsResponse(products).Products
	respondJSON(w, http.StatusOK, resp)
}
