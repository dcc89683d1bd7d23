package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/catalog"
	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
	"github.com/XLuisDX/dani-candles-sub001/internal/upload"
	"github.com/go-chi/chi/v5"
)

const imageFormField = "image"

// ImageStore uploads product images and serves them back.
type ImageStore interface {
	Upload(ctx context.Context, data []byte, ownerID string) (string, error)
	Open(ctx context.Context, objectPath string) (io.ReadCloser, string, error)
}

type AdminHandler struct {
	catalog catalog.Catalog
	images  ImageStore
	timeout time.Duration
	log     *slog.Logger
}

func NewAdminHandler(catalog catalog.Catalog, images ImageStore, timeout time.Duration, log *slog.Logger) *AdminHandler {
	return &AdminHandler{
		catalog: catalog,
		images:  images,
		timeout: timeout,
		log:     log,
	}
}

type CreateProductRequestDTO struct {
	CollectionID    string `json:"collection_id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Description     string `json:"description"`
	PriceMinorUnits int64  `json:"price_minor_units"`
	Currency        string `json:"currency"`
	Featured        bool   `json:"featured"`
}

type ImageUploadResponse struct {
	ImageURL string `json:"image_url"`
}

func (h *AdminHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CreateProductRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	product, err := h.catalog.CreateProduct(ctx, &domain.Product{
		CollectionID: req.CollectionID,
		Name:         req.Name,
		Slug:         req.Slug,
		Description:  req.Description,
		Price:        domain.Money{Amount: req.PriceMinorUnits, Currency: req.Currency},
		Featured:     req.Featured,
	})
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	h.log.InfoContext(ctx, "product created", "product_id", product.ID, "slug", product.Slug)
	respondJSON(w, http.StatusCreated, newProductResponse(product))
}

// UploadImage stores a multipart "image" file and points the product at it.
func (h *AdminHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID := chi.URLParam(r, "id")
	if _, err := h.catalog.GetProductByID(ctx, productID); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	// leave room for the multipart envelope around the file
	r.Body = http.MaxBytesReader(w, r.Body, upload.MaxImageSize+1<<20)
	file, _, err := r.FormFile(imageFormField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			handleServiceError(w, r, h.log, upload.ErrTooLarge)
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", "multipart field \"image\" is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, upload.MaxImageSize+1))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "could not read uploaded file")
		return
	}

	url, err := h.images.Upload(ctx, data, productID)
	if err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	if err := h.catalog.SetProductImage(ctx, productID, url); err != nil {
		handleServiceError(w, r, h.log, err)
		return
	}

	respondJSON(w, http.StatusCreated, ImageUploadResponse{ImageURL: url})
}
