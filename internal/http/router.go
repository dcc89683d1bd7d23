package http

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/catalog"
	"github.com/XLuisDX/dani-candles-sub001/internal/notify"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Carts    CartService
	Catalog  catalog.Catalog
	Images   ImageStore
	Notifier notify.Notifier

	PublicBaseURL  string
	ShopEmail      string
	AdminToken     string
	RequestTimeout time.Duration

	Log *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	cartHandler := NewCartHandler(cfg.Carts, cfg.Catalog, cfg.RequestTimeout, cfg.Log)
	productHandler := NewProductHandler(cfg.Catalog, cfg.RequestTimeout, cfg.Log)
	adminHandler := NewAdminHandler(cfg.Catalog, cfg.Images, cfg.RequestTimeout, cfg.Log)
	contactHandler := NewContactHandler(cfg.Notifier, cfg.ShopEmail, cfg.RequestTimeout, cfg.Log)
	siteHandler := NewSiteHandler(cfg.Images, cfg.PublicBaseURL, cfg.Log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  slog.NewLogLogger(cfg.Log.Handler(), slog.LevelInfo),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))

	r.NotFound(siteHandler.NotFound)
	r.MethodNotAllowed(siteHandler.MethodNotAllowed)

	r.Get("/health", siteHandler.Health)
	r.Get("/robots.txt", siteHandler.Robots)
	r.Get("/media/*", siteHandler.Media)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/products", productHandler.List)
		r.Get("/products/{slug}", productHandler.Get)
		r.Get("/collections", productHandler.ListCollections)
		r.Get("/collections/{slug}", productHandler.GetCollection)

		r.Route("/cart", func(r chi.Router) {
			r.Use(SessionMiddleware(strings.HasPrefix(cfg.PublicBaseURL, "https://")))
			r.Get("/", cartHandler.GetCart)
			r.Delete("/", cartHandler.ClearCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{product_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{product_id}", cartHandler.RemoveItem)
		})

		r.Post("/contact", contactHandler.Submit)

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminToken))
			r.Post("/products", adminHandler.CreateProduct)
			r.Post("/products/{id}/image", adminHandler.UploadImage)
		})
	})

	return otelhttp.NewHandler(r, "storefront",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
