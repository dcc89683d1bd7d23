package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/cartstore"
	"github.com/XLuisDX/dani-candles-sub001/internal/catalog"
	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
	"github.com/XLuisDX/dani-candles-sub001/internal/notify"
	"github.com/XLuisDX/dani-candles-sub001/internal/upload"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeCatalog struct {
	mu          sync.Mutex
	products    []*domain.Product
	collections []*domain.Collection
	lastFilter  catalog.ProductFilter
	err         error
}

func newFakeCatalog() *fakeCatalog {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeCatalog{
		collections: []*domain.Collection{
			{ID: "c-signature", Name: "Signature", Slug: "signature", CreatedAt: created},
		},
		products: []*domain.Product{
			{ID: "p-vanilla-bean", CollectionID: "c-signature", Name: "Vanilla Bean", Slug: "vanilla-bean", Price: domain.Money{Amount: 1200, Currency: "USD"}, Featured: true, CreatedAt: created},
			{ID: "p-cedar-smoke", CollectionID: "c-signature", Name: "Cedar Smoke", Slug: "cedar-smoke", Price: domain.Money{Amount: 1800, Currency: "USD"}, CreatedAt: created},
		},
	}
}

func (f *fakeCatalog) find(match func(*domain.Product) bool) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.products {
		if match(p) {
			c := *p
			return &c, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) GetProductBySlug(_ context.Context, slug string) (*domain.Product, error) {
	return f.find(func(p *domain.Product) bool { return p.Slug == slug })
}

func (f *fakeCatalog) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	return f.find(func(p *domain.Product) bool { return p.ID == id })
}

func (f *fakeCatalog) ListProducts(_ context.Context, filter catalog.ProductFilter) ([]*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastFilter = filter
	if f.err != nil {
		return nil, f.err
	}
	var out []*domain.Product
	for _, p := range f.products {
		if filter.Featured != nil && p.Featured != *filter.Featured {
			continue
		}
		if filter.CollectionSlug != "" && filter.CollectionSlug != "signature" {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (f *fakeCatalog) GetCollectionBySlug(_ context.Context, slug string) (*domain.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.collections {
		if c.Slug == slug {
			return c, nil
		}
	}
	return nil, catalog.ErrNotFound
}

func (f *fakeCatalog) ListCollections(_ context.Context, _ int) ([]*domain.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.collections, f.err
}

func (f *fakeCatalog) CreateProduct(_ context.Context, p *domain.Product) (*domain.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Name == "" || p.Slug == "" || p.Price.Amount < 0 {
		return nil, catalog.ErrInvalidInput
	}
	for _, existing := range f.products {
		if existing.Slug == p.Slug {
			return nil, fmt.Errorf("product slug %q: %w", p.Slug, catalog.ErrConflict)
		}
	}
	c := *p
	c.ID = fmt.Sprintf("p-%d", len(f.products)+1)
	if c.Price.Currency == "" {
		c.Price.Currency = domain.DefaultCurrency
	}
	f.products = append(f.products, &c)
	return &c, nil
}

func (f *fakeCatalog) SetProductImage(_ context.Context, id, imageURL string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.products {
		if p.ID == id {
			p.ImageURL = imageURL
			return nil
		}
	}
	return catalog.ErrNotFound
}

type fakeCarts struct {
	mu     sync.Mutex
	stores map[string]*cartstore.Store
	err    error
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{stores: map[string]*cartstore.Store{}}
}

func (f *fakeCarts) store(sessionID string) (*cartstore.Store, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.stores[sessionID]
	if !ok {
		s = cartstore.New()
		f.stores[sessionID] = s
	}
	return s, nil
}

func (f *fakeCarts) apply(sessionID string, fn func(*cartstore.Store)) (cartstore.Snapshot, error) {
	s, err := f.store(sessionID)
	if err != nil {
		return cartstore.Snapshot{}, err
	}
	fn(s)
	return s.Snapshot(), nil
}

func (f *fakeCarts) Snapshot(_ context.Context, sessionID string) (cartstore.Snapshot, error) {
	return f.apply(sessionID, func(*cartstore.Store) {})
}

func (f *fakeCarts) AddItem(_ context.Context, sessionID string, item domain.CartItem) (cartstore.Snapshot, error) {
	return f.apply(sessionID, func(s *cartstore.Store) { s.AddItem(item) })
}

func (f *fakeCarts) UpdateQuantity(_ context.Context, sessionID, productID string, quantity int) (cartstore.Snapshot, error) {
	return f.apply(sessionID, func(s *cartstore.Store) { s.UpdateQuantity(productID, quantity) })
}

func (f *fakeCarts) RemoveItem(_ context.Context, sessionID, productID string) (cartstore.Snapshot, error) {
	return f.apply(sessionID, func(s *cartstore.Store) { s.RemoveItem(productID) })
}

func (f *fakeCarts) ClearCart(_ context.Context, sessionID string) (cartstore.Snapshot, error) {
	return f.apply(sessionID, func(s *cartstore.Store) { s.Clear() })
}

type fakeImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	err     error
}

func newFakeImages() *fakeImages {
	return &fakeImages{objects: map[string][]byte{}}
}

func (f *fakeImages) Upload(_ context.Context, data []byte, ownerID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("%w: %w", upload.ErrUpload, upload.ErrEmptyFile)
	}
	path := "products/" + ownerID + "/img.png"
	f.objects[path] = data
	return "http://shop.test/media/" + path, nil
}

func (f *fakeImages) Open(_ context.Context, objectPath string) (io.ReadCloser, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[objectPath]
	if !ok {
		return nil, "", upload.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), "image/png", nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, msg notify.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, msg)
	return "msg-1", nil
}
