package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/cache"
	"github.com/XLuisDX/dani-candles-sub001/internal/cartstore"
	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
	"github.com/XLuisDX/dani-candles-sub001/internal/repository"
	"golang.org/x/sync/singleflight"
)

const (
	defaultPersistTimeout = 3 * time.Second
	defaultIdleTimeout    = 30 * time.Minute
	evictInterval         = time.Minute
)

// CartService keeps one live cart store per session. Stores are hydrated
// from the cache or the repository on first use, and every change is written
// back to the repository.
type CartService struct {
	repo  repository.CartRepository
	cache cache.CartCache
	log   *slog.Logger
	sfg   singleflight.Group

	persistTimeout time.Duration
	idleTimeout    time.Duration
	now            func() time.Time

	mu    sync.Mutex
	carts map[string]*sessionCart
}

type sessionCart struct {
	store       *cartstore.Store
	unsubscribe func()
	createdAt   time.Time
	lastUsed    time.Time

	// guards persisted and orders writes to the repository
	mu        sync.Mutex
	persisted uint64
}

type Option func(*CartService)

func WithIdleTimeout(d time.Duration) Option {
	return func(s *CartService) { s.idleTimeout = d }
}

func WithClock(now func() time.Time) Option {
	return func(s *CartService) { s.now = now }
}

func NewCartService(repo repository.CartRepository, cache cache.CartCache, log *slog.Logger, opts ...Option) *CartService {
	s := &CartService{
		repo:           repo,
		cache:          cache,
		log:            log,
		persistTimeout: defaultPersistTimeout,
		idleTimeout:    defaultIdleTimeout,
		now:            time.Now,
		carts:          make(map[string]*sessionCart),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cart returns the live store for sessionID, loading it if needed. A session
// without a saved cart gets an empty one.
func (s *CartService) Cart(ctx context.Context, sessionID string) (*cartstore.Store, error) {
	s.mu.Lock()
	if sc, ok := s.carts[sessionID]; ok {
		sc.lastUsed = s.now()
		s.mu.Unlock()
		return sc.store, nil
	}
	s.mu.Unlock()

	// singleflight keeps concurrent first requests from all missing the cache
	v, err, _ := s.sfg.Do(sessionID, func() (interface{}, error) {
		return s.load(ctx, sessionID)
	})
	if err != nil {
		return nil, err
	}
	saved := v.(*domain.Cart)

	s.mu.Lock()
	defer s.mu.Unlock()
	if sc, ok := s.carts[sessionID]; ok {
		sc.lastUsed = s.now()
		return sc.store, nil
	}

	sc := &sessionCart{
		store:     cartstore.Restore(cartstore.Snapshot{Items: saved.Items, Version: saved.Version}),
		createdAt: saved.CreatedAt,
		lastUsed:  s.now(),
		persisted: saved.Version,
	}
	sc.unsubscribe = sc.store.Subscribe(func(snap cartstore.Snapshot) {
		s.persist(sessionID, sc, snap)
	})
	s.carts[sessionID] = sc

	return sc.store, nil
}

func (s *CartService) load(ctx context.Context, sessionID string) (*domain.Cart, error) {
	cart, err := s.cache.Get(ctx, sessionID)
	if err == nil {
		return cart, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		s.log.WarnContext(ctx, "cache get error", "session_id", sessionID, "error", err)
	}

	cart, err = s.repo.GetCart(ctx, sessionID)
	if errors.Is(err, repository.ErrCartNotFound) {
		return &domain.Cart{SessionID: sessionID, CreatedAt: s.now()}, nil
	}
	if err != nil {
		s.log.ErrorContext(ctx, "repo get cart error", "session_id", sessionID, "error", err)
		return nil, err
	}

	// set before the store exists so a later invalidation cannot be overtaken
	if err := s.cache.Set(ctx, sessionID, cart); err != nil {
		s.log.WarnContext(ctx, "cache set error", "session_id", sessionID, "error", err)
	}

	return cart, nil
}

// persist writes snap unless a newer version has already been written.
// Failures are logged: the in-memory cart stays authoritative.
func (s *CartService) persist(sessionID string, sc *sessionCart, snap cartstore.Snapshot) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if snap.Version <= sc.persisted {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.persistTimeout)
	defer cancel()

	err := s.repo.UpsertCart(ctx, &domain.Cart{
		SessionID: sessionID,
		Items:     snap.Items,
		Version:   snap.Version,
		CreatedAt: sc.createdAt,
	})
	switch {
	case errors.Is(err, repository.ErrStaleVersion):
		// another writer already stored this version or a later one
		s.log.Warn("dropped stale cart write", "session_id", sessionID, "version", snap.Version, "error", err)
	case err != nil:
		s.log.Error("repo upsert cart error", "session_id", sessionID, "version", snap.Version, "error", err)
		return
	default:
		sc.persisted = snap.Version
	}

	if err := s.cache.Delete(ctx, sessionID); err != nil {
		s.log.Warn("cache invalidate error", "session_id", sessionID, "error", err)
	}
}

func (s *CartService) AddItem(ctx context.Context, sessionID string, item domain.CartItem) (cartstore.Snapshot, error) {
	return s.apply(ctx, sessionID, func(c *cartstore.Store) { c.AddItem(item) })
}

func (s *CartService) UpdateQuantity(ctx context.Context, sessionID, productID string, quantity int) (cartstore.Snapshot, error) {
	return s.apply(ctx, sessionID, func(c *cartstore.Store) { c.UpdateQuantity(productID, quantity) })
}

func (s *CartService) RemoveItem(ctx context.Context, sessionID, productID string) (cartstore.Snapshot, error) {
	return s.apply(ctx, sessionID, func(c *cartstore.Store) { c.RemoveItem(productID) })
}

func (s *CartService) ClearCart(ctx context.Context, sessionID string) (cartstore.Snapshot, error) {
	return s.apply(ctx, sessionID, func(c *cartstore.Store) { c.Clear() })
}

func (s *CartService) Snapshot(ctx context.Context, sessionID string) (cartstore.Snapshot, error) {
	return s.apply(ctx, sessionID, func(*cartstore.Store) {})
}

func (s *CartService) apply(ctx context.Context, sessionID string, fn func(*cartstore.Store)) (cartstore.Snapshot, error) {
	store, err := s.Cart(ctx, sessionID)
	if err != nil {
		return cartstore.Snapshot{}, err
	}
	fn(store)
	return store.Snapshot(), nil
}

// Run evicts idle carts until ctx is done. Evicted carts are already
// persisted and are reloaded on the next request.
func (s *CartService) Run(ctx context.Context) error {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.EvictIdle(); n > 0 {
				s.log.Debug("evicted idle carts", "count", n)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

func (s *CartService) EvictIdle() int {
	cutoff := s.now().Add(-s.idleTimeout)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, sc := range s.carts {
		if sc.lastUsed.Before(cutoff) {
			sc.unsubscribe()
			delete(s.carts, id)
			evicted++
		}
	}
	return evicted
}

func (s *CartService) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sc := range s.carts {
		sc.unsubscribe()
		delete(s.carts, id)
	}
}
