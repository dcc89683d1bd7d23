package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/cache"
	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
	"github.com/XLuisDX/dani-candles-sub001/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockRepository struct {
	m       sync.RWMutex
	carts   map[string]*domain.Cart
	getErr  error
	saveErr error
	gets    int
	upserts int
}

func newMockRepository() *mockRepository {
	return &mockRepository{carts: map[string]*domain.Cart{}}
}

func (m *mockRepository) GetCart(_ context.Context, sessionID string) (*domain.Cart, error) {
	m.m.Lock()
	defer m.m.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, m.getErr
	}
	cart, ok := m.carts[sessionID]
	if !ok {
		return nil, repository.ErrCartNotFound
	}
	c := *cart
	return &c, nil
}

func (m *mockRepository) UpsertCart(_ context.Context, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.upserts++
	if m.saveErr != nil {
		return m.saveErr
	}
	if existing, ok := m.carts[cart.SessionID]; ok && existing.Version >= cart.Version {
		return repository.ErrStaleVersion
	}
	c := *cart
	m.carts[cart.SessionID] = &c
	return nil
}

func (m *mockRepository) cart(sessionID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[sessionID]
}

func (m *mockRepository) counts() (int, int) {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.gets, m.upserts
}

type mockCache struct {
	m     sync.RWMutex
	carts map[string]*domain.Cart
	err   error
}

func newMockCache() *mockCache {
	return &mockCache{carts: map[string]*domain.Cart{}}
}

func (m *mockCache) Get(_ context.Context, sessionID string) (*domain.Cart, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	cart, ok := m.carts[sessionID]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return cart, nil
}

func (m *mockCache) Set(_ context.Context, sessionID string, cart *domain.Cart) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.carts[sessionID] = cart
	return m.err
}

func (m *mockCache) Delete(_ context.Context, sessionID string) error {
	m.m.Lock()
	defer m.m.Unlock()
	delete(m.carts, sessionID)
	return m.err
}

func (m *mockCache) getCart(sessionID string) *domain.Cart {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.carts[sessionID]
}

// syncBuffer is a goroutine-safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf strings.Builder
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func candle(id string, price int64, qty int) domain.CartItem {
	return domain.CartItem{ProductID: id, Name: id, Slug: id, UnitPriceMinorUnits: price, CurrencyCode: "USD", Quantity: qty}
}

func TestCart_NewSessionIsEmpty(t *testing.T) {
	sut := NewCartService(newMockRepository(), newMockCache(), testLogger())

	store, err := sut.Cart(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Empty(t, store.Items())
}

func TestCart_LoadsFromRepoAndFillsCache(t *testing.T) {
	repo := newMockRepository()
	repo.carts["sess-1"] = &domain.Cart{SessionID: "sess-1", Items: []domain.CartItem{candle("A", 500, 2)}, Version: 4}
	mc := newMockCache()

	sut := NewCartService(repo, mc, testLogger())
	snap, err := sut.Snapshot(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Equal(t, []domain.CartItem{candle("A", 500, 2)}, snap.Items)
	assert.Equal(t, uint64(4), snap.Version)

	assert.NotNil(t, mc.getCart("sess-1"), "cart was not set in cache")
}

func TestCart_CacheHitSkipsRepo(t *testing.T) {
	repo := newMockRepository()
	mc := newMockCache()
	mc.carts["sess-1"] = &domain.Cart{SessionID: "sess-1", Items: []domain.CartItem{candle("A", 100, 1)}, Version: 1}

	sut := NewCartService(repo, mc, testLogger())
	snap, err := sut.Snapshot(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)

	gets, _ := repo.counts()
	assert.Equal(t, 0, gets)
}

func TestCart_CacheErrorFallsBackToRepo(t *testing.T) {
	repo := newMockRepository()
	repo.carts["sess-1"] = &domain.Cart{SessionID: "sess-1", Items: []domain.CartItem{candle("A", 100, 1)}, Version: 1}
	mc := newMockCache()
	mc.err = fmt.Errorf("redis down")

	sut := NewCartService(repo, mc, testLogger())
	snap, err := sut.Snapshot(context.Background(), "sess-1")
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)
}

func TestCart_RepoError(t *testing.T) {
	repo := newMockRepository()
	repo.getErr = fmt.Errorf("database error")

	sut := NewCartService(repo, newMockCache(), testLogger())
	_, err := sut.Cart(context.Background(), "sess-1")
	require.ErrorContains(t, err, "database error")

	_, err = sut.AddItem(context.Background(), "sess-1", candle("A", 1, 1))
	require.ErrorContains(t, err, "database error")
}

func TestCart_SameStoreForSession(t *testing.T) {
	repo := newMockRepository()
	sut := NewCartService(repo, newMockCache(), testLogger())

	var wg sync.WaitGroup
	stores := make(chan interface{}, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store, err := sut.Cart(context.Background(), "sess-1")
			assert.NoError(t, err)
			stores <- store
		}()
	}
	wg.Wait()
	close(stores)

	var first interface{}
	for s := range stores {
		if first == nil {
			first = s
		}
		assert.Same(t, first, s)
	}
}

func TestAddItem_PersistsAndInvalidatesCache(t *testing.T) {
	repo := newMockRepository()
	mc := newMockCache()
	sut := NewCartService(repo, mc, testLogger())
	ctx := context.Background()

	_, err := sut.Cart(ctx, "sess-1")
	require.NoError(t, err)
	mc.carts["sess-1"] = &domain.Cart{SessionID: "sess-1"}

	snap, err := sut.AddItem(ctx, "sess-1", candle("A", 1200, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(2400), snap.TotalMinorUnits())

	saved := repo.cart("sess-1")
	require.NotNil(t, saved)
	assert.Equal(t, []domain.CartItem{candle("A", 1200, 2)}, saved.Items)
	assert.Equal(t, uint64(1), saved.Version)
	assert.Nil(t, mc.getCart("sess-1"), "cache was not invalidated")
}

func TestMutations_FollowCartSemantics(t *testing.T) {
	repo := newMockRepository()
	sut := NewCartService(repo, newMockCache(), testLogger())
	ctx := context.Background()

	_, err := sut.AddItem(ctx, "sess-1", candle("A", 500, 1))
	require.NoError(t, err)
	_, err = sut.AddItem(ctx, "sess-1", candle("B", 300, 2))
	require.NoError(t, err)
	snap, err := sut.AddItem(ctx, "sess-1", candle("A", 999, 2))
	require.NoError(t, err)
	assert.Equal(t, []domain.CartItem{candle("A", 500, 3), candle("B", 300, 2)}, snap.Items)

	snap, err = sut.UpdateQuantity(ctx, "sess-1", "B", 0)
	require.NoError(t, err)
	assert.Equal(t, []domain.CartItem{candle("A", 500, 3)}, snap.Items)

	snap, err = sut.RemoveItem(ctx, "sess-1", "A")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)

	_, err = sut.AddItem(ctx, "sess-1", candle("C", 100, 1))
	require.NoError(t, err)
	snap, err = sut.ClearCart(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Items)
	assert.Equal(t, int64(0), snap.TotalMinorUnits())

	saved := repo.cart("sess-1")
	require.NotNil(t, saved)
	assert.Empty(t, saved.Items)
	assert.Equal(t, snap.Version, saved.Version)
}

func TestPersistFailureKeepsMemoryState(t *testing.T) {
	repo := newMockRepository()
	repo.saveErr = fmt.Errorf("database error")
	sut := NewCartService(repo, newMockCache(), testLogger())
	ctx := context.Background()

	snap, err := sut.AddItem(ctx, "sess-1", candle("A", 100, 1))
	require.NoError(t, err)
	assert.Len(t, snap.Items, 1)
	assert.Nil(t, repo.cart("sess-1"))

	repo.m.Lock()
	repo.saveErr = nil
	repo.m.Unlock()

	_, err = sut.AddItem(ctx, "sess-1", candle("A", 100, 1))
	require.NoError(t, err)
	saved := repo.cart("sess-1")
	require.NotNil(t, saved)
	assert.Equal(t, 2, saved.Items[0].Quantity)
}

func TestEvictIdle(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	repo := newMockRepository()
	sut := NewCartService(repo, newMockCache(), testLogger(), WithClock(clock), WithIdleTimeout(10*time.Minute))
	ctx := context.Background()

	_, err := sut.AddItem(ctx, "old", candle("A", 100, 1))
	require.NoError(t, err)

	now = now.Add(8 * time.Minute)
	_, err = sut.AddItem(ctx, "fresh", candle("B", 100, 1))
	require.NoError(t, err)

	now = now.Add(5 * time.Minute)
	assert.Equal(t, 1, sut.EvictIdle())

	// evicted cart is reloaded from the repository
	snap, err := sut.Snapshot(ctx, "old")
	require.NoError(t, err)
	assert.Equal(t, []domain.CartItem{candle("A", 100, 1)}, snap.Items)

	_, err = sut.AddItem(ctx, "old", candle("A", 100, 1))
	require.NoError(t, err)
	assert.Equal(t, 2, repo.cart("old").Items[0].Quantity)
}

func TestClose_StopsPersisting(t *testing.T) {
	repo := newMockRepository()
	sut := NewCartService(repo, newMockCache(), testLogger())
	ctx := context.Background()

	store, err := sut.Cart(ctx, "sess-1")
	require.NoError(t, err)

	sut.Close()
	store.AddItem(candle("A", 100, 1))

	_, upserts := repo.counts()
	assert.Equal(t, 0, upserts)
}

func TestRun_StopsOnCancel(t *testing.T) {
	sut := NewCartService(newMockRepository(), newMockCache(), testLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- sut.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestPersist_StaleWriteIsLoggedAndCacheDropped(t *testing.T) {
	repo := newMockRepository()
	mc := newMockCache()
	logs := &syncBuffer{}
	log := slog.New(slog.NewTextHandler(logs, nil))
	sut := NewCartService(repo, mc, log)
	ctx := context.Background()

	_, err := sut.AddItem(ctx, "sess-1", candle("A", 100, 1))
	require.NoError(t, err)

	// another instance has moved the stored cart ahead
	repo.m.Lock()
	repo.carts["sess-1"] = &domain.Cart{SessionID: "sess-1", Items: []domain.CartItem{candle("Z", 1, 9)}, Version: 50}
	repo.m.Unlock()
	mc.carts["sess-1"] = &domain.Cart{SessionID: "sess-1"}

	_, err = sut.AddItem(ctx, "sess-1", candle("B", 200, 1))
	require.NoError(t, err)

	assert.Contains(t, logs.String(), "dropped stale cart write")
	assert.Contains(t, logs.String(), "level=WARN")
	assert.Equal(t, uint64(50), repo.cart("sess-1").Version)
	assert.Nil(t, mc.getCart("sess-1"), "cache was not invalidated")
}
