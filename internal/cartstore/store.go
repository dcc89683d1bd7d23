package cartstore

import (
	"slices"
	"sync"

	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
)

// Snapshot is a copy of the cart at a given version. Versions grow by one on
// every mutation, so consumers that receive snapshots out of order can tell
// which one is newer.
type Snapshot struct {
	Items   []domain.CartItem
	Version uint64
}

func (s Snapshot) TotalMinorUnits() int64 {
	return domain.TotalMinorUnits(s.Items)
}

// Listener is called after every mutation with the settled state.
type Listener func(Snapshot)

type subscription struct {
	id uint64
	fn Listener
}

// Store holds one shopping cart in memory. Items are unique by product id and
// keep the order in which each product was first added. The item slice is
// never modified in place: every mutation installs a new slice.
type Store struct {
	mu      sync.RWMutex
	items   []domain.CartItem
	version uint64

	lmu       sync.Mutex
	listeners []subscription
	nextID    uint64
}

// New creates an empty cart.
func New() *Store {
	return &Store{}
}

// Restore creates a cart from a previously taken snapshot. Duplicate product
// ids are merged and non-positive quantities dropped, the same way AddItem
// would treat them.
func Restore(s Snapshot) *Store {
	store := &Store{version: s.Version}
	for _, item := range s.Items {
		if item.Quantity <= 0 {
			continue
		}
		store.items = addItem(store.items, item)
	}
	return store
}

// AddItem merges item into the cart. An existing line for the same product
// keeps its name, slug, price and currency and only gains quantity; a new
// product is appended. Quantities below one are ignored entirely.
func (s *Store) AddItem(item domain.CartItem) {
	if item.Quantity <= 0 {
		return
	}
	s.mutate(func(items []domain.CartItem) []domain.CartItem {
		return addItem(items, item)
	})
}

// RemoveItem drops the line for productID. Unknown ids are ignored.
func (s *Store) RemoveItem(productID string) {
	s.mutate(func(items []domain.CartItem) []domain.CartItem {
		return removeItem(items, productID)
	})
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero or
// less removes the line. Unknown ids are ignored.
func (s *Store) UpdateQuantity(productID string, quantity int) {
	s.mutate(func(items []domain.CartItem) []domain.CartItem {
		if quantity <= 0 {
			return removeItem(items, productID)
		}
		i := indexOf(items, productID)
		if i < 0 {
			return items
		}
		out := slices.Clone(items)
		out[i].Quantity = quantity
		return out
	})
}

// Clear empties the cart.
func (s *Store) Clear() {
	s.mutate(func([]domain.CartItem) []domain.CartItem {
		return nil
	})
}

// TotalMinorUnits returns the sum of unit price times quantity.
func (s *Store) TotalMinorUnits() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.TotalMinorUnits(s.items)
}

// Items returns a copy of the current lines.
func (s *Store) Items() []domain.CartItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items)
}

func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Items: cloneItems(s.items), Version: s.version}
}

// Subscribe registers fn for change notifications and returns a function that
// removes it. Calling the returned function more than once is harmless.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.lmu.Lock()
	s.nextID++
	id := s.nextID
	s.listeners = append(s.listeners, subscription{id: id, fn: fn})
	s.lmu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.lmu.Lock()
			defer s.lmu.Unlock()
			s.listeners = slices.DeleteFunc(s.listeners, func(sub subscription) bool {
				return sub.id == id
			})
		})
	}
}

func (s *Store) mutate(fn func([]domain.CartItem) []domain.CartItem) {
	s.mu.Lock()
	s.items = fn(s.items)
	s.version++
	snap := Snapshot{Items: s.items, Version: s.version}
	s.mu.Unlock()

	s.notify(snap)
}

// notify runs outside both locks so listeners may read, mutate or unsubscribe.
func (s *Store) notify(snap Snapshot) {
	s.lmu.Lock()
	listeners := slices.Clone(s.listeners)
	s.lmu.Unlock()

	for _, sub := range listeners {
		sub.fn(Snapshot{Items: cloneItems(snap.Items), Version: snap.Version})
	}
}

func addItem(items []domain.CartItem, item domain.CartItem) []domain.CartItem {
	i := indexOf(items, item.ProductID)
	if i < 0 {
		out := make([]domain.CartItem, len(items), len(items)+1)
		copy(out, items)
		return append(out, item)
	}
	out := slices.Clone(items)
	out[i].Quantity += item.Quantity
	return out
}

func removeItem(items []domain.CartItem, productID string) []domain.CartItem {
	i := indexOf(items, productID)
	if i < 0 {
		return items
	}
	out := make([]domain.CartItem, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...)
}

func indexOf(items []domain.CartItem, productID string) int {
	return slices.IndexFunc(items, func(item domain.CartItem) bool {
		return item.ProductID == productID
	})
}

func cloneItems(items []domain.CartItem) []domain.CartItem {
	out := make([]domain.CartItem, len(items))
	copy(out, items)
	return out
}
