package repository

import (
	"context"
	"errors"

	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
)

var (
	ErrCartNotFound = errors.New("cart not found")
	// ErrStaleVersion means a newer version of the cart is already stored and
	// the write was dropped.
	ErrStaleVersion = errors.New("stale cart version")
)

// CartRepository persists cart snapshots per session.
type CartRepository interface {
	GetCart(ctx context.Context, sessionID string) (*domain.Cart, error)
	// UpsertCart stores cart unless the stored version is the same or newer,
	// in which case it returns ErrStaleVersion.
	UpsertCart(ctx context.Context, cart *domain.Cart) error
}
