// Package poller reacts to completed checkouts: it empties the session's cart
// and queues an order confirmation e-mail.
package poller

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/cartstore"
	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
	"github.com/XLuisDX/dani-candles-sub001/internal/notify"
	"github.com/segmentio/kafka-go"
)

type CheckoutCompletedEvent struct {
	CheckoutID      string            `json:"checkout_id"`
	SessionID       string            `json:"session_id"`
	Email           string            `json:"email"`
	Items           []domain.CartItem `json:"items"`
	TotalMinorUnits int64             `json:"total_minor_units"`
	Currency        string            `json:"currency"`
	CompletedAt     time.Time         `json:"completed_at"`
}

// Carts is the part of the cart service the poller needs.
type Carts interface {
	Snapshot(ctx context.Context, sessionID string) (cartstore.Snapshot, error)
	ClearCart(ctx context.Context, sessionID string) (cartstore.Snapshot, error)
}

type Poller struct {
	reader   notify.MessageReader
	carts    Carts
	notifier notify.Notifier
	log      *slog.Logger
}

func NewPoller(reader notify.MessageReader, carts Carts, notifier notify.Notifier, log *slog.Logger) *Poller {
	return &Poller{reader: reader, carts: carts, notifier: notifier, log: log}
}

// Run handles checkout events until ctx is done.
func (p *Poller) Run(ctx context.Context) error {
	return notify.Consume(ctx, p.reader, p.log.With("consumer", "checkout"), p.handle)
}

func (p *Poller) Close() error {
	return p.reader.Close()
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) {
	var event CheckoutCompletedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		p.log.Error("error parsing checkout event", "offset", m.Offset, "error", err)
		return
	}
	if event.SessionID == "" {
		p.log.Error("checkout event without session_id", "checkout_id", event.CheckoutID)
		return
	}

	log := p.log.With("checkout_id", event.CheckoutID, "session_id", event.SessionID)

	// the event may omit its lines; fall back to what is still in the cart
	if len(event.Items) == 0 {
		snap, err := p.carts.Snapshot(ctx, event.SessionID)
		if err != nil {
			log.Error("failed to read cart", "error", err)
		} else {
			event.Items = snap.Items
			event.TotalMinorUnits = snap.TotalMinorUnits()
		}
	}

	if _, err := p.carts.ClearCart(ctx, event.SessionID); err != nil {
		log.Error("failed to clear cart", "error", err)
	}

	if event.Email == "" {
		log.Debug("no e-mail on checkout event, skipping confirmation")
		return
	}
	p.sendConfirmation(ctx, log, event)
}

func (p *Poller) sendConfirmation(ctx context.Context, log *slog.Logger, event CheckoutCompletedEvent) {
	currency := event.Currency
	if currency == "" && len(event.Items) > 0 {
		currency = event.Items[0].CurrencyCode
	}
	if event.TotalMinorUnits == 0 {
		event.TotalMinorUnits = domain.TotalMinorUnits(event.Items)
	}

	body, err := notify.RenderOrderConfirmation(notify.OrderConfirmation{
		CheckoutID:      event.CheckoutID,
		Items:           event.Items,
		TotalMinorUnits: event.TotalMinorUnits,
		Currency:        currency,
	})
	if err != nil {
		log.Error("failed to render confirmation", "error", err)
		return
	}

	id, err := p.notifier.Send(ctx, notify.Message{
		To:      event.Email,
		Subject: "Your Dani Candles order",
		Body:    body,
	})
	if err != nil {
		log.Error("failed to send confirmation", "error", err)
		return
	}
	log.Info("order confirmation queued", "message_id", id)
}
