package domain

import "time"

// CartItem is one product line in a cart. Everything except Quantity is a
// snapshot taken when the product was first added.
type CartItem struct {
	ProductID           string `json:"product_id" bson:"product_id"`
	Name                string `json:"name" bson:"name"`
	Slug                string `json:"slug" bson:"slug"`
	UnitPriceMinorUnits int64  `json:"unit_price_minor_units" bson:"unit_price_minor_units"`
	CurrencyCode        string `json:"currency_code" bson:"currency_code"`
	Quantity            int    `json:"quantity" bson:"quantity"`
}

func (i CartItem) SubtotalMinorUnits() int64 {
	return i.UnitPriceMinorUnits * int64(i.Quantity)
}

// Cart is the persisted form of a session's cart.
type Cart struct {
	SessionID string     `json:"session_id" bson:"session_id"`
	Items     []CartItem `json:"items" bson:"items"`
	Version   uint64     `json:"version" bson:"version"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" bson:"updated_at"`
}

func (c Cart) TotalMinorUnits() int64 {
	return TotalMinorUnits(c.Items)
}

// TotalMinorUnits sums unit price times quantity over items.
func TotalMinorUnits(items []CartItem) int64 {
	var total int64
	for _, item := range items {
		total += item.SubtotalMinorUnits()
	}
	return total
}
