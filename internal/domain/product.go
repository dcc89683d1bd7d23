package domain

import "time"

type Collection struct {
	ID          string
	Name        string
	Slug        string
	Description string
	ImageURL    string
	CreatedAt   time.Time
}

type Product struct {
	ID           string
	CollectionID string
	Name         string
	Slug         string
	Description  string
	Price        Money
	ImageURL     string
	Featured     bool
	CreatedAt    time.Time
}

// CartItem snapshots the product's display fields and price into a cart line.
func (p Product) CartItem(quantity int) CartItem {
	return CartItem{
		ProductID:           p.ID,
		Name:                p.Name,
		Slug:                p.Slug,
		UnitPriceMinorUnits: p.Price.Amount,
		CurrencyCode:        p.Price.Currency,
		Quantity:            quantity,
	}
}
