package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a product or event carries no currency code.
const DefaultCurrency = "USD"

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
	"VND": true,
	"CLP": true,
	"ISK": true,
}

// Money is an amount in the smallest unit of its currency.
type Money struct {
	Amount   int64
	Currency string
}

func (m Money) String() string {
	return FormatMinorUnits(m.Amount, m.Currency)
}

// MinorUnitExponent returns how many decimal places the currency uses.
func MinorUnitExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return 0
	}
	return 2
}

// FormatMinorUnits renders an amount for display, e.g. 1250 USD as "12.50 USD".
func FormatMinorUnits(amount int64, currency string) string {
	if currency == "" {
		currency = DefaultCurrency
	}
	exp := MinorUnitExponent(currency)
	return decimal.New(amount, -exp).StringFixed(exp) + " " + strings.ToUpper(currency)
}
