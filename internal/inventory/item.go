// Package inventory is the client side of the inventory store: the item
// model, an HTTP client for /api/items and a snapshot store with totals.
package inventory

import (
	"fmt"
	"math"
)

// Money is an amount in cents.
type Money int64

// MoneyFromFloat rounds a decimal amount to cents.
func MoneyFromFloat(v float64) Money {
	return Money(math.Round(v * 100))
}

// Float returns the amount as a decimal.
func (m Money) Float() float64 {
	return float64(m) / 100
}

// String formats the amount with two decimals, e.g. "7.50".
func (m Money) String() string {
	sign := ""
	v := int64(m)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// Item is one inventory line as served by the store.
type Item struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	// ServerTotal is the total as reported by the service, if any.
	ServerTotal float64 `json:"total,omitempty"`
}

// UnitPrice returns the price in cents.
func (i Item) UnitPrice() Money {
	return MoneyFromFloat(i.Price)
}

// Total is quantity x price, derived locally.
func (i Item) Total() Money {
	return Money(int64(i.Quantity)) * i.UnitPrice()
}

// NewItem is the body of a create or update request.
type NewItem struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Quantity int     `json:"quantity" validate:"min=1"`
	Price    float64 `json:"price" validate:"gte=0.01"`
}

// GrandTotal sums item totals.
func GrandTotal(items []Item) Money {
	var sum Money
	for _, it := range items {
		sum += it.Total()
	}
	return sum
}
