package shop

import (
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TaxRate is the VAT applied to every order at checkout.
var TaxRate = decimal.RequireFromString("0.15")

// Subtotal is the sum of price × quantity over the cart.
func Subtotal(items []CartItem) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		sum = sum.Add(decimal.NewFromFloat(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return sum
}

// OrderTotal is the subtotal plus tax, rounded to two decimals.
func OrderTotal(items []CartItem) float64 {
	return Subtotal(items).Mul(decimal.NewFromInt(1).Add(TaxRate)).Round(2).InexactFloat64()
}

// Breakdown splits a tax-inclusive total back into subtotal and tax, as
// printed on invoices.
type Breakdown struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// InvoiceBreakdown derives the invoice lines for an order total.
func InvoiceBreakdown(total float64) Breakdown {
	t := decimal.NewFromFloat(total)
	sub := t.Div(decimal.NewFromInt(1).Add(TaxRate)).Round(2)
	return Breakdown{
		Subtotal: sub.InexactFloat64(),
		Tax:      t.Sub(sub).Round(2).InexactFloat64(),
		Total:    t.Round(2).InexactFloat64(),
	}
}

// NewOrderID returns a random seven-digit identifier not present in taken.
func NewOrderID(taken func(string) bool) string {
	for {
		id := fmt.Sprintf("%d", 1000000+rand.IntN(9000000))
		if taken == nil || !taken(id) {
			return id
		}
	}
}

// NewOrder builds a pending order from a contact snapshot and the cart.
func NewOrder(id string, c Customer, items []CartItem, now time.Time) (Order, error) {
	if err := c.Validate(); err != nil {
		return Order{}, err
	}
	if len(items) == 0 {
		return Order{}, validationf("cart is empty")
	}
	return Order{
		ID:           id,
		CustomerName: strings.TrimSpace(c.Name),
		PhoneNumber:  strings.TrimSpace(c.Phone),
		Email:        strings.TrimSpace(c.Email),
		Address:      strings.TrimSpace(c.Address),
		Items:        CloneCart(items),
		TotalAmount:  OrderTotal(items),
		Date:         now.UTC().Format(time.RFC3339Nano),
		Status:       StatusPending,
	}, nil
}

// CloneOrders deep-copies an order list.
func CloneOrders(orders []Order) []Order {
	if orders == nil {
		return nil
	}
	out := make([]Order, len(orders))
	for i, o := range orders {
		o.Items = CloneCart(o.Items)
		out[i] = o
	}
	return out
}
