package models

import (
	"github.com/shopspring/decimal"
)

// CartLine is a product reference plus quantity. Quantity is always >= 1 while
// the line is stored in a cart.
type CartLine struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Image    string          `json:"image,omitempty"`
	Quantity int             `json:"quantity"`
}

func NewCartLine(p Product, quantity int) CartLine {
	return CartLine{
		ID:       p.ID,
		Name:     p.Name,
		Price:    p.Price,
		Image:    p.Image,
		Quantity: quantity,
	}
}

// Subtotal returns price x quantity for the line
func (l CartLine) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

type AddToCartRequest struct {
	Product
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}
