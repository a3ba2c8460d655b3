package models

import (
	"strings"

	"github.com/shopspring/decimal"

	"julianmorley.ca/con-plar/petstore/pkg/errs"
)

func init() {
	// The order service and the UI exchange prices as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product is the reference embedded in cart lines and wishlist entries.
type Product struct {
	ID    string          `json:"id" binding:"required"`
	Name  string          `json:"name" binding:"required"`
	Price decimal.Decimal `json:"price"`
	Image string          `json:"image,omitempty"`
}

// Validate checks the product reference before it enters a container.
func (p Product) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return &errs.ValidationError{Field: "id", Rule: "required", Message: "Product id is required"}
	}
	if p.Price.IsNegative() {
		return &errs.ValidationError{Field: "price", Rule: "non_negative", Message: "Product price cannot be negative"}
	}
	return nil
}
