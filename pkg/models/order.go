package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusProcessing = "Processing"
	OrderStatusShipped    = "Shipped"
	OrderStatusDelivered  = "Delivered"
	OrderStatusCancelled  = "Cancelled"

	PaymentMethodCreditCard = "Credit Card"

	// PlaceholderImage is sent for order items that carry no image.
	PlaceholderImage = "https://via.placeholder.com/80"

	OrderNumberMin = 100000
	OrderNumberMax = 999999
)

// Customer is the shipping contact captured at checkout
type Customer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	ZipCode   string `json:"zipCode"`
	FullName  string `json:"fullName"`
}

// OrderItem represents a single item in an order
type OrderItem struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
	Image    string          `json:"image"`
}

// Payment never holds more than the last four card digits.
type Payment struct {
	CardNumberLast4 string `json:"cardNumberLast4"`
	ExpiryDate      string `json:"expiryDate"`
	Method          string `json:"method"`
}

// Order is the record submitted to the order service. Once created the
// order service owns it; the storefront only reads it back.
type Order struct {
	OrderNumber     int             `json:"orderNumber"`
	OrderDate       time.Time       `json:"orderDate"`
	UserID          string          `json:"userId"`
	Customer        Customer        `json:"customer"`
	Items           []OrderItem     `json:"items"`
	Payment         Payment         `json:"payment"`
	Total           decimal.Decimal `json:"total"`
	Status          string          `json:"status"`
	DeliveryAddress string          `json:"deliveryAddress"`
}

func NewOrderItem(line CartLine) OrderItem {
	image := line.Image
	if image == "" {
		image = PlaceholderImage
	}
	return OrderItem{
		ID:       line.ID,
		Name:     line.Name,
		Price:    line.Price,
		Quantity: line.Quantity,
		Image:    image,
	}
}

// CalculateTotal sums price x quantity over the items
func (o *Order) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

// GetItemCount returns the total number of items in the order
func (o *Order) GetItemCount() int {
	var count int
	for _, item := range o.Items {
		count += item.Quantity
	}
	return count
}

// CanBeCancelled checks if the order can still be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.Status == OrderStatusProcessing
}

func FormatDeliveryAddress(address, city, state, zipCode string) string {
	return fmt.Sprintf("%s, %s, %s %s", address, city, state, zipCode)
}

// ValidOrderNumber reports whether n is in the six digit range.
func ValidOrderNumber(n int) bool {
	return n >= OrderNumberMin && n <= OrderNumberMax
}

// CreateOrderResponse is the order service acknowledgement for POST /orders.
type CreateOrderResponse struct {
	Success     bool   `json:"success"`
	OrderNumber int    `json:"orderNumber,omitempty"`
	OrderID     string `json:"order_id,omitempty"`
	Message     string `json:"message,omitempty"`
}

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=Processing Shipped Delivered Cancelled"`
}
