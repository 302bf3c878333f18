package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// CartItem is one product line. Price is the catalog price captured when the
// product was first added.
type CartItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type Cart struct {
	UserID    string     `json:"userId"`
	Items     []CartItem `json:"items"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// NewCart returns an empty cart for userID.
func NewCart(userID string) *Cart {
	return &Cart{UserID: userID, Items: []CartItem{}}
}

// Quantity reports how many of productID the cart holds.
func (c *Cart) Quantity(productID string) int {
	for _, it := range c.Items {
		if it.ProductID == productID {
			return it.Quantity
		}
	}
	return 0
}

// Add merges quantity into an existing line or appends a new one priced at
// price.
func (c *Cart) Add(productID string, quantity int, price decimal.Decimal) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			c.Items[i].Quantity += quantity
			return
		}
	}
	c.Items = append(c.Items, CartItem{ProductID: productID, Quantity: quantity, Price: price})
}

// Remove drops every line for productID and reports whether one existed.
func (c *Cart) Remove(productID string) bool {
	kept := c.Items[:0]
	removed := false
	for _, it := range c.Items {
		if it.ProductID == productID {
			removed = true
			continue
		}
		kept = append(kept, it)
	}
	c.Items = kept
	return removed
}

type AddItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

// OrderEvent is the subset of the order service's event the reconciler reads.
type OrderEvent struct {
	Type           string    `json:"type"`
	OrderID        string    `json:"orderId"`
	UserID         string    `json:"userId"`
	OrderCreatedAt time.Time `json:"orderCreatedAt"`
	Timestamp      time.Time `json:"timestamp"`
}

// Cutoff is the moment the order was recorded. A cart written after it holds
// items the order does not. Events without the order time fall back to the
// publish time.
func (e OrderEvent) Cutoff() time.Time {
	if !e.OrderCreatedAt.IsZero() {
		return e.OrderCreatedAt
	}
	return e.Timestamp
}
