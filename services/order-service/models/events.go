package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderConfirmed       = "order.confirmed"
	EventOrderPersistFailed   = "order.persist_failed"
	EventOrderCartClearFailed = "order.cart_clear_failed"
)

// OrderEvent is published for downstream consumers and for reconciliation of
// checkouts that ended half way.
type OrderEvent struct {
	Type      string          `json:"type"`
	OrderID   string          `json:"orderId,omitempty"`
	UserID    string          `json:"userId"`
	PaymentID string          `json:"paymentId,omitempty"`
	Total     decimal.Decimal `json:"total"`
	Reason    string          `json:"reason,omitempty"`
	// OrderCreatedAt is the order's own timestamp; zero when no order was
	// recorded.
	OrderCreatedAt time.Time `json:"orderCreatedAt"`
	Timestamp      time.Time `json:"timestamp"`
}
