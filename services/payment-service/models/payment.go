package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is one charge attempt against a user.
type Payment struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"-"`
	PaymentID string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"paymentId"`
	UserID    string          `gorm:"type:varchar(128);not null;index" json:"userId"`
	Amount    decimal.Decimal `gorm:"type:numeric(14,2);not null" json:"amount"`
	Currency  string          `gorm:"type:varchar(10);not null" json:"currency"`
	Status    PaymentStatus   `gorm:"type:varchar(20);not null" json:"status"`
	// IdempotencyKey is unique per caller-supplied key; NULL when absent.
	IdempotencyKey *string `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	Provider       string  `gorm:"type:varchar(20);not null" json:"provider"`
	// ProviderRef is the provider's own id (Stripe PaymentIntent).
	ProviderRef     *string    `gorm:"type:varchar(255);uniqueIndex" json:"-"`
	ProviderPayload *string    `gorm:"type:jsonb" json:"-"`
	SucceededAt     *time.Time `json:"-"`
	FailedAt        *time.Time `json:"-"`
	CreatedAt       time.Time  `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime" json:"-"`
}

// CreatePaymentRequest is the body of POST /payments.
type CreatePaymentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	UserID   string          `json:"userId"`
	Currency string          `json:"currency,omitempty"`
}

// PaymentReceipt is what a caller gets back from POST /payments.
type PaymentReceipt struct {
	PaymentID string          `json:"paymentId"`
	Status    PaymentStatus   `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

func (p *Payment) Receipt() PaymentReceipt {
	return PaymentReceipt{PaymentID: p.PaymentID, Status: p.Status, Amount: p.Amount}
}
