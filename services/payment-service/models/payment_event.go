package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	PaymentEventCompleted = "payment.completed"
	PaymentEventFailed    = "payment.failed"
)

type PaymentEvent struct {
	Type      string          `json:"type"`
	PaymentID string          `json:"paymentId"`
	UserID    string          `json:"userId"`
	Status    PaymentStatus   `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewPaymentEvent(p *Payment, now time.Time) PaymentEvent {
	typ := PaymentEventCompleted
	if p.Status == PaymentStatusFailed {
		typ = PaymentEventFailed
	}
	return PaymentEvent{
		Type:      typ,
		PaymentID: p.PaymentID,
		UserID:    p.UserID,
		Status:    p.Status,
		Amount:    p.Amount,
		Currency:  p.Currency,
		Timestamp: now.UTC(),
	}
}
