package services

import (
	"context"
	"errors"

	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/models"
	"github.com/shopspring/decimal"
)

// ErrDeclined is returned by a Charger when the provider refused the charge.
// Nothing was taken from the user.
var ErrDeclined = errors.New("payment declined")

type ChargeInput struct {
	PaymentID string
	UserID    string
	Amount    decimal.Decimal
	Currency  string
}

type ChargeOutcome struct {
	Status models.PaymentStatus
	// ProviderRef is empty for providers without their own id.
	ProviderRef string
}

// Charger moves money through one provider. PaymentID is stable across
// retries of the same payment and doubles as the provider idempotency key.
type Charger interface {
	Name() string
	Charge(ctx context.Context, in ChargeInput) (ChargeOutcome, error)
}

// SimulatedCharger completes every charge without talking to anyone.
type SimulatedCharger struct{}

func (SimulatedCharger) Name() string { return "simulated" }

func (SimulatedCharger) Charge(ctx context.Context, _ ChargeInput) (ChargeOutcome, error) {
	if err := ctx.Err(); err != nil {
		return ChargeOutcome{}, err
	}
	return ChargeOutcome{Status: models.PaymentStatusCompleted}, nil
}
