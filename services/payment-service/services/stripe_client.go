package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/models"
	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/paymentintent"
	"github.com/stripe/stripe-go/v80/webhook"
)

// StripeService charges through Stripe PaymentIntents, confirmed server side
// with a configured payment method.
type StripeService struct {
	intents       *paymentintent.Client
	webhookKey    string
	paymentMethod string
}

// NewStripeService builds a client against the public API. baseURL is only
// set by tests and local mocks.
func NewStripeService(secretKey, webhookKey, paymentMethod, baseURL string) *StripeService {
	cfg := &stripe.BackendConfig{}
	if baseURL != "" {
		cfg.URL = stripe.String(baseURL)
	}
	if paymentMethod == "" {
		paymentMethod = "pm_card_visa"
	}
	return &StripeService{
		intents: &paymentintent.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
			Key: secretKey,
		},
		webhookKey:    webhookKey,
		paymentMethod: paymentMethod,
	}
}

func (s *StripeService) Name() string { return "stripe" }

func (s *StripeService) Charge(ctx context.Context, in ChargeInput) (ChargeOutcome, error) {
	currency := in.Currency
	if currency == "" {
		currency = "usd"
	}
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(in.Amount.Shift(2).Round(0).IntPart()),
		Currency:      stripe.String(currency),
		PaymentMethod: stripe.String(s.paymentMethod),
		Confirm:       stripe.Bool(true),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled:        stripe.Bool(true),
			AllowRedirects: stripe.String("never"),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey(in.PaymentID)
	params.AddMetadata("payment_id", in.PaymentID)
	params.AddMetadata("user_id", in.UserID)

	pi, err := s.intents.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return ChargeOutcome{}, fmt.Errorf("%w: %s", ErrDeclined, stripeErr.Msg)
		}
		return ChargeOutcome{}, fmt.Errorf("stripe create payment intent: %w", err)
	}
	return ChargeOutcome{Status: intentStatus(pi.Status), ProviderRef: pi.ID}, nil
}

func intentStatus(s stripe.PaymentIntentStatus) models.PaymentStatus {
	switch s {
	case stripe.PaymentIntentStatusSucceeded:
		return models.PaymentStatusCompleted
	case stripe.PaymentIntentStatusCanceled, stripe.PaymentIntentStatusRequiresPaymentMethod:
		return models.PaymentStatusFailed
	default:
		return models.PaymentStatusPending
	}
}

// IntentUpdate is a verified PaymentIntent state change from a webhook.
type IntentUpdate struct {
	IntentID string
	Status   models.PaymentStatus
	Payload  []byte
}

// ErrIgnoredEvent marks a verified webhook event this service does not act on.
var ErrIgnoredEvent = errors.New("ignored stripe event")

// ParseWebhook verifies the Stripe-Signature header and extracts the intent
// the event is about.
func (s *StripeService) ParseWebhook(r *http.Request) (IntentUpdate, error) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		return IntentUpdate{}, err
	}
	event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), s.webhookKey,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return IntentUpdate{}, err
	}

	var status models.PaymentStatus
	switch event.Type {
	case "payment_intent.succeeded":
		status = models.PaymentStatusCompleted
	case "payment_intent.payment_failed", "payment_intent.canceled":
		status = models.PaymentStatusFailed
	default:
		return IntentUpdate{}, ErrIgnoredEvent
	}

	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return IntentUpdate{}, fmt.Errorf("decode payment intent: %w", err)
	}
	if pi.ID == "" {
		return IntentUpdate{}, fmt.Errorf("event %s carries no payment intent id", event.ID)
	}
	return IntentUpdate{IntentID: pi.ID, Status: status, Payload: payload}, nil
}
