package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/models"
	"github.com/Williethedeveloper/e-commerce-microservices/services/payment-service/services"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v80/webhook"
)

func stripeServer(t *testing.T, status int, body string) (*httptest.Server, *http.Request) {
	t.Helper()
	var seen http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		seen = *r
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &seen
}

func TestStripeCharge_Succeeded(t *testing.T) {
	srv, seen := stripeServer(t, http.StatusOK, `{"id":"pi_123","object":"payment_intent","status":"succeeded","amount":2550,"currency":"usd"}`)
	s := services.NewStripeService("sk_test_123", "whsec_test", "", srv.URL)

	out, err := s.Charge(context.Background(), services.ChargeInput{
		PaymentID: "PAY_1_abc",
		UserID:    "u1",
		Amount:    decimal.RequireFromString("25.50"),
	})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCompleted, out.Status)
	assert.Equal(t, "pi_123", out.ProviderRef)

	assert.Equal(t, "/v1/payment_intents", seen.URL.Path)
	assert.Equal(t, "2550", seen.PostForm.Get("amount"))
	assert.Equal(t, "usd", seen.PostForm.Get("currency"))
	assert.Equal(t, "true", seen.PostForm.Get("confirm"))
	assert.Equal(t, "pm_card_visa", seen.PostForm.Get("payment_method"))
	assert.Equal(t, "PAY_1_abc", seen.Header.Get("Idempotency-Key"))
}

func TestStripeCharge_CardDeclined(t *testing.T) {
	srv, _ := stripeServer(t, http.StatusPaymentRequired,
		`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`)
	s := services.NewStripeService("sk_test_123", "whsec_test", "pm_card_chargeDeclined", srv.URL)

	_, err := s.Charge(context.Background(), services.ChargeInput{PaymentID: "PAY_2", Amount: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, services.ErrDeclined)
}

func TestStripeCharge_RequiresAction(t *testing.T) {
	srv, _ := stripeServer(t, http.StatusOK, `{"id":"pi_9","object":"payment_intent","status":"requires_action"}`)
	s := services.NewStripeService("sk_test_123", "whsec_test", "", srv.URL)

	out, err := s.Charge(context.Background(), services.ChargeInput{PaymentID: "PAY_3", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, out.Status)
}

func signedWebhook(t *testing.T, secret, eventType, intentID string) *http.Request {
	t.Helper()
	payload, err := json.Marshal(map[string]interface{}{
		"id":          "evt_1",
		"object":      "event",
		"type":        eventType,
		"api_version": "2024-09-30.acacia",
		"data": map[string]interface{}{
			"object": map[string]interface{}{"id": intentID, "object": "payment_intent"},
		},
	})
	require.NoError(t, err)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    secret,
		Timestamp: time.Now(),
	})
	req := httptest.NewRequest(http.MethodPost, "/stripe/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signed.Header)
	return req
}

func TestParseWebhook(t *testing.T) {
	s := services.NewStripeService("sk_test_123", "whsec_test", "", "")

	tests := []struct {
		eventType string
		want      models.PaymentStatus
	}{
		{"payment_intent.succeeded", models.PaymentStatusCompleted},
		{"payment_intent.payment_failed", models.PaymentStatusFailed},
		{"payment_intent.canceled", models.PaymentStatusFailed},
	}
	for _, tt := range tests {
		t.Run(tt.eventType, func(t *testing.T) {
			update, err := s.ParseWebhook(signedWebhook(t, "whsec_test", tt.eventType, "pi_42"))
			require.NoError(t, err)
			assert.Equal(t, "pi_42", update.IntentID)
			assert.Equal(t, tt.want, update.Status)
			assert.NotEmpty(t, update.Payload)
		})
	}
}

func TestParseWebhook_IgnoredAndForged(t *testing.T) {
	s := services.NewStripeService("sk_test_123", "whsec_test", "", "")

	_, err := s.ParseWebhook(signedWebhook(t, "whsec_test", "charge.refunded", "pi_42"))
	assert.ErrorIs(t, err, services.ErrIgnoredEvent)

	_, err = s.ParseWebhook(signedWebhook(t, "whsec_other", "payment_intent.succeeded", "pi_42"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, services.ErrIgnoredEvent)
}
