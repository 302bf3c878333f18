package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/metrics"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
)

// ChargeRequest asks the processor to move Amount from UserID.
type ChargeRequest struct {
	Amount decimal.Decimal
	UserID string
	// IdempotencyKey, when set, lets the processor return the earlier receipt
	// instead of charging twice.
	IdempotencyKey string
}

// PaymentProcessor charges a principal and returns a receipt.
type PaymentProcessor interface {
	Charge(ctx context.Context, req ChargeRequest) (*models.PaymentReceipt, error)
}

// PaymentClient communicates with the payment service via HTTP
type PaymentClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[any]
	metrics    *metrics.Registry
}

// NewPaymentClient creates a new PaymentClient
func NewPaymentClient(baseURL string, opts ClientOptions) *PaymentClient {
	return &PaymentClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.timeout(10 * time.Second),
		},
		breaker: newBreaker("payment-service", opts),
		metrics: opts.Metrics,
	}
}

type paymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
	UserID string          `json:"userId"`
}

type paymentResponse struct {
	PaymentID string          `json:"paymentId"`
	Status    string          `json:"status"`
	Amount    decimal.Decimal `json:"amount"`
}

var successfulPaymentStatuses = map[string]bool{
	"completed": true,
	"succeeded": true,
}

// Charge posts one payment. It is called at most once per checkout attempt.
func (c *PaymentClient) Charge(ctx context.Context, req ChargeRequest) (*models.PaymentReceipt, error) {
	start := time.Now()
	receipt, err := guarded(c.breaker, func() (*models.PaymentReceipt, error) {
		return c.charge(ctx, req)
	})
	c.metrics.ObserveCall("payment", "charge", err == nil, time.Since(start))
	return receipt, err
}

func (c *PaymentClient) charge(ctx context.Context, req ChargeRequest) (*models.PaymentReceipt, error) {
	payload, err := json.Marshal(paymentRequest{Amount: req.Amount, UserID: req.UserID})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/payments", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if req.IdempotencyKey != "" {
		httpReq.Header.Set("Idempotency-Key", req.IdempotencyKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("payment service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		err := statusError("payment service", resp)
		if errors.Is(err, errRejected) {
			return nil, apperrors.Upstream("Payment failed", err)
		}
		return nil, err
	}

	var body paymentResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode payment response: %w", err)
	}
	if !successfulPaymentStatuses[strings.ToLower(body.Status)] {
		return nil, apperrors.Upstream("Payment failed",
			fmt.Errorf("payment %s ended with status %q: %w", body.PaymentID, body.Status, errRejected))
	}
	if body.PaymentID == "" {
		return nil, fmt.Errorf("payment service returned no payment id")
	}

	return &models.PaymentReceipt{
		PaymentID: body.PaymentID,
		Amount:    body.Amount,
		Status:    body.Status,
	}, nil
}
