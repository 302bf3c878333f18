package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Williethedeveloper/e-commerce-microservices/services/common/metrics"
	"github.com/Williethedeveloper/e-commerce-microservices/services/order-service/models"
	"github.com/sony/gobreaker/v2"
)

// CartStore reads and clears the caller's cart. The credential is forwarded
// as-is so the cart service resolves the same principal.
type CartStore interface {
	GetCart(ctx context.Context, credential string) (*models.CartSnapshot, error)
	ClearCart(ctx context.Context, credential string) error
}

// CartClient communicates with the cart service via HTTP
type CartClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[any]
	metrics    *metrics.Registry
}

// NewCartClient creates a new CartClient
func NewCartClient(baseURL string, opts ClientOptions) *CartClient {
	return &CartClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: opts.timeout(5 * time.Second),
		},
		breaker: newBreaker("cart-service", opts),
		metrics: opts.Metrics,
	}
}

type cartResponse struct {
	UserID string            `json:"userId"`
	Items  []models.LineItem `json:"items"`
}

// GetCart fetches the current cart. A missing cart reads as empty.
func (c *CartClient) GetCart(ctx context.Context, credential string) (*models.CartSnapshot, error) {
	start := time.Now()
	snap, err := guarded(c.breaker, func() (*models.CartSnapshot, error) {
		return c.getCart(ctx, credential)
	})
	c.metrics.ObserveCall("cart", "get", err == nil, time.Since(start))
	return snap, err
}

func (c *CartClient) getCart(ctx context.Context, credential string) (*models.CartSnapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/cart", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cart service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &models.CartSnapshot{Items: []models.LineItem{}}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("cart service", resp)
	}

	var body cartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode cart response: %w", err)
	}
	return &models.CartSnapshot{UserID: body.UserID, Items: body.Items}, nil
}

// ClearCart empties the caller's cart.
func (c *CartClient) ClearCart(ctx context.Context, credential string) error {
	start := time.Now()
	_, err := guarded(c.breaker, func() (struct{}, error) {
		return struct{}{}, c.clearCart(ctx, credential)
	})
	c.metrics.ObserveCall("cart", "clear", err == nil, time.Since(start))
	return err
}

func (c *CartClient) clearCart(ctx context.Context, credential string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/cart/clear", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cart service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return statusError("cart service", resp)
	}
	return nil
}

// statusError reads the {"error": "..."} body a collaborator sent along with
// a non-success status.
func statusError(service string, resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&body)
	msg := body.Error
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return fmt.Errorf("%s returned %d: %s: %w", service, resp.StatusCode, msg, errRejected)
	}
	return fmt.Errorf("%s returned %d: %s", service, resp.StatusCode, msg)
}
