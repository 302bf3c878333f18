package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var ErrProductNotFound = errors.New("product not found")

type Product struct {
	ID    string          `json:"id"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}

// Catalog looks products up by id.
type Catalog interface {
	GetProduct(ctx context.Context, productID string) (*Product, error)
}

// CatalogClient reads the product service over HTTP.
type CatalogClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCatalogClient(baseURL string, timeout time.Duration) *CatalogClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &CatalogClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *CatalogClient) GetProduct(ctx context.Context, productID string) (*Product, error) {
	endpoint := fmt.Sprintf("%s/products/%s", c.baseURL, url.PathEscape(productID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("product service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrProductNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("product service returned %d", resp.StatusCode)
	}

	var prod Product
	if err := json.NewDecoder(resp.Body).Decode(&prod); err != nil {
		return nil, fmt.Errorf("decode product: %w", err)
	}
	if prod.ID == "" {
		prod.ID = productID
	}
	return &prod, nil
}
