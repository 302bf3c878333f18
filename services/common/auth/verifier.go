package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ErrRejected means the verifier looked at the credential and refused it.
var ErrRejected = errors.New("credential rejected")

// Verifier turns a bearer credential into a principal id.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// VerifierFunc adapts a plain function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (string, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (string, error) {
	return f(ctx, token)
}

// HTTPVerifier asks the identity service whether a token is good:
// GET {baseURL}/verify with the token as a bearer credential.
type HTTPVerifier struct {
	baseURL    string
	httpClient *http.Client
}

func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

type verifyResponse struct {
	UserID string `json:"userId"`
}

func (v *HTTPVerifier) Verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/verify", nil)
	if err != nil {
		return "", fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: identity service returned %d", ErrRejected, resp.StatusCode)
	}

	var body verifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode verify response: %w", err)
	}
	if body.UserID == "" {
		return "", fmt.Errorf("%w: identity service returned no user id", ErrRejected)
	}
	return body.UserID, nil
}
