package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	apperrors "github.com/Williethedeveloper/e-commerce-microservices/services/common/errors"
	"github.com/Williethedeveloper/e-commerce-microservices/services/common/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	// UserContextKey holds the verified principal id on the gin context.
	UserContextKey = "userID"
	// CredentialContextKey holds the raw bearer token for forwarding.
	CredentialContextKey = "credential"
)

var errMissingCredential = errors.New("missing or malformed bearer credential")

type principalKey struct{}
type credentialKey struct{}

// Gate is the single authentication check in front of every protected route.
// Any failure ends the request with 401 {"error":"Unauthorized"} before a
// handler runs.
type Gate struct {
	verifier Verifier
	timeout  time.Duration
}

func NewGate(verifier Verifier, timeout time.Duration) *Gate {
	return &Gate{verifier: verifier, timeout: timeout}
}

// Authenticate resolves the principal behind an Authorization header value.
func (g *Gate) Authenticate(ctx context.Context, header string) (string, string, error) {
	token, ok := BearerToken(header)
	if !ok {
		return "", "", apperrors.Authentication(errMissingCredential)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	principal, err := g.verifier.Verify(ctx, token)
	if err != nil {
		return "", "", apperrors.Authentication(err)
	}
	if principal == "" {
		return "", "", apperrors.Authentication(ErrRejected)
	}
	return principal, token, nil
}

// Middleware runs Authenticate and attaches the principal and credential to
// both the gin context and the request context.
func (g *Gate) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		principal, token, err := g.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			appErr := apperrors.From(err)
			logger.Warn(c.Request.Context(), "authentication failed",
				zap.String("path", c.Request.URL.Path),
				zap.NamedError("reason", appErr.Err),
			)
			apperrors.Abort(c, appErr)
			return
		}

		c.Set(UserContextKey, principal)
		c.Set(CredentialContextKey, token)
		c.Request = c.Request.WithContext(WithCredential(WithPrincipal(c.Request.Context(), principal), token))
		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", false
	}
	return token, true
}

func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

func PrincipalFrom(ctx context.Context) (string, bool) {
	p, ok := ctx.Value(principalKey{}).(string)
	return p, ok && p != ""
}

func WithCredential(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, credentialKey{}, token)
}

func CredentialFrom(ctx context.Context) (string, bool) {
	t, ok := ctx.Value(credentialKey{}).(string)
	return t, ok && t != ""
}

// GetUserID returns the principal the gate attached to c.
func GetUserID(c *gin.Context) (string, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("user ID not found in context")
}
