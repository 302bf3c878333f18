package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// JWTVerifier validates HMAC-signed access tokens locally instead of asking
// the identity service. Issuing tokens is somebody else's job.
type JWTVerifier struct {
	secret []byte
}

func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("JWT secret not configured")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

// Verify implements Verifier.
func (v *JWTVerifier) Verify(_ context.Context, token string) (string, error) {
	claims, err := ParseAndValidateToken(token, v.secret, "")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRejected, err)
	}
	for _, key := range []string{"userId", "user_id", "sub"} {
		if id, ok := claims[key].(string); ok && id != "" {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: token carries no user id", ErrRejected)
}

// ParseAndValidateToken parses a JWT token string and returns its claims.
// If expectedType is non-empty, the claim "typ" must match it.
func ParseAndValidateToken(tokenStr string, secret []byte, expectedType string) (jwt.MapClaims, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("JWT secret not configured")
	}

	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})

	if err != nil || token == nil || !token.Valid {
		return nil, fmt.Errorf("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	if expectedType != "" {
		if typ, ok := claims["typ"].(string); !ok || typ != expectedType {
			return nil, fmt.Errorf("invalid token type")
		}
	}
	return claims, nil
}
