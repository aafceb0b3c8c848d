package auth

import (
	"errors"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/golang-jwt/jwt/v5"
)

// Claims represents access token claims
type Claims struct {
	Role     string `json:"role"`
	TenantID string `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenSigner mints and verifies short-lived access tokens
type TokenSigner struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenSigner creates a signer from the configured signing key
func NewTokenSigner(secret []byte, ttl time.Duration) *TokenSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &TokenSigner{secret: secret, ttl: ttl}
}

// Mint generates an access token for a user
func (s *TokenSigner) Mint(user *db.User) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("access token secret is not configured")
	}

	now := time.Now()
	claims := &Claims{
		Role:     user.Role,
		TenantID: user.TenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify validates a token and returns its claims. All failures collapse to
// one generic error so callers cannot distinguish signature, expiry, and
// format problems.
func (s *TokenSigner) Verify(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, apperrors.Unauthenticated("invalid or expired token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, apperrors.Unauthenticated("invalid or expired token")
	}

	return claims, nil
}

// TTL returns the access token lifetime
func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}
