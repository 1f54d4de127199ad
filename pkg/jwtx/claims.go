package jwtx

import (
	"strconv"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/idx"
	"github.com/golang-jwt/jwt/v5"
)

// Default token lifetimes.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// Token types carried in the "typ" claim. An access token is never accepted
// where a refresh token is expected and vice versa.
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// Claims are the token claims issued by the ops console API.
type Claims struct {
	jwt.RegisteredClaims

	// Type is TypeAccess or TypeRefresh.
	Type string `json:"typ"`

	Username string `json:"username,omitempty"`
	Role     string `json:"role,omitempty"`
}

// NewClaims builds claims for userID valid for ttl from now.
func NewClaims(
	typ string,
	userID int64,
	username, role string,
	ttl time.Duration,
	issuer string,
	now time.Time,
) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Type:     typ,
		Username: username,
		Role:     role,
	}
}

// NewJTI returns a unique identifier for the "jti" claim. Two tokens minted
// in the same second for the same user still differ.
func NewJTI() string {
	return idx.New().String()
}

// UserID parses the subject as a numeric user id.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil {
		return 0, ErrInvalidClaim
	}
	return id, nil
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateType checks the "typ" claim.
func (c *Claims) ValidateType(expected string) error {
	if expected != "" && c.Type != expected {
		return ErrWrongType
	}
	return nil
}

// ValidateExpiryWithLeeway checks exp and nbf with a small grace period for
// clock skew.
func (c *Claims) ValidateExpiryWithLeeway(now time.Time, leeway time.Duration) error {
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Add(leeway)) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Add(-leeway)) {
		return ErrNotYetValid
	}
	return nil
}
