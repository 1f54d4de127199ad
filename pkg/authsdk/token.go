package authsdk

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewCredential builds a Credential and fills the expiry hint from the access
// token when it is a JWT with an exp claim. The signature is not checked:
// the client cannot verify it and only uses the hint for display and logs.
func NewCredential(accessToken, refreshToken string) Credential {
	return Credential{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresAt:    expiryHint(accessToken),
	}
}

func expiryHint(token string) *time.Time {
	if token == "" {
		return nil
	}

	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt == nil {
		return nil
	}

	exp := claims.ExpiresAt.Time.UTC()
	return &exp
}
