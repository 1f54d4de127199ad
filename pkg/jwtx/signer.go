package jwtx

import (
	"errors"

	"github.com/golang-jwt/jwt/v5"
)

// minSecretLen is the shortest HMAC secret accepted (256 bits).
const minSecretLen = 32

// Signer is our interface for anything that can sign JWTs.
type Signer interface {
	Alg() string
	Sign(Claims) (string, error)
}

// HS256Signer signs tokens with a shared HMAC-SHA256 secret.
type HS256Signer struct {
	secret []byte
}

// NewSignerHS256 creates an HS256 signer. The secret must be at least 32
// bytes.
func NewSignerHS256(secret []byte) (*HS256Signer, error) {
	if len(secret) < minSecretLen {
		return nil, errors.New("jwtx: HS256 secret must be at least 32 bytes")
	}
	return &HS256Signer{secret: secret}, nil
}

func (s *HS256Signer) Alg() string { return jwt.SigningMethodHS256.Alg() }

func (s *HS256Signer) Sign(c Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.secret)
}
