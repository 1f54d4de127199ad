package jwtx

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHS256_RoundTrip(t *testing.T) {
	secret := []byte(strings.Repeat("a", 32))
	signer, err := NewSignerHS256(secret)
	require.NoError(t, err)
	require.Equal(t, "HS256", signer.Alg())

	now := time.Now()
	tok, err := signer.Sign(NewClaims(TypeAccess, 7, "admin", "admin", time.Minute, "iss", now))
	require.NoError(t, err)

	v := NewVerifierHS256(secret, VerifyOptions{Issuer: "iss", Type: TypeAccess})
	claims, err := v.Verify(tok)
	require.NoError(t, err)
	require.Equal(t, "admin", claims.Username)
	id, err := claims.UserID()
	require.NoError(t, err)
	require.Equal(t, int64(7), id)
}

func TestHS256_Rejections(t *testing.T) {
	secret := []byte(strings.Repeat("a", 32))
	signer, err := NewSignerHS256(secret)
	require.NoError(t, err)
	now := time.Now()

	access, err := signer.Sign(NewClaims(TypeAccess, 1, "u", "user", time.Minute, "iss", now))
	require.NoError(t, err)
	expired, err := signer.Sign(NewClaims(TypeAccess, 1, "u", "user", time.Minute, "iss", now.Add(-time.Hour)))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		v     *HS256Verifier
		want  error
	}{
		{"malformed", "not-a-jwt", NewVerifierHS256(secret, VerifyOptions{}), ErrMalformed},
		{"wrong secret", access, NewVerifierHS256([]byte(strings.Repeat("b", 32)), VerifyOptions{}), ErrInvalidSig},
		{"wrong issuer", access, NewVerifierHS256(secret, VerifyOptions{Issuer: "other"}), ErrIssuer},
		{"wrong type", access, NewVerifierHS256(secret, VerifyOptions{Type: TypeRefresh}), ErrWrongType},
		{"expired", expired, NewVerifierHS256(secret, VerifyOptions{}), ErrExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.v.Verify(tt.token)
			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestNewSignerHS256_ShortSecret(t *testing.T) {
	_, err := NewSignerHS256([]byte("short"))
	require.Error(t, err)
}
