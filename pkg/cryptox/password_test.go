package cryptox

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
	}{
		{"simple password", "admin123"},
		{"complex password", "P@ssw0rd!#$%^&*()"},
		{"unicode password", "пароль🔒密码"},
		{"empty password", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hash, err := HashPassword(tt.password)
			require.NoError(t, err)
			require.NotEqual(t, tt.password, hash)

			require.NoError(t, VerifyPassword(tt.password, hash))
			require.ErrorIs(t, VerifyPassword(tt.password+"x", hash), ErrPasswordMismatch)
		})
	}
}

func TestVerifyPasswordRejectsGarbageHash(t *testing.T) {
	err := VerifyPassword("admin123", "not-a-bcrypt-hash")
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrPasswordMismatch)
}
