package httpx_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
	"github.com/stretchr/testify/require"
)

type staticVerifier map[string]httpx.Principal

func (v staticVerifier) VerifyAccess(raw string) (httpx.Principal, error) {
	p, ok := v[raw]
	if !ok {
		return httpx.Principal{}, errors.New("unknown token")
	}
	return p, nil
}

func TestAuthnAndRoleMiddleware(t *testing.T) {
	t.Parallel()

	verifier := staticVerifier{
		"admin-token": {UserID: 1, Username: "admin", Role: "admin"},
		"user-token":  {UserID: 2, Username: "alice", Role: "user"},
	}

	h := httpx.Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := httpx.PrincipalFromContext(r.Context())
		require.True(t, ok)
		httpx.WriteEnvelope(w, http.StatusOK, "ok", map[string]string{"username": p.Username})
	}),
		httpx.AuthnMiddleware(verifier),
		httpx.RequireRole("admin"),
	)

	for _, tc := range []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"wrong role", "Bearer user-token", http.StatusForbidden},
		{"admin", "Bearer admin-token", http.StatusOK},
	} {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tc.want, rec.Code)
			if tc.want == http.StatusUnauthorized {
				require.Contains(t, rec.Header().Get("WWW-Authenticate"), "invalid_token")
			}
		})
	}
}
