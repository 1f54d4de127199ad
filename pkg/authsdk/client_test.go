package authsdk_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newAPI(t *testing.T, h http.HandlerFunc) *authsdk.SDKClient {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return authsdk.NewSDKClient(srv.URL + "/")
}

func TestLogin(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		client := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, authsdk.PathLogin, r.URL.Path)
			require.Empty(t, r.Header.Get("Authorization"))

			var req authsdk.LoginRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "admin", req.Username)
			require.Equal(t, "admin123", req.Password)

			httpx.WriteEnvelope(w, http.StatusOK, "login ok", authsdk.LoginResponse{
				AccessToken:  "A1",
				RefreshToken: "R1",
				User:         authsdk.Identity{ID: 1, Username: "admin", Role: authsdk.RoleAdmin, Status: 1},
			})
		})

		cred, identity, err := client.Login(t.Context(), "admin", "admin123")
		require.NoError(t, err)
		require.Equal(t, "A1", cred.AccessToken)
		require.Equal(t, "R1", cred.RefreshToken)
		require.Nil(t, cred.ExpiresAt, "opaque tokens carry no expiry hint")
		require.True(t, identity.IsAdmin())
	})

	t.Run("bad credentials", func(t *testing.T) {
		client := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteEnvelope(w, http.StatusUnauthorized, "invalid username or password", nil)
		})

		_, _, err := client.Login(t.Context(), "admin", "wrong")
		require.ErrorIs(t, err, authsdk.ErrCredentialsInvalid)

		var apiErr *authsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, "invalid username or password", apiErr.Message)
	})

	t.Run("business error inside 200", func(t *testing.T) {
		client := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteJSON(w, http.StatusOK, map[string]any{"code": 403, "message": "account disabled"})
		})

		_, _, err := client.Login(t.Context(), "bob", "pw")
		require.Error(t, err)
		require.NotErrorIs(t, err, authsdk.ErrCredentialsInvalid)

		var apiErr *authsdk.APIError
		require.True(t, errors.As(err, &apiErr))
		require.Equal(t, 403, apiErr.Code)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	t.Run("rotates the pair", func(t *testing.T) {
		exp := time.Now().Add(time.Hour).Truncate(time.Second).UTC()
		access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(exp),
		}).SignedString([]byte("test-secret"))
		require.NoError(t, err)

		client := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, authsdk.PathRefresh, r.URL.Path)

			var req authsdk.RefreshRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.Equal(t, "R1", req.RefreshToken)

			httpx.WriteEnvelope(w, http.StatusOK, "ok", authsdk.RefreshResponse{
				AccessToken:  access,
				RefreshToken: "R2",
			})
		})

		cred, err := client.Refresh(t.Context(), "R1")
		require.NoError(t, err)
		require.Equal(t, access, cred.AccessToken)
		require.Equal(t, "R2", cred.RefreshToken)
		require.NotNil(t, cred.ExpiresAt)
		require.True(t, exp.Equal(*cred.ExpiresAt))
		require.False(t, cred.Expired(time.Now()))
	})

	t.Run("401 is a rejection", func(t *testing.T) {
		client := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
			httpx.WriteEnvelope(w, http.StatusUnauthorized, "refresh token expired", nil)
		})

		_, err := client.Refresh(t.Context(), "R1")
		require.ErrorIs(t, err, authsdk.ErrRefreshRejected)
		require.True(t, authsdk.IsTerminal(err))
	})

	t.Run("5xx is not a rejection", func(t *testing.T) {
		client := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		})

		_, err := client.Refresh(t.Context(), "R1")
		require.ErrorIs(t, err, authsdk.ErrTransport)
		require.NotErrorIs(t, err, authsdk.ErrRefreshRejected)
	})

	t.Run("missing refresh token", func(t *testing.T) {
		client := authsdk.NewSDKClient("http://127.0.0.1:1")

		_, err := client.Refresh(t.Context(), "")
		require.ErrorIs(t, err, authsdk.ErrRefreshRejected)
	})
}

func TestTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	client := authsdk.NewSDKClient(srv.URL)
	_, _, err := client.Login(t.Context(), "admin", "admin123")
	require.ErrorIs(t, err, authsdk.ErrTransport)
}

func TestProfileAndLogout(t *testing.T) {
	t.Parallel()

	client := newAPI(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer A1", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case authsdk.PathProfile:
			httpx.WriteEnvelope(w, http.StatusOK, "ok", authsdk.Identity{ID: 7, Username: "alice", Role: authsdk.RoleUser})
		case authsdk.PathLogout:
			httpx.WriteEnvelope(w, http.StatusOK, "logged out", nil)
		default:
			http.NotFound(w, r)
		}
	})

	identity, err := client.Profile(t.Context(), "A1")
	require.NoError(t, err)
	require.Equal(t, int64(7), identity.ID)
	require.False(t, identity.IsAdmin())

	require.NoError(t, client.Logout(t.Context(), "A1"))
}

func TestDecodeEnvelopeFallsBackToStatusText(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	rec.WriteHeader(http.StatusServiceUnavailable)
	_, _ = rec.WriteString("<html>upstream down</html>")

	err := authsdk.DecodeEnvelope(rec.Result(), nil)

	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	require.Contains(t, apiErr.Message, "Service Unavailable")
}
