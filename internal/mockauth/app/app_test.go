package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/authclient"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
	"github.com/aussiebroadwan/opsconsole/pkg/slogx"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func testConfig() Config {
	return Config{
		Issuer:               "mockauth-test",
		Secret:               strings.Repeat("s", 32),
		AccessTTL:            time.Hour,
		RefreshTTL:           24 * time.Hour,
		AdminPassword:        "admin123",
		UserPassword:         "user123",
		Servers:              5,
		Env:                  "test",
		ShutdownGracePeriod:  time.Second,
		HousekeepingInterval: time.Minute,
	}
}

func newTestServer(t *testing.T) (*Application, string) {
	t.Helper()
	app, err := New(testConfig(),
		WithLogger(slogx.Discard()),
		WithLoginLimit(httpx.RateLimitConfig{RequestsPerWindow: 1000, Window: time.Minute, Burst: 1000}),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)
	return app, srv.URL
}

func newController(t *testing.T, base string) *authclient.Controller {
	t.Helper()
	ctrl := authclient.New(authclient.Config{
		BaseURL:        base + "/api",
		Logger:         slogx.Discard(),
		RefreshTimeout: 2 * time.Second,
	})
	t.Cleanup(func() { _ = ctrl.Close() })
	return ctrl
}

func scrape(t *testing.T, base string) string {
	t.Helper()
	resp, err := http.Get(base + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"MOCKAUTH_PORT", "MOCKAUTH_SECRET", "MOCKAUTH_ACCESS_TTL", "MOCKAUTH_ADMIN_PASSWORD"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	require.Equal(t, 8080, cfg.Port)
	require.Empty(t, cfg.Secret)
	require.Equal(t, 15*time.Minute, cfg.AccessTTL)
	require.Equal(t, "admin123", cfg.AdminPassword)

	t.Setenv("MOCKAUTH_PORT", "9090")
	t.Setenv("MOCKAUTH_ACCESS_TTL", "30s")
	cfg = LoadConfig()
	require.Equal(t, 9090, cfg.Port)
	require.Equal(t, 30*time.Second, cfg.AccessTTL)
}

func TestNew_GeneratesSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = ""
	_, err := New(cfg, WithLogger(slogx.Discard()))
	require.NoError(t, err)
}

func TestNew_RejectsShortSecret(t *testing.T) {
	cfg := testConfig()
	cfg.Secret = "short"
	_, err := New(cfg, WithLogger(slogx.Discard()))
	require.Error(t, err)
}

func TestClient_LoginAndFetch(t *testing.T) {
	_, base := newTestServer(t)
	ctrl := newController(t, base)
	ctx := context.Background()

	_, err := ctrl.Login(ctx, "admin", "nope")
	require.ErrorIs(t, err, authsdk.ErrCredentialsInvalid)
	require.False(t, ctrl.IsAuthenticated())

	identity, err := ctrl.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	require.Equal(t, authsdk.RoleAdmin, identity.Role)
	require.True(t, ctrl.IsAdmin())
	require.NotNil(t, ctrl.Credential().ExpiresAt, "JWT expiry hint should be decoded")

	var dash authsdk.DashboardData
	require.NoError(t, ctrl.Client().Do(ctx, http.MethodGet, authsdk.PathDashboard, nil, &dash))
	require.Equal(t, 5, dash.Stats.TotalServers)
	require.Equal(t, 4, dash.Stats.OnlineServers)

	var users []authsdk.Identity
	require.NoError(t, ctrl.Client().Do(ctx, http.MethodGet, authsdk.PathUsers, nil, &users))
	require.Len(t, users, 2)
}

// Every access token is revoked server side while many requests are in
// flight; exactly one refresh must reach the server. A second refresh with
// the rotated token would be treated as reuse and end the session.
func TestClient_ConcurrentRefreshAgainstServer(t *testing.T) {
	app, base := newTestServer(t)
	ctrl := newController(t, base)
	ctx := context.Background()

	_, err := ctrl.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	before := ctrl.Credential()

	require.Equal(t, 1, app.Tokens().ExpireAccessTokens())

	g, gctx := errgroup.WithContext(ctx)
	for range 16 {
		g.Go(func() error {
			var dash authsdk.DashboardData
			return ctrl.Client().Do(gctx, http.MethodGet, authsdk.PathDashboard, nil, &dash)
		})
	}
	require.NoError(t, g.Wait())

	require.True(t, ctrl.IsAuthenticated())
	after := ctrl.Credential()
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.NotEqual(t, before.RefreshToken, after.RefreshToken)

	metrics := scrape(t, base)
	require.Contains(t, metrics, `mockauth_refreshes_total{result="ok"} 1`)
	require.NotContains(t, metrics, `result="reused"`)
}

func TestClient_LogoutRevokesServerSide(t *testing.T) {
	_, base := newTestServer(t)
	ctrl := newController(t, base)
	ctx := context.Background()

	_, err := ctrl.Login(ctx, "user", "user123")
	require.NoError(t, err)
	old := ctrl.Credential()

	ctrl.Logout(ctx)
	require.False(t, ctrl.IsAuthenticated())

	sdk := authsdk.NewSDKClient(base + "/api")
	_, err = sdk.Profile(ctx, old.AccessToken)
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	_, err = sdk.Refresh(ctx, old.RefreshToken)
	require.ErrorIs(t, err, authsdk.ErrRefreshRejected)

	require.Contains(t, scrape(t, base), "mockauth_logouts_total 1")
}

func TestClient_ForbiddenIsNotAnAuthFailure(t *testing.T) {
	_, base := newTestServer(t)
	ctrl := newController(t, base)
	ctx := context.Background()

	_, err := ctrl.Login(ctx, "user", "user123")
	require.NoError(t, err)

	err = ctrl.Client().Do(ctx, http.MethodGet, authsdk.PathUsers, nil, nil)
	var apiErr *authsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	require.True(t, ctrl.IsAuthenticated())
}

func TestClient_RefreshProfile(t *testing.T) {
	app, base := newTestServer(t)
	ctrl := newController(t, base)
	ctx := context.Background()

	_, err := ctrl.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	app.Tokens().ExpireAccessTokens()

	identity, err := ctrl.RefreshProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, "admin@example.com", identity.Email)
}

func TestLoginRateLimit(t *testing.T) {
	app, err := New(testConfig(),
		WithLogger(slogx.Discard()),
		WithLoginLimit(httpx.RateLimitConfig{RequestsPerWindow: 2, Window: time.Minute, Burst: 2}),
	)
	require.NoError(t, err)
	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	login := func() int {
		resp, err := http.Post(srv.URL+"/api/auth/login", "application/json",
			strings.NewReader(`{"username":"admin","password":"wrong"}`))
		require.NoError(t, err)
		authsdk.DrainAndClose(resp)
		return resp.StatusCode
	}

	require.Equal(t, http.StatusUnauthorized, login())
	require.Equal(t, http.StatusUnauthorized, login())
	require.Equal(t, http.StatusTooManyRequests, login())
}

func TestShutdownStopsHousekeeping(t *testing.T) {
	app, err := New(testConfig(), WithLogger(slogx.Discard()))
	require.NoError(t, err)

	app.housekeepingService.Start()
	require.NoError(t, app.Shutdown())
}
