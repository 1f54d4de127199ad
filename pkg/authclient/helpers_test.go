package authclient_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/authclient"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/credstore"
	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
	"github.com/aussiebroadwan/opsconsole/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

// fakeAPI is an in-memory auth service. Logins hand out A1-<user>/R1-<user>
// and refreshes hand out A2/R2. /things only accepts the token in valid.
type fakeAPI struct {
	mu            sync.Mutex
	valid         string
	seen          map[string]int // access token -> /things hits
	refreshStatus int
	gate          chan struct{}

	refreshCalls atomic.Int32
	logoutCalls  atomic.Int32
}

func newFakeAPI(t *testing.T) (*fakeAPI, *httptest.Server) {
	t.Helper()
	api := &fakeAPI{
		seen:          map[string]int{},
		refreshStatus: http.StatusOK,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", api.login)
	mux.HandleFunc("POST /auth/refresh", api.refresh)
	mux.HandleFunc("POST /auth/logout", api.logout)
	mux.HandleFunc("GET /auth/profile", api.profile)
	mux.HandleFunc("GET /things/{id}", api.thing)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return api, srv
}

// Hold makes /auth/refresh block until the returned func is called.
func (a *fakeAPI) Hold(t *testing.T) (release func()) {
	t.Helper()
	gate := make(chan struct{})
	var once sync.Once
	release = func() { once.Do(func() { close(gate) }) }
	t.Cleanup(release)

	a.mu.Lock()
	a.gate = gate
	a.mu.Unlock()
	return release
}

func (a *fakeAPI) SetValid(token string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.valid = token
}

func (a *fakeAPI) SetRefreshStatus(status int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshStatus = status
}

func (a *fakeAPI) Hits(token string) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.seen[token]
}

func (a *fakeAPI) login(w http.ResponseWriter, r *http.Request) {
	var req authsdk.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteEnvelope(w, http.StatusBadRequest, "bad request", nil)
		return
	}

	var identity authsdk.Identity
	switch {
	case req.Username == "admin" && req.Password == "admin123":
		identity = authsdk.Identity{ID: 1, Username: "admin", Role: authsdk.RoleAdmin, Status: 1}
	case req.Username == "operator" && req.Password == "operator123":
		identity = authsdk.Identity{ID: 2, Username: "operator", Role: authsdk.RoleUser, Status: 1}
	default:
		httpx.WriteEnvelope(w, http.StatusUnauthorized, "invalid username or password", nil)
		return
	}

	access := "A1-" + identity.Username
	a.SetValid(access)
	httpx.WriteEnvelope(w, http.StatusOK, "login ok", authsdk.LoginResponse{
		AccessToken:  access,
		RefreshToken: "R1-" + identity.Username,
		User:         identity,
	})
}

func (a *fakeAPI) refresh(w http.ResponseWriter, r *http.Request) {
	a.refreshCalls.Add(1)

	a.mu.Lock()
	gate := a.gate
	status := a.refreshStatus
	a.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	if status != http.StatusOK {
		httpx.WriteEnvelope(w, status, "refresh token expired", nil)
		return
	}

	a.SetValid("A2")
	httpx.WriteEnvelope(w, http.StatusOK, "ok", authsdk.RefreshResponse{
		AccessToken:  "A2",
		RefreshToken: "R2",
	})
}

func (a *fakeAPI) logout(w http.ResponseWriter, r *http.Request) {
	a.logoutCalls.Add(1)
	httpx.WriteEnvelope(w, http.StatusOK, "logged out", nil)
}

func (a *fakeAPI) profile(w http.ResponseWriter, r *http.Request) {
	if !a.authorized(r) {
		httpx.WriteEnvelope(w, http.StatusUnauthorized, "token expired", nil)
		return
	}
	httpx.WriteEnvelope(w, http.StatusOK, "ok", authsdk.Identity{
		ID: 1, Username: "admin", Email: "admin@example.com", Role: authsdk.RoleAdmin, Status: 1,
	})
}

func (a *fakeAPI) thing(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	a.seen[bearer(r)]++
	a.mu.Unlock()

	if !a.authorized(r) {
		httpx.WriteEnvelope(w, http.StatusUnauthorized, "token expired", nil)
		return
	}
	httpx.WriteEnvelope(w, http.StatusOK, "ok", map[string]string{"id": r.PathValue("id")})
}

func (a *fakeAPI) authorized(r *http.Request) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.valid != "" && bearer(r) == a.valid
}

func bearer(r *http.Request) string {
	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}

type harness struct {
	api     *fakeAPI
	ctrl    *authclient.Controller
	backend *credstore.MemoryBackend
	reg     *prometheus.Registry

	expired atomic.Int32
}

type harnessOption func(*authclient.Config)

func withWaitTimeout(d time.Duration) harnessOption {
	return func(c *authclient.Config) { c.WaitTimeout = d }
}

func withRefreshTimeout(d time.Duration) harnessOption {
	return func(c *authclient.Config) { c.RefreshTimeout = d }
}

func withHTTPClient(c *http.Client) harnessOption {
	return func(cfg *authclient.Config) { cfg.HTTPClient = c }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()

	api, srv := newFakeAPI(t)
	h := &harness{
		api:     api,
		backend: credstore.NewMemoryBackend(),
		reg:     prometheus.NewRegistry(),
	}

	cfg := authclient.Config{
		BaseURL: srv.URL,
		Store:   credstore.New(h.backend, slogx.Discard()),
		Logger:  slogx.Discard(),
		Metrics: authclient.NewMetrics(h.reg),
		Notifier: authclient.NotifierFunc(func(context.Context, error) {
			h.expired.Add(1)
		}),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	h.ctrl = authclient.New(cfg)
	t.Cleanup(func() { _ = h.ctrl.Close() })
	return h
}

// loginStale logs in as admin and then revokes the issued access token on
// the server, so the next call needs a refresh.
func (h *harness) loginStale(t *testing.T) {
	t.Helper()
	_, err := h.ctrl.Login(t.Context(), "admin", "admin123")
	require.NoError(t, err)
	h.api.SetValid("expired")
}

func (h *harness) get(ctx context.Context, id string) (map[string]string, error) {
	var out map[string]string
	err := h.ctrl.Client().Do(ctx, http.MethodGet, "/things/"+id, nil, &out)
	return out, err
}

// waitForWaiters blocks until n requests are queued behind the refresh.
func (h *harness) waitForWaiters(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.metric(t, "opsconsole_refresh_waiters") == float64(n)
	}, 2*time.Second, 5*time.Millisecond)
}

func (h *harness) metric(t *testing.T, name string, labels ...string) float64 {
	t.Helper()
	families, err := h.reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if !labelsMatch(m.GetLabel(), labels) {
				continue
			}
			if m.GetCounter() != nil {
				return m.GetCounter().GetValue()
			}
			return m.GetGauge().GetValue()
		}
	}
	return 0
}

// labelsMatch compares against name/value pairs.
func labelsMatch(got []*dto.LabelPair, want []string) bool {
	for i := 0; i+1 < len(want); i += 2 {
		found := false
		for _, lp := range got {
			if lp.GetName() == want[i] && lp.GetValue() == want[i+1] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
