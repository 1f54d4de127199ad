package authclient

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/credstore"
	"github.com/aussiebroadwan/opsconsole/pkg/slogx"
)

// DefaultRefreshTimeout bounds the refresh call.
const DefaultRefreshTimeout = authsdk.DefaultTimeout

// waitGrace is added to the refresh timeout to get the default wait bound,
// so a waiter normally sees the refresh outcome rather than its own timer.
const waitGrace = time.Second

// Config wires a Controller.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8080/api.
	BaseURL string

	// HTTPClient sends every request. Defaults to a client with
	// authsdk.DefaultTimeout and a logging slogx.Transport. The refresh call
	// uses a copy without the client timeout and is bounded by
	// RefreshTimeout alone.
	HTTPClient *http.Client

	// Store persists the session. Defaults to process memory.
	Store *credstore.Store

	Logger   *slog.Logger
	Metrics  *Metrics
	Notifier Notifier

	RefreshTimeout time.Duration
	WaitTimeout    time.Duration
}

// Controller is the entry point callers use: login, logout and the session
// queries, plus the Client for everything else.
type Controller struct {
	// mu orders session replacement against the store, so a credential
	// written after a rotation can never land on top of a logout.
	mu sync.Mutex

	session  *Session
	store    *credstore.Store
	sdk      *authsdk.SDKClient
	client   *Client
	coord    *Coordinator
	notifier Notifier
	metrics  *Metrics
	logger   *slog.Logger
}

// New builds the session, coordinator, client and controller around one
// shared Session.
func New(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   authsdk.DefaultTimeout,
			Transport: slogx.NewTransport(nil, logger),
		}
	}
	store := cfg.Store
	if store == nil {
		store = credstore.New(credstore.NewMemoryBackend(), logger)
	}
	refreshTimeout := cfg.RefreshTimeout
	if refreshTimeout <= 0 {
		refreshTimeout = DefaultRefreshTimeout
	}
	waitTimeout := cfg.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = refreshTimeout + waitGrace
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	sdk := authsdk.NewSDKClient(baseURL)
	sdk.HTTPClient = httpClient

	refreshHTTP := *httpClient
	refreshHTTP.Timeout = 0
	refresher := authsdk.NewSDKClient(baseURL)
	refresher.HTTPClient = &refreshHTTP

	session := NewSession()
	ctrl := &Controller{
		session:  session,
		store:    store,
		sdk:      sdk,
		notifier: notifier,
		metrics:  cfg.Metrics,
		logger:   logger,
	}

	coord := &Coordinator{
		session:        session,
		refresher:      refresher,
		onRotated:      ctrl.persist,
		onTerminal:     ctrl.expire,
		refreshTimeout: refreshTimeout,
		waitTimeout:    waitTimeout,
		metrics:        cfg.Metrics,
		logger:         logger,
	}
	client := &Client{
		baseURL: baseURL,
		http:    httpClient,
		session: session,
		coord:   coord,
		logger:  logger,
	}
	coord.replay = client.replay

	ctrl.coord = coord
	ctrl.client = client
	return ctrl
}

// Client returns the authenticated request pipeline.
func (c *Controller) Client() *Client { return c.client }

// Coordinator returns the refresh coordinator shared with the Client.
func (c *Controller) Coordinator() *Coordinator { return c.coord }

// Login exchanges username and password for a session. On failure the
// current session, if any, is left untouched.
func (c *Controller) Login(ctx context.Context, username, password string) (*authsdk.Identity, error) {
	cred, identity, err := c.sdk.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	gen := c.session.Set(cred, identity)
	c.save(ctx, c.session.Snapshot())
	c.mu.Unlock()

	// Requests still waiting on a refresh belong to the previous session.
	c.coord.Cancel(authsdk.ErrLoggedOut)

	c.logger.Info("login", "user", identity.Username, "role", identity.Role, "generation", gen)
	return copyIdentity(identity), nil
}

// Logout ends the session. It is idempotent. Local state goes first; the
// server is told afterwards on a best-effort basis.
func (c *Controller) Logout(ctx context.Context) {
	c.mu.Lock()
	prev := c.session.Clear()
	c.clearStore(ctx)
	c.mu.Unlock()
	c.coord.Cancel(authsdk.ErrLoggedOut)

	if !prev.IsAuthenticated() {
		return
	}

	c.metrics.recordLogout(ReasonExplicit)
	c.logger.Info("logout", "user", usernameOf(prev.Identity))

	if err := c.sdk.Logout(ctx, prev.Credential.AccessToken); err != nil {
		c.logger.Debug("server_logout_failed", "error", err)
	}
}

// Restore loads the persisted session, if any. It reports whether a
// session was found.
func (c *Controller) Restore(ctx context.Context) bool {
	rec := c.store.Load(ctx)
	if rec.IsEmpty() {
		return false
	}
	c.mu.Lock()
	c.session.Set(rec.Credential, rec.Identity)
	c.mu.Unlock()
	c.coord.Cancel(authsdk.ErrLoggedOut)

	c.logger.Debug("session_restored", "user", usernameOf(rec.Identity))
	return true
}

// RefreshProfile re-reads the identity from the server and replaces the
// stored one wholesale. It goes through the Client and may trigger a refresh.
func (c *Controller) RefreshProfile(ctx context.Context) (*authsdk.Identity, error) {
	var identity authsdk.Identity
	if err := c.client.Do(ctx, http.MethodGet, authsdk.PathProfile, nil, &identity); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	snap := c.session.Snapshot()
	if !c.session.ReplaceIdentity(snap.Generation, &identity) {
		return nil, authsdk.ErrLoggedOut
	}
	snap.Identity = &identity
	c.save(ctx, snap)

	return copyIdentity(&identity), nil
}

func (c *Controller) IsAuthenticated() bool { return c.session.IsAuthenticated() }

// HasRole reports whether the current identity has role.
func (c *Controller) HasRole(role authsdk.Role) bool {
	snap := c.session.Snapshot()
	return snap.IsAuthenticated() && snap.Identity != nil && snap.Identity.Role == role
}

func (c *Controller) IsAdmin() bool { return c.HasRole(authsdk.RoleAdmin) }

// CurrentIdentity returns a copy of the identity, or nil when logged out.
func (c *Controller) CurrentIdentity() *authsdk.Identity {
	snap := c.session.Snapshot()
	if !snap.IsAuthenticated() {
		return nil
	}
	return snap.Identity
}

// Credential returns the current credential.
func (c *Controller) Credential() authsdk.Credential {
	return c.session.Snapshot().Credential
}

// Close releases the credential store.
func (c *Controller) Close() error { return c.store.Close() }

// persist is the Coordinator's rotation hook. snap is written through only
// while it is still the live session; a logout or new login that got in
// first wins.
func (c *Controller) persist(ctx context.Context, snap Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.Generation() != snap.Generation {
		c.logger.Debug("credential_persist_skipped", "generation", snap.Generation)
		return
	}
	c.save(ctx, snap)
}

// save must be called with mu held. Failures leave the session memory-only.
func (c *Controller) save(ctx context.Context, snap Snapshot) {
	err := c.store.Save(ctx, credstore.Record{
		Credential: snap.Credential,
		Identity:   snap.Identity,
	})
	if err != nil {
		c.logger.Warn("credential_persist_failed", "error", err)
	}
}

func (c *Controller) clearStore(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.logger.Warn("credential_clear_failed", "error", err)
	}
}

// expire is the Coordinator's terminal hook. Only the first call for a
// given generation logs out and notifies.
func (c *Controller) expire(ctx context.Context, gen uint64, reason string, cause error) {
	c.mu.Lock()
	prev, ok := c.session.ClearIf(gen)
	if !ok || !prev.IsAuthenticated() {
		c.mu.Unlock()
		return
	}
	c.clearStore(ctx)
	c.mu.Unlock()

	c.metrics.recordLogout(reason)
	c.logger.Warn("session_ended", "user", usernameOf(prev.Identity), "reason", reason, "error", cause)
	c.notifier.SessionExpired(ctx, cause)
}

func usernameOf(identity *authsdk.Identity) string {
	if identity == nil {
		return ""
	}
	return identity.Username
}
