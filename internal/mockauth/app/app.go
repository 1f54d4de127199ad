package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/aussiebroadwan/opsconsole/internal/mockauth/http"
	"github.com/aussiebroadwan/opsconsole/internal/mockauth/service"
	"github.com/aussiebroadwan/opsconsole/pkg/authsdk"
	"github.com/aussiebroadwan/opsconsole/pkg/cryptox"
	"github.com/aussiebroadwan/opsconsole/pkg/httpx"
	"github.com/aussiebroadwan/opsconsole/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// Application is the mock API server with all of its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	registry *prometheus.Registry
	metrics  *service.Metrics

	userService         *service.UserService
	tokenService        *service.TokenService
	housekeepingService *service.HousekeepingService

	server *http.Server
	router *httpapi.Router

	loginLimit httpx.RateLimitConfig
}

// Option customises an Application before its services are built.
type Option func(*Application)

// WithLogger replaces the logger built from the config.
func WithLogger(l *slog.Logger) Option {
	return func(app *Application) { app.logger = l }
}

// WithLoginLimit overrides the per-IP login throttle.
func WithLoginLimit(limit httpx.RateLimitConfig) Option {
	return func(app *Application) { app.loginLimit = limit }
}

// New creates an Application with seeded users and a ready router.
func New(cfg Config, opts ...Option) (*Application, error) {
	app := &Application{cfg: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "mockauth",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}

	app.initMetrics()
	if err := app.initServices(); err != nil {
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler exposes the router, mainly for httptest.
func (app *Application) Handler() http.Handler { return app.router }

// Tokens exposes the token service for tests that need to force expiry.
func (app *Application) Tokens() *service.TokenService { return app.tokenService }

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("mockauth starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		app.housekeepingService.Stop()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down mockauth...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	var err error
	if err = app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if cerr := app.server.Close(); cerr != nil {
			app.logger.Error("error closing server", "error", cerr)
		}
	}

	app.housekeepingService.Stop()

	app.logger.Info("mockauth stopped")
	return err
}

func (app *Application) initMetrics() {
	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = service.NewMetrics(app.registry)
}

func (app *Application) initServices() error {
	secret := app.cfg.Secret
	if secret == "" {
		generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return fmt.Errorf("failed to generate signing secret: %w", err)
		}
		secret = generated
		app.logger.Warn("MOCKAUTH_SECRET not set, using a random secret; tokens will not survive a restart")
	}

	app.userService = service.NewUserService()
	seed := []struct {
		username, email, password string
		role                      authsdk.Role
	}{
		{"admin", "admin@example.com", app.cfg.AdminPassword, authsdk.RoleAdmin},
		{"user", "user@example.com", app.cfg.UserPassword, authsdk.RoleUser},
	}
	for _, s := range seed {
		if _, err := app.userService.Add(s.username, s.email, s.password, s.role); err != nil {
			return fmt.Errorf("failed to seed user %q: %w", s.username, err)
		}
	}

	tokens, err := service.NewTokenService([]byte(secret), app.cfg.Issuer, app.cfg.AccessTTL, app.cfg.RefreshTTL, app.userService)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}
	tokens.Metrics = app.metrics
	app.tokenService = tokens

	app.housekeepingService = service.NewHousekeepingService(
		app.tokenService,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
	return nil
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.registry, app.logger)
	router.UserService = app.userService
	router.TokenService = app.tokenService
	router.Metrics = app.metrics
	if app.cfg.Servers > 0 {
		router.Servers = app.cfg.Servers
	}
	if app.loginLimit.RequestsPerWindow > 0 {
		router.LoginLimit = app.loginLimit
	}
	router.ApplyRoutes()

	app.router = router

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
