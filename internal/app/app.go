package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aussiebroadwan/opsconsole/pkg/authclient"
	"github.com/aussiebroadwan/opsconsole/pkg/slogx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// BuildVersion is overridden at build time via ldflags.
var BuildVersion = "v0.1.0"

// App is a ready-to-use console session: the controller plus what it was
// built from. Registry holds the session metrics of this process; opsctl
// prints them with WriteMetrics under -v.
type App struct {
	Config     Config
	Logger     *slog.Logger
	Registry   *prometheus.Registry
	Controller *authclient.Controller
}

// Option customises App construction.
type Option func(*options)

type options struct {
	logOutput  io.Writer
	notifier   authclient.Notifier
	httpClient *http.Client
}

// WithLogOutput sends logs to w instead of stderr.
func WithLogOutput(w io.Writer) Option {
	return func(o *options) { o.logOutput = w }
}

// WithNotifier sets who is told when the session ends on its own.
func WithNotifier(n authclient.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithHTTPClient replaces the default client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// New validates cfg, opens the credential store and restores any persisted
// session.
func New(ctx context.Context, cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	logger := slogx.New(slogx.Config{
		Service: "opsctl",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  o.logOutput,
	})

	store, err := OpenStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   cfg.RequestTimeout,
			Transport: slogx.NewTransport(nil, logger),
		}
	}

	registry := prometheus.NewRegistry()
	ctrl := authclient.New(authclient.Config{
		BaseURL:        cfg.APIURL,
		HTTPClient:     httpClient,
		Store:          store,
		Logger:         logger,
		Metrics:        authclient.NewMetrics(registry),
		Notifier:       o.notifier,
		RefreshTimeout: cfg.RefreshTimeout,
		WaitTimeout:    cfg.WaitTimeout,
	})

	ctrl.Restore(ctx)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   registry,
		Controller: ctrl,
	}, nil
}

// Close releases the credential store.
func (a *App) Close() error {
	return a.Controller.Close()
}

// WriteMetrics writes the metrics gathered so far to w in the Prometheus text
// exposition format.
func (a *App) WriteMetrics(w io.Writer) error {
	families, err := a.Registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
