package authclient

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Refresh outcomes recorded by Metrics.
const (
	OutcomeSuccess    = "success"
	OutcomeRejected   = "rejected"
	OutcomeTransport  = "transport"
	OutcomeTimeout    = "timeout"
	OutcomeSuperseded = "superseded"
)

// Logout reasons recorded by Metrics.
const (
	ReasonExplicit       = "explicit"
	ReasonRefreshRefused = "refresh_rejected"
	ReasonRefreshTimeout = "refresh_timeout"
)

// Metrics instruments the refresh pipeline. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	refreshes       *prometheus.CounterVec
	refreshDuration prometheus.Histogram
	waiters         prometheus.Gauge
	replays         prometheus.Counter
	logouts         *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsconsole_token_refreshes_total",
			Help: "Token refresh calls by outcome",
		}, []string{"outcome"}),
		refreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "opsconsole_token_refresh_duration_seconds",
			Help:    "Latency of the token refresh call",
			Buckets: prometheus.DefBuckets,
		}),
		waiters: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "opsconsole_refresh_waiters",
			Help: "Requests currently queued behind an in-flight refresh",
		}),
		replays: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "opsconsole_request_replays_total",
			Help: "Requests re-sent after a token refresh",
		}),
		logouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "opsconsole_logouts_total",
			Help: "Session logouts by reason",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.refreshes,
		m.refreshDuration,
		m.waiters,
		m.replays,
		m.logouts,
	)

	return m
}

func (m *Metrics) recordRefresh(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(outcome).Inc()
	m.refreshDuration.Observe(d.Seconds())
}

func (m *Metrics) waiterAdded() {
	if m != nil {
		m.waiters.Inc()
	}
}

func (m *Metrics) waiterDone() {
	if m != nil {
		m.waiters.Dec()
	}
}

func (m *Metrics) recordReplay() {
	if m != nil {
		m.replays.Inc()
	}
}

func (m *Metrics) recordLogout(reason string) {
	if m != nil {
		m.logouts.WithLabelValues(reason).Inc()
	}
}
