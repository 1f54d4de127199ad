package service

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts authentication traffic on the mock server. A nil *Metrics
// records nothing.
type Metrics struct {
	logins    *prometheus.CounterVec
	refreshes *prometheus.CounterVec
	logouts   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mockauth",
			Name:      "logins_total",
			Help:      "Login attempts by result.",
		}, []string{"result"}),
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mockauth",
			Name:      "refreshes_total",
			Help:      "Refresh token exchanges by result.",
		}, []string{"result"}),
		logouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "mockauth",
			Name:      "logouts_total",
			Help:      "Sessions ended by logout.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.logins, m.refreshes, m.logouts)
	}
	return m
}

func (m *Metrics) RecordLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordLogout() {
	if m == nil {
		return
	}
	m.logouts.Inc()
}

func (m *Metrics) recordRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}
