package client

import "github.com/prometheus/client_golang/prometheus"

type Metrics struct {
	refreshes   *prometheus.CounterVec
	expirations prometheus.Counter
	requests    *prometheus.CounterVec
}

// NewMetrics registers the client counters on reg. Pass nil to get counters
// that are tracked but never exported.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		refreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "token_refresh_total",
			Help:      "Access token refresh attempts by outcome.",
		}, []string{"outcome"}),
		expirations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "session_expired_total",
			Help:      "Sessions dropped after an unrecoverable authentication failure.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "portal",
			Name:      "upstream_requests_total",
			Help:      "Coordinated backend calls by result kind.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.refreshes, m.expirations, m.requests)
	}
	return m
}

func (m *Metrics) refresh(outcome string) {
	if m != nil {
		m.refreshes.WithLabelValues(outcome).Inc()
	}
}

func (m *Metrics) expired() {
	if m != nil {
		m.expirations.Inc()
	}
}

func (m *Metrics) request(kind Kind) {
	if m != nil {
		m.requests.WithLabelValues(kind.String()).Inc()
	}
}
