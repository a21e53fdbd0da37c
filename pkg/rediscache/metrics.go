package rediscache

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultReused    = "reused"
	resultConnected = "connected"
)

// Metrics counts acquisitions per group and outcome. A nil *Metrics is valid and records nothing.
type Metrics struct {
	acquisitions *prometheus.CounterVec
	cached       prometheus.Gauge
}

// NewMetrics creates the facade's collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		acquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rediscache_acquisitions_total",
				Help: "connection acquisitions by group and result",
			},
			[]string{"group", "result"},
		),
		cached: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "rediscache_cached_connections",
				Help: "number of connections held in the facade cache",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(m.acquisitions, m.cached)
	}
	return m
}

func (m *Metrics) observe(group, result string) {
	if m == nil {
		return
	}
	m.acquisitions.WithLabelValues(group, result).Inc()
}

func (m *Metrics) setCached(n int) {
	if m == nil {
		return
	}
	m.cached.Set(float64(n))
}
