package probe

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports probe outcomes as Prometheus collectors.
type Metrics struct {
	up      *prometheus.GaugeVec
	streak  *prometheus.GaugeVec
	latency *prometheus.HistogramVec
	total   *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nexusnav",
			Subsystem: "probe",
			Name:      "status",
			Help:      "Card health: 1 up, 0 down, -1 unknown.",
		}, []string{"card"}),
		streak: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "nexusnav",
			Subsystem: "probe",
			Name:      "failure_streak",
			Help:      "Consecutive probe failures per card.",
		}, []string{"card"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nexusnav",
			Subsystem: "probe",
			Name:      "latency_seconds",
			Help:      "Probe round-trip latency.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"card"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexusnav",
			Subsystem: "probe",
			Name:      "probes_total",
			Help:      "Probes issued, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.up, m.streak, m.latency, m.total)
	return m
}

// Observed implements Observer.
func (m *Metrics) Observed(cardID string, h Health, streak int, latency time.Duration) {
	var v float64
	switch h.Status {
	case StatusUp:
		v = 1
	case StatusDown:
		v = 0
	default:
		v = -1
	}
	m.up.WithLabelValues(cardID).Set(v)
	m.streak.WithLabelValues(cardID).Set(float64(streak))

	if streak == 0 {
		m.total.WithLabelValues("success").Inc()
		m.latency.WithLabelValues(cardID).Observe(latency.Seconds())
	} else {
		m.total.WithLabelValues("failure").Inc()
	}
}
