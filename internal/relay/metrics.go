package relay

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts relay websockets and SSH connect attempts. A nil *Metrics records nothing.
type Metrics struct {
	active   prometheus.Gauge
	connects *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nexusnav",
			Subsystem: "ssh_relay",
			Name:      "sockets_active",
			Help:      "Open SSH relay websockets.",
		}),
		connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nexusnav",
			Subsystem: "ssh_relay",
			Name:      "connects_total",
			Help:      "SSH connect attempts, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.active, m.connects)
	return m
}

func (m *Metrics) opened() {
	if m != nil {
		m.active.Inc()
	}
}

func (m *Metrics) closed() {
	if m != nil {
		m.active.Dec()
	}
}

func (m *Metrics) connect(result string) {
	if m != nil {
		m.connects.WithLabelValues(result).Inc()
	}
}
