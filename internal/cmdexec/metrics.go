package cmdexec

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments external command invocations.
type Metrics struct {
	invocations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

// NewMetrics registers executor metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		invocations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "diskwright",
			Subsystem: "exec",
			Name:      "invocations_total",
			Help:      "External command invocations by command and outcome.",
		}, []string{"command", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "diskwright",
			Subsystem: "exec",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of external command invocations.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"command"}),
	}
}

func (m *Metrics) observe(inv Invocation) {
	outcome := "success"
	if !inv.Success {
		outcome = "failure"
	}
	m.invocations.WithLabelValues(inv.Argv[0], outcome).Inc()
	m.duration.WithLabelValues(inv.Argv[0]).Observe(inv.Duration.Seconds())
}
