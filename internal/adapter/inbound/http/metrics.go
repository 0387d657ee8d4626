package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the decision API.
// Pass to components that need to record metrics.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	DecisionsTotal   *prometheus.CounterVec
	DecisionDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics with the given registry.
// trailDrops is sampled into parcelgate_audit_drops_total; pass nil when no
// trail is configured.
func NewMetrics(reg prometheus.Registerer, trailDrops func() int64) *Metrics {
	if trailDrops != nil {
		promauto.With(reg).NewCounterFunc(
			prometheus.CounterOpts{
				Namespace: "parcelgate",
				Name:      "audit_drops_total",
				Help:      "Total audit records dropped due to backpressure",
			},
			func() float64 { return float64(trailDrops()) },
		)
	}

	return &Metrics{
		RequestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parcelgate",
				Name:      "requests_total",
				Help:      "Total HTTP requests processed",
			},
			[]string{"method", "status"},
		),
		RequestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "parcelgate",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method"},
		),
		DecisionsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "parcelgate",
				Name:      "decisions_total",
				Help:      "Total access decisions",
			},
			[]string{"kind", "operation", "result"},
		),
		DecisionDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "parcelgate",
				Name:      "decision_duration_seconds",
				Help:      "Decision evaluation duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
}
