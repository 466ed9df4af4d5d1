package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics of the loan registry. Labels: op is request|fund|repay|claim, code is the
// domain error code (or "TransferFailed" / "Internal").
type Metrics struct {
	Transitions *prometheus.CounterVec
	Rejections  *prometheus.CounterVec
	Duration    *prometheus.HistogramVec
	Published   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loans",
			Name:      "transitions_total",
			Help:      "Committed lifecycle transitions by operation.",
		}, []string{"op"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loans",
			Name:      "rejections_total",
			Help:      "Aborted operations by operation and error code.",
		}, []string{"op", "code"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "loans",
			Name:      "operation_duration_seconds",
			Help:      "Wall time of registry operations including the transaction.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loans",
			Name:      "events_published_total",
			Help:      "Outbox events handed to the publisher, by result.",
		}, []string{"result"}),
	}
}
