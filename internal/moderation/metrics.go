package moderation

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricDecisions    = "moderation_decisions_total"
	MetricBlobFailures = "moderation_blob_delete_failures_total"
)

// Decision labels.
const (
	KindPhoto       = "photo"
	KindComment     = "comment"
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

// Metrics contains Prometheus metrics for moderation decisions.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	decisions    *prometheus.CounterVec
	blobFailures prometheus.Counter
}

// NewMetrics creates moderation metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricDecisions,
			Help: "Total number of moderated items by kind and decision",
		}, []string{"kind", "decision"}),
		blobFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricBlobFailures,
			Help: "Total number of media objects whose deletion was queued for retry",
		}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.decisions, m.blobFailures} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) observe(kind, decision string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.decisions.WithLabelValues(kind, decision).Add(float64(n))
}

func (m *Metrics) addBlobFailures(n int) {
	if m == nil {
		return
	}
	m.blobFailures.Add(float64(n))
}
