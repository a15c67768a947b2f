package live

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names.
const (
	MetricLiveConnections = "live_connections"
	MetricLiveFramesSent  = "live_frames_sent_total"
	MetricLiveFramesDrop  = "live_frames_dropped_total"
)

// Metrics contains Prometheus metrics for live walls.
type Metrics struct {
	connections   prometheus.Gauge
	framesSent    *prometheus.CounterVec
	framesDropped *prometheus.CounterVec
}

// NewMetrics creates live wall metrics. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: MetricLiveConnections,
			Help: "Number of connected live wall WebSockets",
		}),
		framesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricLiveFramesSent,
			Help: "Total number of frames pushed to live walls by type",
		}, []string{"type"}),
		framesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricLiveFramesDrop,
			Help: "Total number of frames dropped for walls that fell behind, by type",
		}, []string{"type"}),
	}
}

// Register registers all metrics with the given registry.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.connections, m.framesSent, m.framesDropped} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
