package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "posestream"

// Metric names understood by RecordMetric.
const (
	MetricHTTPRequests   = "http.requests"
	MetricHTTPDurationMs = "http.request.duration_ms"
)

// Metrics holds the service-level Prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	FramesTotal       *prometheus.CounterVec // status: ok, failed
	FrameDuration     prometheus.Histogram
	DetectionsTotal   prometheus.Counter
	ActiveConnections prometheus.Gauge
	EngineRebuilds    *prometheus.CounterVec // result: ok, failed
	SettingsChanges   *prometheus.CounterVec // op: update, reset, refresh

	HTTPRequests *prometheus.CounterVec   // method, path, status
	HTTPDuration *prometheus.HistogramVec // method, path
	Events       *prometheus.CounterVec   // name, component
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}

	m := &Metrics{
		FramesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "processed_total",
			Help:      "Total number of frames processed",
		}, []string{"status"}),

		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "duration_seconds",
			Help:      "Per-frame processing duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		DetectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frames",
			Name:      "detections_total",
			Help:      "Total number of poses detected",
		}),

		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of live streaming connections",
		}),

		EngineRebuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "rebuilds_total",
			Help:      "Total number of inference engine rebuilds",
		}, []string{"result"}),

		SettingsChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "settings",
			Name:      "changes_total",
			Help:      "Total number of settings mutations",
		}, []string{"op"}),

		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),

		Events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Named events recorded through RecordMetric",
		}, []string{"name", "component"}),
	}

	for _, c := range []prometheus.Collector{
		m.FramesTotal, m.FrameDuration, m.DetectionsTotal,
		m.ActiveConnections, m.EngineRebuilds, m.SettingsChanges,
		m.HTTPRequests, m.HTTPDuration, m.Events,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveFrame records one processed frame.
func (m *Metrics) ObserveFrame(latency time.Duration, detections int, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "failed"
	}
	m.FramesTotal.WithLabelValues(status).Inc()
	m.FrameDuration.Observe(latency.Seconds())
	if ok && detections > 0 {
		m.DetectionsTotal.Add(float64(detections))
	}
}

// ConnectionOpened increments the live connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
}

// ConnectionClosed decrements the live connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

// ObserveRebuild records an engine rebuild outcome.
func (m *Metrics) ObserveRebuild(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.EngineRebuilds.WithLabelValues(result).Inc()
}

// ObserveSettingsChange counts a settings mutation by operation name.
func (m *Metrics) ObserveSettingsChange(op string) {
	if m == nil {
		return
	}
	m.SettingsChanges.WithLabelValues(op).Inc()
}
