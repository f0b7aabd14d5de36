package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records connection and request activity.
//
// Implementations must be safe for concurrent use; every pool worker
// records into the same instance.
type Metrics interface {
	// RecordConnectionAccepted counts a socket handed over by the listener.
	RecordConnectionAccepted()

	// RecordConnectionClosed counts a socket that was closed, for any reason.
	RecordConnectionClosed()

	// RecordConnectionForceClosed counts sockets cut during shutdown.
	RecordConnectionForceClosed()

	// SetActiveConnections updates the number of sockets owned by workers.
	SetActiveConnections(count int32)

	// SetQueuedConnections updates the number of sockets waiting for a worker.
	SetQueuedConnections(count int)

	// RecordRequest records one completed request/response exchange.
	RecordRequest(method string, status int, duration time.Duration)

	// RecordBytesTransferred records payload bytes; direction is "in" or "out".
	RecordBytesTransferred(direction string, bytes int64)

	// RecordUpload records an upload outcome ("stored", "rejected",
	// "aborted") and the bytes stored.
	RecordUpload(outcome string, bytes int64)

	// RecordUnexpectedError counts errors that are neither client mistakes
	// nor disconnects. where names the component.
	RecordUnexpectedError(where string)

	// RecordRateLimited counts requests refused with 429.
	RecordRateLimited()
}

type promMetrics struct {
	connectionsAccepted    prometheus.Counter
	connectionsClosed      prometheus.Counter
	connectionsForceClosed prometheus.Counter
	activeConnections      prometheus.Gauge
	queuedConnections      prometheus.Gauge
	requestsTotal          *prometheus.CounterVec
	requestDuration        *prometheus.HistogramVec
	bytesTransferred       *prometheus.CounterVec
	uploadsTotal           *prometheus.CounterVec
	uploadBytes            prometheus.Histogram
	unexpectedErrors       *prometheus.CounterVec
	rateLimited            prometheus.Counter
}

// New returns Prometheus-backed metrics registered in the global registry,
// or a no-op implementation when metrics are disabled. Call it once.
func New() Metrics {
	if !IsEnabled() {
		return NewNoop()
	}
	return newWithRegisterer(GetRegistry())
}

func newWithRegisterer(reg prometheus.Registerer) *promMetrics {
	f := promauto.With(reg)
	return &promMetrics{
		connectionsAccepted: f.NewCounter(prometheus.CounterOpts{
			Name: "vortex_connections_accepted_total",
			Help: "Total number of connections accepted",
		}),
		connectionsClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "vortex_connections_closed_total",
			Help: "Total number of connections closed",
		}),
		connectionsForceClosed: f.NewCounter(prometheus.CounterOpts{
			Name: "vortex_connections_force_closed_total",
			Help: "Total number of connections force-closed when the shutdown timeout expired",
		}),
		activeConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "vortex_active_connections",
			Help: "Current number of connections being served by a worker",
		}),
		queuedConnections: f.NewGauge(prometheus.GaugeOpts{
			Name: "vortex_queued_connections",
			Help: "Current number of accepted connections waiting for a worker",
		}),
		requestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vortex_http_requests_total",
			Help: "Total number of HTTP requests by method and status code",
		}, []string{"method", "code"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name: "vortex_http_request_duration_seconds",
			Help: "Duration of HTTP requests including body transfer",
			Buckets: []float64{
				0.001, // 1ms
				0.01,  // 10ms
				0.1,   // 100ms
				1,     // 1s
				10,    // 10s
				60,    // 1m
				600,   // 10m
			},
		}, []string{"method"}),
		bytesTransferred: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vortex_bytes_transferred_total",
			Help: "Total payload bytes by direction",
		}, []string{"direction"}),
		uploadsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vortex_uploads_total",
			Help: "Total number of uploads by outcome",
		}, []string{"outcome"}),
		uploadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name: "vortex_upload_size_bytes",
			Help: "Distribution of stored upload sizes",
			Buckets: []float64{
				65536,      // 64KB
				1048576,    // 1MB
				104857600,  // 100MB
				1073741824, // 1GB
			},
		}),
		unexpectedErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vortex_unexpected_errors_total",
			Help: "Errors that were neither client mistakes nor disconnects",
		}, []string{"component"}),
		rateLimited: f.NewCounter(prometheus.CounterOpts{
			Name: "vortex_rate_limited_total",
			Help: "Total number of requests refused by the rate limiter",
		}),
	}
}

func (m *promMetrics) RecordConnectionAccepted()    { m.connectionsAccepted.Inc() }
func (m *promMetrics) RecordConnectionClosed()      { m.connectionsClosed.Inc() }
func (m *promMetrics) RecordConnectionForceClosed() { m.connectionsForceClosed.Inc() }
func (m *promMetrics) RecordRateLimited()           { m.rateLimited.Inc() }

func (m *promMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *promMetrics) SetQueuedConnections(count int) {
	m.queuedConnections.Set(float64(count))
}

func (m *promMetrics) RecordRequest(method string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method).Observe(duration.Seconds())
}

func (m *promMetrics) RecordBytesTransferred(direction string, bytes int64) {
	if bytes > 0 {
		m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
	}
}

func (m *promMetrics) RecordUpload(outcome string, bytes int64) {
	m.uploadsTotal.WithLabelValues(outcome).Inc()
	if outcome == "stored" {
		m.uploadBytes.Observe(float64(bytes))
	}
}

func (m *promMetrics) RecordUnexpectedError(where string) {
	m.unexpectedErrors.WithLabelValues(where).Inc()
}

// NewNoop returns a Metrics that discards everything.
func NewNoop() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordConnectionAccepted()                                       {}
func (noopMetrics) RecordConnectionClosed()                                         {}
func (noopMetrics) RecordConnectionForceClosed()                                    {}
func (noopMetrics) SetActiveConnections(count int32)                                {}
func (noopMetrics) SetQueuedConnections(count int)                                  {}
func (noopMetrics) RecordRequest(method string, status int, duration time.Duration) {}
func (noopMetrics) RecordBytesTransferred(direction string, bytes int64)            {}
func (noopMetrics) RecordUpload(outcome string, bytes int64)                        {}
func (noopMetrics) RecordUnexpectedError(where string)                              {}
func (noopMetrics) RecordRateLimited()                                              {}
