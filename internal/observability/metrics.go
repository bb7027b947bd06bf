package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics exposes the gateway's prometheus collectors. A nil *Metrics is a
// valid no-op recorder.
type Metrics struct {
	registry        *prometheus.Registry
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	conversations   prometheus.Gauge
	uploads         *prometheus.CounterVec
	reviewOutcomes  *prometheus.CounterVec
	reviewDuration  prometheus.Histogram
}

// NewMetrics registers collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "docchat",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "http_errors_total",
			Help:      "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		conversations: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "docchat",
			Name:      "active_conversations",
			Help:      "Conversations currently held in memory.",
		}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "uploads_total",
			Help:      "Accepted uploads, split by whether another upload was still being reviewed.",
		}, []string{"overlapping"}),
		reviewOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docchat",
			Name:      "review_outcomes_total",
			Help:      "Final status observed when polling stopped.",
		}, []string{"status"}),
		reviewDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docchat",
			Name:      "review_wait_seconds",
			Help:      "Time from upload to the last status poll.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 900, 1800, 3600, 4 * 3600, 24 * 3600},
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.errors,
		m.conversations,
		m.uploads,
		m.reviewOutcomes,
		m.reviewDuration,
	)
	return m
}

// Registry returns the registry to expose over /metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(path, method).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// SetActiveConversations updates the live conversation gauge.
func (m *Metrics) SetActiveConversations(n int) {
	if m == nil {
		return
	}
	m.conversations.Set(float64(n))
}

// RecordUpload counts an accepted upload.
func (m *Metrics) RecordUpload(overlapping bool) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(strconv.FormatBool(overlapping)).Inc()
}

// RecordReviewOutcome counts the status a poll ended on and how long it waited.
func (m *Metrics) RecordReviewOutcome(status string, waited time.Duration) {
	if m == nil {
		return
	}
	if status == "" {
		status = "UNKNOWN"
	}
	m.reviewOutcomes.WithLabelValues(status).Inc()
	m.reviewDuration.Observe(waited.Seconds())
}
