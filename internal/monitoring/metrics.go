package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	ChecksTotal         *prometheus.CounterVec
	PagesCrawledTotal   prometheus.Counter
	BrokenLinksTotal    prometheus.Counter
	SignificantTotal    prometheus.Counter
	ErrorsTotal         *prometheus.CounterVec
	CheckDuration       prometheus.Histogram
	SlotWaiters         prometheus.Gauge
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New registers all metrics with the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics with reg. Tests pass a fresh registry
// so repeated construction never collides.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ChecksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_checks_total",
			Help: "The total number of completed checks by terminal status",
		}, []string{"status"}),
		PagesCrawledTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_pages_crawled_total",
			Help: "The total number of pages fetched across all crawls",
		}),
		BrokenLinksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_broken_links_total",
			Help: "The total number of broken links found",
		}),
		SignificantTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_significant_changes_total",
			Help: "The total number of checks that detected a significant change",
		}),
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "monitor_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'fetch_failed', 'comparison_failed', 'db_save_failed'
		CheckDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_check_duration_seconds",
			Help:    "Wall time of a full website check",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		}),
		SlotWaiters: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_single_flight_waiters",
			Help: "Number of checks currently waiting on the single-flight slot",
		}),
		HTTPRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
	}
}

func (m *Metrics) IncChecksTotal(status string) {
	m.ChecksTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncErrorsTotal(errorType string) {
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}
