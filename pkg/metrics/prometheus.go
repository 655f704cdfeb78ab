package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Data loading
	reloads           *prometheus.CounterVec
	reloadDuration    prometheus.Histogram
	recordsLoaded     prometheus.Gauge
	parseWarnings     prometheus.Counter
	selectionIndexLen prometheus.Gauge

	// Queries
	aggregations         prometheus.Counter
	aggregationDuration  prometheus.Histogram
	virtualGroupFailures *prometheus.CounterVec
	seriesExtractions    prometheus.Counter
	seriesEmpty          prometheus.Counter
	selectionKeyRejected prometheus.Counter
	viewTransitions      *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry *prometheus.Registry //nolint:gochecknoglobals // registry served on /healthz

func init() { //nolint:gochecknoinits // global metrics setup
	Configure()
}

// Configure rebuilds the global collectors with opts on a fresh registry.
// Call it at startup, before anything is recorded and before GetRegistry is
// handed to an HTTP handler.
func Configure(opts ...Option) {
	registry := prometheus.NewRegistry()
	all := make([]Option, 0, len(opts)+1)
	all = append(all, opts...)
	all = append(all, WithPrometheusRegistry(registry))
	globalManager = NewManager(all...)
	customRegistry = registry
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "debtlens",
		subsystem:        "engine",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: m.histogramBuckets}
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.reloads = auto.NewCounterVec(m.counterOpts("reloads_total", "Panel reloads by result"), []string{"result"})
	m.reloadDuration = auto.NewHistogram(m.histogramOpts("reload_duration_milliseconds", "Time to read, normalize and publish the panel"))
	m.recordsLoaded = auto.NewGauge(m.gaugeOpts("records_loaded", "Records in the published snapshot"))
	m.parseWarnings = auto.NewCounter(m.counterOpts("parse_warnings_total", "Cells coerced to missing because they could not be parsed"))
	m.selectionIndexLen = auto.NewGauge(m.gaugeOpts("selection_index_size", "Distinct group/country selection keys"))

	m.aggregations = auto.NewCounter(m.counterOpts("aggregations_total", "Rating-bucket comparisons computed"))
	m.aggregationDuration = auto.NewHistogram(m.histogramOpts("aggregation_duration_milliseconds", "Time to compute one comparison"))
	m.virtualGroupFailures = auto.NewCounterVec(m.counterOpts("virtual_group_failures_total", "Requested groups that failed to resolve"), []string{"group"})
	m.seriesExtractions = auto.NewCounter(m.counterOpts("series_extractions_total", "Country series extracted"))
	m.seriesEmpty = auto.NewCounter(m.counterOpts("series_empty_total", "Country series with no data in the window"))
	m.selectionKeyRejected = auto.NewCounter(m.counterOpts("selection_key_rejected_total", "Selection keys rejected as unknown"))
	m.viewTransitions = auto.NewCounterVec(m.counterOpts("view_transitions_total", "View controller transitions by kind"), []string{"transition"})

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"), []string{"endpoint", "method", "status_code"})
	m.httpErrors = auto.NewCounterVec(m.counterOpts("http_errors_total", "HTTP error responses by endpoint, method and error type"), []string{"endpoint", "method", "error_type"})
}

// RecordReload counts a reload attempt; result is "ok" or "error".
func RecordReload(result string, durationMs float64) {
	globalManager.reloads.WithLabelValues(result).Inc()
	globalManager.reloadDuration.Observe(durationMs)
}

// UpdateRecordsLoaded sets the size of the published snapshot.
func UpdateRecordsLoaded(n int) {
	globalManager.recordsLoaded.Set(float64(n))
}

// RecordParseWarnings adds parse warnings from one load.
func RecordParseWarnings(n int) {
	if n > 0 {
		globalManager.parseWarnings.Add(float64(n))
	}
}

// UpdateSelectionIndexSize sets the number of selection keys.
func UpdateSelectionIndexSize(n int) {
	globalManager.selectionIndexLen.Set(float64(n))
}

// RecordAggregation counts one comparison and its latency.
func RecordAggregation(durationMs float64) {
	globalManager.aggregations.Inc()
	globalManager.aggregationDuration.Observe(durationMs)
}

// RecordVirtualGroupFailure counts a group that could not be resolved.
func RecordVirtualGroupFailure(group string) {
	globalManager.virtualGroupFailures.WithLabelValues(group).Inc()
}

// RecordSeriesExtraction counts one series and whether it was empty.
func RecordSeriesExtraction(empty bool) {
	globalManager.seriesExtractions.Inc()
	if empty {
		globalManager.seriesEmpty.Inc()
	}
}

// RecordSelectionKeyRejected counts an unknown selection key.
func RecordSelectionKeyRejected() {
	globalManager.selectionKeyRejected.Inc()
}

// RecordViewTransition counts a controller transition.
func RecordViewTransition(transition string) {
	globalManager.viewTransitions.WithLabelValues(transition).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an error response by its classified type.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// GetRegistry returns the registry the global manager registers on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
