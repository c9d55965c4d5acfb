// Package metrics provides Prometheus metrics for faceval evaluation runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run outcomes used as the status label of runs_total.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Manager owns the Prometheus collectors of one registry.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Evaluation runs
	runsTotal     *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	workersActive prometheus.Gauge

	// Inputs
	recordsLoaded     *prometheus.CounterVec
	recordsNormalized *prometheus.CounterVec
	joinDropped       *prometheus.CounterVec
	joinWarnings      *prometheus.CounterVec

	// Latest scores per model
	accuracy        *prometheus.GaugeVec
	macroF1         *prometheus.GaugeVec
	meanBinDistance *prometheus.GaugeVec
	ece             *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "faceval",
		subsystem:        "eval",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() {
	m.runsTotal = m.counterVec("runs_total", "Evaluation runs by model and outcome", "model", "status")
	m.runDuration = m.histogramVec("run_duration_seconds", "Wall time of one model evaluation run",
		m.histogramBuckets, "model")
	m.workersActive = promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "workers_active",
		Help:        "Model runs currently executing",
		ConstLabels: m.constLabels,
	})

	m.recordsLoaded = m.counterVec("records_loaded_total", "Label records read from disk", "source")
	m.recordsNormalized = m.counterVec("records_normalized_total",
		"Raw inference records processed by the normalizer", "format", "status")
	m.joinDropped = m.counterVec("join_dropped_total", "Rows without a join partner", "model", "side")
	m.joinWarnings = m.counterVec("join_warnings_total", "Joins that exceeded the drop ratio", "model")

	m.accuracy = m.gaugeVec("accuracy_ratio", "Exact-match accuracy of the last run", "model", "attribute")
	m.macroF1 = m.gaugeVec("macro_f1", "Macro-averaged F1 of the last run", "model", "attribute")
	m.meanBinDistance = m.gaugeVec("mean_bin_distance", "Mean absolute bin distance of the last run",
		"model", "attribute")
	m.ece = m.gaugeVec("expected_calibration_error", "ECE of the last run", "model", "attribute", "field")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		[]float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}, "endpoint", "method", "status_code")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and kind",
		"component", "error_type")
}

// RecordRun counts a finished run and observes its duration.
func (m *Manager) RecordRun(model, status string, d time.Duration) {
	if !m.enabled {
		return
	}
	m.runsTotal.WithLabelValues(model, status).Inc()
	m.runDuration.WithLabelValues(model).Observe(d.Seconds())
}

// AddActiveWorkers adjusts the number of running model jobs.
func (m *Manager) AddActiveWorkers(delta int) {
	if !m.enabled {
		return
	}
	m.workersActive.Add(float64(delta))
}

// RecordRecordsLoaded counts records read for source.
func (m *Manager) RecordRecordsLoaded(source string, n int) {
	if !m.enabled {
		return
	}
	m.recordsLoaded.WithLabelValues(source).Add(float64(n))
}

// RecordNormalized counts normalizer input lines by outcome.
func (m *Manager) RecordNormalized(format, status string, n int) {
	if !m.enabled {
		return
	}
	m.recordsNormalized.WithLabelValues(format, status).Add(float64(n))
}

// RecordJoin counts dropped rows per side and mismatch warnings.
func (m *Manager) RecordJoin(model string, droppedTruth, droppedPredictions int, warned bool) {
	if !m.enabled {
		return
	}
	m.joinDropped.WithLabelValues(model, "truth").Add(float64(droppedTruth))
	m.joinDropped.WithLabelValues(model, "predictions").Add(float64(droppedPredictions))
	if warned {
		m.joinWarnings.WithLabelValues(model).Inc()
	}
}

// UpdateScores publishes the categorical scores of one attribute.
func (m *Manager) UpdateScores(model, attribute string, accuracy, macroF1 float64) {
	if !m.enabled {
		return
	}
	m.accuracy.WithLabelValues(model, attribute).Set(accuracy)
	m.macroF1.WithLabelValues(model, attribute).Set(macroF1)
}

// UpdateMeanBinDistance publishes the ordinal distance of one attribute.
func (m *Manager) UpdateMeanBinDistance(model, attribute string, v float64) {
	if !m.enabled {
		return
	}
	m.meanBinDistance.WithLabelValues(model, attribute).Set(v)
}

// UpdateECE publishes the calibration error of one attribute/field pair.
func (m *Manager) UpdateECE(model, attribute, field string, v float64) {
	if !m.enabled {
		return
	}
	m.ece.WithLabelValues(model, attribute, field).Set(v)
}

// RecordHTTPRequest records an HTTP request and its duration in milliseconds.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordError counts an error of errorType raised in component.
func (m *Manager) RecordError(component, errorType string) {
	if !m.enabled {
		return
	}
	m.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// Global helpers delegating to the default manager.

// RecordRun counts a finished run on the global manager.
func RecordRun(model, status string, d time.Duration) { globalManager.RecordRun(model, status, d) }

// AddActiveWorkers adjusts the running job gauge on the global manager.
func AddActiveWorkers(delta int) { globalManager.AddActiveWorkers(delta) }

// RecordRecordsLoaded counts loaded records on the global manager.
func RecordRecordsLoaded(source string, n int) { globalManager.RecordRecordsLoaded(source, n) }

// RecordNormalized counts normalizer outcomes on the global manager.
func RecordNormalized(format, status string, n int) { globalManager.RecordNormalized(format, status, n) }

// RecordJoin records join statistics on the global manager.
func RecordJoin(model string, droppedTruth, droppedPredictions int, warned bool) {
	globalManager.RecordJoin(model, droppedTruth, droppedPredictions, warned)
}

// UpdateScores publishes categorical scores on the global manager.
func UpdateScores(model, attribute string, accuracy, macroF1 float64) {
	globalManager.UpdateScores(model, attribute, accuracy, macroF1)
}

// UpdateMeanBinDistance publishes an ordinal distance on the global manager.
func UpdateMeanBinDistance(model, attribute string, v float64) {
	globalManager.UpdateMeanBinDistance(model, attribute, v)
}

// UpdateECE publishes a calibration error on the global manager.
func UpdateECE(model, attribute, field string, v float64) {
	globalManager.UpdateECE(model, attribute, field, v)
}

// RecordHTTPRequest records an HTTP request on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordError counts an error on the global manager.
func RecordError(component, errorType string) { globalManager.RecordError(component, errorType) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
