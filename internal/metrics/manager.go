package metrics

import (
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"

	"github.com/maxiofs/simplestore/internal/config"
)

// Manager defines the interface for metrics management
type Manager interface {
	// Store operations
	RecordOperation(operation string, success bool, duration time.Duration)
	RecordValueSize(operation string, size int)
	RecordCorruption(namespace string)

	// Memory cache
	RecordCacheHit()
	RecordCacheMiss()

	// Namespace handles
	HandleOpened()
	HandleClosed()

	// Executor backlog
	TaskQueued()
	TaskFinished()

	// Export
	GetMetricsHandler() http.Handler
	Gatherer() prometheus.Gatherer
	WriteText(w io.Writer) error
}

// metricsManager implements the Manager interface using Prometheus
type metricsManager struct {
	// Configuration
	namespace string

	// Prometheus registry and metrics
	registry *prometheus.Registry

	// Store Metrics
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	valueSizeBytes    *prometheus.HistogramVec
	corruptionsTotal  *prometheus.CounterVec

	// Cache Metrics
	cacheHitsTotal   prometheus.Counter
	cacheMissesTotal prometheus.Counter

	// Handle Metrics
	openHandles prometheus.Gauge

	// Executor Metrics
	pendingTasks prometheus.Gauge
}

// NewManager creates a new metrics manager
func NewManager(cfg config.MetricsConfig) Manager {
	if !cfg.Enable {
		return &noopManager{}
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "simplestore"
	}

	manager := &metricsManager{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
	}

	manager.initializeMetrics()
	manager.registerMetrics()
	return manager
}

// initializeMetrics sets up all Prometheus metrics
func (m *metricsManager) initializeMetrics() {
	namespace := m.namespace

	// Store Metrics
	m.operationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of store operations",
		},
		[]string{"operation", "status"},
	)

	m.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Store operation duration in seconds, queueing included",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
		[]string{"operation"},
	)

	m.valueSizeBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "value_size_bytes",
			Help:      "Size of values read and written",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8),
		},
		[]string{"operation"},
	)

	m.corruptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "corruptions_total",
			Help:      "Stored values that failed verification",
		},
		[]string{"namespace"},
	)

	// Cache Metrics
	m.cacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Reads served from the memory cache",
		},
	)

	m.cacheMissesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Reads that went to storage",
		},
	)

	// Handle Metrics
	m.openHandles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "open_handles",
			Help:      "Number of open namespace handles",
		},
	)

	// Executor Metrics
	m.pendingTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "executor",
			Name:      "pending_tasks",
			Help:      "Store operations queued or running",
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (m *metricsManager) registerMetrics() {
	metrics := []prometheus.Collector{
		// Store
		m.operationsTotal,
		m.operationDuration,
		m.valueSizeBytes,
		m.corruptionsTotal,

		// Cache
		m.cacheHitsTotal,
		m.cacheMissesTotal,

		// Handles
		m.openHandles,

		// Executor
		m.pendingTasks,
	}

	for _, metric := range metrics {
		m.registry.MustRegister(metric)
	}
}

// Store Metrics Implementation

func (m *metricsManager) RecordOperation(operation string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *metricsManager) RecordValueSize(operation string, size int) {
	m.valueSizeBytes.WithLabelValues(operation).Observe(float64(size))
}

func (m *metricsManager) RecordCorruption(namespace string) {
	m.corruptionsTotal.WithLabelValues(namespace).Inc()
}

// Cache Metrics Implementation

func (m *metricsManager) RecordCacheHit() {
	m.cacheHitsTotal.Inc()
}

func (m *metricsManager) RecordCacheMiss() {
	m.cacheMissesTotal.Inc()
}

// Handle Metrics Implementation

func (m *metricsManager) HandleOpened() {
	m.openHandles.Inc()
}

func (m *metricsManager) HandleClosed() {
	m.openHandles.Dec()
}

// Executor Metrics Implementation

func (m *metricsManager) TaskQueued() {
	m.pendingTasks.Inc()
}

func (m *metricsManager) TaskFinished() {
	m.pendingTasks.Dec()
}

// Export Implementation

func (m *metricsManager) GetMetricsHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metricsManager) Gatherer() prometheus.Gatherer {
	return m.registry
}

// WriteText writes every metric family in the Prometheus text format.
func (m *metricsManager) WriteText(w io.Writer) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}
	for _, family := range families {
		if _, err := expfmt.MetricFamilyToText(w, family); err != nil {
			return err
		}
	}
	return nil
}

// noopManager is a no-op implementation when metrics are disabled
type noopManager struct{}

func (n *noopManager) RecordOperation(operation string, success bool, duration time.Duration) {}
func (n *noopManager) RecordValueSize(operation string, size int)                            {}
func (n *noopManager) RecordCorruption(namespace string)                                     {}
func (n *noopManager) RecordCacheHit()                                                       {}
func (n *noopManager) RecordCacheMiss()                                                      {}
func (n *noopManager) HandleOpened()                                                         {}
func (n *noopManager) HandleClosed()                                                         {}
func (n *noopManager) TaskQueued()                                                           {}
func (n *noopManager) TaskFinished()                                                         {}
func (n *noopManager) GetMetricsHandler() http.Handler                                       { return http.NotFoundHandler() }
func (n *noopManager) Gatherer() prometheus.Gatherer                                         { return prometheus.NewRegistry() }
func (n *noopManager) WriteText(w io.Writer) error                                           { return nil }
