// Package metrics provides Prometheus-based metrics collection for netmapper.
// It tracks scan sessions, per-host probes, and MAC vendor lookups so
// operators can watch scan throughput and degradation from the outside.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all netmapper metrics
	namespace = "netmapper"

	// Subsystems
	subsystemSession = "session"
	subsystemProbe   = "probe"
	subsystemVendor  = "vendor"
)

// PrometheusMetrics holds all Prometheus metric collectors.
type PrometheusMetrics struct {
	// Session metrics
	sessionsTotal   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	hostsScanned    *prometheus.CounterVec

	// Probe metrics
	probeDuration *prometheus.HistogramVec
	probeRetries  prometheus.Counter
	activeProbes  prometheus.Gauge

	// Vendor lookup metrics
	vendorLookups *prometheus.CounterVec

	startTime time.Time
	registry  *prometheus.Registry
}

// NewPrometheusMetrics creates a new metrics instance with all collectors.
func NewPrometheusMetrics() *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	pm := &PrometheusMetrics{
		startTime: time.Now(),
		registry:  registry,
	}

	pm.initSessionMetrics()
	pm.initProbeMetrics()
	pm.initVendorMetrics()
	pm.registerMetrics()

	// Standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return pm
}

// initSessionMetrics initializes scan-session metrics.
func (pm *PrometheusMetrics) initSessionMetrics() {
	pm.sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "total",
			Help:      "Total number of scan sessions by mode and status",
		},
		[]string{"mode", "status"},
	)

	pm.sessionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "duration_seconds",
			Help:      "Duration of scan sessions in seconds",
			Buckets:   []float64{1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0, 1800.0},
		},
		[]string{"mode"},
	)

	pm.hostsScanned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemSession,
			Name:      "hosts_total",
			Help:      "Total number of hosts probed by mode and reachability",
		},
		[]string{"mode", "status"},
	)
}

// initProbeMetrics initializes per-host probe metrics.
func (pm *PrometheusMetrics) initProbeMetrics() {
	pm.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of individual host probes in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"mode"},
	)

	pm.probeRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "retries_total",
			Help:      "Total number of host probe retry attempts",
		},
	)

	pm.activeProbes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "active",
			Help:      "Number of currently active host probes",
		},
	)
}

// initVendorMetrics initializes MAC vendor lookup metrics.
func (pm *PrometheusMetrics) initVendorMetrics() {
	pm.vendorLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemVendor,
			Name:      "lookups_total",
			Help:      "Total number of MAC vendor resolutions by source",
		},
		[]string{"source"},
	)
}

// registerMetrics registers all collectors with the registry.
func (pm *PrometheusMetrics) registerMetrics() {
	pm.registry.MustRegister(
		pm.sessionsTotal,
		pm.sessionDuration,
		pm.hostsScanned,
		pm.probeDuration,
		pm.probeRetries,
		pm.activeProbes,
		pm.vendorLookups,
	)
}

// Registry returns the underlying Prometheus registry for exposition.
func (pm *PrometheusMetrics) Registry() *prometheus.Registry {
	return pm.registry
}

// IncrementSessionsTotal records a completed session by mode and status.
func (pm *PrometheusMetrics) IncrementSessionsTotal(mode, status string) {
	pm.sessionsTotal.WithLabelValues(mode, status).Inc()
}

// RecordSessionDuration records the total duration of a session.
func (pm *PrometheusMetrics) RecordSessionDuration(mode string, d time.Duration) {
	pm.sessionDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// IncrementHostsScanned records one probed host by reachability status.
func (pm *PrometheusMetrics) IncrementHostsScanned(mode, status string) {
	pm.hostsScanned.WithLabelValues(mode, status).Inc()
}

// RecordProbeDuration records the duration of one host probe.
func (pm *PrometheusMetrics) RecordProbeDuration(mode string, d time.Duration) {
	pm.probeDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// IncrementProbeRetries records a probe retry attempt.
func (pm *PrometheusMetrics) IncrementProbeRetries() {
	pm.probeRetries.Inc()
}

// ProbeStarted increments the active-probe gauge.
func (pm *PrometheusMetrics) ProbeStarted() {
	pm.activeProbes.Inc()
}

// ProbeFinished decrements the active-probe gauge.
func (pm *PrometheusMetrics) ProbeFinished() {
	pm.activeProbes.Dec()
}

// IncrementVendorLookups records one vendor resolution by source.
func (pm *PrometheusMetrics) IncrementVendorLookups(source string) {
	pm.vendorLookups.WithLabelValues(source).Inc()
}

// Global metrics instance.
var (
	globalMetrics *PrometheusMetrics
	globalOnce    sync.Once
)

// GetGlobalMetrics returns the process-wide metrics instance, creating it on
// first use.
func GetGlobalMetrics() *PrometheusMetrics {
	globalOnce.Do(func() {
		globalMetrics = NewPrometheusMetrics()
	})
	return globalMetrics
}
