// Package metrics provides Prometheus metrics for the rating engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the rating engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	deltaBuckets     []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Rating Metrics
	matchesRated    prometheus.Counter
	matchesSkipped  *prometheus.CounterVec
	ratingDelta     prometheus.Histogram
	seasonsComplete *prometheus.CounterVec
	newTeams        *prometheus.CounterVec
	teamsRated      prometheus.Gauge

	// Stage and run metrics
	stageDuration *prometheus.HistogramVec
	runs          *prometheus.CounterVec
	runLastUnix   prometheus.Gauge

	// Output metrics
	calibrationObserved prometheus.Gauge
	competitionsSolved  prometheus.Gauge

	// Storage metrics
	storeLatency  *prometheus.HistogramVec
	storeErrors   *prometheus.CounterVec
	snapshotCount prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "elorank",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		deltaBuckets:     []float64{-16, -8, -4, -2, -1, 0, 1, 2, 4, 8, 16},
		enabled:          true,
		constLabels:      make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogramVec(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.matchesRated = m.counter("matches_rated_total", "Total number of matches folded into ratings")
	m.matchesSkipped = m.counterVec("matches_skipped_total", "Total number of records skipped by stage and reason", "stage", "reason")
	m.ratingDelta = promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "rating_delta_points",
		Help:    "Home-side rating change per rated match",
		Buckets: m.deltaBuckets,
	})
	m.seasonsComplete = m.counterVec("seasons_completed_total", "Total number of competition-seasons rated", "competition")
	m.newTeams = m.counterVec("new_teams_total", "Starting ratings assigned by continuity policy", "policy")
	m.teamsRated = m.gauge("teams_rated", "Number of teams in the rating store")

	m.stageDuration = m.histogramVec("stage_duration_milliseconds", "Engine stage duration in milliseconds", m.histogramBuckets, "stage")
	m.runs = m.counterVec("runs_total", "Engine runs by outcome", "outcome")
	m.runLastUnix = m.gauge("run_last_unix", "Unix timestamp of the last successful run")

	m.calibrationObserved = m.gauge("calibration_observations", "Matches binned into the last calibration curve")
	m.competitionsSolved = m.gauge("competitions_solved", "Competitions in the last strength solution")

	m.storeLatency = m.histogramVec("store_latency_milliseconds", "Storage operation latency in milliseconds", m.histogramBuckets, "backend", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Storage operation errors", "backend", "op")
	m.snapshotCount = m.counter("snapshot_saves_total", "Total number of rating snapshots saved")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets, "endpoint", "method", "status_code")
}

// RecordMatchRated counts a rated match and observes its home-side delta.
func RecordMatchRated(delta float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.matchesRated.Inc()
	globalManager.ratingDelta.Observe(delta)
}

// RecordMatchSkipped counts a skipped record.
func RecordMatchSkipped(stage, reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.matchesSkipped.WithLabelValues(stage, reason).Inc()
}

// RecordSeasonComplete counts a rated competition-season.
func RecordSeasonComplete(competition string) {
	if !globalManager.enabled {
		return
	}
	globalManager.seasonsComplete.WithLabelValues(competition).Inc()
}

// RecordNewTeam counts a starting rating assigned by policy.
func RecordNewTeam(policy string) {
	if !globalManager.enabled {
		return
	}
	globalManager.newTeams.WithLabelValues(policy).Inc()
}

// UpdateTeamsRated sets the number of rated teams.
func UpdateTeamsRated(count int) {
	globalManager.teamsRated.Set(float64(count))
}

// RecordStageDuration records how long a stage took in milliseconds.
func RecordStageDuration(stage string, ms float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.stageDuration.WithLabelValues(stage).Observe(ms)
}

// RecordRun counts a run by outcome ("ok" or "failed") and stamps successful runs.
func RecordRun(outcome string, unix int64) {
	globalManager.runs.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		globalManager.runLastUnix.Set(float64(unix))
	}
}

// UpdateCalibrationObserved sets the number of binned matches.
func UpdateCalibrationObserved(n int64) {
	globalManager.calibrationObserved.Set(float64(n))
}

// UpdateCompetitionsSolved sets the number of solved competitions.
func UpdateCompetitionsSolved(n int) {
	globalManager.competitionsSolved.Set(float64(n))
}

// RecordStoreLatency records a storage operation latency.
func RecordStoreLatency(backend, op string, ms float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeLatency.WithLabelValues(backend, op).Observe(ms)
}

// RecordStoreError counts a failed storage operation.
func RecordStoreError(backend, op string) {
	globalManager.storeErrors.WithLabelValues(backend, op).Inc()
}

// RecordSnapshotSaved counts a saved rating snapshot.
func RecordSnapshotSaved() {
	globalManager.snapshotCount.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// SetEnabled toggles collection of per-record metrics on the global manager.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
