// Package metrics provides Prometheus metrics for the eventmatch service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the eventmatch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Similarity space
	spaceBuilds         prometheus.Counter
	spaceBuildDuration  prometheus.Histogram
	spaceVocabularySize prometheus.Gauge
	spaceDocuments      prometheus.Gauge

	// Ranking and broadcast gate
	rankLatency        prometheus.Histogram
	recommendations    *prometheus.CounterVec
	thresholdDecisions *prometheus.CounterVec
	broadcasts         prometheus.Counter
	broadcastDuration  prometheus.Histogram

	// Prediction
	predictions       prometheus.Counter
	predictionErrors  prometheus.Counter
	predictionLatency prometheus.Histogram

	// Notifications
	notificationsEnqueued   prometheus.Counter
	notificationsDuplicate  prometheus.Counter
	notificationsDelivered  prometheus.Counter
	notificationsFailed     prometheus.Counter
	breakerState            *prometheus.GaugeVec
	breakerTransitions      *prometheus.CounterVec

	// Catalogue
	totalEvents prometheus.Gauge
	totalUsers  prometheus.Gauge

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue
	queueSize              prometheus.Gauge
	queueCapacity          prometheus.Gauge
	queueUtilization       prometheus.Gauge
	queueEnqueueRate       prometheus.Counter
	queueDequeueRate       prometheus.Counter
	queueEnqueueErrors     prometheus.Counter
	queueProcessingLatency prometheus.Histogram

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "eventmatch",
		subsystem:        "",
		histogramBuckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
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
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
		Buckets:   m.histogramBuckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

//nolint:funlen // long function required for comprehensive metrics initialization
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.spaceBuilds = m.counter("space_builds_total", "Total number of similarity space builds")
	m.spaceBuildDuration = m.histogram("space_build_duration_milliseconds", "Similarity space build duration in milliseconds")
	m.spaceVocabularySize = m.gauge("space_vocabulary_size", "Number of terms in the current similarity space")
	m.spaceDocuments = m.gauge("space_documents", "Number of documents the current similarity space was built from")

	m.rankLatency = m.histogram("rank_latency_milliseconds", "Ranking latency in milliseconds")
	m.recommendations = m.counterVec("recommendations_total", "Recommendation requests by outcome", "outcome")
	m.thresholdDecisions = m.counterVec("threshold_decisions_total", "Broadcast gate decisions by outcome", "outcome")
	m.broadcasts = m.counter("broadcasts_total", "Total number of event broadcasts")
	m.broadcastDuration = m.histogram("broadcast_duration_milliseconds", "Broadcast duration in milliseconds")

	m.predictions = m.counter("predictions_total", "Total number of interest predictions")
	m.predictionErrors = m.counter("prediction_errors_total", "Total number of failed interest predictions")
	m.predictionLatency = m.histogram("prediction_latency_milliseconds", "Interest prediction latency in milliseconds")

	m.notificationsEnqueued = m.counter("notifications_enqueued_total", "Total number of notifications enqueued")
	m.notificationsDuplicate = m.counter("notifications_duplicate_total", "Total number of notifications skipped as duplicates")
	m.notificationsDelivered = m.counter("notifications_delivered_total", "Total number of notifications delivered")
	m.notificationsFailed = m.counter("notifications_failed_total", "Total number of notifications that failed delivery")
	m.breakerState = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "circuit_breaker_state",
		Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})
	m.breakerTransitions = m.counterVec("circuit_breaker_transitions_total", "Circuit breaker state transitions", "name", "from", "to")

	m.totalEvents = m.gauge("events", "Number of events in the catalogue")
	m.totalUsers = m.gauge("users", "Number of registered users")

	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Repository update operation latency in milliseconds")
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Repository query operation latency in milliseconds")

	m.queueSize = m.gauge("queue_size", "Current size of the notification queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (current size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of messages enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of messages dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of enqueue errors")
	m.queueProcessingLatency = m.histogram("queue_processing_latency_milliseconds", "Queue processing latency in milliseconds")

	m.workerCount = m.gauge("worker_count", "Current number of delivery workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently delivering")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker processing latency in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of worker errors")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "http_request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component",
		"component", "error_type")
}

// Similarity space.

// RecordSpaceBuild records a completed space build.
func RecordSpaceBuild(durationMs float64, vocabulary, documents int) {
	globalManager.spaceBuilds.Inc()
	globalManager.spaceBuildDuration.Observe(durationMs)
	globalManager.spaceVocabularySize.Set(float64(vocabulary))
	globalManager.spaceDocuments.Set(float64(documents))
}

// Ranking.

// RecordRankLatency records ranking latency in milliseconds.
func RecordRankLatency(latencyMs float64) {
	globalManager.rankLatency.Observe(latencyMs)
}

// RecordRecommendation counts a recommendation by outcome (found, none).
func RecordRecommendation(outcome string) {
	globalManager.recommendations.WithLabelValues(outcome).Inc()
}

// RecordThresholdDecision counts a broadcast gate decision.
func RecordThresholdDecision(passed bool) {
	outcome := "reject"
	if passed {
		outcome = "pass"
	}
	globalManager.thresholdDecisions.WithLabelValues(outcome).Inc()
}

// RecordBroadcast records a completed broadcast.
func RecordBroadcast(durationMs float64) {
	globalManager.broadcasts.Inc()
	globalManager.broadcastDuration.Observe(durationMs)
}

// Prediction.

// RecordPrediction records a successful prediction and its latency.
func RecordPrediction(latencyMs float64) {
	globalManager.predictions.Inc()
	globalManager.predictionLatency.Observe(latencyMs)
}

// RecordPredictionError increments the prediction error counter.
func RecordPredictionError() {
	globalManager.predictionErrors.Inc()
}

// Notifications.

// RecordNotificationEnqueued increments the enqueued notifications counter.
func RecordNotificationEnqueued() {
	globalManager.notificationsEnqueued.Inc()
}

// RecordNotificationDuplicate increments the duplicate notifications counter.
func RecordNotificationDuplicate() {
	globalManager.notificationsDuplicate.Inc()
}

// RecordNotificationDelivered increments the delivered notifications counter.
func RecordNotificationDelivered() {
	globalManager.notificationsDelivered.Inc()
}

// RecordNotificationFailed increments the failed notifications counter.
func RecordNotificationFailed() {
	globalManager.notificationsFailed.Inc()
}

// UpdateBreakerState sets the state gauge of a named circuit breaker.
func UpdateBreakerState(name string, state float64) {
	globalManager.breakerState.WithLabelValues(name).Set(state)
}

// RecordBreakerTransition counts a circuit breaker state change.
func RecordBreakerTransition(name, from, to string) {
	globalManager.breakerTransitions.WithLabelValues(name, from, to).Inc()
}

// Catalogue.

// UpdateTotalEvents sets the event count.
func UpdateTotalEvents(count int) {
	globalManager.totalEvents.Set(float64(count))
}

// UpdateTotalUsers sets the user count.
func UpdateTotalUsers(count int) {
	globalManager.totalUsers.Set(float64(count))
}

// Repository Metrics Functions.

// RecordRepositoryUpdateLatency records repository update operation latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository query operation latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// RecordQueueProcessingLatency records queue processing latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
