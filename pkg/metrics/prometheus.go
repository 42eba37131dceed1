// Package metrics provides Prometheus metrics for the party ranking service.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Swipe ingestion
	swipesRecorded  prometheus.Counter
	swipesDuplicate prometheus.Counter
	swipesIgnored   prometheus.Counter

	// Consensus computation
	validationErrors   *prometheus.CounterVec
	scoringLatency     prometheus.Histogram
	aggregationLatency prometheus.Histogram
	partiesRanked      prometheus.Counter
	recomputeErrors    prometheus.Counter
	rankedParties       prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec
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
		namespace:        "partyrank",
		subsystem:        "consensus",
		histogramBuckets: prometheus.DefBuckets,
		refreshInterval:  defaultRefreshInterval,
		constLabels:      prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

// RefreshInterval reports how often periodic gauges should be refreshed.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.swipesRecorded = m.counter("swipes_recorded_total", "Total number of swipes stored")
	m.swipesDuplicate = m.counter("swipes_duplicate_total", "Total number of repeated (member, candidate) swipes dropped")
	m.swipesIgnored = m.counter("swipes_ignored_total", "Total number of swipes on candidates outside the party's set")

	m.validationErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "validation_errors_total",
		Help:        "Total number of rejected inputs by entity",
		ConstLabels: m.constLabels,
	}, []string{"entity"})
	m.scoringLatency = m.histogram("member_scoring_latency_milliseconds", "Latency of scoring all members of a party in milliseconds")
	m.aggregationLatency = m.histogram("aggregation_latency_milliseconds", "Latency of normalizing, aggregating and ranking in milliseconds")
	m.partiesRanked = m.counter("parties_ranked_total", "Total number of consensus computations stored")
	m.recomputeErrors = m.counter("recompute_errors_total", "Total number of failed consensus recomputes")
	m.rankedParties = m.gauge("ranked_parties", "Number of parties with an indexed ranking")

	m.queueSize = m.gauge("queue_size", "Current number of pending rank jobs")
	m.queueCapacity = m.gauge("queue_capacity", "Rank job queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Rank job queue utilization (size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Total number of rank jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Total number of rank jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rank jobs rejected by a full or closed queue")

	m.workerCount = m.gauge("worker_count", "Number of rank workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of rank workers currently processing a job")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Rank job processing latency in milliseconds")
	m.workerErrors = m.counter("worker_errors_total", "Total number of rank jobs that failed")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Total number of errors by component and type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})
}

// RecordSwipeRecorded increments the stored swipes counter.
func RecordSwipeRecorded() { globalManager.swipesRecorded.Inc() }

// RecordSwipeDuplicate increments the duplicate swipes counter.
func RecordSwipeDuplicate() { globalManager.swipesDuplicate.Inc() }

// RecordSwipesIgnored adds n swipes that referenced unknown candidates.
func RecordSwipesIgnored(n int) {
	if n > 0 {
		globalManager.swipesIgnored.Add(float64(n))
	}
}

// RecordValidationError increments the rejected input counter for entity.
func RecordValidationError(entity string) {
	globalManager.validationErrors.WithLabelValues(entity).Inc()
}

// RecordScoringLatency records member scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) { globalManager.scoringLatency.Observe(latencyMs) }

// RecordAggregationLatency records aggregation latency in milliseconds.
func RecordAggregationLatency(latencyMs float64) { globalManager.aggregationLatency.Observe(latencyMs) }

// RecordPartyRanked increments the stored consensus counter.
func RecordPartyRanked() { globalManager.partiesRanked.Inc() }

// RecordRecomputeError increments the failed recompute counter.
func RecordRecomputeError() { globalManager.recomputeErrors.Inc() }

// UpdateRankedParties sets the number of parties with an indexed ranking.
func UpdateRankedParties(count int) { globalManager.rankedParties.Set(float64(count)) }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueued jobs counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeued jobs counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the rejected enqueue counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records job processing latency in milliseconds.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the failed job counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent increments the error counter for a component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the custom registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
