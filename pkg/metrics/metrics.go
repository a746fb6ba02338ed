package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ReportedMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diag_reported_messages_total",
			Help: "Total number of report calls by kind and outcome (count)",
		},
		[]string{"kind", "outcome"},
	)

	StoredMessagesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diag_stored_messages_total",
			Help: "Total number of messages added to the in-memory store (count)",
		},
	)

	StoreEvictionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diag_store_evictions_total",
			Help: "Total number of messages evicted from the in-memory store (count)",
		},
	)

	StoreSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "diag_store_size",
			Help: "Number of messages currently retained (count)",
		},
	)

	FilterEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diag_filter_evaluations_total",
			Help: "Total number of filter chain evaluations by result (count)",
		},
		[]string{"result"},
	)

	RegisteredFilters = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "diag_registered_filters",
			Help: "Number of registered filters (count)",
		},
	)

	RegisteredListeners = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "diag_registered_listeners",
			Help: "Number of registered listeners (count)",
		},
	)

	ListenerDispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diag_listener_dispatch_total",
			Help: "Total number of listener dispatches by listener and status (count)",
		},
		[]string{"listener", "status"},
	)

	ListenerOpenFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diag_listener_open_failures_total",
			Help: "Total number of failed lazy listener opens (count)",
		},
		[]string{"listener"},
	)

	ListenerDispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "diag_listener_dispatch_duration_ms",
			Help:    "Listener dispatch duration in milliseconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"listener"},
	)

	ListenerThrottledTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diag_listener_throttled_total",
			Help: "Total number of messages dropped by listener throttling (count)",
		},
		[]string{"listener"},
	)

	NotifierFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diag_notifier_failures_total",
			Help: "Total number of failed notifier launches (count)",
		},
	)

	AssertionSignalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "diag_assertion_signals_total",
			Help: "Total number of assertion failures returned to callers (count)",
		},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "diag_circuit_breaker_state",
			Help: "Circuit breaker state: 0=closed, 1=half-open, 2=open",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diag_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diag_circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures (count)",
		},
		[]string{"name"},
	)

	ObjectCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "diag_object_count",
			Help: "Live instances per object counter category (count)",
		},
		[]string{"category"},
	)

	ObjectCountExceededTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diag_object_count_exceeded_total",
			Help: "Total number of increments that went over a category maximum (count)",
		},
		[]string{"category"},
	)

	PerfEventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "diag_perf_event_duration_ms",
			Help:    "Duration of completed performance event iterations in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"event"},
	)

	PerfEventExceededTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diag_perf_event_exceeded_total",
			Help: "Total number of iterations that ran longer than the event maximum (count)",
		},
		[]string{"event"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "diag_inspector_rate_limit_requests_total",
			Help: "Total number of inspector requests checked by the rate limiter (count)",
		},
		[]string{"status"},
	)
)

var (
	pipelineOnce  sync.Once
	breakerOnce   sync.Once
	inspectorOnce sync.Once
	toolsOnce     sync.Once
)

// RegisterPipelineMetrics registers the pipeline collectors with the default
// registry. Collectors work unregistered, so library users may skip this.
func RegisterPipelineMetrics() {
	pipelineOnce.Do(func() {
		prometheus.MustRegister(
			ReportedMessagesTotal,
			StoredMessagesTotal,
			StoreEvictionsTotal,
			StoreSize,
			FilterEvaluationsTotal,
			RegisteredFilters,
			RegisteredListeners,
			ListenerDispatchTotal,
			ListenerOpenFailuresTotal,
			ListenerDispatchDuration,
			ListenerThrottledTotal,
			NotifierFailuresTotal,
			AssertionSignalsTotal,
		)
	})
}

func RegisterCircuitBreakerMetrics() {
	breakerOnce.Do(func() {
		prometheus.MustRegister(
			CircuitBreakerState,
			CircuitBreakerRequests,
			CircuitBreakerFailures,
		)
	})
}

func RegisterInspectorMetrics() {
	inspectorOnce.Do(func() {
		prometheus.MustRegister(RateLimitRequestsTotal)
	})
}

// RegisterToolMetrics registers the object counter and performance event
// collectors.
func RegisterToolMetrics() {
	toolsOnce.Do(func() {
		prometheus.MustRegister(
			ObjectCount,
			ObjectCountExceededTotal,
			PerfEventDuration,
			PerfEventExceededTotal,
		)
	})
}

func IncReported(kind, outcome string) {
	ReportedMessagesTotal.WithLabelValues(kind, outcome).Inc()
}

func SetStoreSize(size int) {
	StoreSize.Set(float64(size))
}

func IncFilterEvaluation(result string) {
	FilterEvaluationsTotal.WithLabelValues(result).Inc()
}

func SetRegisteredFilters(count int) {
	RegisteredFilters.Set(float64(count))
}

func SetRegisteredListeners(count int) {
	RegisteredListeners.Set(float64(count))
}

func IncListenerDispatch(listener, status string) {
	ListenerDispatchTotal.WithLabelValues(listener, status).Inc()
}

func IncListenerOpenFailure(listener string) {
	ListenerOpenFailuresTotal.WithLabelValues(listener).Inc()
}

func ObserveListenerDispatchDuration(listener string, duration time.Duration) {
	ListenerDispatchDuration.WithLabelValues(listener).Observe(float64(duration.Microseconds()) / 1000)
}

func IncListenerThrottled(listener string) {
	ListenerThrottledTotal.WithLabelValues(listener).Inc()
}

func SetObjectCount(category string, count int) {
	ObjectCount.WithLabelValues(category).Set(float64(count))
}

func IncObjectCountExceeded(category string) {
	ObjectCountExceededTotal.WithLabelValues(category).Inc()
}

func ObservePerfEvent(event string, duration time.Duration) {
	PerfEventDuration.WithLabelValues(event).Observe(float64(duration.Microseconds()) / 1000)
}

func IncPerfEventExceeded(event string) {
	PerfEventExceededTotal.WithLabelValues(event).Inc()
}
