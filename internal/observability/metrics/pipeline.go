package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/docsort/internal/core/domain"
)

// PipelineMetrics covers document processing: pipeline runs, the worker pool feeding them,
// the LLM cache in front of them and the breakers around their outbound calls.
type PipelineMetrics struct {
	registry *prometheus.Registry
	service  string

	filesTotal      *prometheus.CounterVec
	fileDuration    *prometheus.HistogramVec
	stepFailures    *prometheus.CounterVec
	jobsInFlight    *prometheus.GaugeVec
	jobsRejected    *prometheus.CounterVec
	jobsFailed      *prometheus.CounterVec
	queueWait       *prometheus.HistogramVec
	cacheLookups    *prometheus.CounterVec
	breakerState    *prometheus.GaugeVec
	breakerSwitches *prometheus.CounterVec
}

// NewPipelineMetrics registers on registry, or on a fresh one when registry is nil.
func NewPipelineMetrics(service string, registry *prometheus.Registry) *PipelineMetrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	filesTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "files_total",
			Help:      "Files that reached a terminal processing status.",
		},
		[]string{"service", "status"},
	)
	fileDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "file_duration_seconds",
			Help:      "Pipeline duration per file in seconds by status.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service", "status"},
	)
	stepFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "step_failures_total",
			Help:      "Failed pipeline steps; a failed step does not fail the file.",
		},
		[]string{"service", "step"},
	)
	jobsInFlight := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "workpool",
			Name:      "jobs_in_flight",
			Help:      "Jobs currently executing per pool.",
		},
		[]string{"service", "pool"},
	)
	jobsRejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workpool",
			Name:      "jobs_rejected_total",
			Help:      "Jobs refused because the pool queue was full.",
		},
		[]string{"service", "pool"},
	)
	jobsFailed := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "workpool",
			Name:      "jobs_failed_total",
			Help:      "Jobs that returned an error or panicked.",
		},
		[]string{"service", "pool"},
	)
	queueWait := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "workpool",
			Name:      "queue_wait_seconds",
			Help:      "Delay between job submission and execution start.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "pool"},
	)
	cacheLookups := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm_cache",
			Name:      "lookups_total",
			Help:      "LLM response cache lookups by kind and result.",
		},
		[]string{"service", "kind", "result"},
	)
	breakerState := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_state",
			Help:      "Circuit breaker state per operation: 0 closed, 1 half-open, 2 open.",
		},
		[]string{"service", "operation"},
	)
	breakerSwitches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "breaker_transitions_total",
			Help:      "Circuit breaker transitions by target state.",
		},
		[]string{"service", "operation", "to"},
	)

	registry.MustRegister(
		filesTotal,
		fileDuration,
		stepFailures,
		jobsInFlight,
		jobsRejected,
		jobsFailed,
		queueWait,
		cacheLookups,
		breakerState,
		breakerSwitches,
	)

	return &PipelineMetrics{
		registry:        registry,
		service:         service,
		filesTotal:      filesTotal,
		fileDuration:    fileDuration,
		stepFailures:    stepFailures,
		jobsInFlight:    jobsInFlight,
		jobsRejected:    jobsRejected,
		jobsFailed:      jobsFailed,
		queueWait:       queueWait,
		cacheLookups:    cacheLookups,
		breakerState:    breakerState,
		breakerSwitches: breakerSwitches,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) StepFailed(step string) {
	m.stepFailures.WithLabelValues(m.service, step).Inc()
}

func (m *PipelineMetrics) FileFinished(status domain.ProcessingStatus, seconds float64) {
	m.filesTotal.WithLabelValues(m.service, string(status)).Inc()
	if seconds >= 0 {
		m.fileDuration.WithLabelValues(m.service, string(status)).Observe(seconds)
	}
}

func (m *PipelineMetrics) JobRejected(pool, _ string) {
	m.jobsRejected.WithLabelValues(m.service, pool).Inc()
}

func (m *PipelineMetrics) JobStarted(pool, _ string, waited time.Duration) {
	m.jobsInFlight.WithLabelValues(m.service, pool).Inc()
	if waited >= 0 {
		m.queueWait.WithLabelValues(m.service, pool).Observe(waited.Seconds())
	}
}

func (m *PipelineMetrics) JobFinished(pool, _ string, _ time.Duration, err error) {
	m.jobsInFlight.WithLabelValues(m.service, pool).Dec()
	if err != nil {
		m.jobsFailed.WithLabelValues(m.service, pool).Inc()
	}
}

// CacheLookup has the shape of the LLM cache hook.
func (m *PipelineMetrics) CacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(m.service, kind, result).Inc()
}

// BreakerTransition has the shape of the resilience state observer.
func (m *PipelineMetrics) BreakerTransition(operation string, _, to gobreaker.State) {
	m.breakerState.WithLabelValues(m.service, operation).Set(float64(to))
	m.breakerSwitches.WithLabelValues(m.service, operation, to.String()).Inc()
}
