package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds all metric instances for gopace components.
type Registry struct {
	// Rate Limiting Metrics
	RateLimitRequests *prometheus.CounterVec
	RateLimitWaits    *prometheus.CounterVec
	RateLimitWaitTime *prometheus.HistogramVec
	RateLimitTokens   *prometheus.GaugeVec

	// Capacity Metrics
	CapacityBorrowed *prometheus.GaugeVec
	CapacityWaiting  *prometheus.GaugeVec
	CapacityTotal    *prometheus.GaugeVec

	// Queue Metrics
	QueueDepth        *prometheus.GaugeVec
	QueueEnqueued     *prometheus.CounterVec
	QueueDequeued     *prometheus.CounterVec
	QueueBackpressure *prometheus.CounterVec

	// Executor Metrics
	TasksSubmitted   *prometheus.CounterVec
	TasksCompleted   *prometheus.CounterVec
	TasksFailed      *prometheus.CounterVec
	TasksCancelled   *prometheus.CounterVec
	CallDuration     *prometheus.HistogramVec
	WorkersActive    *prometheus.GaugeVec
	AdmissionLatency *prometheus.HistogramVec
}

// DefaultRegistry is the default metrics registry used by gopace components.
var DefaultRegistry *Registry

func init() {
	DefaultRegistry = NewRegistry(prometheus.DefaultRegisterer)
	resolved[prometheus.DefaultRegisterer] = DefaultRegistry
}

// NewRegistry creates a new metrics registry with the given Prometheus registerer.
func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		// Rate Limiting Metrics
		RateLimitRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gopace",
				Subsystem: "ratelimit",
				Name:      "requests_total",
				Help:      "Total number of token acquisitions requested",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitWaits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gopace",
				Subsystem: "ratelimit",
				Name:      "waits_total",
				Help:      "Total number of acquisitions that required waiting",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitWaitTime: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gopace",
				Subsystem: "ratelimit",
				Name:      "wait_duration_seconds",
				Help:      "Wait durations handed to callers by the limiter",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"limiter_type", "limiter_name"},
		),

		RateLimitTokens: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gopace",
				Subsystem: "ratelimit",
				Name:      "tokens_available",
				Help:      "Number of tokens currently available",
			},
			[]string{"limiter_type", "limiter_name"},
		),

		// Capacity Metrics
		CapacityBorrowed: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gopace",
				Subsystem: "capacity",
				Name:      "borrowed",
				Help:      "Number of capacity slots currently borrowed",
			},
			[]string{"limiter_name"},
		),

		CapacityWaiting: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gopace",
				Subsystem: "capacity",
				Name:      "waiting",
				Help:      "Number of callers waiting for a capacity slot",
			},
			[]string{"limiter_name"},
		),

		CapacityTotal: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gopace",
				Subsystem: "capacity",
				Name:      "total_slots",
				Help:      "Configured capacity ceiling",
			},
			[]string{"limiter_name"},
		),

		// Queue Metrics
		QueueDepth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gopace",
				Subsystem: "queue",
				Name:      "depth",
				Help:      "Number of tasks currently queued",
			},
			[]string{"queue_name"},
		),

		QueueEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gopace",
				Subsystem: "queue",
				Name:      "enqueued_total",
				Help:      "Total number of tasks enqueued",
			},
			[]string{"queue_name"},
		),

		QueueDequeued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gopace",
				Subsystem: "queue",
				Name:      "dequeued_total",
				Help:      "Total number of tasks dequeued",
			},
			[]string{"queue_name"},
		),

		QueueBackpressure: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gopace",
				Subsystem: "queue",
				Name:      "backpressure_events_total",
				Help:      "Total number of submissions that blocked on a full queue",
			},
			[]string{"queue_name"},
		),

		// Executor Metrics
		TasksSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gopace",
				Subsystem: "executor",
				Name:      "tasks_submitted_total",
				Help:      "Total number of tasks submitted",
			},
			[]string{"executor_name"},
		),

		TasksCompleted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gopace",
				Subsystem: "executor",
				Name:      "tasks_completed_total",
				Help:      "Total number of tasks that completed successfully",
			},
			[]string{"executor_name"},
		),

		TasksFailed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gopace",
				Subsystem: "executor",
				Name:      "tasks_failed_total",
				Help:      "Total number of tasks whose call raised an error",
			},
			[]string{"executor_name"},
		),

		TasksCancelled: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gopace",
				Subsystem: "executor",
				Name:      "tasks_cancelled_total",
				Help:      "Total number of tasks cancelled before dispatch",
			},
			[]string{"executor_name"},
		),

		CallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gopace",
				Subsystem: "executor",
				Name:      "call_duration_seconds",
				Help:      "Time spent inside the submitted callable",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"executor_name"},
		),

		WorkersActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gopace",
				Subsystem: "executor",
				Name:      "workers_active",
				Help:      "Number of workers currently processing a task",
			},
			[]string{"executor_name"},
		),

		AdmissionLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gopace",
				Subsystem: "executor",
				Name:      "admission_latency_seconds",
				Help:      "Time from dequeue until the call starts (capacity plus rate gating)",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"executor_name"},
		),
	}
}
