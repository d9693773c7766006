package executor

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/gopace/pkg/common/validation"
	"github.com/vnykmshr/gopace/pkg/metrics"
	"github.com/vnykmshr/gopace/pkg/ratelimit/bucket"
	"github.com/vnykmshr/gopace/pkg/sink"
)

// Defaults applied by NewWithConfig when the corresponding Config field is
// left at its zero value.
const (
	DefaultQueueCapacity    = 1000
	DefaultConcurrencyLimit = 10
	DefaultWorkers          = 5
	DefaultRequestsRate     = 10
	DefaultRequestsPeriod   = time.Second
)

// Config configures an Executor. The zero value is usable: it yields a
// bounded queue of 1000 tasks, 5 workers, a concurrency ceiling of 10 and a
// request rate of 10 per second, with consumption accounting disabled.
type Config struct {
	// Name labels this executor in logs and metrics. Defaults to "executor".
	Name string

	// QueueCapacity bounds the number of tasks waiting for a worker.
	QueueCapacity int

	// ConcurrencyLimit is the ceiling on simultaneously admitted calls.
	ConcurrencyLimit int

	// Workers is the number of worker goroutines draining the queue.
	Workers int

	// RequestsRate is the number of request tokens replenished per
	// RequestsPeriod. Every call costs exactly one request token.
	RequestsRate float64

	// RequestsPeriod is the request-token replenishment period.
	RequestsPeriod time.Duration

	// RequestsMaxTokens caps the request bucket. Defaults to RequestsRate.
	RequestsMaxTokens float64

	// APITokensRate enables consumption accounting when positive: each task
	// additionally debits its ConsumptionCost from a second bucket
	// replenished at this rate. Zero disables the bucket entirely and
	// consumption costs are discarded.
	APITokensRate float64

	// APITokensPeriod is the consumption-token replenishment period.
	// Defaults to one second when the bucket is enabled.
	APITokensPeriod time.Duration

	// APITokensMaxTokens caps the consumption bucket. Defaults to
	// APITokensRate.
	APITokensMaxTokens float64

	// CancelPendingOnStop makes Stop cancel queued-but-undispatched tasks
	// instead of letting workers drain them. In-flight calls always run to
	// completion on the graceful path.
	CancelPendingOnStop bool

	// Logger receives executor lifecycle and task failure logs.
	// Defaults to a disabled logger.
	Logger *zerolog.Logger

	// Clock overrides the time source of both rate-limit buckets, for
	// deterministic tests.
	Clock bucket.Clock

	// Metrics configures Prometheus instrumentation.
	Metrics metrics.Config

	// Sink, when set, receives a snapshot of every event that reaches a
	// terminal state. Sink failures are logged and never affect tasks.
	Sink sink.EventSink
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = "executor"
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = DefaultQueueCapacity
	}
	if c.ConcurrencyLimit == 0 {
		c.ConcurrencyLimit = DefaultConcurrencyLimit
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.RequestsRate == 0 {
		c.RequestsRate = DefaultRequestsRate
	}
	if c.RequestsPeriod == 0 {
		c.RequestsPeriod = DefaultRequestsPeriod
	}
	if c.RequestsMaxTokens == 0 {
		c.RequestsMaxTokens = c.RequestsRate
	}
	if c.APITokensRate > 0 {
		if c.APITokensPeriod == 0 {
			c.APITokensPeriod = time.Second
		}
		if c.APITokensMaxTokens == 0 {
			c.APITokensMaxTokens = c.APITokensRate
		}
	}
}

func (c *Config) validate() error {
	if err := validation.ValidatePositive("executor", "queueCapacity", c.QueueCapacity); err != nil {
		return err
	}
	if err := validation.ValidatePositive("executor", "concurrencyLimit", c.ConcurrencyLimit); err != nil {
		return err
	}
	if err := validation.ValidatePositive("executor", "workers", c.Workers); err != nil {
		return err
	}
	if err := validation.ValidatePositiveFloat("executor", "requestsRate", c.RequestsRate); err != nil {
		return err
	}
	if err := validation.ValidateNonNegative("executor", "apiTokensRate", c.APITokensRate); err != nil {
		return err
	}
	return nil
}
