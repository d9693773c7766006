package reporter

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/gopace/pkg/executor"
)

// DefaultSchedule is the sampling schedule used when Config.Schedule is empty.
const DefaultSchedule = "@every 30s"

// Source is anything that can be sampled for executor statistics.
// *executor.Executor satisfies it.
type Source interface {
	Stats() executor.Stats
}

// Config configures a Reporter.
type Config struct {
	// Schedule is a cron expression or descriptor such as "@every 30s".
	// Defaults to DefaultSchedule.
	Schedule string

	// Logger receives the stat lines. Defaults to a disabled logger, which
	// makes the reporter pointless, so callers normally set this.
	Logger *zerolog.Logger
}

// Reporter samples registered sources on a cron schedule.
type Reporter struct {
	cron     *cron.Cron
	log      zerolog.Logger
	schedule string

	mu      sync.Mutex
	sources []Source
	started bool
}

// New creates a Reporter. Sources are registered with Register and sampling
// begins at Start.
func New(cfg Config) (*Reporter, error) {
	if cfg.Schedule == "" {
		cfg.Schedule = DefaultSchedule
	}
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, fmt.Errorf("reporter: invalid schedule %q: %w", cfg.Schedule, err)
	}

	log := zerolog.Nop()
	if cfg.Logger != nil {
		log = cfg.Logger.With().Str("component", "reporter").Logger()
	}

	return &Reporter{
		cron:     cron.New(),
		log:      log,
		schedule: cfg.Schedule,
	}, nil
}

// Register adds a source to be sampled on every tick. Safe to call while
// the reporter is running.
func (r *Reporter) Register(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = append(r.sources, src)
}

// Start begins scheduled sampling. Idempotent.
func (r *Reporter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}
	if _, err := r.cron.AddFunc(r.schedule, r.Report); err != nil {
		return fmt.Errorf("reporter: schedule %q: %w", r.schedule, err)
	}
	r.cron.Start()
	r.started = true
	r.log.Debug().Str("schedule", r.schedule).Msg("reporter started")
	return nil
}

// Stop halts the schedule and waits for an in-progress sample to finish, or
// for ctx to expire.
func (r *Reporter) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	r.started = false
	r.mu.Unlock()

	stopCtx := r.cron.Stop()
	select {
	case <-stopCtx.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Report samples every registered source once and logs the result. It is
// also what the schedule invokes on each tick.
func (r *Reporter) Report() {
	r.mu.Lock()
	sources := make([]Source, len(r.sources))
	copy(sources, r.sources)
	r.mu.Unlock()

	for _, src := range sources {
		stats := src.Stats()
		line := r.log.Info().
			Str("executor", stats.Name).
			Bool("running", stats.Running).
			Int("queue_depth", stats.Queue.QueueDepth).
			Int("queue_capacity", stats.Queue.Capacity).
			Int("workers", stats.Queue.Workers).
			Int("workers_active", stats.Queue.Active).
			Int("capacity_borrowed", stats.CapacityBorrowed).
			Int("capacity_total", stats.CapacityTotal).
			Int("capacity_waiting", stats.CapacityWaiting).
			Float64("request_tokens", stats.RequestTokens).
			Uint64("submitted", stats.Submitted).
			Uint64("completed", stats.Completed).
			Uint64("failed", stats.Failed).
			Uint64("cancelled", stats.Cancelled)
		if stats.APITokensEnabled {
			line = line.Float64("api_tokens", stats.APITokens)
		}
		line.Msg("executor stats")
	}
}
