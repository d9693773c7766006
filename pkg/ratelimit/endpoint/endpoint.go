// Package endpoint provides per-endpoint token bucket rate limiting.
//
// Limiters are created lazily per endpoint key with shared defaults, and
// individual endpoint limits can be retuned at runtime, for example after a
// provider advertises new limits.
package endpoint

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/gopace/pkg/common/validation"
	"github.com/vnykmshr/gopace/pkg/ratelimit/bucket"
)

// Registry manages one token bucket limiter per endpoint key.
type Registry struct {
	mu            sync.Mutex
	defaultRate   float64
	defaultPeriod time.Duration
	limiters      map[string]bucket.Limiter
	clock         bucket.Clock
	log           zerolog.Logger
}

// Config holds configuration options for creating a Registry.
type Config struct {
	// DefaultRate is the tokens-per-period for newly created limiters.
	DefaultRate float64

	// DefaultPeriod is the replenishment period for newly created limiters.
	// If zero, one second is used.
	DefaultPeriod time.Duration

	// Clock provides the current time for all created limiters. If nil,
	// the system clock is used.
	Clock bucket.Clock

	// Logger receives debug logs for limiter creation and updates.
	Logger zerolog.Logger
}

// New creates a registry with the given default rate per second.
func New(defaultRate float64) (*Registry, error) {
	return NewWithConfig(Config{DefaultRate: defaultRate})
}

// NewWithConfig creates a registry with custom configuration.
func NewWithConfig(config Config) (*Registry, error) {
	if err := validation.ValidatePositiveFloat("endpoint", "defaultRate", config.DefaultRate); err != nil {
		return nil, err
	}
	if config.DefaultPeriod == 0 {
		config.DefaultPeriod = time.Second
	}
	if config.Clock == nil {
		config.Clock = bucket.SystemClock{}
	}
	return &Registry{
		defaultRate:   config.DefaultRate,
		defaultPeriod: config.DefaultPeriod,
		limiters:      make(map[string]bucket.Limiter),
		clock:         config.Clock,
		log:           config.Logger,
	}, nil
}

// Get returns the limiter for the given endpoint key, creating it with the
// registry defaults on first use. The same instance is returned for every
// subsequent call with the same key.
func (r *Registry) Get(key string) bucket.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getLocked(key)
}

// Wait acquires one token from the endpoint's limiter, sleeping as needed.
func (r *Registry) Wait(ctx context.Context, key string) error {
	return r.Get(key).Wait(ctx)
}

// WaitN acquires n tokens from the endpoint's limiter, sleeping as needed.
func (r *Registry) WaitN(ctx context.Context, key string, tokens float64) error {
	return r.Get(key).WaitN(ctx, tokens)
}

// UpdateLimit retunes the limiter for the given endpoint. Zero-valued
// parameters keep their current setting; resetTokens refills the bucket.
func (r *Registry) UpdateLimit(key string, rate float64, period time.Duration, maxTokens float64, resetTokens bool) {
	r.mu.Lock()
	lim := r.getLocked(key)
	r.mu.Unlock()

	lim.Update(rate, period, maxTokens, resetTokens)
	r.log.Debug().
		Str("endpoint", key).
		Float64("rate", lim.Rate()).
		Dur("period", lim.Period()).
		Float64("max_tokens", lim.MaxTokens()).
		Msg("endpoint rate limit updated")
}

// Endpoints returns the keys with a limiter created so far.
func (r *Registry) Endpoints() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([]string, 0, len(r.limiters))
	for k := range r.limiters {
		keys = append(keys, k)
	}
	return keys
}

// getLocked returns or creates the limiter for key. Must be called with
// r.mu held.
func (r *Registry) getLocked(key string) bucket.Limiter {
	if lim, ok := r.limiters[key]; ok {
		return lim
	}
	lim, err := bucket.NewWithConfig(bucket.Config{
		Rate:   r.defaultRate,
		Period: r.defaultPeriod,
		Clock:  r.clock,
	})
	if err != nil {
		// Defaults are validated at construction; creation cannot fail.
		panic(err)
	}
	r.limiters[key] = lim
	r.log.Debug().Str("endpoint", key).Msg("endpoint limiter created")
	return lim
}
