package bucket

import (
	"context"
	"time"

	"github.com/vnykmshr/gopace/pkg/metrics"
)

// MetricsLimiter wraps a token bucket with Prometheus metrics collection.
type MetricsLimiter struct {
	limiter  *tokenBucket
	name     string
	registry *metrics.Registry
}

// NewWithMetrics creates a token bucket limiter that records its activity
// in the given metrics configuration.
func NewWithMetrics(config Config, name string, metricsConfig metrics.Config) (Limiter, error) {
	base, err := newTokenBucket(config)
	if err != nil {
		return nil, err
	}
	if !metricsConfig.Enabled {
		return base, nil
	}

	return &MetricsLimiter{
		limiter:  base,
		name:     name,
		registry: metricsConfig.Resolve(),
	}, nil
}

// Acquire debits tokens and returns the wait duration.
func (ml *MetricsLimiter) Acquire(tokens float64) time.Duration {
	ml.registry.RateLimitRequests.WithLabelValues("token_bucket", ml.name).Add(tokens)

	wait := ml.limiter.Acquire(tokens)

	if wait > 0 {
		ml.registry.RateLimitWaits.WithLabelValues("token_bucket", ml.name).Inc()
	}
	ml.registry.RateLimitWaitTime.WithLabelValues("token_bucket", ml.name).Observe(wait.Seconds())
	ml.registry.RateLimitTokens.WithLabelValues("token_bucket", ml.name).Set(ml.limiter.Tokens())

	return wait
}

// Wait acquires one token and sleeps for the required duration.
func (ml *MetricsLimiter) Wait(ctx context.Context) error {
	return ml.WaitN(ctx, 1)
}

// WaitN acquires n tokens and sleeps for the required duration. The wait is
// delegated to the wrapped limiter so canceled waits still credit tokens
// back, and only debits the limiter could not satisfy immediately count as
// waits.
func (ml *MetricsLimiter) WaitN(ctx context.Context, tokens float64) error {
	ml.registry.RateLimitRequests.WithLabelValues("token_bucket", ml.name).Add(tokens)

	wait, err := ml.limiter.waitN(ctx, tokens)

	if wait > 0 {
		ml.registry.RateLimitWaits.WithLabelValues("token_bucket", ml.name).Inc()
	}
	ml.registry.RateLimitWaitTime.WithLabelValues("token_bucket", ml.name).Observe(wait.Seconds())
	ml.registry.RateLimitTokens.WithLabelValues("token_bucket", ml.name).Set(ml.limiter.Tokens())

	return err
}

// Tokens returns the number of tokens currently available.
func (ml *MetricsLimiter) Tokens() float64 {
	tokens := ml.limiter.Tokens()
	ml.registry.RateLimitTokens.WithLabelValues("token_bucket", ml.name).Set(tokens)
	return tokens
}

// Rate returns the number of tokens replenished per period.
func (ml *MetricsLimiter) Rate() float64 {
	return ml.limiter.Rate()
}

// Period returns the replenishment period.
func (ml *MetricsLimiter) Period() time.Duration {
	return ml.limiter.Period()
}

// MaxTokens returns the bucket capacity.
func (ml *MetricsLimiter) MaxTokens() float64 {
	return ml.limiter.MaxTokens()
}

// Update changes limiter parameters at runtime.
func (ml *MetricsLimiter) Update(rate float64, period time.Duration, maxTokens float64, resetTokens bool) {
	ml.limiter.Update(rate, period, maxTokens, resetTokens)
}
