package bucket

import (
	"context"
	"math"
	"time"
)

// Acquire debits tokens and returns the wait duration. See Limiter.
func (tb *tokenBucket) Acquire(tokens float64) time.Duration {
	if tokens <= 0 {
		return 0
	}

	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(tb.clock.Now())

	if tb.tokens >= tokens {
		tb.tokens -= tokens
		return 0
	}

	// Requests above capacity can never be satisfied from balance; their
	// wait is computed from an empty bucket.
	deficit := tokens - tb.tokens
	if tokens > tb.maxTokens {
		deficit = tokens
	}
	wait := time.Duration(deficit / tb.rate * float64(tb.period))

	// Debit the full amount so concurrent callers cannot double-spend the
	// pending tokens. The balance may go negative.
	tb.tokens -= tokens
	return wait
}

// Wait acquires one token and sleeps for the required duration.
func (tb *tokenBucket) Wait(ctx context.Context) error {
	return tb.WaitN(ctx, 1)
}

// WaitN acquires n tokens and sleeps for the required duration.
func (tb *tokenBucket) WaitN(ctx context.Context, tokens float64) error {
	_, err := tb.waitN(ctx, tokens)
	return err
}

// waitN reports the wait the debit imposed alongside the outcome, so
// wrappers can record the limiter's own wait rather than elapsed wall time.
func (tb *tokenBucket) waitN(ctx context.Context, tokens float64) (time.Duration, error) {
	if tokens <= 0 {
		return 0, nil
	}

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	wait := tb.Acquire(tokens)
	if wait <= 0 {
		return 0, nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-timer.C:
		return wait, nil
	case <-ctx.Done():
		tb.credit(tokens)
		return wait, ctx.Err()
	}
}

// Tokens returns the number of tokens currently available.
func (tb *tokenBucket) Tokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(tb.clock.Now())
	return tb.tokens
}

// Rate returns the number of tokens replenished per period.
func (tb *tokenBucket) Rate() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.rate
}

// Period returns the replenishment period.
func (tb *tokenBucket) Period() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.period
}

// MaxTokens returns the bucket capacity.
func (tb *tokenBucket) MaxTokens() float64 {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.maxTokens
}

// Update changes limiter parameters at runtime. See Limiter.
func (tb *tokenBucket) Update(rate float64, period time.Duration, maxTokens float64, resetTokens bool) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(tb.clock.Now())

	if rate > 0 && rate != tb.rate {
		if rate < tb.rate && tb.tokens > 0 {
			// Scale the remaining balance so a rate cut takes effect
			// immediately instead of after the old balance drains.
			tb.tokens = tb.tokens * rate / tb.rate
		}
		tb.rate = rate
	}
	if period > 0 {
		tb.period = period
	}
	if maxTokens > 0 {
		tb.maxTokens = maxTokens
		tb.tokens = math.Min(tb.tokens, tb.maxTokens)
	}
	if resetTokens {
		tb.tokens = tb.maxTokens
	}
}

// refillLocked adds tokens for the time elapsed since the last refill.
// Must be called with tb.mu held.
func (tb *tokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(tb.lastRefill)
	if elapsed <= 0 {
		return
	}

	added := elapsed.Seconds() / tb.period.Seconds() * tb.rate
	tb.tokens = math.Min(tb.tokens+added, tb.maxTokens)
	tb.lastRefill = now
}

// credit restores unconsumed tokens from an abandoned wait.
func (tb *tokenBucket) credit(tokens float64) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refillLocked(tb.clock.Now())
	tb.tokens = math.Min(tb.tokens+tokens, tb.maxTokens)
}
