// Package adaptive provides a rate limiter that retunes itself from
// provider rate-limit response headers.
//
// Supported header families, checked in order: X-RateLimit-*, RateLimit-*,
// and Retry-After. The derived rate is remaining/reset scaled by a safety
// factor, floored at a configurable minimum so a hostile header can never
// stall the client completely.
package adaptive

import (
	"strconv"
	"strings"
	"time"

	gperrors "github.com/vnykmshr/gopace/pkg/common/errors"
	"github.com/vnykmshr/gopace/pkg/common/validation"
	"github.com/vnykmshr/gopace/pkg/ratelimit/bucket"
)

// Limiter is a token bucket limiter whose rate follows provider headers.
type Limiter struct {
	bucket.Limiter
	minRate      float64
	safetyFactor float64
}

// Config holds configuration options for creating an adaptive Limiter.
type Config struct {
	// InitialRate is the tokens-per-period before any header is seen.
	InitialRate float64

	// Period is the replenishment period. If zero, one second is used.
	Period time.Duration

	// MaxTokens is the bucket capacity. If zero, InitialRate is used.
	MaxTokens float64

	// MinRate is the floor the derived rate never drops below.
	// If zero, 1.0 is used.
	MinRate float64

	// SafetyFactor scales the derived rate to stay below the advertised
	// limit. If zero, 0.9 is used.
	SafetyFactor float64

	// Clock provides the current time. If nil, the system clock is used.
	Clock bucket.Clock
}

// New creates an adaptive limiter with the given initial rate per second.
func New(initialRate float64) (*Limiter, error) {
	return NewWithConfig(Config{InitialRate: initialRate})
}

// NewWithConfig creates an adaptive limiter with custom configuration.
func NewWithConfig(config Config) (*Limiter, error) {
	if config.MinRate == 0 {
		config.MinRate = 1.0
	}
	if err := validation.ValidatePositiveFloat("adaptive", "minRate", config.MinRate); err != nil {
		return nil, err
	}
	if config.SafetyFactor == 0 {
		config.SafetyFactor = 0.9
	}
	if config.SafetyFactor < 0 || config.SafetyFactor > 1 {
		return nil, gperrors.NewValidationError("adaptive", "safetyFactor", config.SafetyFactor, "must be in (0, 1]").
			WithHint("the safety factor scales the advertised rate down")
	}

	base, err := bucket.NewWithConfig(bucket.Config{
		Rate:      config.InitialRate,
		Period:    config.Period,
		MaxTokens: config.MaxTokens,
		Clock:     config.Clock,
	})
	if err != nil {
		return nil, err
	}

	return &Limiter{
		Limiter:      base,
		minRate:      config.MinRate,
		safetyFactor: config.SafetyFactor,
	}, nil
}

// UpdateFromHeaders adjusts the rate from rate-limit response headers.
// Header names are matched case-insensitively. Unparseable or absent
// headers leave the limiter untouched.
func (l *Limiter) UpdateFromHeaders(headers map[string]string) {
	lower := make(map[string]string, len(headers))
	for k, v := range headers {
		lower[strings.ToLower(k)] = v
	}

	remaining, okRemaining := headerFloat(lower, "x-ratelimit-remaining", "ratelimit-remaining")
	reset, okReset := headerFloat(lower, "x-ratelimit-reset", "ratelimit-reset")

	if okRemaining && okReset && reset > 0 {
		l.setRate(remaining / reset * l.safetyFactor)
		return
	}

	// Retry-After means the provider wants silence for that long: treat
	// the window as having nothing remaining.
	if retryAfter, ok := headerFloat(lower, "retry-after"); ok && retryAfter > 0 {
		l.setRate(0)
	}
}

// MinRate returns the configured rate floor.
func (l *Limiter) MinRate() float64 {
	return l.minRate
}

// SafetyFactor returns the configured safety factor.
func (l *Limiter) SafetyFactor() float64 {
	return l.safetyFactor
}

// setRate applies the floor and retunes the underlying bucket.
func (l *Limiter) setRate(rate float64) {
	if rate < l.minRate {
		rate = l.minRate
	}
	l.Update(rate, 0, 0, false)
}

// headerFloat returns the first parseable value among the given keys.
func headerFloat(headers map[string]string, keys ...string) (float64, bool) {
	for _, k := range keys {
		if v, ok := headers[k]; ok {
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}
