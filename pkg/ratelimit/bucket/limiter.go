package bucket

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/vnykmshr/gopace/pkg/common/validation"
)

// Limiter is a token bucket rate limiter. The balance refills continuously
// as a pure function of elapsed time, evaluated lazily on each Acquire;
// there is no background refill timer.
//
// Acquire debits speculatively: when the balance is short, the full amount
// is debited anyway and the caller is told how long to wait before treating
// the tokens as consumed. This keeps concurrent callers from double-spending
// the same pending tokens.
type Limiter interface {
	// Acquire debits tokens from the bucket and returns the duration the
	// caller must wait before the tokens may be treated as consumed. A zero
	// duration means the debit was satisfied immediately. Requests larger
	// than the bucket capacity never fail; they only wait longer.
	Acquire(tokens float64) time.Duration

	// Wait acquires one token and sleeps for the required duration. It
	// returns an error if the context is canceled first, crediting the
	// unconsumed tokens back to the bucket.
	Wait(ctx context.Context) error

	// WaitN acquires n tokens and sleeps for the required duration.
	WaitN(ctx context.Context, tokens float64) error

	// Tokens returns the number of tokens currently available.
	Tokens() float64

	// Rate returns the number of tokens replenished per period.
	Rate() float64

	// Period returns the replenishment period.
	Period() time.Duration

	// MaxTokens returns the bucket capacity.
	MaxTokens() float64

	// Update changes the limiter parameters at runtime. Zero-valued
	// parameters keep their current setting. Reducing the rate scales the
	// current balance proportionally; resetTokens refills the bucket to
	// capacity after the other updates apply.
	Update(rate float64, period time.Duration, maxTokens float64, resetTokens bool)
}

// Clock provides the current time. It can be mocked for testing.
type Clock interface {
	Now() time.Time
}

// SystemClock implements Clock using the system time.
type SystemClock struct{}

// Now returns the current system time.
func (SystemClock) Now() time.Time {
	return time.Now()
}

// Config holds configuration options for creating a new Limiter.
type Config struct {
	// Rate is the number of tokens added per Period.
	Rate float64

	// Period is the replenishment period. If zero, one second is used.
	Period time.Duration

	// MaxTokens is the bucket capacity. If zero, Rate is used.
	MaxTokens float64

	// InitialTokens is the number of tokens to start with. If nil, the
	// bucket starts at full capacity. Use StartingTokens to set a value,
	// including an explicit zero for an empty bucket.
	InitialTokens *float64

	// Clock provides the current time. If nil, SystemClock is used.
	Clock Clock
}

// tokenBucket implements the Limiter interface.
type tokenBucket struct {
	mu         sync.Mutex
	rate       float64
	period     time.Duration
	maxTokens  float64
	tokens     float64
	lastRefill time.Time
	clock      Clock
}

// StartingTokens returns a pointer for Config.InitialTokens.
func StartingTokens(tokens float64) *float64 {
	return &tokens
}

// New creates a token bucket limiter replenishing rate tokens per period,
// starting at full capacity.
func New(rate float64, period time.Duration) (Limiter, error) {
	return NewWithConfig(Config{
		Rate:   rate,
		Period: period,
	})
}

// NewWithConfig creates a token bucket limiter with custom configuration.
func NewWithConfig(config Config) (Limiter, error) {
	tb, err := newTokenBucket(config)
	if err != nil {
		return nil, err
	}
	return tb, nil
}

func newTokenBucket(config Config) (*tokenBucket, error) {
	if err := validation.ValidatePositiveFloat("bucket", "rate", config.Rate); err != nil {
		return nil, err
	}
	if config.Period == 0 {
		config.Period = time.Second
	}
	if config.Period < 0 {
		return nil, validation.ValidatePositiveFloat("bucket", "period", config.Period.Seconds())
	}
	if err := validation.ValidateNonNegative("bucket", "maxTokens", config.MaxTokens); err != nil {
		return nil, err
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = config.Rate
	}
	if config.Clock == nil {
		config.Clock = SystemClock{}
	}

	initial := config.MaxTokens
	if config.InitialTokens != nil {
		if err := validation.ValidateNonNegative("bucket", "initialTokens", *config.InitialTokens); err != nil {
			return nil, err
		}
		initial = math.Min(*config.InitialTokens, config.MaxTokens)
	}

	return &tokenBucket{
		rate:       config.Rate,
		period:     config.Period,
		maxTokens:  config.MaxTokens,
		tokens:     initial,
		lastRefill: config.Clock.Now(),
		clock:      config.Clock,
	}, nil
}
