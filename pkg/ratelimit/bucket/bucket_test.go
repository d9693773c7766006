package bucket

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/vnykmshr/gopace/internal/testutil"
)

// MockClock implements Clock for testing
type MockClock struct {
	now time.Time
}

func (m *MockClock) Now() time.Time {
	return m.now
}

func (m *MockClock) Advance(d time.Duration) {
	m.now = m.now.Add(d)
}

func approxEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		period  time.Duration
		wantErr bool
	}{
		{"valid parameters", 10, time.Second, false},
		{"sub-second period", 5, 100 * time.Millisecond, false},
		{"zero period defaults", 10, 0, false},
		{"zero rate", 0, time.Second, true},
		{"negative rate", -1, time.Second, true},
		{"negative period", 10, -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limiter, err := New(tt.rate, tt.period)
			if tt.wantErr {
				testutil.AssertError(t, err)
				if limiter != nil {
					t.Error("expected nil limiter on error")
				}
				return
			}
			testutil.AssertNoError(t, err)
			testutil.AssertEqual(t, limiter.Rate(), tt.rate)
			// A fresh limiter starts at full capacity (max defaults to rate).
			testutil.AssertEqual(t, limiter.MaxTokens(), tt.rate)
			testutil.AssertEqual(t, limiter.Tokens(), tt.rate)
		})
	}
}

func TestNewWithConfig(t *testing.T) {
	clock := &MockClock{now: time.Now()}
	limiter, err := NewWithConfig(Config{
		Rate:          10,
		Period:        time.Second,
		MaxTokens:     20,
		InitialTokens: StartingTokens(5),
		Clock:         clock,
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, limiter.MaxTokens(), 20.0)
	testutil.AssertEqual(t, limiter.Tokens(), 5.0)
}

func TestInitialTokensDefaults(t *testing.T) {
	clock := &MockClock{now: time.Now()}

	// InitialTokens left nil: the bucket starts at full capacity.
	full, err := NewWithConfig(Config{Rate: 10, MaxTokens: 20, Clock: clock})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, full.Tokens(), 20.0)

	// An explicit zero starts the bucket empty.
	empty, err := NewWithConfig(Config{
		Rate:          10,
		MaxTokens:     20,
		InitialTokens: StartingTokens(0),
		Clock:         clock,
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, empty.Tokens(), 0.0)

	// Values above capacity clamp; negative values are rejected.
	clamped, err := NewWithConfig(Config{
		Rate:          10,
		MaxTokens:     20,
		InitialTokens: StartingTokens(50),
		Clock:         clock,
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, clamped.Tokens(), 20.0)

	_, err = NewWithConfig(Config{Rate: 10, InitialTokens: StartingTokens(-1), Clock: clock})
	testutil.AssertError(t, err)
}

func TestAcquireImmediate(t *testing.T) {
	clock := &MockClock{now: time.Now()}
	limiter, err := NewWithConfig(Config{Rate: 10, Period: time.Second, Clock: clock})
	testutil.AssertNoError(t, err)

	wait := limiter.Acquire(5)
	testutil.AssertEqual(t, wait, time.Duration(0))
	testutil.AssertEqual(t, limiter.Tokens(), 5.0)
}

func TestAcquireDeficit(t *testing.T) {
	clock := &MockClock{now: time.Now()}
	limiter, err := NewWithConfig(Config{
		Rate:          10,
		Period:        time.Second,
		InitialTokens: StartingTokens(5),
		Clock:         clock,
	})
	testutil.AssertNoError(t, err)

	// 5 tokens short at 10 tokens/s: 0.5s wait, debited speculatively.
	wait := limiter.Acquire(10)
	testutil.AssertEqual(t, wait, 500*time.Millisecond)
	if got := limiter.Tokens(); !approxEqual(got, -5) {
		t.Errorf("speculative debit should leave -5 tokens, got %v", got)
	}

	// A second caller sees the debited balance and waits longer.
	wait = limiter.Acquire(1)
	testutil.AssertEqual(t, wait, 600*time.Millisecond)
}

func TestAcquireFromEmptyBucket(t *testing.T) {
	clock := &MockClock{now: time.Now()}
	limiter, err := NewWithConfig(Config{
		Rate:          2,
		Period:        time.Second,
		InitialTokens: StartingTokens(0),
		Clock:         clock,
	})
	testutil.AssertNoError(t, err)

	// k tokens from an empty bucket: wait = k * period / rate.
	wait := limiter.Acquire(2)
	testutil.AssertEqual(t, wait, time.Second)

	// Waiting that duration exactly covers the speculative debt.
	clock.Advance(wait)
	testutil.AssertEqual(t, limiter.Tokens(), 0.0)

	// Tokens accrued beyond the debt are immediately spendable.
	clock.Advance(250 * time.Millisecond)
	testutil.AssertEqual(t, limiter.Acquire(0.5), time.Duration(0))
}

func TestAcquireAboveCapacity(t *testing.T) {
	clock := &MockClock{now: time.Now()}
	limiter, err := NewWithConfig(Config{Rate: 10, Period: time.Second, Clock: clock})
	testutil.AssertNoError(t, err)

	// Requests above capacity never fail; the wait is computed from an
	// empty bucket regardless of the current balance.
	wait := limiter.Acquire(30)
	testutil.AssertEqual(t, wait, 3*time.Second)
}

func TestLazyRefill(t *testing.T) {
	clock := &MockClock{now: time.Now()}
	limiter, err := NewWithConfig(Config{
		Rate:          10,
		Period:        time.Second,
		InitialTokens: StartingTokens(0),
		Clock:         clock,
	})
	testutil.AssertNoError(t, err)

	clock.Advance(500 * time.Millisecond)
	if got := limiter.Tokens(); !approxEqual(got, 5) {
		t.Errorf("after 0.5s at 10/s expected 5 tokens, got %v", got)
	}

	// Refill never exceeds capacity.
	clock.Advance(time.Hour)
	testutil.AssertEqual(t, limiter.Tokens(), 10.0)
}

func TestNonSecondPeriod(t *testing.T) {
	clock := &MockClock{now: time.Now()}
	limiter, err := NewWithConfig(Config{
		Rate:          100,
		Period:        time.Minute,
		InitialTokens: StartingTokens(0),
		MaxTokens:     100,
		Clock:         clock,
	})
	testutil.AssertNoError(t, err)

	// 100 tokens per minute: 50 tokens need 30 seconds.
	wait := limiter.Acquire(50)
	testutil.AssertEqual(t, wait, 30*time.Second)

	clock.Advance(time.Minute)
	if got := limiter.Tokens(); !approxEqual(got, 50) {
		t.Errorf("after 1m expected 50 tokens (100 refilled - 50 debited), got %v", got)
	}
}

func TestUpdate(t *testing.T) {
	clock := &MockClock{now: time.Now()}
	limiter, err := NewWithConfig(Config{
		Rate:      20,
		Period:    time.Second,
		MaxTokens: 20,
		Clock:     clock,
	})
	testutil.AssertNoError(t, err)

	// Drain half the bucket, then halve the rate: the balance scales
	// proportionally (10 * 10/20 = 5).
	limiter.Acquire(10)
	limiter.Update(10, 0, 0, false)
	testutil.AssertEqual(t, limiter.Rate(), 10.0)
	if got := limiter.Tokens(); !approxEqual(got, 5) {
		t.Errorf("rate cut should scale tokens to 5, got %v", got)
	}

	// Raising max alone leaves the balance; resetTokens refills.
	limiter.Update(0, 2*time.Second, 30, false)
	testutil.AssertEqual(t, limiter.Period(), 2*time.Second)
	testutil.AssertEqual(t, limiter.MaxTokens(), 30.0)
	limiter.Update(0, 0, 0, true)
	testutil.AssertEqual(t, limiter.Tokens(), 30.0)
}

func TestWaitN(t *testing.T) {
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()

	limiter, err := New(1000, time.Second)
	testutil.AssertNoError(t, err)

	// Plenty available: returns immediately.
	testutil.AssertNoError(t, limiter.WaitN(ctx, 10))

	// Non-positive requests are a no-op.
	testutil.AssertNoError(t, limiter.WaitN(ctx, 0))
}

func TestWaitNCanceled(t *testing.T) {
	limiter, err := NewWithConfig(Config{
		Rate:          1,
		Period:        time.Second,
		InitialTokens: StartingTokens(0),
	})
	testutil.AssertNoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// 10 tokens at 1/s would take 10s; the context expires first and the
	// tokens are credited back.
	err = limiter.WaitN(ctx, 10)
	testutil.AssertError(t, err)
	if got := limiter.Tokens(); got < -0.5 {
		t.Errorf("canceled wait should credit tokens back, balance %v", got)
	}
}

func TestConcurrentAcquireSerialized(t *testing.T) {
	clock := &MockClock{now: time.Now()}
	limiter, err := NewWithConfig(Config{
		Rate:          1,
		Period:        time.Second,
		MaxTokens:     100,
		InitialTokens: StartingTokens(100),
		Clock:         clock,
	})
	testutil.AssertNoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 10; j++ {
				limiter.Acquire(1)
			}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	// 100 debits of 1 token with no elapsed time: balance exactly 0, no
	// lost updates.
	if got := limiter.Tokens(); !approxEqual(got, 0) {
		t.Errorf("expected 0 tokens after 100 serialized debits, got %v", got)
	}
}
