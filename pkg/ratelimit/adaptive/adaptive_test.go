package adaptive

import (
	"testing"
	"time"

	"github.com/vnykmshr/gopace/internal/testutil"
)

func TestNew(t *testing.T) {
	lim, err := New(10)
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, lim.Rate(), 10.0)
	testutil.AssertEqual(t, lim.MinRate(), 1.0)
	testutil.AssertEqual(t, lim.SafetyFactor(), 0.9)

	_, err = New(0)
	testutil.AssertError(t, err)
}

func TestNewWithConfig(t *testing.T) {
	lim, err := NewWithConfig(Config{
		InitialRate:  10,
		Period:       time.Second,
		MinRate:      0.1,
		SafetyFactor: 0.5,
	})
	testutil.AssertNoError(t, err)
	testutil.AssertEqual(t, lim.MinRate(), 0.1)
	testutil.AssertEqual(t, lim.SafetyFactor(), 0.5)

	_, err = NewWithConfig(Config{InitialRate: 10, SafetyFactor: 1.5})
	testutil.AssertError(t, err)
	_, err = NewWithConfig(Config{InitialRate: 10, MinRate: -1})
	testutil.AssertError(t, err)
}

func TestUpdateFromHeaders(t *testing.T) {
	tests := []struct {
		name     string
		minRate  float64
		headers  map[string]string
		wantRate float64
	}{
		{
			name:    "x-ratelimit headers",
			minRate: 0.1,
			headers: map[string]string{
				"X-RateLimit-Limit":     "100",
				"X-RateLimit-Remaining": "50",
				"X-RateLimit-Reset":     "60",
			},
			wantRate: 0.75, // (50 / 60) * 0.9
		},
		{
			name:    "floored at min rate",
			minRate: 0.1,
			headers: map[string]string{
				"X-RateLimit-Remaining": "5",
				"X-RateLimit-Reset":     "60",
			},
			wantRate: 0.1, // (5/60)*0.9 = 0.075 < floor
		},
		{
			name:    "retry-after floors the rate",
			minRate: 0.1,
			headers: map[string]string{
				"Retry-After": "30",
			},
			wantRate: 0.1,
		},
		{
			name:    "ratelimit family without prefix",
			minRate: 0.1,
			headers: map[string]string{
				"RateLimit-Remaining": "90",
				"RateLimit-Reset":     "10",
			},
			wantRate: 8.1, // (90 / 10) * 0.9
		},
		{
			name:     "no relevant headers",
			minRate:  0.1,
			headers:  map[string]string{"Content-Type": "application/json"},
			wantRate: 10,
		},
		{
			name:    "unparseable values ignored",
			minRate: 0.1,
			headers: map[string]string{
				"X-RateLimit-Remaining": "soon",
				"X-RateLimit-Reset":     "later",
			},
			wantRate: 10,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lim, err := NewWithConfig(Config{InitialRate: 10, MinRate: tt.minRate})
			testutil.AssertNoError(t, err)

			lim.UpdateFromHeaders(tt.headers)

			got := lim.Rate()
			if diff := got - tt.wantRate; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("rate = %v, want %v", got, tt.wantRate)
			}
		})
	}
}

func TestUpdateFromHeadersCaseInsensitive(t *testing.T) {
	lim, err := NewWithConfig(Config{InitialRate: 10, MinRate: 0.1})
	testutil.AssertNoError(t, err)

	lim.UpdateFromHeaders(map[string]string{
		"x-ratelimit-remaining": "30",
		"X-RATELIMIT-RESET":     "10",
	})
	if got := lim.Rate(); got < 2.69 || got > 2.71 {
		t.Errorf("rate = %v, want 2.7", got)
	}
}
