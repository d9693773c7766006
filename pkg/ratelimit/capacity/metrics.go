package capacity

import (
	"context"

	"github.com/vnykmshr/gopace/pkg/metrics"
)

// MetricsLimiter wraps a Limiter with Prometheus metrics collection.
type MetricsLimiter struct {
	limiter  Limiter
	name     string
	registry *metrics.Registry
}

// NewWithMetrics creates a capacity limiter that records its activity in
// the given metrics configuration.
func NewWithMetrics(total int, name string, metricsConfig metrics.Config) (Limiter, error) {
	base, err := New(total)
	if err != nil {
		return nil, err
	}
	if !metricsConfig.Enabled {
		return base, nil
	}

	ml := &MetricsLimiter{
		limiter:  base,
		name:     name,
		registry: metricsConfig.Resolve(),
	}
	ml.registry.CapacityTotal.WithLabelValues(ml.name).Set(float64(total))
	return ml, nil
}

// Acquire blocks until a slot is free, then borrows it.
func (ml *MetricsLimiter) Acquire(ctx context.Context) error {
	ml.registry.CapacityWaiting.WithLabelValues(ml.name).Inc()
	err := ml.limiter.Acquire(ctx)
	ml.registry.CapacityWaiting.WithLabelValues(ml.name).Dec()

	if err == nil {
		ml.registry.CapacityBorrowed.WithLabelValues(ml.name).Set(float64(ml.limiter.Borrowed()))
	}
	return err
}

// TryAcquire borrows a slot without blocking, reporting success.
func (ml *MetricsLimiter) TryAcquire() bool {
	ok := ml.limiter.TryAcquire()
	if ok {
		ml.registry.CapacityBorrowed.WithLabelValues(ml.name).Set(float64(ml.limiter.Borrowed()))
	}
	return ok
}

// Release frees one borrowed slot.
func (ml *MetricsLimiter) Release() error {
	err := ml.limiter.Release()
	if err == nil {
		ml.registry.CapacityBorrowed.WithLabelValues(ml.name).Set(float64(ml.limiter.Borrowed()))
	}
	return err
}

// SetTotal changes the ceiling for future acquisitions.
func (ml *MetricsLimiter) SetTotal(total int) error {
	err := ml.limiter.SetTotal(total)
	if err == nil {
		ml.registry.CapacityTotal.WithLabelValues(ml.name).Set(float64(total))
	}
	return err
}

// Total returns the configured ceiling.
func (ml *MetricsLimiter) Total() int {
	return ml.limiter.Total()
}

// Borrowed returns the number of currently borrowed slots.
func (ml *MetricsLimiter) Borrowed() int {
	return ml.limiter.Borrowed()
}

// Waiting returns the number of callers blocked in Acquire.
func (ml *MetricsLimiter) Waiting() int {
	return ml.limiter.Waiting()
}
