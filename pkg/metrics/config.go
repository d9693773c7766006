package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Config holds configuration for metrics collection.
type Config struct {
	// Enabled controls whether metrics collection is active.
	Enabled bool

	// Registry is the Prometheus registry to use. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// DefaultConfig returns a default metrics configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:  true,
		Registry: prometheus.DefaultRegisterer,
	}
}

var (
	resolveMu sync.Mutex
	resolved  = map[prometheus.Registerer]*Registry{}
)

// Resolve returns the metric Registry backing this configuration. Registries
// are memoized per Registerer, so components sharing a Registerer share one
// set of metric instances instead of racing to register duplicates.
func (c Config) Resolve() *Registry {
	if c.Registry == nil {
		return DefaultRegistry
	}

	resolveMu.Lock()
	defer resolveMu.Unlock()

	if r, ok := resolved[c.Registry]; ok {
		return r
	}
	r := NewRegistry(c.Registry)
	resolved[c.Registry] = r
	return r
}
