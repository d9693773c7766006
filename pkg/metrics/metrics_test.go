package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	if r.RateLimitRequests == nil || r.CapacityBorrowed == nil ||
		r.QueueDepth == nil || r.TasksSubmitted == nil {
		t.Fatal("registry metrics should be initialized")
	}

	// Touch a metric from each subsystem and verify it is gathered.
	r.RateLimitRequests.WithLabelValues("token_bucket", "test").Inc()
	r.CapacityBorrowed.WithLabelValues("test").Set(3)
	r.QueueEnqueued.WithLabelValues("test").Add(2)
	r.TasksCompleted.WithLabelValues("test").Inc()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) < 4 {
		t.Errorf("expected at least 4 metric families, got %d", len(families))
	}
	for _, f := range families {
		name := f.GetName()
		if len(name) < 7 || name[:7] != "gopace_" {
			t.Errorf("metric %q should carry the gopace namespace", name)
		}
	}
}

func TestResolveMemoizesPerRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := Config{Enabled: true, Registry: reg}

	first := cfg.Resolve()
	second := cfg.Resolve()
	if first != second {
		t.Fatal("Resolve should return the same Registry for the same Registerer")
	}

	other := Config{Enabled: true, Registry: prometheus.NewRegistry()}
	if other.Resolve() == first {
		t.Fatal("distinct Registerers should get distinct Registries")
	}

	if (Config{Enabled: true}).Resolve() != DefaultRegistry {
		t.Fatal("nil Registerer should resolve to the default Registry")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.Enabled {
		t.Error("default config should enable metrics")
	}
	if cfg.Registry == nil {
		t.Error("default config should use the default registerer")
	}
}
