// Package metrics provides Prometheus instrumentation for gopace components.
//
// Components are not instrumented by default. Rate limiters gain metrics
// through their metrics wrapper constructors, and the executor through its
// Metrics config field. All metrics live under the "gopace" namespace.
package metrics
