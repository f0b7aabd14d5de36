// Package metrics provides Prometheus metrics for the gateway.
//
// Metrics are optional. Until InitRegistry is called every constructor
// returns a no-op implementation, so components can always record without
// checking whether collection is enabled.
//
// Usage:
//
//	metrics.InitRegistry()
//	m := metrics.New()
//	d := dispatch.New(cfg, handler, m)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the process-wide registry, including the Go runtime
// and process collectors. Later calls do nothing.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
