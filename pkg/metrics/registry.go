// Package metrics holds the process-wide Prometheus registry and the
// constructors for subsystem metric collectors.
//
// Metrics are opt-in: until InitRegistry is called, every constructor
// returns nil and instrumented code paths skip collection entirely, so a
// library consumer that never enables metrics pays nothing.
package metrics

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry atomic.Pointer[prometheus.Registry]
)

// InitRegistry creates the registry and enables metrics collection.
// Idempotent: repeated calls keep the first registry.
func InitRegistry() {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	registry.CompareAndSwap(nil, reg)
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return registry.Load() != nil
}

// GetRegistry returns the active registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry.Load()
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// exposition format. Returns nil when metrics are disabled.
func Handler() http.Handler {
	reg := registry.Load()
	if reg == nil {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
