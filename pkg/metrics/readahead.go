package metrics

import (
	"github.com/marmos91/discread/pkg/readahead"
)

// NewReadaheadMetrics creates a Prometheus-backed readahead.Metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called); the
// subsystem treats a nil Metrics as "collection off" with zero overhead.
func NewReadaheadMetrics() readahead.Metrics {
	if !IsEnabled() || newPrometheusReadaheadMetrics == nil {
		return nil
	}
	return newPrometheusReadaheadMetrics()
}

// newPrometheusReadaheadMetrics is supplied by pkg/metrics/prometheus at
// package initialization. The indirection keeps this package free of a
// dependency on the implementation while avoiding an import cycle over the
// registry.
var newPrometheusReadaheadMetrics func() readahead.Metrics

// RegisterReadaheadMetricsConstructor registers the Prometheus constructor.
// Called by pkg/metrics/prometheus during init.
func RegisterReadaheadMetricsConstructor(constructor func() readahead.Metrics) {
	newPrometheusReadaheadMetrics = constructor
}
