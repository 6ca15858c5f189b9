// Package prometheus implements the metric collector interfaces with
// promauto-registered Prometheus collectors.
//
// Importing this package (usually blank, from main) registers its
// constructors with pkg/metrics.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/discread/pkg/metrics"
	"github.com/marmos91/discread/pkg/readahead"
)

func init() {
	metrics.RegisterReadaheadMetricsConstructor(newReadaheadMetrics)
}

// readaheadMetrics is the Prometheus implementation of readahead.Metrics.
type readaheadMetrics struct {
	cacheHits    prometheus.Counter
	cacheMisses  prometheus.Counter
	blockReads   *prometheus.CounterVec
	readRetries  prometheus.Counter
	readFailures prometheus.Counter
	discChanges  prometheus.Counter
	requestWait  prometheus.Histogram
}

func newReadaheadMetrics() readahead.Metrics {
	reg := metrics.GetRegistry()

	return &readaheadMetrics{
		cacheHits: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "discread_cache_hits_total",
			Help: "Sector cache lookups served without touching the medium",
		}),
		cacheMisses: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "discread_cache_misses_total",
			Help: "Sector cache lookups that required a media read",
		}),
		blockReads: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "discread_block_reads_total",
			Help: "Blocks read from the medium by trigger",
		}, []string{"trigger"}), // "demand", "prefetch"
		readRetries: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "discread_read_retries_total",
			Help: "Failed backend read attempts that were retried",
		}),
		readFailures: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "discread_read_failures_total",
			Help: "Block reads that exhausted all retries",
		}),
		discChanges: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "discread_disc_changes_total",
			Help: "Media ready/not-ready transitions observed",
		}),
		requestWait: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "discread_request_wait_seconds",
			Help:    "Time consumers spent waiting for request completion",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
	}
}

func (m *readaheadMetrics) RecordCacheHit() { m.cacheHits.Inc() }

func (m *readaheadMetrics) RecordCacheMiss() { m.cacheMisses.Inc() }

func (m *readaheadMetrics) RecordReadRetry() { m.readRetries.Inc() }

func (m *readaheadMetrics) RecordReadFailure() { m.readFailures.Inc() }

func (m *readaheadMetrics) RecordDiscChange() { m.discChanges.Inc() }

func (m *readaheadMetrics) RecordDemandRead() {
	m.blockReads.WithLabelValues("demand").Inc()
}

func (m *readaheadMetrics) RecordPrefetchRead() {
	m.blockReads.WithLabelValues("prefetch").Inc()
}

func (m *readaheadMetrics) ObserveRequestWait(d time.Duration) {
	m.requestWait.Observe(d.Seconds())
}
