package readahead

import "time"

// Metrics collects operational counters for the read-ahead subsystem.
//
// A nil Metrics disables collection with zero overhead; every call site
// checks for nil before recording. The Prometheus-backed implementation
// lives in pkg/metrics/prometheus to keep this package dependency-free.
type Metrics interface {
	// RecordCacheHit counts a lookup served from the sector cache.
	RecordCacheHit()

	// RecordCacheMiss counts a lookup that had to go to the medium.
	RecordCacheMiss()

	// RecordDemandRead counts a block read performed for a pending request.
	RecordDemandRead()

	// RecordPrefetchRead counts an autonomous read-ahead block read.
	RecordPrefetchRead()

	// RecordReadRetry counts a failed backend read attempt that was retried.
	RecordReadRetry()

	// RecordReadFailure counts a block read that exhausted all retries.
	RecordReadFailure()

	// RecordDiscChange counts a media ready/not-ready transition.
	RecordDiscChange()

	// ObserveRequestWait records how long a consumer waited in GetSector.
	ObserveRequestWait(d time.Duration)
}
