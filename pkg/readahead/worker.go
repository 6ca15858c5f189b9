package readahead

import (
	"time"

	"github.com/marmos91/discread/internal/logger"
	"github.com/marmos91/discread/pkg/media"
)

// worker is the background read loop. One iteration: check media presence,
// wait (briefly while prefetch budget remains, longer when idle) for a wake
// or timeout, pick a target block (a pending request wins over prefetch),
// read it with bounded retries, update the cache, then either fulfill the
// request or advance the prefetch window.
//
// Every wait is timeout-bounded so a Stop is always observed within one
// timeout period.
func (s *Subsystem) worker() {
	defer s.wg.Done()

	logger.Info("readahead: worker started")

	for s.running.Load() {
		if s.updateDiscStatus() {
			// No medium. Cheap poll, no read attempt.
			select {
			case <-s.stop:
			case <-time.After(s.opts.AbsentPoll):
			}
			continue
		}

		timeout := s.opts.IdleWait
		if s.prefetch.active() {
			timeout = s.opts.BusyWait
		}
		select {
		case <-s.stop:
		case <-s.wake:
		case <-time.After(timeout):
		}

		// Re-check after waking: a Stop may have raced the wake.
		if !s.running.Load() {
			break
		}

		lsn, mode, demand := s.target()
		if !demand && !s.prefetch.active() {
			continue
		}

		count := s.clampCount(lsn)
		if count == 0 && !demand {
			// Prefetch ran off the end of the medium; close the window.
			s.prefetch.left = 0
			continue
		}

		if count > 0 {
			s.readBlock(lsn, mode, count, s.workBuf[:])
			s.cache.update(lsn, mode, s.workBuf[:])
		}

		if demand {
			if s.opts.Metrics != nil {
				s.opts.Metrics.RecordDemandRead()
			}

			// Block copy and flag clear share one critical section so a
			// consumer that sees completion also sees the data.
			s.pending.mu.Lock()
			copy(s.pending.data[:], s.workBuf[:])
			s.pending.armed = false
			s.pending.mu.Unlock()

			s.prefetch.restart(lsn, mode)
		} else {
			if s.opts.Metrics != nil {
				s.opts.Metrics.RecordPrefetchRead()
			}
			s.prefetch.advance()
		}
	}

	logger.Info("readahead: worker stopped")
}

// target selects this iteration's block: the pending request if one is
// armed, otherwise the prefetch window's next address.
func (s *Subsystem) target() (lsn uint32, mode media.ReadMode, demand bool) {
	s.pending.mu.Lock()
	if s.pending.armed {
		lsn, mode, demand = s.pending.lsn, s.pending.mode, true
	}
	s.pending.mu.Unlock()

	if !demand {
		lsn, mode = s.prefetch.next, s.prefetch.mode
	}
	return lsn, mode, demand
}

// readBlock performs the blocking backend read with bounded retries. A
// persistent failure leaves buf as-is and returns anyway: the subsystem
// propagates stale bytes rather than stalling the consumer.
func (s *Subsystem) readBlock(lsn uint32, mode media.ReadMode, count uint32, buf []byte) {
	for try := 0; try < readTries; try++ {
		var ok bool
		if mode == media.Mode2048 {
			ok = s.src.ReadSectors2048(lsn, count, buf)
		} else {
			ok = s.src.ReadSectors2352(lsn, count, buf)
		}
		if ok {
			return
		}
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordReadRetry()
		}
		logger.Debug("readahead: block read attempt failed",
			"lsn", lsn, "mode", mode.String(), "try", try+1)
	}

	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordReadFailure()
	}
	logger.Warn("readahead: block read failed, serving buffer as-is",
		"lsn", lsn, "mode", mode.String(), "tries", readTries)
}

// updateDiscStatus polls media presence and handles ready transitions.
// Returns true while no medium is present.
//
// Transition table:
//
//	ready -> absent : mark changed, type NoDisc, tray open, notify
//	absent -> ready : refresh data (reclassify, reset cache), tray closed,
//	                  clear changed, notify
//	steady state    : no-op
func (s *Subsystem) updateDiscStatus() bool {
	ready := s.src.Ready()

	var notify, refresh bool

	s.disc.mu.Lock()
	if !ready {
		if !s.disc.changed {
			s.disc.changed = true
			s.disc.typ = media.DiscNone
			s.disc.tray = media.TrayOpen
			notify = true
		}
	} else if s.disc.changed {
		s.disc.changed = false
		refresh = true
		notify = true
	}
	s.disc.mu.Unlock()

	if refresh {
		s.RefreshData()
	}
	if notify {
		if s.opts.Metrics != nil {
			s.opts.Metrics.RecordDiscChange()
		}
		s.notifyDiscChange(ready)
	}

	return !ready
}

// notifyDiscChange runs the injected callback on the worker goroutine. The
// inCallback flag rejects re-entrant request calls for the duration.
func (s *Subsystem) notifyDiscChange(ready bool) {
	logger.Info("readahead: disc change", "ready", ready)
	if s.opts.OnDiscChange == nil {
		return
	}
	s.inCallback.Store(true)
	s.opts.OnDiscChange()
	s.inCallback.Store(false)
}
