// Package readahead implements the asynchronous, prefetching sector-read
// engine that sits between a synchronous consumer (an emulated processor
// issuing sector requests) and a slow, blocking media backend.
//
// The engine hides media latency three ways:
//
//   - a direct-mapped cache of 16-sector blocks avoids redundant reads;
//   - a single background worker performs all blocking I/O, so the consumer
//     never waits on the medium directly;
//   - between on-demand requests the worker extends a sequential prefetch
//     window from the last served address, so sequential consumers mostly
//     hit the cache.
//
// One on-demand request may be in flight at a time, handed over through a
// single-slot mailbox. The worker also polls media presence and reports
// insertion/removal through an injected callback.
//
// Everything lives on an explicit Subsystem object with an injected
// media.Source; there is no package-level state.
package readahead

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/discread/internal/logger"
	"github.com/marmos91/discread/pkg/media"
)

// Block geometry. Sixteen sectors is the fixed granularity of one cache
// entry and one physical read burst; payload buffers are sized for raw
// sectors so they fit every mode.
const (
	blockSectors = 16
	blockBytes   = blockSectors * media.RawSectorSize
	blockMask    = ^uint32(blockSectors - 1)
)

// readTries bounds the retry loop around a failing backend read. After the
// last failed attempt the subsystem proceeds with whatever the buffer holds:
// on flaky optical hardware liveness beats correctness.
const readTries = 4

// Defaults applied by New when the corresponding Option is zero.
const (
	DefaultCacheBits      = 12 // 4096 slots, about 128 MiB of payload
	DefaultPrefetchBlocks = 16

	DefaultBusyWait     = time.Millisecond       // wait while prefetch budget remains
	DefaultIdleWait     = 250 * time.Millisecond // wait when fully idle
	DefaultAbsentPoll   = 10 * time.Millisecond  // presence re-check with no medium
	DefaultCompletePoll = 10 * time.Millisecond  // GetSector completion re-check
)

// Errors reported across the consumer boundary. Media-level read failures
// never appear here; they are absorbed by the retry policy.
var (
	// ErrOutOfRange marks a request beyond the medium's sector count.
	ErrOutOfRange = errors.New("readahead: sector out of range")

	// ErrRequestPending marks an on-demand request issued while the previous
	// one has not completed. Only one request may be in flight.
	ErrRequestPending = errors.New("readahead: request already pending")

	// ErrStopped marks an operation on a subsystem that is not running.
	ErrStopped = errors.New("readahead: subsystem stopped")

	// ErrAlreadyRunning marks a second Start without an intervening Stop.
	ErrAlreadyRunning = errors.New("readahead: already running")

	// ErrReentrantCall marks a request issued from inside the disc-change
	// callback, which runs on the worker goroutine and must not re-enter
	// the request path.
	ErrReentrantCall = errors.New("readahead: reentrant call from disc-change callback")
)

// Options configures a Subsystem. The zero value is usable: every field
// falls back to the package default.
type Options struct {
	// CacheBits sets the cache size to 2^CacheBits slots.
	CacheBits uint32

	// PrefetchBlocks is the read-ahead budget granted after each fulfilled
	// request.
	PrefetchBlocks int

	// BusyWait and IdleWait bound the worker's wait for new work: short
	// while prefetch budget remains, long otherwise.
	BusyWait time.Duration
	IdleWait time.Duration

	// AbsentPoll is the delay between presence checks while no medium is
	// inserted.
	AbsentPoll time.Duration

	// CompletePoll is the interval at which GetSector re-checks request
	// completion.
	CompletePoll time.Duration

	// OnDiscChange, if set, is invoked synchronously from the worker
	// goroutine on every media ready/not-ready transition. It must not call
	// back into RequestSector, GetSector or DirectReadSector.
	OnDiscChange func()

	// Metrics receives operational counters; nil disables collection.
	Metrics Metrics
}

func (o *Options) applyDefaults() {
	if o.CacheBits == 0 {
		o.CacheBits = DefaultCacheBits
	}
	if o.PrefetchBlocks == 0 {
		o.PrefetchBlocks = DefaultPrefetchBlocks
	}
	if o.BusyWait == 0 {
		o.BusyWait = DefaultBusyWait
	}
	if o.IdleWait == 0 {
		o.IdleWait = DefaultIdleWait
	}
	if o.AbsentPoll == 0 {
		o.AbsentPoll = DefaultAbsentPoll
	}
	if o.CompletePoll == 0 {
		o.CompletePoll = DefaultCompletePoll
	}
}

// pendingSlot is the single-slot mailbox between consumer and worker.
//
// The consumer arms it (sets the target and the flag) under mu; the worker
// copies the block into data and clears the flag under the same mutex, so a
// consumer that observes armed == false also observes the block the worker
// wrote. That is the happens-before edge the whole completion protocol
// rests on.
type pendingSlot struct {
	mu    sync.Mutex
	armed bool
	lsn   uint32
	mode  media.ReadMode
	data  [blockBytes]byte
}

// discState is mutated only by the worker's status monitor and read by
// consumer-facing accessors.
type discState struct {
	mu      sync.Mutex
	typ     media.DiscType
	tray    media.TrayStatus
	changed bool
}

// Subsystem is the read-ahead engine. Construct with New, run with Start,
// tear down with Stop. All methods are safe for concurrent use, with the
// single-flight restriction documented on RequestSector.
type Subsystem struct {
	src  media.Source
	opts Options

	cache    *sectorCache
	pending  pendingSlot
	prefetch prefetchState // worker-owned, no lock
	disc     discState

	running    atomic.Bool
	inCallback atomic.Bool
	wake       chan struct{}
	stop       chan struct{}
	wg         sync.WaitGroup

	// workBuf is the worker's scratch block; directBuf backs the
	// synchronous bypass path. Both are reused across reads so steady-state
	// operation allocates nothing.
	workBuf   [blockBytes]byte
	directMu  sync.Mutex
	directBuf [blockBytes]byte
}

// New builds a Subsystem around a media source. The subsystem is inert
// until Start is called.
func New(src media.Source, opts Options) (*Subsystem, error) {
	if src == nil {
		return nil, errors.New("readahead: nil media source")
	}
	opts.applyDefaults()

	s := &Subsystem{
		src:   src,
		opts:  opts,
		cache: newSectorCache(opts.CacheBits, opts.Metrics),
	}
	s.prefetch.max = opts.PrefetchBlocks
	s.disc.typ = media.DiscNone
	s.disc.tray = media.TrayOpen
	return s, nil
}

// Start resets the cache and launches the background worker.
func (s *Subsystem) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}

	s.cache.reset()
	s.prefetch.left = 0

	// Treat whatever is inserted at startup as a fresh disc so the first
	// presence check runs a full refresh.
	s.disc.mu.Lock()
	s.disc.changed = true
	s.disc.mu.Unlock()

	s.wake = make(chan struct{}, 1)
	s.stop = make(chan struct{})
	s.wg.Add(1)
	go s.worker()

	return nil
}

// Stop signals the worker and waits for it to exit. In-flight requests are
// not guaranteed to complete; GetSector waiters observe ErrStopped within
// one poll period.
func (s *Subsystem) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	close(s.stop)
	s.wg.Wait()
}

// RequestSector issues an asynchronous read for the block containing lsn.
//
// The address is aligned down to the 16-sector block boundary. On a cache
// hit the block is placed in the request buffer immediately and no worker
// round-trip happens; on a miss the worker is woken and the data becomes
// available asynchronously. Poll RequestComplete or call GetSector.
//
// Only one request may be outstanding: a call while the previous request is
// unfulfilled returns ErrRequestPending and leaves the in-flight request
// untouched.
func (s *Subsystem) RequestSector(lsn uint32, mode media.ReadMode) error {
	if s.inCallback.Load() {
		return ErrReentrantCall
	}
	if !s.running.Load() {
		return ErrStopped
	}
	if lsn >= s.src.SectorCount() {
		return ErrOutOfRange
	}

	block := lsn & blockMask

	s.pending.mu.Lock()
	if s.pending.armed {
		s.pending.mu.Unlock()
		return ErrRequestPending
	}
	s.pending.lsn = block
	s.pending.mode = mode

	if s.cache.fetch(block, mode, s.pending.data[:]) {
		s.pending.mu.Unlock()
		return nil
	}

	s.pending.armed = true
	s.pending.mu.Unlock()

	s.signalWake()
	return nil
}

// RequestComplete reports whether the last request has been fulfilled.
func (s *Subsystem) RequestComplete() bool {
	s.pending.mu.Lock()
	defer s.pending.mu.Unlock()
	return !s.pending.armed
}

// GetSector waits for the last request to complete and returns the
// requested sector's bytes in the requested mode.
//
// The returned slice aliases the shared request buffer: it is valid only
// until the next RequestSector call and must be consumed before one is
// issued. The wait re-checks completion every CompletePoll and returns
// ErrStopped if the subsystem stops first.
func (s *Subsystem) GetSector(lsn uint32, mode media.ReadMode) ([]byte, error) {
	start := time.Now()

	for {
		s.pending.mu.Lock()
		if !s.pending.armed {
			break
		}
		s.pending.mu.Unlock()

		if !s.running.Load() {
			return nil, ErrStopped
		}
		time.Sleep(s.opts.CompletePoll)
	}
	defer s.pending.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.ObserveRequestWait(time.Since(start))
	}

	return sectorWindow(s.pending.data[:], s.pending.lsn, lsn, mode)
}

// DirectReadSector synchronously reads one sector into out, bypassing the
// worker and the prefetch pipeline. The cache is still consulted and
// updated. out must hold mode.SectorSize() bytes.
func (s *Subsystem) DirectReadSector(lsn uint32, mode media.ReadMode, out []byte) error {
	if s.inCallback.Load() {
		return ErrReentrantCall
	}
	if lsn >= s.src.SectorCount() {
		return ErrOutOfRange
	}
	if len(out) < mode.SectorSize() {
		return errors.New("readahead: output buffer too small")
	}

	block := lsn & blockMask

	s.directMu.Lock()
	defer s.directMu.Unlock()

	if !s.cache.fetch(block, mode, s.directBuf[:]) {
		count := s.clampCount(block)
		s.readBlock(block, mode, count, s.directBuf[:])
		s.cache.update(block, mode, s.directBuf[:])
	}

	window, err := sectorWindow(s.directBuf[:], block, lsn, mode)
	if err != nil {
		return err
	}
	copy(out, window)
	return nil
}

// MediaType reports the backend's media type code.
func (s *Subsystem) MediaType() int {
	return s.src.MediaType()
}

// DiscType returns the classified type of the current medium.
func (s *Subsystem) DiscType() media.DiscType {
	s.disc.mu.Lock()
	defer s.disc.mu.Unlock()
	return s.disc.typ
}

// TrayStatus returns the current tray state.
func (s *Subsystem) TrayStatus() media.TrayStatus {
	s.disc.mu.Lock()
	defer s.disc.mu.Unlock()
	return s.disc.tray
}

// RefreshData re-classifies the inserted medium and invalidates the cache.
// Called by the worker on disc insertion; safe to call manually after an
// out-of-band media change.
func (s *Subsystem) RefreshData() {
	typ := media.DiscNone
	sectors := uint32(0)
	if s.src.Ready() {
		if sectors = s.src.SectorCount(); sectors > 0 {
			typ = media.Classify(s.src.MediaType())
		}
	}

	s.disc.mu.Lock()
	s.disc.typ = typ
	s.disc.tray = media.TrayClosed
	s.disc.mu.Unlock()

	s.cache.reset()

	logger.Info("readahead: disc refreshed", "type", typ.String(), "sectors", sectors)
}

// sectorWindow slices the sector at lsn out of a block buffer that starts
// at blockLSN, honoring the mode's per-sector stride and raw header offset.
func sectorWindow(block []byte, blockLSN, lsn uint32, mode media.ReadMode) ([]byte, error) {
	delta := int64(lsn) - int64(blockLSN)
	if delta < 0 || delta >= blockSectors {
		return nil, ErrOutOfRange
	}

	if mode == media.Mode2048 {
		off := media.DataSectorSize * int(delta)
		return block[off : off+media.DataSectorSize], nil
	}

	off := media.RawSectorSize*int(delta) + mode.RawOffset()
	return block[off : off+mode.SectorSize()], nil
}

// clampCount limits a block read to the sectors that exist on the medium.
func (s *Subsystem) clampCount(block uint32) uint32 {
	total := s.src.SectorCount()
	if block >= total {
		return 0
	}
	if left := total - block; left < blockSectors {
		return left
	}
	return blockSectors
}

// signalWake nudges the worker without blocking; a wake already queued is
// as good as this one.
func (s *Subsystem) signalWake() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}
