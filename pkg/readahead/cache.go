package readahead

import (
	"sync"

	"github.com/marmos91/discread/pkg/media"
)

// sectorCache is a direct-mapped cache of 16-sector blocks keyed by
// (block-aligned LSN, read mode).
//
// Each key maps to exactly one slot through slotIndex; two keys that fold to
// the same slot silently evict each other (last write wins). There is no
// chaining and no probing: the cache trades hit rate for a fixed memory
// footprint and O(1) lookups, which is the right trade for a read-ahead
// buffer whose contents are cheap to re-read.
//
// All payload buffers are sized for raw sectors regardless of mode, so a
// slot never reallocates; smaller modes use a prefix of the buffer.
//
// One mutex covers the whole slot array. Copies are bounded (one block), so
// the coarse lock is not a contention point between the single worker and a
// single consumer.
type sectorCache struct {
	mu    sync.Mutex
	bits  uint32
	slots []cacheSlot

	metrics Metrics
}

// cacheSlot tags a payload with its key. lsn == -1 marks an empty slot; the
// tag is int64 so the sentinel can never collide with a real 32-bit LSN.
type cacheSlot struct {
	lsn  int64
	mode media.ReadMode
	data [blockBytes]byte
}

// newSectorCache allocates a 2^bits-slot cache with every slot invalid.
func newSectorCache(bits uint32, metrics Metrics) *sectorCache {
	c := &sectorCache{
		bits:    bits,
		slots:   make([]cacheSlot, 1<<bits),
		metrics: metrics,
	}
	c.reset()
	return c
}

// slotIndex folds a 32-bit block address into the low bits of the index.
//
// The address is consumed in bits-wide chunks, low chunk first, XORed
// together until the 32-bit width is exhausted, then XORed with the mode and
// masked. Deterministic and cheap; collisions are expected and resolved by
// the last-write-wins policy above.
func (c *sectorCache) slotIndex(lsn uint32, mode media.ReadMode) uint32 {
	mask := uint32(1)<<c.bits - 1

	var t uint32
	v := lsn
	for i := int32(32); i >= 0; i -= int32(c.bits) {
		t ^= v & mask
		v >>= c.bits
	}

	return (t ^ uint32(mode)) & mask
}

// fetch copies the cached block for (lsn, mode) into out and reports a hit.
// On a miss, out is left untouched.
func (c *sectorCache) fetch(lsn uint32, mode media.ReadMode, out []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := &c.slots[c.slotIndex(lsn, mode)]
	if slot.lsn == int64(lsn) && slot.mode == mode {
		copy(out, slot.data[:])
		if c.metrics != nil {
			c.metrics.RecordCacheHit()
		}
		return true
	}

	if c.metrics != nil {
		c.metrics.RecordCacheMiss()
	}
	return false
}

// update stores a just-read block, unconditionally overwriting whatever the
// target slot held before.
func (c *sectorCache) update(lsn uint32, mode media.ReadMode, in []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	slot := &c.slots[c.slotIndex(lsn, mode)]
	copy(slot.data[:], in)
	slot.lsn = int64(lsn)
	slot.mode = mode
}

// reset invalidates every slot. Called at startup and whenever the medium
// changes, since blocks cached from a previous disc are garbage.
func (c *sectorCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.slots {
		c.slots[i].lsn = -1
		c.slots[i].mode = -1
	}
}
