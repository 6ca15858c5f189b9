package readahead

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/discread/pkg/media"
)

// fillBlock builds a block-sized payload whose bytes encode both the seed and
// the position, so any copy or offset mistake corrupts the pattern.
func fillBlock(seed byte) []byte {
	b := make([]byte, blockBytes)
	for i := range b {
		b[i] = seed + byte(i)
	}
	return b
}

func TestSlotIndex(t *testing.T) {
	c := newSectorCache(12, nil)

	t.Run("Deterministic", func(t *testing.T) {
		for _, lsn := range []uint32{0, 16, 4096, 1 << 20, ^uint32(0) & blockMask} {
			first := c.slotIndex(lsn, media.Mode2048)
			assert.Equal(t, first, c.slotIndex(lsn, media.Mode2048))
			assert.Less(t, first, uint32(1<<12))
		}
	})

	t.Run("ModeChangesSlot", func(t *testing.T) {
		// Mode participates in the hash, so the same address in a different
		// mode lands elsewhere (the mode values differ in the low bits).
		assert.NotEqual(t,
			c.slotIndex(16, media.Mode2352),
			c.slotIndex(16, media.Mode2048))
	})

	t.Run("KnownCollision", func(t *testing.T) {
		// 16 and 16+2^12+2^24 fold to the same slot with 12 index bits: the
		// extra bits land on chunk boundaries and XOR away pairwise.
		const colliding = 16 + 1<<12 + 1<<24
		assert.Equal(t,
			c.slotIndex(16, media.Mode2048),
			c.slotIndex(colliding, media.Mode2048))
	})
}

func TestCacheFetchUpdate(t *testing.T) {
	t.Run("MissOnEmptyCache", func(t *testing.T) {
		c := newSectorCache(8, nil)

		out := fillBlock(0xAA)
		require.False(t, c.fetch(0, media.Mode2048, out))

		// A miss must not disturb the caller's buffer.
		assert.Equal(t, fillBlock(0xAA), out)
	})

	t.Run("UpdateThenFetch", func(t *testing.T) {
		c := newSectorCache(8, nil)

		in := fillBlock(1)
		c.update(16, media.Mode2352, in)

		out := make([]byte, blockBytes)
		require.True(t, c.fetch(16, media.Mode2352, out))
		assert.Equal(t, in, out)
	})

	t.Run("ModeMismatchMisses", func(t *testing.T) {
		c := newSectorCache(8, nil)

		c.update(16, media.Mode2352, fillBlock(1))

		out := make([]byte, blockBytes)
		assert.False(t, c.fetch(16, media.Mode2048, out))
	})

	t.Run("LSNZeroIsNotEmpty", func(t *testing.T) {
		// The empty sentinel is -1, so a block cached at address 0 is a
		// legitimate entry.
		c := newSectorCache(8, nil)

		c.update(0, media.Mode2048, fillBlock(7))

		out := make([]byte, blockBytes)
		assert.True(t, c.fetch(0, media.Mode2048, out))
	})

	t.Run("CollisionLastWriteWins", func(t *testing.T) {
		c := newSectorCache(12, nil)
		const colliding = 16 + 1<<12 + 1<<24

		c.update(16, media.Mode2048, fillBlock(1))
		c.update(colliding, media.Mode2048, fillBlock(2))

		out := make([]byte, blockBytes)
		require.True(t, c.fetch(colliding, media.Mode2048, out))
		assert.Equal(t, fillBlock(2), out)

		// The earlier entry was evicted.
		assert.False(t, c.fetch(16, media.Mode2048, out))
	})
}

func TestCacheReset(t *testing.T) {
	c := newSectorCache(8, nil)

	c.update(16, media.Mode2048, fillBlock(1))
	c.update(32, media.Mode2352, fillBlock(2))
	c.reset()

	out := make([]byte, blockBytes)
	assert.False(t, c.fetch(16, media.Mode2048, out))
	assert.False(t, c.fetch(32, media.Mode2352, out))
}
