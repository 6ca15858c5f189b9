package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/discread/internal/bytesize"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "INFO", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, uint32(12), cfg.Cache.Bits)
	assert.Equal(t, 16, cfg.Prefetch.MaxBlocks)
	assert.Equal(t, time.Millisecond, cfg.Timing.BusyWait)
	assert.Equal(t, 250*time.Millisecond, cfg.Timing.IdleWait)
	assert.False(t, cfg.Metrics.Enabled)

	require.NoError(t, Validate(&cfg))
}

func TestLoad(t *testing.T) {
	t.Run("MissingFileUsesDefaults", func(t *testing.T) {
		cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		require.NoError(t, err)
		assert.Equal(t, Default(), *cfg)
	})

	t.Run("PartialFileKeepsDefaults", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
cache:
  bits: 8
timing:
  idle_wait: 100ms
`), 0644))

		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, uint32(8), cfg.Cache.Bits)
		assert.Equal(t, 100*time.Millisecond, cfg.Timing.IdleWait)

		// Untouched sections keep their defaults.
		assert.Equal(t, "INFO", cfg.Logging.Level)
		assert.Equal(t, 16, cfg.Prefetch.MaxBlocks)
		assert.Equal(t, time.Millisecond, cfg.Timing.BusyWait)
	})

	t.Run("InvalidValuesRejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
cache:
  bits: 30
`), 0644))

		_, err := Load(path)
		assert.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	t.Run("CacheBitsTooLarge", func(t *testing.T) {
		cfg := Default()
		cfg.Cache.Bits = 21
		assert.Error(t, Validate(&cfg))
	})

	t.Run("NegativePrefetch", func(t *testing.T) {
		cfg := Default()
		cfg.Prefetch.MaxBlocks = -1
		assert.Error(t, Validate(&cfg))
	})

	t.Run("NegativeTiming", func(t *testing.T) {
		cfg := Default()
		cfg.Timing.CompletePoll = -time.Millisecond
		assert.Error(t, Validate(&cfg))
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	cfg := Default()
	cfg.Cache.Bits = 10
	cfg.Metrics.Enabled = true
	require.NoError(t, Save(&cfg, path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)
}

func TestCacheBytes(t *testing.T) {
	// One slot holds a 16-sector raw block (37632 bytes).
	c := CacheConfig{Bits: 0}
	assert.Equal(t, bytesize.ByteSize(37632), c.CacheBytes())

	c.Bits = 12
	assert.Equal(t, bytesize.ByteSize(37632<<12), c.CacheBytes())
}
