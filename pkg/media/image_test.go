package media

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeImage creates an image file holding the given sector count, filling
// byte p of sector s with byte(s+p) so reads can be verified positionally.
func writeImage(t *testing.T, path string, sectors, sectorSize int) {
	t.Helper()

	data := make([]byte, sectors*sectorSize)
	for s := 0; s < sectors; s++ {
		for p := 0; p < sectorSize; p++ {
			data[s*sectorSize+p] = byte(s + p)
		}
	}
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func TestDetectFormat(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		size   int64
		format ImageFormat
	}{
		{"ISOExtension", "game.iso", 0, FormatCooked},
		{"BinExtension", "game.bin", 0, FormatRaw},
		{"ImgExtension", "game.img", 0, FormatRaw},
		{"RawExtension", "game.raw", 0, FormatRaw},
		{"UnknownExtensionRawSize", "game.dat", 2352 * 10, FormatRaw},
		{"UnknownExtensionCookedSize", "game.dat", 2048 * 10, FormatCooked},
		{"UnknownExtensionAmbiguousSize", "game.dat", 2352 * 2048, FormatCooked},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.format, detectFormat(tc.path, tc.size))
		})
	}
}

func TestImageSourceCooked(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disc.iso")
	writeImage(t, path, 32, DataSectorSize)

	src, err := NewImageSource(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	require.True(t, src.Ready())
	assert.Equal(t, uint32(32), src.SectorCount())
	assert.Equal(t, FormatCooked, src.Format())
	assert.Equal(t, -1, src.MediaType())

	t.Run("ReadCooked", func(t *testing.T) {
		buf := make([]byte, 2*DataSectorSize)
		require.True(t, src.ReadSectors2048(3, 2, buf))
		for p := 0; p < DataSectorSize; p++ {
			require.Equal(t, byte(3+p), buf[p], "sector 3 byte %d", p)
			require.Equal(t, byte(4+p), buf[DataSectorSize+p], "sector 4 byte %d", p)
		}
	})

	t.Run("SynthesizedRawFrame", func(t *testing.T) {
		buf := make([]byte, RawSectorSize)
		require.True(t, src.ReadSectors2352(16, 1, buf))

		// Sync field, then the BCD MSF header of LSN 16 (absolute 166:
		// 0 min, 2 sec, frame 16) and the mode byte.
		assert.Equal(t, rawSyncPattern[:], buf[:12])
		assert.Equal(t, []byte{0x00, 0x02, 0x16, 0x02}, buf[12:16])

		// Data submode in both subheader copies.
		assert.Equal(t, []byte{0, 0, 0x08, 0, 0, 0, 0x08, 0}, buf[16:24])

		// Payload lands at the mode-2 form-1 offset.
		for p := 0; p < DataSectorSize; p++ {
			require.Equal(t, byte(16+p), buf[24+p], "payload byte %d", p)
		}

		// The synthesized trailer carries no EDC/ECC.
		for p := 24 + DataSectorSize; p < RawSectorSize; p++ {
			require.Zero(t, buf[p], "trailer byte %d", p)
		}
	})

	t.Run("OutOfRange", func(t *testing.T) {
		buf := make([]byte, DataSectorSize)
		assert.False(t, src.ReadSectors2048(31, 2, buf))
		assert.False(t, src.ReadSectors2048(32, 1, buf))
	})

	t.Run("ShortBuffer", func(t *testing.T) {
		buf := make([]byte, DataSectorSize)
		assert.False(t, src.ReadSectors2048(0, 2, buf))
		assert.False(t, src.ReadSectors2352(0, 1, buf))
	})
}

func TestImageSourceRaw(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disc.bin")
	writeImage(t, path, 32, RawSectorSize)

	src, err := NewImageSource(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	assert.Equal(t, FormatRaw, src.Format())
	assert.Equal(t, uint32(32), src.SectorCount())
	assert.Equal(t, -1, src.MediaType())

	t.Run("ReadRaw", func(t *testing.T) {
		buf := make([]byte, RawSectorSize)
		require.True(t, src.ReadSectors2352(7, 1, buf))
		for p := 0; p < RawSectorSize; p++ {
			require.Equal(t, byte(7+p), buf[p], "byte %d", p)
		}
	})

	t.Run("ExtractedUserData", func(t *testing.T) {
		// Cooked reads of a raw image pull the 2048-byte window at the
		// mode-2 form-1 offset.
		buf := make([]byte, DataSectorSize)
		require.True(t, src.ReadSectors2048(7, 1, buf))
		for p := 0; p < DataSectorSize; p++ {
			require.Equal(t, byte(7+24+p), buf[p], "byte %d", p)
		}
	})
}

func TestImageSourceSwap(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "disc.iso")
	writeImage(t, path, 32, DataSectorSize)

	src, err := NewImageSource(path)
	require.NoError(t, err)
	defer func() { _ = src.Close() }()

	require.True(t, src.Ready())

	// Removing the file models an opened tray.
	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool {
		return !src.Ready()
	}, 5*time.Second, 5*time.Millisecond)
	assert.Zero(t, src.SectorCount())

	// Recreating it models inserting a different disc.
	writeImage(t, path, 48, DataSectorSize)
	require.Eventually(t, func() bool {
		return src.Ready() && src.SectorCount() == 48
	}, 5*time.Second, 5*time.Millisecond)
}
