package media

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeISOWithPVD builds a minimal cooked image whose sector 16 carries an
// ISO 9660 primary volume descriptor.
func writeISOWithPVD(t *testing.T, path string, sectors int) {
	t.Helper()

	data := make([]byte, sectors*DataSectorSize)
	pvd := data[16*DataSectorSize:]

	pvd[0] = 1
	copy(pvd[1:6], "CD001")
	pvd[6] = 1
	copy(pvd[8:40], padded("PLAYSTATION", 32))
	copy(pvd[40:72], padded("TESTDISC", 32))
	binary.LittleEndian.PutUint32(pvd[80:84], uint32(sectors))
	binary.BigEndian.PutUint32(pvd[84:88], uint32(sectors))
	binary.LittleEndian.PutUint16(pvd[128:130], DataSectorSize)
	binary.BigEndian.PutUint16(pvd[130:132], DataSectorSize)

	require.NoError(t, os.WriteFile(path, data, 0644))
}

func padded(s string, width int) []byte {
	b := make([]byte, width)
	for i := range b {
		b[i] = ' '
	}
	copy(b, s)
	return b
}

func TestProbeVolume(t *testing.T) {
	t.Run("ReadsPrimaryDescriptor", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "disc.iso")
		writeISOWithPVD(t, path, 24)

		src, err := NewImageSource(path)
		require.NoError(t, err)
		defer func() { _ = src.Close() }()

		info, err := ProbeVolume(src)
		require.NoError(t, err)
		assert.Equal(t, "PLAYSTATION", info.SystemID)
		assert.Equal(t, "TESTDISC", info.VolumeID)
		assert.Equal(t, uint32(24), info.SpaceSize)
		assert.Equal(t, uint16(DataSectorSize), info.LogicalBlockSize)
	})

	t.Run("NoDescriptor", func(t *testing.T) {
		// A blank image has no "CD001" identifier at sector 16, like an
		// audio disc would.
		path := filepath.Join(t.TempDir(), "disc.iso")
		writeImage(t, path, 24, DataSectorSize)

		src, err := NewImageSource(path)
		require.NoError(t, err)
		defer func() { _ = src.Close() }()

		_, err = ProbeVolume(src)
		assert.Error(t, err)
	})

	t.Run("ImageTooSmall", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "disc.iso")
		writeImage(t, path, 10, DataSectorSize)

		src, err := NewImageSource(path)
		require.NoError(t, err)
		defer func() { _ = src.Close() }()

		_, err = ProbeVolume(src)
		assert.Error(t, err)
	})
}
