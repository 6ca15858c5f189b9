package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadMode(t *testing.T) {
	cases := []struct {
		mode      ReadMode
		size      int
		rawOffset int
		str       string
	}{
		{Mode2352, 2352, 0, "2352"},
		{Mode2340, 2340, 12, "2340"},
		{Mode2328, 2328, 24, "2328"},
		{Mode2048, 2048, 0, "2048"},
	}

	for _, tc := range cases {
		t.Run(tc.str, func(t *testing.T) {
			assert.Equal(t, tc.size, tc.mode.SectorSize())
			assert.Equal(t, tc.rawOffset, tc.mode.RawOffset())
			assert.Equal(t, tc.str, tc.mode.String())
		})
	}

	t.Run("WindowsFitInRawSector", func(t *testing.T) {
		for _, tc := range cases {
			if tc.mode == Mode2048 {
				continue
			}
			assert.LessOrEqual(t, tc.rawOffset+tc.size, RawSectorSize)
		}
	})
}

func TestClassify(t *testing.T) {
	assert.Equal(t, DiscCD, Classify(-1))
	assert.Equal(t, DiscDVDSingleLayer, Classify(0))
	assert.Equal(t, DiscDVDDualLayer, Classify(1))
	assert.Equal(t, DiscDVDDualLayer, Classify(42))
}

func TestDiscTypeString(t *testing.T) {
	assert.Equal(t, "No Disc", DiscNone.String())
	assert.Equal(t, "CD-ROM", DiscCD.String())
	assert.Equal(t, "Single-Layer DVD", DiscDVDSingleLayer.String())
	assert.Equal(t, "Double-Layer DVD", DiscDVDDualLayer.String())
}

func TestTrayStatusString(t *testing.T) {
	assert.Equal(t, "closed", TrayClosed.String())
	assert.Equal(t, "open", TrayOpen.String())
}
