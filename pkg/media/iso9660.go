package media

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// ISO 9660 layout constants (ECMA-119).
const (
	// pvdSector is the LSN of the primary volume descriptor.
	pvdSector = 16

	vdTypePrimary = 1
)

// VolumeInfo holds the fields of an ISO 9660 primary volume descriptor that
// are useful for identifying a disc.
type VolumeInfo struct {
	// SystemID is the a-characters system identifier.
	SystemID string

	// VolumeID is the d-characters volume identifier.
	VolumeID string

	// SpaceSize is the number of logical blocks in the volume. For
	// 2048-byte logical blocks this matches the sector count of the track.
	SpaceSize uint32

	// LogicalBlockSize is the size of a logical block, normally 2048.
	LogicalBlockSize uint16
}

// ProbeVolume reads the primary volume descriptor from a Source.
//
// Returns an error if no medium is present, if the descriptor sector cannot
// be read, or if it does not carry the ISO 9660 standard identifier. Discs
// without an ISO 9660 track (audio CDs) are reported as errors, not crashes.
func ProbeVolume(src Source) (*VolumeInfo, error) {
	if !src.Ready() || src.SectorCount() <= pvdSector {
		return nil, fmt.Errorf("no readable medium present")
	}

	var sector [DataSectorSize]byte
	if !src.ReadSectors2048(pvdSector, 1, sector[:]) {
		return nil, fmt.Errorf("failed to read volume descriptor at sector %d", pvdSector)
	}

	// Byte 0 is the descriptor type, bytes 1-5 the standard identifier
	// "CD001", byte 6 the version.
	if string(sector[1:6]) != "CD001" {
		return nil, fmt.Errorf("no ISO 9660 volume descriptor found")
	}
	if sector[0] != vdTypePrimary {
		return nil, fmt.Errorf("unexpected volume descriptor type %d", sector[0])
	}

	// Both-endian fields store the little-endian value first.
	return &VolumeInfo{
		SystemID:         strings.TrimRight(string(sector[8:40]), " "),
		VolumeID:         strings.TrimRight(string(sector[40:72]), " "),
		SpaceSize:        binary.LittleEndian.Uint32(sector[80:84]),
		LogicalBlockSize: binary.LittleEndian.Uint16(sector[128:130]),
	}, nil
}
