// Package media defines the backend interface for optical media sources and
// the sector formats the read-ahead subsystem understands.
//
// A Source is anything that can report media presence, its sector count, and
// read bursts of sectors in either cooked (2048 bytes/sector) or raw
// (2352 bytes/sector) form: a physical drive, a mounted image file, or a test
// double. The read-ahead engine in pkg/readahead treats the Source as a slow,
// blocking collaborator and never assumes reads are cheap.
package media

// Sector sizes for the supported formats.
const (
	// DataSectorSize is the user-data payload of a sector (cooked reads).
	DataSectorSize = 2048

	// RawSectorSize is a full raw sector including sync, header, subheader
	// and error-correction trailer.
	RawSectorSize = 2352
)

// ReadMode selects how much of each sector a read returns.
//
// The numeric values are fixed: they are part of the consumer-facing
// contract and participate in the cache hash.
type ReadMode int32

const (
	// Mode2352 returns the full raw sector. This is the default mode.
	Mode2352 ReadMode = iota

	// Mode2340 returns the raw sector minus the 12-byte sync field.
	Mode2340

	// Mode2328 returns the raw sector minus the 24-byte sync/header/subheader
	// prefix, i.e. user data plus the error-correction trailer.
	Mode2328

	// Mode2048 returns user data only, with no header at all.
	Mode2048
)

// SectorSize returns the number of bytes one sector occupies in this mode.
func (m ReadMode) SectorSize() int {
	switch m {
	case Mode2048:
		return 2048
	case Mode2328:
		return 2328
	case Mode2340:
		return 2340
	default:
		return 2352
	}
}

// RawOffset returns the byte offset of this mode's window inside a raw
// 2352-byte sector. Mode2048 addresses the cooked layout instead and has no
// raw offset.
func (m ReadMode) RawOffset() int {
	switch m {
	case Mode2328:
		return 24
	case Mode2340:
		return 12
	default:
		return 0
	}
}

func (m ReadMode) String() string {
	switch m {
	case Mode2048:
		return "2048"
	case Mode2328:
		return "2328"
	case Mode2340:
		return "2340"
	case Mode2352:
		return "2352"
	default:
		return "unknown"
	}
}

// Source is the blocking media backend consumed by the read-ahead subsystem.
//
// Read calls transfer count consecutive sectors starting at lsn into buf and
// report success; they are expected to block for as long as the physical
// medium needs. Implementations must be safe for calls from the subsystem's
// worker goroutine concurrent with Ready/SectorCount polls from other
// goroutines.
type Source interface {
	// Ready reports whether a medium is present and readable.
	Ready() bool

	// SectorCount returns the total number of addressable sectors on the
	// current medium, or 0 when no medium is present.
	SectorCount() uint32

	// ReadSectors2048 reads count cooked sectors (2048 bytes each) starting
	// at lsn into buf. Returns false on any failure.
	ReadSectors2048(lsn, count uint32, buf []byte) bool

	// ReadSectors2352 reads count raw sectors (2352 bytes each) starting at
	// lsn into buf. Returns false on any failure.
	ReadSectors2352(lsn, count uint32, buf []byte) bool

	// MediaType classifies the medium: negative for CD, zero for
	// single-layer DVD, positive for dual-layer DVD.
	MediaType() int
}

// DiscType is the classified kind of the inserted medium.
type DiscType int

const (
	DiscNone DiscType = iota
	DiscCD
	DiscDVDSingleLayer
	DiscDVDDualLayer
)

func (d DiscType) String() string {
	switch d {
	case DiscCD:
		return "CD-ROM"
	case DiscDVDSingleLayer:
		return "Single-Layer DVD"
	case DiscDVDDualLayer:
		return "Double-Layer DVD"
	default:
		return "No Disc"
	}
}

// TrayStatus mirrors the mechanical tray state exposed to the consumer.
type TrayStatus int

const (
	TrayClosed TrayStatus = iota
	TrayOpen
)

func (t TrayStatus) String() string {
	if t == TrayOpen {
		return "open"
	}
	return "closed"
}

// Classify maps a Source's media type code to a DiscType.
func Classify(mediaType int) DiscType {
	switch {
	case mediaType < 0:
		return DiscCD
	case mediaType == 0:
		return DiscDVDSingleLayer
	default:
		return DiscDVDDualLayer
	}
}
