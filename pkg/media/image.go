package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/marmos91/discread/internal/logger"
)

// ImageFormat describes how sectors are laid out inside an image file.
type ImageFormat int

const (
	// FormatCooked is a 2048 bytes/sector image (.iso).
	FormatCooked ImageFormat = iota

	// FormatRaw is a 2352 bytes/sector image (.bin, .img).
	FormatRaw
)

func (f ImageFormat) String() string {
	if f == FormatRaw {
		return "raw"
	}
	return "cooked"
}

// Approximate capacity boundaries used to classify an image by size.
const (
	// cdMaxSectors is the upper bound of a 90-minute CD.
	cdMaxSectors = 450000

	// dvdSingleLayerMaxSectors is the upper bound of a DVD-5.
	dvdSingleLayerMaxSectors = 2295104
)

// rawSyncPattern is the 12-byte sync field that opens every raw sector.
var rawSyncPattern = [12]byte{0x00, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x00}

// ImageSource is a file-backed Source for optical media images.
//
// It serves both cooked and raw reads regardless of the underlying image
// format: the missing representation is synthesized on the fly (a cooked
// image gets its raw frames rebuilt around the user data; a raw image has
// the user-data window extracted at the mode-2 form-1 offset).
//
// The image path is watched with fsnotify. Removing or renaming the file
// flips Ready to false; recreating it reopens the image and flips Ready back
// to true. This is how "tray open / disc swapped" is modelled for images,
// and it is what drives the read-ahead subsystem's disc-change handling.
type ImageSource struct {
	path   string
	format ImageFormat

	mu      sync.Mutex
	f       *os.File
	sectors uint32

	ready atomic.Bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewImageSource opens an image file and starts watching it for replacement.
//
// The sector layout is inferred from the file extension (.iso is cooked;
// .bin, .img and .raw are raw) with a fallback on the file size: a size
// divisible by 2352 but not 2048 is treated as raw.
func NewImageSource(path string) (*ImageSource, error) {
	s := &ImageSource{
		path: path,
		done: make(chan struct{}),
	}

	if err := s.open(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		_ = s.f.Close()
		return nil, fmt.Errorf("failed to create image watcher: %w", err)
	}
	// Watch the directory: a watch on the file itself dies when the file is
	// removed, and media swaps are remove-then-recreate sequences.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		_ = s.f.Close()
		return nil, fmt.Errorf("failed to watch image directory: %w", err)
	}
	s.watcher = watcher

	go s.watch()

	return s, nil
}

// open (re)opens the image file and derives format and sector count.
func (s *ImageSource) open() error {
	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("failed to open image %q: %w", s.path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to stat image %q: %w", s.path, err)
	}

	format := detectFormat(s.path, fi.Size())
	sectorSize := int64(DataSectorSize)
	if format == FormatRaw {
		sectorSize = RawSectorSize
	}

	s.mu.Lock()
	if s.f != nil {
		_ = s.f.Close()
	}
	s.f = f
	s.format = format
	s.sectors = uint32(fi.Size() / sectorSize)
	s.mu.Unlock()

	s.ready.Store(true)

	logger.Debug("media: image opened",
		"path", s.path,
		"format", format.String(),
		"sectors", s.sectors)
	return nil
}

// detectFormat infers the sector layout from extension, then size.
func detectFormat(path string, size int64) ImageFormat {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".iso":
		return FormatCooked
	case ".bin", ".img", ".raw":
		return FormatRaw
	}
	if size%RawSectorSize == 0 && size%DataSectorSize != 0 {
		return FormatRaw
	}
	return FormatCooked
}

// watch reacts to filesystem events on the image path.
func (s *ImageSource) watch() {
	base := filepath.Base(s.path)
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(ev.Name) != base {
				continue
			}
			switch {
			case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
				logger.Info("media: image removed", "path", s.path)
				s.ready.Store(false)
			case ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Write):
				if err := s.open(); err != nil {
					logger.Warn("media: image reopen failed", "path", s.path, "error", err)
					s.ready.Store(false)
				}
			}
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logger.Warn("media: image watcher error", "path", s.path, "error", err)
		}
	}
}

// Ready reports whether the image file is currently present and open.
func (s *ImageSource) Ready() bool {
	return s.ready.Load()
}

// SectorCount returns the number of sectors in the image.
func (s *ImageSource) SectorCount() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready.Load() {
		return 0
	}
	return s.sectors
}

// Format returns the detected on-disk sector layout.
func (s *ImageSource) Format() ImageFormat {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.format
}

// Path returns the image file path.
func (s *ImageSource) Path() string {
	return s.path
}

// ReadSectors2048 reads count cooked sectors starting at lsn.
func (s *ImageSource) ReadSectors2048(lsn, count uint32, buf []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil || !s.ready.Load() || lsn+count > s.sectors {
		return false
	}
	if len(buf) < int(count)*DataSectorSize {
		return false
	}

	if s.format == FormatCooked {
		_, err := s.f.ReadAt(buf[:int(count)*DataSectorSize], int64(lsn)*DataSectorSize)
		return err == nil
	}

	// Raw image: extract the 2048-byte user-data window of each sector at
	// the mode-2 form-1 offset.
	var raw [RawSectorSize]byte
	for i := uint32(0); i < count; i++ {
		if _, err := s.f.ReadAt(raw[:], int64(lsn+i)*RawSectorSize); err != nil {
			return false
		}
		copy(buf[int(i)*DataSectorSize:], raw[24:24+DataSectorSize])
	}
	return true
}

// ReadSectors2352 reads count raw sectors starting at lsn.
func (s *ImageSource) ReadSectors2352(lsn, count uint32, buf []byte) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.f == nil || !s.ready.Load() || lsn+count > s.sectors {
		return false
	}
	if len(buf) < int(count)*RawSectorSize {
		return false
	}

	if s.format == FormatRaw {
		_, err := s.f.ReadAt(buf[:int(count)*RawSectorSize], int64(lsn)*RawSectorSize)
		return err == nil
	}

	// Cooked image: rebuild a mode-2 form-1 raw frame around each payload.
	for i := uint32(0); i < count; i++ {
		frame := buf[int(i)*RawSectorSize : int(i+1)*RawSectorSize]
		if _, err := s.f.ReadAt(frame[24:24+DataSectorSize], int64(lsn+i)*DataSectorSize); err != nil {
			return false
		}
		synthesizeRawHeader(frame, lsn+i)
		for j := 24 + DataSectorSize; j < RawSectorSize; j++ {
			frame[j] = 0
		}
	}
	return true
}

// synthesizeRawHeader writes the sync, MSF header and subheader of a raw
// mode-2 form-1 frame in place. The payload at frame[24:2072] is untouched.
func synthesizeRawHeader(frame []byte, lsn uint32) {
	copy(frame, rawSyncPattern[:])

	// Header: BCD minute/second/frame of lsn+150 plus the mode byte.
	abs := lsn + 150
	frame[12] = toBCD(byte(abs / 75 / 60))
	frame[13] = toBCD(byte(abs / 75 % 60))
	frame[14] = toBCD(byte(abs % 75))
	frame[15] = 2

	// Subheader (repeated): data submode, no file/channel/coding info.
	frame[16], frame[17], frame[18], frame[19] = 0, 0, 0x08, 0
	frame[20], frame[21], frame[22], frame[23] = 0, 0, 0x08, 0
}

func toBCD(v byte) byte {
	return (v/10)<<4 | v%10
}

// MediaType classifies the image by layout and size: raw images are CDs,
// cooked images are CDs or DVDs depending on sector count.
func (s *ImageSource) MediaType() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == FormatRaw {
		return -1
	}
	switch {
	case s.sectors <= cdMaxSectors:
		return -1
	case s.sectors <= dvdSingleLayerMaxSectors:
		return 0
	default:
		return 1
	}
}

// Close stops the watcher and closes the image file.
func (s *ImageSource) Close() error {
	close(s.done)
	if s.watcher != nil {
		_ = s.watcher.Close()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready.Store(false)
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
