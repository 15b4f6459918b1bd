// Package disc is the boundary to the drive: opening a device, reading
// its table of contents into a [cd.Catalog] and reading raw sectors.
//
// The drive itself is hidden behind [Device]. [AudioCDOpener] provides a
// real implementation on top of libcdio; the mock package provides an
// in-memory one.
package disc

import (
	"errors"
	"fmt"

	"github.com/rabidaudio/cdplayer/cd"
)

// Bounds is one table of contents entry as reported by the drive.
type Bounds struct {
	TrackNum    int   // track number, starting at 1
	StartSector int32 // first sector of the track
	EndSector   int32 // first sector after the track
	LBA         int32
	IsAudio     bool // mixed-mode disks can have data tracks in addition to audio tracks
}

// Device is an open drive with a disc in it.
type Device interface {
	// TrackCount returns the number of entries in the table of contents.
	TrackCount() int
	// TrackBounds returns entry i, counting from 0.
	TrackBounds(i int) (Bounds, error)
	// ReadSector reads the sector at address sector into p, which must
	// hold at least cd.BytesPerSector bytes.
	ReadSector(sector int32, p []byte) error
	// SetSpeed sets the read speed multiplier. 1x is real-time.
	SetSpeed(x int) error
	Close() error
}

// Opener opens the drive at path.
type Opener interface {
	Open(path string) (Device, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(path string) (Device, error)

func (f OpenerFunc) Open(path string) (Device, error) {
	return f(path)
}

// LoadCatalog reads the table of contents of dev and keeps the audio tracks.
//
// Errors wrap [cd.ErrNoMedium] when the table is empty,
// [cd.ErrTrackTable] when an entry cannot be read or is malformed, and
// [cd.ErrNoAudioTrack] when only data tracks were found.
func LoadCatalog(dev Device) (*cd.Catalog, error) {
	n := dev.TrackCount()
	if n <= 0 {
		return nil, cd.ErrNoMedium
	}

	tracks := make([]cd.Track, 0, n)
	for i := range n {
		b, err := dev.TrackBounds(i)
		if err != nil {
			if errors.Is(err, cd.ErrTrackTable) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: entry %d: %v", cd.ErrTrackTable, i, err)
		}
		if !b.IsAudio {
			continue
		}
		if b.StartSector < 0 || b.EndSector <= b.StartSector || b.LBA < 0 {
			return nil, fmt.Errorf("%w: track %d start %d end %d lba %d",
				cd.ErrTrackTable, b.TrackNum, b.StartSector, b.EndSector, b.LBA)
		}
		tracks = append(tracks, cd.Track{
			TrackNum:    b.TrackNum,
			StartSector: b.StartSector,
			EndSector:   b.EndSector,
			LBA:         b.LBA,
		})
	}
	if len(tracks) == 0 {
		return nil, cd.ErrNoAudioTrack
	}
	return cd.NewCatalog(tracks)
}
