package cd

import (
	"fmt"
	"sync"
	"time"
)

// TextField identifies a CD-Text entry attached to the disc or a track.
type TextField int

const (
	TextArranger TextField = iota
	TextComposer
	TextDiscID
	TextGenre
	TextMessage
	TextISRC
	TextPerformer
	TextSizeInfo
	TextSongwriter
	TextTitle
	TextTOCInfo
	TextTOCInfo2
	TextUPCEAN
)

func (f TextField) String() string {
	switch f {
	case TextArranger:
		return "ARRANGER"
	case TextComposer:
		return "COMPOSER"
	case TextDiscID:
		return "DISCID"
	case TextGenre:
		return "GENRE"
	case TextMessage:
		return "MESSAGE"
	case TextISRC:
		return "ISRC"
	case TextPerformer:
		return "PERFORMER"
	case TextSizeInfo:
		return "SIZE_INFO"
	case TextSongwriter:
		return "SONGWRITER"
	case TextTitle:
		return "TITLE"
	case TextTOCInfo:
		return "TOC_INFO"
	case TextTOCInfo2:
		return "TOC_INFO2"
	case TextUPCEAN:
		return "UPC_EAN"
	default:
		return "INVALID"
	}
}

// Track is one playable audio item: a contiguous range of sectors.
type Track struct {
	Index       int   // position in the catalog, starting at 0
	TrackNum    int   // track number from the table of contents, starting at 1
	StartSector int32 // first sector of the track
	EndSector   int32 // first sector after the track
	LBA         int32 // logical block address reported by the drive
}

// LengthSectors returns the number of sectors the track covers.
func (t Track) LengthSectors() int32 {
	return t.EndSector - t.StartSector
}

// Contains reports whether sector lies within [StartSector, EndSector).
func (t Track) Contains(sector int32) bool {
	return sector >= t.StartSector && sector < t.EndSector
}

// Duration returns the playing time of the track.
func (t Track) Duration() time.Duration {
	return time.Duration(t.LengthSectors()) * time.Second / SectorsPerSecond
}

// Catalog is the ordered list of audio tracks on a disc. The track
// boundaries never change after construction; only the text fields are
// filled in later, possibly from another goroutine.
type Catalog struct {
	tracks  []Track
	leadOut int32

	mu        sync.RWMutex
	discText  map[TextField]string
	trackText []map[TextField]string
}

// NewCatalog validates the tracks and builds a catalog. Tracks must be
// non-empty, ascending and non-overlapping. Index fields are reassigned
// to match the slice position.
func NewCatalog(tracks []Track) (*Catalog, error) {
	if len(tracks) == 0 {
		return nil, ErrNoMedium
	}
	if len(tracks) > MaxTracks {
		return nil, fmt.Errorf("%w: %d tracks", ErrTrackTable, len(tracks))
	}
	ts := make([]Track, len(tracks))
	copy(ts, tracks)
	for i := range ts {
		ts[i].Index = i
		t := ts[i]
		if t.StartSector < 0 || t.EndSector <= t.StartSector {
			return nil, fmt.Errorf("%w: track %d has bounds [%d,%d)", ErrTrackTable, t.TrackNum, t.StartSector, t.EndSector)
		}
		if i > 0 && t.StartSector < ts[i-1].EndSector {
			return nil, fmt.Errorf("%w: track %d overlaps track %d", ErrTrackTable, t.TrackNum, ts[i-1].TrackNum)
		}
	}
	c := &Catalog{
		tracks:    ts,
		leadOut:   ts[len(ts)-1].EndSector,
		discText:  map[TextField]string{},
		trackText: make([]map[TextField]string, len(ts)),
	}
	for i := range c.trackText {
		c.trackText[i] = map[TextField]string{}
	}
	return c, nil
}

// Len returns the number of tracks.
func (c *Catalog) Len() int {
	return len(c.tracks)
}

// Track returns the track at index i.
func (c *Catalog) Track(i int) (Track, bool) {
	if i < 0 || i >= len(c.tracks) {
		return Track{}, false
	}
	return c.tracks[i], true
}

// Tracks returns a copy of all tracks.
func (c *Catalog) Tracks() []Track {
	ts := make([]Track, len(c.tracks))
	copy(ts, c.tracks)
	return ts
}

// LeadOut returns the first sector after the last track.
func (c *Catalog) LeadOut() int32 {
	return c.leadOut
}

// TrackAt returns the index of the track containing sector, or -1.
func (c *Catalog) TrackAt(sector int32) int {
	for i, t := range c.tracks {
		if t.Contains(sector) {
			return i
		}
	}
	return -1
}

// Offsets returns the start sector of every track, the table a disc
// metadata lookup is keyed on.
func (c *Catalog) Offsets() []int32 {
	offsets := make([]int32, len(c.tracks))
	for i, t := range c.tracks {
		offsets[i] = t.StartSector
	}
	return offsets
}

// SetDiscText sets a disc-level text field.
func (c *Catalog) SetDiscText(f TextField, v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.discText[f] = v
}

// DiscText returns a disc-level text field, or "".
func (c *Catalog) DiscText(f TextField) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.discText[f]
}

// SetTrackText sets a text field of track i. Out of range indices are ignored.
func (c *Catalog) SetTrackText(i int, f TextField, v string) {
	if i < 0 || i >= len(c.tracks) {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.trackText[i][f] = v
}

// TrackText returns a text field of track i, or "".
func (c *Catalog) TrackText(i int, f TextField) string {
	if i < 0 || i >= len(c.tracks) {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.trackText[i][f]
}
