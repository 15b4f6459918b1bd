package cd

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// pregapSectors is the two second lead-in every disc starts with;
// table of contents addresses are relative to the end of it.
const pregapSectors = 2 * SectorsPerSecond

// TrackInfo is the text a metadata service knows about a track.
type TrackInfo struct {
	Title  string
	Artist string
}

// DiscInfo is the result of a metadata lookup.
type DiscInfo struct {
	Title  string
	Artist string
	Tracks []TrackInfo
}

// MetadataService looks up disc and track titles from the sector offset
// table, for example a CDDB server. Implementations live outside this module.
type MetadataService interface {
	Lookup(ctx context.Context, discID uint32, offsets []int32, leadOut int32) (*DiscInfo, error)
}

// DiscID computes the CDDB disc id of the catalog.
func (c *Catalog) DiscID() uint32 {
	var n uint32
	for _, t := range c.tracks {
		secs := (t.StartSector + pregapSectors) / SectorsPerSecond
		for secs > 0 {
			n += uint32(secs % 10)
			secs /= 10
		}
	}
	total := uint32((c.leadOut - c.tracks[0].StartSector) / SectorsPerSecond)
	return (n%0xff)<<24 | total<<8 | uint32(len(c.tracks))
}

// Apply copies the looked up text into the catalog. Tracks beyond the
// catalog are ignored.
func (c *Catalog) Apply(info *DiscInfo) {
	if info == nil {
		return
	}
	c.SetDiscText(TextTitle, info.Title)
	c.SetDiscText(TextPerformer, info.Artist)
	c.SetDiscText(TextDiscID, fmt.Sprintf("%08x", c.DiscID()))
	for i, t := range info.Tracks {
		c.SetTrackText(i, TextTitle, t.Title)
		c.SetTrackText(i, TextPerformer, t.Artist)
	}
}

// LookupAsync queries svc in the background and applies the result.
// A failed lookup leaves the text fields untouched. The returned channel
// is closed when the lookup finishes.
func (c *Catalog) LookupAsync(ctx context.Context, svc MetadataService, log logrus.FieldLogger) <-chan struct{} {
	done := make(chan struct{})
	if svc == nil {
		close(done)
		return done
	}
	go func() {
		defer close(done)
		id := c.DiscID()
		info, err := svc.Lookup(ctx, id, c.Offsets(), c.leadOut)
		if err != nil {
			log.WithError(err).WithField("discid", fmt.Sprintf("%08x", id)).Warn("metadata lookup failed")
			return
		}
		c.Apply(info)
		log.WithFields(logrus.Fields{"title": info.Title, "artist": info.Artist}).Info("metadata found")
	}()
	return done
}
