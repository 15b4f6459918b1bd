package cd

// Skip moves a playback position by a number of seconds, walking across
// track boundaries in disc order. Positive seconds move forward.
//
// The result is clamped to the first sector of the first track and to the
// last playable sector of the last track, so the returned track index is
// always within [0, Len()).
func (c *Catalog) Skip(track int, sector int32, seconds int) (int, int32) {
	n := len(c.tracks)
	if track < 0 {
		track = 0
	} else if track >= n {
		track = n - 1
	}
	t := c.tracks[track]
	if !t.Contains(sector) {
		sector = t.StartSector
	}

	// offset relative to the start of the current track
	rel := int64(sector-t.StartSector) + int64(seconds)*SectorsPerSecond

	for rel >= int64(c.tracks[track].LengthSectors()) {
		if track == n-1 {
			rel = int64(c.tracks[track].LengthSectors()) - 1
			break
		}
		rel -= int64(c.tracks[track].LengthSectors())
		track++
	}
	for rel < 0 {
		if track == 0 {
			rel = 0
			break
		}
		track--
		rel += int64(c.tracks[track].LengthSectors())
	}
	return track, c.tracks[track].StartSector + int32(rel)
}
