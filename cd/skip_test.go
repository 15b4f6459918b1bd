package cd

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSkip(t *testing.T) {
	c := threeTracks(t)

	cases := []struct {
		name       string
		track      int
		sector     int32
		seconds    int
		wantTrack  int
		wantSector int32
	}{
		{"within track", 0, 10, 1, 0, 85},
		{"into next track", 0, 50, 1, 1, 125},
		{"across two boundaries", 0, 0, 5, 2, 375},
		{"past the end clamps to last sector", 2, 400, 60, 2, 449},
		{"landing on the lead-out clamps", 2, 375, 1, 2, 449},
		{"backward within track", 1, 200, -1, 1, 125},
		{"backward into previous track", 1, 110, -1, 0, 35},
		{"before the start clamps to sector 0", 2, 310, -60, 0, 0},
		{"sector outside track starts from track start", 1, 5, 0, 1, 100},
		{"track index out of range is clamped", 9, 440, 0, 2, 440},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			track, sector := c.Skip(tc.track, tc.sector, tc.seconds)
			assert.Equal(t, tc.wantTrack, track)
			assert.Equal(t, tc.wantSector, sector)
		})
	}
}

func TestSkipNeverLeavesCatalog(t *testing.T) {
	c := threeTracks(t)
	for secs := -20; secs <= 20; secs++ {
		for _, start := range []int32{0, 99, 100, 299, 300, 449} {
			track, sector := c.Skip(c.TrackAt(start), start, secs)
			assert.GreaterOrEqual(t, track, 0)
			assert.Less(t, track, c.Len())
			tr, _ := c.Track(track)
			assert.True(t, tr.Contains(sector), "sector %d not in track %d", sector, track)
		}
	}
}
