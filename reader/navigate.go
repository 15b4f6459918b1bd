package reader

import (
	"fmt"

	"github.com/rabidaudio/cdplayer/cd"
	"github.com/sirupsen/logrus"
)

// Next jumps to the start of the next track in the play list. On the last
// track it wraps around in restart mode and fails with ErrEndOfPlayList
// otherwise.
func (r *Reader) Next() error {
	return r.navigate(func() (int, int32, error) {
		pos := r.pos + 1
		if pos >= r.playlist.Len() {
			if !r.restart {
				return 0, 0, ErrEndOfPlayList
			}
			r.rewindLocked()
			pos = 0
		}
		return r.startOf(pos)
	})
}

// Prev jumps to the start of the previous track in the play list. On the
// first track it restarts that track.
func (r *Reader) Prev() error {
	return r.navigate(func() (int, int32, error) {
		return r.startOf(max(r.pos-1, 0))
	})
}

// SetTrack jumps to the start of track i, counting catalog entries from 0.
func (r *Reader) SetTrack(i int) error {
	return r.navigate(func() (int, int32, error) {
		if i < 0 || i >= r.catalog.Len() {
			return 0, 0, fmt.Errorf("%w: %d of %d", ErrInvalidTrack, i, r.catalog.Len())
		}
		return r.startOf(r.playlist.IndexOf(i))
	})
}

// SkipTime moves the playback position by seconds, backwards when
// negative. It walks across track boundaries in disc order and stops at
// the first sector of the disc and the last sector of the final track.
func (r *Reader) SkipTime(seconds int) error {
	return r.navigate(func() (int, int32, error) {
		from := r.sector
		if r.pending {
			from = r.target
		}
		track, sector := r.catalog.Skip(r.track, from, seconds)
		return r.playlist.IndexOf(track), sector, nil
	})
}

// startOf returns the play list position pos with its first sector.
// Must hold mu.
func (r *Reader) startOf(pos int) (int, int32, error) {
	t, _ := r.catalog.Track(r.playlist.At(pos))
	return pos, t.StartSector, nil
}

// navigate applies the position chosen by pick as a pending track change
// and drops everything buffered. The buffer is cleared before mu is
// released so the loop cannot take the change and queue the new track
// first.
func (r *Reader) navigate(pick func() (pos int, sector int32, err error)) error {
	r.mu.Lock()
	if r.catalog == nil || !r.State().Active() {
		r.mu.Unlock()
		return ErrNotPlaying
	}
	pos, sector, err := pick()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.pos = pos
	r.track = r.playlist.At(pos)
	r.target = sector
	r.pending = true
	r.slog.WithFields(logrus.Fields{"track": r.track, "sector": sector}).Info("seek")
	// wakes a Put blocked on stale data
	r.buf.Clear()
	r.mu.Unlock()
	return nil
}

// SetPlayMode rebuilds the play list for mode. Playback carries on with
// the current track, now found at its place in the new list.
func (r *Reader) SetPlayMode(mode cd.PlayMode) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mode = mode
	if r.catalog == nil {
		return nil
	}
	r.playlist = cd.NewPlayList(mode, r.catalog.Len(), r.cfg.Rand)
	r.pos = r.playlist.IndexOf(r.track)
	r.slog.WithFields(logrus.Fields{"mode": mode, "order": r.playlist.Order()}).Info("play mode changed")
	return nil
}

// SetRestart selects whether the play list loops.
func (r *Reader) SetRestart(restart bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.restart = restart
	return nil
}
