package reader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/ringbuf"
	"github.com/sirupsen/logrus"
)

type step int

const (
	stepRead   step = iota // a sector was read and must be queued
	stepChange             // a pending track change was applied
	stepEnd                // the last sector of the play list was read
	stepFail               // the device failed
)

func (r *Reader) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	for {
		if ctx.Err() != nil {
			return
		}
		switch r.State() {
		case Playing:
		case Paused:
			select {
			case <-ctx.Done():
				return
			case <-time.After(r.cfg.PauseInterval):
			}
			continue
		default:
			return
		}

		data := make([]byte, cd.BytesPerSector)
		st, gen, block := r.next(data)
		switch st {
		case stepChange:
			r.buf.Clear()
			continue
		case stepFail:
			r.buf.Seal()
			return
		}

		stored := r.put(ctx, gen, block, st == stepEnd)
		if st == stepEnd {
			// let the consumer drain what is left
			r.buf.Seal()
			return
		}
		if !stored {
			if ctx.Err() != nil || r.buf.Stopped() {
				return
			}
			continue
		}
		r.mu.Lock()
		r.applySpeedLocked(SpeedFor(r.buf.Occupancy(), r.cfg.MaxSpeed))
		r.mu.Unlock()
	}
}

// next reads the sector at the playback position into data and advances
// the position, moving on through the play list at the end of a track.
// stepEnd comes with the final sector of the play list. The buffer
// generation is taken with the position so a block read before a track
// change can never be queued after it.
func (r *Reader) next(data []byte) (step, uint64, ringbuf.Block) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending {
		r.pending = false
		r.sector = r.target
		r.slog.WithFields(logrus.Fields{"track": r.track, "sector": r.sector}).Debug("track change")
		return stepChange, 0, ringbuf.Block{}
	}
	if r.src == nil {
		_ = r.releaseLocked()
		r.failLocked(fmt.Errorf("%w: device handle gone", cd.ErrSectorRead))
		return stepFail, 0, ringbuf.Block{}
	}

	gen := r.buf.Generation()
	t, _ := r.catalog.Track(r.track)
	sector := r.sector
	if err := r.src.ReadSector(sector, data); err != nil {
		_ = r.releaseLocked()
		r.failLocked(fmt.Errorf("track %d: %w", t.TrackNum, err))
		return stepFail, 0, ringbuf.Block{}
	}
	block := ringbuf.Block{Data: data, Sector: sector, Seq: r.seq}
	r.seq++
	r.sector++

	if r.sector >= t.EndSector && !r.advanceLocked() {
		r.finishLocked()
		return stepEnd, gen, block
	}
	return stepRead, gen, block
}

// put queues block, waiting out buffer timeouts while playback goes on.
// The final block of a play list is delivered even though the reader
// already reports Stopped. It reports whether the block was stored.
func (r *Reader) put(ctx context.Context, gen uint64, block ringbuf.Block, last bool) bool {
	for {
		err := r.buf.PutGen(ctx, gen, block)
		if err == nil {
			return true
		}
		// cleared for a track change, stopped or cancelled
		if !errors.Is(err, ringbuf.ErrTimeout) {
			return false
		}
		if !last && !r.State().Active() {
			return false
		}
	}
}

// advanceLocked moves to the next entry of the play list. At the end it
// wraps around in restart mode, reshuffling random lists, and otherwise
// reports false. Must hold mu.
func (r *Reader) advanceLocked() bool {
	r.pos++
	if r.pos >= r.playlist.Len() {
		if !r.restart {
			r.pos = r.playlist.Len() - 1
			return false
		}
		r.rewindLocked()
		r.pos = 0
	}
	r.track = r.playlist.At(r.pos)
	t, _ := r.catalog.Track(r.track)
	r.sector = t.StartSector
	r.slog.WithFields(logrus.Fields{"track": t.TrackNum, "position": r.pos}).Info("next track")
	return true
}

// rewindLocked starts the play list over, reshuffling random lists.
// Must hold mu.
func (r *Reader) rewindLocked() {
	if r.mode == cd.Random {
		r.playlist = cd.ShuffledList(r.catalog.Len(), r.cfg.Rand)
	}
	r.slog.WithField("order", r.playlist.Order()).Info("restarting play list")
}

// finishLocked ends a play list that ran out. The position rewinds to the
// start of the list and the device is released. Must hold mu.
func (r *Reader) finishLocked() {
	r.pos = 0
	r.track = r.playlist.At(0)
	t, _ := r.catalog.Track(r.track)
	r.sector = t.StartSector
	r.setState(Stopped)
	if err := r.releaseLocked(); err != nil {
		r.slog.WithError(err).Warn("closing device")
	}
	r.slog.Info("end of play list")
}
