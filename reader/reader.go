// Package reader drives the disc: it opens the device, walks the play list
// sector by sector, pushes every sector into a ring buffer and throttles
// the drive speed to keep that buffer comfortably filled.
//
// One goroutine runs the read loop. Navigation commands may be called from
// any goroutine; they take the same lock the loop holds while it touches
// the device and the playback position, and the loop picks up the change
// before its next sector read.
package reader

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/disc"
	"github.com/rabidaudio/cdplayer/ringbuf"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNotPlaying is returned by commands that need an open disc.
	ErrNotPlaying = errors.New("reader: no disc playing")
	// ErrBusy is returned by Open while a disc is already open.
	ErrBusy = errors.New("reader: already open")
	// ErrInvalidTrack is returned by SetTrack for an index outside the catalog.
	ErrInvalidTrack = errors.New("reader: invalid track")
	// ErrEndOfPlayList is returned by Next on the last track without restart.
	ErrEndOfPlayList = errors.New("reader: end of play list")
)

// Config holds the settings of a Reader.
type Config struct {
	MaxSpeed      int           // highest drive speed multiplier, at least 1
	Restart       bool          // loop back to the first track at the end
	Mode          cd.PlayMode   // initial play order
	Paranoia      bool          // verify every sector with a second read
	PauseInterval time.Duration // sleep between state checks while paused
	Rand          *rand.Rand    // shuffle source, seeded from the clock when nil

	// Metadata is queried in the background after a disc is opened. Optional.
	Metadata cd.MetadataService
}

// Status is a snapshot of the reader.
type Status struct {
	State    State
	Track    int   // catalog index of the current track
	TrackNum int   // track number from the table of contents
	Sector   int32 // next sector to read
	Speed    int
	Mode     cd.PlayMode
	Restart  bool
	Message  string // last failure, empty if none
	Session  string
}

// Reader is the producer side of the player.
type Reader struct {
	opener disc.Opener
	buf    *ringbuf.RingBuffer
	cfg    Config
	log    logrus.FieldLogger

	state atomic.Int32
	speed atomic.Int32

	// guards everything below, including the device
	mu       sync.Mutex
	dev      disc.Device
	src      disc.SectorSource
	catalog  *cd.Catalog
	playlist cd.PlayList
	pos      int   // position in playlist
	track    int   // catalog index being read
	sector   int32 // next sector to read
	pending  bool  // a track change waits for the loop
	target   int32 // where the pending change lands
	mode     cd.PlayMode
	restart  bool
	seq      uint64
	err      error
	session  string
	slog     logrus.FieldLogger // log with session fields
	cancel   context.CancelFunc
	done     chan struct{}
}

// New creates a stopped reader that fills buf from devices opened with opener.
func New(opener disc.Opener, buf *ringbuf.RingBuffer, cfg Config, log logrus.FieldLogger) *Reader {
	if cfg.MaxSpeed < 1 {
		cfg.MaxSpeed = 1
	}
	if cfg.PauseInterval <= 0 {
		cfg.PauseInterval = 100 * time.Millisecond
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	r := &Reader{
		opener:  opener,
		buf:     buf,
		cfg:     cfg,
		log:     log,
		mode:    cfg.Mode,
		restart: cfg.Restart,
		slog:    log,
	}
	r.state.Store(int32(Stopped))
	return r
}

// State returns the current state.
func (r *Reader) State() State {
	return State(r.state.Load())
}

func (r *Reader) setState(s State) {
	r.state.Store(int32(s))
}

// Speed returns the drive speed last requested.
func (r *Reader) Speed() int {
	return int(r.speed.Load())
}

// Open opens the drive at path, reads the table of contents and starts
// filling the buffer from the first track of the play list. On failure
// the reader is left Failed with the device released; Err and Status
// report why.
func (r *Reader) Open(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if st := r.State(); st != Stopped && st != Failed {
		return fmt.Errorf("%w: %v", ErrBusy, st)
	}
	if r.cancel != nil {
		// left over from a failed session; its loop has already returned
		r.cancel()
		r.cancel, r.done = nil, nil
	}
	r.setState(Starting)
	r.err = nil
	r.session = uuid.NewString()
	r.slog = r.log.WithFields(logrus.Fields{"session": r.session, "device": path})
	r.buf.Restart()

	r.setState(OpeningDevice)
	r.slog.Debug("opening device")
	dev, err := r.opener.Open(path)
	if err != nil {
		var code cd.Error
		if !errors.As(err, &code) {
			err = fmt.Errorf("%w: %v", cd.ErrDeviceOpen, err)
		}
		return r.failLocked(err)
	}
	catalog, err := disc.LoadCatalog(dev)
	if err != nil {
		_ = dev.Close()
		return r.failLocked(err)
	}

	r.dev = dev
	r.src = disc.NewSectorSource(dev, r.cfg.Paranoia)
	r.catalog = catalog
	r.playlist = cd.NewPlayList(r.mode, catalog.Len(), r.cfg.Rand)
	r.pos = 0
	r.track = r.playlist.At(0)
	t, _ := catalog.Track(r.track)
	r.sector = t.StartSector
	r.pending = false
	r.seq = 0
	r.speed.Store(0)
	r.applySpeedLocked(r.cfg.MaxSpeed)

	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	if r.cfg.Metadata != nil {
		catalog.LookupAsync(ctx, r.cfg.Metadata, r.slog)
	}

	r.slog.WithFields(logrus.Fields{
		"tracks":   catalog.Len(),
		"mode":     r.mode,
		"restart":  r.restart,
		"paranoia": r.cfg.Paranoia,
	}).Info("disc opened")
	r.setState(Playing)
	go r.run(ctx, r.done)
	return nil
}

// failLocked records err and enters Failed. The device must already be
// released. Must hold mu.
func (r *Reader) failLocked(err error) error {
	r.err = err
	r.setState(Failed)
	r.slog.WithError(err).Error("reader failed")
	return err
}

// Stop ends playback: the loop is cancelled and joined, then the device
// is released and the buffer cleared. Stopping a failed reader clears
// the blocks it left behind.
func (r *Reader) Stop() error {
	r.mu.Lock()
	cancel, done := r.cancel, r.done
	r.cancel, r.done = nil, nil
	if r.State() != Failed {
		r.setState(Stopped)
	}
	r.mu.Unlock()

	// wake a Put blocked on a full buffer
	r.buf.Stop()
	if cancel != nil {
		cancel()
		<-done
	}

	r.mu.Lock()
	err := r.releaseLocked()
	r.setState(Stopped)
	r.mu.Unlock()

	r.buf.Restart()
	r.slog.Info("stopped")
	return err
}

// releaseLocked closes the device. Must hold mu.
func (r *Reader) releaseLocked() error {
	if r.dev == nil {
		return nil
	}
	err := r.dev.Close()
	r.dev = nil
	r.src = nil
	return err
}

// Wait blocks until the read loop exits.
func (r *Reader) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Pause toggles between Playing and Paused.
func (r *Reader) Pause() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.State() {
	case Playing:
		r.setState(Paused)
	case Paused:
		r.setState(Playing)
	default:
		return ErrNotPlaying
	}
	r.slog.WithField("state", r.State()).Debug("pause toggled")
	return nil
}

// Err returns the failure that put the reader in Failed, if any.
func (r *Reader) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

// Buffer returns the ring buffer the reader fills.
func (r *Reader) Buffer() *ringbuf.RingBuffer {
	return r.buf
}

// Catalog returns the tracks of the open disc, or nil.
func (r *Reader) Catalog() *cd.Catalog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.catalog
}

// PlayList returns the current play order.
func (r *Reader) PlayList() cd.PlayList {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playlist
}

// Status returns a snapshot of the playback position and state.
func (r *Reader) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Status{
		State:   r.State(),
		Track:   r.track,
		Sector:  r.sector,
		Speed:   r.Speed(),
		Mode:    r.mode,
		Restart: r.restart,
		Session: r.session,
	}
	if r.pending {
		s.Sector = r.target
	}
	if r.catalog != nil {
		t, _ := r.catalog.Track(r.track)
		s.TrackNum = t.TrackNum
	}
	if r.err != nil {
		s.Message = r.err.Error()
	}
	return s
}

// applySpeedLocked asks the drive for x unless it already runs at x.
// A drive refusing is not fatal. Must hold mu.
func (r *Reader) applySpeedLocked(x int) {
	if int(r.speed.Load()) == x || r.dev == nil {
		return
	}
	r.speed.Store(int32(x))
	if err := r.dev.SetSpeed(x); err != nil {
		r.slog.WithError(err).WithField("speed", x).Warn("drive refused speed change")
		return
	}
	r.slog.WithField("speed", x).Debug("drive speed changed")
}
