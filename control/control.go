// Package control is the command surface of the player. Commands from the
// keyboard, the button panel or any other goroutine are queued and run one
// at a time on the goroutine that called Run, which also owns the reader
// and player workers.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/pes"
	"github.com/rabidaudio/cdplayer/player"
	"github.com/rabidaudio/cdplayer/reader"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ErrClosed is returned by commands sent after Run has returned.
var ErrClosed = errors.New("control: controller closed")

type command struct {
	name  string
	fn    func() error
	reply chan error
}

// Status is a snapshot of the whole player.
type Status struct {
	reader.Status
	Rate      pes.Rate
	Delivered uint64 // sectors written to the sink
	Buffered  int    // ring buffer occupancy in percent
}

type Controller struct {
	rd  *reader.Reader
	pl  *player.Player
	log logrus.FieldLogger

	cmds chan command
	done chan struct{}

	// owned by the Run goroutine
	ctx     context.Context
	path    string
	cancel  context.CancelFunc
	workers chan struct{}

	mu      sync.Mutex
	message string
}

// New creates a controller for a reader and a player sharing one buffer.
func New(rd *reader.Reader, pl *player.Player, log logrus.FieldLogger) *Controller {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Controller{
		rd:   rd,
		pl:   pl,
		log:  log,
		cmds: make(chan command),
		done: make(chan struct{}),
	}
}

// Run executes queued commands until ctx is done, then stops playback.
// Commands block until Run is called.
func (c *Controller) Run(ctx context.Context) error {
	defer close(c.done)
	c.ctx = ctx
	for {
		select {
		case <-ctx.Done():
			c.stop()
			return nil
		case cmd := <-c.cmds:
			err := cmd.fn()
			if err != nil {
				c.log.WithError(err).WithField("command", cmd.name).Warn("command failed")
				c.setMessage(err.Error())
			} else {
				c.log.WithField("command", cmd.name).Debug("command")
			}
			cmd.reply <- err
		}
	}
}

func (c *Controller) do(name string, fn func() error) error {
	cmd := command{name: name, fn: fn, reply: make(chan error, 1)}
	select {
	case c.cmds <- cmd:
	case <-c.done:
		return ErrClosed
	}
	return <-cmd.reply
}

func (c *Controller) setMessage(m string) {
	c.mu.Lock()
	c.message = m
	c.mu.Unlock()
}

// Message returns the last failure as text: a rejected command, a sink
// failure or the reader's own failure. It is empty once a disc opens.
func (c *Controller) Message() string {
	c.mu.Lock()
	m := c.message
	c.mu.Unlock()
	if m != "" {
		return m
	}
	return c.rd.Status().Message
}

// Status returns a snapshot without going through the queue.
func (c *Controller) Status() Status {
	return Status{
		Status:    c.rd.Status(),
		Rate:      c.pl.Rate(),
		Delivered: c.pl.Delivered(),
		Buffered:  c.rd.Buffer().Occupancy(),
	}
}

// Catalog returns the tracks of the open disc, or nil.
func (c *Controller) Catalog() *cd.Catalog {
	return c.rd.Catalog()
}

// Open opens the disc at path and starts playing it.
func (c *Controller) Open(path string) error {
	return c.do("open", func() error {
		return c.open(path)
	})
}

func (c *Controller) open(path string) error {
	if st := c.rd.State(); st.Active() {
		return fmt.Errorf("%w: %v", reader.ErrBusy, st)
	}
	if c.cancel != nil {
		// the last disc stopped on its own; its player may still be draining
		if err := c.stop(); err != nil {
			c.log.WithError(err).Warn("closing device")
		}
	}
	c.setMessage("")
	c.path = path
	c.pl.SetPaused(false)
	c.pl.Purge()
	if err := c.rd.Open(path); err != nil {
		return err
	}
	c.startWorkers()
	return nil
}

// startWorkers runs the player until the buffer is drained or stopped,
// next to a watcher for the read loop.
func (c *Controller) startWorkers() {
	ctx, cancel := context.WithCancel(c.ctx)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := c.pl.Run(gctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			// nothing consumes the buffer any more
			if err := c.rd.Stop(); err != nil {
				c.log.WithError(err).Warn("closing device")
			}
		}
		return err
	})
	g.Go(func() error {
		c.rd.Wait()
		return nil
	})

	workers := make(chan struct{})
	c.cancel, c.workers = cancel, workers
	go func() {
		defer close(workers)
		err := g.Wait()
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		c.log.WithError(err).Error("playback failed")
		c.setMessage(err.Error())
	}()
}

func (c *Controller) stopWorkers() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	<-c.workers
	c.cancel, c.workers = nil, nil
}

// Play resumes a paused disc or reopens the last disc once it stopped.
func (c *Controller) Play() error {
	return c.do("play", func() error {
		switch c.rd.State() {
		case reader.Playing:
			return nil
		case reader.Paused:
			return c.togglePause()
		}
		if c.path == "" {
			return reader.ErrNotPlaying
		}
		return c.open(c.path)
	})
}

// Pause toggles between playing and paused.
func (c *Controller) Pause() error {
	return c.do("pause", c.togglePause)
}

func (c *Controller) togglePause() error {
	if err := c.rd.Pause(); err != nil {
		return err
	}
	c.pl.SetPaused(c.rd.State() == reader.Paused)
	return nil
}

// Stop ends playback and releases the drive.
func (c *Controller) Stop() error {
	return c.do("stop", func() error {
		return c.stop()
	})
}

func (c *Controller) stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	err := c.rd.Stop()
	c.stopWorkers()
	c.pl.SetPaused(false)
	c.pl.Purge()
	return err
}

// Next skips to the next track of the play list.
func (c *Controller) Next() error {
	return c.do("next", c.purgeAfter(c.rd.Next))
}

// Prev goes back to the previous track of the play list.
func (c *Controller) Prev() error {
	return c.do("prev", c.purgeAfter(c.rd.Prev))
}

// SetTrack jumps to catalog index i.
func (c *Controller) SetTrack(i int) error {
	return c.do("track", c.purgeAfter(func() error {
		return c.rd.SetTrack(i)
	}))
}

// SkipTime moves the playback position by seconds.
func (c *Controller) SkipTime(seconds int) error {
	return c.do("skip", c.purgeAfter(func() error {
		return c.rd.SkipTime(seconds)
	}))
}

// purgeAfter drops the audio queued in the sink once a jump succeeded.
func (c *Controller) purgeAfter(jump func() error) func() error {
	return func() error {
		if err := jump(); err != nil {
			return err
		}
		c.pl.Purge()
		return nil
	}
}

func (c *Controller) SetPlayMode(mode cd.PlayMode) error {
	return c.do("mode", func() error {
		return c.rd.SetPlayMode(mode)
	})
}

func (c *Controller) SetRestart(restart bool) error {
	return c.do("restart", func() error {
		return c.rd.SetRestart(restart)
	})
}

// Faster steps up the presentation rate.
func (c *Controller) Faster() error {
	return c.do("faster", func() error {
		c.pl.SpeedFaster()
		return nil
	})
}

// Slower steps down the presentation rate.
func (c *Controller) Slower() error {
	return c.do("slower", func() error {
		c.pl.SpeedSlower()
		return nil
	})
}
