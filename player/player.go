// Package player is the consumer side: it takes sectors off the ring
// buffer, frames them as PES packets and hands them to a playback sink
// at the pace the sink accepts them.
package player

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rabidaudio/cdplayer/pes"
	"github.com/rabidaudio/cdplayer/ringbuf"
	"github.com/sirupsen/logrus"
)

// Sink accepts PES packets for playback.
type Sink interface {
	// Poll waits up to timeout for the sink to accept another packet.
	Poll(ctx context.Context, timeout time.Duration) bool
	Write(packet []byte) error
	// Clear drops everything queued and resynchronizes playback.
	Clear() error
}

// Rates are the presentation rates, from normal to fastest. Labelling CD
// audio with a higher rate makes the sink play it faster.
var Rates = []pes.Rate{pes.Rate44100, pes.Rate48000, pes.Rate96000}

// Config tunes how blocks are cut into packets and how long to wait.
type Config struct {
	ChunksPerSector int           // packets each sector is split into
	PollTimeout     time.Duration // longest wait for the sink per poll
	PauseInterval   time.Duration // sleep between checks while paused
}

// Player moves blocks from the ring buffer into a Sink.
type Player struct {
	buf  *ringbuf.RingBuffer
	sink Sink
	cfg  Config
	log  logrus.FieldLogger

	purge     atomic.Bool
	paused    atomic.Bool
	speed     atomic.Int32 // index into Rates
	delivered atomic.Uint64

	packet []byte
}

// New creates a player at normal speed.
func New(buf *ringbuf.RingBuffer, sink Sink, cfg Config, log logrus.FieldLogger) *Player {
	if cfg.ChunksPerSector < 1 {
		cfg.ChunksPerSector = 1
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = time.Second
	}
	if cfg.PauseInterval <= 0 {
		cfg.PauseInterval = 100 * time.Millisecond
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Player{
		buf:    buf,
		sink:   sink,
		cfg:    cfg,
		log:    log,
		packet: make([]byte, pes.MaxPackSize),
	}
}

// Run delivers audio until the buffer is stopped or drained after the end
// of the play list, or ctx is done. A sink that fails a write ends Run
// with that error.
func (p *Player) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if p.purge.Swap(false) {
			p.clearSink()
		}
		if p.paused.Load() {
			select {
			case <-ctx.Done():
			case <-time.After(p.cfg.PauseInterval):
			}
			continue
		}

		b, err := p.buf.Get(ctx)
		switch {
		case err == nil:
		case errors.Is(err, ringbuf.ErrTimeout):
			continue
		case errors.Is(err, ringbuf.ErrStopped):
			return nil
		case errors.Is(err, ringbuf.ErrEndOfStream):
			p.log.Debug("end of stream")
			return nil
		default:
			return err
		}

		if err := p.deliver(ctx, b); err != nil {
			return err
		}
	}
}

// deliver writes b in ChunksPerSector packets, polling the sink before
// each. A purge abandons the rest of the block.
func (p *Player) deliver(ctx context.Context, b ringbuf.Block) error {
	chunk := len(b.Data) / p.cfg.ChunksPerSector
	for i := 0; i < p.cfg.ChunksPerSector; {
		if p.purge.Load() || ctx.Err() != nil {
			return nil
		}
		if !p.sink.Poll(ctx, p.cfg.PollTimeout) {
			if p.buf.Stopped() {
				return nil
			}
			continue
		}

		end := (i + 1) * chunk
		if i == p.cfg.ChunksPerSector-1 {
			end = len(b.Data)
		}
		n, err := pes.Encode(p.packet, b.Data[i*chunk:end], p.Rate())
		if err != nil {
			return err
		}
		if err := p.sink.Write(p.packet[:n]); err != nil {
			return fmt.Errorf("player: sector %d: %w", b.Sector, err)
		}
		i++
	}
	p.delivered.Add(1)
	return nil
}

func (p *Player) clearSink() {
	if err := p.sink.Clear(); err != nil {
		p.log.WithError(err).Warn("clearing sink")
		return
	}
	p.log.Debug("sink purged")
}

// Purge drops the packet in flight and clears the sink. Call it when the
// playback position jumps.
func (p *Player) Purge() {
	p.purge.Store(true)
}

// SetPaused stops or resumes taking blocks off the buffer.
func (p *Player) SetPaused(paused bool) {
	p.paused.Store(paused)
}

func (p *Player) Paused() bool {
	return p.paused.Load()
}

// SpeedFaster steps up to the next presentation rate.
func (p *Player) SpeedFaster() pes.Rate {
	return p.setSpeed(min(int(p.speed.Load())+1, len(Rates)-1))
}

// SpeedSlower steps down to the previous presentation rate.
func (p *Player) SpeedSlower() pes.Rate {
	return p.setSpeed(max(int(p.speed.Load())-1, 0))
}

// SpeedNormal returns to real time.
func (p *Player) SpeedNormal() pes.Rate {
	return p.setSpeed(0)
}

func (p *Player) setSpeed(i int) pes.Rate {
	p.speed.Store(int32(i))
	p.log.WithField("rate", Rates[i]).Debug("presentation rate")
	return Rates[i]
}

// Rate returns the presentation rate tag.
func (p *Player) Rate() pes.Rate {
	return Rates[p.speed.Load()]
}

// Delivered returns the number of sectors fully written to the sink.
func (p *Player) Delivered() uint64 {
	return p.delivered.Load()
}
