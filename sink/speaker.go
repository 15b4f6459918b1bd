package sink

import (
	"context"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/pes"
	"github.com/rabidaudio/cdplayer/player"
)

// AudioCDFormat is the format of disc audio in beep terms.
var AudioCDFormat = beep.Format{
	SampleRate:  cd.SampleRate,
	NumChannels: cd.Channels,
	Precision:   cd.BytesPerSample,
}

// Speaker plays packets on the default sound card. Packets tagged with a
// rate above 44.1kHz are played back faster by dropping frames.
type Speaker struct {
	highWater int // frames

	mu    sync.Mutex
	queue [][2]float64
	phase float64 // position in the next packet, in frames
	space chan struct{}
}

var (
	_ player.Sink   = (*Speaker)(nil)
	_ beep.Streamer = (*Speaker)(nil)
)

// NewSpeaker opens the sound card with a device buffer of latency and
// starts playing. Poll reports ready while less than highWater of audio
// is queued.
func NewSpeaker(latency, highWater time.Duration) (*Speaker, error) {
	s := newSpeaker(highWater)
	if err := speaker.Init(AudioCDFormat.SampleRate, AudioCDFormat.SampleRate.N(latency)); err != nil {
		return nil, err
	}
	speaker.Play(s)
	return s, nil
}

func newSpeaker(highWater time.Duration) *Speaker {
	return &Speaker{
		highWater: max(AudioCDFormat.SampleRate.N(highWater), cd.SamplesPerSector),
		space:     make(chan struct{}, 1),
	}
}

// Stream implements beep.Streamer. Gaps in the queue are played as
// silence so the device never stops.
func (s *Speaker) Stream(samples [][2]float64) (n int, ok bool) {
	s.mu.Lock()
	n = copy(samples, s.queue)
	s.queue = s.queue[n:]
	s.mu.Unlock()

	for i := n; i < len(samples); i++ {
		samples[i] = [2]float64{}
	}
	select {
	case s.space <- struct{}{}:
	default:
	}
	return len(samples), true
}

// Err implements beep.Streamer. The queue never fails.
func (s *Speaker) Err() error {
	return nil
}

func (s *Speaker) Poll(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		if s.Queued() < s.highWater {
			return true
		}
		select {
		case <-s.space:
		case <-timer.C:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

func (s *Speaker) Write(packet []byte) error {
	hdr, payload, err := pes.Decode(packet)
	if err != nil {
		return err
	}
	frames := pcmFrames(make([][2]float64, 0, len(payload)/frameSize), payload)
	step := float64(hdr.Rate.Hz()) / cd.SampleRate
	if step <= 0 {
		step = 1
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if step == 1 {
		s.queue = append(s.queue, frames...)
		return nil
	}
	for ; s.phase < float64(len(frames)); s.phase += step {
		s.queue = append(s.queue, frames[int(s.phase)])
	}
	s.phase -= float64(len(frames))
	return nil
}

// Clear drops the queued audio.
func (s *Speaker) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = nil
	s.phase = 0
	return nil
}

// Queued returns the number of frames waiting to be played.
func (s *Speaker) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops playback and releases the sound card.
func (s *Speaker) Close() error {
	speaker.Clear()
	speaker.Close()
	return nil
}
