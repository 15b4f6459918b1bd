package player

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/mock"
	"github.com/rabidaudio/cdplayer/pes"
	"github.com/rabidaudio/cdplayer/ringbuf"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failIfErr(t *testing.T, err error) {
	if err != nil {
		t.Fatal(err)
	}
}

type fakeSink struct {
	mu      sync.Mutex
	packets [][]byte
	clears  int
	ready   bool
	polls   int
	writeFn func([]byte) error
}

func (s *fakeSink) Poll(ctx context.Context, timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	if !s.ready {
		time.Sleep(time.Millisecond)
	}
	return s.ready
}

func (s *fakeSink) Write(p []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeFn != nil {
		if err := s.writeFn(p); err != nil {
			return err
		}
	}
	s.packets = append(s.packets, append([]byte(nil), p...))
	return nil
}

func (s *fakeSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clears++
	return nil
}

func (s *fakeSink) setReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

func (s *fakeSink) snapshot() ([][]byte, int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.packets...), s.clears, s.polls
}

func newPlayer(t *testing.T, sink Sink, capacity int) (*Player, *ringbuf.RingBuffer) {
	buf, err := ringbuf.New(capacity, 50*time.Millisecond)
	require.NoError(t, err)
	log, _ := test.NewNullLogger()
	return New(buf, sink, Config{ChunksPerSector: 4, PollTimeout: 10 * time.Millisecond, PauseInterval: 5 * time.Millisecond}, log), buf
}

func fill(t *testing.T, buf *ringbuf.RingBuffer, sectors ...int32) {
	for i, s := range sectors {
		require.NoError(t, buf.Put(context.Background(), ringbuf.Block{Data: mock.SectorData(s), Sector: s, Seq: uint64(i)}))
	}
}

func TestDelivery(t *testing.T) {
	sink := &fakeSink{ready: true}
	p, buf := newPlayer(t, sink, 4)
	fill(t, buf, 10, 11)
	buf.Seal()

	failIfErr(t, p.Run(context.Background()))

	packets, _, polls := sink.snapshot()
	require.Len(t, packets, 8)
	assert.Equal(t, 8, polls)
	assert.Equal(t, uint64(2), p.Delivered())

	var audio []byte
	for _, pkt := range packets {
		hdr, payload, err := pes.Decode(pkt)
		require.NoError(t, err)
		assert.Equal(t, pes.Rate44100, hdr.Rate)
		assert.Equal(t, cd.BytesPerSector/4, hdr.PayloadLen)
		audio = append(audio, payload...)
	}
	assert.Equal(t, append(mock.SectorData(10), mock.SectorData(11)...), audio)
}

func TestWaitsForSink(t *testing.T) {
	sink := &fakeSink{}
	p, buf := newPlayer(t, sink, 4)
	fill(t, buf, 1)
	buf.Seal()

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	time.Sleep(30 * time.Millisecond)
	packets, _, polls := sink.snapshot()
	assert.Empty(t, packets)
	assert.Greater(t, polls, 1)

	sink.setReady(true)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("player did not finish")
	}
	packets, _, _ = sink.snapshot()
	assert.Len(t, packets, 4)
}

func TestPurge(t *testing.T) {
	sink := &fakeSink{ready: true}
	p, buf := newPlayer(t, sink, 4)

	// purge from inside the second write of the first sector
	writes := 0
	sink.writeFn = func([]byte) error {
		writes++
		if writes == 2 {
			p.Purge()
		}
		return nil
	}
	fill(t, buf, 1, 2)
	buf.Seal()

	failIfErr(t, p.Run(context.Background()))
	packets, clears, _ := sink.snapshot()
	assert.Equal(t, 1, clears)
	// two packets of sector 1 went out before the purge, sector 2 in full
	assert.Len(t, packets, 2+4)
	assert.Equal(t, uint64(1), p.Delivered())
}

func TestStopEndsRun(t *testing.T) {
	p, buf := newPlayer(t, &fakeSink{ready: true}, 4)
	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()

	// timeouts on an empty buffer keep it waiting
	time.Sleep(120 * time.Millisecond)
	buf.Stop()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("player ignored stop")
	}
}

func TestContextEndsRun(t *testing.T) {
	p, _ := newPlayer(t, &fakeSink{ready: true}, 4)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Run(ctx), context.DeadlineExceeded)
}

func TestWriteError(t *testing.T) {
	broken := errors.New("device gone")
	sink := &fakeSink{ready: true, writeFn: func([]byte) error { return broken }}
	p, buf := newPlayer(t, sink, 4)
	fill(t, buf, 7)

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, broken)
}

func TestSpeed(t *testing.T) {
	p, buf := newPlayer(t, &fakeSink{ready: true}, 4)
	assert.Equal(t, pes.Rate44100, p.Rate())
	assert.Equal(t, pes.Rate48000, p.SpeedFaster())
	assert.Equal(t, pes.Rate96000, p.SpeedFaster())
	assert.Equal(t, pes.Rate96000, p.SpeedFaster())
	assert.Equal(t, pes.Rate48000, p.SpeedSlower())
	assert.Equal(t, pes.Rate44100, p.SpeedSlower())
	assert.Equal(t, pes.Rate44100, p.SpeedSlower())

	p.SpeedFaster()
	p.SpeedFaster()
	sink := p.sink.(*fakeSink)
	fill(t, buf, 3)
	buf.Seal()
	failIfErr(t, p.Run(context.Background()))
	packets, _, _ := sink.snapshot()
	hdr, _, err := pes.Decode(packets[0])
	require.NoError(t, err)
	assert.Equal(t, pes.Rate96000, hdr.Rate)

	assert.Equal(t, pes.Rate44100, p.SpeedNormal())
}

func TestPause(t *testing.T) {
	sink := &fakeSink{ready: true}
	p, buf := newPlayer(t, sink, 4)
	p.SetPaused(true)
	assert.True(t, p.Paused())
	fill(t, buf, 1)

	done := make(chan error, 1)
	go func() { done <- p.Run(context.Background()) }()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, buf.Len())

	p.SetPaused(false)
	buf.Seal()
	assert.NoError(t, <-done)
	assert.Equal(t, 0, buf.Len())
}
