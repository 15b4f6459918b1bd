package sink

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/mock"
	"github.com/rabidaudio/cdplayer/pes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failIfErr(t *testing.T, err error) {
	if err != nil {
		t.Fatal(err)
	}
}

func packet(t *testing.T, payload []byte, rate pes.Rate) []byte {
	p, err := pes.Packet(payload, rate)
	failIfErr(t, err)
	return p
}

func TestPCMFrames(t *testing.T) {
	frames := pcmFrames(nil, []byte{0x00, 0x40, 0x00, 0xC0, 0xFF, 0x7F, 0x00, 0x80})
	require.Len(t, frames, 2)
	assert.Equal(t, [2]float64{0.5, -0.5}, frames[0])
	assert.InDelta(t, 1.0, frames[1][0], 0.0001)
	assert.Equal(t, -1.0, frames[1][1])

	assert.Equal(t, []int{0x4000, -0x4000}, pcmInts(nil, []byte{0x00, 0x40, 0x00, 0xC0}))
}

func TestSpeakerStream(t *testing.T) {
	s := newSpeaker(10 * time.Millisecond)
	payload := mock.SectorData(1)[:588]
	failIfErr(t, s.Write(packet(t, payload, pes.Rate44100)))
	assert.Equal(t, 588/frameSize, s.Queued())

	samples := make([][2]float64, 200)
	n, ok := s.Stream(samples)
	assert.True(t, ok)
	assert.Equal(t, 200, n)
	assert.Equal(t, pcmFrames(nil, payload), samples[:147])
	// padded with silence once the queue runs dry
	assert.Equal(t, [2]float64{}, samples[199])
	assert.Equal(t, 0, s.Queued())
}

func TestSpeakerRates(t *testing.T) {
	s := newSpeaker(time.Second)
	payload := mock.SectorData(1)

	failIfErr(t, s.Write(packet(t, payload[:2000], pes.Rate96000)))
	failIfErr(t, s.Write(packet(t, payload[:2000], pes.Rate96000)))
	// 1000 frames at a step of 96000/44100
	assert.InDelta(t, 1000*44100/96000, s.Queued(), 2)

	failIfErr(t, s.Clear())
	assert.Equal(t, 0, s.Queued())

	failIfErr(t, s.Write(packet(t, payload[:2000], pes.Rate48000)))
	assert.InDelta(t, 500*44100/48000, s.Queued(), 2)
}

func TestSpeakerPoll(t *testing.T) {
	s := newSpeaker(0)
	ctx := context.Background()
	assert.True(t, s.Poll(ctx, time.Millisecond))

	for range 4 {
		failIfErr(t, s.Write(packet(t, mock.SectorData(1)[:cd.BytesPerSector/2], pes.Rate44100)))
	}
	assert.False(t, s.Poll(ctx, 10*time.Millisecond))

	go func() {
		time.Sleep(10 * time.Millisecond)
		s.Stream(make([][2]float64, 4*cd.SamplesPerSector))
	}()
	assert.True(t, s.Poll(ctx, time.Second))

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	for range 4 {
		failIfErr(t, s.Write(packet(t, mock.SectorData(1)[:cd.BytesPerSector/2], pes.Rate44100)))
	}
	assert.False(t, s.Poll(cancelled, time.Second))
}

func TestSpeakerRejectsGarbage(t *testing.T) {
	s := newSpeaker(time.Second)
	assert.ErrorIs(t, s.Write([]byte{1, 2, 3}), pes.ErrShortPacket)
}

func TestWav(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	w, err := NewWav(path)
	failIfErr(t, err)

	ctx := context.Background()
	assert.True(t, w.Poll(ctx, time.Second))
	for s := range int32(3) {
		data := mock.SectorData(s)
		for i := range 4 {
			failIfErr(t, w.Write(packet(t, data[i*588:(i+1)*588], pes.Rate96000)))
		}
	}
	assert.NoError(t, w.Clear())
	assert.Equal(t, 3*cd.SamplesPerSector, w.Frames())
	failIfErr(t, w.Close())

	f, err := os.Open(path)
	failIfErr(t, err)
	defer f.Close()
	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	buf, err := dec.FullPCMBuffer()
	failIfErr(t, err)
	assert.Equal(t, cd.SampleRate, buf.Format.SampleRate)
	assert.Equal(t, cd.Channels, buf.Format.NumChannels)
	assert.Equal(t, 3*cd.SamplesPerSector*cd.Channels, len(buf.Data))
	assert.Equal(t, pcmInts(nil, mock.SectorData(2)), buf.Data[2*cd.SamplesPerSector*cd.Channels:])
}
