package sink

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/pes"
	"github.com/rabidaudio/cdplayer/player"
)

// Wav records the played audio to a 16 bit stereo WAV file. It is always
// ready and ignores the presentation rate.
type Wav struct {
	f   *os.File
	enc *wav.Encoder
	buf audio.IntBuffer

	frames int
}

var _ player.Sink = (*Wav)(nil)

// NewWav creates the file at path.
func NewWav(path string) (*Wav, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &Wav{
		f:   f,
		enc: wav.NewEncoder(f, cd.SampleRate, cd.BitsPerSample, cd.Channels, 1),
		buf: audio.IntBuffer{
			Format:         &audio.Format{NumChannels: cd.Channels, SampleRate: cd.SampleRate},
			SourceBitDepth: cd.BitsPerSample,
		},
	}, nil
}

func (w *Wav) Poll(ctx context.Context, timeout time.Duration) bool {
	return ctx.Err() == nil
}

func (w *Wav) Write(packet []byte) error {
	_, payload, err := pes.Decode(packet)
	if err != nil {
		return err
	}
	w.buf.Data = pcmInts(w.buf.Data[:0], payload)
	if err := w.enc.Write(&w.buf); err != nil {
		return fmt.Errorf("wav: %w", err)
	}
	w.frames += len(payload) / frameSize
	return nil
}

// Clear is a no-op; a file has nothing queued.
func (w *Wav) Clear() error {
	return nil
}

// Frames returns the number of stereo samples written.
func (w *Wav) Frames() int {
	return w.frames
}

// Close finishes the headers and closes the file.
func (w *Wav) Close() error {
	if err := w.enc.Close(); err != nil {
		_ = w.f.Close()
		return err
	}
	return w.f.Close()
}
