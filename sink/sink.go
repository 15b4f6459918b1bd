// Package sink holds the playback sinks the player can write PES packets
// to: the sound card through beep, and WAV files through go-audio.
package sink

import (
	"encoding/binary"

	"github.com/rabidaudio/cdplayer/cd"
)

// frameSize is the number of bytes of one stereo sample
const frameSize = cd.Channels * cd.BytesPerSample

// pcmFrames converts disc audio, little endian 16 bit stereo, into beep
// frames in [-1, 1).
func pcmFrames(dst [][2]float64, p []byte) [][2]float64 {
	for i := 0; i+frameSize <= len(p); i += frameSize {
		l := int16(binary.LittleEndian.Uint16(p[i:]))
		r := int16(binary.LittleEndian.Uint16(p[i+2:]))
		dst = append(dst, [2]float64{float64(l) / (1 << 15), float64(r) / (1 << 15)})
	}
	return dst
}

// pcmInts converts disc audio into integer samples for go-audio.
func pcmInts(dst []int, p []byte) []int {
	for i := 0; i+cd.BytesPerSample <= len(p); i += cd.BytesPerSample {
		dst = append(dst, int(int16(binary.LittleEndian.Uint16(p[i:]))))
	}
	return dst
}
