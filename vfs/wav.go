package vfs

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/disc"
)

// WavHeaderLen is the size of the canonical RIFF header in front of the
// samples of every track file.
const WavHeaderLen = 44

func wavHeader(t cd.Track) []byte {
	dataLen := uint32(t.LengthSectors()) * cd.BytesPerSector
	h := make([]byte, WavHeaderLen)
	copy(h[0:], "RIFF")
	binary.LittleEndian.PutUint32(h[4:], 36+dataLen)
	copy(h[8:], "WAVE")
	copy(h[12:], "fmt ")
	binary.LittleEndian.PutUint32(h[16:], 16) // fmt chunk size
	binary.LittleEndian.PutUint16(h[20:], 1)  // PCM
	binary.LittleEndian.PutUint16(h[22:], cd.Channels)
	binary.LittleEndian.PutUint32(h[24:], cd.SampleRate)
	binary.LittleEndian.PutUint32(h[28:], cd.SampleRate*cd.Channels*cd.BytesPerSample)
	binary.LittleEndian.PutUint16(h[32:], cd.Channels*cd.BytesPerSample)
	binary.LittleEndian.PutUint16(h[34:], cd.BitsPerSample)
	copy(h[36:], "data")
	binary.LittleEndian.PutUint32(h[40:], dataLen)
	return h
}

// trackFile is the contents of a track's WAV file: the header followed by
// the track's sectors as they come off the disc.
type trackFile struct {
	header []byte
	data   *disc.TrackReader
	size   int64
	offset int64
}

func newTrackFile(src disc.SectorSource, t cd.Track) *trackFile {
	return &trackFile{
		header: wavHeader(t),
		data:   disc.NewTrackReader(src, t),
		size:   TrackSize(t),
	}
}

func (f *trackFile) Read(p []byte) (int, error) {
	if f.offset >= f.size {
		return 0, io.EOF
	}
	if f.offset < WavHeaderLen {
		n := copy(p, f.header[f.offset:])
		f.offset += int64(n)
		return n, nil
	}
	if _, err := f.data.Seek(f.offset-WavHeaderLen, io.SeekStart); err != nil {
		return 0, err
	}
	n, err := f.data.Read(p)
	f.offset += int64(n)
	return n, err
}

func (f *trackFile) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += f.offset
	case io.SeekEnd:
		offset += f.size
	default:
		return 0, errors.New("vfs: invalid whence")
	}
	if offset < 0 {
		return 0, errors.New("vfs: negative position")
	}
	f.offset = offset
	return offset, nil
}

var _ io.ReadSeeker = (*trackFile)(nil)
