package disc

import (
	"bytes"
	"fmt"
	"io"

	"github.com/rabidaudio/cdplayer/cd"
)

// TrackReader presents one track as a flat stream of PCM bytes. Reads
// and seeks may land anywhere inside a sector; whole sectors are fetched
// from the source and the remainder is kept for the next Read.
type TrackReader struct {
	src   SectorSource
	track cd.Track

	trueOffset  int64 // byte position handed to the caller
	blockOffset int64 // byte position of the end of buf
	buf         bytes.Buffer
	sector      []byte
}

var _ io.ReadSeeker = (*TrackReader)(nil)

func NewTrackReader(src SectorSource, track cd.Track) *TrackReader {
	return &TrackReader{src: src, track: track, sector: make([]byte, cd.BytesPerSector)}
}

// Size returns the length of the track in bytes.
func (r *TrackReader) Size() int64 {
	return int64(r.track.LengthSectors()) * cd.BytesPerSector
}

func (r *TrackReader) Read(p []byte) (n int, err error) {
	if len(p) == 0 {
		return 0, nil
	}
	// if there's data available in the buffer, return just that
	if r.buf.Len() > 0 {
		n = copy(p, r.buf.Next(len(p)))
		r.trueOffset += int64(n)
		nn, err := r.Read(p[n:])
		if err == io.EOF {
			err = nil
		}
		return n + nn, err
	}
	if r.blockOffset >= r.Size() {
		return 0, io.EOF
	}
	// otherwise load data into the buffer
	nsectors := len(p)/cd.BytesPerSector + 1
	if err := r.loadNextSectors(nsectors); err != nil {
		return 0, err
	}
	return r.Read(p)
}

func (r *TrackReader) loadNextSectors(nsectors int) error {
	for range nsectors {
		if r.blockOffset >= r.Size() {
			return nil
		}
		sector := r.track.StartSector + int32(r.blockOffset/cd.BytesPerSector)
		if err := r.src.ReadSector(sector, r.sector); err != nil {
			return err
		}
		r.buf.Write(r.sector)
		r.blockOffset += cd.BytesPerSector
	}
	return nil
}

func (r *TrackReader) Seek(offset int64, whence int) (int64, error) {
	var newoffset int64
	switch whence {
	case io.SeekCurrent:
		newoffset = r.trueOffset + offset
	case io.SeekEnd:
		newoffset = r.Size() + offset
	default:
		newoffset = offset
	}
	if newoffset < 0 {
		return r.trueOffset, fmt.Errorf("disc: seek to negative offset %d", newoffset)
	}

	// nothing to do
	if newoffset == r.trueOffset {
		return r.trueOffset, nil
	}

	// can use data already in buffer
	if newoffset > r.trueOffset && newoffset < r.blockOffset {
		_ = r.buf.Next(int(newoffset - r.trueOffset))
		r.trueOffset = newoffset
		return r.trueOffset, nil
	}

	// otherwise wipe and reload from the containing sector
	r.buf.Reset()
	r.blockOffset = newoffset - newoffset%cd.BytesPerSector
	r.trueOffset = r.blockOffset
	if newoffset >= r.Size() {
		r.blockOffset = r.Size()
		r.trueOffset = newoffset
		return r.trueOffset, nil
	}
	if err := r.loadNextSectors(1); err != nil {
		return r.trueOffset, err
	}
	_ = r.buf.Next(int(newoffset - r.trueOffset))
	r.trueOffset = newoffset
	return r.trueOffset, nil
}
