package vfs

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/go-audio/wav"
	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/disc"
	"github.com/rabidaudio/cdplayer/mock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openReader(t *testing.T) (*Filesystem, *Reader, *cd.Catalog) {
	t.Helper()
	fsys := create(t)
	m, c := chronicTown(t)
	failIfErr(t, fsys.LoadCatalog(c))
	log, _ := test.NewNullLogger()
	r, err := fsys.Reader(disc.NewSectorSource(m, false), log)
	failIfErr(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return fsys, r, c
}

// expectedTrack is the WAV file the reader should produce for tr
func expectedTrack(tr cd.Track) []byte {
	out := wavHeader(tr)
	for s := tr.StartSector; s < tr.EndSector; s++ {
		out = append(out, mock.SectorData(s)...)
	}
	return out
}

// readTrack follows the track's disk ranges through the reader
func readTrack(t *testing.T, r io.ReadSeeker, tr TrackRange) []byte {
	t.Helper()
	var out bytes.Buffer
	for _, dr := range tr.DiskRanges {
		_, err := r.Seek(int64(dr.Offset), io.SeekStart)
		failIfErr(t, err)
		_, err = io.CopyN(&out, r, int64(dr.Length))
		failIfErr(t, err)
	}
	return out.Bytes()[:tr.Size]
}

func TestReaderServesTracks(t *testing.T) {
	fsys, r, c := openReader(t)
	ranges, err := fsys.TrackRanges()
	failIfErr(t, err)

	for i, tr := range ranges {
		got := readTrack(t, r, tr)
		want := expectedTrack(tr.Track)
		require.Equal(t, len(want), len(got), "track %d", i)
		assert.True(t, bytes.Equal(want, got), "track %d contents", i)

		dec := wav.NewDecoder(bytes.NewReader(got))
		assert.True(t, dec.IsValidFile(), "track %d is a wav file", i)
		assert.Equal(t, uint32(cd.SampleRate), dec.SampleRate)
		assert.Equal(t, uint16(cd.Channels), dec.NumChans)
		assert.Equal(t, uint16(cd.BitsPerSample), dec.BitDepth)
	}
	assert.Equal(t, 3, c.Len())
}

func TestReaderOutsideTracks(t *testing.T) {
	fsys, r, _ := openReader(t)
	img, err := os.ReadFile(fsys.Path)
	failIfErr(t, err)

	// the boot sector and the tables come straight from the image
	head := make([]byte, 64*SectorSize)
	_, err = io.ReadFull(r, head)
	failIfErr(t, err)
	assert.True(t, bytes.Equal(img[:len(head)], head))

	// so does the end of the volume
	_, err = r.Seek(-SectorSize, io.SeekEnd)
	failIfErr(t, err)
	tail, err := io.ReadAll(r)
	failIfErr(t, err)
	assert.True(t, bytes.Equal(img[len(img)-SectorSize:], tail))
}

func TestReaderAcrossBoundary(t *testing.T) {
	fsys, r, _ := openReader(t)
	ranges, err := fsys.TrackRanges()
	failIfErr(t, err)

	// start a block before the first track and read into it
	first := ranges[0].DiskRanges[0]
	_, err = r.Seek(int64(first.Offset)-SectorSize, io.SeekStart)
	failIfErr(t, err)
	p := make([]byte, 2*SectorSize)
	_, err = io.ReadFull(r, p)
	failIfErr(t, err)
	assert.Equal(t, []byte("RIFF"), p[SectorSize:SectorSize+4])
	assert.Equal(t, mock.SectorData(0)[:4], p[SectorSize+WavHeaderLen:SectorSize+WavHeaderLen+4])
}

func TestServe(t *testing.T) {
	fsys, r, _ := openReader(t)
	ranges, err := fsys.TrackRanges()
	failIfErr(t, err)

	link := &mock.Link{}
	first := ranges[1].DiskRanges[0]
	link.Request(uint32(first.Offset/SectorSize), 4)
	link.Request(0, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	log, _ := test.NewNullLogger()
	go func() {
		done <- Serve(ctx, link, r, log)
	}()
	require.Eventually(t, func() bool {
		return link.Pending() == 0 && len(link.Written()) == 5*SectorSize
	}, 5*time.Second, time.Millisecond)
	cancel()
	failIfErr(t, <-done)

	written := link.Written()
	want := expectedTrack(ranges[1].Track)
	assert.True(t, bytes.Equal(want[:4*SectorSize], written[:4*SectorSize]))

	img, err := os.ReadFile(fsys.Path)
	failIfErr(t, err)
	assert.True(t, bytes.Equal(img[:SectorSize], written[4*SectorSize:]))
}
