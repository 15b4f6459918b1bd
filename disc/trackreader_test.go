package disc

import (
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"testing"

	"github.com/rabidaudio/cdplayer/cd"
	"github.com/stretchr/testify/assert"
)

func failIfErr(t *testing.T, err error) {
	if err != nil {
		t.Fatal(err)
	}
}

// fakeSector is the pattern every sector of rampSource holds
var fakeSector []byte

func init() {
	fakeSector = make([]byte, cd.BytesPerSector)
	for i := range fakeSector {
		fakeSector[i] = byte(i)
	}
	fakeSector[0] = 0xDE
	fakeSector[1] = 0xAD
	fakeSector[2] = 0xBE
	fakeSector[3] = 0xEF
}

type rampSource struct {
	reads []int32
}

func (s *rampSource) ReadSector(sector int32, p []byte) error {
	s.reads = append(s.reads, sector)
	copy(p, fakeSector)
	return nil
}

func TestTrackReader(t *testing.T) {
	const spb = cd.BytesPerSector
	track := cd.Track{StartSector: 500, EndSector: 510}
	dest := make([]byte, 10*spb)

	zeroOut := func() {
		for i := range dest {
			dest[i] = 0
		}
	}

	src := rampSource{}
	r := NewTrackReader(&src, track)
	assert.Equal(t, int64(10*spb), r.Size())

	sn, err := r.Seek(0, io.SeekStart)
	failIfErr(t, err)
	assert.Equal(t, int64(0), sn)

	// Read one sector
	n, err := r.Read(dest[:spb])
	failIfErr(t, err)
	assert.Equal(t, spb, n)
	assert.Equal(t, fakeSector, dest[:spb])
	assert.Equal(t, int32(500), src.reads[0])

	// Read remaining sectors
	n, err = r.Read(dest[spb:])
	failIfErr(t, err)
	assert.Equal(t, 9*spb, n)
	assert.Equal(t, fakeSector, dest[9*spb:])

	// the track is exhausted
	_, err = r.Read(dest[:1])
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, int32(509), src.reads[len(src.reads)-1])

	// seek to sector 5 and read 2
	sn, err = r.Seek(5*spb, io.SeekStart)
	failIfErr(t, err)
	assert.Equal(t, int64(5*spb), sn)
	assert.Equal(t, int64(6*spb), r.blockOffset)
	assert.Equal(t, spb, r.buf.Len())
	assert.Equal(t, int32(505), src.reads[len(src.reads)-1])

	zeroOut()
	n, err = r.Read(dest[5*spb : 7*spb])
	failIfErr(t, err)
	assert.Equal(t, 2*spb, n)
	assert.Equal(t, fakeSector, dest[5*spb:6*spb])
	assert.Equal(t, fakeSector, dest[6*spb:7*spb])
	assert.Equal(t, int64(7*spb), r.trueOffset)

	// read a partial sector
	zeroOut()
	n, err = r.Read(dest[7*spb : 7*spb+50])
	failIfErr(t, err)
	assert.Equal(t, 50, n)
	assert.Equal(t, fakeSector[:50], dest[7*spb:7*spb+50])

	// seek within the buffered data
	sn, err = r.Seek(25, io.SeekCurrent)
	failIfErr(t, err)
	assert.Equal(t, int64(7*spb+75), sn)
	reads := len(src.reads)

	zeroOut()
	n, err = r.Read(dest[7*spb+75 : 7*spb+100])
	failIfErr(t, err)
	assert.Equal(t, 25, n)
	assert.Equal(t, fakeSector[75:100], dest[7*spb+75:7*spb+100])
	assert.Equal(t, reads, len(src.reads), "no new sector read for buffered data")

	// seek relative to the end
	sn, err = r.Seek(-10, io.SeekEnd)
	failIfErr(t, err)
	assert.Equal(t, int64(10*spb-10), sn)
	n, err = r.Read(dest[:100])
	failIfErr(t, err)
	assert.Equal(t, 10, n)
	assert.Equal(t, fakeSector[spb-10:], dest[:10])

	_, err = r.Seek(-1, io.SeekStart)
	assert.Error(t, err)

	// read random amounts at random offsets
	for range 500 {
		read, _ := rand.Int(rand.Reader, big.NewInt(2*spb))
		start, _ := rand.Int(rand.Reader, big.NewInt(8*spb))
		_, err = r.Seek(start.Int64(), io.SeekStart)
		failIfErr(t, err)
		zeroOut()
		n, err = r.Read(dest[:read.Int64()])
		failIfErr(t, err)
		assert.Equal(t, int(read.Int64()), n)
		for i := range n {
			off := (int(start.Int64()) + i) % spb
			if dest[i] != fakeSector[off] {
				t.Fatalf("byte %d after offset %d: got %x want %x", i, start.Int64(), dest[i], fakeSector[off])
			}
		}
	}
}

type failingSource struct{}

func (failingSource) ReadSector(sector int32, p []byte) error {
	return errors.New("scratched")
}

func TestTrackReaderError(t *testing.T) {
	r := NewTrackReader(failingSource{}, cd.Track{StartSector: 0, EndSector: 2})
	_, err := r.Read(make([]byte, 10))
	assert.Error(t, err)
}
