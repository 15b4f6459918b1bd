package vfs

import (
	"errors"
	"io"
	"math"
	"os"

	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/rabidaudio/cdplayer/disc"
	"github.com/sirupsen/logrus"
)

// Reader reads the volume image, except inside track files where the
// bytes come from the disc.
type Reader struct {
	img    *os.File
	size   int64
	offset int64
	ranges []TrackRange
	tracks []*trackFile
	log    logrus.FieldLogger
}

// Reader opens the image for reading, with track data taken from src.
// Close the reader after use.
func (f *Filesystem) Reader(src disc.SectorSource, log logrus.FieldLogger) (*Reader, error) {
	ranges, err := f.TrackRanges()
	if err != nil {
		return nil, err
	}
	img, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	tracks := make([]*trackFile, len(ranges))
	for i, tr := range ranges {
		tracks[i] = newTrackFile(src, tr.Track)
	}
	return &Reader{img: img, size: f.Size, ranges: ranges, tracks: tracks, log: log}, nil
}

func (r *Reader) Read(p []byte) (int, error) {
	if r.offset >= r.size {
		return 0, io.EOF
	}
	// if we are within a track, we should read from there instead,
	// otherwise we read from the image. Since Read is allowed to read
	// less than requested, we always stop at a track range boundary.
	// ...[======]...[=====].[=========]..
	// ^^          ^--^   ^--------^
	withinTrack, withinRange := -1, -1
	var trackRange fat32.DiskRange
	var nextTrackBounds int64 = math.MaxInt64
	end := r.offset + int64(len(p))
	for i, tr := range r.ranges {
		for j, dr := range tr.DiskRanges {
			start, stop := int64(dr.Offset), int64(dr.Offset+dr.Length)
			if r.offset >= start && r.offset < stop {
				withinTrack, withinRange = i, j
				trackRange = dr
			}
			if start > r.offset && start < end {
				nextTrackBounds = min(nextTrackBounds, start)
			}
		}
	}

	size := int(min(int64(len(p)), r.size-r.offset))
	if withinTrack == -1 {
		size = int(min(int64(size), nextTrackBounds-r.offset))
		return r.readImage(p[:size], "image")
	}

	// read from the track up to the end of this range
	size = int(min(int64(size), int64(trackRange.Offset+trackRange.Length)-r.offset))

	// figure out where in the track file we are
	var tOffset int64
	for _, dr := range r.ranges[withinTrack].DiskRanges[:withinRange] {
		tOffset += int64(dr.Length)
	}
	tOffset += r.offset - int64(trackRange.Offset)

	// the slack after the end of the file in its last cluster
	trackLength := r.ranges[withinTrack].Size
	if tOffset >= trackLength {
		return r.readImage(p[:size], "slack")
	}

	track := r.tracks[withinTrack]
	if _, err := track.Seek(tOffset, io.SeekStart); err != nil {
		return 0, err
	}
	if toEnd := trackLength - tOffset; int64(size) > toEnd {
		// read to end of track and then from the image
		n, err := io.ReadFull(track, p[:toEnd])
		r.trace(n, withinTrack, err)
		r.offset += int64(n)
		if err != nil {
			return n, err
		}
		n2, err := r.readImage(p[toEnd:size], "slack")
		return n + n2, err
	}

	n, err := track.Read(p[:size])
	r.trace(n, withinTrack, err)
	r.offset += int64(n)
	if errors.Is(err, io.EOF) && n > 0 {
		err = nil
	}
	return n, err
}

func (r *Reader) readImage(p []byte, what string) (int, error) {
	n, err := r.img.ReadAt(p, r.offset)
	r.log.WithFields(logrus.Fields{"offset": r.offset, "n": n, "from": what}).Trace("read")
	r.offset += int64(n)
	if errors.Is(err, io.EOF) && n == len(p) {
		err = nil
	}
	return n, err
}

func (r *Reader) trace(n int, track int, err error) {
	r.log.WithFields(logrus.Fields{
		"offset": r.offset,
		"n":      n,
		"from":   "track",
		"track":  r.ranges[track].Track.TrackNum,
		"error":  err,
	}).Trace("read")
}

func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		offset += r.offset
	case io.SeekEnd:
		offset += r.size
	default:
		return 0, errors.New("vfs: invalid whence")
	}
	if offset < 0 {
		return 0, errors.New("vfs: negative position")
	}
	r.offset = offset
	return offset, nil
}

func (r *Reader) Close() error {
	return r.img.Close()
}

var _ io.ReadSeekCloser = (*Reader)(nil)
