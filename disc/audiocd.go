package disc

import (
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/rabidaudio/audiocd"
	"github.com/rabidaudio/cdplayer/cd"
	"github.com/sirupsen/logrus"
)

// lead-in offset between absolute sector addresses and LBA
const pregapSectors = 150

// AudioCDOpener opens real drives through libcdio.
type AudioCDOpener struct {
	// Paranoia enables libcdio's full error checking. It never retries a
	// failed sector.
	Paranoia bool
	Log      logrus.FieldLogger
}

var _ Opener = (*AudioCDOpener)(nil)

// Open identifies the drive at path, or the first drive found when path
// is empty, and reads its table of contents.
func (o *AudioCDOpener) Open(path string) (Device, error) {
	drive := &audiocd.AudioCD{Device: path, MaxRetries: -1}
	var logw *io.PipeWriter
	if o.Log != nil {
		logw = o.Log.WithField("device", path).WriterLevel(logrus.DebugLevel)
		drive.LogMode = audiocd.LogModeLogger
		drive.Logger = log.New(logw, "", 0)
	}
	if err := drive.Open(); err != nil {
		closeLog(logw)
		return nil, openError(err)
	}
	if o.Paranoia {
		drive.SetParanoiaMode(audiocd.ParanoiaModeFull)
	} else {
		drive.SetParanoiaMode(audiocd.ParanoiaModeDisable)
	}

	toc := drive.TOC()
	if len(toc) == 0 {
		_ = drive.Close()
		closeLog(logw)
		return nil, cd.ErrNoMedium
	}
	return &audioCDDevice{drive: drive, toc: toc, next: -1, logw: logw}, nil
}

func closeLog(w *io.PipeWriter) {
	if w != nil {
		_ = w.Close()
	}
}

func openError(err error) error {
	var code audiocd.AudioCDError
	if errors.As(err, &code) {
		switch code {
		case audiocd.ErrNoMediumPresent, audiocd.ErrReadTOCLeadOut, audiocd.ErrReadTOCHeader:
			return fmt.Errorf("%w: %v", cd.ErrNoMedium, err)
		case audiocd.ErrNoAudioTracks:
			return fmt.Errorf("%w: %v", cd.ErrNoAudioTrack, err)
		case audiocd.ErrIllegalNumberOfTracks, audiocd.ErrReadTOCEntry, audiocd.ErrIllegalTOC:
			return fmt.Errorf("%w: %v", cd.ErrTrackTable, err)
		}
	}
	return fmt.Errorf("%w: %v", cd.ErrDeviceOpen, err)
}

type audioCDDevice struct {
	drive *audiocd.AudioCD
	toc   []audiocd.TrackPosition
	next  int32 // sector the drive cursor sits on, or -1
	logw  *io.PipeWriter
}

func (d *audioCDDevice) TrackCount() int {
	return len(d.toc)
}

func (d *audioCDDevice) TrackBounds(i int) (Bounds, error) {
	if i < 0 || i >= len(d.toc) {
		return Bounds{}, fmt.Errorf("%w: no entry %d", cd.ErrTrackTable, i)
	}
	t := d.toc[i]
	return Bounds{
		TrackNum:    int(t.TrackNum),
		StartSector: t.StartSector,
		EndSector:   t.StartSector + t.LengthSectors,
		LBA:         t.StartSector + pregapSectors,
		IsAudio:     t.IsAudio(),
	}, nil
}

func (d *audioCDDevice) ReadSector(sector int32, p []byte) error {
	if !d.drive.IsOpen() {
		return io.ErrClosedPipe
	}
	if sector != d.next {
		if _, err := d.drive.SeekToSector(sector); err != nil {
			d.next = -1
			return err
		}
	}
	if _, err := io.ReadFull(d.drive, p[:cd.BytesPerSector]); err != nil {
		d.next = -1
		return err
	}
	d.next = sector + 1
	return nil
}

func (d *audioCDDevice) SetSpeed(x int) error {
	return d.drive.SetSpeed(x)
}

func (d *audioCDDevice) Close() error {
	defer closeLog(d.logw)
	return d.drive.Close()
}
