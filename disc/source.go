package disc

import (
	"bytes"
	"fmt"

	"github.com/rabidaudio/cdplayer/cd"
)

// SectorSource reads one sector at a time. Errors wrap [cd.ErrSectorRead].
type SectorSource interface {
	ReadSector(sector int32, p []byte) error
}

// NewSectorSource picks the read path for dev. With verify set, every
// sector is read twice and a mismatch between the reads is reported as a
// read failure; otherwise each sector is read once.
func NewSectorSource(dev Device, verify bool) SectorSource {
	if verify {
		return &verifyingSource{dev: dev, scratch: make([]byte, cd.BytesPerSector)}
	}
	return directSource{dev: dev}
}

type directSource struct {
	dev Device
}

func (s directSource) ReadSector(sector int32, p []byte) error {
	if len(p) < cd.BytesPerSector {
		return fmt.Errorf("%w: buffer of %d bytes is smaller than a sector", cd.ErrSectorRead, len(p))
	}
	if err := s.dev.ReadSector(sector, p); err != nil {
		return fmt.Errorf("%w %d: %v", cd.ErrSectorRead, sector, err)
	}
	return nil
}

type verifyingSource struct {
	dev     Device
	scratch []byte
}

func (s *verifyingSource) ReadSector(sector int32, p []byte) error {
	if err := (directSource{dev: s.dev}).ReadSector(sector, p); err != nil {
		return err
	}
	if err := s.dev.ReadSector(sector, s.scratch); err != nil {
		return fmt.Errorf("%w %d: verify: %v", cd.ErrSectorRead, sector, err)
	}
	if !bytes.Equal(p[:cd.BytesPerSector], s.scratch) {
		return fmt.Errorf("%w %d: data differs between reads", cd.ErrSectorRead, sector)
	}
	return nil
}
