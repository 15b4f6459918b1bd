package vfs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rabidaudio/cdplayer/spi"
	"github.com/sirupsen/logrus"
)

// PollInterval is how often Serve queries the MCU.
const PollInterval = time.Millisecond

// Serve answers the MCU's block requests from r until ctx is done.
func Serve(ctx context.Context, link spi.Link, r io.ReadSeeker, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	tick := time.NewTicker(PollInterval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("closing")
			return nil
		case <-tick.C:
			dr, err := link.Query()
			if errors.Is(err, spi.ErrNoResponse) {
				continue
			}
			if err != nil {
				return err
			}
			if !dr.Requested {
				continue
			}
			log.WithFields(logrus.Fields{"address": dr.Address, "count": dr.SectorCount}).Debug("received request")
			if _, err := r.Seek(int64(dr.Address)*SectorSize, io.SeekStart); err != nil {
				return err
			}
			count := int64(SectorSize) * int64(dr.SectorCount)
			if _, err := io.CopyN(link, r, count); err != nil {
				return fmt.Errorf("vfs: block %d: %w", dr.Address, err)
			}
		}
	}
}
