package main

import (
	"fmt"
	"io"
	"os"

	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/rabidaudio/cdplayer/disc"
	"github.com/rabidaudio/cdplayer/vfs"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// volume is a virtual volume for an open disc.
type volume struct {
	dev    disc.Device
	fsys   *vfs.Filesystem
	reader *vfs.Reader
}

func (v *volume) Close() error {
	rerr := v.reader.Close()
	ferr := v.fsys.Close()
	derr := v.dev.Close()
	for _, err := range []error{rerr, ferr, derr} {
		if err != nil {
			return err
		}
	}
	return nil
}

// openVolume loads the disc at path into a fresh volume of sizeMB.
func (a *app) openVolume(path string, sizeMB int64) (*volume, error) {
	dev, err := a.opener().Open(path)
	if err != nil {
		return nil, err
	}
	c, err := disc.LoadCatalog(dev)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	fsys, err := vfs.Create(sizeMB * fat32.MB)
	if err != nil {
		_ = dev.Close()
		return nil, err
	}
	if err := fsys.LoadCatalog(c); err != nil {
		_ = fsys.Close()
		_ = dev.Close()
		return nil, err
	}
	r, err := fsys.Reader(disc.NewSectorSource(dev, a.cfg.Paranoia), a.log)
	if err != nil {
		_ = fsys.Close()
		_ = dev.Close()
		return nil, err
	}
	a.log.WithFields(logrus.Fields{"tracks": c.Len(), "image": fsys.Path}).Info("volume ready")
	return &volume{dev: dev, fsys: fsys, reader: r}, nil
}

func (a *app) imageCmd() *cobra.Command {
	var out string
	var sizeMB int64
	cmd := &cobra.Command{
		Use:   "image [device]",
		Short: "Write the virtual volume for the disc to a file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVolume(a.device(args), sizeMB)
			if err != nil {
				return err
			}
			defer v.Close()

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			n, err := io.Copy(f, v.reader)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes to %s\n", n, out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "cdplayer.img", "image file to write")
	cmd.Flags().Int64Var(&sizeMB, "size", vfs.DiskSize/fat32.MB, "volume size in MB")
	return cmd
}
