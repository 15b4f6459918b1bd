package main

import (
	"github.com/diskfs/go-diskfs/filesystem/fat32"
	"github.com/rabidaudio/cdplayer/spi"
	"github.com/rabidaudio/cdplayer/vfs"
	"github.com/spf13/cobra"
)

func (a *app) serveCmd() *cobra.Command {
	var sizeMB int64
	cmd := &cobra.Command{
		Use:   "serve [device]",
		Short: "Serve the disc to the head unit over SPI until interrupted",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.openVolume(a.device(args), sizeMB)
			if err != nil {
				return err
			}
			defer v.Close()

			link, err := spi.Open()
			if err != nil {
				return err
			}
			defer link.Close()

			a.log.Info("serving, ctrl-c to stop")
			return vfs.Serve(cmd.Context(), link, v.reader, a.log)
		},
	}
	cmd.Flags().Int64Var(&sizeMB, "size", vfs.DiskSize/fat32.MB, "volume size in MB")
	return cmd
}
