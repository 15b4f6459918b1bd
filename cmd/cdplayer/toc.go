package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/disc"
	"github.com/spf13/cobra"
)

func (a *app) tocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toc [device]",
		Short: "Print the audio tracks on the disc",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dev, err := a.opener().Open(a.device(args))
			if err != nil {
				return err
			}
			defer dev.Close()
			c, err := disc.LoadCatalog(dev)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "disc id %08x, %d tracks\n", c.DiscID(), c.Len())
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TRACK\tSTART\tSECTORS\tLENGTH")
			for _, t := range c.Tracks() {
				fmt.Fprintf(w, "%02d\t%d\t%d\t%s\n", t.TrackNum, t.StartSector, t.LengthSectors(), formatDuration(t.Duration()))
			}
			return w.Flush()
		},
	}
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// trackTitle is the title of track i, or its number without CD-Text.
func trackTitle(c *cd.Catalog, i int) string {
	if title := c.TrackText(i, cd.TextTitle); title != "" {
		return title
	}
	t, _ := c.Track(i)
	return fmt.Sprintf("Track %d", t.TrackNum)
}
