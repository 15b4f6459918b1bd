package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rabidaudio/cdplayer/config"
	"github.com/rabidaudio/cdplayer/disc"
	"github.com/rabidaudio/cdplayer/mock"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

type app struct {
	cfg  *config.Config
	log  *logrus.Logger
	mock bool
	logf *os.File
}

func main() {
	root := newRoot(&app{log: logrus.New()})
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "cdplayer:", err)
		os.Exit(1)
	}
}

func newRoot(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "cdplayer",
		Short:         "Play audio CDs and serve them to a head unit",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.log.SetLevel(cfg.Level())
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if a.logf != nil {
				return a.logf.Close()
			}
			return nil
		},
	}
	root.PersistentFlags().BoolVar(&a.mock, "mock", false, "use an in-memory disc instead of a drive")

	root.AddCommand(a.playCmd(), a.tocCmd(), a.imageCmd(), a.serveCmd())
	return root
}

// device returns the drive path from the arguments or the config.
func (a *app) device(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return a.cfg.Device
}

// opener returns the drive, or a four track in-memory disc with --mock.
func (a *app) opener() disc.Opener {
	if a.mock {
		m := mock.NewDisc(30*75, 45*75, 20*75, 60*75)
		m.ReadDelay = time.Second / 75 / time.Duration(a.cfg.MaxSpeed)
		return m
	}
	return &disc.AudioCDOpener{Paranoia: a.cfg.Paranoia, Log: a.log}
}

// logTo sends log output to path, or discards it when path is empty.
func (a *app) logTo(path string) error {
	if path == "" {
		a.log.SetOutput(io.Discard)
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	a.logf = f
	a.log.SetOutput(f)
	return nil
}
