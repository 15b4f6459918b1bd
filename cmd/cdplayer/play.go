package main

import (
	"context"
	"fmt"
	"time"

	"github.com/nsf/termbox-go"
	"github.com/rabidaudio/cdplayer/buttons"
	"github.com/rabidaudio/cdplayer/cd"
	"github.com/rabidaudio/cdplayer/control"
	"github.com/rabidaudio/cdplayer/player"
	"github.com/rabidaudio/cdplayer/reader"
	"github.com/rabidaudio/cdplayer/ringbuf"
	"github.com/rabidaudio/cdplayer/sink"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const help = "space pause  p play  s stop  n/→ next  b/← prev  ]/[ ±10s  1-9 track  f/d speed  r random  l loop  q quit"

func (a *app) playCmd() *cobra.Command {
	var gpio bool
	var logFile string
	cmd := &cobra.Command{
		Use:   "play [device]",
		Short: "Play the disc on the sound card",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := a.cfg
			if err := a.logTo(logFile); err != nil {
				return err
			}

			buf, err := ringbuf.New(cfg.BufferBlocks, cfg.BufferTimeout)
			if err != nil {
				return err
			}
			rd := reader.New(a.opener(), buf, reader.Config{
				MaxSpeed:      cfg.MaxSpeed,
				Restart:       cfg.Restart,
				Mode:          cfg.PlayMode(),
				Paranoia:      cfg.Paranoia,
				PauseInterval: cfg.PauseInterval,
			}, a.log)
			out, closeSink, err := a.openSink()
			if err != nil {
				return err
			}
			defer closeSink()
			pl := player.New(buf, out, player.Config{
				ChunksPerSector: cfg.ChunksPerSector,
				PollTimeout:     cfg.PollTimeout,
				PauseInterval:   cfg.PauseInterval,
			}, a.log)
			ctl := control.New(rd, pl, a.log)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return ctl.Run(ctx)
			})

			if gpio || cfg.GPIO.Enabled {
				panel, release, err := buttons.OpenGPIO(cfg.GPIO, ctl, a.log)
				if err != nil {
					return err
				}
				defer release()
				g.Go(func() error {
					return panel.Run(ctx)
				})
			}

			if err := termbox.Init(); err != nil {
				return err
			}
			defer termbox.Close()

			g.Go(func() error {
				defer cancel()
				return keys(ctx, ctl)
			})
			g.Go(func() error {
				return screen(ctx, ctl)
			})
			g.Go(func() error {
				// failures show up in the status line
				_ = ctl.Open(a.device(args))
				return nil
			})
			return g.Wait()
		},
	}
	cmd.Flags().BoolVar(&gpio, "gpio", false, "read the button panel on the GPIO header")
	cmd.Flags().StringVar(&logFile, "log-file", "", "write the log here instead of discarding it")
	return cmd
}

func (a *app) openSink() (player.Sink, func() error, error) {
	switch a.cfg.Sink {
	case "wav":
		w, err := sink.NewWav(a.cfg.WavPath)
		if err != nil {
			return nil, nil, err
		}
		return w, w.Close, nil
	default:
		s, err := sink.NewSpeaker(a.cfg.Latency, 2*a.cfg.Latency)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
}

// keys runs commands for key presses until q is pressed or ctx is done.
func keys(ctx context.Context, ctl *control.Controller) error {
	go func() {
		<-ctx.Done()
		termbox.Interrupt()
	}()
	for {
		ev := termbox.PollEvent()
		switch ev.Type {
		case termbox.EventInterrupt:
			return nil
		case termbox.EventError:
			return ev.Err
		case termbox.EventKey:
			if quit := handleKey(ctl, ev); quit {
				return nil
			}
		}
	}
}

// handleKey reports whether the key asks to quit. Command errors are
// shown by the status line.
func handleKey(ctl *control.Controller, ev termbox.Event) bool {
	switch ev.Key {
	case termbox.KeyEsc, termbox.KeyCtrlC:
		return true
	case termbox.KeySpace:
		_ = ctl.Pause()
		return false
	case termbox.KeyArrowRight:
		_ = ctl.Next()
		return false
	case termbox.KeyArrowLeft:
		_ = ctl.Prev()
		return false
	}

	switch ev.Ch {
	case 'q':
		return true
	case 'p':
		_ = ctl.Play()
	case 's':
		_ = ctl.Stop()
	case 'n':
		_ = ctl.Next()
	case 'b':
		_ = ctl.Prev()
	case ']':
		_ = ctl.SkipTime(10)
	case '[':
		_ = ctl.SkipTime(-10)
	case 'f':
		_ = ctl.Faster()
	case 'd':
		_ = ctl.Slower()
	case 'r':
		mode := cd.Random
		if ctl.Status().Mode == cd.Random {
			mode = cd.Sequential
		}
		_ = ctl.SetPlayMode(mode)
	case 'l':
		_ = ctl.SetRestart(!ctl.Status().Restart)
	case '1', '2', '3', '4', '5', '6', '7', '8', '9':
		_ = ctl.SetTrack(int(ev.Ch - '1'))
	}
	return false
}

// screen redraws the status until ctx is done.
func screen(ctx context.Context, ctl *control.Controller) error {
	tick := time.NewTicker(200 * time.Millisecond)
	defer tick.Stop()
	for {
		if err := draw(ctl); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
		}
	}
}

func draw(ctl *control.Controller) error {
	if err := termbox.Clear(termbox.ColorDefault, termbox.ColorDefault); err != nil {
		return err
	}
	st := ctl.Status()
	c := ctl.Catalog()

	line := fmt.Sprintf("cdplayer  %-14s", st.State)
	title := ""
	if c != nil {
		t, _ := c.Track(st.Track)
		elapsed := time.Duration(max(st.Sector-t.StartSector, 0)) * time.Second / cd.SectorsPerSecond
		line += fmt.Sprintf("  track %02d/%02d  %s / %s", t.TrackNum, c.Len(), formatDuration(elapsed), formatDuration(t.Duration()))
		title = trackTitle(c, st.Track)
	}
	line += fmt.Sprintf("  drive %dx  %v  buffer %3d%%", st.Speed, st.Rate, st.Buffered)

	printAt(0, 0, line)
	printAt(0, 1, title)
	printAt(0, 2, fmt.Sprintf("mode %v  loop %v", st.Mode, st.Restart))
	printAt(0, 3, ctl.Message())
	printAt(0, 5, help)
	return termbox.Flush()
}

func printAt(x, y int, s string) {
	for _, r := range s {
		termbox.SetCell(x, y, r, termbox.ColorDefault, termbox.ColorDefault)
		x++
	}
}
