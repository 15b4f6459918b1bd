// Package buttons turns a panel of push buttons on the Pi's GPIO header
// into player commands. Buttons pull their pin low while pressed.
package buttons

import (
	"context"
	"fmt"
	"time"

	"github.com/rabidaudio/cdplayer/config"
	"github.com/sirupsen/logrus"
	rpio "github.com/stianeikeland/go-rpio/v4"
)

// PollInterval is how often the pins are sampled.
const PollInterval = 5 * time.Millisecond

// Pin is a GPIO input.
type Pin interface {
	Read() rpio.State
}

// Commands are the player operations a button can trigger.
type Commands interface {
	Play() error
	Pause() error
	Stop() error
	Next() error
	Prev() error
	Faster() error
	Slower() error
}

type Button struct {
	Name   string
	Pin    Pin
	Action func() error
}

type button struct {
	Button
	raw     rpio.State
	stable  rpio.State
	changed time.Time
}

// Panel debounces a set of buttons and runs the action of each one once
// per press.
type Panel struct {
	buttons  []*button
	debounce time.Duration
	log      logrus.FieldLogger
}

func New(buttons []Button, debounce time.Duration, log logrus.FieldLogger) *Panel {
	if log == nil {
		log = logrus.StandardLogger()
	}
	p := &Panel{debounce: debounce, log: log}
	for _, b := range buttons {
		p.buttons = append(p.buttons, &button{Button: b, raw: rpio.High, stable: rpio.High})
	}
	return p
}

// Run samples the buttons until ctx is done. A failing action is logged
// and does not stop the panel.
func (p *Panel) Run(ctx context.Context) error {
	tick := time.NewTicker(PollInterval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-tick.C:
			p.poll(now)
		}
	}
}

// poll reads every pin once. A press counts once the pin has stayed low
// for the debounce time.
func (p *Panel) poll(now time.Time) {
	for _, b := range p.buttons {
		v := b.Pin.Read()
		if v != b.raw {
			b.raw = v
			b.changed = now
		}
		if b.raw == b.stable || now.Sub(b.changed) < p.debounce {
			continue
		}
		b.stable = b.raw
		if b.stable != rpio.Low {
			continue
		}
		log := p.log.WithField("button", b.Name)
		log.Debug("pressed")
		if err := b.Action(); err != nil {
			log.WithError(err).Warn("button action failed")
		}
	}
}

// Layout maps the configured pins to commands. Pins set to 0 are skipped.
func Layout(cfg config.GPIO, c Commands, pin func(n int) Pin) []Button {
	var buttons []Button
	add := func(name string, n int, action func() error) {
		if n > 0 {
			buttons = append(buttons, Button{Name: name, Pin: pin(n), Action: action})
		}
	}
	add("play", cfg.Play, c.Play)
	add("pause", cfg.Pause, c.Pause)
	add("stop", cfg.Stop, c.Stop)
	add("next", cfg.Next, c.Next)
	add("prev", cfg.Prev, c.Prev)
	add("faster", cfg.Faster, c.Faster)
	add("slower", cfg.Slower, c.Slower)
	return buttons
}

// OpenGPIO maps the GPIO header and sets up the configured pins as
// pulled-up inputs. Call the returned function to release the header.
func OpenGPIO(cfg config.GPIO, c Commands, log logrus.FieldLogger) (*Panel, func() error, error) {
	if err := rpio.Open(); err != nil {
		return nil, nil, fmt.Errorf("buttons: %w", err)
	}
	buttons := Layout(cfg, c, func(n int) Pin {
		pin := rpio.Pin(n)
		pin.Input()
		pin.PullUp()
		return pin
	})
	return New(buttons, cfg.Debounce, log), rpio.Close, nil
}
