// Package config loads the player settings from the environment. A .env
// file in the working directory is read first when present; variables
// already set in the environment win.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/rabidaudio/cdplayer/cd"
	"github.com/sethvargo/go-envconfig"
	"github.com/sirupsen/logrus"
)

// Prefix is put in front of every variable name.
const Prefix = "CDPLAYER_"

type Config struct {
	Device   string `env:"DEVICE, default=/dev/cdrom"`
	MaxSpeed int    `env:"MAX_SPEED, default=8"`
	Paranoia bool   `env:"PARANOIA"`
	Restart  bool   `env:"RESTART"`
	Random   bool   `env:"RANDOM"`

	BufferBlocks  int           `env:"BUFFER_BLOCKS, default=50"`
	BufferTimeout time.Duration `env:"BUFFER_TIMEOUT, default=3s"`
	PauseInterval time.Duration `env:"PAUSE_INTERVAL, default=100ms"`

	ChunksPerSector int           `env:"CHUNKS_PER_SECTOR, default=4"`
	PollTimeout     time.Duration `env:"POLL_TIMEOUT, default=1s"`

	// Sink is "speaker" or "wav".
	Sink    string        `env:"SINK, default=speaker"`
	WavPath string        `env:"WAV_PATH, default=cdplayer.wav"`
	Latency time.Duration `env:"LATENCY, default=100ms"`

	LogLevel string `env:"LOG_LEVEL, default=info"`

	GPIO GPIO `env:", prefix=GPIO_"`
}

// GPIO maps buttons to BCM pin numbers. A pin of 0 is not wired.
type GPIO struct {
	Enabled  bool          `env:"ENABLED"`
	Play     int           `env:"PLAY, default=5"`
	Pause    int           `env:"PAUSE, default=6"`
	Stop     int           `env:"STOP, default=13"`
	Next     int           `env:"NEXT, default=19"`
	Prev     int           `env:"PREV, default=26"`
	Faster   int           `env:"FASTER"`
	Slower   int           `env:"SLOWER"`
	Debounce time.Duration `env:"DEBOUNCE, default=50ms"`
}

// Load reads .env, if any, and then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: %w", err)
	}
	return process(ctx, envconfig.OsLookuper())
}

// FromMap reads the settings from env instead of the environment. Keys
// carry the prefix.
func FromMap(ctx context.Context, env map[string]string) (*Config, error) {
	return process(ctx, envconfig.MapLookuper(env))
}

func process(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: envconfig.PrefixLookuper(Prefix, l),
	})
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.MaxSpeed < 1 {
		c.MaxSpeed = 1
	}
	if c.BufferBlocks < 1 {
		return fmt.Errorf("config: %sBUFFER_BLOCKS must be positive, got %d", Prefix, c.BufferBlocks)
	}
	if c.BufferTimeout <= 0 {
		return fmt.Errorf("config: %sBUFFER_TIMEOUT must be positive, got %v", Prefix, c.BufferTimeout)
	}
	if c.ChunksPerSector < 1 {
		return fmt.Errorf("config: %sCHUNKS_PER_SECTOR must be positive, got %d", Prefix, c.ChunksPerSector)
	}
	switch c.Sink {
	case "speaker", "wav":
	default:
		return fmt.Errorf("config: unknown sink %q", c.Sink)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// PlayMode returns the initial play order.
func (c *Config) PlayMode() cd.PlayMode {
	if c.Random {
		return cd.Random
	}
	return cd.Sequential
}
