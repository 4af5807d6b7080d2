// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package g3d

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gogpu/gputypes"
	"github.com/pelletier/go-toml/v2"
)

// ErrInvalidConfig is returned by LoadConfig and ParseConfig for values
// outside their range.
var ErrInvalidConfig = errors.New("g3d: invalid config")

// Config is the file form of the engine options, used by the viewer.
//
//	width = 1280
//	height = 720
//	backend = "gl"
//	picking = true
//	bake_workers = 4
//	clear_color = [0.1, 0.1, 0.12, 1.0]
//	log_level = "debug"
type Config struct {
	Title       string     `toml:"title"`
	Width       int        `toml:"width"`
	Height      int        `toml:"height"`
	Backend     string     `toml:"backend"`
	Picking     bool       `toml:"picking"`
	BakeWorkers int        `toml:"bake_workers"`
	ClearColor  [4]float64 `toml:"clear_color"`

	// LogLevel is a slog level name; empty leaves logging off.
	LogLevel string `toml:"log_level"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Title:      "g3d",
		Width:      1280,
		Height:     720,
		Picking:    true,
		ClearColor: [4]float64{0, 0, 0, 1},
	}
}

// LoadConfig reads a TOML file over DefaultConfig.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("g3d: load config: %w", err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes TOML over DefaultConfig. Unknown keys are errors.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			row, col := derr.Position()
			return Config{}, fmt.Errorf("%w: line %d column %d: %v", ErrInvalidConfig, row, col, derr)
		}
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	}
	for _, v := range c.ClearColor {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: clear_color %v outside [0, 1]", ErrInvalidConfig, c.ClearColor)
		}
	}
	if _, err := c.level(); err != nil {
		return err
	}
	return nil
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if c.LogLevel == "" {
		return l, nil
	}
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return l, fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}
	return l, nil
}

// Logger returns a text logger to stderr at LogLevel, or nil when LogLevel
// is empty.
func (c *Config) Logger() *slog.Logger {
	if c.LogLevel == "" {
		return nil
	}
	l, err := c.level()
	if err != nil {
		return nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l}))
}

// Options converts the configuration into engine options.
func (c *Config) Options() []Option {
	opts := []Option{
		WithPicking(c.Picking),
		WithBakeWorkers(c.BakeWorkers),
		WithClearColor(gputypes.Color{R: c.ClearColor[0], G: c.ClearColor[1], B: c.ClearColor[2], A: c.ClearColor[3]}),
	}
	if c.Backend != "" {
		opts = append(opts, WithBackend(c.Backend))
	}
	if l := c.Logger(); l != nil {
		opts = append(opts, WithLogger(l))
	}
	return opts
}
