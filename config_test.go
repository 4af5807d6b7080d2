// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package g3d

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gogpu/g3d/backend/soft"
)

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
title = "viewer"
width = 640
height = 480
backend = "soft"
picking = false
bake_workers = 3
clear_color = [0.25, 0.5, 0.75, 1.0]
log_level = "debug"
`))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	want := Config{
		Title:       "viewer",
		Width:       640,
		Height:      480,
		Backend:     "soft",
		Picking:     false,
		BakeWorkers: 3,
		ClearColor:  [4]float64{0.25, 0.5, 0.75, 1},
		LogLevel:    "debug",
	}
	if cfg != want {
		t.Errorf("ParseConfig() = %+v, want %+v", cfg, want)
	}
	if l := cfg.Logger(); l == nil || !l.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("Logger() is not enabled at debug")
	}
}

func TestParseConfigKeepsDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`width = 320`))
	if err != nil {
		t.Fatalf("ParseConfig() error = %v", err)
	}
	def := DefaultConfig()
	if cfg.Width != 320 || cfg.Height != def.Height || cfg.Picking != def.Picking {
		t.Errorf("ParseConfig() = %+v, want defaults except width", cfg)
	}
	if cfg.Logger() != nil {
		t.Error("Logger() != nil without log_level")
	}
}

func TestParseConfigErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `width = `},
		{"unknown key", `fullscreen = true`},
		{"wrong type", `width = "wide"`},
		{"zero size", `height = 0`},
		{"clear color range", `clear_color = [2.0, 0.0, 0.0, 1.0]`},
		{"log level", `log_level = "loud"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseConfig([]byte(tt.src)); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("ParseConfig(%q) error = %v, want %v", tt.src, err, ErrInvalidConfig)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g3d.toml")
	if err := os.WriteFile(path, []byte("width = 100\nheight = 50\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Width != 100 || cfg.Height != 50 {
		t.Errorf("LoadConfig() size = %dx%d, want 100x50", cfg.Width, cfg.Height)
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("LoadConfig(missing) error = %v, want %v", err, os.ErrNotExist)
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 8, 8
	cfg.ClearColor = [4]float64{1, 0, 0, 1}

	dev := soft.New(cfg.Width, cfg.Height)
	e, err := New(cfg.Width, cfg.Height, append(cfg.Options(), WithDevice(dev))...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer e.Close()
	if e.Picker() == nil {
		t.Error("Picker() = nil, want picking from the default config")
	}
	render(t, e)
	if got := pixel(t, dev, 4, 4); got != red {
		t.Errorf("pixel(4, 4) = %v, want the configured clear color", got)
	}
}
