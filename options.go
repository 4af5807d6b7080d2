// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package g3d

import (
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/space"
)

// Option configures an Engine during creation.
// Use functional options to customize Engine behavior.
//
// Example:
//
//	// Best available backend, picking enabled
//	e, err := g3d.New(800, 600, g3d.WithPicking(true))
//
//	// Device supplied by the host (dependency injection)
//	e, err := g3d.New(800, 600, g3d.WithDevice(dev))
type Option func(*options)

// options holds optional configuration for Engine creation.
type options struct {
	device      device.Device
	backend     string
	provider    gpucontext.DeviceProvider
	logger      *slog.Logger
	picking     bool
	bakeWorkers int
	clearColor  gputypes.Color
	camera      *space.Camera
}

// defaultOptions returns the default engine options.
func defaultOptions() options {
	return options{
		clearColor: gputypes.Color{A: 1},
	}
}

// WithDevice draws through dev instead of opening a backend. The Engine
// does not destroy a device it was given.
func WithDevice(dev device.Device) Option {
	return func(o *options) {
		o.device = dev
	}
}

// WithBackend opens the named backend (see the backend package constants)
// instead of the best available one.
func WithBackend(name string) Option {
	return func(o *options) {
		o.backend = name
	}
}

// WithProvider shares the GPU device of a host application with the wgpu
// backend.
func WithProvider(p gpucontext.DeviceProvider) Option {
	return func(o *options) {
		o.provider = p
	}
}

// WithLogger installs l as the logger of g3d and its sub-packages, like
// SetLogger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithPicking enables the GPU picking pass. Meshes added to the Engine are
// registered with the Picker while it is on.
func WithPicking(enabled bool) Option {
	return func(o *options) {
		o.picking = enabled
	}
}

// WithBakeWorkers bounds the number of concurrent texture bakes. Zero or
// negative selects GOMAXPROCS.
func WithBakeWorkers(n int) Option {
	return func(o *options) {
		o.bakeWorkers = n
	}
}

// WithClearColor sets the color the screen is cleared to every frame.
func WithClearColor(c gputypes.Color) Option {
	return func(o *options) {
		o.clearColor = c
	}
}

// WithCamera sets the camera meshes and the picking pass are drawn with.
// The default is a 60° perspective camera at (0, 0, 5) looking at the
// origin.
func WithCamera(c *space.Camera) Option {
	return func(o *options) {
		o.camera = c
	}
}
