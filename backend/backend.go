// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/g3d/device"
)

// Backend name constants.
const (
	// BackendSoft is the CPU reference rasterizer.
	BackendSoft = "soft"
	// BackendGL is the OpenGL 3.3 core device (go-gl/gl).
	BackendGL = "gl"
	// BackendWGPU is the WebGPU HAL device (gogpu/wgpu).
	BackendWGPU = "wgpu"
)

// Common backend errors.
var (
	// ErrBackendNotAvailable is returned when a requested backend is not
	// registered or cannot run in the current environment.
	ErrBackendNotAvailable = errors.New("backend: not available")
)

// Options configures a device when a backend opens it.
type Options struct {
	// Width and Height size the default framebuffer.
	Width, Height int

	// Provider supplies an existing GPU device for the wgpu backend.
	Provider gpucontext.DeviceProvider
}

// Factory opens a device.
type Factory func(opts Options) (device.Device, error)
