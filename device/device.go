// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package device defines the graphics device contract used by the engine core
// and the Context that sits between the core and a Device.
//
// A Device is stateful in the OpenGL sense: binds and fixed-function toggles
// persist until changed. Every caller in the core routes such changes through
// a Context, which remembers what it last told the device and drops calls that
// would not change anything.
//
// Three implementations ship with the module: backend/soft (CPU reference),
// backend/opengl (OpenGL 3.3 core) and backend/wgpu (WebGPU HAL).
package device

import (
	"image"

	"github.com/gogpu/gputypes"
)

// Device is a stateful graphics device.
//
// Creation methods return Vital errors (see IsVital) when the device cannot
// honor the request. Bind and state methods never fail; passing an unknown ID
// is a programming error the backend may ignore.
type Device interface {
	// Limits reports device limits.
	Limits() Limits

	// ShaderLanguage reports the language CreateProgram expects.
	ShaderLanguage() ShaderLanguage

	CreateBuffer(desc *BufferDescriptor) (BufferID, error)
	WriteBuffer(id BufferID, offset int, data []byte) error
	DestroyBuffer(id BufferID)

	CreateGeometry(desc *GeometryDescriptor) (GeometryID, error)
	DestroyGeometry(id GeometryID)

	CreateTexture(desc *TextureDescriptor) (TextureID, error)
	// WriteTexture replaces the content of one mip level.
	WriteTexture(id TextureID, level int, data []byte) error
	DestroyTexture(id TextureID)

	CreateFramebuffer(desc *FramebufferDescriptor) (FramebufferID, error)
	// ReadPixels copies rect of the given color attachment into dst, row by
	// row starting at rect.Min.Y in device (bottom-up) coordinates.
	ReadPixels(id FramebufferID, attachment int, rect image.Rectangle, dst []byte) error
	DestroyFramebuffer(id FramebufferID)

	CreateProgram(desc *ProgramDescriptor) (ProgramID, error)
	ActiveUniforms(id ProgramID) []UniformInfo
	ActiveUniformBlocks(id ProgramID) []UniformBlockInfo
	DestroyProgram(id ProgramID)

	BindFramebuffer(id FramebufferID)
	UseProgram(id ProgramID)
	BindGeometry(id GeometryID)
	BindTexture(unit int, id TextureID)
	// BindUniformBlock routes a program's uniform block to a buffer slot.
	BindUniformBlock(program ProgramID, block uint32, slot int)
	BindUniformBuffer(slot int, id BufferID)

	Enable(c Capability)
	Disable(c Capability)
	DepthFunc(fn gputypes.CompareFunction)
	DepthMask(write bool)
	BlendFunc(src, dst gputypes.BlendFactor)
	BlendEquation(op gputypes.BlendOperation)
	CullFace(face gputypes.CullMode)
	Viewport(rect image.Rectangle)
	// DrawBuffers selects the color attachments written by fragment outputs.
	DrawBuffers(attachments []int)

	Clear(opts ClearOptions)
	// Uniform uploads one value to a location of the program in use.
	Uniform(location int32, v Value)
	Draw(call DrawCall) error

	// Flush submits pending work. Backends without a command stream may do
	// nothing.
	Flush() error

	// Destroy releases the device. The device is unusable afterwards.
	Destroy()
}

// ScreenResizer is implemented by devices that own the storage of their
// default framebuffer. Devices drawing into a window surface follow the
// window and do not implement it.
type ScreenResizer interface {
	ResizeScreen(width, height int) error
}
