// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Resource IDs
//
// These opaque IDs name device resources. Each backend keeps the mapping
// between IDs and its own objects. The zero value is never a live resource;
// for framebuffers it names the default (screen) target.

// BufferID is an opaque handle to a device buffer.
type BufferID uint64

// GeometryID is an opaque handle to a vertex layout plus its bound buffers
// (a vertex array object on GL).
type GeometryID uint64

// TextureID is an opaque handle to a device texture.
type TextureID uint64

// FramebufferID is an opaque handle to a set of render attachments.
type FramebufferID uint64

// ProgramID is an opaque handle to a compiled, linked program.
type ProgramID uint64

// InvalidID is the zero value, representing no resource.
const InvalidID = 0

// DefaultFramebuffer names the presentation surface.
const DefaultFramebuffer FramebufferID = 0

// ShaderLanguage is the source language a device compiles.
type ShaderLanguage uint8

// Shader languages.
const (
	// LanguageKernel means programs are native kernels looked up by name;
	// source text is ignored. Used by the software device.
	LanguageKernel ShaderLanguage = iota

	// LanguageGLSL is OpenGL Shading Language 3.30 core.
	LanguageGLSL

	// LanguageWGSL is the WebGPU Shading Language.
	LanguageWGSL
)

// String returns the language name.
func (l ShaderLanguage) String() string {
	switch l {
	case LanguageKernel:
		return "kernel"
	case LanguageGLSL:
		return "glsl"
	case LanguageWGSL:
		return "wgsl"
	default:
		return fmt.Sprintf("ShaderLanguage(%d)", int(l))
	}
}

// Limits reports the device limits the core consults.
type Limits struct {
	// MaxTextureUnits is the number of texture units usable by one draw.
	MaxTextureUnits int

	// MaxDrawBuffers is the number of color attachments one pass may write.
	MaxDrawBuffers int

	// MaxTextureSize is the largest texture dimension.
	MaxTextureSize int

	// MaxUniformBufferBindings is the number of uniform block slots.
	MaxUniformBufferBindings int
}

// DefaultLimits returns conservative limits every backend can honor.
func DefaultLimits() Limits {
	return Limits{
		MaxTextureUnits:          16,
		MaxDrawBuffers:           4,
		MaxTextureSize:           8192,
		MaxUniformBufferBindings: 12,
	}
}

// BufferDescriptor describes a buffer to create.
type BufferDescriptor struct {
	Label string

	// Usage must include Vertex, Index or Uniform.
	Usage gputypes.BufferUsage

	// Size is the allocation size in bytes. When Data is set and Size is
	// smaller than len(Data), len(Data) is used.
	Size int

	// Data is the optional initial content.
	Data []byte
}

// VertexLayout describes one vertex buffer and the attributes read from it.
type VertexLayout struct {
	Buffer     BufferID
	Stride     uint64
	StepMode   gputypes.VertexStepMode
	Attributes []gputypes.VertexAttribute
}

// GeometryDescriptor describes a vertex input configuration.
type GeometryDescriptor struct {
	Label    string
	Layouts  []VertexLayout
	Topology gputypes.PrimitiveTopology

	// Index is the optional index buffer; InvalidID for non-indexed geometry.
	Index       BufferID
	IndexFormat gputypes.IndexFormat
}

// TextureDescriptor describes a 2D texture.
type TextureDescriptor struct {
	Label     string
	Width     int
	Height    int
	Format    gputypes.TextureFormat
	MipLevels int
	Usage     gputypes.TextureUsage
	Filter    gputypes.FilterMode
	Wrap      gputypes.AddressMode

	// Data is the optional content of mip level 0.
	Data []byte
}

// FramebufferDescriptor describes a set of render attachments.
type FramebufferDescriptor struct {
	Label  string
	Color  []TextureID
	Depth  TextureID
	Width  int
	Height int
}

// ProgramDescriptor describes a program to compile and link.
type ProgramDescriptor struct {
	Label string

	// Name is the base shader name, without variant flags.
	Name string

	// Defines lists the enabled feature flags, sorted.
	Defines []string

	Language ShaderLanguage
	Vertex   string
	Fragment string
}

// UniformInfo describes one active uniform found by program reflection.
type UniformInfo struct {
	Name     string
	Type     UniformType
	Location int32

	// Block is the index of the uniform block the uniform belongs to, or -1
	// for a free-standing uniform.
	Block int32
}

// UniformBlockInfo describes one active uniform block.
type UniformBlockInfo struct {
	Name  string
	Index uint32
	Size  int
}

// Capability is a fixed-function feature toggled with Enable/Disable.
type Capability uint8

// Capabilities.
const (
	CapabilityDepthTest Capability = iota + 1
	CapabilityBlend
	CapabilityCullFace
)

// String returns the capability name.
func (c Capability) String() string {
	switch c {
	case CapabilityDepthTest:
		return "DepthTest"
	case CapabilityBlend:
		return "Blend"
	case CapabilityCullFace:
		return "CullFace"
	default:
		return fmt.Sprintf("Capability(%d)", int(c))
	}
}

// ClearMask selects the buffers Clear touches.
type ClearMask uint8

// Clear mask bits.
const (
	ClearColor ClearMask = 1 << iota
	ClearDepth
)

// ClearOptions describes a clear of the bound framebuffer.
type ClearOptions struct {
	Mask  ClearMask
	Color gputypes.Color
	Depth float32
}

// DrawKind selects the draw entry point.
type DrawKind uint8

// Draw kinds.
const (
	// DrawArrays draws Count vertices starting at First.
	DrawArrays DrawKind = iota

	// DrawArraysInstanced draws Count vertices Instances times.
	DrawArraysInstanced

	// DrawIndexed draws Count indices starting at First.
	DrawIndexed

	// DrawIndexedInstanced draws Count indices Instances times.
	DrawIndexedInstanced
)

// String returns the draw kind name.
func (k DrawKind) String() string {
	switch k {
	case DrawArrays:
		return "Arrays"
	case DrawArraysInstanced:
		return "ArraysInstanced"
	case DrawIndexed:
		return "Indexed"
	case DrawIndexedInstanced:
		return "IndexedInstanced"
	default:
		return fmt.Sprintf("DrawKind(%d)", int(k))
	}
}

// Indexed reports whether the kind reads an index buffer.
func (k DrawKind) Indexed() bool {
	return k == DrawIndexed || k == DrawIndexedInstanced
}

// Instanced reports whether the kind draws more than one instance.
func (k DrawKind) Instanced() bool {
	return k == DrawArraysInstanced || k == DrawIndexedInstanced
}

// DrawCall is one draw against the bound geometry.
type DrawCall struct {
	Kind      DrawKind
	First     int
	Count     int
	Instances int
}
