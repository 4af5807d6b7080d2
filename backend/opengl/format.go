// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package opengl

import (
	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
)

// texFormat describes how a texture format is allocated and transferred.
type texFormat struct {
	internal int32
	format   uint32
	xtype    uint32
	size     int
	integer  bool
}

var texFormats = map[gputypes.TextureFormat]texFormat{
	gputypes.TextureFormatRGBA8Unorm:          {gl.RGBA8, gl.RGBA, gl.UNSIGNED_BYTE, 4, false},
	gputypes.TextureFormatBGRA8Unorm:          {gl.RGBA8, gl.BGRA, gl.UNSIGNED_BYTE, 4, false},
	gputypes.TextureFormatR8Unorm:             {gl.R8, gl.RED, gl.UNSIGNED_BYTE, 1, false},
	gputypes.TextureFormatR32Float:            {gl.R32F, gl.RED, gl.FLOAT, 4, false},
	gputypes.TextureFormatR32Sint:             {gl.R32I, gl.RED_INTEGER, gl.INT, 4, true},
	gputypes.TextureFormatR32Uint:             {gl.R32UI, gl.RED_INTEGER, gl.UNSIGNED_INT, 4, true},
	gputypes.TextureFormatDepth32Float:        {gl.DEPTH_COMPONENT32F, gl.DEPTH_COMPONENT, gl.FLOAT, 4, false},
	gputypes.TextureFormatDepth24Plus:         {gl.DEPTH_COMPONENT24, gl.DEPTH_COMPONENT, gl.UNSIGNED_INT, 4, false},
	gputypes.TextureFormatDepth24PlusStencil8: {gl.DEPTH24_STENCIL8, gl.DEPTH_STENCIL, gl.UNSIGNED_INT_24_8, 4, false},
}

// attribFormat describes a vertex attribute for glVertexAttrib*Pointer.
type attribFormat struct {
	components int32
	xtype      uint32
	normalized bool
	integer    bool
}

var attribFormats = map[gputypes.VertexFormat]attribFormat{
	gputypes.VertexFormatFloat32:   {1, gl.FLOAT, false, false},
	gputypes.VertexFormatFloat32x2: {2, gl.FLOAT, false, false},
	gputypes.VertexFormatFloat32x3: {3, gl.FLOAT, false, false},
	gputypes.VertexFormatFloat32x4: {4, gl.FLOAT, false, false},
	gputypes.VertexFormatUnorm8x4:  {4, gl.UNSIGNED_BYTE, true, false},
	gputypes.VertexFormatUint32:    {1, gl.UNSIGNED_INT, false, true},
	gputypes.VertexFormatUint32x2:  {2, gl.UNSIGNED_INT, false, true},
	gputypes.VertexFormatUint32x4:  {4, gl.UNSIGNED_INT, false, true},
	gputypes.VertexFormatSint32:    {1, gl.INT, false, true},
	gputypes.VertexFormatSint32x2:  {2, gl.INT, false, true},
	gputypes.VertexFormatSint32x4:  {4, gl.INT, false, true},
}

func topologyMode(t gputypes.PrimitiveTopology) (uint32, bool) {
	switch t {
	case gputypes.PrimitiveTopologyTriangleList:
		return gl.TRIANGLES, true
	case gputypes.PrimitiveTopologyTriangleStrip:
		return gl.TRIANGLE_STRIP, true
	case gputypes.PrimitiveTopologyLineList:
		return gl.LINES, true
	case gputypes.PrimitiveTopologyLineStrip:
		return gl.LINE_STRIP, true
	case gputypes.PrimitiveTopologyPointList:
		return gl.POINTS, true
	}
	return 0, false
}

// indexType returns the GL index type and its size in bytes.
func indexType(f gputypes.IndexFormat) (uint32, int) {
	if f == gputypes.IndexFormatUint32 {
		return gl.UNSIGNED_INT, 4
	}
	return gl.UNSIGNED_SHORT, 2
}

func compareFunc(f gputypes.CompareFunction) uint32 {
	switch f {
	case gputypes.CompareFunctionNever:
		return gl.NEVER
	case gputypes.CompareFunctionEqual:
		return gl.EQUAL
	case gputypes.CompareFunctionLessEqual:
		return gl.LEQUAL
	case gputypes.CompareFunctionGreater:
		return gl.GREATER
	case gputypes.CompareFunctionNotEqual:
		return gl.NOTEQUAL
	case gputypes.CompareFunctionGreaterEqual:
		return gl.GEQUAL
	case gputypes.CompareFunctionAlways:
		return gl.ALWAYS
	}
	return gl.LESS
}

func blendFactor(f gputypes.BlendFactor) uint32 {
	switch f {
	case gputypes.BlendFactorZero:
		return gl.ZERO
	case gputypes.BlendFactorSrc:
		return gl.SRC_COLOR
	case gputypes.BlendFactorOneMinusSrc:
		return gl.ONE_MINUS_SRC_COLOR
	case gputypes.BlendFactorSrcAlpha:
		return gl.SRC_ALPHA
	case gputypes.BlendFactorOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case gputypes.BlendFactorDst:
		return gl.DST_COLOR
	case gputypes.BlendFactorOneMinusDst:
		return gl.ONE_MINUS_DST_COLOR
	case gputypes.BlendFactorDstAlpha:
		return gl.DST_ALPHA
	case gputypes.BlendFactorOneMinusDstAlpha:
		return gl.ONE_MINUS_DST_ALPHA
	}
	return gl.ONE
}

func blendEquation(op gputypes.BlendOperation) uint32 {
	switch op {
	case gputypes.BlendOperationSubtract:
		return gl.FUNC_SUBTRACT
	case gputypes.BlendOperationReverseSubtract:
		return gl.FUNC_REVERSE_SUBTRACT
	case gputypes.BlendOperationMin:
		return gl.MIN
	case gputypes.BlendOperationMax:
		return gl.MAX
	}
	return gl.FUNC_ADD
}

func cullFace(m gputypes.CullMode) uint32 {
	if m == gputypes.CullModeFront {
		return gl.FRONT
	}
	return gl.BACK
}

func capability(c device.Capability) uint32 {
	switch c {
	case device.CapabilityBlend:
		return gl.BLEND
	case device.CapabilityCullFace:
		return gl.CULL_FACE
	}
	return gl.DEPTH_TEST
}

// uniformType maps a GL uniform type to the device type. Types the engine
// does not upload map to UniformInvalid.
func uniformType(t uint32) device.UniformType {
	switch t {
	case gl.INT, gl.BOOL:
		return device.UniformInt
	case gl.FLOAT:
		return device.UniformFloat
	case gl.FLOAT_VEC2:
		return device.UniformVec2
	case gl.FLOAT_VEC3:
		return device.UniformVec3
	case gl.FLOAT_VEC4:
		return device.UniformVec4
	case gl.FLOAT_MAT4:
		return device.UniformMat4
	case gl.SAMPLER_2D, gl.INT_SAMPLER_2D, gl.UNSIGNED_INT_SAMPLER_2D:
		return device.UniformSampler
	}
	return device.UniformInvalid
}

func minFilter(f gputypes.FilterMode, mips int) int32 {
	switch {
	case mips > 1 && f == gputypes.FilterModeLinear:
		return gl.LINEAR_MIPMAP_LINEAR
	case mips > 1:
		return gl.NEAREST_MIPMAP_NEAREST
	case f == gputypes.FilterModeLinear:
		return gl.LINEAR
	}
	return gl.NEAREST
}

func wrapMode(m gputypes.AddressMode) int32 {
	if m == gputypes.AddressModeRepeat {
		return gl.REPEAT
	}
	return gl.CLAMP_TO_EDGE
}
