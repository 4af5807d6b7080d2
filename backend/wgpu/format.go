// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"github.com/gogpu/gputypes"
)

// texFormat describes how the device stores one texture format.
type texFormat struct {
	size    int // bytes per texel
	integer bool
	depth   bool
}

var texFormats = map[gputypes.TextureFormat]texFormat{
	gputypes.TextureFormatRGBA8Unorm:          {size: 4},
	gputypes.TextureFormatBGRA8Unorm:          {size: 4},
	gputypes.TextureFormatR8Unorm:             {size: 1},
	gputypes.TextureFormatR32Float:            {size: 4},
	gputypes.TextureFormatRGBA16Float:         {size: 8},
	gputypes.TextureFormatRGBA32Float:         {size: 16},
	gputypes.TextureFormatR32Sint:             {size: 4, integer: true},
	gputypes.TextureFormatR32Uint:             {size: 4, integer: true},
	gputypes.TextureFormatDepth32Float:        {size: 4, depth: true},
	gputypes.TextureFormatDepth24Plus:         {size: 4, depth: true},
	gputypes.TextureFormatDepth24PlusStencil8: {size: 4, depth: true},
}

// copyPitchAlignment is the WebGPU row alignment of texture-to-buffer
// copies.
const copyPitchAlignment = 256

// uniformAlignment is the minimum dynamic offset alignment for uniform
// buffers.
const uniformAlignment = 256

func alignUp(v, a int) int {
	return (v + a - 1) &^ (a - 1)
}

// sampleType returns the bind group sample type matching a texture format.
func sampleType(f gputypes.TextureFormat) gputypes.TextureSampleType {
	switch f {
	case gputypes.TextureFormatR32Sint:
		return gputypes.TextureSampleTypeSint
	case gputypes.TextureFormatR32Uint:
		return gputypes.TextureSampleTypeUint
	case gputypes.TextureFormatR32Float, gputypes.TextureFormatRGBA32Float:
		return gputypes.TextureSampleTypeUnfilterableFloat
	default:
		return gputypes.TextureSampleTypeFloat
	}
}

// blendState converts the recorded blend state for one color target.
// Integer targets never blend.
func blendState(s *state, format gputypes.TextureFormat) *gputypes.BlendState {
	if !s.blend || texFormats[format].integer {
		return nil
	}
	c := gputypes.BlendComponent{SrcFactor: s.blendSrc, DstFactor: s.blendDst, Operation: s.blendOp}
	return &gputypes.BlendState{Color: c, Alpha: c}
}

// convertBGRAToRGBA swaps the red and blue channels of n pixels in place.
func convertBGRAToRGBA(data []byte, n int) {
	for i := 0; i < n && 4*i+3 < len(data); i++ {
		o := 4 * i
		data[o], data[o+2] = data[o+2], data[o]
	}
}
