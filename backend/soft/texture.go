// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
)

// texture stores every mip level as tightly packed rows, bottom row first.
// Depth formats keep a float32 plane instead.
type texture struct {
	width, height int
	format        gputypes.TextureFormat
	levels        [][]byte
	depth         []float32
}

func bytesPerTexel(f gputypes.TextureFormat) int {
	switch f {
	case gputypes.TextureFormatR8Unorm:
		return 1
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm,
		gputypes.TextureFormatR32Sint, gputypes.TextureFormatR32Uint, gputypes.TextureFormatR32Float,
		gputypes.TextureFormatDepth32Float, gputypes.TextureFormatDepth24Plus,
		gputypes.TextureFormatDepth24PlusStencil8:
		return 4
	default:
		return 0
	}
}

func newTexture(width, height int, format gputypes.TextureFormat, mips int) *texture {
	t := &texture{width: width, height: height, format: format}
	if format.HasDepth() {
		t.depth = make([]float32, width*height)
		for i := range t.depth {
			t.depth[i] = 1
		}
		return t
	}
	bpp := bytesPerTexel(format)
	w, h := width, height
	for range mips {
		t.levels = append(t.levels, make([]byte, w*h*bpp))
		w, h = max(w/2, 1), max(h/2, 1)
	}
	return t
}

func (t *texture) write(level int, data []byte) error {
	if t.depth != nil {
		return fmt.Errorf("soft: write to depth texture: %w", device.ErrUnsupported)
	}
	if level < 0 || level >= len(t.levels) {
		return fmt.Errorf("soft: mip level %d of %d: %w", level, len(t.levels), device.ErrOutOfBounds)
	}
	if len(data) != len(t.levels[level]) {
		return fmt.Errorf("soft: level %d holds %d bytes, got %d: %w", level, len(t.levels[level]), len(data), device.ErrOutOfBounds)
	}
	copy(t.levels[level], data)
	return nil
}

func unorm8(v float32) byte {
	return byte(math.Round(float64(max(0, min(v, 1)) * 255)))
}

// store writes one texel of level 0.
func (t *texture) store(x, y int, c mgl32.Vec4) {
	bpp := bytesPerTexel(t.format)
	p := t.levels[0][(y*t.width+x)*bpp:]
	switch t.format {
	case gputypes.TextureFormatRGBA8Unorm:
		p[0], p[1], p[2], p[3] = unorm8(c[0]), unorm8(c[1]), unorm8(c[2]), unorm8(c[3])
	case gputypes.TextureFormatBGRA8Unorm:
		p[0], p[1], p[2], p[3] = unorm8(c[2]), unorm8(c[1]), unorm8(c[0]), unorm8(c[3])
	case gputypes.TextureFormatR8Unorm:
		p[0] = unorm8(c[0])
	case gputypes.TextureFormatR32Sint:
		binary.LittleEndian.PutUint32(p, uint32(int32(c[0])))
	case gputypes.TextureFormatR32Uint:
		binary.LittleEndian.PutUint32(p, uint32(c[0]))
	case gputypes.TextureFormatR32Float:
		binary.LittleEndian.PutUint32(p, math.Float32bits(c[0]))
	}
}

// load reads one texel of level 0.
func (t *texture) load(x, y int) mgl32.Vec4 {
	if t.depth != nil {
		d := t.depth[y*t.width+x]
		return mgl32.Vec4{d, d, d, 1}
	}
	bpp := bytesPerTexel(t.format)
	p := t.levels[0][(y*t.width+x)*bpp:]
	switch t.format {
	case gputypes.TextureFormatRGBA8Unorm:
		return mgl32.Vec4{float32(p[0]) / 255, float32(p[1]) / 255, float32(p[2]) / 255, float32(p[3]) / 255}
	case gputypes.TextureFormatBGRA8Unorm:
		return mgl32.Vec4{float32(p[2]) / 255, float32(p[1]) / 255, float32(p[0]) / 255, float32(p[3]) / 255}
	case gputypes.TextureFormatR8Unorm:
		return mgl32.Vec4{float32(p[0]) / 255, 0, 0, 1}
	case gputypes.TextureFormatR32Sint:
		return mgl32.Vec4{float32(int32(binary.LittleEndian.Uint32(p))), 0, 0, 1}
	case gputypes.TextureFormatR32Uint:
		return mgl32.Vec4{float32(binary.LittleEndian.Uint32(p)), 0, 0, 1}
	case gputypes.TextureFormatR32Float:
		return mgl32.Vec4{math.Float32frombits(binary.LittleEndian.Uint32(p)), 0, 0, 1}
	}
	return mgl32.Vec4{}
}

// blendable reports whether the format takes part in blending.
func (t *texture) blendable() bool {
	switch t.format {
	case gputypes.TextureFormatR32Sint, gputypes.TextureFormatR32Uint:
		return false
	}
	return true
}

func (t *texture) fill(c gputypes.Color) {
	v := mgl32.Vec4{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
	for y := range t.height {
		for x := range t.width {
			t.store(x, y, v)
		}
	}
}
