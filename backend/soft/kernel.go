// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"encoding/binary"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/device"
)

// VertexFunc transforms one vertex. in holds the attribute values indexed
// by shader location. It returns the clip-space position and the varyings
// interpolated across the primitive.
type VertexFunc func(u *Uniforms, in [][]float32) (position mgl32.Vec4, varyings []float32)

// FragmentFunc shades one fragment. It returns one output per color
// attachment selected by DrawBuffers. Integer targets store int32(out[0]).
// Returning discard drops the fragment.
type FragmentFunc func(u *Uniforms, varyings []float32) (out []mgl32.Vec4, discard bool)

// KernelUniform declares one uniform read by a kernel.
type KernelUniform struct {
	Name string
	Type device.UniformType
	// Block names the uniform block the uniform belongs to, if any.
	Block string
}

// KernelBlock declares a uniform block.
type KernelBlock struct {
	Name string
	Size int
}

// Kernel is a program for the software device: a pair of Go functions and
// the interface they expose to reflection.
type Kernel struct {
	Vertex   VertexFunc
	Fragment FragmentFunc
	Uniforms []KernelUniform
	Blocks   []KernelBlock
}

// Uniforms is the uniform state of a program in use, handed to kernels.
type Uniforms struct {
	dev      *Device
	prog     *program
	defines  map[string]bool
	byName   map[string]int32
	values   []device.Value
	blockIdx map[string]uint32
}

// Defined reports whether the program variant was built with flag.
func (u *Uniforms) Defined(flag string) bool { return u.defines[flag] }

func (u *Uniforms) value(name string) device.Value {
	if loc, ok := u.byName[name]; ok {
		return u.values[loc]
	}
	return device.Value{}
}

// Int returns an int or sampler uniform.
func (u *Uniforms) Int(name string) int32 { return u.value(name).IntValue() }

// Float returns a float uniform.
func (u *Uniforms) Float(name string) float32 {
	if f := u.value(name).Floats(); len(f) > 0 {
		return f[0]
	}
	return 0
}

// Vec4 returns a vec4 uniform, or the first components of a shorter one.
func (u *Uniforms) Vec4(name string) mgl32.Vec4 {
	var v mgl32.Vec4
	copy(v[:], u.value(name).Floats())
	return v
}

// Mat4 returns a mat4 uniform. Unset matrices read as identity.
func (u *Uniforms) Mat4(name string) mgl32.Mat4 {
	v := u.value(name)
	if v.Type() != device.UniformMat4 {
		return mgl32.Ident4()
	}
	var m mgl32.Mat4
	copy(m[:], v.Floats())
	return m
}

// Block returns the content of the uniform buffer bound to the slot the
// named block is routed to, or nil.
func (u *Uniforms) Block(name string) []byte {
	idx, ok := u.blockIdx[name]
	if !ok {
		return nil
	}
	slot, ok := u.prog.blockSlots[idx]
	if !ok {
		return nil
	}
	buf := u.dev.buffers[u.dev.state.uniformBuffers[slot]]
	if buf == nil {
		return nil
	}
	return buf.data
}

// BlockFloat reads the float at byte offset off of a uniform block.
func (u *Uniforms) BlockFloat(name string, off int) float32 {
	data := u.Block(name)
	if off+4 > len(data) {
		return 0
	}
	return math.Float32frombits(binary.LittleEndian.Uint32(data[off:]))
}

// BlockMat4 reads a column-major mat4 at byte offset off of a uniform block.
func (u *Uniforms) BlockMat4(name string, off int) mgl32.Mat4 {
	var m mgl32.Mat4
	for i := range m {
		m[i] = u.BlockFloat(name, off+4*i)
	}
	return m
}

// Sample reads the texture bound to the unit named by a sampler uniform at
// uv, with nearest filtering and edge clamping.
func (u *Uniforms) Sample(sampler string, uv mgl32.Vec2) mgl32.Vec4 {
	unit := int(u.Int(sampler))
	tex := u.dev.textures[u.dev.state.textures[unit]]
	if tex == nil || tex.width == 0 || tex.height == 0 {
		return mgl32.Vec4{}
	}
	x := clampInt(int(uv[0]*float32(tex.width)), 0, tex.width-1)
	y := clampInt(int(uv[1]*float32(tex.height)), 0, tex.height-1)
	return tex.load(x, y)
}

func clampInt(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
