// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"fmt"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"

	"github.com/gogpu/g3d/device"
)

// Bind group indices of the program interface.
const (
	groupUniforms = 0
	groupBlocks   = 1
	groupTextures = 2
	groupCount    = 3
)

// maxBindings caps the uniform blocks and textures of one program so that
// bind group cache keys stay fixed-size.
const maxBindings = 8

// member is one free-standing uniform packed into the Uniforms struct.
type member struct {
	name   string
	typ    device.UniformType
	offset int
}

// block is one var<uniform> of the blocks group.
type block struct {
	name    string
	binding uint32
	size    int
	members []member
}

// textureVar is one texture of the textures group. The sampler sits at the
// next binding.
type textureVar struct {
	name    string
	binding uint32
	sample  gputypes.TextureSampleType
}

// iface is the reflected interface of a WGSL module.
type iface struct {
	uniforms     []member
	uniformsSize int
	blocks       []block
	textures     []textureVar
}

// reflectWGSL parses and lowers src with naga and extracts its bindings.
// Parse and lowering failures wrap device.ErrCompile.
func reflectWGSL(src string) (*iface, error) {
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w: %v", device.ErrCompile, err)
	}
	mod, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w: %v", device.ErrCompile, err)
	}

	out := &iface{}
	for _, g := range mod.GlobalVariables {
		if g.Binding == nil {
			continue
		}
		ty := mod.Types[g.Type]
		switch g.Binding.Group {
		case groupUniforms:
			st, ok := ty.Inner.(ir.StructType)
			if !ok || g.Space != ir.SpaceUniform {
				return nil, fmt.Errorf("wgpu: %w: group 0 must hold a uniform struct, found %q", device.ErrLink, g.Name)
			}
			out.uniforms = structMembers(mod, st)
			out.uniformsSize = int(st.Span)
		case groupBlocks:
			st, ok := ty.Inner.(ir.StructType)
			if !ok || g.Space != ir.SpaceUniform {
				return nil, fmt.Errorf("wgpu: %w: group 1 binding %d is not a uniform struct", device.ErrLink, g.Binding.Binding)
			}
			name := ty.Name
			if name == "" {
				name = g.Name
			}
			out.blocks = append(out.blocks, block{
				name:    name,
				binding: g.Binding.Binding,
				size:    int(st.Span),
				members: structMembers(mod, st),
			})
		case groupTextures:
			img, ok := ty.Inner.(ir.ImageType)
			if !ok {
				continue // samplers
			}
			out.textures = append(out.textures, textureVar{
				name:    g.Name,
				binding: g.Binding.Binding,
				sample:  imageSampleType(img),
			})
		}
	}

	slices.SortFunc(out.blocks, func(a, b block) int { return int(a.binding) - int(b.binding) })
	slices.SortFunc(out.textures, func(a, b textureVar) int { return int(a.binding) - int(b.binding) })
	if len(out.blocks) > maxBindings || len(out.textures) > maxBindings {
		return nil, fmt.Errorf("wgpu: %w: %d blocks, %d textures (max %d each)",
			device.ErrUnsupported, len(out.blocks), len(out.textures), maxBindings)
	}
	for _, t := range out.textures {
		if t.binding%2 != 0 {
			return nil, fmt.Errorf("wgpu: %w: texture %q at odd binding %d", device.ErrLink, t.name, t.binding)
		}
	}
	return out, nil
}

func structMembers(mod *ir.Module, st ir.StructType) []member {
	out := make([]member, 0, len(st.Members))
	for _, m := range st.Members {
		typ := uniformType(mod.Types[m.Type].Inner)
		if typ == device.UniformInvalid {
			continue
		}
		out = append(out, member{name: m.Name, typ: typ, offset: int(m.Offset)})
	}
	return out
}

// uniformType maps a naga type onto the device uniform types. Types the
// device cannot upload report UniformInvalid.
func uniformType(inner ir.TypeInner) device.UniformType {
	switch t := inner.(type) {
	case ir.ScalarType:
		switch t.Kind {
		case ir.ScalarFloat:
			return device.UniformFloat
		case ir.ScalarSint, ir.ScalarUint:
			return device.UniformInt
		}
	case ir.VectorType:
		if t.Scalar.Kind != ir.ScalarFloat {
			return device.UniformInvalid
		}
		switch t.Size {
		case ir.Vec2:
			return device.UniformVec2
		case ir.Vec3:
			return device.UniformVec3
		case ir.Vec4:
			return device.UniformVec4
		}
	case ir.MatrixType:
		if t.Columns == ir.Vec4 && t.Rows == ir.Vec4 {
			return device.UniformMat4
		}
	}
	return device.UniformInvalid
}

func imageSampleType(img ir.ImageType) gputypes.TextureSampleType {
	if img.Class == ir.ImageClassDepth {
		return gputypes.TextureSampleTypeDepth
	}
	switch img.SampledKind {
	case ir.ScalarSint:
		return gputypes.TextureSampleTypeSint
	case ir.ScalarUint:
		return gputypes.TextureSampleTypeUint
	default:
		return gputypes.TextureSampleTypeFloat
	}
}

// compileWGSL compiles src to SPIR-V words.
func compileWGSL(src string) ([]uint32, error) {
	spirvBytes, err := naga.Compile(src)
	if err != nil {
		return nil, fmt.Errorf("wgpu: %w: %v", device.ErrCompile, err)
	}
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}
	return code, nil
}
