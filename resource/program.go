// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

// Well-known uniform block slots. Blocks with other names get slots from
// FirstAdHocSlot upward, in reflection order.
const (
	CameraSlot     = 0
	LightSlot      = 1
	MaterialSlot   = 2
	FirstAdHocSlot = 3
)

var wellKnownBlocks = map[string]int{
	"Camera":   CameraSlot,
	"Light":    LightSlot,
	"Material": MaterialSlot,
}

// uniform is one entry of the upload table.
type uniform struct {
	typ      device.UniformType
	location int32
}

// Program is a compiled and linked shader program.
//
// Realize compiles, links and reflects the program. Reflection builds the
// table used by Set: free-standing uniforms only, since block members are
// uploaded through uniform buffers.
type Program struct {
	desc device.ProgramDescriptor
	h    handle[device.ProgramID]

	uniforms map[string]uniform
	blocks   map[string]int
}

// NewProgram returns a described program.
func NewProgram(desc device.ProgramDescriptor) *Program {
	return &Program{desc: desc}
}

// Label returns the debug label.
func (p *Program) Label() string { return p.desc.Label }

// Stage returns the lifecycle stage.
func (p *Program) Stage() Stage { return p.h.stage }

// ID returns the device handle.
func (p *Program) ID() device.ProgramID { return p.h.id }

// Descriptor returns the program descriptor.
func (p *Program) Descriptor() device.ProgramDescriptor { return p.desc }

// Realize compiles and links the program, then reflects its interface.
// Compile and link failures are Vital.
func (p *Program) Realize(ctx *device.Context) error {
	return p.h.realize(p.desc.Label, func() (device.ProgramID, error) {
		dev := ctx.Device()
		id, err := dev.CreateProgram(&p.desc)
		if err != nil {
			return id, err
		}
		p.reflect(dev, id)
		logging.Logger().Debug("resource: program realized", "label", p.desc.Label,
			"uniforms", len(p.uniforms), "blocks", len(p.blocks))
		return id, nil
	})
}

func (p *Program) reflect(dev device.Device, id device.ProgramID) {
	p.uniforms = make(map[string]uniform)
	for _, u := range dev.ActiveUniforms(id) {
		if u.Block >= 0 {
			continue
		}
		p.uniforms[u.Name] = uniform{typ: u.Type, location: u.Location}
	}

	p.blocks = make(map[string]int)
	next := FirstAdHocSlot
	for _, b := range dev.ActiveUniformBlocks(id) {
		slot, ok := wellKnownBlocks[b.Name]
		if !ok {
			slot = next
			next++
		}
		p.blocks[b.Name] = slot
		dev.BindUniformBlock(id, b.Index, slot)
	}
}

// HasUniform reports whether name is a free-standing active uniform.
func (p *Program) HasUniform(name string) bool {
	_, ok := p.uniforms[name]
	return ok
}

// UniformType returns the reflected type of a free-standing uniform.
func (p *Program) UniformType(name string) (device.UniformType, bool) {
	u, ok := p.uniforms[name]
	return u.typ, ok
}

// BlockSlot returns the uniform buffer slot a block was routed to.
func (p *Program) BlockSlot(name string) (int, bool) {
	slot, ok := p.blocks[name]
	return slot, ok
}

// Set uploads v to the uniform called name. The program must be in use.
// Names the program does not use are skipped silently; a value whose type
// does not match the reflected type is dropped with a warning.
func (p *Program) Set(ctx *device.Context, name string, v device.Value) {
	u, ok := p.uniforms[name]
	if !ok {
		return
	}
	if !compatible(u.typ, v.Type()) {
		logging.Logger().Warn("resource: uniform type mismatch",
			"program", p.desc.Label, "uniform", name, "want", u.typ, "got", v.Type())
		return
	}
	ctx.Device().Uniform(u.location, v)
}

// compatible reports whether a value of type got may be uploaded to a
// uniform of type want. Samplers accept plain ints naming a unit.
func compatible(want, got device.UniformType) bool {
	if want == got {
		return true
	}
	return want == device.UniformSampler && got == device.UniformInt
}

// SetInt uploads an int uniform.
func (p *Program) SetInt(ctx *device.Context, name string, v int32) {
	p.Set(ctx, name, device.Int(v))
}

// SetFloat uploads a float uniform.
func (p *Program) SetFloat(ctx *device.Context, name string, v float32) {
	p.Set(ctx, name, device.Float(v))
}

// SetVec2 uploads a vec2 uniform.
func (p *Program) SetVec2(ctx *device.Context, name string, v mgl32.Vec2) {
	p.Set(ctx, name, device.Vec2(v))
}

// SetVec3 uploads a vec3 uniform.
func (p *Program) SetVec3(ctx *device.Context, name string, v mgl32.Vec3) {
	p.Set(ctx, name, device.Vec3(v))
}

// SetVec4 uploads a vec4 uniform.
func (p *Program) SetVec4(ctx *device.Context, name string, v mgl32.Vec4) {
	p.Set(ctx, name, device.Vec4(v))
}

// SetMat4 uploads a mat4 uniform.
func (p *Program) SetMat4(ctx *device.Context, name string, m mgl32.Mat4) {
	p.Set(ctx, name, device.Mat4(m))
}

// SetSampler points a sampler uniform at a texture unit.
func (p *Program) SetSampler(ctx *device.Context, name string, unit int32) {
	p.Set(ctx, name, device.Sampler(unit))
}

// BindKind implements device.Bindable.
func (p *Program) BindKind() device.Kind { return device.KindProgram }

// BindTo implements device.Bindable.
func (p *Program) BindTo(d device.Device, _ int) { d.UseProgram(p.h.id) }

// Destroy releases the program.
func (p *Program) Destroy(ctx *device.Context) {
	ctx.Forget(p)
	p.h.destroy(ctx.Device().DestroyProgram)
	p.uniforms = nil
	p.blocks = nil
}
