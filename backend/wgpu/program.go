// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

// program is a shader module with its reflected interface and bind group
// layouts. Uniform locations 0..len(uniforms)-1 name members of the
// Uniforms struct; the following locations name textures.
type program struct {
	label  string
	module hal.ShaderModule
	iface  *iface

	layouts        [groupCount]hal.BindGroupLayout
	pipelineLayout hal.PipelineLayout
	uniformGroup   hal.BindGroup
	blockFallback  hal.Buffer

	uniforms   []device.UniformInfo
	blocks     []device.UniformBlockInfo
	data       []byte  // Uniforms struct image
	units      []int32 // texture unit per texture variable
	blockSlots map[uint32]int
}

// CreateProgram implements device.Device. The vertex source holds the
// whole module; a distinct fragment source is appended to it.
func (d *Device) CreateProgram(desc *device.ProgramDescriptor) (device.ProgramID, error) {
	src := desc.Vertex
	if desc.Fragment != "" && desc.Fragment != desc.Vertex {
		src += "\n" + desc.Fragment
	}
	in, err := reflectWGSL(src)
	if err != nil {
		return device.InvalidID, fmt.Errorf("program %q: %w", desc.Label, err)
	}
	code, err := compileWGSL(src)
	if err != nil {
		return device.InvalidID, fmt.Errorf("program %q: %w", desc.Label, err)
	}
	module, err := d.dev.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: code},
	})
	if err != nil {
		return device.InvalidID, fmt.Errorf("wgpu: program %q: %w: %v", desc.Label, device.ErrLink, err)
	}

	p := &program{
		label:      desc.Label,
		module:     module,
		iface:      in,
		data:       make([]byte, alignUp(max(in.uniformsSize, 16), 16)),
		units:      make([]int32, len(in.textures)),
		blockSlots: make(map[uint32]int),
	}
	if err := d.buildLayouts(p); err != nil {
		d.releaseProgram(p)
		return device.InvalidID, fmt.Errorf("wgpu: program %q: %w: %v", desc.Label, device.ErrLink, err)
	}
	p.reflect()

	id := device.ProgramID(d.newID())
	d.programs[id] = p
	logging.Logger().Debug("wgpu: program created", "label", desc.Label,
		"uniforms", len(p.uniforms), "blocks", len(p.blocks), "textures", len(in.textures))
	return id, nil
}

// buildLayouts creates the bind group layouts, the pipeline layout and the
// bind group of the uniform arena.
func (d *Device) buildLayouts(p *program) error {
	stages := gputypes.ShaderStageVertex | gputypes.ShaderStageFragment
	var entries [groupCount][]gputypes.BindGroupLayoutEntry

	if p.iface.uniformsSize > 0 {
		entries[groupUniforms] = []gputypes.BindGroupLayoutEntry{{
			Binding:    0,
			Visibility: stages,
			Buffer: &gputypes.BufferBindingLayout{
				Type:             gputypes.BufferBindingTypeUniform,
				HasDynamicOffset: true,
				MinBindingSize:   uint64(len(p.data)),
			},
		}}
	}
	maxBlock := 0
	for _, b := range p.iface.blocks {
		entries[groupBlocks] = append(entries[groupBlocks], gputypes.BindGroupLayoutEntry{
			Binding:    b.binding,
			Visibility: stages,
			Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
		})
		maxBlock = max(maxBlock, b.size)
	}
	for _, t := range p.iface.textures {
		samplerType := gputypes.SamplerBindingTypeFiltering
		if t.sample != gputypes.TextureSampleTypeFloat {
			samplerType = gputypes.SamplerBindingTypeNonFiltering
		}
		entries[groupTextures] = append(entries[groupTextures],
			gputypes.BindGroupLayoutEntry{
				Binding:    t.binding,
				Visibility: stages,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    t.sample,
					ViewDimension: gputypes.TextureViewDimension2D,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    t.binding + 1,
				Visibility: stages,
				Sampler:    &gputypes.SamplerBindingLayout{Type: samplerType},
			})
	}

	for g := range groupCount {
		layout, err := d.dev.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s-group%d", p.label, g),
			Entries: entries[g],
		})
		if err != nil {
			return fmt.Errorf("bind group layout %d: %w", g, err)
		}
		p.layouts[g] = layout
	}
	layout, err := d.dev.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            p.label,
		BindGroupLayouts: p.layouts[:],
	})
	if err != nil {
		return fmt.Errorf("pipeline layout: %w", err)
	}
	p.pipelineLayout = layout

	var uniformEntries []gputypes.BindGroupEntry
	if p.iface.uniformsSize > 0 {
		uniformEntries = []gputypes.BindGroupEntry{{
			Binding: 0,
			Resource: gputypes.BufferBinding{
				Buffer: d.arena.buf.NativeHandle(),
				Size:   uint64(len(p.data)),
			},
		}}
	}
	group, err := d.dev.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   p.label + "-uniforms",
		Layout:  p.layouts[groupUniforms],
		Entries: uniformEntries,
	})
	if err != nil {
		return fmt.Errorf("uniform bind group: %w", err)
	}
	p.uniformGroup = group

	if maxBlock > 0 {
		fallback, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
			Label: p.label + "-blocks",
			Size:  uint64(alignUp(maxBlock, 16)),
			Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("block fallback buffer: %w", err)
		}
		p.blockFallback = fallback
	}
	return nil
}

// reflect builds the device-facing uniform and block tables.
func (p *program) reflect() {
	for i, m := range p.iface.uniforms {
		p.uniforms = append(p.uniforms, device.UniformInfo{
			Name: m.name, Type: m.typ, Location: int32(i), Block: -1,
		})
	}
	for k, t := range p.iface.textures {
		p.uniforms = append(p.uniforms, device.UniformInfo{
			Name: t.name, Type: device.UniformSampler, Location: int32(len(p.iface.uniforms) + k), Block: -1,
		})
		p.units[k] = int32(k)
	}
	for _, b := range p.iface.blocks {
		p.blocks = append(p.blocks, device.UniformBlockInfo{Name: b.name, Index: b.binding, Size: b.size})
		for _, m := range b.members {
			p.uniforms = append(p.uniforms, device.UniformInfo{
				Name: m.name, Type: m.typ, Location: -1, Block: int32(b.binding),
			})
		}
		p.blockSlots[b.binding] = int(b.binding)
	}
}

// ActiveUniforms implements device.Device.
func (d *Device) ActiveUniforms(id device.ProgramID) []device.UniformInfo {
	if p := d.programs[id]; p != nil {
		return p.uniforms
	}
	return nil
}

// ActiveUniformBlocks implements device.Device.
func (d *Device) ActiveUniformBlocks(id device.ProgramID) []device.UniformBlockInfo {
	if p := d.programs[id]; p != nil {
		return p.blocks
	}
	return nil
}

// BindUniformBlock implements device.Device.
func (d *Device) BindUniformBlock(id device.ProgramID, block uint32, slot int) {
	if p := d.programs[id]; p != nil {
		p.blockSlots[block] = slot
	}
}

// Uniform implements device.Device. Values are packed into the program's
// Uniforms image at the member offset and reach the GPU with the next draw.
func (d *Device) Uniform(location int32, v device.Value) {
	p := d.programs[d.state.program]
	if p == nil || location < 0 {
		return
	}
	n := int32(len(p.iface.uniforms))
	if location >= n {
		if k := location - n; int(k) < len(p.units) {
			p.units[k] = v.IntValue()
		}
		return
	}
	m := p.iface.uniforms[location]
	switch m.typ {
	case device.UniformInt:
		binary.LittleEndian.PutUint32(p.data[m.offset:], uint32(v.IntValue()))
	default:
		for i, f := range v.Floats() {
			off := m.offset + 4*i
			if off+4 > len(p.data) {
				break
			}
			binary.LittleEndian.PutUint32(p.data[off:], math.Float32bits(f))
		}
	}
}

// DestroyProgram implements device.Device.
func (d *Device) DestroyProgram(id device.ProgramID) {
	p := d.programs[id]
	if p == nil {
		return
	}
	delete(d.programs, id)
	if d.state.program == id {
		d.state.program = device.InvalidID
	}
	d.pipelines.DeleteFunc(func(k pipelineKey) bool { return k.program == id })
	d.groups.DeleteFunc(func(k groupKey) bool { return k.program == id })
	d.retire(func() { d.releaseProgram(p) })
}

func (d *Device) releaseProgram(p *program) {
	if p.uniformGroup != nil {
		d.dev.DestroyBindGroup(p.uniformGroup)
	}
	if p.blockFallback != nil {
		d.dev.DestroyBuffer(p.blockFallback)
	}
	if p.pipelineLayout != nil {
		d.dev.DestroyPipelineLayout(p.pipelineLayout)
	}
	for _, l := range p.layouts {
		if l != nil {
			d.dev.DestroyBindGroupLayout(l)
		}
	}
	if p.module != nil {
		d.dev.DestroyShaderModule(p.module)
	}
}
