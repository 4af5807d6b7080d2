// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"encoding/binary"
	"errors"
	"image"
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/g3d/backend"
	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/shader"
)

// countingDevice records the HAL objects a Device creates.
type countingDevice struct {
	hal.Device
	pipelines  int
	bindGroups int
	modules    int
	encoders   []*recordingEncoder
}

func (c *countingDevice) CreateRenderPipeline(desc *hal.RenderPipelineDescriptor) (hal.RenderPipeline, error) {
	c.pipelines++
	return c.Device.CreateRenderPipeline(desc)
}

func (c *countingDevice) CreateBindGroup(desc *hal.BindGroupDescriptor) (hal.BindGroup, error) {
	c.bindGroups++
	return c.Device.CreateBindGroup(desc)
}

func (c *countingDevice) CreateShaderModule(desc *hal.ShaderModuleDescriptor) (hal.ShaderModule, error) {
	c.modules++
	return c.Device.CreateShaderModule(desc)
}

func (c *countingDevice) CreateCommandEncoder(desc *hal.CommandEncoderDescriptor) (hal.CommandEncoder, error) {
	enc, err := c.Device.CreateCommandEncoder(desc)
	if err != nil {
		return nil, err
	}
	r := &recordingEncoder{CommandEncoder: enc}
	c.encoders = append(c.encoders, r)
	return r, nil
}

// passes returns every render pass recorded so far.
func (c *countingDevice) passes() []*recordingPass {
	var out []*recordingPass
	for _, e := range c.encoders {
		out = append(out, e.passes...)
	}
	return out
}

type recordingEncoder struct {
	hal.CommandEncoder
	passes []*recordingPass
	copies int
}

func (e *recordingEncoder) BeginRenderPass(desc *hal.RenderPassDescriptor) hal.RenderPassEncoder {
	p := &recordingPass{RenderPassEncoder: e.CommandEncoder.BeginRenderPass(desc), desc: desc}
	e.passes = append(e.passes, p)
	return p
}

func (e *recordingEncoder) CopyTextureToBuffer(src hal.Texture, dst hal.Buffer, regions []hal.BufferTextureCopy) {
	e.copies++
	e.CommandEncoder.CopyTextureToBuffer(src, dst, regions)
}

type recordingPass struct {
	hal.RenderPassEncoder
	desc      *hal.RenderPassDescriptor
	draws     int
	offsets   []uint32
	viewports [][4]float32
}

func (p *recordingPass) SetBindGroup(index uint32, group hal.BindGroup, offsets []uint32) {
	if index == groupUniforms && len(offsets) > 0 {
		p.offsets = append(p.offsets, offsets[0])
	}
	p.RenderPassEncoder.SetBindGroup(index, group, offsets)
}

func (p *recordingPass) SetViewport(x, y, w, h, minDepth, maxDepth float32) {
	p.viewports = append(p.viewports, [4]float32{x, y, w, h})
	p.RenderPassEncoder.SetViewport(x, y, w, h, minDepth, maxDepth)
}

func (p *recordingPass) Draw(vertices, instances, first, firstInstance uint32) {
	p.draws++
	p.RenderPassEncoder.Draw(vertices, instances, first, firstInstance)
}

func (p *recordingPass) DrawIndexed(indices, instances, first uint32, base int32, firstInstance uint32) {
	p.draws++
	p.RenderPassEncoder.DrawIndexed(indices, instances, first, base, firstInstance)
}

// recordingQueue keeps the last arena upload.
type recordingQueue struct {
	hal.Queue
	arena   hal.Buffer
	uploads [][]byte
	submits int
}

func (q *recordingQueue) WriteBuffer(buf hal.Buffer, offset uint64, data []byte) error {
	if buf == q.arena {
		q.uploads = append(q.uploads, append([]byte(nil), data...))
	}
	return q.Queue.WriteBuffer(buf, offset, data)
}

func (q *recordingQueue) Submit(cmds []hal.CommandBuffer) (uint64, error) {
	q.submits++
	return q.Queue.Submit(cmds)
}

func newTestDevice(t *testing.T, w, h int) (*Device, *countingDevice, *recordingQueue) {
	t.Helper()
	instance, err := noop.API{}.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance() error = %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	cd := &countingDevice{Device: open.Device}
	q := &recordingQueue{Queue: open.Queue}
	d, err := New(cd, q, w, h, gputypes.TextureFormatUndefined)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	q.arena = d.arena.buf
	t.Cleanup(func() {
		d.Destroy()
		instance.Destroy()
	})
	return d, cd, q
}

const testWGSL = `struct Uniforms {
	uTint: vec4<f32>,
	uScale: f32,
	uLayer: i32,
};
@group(0) @binding(0) var<uniform> u: Uniforms;

struct Camera {
	view: mat4x4<f32>,
	proj: mat4x4<f32>,
};
@group(1) @binding(0) var<uniform> camera: Camera;

struct Fog {
	color: vec4<f32>,
};
@group(1) @binding(1) var<uniform> fog: Fog;

@group(2) @binding(0) var uAlbedo: texture_2d<f32>;
@group(2) @binding(1) var uAlbedo_sampler: sampler;

@vertex
fn vs_main(@location(0) position: vec3<f32>) -> @builtin(position) vec4<f32> {
	return camera.proj * camera.view * vec4<f32>(position * u.uScale, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
	return u.uTint * fog.color * textureSample(uAlbedo, uAlbedo_sampler, vec2<f32>(0.5, 0.5));
}
`

func createTestProgram(t *testing.T, d *Device) device.ProgramID {
	t.Helper()
	id, err := d.CreateProgram(&device.ProgramDescriptor{
		Label: "test", Name: "test", Language: device.LanguageWGSL, Vertex: testWGSL, Fragment: testWGSL,
	})
	if err != nil {
		t.Fatalf("CreateProgram() error = %v", err)
	}
	return id
}

func triangle(t *testing.T, d *Device) device.GeometryID {
	t.Helper()
	data := make([]byte, 36)
	for i, v := range []float32{-1, -1, 0, 1, -1, 0, 0, 1, 0} {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	buf, err := d.CreateBuffer(&device.BufferDescriptor{Usage: gputypes.BufferUsageVertex, Data: data})
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	geo, err := d.CreateGeometry(&device.GeometryDescriptor{
		Topology: gputypes.PrimitiveTopologyTriangleList,
		Layouts: []device.VertexLayout{{
			Buffer:     buf,
			Stride:     12,
			Attributes: []gputypes.VertexAttribute{{Format: gputypes.VertexFormatFloat32x3}},
		}},
	})
	if err != nil {
		t.Fatalf("CreateGeometry() error = %v", err)
	}
	return geo
}

func location(d *Device, p device.ProgramID, name string) int32 {
	for _, u := range d.ActiveUniforms(p) {
		if u.Name == name {
			return u.Location
		}
	}
	return -1
}

func TestReflectProgramInterface(t *testing.T) {
	d, _, _ := newTestDevice(t, 4, 4)
	p := createTestProgram(t, d)

	want := map[string]device.UniformInfo{
		"uTint":   {Name: "uTint", Type: device.UniformVec4, Location: 0, Block: -1},
		"uScale":  {Name: "uScale", Type: device.UniformFloat, Location: 1, Block: -1},
		"uLayer":  {Name: "uLayer", Type: device.UniformInt, Location: 2, Block: -1},
		"uAlbedo": {Name: "uAlbedo", Type: device.UniformSampler, Location: 3, Block: -1},
		"view":    {Name: "view", Type: device.UniformMat4, Location: -1, Block: 0},
		"proj":    {Name: "proj", Type: device.UniformMat4, Location: -1, Block: 0},
		"color":   {Name: "color", Type: device.UniformVec4, Location: -1, Block: 1},
	}
	got := d.ActiveUniforms(p)
	if len(got) != len(want) {
		t.Fatalf("ActiveUniforms() = %d entries, want %d: %+v", len(got), len(want), got)
	}
	for _, u := range got {
		if u != want[u.Name] {
			t.Errorf("uniform %q = %+v, want %+v", u.Name, u, want[u.Name])
		}
	}

	blocks := d.ActiveUniformBlocks(p)
	if len(blocks) != 2 {
		t.Fatalf("ActiveUniformBlocks() = %+v, want 2 blocks", blocks)
	}
	if blocks[0].Name != "Camera" || blocks[0].Index != 0 || blocks[0].Size != 128 {
		t.Errorf("blocks[0] = %+v, want Camera at 0 of 128 bytes", blocks[0])
	}
	if blocks[1].Name != "Fog" || blocks[1].Index != 1 {
		t.Errorf("blocks[1] = %+v, want Fog at 1", blocks[1])
	}
}

func TestCreateProgramErrors(t *testing.T) {
	d, _, _ := newTestDevice(t, 4, 4)
	tests := []struct {
		name string
		src  string
		want error
	}{
		{"syntax", "fn vs_main( {", device.ErrCompile},
		{"group0 texture", `@group(0) @binding(0) var t: texture_2d<f32>;
@vertex fn vs_main() -> @builtin(position) vec4<f32> { return vec4<f32>(0.0); }
@fragment fn fs_main() -> @location(0) vec4<f32> { return vec4<f32>(f32(textureDimensions(t).x)); }
`, device.ErrLink},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateProgram(&device.ProgramDescriptor{Label: tt.name, Vertex: tt.src})
			if !errors.Is(err, tt.want) {
				t.Errorf("CreateProgram() error = %v, want %v", err, tt.want)
			}
			if !device.IsVital(err) {
				t.Errorf("IsVital(%v) = false, want true", err)
			}
		})
	}
}

func TestUniformPackingAndArena(t *testing.T) {
	d, _, q := newTestDevice(t, 4, 4)
	p := createTestProgram(t, d)
	geo := triangle(t, d)

	d.UseProgram(p)
	d.BindGeometry(geo)
	d.Uniform(location(d, p, "uTint"), device.Vec4(mgl32.Vec4{1, 0.5, 0.25, 1}))
	d.Uniform(location(d, p, "uScale"), device.Float(2))
	d.Uniform(location(d, p, "uLayer"), device.Int(7))
	if err := d.Draw(device.DrawCall{Kind: device.DrawArrays, Count: 3}); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	d.Uniform(location(d, p, "uScale"), device.Float(3))
	if err := d.Draw(device.DrawCall{Kind: device.DrawArrays, Count: 3}); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	if len(q.uploads) != 1 {
		t.Fatalf("arena uploads = %d, want 1", len(q.uploads))
	}
	data := q.uploads[0]
	f32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(data[off:])) }
	if got := f32(4); got != 0.5 {
		t.Errorf("uTint.y = %v, want 0.5", got)
	}
	if got := f32(16); got != 2 {
		t.Errorf("first uScale = %v, want 2", got)
	}
	if got := int32(binary.LittleEndian.Uint32(data[20:])); got != 7 {
		t.Errorf("uLayer = %d, want 7", got)
	}
	if got := f32(uniformAlignment + 16); got != 3 {
		t.Errorf("second uScale = %v, want 3", got)
	}
	if q.submits != 1 {
		t.Errorf("submits = %d, want 1", q.submits)
	}
}

func TestPipelineCachedPerState(t *testing.T) {
	d, cd, _ := newTestDevice(t, 4, 4)
	p := createTestProgram(t, d)
	geo := triangle(t, d)
	d.UseProgram(p)
	d.BindGeometry(geo)

	draw := func() {
		t.Helper()
		if err := d.Draw(device.DrawCall{Kind: device.DrawArrays, Count: 3}); err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
	}
	draw()
	draw()
	if cd.pipelines != 1 {
		t.Errorf("pipelines after identical draws = %d, want 1", cd.pipelines)
	}

	d.Enable(device.CapabilityBlend)
	draw()
	d.Disable(device.CapabilityBlend)
	draw()
	if cd.pipelines != 2 {
		t.Errorf("pipelines after blend toggle = %d, want 2", cd.pipelines)
	}

	// The depth function is ignored while the depth test is off.
	d.DepthFunc(gputypes.CompareFunctionGreater)
	draw()
	if cd.pipelines != 2 {
		t.Errorf("pipelines after DepthFunc without test = %d, want 2", cd.pipelines)
	}

	stats := d.PipelineStats()
	if stats.Hits != 3 || stats.Misses != 2 {
		t.Errorf("PipelineStats() = %+v, want 3 hits and 2 misses", stats)
	}
}

func TestBindGroupsFollowBindings(t *testing.T) {
	d, cd, _ := newTestDevice(t, 4, 4)
	p := createTestProgram(t, d)
	geo := triangle(t, d)
	d.UseProgram(p)
	d.BindGeometry(geo)

	base := cd.bindGroups
	draw := func() {
		t.Helper()
		if err := d.Draw(device.DrawCall{Kind: device.DrawArrays, Count: 3}); err != nil {
			t.Fatalf("Draw() error = %v", err)
		}
	}
	draw()
	// Blocks and textures group.
	if got := cd.bindGroups - base; got != 2 {
		t.Fatalf("bind groups after first draw = %d, want 2", got)
	}
	draw()
	if got := cd.bindGroups - base; got != 2 {
		t.Errorf("bind groups after repeated draw = %d, want 2", got)
	}

	tex, err := d.CreateTexture(&device.TextureDescriptor{Width: 2, Height: 2, Format: gputypes.TextureFormatRGBA8Unorm})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	d.BindTexture(0, tex)
	draw()
	if got := cd.bindGroups - base; got != 3 {
		t.Errorf("bind groups after BindTexture = %d, want 3", got)
	}

	d.DestroyTexture(tex)
	d.BindTexture(0, device.InvalidID)
	draw()
	// The fallback group was still cached.
	if got := cd.bindGroups - base; got != 3 {
		t.Errorf("bind groups after unbinding = %d, want 3", got)
	}
}

func TestClearBecomesLoadOp(t *testing.T) {
	d, cd, _ := newTestDevice(t, 4, 4)
	p := createTestProgram(t, d)
	geo := triangle(t, d)

	d.Clear(device.ClearOptions{Mask: device.ClearColor | device.ClearDepth, Color: gputypes.Color{R: 1, A: 1}, Depth: 1})
	d.UseProgram(p)
	d.BindGeometry(geo)
	if err := d.Draw(device.DrawCall{Kind: device.DrawArrays, Count: 3}); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if err := d.Draw(device.DrawCall{Kind: device.DrawArrays, Count: 3}); err != nil {
		t.Fatalf("Draw() error = %v", err)
	}
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	passes := cd.passes()
	if len(passes) != 1 {
		t.Fatalf("passes = %d, want 1", len(passes))
	}
	pass := passes[0]
	if pass.draws != 2 {
		t.Errorf("draws = %d, want 2", pass.draws)
	}
	color := pass.desc.ColorAttachments[0]
	if color.LoadOp != gputypes.LoadOpClear || color.ClearValue.R != 1 {
		t.Errorf("color attachment = %+v, want clear to red", color)
	}
	if ds := pass.desc.DepthStencilAttachment; ds == nil || ds.DepthLoadOp != gputypes.LoadOpClear || ds.DepthClearValue != 1 {
		t.Errorf("depth attachment = %+v, want clear to 1", ds)
	}
	if len(pass.offsets) != 2 || pass.offsets[1] != uniformAlignment {
		t.Errorf("dynamic offsets = %v, want [0 %d]", pass.offsets, uniformAlignment)
	}
}

func TestClearWithoutDrawIsEncoded(t *testing.T) {
	d, cd, _ := newTestDevice(t, 4, 4)
	d.Clear(device.ClearOptions{Mask: device.ClearColor})
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}
	passes := cd.passes()
	if len(passes) != 1 || passes[0].draws != 0 {
		t.Fatalf("passes = %d, want 1 empty pass", len(passes))
	}
	if got := passes[0].desc.ColorAttachments[0].LoadOp; got != gputypes.LoadOpClear {
		t.Errorf("LoadOp = %v, want clear", got)
	}
}

func TestFramebufferSwitchEndsPass(t *testing.T) {
	d, cd, _ := newTestDevice(t, 8, 8)
	p := createTestProgram(t, d)
	geo := triangle(t, d)
	color, err := d.CreateTexture(&device.TextureDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatR32Sint})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	fb, err := d.CreateFramebuffer(&device.FramebufferDescriptor{Color: []device.TextureID{color}, Width: 4, Height: 4})
	if err != nil {
		t.Fatalf("CreateFramebuffer() error = %v", err)
	}

	d.UseProgram(p)
	d.BindGeometry(geo)
	_ = d.Draw(device.DrawCall{Kind: device.DrawArrays, Count: 3})
	d.BindFramebuffer(fb)
	d.Viewport(image.Rect(0, 1, 4, 3))
	_ = d.Draw(device.DrawCall{Kind: device.DrawArrays, Count: 3})
	if err := d.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	passes := cd.passes()
	if len(passes) != 2 {
		t.Fatalf("passes = %d, want 2", len(passes))
	}
	if cd.pipelines != 2 {
		t.Errorf("pipelines = %d, want one per framebuffer", cd.pipelines)
	}
	// Bottom-up rows 1..3 of a 4-row target are top-down rows 1..3.
	if got := passes[1].viewports[0]; got != [4]float32{0, 1, 4, 2} {
		t.Errorf("viewport = %v, want [0 1 4 2]", got)
	}
}

func TestFramebufferValidation(t *testing.T) {
	d, _, _ := newTestDevice(t, 4, 4)
	color, _ := d.CreateTexture(&device.TextureDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatRGBA8Unorm})
	small, _ := d.CreateTexture(&device.TextureDescriptor{Width: 2, Height: 2, Format: gputypes.TextureFormatRGBA8Unorm})
	depth, _ := d.CreateTexture(&device.TextureDescriptor{Width: 4, Height: 4, Format: gputypes.TextureFormatDepth32Float})

	tests := []struct {
		name string
		desc device.FramebufferDescriptor
		ok   bool
	}{
		{"color and depth", device.FramebufferDescriptor{Color: []device.TextureID{color}, Depth: depth, Width: 4, Height: 4}, true},
		{"no color", device.FramebufferDescriptor{Width: 4, Height: 4}, false},
		{"size mismatch", device.FramebufferDescriptor{Color: []device.TextureID{small}, Width: 4, Height: 4}, false},
		{"depth as color", device.FramebufferDescriptor{Color: []device.TextureID{depth}, Width: 4, Height: 4}, false},
		{"color as depth", device.FramebufferDescriptor{Color: []device.TextureID{color}, Depth: color, Width: 4, Height: 4}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.CreateFramebuffer(&tt.desc)
			if tt.ok && err != nil {
				t.Errorf("CreateFramebuffer() error = %v", err)
			}
			if !tt.ok && !errors.Is(err, device.ErrIncompleteFramebuffer) {
				t.Errorf("CreateFramebuffer() error = %v, want %v", err, device.ErrIncompleteFramebuffer)
			}
		})
	}
}

func TestReadPixels(t *testing.T) {
	d, cd, q := newTestDevice(t, 4, 4)

	buf := make([]byte, 4*4)
	if err := d.ReadPixels(device.DefaultFramebuffer, 0, image.Rect(0, 0, 2, 2), buf); err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	copies := 0
	for _, e := range cd.encoders {
		copies += e.copies
	}
	if copies != 1 || q.submits != 1 {
		t.Errorf("copies = %d, submits = %d, want 1 each", copies, q.submits)
	}

	tests := []struct {
		name string
		fb   device.FramebufferID
		rect image.Rectangle
		dst  int
		want error
	}{
		{"outside", device.DefaultFramebuffer, image.Rect(3, 3, 5, 5), 16, device.ErrOutOfBounds},
		{"short destination", device.DefaultFramebuffer, image.Rect(0, 0, 2, 2), 8, device.ErrOutOfBounds},
		{"unknown framebuffer", 99, image.Rect(0, 0, 1, 1), 4, device.ErrUnknownResource},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.ReadPixels(tt.fb, 0, tt.rect, make([]byte, tt.dst))
			if !errors.Is(err, tt.want) {
				t.Errorf("ReadPixels() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestWriteTextureValidation(t *testing.T) {
	d, _, _ := newTestDevice(t, 4, 4)
	tex, err := d.CreateTexture(&device.TextureDescriptor{Width: 4, Height: 2, MipLevels: 2, Format: gputypes.TextureFormatRGBA8Unorm})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	if err := d.WriteTexture(tex, 1, make([]byte, 2*1*4)); err != nil {
		t.Errorf("WriteTexture(level 1) error = %v", err)
	}
	if err := d.WriteTexture(tex, 2, nil); !errors.Is(err, device.ErrOutOfBounds) {
		t.Errorf("WriteTexture(level 2) error = %v, want %v", err, device.ErrOutOfBounds)
	}
	if err := d.WriteTexture(tex, 0, make([]byte, 3)); !errors.Is(err, device.ErrOutOfBounds) {
		t.Errorf("WriteTexture(short) error = %v, want %v", err, device.ErrOutOfBounds)
	}
	if _, err := d.CreateTexture(&device.TextureDescriptor{Width: 1, Height: 1, Format: gputypes.TextureFormatBC1RGBAUnorm}); !errors.Is(err, device.ErrUnsupported) {
		t.Errorf("CreateTexture(BC1) error = %v, want %v", err, device.ErrUnsupported)
	}
}

func TestDrawErrors(t *testing.T) {
	d, _, _ := newTestDevice(t, 4, 4)
	if err := d.Draw(device.DrawCall{Count: 3}); !errors.Is(err, device.ErrUnknownResource) {
		t.Errorf("Draw() without program error = %v, want %v", err, device.ErrUnknownResource)
	}
	d.UseProgram(createTestProgram(t, d))
	d.BindGeometry(triangle(t, d))
	if err := d.Draw(device.DrawCall{Kind: device.DrawIndexed, Count: 3}); !errors.Is(err, device.ErrUnsupported) {
		t.Errorf("indexed Draw() error = %v, want %v", err, device.ErrUnsupported)
	}
}

func TestBuiltinTemplatesCompile(t *testing.T) {
	d, cd, _ := newTestDevice(t, 4, 4)
	variants := 0
	for _, tmpl := range shader.Builtins() {
		src := tmpl.Sources[device.LanguageWGSL].Vertex
		flagSets := [][]string{nil}
		if len(tmpl.Flags) > 0 {
			flagSets = append(flagSets, tmpl.Flags)
		}
		for _, enabled := range flagSets {
			code := shader.Inject(device.LanguageWGSL, src, enabled, tmpl.Flags)
			if _, err := d.CreateProgram(&device.ProgramDescriptor{Label: tmpl.Name, Vertex: code}); err != nil {
				t.Errorf("CreateProgram(%s %v) error = %v\n%s", tmpl.Name, enabled, err, code)
			}
			variants++
		}
	}
	if cd.modules != variants {
		t.Errorf("shader modules = %d, want %d", cd.modules, variants)
	}
}

type fakeProvider struct {
	dev   hal.Device
	queue hal.Queue
}

func (p *fakeProvider) Device() gpucontext.Device { return nil }
func (p *fakeProvider) Queue() gpucontext.Queue   { return nil }
func (p *fakeProvider) SurfaceFormat() gputypes.TextureFormat {
	return gputypes.TextureFormatBGRA8Unorm
}
func (p *fakeProvider) Adapter() gpucontext.Adapter         { return nil }
func (p *fakeProvider) AdapterInfo() gpucontext.AdapterInfo { return gpucontext.AdapterInfo{} }
func (p *fakeProvider) HalDevice() any                      { return p.dev }
func (p *fakeProvider) HalQueue() any                       { return p.queue }

func TestOpenThroughRegistry(t *testing.T) {
	if _, err := backend.Open(backend.BackendWGPU, backend.Options{Width: 4, Height: 4}); !errors.Is(err, backend.ErrBackendNotAvailable) {
		t.Errorf("Open() without provider error = %v, want %v", err, backend.ErrBackendNotAvailable)
	}

	instance, _ := noop.API{}.CreateInstance(nil)
	defer instance.Destroy()
	open, err := instance.EnumerateAdapters(nil)[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	dev, err := backend.Open(backend.BackendWGPU, backend.Options{
		Width: 4, Height: 4, Provider: &fakeProvider{dev: open.Device, queue: open.Queue},
	})
	if err != nil {
		t.Fatalf("backend.Open() error = %v", err)
	}
	defer dev.Destroy()
	if dev.ShaderLanguage() != device.LanguageWGSL {
		t.Errorf("ShaderLanguage() = %v, want wgsl", dev.ShaderLanguage())
	}
	if got := dev.(*Device).screenFormat; got != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("screen format = %v, want the provider's surface format", got)
	}
}
