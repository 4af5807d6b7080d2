// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"fmt"
	"image"
	"slices"
	"sort"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

type buffer struct {
	data  []byte
	usage gputypes.BufferUsage
}

type geometry struct {
	desc device.GeometryDescriptor
}

type framebuffer struct {
	color         []device.TextureID
	depth         device.TextureID
	width, height int
}

type program struct {
	label      string
	kernel     Kernel
	defines    map[string]bool
	uniforms   []device.UniformInfo
	blocks     []device.UniformBlockInfo
	values     []device.Value
	byName     map[string]int32
	blockIdx   map[string]uint32
	blockSlots map[uint32]int
}

// state mirrors the fixed-function and binding state of a GL context.
type state struct {
	framebuffer    device.FramebufferID
	program        device.ProgramID
	geometry       device.GeometryID
	textures       map[int]device.TextureID
	uniformBuffers map[int]device.BufferID

	depthTest  bool
	depthFunc  gputypes.CompareFunction
	depthWrite bool
	blend      bool
	blendSrc   gputypes.BlendFactor
	blendDst   gputypes.BlendFactor
	blendOp    gputypes.BlendOperation
	cull       bool
	cullFace   gputypes.CullMode

	viewport    image.Rectangle
	drawBuffers []int
}

// DrawRecord describes one executed draw, for inspection in tests.
type DrawRecord struct {
	Program     string
	Framebuffer device.FramebufferID
	Kind        device.DrawKind
	Count       int
	Instances   int
	Fragments   int
}

// Device is a CPU implementation of device.Device.
//
// Programs are Kernels looked up by program name; shader source text is
// ignored. The built-in kernels are always available and more can be added
// with RegisterKernel. The default framebuffer is an RGBA8 color target with a
// 32-bit float depth buffer. Rows are stored bottom-up, matching GL.
type Device struct {
	limits  device.Limits
	kernels map[string]Kernel

	nextID       uint64
	buffers      map[device.BufferID]*buffer
	geometries   map[device.GeometryID]*geometry
	textures     map[device.TextureID]*texture
	framebuffers map[device.FramebufferID]*framebuffer
	programs     map[device.ProgramID]*program

	state state
	calls map[string]int
	draws []DrawRecord
}

var (
	_ device.Device        = (*Device)(nil)
	_ device.ScreenResizer = (*Device)(nil)
)

// New returns a software device whose default framebuffer is width×height.
func New(width, height int) *Device {
	d := &Device{
		limits:       device.DefaultLimits(),
		kernels:      make(map[string]Kernel),
		buffers:      make(map[device.BufferID]*buffer),
		geometries:   make(map[device.GeometryID]*geometry),
		textures:     make(map[device.TextureID]*texture),
		framebuffers: make(map[device.FramebufferID]*framebuffer),
		programs:     make(map[device.ProgramID]*program),
		calls:        make(map[string]int),
	}
	for name, k := range builtins {
		d.kernels[name] = k
	}
	d.state = defaultState()
	d.resizeScreen(width, height)
	logging.Logger().Info("soft: device created", "width", width, "height", height)
	return d
}

func defaultState() state {
	return state{
		textures:       make(map[int]device.TextureID),
		uniformBuffers: make(map[int]device.BufferID),
		depthFunc:      gputypes.CompareFunctionLess,
		depthWrite:     true,
		blendSrc:       gputypes.BlendFactorOne,
		blendDst:       gputypes.BlendFactorZero,
		blendOp:        gputypes.BlendOperationAdd,
		cullFace:       gputypes.CullModeBack,
		drawBuffers:    []int{0},
	}
}

// ResizeScreen reallocates the default framebuffer and resets the viewport.
func (d *Device) ResizeScreen(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("soft: screen %dx%d: %w", width, height, device.ErrOutOfBounds)
	}
	d.resizeScreen(width, height)
	return nil
}

func (d *Device) resizeScreen(width, height int) {
	if old := d.framebuffers[device.DefaultFramebuffer]; old != nil {
		delete(d.textures, old.color[0])
		delete(d.textures, old.depth)
	}
	color := d.newID()
	depth := d.newID()
	d.textures[device.TextureID(color)] = newTexture(width, height, gputypes.TextureFormatRGBA8Unorm, 1)
	d.textures[device.TextureID(depth)] = newTexture(width, height, gputypes.TextureFormatDepth32Float, 1)
	d.framebuffers[device.DefaultFramebuffer] = &framebuffer{
		color:  []device.TextureID{device.TextureID(color)},
		depth:  device.TextureID(depth),
		width:  width,
		height: height,
	}
	d.state.viewport = image.Rect(0, 0, width, height)
}

// SetLimits overrides the reported limits.
func (d *Device) SetLimits(l device.Limits) { d.limits = l }

// RegisterKernel makes k available to programs named name.
func (d *Device) RegisterKernel(name string, k Kernel) { d.kernels[name] = k }

// Calls returns how many times the named Device method was invoked.
func (d *Device) Calls(method string) int { return d.calls[method] }

// Draws returns the draws executed so far.
func (d *Device) Draws() []DrawRecord { return d.draws }

// ResetCounters clears call counters and the draw log.
func (d *Device) ResetCounters() {
	clear(d.calls)
	d.draws = nil
}

// Live returns the number of live resources of every kind, excluding the
// default framebuffer.
func (d *Device) Live() int {
	return len(d.buffers) + len(d.geometries) + len(d.textures) - 2 +
		len(d.framebuffers) - 1 + len(d.programs)
}

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

func (d *Device) called(method string) { d.calls[method]++ }

// Limits implements device.Device.
func (d *Device) Limits() device.Limits { return d.limits }

// ShaderLanguage implements device.Device.
func (d *Device) ShaderLanguage() device.ShaderLanguage { return device.LanguageKernel }

// CreateBuffer implements device.Device.
func (d *Device) CreateBuffer(desc *device.BufferDescriptor) (device.BufferID, error) {
	d.called("CreateBuffer")
	size := max(desc.Size, len(desc.Data))
	b := &buffer{data: make([]byte, size), usage: desc.Usage}
	copy(b.data, desc.Data)
	id := device.BufferID(d.newID())
	d.buffers[id] = b
	return id, nil
}

// WriteBuffer implements device.Device.
func (d *Device) WriteBuffer(id device.BufferID, offset int, data []byte) error {
	d.called("WriteBuffer")
	b := d.buffers[id]
	if b == nil {
		return fmt.Errorf("soft: buffer %d: %w", id, device.ErrUnknownResource)
	}
	if offset < 0 || offset+len(data) > len(b.data) {
		return fmt.Errorf("soft: buffer %d: write [%d,%d) beyond size %d: %w",
			id, offset, offset+len(data), len(b.data), device.ErrOutOfBounds)
	}
	copy(b.data[offset:], data)
	return nil
}

// DestroyBuffer implements device.Device.
func (d *Device) DestroyBuffer(id device.BufferID) {
	d.called("DestroyBuffer")
	delete(d.buffers, id)
}

// CreateGeometry implements device.Device.
func (d *Device) CreateGeometry(desc *device.GeometryDescriptor) (device.GeometryID, error) {
	d.called("CreateGeometry")
	switch desc.Topology {
	case gputypes.PrimitiveTopologyTriangleList, gputypes.PrimitiveTopologyTriangleStrip:
	default:
		return device.InvalidID, fmt.Errorf("soft: topology %v: %w", desc.Topology, device.ErrUnsupported)
	}
	for _, l := range desc.Layouts {
		if d.buffers[l.Buffer] == nil {
			return device.InvalidID, fmt.Errorf("soft: vertex buffer %d: %w", l.Buffer, device.ErrUnknownResource)
		}
	}
	if desc.Index != device.InvalidID && d.buffers[desc.Index] == nil {
		return device.InvalidID, fmt.Errorf("soft: index buffer %d: %w", desc.Index, device.ErrUnknownResource)
	}
	g := &geometry{desc: *desc}
	g.desc.Layouts = slices.Clone(desc.Layouts)
	id := device.GeometryID(d.newID())
	d.geometries[id] = g
	return id, nil
}

// DestroyGeometry implements device.Device.
func (d *Device) DestroyGeometry(id device.GeometryID) {
	d.called("DestroyGeometry")
	delete(d.geometries, id)
}

// CreateTexture implements device.Device.
func (d *Device) CreateTexture(desc *device.TextureDescriptor) (device.TextureID, error) {
	d.called("CreateTexture")
	if bytesPerTexel(desc.Format) == 0 {
		return device.InvalidID, fmt.Errorf("soft: texture format %v: %w", desc.Format, device.ErrUnsupported)
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > d.limits.MaxTextureSize || desc.Height > d.limits.MaxTextureSize {
		return device.InvalidID, fmt.Errorf("soft: texture size %dx%d: %w", desc.Width, desc.Height, device.ErrUnsupported)
	}
	t := newTexture(desc.Width, desc.Height, desc.Format, max(desc.MipLevels, 1))
	if desc.Data != nil {
		if err := t.write(0, desc.Data); err != nil {
			return device.InvalidID, err
		}
	}
	id := device.TextureID(d.newID())
	d.textures[id] = t
	return id, nil
}

// WriteTexture implements device.Device.
func (d *Device) WriteTexture(id device.TextureID, level int, data []byte) error {
	d.called("WriteTexture")
	t := d.textures[id]
	if t == nil {
		return fmt.Errorf("soft: texture %d: %w", id, device.ErrUnknownResource)
	}
	return t.write(level, data)
}

// DestroyTexture implements device.Device.
func (d *Device) DestroyTexture(id device.TextureID) {
	d.called("DestroyTexture")
	delete(d.textures, id)
}

// CreateFramebuffer implements device.Device.
func (d *Device) CreateFramebuffer(desc *device.FramebufferDescriptor) (device.FramebufferID, error) {
	d.called("CreateFramebuffer")
	if len(desc.Color) == 0 || len(desc.Color) > d.limits.MaxDrawBuffers {
		return device.InvalidID, fmt.Errorf("soft: %d color attachments: %w", len(desc.Color), device.ErrIncompleteFramebuffer)
	}
	for _, c := range desc.Color {
		t := d.textures[c]
		if t == nil || t.width != desc.Width || t.height != desc.Height {
			return device.InvalidID, fmt.Errorf("soft: color attachment %d: %w", c, device.ErrIncompleteFramebuffer)
		}
	}
	if desc.Depth != device.InvalidID {
		t := d.textures[desc.Depth]
		if t == nil || t.depth == nil {
			return device.InvalidID, fmt.Errorf("soft: depth attachment %d: %w", desc.Depth, device.ErrIncompleteFramebuffer)
		}
	}
	id := device.FramebufferID(d.newID())
	d.framebuffers[id] = &framebuffer{
		color:  slices.Clone(desc.Color),
		depth:  desc.Depth,
		width:  desc.Width,
		height: desc.Height,
	}
	return id, nil
}

// ReadPixels implements device.Device.
func (d *Device) ReadPixels(id device.FramebufferID, attachment int, rect image.Rectangle, dst []byte) error {
	d.called("ReadPixels")
	fb := d.framebuffers[id]
	if fb == nil || attachment < 0 || attachment >= len(fb.color) {
		return fmt.Errorf("soft: framebuffer %d attachment %d: %w", id, attachment, device.ErrUnknownResource)
	}
	t := d.textures[fb.color[attachment]]
	if t == nil {
		return fmt.Errorf("soft: framebuffer %d attachment %d: %w", id, attachment, device.ErrUnknownResource)
	}
	if !rect.In(image.Rect(0, 0, t.width, t.height)) {
		return fmt.Errorf("soft: read %v: %w", rect, device.ErrOutOfBounds)
	}
	bpp := bytesPerTexel(t.format)
	row := rect.Dx() * bpp
	if len(dst) < row*rect.Dy() {
		return fmt.Errorf("soft: destination holds %d bytes, need %d: %w", len(dst), row*rect.Dy(), device.ErrOutOfBounds)
	}
	src := t.levels[0]
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		off := (y*t.width + rect.Min.X) * bpp
		copy(dst[(y-rect.Min.Y)*row:], src[off:off+row])
	}
	return nil
}

// DestroyFramebuffer implements device.Device.
func (d *Device) DestroyFramebuffer(id device.FramebufferID) {
	d.called("DestroyFramebuffer")
	if id != device.DefaultFramebuffer {
		delete(d.framebuffers, id)
	}
}

// CreateProgram implements device.Device. The kernel registered under
// desc.Name stands in for compilation; a missing kernel is a compile error
// and a kernel without both stages is a link error.
func (d *Device) CreateProgram(desc *device.ProgramDescriptor) (device.ProgramID, error) {
	d.called("CreateProgram")
	k, ok := d.kernels[desc.Name]
	if !ok {
		return device.InvalidID, fmt.Errorf("soft: no kernel %q: %w", desc.Name, device.ErrCompile)
	}
	if k.Vertex == nil || k.Fragment == nil {
		return device.InvalidID, fmt.Errorf("soft: kernel %q lacks a stage: %w", desc.Name, device.ErrLink)
	}

	p := &program{
		label:      desc.Label,
		kernel:     k,
		defines:    make(map[string]bool, len(desc.Defines)),
		byName:     make(map[string]int32),
		blockIdx:   make(map[string]uint32),
		blockSlots: make(map[uint32]int),
	}
	for _, f := range desc.Defines {
		p.defines[f] = true
	}
	for i, b := range k.Blocks {
		p.blockIdx[b.Name] = uint32(i)
		p.blocks = append(p.blocks, device.UniformBlockInfo{Name: b.Name, Index: uint32(i), Size: b.Size})
	}
	for i, u := range k.Uniforms {
		block := int32(-1)
		if idx, ok := p.blockIdx[u.Block]; ok {
			block = int32(idx)
		}
		loc := int32(i)
		p.byName[u.Name] = loc
		p.uniforms = append(p.uniforms, device.UniformInfo{Name: u.Name, Type: u.Type, Location: loc, Block: block})
	}
	p.values = make([]device.Value, len(k.Uniforms))

	id := device.ProgramID(d.newID())
	d.programs[id] = p
	return id, nil
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

// DestroyProgram implements device.Device.
func (d *Device) DestroyProgram(id device.ProgramID) {
	d.called("DestroyProgram")
	delete(d.programs, id)
}

// BindFramebuffer implements device.Device.
func (d *Device) BindFramebuffer(id device.FramebufferID) {
	d.called("BindFramebuffer")
	d.state.framebuffer = id
}

// UseProgram implements device.Device.
func (d *Device) UseProgram(id device.ProgramID) {
	d.called("UseProgram")
	d.state.program = id
}

// BindGeometry implements device.Device.
func (d *Device) BindGeometry(id device.GeometryID) {
	d.called("BindGeometry")
	d.state.geometry = id
}

// BindTexture implements device.Device.
func (d *Device) BindTexture(unit int, id device.TextureID) {
	d.called("BindTexture")
	d.state.textures[unit] = id
}

// BindUniformBlock implements device.Device.
func (d *Device) BindUniformBlock(id device.ProgramID, block uint32, slot int) {
	d.called("BindUniformBlock")
	if p := d.programs[id]; p != nil {
		p.blockSlots[block] = slot
	}
}

// BindUniformBuffer implements device.Device.
func (d *Device) BindUniformBuffer(slot int, id device.BufferID) {
	d.called("BindUniformBuffer")
	d.state.uniformBuffers[slot] = id
}

// Enable implements device.Device.
func (d *Device) Enable(c device.Capability) {
	d.called("Enable")
	d.setCapability(c, true)
}

// Disable implements device.Device.
func (d *Device) Disable(c device.Capability) {
	d.called("Disable")
	d.setCapability(c, false)
}

func (d *Device) setCapability(c device.Capability, on bool) {
	switch c {
	case device.CapabilityDepthTest:
		d.state.depthTest = on
	case device.CapabilityBlend:
		d.state.blend = on
	case device.CapabilityCullFace:
		d.state.cull = on
	}
}

// DepthFunc implements device.Device.
func (d *Device) DepthFunc(fn gputypes.CompareFunction) {
	d.called("DepthFunc")
	d.state.depthFunc = fn
}

// DepthMask implements device.Device.
func (d *Device) DepthMask(write bool) {
	d.called("DepthMask")
	d.state.depthWrite = write
}

// BlendFunc implements device.Device.
func (d *Device) BlendFunc(src, dst gputypes.BlendFactor) {
	d.called("BlendFunc")
	d.state.blendSrc, d.state.blendDst = src, dst
}

// BlendEquation implements device.Device.
func (d *Device) BlendEquation(op gputypes.BlendOperation) {
	d.called("BlendEquation")
	d.state.blendOp = op
}

// CullFace implements device.Device.
func (d *Device) CullFace(face gputypes.CullMode) {
	d.called("CullFace")
	d.state.cullFace = face
}

// Viewport implements device.Device.
func (d *Device) Viewport(rect image.Rectangle) {
	d.called("Viewport")
	d.state.viewport = rect
}

// DrawBuffers implements device.Device.
func (d *Device) DrawBuffers(attachments []int) {
	d.called("DrawBuffers")
	d.state.drawBuffers = slices.Clone(attachments)
}

// Clear implements device.Device. Integer targets are cleared to
// int32(opts.Color.R).
func (d *Device) Clear(opts device.ClearOptions) {
	d.called("Clear")
	fb := d.framebuffers[d.state.framebuffer]
	if fb == nil {
		return
	}
	if opts.Mask&device.ClearColor != 0 {
		for _, i := range d.state.drawBuffers {
			if i < len(fb.color) {
				d.textures[fb.color[i]].fill(opts.Color)
			}
		}
	}
	if opts.Mask&device.ClearDepth != 0 {
		if t := d.textures[fb.depth]; t != nil {
			for i := range t.depth {
				t.depth[i] = opts.Depth
			}
		}
	}
}

// Uniform implements device.Device.
func (d *Device) Uniform(location int32, v device.Value) {
	d.called("Uniform")
	p := d.programs[d.state.program]
	if p == nil || location < 0 || int(location) >= len(p.values) {
		return
	}
	p.values[location] = v
}

// Flush implements device.Device.
func (d *Device) Flush() error {
	d.called("Flush")
	return nil
}

// Destroy implements device.Device.
func (d *Device) Destroy() {
	clear(d.buffers)
	clear(d.geometries)
	clear(d.programs)
	clear(d.framebuffers)
	clear(d.textures)
}

// Programs returns the labels of live programs, sorted. Used by tests to
// observe variant deduplication.
func (d *Device) Programs() []string {
	out := make([]string, 0, len(d.programs))
	for _, p := range d.programs {
		out = append(out, p.label)
	}
	sort.Strings(out)
	return out
}
