// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpu

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/cache"
	"github.com/gogpu/g3d/internal/logging"
)

// Cache capacities.
const (
	pipelineCacheSize  = 64
	bindGroupCacheSize = 256
)

// ErrNoHAL is returned by NewFromProvider when the provider does not expose
// HAL device and queue handles.
var ErrNoHAL = errors.New("wgpu: provider does not expose HAL types")

type buffer struct {
	raw   hal.Buffer
	size  int
	usage gputypes.BufferUsage
}

type geometry struct {
	desc    device.GeometryDescriptor
	layouts []gputypes.VertexBufferLayout
}

type texture struct {
	raw     hal.Texture
	view    hal.TextureView
	sampler hal.Sampler
	width   int
	height  int
	levels  int
	format  gputypes.TextureFormat
}

type framebuffer struct {
	color         []device.TextureID
	depth         device.TextureID
	width, height int
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

// retired is a device object released once the submission that may still
// reference it has completed.
type retired struct {
	after   uint64
	release func()
}

// Device implements device.Device on a hal.Device and its queue.
type Device struct {
	dev   hal.Device
	queue hal.Queue
	owned bool

	limits       device.Limits
	screenFormat gputypes.TextureFormat

	nextID       uint64
	buffers      map[device.BufferID]*buffer
	geometries   map[device.GeometryID]*geometry
	textures     map[device.TextureID]*texture
	framebuffers map[device.FramebufferID]*framebuffer
	programs     map[device.ProgramID]*program
	fallback     map[gputypes.TextureSampleType]device.TextureID

	state state

	pipelines *cache.Cache[pipelineKey, hal.RenderPipeline]
	groups    *cache.Cache[groupKey, hal.BindGroup]
	arena     *arena

	enc     hal.CommandEncoder
	pass    hal.RenderPassEncoder
	clear   *pendingClear
	flights []flight
	retired []retired
	lastIdx uint64
}

var (
	_ device.Device        = (*Device)(nil)
	_ device.ScreenResizer = (*Device)(nil)
)

// New returns a device drawing with dev and queue. The default framebuffer
// is a width×height offscreen target in screenFormat; TextureFormatUndefined
// selects RGBA8Unorm.
func New(dev hal.Device, queue hal.Queue, width, height int, screenFormat gputypes.TextureFormat) (*Device, error) {
	if dev == nil || queue == nil {
		return nil, fmt.Errorf("wgpu: nil device or queue: %w", device.ErrUnsupported)
	}
	if screenFormat == gputypes.TextureFormatUndefined {
		screenFormat = gputypes.TextureFormatRGBA8Unorm
	}
	if _, ok := texFormats[screenFormat]; !ok {
		return nil, fmt.Errorf("wgpu: screen format %v: %w", screenFormat, device.ErrUnsupported)
	}

	limits := device.DefaultLimits()
	limits.MaxTextureSize = int(gputypes.DefaultLimits().MaxTextureDimension2D)

	d := &Device{
		dev:          dev,
		queue:        queue,
		limits:       limits,
		screenFormat: screenFormat,
		buffers:      make(map[device.BufferID]*buffer),
		geometries:   make(map[device.GeometryID]*geometry),
		textures:     make(map[device.TextureID]*texture),
		framebuffers: make(map[device.FramebufferID]*framebuffer),
		programs:     make(map[device.ProgramID]*program),
		fallback:     make(map[gputypes.TextureSampleType]device.TextureID),
		state:        defaultState(),
	}
	d.pipelines = cache.New(pipelineCacheSize, func(_ pipelineKey, p hal.RenderPipeline) {
		d.retire(func() { d.dev.DestroyRenderPipeline(p) })
	})
	d.groups = cache.New(bindGroupCacheSize, func(_ groupKey, g hal.BindGroup) {
		d.retire(func() { d.dev.DestroyBindGroup(g) })
	})

	a, err := newArena(dev)
	if err != nil {
		return nil, err
	}
	d.arena = a
	if err := d.ResizeScreen(width, height); err != nil {
		d.arena.destroy(dev)
		return nil, err
	}
	logging.Logger().Info("wgpu: device created", "width", width, "height", height, "format", screenFormat)
	return d, nil
}

// NewFromProvider returns a device drawing with the GPU device shared by
// provider. The provider must expose HalDevice() and HalQueue() returning
// hal.Device and hal.Queue, as gogpu applications do.
func NewFromProvider(provider gpucontext.DeviceProvider, width, height int) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHAL
	}
	dev, ok := hp.HalDevice().(hal.Device)
	if !ok || dev == nil {
		return nil, fmt.Errorf("%w: HalDevice is not hal.Device", ErrNoHAL)
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("%w: HalQueue is not hal.Queue", ErrNoHAL)
	}
	return New(dev, queue, width, height, provider.SurfaceFormat())
}

// OwnDevice makes Destroy release the hal.Device too. Used when the device
// was opened for this Device alone.
func (d *Device) OwnDevice() { d.owned = true }

// ResizeScreen reallocates the default framebuffer and resets the viewport.
func (d *Device) ResizeScreen(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("wgpu: screen %dx%d: %w", width, height, device.ErrOutOfBounds)
	}
	d.endPass()
	if old := d.framebuffers[device.DefaultFramebuffer]; old != nil {
		d.destroyTexture(old.color[0])
		d.destroyTexture(old.depth)
	}
	color, err := d.createTexture(&device.TextureDescriptor{
		Label: "screen-color", Width: width, Height: height, Format: d.screenFormat,
	}, gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageCopySrc|gputypes.TextureUsageTextureBinding)
	if err != nil {
		return err
	}
	depth, err := d.createTexture(&device.TextureDescriptor{
		Label: "screen-depth", Width: width, Height: height, Format: gputypes.TextureFormatDepth24PlusStencil8,
	}, gputypes.TextureUsageRenderAttachment)
	if err != nil {
		d.destroyTexture(color)
		return err
	}
	d.framebuffers[device.DefaultFramebuffer] = &framebuffer{
		color:  []device.TextureID{color},
		depth:  depth,
		width:  width,
		height: height,
	}
	d.pipelines.DeleteFunc(func(k pipelineKey) bool { return k.framebuffer == device.DefaultFramebuffer })
	d.state.viewport = image.Rect(0, 0, width, height)
	return nil
}

// ScreenTexture returns the color texture of the default framebuffer.
func (d *Device) ScreenTexture() hal.Texture {
	fb := d.framebuffers[device.DefaultFramebuffer]
	if fb == nil {
		return nil
	}
	if t := d.textures[fb.color[0]]; t != nil {
		return t.raw
	}
	return nil
}

// PipelineStats returns the render pipeline cache statistics.
func (d *Device) PipelineStats() cache.Stats { return d.pipelines.Stats() }

func (d *Device) newID() uint64 {
	d.nextID++
	return d.nextID
}

// retire defers release until the current submission has completed.
func (d *Device) retire(release func()) {
	d.retired = append(d.retired, retired{after: d.lastIdx + 1, release: release})
}

// Limits implements device.Device.
func (d *Device) Limits() device.Limits { return d.limits }

// ShaderLanguage implements device.Device.
func (d *Device) ShaderLanguage() device.ShaderLanguage { return device.LanguageWGSL }

// CreateBuffer implements device.Device.
func (d *Device) CreateBuffer(desc *device.BufferDescriptor) (device.BufferID, error) {
	size := alignUp(max(desc.Size, len(desc.Data), 4), 4)
	raw, err := d.dev.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  uint64(size),
		Usage: desc.Usage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return device.InvalidID, fmt.Errorf("wgpu: buffer %q: %w: %v", desc.Label, device.ErrUnsupported, err)
	}
	id := device.BufferID(d.newID())
	d.buffers[id] = &buffer{raw: raw, size: size, usage: desc.Usage}
	if len(desc.Data) > 0 {
		if err := d.WriteBuffer(id, 0, desc.Data); err != nil {
			d.DestroyBuffer(id)
			return device.InvalidID, err
		}
	}
	return id, nil
}

// WriteBuffer implements device.Device.
func (d *Device) WriteBuffer(id device.BufferID, offset int, data []byte) error {
	b := d.buffers[id]
	if b == nil {
		return fmt.Errorf("wgpu: buffer %d: %w", id, device.ErrUnknownResource)
	}
	if offset < 0 || offset+len(data) > b.size {
		return fmt.Errorf("wgpu: buffer %d: write [%d,%d) beyond size %d: %w",
			id, offset, offset+len(data), b.size, device.ErrOutOfBounds)
	}
	// Queue writes need 4-byte multiples.
	if len(data)%4 != 0 {
		padded := make([]byte, alignUp(len(data), 4))
		copy(padded, data)
		if offset+len(padded) > b.size {
			return fmt.Errorf("wgpu: buffer %d: padded write beyond size %d: %w", id, b.size, device.ErrOutOfBounds)
		}
		data = padded
	}
	return d.queue.WriteBuffer(b.raw, uint64(offset), data)
}

// DestroyBuffer implements device.Device.
func (d *Device) DestroyBuffer(id device.BufferID) {
	b := d.buffers[id]
	if b == nil {
		return
	}
	delete(d.buffers, id)
	d.groups.DeleteFunc(func(k groupKey) bool { return k.uses(uint64(id)) })
	raw := b.raw
	d.retire(func() { d.dev.DestroyBuffer(raw) })
}

// CreateGeometry implements device.Device. Geometries are CPU-side: the
// vertex layout becomes part of the render pipeline and the buffers are set
// per draw.
func (d *Device) CreateGeometry(desc *device.GeometryDescriptor) (device.GeometryID, error) {
	layouts := make([]gputypes.VertexBufferLayout, len(desc.Layouts))
	for i, l := range desc.Layouts {
		if d.buffers[l.Buffer] == nil {
			return device.InvalidID, fmt.Errorf("wgpu: vertex buffer %d: %w", l.Buffer, device.ErrUnknownResource)
		}
		layouts[i] = gputypes.VertexBufferLayout{
			ArrayStride: l.Stride,
			StepMode:    l.StepMode,
			Attributes:  slices.Clone(l.Attributes),
		}
	}
	if desc.Index != device.InvalidID && d.buffers[desc.Index] == nil {
		return device.InvalidID, fmt.Errorf("wgpu: index buffer %d: %w", desc.Index, device.ErrUnknownResource)
	}
	g := &geometry{desc: *desc, layouts: layouts}
	g.desc.Layouts = slices.Clone(desc.Layouts)
	id := device.GeometryID(d.newID())
	d.geometries[id] = g
	return id, nil
}

// DestroyGeometry implements device.Device.
func (d *Device) DestroyGeometry(id device.GeometryID) {
	if _, ok := d.geometries[id]; !ok {
		return
	}
	delete(d.geometries, id)
	d.pipelines.DeleteFunc(func(k pipelineKey) bool { return k.geometry == id })
}

// CreateTexture implements device.Device.
func (d *Device) CreateTexture(desc *device.TextureDescriptor) (device.TextureID, error) {
	usage := desc.Usage
	if usage == 0 {
		usage = gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment
	}
	return d.createTexture(desc, usage|gputypes.TextureUsageCopyDst|gputypes.TextureUsageCopySrc)
}

func (d *Device) createTexture(desc *device.TextureDescriptor, usage gputypes.TextureUsage) (device.TextureID, error) {
	f, ok := texFormats[desc.Format]
	if !ok {
		return device.InvalidID, fmt.Errorf("wgpu: texture format %v: %w", desc.Format, device.ErrUnsupported)
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > d.limits.MaxTextureSize || desc.Height > d.limits.MaxTextureSize {
		return device.InvalidID, fmt.Errorf("wgpu: texture size %dx%d: %w", desc.Width, desc.Height, device.ErrUnsupported)
	}
	levels := max(desc.MipLevels, 1)
	raw, err := d.dev.CreateTexture(&hal.TextureDescriptor{
		Label:         desc.Label,
		Size:          hal.Extent3D{Width: uint32(desc.Width), Height: uint32(desc.Height), DepthOrArrayLayers: 1},
		MipLevelCount: uint32(levels),
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        desc.Format,
		Usage:         usage,
	})
	if err != nil {
		return device.InvalidID, fmt.Errorf("wgpu: texture %q: %w: %v", desc.Label, device.ErrUnsupported, err)
	}
	aspect := gputypes.TextureAspectAll
	if f.depth {
		aspect = gputypes.TextureAspectDepthOnly
	}
	view, err := d.dev.CreateTextureView(raw, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       gputypes.TextureViewDimension2D,
		Aspect:          aspect,
		MipLevelCount:   uint32(levels),
		ArrayLayerCount: 1,
	})
	if err != nil {
		d.dev.DestroyTexture(raw)
		return device.InvalidID, fmt.Errorf("wgpu: texture view %q: %w: %v", desc.Label, device.ErrUnsupported, err)
	}

	filter := desc.Filter
	if f.integer || filter == 0 {
		filter = gputypes.FilterModeNearest
	}
	wrap := desc.Wrap
	if wrap == 0 {
		wrap = gputypes.AddressModeClampToEdge
	}
	sampler, err := d.dev.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: wrap,
		AddressModeV: wrap,
		AddressModeW: wrap,
		MagFilter:    filter,
		MinFilter:    filter,
		MipmapFilter: filter,
		LodMaxClamp:  float32(levels),
	})
	if err != nil {
		d.dev.DestroyTextureView(view)
		d.dev.DestroyTexture(raw)
		return device.InvalidID, fmt.Errorf("wgpu: sampler %q: %w: %v", desc.Label, device.ErrUnsupported, err)
	}

	id := device.TextureID(d.newID())
	d.textures[id] = &texture{
		raw: raw, view: view, sampler: sampler,
		width: desc.Width, height: desc.Height, levels: levels, format: desc.Format,
	}
	if desc.Data != nil {
		if err := d.WriteTexture(id, 0, desc.Data); err != nil {
			d.destroyTexture(id)
			return device.InvalidID, err
		}
	}
	return id, nil
}

// WriteTexture implements device.Device.
func (d *Device) WriteTexture(id device.TextureID, level int, data []byte) error {
	t := d.textures[id]
	if t == nil {
		return fmt.Errorf("wgpu: texture %d: %w", id, device.ErrUnknownResource)
	}
	if level < 0 || level >= t.levels {
		return fmt.Errorf("wgpu: texture %d: level %d of %d: %w", id, level, t.levels, device.ErrOutOfBounds)
	}
	w, h := max(t.width>>level, 1), max(t.height>>level, 1)
	row := w * texFormats[t.format].size
	if len(data) != row*h {
		return fmt.Errorf("wgpu: texture %d level %d: %d bytes, want %d: %w", id, level, len(data), row*h, device.ErrOutOfBounds)
	}
	return d.queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: t.raw, MipLevel: uint32(level), Aspect: gputypes.TextureAspectAll},
		data,
		&hal.ImageDataLayout{BytesPerRow: uint32(row), RowsPerImage: uint32(h)},
		&hal.Extent3D{Width: uint32(w), Height: uint32(h), DepthOrArrayLayers: 1},
	)
}

// DestroyTexture implements device.Device.
func (d *Device) DestroyTexture(id device.TextureID) {
	d.destroyTexture(id)
}

func (d *Device) destroyTexture(id device.TextureID) {
	t := d.textures[id]
	if t == nil {
		return
	}
	delete(d.textures, id)
	d.groups.DeleteFunc(func(k groupKey) bool { return k.uses(uint64(id)) })
	d.retire(func() {
		d.dev.DestroySampler(t.sampler)
		d.dev.DestroyTextureView(t.view)
		d.dev.DestroyTexture(t.raw)
	})
}

// fallbackTexture returns a 1x1 texture bound to units nothing was bound
// to: opaque white for float samplers, zero for integer ones.
func (d *Device) fallbackTexture(st gputypes.TextureSampleType) (*texture, error) {
	if id, ok := d.fallback[st]; ok {
		return d.textures[id], nil
	}
	desc := device.TextureDescriptor{Label: "fallback", Width: 1, Height: 1}
	switch st {
	case gputypes.TextureSampleTypeSint:
		desc.Format, desc.Data = gputypes.TextureFormatR32Sint, make([]byte, 4)
	case gputypes.TextureSampleTypeUint:
		desc.Format, desc.Data = gputypes.TextureFormatR32Uint, make([]byte, 4)
	case gputypes.TextureSampleTypeUnfilterableFloat:
		desc.Format, desc.Data = gputypes.TextureFormatR32Float, []byte{0, 0, 0x80, 0x3f}
	default:
		desc.Format, desc.Data = gputypes.TextureFormatRGBA8Unorm, []byte{255, 255, 255, 255}
	}
	id, err := d.CreateTexture(&desc)
	if err != nil {
		return nil, err
	}
	d.fallback[st] = id
	return d.textures[id], nil
}

// CreateFramebuffer implements device.Device.
func (d *Device) CreateFramebuffer(desc *device.FramebufferDescriptor) (device.FramebufferID, error) {
	if len(desc.Color) == 0 || len(desc.Color) > d.limits.MaxDrawBuffers {
		return device.InvalidID, fmt.Errorf("wgpu: %d color attachments: %w", len(desc.Color), device.ErrIncompleteFramebuffer)
	}
	for _, c := range desc.Color {
		t := d.textures[c]
		if t == nil || t.width != desc.Width || t.height != desc.Height || texFormats[t.format].depth {
			return device.InvalidID, fmt.Errorf("wgpu: color attachment %d: %w", c, device.ErrIncompleteFramebuffer)
		}
	}
	if desc.Depth != device.InvalidID {
		t := d.textures[desc.Depth]
		if t == nil || !texFormats[t.format].depth || t.width != desc.Width || t.height != desc.Height {
			return device.InvalidID, fmt.Errorf("wgpu: depth attachment %d: %w", desc.Depth, device.ErrIncompleteFramebuffer)
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

// DestroyFramebuffer implements device.Device.
func (d *Device) DestroyFramebuffer(id device.FramebufferID) {
	if id == device.DefaultFramebuffer {
		return
	}
	if d.state.framebuffer == id {
		d.endPass()
		d.state.framebuffer = device.DefaultFramebuffer
	}
	delete(d.framebuffers, id)
	d.pipelines.DeleteFunc(func(k pipelineKey) bool { return k.framebuffer == id })
}

// BindFramebuffer implements device.Device.
func (d *Device) BindFramebuffer(id device.FramebufferID) {
	if id == d.state.framebuffer {
		return
	}
	d.endPass()
	d.state.framebuffer = id
}

// UseProgram implements device.Device.
func (d *Device) UseProgram(id device.ProgramID) { d.state.program = id }

// BindGeometry implements device.Device.
func (d *Device) BindGeometry(id device.GeometryID) { d.state.geometry = id }

// BindTexture implements device.Device.
func (d *Device) BindTexture(unit int, id device.TextureID) {
	if id == device.InvalidID {
		delete(d.state.textures, unit)
		return
	}
	d.state.textures[unit] = id
}

// BindUniformBuffer implements device.Device.
func (d *Device) BindUniformBuffer(slot int, id device.BufferID) {
	if id == device.InvalidID {
		delete(d.state.uniformBuffers, slot)
		return
	}
	d.state.uniformBuffers[slot] = id
}

// Enable implements device.Device.
func (d *Device) Enable(c device.Capability) { d.setCapability(c, true) }

// Disable implements device.Device.
func (d *Device) Disable(c device.Capability) { d.setCapability(c, false) }

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
func (d *Device) DepthFunc(fn gputypes.CompareFunction) { d.state.depthFunc = fn }

// DepthMask implements device.Device.
func (d *Device) DepthMask(write bool) { d.state.depthWrite = write }

// BlendFunc implements device.Device.
func (d *Device) BlendFunc(src, dst gputypes.BlendFactor) {
	d.state.blendSrc, d.state.blendDst = src, dst
}

// BlendEquation implements device.Device.
func (d *Device) BlendEquation(op gputypes.BlendOperation) { d.state.blendOp = op }

// CullFace implements device.Device.
func (d *Device) CullFace(face gputypes.CullMode) { d.state.cullFace = face }

// Viewport implements device.Device.
func (d *Device) Viewport(rect image.Rectangle) { d.state.viewport = rect }

// DrawBuffers implements device.Device.
func (d *Device) DrawBuffers(attachments []int) {
	d.state.drawBuffers = slices.Clone(attachments)
}

// Destroy implements device.Device. Pending work is submitted and awaited
// first.
func (d *Device) Destroy() {
	if err := d.Flush(); err != nil {
		logging.Logger().Warn("wgpu: flush on destroy", "err", err)
	}
	if err := d.dev.WaitIdle(); err != nil {
		logging.Logger().Warn("wgpu: wait idle on destroy", "err", err)
	}
	d.pipelines.Clear()
	d.groups.Clear()
	for id := range d.programs {
		d.DestroyProgram(id)
	}
	for id := range d.textures {
		d.destroyTexture(id)
	}
	for id := range d.buffers {
		d.DestroyBuffer(id)
	}
	clear(d.geometries)
	clear(d.framebuffers)
	clear(d.fallback)
	for _, f := range d.flights {
		d.dev.FreeCommandBuffer(f.cmd)
	}
	d.flights = nil
	for _, r := range d.retired {
		r.release()
	}
	d.retired = nil
	d.arena.destroy(d.dev)
	if d.owned {
		d.dev.Destroy()
	}
}
