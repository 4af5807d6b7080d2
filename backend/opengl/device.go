// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package opengl

import (
	"fmt"
	"image"
	"slices"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

type geometry struct {
	vao       uint32
	mode      uint32
	indexType uint32
	indexSize int
	indexed   bool
}

type texture struct {
	width, height int
	format        gputypes.TextureFormat
	mips          int
}

type framebuffer struct {
	color []device.TextureID
	// drawBuffers is the selection last applied to this framebuffer. GL
	// keeps it per framebuffer object.
	drawBuffers []int
}

// Device is an OpenGL 3.3 core device.
type Device struct {
	limits device.Limits

	buffers      map[device.BufferID]int
	geometries   map[device.GeometryID]*geometry
	textures     map[device.TextureID]*texture
	framebuffers map[device.FramebufferID]*framebuffer
	programs     map[device.ProgramID]*program

	framebuffer device.FramebufferID
	geometry    *geometry
	drawBuffers []int
}

var _ device.Device = (*Device)(nil)

// New initializes the GL function pointers for the current context and
// returns a device drawing through it.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gl: init: %w", err)
	}
	d := &Device{
		buffers:      make(map[device.BufferID]int),
		geometries:   make(map[device.GeometryID]*geometry),
		textures:     make(map[device.TextureID]*texture),
		framebuffers: make(map[device.FramebufferID]*framebuffer),
		programs:     make(map[device.ProgramID]*program),
		drawBuffers:  []int{0},
	}
	d.limits = queryLimits()
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	logging.Logger().Info("gl: device created",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"glsl", gl.GoStr(gl.GetString(gl.SHADING_LANGUAGE_VERSION)))
	return d, nil
}

func queryLimits() device.Limits {
	get := func(pname uint32) int {
		var v int32
		gl.GetIntegerv(pname, &v)
		return int(v)
	}
	return device.Limits{
		MaxTextureUnits:          get(gl.MAX_COMBINED_TEXTURE_IMAGE_UNITS),
		MaxDrawBuffers:           get(gl.MAX_DRAW_BUFFERS),
		MaxTextureSize:           get(gl.MAX_TEXTURE_SIZE),
		MaxUniformBufferBindings: get(gl.MAX_UNIFORM_BUFFER_BINDINGS),
	}
}

// Limits implements device.Device.
func (d *Device) Limits() device.Limits { return d.limits }

// ShaderLanguage implements device.Device.
func (d *Device) ShaderLanguage() device.ShaderLanguage { return device.LanguageGLSL }

// CreateBuffer implements device.Device. Buffers are staged through
// GL_COPY_WRITE_BUFFER so that creating one never disturbs the bound
// vertex array.
func (d *Device) CreateBuffer(desc *device.BufferDescriptor) (device.BufferID, error) {
	size := max(desc.Size, len(desc.Data))
	if size == 0 {
		return device.InvalidID, fmt.Errorf("gl: buffer %q is empty: %w", desc.Label, device.ErrUnsupported)
	}
	var name uint32
	gl.GenBuffers(1, &name)
	usage := uint32(gl.STATIC_DRAW)
	if desc.Usage&gputypes.BufferUsageUniform != 0 || desc.Usage&gputypes.BufferUsageCopyDst != 0 {
		usage = gl.DYNAMIC_DRAW
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, name)
	gl.BufferData(gl.COPY_WRITE_BUFFER, size, nil, usage)
	if len(desc.Data) > 0 {
		gl.BufferSubData(gl.COPY_WRITE_BUFFER, 0, len(desc.Data), gl.Ptr(desc.Data))
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	d.buffers[device.BufferID(name)] = size
	return device.BufferID(name), nil
}

// WriteBuffer implements device.Device.
func (d *Device) WriteBuffer(id device.BufferID, offset int, data []byte) error {
	size, ok := d.buffers[id]
	if !ok {
		return fmt.Errorf("gl: buffer %d: %w", id, device.ErrUnknownResource)
	}
	if offset < 0 || offset+len(data) > size {
		return fmt.Errorf("gl: write [%d,%d) into %d bytes: %w", offset, offset+len(data), size, device.ErrOutOfBounds)
	}
	if len(data) == 0 {
		return nil
	}
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, uint32(id))
	gl.BufferSubData(gl.COPY_WRITE_BUFFER, offset, len(data), gl.Ptr(data))
	gl.BindBuffer(gl.COPY_WRITE_BUFFER, 0)
	return nil
}

// DestroyBuffer implements device.Device.
func (d *Device) DestroyBuffer(id device.BufferID) {
	name := uint32(id)
	gl.DeleteBuffers(1, &name)
	delete(d.buffers, id)
}

// CreateGeometry implements device.Device.
func (d *Device) CreateGeometry(desc *device.GeometryDescriptor) (device.GeometryID, error) {
	mode, ok := topologyMode(desc.Topology)
	if !ok {
		return device.InvalidID, fmt.Errorf("gl: topology %v: %w", desc.Topology, device.ErrUnsupported)
	}
	g := &geometry{mode: mode, indexed: desc.Index != device.InvalidID}
	g.indexType, g.indexSize = indexType(desc.IndexFormat)

	gl.GenVertexArrays(1, &g.vao)
	gl.BindVertexArray(g.vao)
	defer func() {
		gl.BindVertexArray(0)
		d.geometry = nil
	}()

	for _, l := range desc.Layouts {
		gl.BindBuffer(gl.ARRAY_BUFFER, uint32(l.Buffer))
		for _, a := range l.Attributes {
			f, ok := attribFormats[a.Format]
			if !ok {
				gl.DeleteVertexArrays(1, &g.vao)
				return device.InvalidID, fmt.Errorf("gl: vertex format %v: %w", a.Format, device.ErrUnsupported)
			}
			loc := a.ShaderLocation
			gl.EnableVertexAttribArray(loc)
			if f.integer {
				gl.VertexAttribIPointer(loc, f.components, f.xtype, int32(l.Stride), gl.PtrOffset(int(a.Offset)))
			} else {
				gl.VertexAttribPointer(loc, f.components, f.xtype, f.normalized, int32(l.Stride), gl.PtrOffset(int(a.Offset)))
			}
			if l.StepMode == gputypes.VertexStepModeInstance {
				gl.VertexAttribDivisor(loc, 1)
			}
		}
	}
	gl.BindBuffer(gl.ARRAY_BUFFER, 0)
	if g.indexed {
		gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, uint32(desc.Index))
	}

	id := device.GeometryID(g.vao)
	d.geometries[id] = g
	return id, nil
}

// DestroyGeometry implements device.Device.
func (d *Device) DestroyGeometry(id device.GeometryID) {
	g := d.geometries[id]
	if g == nil {
		return
	}
	gl.DeleteVertexArrays(1, &g.vao)
	if d.geometry == g {
		d.geometry = nil
	}
	delete(d.geometries, id)
}

// CreateTexture implements device.Device.
func (d *Device) CreateTexture(desc *device.TextureDescriptor) (device.TextureID, error) {
	f, ok := texFormats[desc.Format]
	if !ok {
		return device.InvalidID, fmt.Errorf("gl: texture format %v: %w", desc.Format, device.ErrUnsupported)
	}
	if desc.Width <= 0 || desc.Height <= 0 || desc.Width > d.limits.MaxTextureSize || desc.Height > d.limits.MaxTextureSize {
		return device.InvalidID, fmt.Errorf("gl: texture size %dx%d: %w", desc.Width, desc.Height, device.ErrUnsupported)
	}
	mips := max(desc.MipLevels, 1)

	var name uint32
	gl.GenTextures(1, &name)
	gl.BindTexture(gl.TEXTURE_2D, name)
	for level := range mips {
		w, h := max(desc.Width>>level, 1), max(desc.Height>>level, 1)
		var data unsafe.Pointer
		if level == 0 && len(desc.Data) > 0 {
			data = gl.Ptr(desc.Data)
		}
		gl.TexImage2D(gl.TEXTURE_2D, int32(level), f.internal, int32(w), int32(h), 0, f.format, f.xtype, data)
	}
	filter := desc.Filter
	if f.integer {
		filter = gputypes.FilterModeNearest
	}
	mag := int32(gl.NEAREST)
	if filter == gputypes.FilterModeLinear {
		mag = gl.LINEAR
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, minFilter(filter, mips))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, mag)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrapMode(desc.Wrap))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrapMode(desc.Wrap))
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAX_LEVEL, int32(mips-1))
	gl.BindTexture(gl.TEXTURE_2D, 0)

	id := device.TextureID(name)
	d.textures[id] = &texture{width: desc.Width, height: desc.Height, format: desc.Format, mips: mips}
	return id, nil
}

// WriteTexture implements device.Device. It leaves texture unit 0 with no
// texture bound; the caller's bind cache is expected to rebind.
func (d *Device) WriteTexture(id device.TextureID, level int, data []byte) error {
	t := d.textures[id]
	if t == nil {
		return fmt.Errorf("gl: texture %d: %w", id, device.ErrUnknownResource)
	}
	if level < 0 || level >= t.mips {
		return fmt.Errorf("gl: mip level %d of %d: %w", level, t.mips, device.ErrOutOfBounds)
	}
	f := texFormats[t.format]
	w, h := max(t.width>>level, 1), max(t.height>>level, 1)
	if len(data) != w*h*f.size {
		return fmt.Errorf("gl: level %d holds %d bytes, got %d: %w", level, w*h*f.size, len(data), device.ErrOutOfBounds)
	}
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, uint32(id))
	gl.TexSubImage2D(gl.TEXTURE_2D, int32(level), 0, 0, int32(w), int32(h), f.format, f.xtype, gl.Ptr(data))
	gl.BindTexture(gl.TEXTURE_2D, 0)
	return nil
}

// DestroyTexture implements device.Device.
func (d *Device) DestroyTexture(id device.TextureID) {
	name := uint32(id)
	gl.DeleteTextures(1, &name)
	delete(d.textures, id)
}

// CreateFramebuffer implements device.Device.
func (d *Device) CreateFramebuffer(desc *device.FramebufferDescriptor) (device.FramebufferID, error) {
	var name uint32
	gl.GenFramebuffers(1, &name)
	gl.BindFramebuffer(gl.FRAMEBUFFER, name)
	defer gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(d.framebuffer))

	for i, c := range desc.Color {
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0+uint32(i), gl.TEXTURE_2D, uint32(c), 0)
	}
	if desc.Depth != device.InvalidID {
		attach := uint32(gl.DEPTH_ATTACHMENT)
		if t := d.textures[desc.Depth]; t != nil && t.format == gputypes.TextureFormatDepth24PlusStencil8 {
			attach = gl.DEPTH_STENCIL_ATTACHMENT
		}
		gl.FramebufferTexture2D(gl.FRAMEBUFFER, attach, gl.TEXTURE_2D, uint32(desc.Depth), 0)
	}
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		gl.DeleteFramebuffers(1, &name)
		return device.InvalidID, fmt.Errorf("gl: framebuffer %q status 0x%x: %w", desc.Label, status, device.ErrIncompleteFramebuffer)
	}

	id := device.FramebufferID(name)
	d.framebuffers[id] = &framebuffer{color: slices.Clone(desc.Color), drawBuffers: []int{0}}
	return id, nil
}

// ReadPixels implements device.Device.
func (d *Device) ReadPixels(id device.FramebufferID, attachment int, rect image.Rectangle, dst []byte) error {
	format := gputypes.TextureFormatRGBA8Unorm
	readBuffer := uint32(gl.BACK)
	if id != device.DefaultFramebuffer {
		fb := d.framebuffers[id]
		if fb == nil || attachment < 0 || attachment >= len(fb.color) {
			return fmt.Errorf("gl: framebuffer %d attachment %d: %w", id, attachment, device.ErrUnknownResource)
		}
		t := d.textures[fb.color[attachment]]
		if t == nil {
			return fmt.Errorf("gl: framebuffer %d attachment %d: %w", id, attachment, device.ErrUnknownResource)
		}
		if !rect.In(image.Rect(0, 0, t.width, t.height)) {
			return fmt.Errorf("gl: read %v: %w", rect, device.ErrOutOfBounds)
		}
		format = t.format
		readBuffer = gl.COLOR_ATTACHMENT0 + uint32(attachment)
	}
	f := texFormats[format]
	if need := rect.Dx() * rect.Dy() * f.size; len(dst) < need {
		return fmt.Errorf("gl: destination holds %d bytes, need %d: %w", len(dst), need, device.ErrOutOfBounds)
	}
	if rect.Empty() {
		return nil
	}

	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(id))
	gl.ReadBuffer(readBuffer)
	gl.ReadPixels(int32(rect.Min.X), int32(rect.Min.Y), int32(rect.Dx()), int32(rect.Dy()), f.format, f.xtype, gl.Ptr(dst))
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, uint32(d.framebuffer))
	return nil
}

// DestroyFramebuffer implements device.Device.
func (d *Device) DestroyFramebuffer(id device.FramebufferID) {
	if id == device.DefaultFramebuffer {
		return
	}
	name := uint32(id)
	gl.DeleteFramebuffers(1, &name)
	delete(d.framebuffers, id)
}

// CreateProgram implements device.Device.
func (d *Device) CreateProgram(desc *device.ProgramDescriptor) (device.ProgramID, error) {
	if desc.Language != device.LanguageGLSL {
		return device.InvalidID, fmt.Errorf("gl: program %q in %v: %w", desc.Label, desc.Language, device.ErrUnsupported)
	}
	name, err := linkProgram(desc)
	if err != nil {
		return device.InvalidID, err
	}
	id := device.ProgramID(name)
	d.programs[id] = reflectProgram(name, desc.Label)
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
	gl.DeleteProgram(uint32(id))
	delete(d.programs, id)
}

// BindFramebuffer implements device.Device. The draw buffer selection is
// reapplied when the newly bound framebuffer disagrees with it.
func (d *Device) BindFramebuffer(id device.FramebufferID) {
	gl.BindFramebuffer(gl.FRAMEBUFFER, uint32(id))
	d.framebuffer = id
	d.applyDrawBuffers()
}

// UseProgram implements device.Device.
func (d *Device) UseProgram(id device.ProgramID) {
	gl.UseProgram(uint32(id))
}

// BindGeometry implements device.Device.
func (d *Device) BindGeometry(id device.GeometryID) {
	g := d.geometries[id]
	if g == nil {
		gl.BindVertexArray(0)
		d.geometry = nil
		return
	}
	gl.BindVertexArray(g.vao)
	d.geometry = g
}

// BindTexture implements device.Device.
func (d *Device) BindTexture(unit int, id device.TextureID) {
	gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
	gl.BindTexture(gl.TEXTURE_2D, uint32(id))
}

// BindUniformBlock implements device.Device.
func (d *Device) BindUniformBlock(id device.ProgramID, block uint32, slot int) {
	gl.UniformBlockBinding(uint32(id), block, uint32(slot))
}

// BindUniformBuffer implements device.Device.
func (d *Device) BindUniformBuffer(slot int, id device.BufferID) {
	gl.BindBufferBase(gl.UNIFORM_BUFFER, uint32(slot), uint32(id))
}

// Enable implements device.Device.
func (d *Device) Enable(c device.Capability) { gl.Enable(capability(c)) }

// Disable implements device.Device.
func (d *Device) Disable(c device.Capability) { gl.Disable(capability(c)) }

// DepthFunc implements device.Device.
func (d *Device) DepthFunc(fn gputypes.CompareFunction) { gl.DepthFunc(compareFunc(fn)) }

// DepthMask implements device.Device.
func (d *Device) DepthMask(write bool) { gl.DepthMask(write) }

// BlendFunc implements device.Device.
func (d *Device) BlendFunc(src, dst gputypes.BlendFactor) {
	gl.BlendFunc(blendFactor(src), blendFactor(dst))
}

// BlendEquation implements device.Device.
func (d *Device) BlendEquation(op gputypes.BlendOperation) { gl.BlendEquation(blendEquation(op)) }

// CullFace implements device.Device.
func (d *Device) CullFace(face gputypes.CullMode) { gl.CullFace(cullFace(face)) }

// Viewport implements device.Device.
func (d *Device) Viewport(rect image.Rectangle) {
	gl.Viewport(int32(rect.Min.X), int32(rect.Min.Y), int32(rect.Dx()), int32(rect.Dy()))
}

// DrawBuffers implements device.Device.
func (d *Device) DrawBuffers(attachments []int) {
	d.drawBuffers = slices.Clone(attachments)
	d.applyDrawBuffers()
}

func (d *Device) applyDrawBuffers() {
	fb := d.framebuffers[d.framebuffer]
	if fb == nil || slices.Equal(fb.drawBuffers, d.drawBuffers) {
		return
	}
	bufs := make([]uint32, len(d.drawBuffers))
	for i, a := range d.drawBuffers {
		bufs[i] = gl.COLOR_ATTACHMENT0 + uint32(a)
	}
	if len(bufs) == 0 {
		bufs = []uint32{gl.NONE}
	}
	gl.DrawBuffers(int32(len(bufs)), &bufs[0])
	fb.drawBuffers = slices.Clone(d.drawBuffers)
}

// Clear implements device.Device. Color is cleared per selected draw
// buffer so that integer attachments receive int32(opts.Color.R).
func (d *Device) Clear(opts device.ClearOptions) {
	if opts.Mask&device.ClearColor != 0 {
		c := opts.Color
		rgba := [4]float32{float32(c.R), float32(c.G), float32(c.B), float32(c.A)}
		fb := d.framebuffers[d.framebuffer]
		if fb == nil {
			gl.ClearBufferfv(gl.COLOR, 0, &rgba[0])
		} else {
			for i, a := range fb.drawBuffers {
				if a >= len(fb.color) {
					continue
				}
				t := d.textures[fb.color[a]]
				if t != nil && texFormats[t.format].integer {
					v := [4]int32{int32(c.R), int32(c.G), int32(c.B), int32(c.A)}
					gl.ClearBufferiv(gl.COLOR, int32(i), &v[0])
					continue
				}
				gl.ClearBufferfv(gl.COLOR, int32(i), &rgba[0])
			}
		}
	}
	if opts.Mask&device.ClearDepth != 0 {
		depth := opts.Depth
		gl.ClearBufferfv(gl.DEPTH, 0, &depth)
	}
}

// Uniform implements device.Device.
func (d *Device) Uniform(location int32, v device.Value) {
	if location < 0 {
		return
	}
	switch v.Type() {
	case device.UniformInt, device.UniformSampler:
		gl.Uniform1i(location, v.IntValue())
	case device.UniformFloat:
		gl.Uniform1f(location, v.Floats()[0])
	case device.UniformVec2:
		gl.Uniform2fv(location, 1, &v.Floats()[0])
	case device.UniformVec3:
		gl.Uniform3fv(location, 1, &v.Floats()[0])
	case device.UniformVec4:
		gl.Uniform4fv(location, 1, &v.Floats()[0])
	case device.UniformMat4:
		gl.UniformMatrix4fv(location, 1, false, &v.Floats()[0])
	}
}

// Draw implements device.Device.
func (d *Device) Draw(call device.DrawCall) error {
	g := d.geometry
	if g == nil {
		return fmt.Errorf("gl: draw without geometry: %w", device.ErrUnknownResource)
	}
	if call.Kind.Indexed() && !g.indexed {
		return fmt.Errorf("gl: indexed draw of non-indexed geometry: %w", device.ErrUnsupported)
	}
	instances := int32(max(call.Instances, 1))
	switch call.Kind {
	case device.DrawArrays:
		gl.DrawArrays(g.mode, int32(call.First), int32(call.Count))
	case device.DrawArraysInstanced:
		gl.DrawArraysInstanced(g.mode, int32(call.First), int32(call.Count), instances)
	case device.DrawIndexed:
		gl.DrawElements(g.mode, int32(call.Count), g.indexType, gl.PtrOffset(call.First*g.indexSize))
	case device.DrawIndexedInstanced:
		gl.DrawElementsInstanced(g.mode, int32(call.Count), g.indexType, gl.PtrOffset(call.First*g.indexSize), instances)
	default:
		return fmt.Errorf("gl: draw kind %v: %w", call.Kind, device.ErrUnsupported)
	}
	return nil
}

// Flush implements device.Device. It reports a pending GL error.
func (d *Device) Flush() error {
	gl.Flush()
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("gl: error 0x%x", code)
	}
	return nil
}

// Destroy implements device.Device. It releases every object the device
// created; the GL context itself belongs to the caller.
func (d *Device) Destroy() {
	for id := range d.programs {
		d.DestroyProgram(id)
	}
	for id := range d.framebuffers {
		d.DestroyFramebuffer(id)
	}
	for id := range d.geometries {
		d.DestroyGeometry(id)
	}
	for id := range d.textures {
		d.DestroyTexture(id)
	}
	for id := range d.buffers {
		d.DestroyBuffer(id)
	}
}
