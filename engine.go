// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package g3d

import (
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/gogpu/g3d/backend"
	"github.com/gogpu/g3d/bake"
	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/pick"
	"github.com/gogpu/g3d/pipeline"
	"github.com/gogpu/g3d/resource"
	"github.com/gogpu/g3d/shader"
	"github.com/gogpu/g3d/space"

	// Backends usable without a window system.
	_ "github.com/gogpu/g3d/backend/soft"
	_ "github.com/gogpu/g3d/backend/wgpu"
)

// Engine errors.
var (
	// ErrClosed is returned by Engine methods after Close.
	ErrClosed = errors.New("g3d: engine closed")

	// ErrMeshAdded is returned by Add for a mesh that already belongs to an
	// Engine.
	ErrMeshAdded = errors.New("g3d: mesh already added")
)

// dragThreshold is the distance in pixels a pressed pointer may travel and
// still count as a click.
const dragThreshold = 4

// passKey selects one of the mesh passes.
type passKey struct {
	textured    bool
	transparent bool
}

// upload is a bake whose result goes into a texture once it finished.
type upload struct {
	future  *bake.Future
	texture *resource.Texture
	done    func(error)
}

type pointer struct {
	down    bool
	start   image.Point
	dragged bool
}

// Engine ties a device to the frame loop: the Renderer and its passes, the
// shader variant cache, the camera, texture baking and picking.
//
// An Engine is driven from one goroutine: Update, then Render, once per
// frame. Bakes run on worker goroutines and are integrated by Update.
type Engine struct {
	dev     device.Device
	backend string
	ownsDev bool

	ctx      *device.Context
	renderer *pipeline.Renderer
	shaders  *shader.Cache
	baker    *bake.Baker
	camera   *space.Camera
	picker   *pick.Picker

	background *pipeline.Pipeline
	passes     map[passKey]*pipeline.Pipeline
	meshes     map[*Mesh]struct{}

	uploads []upload
	hooks   []func(dt time.Duration)
	pointer pointer

	width, height int
	elapsed       time.Duration
	closed        bool
}

// New returns an Engine with a width×height screen. Without WithDevice it
// opens the backend named by WithBackend, or the best available one.
func New(width, height int, opts ...Option) (*Engine, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("g3d: screen %dx%d: %w", width, height, device.ErrOutOfBounds)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger != nil {
		SetLogger(o.logger)
	}

	e := &Engine{
		dev:    o.device,
		passes: make(map[passKey]*pipeline.Pipeline),
		meshes: make(map[*Mesh]struct{}),
		width:  width,
		height: height,
	}
	if e.dev == nil {
		bopts := backend.Options{Width: width, Height: height, Provider: o.provider}
		var err error
		if o.backend != "" {
			e.dev, err = backend.Open(o.backend, bopts)
			e.backend = o.backend
		} else {
			e.dev, e.backend, err = backend.Default(bopts)
		}
		if err != nil {
			return nil, fmt.Errorf("g3d: %w", err)
		}
		e.ownsDev = true
	}

	e.ctx = device.NewContext(e.dev)
	e.renderer = pipeline.NewRenderer(e.ctx, width, height)
	e.shaders = shader.NewCache(e.dev.ShaderLanguage())
	e.baker = bake.NewBaker(o.bakeWorkers)

	e.camera = o.camera
	if e.camera == nil {
		e.camera = space.NewPerspectiveCamera(mgl32.DegToRad(60), float32(width)/float32(height), 0.1, 100)
		e.camera.LookAt(mgl32.Vec3{0, 0, 5}, mgl32.Vec3{}, mgl32.Vec3{0, 1, 0})
	}

	// An empty pipeline only binds and clears its target.
	e.background = pipeline.New("background", nil)
	e.background.Priority = math.MaxInt
	e.background.Clear = &device.ClearOptions{
		Mask:  device.ClearColor | device.ClearDepth,
		Color: o.clearColor,
		Depth: 1,
	}
	e.renderer.Add(e.background)

	if o.picking {
		p, err := pick.New(e.renderer, e.shaders, e.camera)
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("g3d: %w", err)
		}
		e.picker = p
	}

	Logger().Info("g3d: engine created", "backend", e.backend,
		"language", e.dev.ShaderLanguage(), "width", width, "height", height, "picking", o.picking)
	return e, nil
}

// Device returns the device the engine draws with.
func (e *Engine) Device() device.Device { return e.dev }

// Context returns the state-tracking context over the device.
func (e *Engine) Context() *device.Context { return e.ctx }

// Renderer returns the frame scheduler. Custom pipelines are added to it
// directly.
func (e *Engine) Renderer() *pipeline.Renderer { return e.renderer }

// Shaders returns the program variant cache.
func (e *Engine) Shaders() *shader.Cache { return e.shaders }

// Camera returns the camera meshes are drawn with.
func (e *Engine) Camera() *space.Camera { return e.camera }

// Picker returns the picker, or nil when picking is disabled.
func (e *Engine) Picker() *pick.Picker { return e.picker }

// Size returns the screen size.
func (e *Engine) Size() (width, height int) { return e.width, e.height }

// Elapsed returns the sum of the durations passed to Update.
func (e *Engine) Elapsed() time.Duration { return e.elapsed }

// SetClearColor changes the screen clear color.
func (e *Engine) SetClearColor(r, g, b, a float64) {
	e.background.Clear.Color.R = r
	e.background.Clear.Color.G = g
	e.background.Clear.Color.B = b
	e.background.Clear.Color.A = a
}

// pass returns the mesh pass for k, creating it on first use.
func (e *Engine) pass(k passKey) (*pipeline.Pipeline, error) {
	if p, ok := e.passes[k]; ok {
		return p, nil
	}
	prog, err := e.shaders.Variant(shader.Unlit, shader.Flags{shader.FlagTextured: k.textured})
	if err != nil {
		return nil, err
	}
	label := "unlit"
	if k.textured {
		label += "-textured"
	}
	if k.transparent {
		label += "-transparent"
	}
	p := pipeline.New(label, prog)
	p.Uniforms = func(ctx *device.Context, prog *resource.Program) {
		prog.SetMat4(ctx, "uViewProj", e.camera.ViewProjection())
	}
	if k.transparent {
		p.Blend = pipeline.AlphaBlend
		p.Depth.Write = false
		e.renderer.AddTransparent(p)
	} else {
		e.renderer.Add(p)
	}
	e.passes[k] = p
	return p, nil
}

// Add draws m from the next frame on and registers it with the picker.
func (e *Engine) Add(m *Mesh) error {
	if e.closed {
		return ErrClosed
	}
	if m.sub != nil {
		return fmt.Errorf("%w: %q", ErrMeshAdded, m.Name)
	}
	p, err := e.pass(passKey{textured: m.Texture != nil, transparent: m.Transparent})
	if err != nil {
		return fmt.Errorf("g3d: mesh %q: %w", m.Name, err)
	}

	unit := -1
	sub := pipeline.NewSubPipeline(m.Name, m.Geometry, func(ctx *device.Context, prog *resource.Program) {
		prog.SetMat4(ctx, "uModel", m.ModelMatrix())
		prog.SetVec4(ctx, "uColor", m.Color)
		if unit >= 0 {
			prog.SetSampler(ctx, "uTexture", int32(unit))
		}
	})
	if m.Texture != nil {
		unit = sub.AddTexture(m.Texture)
	}
	p.Add(sub)
	m.sub, m.pass = sub, p
	e.meshes[m] = struct{}{}

	if e.picker != nil {
		e.picker.Register(m)
	}
	return nil
}

// Remove stops drawing m and unregisters it from the picker. It reports
// whether m was added.
func (e *Engine) Remove(m *Mesh) bool {
	if m.sub == nil {
		return false
	}
	m.pass.Remove(m.sub)
	m.sub, m.pass = nil, nil
	delete(e.meshes, m)
	if e.picker != nil {
		e.picker.Remove(m)
	}
	return true
}

// Bake computes the mip chain of img on a worker and uploads it into tex
// during a later Update. done, if not nil, is called from that Update with
// the upload result.
func (e *Engine) Bake(tex *resource.Texture, img image.Image, done func(error)) *bake.Future {
	f := e.baker.Mipmaps(tex.Label(), img, tex.MipLevels())
	e.uploads = append(e.uploads, upload{future: f, texture: tex, done: done})
	return f
}

// PendingBakes returns the number of bakes not yet uploaded.
func (e *Engine) PendingBakes() int { return len(e.uploads) }

// OnUpdate registers fn to run at the end of every Update.
func (e *Engine) OnUpdate(fn func(dt time.Duration)) {
	e.hooks = append(e.hooks, fn)
}

// Update advances the frame clock by dt, uploads finished bakes and runs
// the update hooks.
func (e *Engine) Update(dt time.Duration) {
	if e.closed {
		return
	}
	e.elapsed += dt

	pending := e.uploads[:0]
	for _, u := range e.uploads {
		if !u.future.Ready() {
			pending = append(pending, u)
			continue
		}
		err := u.future.Upload(e.ctx, u.texture)
		if err != nil {
			Logger().Warn("g3d: bake upload failed", "texture", u.texture.Label(), "err", err)
		}
		if u.done != nil {
			u.done(err)
		}
	}
	clear(e.uploads[len(pending):])
	e.uploads = pending

	for _, fn := range e.hooks {
		fn(dt)
	}
}

// Render draws one frame.
func (e *Engine) Render() error {
	if e.closed {
		return ErrClosed
	}
	return e.renderer.Render()
}

// Resize changes the screen size. Devices owning their default framebuffer
// reallocate it; the camera aspect and the picking target follow.
func (e *Engine) Resize(width, height int) error {
	if e.closed {
		return ErrClosed
	}
	if width <= 0 || height <= 0 {
		return fmt.Errorf("g3d: screen %dx%d: %w", width, height, device.ErrOutOfBounds)
	}
	if r, ok := e.dev.(device.ScreenResizer); ok {
		if err := r.ResizeScreen(width, height); err != nil {
			return fmt.Errorf("g3d: resize: %w", err)
		}
		e.ctx.Reset()
	}
	e.width, e.height = width, height
	e.renderer.Resize(width, height)
	e.camera.SetAspect(float32(width) / float32(height))
	if e.picker != nil {
		e.picker.Resize(width, height)
	}
	Logger().Debug("g3d: resized", "width", width, "height", height)
	return nil
}

// PointerDown records a press at (x, y), in window coordinates with the
// origin at the top-left.
func (e *Engine) PointerDown(x, y int) {
	e.pointer = pointer{down: true, start: image.Pt(x, y)}
}

// PointerMove marks the current press as a drag once the pointer left the
// click radius.
func (e *Engine) PointerMove(x, y int) {
	if !e.pointer.down || e.pointer.dragged {
		return
	}
	d := image.Pt(x, y).Sub(e.pointer.start)
	if d.X*d.X+d.Y*d.Y > dragThreshold*dragThreshold {
		e.pointer.dragged = true
	}
}

// PointerUp ends a press. A release that is not the end of a drag is a
// click and schedules a pick at (x, y).
func (e *Engine) PointerUp(x, y int) {
	click := !e.pointer.dragged
	e.pointer = pointer{}
	if click && e.picker != nil && !e.closed {
		e.picker.PointerUp(x, y)
	}
}

// Dragging reports whether the pointer is pressed and has moved beyond the
// click radius.
func (e *Engine) Dragging() bool { return e.pointer.down && e.pointer.dragged }

// Close waits for running bakes and releases what the engine put on the
// device: the shader programs, the picking target and the geometries,
// buffers and textures of the meshes still added. It destroys the device
// if the engine opened it. Close is idempotent.
func (e *Engine) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.baker.Close()
	e.uploads = nil
	if e.picker != nil {
		e.picker.Destroy(e.ctx)
	}
	for m := range e.meshes {
		releaseMesh(e.ctx, m)
		m.sub, m.pass = nil, nil
	}
	clear(e.meshes)
	e.shaders.Purge(e.ctx)
	if e.ownsDev {
		e.dev.Destroy()
	}
	Logger().Info("g3d: engine closed")
}

// releaseMesh destroys the device objects of m. Objects shared between
// meshes tolerate repeated destruction.
func releaseMesh(ctx *device.Context, m *Mesh) {
	if g := m.Geometry; g != nil {
		g.Destroy(ctx)
		for _, s := range g.Streams {
			s.Buffer.Destroy(ctx)
		}
		if g.Index != nil {
			g.Index.Destroy(ctx)
		}
	}
	if m.Texture != nil {
		m.Texture.Destroy(ctx)
	}
}
