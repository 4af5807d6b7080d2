// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pick

import (
	"encoding/binary"
	"fmt"
	"image"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
	"github.com/gogpu/g3d/pipeline"
	"github.com/gogpu/g3d/resource"
	"github.com/gogpu/g3d/shader"
)

// Pickable is an object drawn into the ID pass.
type Pickable interface {
	// PickGeometry returns the geometry rasterized for picking.
	PickGeometry() *resource.Geometry

	// ModelMatrix returns the object-to-world transform.
	ModelMatrix() mgl32.Mat4
}

// ViewProjector supplies the view-projection matrix of the ID pass.
// *space.Camera implements it.
type ViewProjector interface {
	ViewProjection() mgl32.Mat4
}

// PickedFunc is called when the selection changes. Either argument may be
// nil.
type PickedFunc func(prev, next Pickable)

type entry struct {
	obj Pickable
	sub *pipeline.SubPipeline
}

// Picker owns the ID target, the ID pass and the registration table.
//
// Picker is driven from the render goroutine, like the Renderer it
// schedules work on.
type Picker struct {
	renderer *pipeline.Renderer
	camera   ViewProjector

	ids    *resource.Texture
	depth  *resource.Texture
	target *resource.Framebuffer
	pass   *pipeline.Pipeline

	byID   map[int32]entry
	byObj  map[Pickable]int32
	nextID int32

	pending  []image.Point
	queued   bool
	selected Pickable
	onPicked PickedFunc
}

// New returns a Picker whose ID target matches the renderer's screen. The
// ID program comes from programs; camera may be nil for an identity
// view-projection and can be changed with SetCamera.
func New(r *pipeline.Renderer, programs *shader.Cache, camera ViewProjector) (*Picker, error) {
	prog, err := programs.Variant(shader.Pick, nil)
	if err != nil {
		return nil, fmt.Errorf("pick: %w", err)
	}
	w, h := r.Screen().Dx(), r.Screen().Dy()
	p := &Picker{
		renderer: r,
		camera:   camera,
		ids:      resource.NewRenderTarget("pick-ids", w, h, gputypes.TextureFormatR32Sint),
		depth:    resource.NewRenderTarget("pick-depth", w, h, gputypes.TextureFormatDepth32Float),
		byID:     make(map[int32]entry),
		byObj:    make(map[Pickable]int32),
	}
	p.target = resource.NewFramebuffer("pick", []*resource.Texture{p.ids}, p.depth)

	p.pass = pipeline.New("pick", prog)
	p.pass.Target = p.target
	p.pass.Clear = &device.ClearOptions{Mask: device.ClearColor | device.ClearDepth, Depth: 1}
	p.pass.Uniforms = func(ctx *device.Context, prog *resource.Program) {
		vp := mgl32.Ident4()
		if p.camera != nil {
			vp = p.camera.ViewProjection()
		}
		prog.SetMat4(ctx, "uViewProj", vp)
	}
	p.pass.AfterExecute = p.resolvePending
	return p, nil
}

// SetCamera replaces the view-projection source.
func (p *Picker) SetCamera(c ViewProjector) { p.camera = c }

// Pass returns the ID pass pipeline.
func (p *Picker) Pass() *pipeline.Pipeline { return p.pass }

// Register adds obj to the ID pass and returns its ID. IDs start at 1 and
// are never reused. Registering an object twice returns its existing ID.
func (p *Picker) Register(obj Pickable) int {
	if id, ok := p.byObj[obj]; ok {
		return int(id)
	}
	p.nextID++
	id := p.nextID
	sub := pipeline.NewSubPipeline(fmt.Sprintf("pick-%d", id), obj.PickGeometry(),
		func(ctx *device.Context, prog *resource.Program) {
			prog.SetMat4(ctx, "uModel", obj.ModelMatrix())
			prog.SetInt(ctx, "uID", id)
		})
	p.pass.Add(sub)
	p.byID[id] = entry{obj: obj, sub: sub}
	p.byObj[obj] = id
	return int(id)
}

// Remove takes obj out of the ID pass. Removing the selected object clears
// the selection.
func (p *Picker) Remove(obj Pickable) bool {
	id, ok := p.byObj[obj]
	if !ok {
		logging.Logger().Warn("pick: remove of unregistered object", "object", fmt.Sprintf("%T", obj))
		return false
	}
	p.pass.Remove(p.byID[id].sub)
	delete(p.byID, id)
	delete(p.byObj, obj)
	if p.selected == obj {
		p.Clear()
	}
	return true
}

// ID returns the ID of a registered object.
func (p *Picker) ID(obj Pickable) (int, bool) {
	id, ok := p.byObj[obj]
	return int(id), ok
}

// Len returns the number of registered objects.
func (p *Picker) Len() int { return len(p.byID) }

// OnPicked sets the selection change callback.
func (p *Picker) OnPicked(fn PickedFunc) { p.onPicked = fn }

// Selected returns the current selection, or nil.
func (p *Picker) Selected() Pickable { return p.selected }

// Clear drops the selection, notifying the callback if there was one.
func (p *Picker) Clear() {
	if p.selected == nil {
		return
	}
	prev := p.selected
	p.selected = nil
	p.notify(prev, nil)
}

// Resize matches the ID target to a new screen size. The next ID pass
// reallocates it.
func (p *Picker) Resize(width, height int) {
	p.target.Resize(p.renderer.Context(), width, height)
}

// Destroy unschedules the ID pass and releases the ID target. Registered
// geometries belong to their objects and are left alone. The Picker must
// not be used afterwards.
func (p *Picker) Destroy(ctx *device.Context) {
	p.renderer.Remove(p.pass)
	p.target.Destroy(ctx)
	p.pending = nil
	p.queued = false
}

// maxPending bounds the releases waiting for one ID pass.
const maxPending = 16

// PointerUp schedules an ID pass for the next frame and resolves (x, y),
// in window coordinates with the origin at the top-left, once it ran.
// Releases within one frame share a single pass.
func (p *Picker) PointerUp(x, y int) {
	if p.queued && !p.renderer.Scheduled(p.pass) {
		// The last pass was consumed without completing.
		logging.Logger().Warn("pick: id pass did not complete", "dropped", len(p.pending))
		p.pending = p.pending[:0]
		p.queued = false
	}
	if len(p.pending) == maxPending {
		p.pending = append(p.pending[:0], p.pending[1:]...)
	}
	p.pending = append(p.pending, image.Pt(x, y))
	if p.queued {
		return
	}
	p.queued = true
	p.renderer.RenderOnce(p.pass)
}

// Pending returns the number of releases waiting for an ID pass.
func (p *Picker) Pending() int { return len(p.pending) }

// Pick reads the ID under (x, y) from the last executed ID pass. It does
// not change the selection.
func (p *Picker) Pick(x, y int) (Pickable, bool) {
	id, err := p.readID(x, y)
	if err != nil {
		logging.Logger().Warn("pick: readback failed", "x", x, "y", y, "err", err)
		return nil, false
	}
	if id <= 0 {
		return nil, false
	}
	e, ok := p.byID[id]
	return e.obj, ok
}

// readID flips y into device coordinates and reads one texel.
func (p *Picker) readID(x, y int) (int32, error) {
	_, h := p.target.Size()
	pt := image.Pt(x, h-1-y)
	var px [4]byte
	if err := p.target.ReadPixels(p.renderer.Context(), 0, image.Rectangle{Min: pt, Max: pt.Add(image.Pt(1, 1))}, px[:]); err != nil {
		return 0, err
	}
	return int32(binary.LittleEndian.Uint32(px[:])), nil
}

// resolvePending runs after the ID pass executed.
func (p *Picker) resolvePending(*device.Context) error {
	pending := p.pending
	p.pending = nil
	p.queued = false
	for _, pt := range pending {
		id, err := p.readID(pt.X, pt.Y)
		if err != nil {
			logging.Logger().Warn("pick: readback failed", "x", pt.X, "y", pt.Y, "err", err)
			continue
		}
		p.resolve(id)
	}
	return nil
}

// resolve applies a read ID to the selection. Background and unknown IDs
// are ignored.
func (p *Picker) resolve(id int32) {
	if id <= 0 {
		return
	}
	e, ok := p.byID[id]
	if !ok {
		logging.Logger().Debug("pick: stale id", "id", id)
		return
	}
	if e.obj == p.selected {
		return
	}
	prev := p.selected
	p.selected = e.obj
	p.notify(prev, e.obj)
}

func (p *Picker) notify(prev, next Pickable) {
	if p.onPicked != nil {
		p.onPicked(prev, next)
	}
}
