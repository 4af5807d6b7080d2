// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package g3d

import (
	"context"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/backend"
	"github.com/gogpu/g3d/backend/soft"
	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/pick"
	"github.com/gogpu/g3d/resource"
	"github.com/gogpu/g3d/shader"
	"github.com/gogpu/g3d/space"
)

var (
	blue = [4]byte{0, 0, 255, 255}
	red  = [4]byte{255, 0, 0, 255}
)

// quadrant covers the bottom-left quarter of clip space.
func quadrant() *resource.Geometry {
	vs := []float32{
		-1, -1, 0, 0, -1, 0, 0, 0, 0,
		-1, -1, 0, 0, 0, 0, -1, 0, 0,
	}
	data := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return &resource.Geometry{
		Label:    "quadrant",
		Topology: gputypes.PrimitiveTopologyTriangleList,
		Streams: []resource.VertexStream{{
			Buffer:     resource.NewVertexBuffer("quadrant", data),
			Stride:     12,
			StepMode:   gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{{Format: gputypes.VertexFormatFloat32x3}},
		}},
		Count: 6,
	}
}

// newTestEngine returns an 8×8 engine on a software device whose camera
// maps model space straight onto clip space.
func newTestEngine(t *testing.T, opts ...Option) (*Engine, *soft.Device) {
	t.Helper()
	dev := soft.New(8, 8)
	cam := space.NewOrthographicCamera(2, 1, -1, 1)
	opts = append([]Option{
		WithDevice(dev),
		WithCamera(cam),
		WithClearColor(gputypes.Color{B: 1, A: 1}),
		WithBakeWorkers(2),
	}, opts...)
	e, err := New(8, 8, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(e.Close)
	return e, dev
}

// pixel reads one texel of the screen in device (bottom-up) coordinates.
func pixel(t *testing.T, dev device.Device, x, y int) [4]byte {
	t.Helper()
	var px [4]byte
	if err := dev.ReadPixels(device.DefaultFramebuffer, 0, image.Rect(x, y, x+1, y+1), px[:]); err != nil {
		t.Fatalf("ReadPixels() error = %v", err)
	}
	return px
}

func render(t *testing.T, e *Engine) {
	t.Helper()
	if err := e.Render(); err != nil {
		t.Fatalf("Render() error = %v", err)
	}
}

func labels(e *Engine) []string {
	var out []string
	for _, p := range e.Renderer().Pipelines() {
		out = append(out, p.Label)
	}
	return out
}

func TestNewRejectsEmptyScreen(t *testing.T) {
	if _, err := New(0, 8); !errors.Is(err, device.ErrOutOfBounds) {
		t.Errorf("New(0, 8) error = %v, want %v", err, device.ErrOutOfBounds)
	}
}

func TestNewOpensNamedBackend(t *testing.T) {
	e, err := New(8, 8, WithBackend(backend.BackendSoft))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	dev, ok := e.Device().(*soft.Device)
	if !ok {
		t.Fatalf("Device() = %T, want *soft.Device", e.Device())
	}
	if e.Picker() != nil {
		t.Error("Picker() != nil without WithPicking")
	}
	e.Close()
	// The engine opened the device, so Close destroyed it.
	err = dev.ReadPixels(device.DefaultFramebuffer, 0, image.Rect(0, 0, 1, 1), make([]byte, 4))
	if !errors.Is(err, device.ErrUnknownResource) {
		t.Errorf("ReadPixels() after Close error = %v, want %v", err, device.ErrUnknownResource)
	}

	if _, err := New(8, 8, WithBackend("vulkan")); !errors.Is(err, backend.ErrBackendNotAvailable) {
		t.Errorf("New(vulkan) error = %v, want %v", err, backend.ErrBackendNotAvailable)
	}
}

func TestRenderClearsAndDrawsMeshes(t *testing.T) {
	e, dev := newTestEngine(t)
	m := NewMesh("a", quadrant())
	m.Color = mgl32.Vec4{1, 0, 0, 1}
	if err := e.Add(m); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	render(t, e)

	if got := pixel(t, dev, 1, 1); got != red {
		t.Errorf("pixel(1, 1) = %v, want red", got)
	}
	if got := pixel(t, dev, 6, 6); got != blue {
		t.Errorf("pixel(6, 6) = %v, want clear color", got)
	}

	m.SetVisible(false)
	render(t, e)
	if got := pixel(t, dev, 1, 1); got != blue {
		t.Errorf("pixel(1, 1) of hidden mesh = %v, want clear color", got)
	}

	e.SetClearColor(0, 0, 0, 1)
	render(t, e)
	if got := pixel(t, dev, 6, 6); got != [4]byte{0, 0, 0, 255} {
		t.Errorf("pixel(6, 6) after SetClearColor = %v, want black", got)
	}
}

func TestMeshPasses(t *testing.T) {
	e, _ := newTestEngine(t)
	tex := resource.NewTexture(device.TextureDescriptor{
		Label: "white", Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA8Unorm,
		Data: []byte{255, 255, 255, 255},
	})

	opaque := NewMesh("opaque", quadrant())
	glass := NewMesh("glass", quadrant())
	glass.Transparent = true
	textured := NewMesh("textured", quadrant())
	textured.Texture = tex
	second := NewMesh("second", quadrant())
	for _, m := range []*Mesh{glass, opaque, textured, second} {
		if err := e.Add(m); err != nil {
			t.Fatalf("Add(%s) error = %v", m.Name, err)
		}
	}

	want := []string{"background", "unlit", "unlit-textured", "unlit-transparent"}
	got := labels(e)
	if len(got) != len(want) {
		t.Fatalf("Pipelines() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Pipelines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
	if n := e.Shaders().Len(); n != 2 {
		t.Errorf("Shaders().Len() = %d, want 2 variants", n)
	}
	render(t, e)

	if err := e.Add(opaque); !errors.Is(err, ErrMeshAdded) {
		t.Errorf("Add() twice error = %v, want %v", err, ErrMeshAdded)
	}
	if !e.Remove(opaque) {
		t.Error("Remove() = false, want true")
	}
	if e.Remove(opaque) {
		t.Error("Remove() twice = true, want false")
	}
	if opaque.Added() {
		t.Error("Added() after Remove = true")
	}
}

func TestPointerClickPicks(t *testing.T) {
	e, _ := newTestEngine(t, WithPicking(true))
	a := NewMesh("a", quadrant())
	b := NewMesh("b", quadrant())
	b.SetPosition(1, 1, 0)
	for _, m := range []*Mesh{a, b} {
		if err := e.Add(m); err != nil {
			t.Fatalf("Add() error = %v", err)
		}
	}
	var picked []string
	e.Picker().OnPicked(func(_, next pick.Pickable) {
		picked = append(picked, next.(*Mesh).Name)
	})

	// Window coordinates: a covers the bottom-left, b the top-right.
	e.PointerDown(1, 6)
	e.PointerUp(1, 6)
	render(t, e)
	if e.Picker().Selected() != a {
		t.Errorf("Selected() = %v, want a", e.Picker().Selected())
	}

	e.PointerDown(6, 1)
	e.PointerMove(6, 2)
	e.PointerUp(6, 2)
	render(t, e)
	if e.Picker().Selected() != b {
		t.Errorf("Selected() after small move = %v, want b", e.Picker().Selected())
	}
	if len(picked) != 2 || picked[0] != "a" || picked[1] != "b" {
		t.Errorf("picked = %v, want [a b]", picked)
	}
}

func TestPointerDragDoesNotPick(t *testing.T) {
	e, dev := newTestEngine(t, WithPicking(true))
	a := NewMesh("a", quadrant())
	if err := e.Add(a); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	e.PointerDown(1, 6)
	e.PointerMove(7, 6)
	if !e.Dragging() {
		t.Error("Dragging() = false after moving 6 pixels")
	}
	e.PointerUp(7, 6)
	if e.Dragging() {
		t.Error("Dragging() = true after release")
	}
	dev.ResetCounters()
	render(t, e)

	for _, d := range dev.Draws() {
		if d.Program == shader.Pick {
			t.Fatal("drag release scheduled an ID pass")
		}
	}
	if e.Picker().Selected() != nil {
		t.Errorf("Selected() = %v, want nil", e.Picker().Selected())
	}

	e.Remove(a)
	if n := e.Picker().Len(); n != 0 {
		t.Errorf("Picker().Len() after Remove = %d, want 0", n)
	}
}

func TestBakeUploadsOnUpdate(t *testing.T) {
	e, _ := newTestEngine(t)
	tex := resource.NewTexture(device.TextureDescriptor{
		Label: "checker", Width: 4, Height: 4, MipLevels: 3, Format: gputypes.TextureFormatRGBA8Unorm,
	})
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := range 4 {
		for x := range 4 {
			img.Set(x, y, color.RGBA{uint8(64 * x), uint8(64 * y), 0, 255})
		}
	}

	var doneErr error
	calls := 0
	f := e.Bake(tex, img, func(err error) {
		calls++
		doneErr = err
	})
	if _, err := f.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	if e.PendingBakes() != 1 {
		t.Fatalf("PendingBakes() = %d before Update, want 1", e.PendingBakes())
	}
	e.Update(16 * time.Millisecond)
	if calls != 1 || doneErr != nil {
		t.Errorf("done called %d times with %v, want once with nil", calls, doneErr)
	}
	if e.PendingBakes() != 0 {
		t.Errorf("PendingBakes() = %d after Update, want 0", e.PendingBakes())
	}
	if err := tex.Realize(e.Context()); err != nil {
		t.Errorf("Realize() of baked texture error = %v", err)
	}
}

func TestBakeSizeMismatchReported(t *testing.T) {
	e, _ := newTestEngine(t)
	tex := resource.NewTexture(device.TextureDescriptor{
		Label: "small", Width: 2, Height: 2, Format: gputypes.TextureFormatRGBA8Unorm,
	})
	var got error
	f := e.Bake(tex, image.NewRGBA(image.Rect(0, 0, 4, 4)), func(err error) { got = err })
	if _, err := f.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	e.Update(0)
	if !errors.Is(got, device.ErrOutOfBounds) {
		t.Errorf("upload error = %v, want %v", got, device.ErrOutOfBounds)
	}
}

func TestUpdateHooks(t *testing.T) {
	e, _ := newTestEngine(t)
	var total time.Duration
	e.OnUpdate(func(dt time.Duration) { total += dt })
	e.Update(10 * time.Millisecond)
	e.Update(5 * time.Millisecond)
	if total != 15*time.Millisecond {
		t.Errorf("hook total = %v, want 15ms", total)
	}
	if e.Elapsed() != 15*time.Millisecond {
		t.Errorf("Elapsed() = %v, want 15ms", e.Elapsed())
	}
}

func TestResize(t *testing.T) {
	e, dev := newTestEngine(t, WithPicking(true))
	a := NewMesh("a", quadrant())
	a.Color = mgl32.Vec4{1, 0, 0, 1}
	if err := e.Add(a); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := e.Resize(16, 8); err != nil {
		t.Fatalf("Resize() error = %v", err)
	}
	if w, h := e.Size(); w != 16 || h != 8 {
		t.Errorf("Size() = %dx%d, want 16x8", w, h)
	}
	if got := e.Camera().Aspect(); got != 2 {
		t.Errorf("Camera().Aspect() = %v, want 2", got)
	}
	render(t, e)
	if got := pixel(t, dev, 15, 7); got != blue {
		t.Errorf("pixel(15, 7) = %v, want clear color", got)
	}

	e.PointerUp(15, 0)
	render(t, e)
	if e.Picker().Selected() != nil {
		t.Errorf("Selected() = %v, want nil over background", e.Picker().Selected())
	}

	if err := e.Resize(0, 8); !errors.Is(err, device.ErrOutOfBounds) {
		t.Errorf("Resize(0, 8) error = %v, want %v", err, device.ErrOutOfBounds)
	}
}

func TestClose(t *testing.T) {
	e, dev := newTestEngine(t)
	render(t, e)
	e.Close()
	e.Close()

	if err := e.Render(); !errors.Is(err, ErrClosed) {
		t.Errorf("Render() after Close error = %v, want %v", err, ErrClosed)
	}
	if err := e.Add(NewMesh("late", quadrant())); !errors.Is(err, ErrClosed) {
		t.Errorf("Add() after Close error = %v, want %v", err, ErrClosed)
	}
	if err := e.Resize(4, 4); !errors.Is(err, ErrClosed) {
		t.Errorf("Resize() after Close error = %v, want %v", err, ErrClosed)
	}
	// A device passed with WithDevice outlives the engine.
	if got := pixel(t, dev, 0, 0); got != blue {
		t.Errorf("pixel(0, 0) after Close = %v, want the last frame", got)
	}
}

func TestCloseReleasesDeviceObjects(t *testing.T) {
	e, dev := newTestEngine(t, WithPicking(true))
	tex := resource.NewTexture(device.TextureDescriptor{
		Label: "white", Width: 1, Height: 1, Format: gputypes.TextureFormatRGBA8Unorm,
		Data: []byte{255, 255, 255, 255},
	})
	shared := quadrant()
	plain := NewMesh("plain", shared)
	other := NewMesh("other", shared)
	textured := NewMesh("textured", quadrant())
	textured.Texture = tex
	for _, m := range []*Mesh{plain, other, textured} {
		if err := e.Add(m); err != nil {
			t.Fatalf("Add(%s) error = %v", m.Name, err)
		}
	}
	e.PointerDown(1, 6)
	e.PointerUp(1, 6)
	render(t, e)
	if dev.Live() == 0 {
		t.Fatal("Live() = 0 after a frame, want realized objects")
	}

	e.Close()
	if got := dev.Live(); got != 0 {
		t.Errorf("Live() after Close = %d, want 0", got)
	}
	if shared.Stage() != resource.Destroyed || tex.Stage() != resource.Destroyed {
		t.Errorf("stages = %v, %v, want destroyed", shared.Stage(), tex.Stage())
	}
	if plain.Added() {
		t.Error("Added() = true after Close")
	}
}
