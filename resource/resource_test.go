// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package resource

import (
	"bytes"
	"errors"
	"image"
	"log/slog"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/backend/soft"
	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

func newContext() (*device.Context, *soft.Device) {
	dev := soft.New(4, 4)
	return device.NewContext(dev), dev
}

func TestBufferRealizeOnce(t *testing.T) {
	ctx, dev := newContext()
	b := NewVertexBuffer("verts", make([]byte, 48))

	if b.Stage() != Described {
		t.Fatalf("Stage() = %v, want %v", b.Stage(), Described)
	}
	for range 3 {
		if err := b.Realize(ctx); err != nil {
			t.Fatalf("Realize() error = %v", err)
		}
	}
	if got := dev.Calls("CreateBuffer"); got != 1 {
		t.Errorf("CreateBuffer calls = %d, want 1", got)
	}
	if b.Stage() != Realized || b.ID() == device.InvalidID {
		t.Errorf("Stage() = %v, ID() = %d, want realized with a valid id", b.Stage(), b.ID())
	}
	if b.Size() != 48 {
		t.Errorf("Size() = %d, want 48", b.Size())
	}
}

func TestBufferWriteBeforeRealize(t *testing.T) {
	ctx, _ := newContext()
	b := NewBuffer(device.BufferDescriptor{Label: "grow", Usage: gputypes.BufferUsageVertex})
	if err := b.Write(ctx, 8, []byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if b.Size() != 12 {
		t.Errorf("Size() = %d, want 12", b.Size())
	}
	if err := b.Realize(ctx); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	if err := b.Write(ctx, 0, []byte{9}); err != nil {
		t.Errorf("Write() after Realize error = %v", err)
	}
}

func TestBufferWriteNegativeOffset(t *testing.T) {
	ctx, _ := newContext()
	b := NewBuffer(device.BufferDescriptor{Label: "neg", Usage: gputypes.BufferUsageVertex, Size: 8})
	if err := b.Write(ctx, -1, []byte{1}); !errors.Is(err, device.ErrOutOfBounds) {
		t.Errorf("Write(-1) before Realize error = %v, want %v", err, device.ErrOutOfBounds)
	}
	if err := b.Realize(ctx); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	if err := b.Write(ctx, -1, []byte{1}); !errors.Is(err, device.ErrOutOfBounds) {
		t.Errorf("Write(-1) after Realize error = %v, want %v", err, device.ErrOutOfBounds)
	}
}

func TestDestroyedResourcesStayDestroyed(t *testing.T) {
	ctx, dev := newContext()
	b := NewVertexBuffer("verts", make([]byte, 12))
	if err := b.Realize(ctx); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	b.Destroy(ctx)

	if b.Stage() != Destroyed {
		t.Errorf("Stage() = %v, want %v", b.Stage(), Destroyed)
	}
	if got := dev.Calls("DestroyBuffer"); got != 1 {
		t.Errorf("DestroyBuffer calls = %d, want 1", got)
	}
	if err := b.Realize(ctx); !errors.Is(err, device.ErrDestroyed) {
		t.Errorf("Realize() after Destroy error = %v, want %v", err, device.ErrDestroyed)
	}
	if err := b.Write(ctx, 0, []byte{1}); !errors.Is(err, device.ErrDestroyed) {
		t.Errorf("Write() after Destroy error = %v, want %v", err, device.ErrDestroyed)
	}

	// Destroying a never-realized resource releases nothing.
	tex := NewRenderTarget("rt", 2, 2, gputypes.TextureFormatRGBA8Unorm)
	tex.Destroy(ctx)
	if got := dev.Calls("DestroyTexture"); got != 0 {
		t.Errorf("DestroyTexture calls = %d, want 0", got)
	}
	if err := tex.SetData(ctx, 0, make([]byte, 16)); !errors.Is(err, device.ErrDestroyed) {
		t.Errorf("SetData() after Destroy error = %v, want %v", err, device.ErrDestroyed)
	}
}

func TestGeometryDrawCall(t *testing.T) {
	idx := NewIndexBuffer("idx", make([]byte, 12))
	tests := []struct {
		name string
		geo  Geometry
		want device.DrawKind
	}{
		{"arrays", Geometry{Count: 3}, device.DrawArrays},
		{"instanced", Geometry{Count: 3, Instances: 4}, device.DrawArraysInstanced},
		{"indexed", Geometry{Count: 6, Index: idx}, device.DrawIndexed},
		{"indexed instanced", Geometry{Count: 6, Index: idx, Instances: 2}, device.DrawIndexedInstanced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.geo.DrawCall().Kind; got != tt.want {
				t.Errorf("DrawCall().Kind = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGeometryRealizeCascades(t *testing.T) {
	ctx, dev := newContext()
	vb := NewVertexBuffer("verts", make([]byte, 36))
	geo := &Geometry{
		Label:    "tri",
		Topology: gputypes.PrimitiveTopologyTriangleList,
		Streams: []VertexStream{{
			Buffer:     vb,
			Stride:     12,
			StepMode:   gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{{Format: gputypes.VertexFormatFloat32x3}},
		}},
		Count: 3,
	}
	if err := geo.Realize(ctx); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	if vb.Stage() != Realized {
		t.Errorf("vertex buffer Stage() = %v, want %v", vb.Stage(), Realized)
	}
	if got := dev.Calls("CreateGeometry"); got != 1 {
		t.Errorf("CreateGeometry calls = %d, want 1", got)
	}

	lines := &Geometry{Label: "lines", Topology: gputypes.PrimitiveTopologyLineList, Streams: geo.Streams, Count: 2}
	if err := lines.Realize(ctx); !errors.Is(err, device.ErrUnsupported) {
		t.Errorf("Realize(line list) error = %v, want %v", err, device.ErrUnsupported)
	}
}

func TestTextureSetData(t *testing.T) {
	ctx, dev := newContext()
	tex := NewTexture(device.TextureDescriptor{
		Label:     "mips",
		Width:     2,
		Height:    2,
		Format:    gputypes.TextureFormatRGBA8Unorm,
		MipLevels: 2,
	})

	if err := tex.SetData(ctx, 0, make([]byte, 16)); err != nil {
		t.Fatalf("SetData(0) error = %v", err)
	}
	if err := tex.SetData(ctx, 1, make([]byte, 4)); err != nil {
		t.Fatalf("SetData(1) error = %v", err)
	}
	if err := tex.SetData(ctx, 2, nil); err == nil {
		t.Error("SetData(2) error = nil, want out of range")
	}
	if got := dev.Calls("WriteTexture"); got != 0 {
		t.Errorf("WriteTexture calls before Realize = %d, want 0", got)
	}

	if err := tex.Realize(ctx); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	// Level 0 travels with the descriptor, level 1 is uploaded afterwards.
	if got := dev.Calls("WriteTexture"); got != 1 {
		t.Errorf("WriteTexture calls after Realize = %d, want 1", got)
	}
	if err := tex.SetData(ctx, 0, make([]byte, 16)); err != nil {
		t.Fatalf("SetData() after Realize error = %v", err)
	}
	if got := dev.Calls("WriteTexture"); got != 2 {
		t.Errorf("WriteTexture calls = %d, want 2", got)
	}
}

func TestTextureResizeReturnsToDescribed(t *testing.T) {
	ctx, _ := newContext()
	tex := NewRenderTarget("rt", 2, 2, gputypes.TextureFormatRGBA8Unorm)
	if err := tex.Realize(ctx); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	tex.Resize(ctx, 2, 2)
	if tex.Stage() != Realized {
		t.Errorf("Stage() after same-size Resize = %v, want %v", tex.Stage(), Realized)
	}
	tex.Resize(ctx, 8, 4)
	if tex.Stage() != Described {
		t.Errorf("Stage() after Resize = %v, want %v", tex.Stage(), Described)
	}
	if w, h := tex.Size(); w != 8 || h != 4 {
		t.Errorf("Size() = %dx%d, want 8x4", w, h)
	}
}

func TestFramebufferValidation(t *testing.T) {
	rgba := func(w, h int) *Texture { return NewRenderTarget("c", w, h, gputypes.TextureFormatRGBA8Unorm) }
	depth := func(w, h int) *Texture { return NewRenderTarget("d", w, h, gputypes.TextureFormatDepth32Float) }

	tests := []struct {
		name  string
		color []*Texture
		depth *Texture
		ok    bool
	}{
		{"color and depth", []*Texture{rgba(4, 4), rgba(4, 4)}, depth(4, 4), true},
		{"color only", []*Texture{rgba(4, 4)}, nil, true},
		{"no color", nil, depth(4, 4), false},
		{"nil attachment", []*Texture{nil}, nil, false},
		{"empty size", []*Texture{rgba(0, 4)}, nil, false},
		{"color size mismatch", []*Texture{rgba(4, 4), rgba(2, 2)}, nil, false},
		{"depth size mismatch", []*Texture{rgba(4, 4)}, depth(2, 2), false},
		{"depth as color", []*Texture{depth(4, 4)}, nil, false},
		{"color as depth", []*Texture{rgba(4, 4)}, rgba(4, 4), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, _ := newContext()
			fb := NewFramebuffer(tt.name, tt.color, tt.depth)
			err := fb.Realize(ctx)
			if tt.ok {
				if err != nil {
					t.Errorf("Realize() error = %v", err)
				}
				return
			}
			if !errors.Is(err, device.ErrIncompleteFramebuffer) {
				t.Errorf("Realize() error = %v, want %v", err, device.ErrIncompleteFramebuffer)
			}
			if !device.IsVital(err) {
				t.Errorf("IsVital(%v) = false, want true", err)
			}
		})
	}
}

func TestFramebufferReadPixels(t *testing.T) {
	ctx, _ := newContext()
	fb := NewFramebuffer("fb", []*Texture{NewRenderTarget("c", 4, 4, gputypes.TextureFormatRGBA8Unorm)}, nil)

	var px [4]byte
	if err := fb.ReadPixels(ctx, 0, image.Rect(0, 0, 1, 1), px[:]); !errors.Is(err, device.ErrUnknownResource) {
		t.Errorf("ReadPixels() before Realize error = %v, want %v", err, device.ErrUnknownResource)
	}
	if err := fb.Realize(ctx); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	if err := fb.ReadPixels(ctx, 0, image.Rect(3, 3, 5, 5), make([]byte, 16)); !errors.Is(err, device.ErrOutOfBounds) {
		t.Errorf("ReadPixels() outside error = %v, want %v", err, device.ErrOutOfBounds)
	}
	if err := fb.ReadPixels(ctx, 0, image.Rect(3, 3, 4, 4), px[:]); err != nil {
		t.Errorf("ReadPixels() error = %v", err)
	}
}

func TestFramebufferResize(t *testing.T) {
	ctx, _ := newContext()
	color := NewRenderTarget("c", 4, 4, gputypes.TextureFormatRGBA8Unorm)
	depth := NewRenderTarget("d", 4, 4, gputypes.TextureFormatDepth32Float)
	fb := NewFramebuffer("fb", []*Texture{color}, depth)
	if err := fb.Realize(ctx); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	fb.Resize(ctx, 8, 6)
	if fb.Stage() != Described {
		t.Errorf("Stage() = %v, want %v", fb.Stage(), Described)
	}
	if err := fb.Realize(ctx); err != nil {
		t.Fatalf("Realize() after Resize error = %v", err)
	}
	if got := fb.Bounds(); got != image.Rect(0, 0, 8, 6) {
		t.Errorf("Bounds() = %v, want %v", got, image.Rect(0, 0, 8, 6))
	}
	if w, h := depth.Size(); w != 8 || h != 6 {
		t.Errorf("depth Size() = %dx%d, want 8x6", w, h)
	}
}

const kernelBlocks = "blocks"

func blockKernel() soft.Kernel {
	k := soft.Kernel{
		Blocks: []soft.KernelBlock{
			{Name: "Shadow", Size: 64},
			{Name: "Material", Size: 16},
			{Name: "Camera", Size: 128},
			{Name: "Fog", Size: 16},
		},
		Uniforms: []soft.KernelUniform{
			{Name: "uModel", Type: device.UniformMat4},
			{Name: "uTint", Type: device.UniformVec4},
			{Name: "uAlbedo", Type: device.UniformSampler},
			{Name: "viewProj", Type: device.UniformMat4, Block: "Camera"},
			{Name: "baseColor", Type: device.UniformVec4, Block: "Material"},
		},
	}
	k.Vertex = func(*soft.Uniforms, [][]float32) (mgl32.Vec4, []float32) { return mgl32.Vec4{}, nil }
	k.Fragment = func(*soft.Uniforms, []float32) ([]mgl32.Vec4, bool) { return nil, true }
	return k
}

func realizedBlockProgram(t *testing.T) (*device.Context, *soft.Device, *Program) {
	t.Helper()
	ctx, dev := newContext()
	dev.RegisterKernel(kernelBlocks, blockKernel())
	p := NewProgram(device.ProgramDescriptor{Label: "blocks", Name: kernelBlocks})
	if err := p.Realize(ctx); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	ctx.Bind(p)
	return ctx, dev, p
}

func TestProgramReflection(t *testing.T) {
	_, dev, p := realizedBlockProgram(t)

	for _, name := range []string{"uModel", "uTint", "uAlbedo"} {
		if !p.HasUniform(name) {
			t.Errorf("HasUniform(%q) = false, want true", name)
		}
	}
	for _, name := range []string{"viewProj", "baseColor"} {
		if p.HasUniform(name) {
			t.Errorf("HasUniform(%q) = true for a block member", name)
		}
	}
	if typ, _ := p.UniformType("uTint"); typ != device.UniformVec4 {
		t.Errorf("UniformType(uTint) = %v, want %v", typ, device.UniformVec4)
	}

	slots := map[string]int{
		"Camera":   CameraSlot,
		"Material": MaterialSlot,
		"Shadow":   FirstAdHocSlot,
		"Fog":      FirstAdHocSlot + 1,
	}
	for name, want := range slots {
		if got, ok := p.BlockSlot(name); !ok || got != want {
			t.Errorf("BlockSlot(%q) = %d, %v, want %d", name, got, ok, want)
		}
	}
	if _, ok := p.BlockSlot("Light"); ok {
		t.Error("BlockSlot(Light) found for an unused block")
	}
	if got := dev.Calls("BindUniformBlock"); got != 4 {
		t.Errorf("BindUniformBlock calls = %d, want 4", got)
	}
}

func TestProgramSet(t *testing.T) {
	var logs bytes.Buffer
	logging.SetLogger(slog.New(slog.NewTextHandler(&logs, nil)))
	t.Cleanup(func() { logging.SetLogger(nil) })

	ctx, dev, p := realizedBlockProgram(t)
	dev.ResetCounters()

	p.SetVec4(ctx, "uUnknown", mgl32.Vec4{})
	p.SetVec4(ctx, "baseColor", mgl32.Vec4{})
	if got := dev.Calls("Uniform"); got != 0 {
		t.Errorf("Uniform calls for unknown names = %d, want 0", got)
	}
	if logs.Len() != 0 {
		t.Errorf("unknown names logged: %s", logs.String())
	}

	p.SetFloat(ctx, "uTint", 1)
	if got := dev.Calls("Uniform"); got != 0 {
		t.Errorf("Uniform calls for a mismatched type = %d, want 0", got)
	}
	if !strings.Contains(logs.String(), "uniform type mismatch") {
		t.Errorf("log = %q, want a type mismatch warning", logs.String())
	}

	p.SetVec4(ctx, "uTint", mgl32.Vec4{1, 1, 1, 1})
	p.SetMat4(ctx, "uModel", mgl32.Ident4())
	p.SetInt(ctx, "uAlbedo", 2)
	p.SetSampler(ctx, "uAlbedo", 3)
	if got := dev.Calls("Uniform"); got != 4 {
		t.Errorf("Uniform calls = %d, want 4", got)
	}
}

func TestProgramRealizeErrors(t *testing.T) {
	ctx, dev := newContext()
	dev.RegisterKernel("half", soft.Kernel{})

	tests := []struct {
		name string
		want error
	}{
		{"missing", device.ErrCompile},
		{"half", device.ErrLink},
	}
	for _, tt := range tests {
		p := NewProgram(device.ProgramDescriptor{Label: tt.name, Name: tt.name})
		err := p.Realize(ctx)
		if !errors.Is(err, tt.want) || !device.IsVital(err) {
			t.Errorf("Realize(%q) error = %v, want vital %v", tt.name, err, tt.want)
		}
		if p.Stage() != Described {
			t.Errorf("Stage() after failure = %v, want %v", p.Stage(), Described)
		}
	}
}

func TestUniformBufferBindsOnce(t *testing.T) {
	ctx, dev := newContext()
	ub := NewUniformBuffer("camera", 128)
	if err := ub.Realize(ctx); err != nil {
		t.Fatalf("Realize() error = %v", err)
	}
	ctx.BindUniformBuffer(CameraSlot, ub)
	ctx.BindUniformBuffer(CameraSlot, ub)
	if got := dev.Calls("BindUniformBuffer"); got != 1 {
		t.Errorf("BindUniformBuffer calls = %d, want 1", got)
	}
	ub.Destroy(ctx)
	if _, ok := ctx.Bound(device.KindUniformBuffer, CameraSlot); ok {
		t.Error("destroyed buffer still cached as bound")
	}
}
