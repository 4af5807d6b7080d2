// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package soft

import (
	"encoding/binary"
	"fmt"
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/device"
)

// shadedVertex is a vertex after the vertex stage, in window coordinates.
type shadedVertex struct {
	x, y, z  float32
	invW     float32
	varyings []float32
}

// target is the set of attachments a draw writes to.
type target struct {
	colors []*texture
	depth  *texture
	width  int
	height int
}

// Draw implements device.Device.
func (d *Device) Draw(call device.DrawCall) error {
	d.called("Draw")
	p := d.programs[d.state.program]
	if p == nil {
		return fmt.Errorf("soft: draw without program: %w", device.ErrUnknownResource)
	}
	g := d.geometries[d.state.geometry]
	if g == nil {
		return fmt.Errorf("soft: draw without geometry: %w", device.ErrUnknownResource)
	}
	fb := d.framebuffers[d.state.framebuffer]
	if fb == nil {
		return fmt.Errorf("soft: framebuffer %d: %w", d.state.framebuffer, device.ErrUnknownResource)
	}
	if call.Kind.Indexed() && g.desc.Index == device.InvalidID {
		return fmt.Errorf("soft: %v draw on geometry without index buffer: %w", call.Kind, device.ErrUnsupported)
	}

	tgt := target{width: fb.width, height: fb.height, depth: d.textures[fb.depth]}
	for _, i := range d.state.drawBuffers {
		if i < len(fb.color) {
			tgt.colors = append(tgt.colors, d.textures[fb.color[i]])
		}
	}

	u := &Uniforms{dev: d, prog: p, defines: p.defines, byName: p.byName, values: p.values, blockIdx: p.blockIdx}
	instances := 1
	if call.Kind.Instanced() {
		instances = max(call.Instances, 0)
	}

	indices, err := d.indices(g, call)
	if err != nil {
		return err
	}

	rec := DrawRecord{
		Program:     p.label,
		Framebuffer: d.state.framebuffer,
		Kind:        call.Kind,
		Count:       call.Count,
		Instances:   instances,
	}
	for inst := range instances {
		verts := make([]shadedVertex, len(indices))
		for i, idx := range indices {
			pos, vary := p.kernel.Vertex(u, d.attributes(g, idx, inst))
			verts[i] = d.toWindow(pos, vary)
		}
		rec.Fragments += d.rasterize(u, p, g.desc.Topology, verts, &tgt)
	}
	d.draws = append(d.draws, rec)
	return nil
}

// indices expands a draw call into the vertex indices it visits.
func (d *Device) indices(g *geometry, call device.DrawCall) ([]int, error) {
	out := make([]int, 0, call.Count)
	if !call.Kind.Indexed() {
		for i := range call.Count {
			out = append(out, call.First+i)
		}
		return out, nil
	}
	ib := d.buffers[g.desc.Index]
	if ib == nil {
		return nil, fmt.Errorf("soft: index buffer %d: %w", g.desc.Index, device.ErrUnknownResource)
	}
	size := 2
	if g.desc.IndexFormat == gputypes.IndexFormatUint32 {
		size = 4
	}
	for i := range call.Count {
		off := (call.First + i) * size
		if off+size > len(ib.data) {
			return nil, fmt.Errorf("soft: index %d beyond index buffer: %w", call.First+i, device.ErrOutOfBounds)
		}
		if size == 2 {
			out = append(out, int(binary.LittleEndian.Uint16(ib.data[off:])))
		} else {
			out = append(out, int(binary.LittleEndian.Uint32(ib.data[off:])))
		}
	}
	return out, nil
}

// attributes gathers the inputs of one vertex, indexed by shader location.
func (d *Device) attributes(g *geometry, vertex, instance int) [][]float32 {
	var in [][]float32
	for _, l := range g.desc.Layouts {
		buf := d.buffers[l.Buffer]
		elem := vertex
		if l.StepMode == gputypes.VertexStepModeInstance {
			elem = instance
		}
		for _, a := range l.Attributes {
			loc := int(a.ShaderLocation)
			for len(in) <= loc {
				in = append(in, nil)
			}
			in[loc] = readAttribute(buf.data, int(l.Stride)*elem+int(a.Offset), a.Format)
		}
	}
	return in
}

func readAttribute(data []byte, off int, f gputypes.VertexFormat) []float32 {
	var n int
	kind := 'f'
	switch f {
	case gputypes.VertexFormatFloat32:
		n = 1
	case gputypes.VertexFormatFloat32x2:
		n = 2
	case gputypes.VertexFormatFloat32x3:
		n = 3
	case gputypes.VertexFormatFloat32x4:
		n = 4
	case gputypes.VertexFormatSint32:
		n, kind = 1, 'i'
	case gputypes.VertexFormatUint32:
		n, kind = 1, 'u'
	default:
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		o := off + 4*i
		if o+4 > len(data) {
			break
		}
		bits := binary.LittleEndian.Uint32(data[o:])
		switch kind {
		case 'i':
			out[i] = float32(int32(bits))
		case 'u':
			out[i] = float32(bits)
		default:
			out[i] = math.Float32frombits(bits)
		}
	}
	return out
}

// toWindow maps a clip-space position into the viewport. Window Y grows
// upward from the bottom row.
func (d *Device) toWindow(pos mgl32.Vec4, varyings []float32) shadedVertex {
	w := pos[3]
	if w == 0 {
		w = 1e-7
	}
	vp := d.state.viewport
	nx, ny, nz := pos[0]/w, pos[1]/w, pos[2]/w
	return shadedVertex{
		x:        float32(vp.Min.X) + (nx+1)/2*float32(vp.Dx()),
		y:        float32(vp.Min.Y) + (ny+1)/2*float32(vp.Dy()),
		z:        (nz + 1) / 2,
		invW:     1 / w,
		varyings: varyings,
	}
}

// rasterize draws the primitives of verts and returns the number of
// fragments written.
func (d *Device) rasterize(u *Uniforms, p *program, topo gputypes.PrimitiveTopology, verts []shadedVertex, tgt *target) int {
	n := 0
	switch topo {
	case gputypes.PrimitiveTopologyTriangleList:
		for i := 0; i+2 < len(verts); i += 3 {
			n += d.triangle(u, p, verts[i], verts[i+1], verts[i+2], tgt)
		}
	case gputypes.PrimitiveTopologyTriangleStrip:
		for i := 0; i+2 < len(verts); i++ {
			if i%2 == 0 {
				n += d.triangle(u, p, verts[i], verts[i+1], verts[i+2], tgt)
			} else {
				n += d.triangle(u, p, verts[i+1], verts[i], verts[i+2], tgt)
			}
		}
	}
	return n
}

func edge(ax, ay, bx, by, px, py float32) float32 {
	return (bx-ax)*(py-ay) - (by-ay)*(px-ax)
}

// topLeft reports whether the directed edge a→b of a counter-clockwise
// triangle is a top or left edge. Pixel centers exactly on an edge belong
// to the triangle only for such edges, so shared edges are drawn once.
func topLeft(ax, ay, bx, by float32) bool {
	dx, dy := bx-ax, by-ay
	return dy < 0 || (dy == 0 && dx < 0)
}

func covers(e float32, topLeft bool) bool {
	return e > 0 || (e == 0 && topLeft)
}

// triangle rasterizes one triangle with pixel-center sampling. Triangles
// behind the eye are dropped rather than clipped.
func (d *Device) triangle(u *Uniforms, p *program, a, b, c shadedVertex, tgt *target) int {
	if a.invW <= 0 || b.invW <= 0 || c.invW <= 0 {
		return 0
	}
	area := edge(a.x, a.y, b.x, b.y, c.x, c.y)
	if area == 0 {
		return 0
	}
	if d.state.cull {
		front := area > 0 // counter-clockwise
		switch d.state.cullFace {
		case gputypes.CullModeBack:
			if !front {
				return 0
			}
		case gputypes.CullModeFront:
			if front {
				return 0
			}
		}
	}

	if area < 0 {
		b, c = c, b
		area = -area
	}
	tl0 := topLeft(b.x, b.y, c.x, c.y)
	tl1 := topLeft(c.x, c.y, a.x, a.y)
	tl2 := topLeft(a.x, a.y, b.x, b.y)

	clip := d.state.viewport.Intersect(image.Rect(0, 0, tgt.width, tgt.height))
	minX := max(clip.Min.X, int(math.Floor(float64(min(a.x, b.x, c.x)))))
	maxX := min(clip.Max.X-1, int(math.Ceil(float64(max(a.x, b.x, c.x)))))
	minY := max(clip.Min.Y, int(math.Floor(float64(min(a.y, b.y, c.y)))))
	maxY := min(clip.Max.Y-1, int(math.Ceil(float64(max(a.y, b.y, c.y)))))

	nv := min(len(a.varyings), len(b.varyings), len(c.varyings))
	vary := make([]float32, nv)
	written := 0
	for y := minY; y <= maxY; y++ {
		for x := minX; x <= maxX; x++ {
			px, py := float32(x)+0.5, float32(y)+0.5
			e0 := edge(b.x, b.y, c.x, c.y, px, py)
			e1 := edge(c.x, c.y, a.x, a.y, px, py)
			e2 := edge(a.x, a.y, b.x, b.y, px, py)
			if !covers(e0, tl0) || !covers(e1, tl1) || !covers(e2, tl2) {
				continue
			}
			w0, w1, w2 := e0/area, e1/area, e2/area
			z := w0*a.z + w1*b.z + w2*c.z
			if !d.depthPass(tgt, x, y, z) {
				continue
			}

			pw0, pw1, pw2 := w0*a.invW, w1*b.invW, w2*c.invW
			norm := 1 / (pw0 + pw1 + pw2)
			for i := range vary {
				vary[i] = (pw0*a.varyings[i] + pw1*b.varyings[i] + pw2*c.varyings[i]) * norm
			}

			out, discard := p.kernel.Fragment(u, vary)
			if discard {
				continue
			}
			if tgt.depth != nil && d.state.depthTest && d.state.depthWrite {
				tgt.depth.depth[y*tgt.width+x] = z
			}
			for i, t := range tgt.colors {
				if i >= len(out) || t == nil {
					break
				}
				col := out[i]
				if d.state.blend && t.blendable() {
					col = d.blendColor(col, t.load(x, y))
				}
				t.store(x, y, col)
			}
			written++
		}
	}
	return written
}

func (d *Device) depthPass(tgt *target, x, y int, z float32) bool {
	if !d.state.depthTest || tgt.depth == nil {
		return true
	}
	cur := tgt.depth.depth[y*tgt.width+x]
	switch d.state.depthFunc {
	case gputypes.CompareFunctionNever:
		return false
	case gputypes.CompareFunctionLess:
		return z < cur
	case gputypes.CompareFunctionEqual:
		return z == cur
	case gputypes.CompareFunctionLessEqual:
		return z <= cur
	case gputypes.CompareFunctionGreater:
		return z > cur
	case gputypes.CompareFunctionNotEqual:
		return z != cur
	case gputypes.CompareFunctionGreaterEqual:
		return z >= cur
	default:
		return true
	}
}

func blendFactor(f gputypes.BlendFactor, src, dst mgl32.Vec4) mgl32.Vec4 {
	switch f {
	case gputypes.BlendFactorZero:
		return mgl32.Vec4{}
	case gputypes.BlendFactorOne:
		return mgl32.Vec4{1, 1, 1, 1}
	case gputypes.BlendFactorSrc:
		return src
	case gputypes.BlendFactorOneMinusSrc:
		return mgl32.Vec4{1 - src[0], 1 - src[1], 1 - src[2], 1 - src[3]}
	case gputypes.BlendFactorSrcAlpha:
		return mgl32.Vec4{src[3], src[3], src[3], src[3]}
	case gputypes.BlendFactorOneMinusSrcAlpha:
		a := 1 - src[3]
		return mgl32.Vec4{a, a, a, a}
	case gputypes.BlendFactorDst:
		return dst
	case gputypes.BlendFactorOneMinusDst:
		return mgl32.Vec4{1 - dst[0], 1 - dst[1], 1 - dst[2], 1 - dst[3]}
	case gputypes.BlendFactorDstAlpha:
		return mgl32.Vec4{dst[3], dst[3], dst[3], dst[3]}
	case gputypes.BlendFactorOneMinusDstAlpha:
		a := 1 - dst[3]
		return mgl32.Vec4{a, a, a, a}
	default:
		return mgl32.Vec4{1, 1, 1, 1}
	}
}

func (d *Device) blendColor(src, dst mgl32.Vec4) mgl32.Vec4 {
	sf := blendFactor(d.state.blendSrc, src, dst)
	df := blendFactor(d.state.blendDst, src, dst)
	var out mgl32.Vec4
	for i := range out {
		s, t := src[i]*sf[i], dst[i]*df[i]
		switch d.state.blendOp {
		case gputypes.BlendOperationSubtract:
			out[i] = s - t
		case gputypes.BlendOperationReverseSubtract:
			out[i] = t - s
		case gputypes.BlendOperationMin:
			out[i] = min(src[i], dst[i])
		case gputypes.BlendOperationMax:
			out[i] = max(src[i], dst[i])
		default:
			out[i] = s + t
		}
	}
	return out
}
