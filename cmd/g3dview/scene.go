// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package main

import (
	"encoding/binary"
	"image"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/g3d/resource"
	"github.com/gogpu/g3d/space"
)

// cubeFaces lists the outward normal and the two in-plane axes of each face.
var cubeFaces = [6][3]mgl32.Vec3{
	{{1, 0, 0}, {0, 0, -1}, {0, 1, 0}},
	{{-1, 0, 0}, {0, 0, 1}, {0, 1, 0}},
	{{0, 1, 0}, {1, 0, 0}, {0, 0, -1}},
	{{0, -1, 0}, {1, 0, 0}, {0, 0, 1}},
	{{0, 0, 1}, {1, 0, 0}, {0, 1, 0}},
	{{0, 0, -1}, {-1, 0, 0}, {0, 1, 0}},
}

const cubeStride = 5 * 4

// cubeVertices returns the interleaved position and UV data of a unit cube
// centered at the origin, four vertices per face, and its counter-clockwise
// triangle indices.
func cubeVertices() ([]float32, []uint16) {
	vs := make([]float32, 0, 6*4*5)
	is := make([]uint16, 0, 6*6)
	corners := [4][2]float32{{-1, -1}, {1, -1}, {1, 1}, {-1, 1}}
	for f, face := range cubeFaces {
		n, u, v := face[0], face[1], face[2]
		for _, c := range corners {
			p := n.Add(u.Mul(c[0])).Add(v.Mul(c[1])).Mul(0.5)
			vs = append(vs, p[0], p[1], p[2], (c[0]+1)/2, (c[1]+1)/2)
		}
		base := uint16(4 * f)
		is = append(is, base, base+1, base+2, base, base+2, base+3)
	}
	return vs, is
}

// newCube returns indexed cube geometry with positions at location 0 and
// UVs at location 1.
func newCube(label string) *resource.Geometry {
	vs, is := cubeVertices()
	vdata := make([]byte, 4*len(vs))
	for i, v := range vs {
		binary.LittleEndian.PutUint32(vdata[4*i:], math.Float32bits(v))
	}
	idata := make([]byte, 2*len(is))
	for i, v := range is {
		binary.LittleEndian.PutUint16(idata[2*i:], v)
	}
	return &resource.Geometry{
		Label:    label,
		Topology: gputypes.PrimitiveTopologyTriangleList,
		Streams: []resource.VertexStream{{
			Buffer:   resource.NewVertexBuffer(label, vdata),
			Stride:   cubeStride,
			StepMode: gputypes.VertexStepModeVertex,
			Attributes: []gputypes.VertexAttribute{
				{Format: gputypes.VertexFormatFloat32x3, ShaderLocation: 0},
				{Format: gputypes.VertexFormatFloat32x2, Offset: 12, ShaderLocation: 1},
			},
		}},
		Index:       resource.NewIndexBuffer(label+"-index", idata),
		IndexFormat: gputypes.IndexFormatUint16,
		Count:       len(is),
	}
}

// checker returns a size×size image of cells×cells alternating squares.
func checker(size, cells int, a, b color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	cell := max(size/cells, 1)
	for y := range size {
		for x := range size {
			c := a
			if (x/cell+y/cell)%2 == 1 {
				c = b
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// orbit places a camera on a sphere around a target.
type orbit struct {
	target   mgl32.Vec3
	yaw      float32 // radians around +Y
	pitch    float32 // radians above the XZ plane
	distance float32
}

const maxPitch = math.Pi/2 - 0.01

// rotate turns the orbit by the given angles, keeping the pitch short of
// the poles.
func (o *orbit) rotate(dyaw, dpitch float32) {
	o.yaw += dyaw
	o.pitch = mgl32.Clamp(o.pitch+dpitch, -maxPitch, maxPitch)
}

// zoom scales the distance, never below 1.
func (o *orbit) zoom(factor float32) {
	o.distance = max(o.distance*factor, 1)
}

func (o *orbit) eye() mgl32.Vec3 {
	cp := float32(math.Cos(float64(o.pitch)))
	return o.target.Add(mgl32.Vec3{
		o.distance * cp * float32(math.Sin(float64(o.yaw))),
		o.distance * float32(math.Sin(float64(o.pitch))),
		o.distance * cp * float32(math.Cos(float64(o.yaw))),
	})
}

func (o *orbit) apply(c *space.Camera) {
	c.LookAt(o.eye(), o.target, mgl32.Vec3{0, 1, 0})
}
