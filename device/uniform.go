// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package device

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
)

// UniformType is the kind of a uniform variable.
type UniformType uint8

// Uniform types.
const (
	UniformInvalid UniformType = iota
	UniformInt
	UniformFloat
	UniformVec2
	UniformVec3
	UniformVec4
	UniformMat4
	UniformSampler
)

// String returns the GLSL-style type name.
func (t UniformType) String() string {
	switch t {
	case UniformInt:
		return "int"
	case UniformFloat:
		return "float"
	case UniformVec2:
		return "vec2"
	case UniformVec3:
		return "vec3"
	case UniformVec4:
		return "vec4"
	case UniformMat4:
		return "mat4"
	case UniformSampler:
		return "sampler2D"
	default:
		return fmt.Sprintf("UniformType(%d)", int(t))
	}
}

// Components returns the number of float components, or 1 for int and
// sampler types.
func (t UniformType) Components() int {
	switch t {
	case UniformVec2:
		return 2
	case UniformVec3:
		return 3
	case UniformVec4:
		return 4
	case UniformMat4:
		return 16
	case UniformInvalid:
		return 0
	default:
		return 1
	}
}

// Value is a uniform value tagged with its type.
//
// Values are small and passed by value. Build them with the typed
// constructors; the zero Value has type UniformInvalid.
type Value struct {
	typ UniformType
	i   int32
	f   [16]float32
}

// Int returns an int uniform value.
func Int(v int32) Value { return Value{typ: UniformInt, i: v} }

// Sampler returns a sampler uniform value naming a texture unit.
func Sampler(unit int32) Value { return Value{typ: UniformSampler, i: unit} }

// Float returns a float uniform value.
func Float(v float32) Value {
	val := Value{typ: UniformFloat}
	val.f[0] = v
	return val
}

// Vec2 returns a vec2 uniform value.
func Vec2(v mgl32.Vec2) Value {
	val := Value{typ: UniformVec2}
	copy(val.f[:], v[:])
	return val
}

// Vec3 returns a vec3 uniform value.
func Vec3(v mgl32.Vec3) Value {
	val := Value{typ: UniformVec3}
	copy(val.f[:], v[:])
	return val
}

// Vec4 returns a vec4 uniform value.
func Vec4(v mgl32.Vec4) Value {
	val := Value{typ: UniformVec4}
	copy(val.f[:], v[:])
	return val
}

// Mat4 returns a mat4 uniform value (column-major).
func Mat4(m mgl32.Mat4) Value {
	return Value{typ: UniformMat4, f: [16]float32(m)}
}

// Type returns the value's type.
func (v Value) Type() UniformType { return v.typ }

// IntValue returns the integer payload of Int and Sampler values.
func (v Value) IntValue() int32 { return v.i }

// Floats returns the float components of the value. The slice is only as
// long as the type's component count.
func (v Value) Floats() []float32 {
	switch v.typ {
	case UniformFloat, UniformVec2, UniformVec3, UniformVec4, UniformMat4:
		return v.f[:v.typ.Components()]
	default:
		return nil
	}
}

// String formats the value for logs.
func (v Value) String() string {
	switch v.typ {
	case UniformInt, UniformSampler:
		return fmt.Sprintf("%s(%d)", v.typ, v.i)
	case UniformInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("%s%v", v.typ, v.Floats())
	}
}
