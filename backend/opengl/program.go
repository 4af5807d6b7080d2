// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package opengl

import (
	"fmt"
	"strings"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/gogpu/g3d/device"
)

type program struct {
	label    string
	uniforms []device.UniformInfo
	blocks   []device.UniformBlockInfo
}

func compileShader(kind uint32, stage, label, src string) (uint32, error) {
	shader := gl.CreateShader(kind)
	csrc, free := gl.Strs(src + "\x00")
	gl.ShaderSource(shader, 1, csrc, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		log := shaderLog(shader)
		gl.DeleteShader(shader)
		return 0, fmt.Errorf("gl: %s shader of %q: %s: %w", stage, label, log, device.ErrCompile)
	}
	return shader, nil
}

func shaderLog(shader uint32) string {
	var n int32
	gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &n)
	if n <= 1 {
		return "no log"
	}
	buf := make([]uint8, n)
	gl.GetShaderInfoLog(shader, n, nil, &buf[0])
	return strings.TrimRight(string(buf), "\x00\n")
}

func programLog(prog uint32) string {
	var n int32
	gl.GetProgramiv(prog, gl.INFO_LOG_LENGTH, &n)
	if n <= 1 {
		return "no log"
	}
	buf := make([]uint8, n)
	gl.GetProgramInfoLog(prog, n, nil, &buf[0])
	return strings.TrimRight(string(buf), "\x00\n")
}

// linkProgram compiles both stages and links them. The shader objects are
// released once linked.
func linkProgram(desc *device.ProgramDescriptor) (uint32, error) {
	vs, err := compileShader(gl.VERTEX_SHADER, "vertex", desc.Label, desc.Vertex)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(gl.FRAGMENT_SHADER, "fragment", desc.Label, desc.Fragment)
	if err != nil {
		return 0, err
	}
	defer gl.DeleteShader(fs)

	prog := gl.CreateProgram()
	gl.AttachShader(prog, vs)
	gl.AttachShader(prog, fs)
	gl.LinkProgram(prog)
	gl.DetachShader(prog, vs)
	gl.DetachShader(prog, fs)

	var status int32
	gl.GetProgramiv(prog, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		log := programLog(prog)
		gl.DeleteProgram(prog)
		return 0, fmt.Errorf("gl: link %q: %s: %w", desc.Label, log, device.ErrLink)
	}
	return prog, nil
}

// reflectProgram lists the active uniforms and uniform blocks.
func reflectProgram(prog uint32, label string) *program {
	p := &program{label: label}

	var count, maxLen int32
	gl.GetProgramiv(prog, gl.ACTIVE_UNIFORMS, &count)
	gl.GetProgramiv(prog, gl.ACTIVE_UNIFORM_MAX_LENGTH, &maxLen)
	name := make([]uint8, max(maxLen, 1))
	for i := range uint32(count) {
		var length, size int32
		var xtype uint32
		gl.GetActiveUniform(prog, i, int32(len(name)), &length, &size, &xtype, &name[0])
		uname := strings.TrimSuffix(string(name[:length]), "[0]")

		var block int32
		gl.GetActiveUniformsiv(prog, 1, &i, gl.UNIFORM_BLOCK_INDEX, &block)
		loc := int32(-1)
		if block < 0 {
			cname, free := gl.Strs(uname + "\x00")
			loc = gl.GetUniformLocation(prog, *cname)
			free()
		}
		p.uniforms = append(p.uniforms, device.UniformInfo{
			Name:     uname,
			Type:     uniformType(xtype),
			Location: loc,
			Block:    block,
		})
	}

	var blocks int32
	gl.GetProgramiv(prog, gl.ACTIVE_UNIFORM_BLOCKS, &blocks)
	gl.GetProgramiv(prog, gl.ACTIVE_UNIFORM_BLOCK_MAX_NAME_LENGTH, &maxLen)
	name = make([]uint8, max(maxLen, 1))
	for i := range uint32(blocks) {
		var length, size int32
		gl.GetActiveUniformBlockName(prog, i, int32(len(name)), &length, &name[0])
		gl.GetActiveUniformBlockiv(prog, i, gl.UNIFORM_BLOCK_DATA_SIZE, &size)
		p.blocks = append(p.blocks, device.UniformBlockInfo{
			Name:  string(name[:length]),
			Index: i,
			Size:  int(size),
		})
	}
	return p
}
