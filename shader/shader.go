// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shader turns shader templates into program variants.
//
// A template holds opaque source text per shader language. A variant is the
// template compiled with a set of boolean feature flags; Cache hands out one
// *resource.Program per distinct (template, enabled flags) pair.
package shader

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gogpu/g3d/device"
)

// ErrUnknownTemplate is returned by Cache.Variant for unregistered names.
var ErrUnknownTemplate = errors.New("shader: unknown template")

// ErrNoSource is returned when a template has no source for the device's
// language.
var ErrNoSource = fmt.Errorf("shader: no source for language: %w", device.ErrUnsupported)

// Source is the text of both stages in one language.
type Source struct {
	Vertex   string
	Fragment string
}

// Template is a named shader with sources per language.
type Template struct {
	Name string

	// Flags lists the feature flags the sources understand. Languages
	// without a preprocessor (WGSL) get a constant for every listed flag.
	Flags []string

	Sources map[device.ShaderLanguage]Source
}

// Flags is a set of boolean feature flags. Only true entries are enabled.
type Flags map[string]bool

// Enabled returns the enabled flags in alphabetical order.
func (f Flags) Enabled() []string {
	out := make([]string, 0, len(f))
	for name, on := range f {
		if on {
			out = append(out, name)
		}
	}
	slices.Sort(out)
	return out
}

// Key returns the cache key of a variant: the template name followed by the
// sorted enabled flags, separated by '|'.
func Key(name string, flags Flags) string {
	enabled := flags.Enabled()
	if len(enabled) == 0 {
		return name
	}
	return name + "|" + strings.Join(enabled, "|")
}

// Inject inserts feature flag declarations into src.
//
// GLSL gets one "#define NAME 1" line per enabled flag directly after the
// #version directive (or at the top when there is none). WGSL gets one
// "const NAME: bool = ...;" line per flag in known and per enabled flag,
// prepended to the module. Kernel sources are returned unchanged.
func Inject(lang device.ShaderLanguage, src string, enabled, known []string) string {
	switch lang {
	case device.LanguageGLSL:
		return injectGLSL(src, enabled)
	case device.LanguageWGSL:
		return injectWGSL(src, enabled, known)
	default:
		return src
	}
}

func injectGLSL(src string, enabled []string) string {
	if len(enabled) == 0 {
		return src
	}
	var defs strings.Builder
	for _, f := range enabled {
		fmt.Fprintf(&defs, "#define %s 1\n", f)
	}

	trimmed := strings.TrimLeft(src, " \t\r\n")
	if !strings.HasPrefix(trimmed, "#version") {
		return defs.String() + src
	}
	lead := len(src) - len(trimmed)
	end := strings.IndexByte(trimmed, '\n')
	if end < 0 {
		return src + "\n" + defs.String()
	}
	cut := lead + end + 1
	return src[:cut] + defs.String() + src[cut:]
}

func injectWGSL(src string, enabled, known []string) string {
	on := make(map[string]bool, len(enabled))
	for _, f := range enabled {
		on[f] = true
	}
	src = resolveConditionals(src, on)

	all := slices.Concat(enabled, known)
	slices.Sort(all)
	all = slices.Compact(all)
	if len(all) == 0 {
		return src
	}
	var b strings.Builder
	for _, f := range all {
		fmt.Fprintf(&b, "const %s: bool = %t;\n", f, on[f])
	}
	b.WriteString(src)
	return b.String()
}

// resolveConditionals keeps or drops the lines between #ifdef/#ifndef,
// #else and #endif directives. WGSL has no preprocessor, so templates that
// need to change declarations per variant use these line directives.
func resolveConditionals(src string, on map[string]bool) string {
	if !strings.Contains(src, "#if") {
		return src
	}
	type frame struct{ active, parent bool }
	var stack []frame
	active := true
	var b strings.Builder
	for line := range strings.Lines(src) {
		directive := strings.Fields(line)
		if len(directive) > 0 {
			switch directive[0] {
			case "#ifdef", "#ifndef":
				want := directive[0] == "#ifdef"
				cond := len(directive) > 1 && on[directive[1]] == want
				stack = append(stack, frame{active: cond, parent: active})
				active = active && cond
				continue
			case "#else":
				if n := len(stack); n > 0 {
					stack[n-1].active = !stack[n-1].active
					active = stack[n-1].parent && stack[n-1].active
				}
				continue
			case "#endif":
				if n := len(stack); n > 0 {
					active = stack[n-1].parent
					stack = stack[:n-1]
				}
				continue
			}
		}
		if active {
			b.WriteString(line)
		}
	}
	return b.String()
}
