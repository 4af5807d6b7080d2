// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package shader

import (
	"fmt"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
	"github.com/gogpu/g3d/resource"
)

// Cache deduplicates program variants.
//
// Variant returns described programs; they are compiled when a pipeline
// first realizes them. Requests with the same template and the same
// enabled flags, in any order, return the same *resource.Program.
type Cache struct {
	lang      device.ShaderLanguage
	templates map[string]Template
	programs  map[string]*resource.Program
}

// NewCache returns a cache producing programs in lang.
func NewCache(lang device.ShaderLanguage) *Cache {
	c := &Cache{
		lang:      lang,
		templates: make(map[string]Template),
		programs:  make(map[string]*resource.Program),
	}
	for _, t := range Builtins() {
		c.Register(t)
	}
	return c
}

// Language returns the language programs are produced in.
func (c *Cache) Language() device.ShaderLanguage { return c.lang }

// Register adds or replaces a template. Variants already handed out are
// not affected.
func (c *Cache) Register(t Template) {
	c.templates[t.Name] = t
}

// Variant returns the program for template name with flags.
func (c *Cache) Variant(name string, flags Flags) (*resource.Program, error) {
	key := Key(name, flags)
	if p, ok := c.programs[key]; ok {
		return p, nil
	}

	t, ok := c.templates[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTemplate, name)
	}
	enabled := flags.Enabled()
	desc := device.ProgramDescriptor{
		Label:    key,
		Name:     name,
		Defines:  enabled,
		Language: c.lang,
	}
	if c.lang != device.LanguageKernel {
		src, ok := t.Sources[c.lang]
		if !ok {
			return nil, fmt.Errorf("template %q (%v): %w", name, c.lang, ErrNoSource)
		}
		desc.Vertex = Inject(c.lang, src.Vertex, enabled, t.Flags)
		desc.Fragment = Inject(c.lang, src.Fragment, enabled, t.Flags)
	}

	p := resource.NewProgram(desc)
	c.programs[key] = p
	logging.Logger().Debug("shader: variant created", "key", key)
	return p, nil
}

// Len returns the number of cached variants.
func (c *Cache) Len() int { return len(c.programs) }

// Purge destroys every cached program and empties the cache.
func (c *Cache) Purge(ctx *device.Context) {
	for key, p := range c.programs {
		p.Destroy(ctx)
		delete(c.programs, key)
	}
}
