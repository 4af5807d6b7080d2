// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package pipeline

import (
	"cmp"
	"fmt"
	"image"
	"slices"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

// Renderer owns the pipelines of a frame and executes them in order:
// opaque pipelines by descending priority (ties in registration order),
// then transparent pipelines in registration order, then the pipelines
// registered with RenderOnce.
//
// Renderer is driven from a single goroutine.
type Renderer struct {
	ctx    *device.Context
	screen image.Rectangle

	opaque      []*Pipeline
	transparent []*Pipeline
	once        []*Pipeline
	running     []*Pipeline // one-shot pipelines of the frame in progress

	seq    uint64
	frames uint64
}

// NewRenderer returns a renderer drawing through ctx onto a screen of the
// given size.
func NewRenderer(ctx *device.Context, width, height int) *Renderer {
	return &Renderer{ctx: ctx, screen: image.Rect(0, 0, width, height)}
}

// Context returns the device context.
func (r *Renderer) Context() *device.Context { return r.ctx }

// Resize sets the size of the default framebuffer.
func (r *Renderer) Resize(width, height int) {
	r.screen = image.Rect(0, 0, width, height)
}

// Screen returns the bounds of the default framebuffer.
func (r *Renderer) Screen() image.Rectangle { return r.screen }

// Frames returns the number of completed Render calls.
func (r *Renderer) Frames() uint64 { return r.frames }

func (r *Renderer) stamp(p *Pipeline) {
	r.seq++
	p.seq = r.seq
}

func byPriority(a, b *Pipeline) int {
	if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}

// Add registers an opaque pipeline executed every frame.
func (r *Renderer) Add(p *Pipeline) {
	r.stamp(p)
	r.opaque = append(r.opaque, p)
	slices.SortFunc(r.opaque, byPriority)
}

// AddTransparent registers a pipeline executed every frame after all
// opaque pipelines, in registration order.
func (r *Renderer) AddTransparent(p *Pipeline) {
	r.stamp(p)
	r.transparent = append(r.transparent, p)
}

// RenderOnce registers a pipeline for the next Render only. It runs after
// the persistent pipelines and is dropped afterwards. Registering during
// Render defers it to the following frame.
func (r *Renderer) RenderOnce(p *Pipeline) {
	r.stamp(p)
	r.once = append(r.once, p)
}

// Scheduled reports whether the one-shot p is waiting for, or taking part
// in, a Render.
func (r *Renderer) Scheduled(p *Pipeline) bool {
	return slices.Contains(r.once, p) || slices.Contains(r.running, p)
}

// Remove unregisters p from every list and reports whether it was found.
func (r *Renderer) Remove(p *Pipeline) bool {
	found := false
	for _, list := range []*[]*Pipeline{&r.opaque, &r.transparent, &r.once} {
		if i := slices.Index(*list, p); i >= 0 {
			*list = slices.Delete(*list, i, i+1)
			found = true
		}
	}
	return found
}

// Pipelines returns the pipelines the next Render would execute, in order.
func (r *Renderer) Pipelines() []*Pipeline {
	opaque := slices.Clone(r.opaque)
	slices.SortFunc(opaque, byPriority)
	return slices.Concat(opaque, r.transparent, r.once)
}

// Render realizes and executes every pipeline for one frame.
//
// A Vital error stops the frame and is returned wrapped with the pipeline
// label. One-shot pipelines the failed frame did not reach stay scheduled
// for the next Render. Other errors are logged and the frame continues.
func (r *Renderer) Render() error {
	// Priorities may have changed since registration.
	slices.SortFunc(r.opaque, byPriority)
	frame := slices.Concat(r.opaque, r.transparent)
	first := len(frame)
	r.running = r.once
	r.once = nil
	frame = append(frame, r.running...)
	defer func() { r.running = nil }()

	log := logging.Logger()
	for i, p := range frame {
		err := p.Realize(r.ctx)
		if err == nil {
			err = p.Execute(r.ctx, r.screen)
		}
		if err == nil {
			continue
		}
		err = fmt.Errorf("pipeline %q: %w", p.Label, err)
		if device.IsVital(err) {
			// Registrations made during this frame keep their place after
			// the pipelines carried over.
			r.once = append(slices.Clone(frame[max(i+1, first):]), r.once...)
			return err
		}
		log.Warn("pipeline: pass failed", "err", err)
	}
	r.frames++
	if err := r.ctx.Device().Flush(); err != nil {
		return fmt.Errorf("pipeline: flush: %w", err)
	}
	return nil
}
