// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bake

import (
	"context"
	"fmt"
	"sync"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/resource"
)

// Result is baked texture content: one RGBA8 byte slice per mip level,
// rows bottom-up as the device expects them.
type Result struct {
	Width, Height int
	Levels        [][]byte
}

// Future is the pending outcome of a job.
type Future struct {
	label string
	done  chan struct{}
	once  sync.Once

	res *Result
	err error
}

func newFuture(label string) *Future {
	return &Future{label: label, done: make(chan struct{})}
}

// resolve stores the outcome. Only the first call has an effect.
func (f *Future) resolve(res *Result, err error) {
	f.once.Do(func() {
		f.res, f.err = res, err
		close(f.done)
	})
}

// Label returns the job label.
func (f *Future) Label() string { return f.label }

// Done is closed once the job finished.
func (f *Future) Done() <-chan struct{} { return f.done }

// Ready reports whether the job finished, without blocking.
func (f *Future) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the job finished or ctx is done.
func (f *Future) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-f.done:
		return f.res, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Result returns the outcome of a finished job. It returns ErrPending
// while the job runs.
func (f *Future) Result() (*Result, error) {
	if !f.Ready() {
		return nil, ErrPending
	}
	return f.res, f.err
}

// Upload writes the finished result into t, one SetData per mip level the
// texture has. It must run on the render goroutine.
func (f *Future) Upload(ctx *device.Context, t *resource.Texture) error {
	res, err := f.Result()
	if err != nil {
		return fmt.Errorf("bake %q: %w", f.label, err)
	}
	if res == nil {
		return fmt.Errorf("bake %q: %w", f.label, ErrNoResult)
	}
	if w, h := t.Size(); w != res.Width || h != res.Height {
		return fmt.Errorf("bake %q: result is %dx%d, texture %q is %dx%d: %w",
			f.label, res.Width, res.Height, t.Label(), w, h, device.ErrOutOfBounds)
	}
	for level, data := range res.Levels[:min(len(res.Levels), t.MipLevels())] {
		if err := t.SetData(ctx, level, data); err != nil {
			return fmt.Errorf("bake %q: %w", f.label, err)
		}
	}
	return nil
}
