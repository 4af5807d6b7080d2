// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package bake

import (
	"context"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/gogpu/g3d/internal/logging"
)

var (
	// ErrClosed is reported by jobs submitted after Close.
	ErrClosed = errors.New("bake: baker closed")

	// ErrPending is returned by Future.Result while the job runs.
	ErrPending = errors.New("bake: job pending")

	// ErrNoResult is returned by Future.Upload for a job that finished
	// without an error or a result.
	ErrNoResult = errors.New("bake: job returned no result")
)

// Job computes a Result on a worker goroutine.
type Job func() (*Result, error)

// Baker runs jobs with bounded parallelism.
type Baker struct {
	sem *semaphore.Weighted
	wg  sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewBaker returns a Baker running at most workers jobs at a time. Zero or
// negative selects runtime.GOMAXPROCS(0).
func NewBaker(workers int) *Baker {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Baker{sem: semaphore.NewWeighted(int64(workers))}
}

// Submit schedules job and returns its Future. A panicking job resolves
// its future with an error.
func (b *Baker) Submit(label string, job Job) *Future {
	f := newFuture(label)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		f.resolve(nil, ErrClosed)
		return f
	}
	b.wg.Add(1)
	b.mu.Unlock()

	go func() {
		defer b.wg.Done()
		// Acquire cannot fail with a background context.
		_ = b.sem.Acquire(context.Background(), 1)
		defer b.sem.Release(1)
		f.resolve(run(label, job))
	}()
	return f
}

func run(label string, job Job) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("bake %q: panic: %v", label, r)
		}
	}()
	start := time.Now()
	res, err = job()
	logging.Logger().Debug("bake: job done", "label", label, "elapsed", time.Since(start), "err", err)
	return res, err
}

// Mipmaps schedules the mip chain of img. levels limits the chain length;
// zero or negative bakes the full chain down to 1×1.
func (b *Baker) Mipmaps(label string, img image.Image, levels int) *Future {
	return b.Submit(label, func() (*Result, error) {
		return MipChain(img, levels), nil
	})
}

// Close stops accepting jobs and waits for the submitted ones to finish.
func (b *Baker) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.wg.Wait()
}
