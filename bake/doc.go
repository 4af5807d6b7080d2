// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package bake prepares texture content off the render goroutine.
//
// A Baker runs jobs on a bounded set of worker goroutines. Each job works
// on its own CPU-side copy of the pixels and delivers a Result through a
// Future that resolves exactly once. The render goroutine polls futures
// (Future.Ready) and uploads finished results with Future.Upload, so no
// device call ever happens on a worker.
//
// In-flight jobs cannot be cancelled; Close waits for them.
package bake
