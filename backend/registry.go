// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/internal/logging"
)

// registry holds registered backends.
var (
	registryMu sync.RWMutex
	backends   = make(map[string]Factory)
	// Priority order for Default (first that opens wins).
	backendPriority = []string{BackendWGPU, BackendGL, BackendSoft}
)

// Register registers a backend factory with the given name.
// This is typically called from init() functions in backend packages.
// If a backend with the same name is already registered, it is replaced.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	backends[name] = factory
}

// Unregister removes a backend from the registry.
// This is useful for testing.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// Available returns the registered backend names, sorted.
func Available() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// IsRegistered checks if a backend with the given name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

func lookup(name string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := backends[name]
	return f, ok
}

// Open opens a device with the named backend.
func Open(name string, opts Options) (device.Device, error) {
	factory, ok := lookup(name)
	if !ok {
		return nil, fmt.Errorf("backend %q: %w", name, ErrBackendNotAvailable)
	}
	dev, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("backend %q: %w", name, err)
	}
	logging.Logger().Info("backend: device opened", "backend", name,
		"language", dev.ShaderLanguage(), "width", opts.Width, "height", opts.Height)
	return dev, nil
}

// Default opens the best available backend. Backends are tried in priority
// order (wgpu, gl, soft), then any other registered backend by name. The
// errors of every failed attempt are joined when none opens.
func Default(opts Options) (device.Device, string, error) {
	order := slices.Clone(backendPriority)
	for _, name := range Available() {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}

	var errs []error
	for _, name := range order {
		if !IsRegistered(name) {
			continue
		}
		dev, err := Open(name, opts)
		if err == nil {
			return dev, name, nil
		}
		logging.Logger().Debug("backend: skipped", "backend", name, "err", err)
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, "", ErrBackendNotAvailable
	}
	return nil, "", errors.Join(errs...)
}
