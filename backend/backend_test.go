// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package backend

import (
	"errors"
	"slices"
	"testing"

	"github.com/gogpu/g3d/device"
)

// stubDevice satisfies device.Device through the embedded nil interface;
// only ShaderLanguage is called by Open.
type stubDevice struct{ device.Device }

func (stubDevice) ShaderLanguage() device.ShaderLanguage { return device.LanguageKernel }

func withRegistry(t *testing.T, factories map[string]Factory) {
	t.Helper()
	registryMu.Lock()
	saved := backends
	backends = factories
	registryMu.Unlock()
	t.Cleanup(func() {
		registryMu.Lock()
		backends = saved
		registryMu.Unlock()
	})
}

func TestRegisterAndOpen(t *testing.T) {
	withRegistry(t, make(map[string]Factory))

	var got Options
	Register("test", func(opts Options) (device.Device, error) {
		got = opts
		return stubDevice{}, nil
	})
	if !IsRegistered("test") {
		t.Fatal("IsRegistered(test) = false after Register")
	}
	if _, err := Open("test", Options{Width: 3, Height: 2}); err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got.Width != 3 || got.Height != 2 {
		t.Errorf("factory options = %+v, want 3x2", got)
	}

	Unregister("test")
	if _, err := Open("test", Options{}); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Open() after Unregister error = %v, want %v", err, ErrBackendNotAvailable)
	}
}

func TestAvailableSorted(t *testing.T) {
	withRegistry(t, make(map[string]Factory))
	for _, name := range []string{BackendWGPU, BackendSoft, BackendGL} {
		Register(name, func(Options) (device.Device, error) { return stubDevice{}, nil })
	}
	want := []string{BackendGL, BackendSoft, BackendWGPU}
	if got := Available(); !slices.Equal(got, want) {
		t.Errorf("Available() = %v, want %v", got, want)
	}
}

func TestDefaultPriority(t *testing.T) {
	withRegistry(t, make(map[string]Factory))
	unavailable := errors.New("no context")
	var tried []string
	factory := func(name string, err error) Factory {
		return func(Options) (device.Device, error) {
			tried = append(tried, name)
			if err != nil {
				return nil, err
			}
			return stubDevice{}, nil
		}
	}
	Register(BackendSoft, factory(BackendSoft, nil))
	Register(BackendGL, factory(BackendGL, unavailable))
	Register(BackendWGPU, factory(BackendWGPU, ErrBackendNotAvailable))

	_, name, err := Default(Options{})
	if err != nil {
		t.Fatalf("Default() error = %v", err)
	}
	if name != BackendSoft {
		t.Errorf("Default() backend = %q, want %q", name, BackendSoft)
	}
	if want := []string{BackendWGPU, BackendGL, BackendSoft}; !slices.Equal(tried, want) {
		t.Errorf("tried = %v, want %v", tried, want)
	}
}

func TestDefaultJoinsErrors(t *testing.T) {
	withRegistry(t, make(map[string]Factory))
	if _, _, err := Default(Options{}); !errors.Is(err, ErrBackendNotAvailable) {
		t.Errorf("Default() with no backends error = %v, want %v", err, ErrBackendNotAvailable)
	}

	broken := errors.New("broken")
	Register("custom", func(Options) (device.Device, error) { return nil, broken })
	if _, _, err := Default(Options{}); !errors.Is(err, broken) {
		t.Errorf("Default() error = %v, want %v", err, broken)
	}
}
