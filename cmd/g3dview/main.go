// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Command g3dview opens a window and renders a small scene of cubes with
// the g3d engine on OpenGL. Clicking a cube selects it; dragging orbits the
// camera and the scroll wheel zooms.
//
// Usage:
//
//	g3dview [--config g3d.toml] [--width 1280] [--height 720]
package main

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/spf13/cobra"

	"github.com/gogpu/g3d"
	"github.com/gogpu/g3d/backend/opengl"
	"github.com/gogpu/g3d/device"
	"github.com/gogpu/g3d/pick"
	"github.com/gogpu/g3d/resource"
)

// orbitSpeed is the camera rotation in radians per dragged pixel.
const orbitSpeed = 0.01

var (
	configPath string
	width      int
	height     int
)

func init() {
	// GLFW event handling and the GL context must stay on the main thread.
	runtime.LockOSThread()
}

func main() {
	os.Exit(execute())
}

func execute() int {
	rootCmd := &cobra.Command{
		Use:          "g3dview",
		Short:        "Render a pickable cube scene with g3d on OpenGL",
		SilenceUsage: true,
		RunE:         run,
	}
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "TOML configuration file")
	rootCmd.Flags().IntVar(&width, "width", 0, "window width, overrides the configuration")
	rootCmd.Flags().IntVar(&height, "height", 0, "window height, overrides the configuration")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}

func loadConfig() (g3d.Config, error) {
	cfg := g3d.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = g3d.LoadConfig(configPath); err != nil {
			return cfg, err
		}
	}
	if width > 0 {
		cfg.Width = width
	}
	if height > 0 {
		cfg.Height = height
	}
	if cfg.Backend != "" && cfg.Backend != "gl" {
		return cfg, fmt.Errorf("g3dview: backend %q: only gl can present to a window", cfg.Backend)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("g3dview: init glfw: %w", err)
	}
	defer glfw.Terminate()

	glfw.WindowHint(glfw.ContextVersionMajor, 3)
	glfw.WindowHint(glfw.ContextVersionMinor, 3)
	glfw.WindowHint(glfw.OpenGLProfile, glfw.OpenGLCoreProfile)
	glfw.WindowHint(glfw.OpenGLForwardCompatible, glfw.True)
	window, err := glfw.CreateWindow(cfg.Width, cfg.Height, cfg.Title, nil, nil)
	if err != nil {
		return fmt.Errorf("g3dview: create window: %w", err)
	}
	defer window.Destroy()
	window.MakeContextCurrent()
	glfw.SwapInterval(1)

	dev, err := opengl.New()
	if err != nil {
		return err
	}
	defer dev.Destroy()

	fbw, fbh := window.GetFramebufferSize()
	e, err := g3d.New(fbw, fbh, append(cfg.Options(), g3d.WithDevice(dev))...)
	if err != nil {
		return err
	}
	defer e.Close()

	v := &viewer{
		engine: e,
		window: window,
		orbit:  orbit{yaw: 0.6, pitch: 0.4, distance: 6},
	}
	if err := v.populate(); err != nil {
		return err
	}
	v.bind()
	return v.loop(cmd)
}

// viewer owns the scene and translates window events into engine input.
type viewer struct {
	engine *g3d.Engine
	window *glfw.Window
	orbit  orbit

	meshes  []*g3d.Mesh
	colors  map[*g3d.Mesh]mgl32.Vec4
	pressed bool
	lastX   float64
	lastY   float64
}

// populate adds a 3×3 grid of cubes, one of them textured and two
// transparent.
func (v *viewer) populate() error {
	v.colors = make(map[*g3d.Mesh]mgl32.Vec4)
	cube := newCube("cube")

	tex := resource.NewTexture(device.TextureDescriptor{
		Label:     "checker",
		Width:     64,
		Height:    64,
		MipLevels: 7,
		Format:    gputypes.TextureFormatRGBA8Unorm,
	})
	img := checker(64, 8, color.RGBA{240, 240, 240, 255}, color.RGBA{40, 40, 40, 255})
	v.engine.Bake(tex, img, func(err error) {
		if err == nil {
			g3d.Logger().Info("g3dview: checker texture ready")
		}
	})

	for i := range 9 {
		x, z := float32(i%3-1)*1.6, float32(i/3-1)*1.6
		m := g3d.NewMesh(fmt.Sprintf("cube-%d", i), cube)
		m.SetPosition(x, 0, z)
		m.Color = mgl32.Vec4{0.3 + 0.35*float32(i%3), 0.3 + 0.35*float32(i/3), 0.8, 1}
		switch i {
		case 4:
			m.Texture = tex
			m.Color = mgl32.Vec4{1, 1, 1, 1}
		case 2, 6:
			m.Transparent = true
			m.Color[3] = 0.5
		}
		if err := v.engine.Add(m); err != nil {
			return err
		}
		v.meshes = append(v.meshes, m)
		v.colors[m] = m.Color
	}

	if p := v.engine.Picker(); p != nil {
		p.OnPicked(v.onPicked)
	}
	v.orbit.apply(v.engine.Camera())
	return nil
}

func (v *viewer) onPicked(prev, next pick.Pickable) {
	if m, ok := prev.(*g3d.Mesh); ok {
		m.Color = v.colors[m]
	}
	m, ok := next.(*g3d.Mesh)
	if !ok {
		g3d.Logger().Info("g3dview: selection cleared")
		return
	}
	m.Color = mgl32.Vec4{1, 0.8, 0.1, v.colors[m][3]}
	g3d.Logger().Info("g3dview: picked", "mesh", m.Name)
}

func (v *viewer) bind() {
	v.window.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	v.window.SetKeyCallback(v.onKey)
	v.window.SetMouseButtonCallback(v.onMouseButton)
	v.window.SetCursorPosCallback(v.onCursorPos)
	v.window.SetScrollCallback(v.onScroll)
	v.window.SetFramebufferSizeCallback(v.onFramebufferSize)
}

// toPixels converts window coordinates into framebuffer pixels.
func (v *viewer) toPixels(x, y float64) (int, int) {
	ww, wh := v.window.GetSize()
	fw, fh := v.window.GetFramebufferSize()
	if ww == 0 || wh == 0 {
		return 0, 0
	}
	return int(x * float64(fw) / float64(ww)), int(y * float64(fh) / float64(wh))
}

func (v *viewer) onKey(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	if action != glfw.Press {
		return
	}
	switch key {
	case glfw.KeyEscape:
		w.SetShouldClose(true)
	case glfw.KeyH:
		if p := v.engine.Picker(); p != nil {
			if m, ok := p.Selected().(*g3d.Mesh); ok {
				m.SetVisible(!m.Visible())
			}
		}
	case glfw.KeyC:
		if p := v.engine.Picker(); p != nil {
			p.Clear()
		}
	}
}

func (v *viewer) onMouseButton(w *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	if button != glfw.MouseButtonLeft {
		return
	}
	x, y := w.GetCursorPos()
	px, py := v.toPixels(x, y)
	switch action {
	case glfw.Press:
		v.pressed = true
		v.lastX, v.lastY = x, y
		v.engine.PointerDown(px, py)
	case glfw.Release:
		v.pressed = false
		v.engine.PointerUp(px, py)
	}
}

func (v *viewer) onCursorPos(_ *glfw.Window, x, y float64) {
	if !v.pressed {
		return
	}
	v.engine.PointerMove(v.toPixels(x, y))
	if v.engine.Dragging() {
		v.orbit.rotate(-float32(x-v.lastX)*orbitSpeed, float32(y-v.lastY)*orbitSpeed)
		v.orbit.apply(v.engine.Camera())
	}
	v.lastX, v.lastY = x, y
}

func (v *viewer) onScroll(_ *glfw.Window, _, dy float64) {
	v.orbit.zoom(float32(1 - 0.1*dy))
	v.orbit.apply(v.engine.Camera())
}

func (v *viewer) onFramebufferSize(_ *glfw.Window, w, h int) {
	// Minimized windows report a zero framebuffer.
	if w == 0 || h == 0 {
		return
	}
	if err := v.engine.Resize(w, h); err != nil {
		g3d.Logger().Warn("g3dview: resize", "err", err)
	}
}

func (v *viewer) loop(cmd *cobra.Command) error {
	last := time.Now()
	for !v.window.ShouldClose() {
		if cmd.Context().Err() != nil {
			return nil
		}
		glfw.PollEvents()

		now := time.Now()
		v.engine.Update(now.Sub(last))
		last = now

		if err := v.engine.Render(); err != nil {
			if device.IsVital(err) {
				return err
			}
			g3d.Logger().Warn("g3dview: frame", "err", err)
		}
		v.window.SwapBuffers()
	}
	return nil
}
