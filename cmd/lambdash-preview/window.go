package main

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

// previewWindow owns the GLFW window the preview binary renders into. It
// is the only place in lambdash that touches a windowing library; the
// renderer sees it through gpu.SurfaceProvider and the mouse/keyboard
// accessors below. The window is created with no client API: presentation
// goes through the wgpu surface, not a GL context.
type previewWindow struct {
	window *glfw.Window

	skipRequested bool
}

func newPreviewWindow(width, height int, title string) (*previewWindow, error) {
	if err := glfw.Init(); err != nil {
		return nil, err
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, err
	}

	w := &previewWindow{window: win}
	win.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeySpace && action == glfw.Press {
			w.skipRequested = true
		}
	})
	return w, nil
}

func (w *previewWindow) Shutdown() {
	glfw.Terminate()
}

func (w *previewWindow) ShouldClose() bool {
	return w.window.ShouldClose()
}

// Poll pumps platform events and reports whether the user hit spacebar
// since the last call, which advances the playlist.
func (w *previewWindow) Poll() (advance bool) {
	glfw.PollEvents()
	advance = w.skipRequested
	w.skipRequested = false
	return advance
}

// PixelSize implements gpu.SurfaceProvider.
func (w *previewWindow) PixelSize() (uint32, uint32) {
	fbw, fbh := w.window.GetFramebufferSize()
	return uint32(fbw), uint32(fbh)
}

// MouseUniform reports the iMouse vector: xy is the current cursor
// position; zw repeats the current position while the left button is held
// and is -1 while it is up. The position where the button went down is
// not tracked.
func (w *previewWindow) MouseUniform() [4]float32 {
	x, y := w.window.GetCursorPos()
	_, fbh := w.window.GetFramebufferSize()
	my := float32(fbh) - float32(y)

	pressed := w.window.GetMouseButton(glfw.MouseButtonLeft) == glfw.Press
	if pressed {
		return [4]float32{float32(x), my, float32(x), my}
	}
	return [4]float32{float32(x), my, -1, -1}
}
