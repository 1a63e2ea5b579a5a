//go:build linux

package main

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/lambdash/lambdash/gpu"
)

// SurfaceDescriptor implements gpu.SurfaceProvider with the X11 handles
// GLFW exposes on Linux.
func (w *previewWindow) SurfaceDescriptor() (gpu.SurfaceDescriptor, error) {
	return gpu.SurfaceDescriptor{
		DisplayHandle: uintptr(unsafe.Pointer(glfw.GetX11Display())),
		WindowHandle:  uintptr(w.window.GetX11Window()),
	}, nil
}
