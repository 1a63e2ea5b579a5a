// Package surface specifies the Surface Runtime boundary: the contract
// between the platform/event loop (Wayland surfaces, a preview window) and
// the playlist engine and GPU core. It is interface-only; no
// implementation lives here.
package surface

import (
	"time"

	"github.com/lambdash/lambdash/bindings"
	"github.com/lambdash/lambdash/manifest"
)

// ID identifies a live surface.
type ID string

// OutputInfo is a compositor output snapshot.
type OutputInfo struct {
	ID   string
	Name string
}

// WorkspaceSnapshot maps an output name to its currently active workspace,
// if any.
type WorkspaceSnapshot map[string]OutputInfo

// SurfaceInfo describes one live surface as delivered by the platform
// loop.
type SurfaceInfo struct {
	SurfaceID  ID
	OutputID   string
	OutputName string
	Width      int
	Height     int
}

// RenderPolicy tags the renderer's pacing discipline.
type RenderPolicy int

const (
	PolicyAnimate RenderPolicy = iota
	PolicyStill
	PolicyExport
)

// AntialiasSetting mirrors the manifest/playlist-level antialiasing
// selector.
type AntialiasSetting int

const (
	AntialiasAuto AntialiasSetting = iota
	AntialiasOff
	AntialiasCount2
	AntialiasCount4
	AntialiasCount8
)

// SwapRequest is the value-only message the playlist engine sends to the
// GPU core to begin a shader transition. It never carries a
// live GPU handle.
type SwapRequest struct {
	Target          ID
	ShaderPath      string
	ChannelBindings bindings.ChannelBindings
	Crossfade       time.Duration
	Warmup          time.Duration
	TargetFPS       float64
	Antialiasing    AntialiasSetting
	SurfaceAlpha    manifest.SurfaceAlpha
	ColorSpace      manifest.ColorSpace
	Policy          RenderPolicy
	// StillTime is the fixed shader time rendered when Policy is
	// PolicyStill.
	StillTime float64
}

// Runtime is the boundary the GPU core and playlist engine are driven
// through. Implementations deliver frame callbacks, resize events, and
// surface/workspace snapshots, and accept swap requests and shutdown.
type Runtime interface {
	// Dispatch delivers a SwapRequest to the renderer owning Target.
	Dispatch(req SwapRequest) error
	// Resize notifies the renderer owning target of a surface size change.
	Resize(target ID, width, height int) error
	// Shutdown cooperatively drains and stops the renderer owning target.
	Shutdown(target ID) error
}
