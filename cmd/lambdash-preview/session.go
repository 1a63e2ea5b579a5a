package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/lambdash/lambdash/bindings"
	"github.com/lambdash/lambdash/glsl"
	"github.com/lambdash/lambdash/gpu"
	"github.com/lambdash/lambdash/lambdasherr"
	"github.com/lambdash/lambdash/surface"
)

// session owns the preview window's GPU state: the backend, the
// renderer, and the vsync/present bookkeeping around cross-fades.
// Exactly one goroutine (the main, OS-locked one) drives it.
type session struct {
	window *previewWindow
	log    zerolog.Logger

	backend  *gpu.Backend
	renderer *gpu.Renderer
	layout   bindings.LayoutSignature

	curve       gpu.FadeCurve
	vsyncMode   gpu.VsyncMode
	renderScale float32
	fillMethod  gpu.FillMethod

	targetFPS      float64
	policy         surface.RenderPolicy
	stillTime      float64
	wasCrossfading bool
}

type sessionOptions struct {
	curve       gpu.FadeCurve
	vsyncMode   gpu.VsyncMode
	renderScale float32
	fillMethod  gpu.FillMethod
	power       gpu.PowerPreference
	latency     uint32
}

// newSession builds the backend and initial renderer from the first
// resolved swap request; later requests go through apply.
func newSession(window *previewWindow, first surface.SwapRequest, opts sessionOptions, logger zerolog.Logger) (*session, error) {
	backend, err := gpu.NewBackend(window, gpu.BackendOptions{
		Antialiasing:        antialiasing(first.Antialiasing),
		ColorSpace:          first.ColorSpace,
		SurfaceAlpha:        first.SurfaceAlpha,
		VsyncMode:           opts.vsyncMode,
		Power:               opts.power,
		DesiredFrameLatency: opts.latency,
	})
	if err != nil {
		return nil, err
	}

	s := &session{
		window:      window,
		log:         logger,
		backend:     backend,
		curve:       opts.curve,
		vsyncMode:   opts.vsyncMode,
		renderScale: opts.renderScale,
		fillMethod:  opts.fillMethod,
	}

	pipeline, err := s.compilePipeline(first.ShaderPath, first.ChannelBindings)
	if err != nil {
		return nil, err
	}

	width, height := backend.Size()
	s.layout = first.ChannelBindings.LayoutSignature()
	s.renderer = gpu.NewRenderer(pipeline, s.layout, width, height, opts.renderScale, opts.fillMethod, opts.curve, opts.vsyncMode, time.Now())
	s.targetFPS = first.TargetFPS
	s.policy = first.Policy
	s.stillTime = first.StillTime
	return s, nil
}

func (s *session) compilePipeline(shaderPath string, cb bindings.ChannelBindings) (*gpu.WGPUPipeline, error) {
	raw, err := os.ReadFile(shaderPath)
	if err != nil {
		return nil, fmt.Errorf("read shader %s: %w", shaderPath, err)
	}

	fragment, err := glsl.Compile(glsl.WrapRaw(string(raw)), glsl.StageFragment, glsl.BackendSPIRV)
	if err != nil {
		return nil, err
	}
	vertex, err := glsl.Compile(glsl.VertexShader, glsl.StageVertex, glsl.BackendSPIRV)
	if err != nil {
		return nil, err
	}

	return gpu.NewPipeline(s.backend, vertex, fragment, cb)
}

// Dispatch implements surface.Runtime: compile the requested shader and
// stage it as the renderer's pending pipeline. A layout-signature change
// cannot cross-fade; the renderer is rebuilt around the new pipeline with
// a hard cut's LayoutSignatureMismatch policy.
func (s *session) Dispatch(req surface.SwapRequest) error {
	pipeline, err := s.compilePipeline(req.ShaderPath, req.ChannelBindings)
	if err != nil {
		return err
	}

	now := time.Now()
	newLayout := req.ChannelBindings.LayoutSignature()
	err = s.renderer.SetShader(pipeline, newLayout, req.Crossfade, req.Warmup, now, s.curve)
	if lambdasherr.Is(err, lambdasherr.LayoutSignatureMismatch) {
		s.log.Info().Str("shader", req.ShaderPath).Msg("channel layout changed; rebuilding renderer")
		width, height := s.backend.Size()
		s.layout = newLayout
		s.renderer = gpu.NewRenderer(pipeline, newLayout, width, height, s.renderScale, s.fillMethod, s.curve, s.vsyncMode, now)
		err = nil
	}
	if err != nil {
		return err
	}

	s.targetFPS = req.TargetFPS
	s.policy = req.Policy
	s.stillTime = req.StillTime
	return nil
}

// Resize implements surface.Runtime.
func (s *session) Resize(_ surface.ID, width, height int) error {
	if err := s.backend.Resize(uint32(width), uint32(height)); err != nil {
		return err
	}
	s.renderer.Resize(uint32(width), uint32(height))
	return nil
}

// Shutdown implements surface.Runtime.
func (s *session) Shutdown(_ surface.ID) error {
	s.backend.Close()
	return nil
}

// Frame renders one frame. Lost or outdated surfaces are recovered by
// reconfiguring; the returned fatal flag is set for out-of-memory and
// when that reconfigure fails.
func (s *session) Frame(now time.Time) (fatal bool) {
	s.toggleVsync()

	target, err := s.backend.BeginFrame()
	if err != nil {
		return s.handleSurfaceError(err)
	}

	var sample *gpu.TimeSample
	if s.policy == surface.PolicyStill {
		sample = &gpu.TimeSample{Seconds: s.stillTime, FrameIndex: 0}
	}

	if err := s.renderer.RenderFrame(target, s.window.MouseUniform(), sample, now); err != nil {
		return s.handleSurfaceError(err)
	}
	return false
}

func (s *session) handleSurfaceError(err error) (fatal bool) {
	switch {
	case lambdasherr.Is(err, lambdasherr.SurfaceOutOfMemory):
		s.log.Error().Err(err).Msg("surface out of memory; shutting down")
		return true
	case lambdasherr.Is(err, lambdasherr.SurfaceLost), lambdasherr.Is(err, lambdasherr.SurfaceOutdated):
		if rerr := s.backend.Reconfigure(); rerr != nil {
			s.log.Error().Err(rerr).Msg("surface reconfigure failed")
			return true
		}
		return false
	default:
		s.log.Warn().Err(err).Msg("frame error; retrying")
		return false
	}
}

// toggleVsync flips the present mode while a cross-fade is in flight when
// vsync mode is Crossfade: a non-tearing low-latency mode during the
// blend, Fifo afterwards.
func (s *session) toggleVsync() {
	if s.vsyncMode != gpu.VsyncCrossfade {
		return
	}
	crossfading := s.renderer.IsCrossfading()
	if crossfading == s.wasCrossfading {
		return
	}
	s.wasCrossfading = crossfading

	mode := gpu.PresentFifo
	if crossfading {
		mode = gpu.PresentMailbox
	}
	if err := s.backend.SetPresentMode(mode); err != nil {
		s.log.Warn().Err(err).Msg("present mode toggle failed")
	}
}

// FrameBudget reports the pacing interval for the active render policy: a
// still surface idles at 1 fps, an explicit target fps is honored, and
// free-run paces at the display's cadence via Fifo presentation.
func (s *session) FrameBudget() time.Duration {
	if s.policy == surface.PolicyStill {
		return time.Second
	}
	if s.targetFPS > 0 {
		return time.Duration(float64(time.Second) / s.targetFPS)
	}
	return 0
}

func antialiasing(setting surface.AntialiasSetting) gpu.Antialiasing {
	switch setting {
	case surface.AntialiasOff:
		return gpu.Antialiasing{Off: true}
	case surface.AntialiasCount2:
		return gpu.Antialiasing{Samples: 2}
	case surface.AntialiasCount4:
		return gpu.Antialiasing{Samples: 4}
	case surface.AntialiasCount8:
		return gpu.Antialiasing{Samples: 8}
	default:
		return gpu.Antialiasing{Auto: true}
	}
}
