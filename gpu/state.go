package gpu

import (
	"time"

	"github.com/lambdash/lambdash/bindings"
	"github.com/lambdash/lambdash/lambdasherr"
)

// hardCutThreshold is the crossfade duration below which a shader swap is
// applied immediately with no blend.
const hardCutThreshold = 16 * time.Millisecond

// Pipeline is a compiled shader ready to draw: a fragment program bound to
// its channel resources. The real implementation wraps a wgpu render
// pipeline and its channel textures/samplers; tests substitute a fake.
type Pipeline interface {
	// ChannelResolution reports the texture size bound to a channel slot,
	// for the iChannelResolution uniform.
	ChannelResolution(channel int) (width, height float32)
	HasKeyboardChannel() bool
}

// PendingPipeline is a shader swap in flight: compiled but still warming
// up before it starts blending in.
type PendingPipeline struct {
	Pipeline  Pipeline
	WarmupEnd time.Time
	Crossfade time.Duration
	Warmed    bool
}

// DrawTarget receives encoded draws for one frame. The real implementation
// owns the wgpu command encoder, staging-buffer uniform upload, and MSAA
// resolve target; tests substitute a fake that just records calls.
type DrawTarget interface {
	// EncodeDraw uploads uniforms and issues one draw (or, when prewarm is
	// true, uploads and binds but skips the draw call itself). clearFirst
	// selects LoadOp::Clear vs LoadOp::Load for the color attachment.
	EncodeDraw(pipeline Pipeline, uniforms Uniforms, clearFirst, prewarm bool) error
	Submit() error
}

// Renderer is the GPU rendering core: it holds the current
// and (optionally) previous compiled pipelines, a pending swap, the
// cross-fade envelope, and the per-frame uniform block.
type Renderer struct {
	current  Pipeline
	previous Pipeline
	pending  *PendingPipeline
	fade     *FadeEnvelope

	uniforms       Uniforms
	channelLayout  bindings.LayoutSignature
	renderScale    float32
	fillMethod     FillMethod
	crossfadeCurve FadeCurve
	vsyncMode      VsyncMode
	isCrossfading  bool

	surfaceWidth, surfaceHeight uint32

	startTime     time.Time
	lastFrameTime time.Time
	frameCount    int32

	lastFPSUpdate     time.Time
	framesSinceUpdate int
	framesPerSecond   float32
}

// NewRenderer constructs a Renderer around an already-compiled initial
// pipeline (iFade=1.0, resolution set).
func NewRenderer(initial Pipeline, layout bindings.LayoutSignature, width, height uint32, renderScale float32, fillMethod FillMethod, curve FadeCurve, vsync VsyncMode, now time.Time) *Renderer {
	r := &Renderer{
		current:         initial,
		channelLayout:   layout,
		renderScale:     renderScale,
		fillMethod:      fillMethod,
		crossfadeCurve:  curve,
		vsyncMode:       vsync,
		surfaceWidth:    width,
		surfaceHeight:   height,
		uniforms:        NewUniforms(float32(width), float32(height)),
		startTime:       now,
		lastFrameTime:   now,
		lastFPSUpdate:   now,
		framesPerSecond: 60.0,
	}
	r.uniforms.SetSurface(float32(width), float32(height))
	return r
}

// FramesPerSecond reports the current rolling FPS estimate.
func (r *Renderer) FramesPerSecond() float32 { return r.framesPerSecond }

// IsCrossfading reports whether a cross-fade is currently in flight.
func (r *Renderer) IsCrossfading() bool { return r.isCrossfading }

// HasKeyboardChannel reports whether any pipeline currently live (current,
// previous, or pending) binds a keyboard channel.
func (r *Renderer) HasKeyboardChannel() bool {
	if r.current != nil && r.current.HasKeyboardChannel() {
		return true
	}
	if r.previous != nil && r.previous.HasKeyboardChannel() {
		return true
	}
	if r.pending != nil && r.pending.Pipeline.HasKeyboardChannel() {
		return true
	}
	return false
}

// Resize updates the tracked surface size and uniforms. Zero dimensions
// are ignored. Pipelines are never invalidated by a resize.
func (r *Renderer) Resize(width, height uint32) {
	if width == 0 || height == 0 {
		return
	}
	r.surfaceWidth = width
	r.surfaceHeight = height
	r.uniforms.SetResolution(float32(width), float32(height))
	r.uniforms.SetSurface(float32(width), float32(height))
}

// SetShader stages a compiled pipeline as a pending swap. A mismatched
// channel layout signature is a fatal
// LayoutSignatureMismatch error, since the bind-group layout itself would
// no longer match the pipeline the renderer was built with.
func (r *Renderer) SetShader(pipeline Pipeline, layout bindings.LayoutSignature, crossfade, warmup time.Duration, now time.Time, curve FadeCurve) error {
	if layout != r.channelLayout {
		return lambdasherr.New(lambdasherr.LayoutSignatureMismatch, "")
	}
	if r.pending != nil {
		// A later request supersedes an unfinished pre-warm.
		releasePipeline(r.pending.Pipeline)
	}
	r.crossfadeCurve = curve
	r.pending = &PendingPipeline{
		Pipeline:  pipeline,
		WarmupEnd: now.Add(warmup),
		Crossfade: crossfade,
	}
	return nil
}

// releasePipeline frees a dropped pipeline's GPU resources when the
// concrete type owns any; the fakes used in tests don't.
func releasePipeline(p Pipeline) {
	if p == nil {
		return
	}
	if d, ok := p.(interface{ Destroy() }); ok {
		d.Destroy()
	}
}

// promotePending replaces the current pipeline with the pending one. The
// Rust original aliases a raw pointer to the outgoing "current" pipeline
// so the still-active previous-frame borrow and the reassignment don't
// conflict; Go's Pipeline is an interface value, so we just snapshot it
// into a local before overwriting the field, which is enough to keep the
// old value alive for whatever the caller already captured this frame.
func (r *Renderer) promotePending(now time.Time) {
	pending := r.pending
	r.pending = nil

	if pending.Crossfade <= hardCutThreshold {
		releasePipeline(r.previous)
		releasePipeline(r.current)
		r.current = pending.Pipeline
		r.previous = nil
		r.fade = nil
		return
	}

	// A swap mid-fade finalises the previous crossfade.
	releasePipeline(r.previous)
	outgoing := r.current
	r.current = pending.Pipeline
	r.previous = outgoing
	env := NewFadeEnvelope(now, pending.Crossfade, r.crossfadeCurve)
	r.fade = &env
}

// updateFPS advances the rolling one-second FPS estimator.
func (r *Renderer) updateFPS(now time.Time) {
	r.framesSinceUpdate++
	elapsed := now.Sub(r.lastFPSUpdate)
	if elapsed >= time.Second {
		r.framesPerSecond = float32(r.framesSinceUpdate) / float32(elapsed.Seconds())
		r.framesSinceUpdate = 0
		r.lastFPSUpdate = now
	}
}

// applyDrawUniforms sets the per-draw uniform fields (channel
// resolutions, fade mix, fill transform) ahead of one EncodeDraw call.
func (r *Renderer) applyDrawUniforms(pipeline Pipeline, mix float32) {
	for i := 0; i < ChannelCount; i++ {
		w, h := pipeline.ChannelResolution(i)
		r.uniforms.SetChannelResolution(i, w, h)
	}
	r.uniforms.SetFade(mix)

	logicalW, logicalH := LogicalDimensions(r.renderScale, r.fillMethod, r.surfaceWidth, r.surfaceHeight)
	sx, sy, ox, oy, wx, wy := FillParameters(r.renderScale, r.fillMethod, r.surfaceWidth, r.surfaceHeight, logicalW, logicalH)
	r.uniforms.SetResolution(logicalW, logicalH)
	r.uniforms.SetSurface(float32(r.surfaceWidth), float32(r.surfaceHeight))
	r.uniforms.SetFill(sx, sy, ox, oy)
	r.uniforms.SetFillWrap(wx, wy)
}

const epsilon = 1e-6

// RenderFrame advances time, resolves any pending shader promotion,
// encodes the cross-fade (or single-pipeline) draw order, pre-warms a
// still-pending shader, and submits.
func (r *Renderer) RenderFrame(target DrawTarget, mouse [4]float32, sample *TimeSample, now time.Time) error {
	r.updateFPS(now)
	r.uniforms.UpdateTime(&r.startTime, &r.lastFrameTime, &r.frameCount, now, sample, mouse)
	r.uniforms.RefreshDate(now)

	var pendingAction *PendingPipeline
	if r.pending != nil {
		if !now.Before(r.pending.WarmupEnd) {
			r.promotePending(now)
		} else {
			pendingAction = r.pending
			r.pending = nil
		}
	}

	if r.previous != nil && r.fade != nil {
		prevMix, currMix, finished := r.fade.Mixes(now)

		clearFirst := true
		if prevMix > epsilon {
			r.applyDrawUniforms(r.previous, float32(prevMix))
			if err := target.EncodeDraw(r.previous, r.uniforms, clearFirst, false); err != nil {
				return err
			}
			clearFirst = false
		}
		r.applyDrawUniforms(r.current, float32(currMix))
		if err := target.EncodeDraw(r.current, r.uniforms, clearFirst, false); err != nil {
			return err
		}
		if finished {
			releasePipeline(r.previous)
			r.previous = nil
			r.fade = nil
		}
	} else {
		r.applyDrawUniforms(r.current, 1.0)
		if err := target.EncodeDraw(r.current, r.uniforms, true, false); err != nil {
			return err
		}
		r.previous = nil
		r.fade = nil
	}

	// Vsync toggling during a fade is the caller's concern, observed
	// through IsCrossfading.
	r.isCrossfading = r.fade != nil

	if pendingAction != nil {
		if !pendingAction.Warmed {
			r.applyDrawUniforms(pendingAction.Pipeline, 0.0)
			if err := target.EncodeDraw(pendingAction.Pipeline, r.uniforms, false, true); err != nil {
				return err
			}
			pendingAction.Warmed = true
		}
		r.pending = pendingAction
	}

	return target.Submit()
}
