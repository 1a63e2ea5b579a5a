package gpu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lambdash/lambdash/bindings"
)

type fakePipeline struct {
	name     string
	keyboard bool
}

func (p *fakePipeline) ChannelResolution(int) (float32, float32) { return 0, 0 }
func (p *fakePipeline) HasKeyboardChannel() bool                 { return p.keyboard }

type drawCall struct {
	pipeline   string
	fade       float32
	clearFirst bool
	prewarm    bool
}

type fakeTarget struct {
	calls     []drawCall
	submitted int
}

func (f *fakeTarget) EncodeDraw(pipeline Pipeline, uniforms Uniforms, clearFirst, prewarm bool) error {
	f.calls = append(f.calls, drawCall{pipeline: pipeline.(*fakePipeline).name, fade: uniforms.Fade, clearFirst: clearFirst, prewarm: prewarm})
	return nil
}

func (f *fakeTarget) Submit() error {
	f.submitted++
	return nil
}

func newTestRenderer(now time.Time) *Renderer {
	layout := bindings.LayoutSignature{}
	return NewRenderer(&fakePipeline{name: "a"}, layout, 640, 480, 1.0, FillMethod{Kind: FillStretch}, CurveLinear, VsyncNever, now)
}

func TestRenderFrameSinglePipelineDrawsFullMix(t *testing.T) {
	now := time.Now()
	r := newTestRenderer(now)
	target := &fakeTarget{}

	require.NoError(t, r.RenderFrame(target, [4]float32{}, nil, now))
	require.Len(t, target.calls, 1)
	assert.Equal(t, "a", target.calls[0].pipeline)
	assert.Equal(t, float32(1.0), target.calls[0].fade)
	assert.True(t, target.calls[0].clearFirst)
	assert.Equal(t, 1, target.submitted)
}

// TestHardCutBelowThresholdSkipsCrossfade: a crossfade
// duration at or below the hard-cut threshold promotes immediately with no
// blended frames.
func TestHardCutBelowThresholdSkipsCrossfade(t *testing.T) {
	now := time.Now()
	r := newTestRenderer(now)
	target := &fakeTarget{}

	require.NoError(t, r.SetShader(&fakePipeline{name: "b"}, bindings.LayoutSignature{}, 10*time.Millisecond, 0, now, CurveLinear))
	require.NoError(t, r.RenderFrame(target, [4]float32{}, nil, now))

	require.Len(t, target.calls, 1)
	assert.Equal(t, "b", target.calls[0].pipeline)
	assert.Equal(t, float32(1.0), target.calls[0].fade)
	assert.False(t, r.IsCrossfading())
}

// TestCrossfadePrewarmsThenBlends: a pending pipeline
// with a long warmup draws a zero-mix prewarm pass on frames before
// warmup_end, then blends prev/current across the crossfade once promoted.
func TestCrossfadePrewarmsThenBlends(t *testing.T) {
	now := time.Now()
	r := newTestRenderer(now)

	warmup := 50 * time.Millisecond
	crossfade := 100 * time.Millisecond
	require.NoError(t, r.SetShader(&fakePipeline{name: "b"}, bindings.LayoutSignature{}, crossfade, warmup, now, CurveLinear))

	// Frame during warmup: current draws full mix, pending prewarms at mix 0.
	target := &fakeTarget{}
	require.NoError(t, r.RenderFrame(target, [4]float32{}, nil, now.Add(10*time.Millisecond)))
	require.Len(t, target.calls, 2)
	assert.Equal(t, "a", target.calls[0].pipeline)
	assert.Equal(t, float32(1.0), target.calls[0].fade)
	assert.Equal(t, "b", target.calls[1].pipeline)
	assert.Equal(t, float32(0.0), target.calls[1].fade)
	assert.True(t, target.calls[1].prewarm)
	assert.False(t, r.IsCrossfading())

	// Warmup elapses: promote, begin blending prev (a) and current (b).
	promoteAt := now.Add(warmup + time.Millisecond)
	target = &fakeTarget{}
	require.NoError(t, r.RenderFrame(target, [4]float32{}, nil, promoteAt))
	require.True(t, r.IsCrossfading())
	require.Len(t, target.calls, 2)
	assert.Equal(t, "a", target.calls[0].pipeline)
	assert.Equal(t, "b", target.calls[1].pipeline)

	// Crossfade finishes: only current (b) remains.
	target = &fakeTarget{}
	require.NoError(t, r.RenderFrame(target, [4]float32{}, nil, promoteAt.Add(crossfade)))
	assert.False(t, r.IsCrossfading())
	require.Len(t, target.calls, 1)
	assert.Equal(t, "b", target.calls[0].pipeline)
	assert.Equal(t, float32(1.0), target.calls[0].fade)
}

func TestSetShaderRejectsLayoutMismatch(t *testing.T) {
	now := time.Now()
	r := newTestRenderer(now)
	mismatched := bindings.LayoutSignature{0: bindings.CubemapKind}
	err := r.SetShader(&fakePipeline{name: "b"}, mismatched, time.Second, 0, now, CurveLinear)
	require.Error(t, err)
}

func TestResizeIgnoresZeroDimensionsAndKeepsPipelines(t *testing.T) {
	now := time.Now()
	r := newTestRenderer(now)
	before := r.current

	r.Resize(0, 480)
	assert.Equal(t, uint32(640), r.surfaceWidth)

	r.Resize(1280, 720)
	assert.Equal(t, uint32(1280), r.surfaceWidth)
	assert.Equal(t, uint32(720), r.surfaceHeight)
	assert.Same(t, before, r.current)
}
