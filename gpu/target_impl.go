package gpu

import (
	"fmt"
	"strings"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/lambdash/lambdash/lambdasherr"
)

// SurfaceTarget is the real DrawTarget: it wraps one acquired swapchain
// frame and an open command encoder, and batches every EncodeDraw call of
// one Renderer.RenderFrame into a single submission.
type SurfaceTarget struct {
	backend *Backend
	encoder hal.CommandEncoder

	frame     hal.SurfaceTexture
	frameView hal.TextureView

	staging []hal.Buffer
}

// BeginFrame acquires the next swapchain texture and opens a command
// encoder. Call once per Renderer.RenderFrame invocation; Submit presents
// and releases the acquired frame. Acquisition failures are classified
//: lost/outdated surfaces come back as recoverable
// kinds the caller answers with Reconfigure, out-of-memory is fatal.
func (b *Backend) BeginFrame() (*SurfaceTarget, error) {
	acquired, err := b.surface.AcquireTexture(nil)
	if err != nil {
		return nil, classifySurfaceError(err)
	}

	view, err := b.device.CreateTextureView(acquired.Texture, &hal.TextureViewDescriptor{
		Label:         "lambdash_frame_view",
		Format:        b.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: swapchain view: %w", err)
	}

	encoder, err := b.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "lambdash_frame"})
	if err != nil {
		b.device.DestroyTextureView(view)
		return nil, fmt.Errorf("gpu: create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("lambdash_frame"); err != nil {
		b.device.DestroyTextureView(view)
		return nil, fmt.Errorf("gpu: begin encoding: %w", err)
	}

	return &SurfaceTarget{backend: b, encoder: encoder, frame: acquired.Texture, frameView: view}, nil
}

// EncodeDraw implements DrawTarget: it stages a fresh copy of the uniform
// block into the pipeline's buffer via copy-buffer-to-buffer on the
// encoder (so iFade and channel resolutions for the previous and current
// passes never bleed into each other) and records one
// render pass. A prewarm draw binds everything but skips the draw call.
func (t *SurfaceTarget) EncodeDraw(pipeline Pipeline, uniforms Uniforms, clearFirst, prewarm bool) error {
	p, ok := pipeline.(*WGPUPipeline)
	if !ok {
		return fmt.Errorf("gpu: EncodeDraw: pipeline is not a *WGPUPipeline (%T)", pipeline)
	}
	if err := t.stageUniforms(p, uniforms); err != nil {
		return err
	}

	colorView := t.frameView
	var resolveTarget hal.TextureView
	if t.backend.msaaView != nil {
		colorView = t.backend.msaaView
		resolveTarget = t.frameView
	}

	loadOp := gputypes.LoadOpLoad
	if clearFirst {
		loadOp = gputypes.LoadOpClear
	}

	pass := t.encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label: "lambdash_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{
			{
				View:          colorView,
				ResolveTarget: resolveTarget,
				LoadOp:        loadOp,
				StoreOp:       gputypes.StoreOpStore,
				ClearValue:    gputypes.Color{R: 0, G: 0, B: 0, A: 0},
			},
		},
	})

	pass.SetPipeline(p.renderPipeline)
	pass.SetBindGroup(0, p.bindGroup0, nil)
	pass.SetBindGroup(1, p.bindGroup1, nil)
	if !prewarm {
		pass.Draw(3, 1, 0, 0)
	}
	pass.End()
	return nil
}

// stageUniforms writes the encoded block into a throwaway staging buffer
// and schedules an encoder-side copy into the pipeline's uniform buffer.
// The staging buffers live until Submit so the copies read stable data.
func (t *SurfaceTarget) stageUniforms(p *WGPUPipeline, uniforms Uniforms) error {
	encoded := uniforms.Encode()

	staging, err := t.backend.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "lambdash_uniform_staging",
		Size:  uint64(len(encoded)),
		Usage: gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("gpu: uniform staging buffer: %w", err)
	}
	t.staging = append(t.staging, staging)

	t.backend.queue.WriteBuffer(staging, 0, encoded[:])
	t.encoder.CopyBufferToBuffer(staging, p.uniformBuffer, []hal.BufferCopy{
		{SrcOffset: 0, DstOffset: 0, Size: uint64(len(encoded))},
	})
	return nil
}

// Submit finishes the command buffer, submits it, and presents the
// acquired frame.
func (t *SurfaceTarget) Submit() error {
	cmdBuf, err := t.encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("gpu: end encoding: %w", err)
	}
	if _, err := t.backend.queue.Submit([]hal.CommandBuffer{cmdBuf}); err != nil {
		return fmt.Errorf("gpu: submit: %w", err)
	}
	t.backend.device.FreeCommandBuffer(cmdBuf)

	err = t.backend.queue.Present(t.backend.surface, t.frame, nil)

	for _, s := range t.staging {
		t.backend.device.DestroyBuffer(s)
	}
	t.staging = nil
	t.backend.device.DestroyTextureView(t.frameView)

	if err != nil {
		return classifySurfaceError(err)
	}
	return nil
}

// classifySurfaceError maps an acquire/present failure onto the
// renderer's recovery kinds. The hal backends report these conditions as plain
// errors, so classification goes by message; anything unrecognised is
// returned as-is for the caller's log-and-retry path.
func classifySurfaceError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "out of memory"):
		return lambdasherr.Wrap(lambdasherr.SurfaceOutOfMemory, "surface", err)
	case strings.Contains(msg, "lost"):
		return lambdasherr.Wrap(lambdasherr.SurfaceLost, "surface", err)
	case strings.Contains(msg, "outdated") || strings.Contains(msg, "suboptimal"):
		return lambdasherr.Wrap(lambdasherr.SurfaceOutdated, "surface", err)
	default:
		return fmt.Errorf("gpu: surface: %w", err)
	}
}
