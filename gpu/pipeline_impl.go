package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/lambdash/lambdash/bindings"
	"github.com/lambdash/lambdash/glsl"
	"github.com/lambdash/lambdash/lambdasherr"
)

// WGPUPipeline is the real Pipeline: a compiled render pipeline bound to
// its four channel textures/samplers and a per-pipeline uniform buffer.
// Constructed once per compiled shader and handed to Renderer.SetShader;
// tests exercise Renderer against the fakes in state_test.go instead.
type WGPUPipeline struct {
	device hal.Device

	renderPipeline hal.RenderPipeline
	bindGroup0     hal.BindGroup // uniform buffer, set 0
	bindGroup1     hal.BindGroup // channel textures/samplers, set 1
	uniformBuffer  hal.Buffer

	channels    [bindings.ChannelCount]channelSlot
	hasKeyboard bool
}

// NewPipeline builds a render pipeline targeting the backend's swapchain
// format from vertex+fragment modules already produced by glsl.Wrap +
// glsl.Compile, and realises chBindings into the channel bind group. The
// wgpu presentation path consumes SPIR-V modules only; a direct-GLSL
// module is a ShaderCompile error here (that backend serves GL-presented
// surfaces, which carry no bind-group layouts).
func NewPipeline(b *Backend, vertex, fragment *glsl.Module, chBindings bindings.ChannelBindings) (*WGPUPipeline, error) {
	device := b.device

	vsModule, err := createShaderModule(device, vertex, "lambdash_vertex")
	if err != nil {
		return nil, err
	}
	fsModule, err := createShaderModule(device, fragment, "lambdash_fragment")
	if err != nil {
		return nil, err
	}

	uniformLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label: "lambdash_uniform_layout",
		Entries: []gputypes.BindGroupLayoutEntry{
			{
				Binding:    0,
				Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
				Buffer:     &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: uniform bind group layout: %w", err)
	}

	channelLayout, err := device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "lambdash_channel_layout",
		Entries: channelLayoutEntries(chBindings.LayoutSignature()),
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: channel bind group layout: %w", err)
	}

	pipelineLayout, err := device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "lambdash_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{uniformLayout, channelLayout},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: pipeline layout: %w", err)
	}

	premulBlend := gputypes.BlendStatePremultiplied()
	renderPipeline, err := device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "lambdash_pipeline",
		Layout: pipelineLayout,
		Vertex: hal.VertexState{
			Module:     vsModule,
			EntryPoint: "main",
		},
		Fragment: &hal.FragmentState{
			Module:     fsModule,
			EntryPoint: "main",
			Targets: []gputypes.ColorTargetState{
				{
					Format:    b.format,
					Blend:     &premulBlend,
					WriteMask: gputypes.ColorWriteMaskAll,
				},
			},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleList,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: b.sampleCount,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create render pipeline: %w", err)
	}

	uniformBuffer, err := device.CreateBuffer(&hal.BufferDescriptor{
		Label: "lambdash_uniforms",
		Size:  uniformBufferSize,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create uniform buffer: %w", err)
	}

	bindGroup0, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  "lambdash_uniform_bind",
		Layout: uniformLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.BufferBinding{
				Buffer: uniformBuffer.NativeHandle(), Offset: 0, Size: EncodedSize,
			}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create uniform bind group: %w", err)
	}

	channels, err := buildChannelSlots(b, chBindings)
	if err != nil {
		return nil, err
	}

	bindGroup1, err := device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "lambdash_channel_bind",
		Layout:  channelLayout,
		Entries: channelBindGroupEntries(channels),
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: create channel bind group: %w", err)
	}

	hasKeyboard := false
	for _, c := range channels {
		if c.isKeyboard {
			hasKeyboard = true
			break
		}
	}

	return &WGPUPipeline{
		device:         device,
		renderPipeline: renderPipeline,
		bindGroup0:     bindGroup0,
		bindGroup1:     bindGroup1,
		uniformBuffer:  uniformBuffer,
		channels:       channels,
		hasKeyboard:    hasKeyboard,
	}, nil
}

// uniformBufferSize is the device-side allocation for the std140 uniform
// block, padded up to wgpu's 256-byte minimum uniform buffer offset
// alignment even though EncodedSize itself is already 16-byte aligned.
const uniformBufferSize = 256

func createShaderModule(device hal.Device, module *glsl.Module, label string) (hal.ShaderModule, error) {
	if module.Backend != glsl.BackendSPIRV {
		return nil, lambdasherr.New(lambdasherr.ShaderCompile,
			fmt.Sprintf("%s: direct GLSL modules target GL presentation; the wgpu surface path needs SPIR-V", label))
	}
	return device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: module.SPIRV},
	})
}

// channelLayoutEntries builds the set-1 layout: texture+sampler pairs at
// bindings 0..7, with each texture's view dimension following the slot's
// layout signature (2D for everything except cubemap slots). This is why
// a swap that flips a slot between 2D and cube cannot reuse the
// pipeline.
func channelLayoutEntries(sig bindings.LayoutSignature) []gputypes.BindGroupLayoutEntry {
	entries := make([]gputypes.BindGroupLayoutEntry, 0, bindings.ChannelCount*2)
	for i := 0; i < bindings.ChannelCount; i++ {
		dimension := gputypes.TextureViewDimension2D
		if sig[i] == bindings.CubemapKind {
			dimension = gputypes.TextureViewDimensionCube
		}
		binding := uint32(i * 2)
		entries = append(entries,
			gputypes.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: gputypes.ShaderStageFragment,
				Texture: &gputypes.TextureBindingLayout{
					SampleType:    gputypes.TextureSampleTypeFloat,
					ViewDimension: dimension,
				},
			},
			gputypes.BindGroupLayoutEntry{
				Binding:    binding + 1,
				Visibility: gputypes.ShaderStageFragment,
				Sampler:    &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering},
			},
		)
	}
	return entries
}

func channelBindGroupEntries(channels [bindings.ChannelCount]channelSlot) []gputypes.BindGroupEntry {
	entries := make([]gputypes.BindGroupEntry, 0, bindings.ChannelCount*2)
	for i, c := range channels {
		binding := uint32(i * 2)
		entries = append(entries,
			gputypes.BindGroupEntry{Binding: binding, Resource: gputypes.TextureViewBinding{TextureView: c.view.NativeHandle()}},
			gputypes.BindGroupEntry{Binding: binding + 1, Resource: gputypes.SamplerBinding{Sampler: c.sampler.NativeHandle()}},
		)
	}
	return entries
}

// ChannelResolution implements Pipeline.
func (p *WGPUPipeline) ChannelResolution(channel int) (width, height float32) {
	if channel < 0 || channel >= bindings.ChannelCount {
		return 0, 0
	}
	return p.channels[channel].width, p.channels[channel].height
}

// HasKeyboardChannel implements Pipeline.
func (p *WGPUPipeline) HasKeyboardChannel() bool { return p.hasKeyboard }

// Destroy releases every GPU resource this pipeline owns. Channel slots
// backed by the backend's shared placeholders are skipped.
func (p *WGPUPipeline) Destroy() {
	for _, c := range p.channels {
		if c.owned {
			p.device.DestroyTextureView(c.view)
			p.device.DestroyTexture(c.texture)
			p.device.DestroySampler(c.sampler)
		}
	}
	p.device.DestroyBindGroup(p.bindGroup1)
	p.device.DestroyBindGroup(p.bindGroup0)
	p.device.DestroyBuffer(p.uniformBuffer)
	p.device.DestroyRenderPipeline(p.renderPipeline)
}
