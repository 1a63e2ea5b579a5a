package gpu

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/lambdash/lambdash/manifest"
)

// SurfaceProvider supplies the platform's native window handle and current
// pixel size. The preview binary's GLFW wrapper and any future Wayland
// layer-surface adapter both implement this; gpu never imports a windowing
// package directly.
type SurfaceProvider interface {
	SurfaceDescriptor() (SurfaceDescriptor, error)
	PixelSize() (width, height uint32)
}

// SurfaceDescriptor bundles the native display/window handles CreateSurface
// needs on the current platform.
type SurfaceDescriptor struct {
	DisplayHandle uintptr
	WindowHandle  uintptr
}

// PowerPreference selects which adapter class to favor during adapter
// enumeration.
type PowerPreference int

const (
	PowerHighPerformance PowerPreference = iota
	PowerLowPower
)

// standardSampleCounts are the MSAA counts requested from the device.
// Counts above 4 need adapter-specific features the hal does not expose,
// so they are never offered.
var standardSampleCounts = []uint32{1, 2, 4}

// allPresentModes is the candidate set handed to ResolvePresentMode; the
// hal backends lambdash targets implement all three.
var allPresentModes = []PresentMode{PresentFifo, PresentImmediate, PresentMailbox}

// Backend owns the wgpu instance/adapter/device/queue/surface quintuple,
// plus the swapchain configuration and the multisample color target when
// MSAA is active. It is the single place lambdash
// touches real GPU resources; Renderer itself only sees the
// Pipeline/DrawTarget interfaces in state.go.
type Backend struct {
	instance hal.Instance
	adapter  hal.Adapter
	device   hal.Device
	queue    hal.Queue
	surface  hal.Surface

	deviceType gputypes.DeviceType
	limits     gputypes.Limits

	format       gputypes.TextureFormat
	sampleCount  uint32
	presentMode  PresentMode
	frameLatency uint32
	opaque       bool

	width, height uint32

	msaaTexture hal.Texture
	msaaView    hal.TextureView

	placeholder     *placeholderTexture
	placeholderCube *placeholderTexture
}

// BackendOptions parameterises adapter/surface selection: antialiasing,
// color space, surface alpha, vsync mode, gpu power preference, and
// desired frame latency (clamped to [1,3]).
type BackendOptions struct {
	Antialiasing        Antialiasing
	ColorSpace          manifest.ColorSpace
	SurfaceAlpha        manifest.SurfaceAlpha
	VsyncMode           VsyncMode
	Power               PowerPreference
	DesiredFrameLatency uint32
}

// NewBackend creates the instance, surface, adapter, and device, then
// configures the swapchain. Adapter selection walks the enumerated
// adapters favoring the class options.Power asks for; sample count and
// present mode resolution follow the rules in context.go.
func NewBackend(provider SurfaceProvider, options BackendOptions) (*Backend, error) {
	halBackend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return nil, fmt.Errorf("gpu: vulkan backend not available")
	}
	instance, err := halBackend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return nil, fmt.Errorf("gpu: create instance: %w", err)
	}

	descriptor, err := provider.SurfaceDescriptor()
	if err != nil {
		return nil, fmt.Errorf("gpu: native surface handle: %w", err)
	}
	surface, err := instance.CreateSurface(descriptor.DisplayHandle, descriptor.WindowHandle)
	if err != nil {
		return nil, fmt.Errorf("gpu: create surface: %w", err)
	}

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return nil, fmt.Errorf("gpu: no adapters found")
	}
	selected := pickAdapter(adapters, options.Power)

	limits := gputypes.DefaultLimits()
	width, height := provider.PixelSize()
	if width > limits.MaxTextureDimension2D || height > limits.MaxTextureDimension2D {
		return nil, fmt.Errorf("gpu: surface %dx%d exceeds max texture dimension %d", width, height, limits.MaxTextureDimension2D)
	}

	openDev, err := selected.Adapter.Open(gputypes.Features(0), limits)
	if err != nil {
		return nil, fmt.Errorf("gpu: open device: %w", err)
	}

	b := &Backend{
		instance:   instance,
		adapter:    selected.Adapter,
		device:     openDev.Device,
		queue:      openDev.Queue,
		surface:    surface,
		deviceType: selected.Info.DeviceType,
		limits:     limits,
		width:      width,
		height:     height,
		opaque:     options.SurfaceAlpha != manifest.Transparent,
	}

	b.format = pickFormat(options.ColorSpace)
	b.frameLatency = ResolveFrameLatency(options.DesiredFrameLatency)
	b.sampleCount = ResolveSampleCount(options.Antialiasing, standardSampleCounts, true, b.isSoftwareAdapter())
	b.presentMode = ResolvePresentMode(allPresentModes, options.VsyncMode)

	if err := b.configure(); err != nil {
		return nil, err
	}

	b.placeholder, err = newPlaceholderTexture(b.device, b.queue)
	if err != nil {
		return nil, err
	}
	b.placeholderCube, err = newPlaceholderCube(b.device, b.queue)
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Backend) isSoftwareAdapter() bool {
	return b.deviceType == gputypes.DeviceTypeCPU
}

// Device exposes the hal device for pipeline construction.
func (b *Backend) Device() hal.Device { return b.device }

// Queue exposes the hal queue for uniform/texture uploads.
func (b *Backend) Queue() hal.Queue { return b.queue }

// Format reports the configured swapchain format.
func (b *Backend) Format() gputypes.TextureFormat { return b.format }

// SampleCount reports the resolved MSAA sample count.
func (b *Backend) SampleCount() uint32 { return b.sampleCount }

// Size reports the current swapchain dimensions.
func (b *Backend) Size() (uint32, uint32) { return b.width, b.height }

func (b *Backend) configure() error {
	alphaMode := hal.CompositeAlphaModeOpaque
	if !b.opaque {
		alphaMode = hal.CompositeAlphaModePremultiplied
	}
	err := b.surface.Configure(b.device, &hal.SurfaceConfiguration{
		Format:              b.format,
		Width:               b.width,
		Height:              b.height,
		Usage:               gputypes.TextureUsageRenderAttachment,
		PresentMode:         toHALPresentMode(b.presentMode),
		AlphaMode:           alphaMode,
		MaximumFrameLatency: b.frameLatency,
	})
	if err != nil {
		return fmt.Errorf("gpu: configure surface: %w", err)
	}
	return b.ensureMSAATarget()
}

// ensureMSAATarget (re)creates the multisample color texture at the
// current swapchain size, or tears it down when MSAA is off.
func (b *Backend) ensureMSAATarget() error {
	b.destroyMSAATarget()
	if b.sampleCount <= 1 {
		return nil
	}

	tex, err := b.device.CreateTexture(&hal.TextureDescriptor{
		Label:         "lambdash_msaa",
		Size:          hal.Extent3D{Width: b.width, Height: b.height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   b.sampleCount,
		Dimension:     gputypes.TextureDimension2D,
		Format:        b.format,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return fmt.Errorf("gpu: create MSAA texture: %w", err)
	}
	view, err := b.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "lambdash_msaa_view",
		Format:        b.format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		b.device.DestroyTexture(tex)
		return fmt.Errorf("gpu: create MSAA view: %w", err)
	}
	b.msaaTexture = tex
	b.msaaView = view
	return nil
}

func (b *Backend) destroyMSAATarget() {
	if b.msaaView != nil {
		b.device.DestroyTextureView(b.msaaView)
		b.msaaView = nil
	}
	if b.msaaTexture != nil {
		b.device.DestroyTexture(b.msaaTexture)
		b.msaaTexture = nil
	}
}

// Resize re-configures the swapchain and MSAA target to width/height.
// Zero dimensions are ignored, matching Renderer.Resize's own guard.
func (b *Backend) Resize(width, height uint32) error {
	if width == 0 || height == 0 {
		return nil
	}
	b.width, b.height = width, height
	return b.configure()
}

// Reconfigure re-applies the current surface configuration at the current
// size, the recovery path for lost/outdated surfaces.
func (b *Backend) Reconfigure() error {
	return b.configure()
}

// SetPresentMode re-configures the swapchain with a new present mode,
// used by the cross-fade vsync toggle when VsyncMode is VsyncCrossfade.
func (b *Backend) SetPresentMode(mode PresentMode) error {
	if mode == b.presentMode {
		return nil
	}
	b.presentMode = mode
	return b.configure()
}

// PresentModeNow reports the present mode the swapchain is configured
// with.
func (b *Backend) PresentModeNow() PresentMode { return b.presentMode }

// Close releases the swapchain, shared placeholders, and instance.
func (b *Backend) Close() {
	b.destroyMSAATarget()
	b.destroyPlaceholder(b.placeholderCube)
	b.destroyPlaceholder(b.placeholder)
	b.surface.Unconfigure(b.device)
	b.instance.Destroy()
}

func (b *Backend) destroyPlaceholder(p *placeholderTexture) {
	if p == nil {
		return
	}
	b.device.DestroySampler(p.sampler)
	b.device.DestroyTextureView(p.view)
	b.device.DestroyTexture(p.texture)
}

// pickAdapter walks the enumerated adapters honoring the power
// preference: high performance favors discrete over integrated, low power
// the reverse. Falls back to the first adapter of any type.
func pickAdapter(adapters []hal.ExposedAdapter, power PowerPreference) *hal.ExposedAdapter {
	order := []gputypes.DeviceType{gputypes.DeviceTypeDiscreteGPU, gputypes.DeviceTypeIntegratedGPU}
	if power == PowerLowPower {
		order = []gputypes.DeviceType{gputypes.DeviceTypeIntegratedGPU, gputypes.DeviceTypeDiscreteGPU}
	}
	for _, want := range order {
		for i := range adapters {
			if adapters[i].Info.DeviceType == want {
				return &adapters[i]
			}
		}
	}
	return &adapters[0]
}

// pickFormat prefers an sRGB swapchain format when the pack asks for
// linear output, and a non-sRGB format for gamma/auto.
func pickFormat(colorSpace manifest.ColorSpace) gputypes.TextureFormat {
	if colorSpace == manifest.ColorLinear {
		return gputypes.TextureFormatBGRA8UnormSrgb
	}
	return gputypes.TextureFormatBGRA8Unorm
}

func toHALPresentMode(m PresentMode) hal.PresentMode {
	switch m {
	case PresentImmediate:
		return hal.PresentModeImmediate
	case PresentMailbox:
		return hal.PresentModeMailbox
	default:
		return hal.PresentModeFifo
	}
}
