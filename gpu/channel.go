package gpu

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/lambdash/lambdash/bindings"
)

// channelSlot is one bound iChannel resource: a texture view plus sampler
// ready to go into a bind group, and the resolution reported through the
// iChannelResolution uniform.
type channelSlot struct {
	view       hal.TextureView
	sampler    hal.Sampler
	texture    hal.Texture
	width      float32
	height     float32
	isKeyboard bool
	owned      bool
}

// buildChannelSlots realises bindings.ChannelBindings into four GPU-ready
// slots. Empty and unsupported (buffer/audio) slots fall back to the
// backend's shared 1x1 placeholder so the fixed four-slot bind-group
// layout is always fully populated.
func buildChannelSlots(b *Backend, cb bindings.ChannelBindings) ([bindings.ChannelCount]channelSlot, error) {
	var slots [bindings.ChannelCount]channelSlot

	for i, slot := range cb.Slots {
		switch slot.Kind {
		case bindings.Texture2D:
			s, err := loadTexture2D(b.device, b.queue, slot.Path)
			if err != nil {
				return slots, fmt.Errorf("gpu: channel %d: %w", i, err)
			}
			slots[i] = s
		case bindings.CubemapKind:
			s, err := loadCubemap(b.device, b.queue, slot.Directory)
			if err != nil {
				// A cubemap with missing faces was already reported as a
				// binding issue; fall back to the neutral cube.
				slots[i] = b.placeholderCube.slot()
				continue
			}
			slots[i] = s
		case bindings.KeyboardKind:
			s := b.placeholder.slot()
			s.width, s.height = 256, 2
			s.isKeyboard = true
			slots[i] = s
		default: // Empty, or an issue-flagged slot the binder already logged
			slots[i] = b.placeholder.slot()
		}
	}
	return slots, nil
}

// placeholderTexture is a shared neutral texture (1x1 white, or its
// six-face cube variant) bound into every empty channel slot so a pack
// that uses fewer than four channels never needs a conditionally-sized
// bind group.
type placeholderTexture struct {
	texture hal.Texture
	view    hal.TextureView
	sampler hal.Sampler
}

func (p *placeholderTexture) slot() channelSlot {
	return channelSlot{view: p.view, sampler: p.sampler, texture: p.texture, width: 1, height: 1}
}

var whitePixel = []byte{255, 255, 255, 255}

func newPlaceholderTexture(device hal.Device, queue hal.Queue) (*placeholderTexture, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "lambdash_placeholder",
		Size:          hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: placeholder texture: %w", err)
	}
	queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		whitePixel,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: 4, RowsPerImage: 1},
		&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
	)

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "lambdash_placeholder_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: placeholder view: %w", err)
	}
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:     "lambdash_placeholder_sampler",
		MagFilter: gputypes.FilterModeLinear,
		MinFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: placeholder sampler: %w", err)
	}
	return &placeholderTexture{texture: tex, view: view, sampler: sampler}, nil
}

// newPlaceholderCube is the six-face neutral placeholder bound for
// cubemap slots whose faces could not be loaded.
func newPlaceholderCube(device hal.Device, queue hal.Queue) (*placeholderTexture, error) {
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "lambdash_placeholder_cube",
		Size:          hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 6},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: placeholder cube: %w", err)
	}
	for layer := 0; layer < 6; layer++ {
		queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: tex, MipLevel: 0, Origin: hal.Origin3D{Z: uint32(layer)}},
			whitePixel,
			&hal.ImageDataLayout{Offset: 0, BytesPerRow: 4, RowsPerImage: 1},
			&hal.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		)
	}

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         "lambdash_placeholder_cube_view",
		Format:        gputypes.TextureFormatRGBA8Unorm,
		Dimension:     gputypes.TextureViewDimensionCube,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: placeholder cube view: %w", err)
	}
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:     "lambdash_placeholder_cube_sampler",
		MagFilter: gputypes.FilterModeLinear,
		MinFilter: gputypes.FilterModeLinear,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: placeholder cube sampler: %w", err)
	}
	return &placeholderTexture{texture: tex, view: view, sampler: sampler}, nil
}

func loadTexture2D(device hal.Device, queue hal.Queue, path string) (channelSlot, error) {
	rgba, err := decodeRGBA(path)
	if err != nil {
		return channelSlot{}, err
	}
	bounds := rgba.Bounds()
	width, height := uint32(bounds.Dx()), uint32(bounds.Dy())

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         filepath.Base(path),
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8UnormSrgb,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return channelSlot{}, fmt.Errorf("create texture: %w", err)
	}
	queue.WriteTexture(
		&hal.ImageCopyTexture{Texture: tex, MipLevel: 0},
		rgba.Pix,
		&hal.ImageDataLayout{Offset: 0, BytesPerRow: 4 * width, RowsPerImage: height},
		&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
	)

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         filepath.Base(path),
		Format:        gputypes.TextureFormatRGBA8UnormSrgb,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return channelSlot{}, fmt.Errorf("create view: %w", err)
	}
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        filepath.Base(path),
		AddressModeU: gputypes.AddressModeRepeat,
		AddressModeV: gputypes.AddressModeRepeat,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
	})
	if err != nil {
		return channelSlot{}, fmt.Errorf("create sampler: %w", err)
	}

	return channelSlot{view: view, sampler: sampler, texture: tex, width: float32(width), height: float32(height), owned: true}, nil
}

// loadCubemap loads the six canonical posx/negx/posy/negy/posz/negz faces
// from dir into one cube-viewed array texture, matching bindings.Build's
// face probing order.
func loadCubemap(device hal.Device, queue hal.Queue, dir string) (channelSlot, error) {
	var width, height uint32
	faces := make([]*image.RGBA, 0, 6)
	for _, stem := range []string{"posx", "negx", "posy", "negy", "posz", "negz"} {
		img, err := decodeFace(dir, stem)
		if err != nil {
			return channelSlot{}, err
		}
		bounds := img.Bounds()
		width, height = uint32(bounds.Dx()), uint32(bounds.Dy())
		faces = append(faces, img)
	}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         filepath.Base(dir),
		Size:          hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 6},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatRGBA8UnormSrgb,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return channelSlot{}, fmt.Errorf("create cubemap texture: %w", err)
	}
	for layer, img := range faces {
		queue.WriteTexture(
			&hal.ImageCopyTexture{Texture: tex, MipLevel: 0, Origin: hal.Origin3D{Z: uint32(layer)}},
			img.Pix,
			&hal.ImageDataLayout{Offset: 0, BytesPerRow: 4 * width, RowsPerImage: height},
			&hal.Extent3D{Width: width, Height: height, DepthOrArrayLayers: 1},
		)
	}

	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         filepath.Base(dir),
		Format:        gputypes.TextureFormatRGBA8UnormSrgb,
		Dimension:     gputypes.TextureViewDimensionCube,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		return channelSlot{}, fmt.Errorf("create cubemap view: %w", err)
	}
	sampler, err := device.CreateSampler(&hal.SamplerDescriptor{
		Label:        filepath.Base(dir),
		AddressModeU: gputypes.AddressModeClampToEdge,
		AddressModeV: gputypes.AddressModeClampToEdge,
		AddressModeW: gputypes.AddressModeClampToEdge,
		MagFilter:    gputypes.FilterModeLinear,
		MinFilter:    gputypes.FilterModeLinear,
	})
	if err != nil {
		return channelSlot{}, fmt.Errorf("create cubemap sampler: %w", err)
	}

	return channelSlot{view: view, sampler: sampler, texture: tex, width: float32(width), height: float32(height), owned: true}, nil
}

func decodeFace(dir, stem string) (*image.RGBA, error) {
	for _, ext := range []string{".png", ".jpg", ".jpeg"} {
		path := filepath.Join(dir, stem+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return decodeRGBA(path)
	}
	return nil, fmt.Errorf("cubemap face %q not found under %s", stem, dir)
}

func decodeRGBA(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return toRGBA(img), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.Set(x, y, img.At(x, y))
		}
	}
	return out
}
