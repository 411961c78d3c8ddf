package renderer

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Texture is a sampled image with its full (or degraded) mip chain.
type Texture struct {
	ID        TextureID
	Image     *AllocatedImage
	Sampler   gpu.Sampler
	Width     uint32
	Height    uint32
	MipLevels uint32
	Format    vk.Format

	device    gpu.Device
	destroyed bool
}

func (t *Texture) Destroy() {
	if t == nil || t.destroyed {
		return
	}
	t.device.DestroySampler(t.Sampler)
	t.Image.Destroy()
	t.destroyed = true
}

// SupportsLinearBlit reports whether mip generation by linear blits is possible for format.
func (a *Allocator) SupportsLinearBlit(format vk.Format) bool {
	props := a.ctx.Adapter.FormatProperties(format)
	linear := vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit)
	return props.OptimalTilingFeatures&linear != 0
}

// CreateTexture uploads pixels into a new device-local image, generates its
// mip chain with a blit per level and creates a trilinear, repeating sampler.
// When the format cannot be linearly blitted the texture keeps a single level.
func (a *Allocator) CreateTexture(width, height uint32, format vk.Format, pixels []byte) (*Texture, error) {
	data := metadata.TextureData{Width: width, Height: height, Format: format, Pixels: pixels}
	if err := data.Validate(); err != nil {
		return nil, err
	}

	levels := math.MipLevels(width, height)
	if levels > 1 && !a.SupportsLinearBlit(format) {
		core.LogWarn("Format %d does not support linear blitting, texture %dx%d gets a single mip level.", format, width, height)
		levels = 1
	}

	usage := vk.ImageUsageFlags(vk.ImageUsageTransferSrcBit | vk.ImageUsageTransferDstBit | vk.ImageUsageSampledBit)
	image, err := a.CreateImage(gpu.ImageDescriptor{
		Width:     width,
		Height:    height,
		MipLevels: levels,
		Format:    format,
		Usage:     usage,
		Memory:    deviceLocal,
	}, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return nil, err
	}

	staging, err := a.stagingBuffer(uint64(len(pixels)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		image.Destroy()
		return nil, err
	}
	defer staging.Destroy()
	if err := a.ctx.Device.WriteBuffer(staging.Handle, 0, pixels); err != nil {
		image.Destroy()
		return nil, errors.Wrap(err, "filling texture staging buffer")
	}

	err = a.SingleUse(func(cb gpu.CommandBuffer) {
		dev := a.ctx.Device
		dev.CmdImageBarrier(cb, gpu.ImageBarrier{
			Image:         image.Handle,
			OldLayout:     vk.ImageLayoutUndefined,
			NewLayout:     vk.ImageLayoutTransferDstOptimal,
			DstAccessMask: vk.AccessFlags(vk.AccessTransferWriteBit),
			SrcStage:      vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit),
			DstStage:      vk.PipelineStageFlags(vk.PipelineStageTransferBit),
			Aspect:        vk.ImageAspectFlags(vk.ImageAspectColorBit),
			BaseMipLevel:  0,
			LevelCount:    levels,
		})
		dev.CmdCopyBufferToImage(cb, staging.Handle, image.Handle, gpu.Extent2D{Width: width, Height: height})
		recordMipChain(dev, cb, image.Handle, width, height, levels)
	})
	if err != nil {
		image.Destroy()
		return nil, errors.Wrap(err, "uploading texture")
	}

	sampler, err := a.ctx.Device.CreateSampler(gpu.SamplerDescriptor{
		MagFilter:     vk.FilterLinear,
		MinFilter:     vk.FilterLinear,
		MipmapMode:    vk.SamplerMipmapModeLinear,
		AddressMode:   vk.SamplerAddressModeRepeat,
		Anisotropy:    a.anisotropy && a.ctx.Features.SamplerAnisotropy,
		MaxAnisotropy: a.ctx.Properties.MaxSamplerAnisotropy,
		MaxLod:        float32(levels),
	})
	if err != nil {
		image.Destroy()
		return nil, errors.Wrap(err, "creating texture sampler")
	}

	return &Texture{
		Image:     image,
		Sampler:   sampler,
		Width:     width,
		Height:    height,
		MipLevels: levels,
		Format:    format,
		device:    a.ctx.Device,
	}, nil
}

// recordMipChain expects every level in TRANSFER_DST layout with level 0
// filled, and leaves every level in SHADER_READ_ONLY layout.
func recordMipChain(dev gpu.Device, cb gpu.CommandBuffer, image gpu.Image, width, height, levels uint32) {
	barrier := gpu.ImageBarrier{
		Image:      image,
		Aspect:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
		LevelCount: 1,
	}
	for i := uint32(1); i < levels; i++ {
		barrier.BaseMipLevel = i - 1
		barrier.OldLayout = vk.ImageLayoutTransferDstOptimal
		barrier.NewLayout = vk.ImageLayoutTransferSrcOptimal
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferReadBit)
		barrier.SrcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		barrier.DstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
		dev.CmdImageBarrier(cb, barrier)

		dev.CmdBlitImage(cb, gpu.ImageBlit{
			Image:     image,
			SrcMip:    i - 1,
			SrcExtent: gpu.Extent2D{Width: math.MipExtent(width, i-1), Height: math.MipExtent(height, i-1)},
			DstMip:    i,
			DstExtent: gpu.Extent2D{Width: math.MipExtent(width, i), Height: math.MipExtent(height, i)},
		})

		barrier.OldLayout = vk.ImageLayoutTransferSrcOptimal
		barrier.NewLayout = vk.ImageLayoutShaderReadOnlyOptimal
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferReadBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		barrier.DstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
		dev.CmdImageBarrier(cb, barrier)
	}

	// The last level was only ever a blit destination.
	barrier.BaseMipLevel = levels - 1
	barrier.OldLayout = vk.ImageLayoutTransferDstOptimal
	barrier.NewLayout = vk.ImageLayoutShaderReadOnlyOptimal
	barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
	barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
	barrier.SrcStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)
	barrier.DstStage = vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	dev.CmdImageBarrier(cb, barrier)
}
