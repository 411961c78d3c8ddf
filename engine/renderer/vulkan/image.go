package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func (d *Device) CreateImage(desc gpu.ImageDescriptor) (gpu.Image, error) {
	mips := max(desc.MipLevels, 1)
	info := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    desc.Format,
		Extent: vk.Extent3D{
			Width:  desc.Width,
			Height: desc.Height,
			Depth:  1,
		},
		MipLevels:     mips,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         desc.Usage,
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var handle vk.Image
	if err := gpu.Check("vkCreateImage", vk.CreateImage(d.handle, &info, nil, &handle)); err != nil {
		return 0, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.handle, handle, &reqs)
	memory, err := d.allocate(reqs, desc.Memory)
	if err != nil {
		vk.DestroyImage(d.handle, handle, nil)
		return 0, err
	}
	if err := gpu.Check("vkBindImageMemory", vk.BindImageMemory(d.handle, handle, memory, 0)); err != nil {
		vk.DestroyImage(d.handle, handle, nil)
		vk.FreeMemory(d.handle, memory, nil)
		return 0, err
	}
	return d.images.put(image{handle: handle, memory: memory}), nil
}

func (d *Device) DestroyImage(h gpu.Image) {
	img, err := d.images.get(h)
	if err != nil {
		return
	}
	if img.owner != 0 {
		core.LogWarn("Image %d belongs to swapchain %d and is released with it.", h, img.owner)
		return
	}
	d.images.take(h)
	vk.DestroyImage(d.handle, img.handle, nil)
	vk.FreeMemory(d.handle, img.memory, nil)
}

func (d *Device) CreateImageView(desc gpu.ImageViewDescriptor) (gpu.ImageView, error) {
	img, err := d.images.get(desc.Image)
	if err != nil {
		return 0, err
	}
	info := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.handle,
		ViewType: vk.ImageViewType2d,
		Format:   desc.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     desc.Aspect,
			BaseMipLevel:   0,
			LevelCount:     max(desc.MipLevels, 1),
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var view vk.ImageView
	if err := gpu.Check("vkCreateImageView", vk.CreateImageView(d.handle, &info, nil, &view)); err != nil {
		return 0, err
	}
	return d.views.put(view), nil
}

func (d *Device) DestroyImageView(h gpu.ImageView) {
	if view, ok := d.views.take(h); ok {
		vk.DestroyImageView(d.handle, view, nil)
	}
}

func (d *Device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               desc.MagFilter,
		MinFilter:               desc.MinFilter,
		MipmapMode:              desc.MipmapMode,
		AddressModeU:            desc.AddressMode,
		AddressModeV:            desc.AddressMode,
		AddressModeW:            desc.AddressMode,
		AnisotropyEnable:        boolean(desc.Anisotropy),
		MaxAnisotropy:           desc.MaxAnisotropy,
		CompareEnable:           vk.False,
		CompareOp:               vk.CompareOpAlways,
		MinLod:                  0,
		MaxLod:                  desc.MaxLod,
		BorderColor:             vk.BorderColorIntOpaqueBlack,
		UnnormalizedCoordinates: vk.False,
	}
	var sampler vk.Sampler
	if err := gpu.Check("vkCreateSampler", vk.CreateSampler(d.handle, &info, nil, &sampler)); err != nil {
		return 0, err
	}
	return d.samplers.put(sampler), nil
}

func (d *Device) DestroySampler(h gpu.Sampler) {
	if sampler, ok := d.samplers.take(h); ok {
		vk.DestroySampler(d.handle, sampler, nil)
	}
}
