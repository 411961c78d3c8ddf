package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func (d *Device) CreateSwapchain(desc gpu.SwapchainDescriptor) (gpu.Swapchain, error) {
	info := vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         d.adapter.surface,
		MinImageCount:   desc.MinImageCount,
		ImageFormat:     desc.Format.Format,
		ImageColorSpace: desc.Format.ColorSpace,
		ImageExtent: vk.Extent2D{
			Width:  desc.Extent.Width,
			Height: desc.Extent.Height,
		},
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     desc.Transform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      desc.PresentMode,
		Clipped:          vk.True,
	}
	if len(desc.QueueFamilies) > 1 {
		info.ImageSharingMode = vk.SharingModeConcurrent
		info.QueueFamilyIndexCount = uint32(len(desc.QueueFamilies))
		info.PQueueFamilyIndices = desc.QueueFamilies
	}
	if desc.OldSwapchain != 0 {
		old, err := d.swapchains.get(desc.OldSwapchain)
		if err != nil {
			return 0, err
		}
		info.OldSwapchain = old.handle
	}

	var handle vk.Swapchain
	if err := gpu.Check("vkCreateSwapchainKHR", vk.CreateSwapchain(d.handle, &info, nil, &handle)); err != nil {
		return 0, err
	}

	var count uint32
	if err := gpu.Check("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(d.handle, handle, &count, nil)); err != nil {
		vk.DestroySwapchain(d.handle, handle, nil)
		return 0, err
	}
	images := make([]vk.Image, count)
	if err := gpu.Check("vkGetSwapchainImagesKHR", vk.GetSwapchainImages(d.handle, handle, &count, images)); err != nil {
		vk.DestroySwapchain(d.handle, handle, nil)
		return 0, err
	}

	sc := &swapchain{handle: handle}
	h := d.swapchains.put(sc)
	for _, img := range images[:count] {
		sc.images = append(sc.images, d.images.put(image{handle: img, owner: h}))
	}
	core.LogDebug("Swapchain %d created with %d images.", h, count)
	return h, nil
}

func (d *Device) SwapchainImages(h gpu.Swapchain) ([]gpu.Image, error) {
	sc, err := d.swapchains.get(h)
	if err != nil {
		return nil, err
	}
	return append([]gpu.Image(nil), sc.images...), nil
}

// DestroySwapchain also invalidates the swapchain's image handles.
func (d *Device) DestroySwapchain(h gpu.Swapchain) {
	sc, ok := d.swapchains.take(h)
	if !ok {
		return
	}
	for _, img := range sc.images {
		d.images.take(img)
	}
	vk.DestroySwapchain(d.handle, sc.handle, nil)
}

func (d *Device) AcquireNextImage(h gpu.Swapchain, timeout uint64, signal gpu.Semaphore) (uint32, error) {
	sc, err := d.swapchains.get(h)
	if err != nil {
		return 0, err
	}
	semaphore, err := d.semaphores.get(signal)
	if err != nil {
		return 0, err
	}
	var index uint32
	result := vk.AcquireNextImage(d.handle, sc.handle, timeout, semaphore, vk.NullFence, &index)
	if result == vk.Suboptimal {
		return index, &gpu.ResultError{Call: "vkAcquireNextImageKHR", Result: result}
	}
	return index, gpu.Check("vkAcquireNextImageKHR", result)
}

func (d *Device) Present(info gpu.PresentInfo) error {
	sc, err := d.swapchains.get(info.Swapchain)
	if err != nil {
		return err
	}
	wait := make([]vk.Semaphore, len(info.WaitSemaphores))
	for i, s := range info.WaitSemaphores {
		if wait[i], err = d.semaphores.get(s); err != nil {
			return err
		}
	}
	presentInfo := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(wait)),
		PWaitSemaphores:    wait,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc.handle},
		PImageIndices:      []uint32{info.ImageIndex},
	}
	return gpu.Check("vkQueuePresentKHR", vk.QueuePresent(d.presentQueue, &presentInfo))
}
