package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	info := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		info.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := gpu.Check("vkCreateFence", vk.CreateFence(d.handle, &info, nil, &fence)); err != nil {
		return 0, err
	}
	return d.fences.put(fence), nil
}

// WaitForFence returns a *gpu.ResultError carrying vk.Timeout when the wait expires.
func (d *Device) WaitForFence(h gpu.Fence, timeout uint64) error {
	fence, err := d.fences.get(h)
	if err != nil {
		return err
	}
	return gpu.Check("vkWaitForFences", vk.WaitForFences(d.handle, 1, []vk.Fence{fence}, vk.True, timeout))
}

func (d *Device) ResetFence(h gpu.Fence) error {
	fence, err := d.fences.get(h)
	if err != nil {
		return err
	}
	return gpu.Check("vkResetFences", vk.ResetFences(d.handle, 1, []vk.Fence{fence}))
}

func (d *Device) DestroyFence(h gpu.Fence) {
	if fence, ok := d.fences.take(h); ok {
		vk.DestroyFence(d.handle, fence, nil)
	}
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	info := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var semaphore vk.Semaphore
	if err := gpu.Check("vkCreateSemaphore", vk.CreateSemaphore(d.handle, &info, nil, &semaphore)); err != nil {
		return 0, err
	}
	return d.semaphores.put(semaphore), nil
}

func (d *Device) DestroySemaphore(h gpu.Semaphore) {
	if semaphore, ok := d.semaphores.take(h); ok {
		vk.DestroySemaphore(d.handle, semaphore, nil)
	}
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	var err error
	buffers := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, cb := range info.CommandBuffers {
		if buffers[i], err = d.commandBuffers.get(cb); err != nil {
			return err
		}
	}
	wait := make([]vk.Semaphore, len(info.WaitSemaphores))
	for i, s := range info.WaitSemaphores {
		if wait[i], err = d.semaphores.get(s); err != nil {
			return err
		}
	}
	signal := make([]vk.Semaphore, len(info.Signal))
	for i, s := range info.Signal {
		if signal[i], err = d.semaphores.get(s); err != nil {
			return err
		}
	}
	fence := vk.NullFence
	if info.Fence != 0 {
		if fence, err = d.fences.get(info.Fence); err != nil {
			return err
		}
	}

	submitInfo := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    info.WaitStages,
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}
	return gpu.Check("vkQueueSubmit", vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{submitInfo}, fence))
}
