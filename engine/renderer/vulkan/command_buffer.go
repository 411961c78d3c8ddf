package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func (d *Device) AllocateCommandBuffers(count int) ([]gpu.CommandBuffer, error) {
	if count <= 0 {
		return nil, nil
	}
	info := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: uint32(count),
	}
	buffers := make([]vk.CommandBuffer, count)
	if err := gpu.Check("vkAllocateCommandBuffers", vk.AllocateCommandBuffers(d.handle, &info, buffers)); err != nil {
		return nil, err
	}
	out := make([]gpu.CommandBuffer, count)
	for i, cb := range buffers {
		out[i] = d.commandBuffers.put(cb)
	}
	return out, nil
}

func (d *Device) FreeCommandBuffers(handles []gpu.CommandBuffer) {
	buffers := make([]vk.CommandBuffer, 0, len(handles))
	for _, h := range handles {
		if cb, ok := d.commandBuffers.take(h); ok {
			buffers = append(buffers, cb)
		}
	}
	if len(buffers) == 0 {
		return
	}
	vk.FreeCommandBuffers(d.handle, d.commandPool, uint32(len(buffers)), buffers)
}

func (d *Device) BeginCommandBuffer(h gpu.CommandBuffer, oneTimeSubmit bool) error {
	cb, err := d.commandBuffers.get(h)
	if err != nil {
		return err
	}
	info := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if oneTimeSubmit {
		info.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return gpu.Check("vkBeginCommandBuffer", vk.BeginCommandBuffer(cb, &info))
}

func (d *Device) EndCommandBuffer(h gpu.CommandBuffer) error {
	cb, err := d.commandBuffers.get(h)
	if err != nil {
		return err
	}
	return gpu.Check("vkEndCommandBuffer", vk.EndCommandBuffer(cb))
}

func (d *Device) ResetCommandBuffer(h gpu.CommandBuffer) error {
	cb, err := d.commandBuffers.get(h)
	if err != nil {
		return err
	}
	return gpu.Check("vkResetCommandBuffer", vk.ResetCommandBuffer(cb, 0))
}

func (d *Device) CmdBeginRenderPass(h gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	clearValues := make([]vk.ClearValue, len(begin.ClearValues))
	for i, c := range begin.ClearValues {
		if c.DepthStencil {
			clearValues[i] = vk.NewClearDepthStencil(c.Depth, c.Stencil)
		} else {
			clearValues[i] = vk.NewClearValue(c.Color[:])
		}
	}
	info := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  d.renderPasses.must(begin.RenderPass),
		Framebuffer: d.framebuffers.must(begin.Framebuffer),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: begin.Area.X, Y: begin.Area.Y},
			Extent: vk.Extent2D{Width: begin.Area.Width, Height: begin.Area.Height},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}
	vk.CmdBeginRenderPass(d.commandBuffers.must(h), &info, vk.SubpassContentsInline)
}

func (d *Device) CmdNextSubpass(h gpu.CommandBuffer) {
	vk.CmdNextSubpass(d.commandBuffers.must(h), vk.SubpassContentsInline)
}

func (d *Device) CmdEndRenderPass(h gpu.CommandBuffer) {
	vk.CmdEndRenderPass(d.commandBuffers.must(h))
}

func (d *Device) CmdBindPipeline(h gpu.CommandBuffer, pipeline gpu.Pipeline) {
	vk.CmdBindPipeline(d.commandBuffers.must(h), vk.PipelineBindPointGraphics, d.pipelines.must(pipeline))
}

func (d *Device) CmdSetViewport(h gpu.CommandBuffer, v gpu.Viewport) {
	vk.CmdSetViewport(d.commandBuffers.must(h), 0, 1, []vk.Viewport{{
		X:        v.X,
		Y:        v.Y,
		Width:    v.Width,
		Height:   v.Height,
		MinDepth: v.MinDepth,
		MaxDepth: v.MaxDepth,
	}})
}

func (d *Device) CmdSetScissor(h gpu.CommandBuffer, r gpu.Rect2D) {
	vk.CmdSetScissor(d.commandBuffers.must(h), 0, 1, []vk.Rect2D{{
		Offset: vk.Offset2D{X: r.X, Y: r.Y},
		Extent: vk.Extent2D{Width: r.Width, Height: r.Height},
	}})
}

func (d *Device) CmdBindVertexBuffer(h gpu.CommandBuffer, b gpu.Buffer, offset uint64) {
	vk.CmdBindVertexBuffers(d.commandBuffers.must(h), 0, 1,
		[]vk.Buffer{d.buffers.must(b).handle},
		[]vk.DeviceSize{vk.DeviceSize(offset)})
}

func (d *Device) CmdBindIndexBuffer(h gpu.CommandBuffer, b gpu.Buffer, offset uint64, indexType vk.IndexType) {
	vk.CmdBindIndexBuffer(d.commandBuffers.must(h), d.buffers.must(b).handle, vk.DeviceSize(offset), indexType)
}

func (d *Device) CmdBindDescriptorSets(h gpu.CommandBuffer, layout gpu.PipelineLayout, firstSet uint32, sets []gpu.DescriptorSet) {
	vkSets := make([]vk.DescriptorSet, len(sets))
	for i, s := range sets {
		vkSets[i] = d.sets.must(s)
	}
	vk.CmdBindDescriptorSets(d.commandBuffers.must(h), vk.PipelineBindPointGraphics,
		d.pipelineLayouts.must(layout), firstSet, uint32(len(vkSets)), vkSets, 0, nil)
}

func (d *Device) CmdPushConstants(h gpu.CommandBuffer, layout gpu.PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	vk.CmdPushConstants(d.commandBuffers.must(h), d.pipelineLayouts.must(layout), stages, offset,
		uint32(len(data)), unsafe.Pointer(&data[0]))
}

func (d *Device) CmdDraw(h gpu.CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	vk.CmdDraw(d.commandBuffers.must(h), vertexCount, instanceCount, firstVertex, firstInstance)
}

func (d *Device) CmdDrawIndexed(h gpu.CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32) {
	vk.CmdDrawIndexed(d.commandBuffers.must(h), indexCount, instanceCount, firstIndex, vertexOffset, firstInstance)
}

func (d *Device) CmdCopyBuffer(h gpu.CommandBuffer, src, dst gpu.Buffer, size uint64) {
	vk.CmdCopyBuffer(d.commandBuffers.must(h), d.buffers.must(src).handle, d.buffers.must(dst).handle, 1,
		[]vk.BufferCopy{{SrcOffset: 0, DstOffset: 0, Size: vk.DeviceSize(size)}})
}

func (d *Device) CmdCopyBufferToImage(h gpu.CommandBuffer, src gpu.Buffer, dst gpu.Image, e gpu.Extent2D) {
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       0,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{Width: e.Width, Height: e.Height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(d.commandBuffers.must(h), d.buffers.must(src).handle, d.images.must(dst).handle,
		vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

func (d *Device) CmdImageBarrier(h gpu.CommandBuffer, b gpu.ImageBarrier) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		SrcAccessMask:       b.SrcAccessMask,
		DstAccessMask:       b.DstAccessMask,
		OldLayout:           b.OldLayout,
		NewLayout:           b.NewLayout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               d.images.must(b.Image).handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     b.Aspect,
			BaseMipLevel:   b.BaseMipLevel,
			LevelCount:     max(b.LevelCount, 1),
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	vk.CmdPipelineBarrier(d.commandBuffers.must(h), b.SrcStage, b.DstStage, 0,
		0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}

func (d *Device) CmdBlitImage(h gpu.CommandBuffer, b gpu.ImageBlit) {
	img := d.images.must(b.Image).handle
	layers := func(mip uint32) vk.ImageSubresourceLayers {
		return vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       mip,
			BaseArrayLayer: 0,
			LayerCount:     1,
		}
	}
	blit := vk.ImageBlit{
		SrcSubresource: layers(b.SrcMip),
		SrcOffsets: [2]vk.Offset3D{
			{X: 0, Y: 0, Z: 0},
			{X: int32(b.SrcExtent.Width), Y: int32(b.SrcExtent.Height), Z: 1},
		},
		DstSubresource: layers(b.DstMip),
		DstOffsets: [2]vk.Offset3D{
			{X: 0, Y: 0, Z: 0},
			{X: int32(b.DstExtent.Width), Y: int32(b.DstExtent.Height), Z: 1},
		},
	}
	vk.CmdBlitImage(d.commandBuffers.must(h),
		img, vk.ImageLayoutTransferSrcOptimal,
		img, vk.ImageLayoutTransferDstOptimal,
		1, []vk.ImageBlit{blit}, vk.FilterLinear)
}
