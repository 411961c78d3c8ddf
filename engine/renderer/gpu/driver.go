package gpu

import (
	vk "github.com/goki/vulkan"
)

// Instance owns the API instance and the presentation surface of one window.
type Instance interface {
	Adapters() ([]Adapter, error)
	CreateDevice(adapter Adapter, desc DeviceDescriptor) (Device, error)
	Destroy()
}

// Adapter is a physical device as seen through the instance's surface.
type Adapter interface {
	Properties() AdapterProperties
	Features() AdapterFeatures
	QueueFamilies() []QueueFamily
	SupportsPresent(family uint32) (bool, error)
	Extensions() ([]string, error)
	SurfaceCapabilities() (SurfaceCapabilities, error)
	SurfaceFormats() ([]SurfaceFormat, error)
	PresentModes() ([]vk.PresentMode, error)
	FormatProperties(format vk.Format) FormatProperties
}

// Device is a logical device with one graphics queue, one present queue (they
// may coincide) and one resettable command pool on the graphics family.
type Device interface {
	Resources
	Pipelines
	Presentation
	Commands
	Sync

	WaitIdle() error
	Destroy()
}

type Resources interface {
	CreateBuffer(desc BufferDescriptor) (Buffer, error)
	// WriteBuffer copies data into host-visible memory.
	WriteBuffer(buffer Buffer, offset uint64, data []byte) error
	// ReadBuffer copies host-visible memory into out.
	ReadBuffer(buffer Buffer, offset uint64, out []byte) error
	DestroyBuffer(buffer Buffer)

	CreateImage(desc ImageDescriptor) (Image, error)
	DestroyImage(image Image)
	CreateImageView(desc ImageViewDescriptor) (ImageView, error)
	DestroyImageView(view ImageView)
	CreateSampler(desc SamplerDescriptor) (Sampler, error)
	DestroySampler(sampler Sampler)
}

type Pipelines interface {
	CreateShaderModule(code []byte) (ShaderModule, error)
	DestroyShaderModule(module ShaderModule)

	CreateDescriptorSetLayout(bindings []DescriptorBinding) (DescriptorSetLayout, error)
	DestroyDescriptorSetLayout(layout DescriptorSetLayout)
	CreateDescriptorPool(desc DescriptorPoolDescriptor) (DescriptorPool, error)
	DestroyDescriptorPool(pool DescriptorPool)
	AllocateDescriptorSets(pool DescriptorPool, layouts []DescriptorSetLayout) ([]DescriptorSet, error)
	UpdateDescriptorSets(writes []DescriptorWrite)

	CreatePipelineLayout(desc PipelineLayoutDescriptor) (PipelineLayout, error)
	DestroyPipelineLayout(layout PipelineLayout)
	CreateGraphicsPipeline(desc GraphicsPipelineDescriptor) (Pipeline, error)
	DestroyPipeline(pipeline Pipeline)

	CreateRenderPass(desc RenderPassDescriptor) (RenderPass, error)
	DestroyRenderPass(pass RenderPass)
	CreateFramebuffer(desc FramebufferDescriptor) (Framebuffer, error)
	DestroyFramebuffer(framebuffer Framebuffer)
}

type Presentation interface {
	CreateSwapchain(desc SwapchainDescriptor) (Swapchain, error)
	SwapchainImages(swapchain Swapchain) ([]Image, error)
	DestroySwapchain(swapchain Swapchain)
	// AcquireNextImage returns a *ResultError carrying vk.Suboptimal together
	// with a valid index when the image can still be used.
	AcquireNextImage(swapchain Swapchain, timeout uint64, signal Semaphore) (uint32, error)
	Present(info PresentInfo) error
}

type Commands interface {
	AllocateCommandBuffers(count int) ([]CommandBuffer, error)
	FreeCommandBuffers(buffers []CommandBuffer)
	BeginCommandBuffer(cb CommandBuffer, oneTimeSubmit bool) error
	EndCommandBuffer(cb CommandBuffer) error
	ResetCommandBuffer(cb CommandBuffer) error

	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdNextSubpass(cb CommandBuffer)
	CmdEndRenderPass(cb CommandBuffer)
	CmdBindPipeline(cb CommandBuffer, pipeline Pipeline)
	CmdSetViewport(cb CommandBuffer, viewport Viewport)
	CmdSetScissor(cb CommandBuffer, scissor Rect2D)
	CmdBindVertexBuffer(cb CommandBuffer, buffer Buffer, offset uint64)
	CmdBindIndexBuffer(cb CommandBuffer, buffer Buffer, offset uint64, indexType vk.IndexType)
	CmdBindDescriptorSets(cb CommandBuffer, layout PipelineLayout, firstSet uint32, sets []DescriptorSet)
	CmdPushConstants(cb CommandBuffer, layout PipelineLayout, stages vk.ShaderStageFlags, offset uint32, data []byte)
	CmdDraw(cb CommandBuffer, vertexCount, instanceCount, firstVertex, firstInstance uint32)
	CmdDrawIndexed(cb CommandBuffer, indexCount, instanceCount, firstIndex uint32, vertexOffset int32, firstInstance uint32)
	CmdCopyBuffer(cb CommandBuffer, src, dst Buffer, size uint64)
	CmdCopyBufferToImage(cb CommandBuffer, src Buffer, dst Image, extent Extent2D)
	CmdImageBarrier(cb CommandBuffer, barrier ImageBarrier)
	CmdBlitImage(cb CommandBuffer, blit ImageBlit)
}

type Sync interface {
	CreateFence(signaled bool) (Fence, error)
	WaitForFence(fence Fence, timeout uint64) error
	ResetFence(fence Fence) error
	DestroyFence(fence Fence)
	CreateSemaphore() (Semaphore, error)
	DestroySemaphore(semaphore Semaphore)

	Submit(info SubmitInfo) error
	QueueWaitIdle() error
}
