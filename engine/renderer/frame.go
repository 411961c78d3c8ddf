package renderer

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// MaxFramesInFlight is the number of frame slots recorded ahead of the GPU.
const MaxFramesInFlight = 2

// FrameSlot is everything one in-flight frame needs exclusively. A slot is
// reused only after its fence has been waited on.
type FrameSlot struct {
	CommandBuffer  gpu.CommandBuffer
	ImageAvailable gpu.Semaphore
	RenderFinished gpu.Semaphore
	Fence          gpu.Fence
	Uniform        *AllocatedBuffer
	UniformSet     gpu.DescriptorSet
	InputSet       gpu.DescriptorSet

	inputGeneration uint64
}

func newFrameSlot(dev gpu.Device, allocator *Allocator, pool gpu.DescriptorPool, layouts *DescriptorLayouts) (*FrameSlot, error) {
	slot := &FrameSlot{}
	cbs, err := dev.AllocateCommandBuffers(1)
	if err != nil {
		return nil, errors.Wrap(err, "allocating frame command buffer")
	}
	slot.CommandBuffer = cbs[0]

	if slot.ImageAvailable, err = dev.CreateSemaphore(); err != nil {
		slot.destroy(dev)
		return nil, errors.Wrap(err, "creating image available semaphore")
	}
	if slot.RenderFinished, err = dev.CreateSemaphore(); err != nil {
		slot.destroy(dev)
		return nil, errors.Wrap(err, "creating render finished semaphore")
	}
	// Signaled so the first wait on an unused slot returns at once.
	if slot.Fence, err = dev.CreateFence(true); err != nil {
		slot.destroy(dev)
		return nil, errors.Wrap(err, "creating frame fence")
	}
	if slot.Uniform, err = allocator.CreateBuffer(metadata.CameraUniformSize, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit)); err != nil {
		slot.destroy(dev)
		return nil, err
	}

	sets, err := dev.AllocateDescriptorSets(pool, []gpu.DescriptorSetLayout{layouts.Uniform, layouts.Input})
	if err != nil {
		slot.destroy(dev)
		return nil, errors.Wrap(err, "allocating frame descriptor sets")
	}
	slot.UniformSet, slot.InputSet = sets[0], sets[1]
	writeUniformSet(dev, slot.UniformSet, slot.Uniform)
	return slot, nil
}

func (f *FrameSlot) refreshInput(dev gpu.Device, sc *Swapchain) {
	if f.inputGeneration == sc.Generation {
		return
	}
	writeInputSet(dev, f.InputSet, sc.Color.View)
	f.inputGeneration = sc.Generation
}

func (f *FrameSlot) destroy(dev gpu.Device) {
	if f.CommandBuffer != 0 {
		dev.FreeCommandBuffers([]gpu.CommandBuffer{f.CommandBuffer})
		f.CommandBuffer = 0
	}
	if f.ImageAvailable != 0 {
		dev.DestroySemaphore(f.ImageAvailable)
		f.ImageAvailable = 0
	}
	if f.RenderFinished != 0 {
		dev.DestroySemaphore(f.RenderFinished)
		f.RenderFinished = 0
	}
	if f.Fence != 0 {
		dev.DestroyFence(f.Fence)
		f.Fence = 0
	}
	f.Uniform.Destroy()
}

// DrawFrame runs one wait, acquire, record, submit and present cycle. A stale
// swapchain is recreated and the frame dropped; only fatal errors are returned.
func (r *Renderer) DrawFrame(camera *Camera) error {
	if r.booting {
		r.window.WaitEvents()
		return r.recreate()
	}
	if r.resized {
		r.resized = false
		if err := r.recreate(); err != nil || r.booting {
			return err
		}
	}

	dev := r.ctx.Device
	slot := r.frames[r.currentFrame]

	if err := dev.WaitForFence(slot.Fence, gpu.MaxTimeout); err != nil {
		return errors.Wrap(err, "waiting for frame fence")
	}

	imageIndex, err := dev.AcquireNextImage(r.swapchain.Handle, gpu.MaxTimeout, slot.ImageAvailable)
	switch {
	case gpu.IsOutOfDate(err):
		return r.recreate()
	case gpu.IsSuboptimal(err):
		r.dirty = true
	case err != nil:
		return errors.Wrap(err, "acquiring swapchain image")
	}

	if guard := r.imagesInFlight[imageIndex]; guard != 0 && guard != slot.Fence {
		if err := dev.WaitForFence(guard, gpu.MaxTimeout); err != nil {
			return errors.Wrap(err, "waiting for image fence")
		}
	}
	r.imagesInFlight[imageIndex] = slot.Fence

	if err := dev.ResetFence(slot.Fence); err != nil {
		return errors.Wrap(err, "resetting frame fence")
	}

	extent := r.swapchain.Extent
	uniform := camera.Uniform(float32(extent.Width) / float32(extent.Height))
	if err := r.allocator.WriteHostVisible(slot.Uniform, 0, uniform.Bytes()); err != nil {
		return errors.Wrap(err, "writing camera uniform")
	}
	slot.refreshInput(dev, r.swapchain)

	if err := r.record(slot, imageIndex); err != nil {
		return err
	}

	err = dev.Submit(gpu.SubmitInfo{
		CommandBuffers: []gpu.CommandBuffer{slot.CommandBuffer},
		WaitSemaphores: []gpu.Semaphore{slot.ImageAvailable},
		WaitStages:     []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)},
		Signal:         []gpu.Semaphore{slot.RenderFinished},
		Fence:          slot.Fence,
	})
	if err != nil {
		return errors.Wrap(err, "submitting frame")
	}

	err = dev.Present(gpu.PresentInfo{
		Swapchain:      r.swapchain.Handle,
		ImageIndex:     imageIndex,
		WaitSemaphores: []gpu.Semaphore{slot.RenderFinished},
	})
	stale := gpu.IsStale(err)
	if err != nil && !stale {
		return errors.Wrap(err, "presenting frame")
	}
	if stale || r.dirty || r.resized {
		r.dirty = false
		r.resized = false
		if err := r.recreate(); err != nil {
			return err
		}
	}

	r.currentFrame = (r.currentFrame + 1) % MaxFramesInFlight
	r.frameNumber++
	return nil
}

func (r *Renderer) record(slot *FrameSlot, imageIndex uint32) error {
	dev := r.ctx.Device
	cb := slot.CommandBuffer
	if err := dev.ResetCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "resetting frame command buffer")
	}
	if err := dev.BeginCommandBuffer(cb, false); err != nil {
		return errors.Wrap(err, "beginning frame command buffer")
	}

	viewport, scissor := r.swapchain.Viewport(), r.swapchain.Scissor()
	dev.CmdBeginRenderPass(cb, gpu.RenderPassBegin{
		RenderPass:  r.swapchain.RenderPass,
		Framebuffer: r.swapchain.Framebuffers[imageIndex],
		Area:        scissor,
		ClearValues: []gpu.ClearValue{
			{Color: r.clearColor},
			{Color: [4]float32{0, 0, 0, 1}},
			{Depth: 1, Stencil: 0, DepthStencil: true},
		},
	})

	r.lastDraws = r.scene.record(cb, r.pipelines, slot.UniformSet, viewport, scissor)
	if r.overlay != nil {
		r.overlay.Record(cb, metadata.PipelineGeometry.Subpass())
	}

	dev.CmdNextSubpass(cb)
	post := r.pipelines.Get(metadata.PipelinePostProcess)
	dev.CmdBindPipeline(cb, post.Handle)
	dev.CmdSetViewport(cb, viewport)
	dev.CmdSetScissor(cb, scissor)
	dev.CmdBindDescriptorSets(cb, post.Layout, 0, []gpu.DescriptorSet{slot.InputSet})
	dev.CmdDraw(cb, 3, 1, 0, 0)

	dev.CmdEndRenderPass(cb)
	if err := dev.EndCommandBuffer(cb); err != nil {
		return errors.Wrap(err, "ending frame command buffer")
	}
	return nil
}

// recreate rebuilds the swapchain. A surface without area defers the rebuild
// to a later frame instead of failing.
func (r *Renderer) recreate() error {
	err := r.swapchain.Recreate(r.window)
	if errors.Is(err, core.ErrSwapchainBooting) {
		core.LogDebug("Surface has no area, deferring swapchain recreation.")
		r.booting = true
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "recreating swapchain")
	}
	r.booting = false
	r.imagesInFlight = make([]gpu.Fence, len(r.swapchain.Images))
	// The device is idle here, so every slot can drop the old color view.
	for _, f := range r.frames {
		if f != nil {
			f.refreshInput(r.ctx.Device, r.swapchain)
		}
	}
	return nil
}
