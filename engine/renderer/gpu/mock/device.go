package mock

import (
	"fmt"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

type bufferState struct {
	desc gpu.BufferDescriptor
	data []byte
}

type imageState struct {
	desc gpu.ImageDescriptor
	data []byte
	// swapchain images are owned by their swapchain
	swapchain gpu.Swapchain
}

type swapchainState struct {
	desc     gpu.SwapchainDescriptor
	images   []gpu.Image
	next     uint32
	acquired map[uint32]bool
}

type commandBufferState struct {
	commands     []Command
	recording    bool
	pendingFence gpu.Fence
}

type fenceState struct {
	signaled bool
	// waited is cleared by a submit and set by a successful wait.
	waited bool
}

type poolState struct {
	desc      gpu.DescriptorPoolDescriptor
	allocated uint32
}

type setState struct {
	pool   gpu.DescriptorPool
	layout gpu.DescriptorSetLayout
	writes map[uint32]gpu.DescriptorWrite
}

// Device implements gpu.Device in memory. Exported slices are the inspection
// surface for tests.
type Device struct {
	Adapter    *Adapter
	Descriptor gpu.DeviceDescriptor

	// Events is the ordered synchronization log.
	Events []Event
	// Submissions holds a snapshot of the commands of every submitted buffer.
	Submissions []Submission
	// Misuse collects API contract violations, such as destroying an unknown
	// handle or resetting a fence that was never waited on.
	Misuse []string

	// AcquireResults and PresentResults are consumed one per call; an empty
	// queue means vk.Success.
	AcquireResults []vk.Result
	PresentResults []vk.Result
	// FailPipelines makes CreateGraphicsPipeline fail for these labels.
	FailPipelines map[string]bool

	nextHandle uint64

	buffers         map[gpu.Buffer]*bufferState
	images          map[gpu.Image]*imageState
	views           map[gpu.ImageView]gpu.ImageViewDescriptor
	samplers        map[gpu.Sampler]gpu.SamplerDescriptor
	modules         map[gpu.ShaderModule][]byte
	setLayouts      map[gpu.DescriptorSetLayout][]gpu.DescriptorBinding
	pools           map[gpu.DescriptorPool]*poolState
	sets            map[gpu.DescriptorSet]*setState
	pipelineLayouts map[gpu.PipelineLayout]gpu.PipelineLayoutDescriptor
	pipelines       map[gpu.Pipeline]gpu.GraphicsPipelineDescriptor
	renderPasses    map[gpu.RenderPass]gpu.RenderPassDescriptor
	framebuffers    map[gpu.Framebuffer]gpu.FramebufferDescriptor
	swapchains      map[gpu.Swapchain]*swapchainState
	commandBuffers  map[gpu.CommandBuffer]*commandBufferState
	fences          map[gpu.Fence]*fenceState
	semaphores      map[gpu.Semaphore]bool

	destroyed bool
}

func newDevice(a *Adapter, desc gpu.DeviceDescriptor) *Device {
	return &Device{
		Adapter:         a,
		Descriptor:      desc,
		buffers:         map[gpu.Buffer]*bufferState{},
		images:          map[gpu.Image]*imageState{},
		views:           map[gpu.ImageView]gpu.ImageViewDescriptor{},
		samplers:        map[gpu.Sampler]gpu.SamplerDescriptor{},
		modules:         map[gpu.ShaderModule][]byte{},
		setLayouts:      map[gpu.DescriptorSetLayout][]gpu.DescriptorBinding{},
		pools:           map[gpu.DescriptorPool]*poolState{},
		sets:            map[gpu.DescriptorSet]*setState{},
		pipelineLayouts: map[gpu.PipelineLayout]gpu.PipelineLayoutDescriptor{},
		pipelines:       map[gpu.Pipeline]gpu.GraphicsPipelineDescriptor{},
		renderPasses:    map[gpu.RenderPass]gpu.RenderPassDescriptor{},
		framebuffers:    map[gpu.Framebuffer]gpu.FramebufferDescriptor{},
		swapchains:      map[gpu.Swapchain]*swapchainState{},
		commandBuffers:  map[gpu.CommandBuffer]*commandBufferState{},
		fences:          map[gpu.Fence]*fenceState{},
		semaphores:      map[gpu.Semaphore]bool{},
	}
}

func (d *Device) handle() uint64 {
	d.nextHandle++
	return d.nextHandle
}

func (d *Device) misuse(format string, args ...interface{}) {
	d.Misuse = append(d.Misuse, fmt.Sprintf(format, args...))
}

func (d *Device) event(e Event) {
	d.Events = append(d.Events, e)
}

func (d *Device) WaitIdle() error {
	d.event(Event{Kind: EventDeviceWaitIdle})
	for _, f := range d.fences {
		f.waited = true
	}
	return nil
}

func (d *Device) Destroy() {
	d.destroyed = true
}

func (d *Device) Destroyed() bool {
	return d.destroyed
}

// Buffers

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	if desc.Size == 0 {
		return 0, gpu.Check("vkCreateBuffer", vk.ErrorInitializationFailed)
	}
	h := gpu.Buffer(d.handle())
	d.buffers[h] = &bufferState{desc: desc, data: make([]byte, desc.Size)}
	return h, nil
}

func (d *Device) hostVisible(desc gpu.BufferDescriptor) bool {
	return desc.Memory&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0
}

func (d *Device) WriteBuffer(buffer gpu.Buffer, offset uint64, data []byte) error {
	b, ok := d.buffers[buffer]
	if !ok {
		return errors.Newf("write to unknown buffer %d", buffer)
	}
	if !d.hostVisible(b.desc) {
		return gpu.Check("vkMapMemory", vk.ErrorMemoryMapFailed)
	}
	if offset+uint64(len(data)) > b.desc.Size {
		return errors.Newf("write of %d bytes at %d overflows buffer of %d", len(data), offset, b.desc.Size)
	}
	copy(b.data[offset:], data)
	return nil
}

func (d *Device) ReadBuffer(buffer gpu.Buffer, offset uint64, out []byte) error {
	b, ok := d.buffers[buffer]
	if !ok {
		return errors.Newf("read from unknown buffer %d", buffer)
	}
	if !d.hostVisible(b.desc) {
		return gpu.Check("vkMapMemory", vk.ErrorMemoryMapFailed)
	}
	if offset+uint64(len(out)) > b.desc.Size {
		return errors.Newf("read of %d bytes at %d overflows buffer of %d", len(out), offset, b.desc.Size)
	}
	copy(out, b.data[offset:])
	return nil
}

func (d *Device) DestroyBuffer(buffer gpu.Buffer) {
	if _, ok := d.buffers[buffer]; !ok {
		d.misuse("destroy of unknown buffer %d", buffer)
		return
	}
	delete(d.buffers, buffer)
}

// Images

func (d *Device) CreateImage(desc gpu.ImageDescriptor) (gpu.Image, error) {
	if desc.Width == 0 || desc.Height == 0 || desc.MipLevels == 0 {
		return 0, gpu.Check("vkCreateImage", vk.ErrorInitializationFailed)
	}
	h := gpu.Image(d.handle())
	d.images[h] = &imageState{desc: desc}
	return h, nil
}

func (d *Device) DestroyImage(image gpu.Image) {
	img, ok := d.images[image]
	if !ok {
		d.misuse("destroy of unknown image %d", image)
		return
	}
	if img.swapchain != 0 {
		d.misuse("destroy of swapchain-owned image %d", image)
		return
	}
	delete(d.images, image)
}

func (d *Device) CreateImageView(desc gpu.ImageViewDescriptor) (gpu.ImageView, error) {
	if _, ok := d.images[desc.Image]; !ok {
		return 0, errors.Newf("view of unknown image %d", desc.Image)
	}
	h := gpu.ImageView(d.handle())
	d.views[h] = desc
	return h, nil
}

func (d *Device) DestroyImageView(view gpu.ImageView) {
	if _, ok := d.views[view]; !ok {
		d.misuse("destroy of unknown image view %d", view)
		return
	}
	delete(d.views, view)
}

func (d *Device) CreateSampler(desc gpu.SamplerDescriptor) (gpu.Sampler, error) {
	h := gpu.Sampler(d.handle())
	d.samplers[h] = desc
	return h, nil
}

func (d *Device) DestroySampler(sampler gpu.Sampler) {
	if _, ok := d.samplers[sampler]; !ok {
		d.misuse("destroy of unknown sampler %d", sampler)
		return
	}
	delete(d.samplers, sampler)
}

// Pipelines

func (d *Device) CreateShaderModule(code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, gpu.Check("vkCreateShaderModule", vk.ErrorInvalidShaderNv)
	}
	h := gpu.ShaderModule(d.handle())
	d.modules[h] = append([]byte(nil), code...)
	return h, nil
}

func (d *Device) DestroyShaderModule(module gpu.ShaderModule) {
	if _, ok := d.modules[module]; !ok {
		d.misuse("destroy of unknown shader module %d", module)
		return
	}
	delete(d.modules, module)
}

func (d *Device) CreateDescriptorSetLayout(bindings []gpu.DescriptorBinding) (gpu.DescriptorSetLayout, error) {
	h := gpu.DescriptorSetLayout(d.handle())
	d.setLayouts[h] = append([]gpu.DescriptorBinding(nil), bindings...)
	return h, nil
}

func (d *Device) DestroyDescriptorSetLayout(layout gpu.DescriptorSetLayout) {
	if _, ok := d.setLayouts[layout]; !ok {
		d.misuse("destroy of unknown descriptor set layout %d", layout)
		return
	}
	delete(d.setLayouts, layout)
}

func (d *Device) CreateDescriptorPool(desc gpu.DescriptorPoolDescriptor) (gpu.DescriptorPool, error) {
	h := gpu.DescriptorPool(d.handle())
	d.pools[h] = &poolState{desc: desc}
	return h, nil
}

func (d *Device) DestroyDescriptorPool(pool gpu.DescriptorPool) {
	if _, ok := d.pools[pool]; !ok {
		d.misuse("destroy of unknown descriptor pool %d", pool)
		return
	}
	for h, s := range d.sets {
		if s.pool == pool {
			delete(d.sets, h)
		}
	}
	delete(d.pools, pool)
}

func (d *Device) AllocateDescriptorSets(pool gpu.DescriptorPool, layouts []gpu.DescriptorSetLayout) ([]gpu.DescriptorSet, error) {
	p, ok := d.pools[pool]
	if !ok {
		return nil, errors.Newf("allocation from unknown descriptor pool %d", pool)
	}
	if p.allocated+uint32(len(layouts)) > p.desc.MaxSets {
		return nil, gpu.Check("vkAllocateDescriptorSets", vk.ErrorOutOfPoolMemory)
	}
	out := make([]gpu.DescriptorSet, len(layouts))
	for i, l := range layouts {
		if _, ok := d.setLayouts[l]; !ok {
			return nil, errors.Newf("allocation with unknown layout %d", l)
		}
		h := gpu.DescriptorSet(d.handle())
		d.sets[h] = &setState{pool: pool, layout: l, writes: map[uint32]gpu.DescriptorWrite{}}
		out[i] = h
	}
	p.allocated += uint32(len(layouts))
	return out, nil
}

func (d *Device) UpdateDescriptorSets(writes []gpu.DescriptorWrite) {
	for _, w := range writes {
		s, ok := d.sets[w.Set]
		if !ok {
			d.misuse("update of unknown descriptor set %d", w.Set)
			continue
		}
		if w.ImageView != 0 {
			if _, ok := d.views[w.ImageView]; !ok {
				d.misuse("descriptor set %d binding %d written with dead view %d", w.Set, w.Binding, w.ImageView)
			}
		}
		s.writes[w.Binding] = w
	}
}

func (d *Device) CreatePipelineLayout(desc gpu.PipelineLayoutDescriptor) (gpu.PipelineLayout, error) {
	h := gpu.PipelineLayout(d.handle())
	d.pipelineLayouts[h] = desc
	return h, nil
}

func (d *Device) DestroyPipelineLayout(layout gpu.PipelineLayout) {
	if _, ok := d.pipelineLayouts[layout]; !ok {
		d.misuse("destroy of unknown pipeline layout %d", layout)
		return
	}
	delete(d.pipelineLayouts, layout)
}

func (d *Device) CreateGraphicsPipeline(desc gpu.GraphicsPipelineDescriptor) (gpu.Pipeline, error) {
	if d.FailPipelines[desc.Label] {
		return 0, gpu.Check("vkCreateGraphicsPipelines", vk.ErrorInitializationFailed)
	}
	if _, ok := d.pipelineLayouts[desc.Layout]; !ok {
		return 0, errors.Newf("pipeline %q with unknown layout %d", desc.Label, desc.Layout)
	}
	rp, ok := d.renderPasses[desc.RenderPass]
	if !ok {
		return 0, errors.Newf("pipeline %q with unknown render pass %d", desc.Label, desc.RenderPass)
	}
	if int(desc.Subpass) >= len(rp.Subpasses) {
		return 0, errors.Newf("pipeline %q targets subpass %d of %d", desc.Label, desc.Subpass, len(rp.Subpasses))
	}
	for _, s := range desc.Stages {
		if _, ok := d.modules[s.Module]; !ok {
			return 0, errors.Newf("pipeline %q with unknown shader module %d", desc.Label, s.Module)
		}
	}
	h := gpu.Pipeline(d.handle())
	d.pipelines[h] = desc
	return h, nil
}

func (d *Device) DestroyPipeline(pipeline gpu.Pipeline) {
	if _, ok := d.pipelines[pipeline]; !ok {
		d.misuse("destroy of unknown pipeline %d", pipeline)
		return
	}
	delete(d.pipelines, pipeline)
}

func (d *Device) CreateRenderPass(desc gpu.RenderPassDescriptor) (gpu.RenderPass, error) {
	h := gpu.RenderPass(d.handle())
	d.renderPasses[h] = desc
	return h, nil
}

func (d *Device) DestroyRenderPass(pass gpu.RenderPass) {
	if _, ok := d.renderPasses[pass]; !ok {
		d.misuse("destroy of unknown render pass %d", pass)
		return
	}
	delete(d.renderPasses, pass)
}

func (d *Device) CreateFramebuffer(desc gpu.FramebufferDescriptor) (gpu.Framebuffer, error) {
	rp, ok := d.renderPasses[desc.RenderPass]
	if !ok {
		return 0, errors.Newf("framebuffer with unknown render pass %d", desc.RenderPass)
	}
	if len(desc.Attachments) != len(rp.Attachments) {
		return 0, errors.Newf("framebuffer has %d attachments, render pass expects %d", len(desc.Attachments), len(rp.Attachments))
	}
	for _, v := range desc.Attachments {
		view, ok := d.views[v]
		if !ok {
			return 0, errors.Newf("framebuffer attachment %d is not a live view", v)
		}
		img := d.images[view.Image]
		if img == nil {
			return 0, errors.Newf("framebuffer attachment %d views a destroyed image", v)
		}
		if img.desc.Width != desc.Width || img.desc.Height != desc.Height {
			return 0, errors.Newf("attachment %d is %dx%d, framebuffer is %dx%d",
				v, img.desc.Width, img.desc.Height, desc.Width, desc.Height)
		}
	}
	h := gpu.Framebuffer(d.handle())
	d.framebuffers[h] = desc
	return h, nil
}

func (d *Device) DestroyFramebuffer(framebuffer gpu.Framebuffer) {
	if _, ok := d.framebuffers[framebuffer]; !ok {
		d.misuse("destroy of unknown framebuffer %d", framebuffer)
		return
	}
	delete(d.framebuffers, framebuffer)
}

// Swapchain

func (d *Device) CreateSwapchain(desc gpu.SwapchainDescriptor) (gpu.Swapchain, error) {
	if desc.Extent.Width == 0 || desc.Extent.Height == 0 {
		return 0, gpu.Check("vkCreateSwapchainKHR", vk.ErrorInitializationFailed)
	}
	if desc.OldSwapchain != 0 {
		if _, ok := d.swapchains[desc.OldSwapchain]; !ok {
			return 0, errors.Newf("old swapchain %d is not alive", desc.OldSwapchain)
		}
	}
	h := gpu.Swapchain(d.handle())
	sc := &swapchainState{desc: desc, acquired: map[uint32]bool{}}
	for i := uint32(0); i < desc.MinImageCount; i++ {
		img := gpu.Image(d.handle())
		d.images[img] = &imageState{
			desc: gpu.ImageDescriptor{
				Width:     desc.Extent.Width,
				Height:    desc.Extent.Height,
				MipLevels: 1,
				Format:    desc.Format.Format,
				Usage:     vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
			},
			swapchain: h,
		}
		sc.images = append(sc.images, img)
	}
	d.swapchains[h] = sc
	return h, nil
}

func (d *Device) SwapchainImages(swapchain gpu.Swapchain) ([]gpu.Image, error) {
	sc, ok := d.swapchains[swapchain]
	if !ok {
		return nil, errors.Newf("unknown swapchain %d", swapchain)
	}
	return append([]gpu.Image(nil), sc.images...), nil
}

func (d *Device) DestroySwapchain(swapchain gpu.Swapchain) {
	sc, ok := d.swapchains[swapchain]
	if !ok {
		d.misuse("destroy of unknown swapchain %d", swapchain)
		return
	}
	for _, img := range sc.images {
		delete(d.images, img)
	}
	delete(d.swapchains, swapchain)
}

func popResult(queue *[]vk.Result) vk.Result {
	if len(*queue) == 0 {
		return vk.Success
	}
	r := (*queue)[0]
	*queue = (*queue)[1:]
	return r
}

func (d *Device) AcquireNextImage(swapchain gpu.Swapchain, timeout uint64, signal gpu.Semaphore) (uint32, error) {
	sc, ok := d.swapchains[swapchain]
	if !ok {
		return 0, errors.Newf("acquire from unknown swapchain %d", swapchain)
	}
	if timeout != gpu.MaxTimeout {
		d.misuse("acquire with finite timeout %d", timeout)
	}
	result := popResult(&d.AcquireResults)
	d.event(Event{Kind: EventAcquire, Swapchain: swapchain, Result: result})
	if result != vk.Success && result != vk.Suboptimal {
		return 0, gpu.Check("vkAcquireNextImageKHR", result)
	}
	index := sc.next
	sc.next = (sc.next + 1) % uint32(len(sc.images))
	sc.acquired[index] = true
	d.semaphores[signal] = true
	return index, gpu.Check("vkAcquireNextImageKHR", result)
}

func (d *Device) Present(info gpu.PresentInfo) error {
	sc, ok := d.swapchains[info.Swapchain]
	if !ok {
		return errors.Newf("present to unknown swapchain %d", info.Swapchain)
	}
	if !sc.acquired[info.ImageIndex] {
		d.misuse("present of image %d that was not acquired", info.ImageIndex)
	}
	delete(sc.acquired, info.ImageIndex)
	for _, s := range info.WaitSemaphores {
		d.semaphores[s] = false
	}
	result := popResult(&d.PresentResults)
	d.event(Event{Kind: EventPresent, Swapchain: info.Swapchain, ImageIndex: info.ImageIndex, Result: result})
	return gpu.Check("vkQueuePresentKHR", result)
}

// Sync

func (d *Device) CreateFence(signaled bool) (gpu.Fence, error) {
	h := gpu.Fence(d.handle())
	d.fences[h] = &fenceState{signaled: signaled, waited: true}
	return h, nil
}

func (d *Device) WaitForFence(fence gpu.Fence, timeout uint64) error {
	f, ok := d.fences[fence]
	if !ok {
		return errors.Newf("wait on unknown fence %d", fence)
	}
	if timeout != gpu.MaxTimeout {
		d.misuse("fence wait with finite timeout %d", timeout)
	}
	d.event(Event{Kind: EventWaitFence, Fence: fence})
	if !f.signaled {
		// Nothing was submitted against it, a real device would hang here.
		return gpu.Check("vkWaitForFences", vk.Timeout)
	}
	f.waited = true
	return nil
}

func (d *Device) ResetFence(fence gpu.Fence) error {
	f, ok := d.fences[fence]
	if !ok {
		return errors.Newf("reset of unknown fence %d", fence)
	}
	if !f.waited {
		d.misuse("fence %d reset before it was waited on", fence)
	}
	d.event(Event{Kind: EventResetFence, Fence: fence})
	f.signaled = false
	return nil
}

func (d *Device) DestroyFence(fence gpu.Fence) {
	if _, ok := d.fences[fence]; !ok {
		d.misuse("destroy of unknown fence %d", fence)
		return
	}
	delete(d.fences, fence)
}

func (d *Device) CreateSemaphore() (gpu.Semaphore, error) {
	h := gpu.Semaphore(d.handle())
	d.semaphores[h] = false
	return h, nil
}

func (d *Device) DestroySemaphore(semaphore gpu.Semaphore) {
	if _, ok := d.semaphores[semaphore]; !ok {
		d.misuse("destroy of unknown semaphore %d", semaphore)
		return
	}
	delete(d.semaphores, semaphore)
}

func (d *Device) Submit(info gpu.SubmitInfo) error {
	if len(info.WaitSemaphores) != len(info.WaitStages) {
		return errors.Newf("%d wait semaphores with %d wait stages", len(info.WaitSemaphores), len(info.WaitStages))
	}
	var f *fenceState
	if info.Fence != 0 {
		var ok bool
		if f, ok = d.fences[info.Fence]; !ok {
			return errors.Newf("submit with unknown fence %d", info.Fence)
		}
		if f.signaled {
			d.misuse("submit with fence %d still signaled", info.Fence)
		}
	}
	sub := Submission{Info: info}
	for _, cb := range info.CommandBuffers {
		st, ok := d.commandBuffers[cb]
		if !ok {
			return errors.Newf("submit of unknown command buffer %d", cb)
		}
		if st.recording {
			d.misuse("submit of command buffer %d that is still recording", cb)
		}
		sub.Commands = append(sub.Commands, append([]Command(nil), st.commands...))
		d.execute(st.commands)
		st.pendingFence = info.Fence
	}
	d.Submissions = append(d.Submissions, sub)
	d.event(Event{Kind: EventSubmit, Fence: info.Fence, CommandBuffers: append([]gpu.CommandBuffer(nil), info.CommandBuffers...)})
	for _, s := range info.Signal {
		d.semaphores[s] = true
	}
	if f != nil {
		// Work completes immediately; the fence stays un-waited until the
		// frame loop comes back to it.
		f.signaled = true
		f.waited = false
	}
	return nil
}

func (d *Device) QueueWaitIdle() error {
	d.event(Event{Kind: EventQueueWaitIdle})
	return nil
}

// execute replays transfer commands against the in-memory stores.
func (d *Device) execute(commands []Command) {
	for _, c := range commands {
		switch c.Op {
		case OpCopyBuffer:
			src, dst := d.buffers[c.Buffer], d.buffers[c.DstBuffer]
			if src == nil || dst == nil {
				d.misuse("copy between dead buffers %d -> %d", c.Buffer, c.DstBuffer)
				continue
			}
			copy(dst.data[:c.Size], src.data[:c.Size])
		case OpCopyBufferToImage:
			src, dst := d.buffers[c.Buffer], d.images[c.Image]
			if src == nil || dst == nil {
				d.misuse("copy from buffer %d to dead image %d", c.Buffer, c.Image)
				continue
			}
			dst.data = append([]byte(nil), src.data...)
		}
	}
}
