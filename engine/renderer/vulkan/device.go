package vulkan

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const portabilitySubset = "VK_KHR_portability_subset"

type buffer struct {
	handle vk.Buffer
	memory vk.DeviceMemory
	size   uint64
}

type image struct {
	handle vk.Image
	memory vk.DeviceMemory
	// owner is set for swapchain images, which are released with their swapchain.
	owner gpu.Swapchain
}

type descriptorPool struct {
	handle vk.DescriptorPool
	sets   []gpu.DescriptorSet
}

type swapchain struct {
	handle vk.Swapchain
	images []gpu.Image
}

// Device is a logical device with a graphics queue, a present queue and one
// resettable command pool on the graphics family.
type Device struct {
	adapter *Adapter
	handle  vk.Device

	graphicsFamily uint32
	presentFamily  uint32
	graphicsQueue  vk.Queue
	presentQueue   vk.Queue
	commandPool    vk.CommandPool

	ids core.HandleGenerator

	buffers         *objectPool[gpu.Buffer, buffer]
	images          *objectPool[gpu.Image, image]
	views           *objectPool[gpu.ImageView, vk.ImageView]
	samplers        *objectPool[gpu.Sampler, vk.Sampler]
	modules         *objectPool[gpu.ShaderModule, vk.ShaderModule]
	setLayouts      *objectPool[gpu.DescriptorSetLayout, vk.DescriptorSetLayout]
	descriptorPools *objectPool[gpu.DescriptorPool, *descriptorPool]
	sets            *objectPool[gpu.DescriptorSet, vk.DescriptorSet]
	pipelineLayouts *objectPool[gpu.PipelineLayout, vk.PipelineLayout]
	pipelines       *objectPool[gpu.Pipeline, vk.Pipeline]
	renderPasses    *objectPool[gpu.RenderPass, vk.RenderPass]
	framebuffers    *objectPool[gpu.Framebuffer, vk.Framebuffer]
	swapchains      *objectPool[gpu.Swapchain, *swapchain]
	commandBuffers  *objectPool[gpu.CommandBuffer, vk.CommandBuffer]
	fences          *objectPool[gpu.Fence, vk.Fence]
	semaphores      *objectPool[gpu.Semaphore, vk.Semaphore]
}

var _ gpu.Device = (*Device)(nil)

func newDevice(a *Adapter, desc gpu.DeviceDescriptor) (*Device, error) {
	d := &Device{
		adapter:        a,
		graphicsFamily: desc.GraphicsFamily,
		presentFamily:  desc.PresentFamily,
	}
	d.buffers = newObjectPool[gpu.Buffer, buffer]("buffer", &d.ids)
	d.images = newObjectPool[gpu.Image, image]("image", &d.ids)
	d.views = newObjectPool[gpu.ImageView, vk.ImageView]("image view", &d.ids)
	d.samplers = newObjectPool[gpu.Sampler, vk.Sampler]("sampler", &d.ids)
	d.modules = newObjectPool[gpu.ShaderModule, vk.ShaderModule]("shader module", &d.ids)
	d.setLayouts = newObjectPool[gpu.DescriptorSetLayout, vk.DescriptorSetLayout]("descriptor set layout", &d.ids)
	d.descriptorPools = newObjectPool[gpu.DescriptorPool, *descriptorPool]("descriptor pool", &d.ids)
	d.sets = newObjectPool[gpu.DescriptorSet, vk.DescriptorSet]("descriptor set", &d.ids)
	d.pipelineLayouts = newObjectPool[gpu.PipelineLayout, vk.PipelineLayout]("pipeline layout", &d.ids)
	d.pipelines = newObjectPool[gpu.Pipeline, vk.Pipeline]("pipeline", &d.ids)
	d.renderPasses = newObjectPool[gpu.RenderPass, vk.RenderPass]("render pass", &d.ids)
	d.framebuffers = newObjectPool[gpu.Framebuffer, vk.Framebuffer]("framebuffer", &d.ids)
	d.swapchains = newObjectPool[gpu.Swapchain, *swapchain]("swapchain", &d.ids)
	d.commandBuffers = newObjectPool[gpu.CommandBuffer, vk.CommandBuffer]("command buffer", &d.ids)
	d.fences = newObjectPool[gpu.Fence, vk.Fence]("fence", &d.ids)
	d.semaphores = newObjectPool[gpu.Semaphore, vk.Semaphore]("semaphore", &d.ids)

	core.LogInfo("Creating logical device...")

	// One queue per distinct family.
	families := []uint32{desc.GraphicsFamily}
	if desc.PresentFamily != desc.GraphicsFamily {
		families = append(families, desc.PresentFamily)
	}
	queueCreateInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueCreateInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		}
	}

	features := vk.PhysicalDeviceFeatures{
		SamplerAnisotropy: boolean(desc.SamplerAnisotropy),
	}

	extensions := slices.Clone(desc.Extensions)
	if available, err := a.Extensions(); err == nil && slices.Contains(available, portabilitySubset) && !slices.Contains(extensions, portabilitySubset) {
		core.LogInfo("Adding required extension '%s'.", portabilitySubset)
		extensions = append(extensions, portabilitySubset)
	}

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueCreateInfos)),
		PQueueCreateInfos:       queueCreateInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{features},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if err := gpu.Check("vkCreateDevice", vk.CreateDevice(a.physical, &createInfo, nil, &d.handle)); err != nil {
		return nil, err
	}
	core.LogInfo("Logical device created.")

	vk.GetDeviceQueue(d.handle, desc.GraphicsFamily, 0, &d.graphicsQueue)
	vk.GetDeviceQueue(d.handle, desc.PresentFamily, 0, &d.presentQueue)

	poolCreateInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: desc.GraphicsFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := gpu.Check("vkCreateCommandPool", vk.CreateCommandPool(d.handle, &poolCreateInfo, nil, &d.commandPool)); err != nil {
		vk.DestroyDevice(d.handle, nil)
		return nil, err
	}
	core.LogInfo("Graphics command pool created.")

	return d, nil
}

func (d *Device) WaitIdle() error {
	return gpu.Check("vkDeviceWaitIdle", vk.DeviceWaitIdle(d.handle))
}

func (d *Device) QueueWaitIdle() error {
	return gpu.Check("vkQueueWaitIdle", vk.QueueWaitIdle(d.graphicsQueue))
}

// Destroy releases anything the renderer leaked, warning per object kind,
// then the command pool and the device.
func (d *Device) Destroy() {
	if d.handle == nil {
		return
	}
	vk.DeviceWaitIdle(d.handle)

	leaked := func(kind string, n int) {
		if n > 0 {
			core.LogWarn("Releasing %d leaked %s object(s).", n, kind)
		}
	}
	leaked("framebuffer", d.framebuffers.len())
	d.framebuffers.drain(func(fb vk.Framebuffer) { vk.DestroyFramebuffer(d.handle, fb, nil) })
	leaked("pipeline", d.pipelines.len())
	d.pipelines.drain(func(p vk.Pipeline) { vk.DestroyPipeline(d.handle, p, nil) })
	d.pipelineLayouts.drain(func(l vk.PipelineLayout) { vk.DestroyPipelineLayout(d.handle, l, nil) })
	d.renderPasses.drain(func(rp vk.RenderPass) { vk.DestroyRenderPass(d.handle, rp, nil) })
	d.modules.drain(func(m vk.ShaderModule) { vk.DestroyShaderModule(d.handle, m, nil) })
	d.sets.drain(func(vk.DescriptorSet) {})
	d.descriptorPools.drain(func(p *descriptorPool) { vk.DestroyDescriptorPool(d.handle, p.handle, nil) })
	d.setLayouts.drain(func(l vk.DescriptorSetLayout) { vk.DestroyDescriptorSetLayout(d.handle, l, nil) })
	leaked("image view", d.views.len())
	d.views.drain(func(v vk.ImageView) { vk.DestroyImageView(d.handle, v, nil) })
	d.samplers.drain(func(s vk.Sampler) { vk.DestroySampler(d.handle, s, nil) })
	d.images.drain(func(img image) {
		if img.owner == 0 {
			vk.DestroyImage(d.handle, img.handle, nil)
			vk.FreeMemory(d.handle, img.memory, nil)
		}
	})
	leaked("buffer", d.buffers.len())
	d.buffers.drain(func(b buffer) {
		vk.DestroyBuffer(d.handle, b.handle, nil)
		vk.FreeMemory(d.handle, b.memory, nil)
	})
	d.swapchains.drain(func(sc *swapchain) { vk.DestroySwapchain(d.handle, sc.handle, nil) })
	d.fences.drain(func(f vk.Fence) { vk.DestroyFence(d.handle, f, nil) })
	d.semaphores.drain(func(s vk.Semaphore) { vk.DestroySemaphore(d.handle, s, nil) })
	d.commandBuffers.drain(func(vk.CommandBuffer) {})

	core.LogInfo("Destroying command pools...")
	vk.DestroyCommandPool(d.handle, d.commandPool, nil)

	core.LogInfo("Destroying logical device...")
	vk.DestroyDevice(d.handle, nil)
	d.handle = nil
	d.graphicsQueue = nil
	d.presentQueue = nil
}

// allocate binds fresh memory satisfying reqs and flags.
func (d *Device) allocate(reqs vk.MemoryRequirements, flags vk.MemoryPropertyFlags) (vk.DeviceMemory, error) {
	reqs.Deref()
	index, ok := d.adapter.findMemoryIndex(reqs.MemoryTypeBits, flags)
	if !ok {
		return nil, errors.Newf("no memory type matches filter %#x with properties %#x", reqs.MemoryTypeBits, flags)
	}
	info := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: index,
	}
	var memory vk.DeviceMemory
	if err := gpu.Check("vkAllocateMemory", vk.AllocateMemory(d.handle, &info, nil, &memory)); err != nil {
		return nil, err
	}
	return memory, nil
}
