package gpu

import (
	vk "github.com/goki/vulkan"
)

type Extent2D struct {
	Width, Height uint32
}

type Rect2D struct {
	X, Y          int32
	Width, Height uint32
}

type Viewport struct {
	X, Y, Width, Height float32
	MinDepth, MaxDepth  float32
}

// Adapter description

type AdapterProperties struct {
	Name                 string
	Type                 vk.PhysicalDeviceType
	APIVersion           uint32
	DriverVersion        uint32
	MaxSamplerAnisotropy float32
	MemoryHeaps          []MemoryHeap
}

type MemoryHeap struct {
	Size        uint64
	DeviceLocal bool
}

type AdapterFeatures struct {
	SamplerAnisotropy bool
}

type QueueFamily struct {
	Flags vk.QueueFlags
	Count uint32
}

type SurfaceCapabilities struct {
	MinImageCount    uint32
	MaxImageCount    uint32
	CurrentExtent    Extent2D
	MinImageExtent   Extent2D
	MaxImageExtent   Extent2D
	CurrentTransform vk.SurfaceTransformFlagBits
}

type SurfaceFormat struct {
	Format     vk.Format
	ColorSpace vk.ColorSpace
}

type FormatProperties struct {
	LinearTilingFeatures  vk.FormatFeatureFlags
	OptimalTilingFeatures vk.FormatFeatureFlags
}

// Device creation

type DeviceDescriptor struct {
	GraphicsFamily    uint32
	PresentFamily     uint32
	Extensions        []string
	SamplerAnisotropy bool
}

// Resources

type BufferDescriptor struct {
	Label  string
	Size   uint64
	Usage  vk.BufferUsageFlags
	Memory vk.MemoryPropertyFlags
}

type ImageDescriptor struct {
	Width, Height uint32
	MipLevels     uint32
	Format        vk.Format
	Usage         vk.ImageUsageFlags
	Memory        vk.MemoryPropertyFlags
}

type ImageViewDescriptor struct {
	Image     Image
	Format    vk.Format
	Aspect    vk.ImageAspectFlags
	MipLevels uint32
}

type SamplerDescriptor struct {
	MagFilter     vk.Filter
	MinFilter     vk.Filter
	MipmapMode    vk.SamplerMipmapMode
	AddressMode   vk.SamplerAddressMode
	Anisotropy    bool
	MaxAnisotropy float32
	MaxLod        float32
}

// Descriptors

type DescriptorBinding struct {
	Binding uint32
	Type    vk.DescriptorType
	Count   uint32
	Stages  vk.ShaderStageFlags
}

type DescriptorPoolSize struct {
	Type  vk.DescriptorType
	Count uint32
}

type DescriptorPoolDescriptor struct {
	MaxSets uint32
	Sizes   []DescriptorPoolSize
}

// DescriptorWrite updates one binding. Buffer is used for uniform buffers,
// ImageView/Sampler/Layout for image, sampler and input attachment bindings.
type DescriptorWrite struct {
	Set       DescriptorSet
	Binding   uint32
	Type      vk.DescriptorType
	Buffer    Buffer
	Offset    uint64
	Range     uint64
	ImageView ImageView
	Sampler   Sampler
	Layout    vk.ImageLayout
}

// Pipelines

type PushConstantRange struct {
	Stages vk.ShaderStageFlags
	Offset uint32
	Size   uint32
}

type PipelineLayoutDescriptor struct {
	SetLayouts    []DescriptorSetLayout
	PushConstants []PushConstantRange
}

type VertexBinding struct {
	Binding uint32
	Stride  uint32
}

type VertexAttribute struct {
	Location uint32
	Binding  uint32
	Format   vk.Format
	Offset   uint32
}

type ShaderStage struct {
	Module     ShaderModule
	Stage      vk.ShaderStageFlagBits
	EntryPoint string
}

type GraphicsPipelineDescriptor struct {
	Label          string
	Layout         PipelineLayout
	RenderPass     RenderPass
	Subpass        uint32
	Stages         []ShaderStage
	VertexBindings []VertexBinding
	Attributes     []VertexAttribute
	Topology       vk.PrimitiveTopology
	CullMode       vk.CullModeFlags
	FrontFace      vk.FrontFace
	DepthTest      bool
	DepthWrite     bool
	DepthCompare   vk.CompareOp
	Blend          bool
	DynamicStates  []vk.DynamicState
}

// Render passes

type AttachmentDescriptor struct {
	Format        vk.Format
	Samples       vk.SampleCountFlagBits
	LoadOp        vk.AttachmentLoadOp
	StoreOp       vk.AttachmentStoreOp
	InitialLayout vk.ImageLayout
	FinalLayout   vk.ImageLayout
}

type AttachmentReference struct {
	Attachment uint32
	Layout     vk.ImageLayout
}

type SubpassDescriptor struct {
	Color []AttachmentReference
	Input []AttachmentReference
	Depth *AttachmentReference
}

type SubpassDependency struct {
	SrcSubpass    uint32
	DstSubpass    uint32
	SrcStageMask  vk.PipelineStageFlags
	DstStageMask  vk.PipelineStageFlags
	SrcAccessMask vk.AccessFlags
	DstAccessMask vk.AccessFlags
	Flags         vk.DependencyFlags
}

type RenderPassDescriptor struct {
	Attachments  []AttachmentDescriptor
	Subpasses    []SubpassDescriptor
	Dependencies []SubpassDependency
}

type FramebufferDescriptor struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Width       uint32
	Height      uint32
}

// Swapchain

type SwapchainDescriptor struct {
	MinImageCount uint32
	Format        SurfaceFormat
	Extent        Extent2D
	PresentMode   vk.PresentMode
	Transform     vk.SurfaceTransformFlagBits
	QueueFamilies []uint32
	OldSwapchain  Swapchain
}

// Commands

type ClearValue struct {
	Color        [4]float32
	Depth        float32
	Stencil      uint32
	DepthStencil bool
}

type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Area        Rect2D
	ClearValues []ClearValue
}

type ImageBarrier struct {
	Image         Image
	OldLayout     vk.ImageLayout
	NewLayout     vk.ImageLayout
	SrcAccessMask vk.AccessFlags
	DstAccessMask vk.AccessFlags
	SrcStage      vk.PipelineStageFlags
	DstStage      vk.PipelineStageFlags
	Aspect        vk.ImageAspectFlags
	BaseMipLevel  uint32
	LevelCount    uint32
}

// ImageBlit copies SrcMip into DstMip of the same image with linear filtering.
type ImageBlit struct {
	Image     Image
	SrcMip    uint32
	SrcExtent Extent2D
	DstMip    uint32
	DstExtent Extent2D
}

type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	WaitSemaphores []Semaphore
	WaitStages     []vk.PipelineStageFlags
	Signal         []Semaphore
	Fence          Fence
}

type PresentInfo struct {
	Swapchain      Swapchain
	ImageIndex     uint32
	WaitSemaphores []Semaphore
}
