package gpu

// Handles are opaque identifiers issued by a Device. The zero value of every
// handle type is the null handle.
type (
	Buffer              uint64
	Image               uint64
	ImageView           uint64
	Sampler             uint64
	ShaderModule        uint64
	DescriptorSetLayout uint64
	DescriptorPool      uint64
	DescriptorSet       uint64
	PipelineLayout      uint64
	Pipeline            uint64
	RenderPass          uint64
	Framebuffer         uint64
	Swapchain           uint64
	CommandBuffer       uint64
	Fence               uint64
	Semaphore           uint64
)

// MaxTimeout blocks until the waited object is signaled.
const MaxTimeout = ^uint64(0)

// SubpassExternal refers to work outside the render pass in a dependency.
const SubpassExternal = ^uint32(0)

// UndefinedExtent is reported as the current extent when the surface size is
// decided by the swapchain.
const UndefinedExtent = ^uint32(0)
