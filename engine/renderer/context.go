package renderer

import (
	"fmt"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"golang.org/x/exp/slices"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const swapchainExtensionName = "VK_KHR_swapchain"

// DeviceRequirements are the checks an adapter must pass to be selected.
type DeviceRequirements struct {
	Extensions        []string
	SamplerAnisotropy bool
}

func DefaultDeviceRequirements() DeviceRequirements {
	return DeviceRequirements{
		Extensions:        []string{swapchainExtensionName},
		SamplerAnisotropy: true,
	}
}

type QueueFamilyIndices struct {
	Graphics uint32
	Present  uint32
}

// Families lists the distinct family indices, graphics first.
func (q QueueFamilyIndices) Families() []uint32 {
	if q.Graphics == q.Present {
		return []uint32{q.Graphics}
	}
	return []uint32{q.Graphics, q.Present}
}

// DeviceContext owns the instance, the selected adapter and the logical device.
// It is created once and destroyed last.
type DeviceContext struct {
	Instance    gpu.Instance
	Adapter     gpu.Adapter
	Device      gpu.Device
	Queues      QueueFamilyIndices
	Properties  gpu.AdapterProperties
	Features    gpu.AdapterFeatures
	DepthFormat vk.Format
}

// NewDeviceContext selects the first adapter meeting req and creates its logical device.
func NewDeviceContext(inst gpu.Instance, req DeviceRequirements) (*DeviceContext, error) {
	adapters, err := inst.Adapters()
	if err != nil {
		return nil, errors.Wrap(err, "enumerating adapters")
	}
	adapter, queues, err := SelectAdapter(adapters, req)
	if err != nil {
		return nil, err
	}
	props := adapter.Properties()
	logAdapter(props)

	depthFormat, err := DetectDepthFormat(adapter)
	if err != nil {
		return nil, err
	}

	core.LogInfo("Creating logical device...")
	device, err := inst.CreateDevice(adapter, gpu.DeviceDescriptor{
		GraphicsFamily:    queues.Graphics,
		PresentFamily:     queues.Present,
		Extensions:        req.Extensions,
		SamplerAnisotropy: req.SamplerAnisotropy,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating logical device")
	}
	core.LogInfo("Logical device created.")

	features := adapter.Features()
	features.SamplerAnisotropy = features.SamplerAnisotropy && req.SamplerAnisotropy
	return &DeviceContext{
		Instance:    inst,
		Adapter:     adapter,
		Device:      device,
		Queues:      queues,
		Properties:  props,
		Features:    features,
		DepthFormat: depthFormat,
	}, nil
}

// SelectAdapter returns the first adapter that has a graphics queue family, a
// present-capable queue family, every required extension and the required
// features. There is no scoring: enumeration order decides.
func SelectAdapter(adapters []gpu.Adapter, req DeviceRequirements) (gpu.Adapter, QueueFamilyIndices, error) {
	for _, a := range adapters {
		queues, ok, err := meetsRequirements(a, req)
		if err != nil {
			return nil, QueueFamilyIndices{}, err
		}
		if ok {
			return a, queues, nil
		}
	}
	return nil, QueueFamilyIndices{}, core.ErrNoSuitableDevice
}

func meetsRequirements(a gpu.Adapter, req DeviceRequirements) (QueueFamilyIndices, bool, error) {
	name := a.Properties().Name
	graphics, present := -1, -1
	for i, family := range a.QueueFamilies() {
		idx := uint32(i)
		if graphics < 0 && family.Flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			graphics = i
		}
		supported, err := a.SupportsPresent(idx)
		if err != nil {
			return QueueFamilyIndices{}, false, errors.Wrapf(err, "querying present support of %q", name)
		}
		// Prefer a family that does both.
		if supported && (present < 0 || i == graphics) {
			present = i
		}
	}
	if graphics < 0 {
		core.LogInfo("Device '%s' has no graphics queue, skipping.", name)
		return QueueFamilyIndices{}, false, nil
	}
	if present < 0 {
		core.LogInfo("Device '%s' cannot present to the surface, skipping.", name)
		return QueueFamilyIndices{}, false, nil
	}

	available, err := a.Extensions()
	if err != nil {
		return QueueFamilyIndices{}, false, errors.Wrapf(err, "enumerating extensions of %q", name)
	}
	for _, ext := range req.Extensions {
		if !slices.Contains(available, ext) {
			core.LogInfo("Required extension not found: '%s', skipping device.", ext)
			return QueueFamilyIndices{}, false, nil
		}
	}

	if req.SamplerAnisotropy && !a.Features().SamplerAnisotropy {
		core.LogInfo("Device '%s' does not support samplerAnisotropy, skipping.", name)
		return QueueFamilyIndices{}, false, nil
	}

	core.LogDebug("Graphics Family Index: %d", graphics)
	core.LogDebug("Present Family Index:  %d", present)
	return QueueFamilyIndices{Graphics: uint32(graphics), Present: uint32(present)}, true, nil
}

// DetectDepthFormat picks the first depth format usable as a depth/stencil attachment.
func DetectDepthFormat(a gpu.Adapter) (vk.Format, error) {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	flags := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, format := range candidates {
		props := a.FormatProperties(format)
		if props.OptimalTilingFeatures&flags == flags || props.LinearTilingFeatures&flags == flags {
			return format, nil
		}
	}
	return vk.FormatUndefined, errors.New("unable to find a supported depth format")
}

// Destroy releases the logical device and then the instance.
func (c *DeviceContext) Destroy() {
	core.LogInfo("Destroying logical device...")
	c.Device.Destroy()
	c.Instance.Destroy()
}

func logAdapter(props gpu.AdapterProperties) {
	core.LogInfo("Selected device: '%s'.", props.Name)
	switch props.Type {
	case vk.PhysicalDeviceTypeIntegratedGpu:
		core.LogInfo("GPU type is Integrated.")
	case vk.PhysicalDeviceTypeDiscreteGpu:
		core.LogInfo("GPU type is Discrete.")
	case vk.PhysicalDeviceTypeVirtualGpu:
		core.LogInfo("GPU type is Virtual.")
	case vk.PhysicalDeviceTypeCpu:
		core.LogInfo("GPU type is CPU.")
	default:
		core.LogInfo("GPU type is Unknown.")
	}
	core.LogInfo("GPU Driver version: %s", versionString(props.DriverVersion))
	core.LogInfo("Vulkan API version: %s", versionString(props.APIVersion))
	for _, heap := range props.MemoryHeaps {
		gib := float64(heap.Size) / 1024.0 / 1024.0 / 1024.0
		if heap.DeviceLocal {
			core.LogInfo("Local GPU memory: %.2f GiB", gib)
		} else {
			core.LogInfo("Shared System memory: %.2f GiB", gib)
		}
	}
}

func versionString(v uint32) string {
	version := vk.Version(v)
	return fmt.Sprintf("%d.%d.%d", version.Major(), version.Minor(), version.Patch())
}
