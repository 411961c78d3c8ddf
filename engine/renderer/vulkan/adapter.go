package vulkan

import (
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Adapter is a physical device queried against the instance surface.
type Adapter struct {
	physical vk.PhysicalDevice
	surface  vk.Surface

	properties gpu.AdapterProperties
	features   gpu.AdapterFeatures
	families   []gpu.QueueFamily
	memory     vk.PhysicalDeviceMemoryProperties
}

var _ gpu.Adapter = (*Adapter)(nil)

func newAdapter(pd vk.PhysicalDevice, surface vk.Surface) *Adapter {
	a := &Adapter{physical: pd, surface: surface}

	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(pd, &props)
	props.Deref()
	props.Limits.Deref()

	var feats vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(pd, &feats)
	feats.Deref()

	vk.GetPhysicalDeviceMemoryProperties(pd, &a.memory)
	a.memory.Deref()

	a.properties = gpu.AdapterProperties{
		Name:                 cString(props.DeviceName[:]),
		Type:                 props.DeviceType,
		APIVersion:           props.ApiVersion,
		DriverVersion:        props.DriverVersion,
		MaxSamplerAnisotropy: props.Limits.MaxSamplerAnisotropy,
	}
	for i := uint32(0); i < a.memory.MemoryHeapCount; i++ {
		heap := a.memory.MemoryHeaps[i]
		heap.Deref()
		a.properties.MemoryHeaps = append(a.properties.MemoryHeaps, gpu.MemoryHeap{
			Size:        uint64(heap.Size),
			DeviceLocal: heap.Flags&vk.MemoryHeapFlags(vk.MemoryHeapDeviceLocalBit) != 0,
		})
	}
	a.features = gpu.AdapterFeatures{SamplerAnisotropy: feats.SamplerAnisotropy == vk.True}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, nil)
	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(pd, &count, families)
	for i := range families {
		families[i].Deref()
		a.families = append(a.families, gpu.QueueFamily{
			Flags: families[i].QueueFlags,
			Count: families[i].QueueCount,
		})
	}
	return a
}

func (a *Adapter) Properties() gpu.AdapterProperties { return a.properties }
func (a *Adapter) Features() gpu.AdapterFeatures     { return a.features }
func (a *Adapter) QueueFamilies() []gpu.QueueFamily  { return a.families }

func (a *Adapter) SupportsPresent(family uint32) (bool, error) {
	var supported vk.Bool32
	if err := gpu.Check("vkGetPhysicalDeviceSurfaceSupportKHR", vk.GetPhysicalDeviceSurfaceSupport(a.physical, family, a.surface, &supported)); err != nil {
		return false, err
	}
	return supported == vk.True, nil
}

func (a *Adapter) Extensions() ([]string, error) {
	var count uint32
	if err := gpu.Check("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(a.physical, "", &count, nil)); err != nil {
		return nil, err
	}
	available := make([]vk.ExtensionProperties, count)
	if err := gpu.Check("vkEnumerateDeviceExtensionProperties", vk.EnumerateDeviceExtensionProperties(a.physical, "", &count, available)); err != nil {
		return nil, err
	}
	names := make([]string, 0, count)
	for i := range available[:count] {
		available[i].Deref()
		names = append(names, cString(available[i].ExtensionName[:]))
	}
	return names, nil
}

func (a *Adapter) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	if err := gpu.Check("vkGetPhysicalDeviceSurfaceCapabilitiesKHR", vk.GetPhysicalDeviceSurfaceCapabilities(a.physical, a.surface, &caps)); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return gpu.SurfaceCapabilities{
		MinImageCount:    caps.MinImageCount,
		MaxImageCount:    caps.MaxImageCount,
		CurrentExtent:    extent(caps.CurrentExtent),
		MinImageExtent:   extent(caps.MinImageExtent),
		MaxImageExtent:   extent(caps.MaxImageExtent),
		CurrentTransform: caps.CurrentTransform,
	}, nil
}

func (a *Adapter) SurfaceFormats() ([]gpu.SurfaceFormat, error) {
	var count uint32
	if err := gpu.Check("vkGetPhysicalDeviceSurfaceFormatsKHR", vk.GetPhysicalDeviceSurfaceFormats(a.physical, a.surface, &count, nil)); err != nil {
		return nil, err
	}
	formats := make([]vk.SurfaceFormat, count)
	if err := gpu.Check("vkGetPhysicalDeviceSurfaceFormatsKHR", vk.GetPhysicalDeviceSurfaceFormats(a.physical, a.surface, &count, formats)); err != nil {
		return nil, err
	}
	out := make([]gpu.SurfaceFormat, 0, count)
	for i := range formats[:count] {
		formats[i].Deref()
		out = append(out, gpu.SurfaceFormat{Format: formats[i].Format, ColorSpace: formats[i].ColorSpace})
	}
	return out, nil
}

func (a *Adapter) PresentModes() ([]vk.PresentMode, error) {
	var count uint32
	if err := gpu.Check("vkGetPhysicalDeviceSurfacePresentModesKHR", vk.GetPhysicalDeviceSurfacePresentModes(a.physical, a.surface, &count, nil)); err != nil {
		return nil, err
	}
	modes := make([]vk.PresentMode, count)
	if err := gpu.Check("vkGetPhysicalDeviceSurfacePresentModesKHR", vk.GetPhysicalDeviceSurfacePresentModes(a.physical, a.surface, &count, modes)); err != nil {
		return nil, err
	}
	return modes[:count], nil
}

func (a *Adapter) FormatProperties(format vk.Format) gpu.FormatProperties {
	var props vk.FormatProperties
	vk.GetPhysicalDeviceFormatProperties(a.physical, format, &props)
	props.Deref()
	return gpu.FormatProperties{
		LinearTilingFeatures:  props.LinearTilingFeatures,
		OptimalTilingFeatures: props.OptimalTilingFeatures,
	}
}

// findMemoryIndex returns the first memory type allowed by typeFilter that
// has every requested property flag.
func (a *Adapter) findMemoryIndex(typeFilter uint32, flags vk.MemoryPropertyFlags) (uint32, bool) {
	for i := uint32(0); i < a.memory.MemoryTypeCount; i++ {
		memoryType := a.memory.MemoryTypes[i]
		memoryType.Deref()
		if typeFilter&(1<<i) != 0 && memoryType.PropertyFlags&flags == flags {
			return i, true
		}
	}
	return 0, false
}

func extent(e vk.Extent2D) gpu.Extent2D {
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}
