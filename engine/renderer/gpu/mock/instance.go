// Package mock is an in-memory gpu driver. It records every command, keeps an
// ordered log of synchronization events and executes transfer commands on
// submit so uploads can be read back.
package mock

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// Surface is the headless presentation target shared by all adapters of an instance.
type Surface struct {
	Capabilities gpu.SurfaceCapabilities
	Formats      []gpu.SurfaceFormat
	PresentModes []vk.PresentMode
}

type Instance struct {
	Surface     *Surface
	AdapterList []*Adapter
	Devices     []*Device

	destroyed bool
}

// NewInstance builds an instance with one fully capable adapter and a surface
// of the given fixed extent.
func NewInstance(width, height uint32) *Instance {
	inst := &Instance{
		Surface: &Surface{
			Capabilities: gpu.SurfaceCapabilities{
				MinImageCount:    2,
				MaxImageCount:    3,
				CurrentExtent:    gpu.Extent2D{Width: width, Height: height},
				MinImageExtent:   gpu.Extent2D{Width: 1, Height: 1},
				MaxImageExtent:   gpu.Extent2D{Width: 8192, Height: 8192},
				CurrentTransform: vk.SurfaceTransformIdentityBit,
			},
			Formats: []gpu.SurfaceFormat{
				{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox},
		},
	}
	inst.AddAdapter(NewAdapter("Mock GPU"))
	return inst
}

// SetSurfaceExtent changes the extent the surface reports, as a window resize would.
func (i *Instance) SetSurfaceExtent(width, height uint32) {
	i.Surface.Capabilities.CurrentExtent = gpu.Extent2D{Width: width, Height: height}
}

func (i *Instance) AddAdapter(a *Adapter) {
	a.surface = i.Surface
	i.AdapterList = append(i.AdapterList, a)
}

func (i *Instance) Adapters() ([]gpu.Adapter, error) {
	out := make([]gpu.Adapter, 0, len(i.AdapterList))
	for _, a := range i.AdapterList {
		out = append(out, a)
	}
	return out, nil
}

func (i *Instance) CreateDevice(adapter gpu.Adapter, desc gpu.DeviceDescriptor) (gpu.Device, error) {
	a, ok := adapter.(*Adapter)
	if !ok {
		return nil, errors.Newf("adapter %T does not belong to the mock instance", adapter)
	}
	d := newDevice(a, desc)
	i.Devices = append(i.Devices, d)
	return d, nil
}

func (i *Instance) Destroy() {
	i.destroyed = true
}

func (i *Instance) Destroyed() bool {
	return i.destroyed
}

// Adapter is a configurable fake physical device.
type Adapter struct {
	Props            gpu.AdapterProperties
	Feats            gpu.AdapterFeatures
	Families         []gpu.QueueFamily
	PresentFamily    map[uint32]bool
	DeviceExtensions []string
	// NoLinearFilter lists formats whose optimal tiling lacks linear blit filtering.
	NoLinearFilter map[vk.Format]bool

	surface *Surface
}

// NewAdapter returns an adapter that passes every selection check: one
// graphics+present queue family, the swapchain extension and anisotropy.
func NewAdapter(name string) *Adapter {
	return &Adapter{
		Props: gpu.AdapterProperties{
			Name:                 name,
			Type:                 vk.PhysicalDeviceTypeDiscreteGpu,
			APIVersion:           uint32(vk.MakeVersion(1, 2, 0)),
			DriverVersion:        1,
			MaxSamplerAnisotropy: 16,
			MemoryHeaps:          []gpu.MemoryHeap{{Size: 1 << 30, DeviceLocal: true}, {Size: 1 << 28}},
		},
		Feats:            gpu.AdapterFeatures{SamplerAnisotropy: true},
		Families:         []gpu.QueueFamily{{Flags: vk.QueueFlags(vk.QueueGraphicsBit | vk.QueueTransferBit), Count: 1}},
		PresentFamily:    map[uint32]bool{0: true},
		DeviceExtensions: []string{"VK_KHR_swapchain"},
		NoLinearFilter:   map[vk.Format]bool{},
	}
}

func (a *Adapter) Properties() gpu.AdapterProperties { return a.Props }

func (a *Adapter) Features() gpu.AdapterFeatures { return a.Feats }

func (a *Adapter) QueueFamilies() []gpu.QueueFamily { return a.Families }

func (a *Adapter) SupportsPresent(family uint32) (bool, error) {
	return a.PresentFamily[family], nil
}

func (a *Adapter) Extensions() ([]string, error) {
	return a.DeviceExtensions, nil
}

func (a *Adapter) SurfaceCapabilities() (gpu.SurfaceCapabilities, error) {
	return a.surface.Capabilities, nil
}

func (a *Adapter) SurfaceFormats() ([]gpu.SurfaceFormat, error) {
	return a.surface.Formats, nil
}

func (a *Adapter) PresentModes() ([]vk.PresentMode, error) {
	return a.surface.PresentModes, nil
}

func (a *Adapter) FormatProperties(format vk.Format) gpu.FormatProperties {
	all := vk.FormatFeatureFlags(vk.FormatFeatureSampledImageBit |
		vk.FormatFeatureBlitSrcBit | vk.FormatFeatureBlitDstBit |
		vk.FormatFeatureColorAttachmentBit | vk.FormatFeatureDepthStencilAttachmentBit |
		vk.FormatFeatureSampledImageFilterLinearBit)
	if a.NoLinearFilter[format] {
		all &^= vk.FormatFeatureFlags(vk.FormatFeatureSampledImageFilterLinearBit)
	}
	return gpu.FormatProperties{LinearTilingFeatures: all, OptimalTilingFeatures: all}
}
