// Package vulkan implements the gpu driver interfaces on top of goki/vulkan.
package vulkan

import (
	"runtime"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

// SurfaceSource is a window that can host a presentation surface.
// *glfw.Window satisfies it.
type SurfaceSource interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocCallbacks unsafe.Pointer) (uintptr, error)
}

type InstanceDescriptor struct {
	AppName    string
	Validation bool
	Window     SurfaceSource
}

// Instance owns the vk.Instance, the optional debug callback and the window surface.
type Instance struct {
	handle  vk.Instance
	surface vk.Surface
	debug   vk.DebugReportCallback
}

var _ gpu.Instance = (*Instance)(nil)

// Load resolves the Vulkan loader through glfw. Call it once after glfw.Init.
func Load() error {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return errors.New("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	return errors.Wrap(vk.Init(), "vk.Init")
}

func NewInstance(desc InstanceDescriptor) (*Instance, error) {
	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(desc.AppName),
		PEngineName:        safeString("Lumen Engine"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := []string{"VK_KHR_surface"}
	extensions = append(extensions, desc.Window.GetRequiredInstanceExtensions()...)
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}

	validation := desc.Validation
	if validation && !layerAvailable(validationLayer) {
		core.LogWarn("Validation layer %s is missing, continuing without it.", validationLayer)
		validation = false
	}
	var layers []string
	if validation {
		layers = []string{validationLayer}
		extensions = append(extensions, vk.ExtDebugReportExtensionName)
	}
	for _, ext := range extensions {
		core.LogDebug("Instance extension: %s", ext)
	}

	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = safeStrings(extensions)
	createInfo.EnabledLayerCount = uint32(len(layers))
	createInfo.PpEnabledLayerNames = safeStrings(layers)

	inst := &Instance{}
	if err := gpu.Check("vkCreateInstance", vk.CreateInstance(&createInfo, nil, &inst.handle)); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(inst.handle); err != nil {
		inst.Destroy()
		return nil, errors.Wrap(err, "vk.InitInstance")
	}
	core.LogInfo("Vulkan instance created.")

	if validation {
		debugCreateInfo := vk.DebugReportCallbackCreateInfo{
			SType:       vk.StructureTypeDebugReportCallbackCreateInfo,
			Flags:       vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit | vk.DebugReportPerformanceWarningBit),
			PfnCallback: debugReport,
		}
		var dbg vk.DebugReportCallback
		if err := gpu.Check("vkCreateDebugReportCallbackEXT", vk.CreateDebugReportCallback(inst.handle, &debugCreateInfo, nil, &dbg)); err != nil {
			inst.Destroy()
			return nil, err
		}
		inst.debug = dbg
		core.LogDebug("Vulkan debugger created.")
	}

	surface, err := desc.Window.CreateWindowSurface(inst.handle, nil)
	if err != nil {
		inst.Destroy()
		return nil, errors.Wrap(err, "window surface creation")
	}
	inst.surface = vk.SurfaceFromPointer(surface)
	core.LogDebug("Vulkan surface created.")

	return inst, nil
}

func layerAvailable(name string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return false
	}
	available := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, available) != vk.Success {
		return false
	}
	for i := range available {
		available[i].Deref()
		if cString(available[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

func (i *Instance) Adapters() ([]gpu.Adapter, error) {
	var count uint32
	if err := gpu.Check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(i.handle, &count, nil)); err != nil {
		return nil, err
	}
	physical := make([]vk.PhysicalDevice, count)
	if err := gpu.Check("vkEnumeratePhysicalDevices", vk.EnumeratePhysicalDevices(i.handle, &count, physical)); err != nil {
		return nil, err
	}
	out := make([]gpu.Adapter, 0, count)
	for _, pd := range physical[:count] {
		out = append(out, newAdapter(pd, i.surface))
	}
	return out, nil
}

func (i *Instance) CreateDevice(adapter gpu.Adapter, desc gpu.DeviceDescriptor) (gpu.Device, error) {
	a, ok := adapter.(*Adapter)
	if !ok {
		return nil, errors.Newf("adapter %T does not belong to the vulkan instance", adapter)
	}
	return newDevice(a, desc)
}

// Destroy releases the surface, the debug callback and the instance, in that order.
func (i *Instance) Destroy() {
	if i.handle == nil {
		return
	}
	if i.surface != vk.NullSurface {
		core.LogDebug("Destroying Vulkan surface...")
		vk.DestroySurface(i.handle, i.surface, nil)
		i.surface = vk.NullSurface
	}
	if i.debug != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(i.handle, i.debug, nil)
		i.debug = vk.NullDebugReportCallback
	}
	core.LogDebug("Destroying Vulkan instance...")
	vk.DestroyInstance(i.handle, nil)
	i.handle = nil
}

func debugReport(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType, object uint64, location uint64, messageCode int32, pLayerPrefix string, pMessage string, pUserData unsafe.Pointer) vk.Bool32 {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		core.LogError("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		core.LogWarn("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		core.LogWarn("PERFORMANCE [%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	default:
		core.LogDebug("[%s] Code %d : %s", pLayerPrefix, messageCode, pMessage)
	}
	return vk.Bool32(vk.False)
}
