package vulkan

import (
	"unsafe"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func (d *Device) CreateBuffer(desc gpu.BufferDescriptor) (gpu.Buffer, error) {
	info := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       desc.Usage,
		SharingMode: vk.SharingModeExclusive,
	}
	var handle vk.Buffer
	if err := gpu.Check("vkCreateBuffer", vk.CreateBuffer(d.handle, &info, nil, &handle)); err != nil {
		return 0, err
	}

	var reqs vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(d.handle, handle, &reqs)
	memory, err := d.allocate(reqs, desc.Memory)
	if err != nil {
		vk.DestroyBuffer(d.handle, handle, nil)
		return 0, errors.Wrapf(err, "buffer %q", desc.Label)
	}
	if err := gpu.Check("vkBindBufferMemory", vk.BindBufferMemory(d.handle, handle, memory, 0)); err != nil {
		vk.DestroyBuffer(d.handle, handle, nil)
		vk.FreeMemory(d.handle, memory, nil)
		return 0, err
	}
	if desc.Label != "" {
		core.LogDebug("Created buffer %q (%d bytes).", desc.Label, desc.Size)
	}
	return d.buffers.put(buffer{handle: handle, memory: memory, size: desc.Size}), nil
}

// mapRange maps [offset, offset+n) of a host-visible buffer.
func (d *Device) mapRange(h gpu.Buffer, offset uint64, n int) (buffer, unsafe.Pointer, error) {
	b, err := d.buffers.get(h)
	if err != nil {
		return b, nil, err
	}
	if offset+uint64(n) > b.size {
		return b, nil, errors.Newf("range [%d, %d) exceeds buffer size %d", offset, offset+uint64(n), b.size)
	}
	var ptr unsafe.Pointer
	if err := gpu.Check("vkMapMemory", vk.MapMemory(d.handle, b.memory, vk.DeviceSize(offset), vk.DeviceSize(n), 0, &ptr)); err != nil {
		return b, nil, err
	}
	return b, ptr, nil
}

func (d *Device) WriteBuffer(h gpu.Buffer, offset uint64, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	b, ptr, err := d.mapRange(h, offset, len(data))
	if err != nil {
		return err
	}
	vk.Memcopy(ptr, data)
	vk.UnmapMemory(d.handle, b.memory)
	return nil
}

func (d *Device) ReadBuffer(h gpu.Buffer, offset uint64, out []byte) error {
	if len(out) == 0 {
		return nil
	}
	b, ptr, err := d.mapRange(h, offset, len(out))
	if err != nil {
		return err
	}
	copy(out, unsafe.Slice((*byte)(ptr), len(out)))
	vk.UnmapMemory(d.handle, b.memory)
	return nil
}

func (d *Device) DestroyBuffer(h gpu.Buffer) {
	b, ok := d.buffers.take(h)
	if !ok {
		return
	}
	vk.DestroyBuffer(d.handle, b.handle, nil)
	vk.FreeMemory(d.handle, b.memory, nil)
}
