package renderer

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"
	"github.com/google/uuid"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

const (
	hostVisible = vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit)
	deviceLocal = vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit)
)

// AllocatedBuffer is a buffer together with its memory. It is owned by exactly
// one resource and Destroy may be called any number of times.
type AllocatedBuffer struct {
	Handle gpu.Buffer
	Size   uint64
	Usage  vk.BufferUsageFlags
	Memory vk.MemoryPropertyFlags

	device    gpu.Device
	destroyed bool
}

func (b *AllocatedBuffer) HostVisible() bool {
	return b.Memory&vk.MemoryPropertyFlags(vk.MemoryPropertyHostVisibleBit) != 0
}

func (b *AllocatedBuffer) Destroy() {
	if b == nil || b.destroyed {
		return
	}
	b.device.DestroyBuffer(b.Handle)
	b.destroyed = true
}

// AllocatedImage is an image, its memory and its default view.
type AllocatedImage struct {
	Handle    gpu.Image
	View      gpu.ImageView
	Format    vk.Format
	Width     uint32
	Height    uint32
	MipLevels uint32

	device    gpu.Device
	destroyed bool
}

func (i *AllocatedImage) Destroy() {
	if i == nil || i.destroyed {
		return
	}
	if i.View != 0 {
		i.device.DestroyImageView(i.View)
	}
	i.device.DestroyImage(i.Handle)
	i.destroyed = true
}

// Allocator creates buffers and images and moves data into device-local memory.
type Allocator struct {
	ctx        *DeviceContext
	anisotropy bool
}

func NewAllocator(ctx *DeviceContext) *Allocator {
	return &Allocator{ctx: ctx, anisotropy: true}
}

// SetAnisotropy toggles anisotropic filtering on samplers created from now on.
// The device feature itself stays required.
func (a *Allocator) SetAnisotropy(enabled bool) {
	a.anisotropy = enabled
}

// MemoryFor maps buffer usage to memory properties. Buffers the CPU writes
// directly (uniforms and staging sources) are host-visible and coherent.
// Anything the GPU reads as geometry or receives transfers into is device-local.
func MemoryFor(usage vk.BufferUsageFlags) vk.MemoryPropertyFlags {
	switch {
	case usage&vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit) != 0:
		return hostVisible
	case usage&vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit|vk.BufferUsageIndexBufferBit|vk.BufferUsageTransferDstBit) != 0:
		return deviceLocal
	case usage&vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) != 0:
		return hostVisible
	}
	return deviceLocal
}

func (a *Allocator) CreateBuffer(size uint64, usage vk.BufferUsageFlags) (*AllocatedBuffer, error) {
	return a.createBuffer("", size, usage, MemoryFor(usage))
}

func (a *Allocator) createBuffer(label string, size uint64, usage vk.BufferUsageFlags, memory vk.MemoryPropertyFlags) (*AllocatedBuffer, error) {
	if size == 0 {
		return nil, errors.New("cannot create a zero-sized buffer")
	}
	handle, err := a.ctx.Device.CreateBuffer(gpu.BufferDescriptor{
		Label:  label,
		Size:   size,
		Usage:  usage,
		Memory: memory,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "creating buffer of %d bytes", size)
	}
	return &AllocatedBuffer{
		Handle: handle,
		Size:   size,
		Usage:  usage,
		Memory: memory,
		device: a.ctx.Device,
	}, nil
}

func (a *Allocator) stagingBuffer(size uint64, usage vk.BufferUsageFlags) (*AllocatedBuffer, error) {
	return a.createBuffer("staging-"+uuid.NewString()[:8], size, usage, hostVisible)
}

// UploadViaStaging copies data into dst through a temporary host-visible
// buffer and a one-shot command buffer, returning once the copy has retired.
func (a *Allocator) UploadViaStaging(dst *AllocatedBuffer, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if uint64(len(data)) > dst.Size {
		return errors.Newf("upload of %d bytes exceeds buffer of %d", len(data), dst.Size)
	}
	if dst.Usage&vk.BufferUsageFlags(vk.BufferUsageTransferDstBit) == 0 {
		return errors.New("upload destination lacks TRANSFER_DST usage")
	}
	staging, err := a.stagingBuffer(uint64(len(data)), vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit))
	if err != nil {
		return err
	}
	defer staging.Destroy()

	if err := a.ctx.Device.WriteBuffer(staging.Handle, 0, data); err != nil {
		return errors.Wrap(err, "filling staging buffer")
	}
	return a.SingleUse(func(cb gpu.CommandBuffer) {
		a.ctx.Device.CmdCopyBuffer(cb, staging.Handle, dst.Handle, uint64(len(data)))
	})
}

// WriteHostVisible writes straight into mapped memory. Only valid for
// host-visible buffers such as the per-frame uniforms.
func (a *Allocator) WriteHostVisible(buf *AllocatedBuffer, offset uint64, data []byte) error {
	if !buf.HostVisible() {
		return errors.New("direct write to a device-local buffer")
	}
	if offset+uint64(len(data)) > buf.Size {
		return errors.Newf("write of %d bytes at %d exceeds buffer of %d", len(data), offset, buf.Size)
	}
	return a.ctx.Device.WriteBuffer(buf.Handle, offset, data)
}

// Readback returns the full contents of buf. Device-local buffers are copied
// into a host-visible buffer first, so buf needs TRANSFER_SRC usage.
func (a *Allocator) Readback(buf *AllocatedBuffer) ([]byte, error) {
	out := make([]byte, buf.Size)
	if buf.HostVisible() {
		return out, a.ctx.Device.ReadBuffer(buf.Handle, 0, out)
	}
	if buf.Usage&vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit) == 0 {
		return nil, errors.New("readback source lacks TRANSFER_SRC usage")
	}
	staging, err := a.stagingBuffer(buf.Size, vk.BufferUsageFlags(vk.BufferUsageTransferDstBit))
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	err = a.SingleUse(func(cb gpu.CommandBuffer) {
		a.ctx.Device.CmdCopyBuffer(cb, buf.Handle, staging.Handle, buf.Size)
	})
	if err != nil {
		return nil, err
	}
	return out, a.ctx.Device.ReadBuffer(staging.Handle, 0, out)
}

// SingleUse records commands into a fresh command buffer, submits it and
// blocks until the queue is idle. Setup-time only.
func (a *Allocator) SingleUse(record func(cb gpu.CommandBuffer)) error {
	dev := a.ctx.Device
	cbs, err := dev.AllocateCommandBuffers(1)
	if err != nil {
		return errors.Wrap(err, "allocating single-use command buffer")
	}
	defer dev.FreeCommandBuffers(cbs)
	cb := cbs[0]

	if err := dev.BeginCommandBuffer(cb, true); err != nil {
		return err
	}
	record(cb)
	if err := dev.EndCommandBuffer(cb); err != nil {
		return err
	}
	if err := dev.Submit(gpu.SubmitInfo{CommandBuffers: cbs}); err != nil {
		return err
	}
	return dev.QueueWaitIdle()
}

// CreateImage creates a device-local image and a view over all its mip levels.
func (a *Allocator) CreateImage(desc gpu.ImageDescriptor, aspect vk.ImageAspectFlags) (*AllocatedImage, error) {
	if desc.MipLevels == 0 {
		desc.MipLevels = 1
	}
	if desc.Memory == 0 {
		desc.Memory = deviceLocal
	}
	dev := a.ctx.Device
	handle, err := dev.CreateImage(desc)
	if err != nil {
		return nil, errors.Wrapf(err, "creating %dx%d image", desc.Width, desc.Height)
	}
	view, err := dev.CreateImageView(gpu.ImageViewDescriptor{
		Image:     handle,
		Format:    desc.Format,
		Aspect:    aspect,
		MipLevels: desc.MipLevels,
	})
	if err != nil {
		dev.DestroyImage(handle)
		return nil, errors.Wrap(err, "creating image view")
	}
	return &AllocatedImage{
		Handle:    handle,
		View:      view,
		Format:    desc.Format,
		Width:     desc.Width,
		Height:    desc.Height,
		MipLevels: desc.MipLevels,
		device:    dev,
	}, nil
}
