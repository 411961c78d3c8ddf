package renderer

import (
	"bytes"
	"testing"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/mock"
)

func newTestAllocator(t *testing.T) (*Allocator, *mock.Device, *mock.Adapter) {
	t.Helper()
	inst := mock.NewInstance(640, 480)
	ctx, err := NewDeviceContext(inst, DefaultDeviceRequirements())
	if err != nil {
		t.Fatalf("NewDeviceContext() error = %v", err)
	}
	return NewAllocator(ctx), inst.Devices[0], inst.AdapterList[0]
}

func TestMemoryFor(t *testing.T) {
	tests := []struct {
		name  string
		usage vk.BufferUsageFlags
		want  vk.MemoryPropertyFlags
	}{
		{name: "uniform", usage: vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit), want: hostVisible},
		{name: "staging source", usage: vk.BufferUsageFlags(vk.BufferUsageTransferSrcBit), want: hostVisible},
		{name: "vertex", usage: vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit), want: deviceLocal},
		{name: "index", usage: vk.BufferUsageFlags(vk.BufferUsageIndexBufferBit | vk.BufferUsageTransferDstBit), want: deviceLocal},
		{name: "readable vertex", usage: vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit | vk.BufferUsageTransferSrcBit), want: deviceLocal},
		{name: "transfer destination", usage: vk.BufferUsageFlags(vk.BufferUsageTransferDstBit), want: deviceLocal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MemoryFor(tt.usage); got != tt.want {
				t.Errorf("MemoryFor() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestUploadRoundTrip(t *testing.T) {
	a, dev, _ := newTestAllocator(t)
	payloads := map[string][]byte{
		"small":    {1, 2, 3, 4},
		"odd":      []byte("lumen uploads through staging"),
		"kilobyte": bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 256),
	}
	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			usage := vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit | vk.BufferUsageTransferDstBit | vk.BufferUsageTransferSrcBit)
			buf, err := a.CreateBuffer(uint64(len(payload)), usage)
			if err != nil {
				t.Fatalf("CreateBuffer() error = %v", err)
			}
			defer buf.Destroy()
			if buf.HostVisible() {
				t.Fatal("vertex buffer was placed in host-visible memory")
			}
			if err := a.UploadViaStaging(buf, payload); err != nil {
				t.Fatalf("UploadViaStaging() error = %v", err)
			}
			got, err := a.Readback(buf)
			if err != nil {
				t.Fatalf("Readback() error = %v", err)
			}
			if !bytes.Equal(got, payload) {
				t.Errorf("Readback() = %x, want %x", got, payload)
			}
		})
	}
	for _, m := range dev.Misuse {
		t.Errorf("driver misuse: %s", m)
	}
	if live := dev.Live(); live != 0 {
		t.Errorf("live handles = %d, want 0 (staging buffers and command buffers leaked)", live)
	}
}

func TestUploadRejectsOversizedPayload(t *testing.T) {
	a, _, _ := newTestAllocator(t)
	buf, err := a.CreateBuffer(4, vk.BufferUsageFlags(vk.BufferUsageVertexBufferBit|vk.BufferUsageTransferDstBit))
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	if err := a.UploadViaStaging(buf, make([]byte, 8)); err == nil {
		t.Error("UploadViaStaging() of 8 bytes into 4 succeeded")
	}
	if err := a.WriteHostVisible(buf, 0, []byte{1}); err == nil {
		t.Error("WriteHostVisible() into a device-local buffer succeeded")
	}
}

func TestDestroyIsIdempotent(t *testing.T) {
	a, dev, _ := newTestAllocator(t)
	buf, err := a.CreateBuffer(16, vk.BufferUsageFlags(vk.BufferUsageUniformBufferBit))
	if err != nil {
		t.Fatalf("CreateBuffer() error = %v", err)
	}
	buf.Destroy()
	buf.Destroy()
	if len(dev.Misuse) != 0 {
		t.Errorf("double destroy reached the driver: %v", dev.Misuse)
	}
}

func TestTextureMipLevels(t *testing.T) {
	tests := []struct {
		name          string
		width, height uint32
		noLinear      bool
		want          uint32
	}{
		{name: "1x1", width: 1, height: 1, want: 1},
		{name: "4x4", width: 4, height: 4, want: 3},
		{name: "256x64", width: 256, height: 64, want: 9},
		{name: "300x17", width: 300, height: 17, want: 9},
		{name: "1024x1024 without linear blit", width: 1024, height: 1024, noLinear: true, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, dev, adapter := newTestAllocator(t)
			if tt.noLinear {
				adapter.NoLinearFilter[vk.FormatR8g8b8a8Unorm] = true
			}
			tex, err := a.CreateTexture(tt.width, tt.height, vk.FormatR8g8b8a8Unorm, rgbaPixels(tt.width, tt.height))
			if err != nil {
				t.Fatalf("CreateTexture() error = %v", err)
			}
			defer tex.Destroy()
			if tex.MipLevels != tt.want {
				t.Errorf("MipLevels = %d, want %d", tex.MipLevels, tt.want)
			}
			desc, ok := dev.ImageDesc(tex.Image.Handle)
			if !ok || desc.MipLevels != tt.want {
				t.Errorf("image mip levels = %d, want %d", desc.MipLevels, tt.want)
			}
			sampler, ok := dev.SamplerDesc(tex.Sampler)
			if !ok {
				t.Fatal("sampler not alive")
			}
			if sampler.MaxLod != float32(tt.want) || !sampler.Anisotropy || sampler.MaxAnisotropy != 16 {
				t.Errorf("sampler = %+v", sampler)
			}
			if !bytes.Equal(dev.ImageData(tex.Image.Handle), rgbaPixels(tt.width, tt.height)) {
				t.Error("base level does not hold the uploaded pixels")
			}
		})
	}
}

func TestAnisotropySettingOnlyAffectsSamplers(t *testing.T) {
	cfg := config.Default()
	cfg.Renderer.Anisotropy = false
	opts := OptionsFromConfig(cfg)
	if !opts.Requirements.SamplerAnisotropy {
		t.Error("disabling anisotropy dropped the samplerAnisotropy device requirement")
	}
	if !opts.DisableAnisotropy {
		t.Error("DisableAnisotropy not set from config")
	}

	a, dev, _ := newTestAllocator(t)
	a.SetAnisotropy(!opts.DisableAnisotropy)
	tex, err := a.CreateTexture(4, 4, vk.FormatR8g8b8a8Unorm, rgbaPixels(4, 4))
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	defer tex.Destroy()
	sampler, ok := dev.SamplerDesc(tex.Sampler)
	if !ok {
		t.Fatal("sampler not alive")
	}
	if sampler.Anisotropy {
		t.Error("sampler has anisotropy enabled after it was disabled")
	}
	if !dev.Descriptor.SamplerAnisotropy {
		t.Error("device created without the samplerAnisotropy feature")
	}
}

func TestMipChainCommands(t *testing.T) {
	a, dev, _ := newTestAllocator(t)
	tex, err := a.CreateTexture(8, 4, vk.FormatR8g8b8a8Unorm, rgbaPixels(8, 4))
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	cmds := dev.LastSubmitted()

	var blits []gpu.ImageBlit
	var last gpu.ImageBarrier
	for _, c := range cmds {
		switch c.Op {
		case mock.OpBlitImage:
			blits = append(blits, c.Blit)
		case mock.OpImageBarrier:
			last = c.Barrier
		}
	}
	want := []gpu.ImageBlit{
		{Image: tex.Image.Handle, SrcMip: 0, SrcExtent: gpu.Extent2D{Width: 8, Height: 4}, DstMip: 1, DstExtent: gpu.Extent2D{Width: 4, Height: 2}},
		{Image: tex.Image.Handle, SrcMip: 1, SrcExtent: gpu.Extent2D{Width: 4, Height: 2}, DstMip: 2, DstExtent: gpu.Extent2D{Width: 2, Height: 1}},
		{Image: tex.Image.Handle, SrcMip: 2, SrcExtent: gpu.Extent2D{Width: 2, Height: 1}, DstMip: 3, DstExtent: gpu.Extent2D{Width: 1, Height: 1}},
	}
	if len(blits) != len(want) {
		t.Fatalf("blits = %d, want %d", len(blits), len(want))
	}
	for i := range want {
		if blits[i] != want[i] {
			t.Errorf("blit %d = %+v, want %+v", i, blits[i], want[i])
		}
	}
	if last.BaseMipLevel != 3 || last.NewLayout != vk.ImageLayoutShaderReadOnlyOptimal {
		t.Errorf("final barrier = %+v, want level 3 to SHADER_READ_ONLY", last)
	}
}

func TestTextureRejectsBadData(t *testing.T) {
	a, _, _ := newTestAllocator(t)
	tests := []struct {
		name   string
		format vk.Format
		pixels []byte
	}{
		{name: "short", format: vk.FormatR8g8b8a8Unorm, pixels: make([]byte, 15)},
		{name: "long", format: vk.FormatR8g8b8a8Unorm, pixels: make([]byte, 17)},
		{name: "three channel", format: vk.FormatR8g8b8Unorm, pixels: make([]byte, 12)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := a.CreateTexture(2, 2, tt.format, tt.pixels); err == nil {
				t.Error("CreateTexture() error = nil")
			}
		})
	}
}
