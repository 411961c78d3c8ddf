package renderer

import (
	"testing"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := gpu.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	srgb := gpu.SurfaceFormat{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	rgba := gpu.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	tests := []struct {
		name    string
		formats []gpu.SurfaceFormat
		want    gpu.SurfaceFormat
		wantErr bool
	}{
		{name: "preferred present", formats: []gpu.SurfaceFormat{srgb, preferred}, want: preferred},
		{name: "fallback to first", formats: []gpu.SurfaceFormat{rgba, srgb}, want: rgba},
		{name: "single", formats: []gpu.SurfaceFormat{srgb}, want: srgb},
		{name: "empty", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChooseSurfaceFormat(tt.formats)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ChooseSurfaceFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ChooseSurfaceFormat() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestChoosePresentMode(t *testing.T) {
	tests := []struct {
		name      string
		modes     []vk.PresentMode
		preferred vk.PresentMode
		want      vk.PresentMode
	}{
		{name: "mailbox available", modes: []vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}, preferred: vk.PresentModeMailbox, want: vk.PresentModeMailbox},
		{name: "mailbox missing", modes: []vk.PresentMode{vk.PresentModeImmediate, vk.PresentModeFifo}, preferred: vk.PresentModeMailbox, want: vk.PresentModeFifo},
		{name: "fifo configured", modes: []vk.PresentMode{vk.PresentModeMailbox, vk.PresentModeFifo}, preferred: vk.PresentModeFifo, want: vk.PresentModeFifo},
		{name: "nothing reported", preferred: vk.PresentModeMailbox, want: vk.PresentModeFifo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChoosePresentMode(tt.modes, tt.preferred); got != tt.want {
				t.Errorf("ChoosePresentMode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestChooseExtent(t *testing.T) {
	bounds := gpu.SurfaceCapabilities{
		MinImageExtent: gpu.Extent2D{Width: 100, Height: 100},
		MaxImageExtent: gpu.Extent2D{Width: 1920, Height: 1080},
	}
	withCurrent := func(w, h uint32) gpu.SurfaceCapabilities {
		c := bounds
		c.CurrentExtent = gpu.Extent2D{Width: w, Height: h}
		return c
	}

	tests := []struct {
		name          string
		caps          gpu.SurfaceCapabilities
		width, height uint32
		want          gpu.Extent2D
		wantBooting   bool
	}{
		{name: "current extent wins", caps: withCurrent(800, 600), width: 1024, height: 768, want: gpu.Extent2D{Width: 800, Height: 600}},
		{name: "window size within bounds", caps: withCurrent(gpu.UndefinedExtent, gpu.UndefinedExtent), width: 1024, height: 768, want: gpu.Extent2D{Width: 1024, Height: 768}},
		{name: "window size clamped up", caps: withCurrent(gpu.UndefinedExtent, gpu.UndefinedExtent), width: 10, height: 20, want: gpu.Extent2D{Width: 100, Height: 100}},
		{name: "window size clamped down", caps: withCurrent(gpu.UndefinedExtent, gpu.UndefinedExtent), width: 4000, height: 3000, want: gpu.Extent2D{Width: 1920, Height: 1080}},
		{name: "minimized", caps: withCurrent(0, 0), width: 0, height: 0, want: gpu.Extent2D{}, wantBooting: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ChooseExtent(tt.caps, tt.width, tt.height)
			if booting := errors.Is(err, core.ErrSwapchainBooting); booting != tt.wantBooting {
				t.Fatalf("ChooseExtent() error = %v, wantBooting %v", err, tt.wantBooting)
			}
			if got != tt.want {
				t.Errorf("ChooseExtent() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestImageCount(t *testing.T) {
	tests := []struct {
		name     string
		min, max uint32
		want     uint32
	}{
		{name: "one above minimum", min: 2, max: 8, want: 3},
		{name: "capped at maximum", min: 3, max: 3, want: 3},
		{name: "unbounded", min: 2, max: 0, want: 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImageCount(gpu.SurfaceCapabilities{MinImageCount: tt.min, MaxImageCount: tt.max})
			if got != tt.want {
				t.Errorf("ImageCount() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSwapchainRecreateIsAtomic(t *testing.T) {
	h := newHarness(t, 800, 600)
	sc := h.renderer.Swapchain()
	checkSwapchainAtomic(t, h.device, sc)

	sizes := [][2]uint32{{1024, 768}, {320, 200}, {1024, 768}}
	for _, size := range sizes {
		oldHandle := sc.Handle
		oldFramebuffers := append([]gpu.Framebuffer(nil), sc.Framebuffers...)

		h.inst.SetSurfaceExtent(size[0], size[1])
		h.window.width, h.window.height = size[0], size[1]
		if err := sc.Recreate(h.window); err != nil {
			t.Fatalf("Recreate(%v) error = %v", size, err)
		}
		checkSwapchainAtomic(t, h.device, sc)
		if h.device.IsAliveSwapchain(oldHandle) {
			t.Errorf("old swapchain %d survived recreation", oldHandle)
		}
		for _, fb := range oldFramebuffers {
			if h.device.IsAliveFramebuffer(fb) {
				t.Errorf("old framebuffer %d survived recreation", fb)
			}
		}
		if sc.Extent.Width != size[0] || sc.Extent.Height != size[1] {
			t.Errorf("extent = %+v, want %v", sc.Extent, size)
		}
	}
	h.checkMisuse(t)
}

func TestRenderPassLayout(t *testing.T) {
	h := newHarness(t, 800, 600)
	desc, ok := h.device.RenderPassDesc(h.renderer.Swapchain().RenderPass)
	if !ok {
		t.Fatal("render pass not alive")
	}
	if len(desc.Attachments) != 3 || len(desc.Subpasses) != 2 || len(desc.Dependencies) != 3 {
		t.Fatalf("render pass = %d attachments, %d subpasses, %d dependencies", len(desc.Attachments), len(desc.Subpasses), len(desc.Dependencies))
	}
	if desc.Attachments[0].FinalLayout != vk.ImageLayoutPresentSrc {
		t.Errorf("attachment 0 final layout = %v, want PRESENT_SRC", desc.Attachments[0].FinalLayout)
	}
	if desc.Attachments[1].Format != vk.FormatR16g16b16a16Sfloat {
		t.Errorf("attachment 1 format = %v, want R16G16B16A16_SFLOAT", desc.Attachments[1].Format)
	}
	post := desc.Subpasses[1]
	if len(post.Input) != 1 || post.Input[0].Attachment != 1 {
		t.Errorf("post-process subpass inputs = %+v, want attachment 1", post.Input)
	}
	if len(post.Color) != 1 || post.Color[0].Attachment != 0 {
		t.Errorf("post-process subpass colors = %+v, want attachment 0", post.Color)
	}
	dep := desc.Dependencies[1]
	if dep.Flags&vk.DependencyFlags(vk.DependencyByRegionBit) == 0 {
		t.Error("geometry to post-process dependency is not by region")
	}
}

func TestHDRFallsBackToSwapchainFormat(t *testing.T) {
	inst := newMockInstanceWithout(vk.FormatR16g16b16a16Sfloat)
	window := &testWindow{width: 640, height: 480}
	ctx, err := NewDeviceContext(inst, DefaultDeviceRequirements())
	if err != nil {
		t.Fatalf("NewDeviceContext() error = %v", err)
	}
	sc, err := NewSwapchain(ctx, NewAllocator(ctx), window, vk.PresentModeMailbox)
	if err != nil {
		t.Fatalf("NewSwapchain() error = %v", err)
	}
	if sc.ColorFormat != sc.Format.Format {
		t.Errorf("color format = %v, want swapchain format %v", sc.ColorFormat, sc.Format.Format)
	}
}
