package renderer

import (
	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

// hdrFormat is the offscreen color target of the geometry subpass.
const hdrFormat = vk.FormatR16g16b16a16Sfloat

// Window is what the renderer needs from the platform layer.
type Window interface {
	// FramebufferSize is the drawable size in pixels; zero while minimized.
	FramebufferSize() (width, height uint32)
	// WaitEvents blocks until the platform has events to deliver.
	WaitEvents()
}

// ChooseSurfaceFormat prefers B8G8R8A8_UNORM with sRGB non-linear color space
// and otherwise takes the first format the surface reports.
func ChooseSurfaceFormat(formats []gpu.SurfaceFormat) (gpu.SurfaceFormat, error) {
	if len(formats) == 0 {
		return gpu.SurfaceFormat{}, errors.New("surface reports no formats")
	}
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f, nil
		}
	}
	return formats[0], nil
}

// ChoosePresentMode returns preferred when available and FIFO otherwise, which
// every surface supports.
func ChoosePresentMode(modes []vk.PresentMode, preferred vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == preferred {
			return m
		}
	}
	return vk.PresentModeFifo
}

// ChooseExtent takes the surface's current extent verbatim unless it is the
// "defined by the swapchain" sentinel, in which case the window size is
// clamped into the supported bounds. A zero-area result means the surface is
// minimized and ErrSwapchainBooting is returned.
func ChooseExtent(caps gpu.SurfaceCapabilities, width, height uint32) (gpu.Extent2D, error) {
	extent := caps.CurrentExtent
	if extent.Width == gpu.UndefinedExtent {
		extent = gpu.Extent2D{
			Width:  math.Clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
			Height: math.Clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
		}
	}
	if extent.Width == 0 || extent.Height == 0 {
		return extent, core.ErrSwapchainBooting
	}
	return extent, nil
}

// ImageCount asks for one image more than the minimum, capped at the maximum
// when the surface has one.
func ImageCount(caps gpu.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

// Swapchain owns the presentable images and everything sized to them: their
// views, the offscreen HDR color image, the depth image and one framebuffer
// per image. All of them are rebuilt together.
type Swapchain struct {
	Handle       gpu.Swapchain
	Format       gpu.SurfaceFormat
	PresentMode  vk.PresentMode
	Extent       gpu.Extent2D
	Images       []gpu.Image
	Views        []gpu.ImageView
	Color        *AllocatedImage
	Depth        *AllocatedImage
	ColorFormat  vk.Format
	RenderPass   gpu.RenderPass
	Framebuffers []gpu.Framebuffer
	// Generation increases every time the image set is rebuilt.
	Generation uint64

	ctx       *DeviceContext
	allocator *Allocator
	preferred vk.PresentMode
}

// NewSwapchain creates the swapchain, the render pass and the framebuffers.
func NewSwapchain(ctx *DeviceContext, allocator *Allocator, window Window, preferred vk.PresentMode) (*Swapchain, error) {
	formats, err := ctx.Adapter.SurfaceFormats()
	if err != nil {
		return nil, errors.Wrap(err, "querying surface formats")
	}
	format, err := ChooseSurfaceFormat(formats)
	if err != nil {
		return nil, err
	}

	sc := &Swapchain{
		Format:      format,
		ColorFormat: chooseColorFormat(ctx.Adapter, format.Format),
		ctx:         ctx,
		allocator:   allocator,
		preferred:   preferred,
	}
	sc.RenderPass, err = ctx.Device.CreateRenderPass(sc.renderPassDescriptor())
	if err != nil {
		return nil, errors.Wrap(err, "creating main render pass")
	}
	waitForArea(window)
	if err := sc.build(window); err != nil {
		ctx.Device.DestroyRenderPass(sc.RenderPass)
		return nil, err
	}
	return sc, nil
}

func chooseColorFormat(adapter gpu.Adapter, fallback vk.Format) vk.Format {
	need := vk.FormatFeatureFlags(vk.FormatFeatureColorAttachmentBit)
	if adapter.FormatProperties(hdrFormat).OptimalTilingFeatures&need == need {
		return hdrFormat
	}
	return fallback
}

// waitForArea blocks while the window is minimized.
func waitForArea(window Window) {
	for {
		w, h := window.FramebufferSize()
		if w > 0 && h > 0 {
			return
		}
		window.WaitEvents()
	}
}

// Recreate waits until the window has area and the device is idle, then
// replaces the swapchain and every object sized to it. On failure nothing
// from the partial rebuild is left alive.
func (s *Swapchain) Recreate(window Window) error {
	waitForArea(window)
	if err := s.ctx.Device.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for device idle before swapchain recreation")
	}
	s.destroyAttachments()
	return s.build(window)
}

func (s *Swapchain) build(window Window) error {
	dev := s.ctx.Device
	caps, err := s.ctx.Adapter.SurfaceCapabilities()
	if err != nil {
		return errors.Wrap(err, "querying surface capabilities")
	}
	w, h := window.FramebufferSize()
	extent, err := ChooseExtent(caps, w, h)
	if err != nil {
		return err
	}
	modes, err := s.ctx.Adapter.PresentModes()
	if err != nil {
		return errors.Wrap(err, "querying present modes")
	}
	mode := ChoosePresentMode(modes, s.preferred)

	old := s.Handle
	handle, err := dev.CreateSwapchain(gpu.SwapchainDescriptor{
		MinImageCount: ImageCount(caps),
		Format:        s.Format,
		Extent:        extent,
		PresentMode:   mode,
		Transform:     caps.CurrentTransform,
		QueueFamilies: s.ctx.Queues.Families(),
		OldSwapchain:  old,
	})
	if old != 0 {
		dev.DestroySwapchain(old)
		s.Handle = 0
	}
	if err != nil {
		return errors.Wrap(err, "creating swapchain")
	}
	s.Handle = handle
	s.Extent = extent
	s.PresentMode = mode

	if err := s.buildAttachments(); err != nil {
		s.destroyAttachments()
		dev.DestroySwapchain(s.Handle)
		s.Handle = 0
		return err
	}
	s.Generation++
	core.LogInfo("Swapchain ready: format %d, present mode %d, extent %dx%d, %d images.",
		s.Format.Format, s.PresentMode, s.Extent.Width, s.Extent.Height, len(s.Images))
	return nil
}

func (s *Swapchain) buildAttachments() error {
	dev := s.ctx.Device
	images, err := dev.SwapchainImages(s.Handle)
	if err != nil {
		return errors.Wrap(err, "fetching swapchain images")
	}
	s.Images = images
	for _, img := range images {
		view, err := dev.CreateImageView(gpu.ImageViewDescriptor{
			Image:     img,
			Format:    s.Format.Format,
			Aspect:    vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevels: 1,
		})
		if err != nil {
			return errors.Wrap(err, "creating swapchain image view")
		}
		s.Views = append(s.Views, view)
	}

	s.Color, err = s.allocator.CreateImage(gpu.ImageDescriptor{
		Width:     s.Extent.Width,
		Height:    s.Extent.Height,
		MipLevels: 1,
		Format:    s.ColorFormat,
		Usage:     vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageInputAttachmentBit),
	}, vk.ImageAspectFlags(vk.ImageAspectColorBit))
	if err != nil {
		return errors.Wrap(err, "creating offscreen color attachment")
	}

	s.Depth, err = s.allocator.CreateImage(gpu.ImageDescriptor{
		Width:     s.Extent.Width,
		Height:    s.Extent.Height,
		MipLevels: 1,
		Format:    s.ctx.DepthFormat,
		Usage:     vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
	}, vk.ImageAspectFlags(vk.ImageAspectDepthBit))
	if err != nil {
		return errors.Wrap(err, "creating depth attachment")
	}

	for _, view := range s.Views {
		fb, err := dev.CreateFramebuffer(gpu.FramebufferDescriptor{
			RenderPass:  s.RenderPass,
			Attachments: []gpu.ImageView{view, s.Color.View, s.Depth.View},
			Width:       s.Extent.Width,
			Height:      s.Extent.Height,
		})
		if err != nil {
			return errors.Wrap(err, "creating framebuffer")
		}
		s.Framebuffers = append(s.Framebuffers, fb)
	}
	return nil
}

// destroyAttachments releases everything sized to the images but keeps the
// swapchain handle so it can be passed as the old swapchain.
func (s *Swapchain) destroyAttachments() {
	dev := s.ctx.Device
	for _, fb := range s.Framebuffers {
		dev.DestroyFramebuffer(fb)
	}
	s.Framebuffers = nil
	for _, view := range s.Views {
		dev.DestroyImageView(view)
	}
	s.Views = nil
	s.Images = nil
	s.Color.Destroy()
	s.Color = nil
	s.Depth.Destroy()
	s.Depth = nil
}

func (s *Swapchain) Destroy() {
	s.destroyAttachments()
	if s.Handle != 0 {
		s.ctx.Device.DestroySwapchain(s.Handle)
		s.Handle = 0
	}
	if s.RenderPass != 0 {
		s.ctx.Device.DestroyRenderPass(s.RenderPass)
		s.RenderPass = 0
	}
}

// Viewport covers the whole swapchain extent with a [0,1] depth range.
func (s *Swapchain) Viewport() gpu.Viewport {
	return gpu.Viewport{
		Width:    float32(s.Extent.Width),
		Height:   float32(s.Extent.Height),
		MaxDepth: 1,
	}
}

func (s *Swapchain) Scissor() gpu.Rect2D {
	return gpu.Rect2D{Width: s.Extent.Width, Height: s.Extent.Height}
}

// renderPassDescriptor builds the two-subpass pass: subpass 0 renders geometry
// into the HDR attachment with depth, subpass 1 reads it as an input
// attachment and writes the swapchain image.
func (s *Swapchain) renderPassDescriptor() gpu.RenderPassDescriptor {
	colorOutput := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	earlyTests := vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)
	fragment := vk.PipelineStageFlags(vk.PipelineStageFragmentShaderBit)
	colorWrite := vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
	depthWrite := vk.AccessFlags(vk.AccessDepthStencilAttachmentWriteBit)

	return gpu.RenderPassDescriptor{
		Attachments: []gpu.AttachmentDescriptor{
			{
				Format:        s.Format.Format,
				Samples:       vk.SampleCount1Bit,
				LoadOp:        vk.AttachmentLoadOpClear,
				StoreOp:       vk.AttachmentStoreOpStore,
				InitialLayout: vk.ImageLayoutUndefined,
				FinalLayout:   vk.ImageLayoutPresentSrc,
			},
			{
				Format:        s.ColorFormat,
				Samples:       vk.SampleCount1Bit,
				LoadOp:        vk.AttachmentLoadOpClear,
				StoreOp:       vk.AttachmentStoreOpDontCare,
				InitialLayout: vk.ImageLayoutUndefined,
				FinalLayout:   vk.ImageLayoutColorAttachmentOptimal,
			},
			{
				Format:        s.ctx.DepthFormat,
				Samples:       vk.SampleCount1Bit,
				LoadOp:        vk.AttachmentLoadOpClear,
				StoreOp:       vk.AttachmentStoreOpDontCare,
				InitialLayout: vk.ImageLayoutUndefined,
				FinalLayout:   vk.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Subpasses: []gpu.SubpassDescriptor{
			{
				Color: []gpu.AttachmentReference{{Attachment: 1, Layout: vk.ImageLayoutColorAttachmentOptimal}},
				Depth: &gpu.AttachmentReference{Attachment: 2, Layout: vk.ImageLayoutDepthStencilAttachmentOptimal},
			},
			{
				Input: []gpu.AttachmentReference{{Attachment: 1, Layout: vk.ImageLayoutShaderReadOnlyOptimal}},
				Color: []gpu.AttachmentReference{{Attachment: 0, Layout: vk.ImageLayoutColorAttachmentOptimal}},
			},
		},
		Dependencies: []gpu.SubpassDependency{
			{
				SrcSubpass:    gpu.SubpassExternal,
				DstSubpass:    0,
				SrcStageMask:  colorOutput | earlyTests,
				DstStageMask:  colorOutput | earlyTests,
				DstAccessMask: colorWrite | depthWrite,
			},
			{
				SrcSubpass:    0,
				DstSubpass:    1,
				SrcStageMask:  colorOutput,
				DstStageMask:  fragment,
				SrcAccessMask: colorWrite,
				DstAccessMask: vk.AccessFlags(vk.AccessInputAttachmentReadBit),
				Flags:         vk.DependencyFlags(vk.DependencyByRegionBit),
			},
			{
				SrcSubpass:    1,
				DstSubpass:    gpu.SubpassExternal,
				SrcStageMask:  colorOutput,
				DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageBottomOfPipeBit),
				SrcAccessMask: colorWrite,
				DstAccessMask: vk.AccessFlags(vk.AccessMemoryReadBit),
			},
		},
	}
}
