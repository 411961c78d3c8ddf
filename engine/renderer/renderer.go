package renderer

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
)

// Overlay records its own commands into the open render pass. Record is
// called once per frame while the geometry subpass is current.
type Overlay interface {
	Record(cb gpu.CommandBuffer, subpass uint32)
}

type Options struct {
	PresentMode  vk.PresentMode
	ClearColor   [4]float32
	Requirements DeviceRequirements
	// DisableAnisotropy turns filtering off on texture samplers only.
	DisableAnisotropy bool
}

func OptionsFromConfig(cfg *config.Config) Options {
	mode := vk.PresentModeMailbox
	if strings.EqualFold(cfg.Renderer.PreferredPresentMode, "fifo") {
		mode = vk.PresentModeFifo
	}
	return Options{
		PresentMode:       mode,
		ClearColor:        cfg.Renderer.ClearColor,
		Requirements:      DefaultDeviceRequirements(),
		DisableAnisotropy: !cfg.Renderer.Anisotropy,
	}
}

// Renderer owns every GPU object of the engine. It is driven from a single
// goroutine.
type Renderer struct {
	ctx       *DeviceContext
	allocator *Allocator
	swapchain *Swapchain
	window    Window
	library   *shader.Library

	layouts   *DescriptorLayouts
	pool      gpu.DescriptorPool
	pipelines *Pipelines
	scene     *Scene
	overlay   Overlay

	frames         [MaxFramesInFlight]*FrameSlot
	imagesInFlight []gpu.Fence
	currentFrame   int
	frameNumber    uint64
	lastDraws      int
	clearColor     [4]float32

	resized bool
	dirty   bool
	booting bool
}

// New selects a device, builds the swapchain, compiles every program of the
// library and creates the pipelines and frame slots. Any failure is fatal and
// releases what was built so far.
func New(ctx context.Context, inst gpu.Instance, window Window, library *shader.Library, opts Options) (*Renderer, error) {
	devCtx, err := NewDeviceContext(inst, opts.Requirements)
	if err != nil {
		return nil, err
	}
	r := &Renderer{
		ctx:        devCtx,
		allocator:  NewAllocator(devCtx),
		window:     window,
		library:    library,
		clearColor: opts.ClearColor,
	}
	r.allocator.SetAnisotropy(!opts.DisableAnisotropy)
	if err := r.initialize(ctx, opts); err != nil {
		r.destroy()
		return nil, err
	}
	core.LogInfo("Renderer initialized.")
	return r, nil
}

func (r *Renderer) initialize(ctx context.Context, opts Options) error {
	dev := r.ctx.Device
	var err error
	if r.swapchain, err = NewSwapchain(r.ctx, r.allocator, r.window, opts.PresentMode); err != nil {
		return err
	}
	r.imagesInFlight = make([]gpu.Fence, len(r.swapchain.Images))

	if r.layouts, err = NewDescriptorLayouts(dev); err != nil {
		return err
	}
	if r.pool, err = NewDescriptorPool(dev); err != nil {
		return err
	}

	compiled, err := r.library.Compile(ctx)
	if err != nil {
		return err
	}
	if r.pipelines, err = NewPipelines(dev, r.layouts, r.swapchain.RenderPass, compiled); err != nil {
		return err
	}

	for i := range r.frames {
		if r.frames[i], err = newFrameSlot(dev, r.allocator, r.pool, r.layouts); err != nil {
			return err
		}
	}
	r.scene = newScene(r.allocator, dev, r.pool, r.layouts)
	return nil
}

func (r *Renderer) Scene() *Scene {
	return r.scene
}

func (r *Renderer) Swapchain() *Swapchain {
	return r.swapchain
}

func (r *Renderer) Allocator() *Allocator {
	return r.allocator
}

func (r *Renderer) Context() *DeviceContext {
	return r.ctx
}

func (r *Renderer) SetOverlay(o Overlay) {
	r.overlay = o
}

// LastDraws is the number of indexed draws recorded by the latest frame.
func (r *Renderer) LastDraws() int {
	return r.lastDraws
}

func (r *Renderer) FrameNumber() uint64 {
	return r.frameNumber
}

// Resize marks the swapchain for recreation on the next frame.
func (r *Renderer) Resize(width, height uint32) {
	core.LogDebug("Window resized to %dx%d.", width, height)
	r.resized = true
}

// ReloadShaders recompiles the named programs (all when none are given) and
// rebuilds the pipelines using them once the device is idle. A failed compile
// keeps the old pipelines.
func (r *Renderer) ReloadShaders(ctx context.Context, programs ...string) error {
	if err := r.ctx.Device.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for device idle before shader reload")
	}
	return r.pipelines.Rebuild(ctx, r.library, programs...)
}

// Shutdown waits for the device to go idle and releases every GPU object in
// reverse creation order.
func (r *Renderer) Shutdown() error {
	if err := r.ctx.Device.WaitIdle(); err != nil {
		return errors.Wrap(err, "waiting for device idle on shutdown")
	}
	r.destroy()
	core.LogInfo("Renderer shut down.")
	return nil
}

func (r *Renderer) destroy() {
	dev := r.ctx.Device
	if r.scene != nil {
		r.scene.destroy()
		r.scene = nil
	}
	for i := len(r.frames) - 1; i >= 0; i-- {
		if r.frames[i] != nil {
			r.frames[i].destroy(dev)
			r.frames[i] = nil
		}
	}
	if r.pipelines != nil {
		r.pipelines.Destroy()
		r.pipelines = nil
	}
	if r.pool != 0 {
		dev.DestroyDescriptorPool(r.pool)
		r.pool = 0
	}
	if r.layouts != nil {
		r.layouts.Destroy(dev)
		r.layouts = nil
	}
	if r.swapchain != nil {
		r.swapchain.Destroy()
		r.swapchain = nil
	}
	r.ctx.Destroy()
}
