package renderer

import (
	"context"
	"encoding/binary"
	"io"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu/mock"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
)

func init() {
	core.SetLogOutput(io.Discard)
}

type testWindow struct {
	width, height uint32
	waits         int
}

func (w *testWindow) FramebufferSize() (uint32, uint32) { return w.width, w.height }

func (w *testWindow) WaitEvents() { w.waits++ }

type spirvCompiler struct{}

func (spirvCompiler) Compile(_ context.Context, _ shader.Source) ([]byte, error) {
	code := make([]byte, 20)
	binary.LittleEndian.PutUint32(code, shader.SPIRVMagic)
	return code, nil
}

type recordingOverlay struct {
	calls    int
	subpass  uint32
	lastCmds gpu.CommandBuffer
}

func (o *recordingOverlay) Record(cb gpu.CommandBuffer, subpass uint32) {
	o.calls++
	o.subpass = subpass
	o.lastCmds = cb
}

type harness struct {
	inst     *mock.Instance
	device   *mock.Device
	window   *testWindow
	renderer *Renderer
}

func newHarness(t *testing.T, width, height uint32) *harness {
	t.Helper()
	inst := mock.NewInstance(width, height)
	window := &testWindow{width: width, height: height}
	lib, err := shader.NewBuiltinLibrary("", map[shader.Language]shader.Compiler{
		shader.GLSL: spirvCompiler{},
		shader.WGSL: spirvCompiler{},
	})
	if err != nil {
		t.Fatalf("NewBuiltinLibrary() error = %v", err)
	}
	r, err := New(context.Background(), inst, window, lib, Options{
		PresentMode:  vk.PresentModeMailbox,
		ClearColor:   [4]float32{0, 0, 0.2, 1},
		Requirements: DefaultDeviceRequirements(),
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return &harness{inst: inst, device: inst.Devices[0], window: window, renderer: r}
}

func (h *harness) checkMisuse(t *testing.T) {
	t.Helper()
	for _, m := range h.device.Misuse {
		t.Errorf("driver misuse: %s", m)
	}
}

func cubeMesh() metadata.MeshData {
	corners := []mgl32.Vec3{
		{-1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
		{-1, -1, 1}, {1, -1, 1}, {1, 1, 1}, {-1, 1, 1},
	}
	vertices := make([]metadata.Vertex, len(corners))
	for i, c := range corners {
		vertices[i] = metadata.Vertex{Position: c, Color: mgl32.Vec3{1, 1, 1}, UV: mgl32.Vec2{c.X()*0.5 + 0.5, c.Y()*0.5 + 0.5}}
	}
	return metadata.MeshData{
		Name:     "cube",
		Vertices: vertices,
		Indices: []uint32{
			0, 2, 1, 0, 3, 2,
			4, 5, 6, 4, 6, 7,
			0, 1, 5, 0, 5, 4,
			3, 6, 2, 3, 7, 6,
			0, 4, 7, 0, 7, 3,
			1, 2, 6, 1, 6, 5,
		},
	}
}

func rgbaPixels(width, height uint32) []byte {
	pixels := make([]byte, width*height*4)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	return pixels
}

// populate creates the cube, a 4x4 texture, one material and one object.
func (h *harness) populate(t *testing.T) ObjectID {
	t.Helper()
	scene := h.renderer.Scene()
	mesh, err := scene.CreateMesh(cubeMesh())
	if err != nil {
		t.Fatalf("CreateMesh() error = %v", err)
	}
	tex, err := scene.CreateTexture(metadata.TextureData{Width: 4, Height: 4, Format: vk.FormatR8g8b8a8Unorm, Pixels: rgbaPixels(4, 4)})
	if err != nil {
		t.Fatalf("CreateTexture() error = %v", err)
	}
	mat, err := scene.CreateMaterial(metadata.PipelineGeometry, tex)
	if err != nil {
		t.Fatalf("CreateMaterial() error = %v", err)
	}
	obj, err := scene.CreateObject(mesh, mat, mgl32.Ident4())
	if err != nil {
		t.Fatalf("CreateObject() error = %v", err)
	}
	return obj
}

func countOps(cmds []mock.Command, op mock.Op) int {
	n := 0
	for _, c := range cmds {
		if c.Op == op {
			n++
		}
	}
	return n
}

func testCamera() *Camera {
	cam := NewCamera(60, 0.05, 1000)
	cam.Transform = mgl32.Translate3D(0, 5, 0)
	return cam
}

func TestEndToEndSingleFrame(t *testing.T) {
	h := newHarness(t, 800, 600)
	h.populate(t)

	if err := h.renderer.DrawFrame(testCamera()); err != nil {
		t.Fatalf("DrawFrame() error = %v", err)
	}
	h.checkMisuse(t)

	cmds := h.device.LastSubmitted()
	if got := countOps(cmds, mock.OpDrawIndexed); got != 1 {
		t.Fatalf("indexed draws = %d, want 1", got)
	}
	for _, c := range cmds {
		if c.Op == mock.OpDrawIndexed && c.Count != 36 {
			t.Errorf("index count = %d, want 36", c.Count)
		}
	}
	if got := countOps(cmds, mock.OpNextSubpass); got != 1 {
		t.Errorf("subpass transitions = %d, want 1", got)
	}
	if got := countOps(cmds, mock.OpDraw); got != 1 {
		t.Errorf("full-screen draws = %d, want 1", got)
	}
	if h.renderer.LastDraws() != 1 {
		t.Errorf("LastDraws() = %d, want 1", h.renderer.LastDraws())
	}

	begin := cmds[0]
	if begin.Op != mock.OpBeginRenderPass {
		t.Fatalf("first command = %s, want %s", begin.Op, mock.OpBeginRenderPass)
	}
	if len(begin.Begin.ClearValues) != 3 {
		t.Fatalf("clear values = %d, want 3", len(begin.Begin.ClearValues))
	}
	if depth := begin.Begin.ClearValues[2]; !depth.DepthStencil || depth.Depth != 1 {
		t.Errorf("depth clear = %+v, want depth 1", depth)
	}
	if begin.Begin.Area.Width != 800 || begin.Begin.Area.Height != 600 {
		t.Errorf("render area = %dx%d, want 800x600", begin.Begin.Area.Width, begin.Begin.Area.Height)
	}

	sub := h.device.Submissions[len(h.device.Submissions)-1]
	if len(sub.Info.WaitSemaphores) != 1 || len(sub.Info.Signal) != 1 || sub.Info.Fence == 0 {
		t.Errorf("frame submit = %+v, want one wait, one signal and a fence", sub.Info)
	}
	if got := len(h.device.EventsOf(mock.EventPresent)); got != 1 {
		t.Errorf("presents = %d, want 1", got)
	}
}

func TestUniformSetFollowsFrameSlot(t *testing.T) {
	h := newHarness(t, 800, 600)
	h.populate(t)
	cam := testCamera()

	for frame := 0; frame < 4; frame++ {
		if err := h.renderer.DrawFrame(cam); err != nil {
			t.Fatalf("DrawFrame() #%d error = %v", frame, err)
		}
		want := h.renderer.frames[frame%MaxFramesInFlight].UniformSet
		for _, c := range h.device.LastSubmitted() {
			if c.Op == mock.OpBindDescriptorSets && len(c.Sets) == 2 && c.Sets[0] != want {
				t.Errorf("frame %d bound uniform set %d, want %d", frame, c.Sets[0], want)
			}
		}
	}
	h.checkMisuse(t)
}

func TestFenceWaitedBeforeReset(t *testing.T) {
	h := newHarness(t, 800, 600)
	h.populate(t)
	cam := testCamera()
	for i := 0; i < 5; i++ {
		if err := h.renderer.DrawFrame(cam); err != nil {
			t.Fatalf("DrawFrame() #%d error = %v", i, err)
		}
	}
	h.checkMisuse(t)

	slotOf := map[gpu.CommandBuffer]gpu.Fence{}
	for _, s := range h.renderer.frames {
		slotOf[s.CommandBuffer] = s.Fence
	}
	waited := map[gpu.Fence]bool{}
	pending := map[gpu.Fence]int{}
	for _, ev := range h.device.Events {
		switch ev.Kind {
		case mock.EventWaitFence:
			waited[ev.Fence] = true
			pending[ev.Fence] = 0
		case mock.EventResetFence:
			if !waited[ev.Fence] {
				t.Errorf("fence %d reset before it was waited on", ev.Fence)
			}
			waited[ev.Fence] = false
		case mock.EventResetCommandBuffer:
			fence, ok := slotOf[ev.CommandBuffer]
			if ok && pending[fence] > 0 {
				t.Errorf("command buffer %d reset while its slot has a pending submit", ev.CommandBuffer)
			}
		case mock.EventSubmit:
			if ev.Fence != 0 {
				pending[ev.Fence]++
				if pending[ev.Fence] > 1 {
					t.Errorf("fence %d guards %d pending submits", ev.Fence, pending[ev.Fence])
				}
			}
		}
	}
}

func TestResizeRebuildsAttachments(t *testing.T) {
	h := newHarness(t, 800, 600)
	h.populate(t)
	cam := testCamera()
	if err := h.renderer.DrawFrame(cam); err != nil {
		t.Fatalf("DrawFrame() error = %v", err)
	}
	oldViews := append([]gpu.ImageView(nil), h.renderer.Swapchain().Views...)
	oldViews = append(oldViews, h.renderer.Swapchain().Color.View, h.renderer.Swapchain().Depth.View)
	oldGeneration := h.renderer.Swapchain().Generation

	h.inst.SetSurfaceExtent(400, 300)
	h.window.width, h.window.height = 400, 300
	h.renderer.Resize(400, 300)
	if err := h.renderer.DrawFrame(cam); err != nil {
		t.Fatalf("DrawFrame() after resize error = %v", err)
	}
	h.checkMisuse(t)

	sc := h.renderer.Swapchain()
	if sc.Extent.Width != 400 || sc.Extent.Height != 300 {
		t.Fatalf("extent = %dx%d, want 400x300", sc.Extent.Width, sc.Extent.Height)
	}
	if sc.Generation != oldGeneration+1 {
		t.Errorf("generation = %d, want %d", sc.Generation, oldGeneration+1)
	}
	for _, v := range oldViews {
		if h.device.IsAliveImageView(v) {
			t.Errorf("view %d from the old extent is still alive", v)
		}
	}
	checkSwapchainAtomic(t, h.device, sc)

	old := map[gpu.ImageView]bool{}
	for _, v := range oldViews {
		old[v] = true
	}
	for _, s := range h.renderer.frames {
		for binding, w := range h.device.DescriptorWrites(s.InputSet) {
			if old[w.ImageView] {
				t.Errorf("input set %d binding %d still references old view %d", s.InputSet, binding, w.ImageView)
			}
		}
	}
	begin := h.device.LastSubmitted()[0]
	if begin.Begin.Area.Width != 400 || begin.Begin.Area.Height != 300 {
		t.Errorf("render area = %dx%d, want 400x300", begin.Begin.Area.Width, begin.Begin.Area.Height)
	}
}

func TestRecreateRewritesEveryInputSet(t *testing.T) {
	h := newHarness(t, 800, 600)
	h.populate(t)
	cam := testCamera()
	// Two frames so both slots have written their input sets once.
	for i := 0; i < MaxFramesInFlight; i++ {
		if err := h.renderer.DrawFrame(cam); err != nil {
			t.Fatalf("DrawFrame() error = %v", err)
		}
	}
	oldColor := h.renderer.Swapchain().Color.View

	h.inst.SetSurfaceExtent(400, 300)
	h.window.width, h.window.height = 400, 300
	h.renderer.Resize(400, 300)
	if err := h.renderer.DrawFrame(cam); err != nil {
		t.Fatalf("DrawFrame() after resize error = %v", err)
	}

	sc := h.renderer.Swapchain()
	idle := h.renderer.frames[h.renderer.currentFrame]
	w, ok := h.device.DescriptorWrites(idle.InputSet)[0]
	if !ok {
		t.Fatalf("idle slot input set %d has no binding 0 write", idle.InputSet)
	}
	if w.ImageView == oldColor || w.ImageView != sc.Color.View {
		t.Errorf("idle slot input set -> view %d, want current color view %d (old %d)", w.ImageView, sc.Color.View, oldColor)
	}
	if !h.device.IsAliveImageView(w.ImageView) {
		t.Errorf("idle slot input set references destroyed view %d", w.ImageView)
	}
}

func checkSwapchainAtomic(t *testing.T, dev *mock.Device, sc *Swapchain) {
	t.Helper()
	if len(sc.Framebuffers) != len(sc.Images) {
		t.Fatalf("framebuffers = %d, images = %d", len(sc.Framebuffers), len(sc.Images))
	}
	current := map[gpu.ImageView]bool{sc.Color.View: true, sc.Depth.View: true}
	for _, v := range sc.Views {
		current[v] = true
	}
	for _, fb := range sc.Framebuffers {
		desc, ok := dev.FramebufferDesc(fb)
		if !ok {
			t.Fatalf("framebuffer %d is not alive", fb)
		}
		if desc.Width != sc.Extent.Width || desc.Height != sc.Extent.Height {
			t.Errorf("framebuffer %d is %dx%d, swapchain is %dx%d", fb, desc.Width, desc.Height, sc.Extent.Width, sc.Extent.Height)
		}
		for _, v := range desc.Attachments {
			if !current[v] || !dev.IsAliveImageView(v) {
				t.Errorf("framebuffer %d references stale view %d", fb, v)
			}
		}
	}
}

func TestOutOfDateAcquireDropsFrame(t *testing.T) {
	h := newHarness(t, 800, 600)
	h.populate(t)
	generation := h.renderer.Swapchain().Generation

	h.device.AcquireResults = []vk.Result{vk.ErrorOutOfDate}
	if err := h.renderer.DrawFrame(testCamera()); err != nil {
		t.Fatalf("DrawFrame() error = %v", err)
	}
	// Uploads submit without a fence; only frame submits carry one.
	for _, s := range h.device.Submissions {
		if s.Info.Fence != 0 {
			t.Errorf("frame was submitted after an out-of-date acquire")
		}
	}
	if got := h.renderer.Swapchain().Generation; got != generation+1 {
		t.Errorf("generation = %d, want %d", got, generation+1)
	}

	if err := h.renderer.DrawFrame(testCamera()); err != nil {
		t.Fatalf("DrawFrame() after recreation error = %v", err)
	}
	h.checkMisuse(t)
}

func TestSuboptimalPresentRecreates(t *testing.T) {
	tests := []struct {
		name    string
		acquire []vk.Result
		present []vk.Result
	}{
		{name: "suboptimal acquire", acquire: []vk.Result{vk.Suboptimal}},
		{name: "suboptimal present", present: []vk.Result{vk.Suboptimal}},
		{name: "out of date present", present: []vk.Result{vk.ErrorOutOfDate}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, 800, 600)
			h.populate(t)
			generation := h.renderer.Swapchain().Generation
			h.device.AcquireResults = tt.acquire
			h.device.PresentResults = tt.present

			if err := h.renderer.DrawFrame(testCamera()); err != nil {
				t.Fatalf("DrawFrame() error = %v", err)
			}
			if got := h.renderer.Swapchain().Generation; got != generation+1 {
				t.Errorf("generation = %d, want %d", got, generation+1)
			}
			if got := len(h.device.EventsOf(mock.EventPresent)); got != 1 {
				t.Errorf("presents = %d, want 1", got)
			}
			h.checkMisuse(t)
		})
	}
}

func TestFatalAcquireErrorPropagates(t *testing.T) {
	h := newHarness(t, 800, 600)
	h.device.AcquireResults = []vk.Result{vk.ErrorDeviceLost}
	err := h.renderer.DrawFrame(testCamera())
	if err == nil {
		t.Fatal("DrawFrame() error = nil, want device lost")
	}
	if gpu.ResultOf(err) != vk.ErrorDeviceLost {
		t.Errorf("result = %v, want ErrorDeviceLost", gpu.ResultOf(err))
	}
}

func TestMinimizedSurfaceDefersRecreation(t *testing.T) {
	h := newHarness(t, 800, 600)
	h.populate(t)

	h.inst.SetSurfaceExtent(0, 0)
	h.renderer.Resize(0, 0)
	if err := h.renderer.DrawFrame(testCamera()); err != nil {
		t.Fatalf("DrawFrame() while minimized error = %v", err)
	}
	if !h.renderer.booting {
		t.Fatal("renderer is not booting with a zero-area surface")
	}

	h.inst.SetSurfaceExtent(640, 480)
	h.window.width, h.window.height = 640, 480
	if err := h.renderer.DrawFrame(testCamera()); err != nil {
		t.Fatalf("DrawFrame() after restore error = %v", err)
	}
	if h.renderer.booting {
		t.Fatal("renderer still booting after the surface regained area")
	}
	if h.window.waits == 0 {
		t.Error("WaitEvents was never called while booting")
	}
	if err := h.renderer.DrawFrame(testCamera()); err != nil {
		t.Fatalf("DrawFrame() error = %v", err)
	}
	if ext := h.renderer.Swapchain().Extent; ext.Width != 640 || ext.Height != 480 {
		t.Errorf("extent = %dx%d, want 640x480", ext.Width, ext.Height)
	}
	h.checkMisuse(t)
}

func TestOverlayRecordsInGeometrySubpass(t *testing.T) {
	h := newHarness(t, 800, 600)
	h.populate(t)
	overlay := &recordingOverlay{}
	h.renderer.SetOverlay(overlay)

	if err := h.renderer.DrawFrame(testCamera()); err != nil {
		t.Fatalf("DrawFrame() error = %v", err)
	}
	if overlay.calls != 1 {
		t.Fatalf("overlay calls = %d, want 1", overlay.calls)
	}
	if overlay.subpass != 0 {
		t.Errorf("overlay subpass = %d, want 0", overlay.subpass)
	}
	if overlay.lastCmds != h.renderer.frames[0].CommandBuffer {
		t.Errorf("overlay got command buffer %d, want %d", overlay.lastCmds, h.renderer.frames[0].CommandBuffer)
	}
}

func TestShutdownReleasesEverything(t *testing.T) {
	h := newHarness(t, 800, 600)
	h.populate(t)
	for i := 0; i < 3; i++ {
		if err := h.renderer.DrawFrame(testCamera()); err != nil {
			t.Fatalf("DrawFrame() error = %v", err)
		}
	}
	if err := h.renderer.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	h.checkMisuse(t)
	if live := h.device.Live(); live != 0 {
		t.Errorf("live handles after shutdown = %d, want 0", live)
	}
	idle := h.device.EventsOf(mock.EventDeviceWaitIdle)
	if len(idle) == 0 {
		t.Fatal("shutdown did not wait for device idle")
	}
	if !h.device.Destroyed() || !h.inst.Destroyed() {
		t.Error("device or instance not destroyed")
	}
}

func TestReloadShadersReplacesPipelines(t *testing.T) {
	h := newHarness(t, 800, 600)
	before := h.renderer.pipelines.Get(metadata.PipelineGeometry).Handle
	post := h.renderer.pipelines.Get(metadata.PipelinePostProcess).Handle

	if err := h.renderer.ReloadShaders(context.Background(), shader.ProgramGeometry); err != nil {
		t.Fatalf("ReloadShaders() error = %v", err)
	}
	after := h.renderer.pipelines.Get(metadata.PipelineGeometry).Handle
	if after == before {
		t.Error("geometry pipeline was not rebuilt")
	}
	if _, ok := h.device.PipelineDesc(before); ok {
		t.Error("old geometry pipeline is still alive")
	}
	if h.renderer.pipelines.Get(metadata.PipelinePostProcess).Handle != post {
		t.Error("post-process pipeline changed on a geometry-only reload")
	}
	h.checkMisuse(t)
}

func TestFailedReloadKeepsEveryPipeline(t *testing.T) {
	h := newHarness(t, 800, 600)
	geometry := h.renderer.pipelines.Get(metadata.PipelineGeometry).Handle
	post := h.renderer.pipelines.Get(metadata.PipelinePostProcess).Handle

	h.device.FailPipelines = map[string]bool{metadata.PipelinePostProcess.String(): true}
	if err := h.renderer.ReloadShaders(context.Background()); err == nil {
		t.Fatal("ReloadShaders() succeeded with a failing post-process pipeline")
	}
	if got := h.renderer.pipelines.Get(metadata.PipelineGeometry).Handle; got != geometry {
		t.Errorf("geometry pipeline = %d, want the original %d", got, geometry)
	}
	if got := h.renderer.pipelines.Get(metadata.PipelinePostProcess).Handle; got != post {
		t.Errorf("post-process pipeline = %d, want the original %d", got, post)
	}
	for _, p := range []gpu.Pipeline{geometry, post} {
		if _, ok := h.device.PipelineDesc(p); !ok {
			t.Errorf("pipeline %d was destroyed by a failed reload", p)
		}
	}

	h.device.FailPipelines = nil
	if err := h.renderer.DrawFrame(testCamera()); err != nil {
		t.Fatalf("DrawFrame() after failed reload error = %v", err)
	}
	if err := h.renderer.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if live := h.device.Live(); live != 0 {
		t.Errorf("live handles after shutdown = %d, want 0", live)
	}
	h.checkMisuse(t)
}
