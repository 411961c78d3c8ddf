package platform

import (
	"runtime"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/lumen/engine/core"
)

func init() {
	// GLFW event handling must run on the main OS thread
	runtime.LockOSThread()
}

type WindowConfig struct {
	Title     string
	X, Y      uint32
	Width     uint32
	Height    uint32
	Resizable bool
}

// Window is the glfw window plus the cursor state the camera controller reads.
type Window struct {
	handle *glfw.Window
	input  *core.Input
	events *core.EventBus

	width, height uint32

	lastX, lastY float64
	resetCursor  bool
	captured     bool
}

// Startup initializes glfw and opens a window without a client API, ready for
// a Vulkan surface.
func Startup(cfg WindowConfig, input *core.Input, events *core.EventBus) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "initializing glfw")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw reports no Vulkan loader")
	}

	glfw.WindowHint(glfw.Visible, glfw.False)
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // Required for Vulkan.
	resizable := glfw.False
	if cfg.Resizable {
		resizable = glfw.True
	}
	glfw.WindowHint(glfw.Resizable, resizable)

	handle, err := glfw.CreateWindow(int(cfg.Width), int(cfg.Height), cfg.Title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "creating window")
	}
	w := &Window{
		handle:      handle,
		input:       input,
		events:      events,
		resetCursor: true,
	}
	fw, fh := handle.GetFramebufferSize()
	w.width, w.height = uint32(fw), uint32(fh)

	handle.SetKeyCallback(w.keyCallback)
	handle.SetMouseButtonCallback(w.mouseButtonCallback)
	handle.SetCursorPosCallback(w.cursorPosCallback)
	handle.SetFramebufferSizeCallback(w.framebufferSizeCallback)
	handle.SetPos(int(cfg.X), int(cfg.Y))
	handle.Show()

	core.LogInfo("Window %q opened at %dx%d.", cfg.Title, w.width, w.height)
	return w, nil
}

func (w *Window) Shutdown() {
	if w.handle != nil {
		w.handle.Destroy()
		w.handle = nil
	}
	glfw.Terminate()
}

// Handle exposes the native window for surface creation.
func (w *Window) Handle() *glfw.Window {
	return w.handle
}

func (w *Window) FramebufferSize() (uint32, uint32) {
	fw, fh := w.handle.GetFramebufferSize()
	return uint32(fw), uint32(fh)
}

func (w *Window) WaitEvents() {
	glfw.WaitEvents()
}

func (w *Window) PumpMessages() {
	glfw.PollEvents()
}

func (w *Window) ShouldClose() bool {
	return w.handle.ShouldClose()
}

func (w *Window) RequestClose() {
	w.handle.SetShouldClose(true)
}

// CaptureCursor hides and locks the cursor for mouse-look. The next movement
// after a capture change produces no delta.
func (w *Window) CaptureCursor(capture bool) {
	if w.captured == capture {
		return
	}
	w.captured = capture
	mode := glfw.CursorNormal
	if capture {
		mode = glfw.CursorDisabled
	}
	w.handle.SetInputMode(glfw.CursorMode, mode)
	w.resetCursor = true
}

func (w *Window) CursorCaptured() bool {
	return w.captured
}

// LastCursor is the most recent cursor position reported by the platform.
func (w *Window) LastCursor() (float64, float64) {
	return w.lastX, w.lastY
}

func (w *Window) keyCallback(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
	code, ok := keyCode(key)
	if !ok || action == glfw.Repeat {
		return
	}
	w.input.ProcessKey(code, action == glfw.Press)
}

func (w *Window) mouseButtonCallback(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
	b, ok := mouseButton(button)
	if !ok {
		return
	}
	w.input.ProcessButton(b, action == glfw.Press)
}

func (w *Window) cursorPosCallback(_ *glfw.Window, x, y float64) {
	if w.resetCursor {
		w.resetCursor = false
		w.lastX, w.lastY = x, y
		w.input.ResetMouse(x, y)
		return
	}
	w.lastX, w.lastY = x, y
	w.input.ProcessMouseMove(x, y)
}

func (w *Window) framebufferSizeCallback(_ *glfw.Window, width, height int) {
	w.width, w.height = uint32(width), uint32(height)
	if w.events != nil {
		w.events.Fire(core.EVENT_CODE_RESIZED, w, core.EventContext{Width: w.width, Height: w.height})
	}
}

var keys = map[glfw.Key]core.KeyCode{
	glfw.KeyEnter:     core.KEY_ENTER,
	glfw.KeyTab:       core.KEY_TAB,
	glfw.KeyLeftShift: core.KEY_SHIFT,
	glfw.KeyEscape:    core.KEY_ESCAPE,
	glfw.KeySpace:     core.KEY_SPACE,
	glfw.KeyLeft:      core.KEY_LEFT,
	glfw.KeyUp:        core.KEY_UP,
	glfw.KeyRight:     core.KEY_RIGHT,
	glfw.KeyDown:      core.KEY_DOWN,
	glfw.KeyA:         core.KEY_A,
	glfw.KeyD:         core.KEY_D,
	glfw.KeyE:         core.KEY_E,
	glfw.KeyQ:         core.KEY_Q,
	glfw.KeyS:         core.KEY_S,
	glfw.KeyW:         core.KEY_W,
}

func keyCode(key glfw.Key) (core.KeyCode, bool) {
	code, ok := keys[key]
	return code, ok
}

func mouseButton(button glfw.MouseButton) (core.Button, bool) {
	switch button {
	case glfw.MouseButtonLeft:
		return core.BUTTON_LEFT, true
	case glfw.MouseButtonRight:
		return core.BUTTON_RIGHT, true
	case glfw.MouseButtonMiddle:
		return core.BUTTON_MIDDLE, true
	}
	return 0, false
}
