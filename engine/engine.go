package engine

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/config"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/platform"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/shader"
	"github.com/spaghettifunk/lumen/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently booting up
	EngineStageBooting
	// Engine completed boot process and is ready to be initialized
	EngineStageBootComplete
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

type Engine struct {
	currentStage Stage
	game         *Game
	cfg          *config.Config

	events   *core.EventBus
	input    *core.Input
	window   *platform.Window
	instance *vulkan.Instance
	renderer *renderer.Renderer
	library  *shader.Library
	watcher  *shader.Watcher

	camera     *renderer.Camera
	controller *CameraController

	clock       *core.Clock
	metrics     *core.Metrics
	lastTime    float64
	isRunning   bool
	isSuspended bool
}

func New(g *Game, cfg *config.Config) (*Engine, error) {
	if g.FnInitialize == nil || g.FnUpdate == nil {
		return nil, errors.New("game must provide initialize and update hooks")
	}
	events := core.NewEventBus()
	return &Engine{
		currentStage: EngineStageUninitialized,
		game:         g,
		cfg:          cfg,
		events:       events,
		input:        core.NewInput(events),
		clock:        core.NewClock(),
		metrics:      core.NewMetrics(),
	}, nil
}

// Initialize boots the game, opens the window and brings up the renderer.
// On error everything created so far is released.
func (e *Engine) Initialize(ctx context.Context) error {
	e.currentStage = EngineStageBooting
	if e.game.FnBoot != nil {
		if err := e.game.FnBoot(e.cfg); err != nil {
			return errors.Wrap(err, "booting game")
		}
	}
	if err := e.cfg.Validate(); err != nil {
		return errors.Wrap(err, "configuration")
	}
	core.SetLogLevel(e.cfg.Log.Level)
	e.currentStage = EngineStageBootComplete

	e.currentStage = EngineStageInitializing
	if err := e.initialize(ctx); err != nil {
		return errors.CombineErrors(err, e.release())
	}

	e.events.Register(core.EVENT_CODE_APPLICATION_QUIT, e, e.onEvent)
	e.events.Register(core.EVENT_CODE_KEY_PRESSED, e, e.onKey)
	e.events.Register(core.EVENT_CODE_BUTTON_PRESSED, e, e.onButton)
	e.events.Register(core.EVENT_CODE_RESIZED, e, e.onResized)

	if err := e.game.FnInitialize(e); err != nil {
		return errors.CombineErrors(errors.Wrap(err, "initializing game"), e.release())
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) initialize(ctx context.Context) error {
	var err error
	if e.window, err = platform.Startup(windowConfig(e.cfg.Window), e.input, e.events); err != nil {
		return err
	}
	if err := vulkan.Load(); err != nil {
		return err
	}
	e.instance, err = vulkan.NewInstance(vulkan.InstanceDescriptor{
		AppName:    e.game.Name,
		Validation: e.cfg.Renderer.Validation,
		Window:     e.window.Handle(),
	})
	if err != nil {
		return err
	}

	if e.library, err = NewShaderLibrary(e.cfg.Shaders); err != nil {
		return err
	}
	if e.renderer, err = renderer.New(ctx, e.instance, e.window, e.library, renderer.OptionsFromConfig(e.cfg)); err != nil {
		return err
	}
	if e.cfg.Shaders.Watch && e.cfg.Shaders.Dir != "" {
		if e.watcher, err = shader.NewWatcher(e.library, e.cfg.Shaders.Dir); err != nil {
			core.LogWarn("Shader hot reload disabled: %s", err)
			e.watcher = nil
		}
	}

	cam := e.cfg.Camera
	e.camera = renderer.NewCamera(cam.FovY, cam.Near, cam.Far)
	e.controller = NewCameraController(mgl32.Vec3{0, 3, 1}, cam.Sensitivity, cam.Speed)
	e.camera.Transform = e.controller.Transform()
	return nil
}

func (e *Engine) Run(ctx context.Context) error {
	if e.currentStage != EngineStageInitialized {
		return core.ErrNotInitialized
	}
	e.currentStage = EngineStageRunning
	e.isRunning = true

	e.clock.Start()
	e.clock.Update()
	e.lastTime = e.clock.Elapsed()

	for e.isRunning {
		if ctx.Err() != nil || e.window.ShouldClose() {
			break
		}
		e.window.PumpMessages()

		if e.isSuspended {
			e.window.WaitEvents()
			continue
		}
		e.reloadShaders(ctx)

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Elapsed()
		delta := currentTime - e.lastTime

		e.controller.Update(e.input, e.window.CursorCaptured(), delta)
		e.camera.Transform = e.controller.Transform()

		if err := e.game.FnUpdate(e, delta); err != nil {
			return errors.Wrap(err, "game update")
		}
		if err := e.renderer.DrawFrame(e.camera); err != nil {
			return errors.Wrap(err, "drawing frame")
		}

		e.clock.Update()
		if e.metrics.Update(e.clock.Elapsed() - currentTime) {
			core.LogDebug("%.0f fps, %.2f ms/frame, %d draws", e.metrics.FPS(), e.metrics.FrameTime(), e.renderer.LastDraws())
		}

		// Input state is copied last so this frame's deltas were visible to everything above.
		e.input.Update()
		e.lastTime = currentTime
	}
	e.isRunning = false
	return nil
}

// reloadShaders rebuilds the pipelines of programs whose sources changed. A
// failed compile is logged and the previous pipelines stay in use.
func (e *Engine) reloadShaders(ctx context.Context) {
	if e.watcher == nil {
		return
	}
	names := e.watcher.Drain()
	if len(names) == 0 {
		return
	}
	for _, name := range names {
		if err := e.library.Reload(name, e.cfg.Shaders.Dir); err != nil {
			core.LogError("Reloading shader %s: %s", name, err)
			return
		}
	}
	if err := e.renderer.ReloadShaders(ctx, names...); err != nil {
		core.LogError("Shader hot reload failed: %s", err)
		return
	}
	core.LogInfo("Reloaded shaders %v.", names)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false
	var err error
	if e.game.FnShutdown != nil {
		err = e.game.FnShutdown()
	}
	err = errors.CombineErrors(err, e.release())
	e.currentStage = EngineStageUninitialized
	return err
}

// release frees whatever initialize managed to create, in reverse order. The
// renderer goes first so the device is idle and gone before the surface and
// instance are destroyed.
func (e *Engine) release() error {
	var err error
	if e.renderer != nil {
		err = e.renderer.Shutdown()
		e.renderer = nil
	}
	if e.watcher != nil {
		e.watcher.Close()
		e.watcher = nil
	}
	if e.instance != nil {
		e.instance.Destroy()
		e.instance = nil
	}
	if e.window != nil {
		e.window.Shutdown()
		e.window = nil
	}
	return err
}

func (e *Engine) Config() *config.Config { return e.cfg }
func (e *Engine) Events() *core.EventBus { return e.events }
func (e *Engine) Input() *core.Input { return e.input }
func (e *Engine) Camera() *CameraController { return e.controller }
func (e *Engine) Renderer() *renderer.Renderer { return e.renderer }
func (e *Engine) Scene() *renderer.Scene { return e.renderer.Scene() }
func (e *Engine) Metrics() *core.Metrics { return e.metrics }

func (e *Engine) onEvent(code core.SystemEventCode, _ interface{}, _ core.EventContext) bool {
	if code == core.EVENT_CODE_APPLICATION_QUIT {
		core.LogInfo("EVENT_CODE_APPLICATION_QUIT received, shutting down.")
		e.isRunning = false
		return true
	}
	return false
}

func (e *Engine) onKey(_ core.SystemEventCode, _ interface{}, data core.EventContext) bool {
	if data.Key != core.KEY_ESCAPE {
		return false
	}
	if e.window.CursorCaptured() {
		e.window.CaptureCursor(false)
		return true
	}
	// NOTE: Technically firing an event to itself, but there may be other listeners.
	e.events.Fire(core.EVENT_CODE_APPLICATION_QUIT, e, core.EventContext{})
	return true
}

func (e *Engine) onButton(_ core.SystemEventCode, _ interface{}, data core.EventContext) bool {
	if data.Button != core.BUTTON_RIGHT {
		return false
	}
	e.window.CaptureCursor(!e.window.CursorCaptured())
	return true
}

func (e *Engine) onResized(_ core.SystemEventCode, _ interface{}, data core.EventContext) bool {
	if data.Width == 0 || data.Height == 0 {
		if !e.isSuspended {
			core.LogInfo("Window minimized, suspending application.")
		}
		e.isSuspended = true
		return true
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.renderer.Resize(data.Width, data.Height)
	if e.game.FnOnResize != nil {
		if err := e.game.FnOnResize(data.Width, data.Height); err != nil {
			core.LogError("Game resize hook: %s", err)
		}
	}
	return true
}
