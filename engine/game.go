package engine

import (
	"github.com/spaghettifunk/lumen/engine/config"
)

// Game is the set of hooks the engine calls. Only FnInitialize and FnUpdate
// are required.
type Game struct {
	Name         string
	State        interface{}
	FnBoot       Boot
	FnInitialize Initialize
	FnUpdate     Update
	FnOnResize   OnResize
	FnShutdown   Shutdown
}

// Boot may adjust the configuration before any subsystem starts.
type Boot func(cfg *config.Config) error

// Initialize runs once the renderer is up; it is where scene content is created.
type Initialize func(e *Engine) error
type Update func(e *Engine, deltaTime float64) error
type OnResize func(width uint32, height uint32) error
type Shutdown func() error
