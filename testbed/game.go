// Package testbed is a sample game: a spinning textured cube.
package testbed

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine"
	"github.com/spaghettifunk/lumen/engine/assets"
	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
	"github.com/spaghettifunk/lumen/engine/renderer"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	object    renderer.ObjectID
	transform *math.Transform
	spin      float32
}

func NewTestGame() *TestGame {
	tg := &TestGame{
		Game: &engine.Game{
			Name:  "Lumen Testbed",
			State: &gameState{spin: 0.5},
		},
	}
	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown
	return tg
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

func (g *TestGame) Initialize(e *engine.Engine) error {
	core.LogInfo("Initializing testbed...")
	cfg := e.Config().Assets

	mesh, err := assets.LoadMesh(cfg.Mesh)
	if err != nil {
		return err
	}
	texture, err := assets.LoadTexture(cfg.Texture)
	if err != nil {
		return err
	}

	scene := e.Scene()
	meshID, err := scene.CreateMesh(mesh)
	if err != nil {
		return err
	}
	textureID, err := scene.CreateTexture(texture)
	if err != nil {
		return err
	}
	materialID, err := scene.CreateMaterial(metadata.PipelineGeometry, textureID)
	if err != nil {
		return err
	}

	state := g.state()
	state.transform = math.TransformCreate()
	if state.object, err = scene.CreateObject(meshID, materialID, state.transform.Local()); err != nil {
		return err
	}
	return nil
}

func (g *TestGame) Update(e *engine.Engine, deltaTime float64) error {
	state := g.state()
	state.transform.Rotate(mgl32.QuatRotate(state.spin*float32(deltaTime), mgl32.Vec3{0, 0, 1}))
	e.Scene().SetTransform(state.object, state.transform.Local())
	return nil
}

func (g *TestGame) OnResize(width uint32, height uint32) error {
	core.LogDebug("Testbed resized to %dx%d.", width, height)
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("Shutting down testbed...")
	return nil
}
