package engine

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/math"
)

var maxPitch = mgl32.DegToRad(89.9)

// CameraController is a free-fly camera: yaw around Z, pitch around X, looking
// along -Y when both are zero.
type CameraController struct {
	Yaw      float32
	Pitch    float32
	Position mgl32.Vec3

	Sensitivity float32
	Speed       float32
}

func NewCameraController(position mgl32.Vec3, sensitivity, speed float32) *CameraController {
	return &CameraController{Position: position, Sensitivity: sensitivity, Speed: speed}
}

// Input applies a mouse movement in pixels.
func (c *CameraController) Input(dx, dy float32) {
	c.Yaw -= dx * c.Sensitivity
	c.Pitch = math.Clamp(c.Pitch+dy*c.Sensitivity, -maxPitch, maxPitch)
}

func (c *CameraController) Translate(delta mgl32.Vec3) {
	c.Position = c.Position.Add(delta)
}

// MovementDirection maps a strafe/forward input pair through the full camera
// rotation, so forward follows the view direction including pitch. The input
// magnitude is kept.
func (c *CameraController) MovementDirection(input mgl32.Vec2) mgl32.Vec3 {
	rot := mgl32.Rotate3DZ(c.Yaw).Mul3(mgl32.Rotate3DX(c.Pitch))
	return rot.Col(0).Mul(-input.X()).Add(rot.Col(1).Mul(-input.Y()))
}

func (c *CameraController) Transform() mgl32.Mat4 {
	return mgl32.Translate3D(c.Position.X(), c.Position.Y(), c.Position.Z()).
		Mul4(mgl32.HomogRotate3DZ(c.Yaw)).
		Mul4(mgl32.HomogRotate3DX(c.Pitch))
}

// Update reads WASD for planar movement, Q/E for height and the mouse delta
// while the cursor is captured.
func (c *CameraController) Update(input *core.Input, captured bool, delta float64) {
	if captured {
		dx, dy := input.MouseDelta()
		c.Input(float32(dx), float32(dy))
	}

	var move mgl32.Vec2
	if input.IsKeyDown(core.KEY_W) || input.IsKeyDown(core.KEY_UP) {
		move[1]++
	}
	if input.IsKeyDown(core.KEY_S) || input.IsKeyDown(core.KEY_DOWN) {
		move[1]--
	}
	if input.IsKeyDown(core.KEY_D) || input.IsKeyDown(core.KEY_RIGHT) {
		move[0]++
	}
	if input.IsKeyDown(core.KEY_A) || input.IsKeyDown(core.KEY_LEFT) {
		move[0]--
	}
	step := c.Speed * float32(delta)
	if input.IsKeyDown(core.KEY_SHIFT) {
		step *= 3
	}
	if move.Len() > 0 {
		move = move.Normalize()
	}
	dir := c.MovementDirection(move)
	if input.IsKeyDown(core.KEY_E) {
		dir[2]++
	}
	if input.IsKeyDown(core.KEY_Q) {
		dir[2]--
	}
	c.Translate(dir.Mul(step))
}
