package engine

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/core"
)

func TestCameraControllerPitchClamp(t *testing.T) {
	c := NewCameraController(mgl32.Vec3{}, 0.01, 1)
	c.Input(0, 1e6)
	if c.Pitch != maxPitch {
		t.Errorf("pitch = %v, want %v", c.Pitch, maxPitch)
	}
	c.Input(0, -1e6)
	if c.Pitch != -maxPitch {
		t.Errorf("pitch = %v, want %v", c.Pitch, -maxPitch)
	}
}

func TestCameraControllerMovementDirection(t *testing.T) {
	tests := []struct {
		name  string
		yaw   float32
		input mgl32.Vec2
		want  mgl32.Vec3
	}{
		{"forward", 0, mgl32.Vec2{0, 1}, mgl32.Vec3{0, -1, 0}},
		{"strafe right", 0, mgl32.Vec2{1, 0}, mgl32.Vec3{-1, 0, 0}},
		{"none", 0, mgl32.Vec2{}, mgl32.Vec3{}},
		{"forward after right turn", mgl32.DegToRad(-90), mgl32.Vec2{0, 1}, mgl32.Vec3{-1, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &CameraController{Yaw: tt.yaw}
			got := c.MovementDirection(tt.input)
			if !got.ApproxEqualThreshold(tt.want, 1e-5) {
				t.Errorf("MovementDirection(%v) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestCameraControllerMovementFollowsPitch(t *testing.T) {
	c := &CameraController{Pitch: mgl32.DegToRad(45)}
	got := c.MovementDirection(mgl32.Vec2{0, 1})
	view := c.Transform().Mat3().Mul3x1(mgl32.Vec3{0, -1, 0})
	if !got.ApproxEqualThreshold(view, 1e-5) {
		t.Errorf("forward = %v, want the view direction %v", got, view)
	}
	if got.Z() == 0 {
		t.Error("pitched forward movement stayed on the ground plane")
	}

	// Raw input magnitude is kept.
	if l := c.MovementDirection(mgl32.Vec2{2, 0}).Len(); l < 1.9999 || l > 2.0001 {
		t.Errorf("length = %v, want 2", l)
	}
}

func TestCameraControllerDiagonalStepIsUnit(t *testing.T) {
	in := core.NewInput(nil)
	in.ProcessKey(core.KEY_W, true)
	in.ProcessKey(core.KEY_D, true)
	c := NewCameraController(mgl32.Vec3{}, 0.01, 1)

	c.Update(in, false, 1)
	if l := c.Position.Len(); l < 0.9999 || l > 1.0001 {
		t.Errorf("diagonal step length = %v, want 1", l)
	}
}

func TestCameraControllerUpdate(t *testing.T) {
	in := core.NewInput(nil)
	in.ProcessKey(core.KEY_W, true)
	c := NewCameraController(mgl32.Vec3{}, 0.01, 2)

	c.Update(in, false, 0.5)
	if !c.Position.ApproxEqualThreshold(mgl32.Vec3{0, -1, 0}, 1e-5) {
		t.Errorf("position = %v, want (0, -1, 0)", c.Position)
	}

	// The transform looks along the same axis the controller moves.
	front := c.Transform().Mat3().Mul3x1(mgl32.Vec3{0, -1, 0})
	if !front.ApproxEqualThreshold(mgl32.Vec3{0, -1, 0}, 1e-5) {
		t.Errorf("front = %v", front)
	}
}

func TestCameraControllerIgnoresMouseWhenFree(t *testing.T) {
	in := core.NewInput(nil)
	in.ProcessMouseMove(50, 50)
	c := NewCameraController(mgl32.Vec3{}, 0.01, 1)

	c.Update(in, false, 0)
	if c.Yaw != 0 || c.Pitch != 0 {
		t.Errorf("rotation changed without capture: yaw %v pitch %v", c.Yaw, c.Pitch)
	}
	c.Update(in, true, 0)
	if c.Yaw == 0 {
		t.Error("captured mouse movement did not turn the camera")
	}
}
