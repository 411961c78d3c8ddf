package renderer

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Camera looks along the (0,-1,0) axis of its transform with Z up.
type Camera struct {
	FovY      float32
	Near      float32
	Far       float32
	Transform mgl32.Mat4
}

func NewCamera(fovY, near, far float32) *Camera {
	return &Camera{FovY: fovY, Near: near, Far: far, Transform: mgl32.Ident4()}
}

func (c *Camera) Position() mgl32.Vec3 {
	return c.Transform.Col(3).Vec3()
}

func (c *Camera) View() mgl32.Mat4 {
	pos := c.Position()
	front := c.Transform.Mat3().Mul3x1(mgl32.Vec3{0, -1, 0}).Normalize()
	return mgl32.LookAtV(pos, pos.Add(front), mgl32.Vec3{0, 0, 1})
}

// Projection flips Y so that the right-handed view maps onto Vulkan's clip space.
func (c *Camera) Projection(aspect float32) mgl32.Mat4 {
	proj := mgl32.Perspective(mgl32.DegToRad(c.FovY), aspect, c.Near, c.Far)
	proj.Set(1, 1, -proj.At(1, 1))
	return proj
}

func (c *Camera) Uniform(aspect float32) metadata.CameraUniform {
	return metadata.CameraUniform{View: c.View(), Proj: c.Projection(aspect)}
}
