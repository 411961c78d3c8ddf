package metadata

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/math"
)

/** @brief Bytes of the per-frame camera uniform block (two mat4). */
const CameraUniformSize uint64 = 128

/** @brief Bytes of the per-draw push constant block (one mat4). */
const PushConstantSize uint32 = 64

/**
 * @brief The per-frame uniform data of the geometry pass, written once per
 * frame into the frame slot's uniform buffer.
 */
type CameraUniform struct {
	View mgl32.Mat4
	Proj mgl32.Mat4
}

func (u CameraUniform) Bytes() []byte {
	out := make([]byte, 0, CameraUniformSize)
	out = math.AppendMat4(out, u.View)
	return math.AppendMat4(out, u.Proj)
}

/** @brief The per-draw data pushed before every indexed draw. */
type PushConstants struct {
	Model mgl32.Mat4
}

func (p PushConstants) Bytes() []byte {
	return math.Mat4Bytes(p.Model)
}
