package metadata

import (
	"encoding/binary"
	stdmath "math"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

/** @brief The size in bytes of one interleaved vertex. */
const VertexStride uint32 = 32

/**
 * @brief A single interleaved vertex as the geometry pipeline consumes it:
 * position at location 0, color at location 1, texture coordinate at location 2.
 */
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	UV       mgl32.Vec2
}

/**
 * @brief CPU-side geometry ready for upload. Immutable once handed to the
 * renderer; uploading different data means creating a new mesh.
 */
type MeshData struct {
	/** @brief The vertices of the mesh. */
	Vertices []Vertex
	/** @brief The indices into Vertices, three per triangle. */
	Indices []uint32
	/** @brief The name used for logging. */
	Name string
}

// VertexBindings describes the single interleaved vertex stream.
func VertexBindings() []gpu.VertexBinding {
	return []gpu.VertexBinding{{Binding: 0, Stride: VertexStride}}
}

func VertexAttributes() []gpu.VertexAttribute {
	return []gpu.VertexAttribute{
		{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
		{Location: 2, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 24},
	}
}

// VertexBytes packs vertices little-endian in attribute order.
func VertexBytes(vertices []Vertex) []byte {
	out := make([]byte, 0, len(vertices)*int(VertexStride))
	for _, v := range vertices {
		for _, f := range v.Position {
			out = appendFloat(out, f)
		}
		for _, f := range v.Color {
			out = appendFloat(out, f)
		}
		for _, f := range v.UV {
			out = appendFloat(out, f)
		}
	}
	return out
}

func IndexBytes(indices []uint32) []byte {
	out := make([]byte, 0, len(indices)*4)
	for _, i := range indices {
		out = binary.LittleEndian.AppendUint32(out, i)
	}
	return out
}

func appendFloat(dst []byte, f float32) []byte {
	return binary.LittleEndian.AppendUint32(dst, stdmath.Float32bits(f))
}
