package assets

import (
	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// Cube is a unit cube centered on the origin with one vertex per corner.
func Cube() metadata.MeshData {
	corners := [8]mgl32.Vec3{
		{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5},
		{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5},
	}
	uvs := [4]mgl32.Vec2{{0, 0}, {1, 0}, {1, 1}, {0, 1}}

	vertices := make([]metadata.Vertex, len(corners))
	for i, p := range corners {
		vertices[i] = metadata.Vertex{
			Position: p,
			Color:    p.Add(mgl32.Vec3{0.5, 0.5, 0.5}),
			UV:       uvs[i%4],
		}
	}
	return metadata.MeshData{
		Name:     "cube",
		Vertices: vertices,
		Indices: []uint32{
			0, 2, 1, 0, 3, 2, // bottom
			4, 5, 6, 4, 6, 7, // top
			0, 1, 5, 0, 5, 4,
			1, 2, 6, 1, 6, 5,
			2, 3, 7, 2, 7, 6,
			3, 0, 4, 3, 4, 7,
		},
	}
}

// Checkerboard is a size x size RGBA texture with cells x cells squares.
func Checkerboard(size, cells uint32) metadata.TextureData {
	cell := max(size/max(cells, 1), 1)
	pixels := make([]uint8, 0, size*size*4)
	for y := uint32(0); y < size; y++ {
		for x := uint32(0); x < size; x++ {
			c := uint8(40)
			if (x/cell+y/cell)%2 == 0 {
				c = 220
			}
			pixels = append(pixels, c, c, c, 255)
		}
	}
	return metadata.TextureData{
		Width:  size,
		Height: size,
		Format: vk.FormatR8g8b8a8Srgb,
		Pixels: pixels,
	}
}
