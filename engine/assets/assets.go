// Package assets turns files on disk into the plain mesh and texture values
// the renderer uploads.
package assets

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// LoadMesh reads an OBJ file. An empty path yields the unit cube.
func LoadMesh(path string) (metadata.MeshData, error) {
	if path == "" {
		return Cube(), nil
	}
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".obj" {
		return metadata.MeshData{}, errors.Newf("unsupported mesh format %q", ext)
	}
	mesh, err := LoadOBJ(path)
	if err != nil {
		return metadata.MeshData{}, err
	}
	core.LogInfo("Mesh %s loaded: %d vertices, %d indices.", path, len(mesh.Vertices), len(mesh.Indices))
	return mesh, nil
}

// LoadTexture decodes an image file. An empty path yields a checkerboard.
func LoadTexture(path string) (metadata.TextureData, error) {
	if path == "" {
		return Checkerboard(256, 8), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return metadata.TextureData{}, errors.Wrapf(err, "opening texture %s", path)
	}
	defer f.Close()

	tex, err := DecodeImage(f)
	if err != nil {
		return metadata.TextureData{}, errors.Wrapf(err, "texture %s", path)
	}
	core.LogInfo("Texture %s loaded: %dx%d.", path, tex.Width, tex.Height)
	return tex, nil
}
