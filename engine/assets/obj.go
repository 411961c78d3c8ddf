package assets

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"

	"github.com/spaghettifunk/lumen/engine/renderer/metadata"
)

// LoadOBJ reads path and the material library next to it, if any.
func LoadOBJ(path string) (metadata.MeshData, error) {
	meshFile, err := os.Open(path)
	if err != nil {
		return metadata.MeshData{}, errors.Wrapf(err, "opening mesh %s", path)
	}
	defer meshFile.Close()

	var mtl io.Reader = strings.NewReader("")
	if matFile, err := os.Open(strings.TrimSuffix(path, filepath.Ext(path)) + ".mtl"); err == nil {
		defer matFile.Close()
		mtl = matFile
	}

	mesh, err := DecodeOBJ(meshFile, mtl)
	if err != nil {
		return metadata.MeshData{}, errors.Wrapf(err, "mesh %s", path)
	}
	mesh.Name = filepath.Base(path)
	return mesh, nil
}

// DecodeOBJ triangulates every face as a fan and merges vertices that are
// equal by value.
func DecodeOBJ(objReader, mtlReader io.Reader) (metadata.MeshData, error) {
	decoder, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return metadata.MeshData{}, errors.Wrap(err, "decoding obj")
	}

	var mesh metadata.MeshData
	unique := make(map[metadata.Vertex]uint32)
	add := func(face obj.Face, corner int) error {
		v, err := faceVertex(decoder, face, corner)
		if err != nil {
			return err
		}
		index, ok := unique[v]
		if !ok {
			index = uint32(len(mesh.Vertices))
			mesh.Vertices = append(mesh.Vertices, v)
			unique[v] = index
		}
		mesh.Indices = append(mesh.Indices, index)
		return nil
	}

	for _, object := range decoder.Objects {
		for _, face := range object.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range [3]int{0, i - 1, i} {
					if err := add(face, corner); err != nil {
						return metadata.MeshData{}, err
					}
				}
			}
		}
	}
	if len(mesh.Indices) == 0 {
		return metadata.MeshData{}, errors.New("obj has no faces")
	}
	return mesh, nil
}

func faceVertex(decoder *obj.Decoder, face obj.Face, corner int) (metadata.Vertex, error) {
	vi := face.Vertices[corner]
	if vi < 0 || vi*3+2 >= len(decoder.Vertices) {
		return metadata.Vertex{}, errors.Newf("vertex index %d out of range", vi)
	}
	v := metadata.Vertex{
		Position: mgl32.Vec3{
			decoder.Vertices[vi*3],
			decoder.Vertices[vi*3+1],
			decoder.Vertices[vi*3+2],
		},
		Color: mgl32.Vec3{1, 1, 1},
	}
	if corner < len(face.Uvs) {
		if ui := face.Uvs[corner]; ui >= 0 && ui*2+1 < len(decoder.Uvs) {
			// OBJ puts the texture origin bottom-left.
			v.UV = mgl32.Vec2{decoder.Uvs[ui*2], 1.0 - decoder.Uvs[ui*2+1]}
		}
	}
	return v, nil
}
