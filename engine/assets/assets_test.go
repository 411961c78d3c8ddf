package assets

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
)

const quadOBJ = `o quad
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

func TestDecodeOBJTriangulatesAndDedupes(t *testing.T) {
	mesh, err := DecodeOBJ(strings.NewReader(quadOBJ), strings.NewReader(""))
	if err != nil {
		t.Fatalf("DecodeOBJ: %v", err)
	}
	if len(mesh.Vertices) != 4 {
		t.Errorf("vertices = %d, want 4", len(mesh.Vertices))
	}
	want := []uint32{0, 1, 2, 0, 2, 3}
	if len(mesh.Indices) != len(want) {
		t.Fatalf("indices = %v, want %v", mesh.Indices, want)
	}
	for i := range want {
		if mesh.Indices[i] != want[i] {
			t.Fatalf("indices = %v, want %v", mesh.Indices, want)
		}
	}
	if uv := mesh.Vertices[0].UV; uv != (mgl32.Vec2{0, 1}) {
		t.Errorf("first uv = %v, want flipped (0, 1)", uv)
	}
}

func TestLoadMeshDefaultsToCube(t *testing.T) {
	mesh, err := LoadMesh("")
	if err != nil {
		t.Fatal(err)
	}
	if len(mesh.Vertices) != 8 || len(mesh.Indices) != 36 {
		t.Errorf("cube has %d vertices and %d indices", len(mesh.Vertices), len(mesh.Indices))
	}
	for _, i := range mesh.Indices {
		if int(i) >= len(mesh.Vertices) {
			t.Fatalf("index %d out of range", i)
		}
	}
	if _, err := LoadMesh("model.fbx"); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
}

func TestDecodeImage(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	src.Set(2, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, src); err != nil {
		t.Fatal(err)
	}

	tex, err := DecodeImage(&buf)
	if err != nil {
		t.Fatalf("DecodeImage: %v", err)
	}
	if tex.Width != 3 || tex.Height != 2 || tex.Format != vk.FormatR8g8b8a8Srgb {
		t.Fatalf("texture = %dx%d format %d", tex.Width, tex.Height, tex.Format)
	}
	if err := tex.Validate(); err != nil {
		t.Fatal(err)
	}
	last := tex.Pixels[len(tex.Pixels)-4:]
	if !bytes.Equal(last, []byte{10, 20, 30, 255}) {
		t.Errorf("last pixel = %v", last)
	}
}

func TestDecodeImageRejectsGarbage(t *testing.T) {
	if _, err := DecodeImage(strings.NewReader("not an image")); err == nil {
		t.Error("expected a decode error")
	}
}

func TestLoadTexture(t *testing.T) {
	tex, err := LoadTexture("")
	if err != nil {
		t.Fatal(err)
	}
	if err := tex.Validate(); err != nil {
		t.Errorf("checkerboard: %v", err)
	}

	path := filepath.Join(t.TempDir(), "one.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 4, 4))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	if tex, err = LoadTexture(path); err != nil || tex.Width != 4 {
		t.Errorf("LoadTexture = %dx%d, %v", tex.Width, tex.Height, err)
	}
}

func TestCheckerboardCells(t *testing.T) {
	tex := Checkerboard(4, 2)
	at := func(x, y int) uint8 { return tex.Pixels[(y*4+x)*4] }
	if at(0, 0) == at(2, 0) {
		t.Error("adjacent cells share a color")
	}
	if at(0, 0) != at(1, 1) {
		t.Error("pixels inside one cell differ")
	}
}
