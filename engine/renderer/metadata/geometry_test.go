package metadata

import (
	"encoding/binary"
	stdmath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
)

func TestVertexBytesLayout(t *testing.T) {
	v := Vertex{
		Position: mgl32.Vec3{1, 2, 3},
		Color:    mgl32.Vec3{4, 5, 6},
		UV:       mgl32.Vec2{7, 8},
	}
	b := VertexBytes([]Vertex{v, v})
	if len(b) != 2*int(VertexStride) {
		t.Fatalf("len = %d, want %d", len(b), 2*VertexStride)
	}
	for _, a := range VertexAttributes() {
		got := stdmath.Float32frombits(binary.LittleEndian.Uint32(b[VertexStride+a.Offset:]))
		want := float32(1 + 3*a.Location)
		if got != want {
			t.Errorf("location %d starts with %v, want %v", a.Location, got, want)
		}
	}
}

func TestTextureDataValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    TextureData
		wantErr bool
	}{
		{"rgba 4x4", TextureData{Width: 4, Height: 4, Format: vk.FormatR8g8b8a8Unorm, Pixels: make([]byte, 64)}, false},
		{"short payload", TextureData{Width: 4, Height: 4, Format: vk.FormatR8g8b8a8Unorm, Pixels: make([]byte, 63)}, true},
		{"zero width", TextureData{Width: 0, Height: 4, Format: vk.FormatR8g8b8a8Unorm}, true},
		{"three channel", TextureData{Width: 1, Height: 1, Format: vk.FormatR8g8b8Unorm, Pixels: make([]byte, 3)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCameraUniformSize(t *testing.T) {
	u := CameraUniform{View: mgl32.Ident4(), Proj: mgl32.Ident4()}
	if got := uint64(len(u.Bytes())); got != CameraUniformSize {
		t.Errorf("uniform is %d bytes, want %d", got, CameraUniformSize)
	}
	if got := uint32(len(PushConstants{Model: mgl32.Ident4()}.Bytes())); got != PushConstantSize {
		t.Errorf("push constants are %d bytes, want %d", got, PushConstantSize)
	}
}
