package math

import (
	"encoding/binary"
	stdmath "math"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestMipLevels(t *testing.T) {
	tests := []struct {
		w, h uint32
		want uint32
	}{
		{1, 1, 1},
		{2, 1, 2},
		{4, 4, 3},
		{800, 600, 10},
		{1024, 1024, 11},
		{1025, 3, 11},
		{3, 4096, 13},
		{0, 0, 0},
	}
	for _, tt := range tests {
		got := MipLevels(tt.w, tt.h)
		if got != tt.want {
			t.Errorf("MipLevels(%d, %d) = %d, want %d", tt.w, tt.h, got, tt.want)
		}
		if tt.w|tt.h != 0 {
			ref := uint32(stdmath.Floor(stdmath.Log2(float64(max(tt.w, tt.h))))) + 1
			if got != ref {
				t.Errorf("MipLevels(%d, %d) = %d, floor(log2)+1 = %d", tt.w, tt.h, got, ref)
			}
		}
	}
}

func TestMipExtentFloorsAtOne(t *testing.T) {
	if got := MipExtent(5, 1); got != 2 {
		t.Errorf("MipExtent(5, 1) = %d, want 2", got)
	}
	if got := MipExtent(5, 3); got != 1 {
		t.Errorf("MipExtent(5, 3) = %d, want 1", got)
	}
}

func TestClamp(t *testing.T) {
	if Clamp(5, 0, 3) != 3 || Clamp(-1, 0, 3) != 0 || Clamp(2, 0, 3) != 2 {
		t.Error("integer clamp")
	}
	if Clamp(uint32(800), 1, 640) != 640 {
		t.Error("uint32 clamp")
	}
}

func TestMat4BytesColumnMajor(t *testing.T) {
	m := mgl32.Translate3D(1, 2, 3)
	b := Mat4Bytes(m)
	if len(b) != 64 {
		t.Fatalf("len = %d, want 64", len(b))
	}
	// Translation lives in elements 12..14 of a column-major matrix.
	for i, want := range []float32{1, 2, 3} {
		got := stdmath.Float32frombits(binary.LittleEndian.Uint32(b[(12+i)*4:]))
		if got != want {
			t.Errorf("element %d = %v, want %v", 12+i, got, want)
		}
	}
}

func TestTransformWorldAppliesParent(t *testing.T) {
	parent := TransformFromPosition(mgl32.Vec3{10, 0, 0})
	child := TransformFromPosition(mgl32.Vec3{0, 5, 0})
	child.Parent = parent

	p := child.World().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !p.ApproxEqual(mgl32.Vec4{10, 5, 0, 1}) {
		t.Errorf("world origin = %v, want (10, 5, 0)", p)
	}

	child.Translate(mgl32.Vec3{0, 1, 0})
	p = child.World().Mul4x1(mgl32.Vec4{0, 0, 0, 1})
	if !p.ApproxEqual(mgl32.Vec4{10, 6, 0, 1}) {
		t.Errorf("world origin after translate = %v, want (10, 6, 0)", p)
	}
}
