package math

import (
	"encoding/binary"
	stdmath "math"
	"math/bits"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/exp/constraints"
)

// Clamp returns the value `f` clamped to the range [low, high].
// It works for any numeric type (integers and floats).
func Clamp[T constraints.Ordered](f, low, high T) T {
	if f < low {
		return low
	}
	if f > high {
		return high
	}
	return f
}

// MipLevels returns floor(log2(max(width, height))) + 1, the length of a full
// mip chain down to 1x1. A zero-sized image has no levels.
func MipLevels(width, height uint32) uint32 {
	return uint32(bits.Len32(max(width, height)))
}

// MipExtent halves a dimension once per level, never going below 1.
func MipExtent(size, level uint32) uint32 {
	return max(size>>level, 1)
}

// Mat4Bytes packs a column-major matrix the way std140/push constants expect it.
func Mat4Bytes(m mgl32.Mat4) []byte {
	out := make([]byte, 0, 64)
	return AppendMat4(out, m)
}

func AppendMat4(dst []byte, m mgl32.Mat4) []byte {
	for _, f := range m {
		dst = binary.LittleEndian.AppendUint32(dst, stdmath.Float32bits(f))
	}
	return dst
}
