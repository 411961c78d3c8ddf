package vulkan

import (
	"unsafe"

	vk "github.com/goki/vulkan"
)

const endChar byte = '\x00'

// safeString null-terminates s for the C side.
func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != endChar {
		return s + string(endChar)
	}
	return s
}

func safeStrings(list []string) []string {
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// cString reads a fixed-size, null-padded name array.
func cString(arr []byte) string {
	return vk.ToString(arr)
}

// spirvWords reinterprets SPIR-V bytes as the uint32 words the driver expects.
// The length has already been validated as a multiple of four.
func spirvWords(code []byte) []uint32 {
	if len(code) == 0 {
		return nil
	}
	return unsafe.Slice((*uint32)(unsafe.Pointer(&code[0])), len(code)/4)
}

func boolean(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
