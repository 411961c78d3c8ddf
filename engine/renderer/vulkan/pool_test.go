package vulkan

import (
	"bytes"
	"encoding/binary"
	"os"
	"strings"
	"testing"

	"github.com/spaghettifunk/lumen/engine/core"
	"github.com/spaghettifunk/lumen/engine/renderer/gpu"
)

func TestObjectPoolSharedGenerator(t *testing.T) {
	var ids core.HandleGenerator
	buffers := newObjectPool[gpu.Buffer, string]("buffer", &ids)
	fences := newObjectPool[gpu.Fence, int]("fence", &ids)

	b := buffers.put("vertices")
	f := fences.put(7)
	if uint64(b) == uint64(f) {
		t.Fatalf("handles collide across kinds: %d", b)
	}
	if v, err := buffers.get(b); err != nil || v != "vertices" {
		t.Errorf("get = %q, %v", v, err)
	}
	if _, err := buffers.get(gpu.Buffer(f)); err == nil {
		t.Error("expected an error for a handle of another kind")
	}
}

func TestObjectPoolTakeAndDrain(t *testing.T) {
	var ids core.HandleGenerator
	pool := newObjectPool[gpu.Image, int]("image", &ids)
	a := pool.put(1)
	pool.put(2)
	pool.put(3)

	if v, ok := pool.take(a); !ok || v != 1 {
		t.Fatalf("take = %d, %v", v, ok)
	}
	if _, ok := pool.take(a); ok {
		t.Error("second take of the same handle succeeded")
	}

	sum := 0
	pool.drain(func(v int) { sum += v })
	if sum != 5 {
		t.Errorf("drained sum = %d, want 5", sum)
	}
	if pool.len() != 0 {
		t.Errorf("len after drain = %d", pool.len())
	}
}

func TestObjectPoolMustPanicsOnUnknownHandle(t *testing.T) {
	var out bytes.Buffer
	core.SetLogOutput(&out)
	defer core.SetLogOutput(os.Stderr)

	var ids core.HandleGenerator
	pool := newObjectPool[gpu.Pipeline, int]("pipeline %d", &ids)
	h := pool.put(4)
	if v := pool.must(h); v != 4 {
		t.Fatalf("must = %d, want 4", v)
	}

	defer func() {
		if recover() == nil {
			t.Fatal("must returned for an unknown handle")
		}
		// The kind is logged verbatim, not used as a format.
		if !strings.Contains(out.String(), "unknown pipeline %d handle 99") {
			t.Errorf("log = %q", out.String())
		}
	}()
	pool.must(99)
}

func TestSafeString(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", "\x00"},
		{"main", "main\x00"},
		{"main\x00", "main\x00"},
	}
	for _, tt := range tests {
		if got := safeString(tt.in); got != tt.want {
			t.Errorf("safeString(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSpirvWords(t *testing.T) {
	code := make([]byte, 8)
	binary.LittleEndian.PutUint32(code[0:], 0x07230203)
	binary.LittleEndian.PutUint32(code[4:], 0x00010000)

	words := spirvWords(code)
	if len(words) != 2 {
		t.Fatalf("len = %d, want 2", len(words))
	}
	// Words share the byte slice's memory, so the host byte order applies.
	if got := binary.NativeEndian.Uint32(code[0:]); words[0] != got {
		t.Errorf("words[0] = %#x, want %#x", words[0], got)
	}
	if spirvWords(nil) != nil {
		t.Error("empty code should give nil words")
	}
}
