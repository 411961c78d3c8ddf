package platform

import (
	"testing"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/lumen/engine/core"
)

func TestKeyCode(t *testing.T) {
	tests := []struct {
		name string
		key  glfw.Key
		want core.KeyCode
		ok   bool
	}{
		{"letter", glfw.KeyW, core.KEY_W, true},
		{"escape", glfw.KeyEscape, core.KEY_ESCAPE, true},
		{"arrow", glfw.KeyLeft, core.KEY_LEFT, true},
		{"unmapped", glfw.KeyF12, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := keyCode(tt.key)
			if ok != tt.ok || got != tt.want {
				t.Errorf("keyCode(%v) = %v, %v; want %v, %v", tt.key, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestCursorResetSuppressesFirstDelta(t *testing.T) {
	in := core.NewInput(nil)
	w := &Window{input: in, resetCursor: true}

	w.cursorPosCallback(nil, 100, 50)
	if dx, dy := in.MouseDelta(); dx != 0 || dy != 0 {
		t.Fatalf("delta after reset = (%v, %v), want zero", dx, dy)
	}
	w.cursorPosCallback(nil, 110, 45)
	if dx, dy := in.MouseDelta(); dx != 10 || dy != -5 {
		t.Errorf("delta = (%v, %v), want (10, -5)", dx, dy)
	}
	if x, y := w.LastCursor(); x != 110 || y != 45 {
		t.Errorf("last cursor = (%v, %v)", x, y)
	}
}

func TestFramebufferResizeFiresEvent(t *testing.T) {
	events := core.NewEventBus()
	var got core.EventContext
	fired := 0
	events.Register(core.EVENT_CODE_RESIZED, t, func(_ core.SystemEventCode, _ interface{}, data core.EventContext) bool {
		got = data
		fired++
		return true
	})
	w := &Window{input: core.NewInput(nil), events: events}

	w.framebufferSizeCallback(nil, 800, 600)
	if fired != 1 || got.Width != 800 || got.Height != 600 {
		t.Errorf("resize event fired %d times with %+v", fired, got)
	}
	w.framebufferSizeCallback(nil, 0, 0)
	if fired != 2 || got.Width != 0 {
		t.Errorf("minimize event fired %d times with %+v", fired, got)
	}
}
