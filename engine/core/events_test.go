package core

import "testing"

func TestEventBusFireStopsWhenHandled(t *testing.T) {
	bus := NewEventBus()
	var calls []string

	first, second := new(int), new(int)
	bus.Register(EVENT_CODE_RESIZED, first, func(code SystemEventCode, sender interface{}, data EventContext) bool {
		calls = append(calls, "first")
		return data.Width == 0
	})
	bus.Register(EVENT_CODE_RESIZED, second, func(code SystemEventCode, sender interface{}, data EventContext) bool {
		calls = append(calls, "second")
		return true
	})

	if !bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{Width: 0}) {
		t.Fatal("expected event to be handled")
	}
	if len(calls) != 1 || calls[0] != "first" {
		t.Fatalf("calls = %v, want [first]", calls)
	}

	calls = nil
	bus.Fire(EVENT_CODE_RESIZED, nil, EventContext{Width: 10})
	if len(calls) != 2 {
		t.Fatalf("calls = %v, want both listeners", calls)
	}
}

func TestEventBusRegisterDuplicateAndUnregister(t *testing.T) {
	bus := NewEventBus()
	listener := new(int)
	noop := func(SystemEventCode, interface{}, EventContext) bool { return true }

	if !bus.Register(EVENT_CODE_APPLICATION_QUIT, listener, noop) {
		t.Fatal("first registration failed")
	}
	if bus.Register(EVENT_CODE_APPLICATION_QUIT, listener, noop) {
		t.Error("duplicate registration accepted")
	}
	if !bus.Unregister(EVENT_CODE_APPLICATION_QUIT, listener) {
		t.Error("unregister failed")
	}
	if bus.Fire(EVENT_CODE_APPLICATION_QUIT, nil, EventContext{}) {
		t.Error("event handled after unregister")
	}
}

func TestInputFiresOnChangeOnly(t *testing.T) {
	bus := NewEventBus()
	pressed := 0
	bus.Register(EVENT_CODE_KEY_PRESSED, t, func(code SystemEventCode, sender interface{}, data EventContext) bool {
		if data.Key != KEY_W {
			t.Errorf("key = %x, want W", data.Key)
		}
		pressed++
		return true
	})

	in := NewInput(bus)
	in.ProcessKey(KEY_W, true)
	in.ProcessKey(KEY_W, true)
	if pressed != 1 {
		t.Errorf("pressed events = %d, want 1", pressed)
	}
	if !in.IsKeyDown(KEY_W) || in.WasKeyDown(KEY_W) {
		t.Error("unexpected key state before Update")
	}
	in.Update()
	if !in.WasKeyDown(KEY_W) {
		t.Error("previous state not copied on Update")
	}
}

func TestInputMouseDelta(t *testing.T) {
	in := NewInput(nil)
	in.ResetMouse(100, 100)
	in.ProcessMouseMove(110, 95)
	dx, dy := in.MouseDelta()
	if dx != 10 || dy != -5 {
		t.Errorf("delta = (%v, %v), want (10, -5)", dx, dy)
	}
	in.Update()
	dx, dy = in.MouseDelta()
	if dx != 0 || dy != 0 {
		t.Errorf("delta after Update = (%v, %v), want 0", dx, dy)
	}
}
