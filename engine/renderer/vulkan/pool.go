package vulkan

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/lumen/engine/core"
)

// objectPool maps the opaque handles handed to the renderer onto native
// objects. Handles come from one generator per device so they never collide
// across object kinds.
type objectPool[H ~uint64, V any] struct {
	kind string
	ids  *core.HandleGenerator

	mu      sync.Mutex
	objects map[H]V
}

func newObjectPool[H ~uint64, V any](kind string, ids *core.HandleGenerator) *objectPool[H, V] {
	return &objectPool[H, V]{
		kind:    kind,
		ids:     ids,
		objects: make(map[H]V),
	}
}

func (p *objectPool[H, V]) put(v V) H {
	h := H(p.ids.Next())
	p.mu.Lock()
	p.objects[h] = v
	p.mu.Unlock()
	return h
}

func (p *objectPool[H, V]) get(h H) (V, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.objects[h]
	if !ok {
		return v, errors.Newf("unknown %s handle %d", p.kind, h)
	}
	return v, nil
}

// must is get for recording paths, where a bad handle is a programming error.
// It panics rather than hand a null native handle to the driver.
func (p *objectPool[H, V]) must(h H) V {
	v, err := p.get(h)
	if err != nil {
		core.LogError("%s", err)
		panic(err)
	}
	return v
}

// take removes the handle and reports whether it was live.
func (p *objectPool[H, V]) take(h H) (V, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.objects[h]
	if ok {
		delete(p.objects, h)
	}
	return v, ok
}

func (p *objectPool[H, V]) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

// drain empties the pool, handing every remaining object to release.
func (p *objectPool[H, V]) drain(release func(V)) {
	p.mu.Lock()
	objects := p.objects
	p.objects = make(map[H]V)
	p.mu.Unlock()
	for _, v := range objects {
		release(v)
	}
}
