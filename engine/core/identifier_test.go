package core

import (
	"sync"
	"testing"
)

func TestHandleGeneratorMonotonic(t *testing.T) {
	var g HandleGenerator
	if g.Last() != 0 {
		t.Fatalf("fresh generator Last() = %d, want 0", g.Last())
	}
	prev := uint64(0)
	for i := 0; i < 100; i++ {
		id := g.Next()
		if id <= prev {
			t.Fatalf("id %d not greater than previous %d", id, prev)
		}
		prev = id
	}
	if g.Last() != 100 {
		t.Errorf("Last() = %d, want 100", g.Last())
	}
}

func TestHandleGeneratorConcurrentUnique(t *testing.T) {
	var g HandleGenerator
	const workers, perWorker = 8, 250

	var mu sync.Mutex
	seen := make(map[uint64]bool, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids := make([]uint64, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				ids = append(ids, g.Next())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, id := range ids {
				if seen[id] {
					t.Errorf("id %d issued twice", id)
				}
				seen[id] = true
			}
		}()
	}
	wg.Wait()
	if len(seen) != workers*perWorker {
		t.Errorf("got %d unique ids, want %d", len(seen), workers*perWorker)
	}
}
