package core

import "sync/atomic"

// HandleGenerator hands out monotonically increasing identifiers starting at 1.
// Released identifiers are never handed out again; 0 is always invalid.
type HandleGenerator struct {
	last atomic.Uint64
}

func (g *HandleGenerator) Next() uint64 {
	return g.last.Add(1)
}

// Last returns the most recently issued identifier, or 0 if none was issued.
func (g *HandleGenerator) Last() uint64 {
	return g.last.Load()
}
