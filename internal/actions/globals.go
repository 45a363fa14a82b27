package actions

import (
	"sync"

	"github.com/marchellcx/labscript/internal/ir"
)

// Globals is the host-owned key-value store GetValue, SetGlobal, and
// HasValue work against: round state, configuration, anything the host
// wants scripts to read across runs. Run memory is per-run and
// isolated; this store is the shared surface. Safe for concurrent use.
type Globals struct {
	mu sync.RWMutex
	m  map[string]ir.Value
}

// NewGlobals returns an empty store.
func NewGlobals() *Globals {
	return &Globals{m: make(map[string]ir.Value)}
}

// Get returns the value under key.
func (g *Globals) Get(key string) (ir.Value, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	v, ok := g.m[key]
	return v, ok
}

// Set stores v under key, converting through ir.From. A nil value
// deletes the key.
func (g *Globals) Set(key string, v any) {
	g.mu.Lock()
	defer g.mu.Unlock()
	val := ir.From(v)
	if val == nil {
		delete(g.m, key)
		return
	}
	g.m[key] = val
}

// Len returns the number of stored keys.
func (g *Globals) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.m)
}
