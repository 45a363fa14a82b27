package engine

import (
	"sort"
	"sync"

	"github.com/marchellcx/labscript/internal/ir"
)

// Memory is the per-run variable store: output variables are written into
// it and $name references read from it. Instances are rented from a
// MemoryPool and must be released exactly once.
type Memory struct {
	vars     map[string]ir.Value
	released bool
}

// Get reads a variable.
func (m *Memory) Get(name string) (ir.Value, bool) {
	v, ok := m.vars[name]
	return v, ok
}

// Set writes a variable. A nil value deletes the key so readers see a
// missing variable rather than a typed nil.
func (m *Memory) Set(name string, v ir.Value) {
	if v == nil {
		delete(m.vars, name)
		return
	}
	m.vars[name] = v
}

// Len returns the number of stored variables.
func (m *Memory) Len() int {
	return len(m.vars)
}

// Keys returns the variable names in sorted order.
func (m *Memory) Keys() []string {
	keys := make([]string, 0, len(m.vars))
	for k := range m.vars {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Snapshot copies the current variables. Used by assertions and trace
// output; the copy does not alias pool-owned state.
func (m *Memory) Snapshot() map[string]ir.Value {
	out := make(map[string]ir.Value, len(m.vars))
	for k, v := range m.vars {
		out[k] = v
	}
	return out
}

// MemoryPool rents and takes back run memory. It keeps two invariant
// counters: Outstanding, the number of rented memories not yet returned
// (a leak leaves it above zero), and DoubleReleases, incremented when the
// same memory comes back twice.
type MemoryPool struct {
	mu             sync.Mutex
	free           []*Memory
	outstanding    int
	doubleReleases int
}

// NewMemoryPool creates an empty pool.
func NewMemoryPool() *MemoryPool {
	return &MemoryPool{}
}

// Rent returns a cleared Memory, reusing a released one when available.
func (p *MemoryPool) Rent() *Memory {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.outstanding++
	if n := len(p.free); n > 0 {
		m := p.free[n-1]
		p.free = p.free[:n-1]
		m.released = false
		return m
	}
	return &Memory{vars: make(map[string]ir.Value)}
}

// Release returns a Memory to the pool, clearing its variables. A second
// release of the same Memory is counted and otherwise ignored; releasing
// nil is a no-op.
func (p *MemoryPool) Release(m *Memory) {
	if m == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if m.released {
		p.doubleReleases++
		return
	}
	for k := range m.vars {
		delete(m.vars, k)
	}
	m.released = true
	p.free = append(p.free, m)
	p.outstanding--
}

// Outstanding returns the number of rented memories not yet released.
func (p *MemoryPool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outstanding
}

// DoubleReleases returns how many times a memory was released twice.
func (p *MemoryPool) DoubleReleases() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.doubleReleases
}
