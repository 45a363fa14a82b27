package engine

import (
	"sort"
	"sync"

	"github.com/marchellcx/labscript/internal/ir"
)

// Handler is the native function shape: it receives the running context
// and returns result flags. Failures inside a handler are raised with
// Context.Failf (or an ordinary panic) and converted at the invoke
// boundary; handlers never return errors.
type Handler func(*Context) Flags

// Action pairs an action descriptor with its native handler.
type Action struct {
	ir.ActionSpec
	Handler Handler
}

// Registry maps action ids to their descriptors and handlers. It is
// populated by explicit registration routines at startup and read from
// every interpretation call site afterwards; the RWMutex only matters to
// hosts that hot-reload actions.
type Registry struct {
	mu      sync.RWMutex
	actions map[string]Action
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{actions: make(map[string]Action)}
}

// Register adds an action. A duplicate id overwrites the earlier entry
// (last registration wins) and still reports true. Malformed shapes
// report false without registering: empty id, nil handler, parameter
// indexes that are not exactly 0..n-1 in declaration order, unnamed
// parameters, or two parameters whose names collide case-insensitively.
func (r *Registry) Register(a Action) bool {
	if a.ID == "" || a.Handler == nil {
		return false
	}
	seen := make(map[string]struct{}, len(a.Params))
	for i, p := range a.Params {
		if p.Index != i || p.Name == "" {
			return false
		}
		folded := ir.Fold(p.Name)
		if _, dup := seen[folded]; dup {
			return false
		}
		seen[folded] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[a.ID] = a
	return true
}

// Describe returns the descriptor for id. It is the compiler's Catalog
// view of the registry.
func (r *Registry) Describe(id string) (ir.ActionSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	return a.ActionSpec, ok
}

// Lookup returns the full action for id.
func (r *Registry) Lookup(id string) (Action, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.actions[id]
	return a, ok
}

// Specs returns every registered descriptor sorted by id.
func (r *Registry) Specs() []ir.ActionSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ir.ActionSpec, 0, len(r.actions))
	for _, a := range r.actions {
		out = append(out, a.ActionSpec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered actions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.actions)
}
