package engine

import (
	"fmt"

	"github.com/marchellcx/labscript/internal/ir"
)

// Subject identifies who a run acts on: a stable id plus the permission
// group and level the weighted table dispatcher adjusts by. The zero
// value means the run has no subject.
type Subject struct {
	ID    string
	Group string
	Level int
}

// Defined reports whether the subject is set.
func (s Subject) Defined() bool { return s.ID != "" }

// quota is the run-wide step budget, shared by a run and all of its
// sub-runs. Runs are single-threaded, so plain ints suffice.
type quota struct {
	steps    int
	maxSteps int
}

// step consumes one step. Reports false once the budget is exhausted; a
// non-positive budget is unlimited.
func (q *quota) step() bool {
	q.steps++
	return q.maxSteps <= 0 || q.steps <= q.maxSteps
}

// Context is the state of one run over a compiled instruction list: the
// borrowed list (possibly a sub-range), the instruction pointer, the
// surrounding instruction window, the subject, and the pooled variable
// memory. Running instructions may mutate Index to implement jumps; the
// loop's own increment applies on top.
type Context struct {
	Instructions []*ir.Instruction
	Index        int
	Previous     *ir.Instruction
	Current      *ir.Instruction
	Next         *ir.Instruction
	Subject      Subject

	eng      *Engine
	mem      *Memory
	token    string
	depth    int
	quota    *quota
	disposed bool
}

// Engine returns the engine interpreting this context.
func (c *Context) Engine() *Engine { return c.eng }

// Token returns the run token shared by this run and its sub-runs.
func (c *Context) Token() string { return c.token }

// Depth returns the sub-run nesting depth; top-level runs are depth 0.
func (c *Context) Depth() int { return c.depth }

// Memory returns the run's variable store.
func (c *Context) Memory() *Memory { return c.mem }

// SaveOutput stores v under the current call site's declared output
// variable. Call sites without an output variable discard the value.
func (c *Context) SaveOutput(v any) {
	if c.Current == nil || c.Current.Output == "" {
		return
	}
	c.mem.Set(c.Current.Output, ir.From(v))
}

// SetVar stores v under an explicit variable name.
func (c *Context) SetVar(name string, v any) {
	c.mem.Set(name, ir.From(v))
}

// Failf aborts the run with a runtime error attributed to the current
// action. It panics with a *RunError; the invoke boundary recovers it,
// logs it, and converts it to a failed invocation.
func (c *Context) Failf(code, format string, args ...any) {
	panic(&RunError{
		Code:    code,
		Action:  c.actionID(),
		Token:   c.token,
		Message: fmt.Sprintf(format, args...),
	})
}

func (c *Context) actionID() string {
	if c.Current == nil {
		return ""
	}
	return c.Current.Action.ID
}

// sub creates a child context over list: fresh pooled memory, same
// subject and token, shared step budget, depth one deeper. Exceeding the
// engine's depth bound raises the depth runtime error.
func (c *Context) sub(list []*ir.Instruction) *Context {
	if c.eng.maxDepth > 0 && c.depth+1 > c.eng.maxDepth {
		c.Failf(ErrCodeDepthExceeded, "sub-run depth %d exceeds limit %d", c.depth+1, c.eng.maxDepth)
	}
	return &Context{
		Instructions: list,
		Subject:      c.Subject,
		eng:          c.eng,
		mem:          c.eng.pool.Rent(),
		token:        c.token,
		depth:        c.depth + 1,
		quota:        c.quota,
	}
}

// retarget repoints this context at a new instruction list, keeping its
// memory. Used for the delayed loop's tail continuation, which resumes
// the remainder of a run over the same variables.
func (c *Context) retarget(list []*ir.Instruction) {
	c.Instructions = list
	c.Index = 0
	c.Previous = nil
	c.Current = nil
	c.Next = nil
}

// dispose returns the context's memory to the pool. Safe to call more
// than once; only the first call releases.
func (c *Context) dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.eng.pool.Release(c.mem)
}
