package engine

import (
	"log/slog"

	"github.com/marchellcx/labscript/internal/compiler"
	"github.com/marchellcx/labscript/internal/ir"
)

// Default bounds on a run and everything it spawns.
const (
	DefaultMaxDepth = 64
	DefaultMaxSteps = 10000
)

// Engine interprets compiled instruction lists against a registry. One
// engine serves many runs; per-run state lives in Context.
type Engine struct {
	reg        *Registry
	comp       *compiler.Compiler
	log        *slog.Logger
	pool       *MemoryPool
	sched      *Scheduler
	clock      *Clock
	tokens     TokenGenerator
	trace    TraceFunc
	maxDepth int
	maxSteps int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMaxDepth bounds sub-run nesting. Non-positive means unlimited.
func WithMaxDepth(n int) Option {
	return func(e *Engine) { e.maxDepth = n }
}

// WithMaxSteps bounds the invocations a run and its sub-runs may spend.
// Non-positive means unlimited.
func WithMaxSteps(n int) Option {
	return func(e *Engine) { e.maxSteps = n }
}

// WithScheduler sets the scheduler delayed continuations queue on.
func WithScheduler(s *Scheduler) Option {
	return func(e *Engine) { e.sched = s }
}

// WithTokens sets the run token generator. Defaults to UUIDv7 tokens.
func WithTokens(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithTrace sets a callback receiving one event per invocation.
func WithTrace(fn TraceFunc) Option {
	return func(e *Engine) { e.trace = fn }
}

// New builds an engine over reg and registers the control-flow actions
// on it.
func New(reg *Registry, opts ...Option) *Engine {
	e := &Engine{
		reg:      reg,
		log:      slog.Default(),
		pool:     NewMemoryPool(),
		clock:    NewClock(),
		tokens:   UUIDv7Generator{},
		maxDepth: DefaultMaxDepth,
		maxSteps: DefaultMaxSteps,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.sched == nil {
		e.sched = NewScheduler()
	}
	e.comp = compiler.New(reg)
	RegisterBlocks(reg)
	return e
}

// Registry returns the registry the engine interprets against.
func (e *Engine) Registry() *Registry { return e.reg }

// Scheduler returns the scheduler the host pumps.
func (e *Engine) Scheduler() *Scheduler { return e.sched }

// Pool returns the variable memory pool, for leak accounting.
func (e *Engine) Pool() *MemoryPool { return e.pool }

// Run interprets list against subject and reports whether the run
// completed successfully. Falling off the end is success; an instruction
// may end the run early with a stop flag carrying its own verdict. The
// run's memory is released on exit unless a stopping instruction kept it
// alive for a scheduled continuation.
func (e *Engine) Run(list []*ir.Instruction, subject Subject) bool {
	c := e.newContext(list, subject)
	return e.exec(c, true).ok
}

// RunSnapshot is Run plus a copy of the run's variables taken before
// the memory is released. Diagnostics and tests use it; hosts use Run.
func (e *Engine) RunSnapshot(list []*ir.Instruction, subject Subject) (bool, map[string]ir.Value) {
	c := e.newContext(list, subject)
	res := e.exec(c, false)
	var snap map[string]ir.Value
	if !c.disposed {
		snap = c.mem.Snapshot()
	}
	if !res.retained {
		c.dispose()
	}
	return res.ok, snap
}

func (e *Engine) newContext(list []*ir.Instruction, subject Subject) *Context {
	return &Context{
		Instructions: list,
		Subject:      subject,
		eng:          e,
		mem:          e.pool.Rent(),
		token:        e.tokens.Generate(),
		quota:        &quota{maxSteps: e.maxSteps},
	}
}

// runResult reports how an instruction list ended. retained means a
// stopping instruction kept the run's memory alive, transferring
// ownership to whatever it scheduled.
type runResult struct {
	ok       bool
	stopped  bool
	retained bool
}

// exec is the interpreter loop. Instructions run in order; each sees
// the previous, current, and next instruction and may mutate Index to
// jump, with the loop's own increment applying on top. A stop flag ends
// the list with the instruction's verdict and its choice of whether the
// memory is released; a bare failure aborts the list. disposeOnExit
// controls whether the abort and fall-through paths release the memory.
func (e *Engine) exec(c *Context, disposeOnExit bool) runResult {
	for c.Index = 0; c.Index < len(c.Instructions); c.Index++ {
		if c.Index < 0 {
			e.log.Error("instruction pointer out of range",
				"token", c.token, "index", c.Index)
			if disposeOnExit {
				c.dispose()
			}
			return runResult{}
		}
		c.Previous = c.Current
		c.Current = c.Instructions[c.Index]
		if c.Index+1 < len(c.Instructions) {
			c.Next = c.Instructions[c.Index+1]
		} else {
			c.Next = nil
		}

		flags := e.invoke(c)
		if flags.Stopped() {
			if flags.Disposed() {
				c.dispose()
			}
			return runResult{ok: flags.Succeeded(), stopped: true, retained: !flags.Disposed()}
		}
		if !flags.Succeeded() {
			e.log.Error("run aborted by failed invocation",
				"action", c.Current.Action.ID, "index", c.Index, "token", c.token)
			if disposeOnExit {
				c.dispose()
			}
			return runResult{}
		}
	}
	if disposeOnExit {
		c.dispose()
	}
	return runResult{ok: true}
}

// invoke runs the current instruction's handler. Panics inside the
// handler, including the typed errors Failf and argument resolution
// raise, are recovered here and become a failed invocation; they never
// escape to the host.
func (e *Engine) invoke(c *Context) (out Flags) {
	id := c.Current.Action.ID
	idx := c.Index
	seq := e.clock.Tick()

	defer func() {
		if r := recover(); r != nil {
			e.logRecovered(c, id, r)
			out = Fail
		}
		if e.trace != nil {
			e.trace(TraceEvent{
				Seq:    seq,
				Token:  c.token,
				Action: id,
				Index:  idx,
				Depth:  c.depth,
				Flags:  out,
			})
		}
	}()

	if !c.quota.step() {
		c.Failf(ErrCodeStepsExceeded, "run exceeded %d steps", c.quota.maxSteps)
	}
	act, ok := e.reg.Lookup(id)
	if !ok {
		c.Failf(ErrCodeUnknownAction, "action not registered")
	}
	e.log.Debug("invoke",
		"action", id, "index", idx, "depth", c.depth, "token", c.token)
	return act.Handler(c)
}

func (e *Engine) logRecovered(c *Context, id string, r any) {
	switch err := r.(type) {
	case *RunError:
		e.log.Error("run aborted",
			"code", err.Code, "action", err.Action, "token", err.Token, "error", err.Message)
	case *BindError:
		e.log.Error("argument bind defect",
			"action", err.Action, "arg", err.Index, "want", err.Want, "got", err.Got.String(), "token", c.token)
	default:
		e.log.Error("action panicked",
			"code", ErrCodePanic, "action", id, "token", c.token, "panic", r)
	}
}
