package engine

import (
	"time"

	"github.com/marchellcx/labscript/internal/ir"
)

// Identifiers of the control-flow actions.
const (
	ActionIf        = "If"
	ActionElseIf    = "ElseIf"
	ActionEndIf     = "EndIf"
	ActionWhileTrue = "WhileTrue"
	ActionEndWhile  = "EndWhile"
)

// blockScratchKey caches the partitioned block tree on the opening call
// site so loops do not re-scan.
const blockScratchKey = "__block"

// RegisterBlocks installs the control-flow actions. They are ordinary
// registry entries; the compiler knows nothing about them. Block shape
// is discovered lazily at first execution by scanning forward in the
// flat instruction list to the first matching closing marker. Nested
// blocks of the same kind are not supported: the scan stops at the
// first closer it meets.
func RegisterBlocks(r *Registry) {
	r.Register(Action{
		ActionSpec: ir.ActionSpec{ID: ActionIf},
		Handler:    ifAction,
	})
	r.Register(Action{
		ActionSpec: ir.ActionSpec{ID: ActionElseIf},
		Handler:    markerAction,
	})
	r.Register(Action{
		ActionSpec: ir.ActionSpec{ID: ActionEndIf},
		Handler:    markerAction,
	})
	r.Register(Action{
		ActionSpec: ir.ActionSpec{
			ID: ActionWhileTrue,
			Params: []ir.Param{
				{Index: 0, Name: "Reverse", Description: "invert the condition"},
				{Index: 1, Name: "Delay", Description: "seconds between iterations; 0 runs inline"},
			},
		},
		Handler: whileAction,
	})
	r.Register(Action{
		ActionSpec: ir.ActionSpec{ID: ActionEndWhile},
		Handler:    markerAction,
	})
}

// markerAction is the body of the closing and branching markers. They
// carry no behavior of their own; flow only lands on one when a block
// opener was never executed.
func markerAction(c *Context) Flags {
	return Success
}

// branch is one (conditions, body) pair of a block. The conditions run
// through the first evaluator inclusive; the rest is the body.
type branch struct {
	cond []*ir.Instruction
	body []*ir.Instruction
}

// blockTree is the cached shape of a scanned block. The closer is held
// by pointer because the same compiled instructions can be interpreted
// through different list views, such as a delayed loop's tail, where
// positions differ.
type blockTree struct {
	branches []branch
	closer   *ir.Instruction
}

func ifAction(c *Context) Flags {
	t := scanBlock(c, ActionEndIf, true)
	closeIdx := c.markerIndex(t.closer)

	for _, br := range t.branches {
		if !evalCondition(c, br.cond) {
			continue
		}
		sub := c.sub(br.body)
		res := c.eng.exec(sub, true)
		if res.stopped {
			return stopFlags(res)
		}
		if !res.ok {
			return Fail
		}
		break
	}
	c.Index = closeIdx
	return Success | Dispose
}

func whileAction(c *Context) Flags {
	t := scanBlock(c, ActionEndWhile, false)
	closeIdx := c.markerIndex(t.closer)
	br := t.branches[0]
	reverse := ResolveBool(c, 0, false)
	delay := ResolveFloat(c, 1, 0)

	if delay <= 0 {
		for {
			ok := evalCondition(c, br.cond)
			if reverse {
				ok = !ok
			}
			if !ok {
				break
			}
			sub := c.sub(br.body)
			res := c.eng.exec(sub, true)
			if res.stopped {
				return stopFlags(res)
			}
			if !res.ok {
				return Fail
			}
		}
		c.Index = closeIdx
		return Success | Dispose
	}

	// Delayed variant: the surrounding run returns now, and the loop
	// continues as a scheduled continuation owning this context's
	// memory. Everything after the closing marker becomes a tail that
	// runs exactly once, when the condition turns false.
	tail := c.Instructions[closeIdx+1:]
	interval := time.Duration(delay * float64(time.Second))
	eng := c.eng

	var step func()
	step = func() {
		defer func() {
			if r := recover(); r != nil {
				eng.logRecovered(c, ActionWhileTrue, r)
				c.dispose()
			}
		}()
		ok := evalCondition(c, br.cond)
		if reverse {
			ok = !ok
		}
		if ok {
			sub := c.sub(br.body)
			res := eng.exec(sub, true)
			if res.stopped || !res.ok {
				c.dispose()
				return
			}
			eng.sched.After(interval, step)
			return
		}
		c.retarget(tail)
		eng.exec(c, true)
	}
	eng.sched.After(interval, step)
	return Success | Stop | NoDispose
}

// scanBlock finds the block opened at the current instruction: forward
// scan to the first closing marker, then partition the enclosed range
// into branches. If blocks split on ElseIf markers; loops are a single
// branch. The tree is cached on the opening call site.
func scanBlock(c *Context, closer string, splitElse bool) *blockTree {
	if v, ok := c.Current.ScratchGet(blockScratchKey); ok {
		return v.(*blockTree)
	}
	end := -1
	for i := c.Index + 1; i < len(c.Instructions); i++ {
		if c.Instructions[i].Action.ID == closer {
			end = i
			break
		}
	}
	if end < 0 {
		c.Failf(ErrCodeUnclosedBlock, "no %s marker follows", closer)
	}
	seg := c.Instructions[c.Index+1 : end]
	t := &blockTree{closer: c.Instructions[end]}
	start := 0
	if splitElse {
		for i, ins := range seg {
			if ins.Action.ID == ActionElseIf {
				cond, body := splitCondition(seg[start:i])
				t.branches = append(t.branches, branch{cond: cond, body: body})
				start = i + 1
			}
		}
	}
	cond, body := splitCondition(seg[start:])
	t.branches = append(t.branches, branch{cond: cond, body: body})
	c.Current.ScratchPut(blockScratchKey, t)
	return t
}

// splitCondition partitions a segment at its first evaluator,
// inclusive. A segment without one is all condition.
func splitCondition(seg []*ir.Instruction) (cond, body []*ir.Instruction) {
	for i, ins := range seg {
		if ins.Action.Evaluator {
			return seg[:i+1], seg[i+1:]
		}
	}
	return seg, nil
}

// markerIndex locates a cached marker in the context's current list
// view.
func (c *Context) markerIndex(marker *ir.Instruction) int {
	for i := c.Index + 1; i < len(c.Instructions); i++ {
		if c.Instructions[i] == marker {
			return i
		}
	}
	c.Failf(ErrCodeUnclosedBlock, "closing marker not in the running list")
	return -1
}

// evalCondition runs a condition segment in an isolated sub-run and
// reads the boolean stored under the segment's last declared output
// variable. A segment that stores nothing, or stores a non-boolean, is
// a runtime error.
func evalCondition(c *Context, cond []*ir.Instruction) bool {
	if len(cond) == 0 {
		c.Failf(ErrCodeEvalMissing, "block has no condition")
	}
	last := cond[len(cond)-1]
	sub := c.sub(cond)
	res := c.eng.exec(sub, false)
	if last.Output == "" {
		sub.dispose()
		c.Failf(ErrCodeEvalMissing, "condition %q declares no output variable", last.Action.ID)
	}
	v, ok := sub.mem.Get(last.Output)
	sub.dispose()
	if !res.ok || !ok {
		c.Failf(ErrCodeEvalMissing, "condition %q saved no result", last.Action.ID)
	}
	b, isBool := ir.As[bool](v)
	if !isBool {
		c.Failf(ErrCodeEvalNotBool, "condition %q saved %v, want bool", last.Action.ID, kindOf(v))
	}
	return b
}

// stopFlags converts a stopped sub-run into the flags the enclosing
// loop needs to terminate with the same verdict.
func stopFlags(res runResult) Flags {
	fl := Stop | Dispose
	if res.ok {
		fl |= Success
	}
	return fl
}
