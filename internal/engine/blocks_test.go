package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marchellcx/labscript/internal/ir"
)

// tickDown registers an evaluator whose condition stays true for n
// checks. Block conditions run in isolated memory, so loop progress has
// to live outside the run, the way host-state checks do.
func (r *rig) tickDown(t *testing.T, n int) {
	t.Helper()
	counter := n
	require.True(t, r.reg.Register(Action{
		ActionSpec: ir.ActionSpec{ID: "TickDown", Evaluator: true},
		Handler: func(c *Context) Flags {
			c.SaveOutput(counter > 0)
			counter--
			return Success
		},
	}))
}

func TestBlocks_IfTrueRunsBody(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `If; $C Flag true; Note yes; EndIf; Note after`)

	require.True(t, r.eng.Run(ins, Subject{}))
	assert.Equal(t, []string{"yes", "after"}, r.notes)
	assert.Equal(t, 0, r.eng.Pool().Outstanding())
}

func TestBlocks_IfFalseSkipsToCloser(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `Note pre; If; $C Flag false; Note hidden; EndIf; Note post`)

	require.True(t, r.eng.Run(ins, Subject{}))
	assert.Equal(t, []string{"pre", "post"}, r.notes,
		"an untaken block resumes one instruction past the closer")
}

func TestBlocks_ElseIfTakesFirstTrueBranch(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t,
		`If; $C Flag false; Note a; ElseIf; $C Flag true; Note b; ElseIf; $C Flag true; Note c; EndIf; Note post`)

	require.True(t, r.eng.Run(ins, Subject{}))
	assert.Equal(t, []string{"b", "post"}, r.notes)
}

func TestBlocks_ElseIfAllFalse(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t,
		`If; $C Flag false; Note a; ElseIf; $C Flag false; Note b; EndIf; Note post`)

	require.True(t, r.eng.Run(ins, Subject{}))
	assert.Equal(t, []string{"post"}, r.notes)
}

func TestBlocks_NestedIf_FirstCloserWins(t *testing.T) {
	// The forward scan stops at the first EndIf, so same-kind nesting
	// is not supported. Both halves of that behavior are pinned here.
	t.Run("outer false jumps into the inner tail", func(t *testing.T) {
		r := newRig(t)
		ins := r.compile(t,
			`If; $C Flag false; If; $C Flag true; Note inner; EndIf; Note leaked; EndIf; Note post`)

		require.True(t, r.eng.Run(ins, Subject{}))
		assert.Equal(t, []string{"leaked", "post"}, r.notes,
			"the jump lands on the inner closer, leaking the outer tail")
	})

	t.Run("outer true leaves the inner block unclosed", func(t *testing.T) {
		r := newRig(t)
		ins := r.compile(t,
			`If; $C Flag true; If; $C Flag true; Note inner; EndIf; Note leaked; EndIf; Note post`)

		assert.False(t, r.eng.Run(ins, Subject{}))
		assert.Empty(t, r.notes)
		rec, found := r.rec.Find("run aborted")
		require.True(t, found)
		assert.Equal(t, ErrCodeUnclosedBlock, rec.Attrs["code"])
	})
}

func TestBlocks_IfBodyStopTerminatesOuterRun(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `If; $C Flag true; Note in; StopRun true true; EndIf; Note after`)

	ok := r.eng.Run(ins, Subject{})

	assert.True(t, ok)
	assert.Equal(t, []string{"in"}, r.notes)
	assert.Equal(t, 0, r.eng.Pool().Outstanding())
}

func TestBlocks_ConditionWithoutOutputIsError(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `If; Flag true; Note x; EndIf`)

	assert.False(t, r.eng.Run(ins, Subject{}))
	rec, found := r.rec.Find("run aborted")
	require.True(t, found)
	assert.Equal(t, ErrCodeEvalMissing, rec.Attrs["code"])
}

func TestBlocks_ConditionNotBoolIsError(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `If; $C Echo hello; Note x; EndIf`)

	assert.False(t, r.eng.Run(ins, Subject{}))
	rec, found := r.rec.Find("run aborted")
	require.True(t, found)
	assert.Equal(t, ErrCodeEvalNotBool, rec.Attrs["code"])
}

func TestBlocks_UnclosedIfIsError(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `If; $C Flag true; Note x`)

	assert.False(t, r.eng.Run(ins, Subject{}))
	rec, found := r.rec.Find("run aborted")
	require.True(t, found)
	assert.Equal(t, ErrCodeUnclosedBlock, rec.Attrs["code"])
}

func TestBlocks_BareMarkersAreNoOps(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `EndIf; ElseIf; EndWhile; Note ok`)

	require.True(t, r.eng.Run(ins, Subject{}))
	assert.Equal(t, []string{"ok"}, r.notes)
}

func TestBlocks_TreeCachedOnCallSite(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `If; $C Flag true; Note y; EndIf`)

	require.True(t, r.eng.Run(ins, Subject{}))
	_, cached := ins[0].ScratchGet(blockScratchKey)
	assert.True(t, cached)

	require.True(t, r.eng.Run(ins, Subject{}))
	assert.Equal(t, []string{"y", "y"}, r.notes)
}

func TestBlocks_WhileTightLoop(t *testing.T) {
	r := newRig(t)
	r.tickDown(t, 3)
	ins := r.compile(t, `WhileTrue; $C TickDown; Note tick; EndWhile; Note done`)

	require.True(t, r.eng.Run(ins, Subject{}))
	assert.Equal(t, []string{"tick", "tick", "tick", "done"}, r.notes)
	assert.Equal(t, 0, r.eng.Pool().Outstanding())
}

func TestBlocks_WhileNeverTrueRunsZeroTimes(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `WhileTrue Delay=0; $C Flag false; Note never; EndWhile; Note done`)

	require.True(t, r.eng.Run(ins, Subject{}))
	assert.Equal(t, []string{"done"}, r.notes)
}

func TestBlocks_WhileReverseInvertsCondition(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `WhileTrue Reverse=true; $C Flag true; Note never; EndWhile; Note done`)

	require.True(t, r.eng.Run(ins, Subject{}))
	assert.Equal(t, []string{"done"}, r.notes)
}

func TestBlocks_WhileBodyStopEndsRun(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `WhileTrue; $C Flag true; StopRun true true; EndWhile; Note after`)

	ok := r.eng.Run(ins, Subject{})

	assert.True(t, ok)
	assert.Empty(t, r.notes)
	assert.Equal(t, 0, r.eng.Pool().Outstanding())
}

func TestBlocks_WhileRunawayHitsStepQuota(t *testing.T) {
	r := newRig(t, WithMaxSteps(50))
	ins := r.compile(t, `WhileTrue; $C Flag true; Note spin; EndWhile`)

	assert.False(t, r.eng.Run(ins, Subject{}))
	rec, found := r.rec.Find("run aborted")
	require.True(t, found)
	assert.Equal(t, ErrCodeStepsExceeded, rec.Attrs["code"])
	assert.Equal(t, 0, r.eng.Pool().Outstanding())
}

func TestBlocks_DelayedWhile(t *testing.T) {
	r := newRig(t)
	r.tickDown(t, 2)
	ins := r.compile(t, `WhileTrue Delay=1; $C TickDown; Note beat; EndWhile; Note tail`)

	ok := r.eng.Run(ins, Subject{})

	require.True(t, ok, "the surrounding run returns without blocking")
	assert.Empty(t, r.notes)
	assert.Equal(t, 1, r.eng.Scheduler().Pending())
	assert.Equal(t, 1, r.eng.Pool().Outstanding(), "the continuation owns the memory")

	r.eng.Scheduler().Advance(time.Second)
	assert.Equal(t, []string{"beat"}, r.notes)

	r.eng.Scheduler().Advance(time.Second)
	assert.Equal(t, []string{"beat", "beat"}, r.notes)

	r.eng.Scheduler().Advance(time.Second)
	assert.Equal(t, []string{"beat", "beat", "tail"}, r.notes,
		"the instructions after the closer run once, when the condition turns false")
	assert.Equal(t, 0, r.eng.Scheduler().Pending())
	assert.Equal(t, 0, r.eng.Pool().Outstanding())
}

func TestBlocks_DelayedWhileConditionErrorDisposes(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `WhileTrue Delay=1; $C Boom; EndWhile; Note tail`)

	require.True(t, r.eng.Run(ins, Subject{}))
	r.eng.Scheduler().Advance(time.Second)

	assert.Empty(t, r.notes, "the tail is skipped when the continuation aborts")
	assert.Equal(t, 0, r.eng.Scheduler().Pending())
	assert.Equal(t, 0, r.eng.Pool().Outstanding())
	rec, found := r.rec.Find("run aborted")
	require.True(t, found)
	assert.Equal(t, ErrCodeEvalMissing, rec.Attrs["code"])
}

func TestBlocks_DelayedWhileBodyStopSkipsTail(t *testing.T) {
	r := newRig(t)
	ins := r.compile(t, `WhileTrue Delay=1; $C Flag true; StopRun true true; EndWhile; Note tail`)

	require.True(t, r.eng.Run(ins, Subject{}))
	r.eng.Scheduler().Advance(time.Second)

	assert.Empty(t, r.notes)
	assert.Equal(t, 0, r.eng.Scheduler().Pending())
	assert.Equal(t, 0, r.eng.Pool().Outstanding())
}
