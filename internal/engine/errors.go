package engine

import (
	"errors"
	"fmt"

	"github.com/marchellcx/labscript/internal/ir"
)

// Runtime error codes. Runtime errors abort the current run only; they
// are reported through the logger and never surface as typed errors from
// Run, which always returns bool.
const (
	ErrCodeUnknownAction = "unknown_action"  // id registered away between compile and run
	ErrCodePanic         = "action_panic"    // native handler panicked
	ErrCodeEvalMissing   = "eval_missing"    // evaluator stored no output
	ErrCodeEvalNotBool   = "eval_not_bool"   // evaluator output is not a boolean
	ErrCodeUnresolvedRef = "unresolved_ref"  // $name matched no memory key and no runnable expression
	ErrCodeUnclosedBlock = "unclosed_block"  // opening marker without its closing marker
	ErrCodeDepthExceeded = "depth_exceeded"  // recursion guard tripped
	ErrCodeStepsExceeded = "steps_exceeded"  // step quota tripped
	ErrCodeBadParameter  = "bad_parameter"   // block parameter failed validation
	ErrCodeSubRunFailed  = "subrun_failed"   // nested run reported failure
)

// RunError is a runtime failure raised while interpreting instructions.
// Handlers raise it with Context.Failf; the invoke boundary recovers it,
// logs it with the offending action's identity, and aborts the run.
type RunError struct {
	Code    string
	Action  string // offending action id
	Token   string // run token
	Message string
}

// Error implements the error interface.
func (e *RunError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s: action %q: %s", e.Code, e.Action, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// AsRunError unwraps err into a *RunError if possible.
func AsRunError(err error) (*RunError, bool) {
	var re *RunError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// BindError is a native-action authoring defect: an argument already
// resolved to one kind was re-read as an incompatible type. It is raised
// inside Resolve and recovered at the invoke boundary like a RunError,
// but logged as a defect so it surfaces immediately in development.
type BindError struct {
	Action string
	Index  int     // argument index
	Want   string  // requested Go type
	Got    ir.Kind // cached kind
}

// Error implements the error interface.
func (e *BindError) Error() string {
	return fmt.Sprintf("bind defect: action %q argument %d resolved as %s, re-read as %s",
		e.Action, e.Index, e.Got, e.Want)
}

// AsBindError unwraps err into a *BindError if possible.
func AsBindError(err error) (*BindError, bool) {
	var be *BindError
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}
