package compiler

import (
	"errors"
	"fmt"
)

// Compile error codes. Each error is localized to one call site; the
// remaining call sites in the same source still compile.
const (
	ErrCodeGeneric       = "E100" // unclassified compile failure
	ErrCodeUnknownAction = "E101" // identifier not present in the catalog
	ErrCodeDuplicateBind = "E102" // same declared parameter bound twice
	ErrCodeOverflow      = "E103" // surplus tokens, action forbids overflow
	ErrCodeUnknownParam  = "E104" // Key=Value key names no declared parameter
	ErrCodeUnterminated  = "E105" // quote left open at end of invocation
	ErrCodeBlockMarker   = "E106" // ':' block marker inside a block body
)

// CompileError describes why one call site failed to compile.
type CompileError struct {
	Code       string // ErrCode* constant
	Message    string
	Line       int    // 1-based source line
	Invocation string // raw invocation text
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Invocation != "" {
		return fmt.Sprintf("line %d: [%s] %s in %q", e.Line, e.Code, e.Message, e.Invocation)
	}
	return fmt.Sprintf("line %d: [%s] %s", e.Line, e.Code, e.Message)
}

// AsCompileError unwraps err into a *CompileError if possible.
func AsCompileError(err error) (*CompileError, bool) {
	var ce *CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

func errf(code string, line int, invocation, format string, args ...any) *CompileError {
	return &CompileError{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Line:       line,
		Invocation: invocation,
	}
}
