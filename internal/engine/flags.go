package engine

import "strings"

// Flags is the bitset every native action returns. The three axes are
// orthogonal: success/fail, stop/continue, dispose/no-dispose. The zero
// value of each axis has a named alias so handlers read as prose:
//
//	return engine.Success | engine.Stop | engine.Dispose
//	return engine.Fail
//
// Stop ends the entire enclosing run immediately, including every block
// that reached the current instruction through a sub-run. Ordinary
// control-flow jumps do not use Stop: they mutate Context.Index and
// return Success, letting the loop's own increment step past the skipped
// region. On a Stop, the Dispose bit decides whether the run's memory is
// released at that boundary; Stop|NoDispose hands the memory to a
// scheduled continuation.
type Flags uint8

const (
	Fail      Flags = 0
	Continue  Flags = 0
	NoDispose Flags = 0

	Success Flags = 1 << 0
	Stop    Flags = 1 << 1
	Dispose Flags = 1 << 2
)

// Succeeded reports whether the Success bit is set.
func (f Flags) Succeeded() bool { return f&Success != 0 }

// Stopped reports whether the Stop bit is set.
func (f Flags) Stopped() bool { return f&Stop != 0 }

// Disposed reports whether the Dispose bit is set.
func (f Flags) Disposed() bool { return f&Dispose != 0 }

// String renders the set bits, or "fail" for the zero value.
func (f Flags) String() string {
	if f == 0 {
		return "fail"
	}
	parts := make([]string, 0, 3)
	if f.Succeeded() {
		parts = append(parts, "success")
	} else {
		parts = append(parts, "fail")
	}
	if f.Stopped() {
		parts = append(parts, "stop")
	}
	if f.Disposed() {
		parts = append(parts, "dispose")
	}
	return strings.Join(parts, "|")
}
