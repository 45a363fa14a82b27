package engine

// TraceEvent describes one completed invocation: the monotonic sequence
// number, the run token, the action id, the instruction index and
// sub-run depth it ran at, and the flags it returned. Panicking
// invocations report Fail.
type TraceEvent struct {
	Seq    int64
	Token  string
	Action string
	Index  int
	Depth  int
	Flags  Flags
}

// TraceFunc receives trace events. It runs on the invoking goroutine,
// so it must be cheap and must not call back into the engine.
type TraceFunc func(TraceEvent)
