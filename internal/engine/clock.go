package engine

import "sync/atomic"

// Clock issues the monotonically increasing sequence numbers stamped on
// trace events. A fresh Clock starts at zero; the first tick is 1.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a Clock starting at zero.
func NewClock() *Clock {
	return &Clock{}
}

// Tick returns the next sequence number.
func (c *Clock) Tick() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
