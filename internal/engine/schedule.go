package engine

import (
	"context"
	"sync"
	"time"
)

// Scheduler queues deferred work on a logical timeline the host pumps.
// Nothing fires on its own: Advance moves logical time forward and runs
// whatever came due, so tests control time exactly and real hosts pump
// from whatever tick source they have.
type Scheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int64
	tasks []*task
}

type task struct {
	due time.Duration
	seq int64
	fn  func()
}

// NewScheduler returns an empty scheduler at logical time zero.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// After queues fn to run once d of logical time has elapsed. Negative
// delays are treated as zero.
func (s *Scheduler) After(d time.Duration, fn func()) {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.tasks = append(s.tasks, &task{due: s.now + d, seq: s.seq, fn: fn})
}

// Pending returns the number of queued tasks.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// Now returns the current logical time.
func (s *Scheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Advance moves logical time forward by d and runs every task that came
// due, earliest deadline first and FIFO within a deadline. Tasks queued
// while advancing run in the same call if their deadline is within the
// new time. Returns the number of tasks fired.
func (s *Scheduler) Advance(d time.Duration) int {
	if d < 0 {
		d = 0
	}
	s.mu.Lock()
	s.now += d
	fired := 0
	for {
		i := s.nextDueLocked()
		if i < 0 {
			break
		}
		t := s.tasks[i]
		s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
		s.mu.Unlock()
		t.fn()
		fired++
		s.mu.Lock()
	}
	s.mu.Unlock()
	return fired
}

// nextDueLocked picks the due task with the earliest (deadline, seq)
// pair, or -1 when nothing is due.
func (s *Scheduler) nextDueLocked() int {
	best := -1
	for i, t := range s.tasks {
		if t.due > s.now {
			continue
		}
		if best < 0 || t.due < s.tasks[best].due || (t.due == s.tasks[best].due && t.seq < s.tasks[best].seq) {
			best = i
		}
	}
	return best
}

// Drain pumps the scheduler against wall time until it empties or ctx
// is done, advancing logical time by step per tick. Hosts without their
// own frame loop use this to let delayed continuations finish.
func (s *Scheduler) Drain(ctx context.Context, step time.Duration) error {
	if step <= 0 {
		step = 50 * time.Millisecond
	}
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for {
		if s.Pending() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Advance(step)
		}
	}
}
