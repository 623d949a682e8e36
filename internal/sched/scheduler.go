// Package sched runs deferred one-shot tasks with explicit cancellation.
// Detectors use it for challenge timeouts, raid-mode rechecks and warning
// resets; a cancelled handle guarantees the task body never runs.
package sched

import (
	"sync"
	"time"
)

type Handle struct {
	timer     *time.Timer
	sched     *Scheduler
	mu        sync.Mutex
	done      bool
	cancelled bool
}

// Cancel stops the task if it has not started and releases the handle
// from the scheduler's pending set. Returns true when the task body is
// guaranteed not to run.
func (h *Handle) Cancel() bool {
	h.mu.Lock()
	if h.done || h.cancelled {
		cancelled := h.cancelled
		h.mu.Unlock()
		return cancelled
	}
	h.cancelled = true
	h.timer.Stop()
	h.mu.Unlock()

	if h.sched != nil {
		h.sched.mu.Lock()
		delete(h.sched.pending, h)
		h.sched.mu.Unlock()
	}
	return true
}

type Scheduler struct {
	mu      sync.Mutex
	pending map[*Handle]struct{}
	closed  bool
}

func New() *Scheduler {
	return &Scheduler{
		pending: make(map[*Handle]struct{}),
	}
}

// Schedule runs fn once after delay. The returned handle cancels it.
func (s *Scheduler) Schedule(delay time.Duration, fn func()) *Handle {
	h := &Handle{sched: s}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		h.cancelled = true
		return h
	}
	s.pending[h] = struct{}{}
	s.mu.Unlock()

	h.timer = time.AfterFunc(delay, func() {
		h.mu.Lock()
		if h.cancelled {
			h.mu.Unlock()
			return
		}
		h.done = true
		h.mu.Unlock()

		s.mu.Lock()
		delete(s.pending, h)
		s.mu.Unlock()

		fn()
	})

	return h
}

// Close cancels everything still pending. New schedules become no-ops.
func (s *Scheduler) Close() {
	s.mu.Lock()
	s.closed = true
	handles := make([]*Handle, 0, len(s.pending))
	for h := range s.pending {
		handles = append(handles, h)
	}
	s.pending = make(map[*Handle]struct{})
	s.mu.Unlock()

	for _, h := range handles {
		h.Cancel()
	}
}

// PendingCount reports outstanding tasks, for health reporting.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
