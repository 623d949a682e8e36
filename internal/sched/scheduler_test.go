package sched

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduleFires(t *testing.T) {
	s := New()
	defer s.Close()

	fired := make(chan struct{})
	s.Schedule(5*time.Millisecond, func() { close(fired) })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("task never fired")
	}

	if s.PendingCount() != 0 {
		t.Errorf("PendingCount after fire = %d, want 0", s.PendingCount())
	}
}

func TestCancelPreventsRun(t *testing.T) {
	s := New()
	defer s.Close()

	var ran atomic.Bool
	h := s.Schedule(20*time.Millisecond, func() { ran.Store(true) })

	if !h.Cancel() {
		t.Fatal("Cancel returned false for a pending task")
	}

	time.Sleep(60 * time.Millisecond)
	if ran.Load() {
		t.Error("cancelled task still ran")
	}
}

func TestCancelReleasesPending(t *testing.T) {
	s := New()
	defer s.Close()

	handles := make([]*Handle, 0, 1000)
	for i := 0; i < 1000; i++ {
		handles = append(handles, s.Schedule(time.Hour, func() {}))
	}
	for _, h := range handles {
		h.Cancel()
	}

	if got := s.PendingCount(); got != 0 {
		t.Errorf("PendingCount after cancelling every task = %d, want 0", got)
	}
}

func TestCancelAfterFire(t *testing.T) {
	s := New()
	defer s.Close()

	fired := make(chan struct{})
	h := s.Schedule(time.Millisecond, func() { close(fired) })
	<-fired

	if h.Cancel() {
		t.Error("Cancel claimed to stop a task that already ran")
	}
}

func TestCloseCancelsPending(t *testing.T) {
	s := New()

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		s.Schedule(30*time.Millisecond, func() { ran.Add(1) })
	}
	s.Close()

	time.Sleep(80 * time.Millisecond)
	if got := ran.Load(); got != 0 {
		t.Errorf("%d tasks ran after Close", got)
	}

	// Scheduling after close is a no-op.
	h := s.Schedule(time.Millisecond, func() { ran.Add(1) })
	time.Sleep(20 * time.Millisecond)
	if ran.Load() != 0 {
		t.Error("task scheduled after Close ran")
	}
	_ = h
}
