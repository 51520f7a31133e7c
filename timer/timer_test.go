package timer

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestAfterFiresOnce(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Int32
	s.After(30*time.Millisecond, func() {
		fired.Add(1)
	})

	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 1 {
		t.Errorf("one-shot task fired %d times, want 1", got)
	}
}

func TestAfterOrdering(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	order := make(chan int, 2)
	s.After(80*time.Millisecond, func() { order <- 2 })
	s.After(30*time.Millisecond, func() { order <- 1 })

	first := <-order
	second := <-order
	if first != 1 || second != 2 {
		t.Errorf("tasks fired in order %d,%d, want 1,2", first, second)
	}
}

func TestCancelPreventsFiring(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Int32
	id := s.After(60*time.Millisecond, func() {
		fired.Add(1)
	})

	if !s.Cancel(id) {
		t.Fatal("Cancel returned false for a scheduled task")
	}
	if s.Cancel(id) {
		t.Error("second Cancel returned true for the same id")
	}

	time.Sleep(150 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("cancelled task fired %d times", got)
	}
}

func TestEveryRepeats(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var fired atomic.Int32
	id := s.Every(40*time.Millisecond, func() {
		fired.Add(1)
	})

	time.Sleep(220 * time.Millisecond)
	s.Cancel(id)

	if got := fired.Load(); got < 2 {
		t.Errorf("repeating task fired %d times, want at least 2", got)
	}

	// Let any callback collected before the Cancel finish.
	time.Sleep(30 * time.Millisecond)
	settled := fired.Load()
	time.Sleep(100 * time.Millisecond)
	if got := fired.Load(); got != settled {
		t.Errorf("task kept firing after Cancel: %d -> %d", settled, got)
	}
}

func TestStopDropsPending(t *testing.T) {
	s := NewScheduler()

	var fired atomic.Int32
	s.After(50*time.Millisecond, func() {
		fired.Add(1)
	})
	s.Stop()
	s.Stop() // idempotent

	time.Sleep(120 * time.Millisecond)
	if got := fired.Load(); got != 0 {
		t.Errorf("task fired %d times after Stop", got)
	}
}
