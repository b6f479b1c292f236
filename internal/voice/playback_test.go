package voice

import (
	"sync"
	"testing"
	"time"
)

type speakingLog struct {
	mu     sync.Mutex
	states []bool
}

func (l *speakingLog) record(b bool) {
	l.mu.Lock()
	l.states = append(l.states, b)
	l.mu.Unlock()
}

func (l *speakingLog) snapshot() []bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]bool(nil), l.states...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestSchedulerSpeakingLifecycle(t *testing.T) {
	log := &speakingLog{}
	s := NewScheduler(log.record)

	s.Schedule(10 * time.Millisecond)
	s.Schedule(10 * time.Millisecond)
	if !s.Speaking() {
		t.Fatal("expected speaking while chunks outstanding")
	}

	waitFor(t, func() bool { return !s.Speaking() })

	states := log.snapshot()
	// One on-edge and one off-edge, regardless of chunk count.
	if len(states) != 2 || !states[0] || states[1] {
		t.Errorf("speaking edges = %v", states)
	}
}

func TestSchedulerGaplessCursor(t *testing.T) {
	s := NewScheduler(nil)

	first := s.Schedule(50 * time.Millisecond)
	second := s.Schedule(30 * time.Millisecond)

	if got := second.Sub(first); got != 50*time.Millisecond {
		t.Errorf("second chunk starts %v after first, want 50ms", got)
	}

	// The cursor never moves backwards even after a pause.
	third := s.Schedule(10 * time.Millisecond)
	if third.Before(second.Add(30 * time.Millisecond)) {
		t.Error("third chunk scheduled before second finishes")
	}
}

func TestSchedulerCancel(t *testing.T) {
	log := &speakingLog{}
	s := NewScheduler(log.record)

	s.Schedule(time.Hour)
	s.Schedule(time.Hour)
	s.Cancel()

	if s.Speaking() {
		t.Error("cancel must silence the speaking flag")
	}

	// Cancelled timers must not fire a stale off-edge later.
	time.Sleep(20 * time.Millisecond)
	states := log.snapshot()
	if len(states) != 2 || !states[0] || states[1] {
		t.Errorf("speaking edges = %v", states)
	}

	t.Run("idempotent", func(t *testing.T) {
		s.Cancel()
		if got := log.snapshot(); len(got) != 2 {
			t.Errorf("second cancel emitted extra edges: %v", got)
		}
	})
}
