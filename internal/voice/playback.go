package voice

import (
	"sync"
	"time"
)

// Scheduler tracks gapless playback of agent audio chunks. Each chunk is
// scheduled at a monotonically advancing cursor (never in the past), so
// chunks play back-to-back in arrival order. The Speaking flag is on from
// the first scheduled chunk until the last outstanding chunk finishes;
// completion is tracked by counting, not by wall-clock silence.
type Scheduler struct {
	mu          sync.Mutex
	now         func() time.Time
	nextStart   time.Time
	outstanding int
	timers      map[*time.Timer]struct{}
	onSpeaking  func(bool)
}

// NewScheduler creates a playback scheduler. onSpeaking, when non-nil, is
// called on every speaking-state edge.
func NewScheduler(onSpeaking func(bool)) *Scheduler {
	return &Scheduler{
		now:        time.Now,
		timers:     make(map[*time.Timer]struct{}),
		onSpeaking: onSpeaking,
	}
}

// Schedule books a chunk of the given duration and returns its start time.
func (s *Scheduler) Schedule(d time.Duration) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.nextStart.Before(now) {
		s.nextStart = now
	}
	start := s.nextStart
	s.nextStart = start.Add(d)

	if s.outstanding == 0 && s.onSpeaking != nil {
		s.onSpeaking(true)
	}
	s.outstanding++

	var timer *time.Timer
	timer = time.AfterFunc(s.nextStart.Sub(now), func() {
		s.complete(timer)
	})
	s.timers[timer] = struct{}{}
	return start
}

func (s *Scheduler) complete(timer *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.timers[timer]; !ok {
		return // cancelled
	}
	delete(s.timers, timer)
	s.outstanding--
	if s.outstanding == 0 && s.onSpeaking != nil {
		s.onSpeaking(false)
	}
}

// Speaking reports whether any scheduled chunk is still outstanding.
func (s *Scheduler) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding > 0
}

// Cancel drops every scheduled-but-unfinished chunk and silences the flag.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for t := range s.timers {
		t.Stop()
	}
	s.timers = make(map[*time.Timer]struct{})
	wasSpeaking := s.outstanding > 0
	s.outstanding = 0
	s.nextStart = time.Time{}
	if wasSpeaking && s.onSpeaking != nil {
		s.onSpeaking(false)
	}
}
