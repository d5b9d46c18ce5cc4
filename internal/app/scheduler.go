package app

import (
	"sync"
	"time"
)

// scheduler arms one-shot broadcast timers keyed by quiz id. Re-scheduling an
// armed quiz supersedes the previous timer: the latest call wins, and the
// fan-out reads whatever correct option is current when the timer fires.
type scheduler struct {
	delay time.Duration
	fire  func(quizID int64)

	mu     sync.Mutex
	timers map[int64]*time.Timer
}

func newScheduler(delay time.Duration, fire func(quizID int64)) *scheduler {
	return &scheduler{
		delay:  delay,
		fire:   fire,
		timers: make(map[int64]*time.Timer),
	}
}

// Schedule arms (or re-arms) the broadcast timer for a quiz.
func (s *scheduler) Schedule(quizID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[quizID]; ok {
		t.Stop()
	}
	s.timers[quizID] = time.AfterFunc(s.delay, func() {
		s.mu.Lock()
		delete(s.timers, quizID)
		s.mu.Unlock()
		s.fire(quizID)
	})
}

// Pending reports whether a timer is currently armed for the quiz.
func (s *scheduler) Pending(quizID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[quizID]
	return ok
}

// StopAll cancels every armed timer; used on shutdown.
func (s *scheduler) StopAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}
