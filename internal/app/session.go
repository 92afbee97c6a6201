package app

import (
	"sync"

	"mission-quiz-service/internal/domain"
	"mission-quiz-service/internal/engine"
)

// Session pairs a running attempt with the subscribers watching it.
type Session struct {
	attempt *engine.Attempt

	mu          sync.RWMutex
	last        domain.Snapshot
	subscribers map[chan domain.Snapshot]struct{}
}

func newSession() *Session {
	return &Session{subscribers: make(map[chan domain.Snapshot]struct{})}
}

// NewSession wraps an already constructed attempt; used by stores seeding sessions in tests.
func NewSession(a *engine.Attempt) *Session {
	s := newSession()
	s.bind(a)
	return s
}

func (s *Session) bind(a *engine.Attempt) {
	snap := a.Snapshot()
	s.mu.Lock()
	s.attempt = a
	s.last = snap
	s.mu.Unlock()
}

// ID returns the attempt ID.
func (s *Session) ID() string { return s.attempt.ID() }

// Attempt exposes the underlying engine attempt.
func (s *Session) Attempt() *engine.Attempt { return s.attempt }

// Last returns the most recently published snapshot.
func (s *Session) Last() domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// publish is the attempt observer. It runs under the attempt lock, so it never blocks.
func (s *Session) publish(snap domain.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = snap
	for ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
			// Drop the stale snapshot so slow clients always see the latest state.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func (s *Session) subscribe() (<-chan domain.Snapshot, func()) {
	ch := make(chan domain.Snapshot, 8)

	s.mu.Lock()
	s.subscribers[ch] = struct{}{}
	ch <- s.last
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if _, ok := s.subscribers[ch]; ok {
			delete(s.subscribers, ch)
			close(ch)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// closeSubscribers ends every subscription; used when the attempt is dropped.
func (s *Session) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subscribers {
		delete(s.subscribers, ch)
		close(ch)
	}
}

// Subscribers reports the number of live subscriptions.
func (s *Session) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subscribers)
}
