// Package mode holds the learner's choice between learn and recap.
package mode

import (
	"sync"

	"github.com/conorfennell/knolstudy/internal/domain"
)

// Listener is called after the selected mode changes.
type Listener func(from, to domain.Mode)

type subscription struct {
	id int
	fn Listener
}

// Selector holds exactly one active mode and notifies listeners, in
// subscription order, when it changes. The zero value is ready to use and
// starts in domain.Learn.
type Selector struct {
	mu        sync.Mutex
	current   domain.Mode
	nextID    int
	listeners []subscription
}

// NewSelector returns a Selector starting in the given mode.
// An invalid initial mode falls back to domain.Learn.
func NewSelector(initial domain.Mode) *Selector {
	s := &Selector{}
	if initial.Valid() {
		s.current = initial
	}
	return s
}

// Current returns the active mode.
func (s *Selector) Current() domain.Mode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentLocked()
}

// Select makes m the active mode. Selecting the mode that is already active
// does nothing and notifies nobody. It reports whether the mode changed.
func (s *Selector) Select(m domain.Mode) (bool, error) {
	if !m.Valid() {
		_, err := domain.ParseMode(string(m))
		return false, err
	}
	_, changed := s.change(func(domain.Mode) domain.Mode { return m })
	return changed, nil
}

// Toggle switches to the other mode and returns it. The read and the switch
// happen under one lock, so concurrent toggles each take effect.
func (s *Selector) Toggle() domain.Mode {
	to, _ := s.change(domain.Mode.Opposite)
	return to
}

// Subscribe registers l and returns a function that removes it.
func (s *Selector) Subscribe(l Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners = append(s.listeners, subscription{id: id, fn: l})
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.listeners {
			if sub.id == id {
				s.listeners = append(s.listeners[:i:i], s.listeners[i+1:]...)
				return
			}
		}
	}
}

// change moves to next(current) and notifies listeners outside the lock so
// they may call back into the Selector.
func (s *Selector) change(next func(domain.Mode) domain.Mode) (domain.Mode, bool) {
	s.mu.Lock()
	from := s.currentLocked()
	to := next(from)
	if to == from {
		s.mu.Unlock()
		return to, false
	}
	s.current = to
	listeners := make([]Listener, len(s.listeners))
	for i, sub := range s.listeners {
		listeners[i] = sub.fn
	}
	s.mu.Unlock()

	for _, l := range listeners {
		l(from, to)
	}
	return to, true
}

func (s *Selector) currentLocked() domain.Mode {
	if s.current == "" {
		return domain.Learn
	}
	return s.current
}
