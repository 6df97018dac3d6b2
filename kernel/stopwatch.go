package kernel

import (
	"errors"
	"sync"
	"time"
)

var (
	// ErrSectionNotOpen is returned when stopping a section that was never opened.
	ErrSectionNotOpen = errors.New("kernel: stopwatch section not open")

	// ErrSectionStopped is returned when stopping a section twice.
	ErrSectionStopped = errors.New("kernel: stopwatch section already stopped")
)

// Section is a timed span of one request's lifecycle.
type Section struct {
	ID       string
	Started  time.Time
	Duration time.Duration
	Open     bool
}

// Stopwatch times request sections. It is safe for concurrent use.
type Stopwatch struct {
	mu       sync.Mutex
	sections map[string]*Section
	now      func() time.Time
}

// NewStopwatch creates a stopwatch using the wall clock.
func NewStopwatch() *Stopwatch {
	return &Stopwatch{
		sections: make(map[string]*Section),
		now:      time.Now,
	}
}

// OpenSection starts or reopens the section id. Reopening keeps the
// accumulated duration.
func (s *Stopwatch) OpenSection(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.sections[id]
	if !ok {
		sec = &Section{ID: id}
		s.sections[id] = sec
	}
	if !sec.Open {
		sec.Started = s.now()
		sec.Open = true
	}
}

// StopSection closes the section id.
func (s *Stopwatch) StopSection(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.sections[id]
	if !ok {
		return ErrSectionNotOpen
	}
	if !sec.Open {
		return ErrSectionStopped
	}
	sec.Duration += s.now().Sub(sec.Started)
	sec.Open = false
	return nil
}

// Section returns a copy of the section id.
func (s *Stopwatch) Section(id string) (Section, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, ok := s.sections[id]
	if !ok {
		return Section{}, false
	}
	return *sec, true
}

// Forget drops the section id.
func (s *Stopwatch) Forget(id string) {
	s.mu.Lock()
	delete(s.sections, id)
	s.mu.Unlock()
}
