package backend

import (
	"errors"
	"fmt"
)

type releaseStep struct {
	name string
	fn   func() error
}

// ReleaseStack records vendor objects as they are acquired and releases them
// in reverse order. Each step runs at most once, so Release is safe on a
// partially built session and on repeated calls.
type ReleaseStack struct {
	steps []releaseStep
}

// Push records a release function for an object that was just acquired.
func (s *ReleaseStack) Push(name string, fn func() error) {
	s.steps = append(s.steps, releaseStep{name: name, fn: fn})
}

// Len returns the number of objects still held.
func (s *ReleaseStack) Len() int {
	return len(s.steps)
}

// Names returns the held objects in acquisition order.
func (s *ReleaseStack) Names() []string {
	names := make([]string, len(s.steps))
	for i, st := range s.steps {
		names[i] = st.name
	}
	return names
}

// Release unwinds everything held, last acquired first. Failures do not stop
// the unwind; they are joined into the returned error.
func (s *ReleaseStack) Release() error {
	var errs []error
	for len(s.steps) > 0 {
		last := s.steps[len(s.steps)-1]
		s.steps = s.steps[:len(s.steps)-1]
		if err := last.fn(); err != nil {
			errs = append(errs, fmt.Errorf("releasing %s: %w", last.name, err))
		}
	}
	return errors.Join(errs...)
}
