// Package session holds what the user is looking at while monitoring a device:
// a short trailing window of values for the chart and the full history log.
package session

import (
	"sync"

	"github.com/mlsorensen/bleframe"
)

// DefaultWindow is the number of prior values kept next to the current one.
const DefaultWindow = 4

// Session is safe for concurrent use.
type Session struct {
	mu      sync.RWMutex
	prior   []float64 // oldest first
	current float64
	history []bleframe.Measurement // newest first
}

// New creates a session keeping window prior values. window < 1 uses DefaultWindow.
func New(window int) *Session {
	if window < 1 {
		window = DefaultWindow
	}
	return &Session{prior: make([]float64, window)}
}

// Record makes m the current value, shifts the previous current value into the
// window and prepends m to the history.
func (s *Session) Record(m bleframe.Measurement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.prior, s.prior[1:])
	s.prior[len(s.prior)-1] = s.current
	s.current = m.Value

	s.history = append(s.history, bleframe.Measurement{})
	copy(s.history[1:], s.history)
	s.history[0] = m
}

// Window returns the prior values, oldest first, followed by the current value.
func (s *Session) Window() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]float64, 0, len(s.prior)+1)
	out = append(out, s.prior...)
	return append(out, s.current)
}

// Current is the most recent value, or 0 before anything was recorded.
func (s *Session) Current() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Bound is the largest absolute value in the window, used to scale a chart
// symmetrically around zero.
func (s *Session) Bound() float64 {
	var b float64
	for _, v := range s.Window() {
		if v < 0 {
			v = -v
		}
		if v > b {
			b = v
		}
	}
	return b
}

// History returns a copy of the history log, newest first.
func (s *Session) History() []bleframe.Measurement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]bleframe.Measurement(nil), s.history...)
}

// Len is the number of history entries.
func (s *Session) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.history)
}

// Wipe zeroes the window and clears the history.
func (s *Session) Wipe() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.prior {
		s.prior[i] = 0
	}
	s.current = 0
	s.history = nil
}
