package reports

import (
	"sync"

	"inventory_reports/platform/apperr"
)

// Selector holds the currently chosen output format. It does no I/O.
type Selector struct {
	mu      sync.RWMutex
	current Format
}

// NewSelector creates a selector starting at initial, or pdf when initial is invalid.
func NewSelector(initial Format) *Selector {
	if !initial.Valid() {
		initial = FormatPDF
	}
	return &Selector{current: initial}
}

// Get returns the current format.
func (s *Selector) Get() Format {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Set changes the current format. Unsupported values are rejected and the
// current format is left unchanged.
func (s *Selector) Set(f Format) error {
	if !f.Valid() {
		return apperr.InvalidFormat(string(f)).WithOp("selector.set")
	}
	s.mu.Lock()
	s.current = f
	s.mu.Unlock()
	return nil
}

// SetToken parses token and sets it.
func (s *Selector) SetToken(token string) error {
	f, err := ParseFormat(token)
	if err != nil {
		return err
	}
	return s.Set(f)
}
