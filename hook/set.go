package hook

import (
	"errors"
	"slices"
	"sync"
)

// Set tracks a group of hooks so they can be removed together.
type Set struct {
	mu      sync.Mutex
	hookers []*Hooker
}

// Add records h. Nil hookers are ignored so that Add(Hook(...)) style
// call sites need no extra check.
func (s *Set) Add(h *Hooker) *Hooker {
	if h == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hookers = append(s.hookers, h)
	return h
}

// Len returns the number of hooks still tracked.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hookers)
}

// Hookers returns the tracked hooks in installation order.
func (s *Set) Hookers() []*Hooker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.hookers)
}

// UnhookAll removes every tracked hook, newest first. Hooks that fail to
// unhook stay tracked; their errors are joined.
func (s *Set) UnhookAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	var kept []*Hooker
	for i := len(s.hookers) - 1; i >= 0; i-- {
		h := s.hookers[i]
		if !h.Active() {
			continue
		}
		if err := h.Unhook(); err != nil {
			errs = append(errs, err)
			kept = append(kept, h)
		}
	}
	slices.Reverse(kept)
	s.hookers = kept
	return errors.Join(errs...)
}
