package proxy

import (
	"sync"
	"time"

	"github.com/Ruscigno/astroscraper/models"
)

// SelectionTTL is how long a confirmed proxy stays trusted before a fresh
// probe is required.
const SelectionTTL = 30 * time.Minute

// Session is the shared per-session proxy state handed to the fetcher and
// the prober. Writes are idempotent last-writer-wins; a stale overwrite is
// harmless.
type Session struct {
	mu      sync.RWMutex
	current *models.ProxySelection
	now     func() time.Time
}

// NewSession returns an empty session with no confirmed proxy.
func NewSession() *Session {
	return &Session{now: time.Now}
}

// Current returns the confirmed selection, or nil if none is set or the
// selection has aged past SelectionTTL.
func (s *Session) Current() *models.ProxySelection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.current == nil {
		return nil
	}
	if s.now().Sub(s.current.ConfirmedAt) >= SelectionTTL {
		return nil
	}
	sel := *s.current
	return &sel
}

// Confirm records sel as the session's working proxy.
func (s *Session) Confirm(sel models.ProxySelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = &sel
}

// Clear drops the confirmed selection, forcing the next run to re-probe.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
}
