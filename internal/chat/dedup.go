// Package chat – duplicate suppression window
//
// A Window remembers recently rendered message fingerprints for a bounded
// interval so that a record delivered twice (history overlap, broker
// replay, reconnect) is rendered exactly once. Entries expire after the
// TTL; lookups also check the recorded timestamp so an injected clock can
// drive expiry deterministically in tests.
package chat

import (
	"sync"
	"time"

	"github.com/racetowin/paddock-backend/internal/domain"
)

// Window tracks message fingerprints seen within a sliding TTL.
// The zero value is not usable; construct with NewWindow.
type Window struct {
	ttl time.Duration
	now func() time.Time

	mu   sync.Mutex
	seen map[string]time.Time
}

// NewWindow returns a Window that suppresses duplicates for ttl.
func NewWindow(ttl time.Duration) *Window {
	return &Window{
		ttl:  ttl,
		now:  time.Now,
		seen: make(map[string]time.Time),
	}
}

// ShouldRender reports whether m has not been seen within the TTL and,
// if so, records its fingerprint. Callers render the message exactly
// when it returns true.
func (w *Window) ShouldRender(m *domain.Message) bool {
	fp := m.Fingerprint()
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()
	if at, ok := w.seen[fp]; ok && now.Sub(at) < w.ttl {
		return false
	}
	w.seen[fp] = now

	// Scheduled removal keeps the map bounded between lookups. The guard
	// on the recorded time avoids deleting a newer re-insertion.
	time.AfterFunc(w.ttl, func() {
		w.mu.Lock()
		if at, ok := w.seen[fp]; ok && at.Equal(now) {
			delete(w.seen, fp)
		}
		w.mu.Unlock()
	})
	return true
}

// Clear drops every tracked fingerprint. Called on room switches so a
// message legitimately re-delivered in the new room is not suppressed by
// state from the old one.
func (w *Window) Clear() {
	w.mu.Lock()
	w.seen = make(map[string]time.Time)
	w.mu.Unlock()
}

// Len reports the number of fingerprints currently tracked.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.seen)
}
