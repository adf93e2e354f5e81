package executor

import (
	"sync"
	"time"
)

// ticketTable suppresses duplicate action dispatch. A ticket is taken when
// an action starts and stays valid for the dedupe window; a second dispatch
// of the same action inside the window is rejected. Tickets are not
// released on completion, so a rapid re-send of the same action (typically
// a server retry) stays suppressed until the window expires.
type ticketTable struct {
	mu     sync.Mutex
	window time.Duration
	active map[string]time.Time

	// now is swappable for tests.
	now func() time.Time
}

func newTicketTable(window time.Duration) *ticketTable {
	return &ticketTable{
		window: window,
		active: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Begin takes a ticket for key. It returns false when an unexpired ticket
// for the same key already exists.
func (t *ticketTable) Begin(key string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	for k, taken := range t.active {
		if now.Sub(taken) >= t.window {
			delete(t.active, k)
		}
	}

	if _, exists := t.active[key]; exists {
		return false
	}
	t.active[key] = now
	return true
}

// Reset drops every ticket. Launching an app lands on a new screen, so
// suppression history from the previous screen no longer applies.
func (t *ticketTable) Reset() {
	t.mu.Lock()
	t.active = make(map[string]time.Time)
	t.mu.Unlock()
}

// Len returns the number of live tickets (expired ones included until the
// next Begin prunes them).
func (t *ticketTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}
