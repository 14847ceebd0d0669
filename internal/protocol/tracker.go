package protocol

import "sync"

// Tracker remembers the current job per kind and filters notifications
// from superseded jobs.
type Tracker struct {
	mu      sync.Mutex
	current map[JobKind]string
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{current: make(map[JobKind]string)}
}

// Begin makes id the current job for kind.
func (t *Tracker) Begin(kind JobKind, id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.current[kind] = id
}

// Current returns the current job id for kind.
func (t *Tracker) Current(kind JobKind) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[kind]
}

// Accept reports whether n should be delivered. Notifications without an
// id are always accepted; others must match the current job of their kind.
// Accept never changes the tracked state.
func (t *Tracker) Accept(n Notification) bool {
	id := n.JobID()
	if id == "" {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[n.JobKind()] == id
}
