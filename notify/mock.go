package notify

import (
	"context"
	"sync"
)

// Mock records sent events for tests. Err, when set, is returned from every
// Send to exercise failure absorption.
type Mock struct {
	mu     sync.Mutex
	events []Event

	Err error
}

func (m *Mock) Send(_ context.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.Err
}

// Events returns a snapshot of everything sent so far.
func (m *Mock) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}

// OfKind returns the sent events with the given kind.
func (m *Mock) OfKind(kind EventKind) []Event {
	var out []Event
	for _, ev := range m.Events() {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}
