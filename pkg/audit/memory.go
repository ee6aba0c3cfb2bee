package audit

import "sync"

// MemoryLogger keeps events in memory. It backs tests and ephemeral tooling
// where a durable trail is not required.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryLogger creates an empty in-memory audit sink.
func NewMemoryLogger() *MemoryLogger {
	return &MemoryLogger{}
}

// Log appends the event.
func (l *MemoryLogger) Log(event Event) error {
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

// Query returns matching events in insertion order. limit <= 0 means no
// limit.
func (l *MemoryLogger) Query(filter Filter, limit int) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Event
	for _, e := range l.events {
		if !filter.matches(e) {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// Events returns a copy of everything logged so far.
func (l *MemoryLogger) Events() []Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Event, len(l.events))
	copy(out, l.events)
	return out
}

var _ Logger = (*MemoryLogger)(nil)
