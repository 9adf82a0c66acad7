package emit

import (
	"context"
	"sync"
)

// BufferedEmitter stores events in memory, grouped by RunID, for tests
// and interactive debugging that want to assert on emitted events after
// a phase run completes.
type BufferedEmitter struct {
	mu     sync.RWMutex
	events map[string][]Event
}

// NewBufferedEmitter returns an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{events: make(map[string][]Event)}
}

// Emit appends event under its RunID.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events[event.RunID] = append(b.events[event.RunID], event)
}

// EmitBatch appends events in order.
func (b *BufferedEmitter) EmitBatch(_ context.Context, events []Event) error {
	for _, e := range events {
		b.Emit(e)
	}
	return nil
}

// Flush is a no-op: BufferedEmitter never defers delivery.
func (b *BufferedEmitter) Flush(_ context.Context) error { return nil }

// History returns a copy of the events recorded for runID, in emission
// order. Returns an empty slice (never nil) if none were recorded.
func (b *BufferedEmitter) History(runID string) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	events := b.events[runID]
	result := make([]Event, len(events))
	copy(result, events)
	return result
}

// Clear drops recorded events for runID, or all events if runID is empty.
func (b *BufferedEmitter) Clear(runID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if runID == "" {
		b.events = make(map[string][]Event)
		return
	}
	delete(b.events, runID)
}
