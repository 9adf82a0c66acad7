package audit

import (
	"context"
	"sync"
)

// MemSink is an in-memory Sink. Designed for tests and short-lived
// runs where records only need to survive past the Run object, not
// past the process.
type MemSink struct {
	mu      sync.RWMutex
	records map[string][]Record // runID -> records, in write order
}

// NewMemSink returns an empty MemSink.
func NewMemSink() *MemSink {
	return &MemSink{records: make(map[string][]Record)}
}

func (m *MemSink) Write(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[rec.RunID] = append(m.records[rec.RunID], rec)
	return nil
}

func (m *MemSink) WriteBatch(ctx context.Context, recs []Record) error {
	for _, rec := range recs {
		if err := m.Write(ctx, rec); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemSink) Close() error { return nil }

// Records returns a copy of every record written for runID, in write
// order. Returns an empty slice (never nil) if none were recorded.
func (m *MemSink) Records(runID string) []Record {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.records[runID]
	out := make([]Record, len(recs))
	copy(out, recs)
	return out
}
