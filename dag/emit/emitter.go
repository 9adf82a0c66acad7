// Package emit provides the observability surface the scheduler logs
// through: sorted-order summaries, node lifecycle, cancellation, and
// per-phase result-class tallies.
package emit

import "context"

// Emitter receives events from a phase run. Implementations must be
// non-blocking and safe for concurrent use: Emit is called from every
// worker goroutine in the Runner's pool.
type Emitter interface {
	// Emit sends a single event. Must not panic.
	Emit(event Event)

	// EmitBatch sends multiple events in declaration order. Returns an
	// error only on catastrophic failure (e.g. a closed sink); individual
	// event delivery failures should be swallowed and logged internally.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until any buffered events have been delivered.
	Flush(ctx context.Context) error
}
