// Package audit provides write-only outcome recording for scheduler
// runs. A Sink is not a resumption mechanism: the scheduler keeps no
// durable state and never reads a Sink back to resume a run. A Sink
// exists purely so that what happened during a run — which nodes
// succeeded, which failed and why, which were skipped — survives after
// the in-memory Run is discarded.
package audit

import (
	"context"
	"time"
)

// Record is the terminal status of one outcome within one phase of one
// run. The orchestrator writes one Record per entry of a phase's
// outcome vector, so a node that produced several Results yields
// several Records.
type Record struct {
	// RunID identifies the orchestrator run this record belongs to.
	RunID string

	// Phase names the phase ("prepare", "init", "exec").
	Phase string

	// NodeID identifies the node for failed or skipped outcomes. For a
	// successful outcome the orchestrator stores the outcome's ResultID
	// here, since a successful Outcome carries no node id.
	NodeID string

	// Class is "succeeded", "failed", "skipped_failed" or
	// "skipped_cancelled".
	Class string

	// Cause is the error message, empty on success.
	Cause string

	// ResultCount is how many Results the record covers: 1 for a
	// successful outcome, 0 on failure.
	ResultCount int

	// RecordedAt is the timestamp the writer stamped on the record;
	// sinks store it as given.
	RecordedAt time.Time
}

// Sink persists Records for later inspection. Implementations must be
// safe for concurrent use. The orchestrator calls WriteBatch once per
// phase, after the phase's Run completes.
//
// Sink implementations never support reading records back into a Run;
// that would reintroduce the durable, resumable state the scheduler
// deliberately does not have.
type Sink interface {
	// Write persists one record. Implementations should not block the
	// caller on slow storage for long; buffer internally if needed and
	// flush eagerly.
	Write(ctx context.Context, rec Record) error

	// WriteBatch persists multiple records in order. Used by the
	// orchestrator to flush a phase's records in one call.
	WriteBatch(ctx context.Context, recs []Record) error

	// Close releases any resources held by the sink.
	Close() error
}
