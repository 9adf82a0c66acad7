package dag

import (
	"context"

	"github.com/dshills/dagflow/dag/emit"
)

// Scheduler runs a fixed Graph's Operation, phase after phase, applying
// the same Options to each Run. Graphs are immutable and a Scheduler
// holds no state between phases: each RunPhase call starts a fresh
// Run with its own cancellation flag and worker pool, per the
// phase-independence invariant.
type Scheduler struct {
	graph *Graph
	opts  Options
}

// New constructs a Scheduler over graph. Pass functional Options to
// override defaults (Parallelism: 1, Emitter: a NullEmitter).
func New(graph *Graph, options ...Option) *Scheduler {
	base := Options{Parallelism: 1}
	opts := resolveOptions(base, options...)
	if opts.Emitter == nil {
		opts.Emitter = emit.NewNullEmitter()
	}
	return &Scheduler{graph: graph, opts: opts}
}

// NewPhaseRun constructs a fresh Run for one phase of this Scheduler's
// graph, tagging emitted events with runID and phase. The caller must
// call Execute to drive it, and may call Cancel concurrently from
// another goroutine to request cooperative cancellation.
func (s *Scheduler) NewPhaseRun(op Operation, runID, phase string) *Run {
	opts := []RunOption{WithRunID(runID), WithPhase(phase)}
	if s.opts.Metrics != nil {
		opts = append(opts, WithMetrics(s.opts.Metrics))
	}
	return NewRun(s.graph, op, s.opts.Emitter, s.opts.Parallelism, opts...)
}

// RunPhase is a convenience wrapper for callers that don't need to
// cancel mid-phase: it constructs a Run and drives it to completion.
// The returned error is non-nil only for a structural MissingResult
// failure (see Run.Execute); it is never set for an ordinary node
// failure, which is instead reported per-outcome in the returned slice.
func (s *Scheduler) RunPhase(ctx context.Context, op Operation, runID, phase string) ([]Outcome, error) {
	return s.NewPhaseRun(op, runID, phase).Execute(ctx)
}
