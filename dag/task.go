package dag

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dshills/dagflow/dag/emit"
)

// task is the lazily-evaluated, memoized computation of one node within
// a single Run. Its sync.Once guarantees the node's Operation executes
// at most once even when several downstream nodes fan in to it
// concurrently: every caller of resolve blocks on the same Once and
// observes the same outcomes.
type task struct {
	node Node

	once     sync.Once
	outcomes []Outcome
	err      error
}

// resolve evaluates the node if it has not been evaluated yet, and
// otherwise waits for the in-flight or completed evaluation. err is
// non-nil for PredecessorFailedError, CancelledError and
// OperationError, or for *MissingResultError when C2 cannot locate a
// predecessor's promised result — the latter is a structural error that
// propagates unchanged rather than being wrapped, so the run aborts
// through Run.abort instead of surfacing as this node's own failure.
// outcomes is always the full set of this node's produced results, one
// per Result its Operation returned (empty on failure).
func (t *task) resolve(ctx context.Context, r *Run) ([]Outcome, error) {
	t.once.Do(func() {
		t.outcomes, t.err = r.evaluate(ctx, t.node)
	})
	return t.outcomes, t.err
}

// evaluate runs the fan-in barrier for node: it resolves every
// predecessor concurrently, then — if all succeeded and the run has not
// been cancelled — calls Operation. Predecessor results are passed to
// Operation in the node's incoming edge declaration order.
func (r *Run) evaluate(ctx context.Context, node Node) ([]Outcome, error) {
	fanInStart := time.Now()
	edges := r.graph.Incoming[node.ID]

	type predOutcome struct {
		edge     Edge
		outcomes []Outcome
		err      error
	}
	predResults := make([]predOutcome, len(edges))

	var wg sync.WaitGroup
	for i, e := range edges {
		wg.Add(1)
		go func(i int, e Edge) {
			defer wg.Done()
			t := r.taskFor(r.graph.NodesByID[e.From])
			outcomes, err := t.resolve(ctx, r)
			predResults[i] = predOutcome{edge: e, outcomes: outcomes, err: err}
		}(i, e)
	}
	wg.Wait()

	// Cancellation takes priority over predecessor failure: a node
	// whose fan-in barrier releases into a cancelled run reports
	// Cancelled even when a predecessor also failed.
	if r.cancelled() {
		r.emitNodeSkippedCancelled(node.ID)
		return nil, newCancelledError(node.ID)
	}

	// First-failure-wins in declaration order: scan in edge order, not
	// completion order, so the reported cause is deterministic.
	for _, pr := range predResults {
		if pr.err == nil {
			continue
		}
		if isMissingResult(pr.err) {
			r.abort(pr.err)
			return nil, pr.err
		}
		r.emitNodeSkippedFailed(node.ID, pr.edge.From, pr.err)
		return nil, newPredecessorFailedError(node.ID, pr.edge.From, pr.err)
	}

	predecessors := make([]Result, len(edges))
	for i, pr := range predResults {
		res, err := lookupResult(pr.edge, pr.outcomes)
		if err != nil {
			r.abort(err)
			return nil, err
		}
		predecessors[i] = res
	}

	if r.metrics != nil {
		r.metrics.RecordFanInWait(r.runID, string(node.ID), time.Since(fanInStart))
	}

	return r.execute(ctx, node, predecessors)
}

// lookupResult finds the Result on edge.ResultID among outcomes, which
// are the producer node's full set of successful outcomes. A miss is a
// programming error (the producer's Operation broke its contract with
// the declared edge), not a runtime condition, so the caller must treat
// the returned *MissingResultError as a structural abort rather than a
// per-node failure.
func lookupResult(edge Edge, outcomes []Outcome) (Result, error) {
	for _, o := range outcomes {
		if o.Result.ResultID == edge.ResultID {
			return o.Result, nil
		}
	}
	return Result{}, newMissingResultError(edge.From, edge.ResultID)
}

// isMissingResult reports whether err is, or wraps, a *MissingResultError.
func isMissingResult(err error) bool {
	var missing *MissingResultError
	return errors.As(err, &missing)
}

// execute acquires a worker slot, calls Operation, and turns its return
// into outcomes. It is the only place Operation is invoked.
func (r *Run) execute(ctx context.Context, node Node, predecessors []Result) ([]Outcome, error) {
	if r.metrics != nil {
		r.metrics.IncQueued(r.runID)
	}
	err := r.pool.acquire(ctx)
	if r.metrics != nil {
		r.metrics.DecQueued(r.runID)
	}
	if err != nil {
		r.emitNodeSkippedCancelled(node.ID)
		return nil, newCancelledError(node.ID)
	}
	defer r.pool.release()

	if r.cancelled() {
		r.emitNodeSkippedCancelled(node.ID)
		return nil, newCancelledError(node.ID)
	}

	if r.metrics != nil {
		r.metrics.IncWorkers(r.runID)
		defer r.metrics.DecWorkers(r.runID)
	}

	r.emit(emit.Event{RunID: r.runID, Phase: r.phase, NodeID: string(node.ID), Msg: "node_started"})

	results, err := r.op(ctx, node, predecessors)
	if err != nil {
		opErr := newOperationError(node.ID, err)
		r.emit(emit.Event{
			RunID: r.runID, Phase: r.phase, NodeID: string(node.ID), Msg: "node_failed",
			Meta: map[string]interface{}{"cause": opErr.Error()},
		})
		if r.metrics != nil {
			r.metrics.RecordOutcome(r.runID, r.phase, "failed")
		}
		return nil, opErr
	}

	outcomes := make([]Outcome, len(results))
	for i, res := range results {
		outcomes[i] = Outcome{Result: res}
	}
	r.emit(emit.Event{
		RunID: r.runID, Phase: r.phase, NodeID: string(node.ID), Msg: "node_succeeded",
		Meta: map[string]interface{}{"resultCount": len(results)},
	})
	if r.metrics != nil {
		r.metrics.RecordOutcome(r.runID, r.phase, "succeeded")
	}
	return outcomes, nil
}

func (r *Run) emitNodeSkippedFailed(nodeID, predecessor NodeID, cause error) {
	r.emit(emit.Event{
		RunID: r.runID, Phase: r.phase, NodeID: string(nodeID), Msg: "node_skipped_failed",
		Meta: map[string]interface{}{"predecessor": string(predecessor), "cause": cause.Error()},
	})
	if r.metrics != nil {
		r.metrics.RecordOutcome(r.runID, r.phase, "skipped_failed")
	}
}

func (r *Run) emitNodeSkippedCancelled(nodeID NodeID) {
	r.emit(emit.Event{RunID: r.runID, Phase: r.phase, NodeID: string(nodeID), Msg: "node_skipped_cancelled"})
	if r.metrics != nil {
		r.metrics.RecordOutcome(r.runID, r.phase, "skipped_cancelled")
	}
}
