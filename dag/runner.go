package dag

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/dshills/dagflow/dag/emit"
	"github.com/dshills/dagflow/dag/metrics"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// pool bounds how many Operation calls may run concurrently. It gates
// only the leaf-level Operation invocation, never the fan-in barrier
// goroutines that wait on predecessor tasks — those don't consume CPU
// and holding a slot across them would starve the pool on graphs
// deeper than Parallelism.
type pool struct {
	sem *semaphore.Weighted
}

func newPool(parallelism int) *pool {
	if parallelism <= 0 {
		parallelism = 1
	}
	return &pool{sem: semaphore.NewWeighted(int64(parallelism))}
}

func (p *pool) acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

func (p *pool) release() {
	p.sem.Release(1)
}

// Run is one execution of a Graph's Operation over every node, at most
// once each, with bounded parallelism and cooperative cancellation. A
// Run is single-use: call Execute once and discard it.
type Run struct {
	graph   *Graph
	op      Operation
	pool    *pool
	emitter emit.Emitter
	metrics *metrics.SchedulerMetrics

	runID string
	phase string

	tasks map[NodeID]*task

	cancelFlag atomic.Bool

	structuralMu  sync.Mutex
	structuralErr error
}

// RunOption configures a single Run. See WithRunID and WithPhase.
type RunOption func(*Run)

// WithRunID tags every event this Run emits with runID.
func WithRunID(runID string) RunOption {
	return func(r *Run) { r.runID = runID }
}

// WithPhase tags every event this Run emits with phase ("prepare",
// "init" or "exec").
func WithPhase(phase string) RunOption {
	return func(r *Run) { r.phase = phase }
}

// WithMetrics attaches Prometheus instrumentation to this Run.
func WithMetrics(m *metrics.SchedulerMetrics) RunOption {
	return func(r *Run) { r.metrics = m }
}

// NewRun constructs a Run over graph. op is called at most once per
// node. emitter receives lifecycle events; pass emit.NewNullEmitter()
// to discard them. parallelism bounds concurrent Operation calls; values
// <= 0 are treated as 1.
func NewRun(graph *Graph, op Operation, emitter emit.Emitter, parallelism int, opts ...RunOption) *Run {
	r := &Run{
		graph:   graph,
		op:      op,
		pool:    newPool(parallelism),
		emitter: emitter,
		tasks:   make(map[NodeID]*task, len(graph.Order)),
	}
	for _, n := range graph.Order {
		r.tasks[n.ID] = &task{node: n}
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Cancel requests cancellation. Already-running Operation calls are not
// interrupted; nodes not yet past their fan-in barrier will be skipped
// with a CancelledError instead of running.
func (r *Run) Cancel() {
	r.cancelFlag.Store(true)
	r.emit(emit.Event{RunID: r.runID, Phase: r.phase, Msg: "cancel_requested"})
	if r.metrics != nil {
		r.metrics.RecordCancellation(r.runID)
	}
}

func (r *Run) cancelled() bool {
	return r.cancelFlag.Load()
}

// abort records a structural/programming error (currently only
// *MissingResultError) that must fail the whole Run rather than a
// single node's outcome. The first call wins; later calls from sibling
// goroutines are no-ops.
func (r *Run) abort(err error) {
	r.structuralMu.Lock()
	defer r.structuralMu.Unlock()
	if r.structuralErr == nil {
		r.structuralErr = err
	}
}

func (r *Run) structuralFailure() error {
	r.structuralMu.Lock()
	defer r.structuralMu.Unlock()
	return r.structuralErr
}

func (r *Run) taskFor(node Node) *task {
	return r.tasks[node.ID]
}

func (r *Run) emit(event emit.Event) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(event)
}

// Execute runs every node in graph to completion and returns one
// Outcome per ResultID produced by an end node (a node with no outgoing
// edges). The vector is ordered by end-node declaration order — the
// order Graph.EndIDs lists them in, which is Build's topological order
// restricted to nodes with no outgoing edges — flattened within each
// end node by that node's own result order; it is never re-sorted by
// node or result ID. An empty graph returns an empty, non-nil slice
// immediately without starting the worker pool.
//
// Execute returns a non-nil error only when C2 result lookup hits a
// *MissingResultError: that is a structural/programming error (a
// node's Operation broke its contract with a declared edge), not a
// per-node runtime failure, so it aborts the whole run instead of
// appearing in the returned outcome vector.
func (r *Run) Execute(ctx context.Context) ([]Outcome, error) {
	r.emit(emit.Event{
		RunID: r.runID, Phase: r.phase, Msg: "sorted_order",
		Meta: map[string]interface{}{"order": nodeIDStrings(r.graph.Order)},
	})

	if len(r.graph.Order) == 0 {
		return []Outcome{}, nil
	}

	endIDs := r.graph.EndIDs

	type endResult struct {
		results []Outcome
		err     error
	}
	perEnd := make([]endResult, len(endIDs))

	// g never returns a non-nil error: every end node's outcome, success
	// or failure, is collected rather than aborting its siblings. Each
	// goroutine owns a distinct slice index, so no lock is needed and
	// declaration order survives regardless of completion order.
	var g errgroup.Group
	for i, id := range endIDs {
		i, id := i, id
		g.Go(func() error {
			t := r.taskFor(r.graph.NodesByID[id])
			results, err := t.resolve(ctx, r)
			perEnd[i] = endResult{results: results, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := r.structuralFailure(); err != nil {
		return nil, err
	}

	var outcomes []Outcome
	for _, er := range perEnd {
		if er.err != nil {
			outcomes = append(outcomes, Outcome{Err: er.err})
			continue
		}
		outcomes = append(outcomes, er.results...)
	}

	r.emit(emit.Event{
		RunID: r.runID, Phase: r.phase, Msg: "phase_summary",
		Meta: map[string]interface{}{"summary": classify(outcomes)},
	})

	return outcomes, nil
}

func nodeIDStrings(nodes []Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = string(n.ID)
	}
	return ids
}

// classify tallies outcomes by result class for the phase_summary event.
func classify(outcomes []Outcome) map[string]int {
	tally := map[string]int{"succeeded": 0, "failed": 0}
	for _, o := range outcomes {
		if o.Succeeded() {
			tally["succeeded"]++
		} else {
			tally["failed"]++
		}
	}
	return tally
}
