package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dshills/dagflow/dag"
	"github.com/dshills/dagflow/dag/audit"
	"github.com/dshills/dagflow/dag/emit"
	"github.com/dshills/dagflow/dag/metrics"
	"github.com/google/uuid"
)

// Orchestrator drives the three phases of a fixed set of work units
// over one built Graph. Construct with New; the Graph and edge
// derivation happen once, at construction, and are reused by every
// subsequent phase call.
type Orchestrator struct {
	graph           *dag.Graph
	unitsByID       map[dag.NodeID]WorkUnit
	partitionValues map[string]interface{}
	scheduler       *dag.Scheduler
	auditSink       audit.Sink
}

// Option configures an Orchestrator. See WithParallelism, WithEmitter,
// WithMetrics and WithAuditSink.
type Option func(*settings)

type settings struct {
	parallelism int
	emitter     emit.Emitter
	metrics     *metrics.SchedulerMetrics
	auditSink   audit.Sink
}

// WithParallelism bounds how many unit operations run concurrently
// within one phase. Default 1.
func WithParallelism(n int) Option {
	return func(s *settings) { s.parallelism = n }
}

// WithEmitter sets the Emitter every phase run reports lifecycle
// events to. Default discards events.
func WithEmitter(e emit.Emitter) Option {
	return func(s *settings) { s.emitter = e }
}

// WithMetrics attaches Prometheus instrumentation to every phase run.
func WithMetrics(m *metrics.SchedulerMetrics) Option {
	return func(s *settings) { s.metrics = m }
}

// WithAuditSink attaches an audit.Sink that receives one Record per
// outcome of every phase run, written in a single WriteBatch call after
// the phase's Run completes. A phase that aborts structurally (see
// dag.Run.Execute) writes no records for that phase: there is no
// outcome vector to describe.
func WithAuditSink(sink audit.Sink) Option {
	return func(s *settings) { s.auditSink = sink }
}

// NewRunID generates a fresh run identifier for tagging a phase's
// emitted events and audit records.
func NewRunID() string {
	return uuid.NewString()
}

// New derives the edge set from units' InputIDs/OutputIDs, builds the
// Graph, and returns an Orchestrator ready to run phases.
// partitionValues supplies the value for every resultId that no unit
// produces (i.e. every input that will be routed through the
// synthetic Init node); a resultId with no entry resolves to nil.
//
// New fails with a *dag.DuplicateOutputError if two units declare the
// same outputId (or one unit declares it twice), with a
// *dag.DuplicateEdgeError if the derived edge set contains the same
// edge twice (a unit listing the same inputId more than once), or with
// any other error dag.Build returns (cycles).
func New(units []WorkUnit, partitionValues map[string]interface{}, opts ...Option) (*Orchestrator, error) {
	s := settings{parallelism: 1}
	for _, opt := range opts {
		opt(&s)
	}

	producerByOutput := make(map[string]WorkUnit, len(units))
	for _, u := range units {
		for _, out := range u.OutputIDs {
			if existing, dup := producerByOutput[out]; dup {
				return nil, &dag.DuplicateOutputError{
					Message:  "two work units declare the same output",
					Code:     dag.CodeDuplicateOutput,
					NodeID:   dag.NodeID(existing.ID),
					ResultID: out,
				}
			}
			producerByOutput[out] = u
		}
	}

	var edges []dag.Edge
	needsInit := false
	for _, u := range units {
		for _, in := range u.InputIDs {
			if producer, ok := producerByOutput[in]; ok {
				edges = append(edges, dag.Edge{From: producer.nodeID(), To: u.nodeID(), ResultID: in})
				continue
			}
			edges = append(edges, dag.Edge{From: dag.InitNodeID, To: u.nodeID(), ResultID: in})
			needsInit = true
		}
	}

	nodes := make([]dag.Node, 0, len(units)+1)
	if needsInit {
		nodes = append(nodes, dag.Node{ID: dag.InitNodeID})
	}
	unitsByID := make(map[dag.NodeID]WorkUnit, len(units))
	for _, u := range units {
		nodes = append(nodes, dag.Node{ID: u.nodeID(), Payload: u})
		unitsByID[u.nodeID()] = u
	}

	graph, err := dag.Build(nodes, edges)
	if err != nil {
		return nil, err
	}

	schedOpts := []dag.Option{dag.WithParallelism(s.parallelism)}
	if s.emitter != nil {
		schedOpts = append(schedOpts, dag.WithEmitter(s.emitter))
	}
	if s.metrics != nil {
		schedOpts = append(schedOpts, dag.WithSchedulerMetrics(s.metrics))
	}

	return &Orchestrator{
		graph:           graph,
		unitsByID:       unitsByID,
		partitionValues: partitionValues,
		scheduler:       dag.New(graph, schedOpts...),
		auditSink:       s.auditSink,
	}, nil
}

// Graph returns the Graph this Orchestrator was built over, for
// logging or Render()ing.
func (o *Orchestrator) Graph() *dag.Graph {
	return o.graph
}

// Prepare runs the "prepare" phase: every unit's Prepare callback. The
// returned error is non-nil only when the phase aborts structurally
// (see dag.Run.Execute); an ordinary unit failure is reported per-
// outcome in the returned slice instead.
func (o *Orchestrator) Prepare(ctx context.Context, runID string) ([]dag.Outcome, error) {
	return o.runPhase(ctx, runID, "prepare", func(u WorkUnit) UnitOperation { return u.Prepare })
}

// Init runs the "init" phase: every unit's Init callback. The
// synthetic Init node's own results come from partitionValues, not
// from a unit callback.
func (o *Orchestrator) Init(ctx context.Context, runID string) ([]dag.Outcome, error) {
	return o.runPhase(ctx, runID, "init", func(u WorkUnit) UnitOperation { return u.Init })
}

// Exec runs the "exec" phase: every unit's Exec callback.
func (o *Orchestrator) Exec(ctx context.Context, runID string) ([]dag.Outcome, error) {
	return o.runPhase(ctx, runID, "exec", func(u WorkUnit) UnitOperation { return u.Exec })
}

// RunAll runs prepare, init and exec in order against the same Graph,
// stopping at the first phase with any failing outcome or structural
// error and returning that phase's outcome vector. This is a
// convenience only: it does not carry any state between phases,
// matching the phase-independence invariant — a unit that needs data
// from a prior phase is responsible for persisting it itself.
func (o *Orchestrator) RunAll(ctx context.Context, runID string) (phase string, outcomes []dag.Outcome, err error) {
	for _, p := range []struct {
		name string
		run  func(context.Context, string) ([]dag.Outcome, error)
	}{
		{"prepare", o.Prepare},
		{"init", o.Init},
		{"exec", o.Exec},
	} {
		outcomes, err := p.run(ctx, runID)
		if err != nil {
			return p.name, nil, err
		}
		if anyFailed(outcomes) {
			return p.name, outcomes, nil
		}
	}
	return "exec", nil, nil
}

func anyFailed(outcomes []dag.Outcome) bool {
	for _, o := range outcomes {
		if !o.Succeeded() {
			return true
		}
	}
	return false
}

func (o *Orchestrator) runPhase(ctx context.Context, runID, phase string, pick func(WorkUnit) UnitOperation) ([]dag.Outcome, error) {
	op := o.adapt(phase, pick)
	outcomes, err := o.scheduler.RunPhase(ctx, op, runID, phase)
	if err != nil {
		return nil, err
	}
	if o.auditSink != nil {
		o.writeAuditRecords(ctx, runID, phase, outcomes)
	}
	return outcomes, nil
}

// writeAuditRecords translates outcomes into audit.Records and flushes
// them in one WriteBatch call. A write failure is not fatal to the
// phase: the run already completed, so the outcome vector still
// reaches the caller even if the sink is unavailable.
func (o *Orchestrator) writeAuditRecords(ctx context.Context, runID, phase string, outcomes []dag.Outcome) {
	if len(outcomes) == 0 {
		return
	}
	now := time.Now()
	recs := make([]audit.Record, len(outcomes))
	for i, oc := range outcomes {
		recs[i] = outcomeRecord(runID, phase, oc, now)
	}
	_ = o.auditSink.WriteBatch(ctx, recs)
}

// outcomeRecord classifies one outcome into an audit.Record. Successful
// outcomes identify the node by ResultID, since Outcome carries no
// NodeID on success; failures recover the producing node from the
// structured error that describes them.
func outcomeRecord(runID, phase string, oc dag.Outcome, recordedAt time.Time) audit.Record {
	if oc.Succeeded() {
		return audit.Record{
			RunID:       runID,
			Phase:       phase,
			NodeID:      oc.Result.ResultID,
			Class:       "succeeded",
			ResultCount: 1,
			RecordedAt:  recordedAt,
		}
	}

	rec := audit.Record{
		RunID:      runID,
		Phase:      phase,
		Class:      "failed",
		Cause:      oc.Err.Error(),
		RecordedAt: recordedAt,
	}

	var predErr *dag.PredecessorFailedError
	var cancelErr *dag.CancelledError
	var opErr *dag.OperationError
	switch {
	case errors.As(oc.Err, &predErr):
		rec.NodeID = string(predErr.NodeID)
		rec.Class = "skipped_failed"
	case errors.As(oc.Err, &cancelErr):
		rec.NodeID = string(cancelErr.NodeID)
		rec.Class = "skipped_cancelled"
	case errors.As(oc.Err, &opErr):
		rec.NodeID = string(opErr.NodeID)
	}
	return rec
}

// adapt turns this Orchestrator's per-unit UnitOperation callbacks
// into a single dag.Operation, dispatching the synthetic Init node to
// initOperation and every other node to its unit's phase callback.
func (o *Orchestrator) adapt(phase string, pick func(WorkUnit) UnitOperation) dag.Operation {
	return func(ctx context.Context, node dag.Node, predecessors []dag.Result) ([]dag.Result, error) {
		if node.IsInit() {
			return o.initOperation(node, predecessors)
		}

		unit, ok := o.unitsByID[node.ID]
		if !ok {
			return nil, fmt.Errorf("orchestrator: unknown node %q", node.ID)
		}
		fn := pick(unit)
		if fn == nil {
			return nil, fmt.Errorf("orchestrator: work unit %q has no %s operation", unit.ID, phase)
		}
		return fn(ctx, unit, predecessors)
	}
}

// initOperation produces the synthetic Init node's results: one
// placeholder Result per input edge declared for Init, each carrying
// that edge's resultId and the value from partitionValues (nil if
// absent).
func (o *Orchestrator) initOperation(node dag.Node, _ []dag.Result) ([]dag.Result, error) {
	edges := o.graph.Outgoing[node.ID]
	seen := make(map[string]struct{}, len(edges))
	results := make([]dag.Result, 0, len(edges))
	for _, e := range edges {
		if _, dup := seen[e.ResultID]; dup {
			continue
		}
		seen[e.ResultID] = struct{}{}
		results = append(results, dag.Result{ResultID: e.ResultID, Value: o.partitionValues[e.ResultID]})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ResultID < results[j].ResultID })
	return results, nil
}
