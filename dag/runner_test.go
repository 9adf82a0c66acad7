package dag

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/dagflow/dag/emit"
)

func buildOrPanic(t *testing.T, nodes []Node, edges []Edge) *Graph {
	t.Helper()
	g, err := Build(nodes, edges)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	return g
}

// TestLinearChainPropagatesValue covers scenario S1: a plain A->B->C
// chain where each node doubles its predecessor's value.
func TestLinearChainPropagatesValue(t *testing.T) {
	g := buildOrPanic(t,
		nodesOf("A", "B", "C"),
		[]Edge{
			{From: "A", To: "B", ResultID: "a.out"},
			{From: "B", To: "C", ResultID: "b.out"},
		},
	)

	op := func(_ context.Context, node Node, preds []Result) ([]Result, error) {
		switch node.ID {
		case "A":
			return []Result{{ResultID: "a.out", Value: 1}}, nil
		case "B":
			return []Result{{ResultID: "b.out", Value: preds[0].Value.(int) * 2}}, nil
		case "C":
			return []Result{{ResultID: "c.out", Value: preds[0].Value.(int) * 2}}, nil
		}
		t.Fatalf("unexpected node %s", node.ID)
		return nil, nil
	}

	run := NewRun(g, op, emit.NewNullEmitter(), 1)
	outcomes, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	if !outcomes[0].Succeeded() {
		t.Fatalf("expected success, got %v", outcomes[0].Err)
	}
	if got := outcomes[0].Result.Value.(int); got != 4 {
		t.Errorf("expected 4, got %d", got)
	}
}

// TestDiamondInvokesSharedPredecessorExactlyOnce covers scenario S2: A
// fans out to B and C, which both fan into D. op(A) must run exactly
// once even though both B and C depend on it.
func TestDiamondInvokesSharedPredecessorExactlyOnce(t *testing.T) {
	g := buildOrPanic(t,
		nodesOf("A", "B", "C", "D"),
		[]Edge{
			{From: "A", To: "B", ResultID: "a.out"},
			{From: "A", To: "C", ResultID: "a.out"},
			{From: "B", To: "D", ResultID: "b.out"},
			{From: "C", To: "D", ResultID: "c.out"},
		},
	)

	var aCalls atomic.Int32

	op := func(_ context.Context, node Node, preds []Result) ([]Result, error) {
		switch node.ID {
		case "A":
			aCalls.Add(1)
			return []Result{{ResultID: "a.out", Value: 1}}, nil
		case "B":
			return []Result{{ResultID: "b.out", Value: preds[0].Value.(int) * 10}}, nil
		case "C":
			return []Result{{ResultID: "c.out", Value: preds[0].Value.(int) * 100}}, nil
		case "D":
			sum := 0
			for _, p := range preds {
				sum += p.Value.(int)
			}
			return []Result{{ResultID: "d.out", Value: sum}}, nil
		}
		return nil, nil
	}

	run := NewRun(g, op, emit.NewNullEmitter(), 4)
	outcomes, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if got := aCalls.Load(); got != 1 {
		t.Errorf("expected op(A) invoked exactly once, got %d", got)
	}
	if len(outcomes) != 1 || !outcomes[0].Succeeded() {
		t.Fatalf("expected 1 successful outcome, got %+v", outcomes)
	}
	if got := outcomes[0].Result.Value.(int); got != 110 {
		t.Errorf("expected 110, got %d", got)
	}
}

// TestFailureFansOutToDownstreamNodes covers scenario S3: when a node
// fails, every downstream consumer is skipped with PredecessorFailedError
// rather than running.
func TestFailureFansOutToDownstreamNodes(t *testing.T) {
	g := buildOrPanic(t,
		nodesOf("A", "B", "C"),
		[]Edge{
			{From: "A", To: "B", ResultID: "a.out"},
			{From: "B", To: "C", ResultID: "b.out"},
		},
	)

	boom := errors.New("boom")
	var cCalled atomic.Bool

	op := func(_ context.Context, node Node, _ []Result) ([]Result, error) {
		switch node.ID {
		case "A":
			return []Result{{ResultID: "a.out", Value: 1}}, nil
		case "B":
			return nil, boom
		case "C":
			cCalled.Store(true)
			return []Result{{ResultID: "c.out", Value: 1}}, nil
		}
		return nil, nil
	}

	run := NewRun(g, op, emit.NewNullEmitter(), 1)
	outcomes, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if cCalled.Load() {
		t.Error("expected C to be skipped, but it ran")
	}
	if len(outcomes) != 1 || outcomes[0].Succeeded() {
		t.Fatalf("expected 1 failing outcome, got %+v", outcomes)
	}

	var predErr *PredecessorFailedError
	if !errors.As(outcomes[0].Err, &predErr) {
		t.Fatalf("expected *PredecessorFailedError, got %T: %v", outcomes[0].Err, outcomes[0].Err)
	}
	if predErr.Predecessor != "B" {
		t.Errorf("expected predecessor B, got %s", predErr.Predecessor)
	}
}

// TestCycleDetectedAtBuild covers scenario S4.
func TestCycleDetectedAtBuild(t *testing.T) {
	_, err := Build(nodesOf("A", "B", "C"), []Edge{
		{From: "A", To: "B", ResultID: "r"},
		{From: "B", To: "C", ResultID: "r"},
		{From: "C", To: "A", ResultID: "r"},
	})
	var cycleErr *CycleError
	if !errors.As(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T: %v", err, err)
	}
}

// TestCancelAfterSecondNodeSkipsRemaining covers scenario S5: cancelling
// mid-flight skips nodes that have not yet passed their fan-in barrier.
func TestCancelAfterSecondNodeSkipsRemaining(t *testing.T) {
	g := buildOrPanic(t,
		nodesOf("A", "B", "C"),
		[]Edge{
			{From: "A", To: "B", ResultID: "a.out"},
			{From: "B", To: "C", ResultID: "b.out"},
		},
	)

	var run *Run
	bStarted := make(chan struct{})

	op := func(_ context.Context, node Node, preds []Result) ([]Result, error) {
		switch node.ID {
		case "A":
			return []Result{{ResultID: "a.out", Value: 1}}, nil
		case "B":
			close(bStarted)
			run.Cancel()
			time.Sleep(10 * time.Millisecond)
			return []Result{{ResultID: "b.out", Value: 2}}, nil
		case "C":
			return []Result{{ResultID: "c.out", Value: 3}}, nil
		}
		return nil, nil
	}

	run = NewRun(g, op, emit.NewNullEmitter(), 1)
	outcomes, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if len(outcomes) != 1 || outcomes[0].Succeeded() {
		t.Fatalf("expected C to be cancelled, got %+v", outcomes)
	}
	var cancelErr *CancelledError
	if !errors.As(outcomes[0].Err, &cancelErr) {
		t.Fatalf("expected *CancelledError, got %T: %v", outcomes[0].Err, outcomes[0].Err)
	}
}

// TestDisconnectedComponentsAreIndependent covers scenario S6: two
// components with no shared edges both execute to completion in one Run.
func TestDisconnectedComponentsAreIndependent(t *testing.T) {
	g := buildOrPanic(t,
		nodesOf("A", "B"),
		nil,
	)

	op := func(_ context.Context, node Node, _ []Result) ([]Result, error) {
		return []Result{{ResultID: string(node.ID) + ".out", Value: string(node.ID)}}, nil
	}

	run := NewRun(g, op, emit.NewNullEmitter(), 2)
	outcomes, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if len(outcomes) != 2 {
		t.Fatalf("expected 2 outcomes, got %d", len(outcomes))
	}
	for _, o := range outcomes {
		if !o.Succeeded() {
			t.Errorf("expected success, got %v", o.Err)
		}
	}
}

func TestEmptyGraphExecuteReturnsEmptySlice(t *testing.T) {
	g := buildOrPanic(t, nil, nil)
	run := NewRun(g, func(_ context.Context, _ Node, _ []Result) ([]Result, error) {
		t.Fatal("op should never be called on an empty graph")
		return nil, nil
	}, emit.NewNullEmitter(), 1)

	outcomes, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}
	if outcomes == nil {
		t.Fatal("expected non-nil empty slice")
	}
	if len(outcomes) != 0 {
		t.Errorf("expected 0 outcomes, got %d", len(outcomes))
	}
}

// TestMissingResultAbortsWholeRun covers the C2 contract violation in
// SPEC §4.2/§7: a producer that doesn't return the Result its edge
// promised is a programming error, not a per-node failure. Execute must
// surface it as its own error rather than folding it into the outcome
// vector as a PredecessorFailedError.
func TestMissingResultAbortsWholeRun(t *testing.T) {
	g := buildOrPanic(t,
		nodesOf("A", "B"),
		[]Edge{{From: "A", To: "B", ResultID: "a.out"}},
	)

	op := func(_ context.Context, node Node, _ []Result) ([]Result, error) {
		if node.ID == "A" {
			return []Result{{ResultID: "wrong.id", Value: 1}}, nil
		}
		return []Result{{ResultID: "b.out", Value: 1}}, nil
	}

	run := NewRun(g, op, emit.NewNullEmitter(), 1)
	outcomes, err := run.Execute(context.Background())

	if outcomes != nil {
		t.Fatalf("expected no outcome vector on structural abort, got %+v", outcomes)
	}
	var missingErr *MissingResultError
	if !errors.As(err, &missingErr) {
		t.Fatalf("expected *MissingResultError, got %T: %v", err, err)
	}
	if missingErr.Producer != "A" || missingErr.ResultID != "a.out" {
		t.Errorf("unexpected MissingResultError fields: %+v", missingErr)
	}
}

// TestCancelledTakesPriorityOverPredecessorFailure covers SPEC §4.3 step
// 2's priority order: cancellation is reported even when a predecessor
// also failed, not the other way around.
func TestCancelledTakesPriorityOverPredecessorFailure(t *testing.T) {
	g := buildOrPanic(t,
		nodesOf("A", "B", "C"),
		[]Edge{
			{From: "A", To: "C", ResultID: "a.out"},
			{From: "B", To: "C", ResultID: "b.out"},
		},
	)

	boom := errors.New("boom")
	aBlocked := make(chan struct{})
	var run *Run

	op := func(_ context.Context, node Node, _ []Result) ([]Result, error) {
		switch node.ID {
		case "A":
			<-aBlocked
			return nil, boom
		case "B":
			run.Cancel()
			close(aBlocked)
			time.Sleep(10 * time.Millisecond)
			return []Result{{ResultID: "b.out", Value: 1}}, nil
		case "C":
			return []Result{{ResultID: "c.out", Value: 1}}, nil
		}
		return nil, nil
	}

	run = NewRun(g, op, emit.NewNullEmitter(), 2)
	outcomes, err := run.Execute(context.Background())
	if err != nil {
		t.Fatalf("Execute returned error: %v", err)
	}

	if len(outcomes) != 1 || outcomes[0].Succeeded() {
		t.Fatalf("expected C to report cancellation, got %+v", outcomes)
	}
	var cancelErr *CancelledError
	if !errors.As(outcomes[0].Err, &cancelErr) {
		t.Fatalf("expected *CancelledError, got %T: %v", outcomes[0].Err, outcomes[0].Err)
	}
}
