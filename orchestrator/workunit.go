package orchestrator

import (
	"context"

	"github.com/dshills/dagflow/dag"
)

// UnitOperation is one work unit's callback for a single phase. It
// receives the unit's own descriptor (so the callback can close over
// its own inputIds/outputIds if useful) and its predecessor results in
// inputIds declaration order, and must return one Result per declared
// outputId.
type UnitOperation func(ctx context.Context, unit WorkUnit, predecessors []dag.Result) ([]dag.Result, error)

// WorkUnit is a named step with declared data dependencies and one
// callback per phase. InputIDs and OutputIDs name Results by
// resultId, not by producer: the Orchestrator resolves which unit (or
// Init) produces each input.
type WorkUnit struct {
	// ID uniquely identifies this unit among all units passed to New.
	ID string

	// InputIDs lists the resultIds this unit consumes, in the order
	// its phase operations expect to receive them.
	InputIDs []string

	// OutputIDs lists the resultIds this unit produces. Must be
	// globally unique across every unit passed to New.
	OutputIDs []string

	// Prepare, Init and Exec implement the unit's work for each phase.
	// A nil callback for a phase that is never run (e.g. a unit only
	// ever exercised during Exec) is permitted; calling that phase
	// invokes it as a missing-operation error instead of panicking.
	Prepare UnitOperation
	Init    UnitOperation
	Exec    UnitOperation
}

func (w WorkUnit) nodeID() dag.NodeID { return dag.NodeID(w.ID) }
