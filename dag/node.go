package dag

import "context"

// NodeID identifies a Node uniquely within a Graph.
type NodeID string

// InitNodeID is the synthetic producer node for graph-level inputs —
// edges whose consumer input is declared by no user node. Work-unit
// callers never declare it; orchestrator.New synthesizes it and passes
// it to Build along with the user nodes.
const InitNodeID NodeID = "__init__"

// Node is an identity plus an opaque user payload. The scheduler never
// inspects Payload; it dispatches on node variant only to distinguish
// the synthetic Init node from user nodes.
type Node struct {
	ID      NodeID
	Payload interface{}
}

// IsInit reports whether n is the synthetic Init node.
func (n Node) IsInit() bool { return n.ID == InitNodeID }

// Result is a value carrying a ResultID, produced by a node and
// consumed via an Edge. ResultID is the only key by which downstream
// consumers locate it.
type Result struct {
	ResultID string
	Value    interface{}
}

// Operation is the node computation callback consumed by the scheduler.
//
// It is called exactly once per node per phase, after every predecessor
// result has resolved successfully, with those results ordered to match
// the node's incoming edges in declaration order. It must return one
// Result for every outgoing edge's ResultID of this node; a Result with
// no matching outgoing edge is tolerated, but a missing one surfaces as
// a *MissingResultError at the downstream consumer's lookup — a
// structural error that aborts the whole run rather than just that
// consumer.
//
// When node is the synthetic Init node, predecessors is always empty
// and Operation must return one placeholder Result per input edge
// declared for Init, each carrying that edge's ResultID.
//
// Operation must be safe to call concurrently from any worker goroutine;
// the scheduler never calls it twice for the same node within one Run.
type Operation func(ctx context.Context, node Node, predecessors []Result) ([]Result, error)

// Outcome is the terminal status of one end-node Result: either the
// Result itself, or the error that prevented it from being produced.
type Outcome struct {
	Result Result
	Err    error
}

// Succeeded reports whether this Outcome carries a Result rather than
// an error.
func (o Outcome) Succeeded() bool { return o.Err == nil }
