// Package dag implements a generic directed acyclic graph task scheduler.
//
// Nodes compute one or more typed Results; Edges declare that a node
// reads a specific Result of another node. Build validates the graph is
// acyclic and topologically orders it. Run executes each node's
// operation at most once, as soon as all its predecessors have
// completed, with bounded parallelism, propagating failure and
// cancellation along the graph and returning the full per-endpoint
// outcome vector.
//
// The scheduler emits observability events through dag/emit using a
// fixed vocabulary: "sorted_order", "phase_summary", "cancel_requested",
// "node_started", "node_succeeded", "node_failed", "node_skipped_failed",
// "node_skipped_cancelled".
package dag
