// Package orchestrator is the thin driver callers use instead of the
// dag package directly: it accepts work units with declared inputs and
// outputs, derives the edge set (synthesizing the Init node for
// inputs no unit produces), builds the Graph once, and exposes
// Prepare, Init and Exec as independent phase runs over that one
// Graph.
package orchestrator
