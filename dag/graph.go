package dag

import (
	"sort"
	"strings"
)

// Graph is the immutable, validated output of Build: a topologically
// ordered set of nodes plus an index of each node's incoming edges.
// A Graph is safe for concurrent use by any number of Run calls.
type Graph struct {
	// Order lists every node, including the synthetic Init node when
	// present, in a topological order: every node appears after all of
	// its predecessors.
	Order []Node

	// NodesByID indexes Order by NodeID.
	NodesByID map[NodeID]Node

	// Incoming maps a node to its declared incoming edges, in
	// declaration order. A node absent from the map has no predecessors.
	Incoming map[NodeID][]Edge

	// Outgoing maps a node to its declared outgoing edges, in
	// declaration order.
	Outgoing map[NodeID][]Edge

	// StartIDs lists nodes with no incoming edges, in Order.
	StartIDs []NodeID

	// EndIDs lists nodes with no outgoing edges, in Order. A run's
	// outcome vector is one Outcome per ResultID these nodes produce.
	EndIDs []NodeID
}

// Build validates nodes and edges and returns the resulting Graph.
//
// It fails with a *DuplicateEdgeError if the same (from, to, resultId)
// triple appears more than once, and with a *CycleError if the graph is
// not acyclic. Build never inspects node Payloads.
func Build(nodes []Node, edges []Edge) (*Graph, error) {
	nodesByID := make(map[NodeID]Node, len(nodes))
	for _, n := range nodes {
		nodesByID[n.ID] = n
	}

	seen := make(map[edgeKey]struct{}, len(edges))
	incoming := make(map[NodeID][]Edge)
	outgoing := make(map[NodeID][]Edge)
	for _, e := range edges {
		k := e.key()
		if _, dup := seen[k]; dup {
			return nil, newDuplicateEdgeError(e)
		}
		seen[k] = struct{}{}

		incoming[e.To] = append(incoming[e.To], e)
		outgoing[e.From] = append(outgoing[e.From], e)
	}

	order, err := topoSort(nodes, incoming)
	if err != nil {
		return nil, err
	}

	var startIDs, endIDs []NodeID
	for _, n := range order {
		if len(incoming[n.ID]) == 0 {
			startIDs = append(startIDs, n.ID)
		}
		if len(outgoing[n.ID]) == 0 {
			endIDs = append(endIDs, n.ID)
		}
	}

	return &Graph{
		Order:     order,
		NodesByID: nodesByID,
		Incoming:  incoming,
		Outgoing:  outgoing,
		StartIDs:  startIDs,
		EndIDs:    endIDs,
	}, nil
}

// topoSort orders nodes by repeatedly peeling off nodes whose
// predecessors have all already been placed (Kahn's algorithm). Ties
// among simultaneously-ready nodes break by NodeID so Build is
// deterministic across calls with the same input.
func topoSort(nodes []Node, incoming map[NodeID][]Edge) ([]Node, error) {
	preds := make(map[NodeID][]NodeID, len(nodes))
	for _, n := range nodes {
		preds[n.ID] = uniquePredecessors(incoming[n.ID])
	}

	order := make([]Node, 0, len(nodes))
	placed := make(map[NodeID]struct{}, len(nodes))

	for len(order) < len(nodes) {
		ready := make([]Node, 0)
		for _, n := range nodes {
			if _, done := placed[n.ID]; done {
				continue
			}
			if countUnplaced(preds[n.ID], placed) == 0 {
				ready = append(ready, n)
			}
		}
		if len(ready) == 0 {
			return nil, newCycleError(remainingIDs(nodes, placed))
		}

		sort.Slice(ready, func(i, j int) bool { return ready[i].ID < ready[j].ID })
		for _, n := range ready {
			order = append(order, n)
			placed[n.ID] = struct{}{}
		}
	}

	return order, nil
}

func uniquePredecessors(edges []Edge) []NodeID {
	seen := make(map[NodeID]struct{}, len(edges))
	ids := make([]NodeID, 0, len(edges))
	for _, e := range edges {
		if _, ok := seen[e.From]; ok {
			continue
		}
		seen[e.From] = struct{}{}
		ids = append(ids, e.From)
	}
	return ids
}

func countUnplaced(ids []NodeID, placed map[NodeID]struct{}) int {
	n := 0
	for _, id := range ids {
		if _, ok := placed[id]; !ok {
			n++
		}
	}
	return n
}

func remainingIDs(nodes []Node, placed map[NodeID]struct{}) []NodeID {
	ids := make([]NodeID, 0, len(nodes)-len(placed))
	for _, n := range nodes {
		if _, ok := placed[n.ID]; !ok {
			ids = append(ids, n.ID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Render returns a deterministic, human-readable rendering of the graph:
// one line per node in topological order, followed by its incoming
// edges. Intended for logs and test fixtures, not for parsing.
func (g *Graph) Render() string {
	var b strings.Builder
	for _, n := range g.Order {
		b.WriteString(string(n.ID))
		if in := g.Incoming[n.ID]; len(in) > 0 {
			b.WriteString(" <- ")
			parts := make([]string, len(in))
			for i, e := range in {
				parts[i] = string(e.From) + "." + e.ResultID
			}
			b.WriteString(strings.Join(parts, ", "))
		}
		b.WriteString("\n")
	}
	return b.String()
}
