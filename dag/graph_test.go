package dag

import "testing"

func nodesOf(ids ...string) []Node {
	nodes := make([]Node, len(ids))
	for i, id := range ids {
		nodes[i] = Node{ID: NodeID(id)}
	}
	return nodes
}

func TestBuildLinearChain(t *testing.T) {
	nodes := nodesOf("A", "B", "C")
	edges := []Edge{
		{From: "A", To: "B", ResultID: "rA"},
		{From: "B", To: "C", ResultID: "rB"},
	}

	g, err := Build(nodes, edges)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	pos := make(map[NodeID]int, len(g.Order))
	for i, n := range g.Order {
		pos[n.ID] = i
	}
	for _, e := range edges {
		if pos[e.From] >= pos[e.To] {
			t.Errorf("edge %v: expected %s before %s in order %v", e, e.From, e.To, g.Order)
		}
	}

	if len(g.StartIDs) != 1 || g.StartIDs[0] != "A" {
		t.Errorf("expected StartIDs [A], got %v", g.StartIDs)
	}
	if len(g.EndIDs) != 1 || g.EndIDs[0] != "C" {
		t.Errorf("expected EndIDs [C], got %v", g.EndIDs)
	}
}

func TestBuildDiamond(t *testing.T) {
	nodes := nodesOf("A", "B", "C", "D")
	edges := []Edge{
		{From: "A", To: "B", ResultID: "r"},
		{From: "A", To: "C", ResultID: "r"},
		{From: "B", To: "D", ResultID: "r"},
		{From: "C", To: "D", ResultID: "r"},
	}

	g, err := Build(nodes, edges)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(g.Order) != 4 {
		t.Fatalf("expected 4 nodes in order, got %d", len(g.Order))
	}
	if g.Order[0].ID != "A" {
		t.Errorf("expected A first, got %s", g.Order[0].ID)
	}
	if g.Order[3].ID != "D" {
		t.Errorf("expected D last, got %s", g.Order[3].ID)
	}
}

func TestBuildDetectsCycle(t *testing.T) {
	nodes := nodesOf("A", "B", "C")
	edges := []Edge{
		{From: "A", To: "B", ResultID: "r"},
		{From: "B", To: "C", ResultID: "r"},
		{From: "C", To: "A", ResultID: "r"},
	}

	_, err := Build(nodes, edges)
	if err == nil {
		t.Fatal("expected CycleDetected error, got nil")
	}

	var cycleErr *CycleError
	if !asCycleError(err, &cycleErr) {
		t.Fatalf("expected *CycleError, got %T: %v", err, err)
	}
	if len(cycleErr.Remaining) != 3 {
		t.Errorf("expected all 3 nodes reported as remaining, got %v", cycleErr.Remaining)
	}
}

func asCycleError(err error, target **CycleError) bool {
	if ce, ok := err.(*CycleError); ok {
		*target = ce
		return true
	}
	return false
}

func TestBuildDetectsDuplicateEdge(t *testing.T) {
	nodes := nodesOf("A", "B")
	edges := []Edge{
		{From: "A", To: "B", ResultID: "r"},
		{From: "A", To: "B", ResultID: "r"},
	}

	_, err := Build(nodes, edges)
	if err == nil {
		t.Fatal("expected DuplicateEdge error, got nil")
	}
	if _, ok := err.(*DuplicateEdgeError); !ok {
		t.Fatalf("expected *DuplicateEdgeError, got %T: %v", err, err)
	}
}

func TestBuildEmptyGraph(t *testing.T) {
	g, err := Build(nil, nil)
	if err != nil {
		t.Fatalf("expected empty graph to build successfully, got %v", err)
	}
	if len(g.Order) != 0 {
		t.Errorf("expected empty Order, got %v", g.Order)
	}
	if len(g.StartIDs) != 0 || len(g.EndIDs) != 0 {
		t.Errorf("expected no start/end ids, got start=%v end=%v", g.StartIDs, g.EndIDs)
	}
}

func TestBuildDeterministicTieBreak(t *testing.T) {
	nodes := nodesOf("C", "A", "B")

	g1, err := Build(nodes, nil)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	g2, err := Build(nodes, nil)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	for i := range g1.Order {
		if g1.Order[i].ID != g2.Order[i].ID {
			t.Fatalf("expected deterministic order, got %v vs %v", g1.Order, g2.Order)
		}
	}
	want := []NodeID{"A", "B", "C"}
	for i, id := range want {
		if g1.Order[i].ID != id {
			t.Errorf("expected order %v, got %v", want, g1.Order)
			break
		}
	}
}

func TestGraphRenderIncludesEveryNodeAndEdge(t *testing.T) {
	nodes := nodesOf("A", "B")
	edges := []Edge{{From: "A", To: "B", ResultID: "r"}}

	g, err := Build(nodes, edges)
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}

	rendered := g.Render()
	if !contains(rendered, "A") || !contains(rendered, "B") || !contains(rendered, "A.r") {
		t.Errorf("expected render to mention nodes and edge, got:\n%s", rendered)
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
