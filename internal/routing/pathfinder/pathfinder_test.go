package pathfinder

import (
	"testing"

	"github.com/aeris-platform/aeris/internal/routing/graph"
)

func diamondGraph() *graph.Graph {
	g := graph.New()
	g.AddNode(graph.Node{ID: "1", Lat: 0, Lon: 0})
	g.AddNode(graph.Node{ID: "2", Lat: 0, Lon: 1})
	g.AddNode(graph.Node{ID: "3", Lat: 0, Lon: 2})
	g.AddNode(graph.Node{ID: "4", Lat: 1, Lon: 1})

	edge := func(from, to string, w float64) graph.Edge {
		a, b := g.Nodes[from], g.Nodes[to]
		return graph.Edge{
			From: from, To: to, Weight: w, LengthM: 1000,
			Geometry: []graph.Node{a, b},
		}
	}
	g.AddEdge(edge("1", "2", 0.4))
	g.AddEdge(edge("2", "3", 0.5))
	g.AddEdge(edge("1", "4", 0.35))
	g.AddEdge(edge("4", "3", 0.45))
	return g
}

func TestFindPaths_DiamondGraph_CheapestIsViaNode4(t *testing.T) {
	g := diamondGraph().CollapseParallel()
	paths := FindPaths(g, 0, 0, 0, 2, 2)
	if len(paths) == 0 {
		t.Fatal("expected at least one path")
	}
	best := paths[0]
	if best.Cost < 0.799 || best.Cost > 0.801 {
		t.Fatalf("cheapest path cost = %v, want 0.80", best.Cost)
	}
}

func TestFindPaths_ReturnsAlternatives(t *testing.T) {
	g := diamondGraph().CollapseParallel()
	paths := FindPaths(g, 0, 0, 0, 2, 2)
	if len(paths) != 2 {
		t.Fatalf("expected 2 alternatives on the diamond graph, got %d", len(paths))
	}
	if paths[0].Cost > paths[1].Cost {
		t.Fatalf("paths should be returned in non-decreasing cost order: %v then %v", paths[0].Cost, paths[1].Cost)
	}
}

func TestFindPaths_EmptyGraphReturnsNil(t *testing.T) {
	g := graph.New()
	if got := FindPaths(g, 0, 0, 1, 1, 3); got != nil {
		t.Fatalf("expected nil for empty graph, got %v", got)
	}
}

func TestFindPaths_NoPathReturnsNil(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{ID: "a", Lat: 0, Lon: 0})
	g.AddNode(graph.Node{ID: "b", Lat: 5, Lon: 5})
	if got := FindPaths(g, 0, 0, 5, 5, 1); got != nil {
		t.Fatalf("expected nil when no edges connect the nodes, got %v", got)
	}
}

func TestCollapseParallel_KeepsMinWeightEdge(t *testing.T) {
	g := graph.New()
	g.AddNode(graph.Node{ID: "a"})
	g.AddNode(graph.Node{ID: "b"})
	g.AddEdge(graph.Edge{From: "a", To: "b", Weight: 5})
	g.AddEdge(graph.Edge{From: "a", To: "b", Weight: 2})
	collapsed := g.CollapseParallel()
	if len(collapsed.Adj["a"]) != 1 {
		t.Fatalf("expected 1 collapsed edge, got %d", len(collapsed.Adj["a"]))
	}
	if collapsed.Adj["a"][0].Weight != 2 {
		t.Fatalf("collapsed edge weight = %v, want 2 (the minimum)", collapsed.Adj["a"][0].Weight)
	}
}
