// Package graph defines the weighted road graph the route builder produces
// and the pathfinder consumes.
package graph

// Node is one graph vertex: an intersection or an endpoint.
type Node struct {
	ID       string
	Lat, Lon float64
}

// Edge is one directed road segment with the attributes §4.G assigns.
type Edge struct {
	From, To string
	Weight   float64 // cost, per §4.G's formula
	LengthM  float64
	MeanUpes float64
	TimeH    float64
	Geometry []Node // resampled polyline, endpoints included
}

// Graph is an adjacency-list directed multigraph.
type Graph struct {
	Nodes map[string]Node
	// Adj[u] holds every outgoing edge from u, possibly several parallel
	// edges between the same (u,v) pair.
	Adj map[string][]Edge
}

func New() *Graph {
	return &Graph{Nodes: map[string]Node{}, Adj: map[string][]Edge{}}
}

func (g *Graph) AddNode(n Node) {
	g.Nodes[n.ID] = n
}

func (g *Graph) AddEdge(e Edge) {
	g.Adj[e.From] = append(g.Adj[e.From], e)
}

// CollapseParallel returns a new graph keeping only the minimum-weight edge
// per (u,v) pair, the precondition §4.H requires before k-shortest-paths
// search on a multigraph.
func (g *Graph) CollapseParallel() *Graph {
	out := New()
	for id, n := range g.Nodes {
		out.Nodes[id] = n
	}
	best := map[[2]string]Edge{}
	order := [][2]string{}
	for u, edges := range g.Adj {
		for _, e := range edges {
			key := [2]string{u, e.To}
			if cur, ok := best[key]; !ok || e.Weight < cur.Weight {
				if _, seen := best[key]; !seen {
					order = append(order, key)
				}
				best[key] = e
			}
		}
	}
	for _, key := range order {
		e := best[key]
		out.Adj[e.From] = append(out.Adj[e.From], e)
	}
	return out
}

// NearestNode returns the id of the closest node to (lat,lon) by squared
// Euclidean distance in degree-space (fine for snapping at city scale).
func (g *Graph) NearestNode(lat, lon float64) (string, bool) {
	var bestID string
	var bestD2 float64
	found := false
	for id, n := range g.Nodes {
		dLat := n.Lat - lat
		dLon := n.Lon - lon
		d2 := dLat*dLat + dLon*dLon
		if !found || d2 < bestD2 {
			bestID, bestD2, found = id, d2, true
		}
	}
	return bestID, found
}
