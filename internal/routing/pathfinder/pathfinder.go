// Package pathfinder finds the lowest-cost route, and up to k alternatives,
// over a routing graph that has already had parallel edges collapsed.
package pathfinder

import (
	"container/heap"

	"github.com/twpayne/go-geom"

	"github.com/aeris-platform/aeris/internal/routing/graph"
)

// Path is one returned route: its geometry and the four aggregates §4.H
// defines.
type Path struct {
	Line        *geom.LineString
	ExposureSum float64 // Σ mean_upes_e · length_km_e
	DistanceKm  float64
	TimeMin     float64
	Cost        float64
	edgeSeq     []graph.Edge
}

// FindPaths snaps origin/destination to nearest nodes, then returns up to k
// simple paths in non-decreasing cost order. g must already have parallel
// edges collapsed (graph.Graph.CollapseParallel). Returns nil when the
// graph is empty, snapping fails, or no path exists.
func FindPaths(g *graph.Graph, originLat, originLon, destLat, destLon float64, k int) []Path {
	if len(g.Nodes) == 0 {
		return nil
	}
	src, ok := g.NearestNode(originLat, originLon)
	if !ok {
		return nil
	}
	dst, ok := g.NearestNode(destLat, destLon)
	if !ok {
		return nil
	}
	if k <= 0 {
		k = 1
	}

	edgeSeqs := yenKShortest(g, src, dst, k)
	if len(edgeSeqs) == 0 {
		return nil
	}

	out := make([]Path, 0, len(edgeSeqs))
	for _, seq := range edgeSeqs {
		out = append(out, aggregate(seq))
	}
	return out
}

// dijkstra returns the lowest-cost sequence of edges from src to dst,
// skipping any edge present in banned.
func dijkstra(g *graph.Graph, src, dst string, banned map[[2]string]bool) []graph.Edge {
	dist := map[string]float64{src: 0}
	prevEdge := map[string]graph.Edge{}
	visited := map[string]bool{}

	pq := &pqueue{}
	heap.Init(pq)
	heap.Push(pq, pqItem{node: src, cost: 0})

	for pq.Len() > 0 {
		cur := heap.Pop(pq).(pqItem)
		if visited[cur.node] {
			continue
		}
		visited[cur.node] = true
		if cur.node == dst {
			break
		}
		for _, e := range g.Adj[cur.node] {
			if banned[[2]string{e.From, e.To}] {
				continue
			}
			nd := dist[cur.node] + e.Weight
			if old, ok := dist[e.To]; !ok || nd < old {
				dist[e.To] = nd
				prevEdge[e.To] = e
				heap.Push(pq, pqItem{node: e.To, cost: nd})
			}
		}
	}

	if _, ok := dist[dst]; !ok {
		return nil
	}

	var seq []graph.Edge
	for n := dst; n != src; {
		e, ok := prevEdge[n]
		if !ok {
			return nil
		}
		seq = append([]graph.Edge{e}, seq...)
		n = e.From
	}
	return seq
}

// yenKShortest implements Yen's algorithm for loopless k-shortest paths,
// built on repeated dijkstra calls with edge exclusion.
func yenKShortest(g *graph.Graph, src, dst string, k int) [][]graph.Edge {
	first := dijkstra(g, src, dst, nil)
	if first == nil {
		return nil
	}
	A := [][]graph.Edge{first}
	var B [][]graph.Edge

	for len(A) < k {
		prev := A[len(A)-1]
		for i := range prev {
			spurNode := prev[i].From
			rootPath := prev[:i]

			banned := map[[2]string]bool{}
			for _, p := range A {
				if pathSharesRoot(p, rootPath) && len(p) > i {
					banned[[2]string{p[i].From, p[i].To}] = true
				}
			}

			spurPath := dijkstra(g, spurNode, dst, banned)
			if spurPath == nil {
				continue
			}
			candidate := append(append([]graph.Edge{}, rootPath...), spurPath...)
			if !containsSeq(A, candidate) && !containsSeq(B, candidate) {
				B = append(B, candidate)
			}
		}
		if len(B) == 0 {
			break
		}
		best := popCheapest(&B)
		A = append(A, best)
	}
	return A
}

func pathSharesRoot(p, root []graph.Edge) bool {
	if len(p) < len(root) {
		return false
	}
	for i, e := range root {
		if p[i] != e {
			return false
		}
	}
	return true
}

func containsSeq(set [][]graph.Edge, cand []graph.Edge) bool {
	for _, s := range set {
		if len(s) != len(cand) {
			continue
		}
		same := true
		for i := range s {
			if s[i] != cand[i] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

func seqCost(seq []graph.Edge) float64 {
	var c float64
	for _, e := range seq {
		c += e.Weight
	}
	return c
}

func popCheapest(B *[][]graph.Edge) []graph.Edge {
	best := 0
	for i, s := range *B {
		if seqCost(s) < seqCost((*B)[best]) {
			best = i
		}
	}
	out := (*B)[best]
	*B = append((*B)[:best], (*B)[best+1:]...)
	return out
}

func aggregate(seq []graph.Edge) Path {
	var exposure, distKm, timeH, cost float64
	var coords []geom.Coord
	for _, e := range seq {
		lengthKm := e.LengthM / 1000
		exposure += e.MeanUpes * lengthKm
		distKm += lengthKm
		timeH += e.TimeH
		cost += e.Weight

		for _, n := range e.Geometry {
			c := geom.Coord{n.Lon, n.Lat}
			if len(coords) > 0 && coordsEqual(coords[len(coords)-1], c) {
				continue
			}
			coords = append(coords, c)
		}
	}

	ls := geom.NewLineString(geom.XY)
	if len(coords) > 0 {
		_ = ls.SetCoords(coords)
	}

	return Path{
		Line:        ls,
		ExposureSum: exposure,
		DistanceKm:  distKm,
		TimeMin:     60 * timeH,
		Cost:        cost,
		edgeSeq:     seq,
	}
}

func coordsEqual(a, b geom.Coord) bool {
	return a[0] == b[0] && a[1] == b[1]
}

type pqItem struct {
	node string
	cost float64
}

type pqueue []pqItem

func (q pqueue) Len() int            { return len(q) }
func (q pqueue) Less(i, j int) bool  { return q[i].cost < q[j].cost }
func (q pqueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *pqueue) Push(x interface{}) { *q = append(*q, x.(pqItem)) }
func (q *pqueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}
