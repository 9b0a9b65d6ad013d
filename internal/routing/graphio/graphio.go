// Package graphio loads a pre-fetched road topology (nodes, edges, OSM-style
// tags) from a local JSON file and assembles it into a graph.Graph via
// component G's BuildEdge. Fetching that topology from an upstream
// road-graph provider is explicitly out of scope (§1); this package only
// covers turning an already-downloaded extract into the weighted graph the
// Pathfinder (H) consumes.
package graphio

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/exposure/sampler"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/routing/builder"
	"github.com/aeris-platform/aeris/internal/routing/graph"
)

// RawEdge is one JSON-encoded topology edge, prior to cost assembly.
type RawEdge struct {
	From, To graph.Node
	Tags     builder.Tags
	Geometry []geo.Point // optional; empty interpolates a straight line
}

// RawGraph is the on-disk shape of a topology extract.
type RawGraph struct {
	Edges []RawEdge
}

// Load reads and decodes a RawGraph from path.
func Load(path string) (RawGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RawGraph{}, fmt.Errorf("graphio: read %s: %w", path, err)
	}
	var raw RawGraph
	if err := json.Unmarshal(data, &raw); err != nil {
		return RawGraph{}, fmt.Errorf("graphio: decode %s: %w", path, err)
	}
	return raw, nil
}

// Build assembles raw into a weighted, parallel-collapsed graph.Graph for
// mode, sampling raster (the latest UPES final-score frame) along each
// edge. A nil raster degrades every edge to sampler.FallbackScore, per
// §7's missing-prerequisite handling.
func Build(raw RawGraph, mode model.Mode, raster sampler.PointReader, stepM float64) *graph.Graph {
	g := graph.New()
	for _, re := range raw.Edges {
		g.AddNode(re.From)
		g.AddNode(re.To)
		g.AddEdge(builder.BuildEdge(re.From, re.To, re.Tags, re.Geometry, mode, raster, stepM))
	}
	return g.CollapseParallel()
}
