// Package builder transforms raw road-graph edges (tags + geometry) into
// weighted graph.Edge values: speed inference, UPES sampling along the
// edge, and the mode-specific cost formula from §4.G.
package builder

import (
	"strings"

	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/exposure/sampler"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/routing/graph"
)

// Tags is the subset of OSM-style edge tags §4.G reads.
type Tags struct {
	HighwayClass string // motorway, trunk, primary, secondary, cycleway, path, footway, pedestrian, ...
	MaxspeedKph  float64
	MaxspeedMph  float64
	LengthM      float64
	Leisure      string // e.g. "park"
	Cycleway     string
	Access       string
}

// ModeWeights are the (alpha, beta, gamma) cost weights for a mode; they
// must sum to 1.
type ModeWeights struct{ Alpha, Beta, Gamma float64 }

var weightsByMode = map[model.Mode]ModeWeights{
	model.ModeCommute: {Alpha: 0.2, Beta: 0.4, Gamma: 0.4},
	model.ModeJog:     {Alpha: 0.7, Beta: 0.15, Gamma: 0.15},
	model.ModeCycle:   {Alpha: 0.4, Beta: 0.3, Gamma: 0.3},
}

// Weights returns the cost weights for mode, defaulting to commute weights
// for any unrecognized mode.
func Weights(mode model.Mode) ModeWeights {
	if w, ok := weightsByMode[mode]; ok {
		return w
	}
	return weightsByMode[model.ModeCommute]
}

// InferSpeedKph implements §4.G's speed inference table.
func InferSpeedKph(t Tags) float64 {
	if t.MaxspeedKph > 0 {
		return t.MaxspeedKph
	}
	if t.MaxspeedMph > 0 {
		return t.MaxspeedMph * 1.60934
	}
	switch t.HighwayClass {
	case "motorway":
		return 100
	case "trunk":
		return 80
	case "primary":
		return 60
	case "secondary":
		return 50
	case "cycleway", "path":
		return 15
	case "footway", "pedestrian":
		return 5
	default:
		return 25
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Modifier implements §4.G's per-mode edge-modifier rules, clamped to
// [0.1, 5.0].
func Modifier(mode model.Mode, t Tags) float64 {
	m := 1.0
	switch mode {
	case model.ModeJog:
		if t.HighwayClass == "motorway" || t.HighwayClass == "trunk" {
			m *= 2.0
		}
		if t.Leisure == "park" || isFootlike(t.HighwayClass) {
			m *= 0.5
		}
	case model.ModeCycle:
		if t.Cycleway != "" {
			m *= 0.7
		}
		if t.HighwayClass == "motorway" || t.HighwayClass == "trunk" {
			m *= 1.5
		}
	case model.ModeCommute:
		if isFootlike(t.HighwayClass) && !strings.EqualFold(t.Access, "yes") {
			m *= 1.2
		}
	}
	return clamp(m, 0.1, 5.0)
}

func isFootlike(highway string) bool {
	switch highway {
	case "footway", "path", "pedestrian":
		return true
	default:
		return false
	}
}

// BuildEdge resamples geometry (or interpolates endpoints when absent),
// samples the UPES raster, infers speed/length, and computes cost.
func BuildEdge(
	from, to graph.Node,
	t Tags,
	geometry []geo.Point,
	mode model.Mode,
	raster sampler.PointReader,
	stepM float64,
) graph.Edge {
	line := geometry
	if len(line) == 0 {
		line = []geo.Point{{Lat: from.Lat, Lon: from.Lon}, {Lat: to.Lat, Lon: to.Lon}}
	}

	var meanUpes float64
	if raster != nil {
		res, err := sampler.Sample(raster, line, stepM)
		if err == nil {
			meanUpes = res.Mean
		} else {
			meanUpes = sampler.FallbackScore
		}
	} else {
		meanUpes = sampler.FallbackScore
	}

	lengthM := t.LengthM
	if lengthM <= 0 {
		lengthM = geo.HaversineMeters(from.Lat, from.Lon, to.Lat, to.Lon)
	}
	speedKph := InferSpeedKph(t)
	lengthKm := lengthM / 1000
	timeH := lengthKm / maxFloat(speedKph, 5)

	w := Weights(mode)
	base := w.Alpha*meanUpes + w.Beta*lengthKm + w.Gamma*timeH
	cost := Modifier(mode, t) * base

	geomNodes := make([]graph.Node, len(line))
	for i, p := range line {
		geomNodes[i] = graph.Node{Lat: p.Lat, Lon: p.Lon}
	}

	return graph.Edge{
		From:     from.ID,
		To:       to.ID,
		Weight:   cost,
		LengthM:  lengthM,
		MeanUpes: meanUpes,
		TimeH:    timeH,
		Geometry: geomNodes,
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
