// Package grid buckets pollution-cell observations into the regular
// lat/lon grid the UPES scorer operates on.
package grid

import (
	"math"

	"github.com/aeris-platform/aeris/internal/core/model"
)

// Observation is one centroid/value pair returned by the spatial store's
// range query, as consumed by Bucket.
type Observation struct {
	Lat, Lon float64
	Value    float64
}

// Frame is one gas's (ny,nx) mean-value grid, row-major, NaN where no
// observation fell into a cell.
type Frame struct {
	Spec   model.GridSpec
	Values []float64 // len == Spec.NY*Spec.NX
}

// NewSpec builds a GridSpec from an extent and a resolution in degrees.
func NewSpec(ext model.Extent, res float64) model.GridSpec {
	nx := int(math.Ceil((ext.East - ext.West) / res))
	ny := int(math.Ceil((ext.North - ext.South) / res))
	if nx < 1 {
		nx = 1
	}
	if ny < 1 {
		ny = 1
	}
	return model.GridSpec{
		West: ext.West, South: ext.South, East: ext.East, North: ext.North,
		Res: res, NX: nx, NY: ny,
	}
}

// Bucket averages observations falling into each grid cell. Cells with no
// observation are left NaN.
func Bucket(spec model.GridSpec, obs []Observation) Frame {
	sums := make([]float64, spec.NY*spec.NX)
	counts := make([]int, spec.NY*spec.NX)

	for _, o := range obs {
		row, col := spec.RowCol(o.Lat, o.Lon)
		if !spec.InBounds(row, col) {
			continue
		}
		idx := row*spec.NX + col
		sums[idx] += o.Value
		counts[idx]++
	}

	values := make([]float64, len(sums))
	for i := range values {
		if counts[i] == 0 {
			values[i] = math.NaN()
		} else {
			values[i] = sums[i] / float64(counts[i])
		}
	}
	return Frame{Spec: spec, Values: values}
}

// CenterLatLon returns the coordinate at the bbox's center, used to evaluate
// the scorer's hourly modifiers (HDF/WTF/TF).
func CenterLatLon(spec model.GridSpec) (lat, lon float64) {
	return (spec.South + spec.North) / 2, (spec.West + spec.East) / 2
}
