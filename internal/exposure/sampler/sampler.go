// Package sampler resamples a route's line geometry against the latest
// UPES final-score raster, producing the (mean, max) pair persisted to
// RouteExposureHistoryEntry and consumed by the alert detectors.
package sampler

import "github.com/aeris-platform/aeris/internal/geo"

const (
	DefaultStepMeters = 50.0
	FallbackScore     = 0.5
)

// PointReader reads a single-pixel window of a raster at a WGS84 point.
// ok is false when the point falls outside the raster's extent.
type PointReader interface {
	ValueAt(lat, lon float64) (value float64, ok bool, err error)
}

// Result is the sampler's (mean, max) output.
type Result struct {
	Mean float64
	Max  float64
}

// Sample resamples line at stepM (0 uses DefaultStepMeters) and reads r at
// each point. Points the reader can't resolve, or that return a value
// outside [0,1], are skipped. With no valid samples, returns the fallback
// for both mean and max.
func Sample(r PointReader, line []geo.Point, stepM float64) (Result, error) {
	if stepM <= 0 {
		stepM = DefaultStepMeters
	}
	pts := geo.ResampleLine(line, stepM)

	var sum, max float64
	var n int
	for _, p := range pts {
		v, ok, err := r.ValueAt(p.Lat, p.Lon)
		if err != nil {
			return Result{}, err
		}
		if !ok || v < 0 || v > 1 {
			continue
		}
		sum += v
		if n == 0 || v > max {
			max = v
		}
		n++
	}

	if n == 0 {
		return Result{Mean: FallbackScore, Max: FallbackScore}, nil
	}
	return Result{Mean: sum / float64(n), Max: max}, nil
}
