// Package scorer computes the Unified Pollution Exposure Score for a UPES
// grid frame: per-gas normalization, the weighted satellite score, the
// humidity/wind/traffic modifiers, and EMA smoothing against the prior hour.
package scorer

import (
	"math"
	"sort"

	"github.com/aeris-platform/aeris/internal/core/model"
)

// DefaultWeights are the satellite-score weights; they must sum to 1.0.
var DefaultWeights = map[model.Gas]float64{
	model.GasNO2:  0.30,
	model.GasPM:   0.35,
	model.GasO3:   0.20,
	model.GasCH2O: 0.10,
	model.GasAI:   0.05,
}

const (
	DefaultEMALambda = 0.6
	DefaultTFAlpha   = 0.1
	MinTFAlpha       = 0.05
	MaxTFAlpha       = 0.2
)

func clip(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	default:
		return v
	}
}

// Normalize clips (v-p5)/(p95-p5) to [0,1] for every value in frame, using
// the frame's own 5th/95th percentile as bounds. A degenerate frame (no
// valid values, or p95==p5) normalizes to all zero.
func Normalize(frame []float64) []float64 {
	out := make([]float64, len(frame))

	valid := make([]float64, 0, len(frame))
	for _, v := range frame {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	if len(valid) == 0 {
		return out
	}
	sort.Float64s(valid)
	p5 := percentile(valid, 5)
	p95 := percentile(valid, 95)
	if p95 <= p5 {
		return out
	}

	for i, v := range frame {
		if math.IsNaN(v) {
			continue
		}
		out[i] = clip((v-p5)/(p95-p5), 0, 1)
	}
	return out
}

// percentile uses linear interpolation between closest ranks, sorted input
// required.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// SatelliteScore sums weight·normalized-value over whatever gases are
// present in norm; a missing gas's weight is not redistributed.
func SatelliteScore(norm map[model.Gas]float64, weights map[model.Gas]float64) float64 {
	if weights == nil {
		weights = DefaultWeights
	}
	var s float64
	for g, w := range weights {
		if v, ok := norm[g]; ok {
			s += w * v
		}
	}
	return s
}

// HDF is the humidity dispersion factor.
func HDF(humidityPct float64) float64 {
	return clip(1-humidityPct/100, 0, 1)
}

// WTF is the wind transport factor; targetDirectionDeg defaults to 0.
func WTF(speedKph, windDirectionDeg, targetDirectionDeg float64) float64 {
	speedTerm := math.Min(speedKph/50, 1)
	angle := (windDirectionDeg - targetDirectionDeg) * math.Pi / 180
	return clip(speedTerm*math.Cos(angle), 0, 1)
}

// TF is the traffic factor; alpha defaults to DefaultTFAlpha and density
// defaults to 0 (TF=1) absent traffic data.
func TF(density, alpha float64) float64 {
	if alpha <= 0 {
		alpha = DefaultTFAlpha
	}
	return 1 + alpha*clip(density, 0, 1)
}

// FinalScore combines the satellite score with the hour's modifiers.
func FinalScore(satellite, hdf, wtf, tf float64) float64 {
	return satellite * hdf * wtf * tf
}

// EMA applies exponential smoothing against the previous hour's frame.
// lambda must be in (0,1]; current and previous must have equal length.
func EMA(current, previous []float64, lambda float64) []float64 {
	if len(previous) != len(current) || lambda <= 0 || lambda > 1 {
		return current
	}
	out := make([]float64, len(current))
	for i := range current {
		c, p := current[i], previous[i]
		switch {
		case math.IsNaN(c) && math.IsNaN(p):
			out[i] = math.NaN()
		case math.IsNaN(c):
			out[i] = p
		case math.IsNaN(p):
			out[i] = c
		default:
			out[i] = lambda*c + (1-lambda)*p
		}
	}
	return out
}

// Mean returns the arithmetic mean of the non-NaN values in frame, or NaN
// if frame has no valid values.
func Mean(frame []float64) float64 {
	var sum float64
	var n int
	for _, v := range frame {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}
