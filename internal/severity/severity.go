// Package severity classifies a raw pollutant reading into an integer band,
// the pure function §4.B calls "good < moderate ≤ unhealthy ≤ very_unhealthy
// ≤ hazardous", and back into its human label for logging and webhook text.
package severity

import "github.com/aeris-platform/aeris/internal/core/model"

// thresholds holds the four band boundaries for one gas, in ascending
// order: moderate, unhealthy, very_unhealthy, hazardous.
var thresholds = map[model.Gas][4]float64{
	model.GasNO2:  {5e15, 1e16, 2e16, 3e16},
	model.GasCH2O: {8e15, 1.6e16, 3.2e16, 6.4e16},
	model.GasAI:   {1, 2, 4, 7},
	model.GasPM:   {0.2, 0.5, 1, 2},
	model.GasO3:   {220, 280, 400, 500},
}

// fillCeiling is the per-gas magnitude above which a value is treated as a
// satellite fill sentinel, not a reading.
var fillCeiling = map[model.Gas]float64{
	model.GasNO2:  1e18,
	model.GasCH2O: 1e18,
	model.GasAI:   1e10,
	model.GasPM:   1e10,
	model.GasO3:   1e10,
}

// FillCeiling returns the fill-sentinel magnitude for gas, or ok=false if
// gas is not recognized.
func FillCeiling(gas model.Gas) (v float64, ok bool) {
	v, ok = fillCeiling[gas]
	return
}

// Classify returns the severity band (0..4) for value under gas's
// thresholds. Values below the lowest threshold are severity 0; unknown
// gases classify as 0.
func Classify(value float64, gas model.Gas) int {
	t, ok := thresholds[gas]
	if !ok {
		return 0
	}
	switch {
	case value >= t[3]:
		return 4
	case value >= t[2]:
		return 3
	case value >= t[1]:
		return 2
	case value >= t[0]:
		return 1
	default:
		return 0
	}
}

var labels = [5]string{"good", "moderate", "unhealthy", "very_unhealthy", "hazardous"}

// Label returns the human-readable band name for a severity level returned
// by Classify. Out-of-range levels clamp to the nearest valid band.
func Label(level int) string {
	switch {
	case level < 0:
		return labels[0]
	case level > 4:
		return labels[4]
	default:
		return labels[level]
	}
}
