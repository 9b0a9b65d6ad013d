// Package detector implements the four route-alert conditions: deterioration,
// hazard, wind shift, and time-based, each a pure function over the route's
// current sampling state and the user's sensitivity scale.
package detector

import (
	"fmt"

	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/geo"
)

const (
	DefaultDeteriorationBase = 0.15
	DefaultHazardThreshold   = 0.85
	DefaultWindShiftMinKph   = 5.0
	DefaultWindShiftMaxAngle = 45.0
	DefaultTimeBasedMargin   = 0.15
)

// Wind describes the hour's wind reading at a route's midpoint.
type Wind struct {
	SpeedKph float64
	FromDeg  float64 // meteorological "wind_from" direction
}

// Finding is one fired detector's record.
type Finding struct {
	Kind        model.AlertKind
	ScoreBefore float64
	ScoreAfter  float64
	Threshold   float64
	Metadata    map[string]any
}

// Deterioration fires when curr has risen by at least base*scale over prev.
func Deterioration(prev, curr, base, scale float64) (Finding, bool) {
	if prev <= 0 {
		return Finding{}, false
	}
	threshold := base * scale
	delta := (curr - prev) / prev
	if delta < threshold {
		return Finding{}, false
	}
	return Finding{
		Kind:        model.AlertDeterioration,
		ScoreBefore: prev,
		ScoreAfter:  curr,
		Threshold:   threshold,
		Metadata:    map[string]any{"delta_pct": delta * 100},
	}, true
}

// Hazard fires when maxUpes along the route meets or exceeds threshold.
func Hazard(maxUpes, threshold float64) (Finding, bool) {
	if maxUpes < threshold {
		return Finding{}, false
	}
	return Finding{
		Kind:        model.AlertHazard,
		ScoreBefore: 0,
		ScoreAfter:  maxUpes,
		Threshold:   threshold,
	}, true
}

// WindShift fires when the wind is blowing from source toward the route
// midpoint within maxAngleDeg, and is fast enough to matter. It requires
// both a source point and a midpoint; absent either, the caller should
// not invoke WindShift at all (the detector is simply not evaluated).
func WindShift(source, midpoint geo.Point, wind Wind, minKph, maxAngleDeg float64) (Finding, bool) {
	if wind.SpeedKph < minKph {
		return Finding{}, false
	}
	bearing := geo.Bearing(source.Lat, source.Lon, midpoint.Lat, midpoint.Lon)
	advectsToward := fmod360(wind.FromDeg + 180)
	diff := geo.AngleDiff(bearing, advectsToward)
	if diff > maxAngleDeg {
		return Finding{}, false
	}
	return Finding{
		Kind: model.AlertWindShift,
		Metadata: map[string]any{
			"bearing_deg":    bearing,
			"wind_from_deg":  wind.FromDeg,
			"angle_diff_deg": diff,
			"wind_speed_kph": wind.SpeedKph,
		},
	}, true
}

func fmod360(v float64) float64 {
	v = v - 360*float64(int(v/360))
	if v < 0 {
		v += 360
	}
	return v
}

// TimeBased fires when curr is at least recentMin+margin, given a known
// 24h minimum. Absent a minimum, the detector is not evaluated.
func TimeBased(curr, recentMin, margin float64, hasMin bool) (Finding, bool) {
	if !hasMin {
		return Finding{}, false
	}
	threshold := recentMin + margin
	if curr < threshold {
		return Finding{}, false
	}
	return Finding{
		Kind:        model.AlertTimeBased,
		ScoreBefore: recentMin,
		ScoreAfter:  curr,
		Threshold:   threshold,
		Metadata:    map[string]any{"recent_24h_min": recentMin},
	}, true
}

// Message renders a short human-readable description of a finding for the
// webhook payload.
func Message(f Finding) string {
	switch f.Kind {
	case model.AlertDeterioration:
		return fmt.Sprintf("route exposure rose %.1f%% over its previous score", f.Metadata["delta_pct"])
	case model.AlertHazard:
		return fmt.Sprintf("route exposure %.2f reached the hazard threshold %.2f", f.ScoreAfter, f.Threshold)
	case model.AlertWindShift:
		return "wind is carrying a nearby pollution source toward this route"
	case model.AlertTimeBased:
		return fmt.Sprintf("route exposure %.2f rose past its 24h minimum plus margin", f.ScoreAfter)
	default:
		return "route exposure alert"
	}
}
