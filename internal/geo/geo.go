// Package geo holds the small set of spherical-geometry helpers shared by
// the route graph builder, exposure sampler, and alert detectors: haversine
// distance/resampling for line geometry, and bearing for wind-shift
// comparisons. Short-leg distance estimates use the cheaper equirectangular
// approximation per spec's coordinate-system assumptions.
package geo

import "math"

const earthRadiusM = 6371000.0

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
func toDeg(rad float64) float64 { return rad * 180 / math.Pi }

// HaversineMeters returns the great-circle distance between two WGS84
// points, in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRad(lat1), toRad(lat2)
	dPhi := toRad(lat2 - lat1)
	dLambda := toRad(lon2 - lon1)

	a := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusM * c
}

// EquirectKm approximates short-leg distance using fixed 111km/deg latitude
// and 111·cos(lat)km/deg longitude scaling — cheaper than haversine and
// accurate enough for edge-length fallbacks on road-graph segments.
func EquirectKm(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * 111.0
	midLat := (lat1 + lat2) / 2
	dLon := (lon2 - lon1) * 111.0 * math.Cos(toRad(midLat))
	return math.Hypot(dLat, dLon)
}

// Bearing returns the initial great-circle bearing from (lat1,lon1) to
// (lat2,lon2), in degrees clockwise from true north, in [0,360).
func Bearing(lat1, lon1, lat2, lon2 float64) float64 {
	phi1, phi2 := toRad(lat1), toRad(lat2)
	dLambda := toRad(lon2 - lon1)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)
	theta := math.Atan2(y, x)
	return math.Mod(toDeg(theta)+360, 360)
}

// AngleDiff returns the smallest absolute difference between two bearings,
// in [0,180].
func AngleDiff(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}

// Point is a WGS84 coordinate used by ResampleLine.
type Point struct{ Lat, Lon float64 }

// ResampleLine returns points along the polyline at a fixed arc-length step
// (meters), measuring each leg with HaversineMeters and placing samples by
// linear interpolation of lat/lon within the leg. Always includes the
// first and last input point.
func ResampleLine(line []Point, stepM float64) []Point {
	if len(line) == 0 {
		return nil
	}
	if len(line) == 1 || stepM <= 0 {
		return []Point{line[0]}
	}

	out := []Point{line[0]}
	var carry float64 // distance remaining until the next sample, in meters

	carry = stepM
	for i := 0; i+1 < len(line); i++ {
		a, b := line[i], line[i+1]
		segLen := HaversineMeters(a.Lat, a.Lon, b.Lat, b.Lon)
		if segLen == 0 {
			continue
		}
		dist := carry
		for dist <= segLen {
			f := dist / segLen
			out = append(out, Point{
				Lat: a.Lat + (b.Lat-a.Lat)*f,
				Lon: a.Lon + (b.Lon-a.Lon)*f,
			})
			dist += stepM
		}
		carry = dist - segLen
	}

	last := line[len(line)-1]
	if out[len(out)-1] != last {
		out = append(out, last)
	}
	return out
}
