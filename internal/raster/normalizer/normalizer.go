// Package normalizer streams a georeferenced single-band raster into the
// grid-cell records the ingestion driver bulk-inserts into the spatial
// store, per §4.B.
package normalizer

import (
	"math"
	"time"

	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/severity"
	"github.com/aeris-platform/aeris/internal/timeutil"
)

const DefaultCellCap = 5000
const fallbackCellDeg = 0.025

// Source is the subset of gdalio.Dataset the normalizer needs, kept as an
// interface so the normalizer can be tested without opening a real file.
type Source interface {
	SizeX() int
	SizeY() int
	PixelSizeDeg() (dx, dy float64)
	PixelCenterLatLon(x, y int) (lat, lon float64)
	ReadPixel(x, y int) (float64, error)
}

// Stride computes the iteration stride so the emitted cell count does not
// exceed cap: ceil(sqrt(pixels/cap)).
func Stride(sizeX, sizeY, cap int) int {
	if cap <= 0 {
		cap = DefaultCellCap
	}
	pixels := sizeX * sizeY
	if pixels <= cap {
		return 1
	}
	s := int(math.Ceil(math.Sqrt(float64(pixels) / float64(cap))))
	if s < 1 {
		s = 1
	}
	return s
}

// Normalize iterates src at the cap-bounded stride, emitting a cell per
// surviving pixel via emit. NaN pixels and per-gas fill sentinels are
// dropped silently, matching §7's "schema/value anomaly" policy.
func Normalize(src Source, gas model.Gas, ts time.Time, cap int, emit func(model.PollutionGridCell)) {
	sizeX, sizeY := src.SizeX(), src.SizeY()
	stride := Stride(sizeX, sizeY, cap)
	dx, dy := src.PixelSizeDeg()
	if dx <= 0 {
		dx = fallbackCellDeg
	}
	if dy <= 0 {
		dy = fallbackCellDeg
	}
	ceiling, hasCeiling := severity.FillCeiling(gas)

	for y := 0; y < sizeY; y += stride {
		for x := 0; x < sizeX; x += stride {
			v, err := src.ReadPixel(x, y)
			if err != nil || math.IsNaN(v) {
				continue
			}
			if hasCeiling && math.Abs(v) > ceiling {
				continue
			}

			lat, lon := src.PixelCenterLatLon(x, y)
			emit(model.PollutionGridCell{
				Timestamp: timeutil.TruncateToHour(ts),
				Gas:       gas,
				Polygon:   cellPolygon(lat, lon, dx, dy),
				Value:     v,
				Severity:  severity.Classify(v, gas),
			})
		}
	}
}

// cellPolygon builds the closed five-point ring bounded by the pixel's
// half-cell offsets, starting and ending at the same corner.
func cellPolygon(lat, lon, dx, dy float64) [5]model.LatLng {
	halfLon, halfLat := dx/2, dy/2
	nw := model.LatLng{Lat: lat + halfLat, Lon: lon - halfLon}
	ne := model.LatLng{Lat: lat + halfLat, Lon: lon + halfLon}
	se := model.LatLng{Lat: lat - halfLat, Lon: lon + halfLon}
	sw := model.LatLng{Lat: lat - halfLat, Lon: lon - halfLon}
	return [5]model.LatLng{nw, ne, se, sw, nw}
}
