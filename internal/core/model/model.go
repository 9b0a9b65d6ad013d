// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"math"
	"time"
)

// BBox is a generic bounding box in (lon, lat) corners, used wherever H3
// polyfill needs a rectangular loop. SRID is always "EPSG:4326" in AERIS.
type BBox struct {
	X1, Y1 float64
	X2, Y2 float64
	SRID   string
}

func (b BBox) String() string {
	return fmt.Sprintf("%.6f,%.6f,%.6f,%.6f,%s", b.X1, b.Y1, b.X2, b.Y2, b.SRID)
}

type Polygon struct {
	GeoJSON string
}

type Cells []string

// Extent is a WGS84 bounding box in the west/south/east/north form used by
// the ingestion driver, UPES grid, and route graph builder.
type Extent struct {
	West, South, East, North float64
}

func (e Extent) String() string {
	return fmt.Sprintf("(%.4f,%.4f)-(%.4f,%.4f)", e.West, e.South, e.East, e.North)
}

// ToBBox adapts an Extent to the (lon,lat) BBox the H3 mapper expects.
func (e Extent) ToBBox() BBox {
	return BBox{X1: e.West, Y1: e.South, X2: e.East, Y2: e.North, SRID: "EPSG:4326"}
}

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat, Lon float64
}

// Gas identifies one of the five pollutant products AERIS ingests.
type Gas string

const (
	GasNO2  Gas = "NO2"
	GasCH2O Gas = "CH2O"
	GasAI   Gas = "AI"
	GasPM   Gas = "PM"
	GasO3   Gas = "O3"
)

// Gases is the fixed ingestion order, sequential per hour.
var Gases = []Gas{GasNO2, GasCH2O, GasAI, GasPM, GasO3}

func (g Gas) Valid() bool {
	switch g {
	case GasNO2, GasCH2O, GasAI, GasPM, GasO3:
		return true
	default:
		return false
	}
}

// Mode is a tagged variant replacing the source's string-compared activity.
type Mode string

const (
	ModeCommute Mode = "commute"
	ModeJog     Mode = "jog"
	ModeCycle   Mode = "cycle"
)

// NormalizeMode maps loose aliases ("commuter", "jogger", "cyclist", unknown)
// to the canonical Mode at the boundary, defaulting to ModeCommute.
func NormalizeMode(raw string) Mode {
	switch raw {
	case "commute", "commuter":
		return ModeCommute
	case "jog", "jogger":
		return ModeJog
	case "cycle", "cyclist":
		return ModeCycle
	default:
		return ModeCommute
	}
}

// User is an AERIS account: notification channel preferences, preferred
// activity, and sensitivity to pollution exposure.
type User struct {
	ID                       string
	Email                    string
	PreferredActivity        Mode
	ExposureSensitivityLevel int // 1..5
	NotifyEmail              bool
	NotifyPush               bool
	NotifyInApp              *bool // nil means "unset"; defaults to true
}

// SavedRoute is owned by exactly one User.
type SavedRoute struct {
	ID           string
	UserID       string
	Origin       LatLng
	Destination  LatLng
	ActivityType *Mode

	// Legacy blended score, maintained by a separate recompute task.
	LastComputedScore *float64
	LastComputedAt    *time.Time

	// UPES-based score, maintained by the scoring task and read by alerts.
	LastUpesScore *float64
	LastUpesAt    *time.Time
}

// PollutionGridCell is one observation of one gas at one hour over one cell polygon.
type PollutionGridCell struct {
	Timestamp time.Time // UTC, truncated to the hour
	Gas       Gas
	Polygon   [5]LatLng // closed 5-point ring
	Value     float64
	Severity  int // 0..4
}

// RouteExposureHistoryEntry is an append-only sampling of a route.
type RouteExposureHistoryEntry struct {
	ID        string
	RouteID   string
	Timestamp time.Time
	MeanUpes  float64
	MaxUpes   *float64
	Source    string
}

// AlertKind enumerates the four alert detectors.
type AlertKind string

const (
	AlertDeterioration AlertKind = "route_deterioration"
	AlertHazard        AlertKind = "hazard"
	AlertWindShift     AlertKind = "wind_shift"
	AlertTimeBased     AlertKind = "time_based"
)

// AlertLogEntry is one emitted alert.
type AlertLogEntry struct {
	ID               string
	UserID           string
	RouteID          string
	Kind             AlertKind
	ScoreBefore      float64
	ScoreAfter       float64
	Threshold        float64
	Metadata         map[string]any
	CreatedAt        time.Time
	NotifiedChannels []string
}

// NetcdfObjectRecord audits one uploaded raster.
type NetcdfObjectRecord struct {
	ID        string
	FileName  string
	BucketKey string
	Timestamp time.Time
	Gas       Gas
}

// GridSpec describes a regular lat/lon grid used by the UPES aggregator and
// raster output.
type GridSpec struct {
	West, South, East, North float64
	Res                      float64 // degrees per cell
	NX, NY                   int
}

// RowCol buckets a coordinate into this grid; callers must check InBounds.
func (g GridSpec) RowCol(lat, lon float64) (row, col int) {
	row = int(math.Floor((lat - g.South) / g.Res))
	col = int(math.Floor((lon - g.West) / g.Res))
	return row, col
}

func (g GridSpec) InBounds(row, col int) bool {
	return row >= 0 && row < g.NY && col >= 0 && col < g.NX
}
