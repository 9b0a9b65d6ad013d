// Package spatialstore defines the interface the rest of AERIS uses to
// persist and query pollution grid cells, independent of the backing
// database.
package spatialstore

import (
	"context"
	"time"

	"github.com/aeris-platform/aeris/internal/core/model"
)

// Observation is one (gas, centroid, value) tuple returned by a range query.
type Observation struct {
	Gas    model.Gas
	Lat    float64
	Lon    float64
	Value  float64
}

// LineAggregate is the legacy blended-score input: the average cell value
// and the summed severity of every cell whose polygon intersects a route's
// line geometry over the last completed hour.
type LineAggregate struct {
	AvgValue     float64
	SumSeverity  int
	CellsMatched int
}

// Store is the spatial store adapter contract, grounded on §4.A.
type Store interface {
	// BulkInsertCells inserts cells in ~2000-row chunks, each chunk
	// committed atomically. A failure in one chunk must not roll back or
	// otherwise corrupt earlier committed chunks.
	BulkInsertCells(ctx context.Context, cells []model.PollutionGridCell) error

	// RangeQuery returns every cell observation within window and bbox.
	RangeQuery(ctx context.Context, window TimeWindow, bbox model.Extent) ([]Observation, error)

	// LineIntersectAggregate aggregates cells whose polygon intersects
	// lineWKT (a WKT LINESTRING in SRID 4326) over the last completed
	// hour.
	LineIntersectAggregate(ctx context.Context, lineWKT string, hour time.Time) (LineAggregate, error)

	// MaxTimestamp returns the most recent cell timestamp across all
	// gases, or the zero time if the store is empty.
	MaxTimestamp(ctx context.Context) (time.Time, error)

	// CellsAtHour returns every cell at or above minSeverity within the
	// hour starting at hour.Truncate(time.Hour), for hotspot clustering
	// (component O). The returned cells carry only a degenerate
	// (centroid-only) polygon — hotspot.Locate only needs each cell's
	// centroid, not its true shape.
	CellsAtHour(ctx context.Context, hour time.Time, minSeverity int) ([]model.PollutionGridCell, error)

	Close()
}

// TimeWindow bounds a range query; both ends are inclusive.
type TimeWindow struct {
	From, To time.Time
}
