// Package routescore recomputes the legacy blended route score (the
// scheduler's :20 task), preserved alongside the UPES-based score per
// SPEC_FULL.md's note that both scoring paths coexist. Grounded directly
// on original_source/tasks/pollution_tasks.py's
// recompute_saved_route_exposure.
package routescore

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/aeris-platform/aeris/internal/spatialstore"
)

// blend weights match the original task's "simple score: blend of average
// value and severity sum".
const (
	valueWeight    = 0.5
	severityWeight = 10.0
)

// RouteLine is the minimal geometry routescore needs per saved route.
type RouteLine struct {
	ID                                     string
	OriginLat, OriginLon, DestLat, DestLon float64
}

// RouteLister lists every saved route's origin/destination line.
type RouteLister interface {
	ListRouteLines(ctx context.Context) ([]RouteLine, error)
}

// ScoreWriter persists the recomputed legacy score. A nil score means no
// pollution grid cells intersected the route this hour.
type ScoreWriter interface {
	UpdateLegacyScore(ctx context.Context, routeID string, score *float64, at time.Time) error
}

// SpatialStore is the subset of spatialstore.Store this task needs.
type SpatialStore interface {
	MaxTimestamp(ctx context.Context) (time.Time, error)
	LineIntersectAggregate(ctx context.Context, lineWKT string, hour time.Time) (spatialstore.LineAggregate, error)
}

var _ SpatialStore = spatialstore.Store(nil)

// Recomputer runs the legacy blended-score task over every saved route.
type Recomputer struct {
	log    *slog.Logger
	routes RouteLister
	scores ScoreWriter
	store  SpatialStore
}

type Options struct {
	Logger *slog.Logger
	Routes RouteLister
	Scores ScoreWriter
	Store  SpatialStore
}

func New(opts Options) *Recomputer {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Recomputer{log: log, routes: opts.Routes, scores: opts.Scores, store: opts.Store}
}

// Result summarizes one RunOnce call.
type Result struct {
	Skipped bool // true when there is no pollution grid data yet
	Scored  int
}

// RunOnce recomputes every saved route's legacy blended score against the
// most recent pollution-grid hour. With no grid data at all, the whole
// task is a no-op — a "missing prerequisite" status per §7, not an error.
func (r *Recomputer) RunOnce(ctx context.Context) (Result, error) {
	maxTs, err := r.store.MaxTimestamp(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("routescore: max timestamp: %w", err)
	}
	if maxTs.IsZero() {
		r.log.Info("routescore: no pollution grid data yet, skipping recompute")
		return Result{Skipped: true}, nil
	}

	lines, err := r.routes.ListRouteLines(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("routescore: list route lines: %w", err)
	}

	now := time.Now().UTC()
	var result Result
	for _, line := range lines {
		agg, err := r.store.LineIntersectAggregate(ctx, lineWKT(line), maxTs)
		if err != nil {
			r.log.Warn("routescore: recompute failed", "route_id", line.ID, "error", err)
			continue
		}

		var score *float64
		if agg.CellsMatched > 0 {
			v := math.Round((agg.AvgValue*valueWeight+float64(agg.SumSeverity)*severityWeight)*1e4) / 1e4
			score = &v
		}
		if err := r.scores.UpdateLegacyScore(ctx, line.ID, score, now); err != nil {
			r.log.Warn("routescore: update legacy score failed", "route_id", line.ID, "error", err)
			continue
		}
		result.Scored++
	}
	return result, nil
}

func lineWKT(l RouteLine) string {
	return fmt.Sprintf("LINESTRING(%f %f, %f %f)", l.OriginLon, l.OriginLat, l.DestLon, l.DestLat)
}
