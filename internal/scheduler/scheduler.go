// Package scheduler runs AERIS's four hourly tasks on a fixed UTC cron,
// per §4.L: ingestion at :00, UPES compute at :15 (also directly
// chainable on ingestion completion), legacy route rescoring at :20, and
// the alert pipeline at :25. Each task is independent — a failure in one
// never blocks the next tick.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/aeris-platform/aeris/internal/alerts/pipeline"
	"github.com/aeris-platform/aeris/internal/core/observability"
	"github.com/aeris-platform/aeris/internal/exposure/sampler"
	"github.com/aeris-platform/aeris/internal/hotspot"
	"github.com/aeris-platform/aeris/internal/ingestion"
	"github.com/aeris-platform/aeris/internal/raster/gdalio"
	"github.com/aeris-platform/aeris/internal/raster/writer"
	"github.com/aeris-platform/aeris/internal/routescore"
	"github.com/aeris-platform/aeris/internal/upes/compute"
)

// IngestionRunner is the subset of ingestion.Driver the scheduler needs.
type IngestionRunner interface {
	RunHour(ctx context.Context, now time.Time, onUpdated func(context.Context, ingestion.Result)) (ingestion.Result, error)
}

var _ IngestionRunner = (*ingestion.Driver)(nil)

// ComputeRunner is the subset of compute.Compute the scheduler needs.
type ComputeRunner interface {
	RunHour(ctx context.Context, hour time.Time, granuleIDs map[string]string) (compute.Result, error)
}

var _ ComputeRunner = (*compute.Compute)(nil)

// RouteScoreRunner is the subset of routescore.Recomputer the scheduler needs.
type RouteScoreRunner interface {
	RunOnce(ctx context.Context) (routescore.Result, error)
}

var _ RouteScoreRunner = (*routescore.Recomputer)(nil)

// AlertRunner is the subset of pipeline.Pipeline the scheduler needs.
type AlertRunner interface {
	RunOnce(ctx context.Context, raster sampler.PointReader, hotspots []hotspot.Hotspot) (pipeline.Result, error)
}

var _ AlertRunner = (*pipeline.Pipeline)(nil)

// HotspotSource resolves the current hour's hotspots for the alert
// pipeline's wind-shift detector.
type HotspotSource interface {
	Current(ctx context.Context, hour time.Time) ([]hotspot.Hotspot, error)
}

var _ HotspotSource = (*hotspot.Source)(nil)

// Options configures a Scheduler.
type Options struct {
	Logger *slog.Logger

	Ingestion  IngestionRunner
	Compute    ComputeRunner
	RouteScore RouteScoreRunner
	Alerts     AlertRunner
	Hotspots   HotspotSource

	// RasterRoot locates the latest UPES final-score GeoTIFF the alert
	// pipeline samples each run.
	RasterRoot string

	// UpesEnabled gates the UPES compute task (both its own :15 tick and
	// the direct post-ingestion chain). AlertsEnabled gates the whole
	// alert pipeline task. Both are false when left unset, which skips the
	// task; cmd/aeris-worker always sets them explicitly from config.
	UpesEnabled   bool
	AlertsEnabled bool
}

// Scheduler owns the cron runner and the four task closures.
type Scheduler struct {
	log *slog.Logger
	cr  *cron.Cron

	ingestion  IngestionRunner
	compute    ComputeRunner
	routeScore RouteScoreRunner
	alerts     AlertRunner
	hotspots   HotspotSource
	rasterRoot string

	upesEnabled   bool
	alertsEnabled bool
}

// New builds a Scheduler with the standard :00/:15/:20/:25 entries
// registered, but not yet started.
func New(opts Options) (*Scheduler, error) {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Scheduler{
		log:           log,
		cr:            cron.New(cron.WithLocation(time.UTC)),
		ingestion:     opts.Ingestion,
		compute:       opts.Compute,
		routeScore:    opts.RouteScore,
		alerts:        opts.Alerts,
		hotspots:      opts.Hotspots,
		rasterRoot:    opts.RasterRoot,
		upesEnabled:   opts.UpesEnabled,
		alertsEnabled: opts.AlertsEnabled,
	}

	entries := []struct {
		spec string
		fn   func(ctx context.Context)
	}{
		{"0 * * * *", s.runIngestion},
		{"15 * * * *", s.runComputeTick},
		{"20 * * * *", s.runRouteScore},
		{"25 * * * *", s.runAlerts},
	}
	for _, e := range entries {
		fn := e.fn
		if _, err := s.cr.AddFunc(e.spec, func() { fn(context.Background()) }); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Start begins running the cron schedule in the background.
func (s *Scheduler) Start() { s.cr.Start() }

// Stop halts the schedule, waiting for any in-flight task to finish.
func (s *Scheduler) Stop() { <-s.cr.Stop().Done() }

func (s *Scheduler) runIngestion(ctx context.Context) {
	start := time.Now()
	_, err := s.ingestion.RunHour(ctx, time.Now().UTC(), s.onIngested)
	observability.ObserveSchedulerTask("ingestion", err, time.Since(start))
	if err != nil {
		s.log.Error("scheduler: ingestion task failed", "error", err)
	}
}

// onIngested is ingestion's completion chain callback: per §4.L, UPES
// compute is also directly triggerable right after ingestion finishes,
// not just on its own :15 tick.
func (s *Scheduler) onIngested(ctx context.Context, result ingestion.Result) {
	s.runCompute(ctx, result.Hour, nil)
}

func (s *Scheduler) runComputeTick(ctx context.Context) {
	hour := time.Now().UTC().Add(-time.Hour).Truncate(time.Hour)
	s.runCompute(ctx, hour, nil)
}

func (s *Scheduler) runCompute(ctx context.Context, hour time.Time, granuleIDs map[string]string) {
	if !s.upesEnabled {
		s.log.Warn("scheduler: upes compute task skipped, UPES_ENABLED is false")
		return
	}
	start := time.Now()
	_, err := s.compute.RunHour(ctx, hour, granuleIDs)
	observability.ObserveSchedulerTask("upes_compute", err, time.Since(start))
	if err != nil {
		s.log.Error("scheduler: upes compute task failed", "hour", hour, "error", err)
	}
}

func (s *Scheduler) runRouteScore(ctx context.Context) {
	start := time.Now()
	_, err := s.routeScore.RunOnce(ctx)
	observability.ObserveSchedulerTask("route_rescore", err, time.Since(start))
	if err != nil {
		s.log.Error("scheduler: route rescore task failed", "error", err)
	}
}

func (s *Scheduler) runAlerts(ctx context.Context) {
	start := time.Now()
	err := s.runAlertsOnce(ctx)
	observability.ObserveSchedulerTask("alert_pipeline", err, time.Since(start))
	if err != nil {
		s.log.Error("scheduler: alert pipeline task failed", "error", err)
	}
}

// runAlertsOnce loads the latest UPES raster and hotspot set, then runs
// the alert pipeline. A missing raster is a "missing prerequisite" per
// §7 — not an error — and the pipeline itself handles a nil raster by
// skipping every route for that run. Per §4.K, the whole pipeline is
// skipped when ALERTS_ENABLED is false.
func (s *Scheduler) runAlertsOnce(ctx context.Context) error {
	if !s.alertsEnabled {
		s.log.Warn("scheduler: alert pipeline task skipped, ALERTS_ENABLED is false")
		return nil
	}

	raster, closeFn, err := s.openLatestRaster()
	if err != nil {
		s.log.Warn("scheduler: no UPES raster available yet, running alert pipeline with no sampling", "error", err)
	}
	if closeFn != nil {
		defer closeFn()
	}

	var hotspots []hotspot.Hotspot
	if s.hotspots != nil {
		hotspots, err = s.hotspots.Current(ctx, time.Now().UTC())
		if err != nil {
			s.log.Warn("scheduler: hotspot lookup failed, wind-shift detection disabled this run", "error", err)
			hotspots = nil
		}
	}

	_, err = s.alerts.RunOnce(ctx, raster, hotspots)
	return err
}

func (s *Scheduler) openLatestRaster() (sampler.PointReader, func(), error) {
	path, err := writer.LatestFinalScorePath(s.rasterRoot)
	if err != nil {
		return nil, nil, err
	}
	ds, err := gdalio.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return ds, func() { ds.Close() }, nil
}
