// Package compute orchestrates one hour of the UPES pipeline: it pulls the
// hour's cell observations from the spatial store, buckets and normalizes
// them per gas (component D), scores and EMA-smooths the grid (component
// E), and persists the rasters (component F). This is the glue the
// Scheduler's :15 task and the post-ingestion trigger both call.
package compute

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/core/observability"
	"github.com/aeris-platform/aeris/internal/raster/gdalio"
	"github.com/aeris-platform/aeris/internal/raster/writer"
	"github.com/aeris-platform/aeris/internal/spatialstore"
	"github.com/aeris-platform/aeris/internal/upes/grid"
	"github.com/aeris-platform/aeris/internal/upes/scorer"
	"github.com/aeris-platform/aeris/internal/upes/weather"
)

// SpatialStore is the subset of spatialstore.Store the UPES compute task
// needs: the hour's cell observations.
type SpatialStore interface {
	RangeQuery(ctx context.Context, window spatialstore.TimeWindow, bbox model.Extent) ([]spatialstore.Observation, error)
}

var _ SpatialStore = spatialstore.Store(nil)

// WeatherSource supplies the HDF/WTF modifier inputs, evaluated at the
// grid's bbox center.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (weather.Reading, error)
}

var _ WeatherSource = (*weather.Client)(nil)

// TrafficSource supplies the TF modifier input. No implementation exists
// in the corpus; absent a source, density defaults to 0 (TF=1) per §4.E.
type TrafficSource interface {
	Density(ctx context.Context, lat, lon float64) (float64, error)
}

// RasterOutput persists one hour's rasters and locates the most recent
// final-score frame for EMA smoothing. The default implementation wraps
// internal/raster/writer and internal/raster/gdalio.
type RasterOutput interface {
	Write(ctx context.Context, root string, spec model.GridSpec, ts time.Time, satScore, finalScore []float64, hdf, wtf, tf float64, granuleIDs map[string]string) error
	PreviousFinalScore(root string, spec model.GridSpec) ([]float64, bool)
}

var _ RasterOutput = gdalRasterOutput{}

// gdalRasterOutput is the production RasterOutput, backed by godal.
type gdalRasterOutput struct{}

func (gdalRasterOutput) Write(ctx context.Context, root string, spec model.GridSpec, ts time.Time, satScore, finalScore []float64, hdf, wtf, tf float64, granuleIDs map[string]string) error {
	return writer.Write(ctx, root, spec, ts, satScore, finalScore, hdf, wtf, tf, granuleIDs)
}

// PreviousFinalScore loads the most recently written final-score raster for
// EMA smoothing. Any failure — none written yet, unreadable, or a shape
// mismatch against a reconfigured grid — degrades to "no previous frame",
// per §7's "missing prerequisite" handling: the fresh score is used
// unsmoothed rather than failing the whole hour.
func (gdalRasterOutput) PreviousFinalScore(root string, spec model.GridSpec) ([]float64, bool) {
	path, err := writer.LatestFinalScorePath(root)
	if err != nil {
		return nil, false
	}
	ds, err := gdalio.Open(path)
	if err != nil {
		slog.Default().Warn("upes compute: could not open previous final-score raster", "path", path, "error", err)
		return nil, false
	}
	defer ds.Close()

	if ds.SizeX() != spec.NX || ds.SizeY() != spec.NY {
		slog.Default().Warn("upes compute: previous final-score raster shape mismatch, skipping EMA",
			"path", path, "want_nx", spec.NX, "want_ny", spec.NY, "got_nx", ds.SizeX(), "got_ny", ds.SizeY())
		return nil, false
	}

	values, err := ds.ReadAll()
	if err != nil {
		slog.Default().Warn("upes compute: could not read previous final-score raster", "path", path, "error", err)
		return nil, false
	}
	return values, true
}

// Options configures a Compute task.
type Options struct {
	Logger *slog.Logger

	Store   SpatialStore
	Weather WeatherSource
	Traffic TrafficSource // optional
	Raster  RasterOutput  // defaults to the godal-backed implementation

	OutputRoot string
	BBox       model.Extent
	Res        float64

	EMALambda          float64
	TFAlpha            float64
	TargetDirectionDeg float64 // the direction sensitive population lies in; 0 if unset

	Weights map[model.Gas]float64 // defaults to scorer.DefaultWeights
}

// Compute runs the hourly UPES aggregation/scoring/raster pipeline.
type Compute struct {
	log     *slog.Logger
	store   SpatialStore
	weather WeatherSource
	traffic TrafficSource
	raster  RasterOutput

	outputRoot string
	bbox       model.Extent
	res        float64

	emaLambda float64
	tfAlpha   float64
	targetDeg float64
	weights   map[model.Gas]float64
}

func New(opts Options) *Compute {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	emaLambda := opts.EMALambda
	if emaLambda <= 0 {
		emaLambda = scorer.DefaultEMALambda
	}
	tfAlpha := opts.TFAlpha
	if tfAlpha <= 0 {
		tfAlpha = scorer.DefaultTFAlpha
	}
	weights := opts.Weights
	if weights == nil {
		weights = scorer.DefaultWeights
	}
	raster := opts.Raster
	if raster == nil {
		raster = gdalRasterOutput{}
	}
	return &Compute{
		log:        log,
		store:      opts.Store,
		weather:    opts.Weather,
		traffic:    opts.Traffic,
		raster:     raster,
		outputRoot: opts.OutputRoot,
		bbox:       opts.BBox,
		res:        opts.Res,
		emaLambda:  emaLambda,
		tfAlpha:    tfAlpha,
		targetDeg:  opts.TargetDirectionDeg,
		weights:    weights,
	}
}

// Result summarizes one RunHour call.
type Result struct {
	Hour      time.Time
	Skipped   bool // true when the store has no observations for the hour
	Spec      model.GridSpec
	MeanSat   float64
	MeanFinal float64
}

// RunHour computes and persists the UPES rasters for hour (truncated to
// the hour boundary). granuleIDs is carried through into the companion
// JSON summary log for traceability back to the ingested granules.
func (c *Compute) RunHour(ctx context.Context, hour time.Time, granuleIDs map[string]string) (Result, error) {
	start := time.Now()
	hour = hour.Truncate(time.Hour)
	spec := grid.NewSpec(c.bbox, c.res)

	obs, err := c.store.RangeQuery(ctx, spatialstore.TimeWindow{From: hour, To: hour.Add(time.Hour - time.Nanosecond)}, c.bbox)
	if err != nil {
		return Result{}, fmt.Errorf("compute: range query: %w", err)
	}
	if len(obs) == 0 {
		c.log.Info("upes compute: no cell observations for hour, skipping", "hour", hour)
		return Result{Hour: hour, Spec: spec, Skipped: true}, nil
	}

	byGas := map[model.Gas][]grid.Observation{}
	for _, o := range obs {
		byGas[o.Gas] = append(byGas[o.Gas], grid.Observation{Lat: o.Lat, Lon: o.Lon, Value: o.Value})
	}

	norm := make(map[model.Gas][]float64, len(byGas))
	for gas, list := range byGas {
		frame := grid.Bucket(spec, list)
		norm[gas] = scorer.Normalize(frame.Values)
	}

	n := spec.NX * spec.NY
	satScore := make([]float64, n)
	for i := 0; i < n; i++ {
		cell := make(map[model.Gas]float64, len(norm))
		for gas, vals := range norm {
			cell[gas] = vals[i]
		}
		satScore[i] = scorer.SatelliteScore(cell, c.weights)
	}

	centerLat, centerLon := grid.CenterLatLon(spec)
	hdf, wtf := 1.0, 1.0
	if c.weather != nil {
		reading, err := c.weather.Current(ctx, centerLat, centerLon)
		if err != nil {
			c.log.Warn("upes compute: weather lookup failed, modifiers default to neutral", "error", err)
		} else {
			hdf = scorer.HDF(float64(reading.Humidity))
			wtf = scorer.WTF(reading.WindKph, reading.WindDegree, c.targetDeg)
		}
	}

	density := 0.0
	if c.traffic != nil {
		d, err := c.traffic.Density(ctx, centerLat, centerLon)
		if err != nil {
			c.log.Warn("upes compute: traffic lookup failed, defaulting to zero density", "error", err)
		} else {
			density = d
		}
	}
	tf := scorer.TF(density, c.tfAlpha)

	finalScore := make([]float64, n)
	for i, sat := range satScore {
		finalScore[i] = scorer.FinalScore(sat, hdf, wtf, tf)
	}

	if prev, ok := c.raster.PreviousFinalScore(c.outputRoot, spec); ok {
		finalScore = scorer.EMA(finalScore, prev, c.emaLambda)
	}

	if err := c.raster.Write(ctx, c.outputRoot, spec, hour, satScore, finalScore, hdf, wtf, tf, granuleIDs); err != nil {
		return Result{}, fmt.Errorf("compute: write rasters: %w", err)
	}

	meanSat := scorer.Mean(satScore)
	meanFinal := scorer.Mean(finalScore)
	observability.ObserveUpesCompute(time.Since(start), spec.NX, spec.NY, meanFinal)

	return Result{Hour: hour, Spec: spec, MeanSat: meanSat, MeanFinal: meanFinal}, nil
}
