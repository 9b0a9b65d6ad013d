// Package pipeline is the Alert Pipeline (component K): for every saved
// route it samples the latest UPES final-score raster, evaluates all four
// detectors against the user's sensitivity scale, persists fired alerts,
// and publishes one dispatch batch per run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aeris-platform/aeris/internal/alerts/detector"
	"github.com/aeris-platform/aeris/internal/alerts/sensitivity"
	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/core/observability"
	"github.com/aeris-platform/aeris/internal/exposure/sampler"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/hotspot"
	"github.com/aeris-platform/aeris/internal/upes/weather"
	"github.com/aeris-platform/aeris/pkg/alertbus"
)

// RouteRecord is a SavedRoute joined with its owning User, per §4.K.1.
type RouteRecord struct {
	Route model.SavedRoute
	User  model.User
}

// RouteRepo lists routes to evaluate and records their latest UPES score.
type RouteRepo interface {
	ListActive(ctx context.Context) ([]RouteRecord, error)
	UpdateUpesScore(ctx context.Context, routeID string, score float64, at time.Time) error
}

// HistoryRepo manages the append-only route exposure history.
type HistoryRepo interface {
	Append(ctx context.Context, entry model.RouteExposureHistoryEntry) error
	// Previous returns the score recorded just before this run's entry
	// (the second-most-recent row), and false if none exists yet.
	Previous(ctx context.Context, routeID string) (score float64, ok bool, err error)
	// Min24h returns the minimum mean score over the trailing 24 hours.
	Min24h(ctx context.Context, routeID string) (score float64, ok bool, err error)
}

// AlertRepo persists fired alerts.
type AlertRepo interface {
	Insert(ctx context.Context, entry model.AlertLogEntry) error
}

// WeatherSource resolves the current weather reading at a point. A failure
// here is non-fatal: the wind-shift detector is simply not evaluated.
type WeatherSource interface {
	Current(ctx context.Context, lat, lon float64) (weather.Reading, error)
}

var _ WeatherSource = (*weather.Client)(nil)

// Publisher hands a batch to the dispatch bus. The alert pipeline never
// blocks persistence on a failed publish.
type Publisher interface {
	Publish(batch alertbus.Batch) error
}

// Thresholds holds the detector base thresholds before sensitivity scaling.
type Thresholds struct {
	DeteriorationBase    float64
	HazardThreshold      float64
	TimeBasedMargin      float64
	WindShiftMinKph      float64
	WindShiftMaxAngleDeg float64
}

// Options configures a Pipeline.
type Options struct {
	Logger     *slog.Logger
	Routes     RouteRepo
	History    HistoryRepo
	Alerts     AlertRepo
	Weather    WeatherSource
	Publisher  Publisher
	Thresholds Thresholds

	// HotspotSearchRadiusKm bounds how far a route midpoint looks for a
	// pollution source point when resolving the wind-shift detector's
	// source argument (Open Question 1).
	HotspotSearchRadiusKm float64
}

// Pipeline runs one alert-evaluation cycle over every saved route.
type Pipeline struct {
	log        *slog.Logger
	routes     RouteRepo
	history    HistoryRepo
	alerts     AlertRepo
	weather    WeatherSource
	publisher  Publisher
	thresholds Thresholds
	radiusKm   float64
}

func New(opts Options) *Pipeline {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		log:        log,
		routes:     opts.Routes,
		history:    opts.History,
		alerts:     opts.Alerts,
		weather:    opts.Weather,
		publisher:  opts.Publisher,
		thresholds: opts.Thresholds,
		radiusKm:   opts.HotspotSearchRadiusKm,
	}
}

// Result summarizes one RunOnce call.
type Result struct {
	RoutesEvaluated int
	AlertsFired     int
}

// RunOnce evaluates every active route against raster, a pre-computed
// hotspot set (for wind-shift source resolution), and the four detectors,
// per §4.K. raster is nil-safe: a nil reader (no UPES raster yet available)
// skips every route for the run (no history entry, no detectors), matching
// the "missing prerequisite" status in §7 rather than raising.
func (p *Pipeline) RunOnce(ctx context.Context, raster sampler.PointReader, hotspots []hotspot.Hotspot) (Result, error) {
	records, err := p.routes.ListActive(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("pipeline: list active routes: %w", err)
	}

	runID := uuid.NewString()
	now := time.Now().UTC()
	var batch alertbus.Batch
	var result Result

	for _, rec := range records {
		if raster == nil {
			p.log.Debug("pipeline: no UPES raster available, skipping route", "route_id", rec.Route.ID)
			continue
		}
		result.RoutesEvaluated++

		findings, err := p.evaluateRoute(ctx, rec, raster, hotspots, now)
		if err != nil {
			p.log.Warn("pipeline: route evaluation failed", "route_id", rec.Route.ID, "error", err)
			continue
		}
		for _, af := range findings {
			result.AlertsFired++
			observability.IncAlertFired(string(af.entry.Kind))
			batch.Alerts = append(batch.Alerts, af.message)
		}
	}
	observability.AddRoutesEvaluated(result.RoutesEvaluated)

	if len(batch.Alerts) == 0 {
		return result, nil
	}
	batch.RunID = runID
	batch.Timestamp = now
	if p.publisher != nil {
		if err := p.publisher.Publish(batch); err != nil {
			observability.ObserveAlertDispatch(err)
			p.log.Error("pipeline: publish alert batch failed", "run_id", runID, "error", err)
		} else {
			observability.ObserveAlertDispatch(nil)
		}
	}
	return result, nil
}

type firedAlert struct {
	entry   model.AlertLogEntry
	message alertbus.AlertMessage
}

func (p *Pipeline) evaluateRoute(ctx context.Context, rec RouteRecord, raster sampler.PointReader, hotspots []hotspot.Hotspot, now time.Time) ([]firedAlert, error) {
	route := rec.Route
	line := []geo.Point{
		{Lat: route.Origin.Lat, Lon: route.Origin.Lon},
		{Lat: route.Destination.Lat, Lon: route.Destination.Lon},
	}

	sampled, err := sampler.Sample(raster, line, sampler.DefaultStepMeters)
	if err != nil {
		return nil, fmt.Errorf("sample route: %w", err)
	}

	maxUpes := sampled.Max
	if err := p.history.Append(ctx, model.RouteExposureHistoryEntry{
		ID:        uuid.NewString(),
		RouteID:   route.ID,
		Timestamp: now,
		MeanUpes:  sampled.Mean,
		MaxUpes:   &maxUpes,
		Source:    "alert_pipeline",
	}); err != nil {
		return nil, fmt.Errorf("append history: %w", err)
	}
	if err := p.routes.UpdateUpesScore(ctx, route.ID, sampled.Mean, now); err != nil {
		p.log.Warn("pipeline: update upes score failed", "route_id", route.ID, "error", err)
	}

	prev, hasPrev, err := p.history.Previous(ctx, route.ID)
	if err != nil {
		p.log.Warn("pipeline: previous score lookup failed", "route_id", route.ID, "error", err)
	}
	recentMin, hasMin, err := p.history.Min24h(ctx, route.ID)
	if err != nil {
		p.log.Warn("pipeline: 24h min lookup failed", "route_id", route.ID, "error", err)
	}

	midLat := (route.Origin.Lat + route.Destination.Lat) / 2
	midLon := (route.Origin.Lon + route.Destination.Lon) / 2

	scale := sensitivity.Scale(rec.User.ExposureSensitivityLevel)
	var findings []detector.Finding

	if hasPrev {
		if f, ok := detector.Deterioration(prev, sampled.Mean, p.thresholds.DeteriorationBase, scale); ok {
			findings = append(findings, f)
		}
	}
	if f, ok := detector.Hazard(maxUpes, p.thresholds.HazardThreshold); ok {
		findings = append(findings, f)
	}
	if source, ok := hotspot.Nearest(hotspots, midLat, midLon, p.radiusKm); ok && p.weather != nil {
		wind, err := p.weather.Current(ctx, midLat, midLon)
		if err != nil {
			p.log.Debug("pipeline: weather lookup failed, wind-shift not evaluated", "route_id", route.ID, "error", err)
		} else {
			f, fired := detector.WindShift(
				geo.Point{Lat: source.CentroidLat, Lon: source.CentroidLon},
				geo.Point{Lat: midLat, Lon: midLon},
				detector.Wind{SpeedKph: wind.WindKph, FromDeg: wind.WindDegree},
				p.thresholds.WindShiftMinKph, p.thresholds.WindShiftMaxAngleDeg,
			)
			if fired {
				findings = append(findings, f)
			}
		}
	}
	if hasMin {
		if f, ok := detector.TimeBased(sampled.Mean, recentMin, p.thresholds.TimeBasedMargin, hasMin); ok {
			findings = append(findings, f)
		}
	}

	channels := notifyChannels(rec.User)
	var fired []firedAlert
	for _, f := range findings {
		entry := model.AlertLogEntry{
			ID:               uuid.NewString(),
			UserID:           rec.User.ID,
			RouteID:          route.ID,
			Kind:             f.Kind,
			ScoreBefore:      f.ScoreBefore,
			ScoreAfter:       f.ScoreAfter,
			Threshold:        f.Threshold,
			Metadata:         f.Metadata,
			CreatedAt:        now,
			NotifiedChannels: channels,
		}
		if err := p.alerts.Insert(ctx, entry); err != nil {
			p.log.Warn("pipeline: insert alert failed", "route_id", route.ID, "kind", f.Kind, "error", err)
			continue
		}
		fired = append(fired, firedAlert{
			entry: entry,
			message: alertbus.AlertMessage{
				AlertID:     entry.ID,
				UserID:      entry.UserID,
				RouteID:     entry.RouteID,
				AlertType:   string(entry.Kind),
				Message:     detector.Message(f),
				ScoreBefore: entry.ScoreBefore,
				ScoreAfter:  entry.ScoreAfter,
				Channels:    channels,
			},
		})
	}
	return fired, nil
}

// notifyChannels derives the channel set from the user's preferences;
// in_app defaults to true when unset, per §4.K.3.
func notifyChannels(u model.User) []string {
	var channels []string
	if u.NotifyEmail {
		channels = append(channels, "email")
	}
	if u.NotifyPush {
		channels = append(channels, "push")
	}
	if u.NotifyInApp == nil || *u.NotifyInApp {
		channels = append(channels, "in_app")
	}
	return channels
}
