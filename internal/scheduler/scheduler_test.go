package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/aeris-platform/aeris/internal/alerts/pipeline"
	"github.com/aeris-platform/aeris/internal/exposure/sampler"
	"github.com/aeris-platform/aeris/internal/hotspot"
	"github.com/aeris-platform/aeris/internal/ingestion"
	"github.com/aeris-platform/aeris/internal/routescore"
	"github.com/aeris-platform/aeris/internal/upes/compute"
)

type fakeIngestion struct {
	result       ingestion.Result
	err          error
	fireOnUpdate bool
}

func (f *fakeIngestion) RunHour(ctx context.Context, now time.Time, onUpdated func(context.Context, ingestion.Result)) (ingestion.Result, error) {
	if f.fireOnUpdate && onUpdated != nil {
		onUpdated(ctx, f.result)
	}
	return f.result, f.err
}

type fakeCompute struct {
	calls []time.Time
	err   error
}

func (f *fakeCompute) RunHour(ctx context.Context, hour time.Time, granuleIDs map[string]string) (compute.Result, error) {
	f.calls = append(f.calls, hour)
	return compute.Result{Hour: hour}, f.err
}

type fakeRouteScore struct {
	called bool
	err    error
}

func (f *fakeRouteScore) RunOnce(ctx context.Context) (routescore.Result, error) {
	f.called = true
	return routescore.Result{}, f.err
}

type fakeAlerts struct {
	raster   sampler.PointReader
	hotspots []hotspot.Hotspot
	err      error
}

func (f *fakeAlerts) RunOnce(ctx context.Context, raster sampler.PointReader, hotspots []hotspot.Hotspot) (pipeline.Result, error) {
	f.raster = raster
	f.hotspots = hotspots
	return pipeline.Result{}, f.err
}

type fakeHotspotSource struct {
	hotspots []hotspot.Hotspot
	err      error
}

func (f *fakeHotspotSource) Current(ctx context.Context, hour time.Time) ([]hotspot.Hotspot, error) {
	return f.hotspots, f.err
}

func newTestScheduler(t *testing.T) (*Scheduler, *fakeIngestion, *fakeCompute, *fakeRouteScore, *fakeAlerts, *fakeHotspotSource) {
	t.Helper()
	ing := &fakeIngestion{}
	comp := &fakeCompute{}
	rs := &fakeRouteScore{}
	al := &fakeAlerts{}
	hs := &fakeHotspotSource{}

	s, err := New(Options{
		Ingestion:     ing,
		Compute:       comp,
		RouteScore:    rs,
		Alerts:        al,
		Hotspots:      hs,
		RasterRoot:    t.TempDir(),
		UpesEnabled:   true,
		AlertsEnabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return s, ing, comp, rs, al, hs
}

func TestNew_RegistersFourCronEntries(t *testing.T) {
	s, _, _, _, _, _ := newTestScheduler(t)
	if got := len(s.cr.Entries()); got != 4 {
		t.Fatalf("registered %d cron entries, want 4", got)
	}
}

func TestRunIngestion_ChainsDirectlyIntoCompute(t *testing.T) {
	s, ing, comp, _, _, _ := newTestScheduler(t)
	ing.fireOnUpdate = true
	ing.result = ingestion.Result{Hour: time.Date(2026, 7, 30, 14, 0, 0, 0, time.UTC)}

	s.runIngestion(context.Background())

	if len(comp.calls) != 1 {
		t.Fatalf("expected ingestion completion to trigger one compute call, got %d", len(comp.calls))
	}
	if !comp.calls[0].Equal(ing.result.Hour) {
		t.Fatalf("compute called with hour %v, want %v", comp.calls[0], ing.result.Hour)
	}
}

func TestRunIngestion_NoChainWhenCallbackNotFired(t *testing.T) {
	s, _, comp, _, _, _ := newTestScheduler(t)
	s.runIngestion(context.Background())
	if len(comp.calls) != 0 {
		t.Fatalf("expected no compute call when ingestion found nothing new, got %d", len(comp.calls))
	}
}

func TestRunRouteScore_InvokesRecomputer(t *testing.T) {
	s, _, _, rs, _, _ := newTestScheduler(t)
	s.runRouteScore(context.Background())
	if !rs.called {
		t.Fatal("expected route rescore task to call RunOnce")
	}
}

func TestRunAlertsOnce_NoRasterStillRunsWithNilRaster(t *testing.T) {
	s, _, _, _, al, _ := newTestScheduler(t)
	if err := s.runAlertsOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if al.raster != nil {
		t.Fatal("expected a nil raster when no UPES output exists yet")
	}
}

func TestRunAlertsOnce_HotspotFailureDegradesToNoHotspots(t *testing.T) {
	s, _, _, _, al, hs := newTestScheduler(t)
	hs.err = context.DeadlineExceeded

	if err := s.runAlertsOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if al.hotspots != nil {
		t.Fatalf("expected nil hotspots after a lookup failure, got %+v", al.hotspots)
	}
}

func TestRunCompute_SkippedWhenUpesDisabled(t *testing.T) {
	ing := &fakeIngestion{}
	comp := &fakeCompute{}
	s, err := New(Options{
		Ingestion:  ing,
		Compute:    comp,
		RouteScore: &fakeRouteScore{},
		Alerts:     &fakeAlerts{},
		Hotspots:   &fakeHotspotSource{},
		RasterRoot: t.TempDir(),
		// UpesEnabled left false.
		AlertsEnabled: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	s.runComputeTick(context.Background())
	if len(comp.calls) != 0 {
		t.Fatalf("expected compute task to be skipped, got %d calls", len(comp.calls))
	}
}

func TestRunAlertsOnce_SkippedWhenAlertsDisabled(t *testing.T) {
	al := &fakeAlerts{}
	s, err := New(Options{
		Ingestion:   &fakeIngestion{},
		Compute:     &fakeCompute{},
		RouteScore:  &fakeRouteScore{},
		Alerts:      al,
		Hotspots:    &fakeHotspotSource{},
		RasterRoot:  t.TempDir(),
		UpesEnabled: true,
		// AlertsEnabled left false.
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := s.runAlertsOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if al.raster != nil || al.hotspots != nil {
		t.Fatal("expected alert pipeline RunOnce to never be called while disabled")
	}
}

func TestRunAlertsOnce_PassesThroughHotspots(t *testing.T) {
	s, _, _, _, al, hs := newTestScheduler(t)
	hs.hotspots = []hotspot.Hotspot{{CentroidLat: 34.0, CentroidLon: -118.0}}

	if err := s.runAlertsOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(al.hotspots) != 1 {
		t.Fatalf("expected hotspots to pass through, got %+v", al.hotspots)
	}
}
