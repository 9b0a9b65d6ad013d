package compute

import (
	"context"
	"testing"
	"time"

	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/spatialstore"
	"github.com/aeris-platform/aeris/internal/upes/grid"
	"github.com/aeris-platform/aeris/internal/upes/weather"
)

type fakeStore struct {
	obs []spatialstore.Observation
}

func (f *fakeStore) RangeQuery(ctx context.Context, window spatialstore.TimeWindow, bbox model.Extent) ([]spatialstore.Observation, error) {
	return f.obs, nil
}

type fakeWeather struct {
	reading weather.Reading
	err     error
}

func (f *fakeWeather) Current(ctx context.Context, lat, lon float64) (weather.Reading, error) {
	return f.reading, f.err
}

type fakeTraffic struct {
	density float64
}

func (f *fakeTraffic) Density(ctx context.Context, lat, lon float64) (float64, error) {
	return f.density, nil
}

type fakeRaster struct {
	written    bool
	writtenSat []float64
	writtenFin []float64
	writtenHDF float64
	writtenWTF float64
	writtenTF  float64
	prev       []float64
	hasPrev    bool
}

func (f *fakeRaster) Write(ctx context.Context, root string, spec model.GridSpec, ts time.Time, satScore, finalScore []float64, hdf, wtf, tf float64, granuleIDs map[string]string) error {
	f.written = true
	f.writtenSat = satScore
	f.writtenFin = finalScore
	f.writtenHDF = hdf
	f.writtenWTF = wtf
	f.writtenTF = tf
	return nil
}

func (f *fakeRaster) PreviousFinalScore(root string, spec model.GridSpec) ([]float64, bool) {
	return f.prev, f.hasPrev
}

func testBBox() model.Extent {
	return model.Extent{West: -118.2, South: 33.9, East: -118.0, North: 34.1}
}

func TestRunHour_NoObservationsSkips(t *testing.T) {
	raster := &fakeRaster{}
	c := New(Options{
		Store:  &fakeStore{},
		Raster: raster,
		BBox:   testBBox(),
		Res:    0.1,
	})

	result, err := c.RunHour(context.Background(), time.Now(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if !result.Skipped {
		t.Fatal("expected Skipped=true with no observations")
	}
	if raster.written {
		t.Fatal("expected no raster write when skipped")
	}
}

func TestRunHour_ScoresAndWritesRasters(t *testing.T) {
	obs := []spatialstore.Observation{
		{Gas: model.GasNO2, Lat: 33.95, Lon: -118.15, Value: 10},
		{Gas: model.GasNO2, Lat: 34.05, Lon: -118.05, Value: 90},
		{Gas: model.GasPM, Lat: 33.95, Lon: -118.15, Value: 5},
		{Gas: model.GasPM, Lat: 34.05, Lon: -118.05, Value: 95},
	}
	raster := &fakeRaster{}
	fw := &fakeWeather{reading: weather.Reading{Humidity: 40, WindKph: 10, WindDegree: 0}}
	ft := &fakeTraffic{density: 0.5}

	c := New(Options{
		Store:   &fakeStore{obs: obs},
		Weather: fw,
		Traffic: ft,
		Raster:  raster,
		BBox:    testBBox(),
		Res:     0.1,
	})

	result, err := c.RunHour(context.Background(), time.Now(), map[string]string{"NO2": "g1"})
	if err != nil {
		t.Fatal(err)
	}
	if result.Skipped {
		t.Fatal("expected a non-skipped result")
	}
	if !raster.written {
		t.Fatal("expected rasters to be written")
	}
	if result.MeanFinal <= 0 {
		t.Fatalf("expected a positive mean final score, got %v", result.MeanFinal)
	}
	if len(raster.writtenSat) != result.Spec.NX*result.Spec.NY {
		t.Fatalf("satellite score length = %d, want %d", len(raster.writtenSat), result.Spec.NX*result.Spec.NY)
	}
	if raster.writtenHDF != 0.6 {
		t.Fatalf("humidity factor = %v, want 0.6 (humidity=40)", raster.writtenHDF)
	}
	if raster.writtenWTF != 0.2 {
		t.Fatalf("wind factor = %v, want 0.2 (10kph, aligned direction)", raster.writtenWTF)
	}
	if raster.writtenTF != 1.05 {
		t.Fatalf("traffic factor = %v, want 1.05 (density=0.5, default alpha 0.1)", raster.writtenTF)
	}
}

func TestRunHour_SmoothsAgainstPreviousFrame(t *testing.T) {
	bbox := testBBox()
	obs := []spatialstore.Observation{
		{Gas: model.GasNO2, Lat: 33.95, Lon: -118.15, Value: 10},
		{Gas: model.GasNO2, Lat: 34.05, Lon: -118.05, Value: 90},
	}
	spec := grid.NewSpec(bbox, 0.1)
	prev := make([]float64, spec.NX*spec.NY) // an all-zero previous frame

	withPrev := &fakeRaster{prev: prev, hasPrev: true}
	withoutPrev := &fakeRaster{}

	runWith := func(raster *fakeRaster) []float64 {
		c := New(Options{
			Store:     &fakeStore{obs: obs},
			Raster:    raster,
			BBox:      bbox,
			Res:       0.1,
			EMALambda: 0.5,
		})
		if _, err := c.RunHour(context.Background(), time.Now(), nil); err != nil {
			t.Fatal(err)
		}
		return raster.writtenFin
	}

	smoothed := runWith(withPrev)
	unsmoothed := runWith(withoutPrev)

	for i := range smoothed {
		if unsmoothed[i] > 0 && smoothed[i] >= unsmoothed[i] {
			t.Fatalf("cell %d: smoothing against a zero previous frame should pull the score down: smoothed=%v unsmoothed=%v", i, smoothed[i], unsmoothed[i])
		}
	}
}

func TestRunHour_NoWeatherOrTrafficDefaultsToNeutralModifiers(t *testing.T) {
	obs := []spatialstore.Observation{
		{Gas: model.GasNO2, Lat: 34.0, Lon: -118.1, Value: 80},
	}
	raster := &fakeRaster{}
	c := New(Options{
		Store:  &fakeStore{obs: obs},
		Raster: raster,
		BBox:   testBBox(),
		Res:    0.1,
	})

	if _, err := c.RunHour(context.Background(), time.Now(), nil); err != nil {
		t.Fatal(err)
	}
	if !raster.written {
		t.Fatal("expected rasters to be written even with no weather/traffic sources")
	}
	if raster.writtenHDF != 1.0 || raster.writtenWTF != 1.0 || raster.writtenTF != 1.0 {
		t.Fatalf("expected neutral modifiers (1.0 each) absent weather/traffic, got hdf=%v wtf=%v tf=%v",
			raster.writtenHDF, raster.writtenWTF, raster.writtenTF)
	}
}
