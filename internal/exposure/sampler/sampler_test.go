package sampler

import (
	"testing"

	"github.com/aeris-platform/aeris/internal/geo"
)

type constReader struct {
	v  float64
	ok bool
}

func (c constReader) ValueAt(lat, lon float64) (float64, bool, error) {
	return c.v, c.ok, nil
}

func TestSample_MeanAndMax(t *testing.T) {
	line := []geo.Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}}
	r := constReader{v: 0.4, ok: true}
	res, err := Sample(r, line, 100)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if res.Mean != 0.4 || res.Max != 0.4 {
		t.Fatalf("Sample = %+v, want mean=max=0.4", res)
	}
}

func TestSample_NoValidSamplesFallsBack(t *testing.T) {
	line := []geo.Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.01}}
	r := constReader{v: 0.4, ok: false}
	res, err := Sample(r, line, 100)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if res.Mean != FallbackScore || res.Max != FallbackScore {
		t.Fatalf("Sample = %+v, want fallback %v", res, FallbackScore)
	}
}

type varyingReader struct{ calls int }

func (v *varyingReader) ValueAt(lat, lon float64) (float64, bool, error) {
	v.calls++
	if v.calls%2 == 0 {
		return 0.9, true, nil
	}
	return 0.1, true, nil
}

func TestSample_TracksMaxAcrossPoints(t *testing.T) {
	line := []geo.Point{{Lat: 0, Lon: 0}, {Lat: 0, Lon: 0.02}}
	r := &varyingReader{}
	res, err := Sample(r, line, 100)
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if res.Max != 0.9 {
		t.Fatalf("Max = %v, want 0.9", res.Max)
	}
}
