package objectstore

import (
	"testing"
	"time"
)

func TestRasterKey_LayoutByGasAndHour(t *testing.T) {
	hour := time.Date(2026, 7, 30, 14, 37, 0, 0, time.UTC)
	got := RasterKey("NO2", hour)
	want := "audit/geotiff/2026-07-30/NO2_14.tif"
	if got != want {
		t.Fatalf("RasterKey = %q, want %q", got, want)
	}
}
