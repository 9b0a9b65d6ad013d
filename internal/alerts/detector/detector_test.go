package detector

import (
	"testing"

	"github.com/aeris-platform/aeris/internal/geo"
)

func TestDeterioration_SpecExample(t *testing.T) {
	f, fired := Deterioration(0.30, 0.42, DefaultDeteriorationBase, 1.0)
	if !fired {
		t.Fatal("expected deterioration to fire")
	}
	if f.Threshold != 0.15 {
		t.Errorf("threshold = %v, want 0.15", f.Threshold)
	}
	if got := f.Metadata["delta_pct"].(float64); got < 39.9 || got > 40.1 {
		t.Errorf("delta_pct = %v, want ~40", got)
	}
}

func TestDeterioration_SpecExample_DoesNotFire(t *testing.T) {
	_, fired := Deterioration(0.30, 0.32, DefaultDeteriorationBase, 1.0)
	if fired {
		t.Fatal("expected deterioration not to fire for a smaller rise")
	}
}

func TestDeterioration_NoPreviousScoreNeverFires(t *testing.T) {
	_, fired := Deterioration(0, 0.9, DefaultDeteriorationBase, 1.0)
	if fired {
		t.Fatal("deterioration must not fire without a positive previous score")
	}
}

func TestHazard_Threshold(t *testing.T) {
	if _, fired := Hazard(0.84, DefaultHazardThreshold); fired {
		t.Fatal("0.84 should not reach the 0.85 hazard threshold")
	}
	if _, fired := Hazard(0.85, DefaultHazardThreshold); !fired {
		t.Fatal("0.85 should reach the hazard threshold")
	}
}

func TestWindShift_AlignedFires(t *testing.T) {
	source := geo.Point{Lat: 0, Lon: 0}
	midpoint := geo.Point{Lat: 0, Lon: 1} // bearing ~90 (east) from source
	wind := Wind{SpeedKph: 20, FromDeg: 270}
	_, fired := WindShift(source, midpoint, wind, DefaultWindShiftMinKph, DefaultWindShiftMaxAngle)
	if !fired {
		t.Fatal("wind blowing from the west toward an eastward source-midpoint bearing should fire")
	}
}

func TestWindShift_TooSlowDoesNotFire(t *testing.T) {
	source := geo.Point{Lat: 0, Lon: 0}
	midpoint := geo.Point{Lat: 0, Lon: 1}
	wind := Wind{SpeedKph: 2, FromDeg: 270}
	_, fired := WindShift(source, midpoint, wind, DefaultWindShiftMinKph, DefaultWindShiftMaxAngle)
	if fired {
		t.Fatal("wind below the minimum speed should not fire")
	}
}

func TestWindShift_WrongDirectionDoesNotFire(t *testing.T) {
	source := geo.Point{Lat: 0, Lon: 0}
	midpoint := geo.Point{Lat: 0, Lon: 1}
	wind := Wind{SpeedKph: 20, FromDeg: 90} // blowing from the east, advects west: wrong way
	_, fired := WindShift(source, midpoint, wind, DefaultWindShiftMinKph, DefaultWindShiftMaxAngle)
	if fired {
		t.Fatal("wind advecting away from the route should not fire")
	}
}

func TestTimeBased_RequiresKnownMinimum(t *testing.T) {
	if _, fired := TimeBased(0.9, 0.5, DefaultTimeBasedMargin, false); fired {
		t.Fatal("time-based detector must not fire without a known 24h minimum")
	}
}

func TestTimeBased_FiresPastMarginAboveMinimum(t *testing.T) {
	_, fired := TimeBased(0.70, 0.50, DefaultTimeBasedMargin, true)
	if !fired {
		t.Fatal("0.70 should fire against a 0.50 minimum plus 0.15 margin")
	}
	_, fired = TimeBased(0.60, 0.50, DefaultTimeBasedMargin, true)
	if fired {
		t.Fatal("0.60 should not fire against a 0.50 minimum plus 0.15 margin")
	}
}
