package scorer

import (
	"math"
	"testing"

	"github.com/aeris-platform/aeris/internal/core/model"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestSatelliteScore_SpecExample(t *testing.T) {
	norm := map[model.Gas]float64{
		model.GasNO2:  1.0,
		model.GasPM:   0.0,
		model.GasO3:   0.5,
		model.GasCH2O: 1.0,
		model.GasAI:   0.0,
	}
	got := SatelliteScore(norm, DefaultWeights)
	if !almostEqual(got, 0.50) {
		t.Fatalf("SatelliteScore = %v, want 0.50", got)
	}
}

func TestSatelliteScore_MissingGasNotRedistributed(t *testing.T) {
	norm := map[model.Gas]float64{model.GasNO2: 1.0}
	got := SatelliteScore(norm, DefaultWeights)
	if !almostEqual(got, 0.30) {
		t.Fatalf("SatelliteScore with only NO2 = %v, want 0.30", got)
	}
}

func TestEMA_SpecExample(t *testing.T) {
	current := []float64{1.0, 0.0}
	previous := []float64{0.0, 1.0}
	got := EMA(current, previous, 0.5)
	want := []float64{0.5, 0.5}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("EMA[%d] = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestEMA_MismatchedShapeReturnsCurrentUnchanged(t *testing.T) {
	current := []float64{1, 2, 3}
	previous := []float64{1, 2}
	got := EMA(current, previous, 0.6)
	for i := range current {
		if got[i] != current[i] {
			t.Fatalf("EMA with shape mismatch should pass through current unchanged")
		}
	}
}

func TestNormalize_DegenerateFrameIsZero(t *testing.T) {
	frame := []float64{5, 5, 5, 5}
	got := Normalize(frame)
	for _, v := range got {
		if v != 0 {
			t.Fatalf("Normalize of a flat frame should be all zero, got %v", got)
		}
	}
}

func TestNormalize_ClipsToUnitRange(t *testing.T) {
	frame := []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100}
	got := Normalize(frame)
	for i, v := range got {
		if v < 0 || v > 1 {
			t.Fatalf("Normalize[%d] = %v out of [0,1]", i, v)
		}
	}
}

func TestHDF(t *testing.T) {
	if got := HDF(0); !almostEqual(got, 1) {
		t.Errorf("HDF(0) = %v, want 1", got)
	}
	if got := HDF(100); !almostEqual(got, 0) {
		t.Errorf("HDF(100) = %v, want 0", got)
	}
	if got := HDF(150); got != 0 {
		t.Errorf("HDF(150) should clip to 0, got %v", got)
	}
}

func TestTF_NoTrafficDataIsIdentity(t *testing.T) {
	if got := TF(0, DefaultTFAlpha); !almostEqual(got, 1) {
		t.Fatalf("TF(density=0) = %v, want 1", got)
	}
}

func TestTF_FullDensityUsesAlpha(t *testing.T) {
	if got := TF(1, 0.1); !almostEqual(got, 1.1) {
		t.Fatalf("TF(density=1, alpha=0.1) = %v, want 1.1", got)
	}
}

func TestWTF_HeadwindMaximizesFactor(t *testing.T) {
	// Wind blowing from the same direction the target lies in: cos(0)=1.
	got := WTF(50, 0, 0)
	if !almostEqual(got, 1) {
		t.Fatalf("WTF aligned = %v, want 1", got)
	}
}

func TestWTF_CrosswindIsZero(t *testing.T) {
	got := WTF(50, 90, 0)
	if !almostEqual(got, 0) {
		t.Fatalf("WTF perpendicular = %v, want ~0", got)
	}
}

func TestFinalScore_AllFactorsOne(t *testing.T) {
	if got := FinalScore(0.5, 1, 1, 1); !almostEqual(got, 0.5) {
		t.Fatalf("FinalScore = %v, want 0.5", got)
	}
}
