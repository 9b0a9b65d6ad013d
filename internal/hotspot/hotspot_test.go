package hotspot

import (
	"testing"

	"github.com/aeris-platform/aeris/internal/core/model"
)

func cellAt(lat, lon, size float64, value float64, severity int) model.PollutionGridCell {
	h := size / 2
	return model.PollutionGridCell{
		Gas:      model.GasNO2,
		Value:    value,
		Severity: severity,
		Polygon: [5]model.LatLng{
			{Lat: lat + h, Lon: lon - h},
			{Lat: lat + h, Lon: lon + h},
			{Lat: lat - h, Lon: lon + h},
			{Lat: lat - h, Lon: lon - h},
			{Lat: lat + h, Lon: lon - h},
		},
	}
}

func TestLocate_ClustersAdjacentElevatedCells(t *testing.T) {
	cells := []model.PollutionGridCell{
		cellAt(34.05, -118.25, 0.01, 2e16, 3),
		cellAt(34.06, -118.26, 0.01, 2.2e16, 3), // close neighbor, should merge
		cellAt(40.71, -74.00, 0.01, 1.8e16, 2),  // far away, separate cluster
		cellAt(34.05, -118.25, 0.01, 4e15, 1),   // below the cluster threshold, ignored (dup coords fine)
	}

	hotspots := Locate(cells, model.GasNO2, 7, nil)
	if len(hotspots) != 2 {
		t.Fatalf("expected 2 hotspots, got %d: %+v", len(hotspots), hotspots)
	}
	if hotspots[0].MaxSeverity < hotspots[1].MaxSeverity {
		t.Fatalf("expected hotspots sorted by severity descending")
	}
}

func TestLocate_NoCellsMeetThreshold(t *testing.T) {
	cells := []model.PollutionGridCell{
		cellAt(34.05, -118.25, 0.01, 1e15, 0),
		cellAt(34.06, -118.26, 0.01, 1e15, 1),
	}
	if got := Locate(cells, model.GasNO2, 7, nil); got != nil {
		t.Fatalf("expected no hotspots below threshold, got %+v", got)
	}
}

func TestNearest_WithinRadius(t *testing.T) {
	hotspots := []Hotspot{
		{CentroidLat: 34.05, CentroidLon: -118.25},
		{CentroidLat: 36.0, CentroidLon: -120.0},
	}
	got, ok := Nearest(hotspots, 34.06, -118.26, 50)
	if !ok {
		t.Fatal("expected a hotspot within 50km")
	}
	if got.CentroidLat != 34.05 {
		t.Fatalf("expected the nearer hotspot, got %+v", got)
	}
}

func TestNearest_OutsideRadiusReturnsFalse(t *testing.T) {
	hotspots := []Hotspot{{CentroidLat: 0, CentroidLon: 0}}
	_, ok := Nearest(hotspots, 10, 10, 50)
	if ok {
		t.Fatal("expected no hotspot within radius")
	}
}
