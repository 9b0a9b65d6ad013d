package hotspot

import (
	"context"
	"testing"
	"time"

	"github.com/aeris-platform/aeris/internal/core/model"
)

type fakeCellStore struct {
	cells []model.PollutionGridCell
}

func (f *fakeCellStore) CellsAtHour(ctx context.Context, hour time.Time, minSeverity int) ([]model.PollutionGridCell, error) {
	var out []model.PollutionGridCell
	for _, c := range f.cells {
		if c.Severity >= minSeverity {
			out = append(out, c)
		}
	}
	return out, nil
}

func TestSource_Current_ClustersPerGas(t *testing.T) {
	store := &fakeCellStore{cells: []model.PollutionGridCell{
		cellAt(34.05, -118.25, 0.01, 2e16, 3),
		{Gas: model.GasPM, Value: 1e16, Severity: 3, Polygon: [5]model.LatLng{
			{Lat: 40.71, Lon: -74.00}, {Lat: 40.71, Lon: -74.00}, {Lat: 40.71, Lon: -74.00},
			{Lat: 40.71, Lon: -74.00}, {Lat: 40.71, Lon: -74.00},
		}},
	}}

	src := NewSource(SourceOptions{Store: store, H3Res: 7})
	hotspots, err := src.Current(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(hotspots) != 2 {
		t.Fatalf("expected one hotspot per gas, got %d: %+v", len(hotspots), hotspots)
	}
}

func TestSource_Current_NoElevatedCellsReturnsEmpty(t *testing.T) {
	store := &fakeCellStore{}
	src := NewSource(SourceOptions{Store: store})
	hotspots, err := src.Current(context.Background(), time.Now())
	if err != nil {
		t.Fatal(err)
	}
	if len(hotspots) != 0 {
		t.Fatalf("expected no hotspots, got %d", len(hotspots))
	}
}
