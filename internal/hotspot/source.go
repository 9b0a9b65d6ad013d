package hotspot

import (
	"context"
	"time"

	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/hotness"
	"github.com/aeris-platform/aeris/internal/spatialstore"
)

// SpatialStore is the subset of spatialstore.Store the hotspot source needs.
type SpatialStore interface {
	CellsAtHour(ctx context.Context, hour time.Time, minSeverity int) ([]model.PollutionGridCell, error)
}

var _ SpatialStore = spatialstore.Store(nil)

// Source resolves the current hour's hotspots from the spatial store, one
// Locate pass per gas present in the hour's elevated cells.
type Source struct {
	store SpatialStore
	h3Res int
	decay hotness.Interface
}

type SourceOptions struct {
	Store SpatialStore
	H3Res int
	Decay hotness.Interface // optional
}

func NewSource(opts SourceOptions) *Source {
	res := opts.H3Res
	if res <= 0 {
		res = 7
	}
	return &Source{store: opts.Store, h3Res: res, decay: opts.Decay}
}

// Current clusters every gas's elevated cells within hour independently
// and returns the combined hotspot set.
func (s *Source) Current(ctx context.Context, hour time.Time) ([]Hotspot, error) {
	cells, err := s.store.CellsAtHour(ctx, hour, MinClusterSeverity)
	if err != nil {
		return nil, err
	}

	byGas := make(map[model.Gas][]model.PollutionGridCell)
	for _, c := range cells {
		byGas[c.Gas] = append(byGas[c.Gas], c)
	}

	var all []Hotspot
	for gas, list := range byGas {
		all = append(all, Locate(list, gas, s.h3Res, s.decay)...)
	}
	return all, nil
}
