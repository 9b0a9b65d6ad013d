// Package gas holds small per-gas facts shared by ingestion, the raster
// normalizer, and the UPES scorer: physical units and the opaque broker
// collection id each gas maps to.
package gas

import "github.com/aeris-platform/aeris/internal/core/model"

// Unit returns the physical unit of a gas's raw pollution value, per the
// broker's unit conventions. Unknown gases return "".
func Unit(g model.Gas) string {
	switch g {
	case model.GasNO2, model.GasCH2O:
		return "molecules/cm^2"
	case model.GasAI:
		return "index"
	case model.GasPM:
		return "optical_depth"
	case model.GasO3:
		return "DU"
	default:
		return ""
	}
}

// Collections maps a gas to the broker's collection id. Collection ids are
// opaque per the broker's interface and are supplied at startup rather than
// hardcoded, since they vary by deployment and broker catalog revision.
type Collections map[model.Gas]string

// CollectionID returns the configured collection id for g, or "" if unset.
func (c Collections) CollectionID(g model.Gas) string {
	return c[g]
}
