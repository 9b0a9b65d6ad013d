// Package hotspot locates pollution hotspots (component O) by clustering
// the current severity grid with H3 cells as the adjacency structure, per
// the original_source hotspot-clustering supplement. It also answers Open
// Question 1: the wind-shift detector's source point is the nearest
// cluster centroid within a configured search radius.
package hotspot

import (
	"sort"

	h3 "github.com/uber/h3-go/v4"

	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/geo"
	"github.com/aeris-platform/aeris/internal/hotness"
)

// MinClusterSeverity is the severity band a cell must meet or exceed to
// seed or join a cluster ("elevated" and above).
const MinClusterSeverity = 2

type cellInfo struct {
	h3id     h3.Cell
	lat, lon float64
	value    float64
	severity int
}

// Hotspot is one connected component of elevated-or-worse grid cells.
type Hotspot struct {
	Gas         model.Gas
	CentroidLat float64
	CentroidLon float64
	MeanValue   float64
	MaxSeverity int
	CellCount   int
	Score       float64 // decayed hotness score, when a tracker is supplied
}

// Locate clusters cells (already filtered to one gas and one hour) into
// hotspots using res-resolution H3 adjacency. decay, if non-nil, is used
// to read each cluster's recency-weighted score via its dominant cell.
func Locate(cells []model.PollutionGridCell, gasName model.Gas, res int, decay hotness.Interface) []Hotspot {
	byH3 := make(map[h3.Cell]*cellInfo)
	for _, c := range cells {
		if c.Severity < MinClusterSeverity {
			continue
		}
		lat, lon := cellCentroid(c.Polygon)
		id, err := h3.LatLngToCell(h3.LatLng{Lat: lat, Lng: lon}, res)
		if err != nil {
			continue
		}
		if existing, ok := byH3[id]; ok {
			// keep the worse-severity / higher-value observation per cell
			if c.Severity > existing.severity {
				existing.severity = c.Severity
				existing.value = c.Value
			}
			continue
		}
		byH3[id] = &cellInfo{h3id: id, lat: lat, lon: lon, value: c.Value, severity: c.Severity}
	}

	visited := make(map[h3.Cell]bool, len(byH3))
	var hotspots []Hotspot

	for id := range byH3 {
		if visited[id] {
			continue
		}
		// BFS over H3 adjacency (ring distance 1) within the elevated set.
		queue := []h3.Cell{id}
		visited[id] = true
		var members []*cellInfo

		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			members = append(members, byH3[cur])

			neighbors, err := cur.GridDisk(1)
			if err != nil {
				continue
			}
			for _, n := range neighbors {
				if n == cur || visited[n] {
					continue
				}
				if _, ok := byH3[n]; !ok {
					continue
				}
				visited[n] = true
				queue = append(queue, n)
			}
		}

		hotspots = append(hotspots, summarize(gasName, members, decay))
	}

	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].MaxSeverity != hotspots[j].MaxSeverity {
			return hotspots[i].MaxSeverity > hotspots[j].MaxSeverity
		}
		return hotspots[i].CellCount > hotspots[j].CellCount
	})
	return hotspots
}

func summarize(gasName model.Gas, members []*cellInfo, decay hotness.Interface) Hotspot {
	var sumLat, sumLon, sumValue float64
	maxSev := 0
	var dominant string
	for _, m := range members {
		sumLat += m.lat
		sumLon += m.lon
		sumValue += m.value
		if m.severity > maxSev {
			maxSev = m.severity
			dominant = m.h3id.String()
		}
	}
	n := float64(len(members))

	h := Hotspot{
		Gas:         gasName,
		CentroidLat: sumLat / n,
		CentroidLon: sumLon / n,
		MeanValue:   sumValue / n,
		MaxSeverity: maxSev,
		CellCount:   len(members),
	}
	if decay != nil && dominant != "" {
		h.Score = decay.Score(dominant)
	}
	return h
}

// Nearest returns the closest hotspot to (lat,lon) within maxKm, and false
// if none qualifies — the source-point resolution for the wind-shift
// detector (Open Question 1).
func Nearest(hotspots []Hotspot, lat, lon, maxKm float64) (Hotspot, bool) {
	var best Hotspot
	bestDist := maxKm*1000 + 1 // meters; start just outside the radius
	found := false

	for _, h := range hotspots {
		d := geo.HaversineMeters(lat, lon, h.CentroidLat, h.CentroidLon)
		if d <= maxKm*1000 && d < bestDist {
			best = h
			bestDist = d
			found = true
		}
	}
	return best, found
}

func cellCentroid(ring [5]model.LatLng) (lat, lon float64) {
	for i := 0; i < 4; i++ { // ring[4] duplicates ring[0]; skip it
		lat += ring[i].Lat
		lon += ring[i].Lon
	}
	return lat / 4, lon / 4
}
