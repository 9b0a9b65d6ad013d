// Package writer emits the UPES Raster Output (component F): one
// single-band GeoTIFF each for the satellite-score and final-score arrays,
// plus a companion JSON summary log.
package writer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/airbusgeo/godal"

	"github.com/aeris-platform/aeris/internal/core/model"
)

func init() {
	godal.RegisterAll()
}

// Summary is the companion JSON log written alongside each hour's rasters.
// HumidityFactor, WindFactor, and TrafficFactor are the hour's scalar UPES
// modifiers (component E), not per-cell means — they're evaluated once at
// the grid's bbox center and applied uniformly to every cell's score.
type Summary struct {
	Timestamp      time.Time         `json:"timestamp"`
	GranuleIDs     map[string]string `json:"granule_ids"`
	MeanSat        float64           `json:"mean_satellite_score"`
	MeanFinal      float64           `json:"mean_final_score"`
	HumidityFactor float64           `json:"humidity_factor"`
	WindFactor     float64           `json:"wind_factor"`
	TrafficFactor  float64           `json:"traffic_factor"`
}

// round4 rounds to 4 decimals, matching §4.F's "rounded to 4 decimals".
func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}

// Write emits both GeoTIFFs and the JSON log under root, named by ts
// (truncated to the hour). satScore and finalScore must both be spec.NX *
// spec.NY row-major, with NaN for unpopulated cells. hdf, wtf, and tf are
// the hour's scalar humidity/wind/traffic modifiers (component E),
// persisted in the companion log per §4.F.
func Write(ctx context.Context, root string, spec model.GridSpec, ts time.Time, satScore, finalScore []float64, hdf, wtf, tf float64, granuleIDs map[string]string) error {
	hour := ts.Truncate(time.Hour)
	slot := hour.Format("20060102_15")

	scoresDir := filepath.Join(root, "hourly_scores", hour.Format("2006/01/02"))
	if err := os.MkdirAll(scoresDir, 0o755); err != nil {
		return fmt.Errorf("writer: mkdir %s: %w", scoresDir, err)
	}
	logsDir := filepath.Join(root, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return fmt.Errorf("writer: mkdir %s: %w", logsDir, err)
	}

	satPath := filepath.Join(scoresDir, fmt.Sprintf("satellite_score_%s.tif", slot))
	finalPath := filepath.Join(scoresDir, fmt.Sprintf("final_score_%s.tif", slot))

	if err := writeGeoTIFF(satPath, spec, satScore); err != nil {
		return fmt.Errorf("writer: satellite score raster: %w", err)
	}
	if err := writeGeoTIFF(finalPath, spec, finalScore); err != nil {
		return fmt.Errorf("writer: final score raster: %w", err)
	}

	summary := Summary{
		Timestamp:      hour,
		GranuleIDs:     granuleIDs,
		MeanSat:        round4(meanIgnoringNaN(satScore)),
		MeanFinal:      round4(meanIgnoringNaN(finalScore)),
		HumidityFactor: round4(hdf),
		WindFactor:     round4(wtf),
		TrafficFactor:  round4(tf),
	}
	logPath := filepath.Join(logsDir, fmt.Sprintf("upes_%s.json", slot))
	f, err := os.Create(logPath)
	if err != nil {
		return fmt.Errorf("writer: create log %s: %w", logPath, err)
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("writer: encode log %s: %w", logPath, err)
	}
	return nil
}

// writeGeoTIFF creates a single-band float64 GeoTIFF covering spec's
// extent, with values row-major top-to-bottom (row 0 = north edge) and NaN
// nodata.
func writeGeoTIFF(path string, spec model.GridSpec, values []float64) error {
	if len(values) != spec.NX*spec.NY {
		return fmt.Errorf("values length %d != %d*%d grid cells", len(values), spec.NX, spec.NY)
	}

	ds, err := godal.Create(godal.GTiff, path, 1, godal.Float64, spec.NX, spec.NY)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer ds.Close()

	gt := [6]float64{spec.West, spec.Res, 0, spec.North, 0, -spec.Res}
	if err := ds.SetGeoTransform(gt); err != nil {
		return fmt.Errorf("set geotransform: %w", err)
	}
	sr, err := godal.NewSpatialRefFromEPSG(4326)
	if err != nil {
		return fmt.Errorf("spatial ref EPSG:4326: %w", err)
	}
	defer sr.Close()
	if err := ds.SetSpatialRef(sr); err != nil {
		return fmt.Errorf("set spatial ref: %w", err)
	}

	bands := ds.Bands()
	if len(bands) == 0 {
		return fmt.Errorf("no band on newly created dataset")
	}
	band := bands[0]
	if err := band.SetNoData(math.NaN()); err != nil {
		return fmt.Errorf("set nodata: %w", err)
	}
	if err := band.Write(0, 0, values, spec.NX, spec.NY); err != nil {
		return fmt.Errorf("write band: %w", err)
	}
	return nil
}

func meanIgnoringNaN(values []float64) float64 {
	var sum float64
	var n int
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		sum += v
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// LatestFinalScorePath returns the most recently modified
// final_score_*.tif under root/hourly_scores, per §4.F's "latest
// final-score path" lookup.
func LatestFinalScorePath(root string) (string, error) {
	scoresRoot := filepath.Join(root, "hourly_scores")
	var best string
	var bestMod time.Time

	err := filepath.WalkDir(scoresRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isFinalScoreFile(d.Name()) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = path
			bestMod = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("writer: walk %s: %w", scoresRoot, err)
	}
	if best == "" {
		return "", fmt.Errorf("writer: no final-score raster found under %s", scoresRoot)
	}
	return best, nil
}

func isFinalScoreFile(name string) bool {
	return len(name) > len("final_score_") && name[:len("final_score_")] == "final_score_" && filepath.Ext(name) == ".tif"
}
