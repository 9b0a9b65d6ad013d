// Package gdalio wraps godal dataset access for both the raster normalizer
// (full-raster iteration) and the UPES raster's point-sample reader, behind
// a small dataset handle shared by both.
package gdalio

import (
	"fmt"
	"math"
	"sync"

	"github.com/airbusgeo/godal"

	"github.com/aeris-platform/aeris/internal/exposure/sampler"
)

func init() {
	godal.RegisterAll()
}

// Dataset wraps an open single-band raster with its affine transform.
type Dataset struct {
	ds    *godal.Dataset
	band  godal.Band
	gt    [6]float64
	sizeX int
	sizeY int
	mu    sync.Mutex
}

var _ sampler.PointReader = (*Dataset)(nil)

// Open opens path (a local file, e.g. a downloaded or just-written GeoTIFF)
// and caches its first band and geotransform.
func Open(path string) (*Dataset, error) {
	ds, err := godal.Open(path)
	if err != nil {
		return nil, fmt.Errorf("gdalio: open %q: %w", path, err)
	}
	gt, err := ds.GeoTransform()
	if err != nil {
		ds.Close()
		return nil, fmt.Errorf("gdalio: geotransform %q: %w", path, err)
	}
	bands := ds.Bands()
	if len(bands) == 0 {
		ds.Close()
		return nil, fmt.Errorf("gdalio: %q has no bands", path)
	}
	st := ds.Structure()
	return &Dataset{ds: ds, band: bands[0], gt: gt, sizeX: st.SizeX, sizeY: st.SizeY}, nil
}

func (d *Dataset) Close() error {
	return d.ds.Close()
}

func (d *Dataset) SizeX() int { return d.sizeX }
func (d *Dataset) SizeY() int { return d.sizeY }

// PixelSizeDeg returns the absolute cell size (lon, lat) in degrees.
func (d *Dataset) PixelSizeDeg() (dx, dy float64) {
	return math.Abs(d.gt[1]), math.Abs(d.gt[5])
}

// PixelCenterLatLon returns the geographic center of pixel (x,y).
func (d *Dataset) PixelCenterLatLon(x, y int) (lat, lon float64) {
	lon = d.gt[0] + (float64(x)+0.5)*d.gt[1]
	lat = d.gt[3] + (float64(y)+0.5)*d.gt[5]
	return lat, lon
}

// ReadPixel reads one pixel's value.
func (d *Dataset) ReadPixel(x, y int) (float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := make([]float64, 1)
	if err := d.band.Read(x, y, buf, 1, 1); err != nil {
		return 0, fmt.Errorf("gdalio: read pixel (%d,%d): %w", x, y, err)
	}
	return buf[0], nil
}

// ReadAll reads the entire band into one row-major float64 slice, matching
// the layout internal/raster/writer.writeGeoTIFF produces (row 0 = north
// edge). Used to reload the previous hour's final-score raster for EMA
// smoothing.
func (d *Dataset) ReadAll() ([]float64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	buf := make([]float64, d.sizeX*d.sizeY)
	if err := d.band.Read(0, 0, buf, d.sizeX, d.sizeY); err != nil {
		return nil, fmt.Errorf("gdalio: read full band: %w", err)
	}
	return buf, nil
}

// ValueAt implements sampler.PointReader: converts a WGS84 point to a
// pixel via the inverse geotransform and reads it. ok is false when the
// point falls outside the dataset extent.
func (d *Dataset) ValueAt(lat, lon float64) (float64, bool, error) {
	px := (lon - d.gt[0]) / d.gt[1]
	py := (lat - d.gt[3]) / d.gt[5]
	x, y := int(px), int(py)
	if x < 0 || x >= d.sizeX || y < 0 || y >= d.sizeY {
		return 0, false, nil
	}
	v, err := d.ReadPixel(x, y)
	if err != nil {
		return 0, false, err
	}
	if math.IsNaN(v) {
		return 0, false, nil
	}
	return v, true, nil
}
