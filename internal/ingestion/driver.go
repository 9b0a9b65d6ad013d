// Package ingestion is the hourly driver (component C): for each of the
// five gases, it fetches the last completed hour's coverage subset from
// the broker, streams it through the raster normalizer, and bulk-inserts
// the resulting cells into the spatial store.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aeris-platform/aeris/internal/cache"
	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/core/observability"
	"github.com/aeris-platform/aeris/internal/gas"
	"github.com/aeris-platform/aeris/internal/ingestion/broker"
	"github.com/aeris-platform/aeris/internal/objectstore"
	"github.com/aeris-platform/aeris/internal/raster/gdalio"
	"github.com/aeris-platform/aeris/internal/raster/normalizer"
	"github.com/aeris-platform/aeris/internal/spatialstore"
	"github.com/aeris-platform/aeris/internal/timeutil"
)

// lastUpdateKey marks the most recent successful ingestion cycle with a
// 1-hour TTL, per §4.C.8.
const lastUpdateKey = "ingestion:last_update"
const lastUpdateTTL = time.Hour

// Store is the subset of spatialstore.Store the driver needs.
type Store interface {
	BulkInsertCells(ctx context.Context, cells []model.PollutionGridCell) error
}

var _ Store = spatialstore.Store(nil)

// Driver orchestrates one hourly ingestion cycle across all five gases.
type Driver struct {
	log         *slog.Logger
	broker      *broker.Client
	collections gas.Collections
	store       Store
	cache       cache.Interface
	objStore    *objectstore.Store
	bbox        model.Extent
	cellCap     int
	uploadAudit bool
}

type Options struct {
	Logger      *slog.Logger
	Broker      *broker.Client
	Collections gas.Collections
	Store       Store
	Cache       cache.Interface
	ObjectStore *objectstore.Store
	BBox        model.Extent
	CellCap     int
	UploadAudit bool
}

func New(opts Options) *Driver {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	cellCap := opts.CellCap
	if cellCap <= 0 {
		cellCap = normalizer.DefaultCellCap
	}
	return &Driver{
		log:         log,
		broker:      opts.Broker,
		collections: opts.Collections,
		store:       opts.Store,
		cache:       opts.Cache,
		objStore:    opts.ObjectStore,
		bbox:        opts.BBox,
		cellCap:     cellCap,
		uploadAudit: opts.UploadAudit,
	}
}

// Result summarizes one RunHour call.
type Result struct {
	Hour           time.Time
	CellsInserted  int
	GasesSucceeded []model.Gas
	GasesSkipped   []model.Gas
}

// RunHour fetches and ingests the last completed hour for every gas in
// sequence. Per-gas failures are logged and skipped; later gases still
// run. The "last update" marker and onUpdated chain callback only fire if
// at least one cell was inserted across all gases.
func (d *Driver) RunHour(ctx context.Context, now time.Time, onUpdated func(context.Context, Result)) (Result, error) {
	hour := timeutil.LastCompletedHour(now)
	result := Result{Hour: hour}

	for _, g := range model.Gases {
		n, err := d.ingestGas(ctx, g, hour)
		if err != nil {
			d.log.Warn("ingestion: gas skipped", "gas", g, "hour", hour, "error", err)
			observability.ObserveIngestionOutcome(string(g), "skipped")
			result.GasesSkipped = append(result.GasesSkipped, g)
			continue
		}
		observability.ObserveIngestionOutcome(string(g), "ok")
		observability.AddIngestionCells(string(g), n)
		result.CellsInserted += n
		result.GasesSucceeded = append(result.GasesSucceeded, g)
	}

	if result.CellsInserted == 0 {
		return result, nil
	}

	if d.cache != nil {
		marker := hour.Format(time.RFC3339)
		if err := d.cache.Set(lastUpdateKey, []byte(marker), lastUpdateTTL); err != nil {
			d.log.Warn("ingestion: failed to set last-update marker", "error", err)
		}
	}
	if onUpdated != nil {
		onUpdated(ctx, result)
	}
	return result, nil
}

func (d *Driver) ingestGas(ctx context.Context, g model.Gas, hour time.Time) (int, error) {
	collectionID := d.collections.CollectionID(g)
	if collectionID == "" {
		return 0, fmt.Errorf("ingestion: no collection id configured for gas %s", g)
	}

	token, err := d.broker.ResolveBearerToken(ctx)
	if err != nil {
		return 0, fmt.Errorf("resolve bearer token: %w", err)
	}

	coverageURL := d.broker.CoverageURL(collectionID, string(g), d.bbox, hour, hour.Add(time.Hour))

	out, err := d.broker.Submit(ctx, g, coverageURL, token)
	if err != nil {
		return 0, fmt.Errorf("submit: %w", err)
	}

	var raster []byte
	if out.JobURL != "" {
		raster, err = d.broker.PollJob(ctx, g, out.JobURL, token)
		if err != nil {
			return 0, fmt.Errorf("poll job: %w", err)
		}
	} else {
		raster = out.SyncBody
	}
	if len(raster) == 0 {
		return 0, fmt.Errorf("empty raster body")
	}

	tmpPath, err := writeTemp(raster)
	if err != nil {
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	defer os.Remove(tmpPath)

	if d.uploadAudit && d.objStore != nil {
		key := objectstore.RasterKey(string(g), hour)
		if _, err := d.objStore.Put(ctx, key, raster); err != nil {
			d.log.Warn("ingestion: audit upload failed", "gas", g, "error", err)
		}
	}

	ds, err := gdalio.Open(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("open raster: %w", err)
	}
	defer ds.Close()

	var cells []model.PollutionGridCell
	normalizer.Normalize(ds, g, hour, d.cellCap, func(c model.PollutionGridCell) {
		cells = append(cells, c)
	})
	if len(cells) == 0 {
		return 0, nil
	}

	if err := d.store.BulkInsertCells(ctx, cells); err != nil {
		return 0, fmt.Errorf("bulk insert: %w", err)
	}
	return len(cells), nil
}

func writeTemp(data []byte) (string, error) {
	f, err := os.CreateTemp("", "aeris-ingest-*.tif")
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
