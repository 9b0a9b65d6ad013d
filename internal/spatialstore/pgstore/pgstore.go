// Package pgstore implements spatialstore.Store on PostGIS via pgx/v5. All
// geometry is stored and queried in SRID 4326.
package pgstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/core/observability"
	"github.com/aeris-platform/aeris/internal/spatialstore"
	"github.com/aeris-platform/aeris/internal/timeutil"
)

// ChunkSize is the row count per committed bulk-insert chunk, per §4.A.
const ChunkSize = 2000

const schema = `
CREATE TABLE IF NOT EXISTS pollution_grid_cells (
	id        bigserial PRIMARY KEY,
	ts        timestamptz NOT NULL,
	gas       text NOT NULL,
	polygon   geometry(Polygon, 4326) NOT NULL,
	value     double precision NOT NULL,
	severity  smallint NOT NULL
);
CREATE INDEX IF NOT EXISTS pollution_grid_cells_ts_idx ON pollution_grid_cells (ts);
CREATE INDEX IF NOT EXISTS pollution_grid_cells_gas_idx ON pollution_grid_cells (gas);
CREATE INDEX IF NOT EXISTS pollution_grid_cells_polygon_gix ON pollution_grid_cells USING GIST (polygon);
`

// Store is a pgxpool-backed spatialstore.Store.
type Store struct {
	pool *pgxpool.Pool
}

var _ spatialstore.Store = (*Store)(nil)

// Open connects to databaseURL and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgstore: parse dsn: %w", err)
	}
	cfg.MaxConns = 16
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgstore: connect: %w", err)
	}

	start := time.Now()
	_, err = pool.Exec(ctx, schema)
	observability.ObserveDBOp("migrate", err, time.Since(start))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgstore: migrate schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

// Ping reports whether the pool can still reach Postgres, for the Admin/Ops
// Surface's readiness probe.
func (s *Store) Ping() error {
	return s.pool.Ping(context.Background())
}

// BulkInsertCells chunks cells into ChunkSize-row groups and commits each
// chunk in its own transaction, so a failure partway through leaves every
// earlier chunk intact.
func (s *Store) BulkInsertCells(ctx context.Context, cells []model.PollutionGridCell) error {
	for start := 0; start < len(cells); start += ChunkSize {
		end := start + ChunkSize
		if end > len(cells) {
			end = len(cells)
		}
		if err := s.insertChunk(ctx, cells[start:end]); err != nil {
			return fmt.Errorf("pgstore: chunk [%d:%d): %w", start, end, err)
		}
	}
	return nil
}

func (s *Store) insertChunk(ctx context.Context, chunk []model.PollutionGridCell) error {
	started := time.Now()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		observability.ObserveDBOp("bulk_insert_chunk", err, time.Since(started))
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	batch := &pgx.Batch{}
	for _, c := range chunk {
		batch.Queue(
			`INSERT INTO pollution_grid_cells (ts, gas, polygon, value, severity)
			 VALUES ($1, $2, ST_GeomFromText($3, 4326), $4, $5)`,
			c.Timestamp, string(c.Gas), ringWKT(c.Polygon), c.Value, c.Severity,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range chunk {
		if _, err := br.Exec(); err != nil {
			br.Close()
			observability.ObserveDBOp("bulk_insert_chunk", err, time.Since(started))
			return fmt.Errorf("exec batch: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		observability.ObserveDBOp("bulk_insert_chunk", err, time.Since(started))
		return fmt.Errorf("close batch: %w", err)
	}

	err = tx.Commit(ctx)
	observability.ObserveDBOp("bulk_insert_chunk", err, time.Since(started))
	if err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func ringWKT(ring [5]model.LatLng) string {
	var b strings.Builder
	b.WriteString("POLYGON((")
	for i, p := range ring {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%f %f", p.Lon, p.Lat)
	}
	b.WriteString("))")
	return b.String()
}

// RangeQuery returns the (gas, centroid, value) of every cell within window
// and bbox.
func (s *Store) RangeQuery(ctx context.Context, window spatialstore.TimeWindow, bbox model.Extent) ([]spatialstore.Observation, error) {
	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT gas, ST_Y(ST_Centroid(polygon)), ST_X(ST_Centroid(polygon)), value
		FROM pollution_grid_cells
		WHERE ts >= $1 AND ts <= $2
		  AND polygon && ST_MakeEnvelope($3, $4, $5, $6, 4326)`,
		window.From, window.To, bbox.West, bbox.South, bbox.East, bbox.North,
	)
	observability.ObserveDBOp("range_query", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("pgstore: range query: %w", err)
	}
	defer rows.Close()

	var out []spatialstore.Observation
	for rows.Next() {
		var o spatialstore.Observation
		var gas string
		if err := rows.Scan(&gas, &o.Lat, &o.Lon, &o.Value); err != nil {
			return nil, fmt.Errorf("pgstore: scan range row: %w", err)
		}
		o.Gas = model.Gas(gas)
		out = append(out, o)
	}
	return out, rows.Err()
}

// LineIntersectAggregate aggregates value/severity over cells intersecting
// lineWKT in the hour starting at hour.Truncate(time.Hour).
func (s *Store) LineIntersectAggregate(ctx context.Context, lineWKT string, hour time.Time) (spatialstore.LineAggregate, error) {
	hourStart := timeutil.TruncateToHour(hour)
	hourEnd := hourStart.Add(time.Hour)

	start := time.Now()
	row := s.pool.QueryRow(ctx, `
		SELECT
			COALESCE(AVG(value), 0),
			COALESCE(SUM(severity), 0),
			COUNT(*)
		FROM pollution_grid_cells
		WHERE ts >= $1 AND ts < $2
		  AND ST_Intersects(polygon, ST_GeomFromText($3, 4326))`,
		hourStart, hourEnd, lineWKT,
	)

	var agg spatialstore.LineAggregate
	err := row.Scan(&agg.AvgValue, &agg.SumSeverity, &agg.CellsMatched)
	observability.ObserveDBOp("line_intersect", err, time.Since(start))
	if err != nil {
		return spatialstore.LineAggregate{}, fmt.Errorf("pgstore: line intersect aggregate: %w", err)
	}
	return agg, nil
}

// CellsAtHour returns every cell at or above minSeverity within the hour
// starting at hour.Truncate(time.Hour). Each returned cell's polygon is
// degenerate (all five ring points equal the centroid) since hotspot
// clustering only consumes the centroid.
func (s *Store) CellsAtHour(ctx context.Context, hour time.Time, minSeverity int) ([]model.PollutionGridCell, error) {
	hourStart := timeutil.TruncateToHour(hour)
	hourEnd := hourStart.Add(time.Hour)

	start := time.Now()
	rows, err := s.pool.Query(ctx, `
		SELECT ts, gas, ST_Y(ST_Centroid(polygon)), ST_X(ST_Centroid(polygon)), value, severity
		FROM pollution_grid_cells
		WHERE ts >= $1 AND ts < $2 AND severity >= $3`,
		hourStart, hourEnd, minSeverity,
	)
	observability.ObserveDBOp("cells_at_hour", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("pgstore: cells at hour: %w", err)
	}
	defer rows.Close()

	var out []model.PollutionGridCell
	for rows.Next() {
		var c model.PollutionGridCell
		var gas string
		var lat, lon float64
		if err := rows.Scan(&c.Timestamp, &gas, &lat, &lon, &c.Value, &c.Severity); err != nil {
			return nil, fmt.Errorf("pgstore: scan cells-at-hour row: %w", err)
		}
		c.Gas = model.Gas(gas)
		point := model.LatLng{Lat: lat, Lon: lon}
		c.Polygon = [5]model.LatLng{point, point, point, point, point}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MaxTimestamp returns the most recent cell timestamp across all gases.
func (s *Store) MaxTimestamp(ctx context.Context) (time.Time, error) {
	start := time.Now()
	row := s.pool.QueryRow(ctx, `SELECT MAX(ts) FROM pollution_grid_cells`)

	var ts *time.Time
	err := row.Scan(&ts)
	observability.ObserveDBOp("max_timestamp", err, time.Since(start))
	if err != nil {
		if err == pgx.ErrNoRows {
			return time.Time{}, nil
		}
		return time.Time{}, fmt.Errorf("pgstore: max timestamp: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return *ts, nil
}
