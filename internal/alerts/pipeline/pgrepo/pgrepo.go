// Package pgrepo implements the Alert Pipeline's route/history/alert
// persistence on the same Postgres database as the spatial store, per
// §6's users/saved_routes/route_exposure_history/alert_log tables.
package pgrepo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aeris-platform/aeris/internal/alerts/pipeline"
	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/core/observability"
	"github.com/aeris-platform/aeris/internal/routescore"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id                          text PRIMARY KEY,
	email                       text NOT NULL UNIQUE,
	preferred_activity          text NOT NULL DEFAULT 'commute'
		CHECK (preferred_activity IN ('commute', 'jog', 'cycle')),
	exposure_sensitivity_level  smallint NOT NULL DEFAULT 1
		CHECK (exposure_sensitivity_level BETWEEN 1 AND 5),
	notify_email                boolean NOT NULL DEFAULT true,
	notify_push                 boolean NOT NULL DEFAULT false,
	notify_in_app               boolean
);
CREATE TABLE IF NOT EXISTS saved_routes (
	id                  text PRIMARY KEY,
	user_id             text NOT NULL REFERENCES users(id),
	origin_lat          double precision NOT NULL,
	origin_lon          double precision NOT NULL,
	destination_lat     double precision NOT NULL,
	destination_lon     double precision NOT NULL,
	activity_type       text,
	last_computed_score double precision,
	last_computed_at    timestamptz,
	last_upes_score     double precision,
	last_upes_at        timestamptz
);
CREATE INDEX IF NOT EXISTS saved_routes_user_idx ON saved_routes (user_id);
CREATE TABLE IF NOT EXISTS route_exposure_history (
	id         text PRIMARY KEY,
	route_id   text NOT NULL REFERENCES saved_routes(id),
	ts         timestamptz NOT NULL,
	mean_upes  double precision NOT NULL,
	max_upes   double precision,
	source     text NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS route_exposure_history_route_ts_idx ON route_exposure_history (route_id, ts DESC);
CREATE TABLE IF NOT EXISTS alert_log (
	id                text PRIMARY KEY,
	user_id           text NOT NULL REFERENCES users(id),
	route_id          text NOT NULL REFERENCES saved_routes(id),
	kind              text NOT NULL,
	score_before      double precision NOT NULL,
	score_after       double precision NOT NULL,
	threshold         double precision NOT NULL,
	metadata          jsonb,
	created_at        timestamptz NOT NULL,
	notified_channels text[] NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS alert_log_route_idx ON alert_log (route_id, created_at DESC);
`

// Repo implements pipeline.RouteRepo, pipeline.HistoryRepo, and
// pipeline.AlertRepo on one pgxpool connection.
type Repo struct {
	pool *pgxpool.Pool
}

var (
	_ pipeline.RouteRepo     = (*Repo)(nil)
	_ pipeline.HistoryRepo   = (*Repo)(nil)
	_ pipeline.AlertRepo     = (*Repo)(nil)
	_ routescore.RouteLister = (*Repo)(nil)
	_ routescore.ScoreWriter = (*Repo)(nil)
)

// Open connects to databaseURL and ensures the schema exists.
func Open(ctx context.Context, databaseURL string) (*Repo, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("pgrepo: parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnLifetime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("pgrepo: connect: %w", err)
	}

	start := time.Now()
	_, err = pool.Exec(ctx, schema)
	observability.ObserveDBOp("migrate", err, time.Since(start))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgrepo: migrate schema: %w", err)
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() {
	r.pool.Close()
}

// ListActive returns every saved route joined with its owning user.
func (r *Repo) ListActive(ctx context.Context) ([]pipeline.RouteRecord, error) {
	start := time.Now()
	rows, err := r.pool.Query(ctx, `
		SELECT
			sr.id, sr.user_id, sr.origin_lat, sr.origin_lon, sr.destination_lat, sr.destination_lon,
			sr.activity_type, sr.last_computed_score, sr.last_computed_at, sr.last_upes_score, sr.last_upes_at,
			u.id, u.email, u.preferred_activity, u.exposure_sensitivity_level,
			u.notify_email, u.notify_push, u.notify_in_app
		FROM saved_routes sr
		JOIN users u ON u.id = sr.user_id`)
	observability.ObserveDBOp("list_active_routes", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("pgrepo: list active routes: %w", err)
	}
	defer rows.Close()

	var out []pipeline.RouteRecord
	for rows.Next() {
		var rec pipeline.RouteRecord
		var activityType, preferredActivity *string
		var notifyInApp *bool
		if err := rows.Scan(
			&rec.Route.ID, &rec.Route.UserID,
			&rec.Route.Origin.Lat, &rec.Route.Origin.Lon,
			&rec.Route.Destination.Lat, &rec.Route.Destination.Lon,
			&activityType, &rec.Route.LastComputedScore, &rec.Route.LastComputedAt,
			&rec.Route.LastUpesScore, &rec.Route.LastUpesAt,
			&rec.User.ID, &rec.User.Email, &preferredActivity, &rec.User.ExposureSensitivityLevel,
			&rec.User.NotifyEmail, &rec.User.NotifyPush, &notifyInApp,
		); err != nil {
			return nil, fmt.Errorf("pgrepo: scan route row: %w", err)
		}
		if activityType != nil {
			mode := model.NormalizeMode(*activityType)
			rec.Route.ActivityType = &mode
		}
		if preferredActivity != nil {
			rec.User.PreferredActivity = model.NormalizeMode(*preferredActivity)
		}
		rec.User.NotifyInApp = notifyInApp
		out = append(out, rec)
	}
	return out, rows.Err()
}

// UpdateUpesScore records the route's latest UPES sampling result.
func (r *Repo) UpdateUpesScore(ctx context.Context, routeID string, score float64, at time.Time) error {
	start := time.Now()
	_, err := r.pool.Exec(ctx, `
		UPDATE saved_routes SET last_upes_score = $1, last_upes_at = $2 WHERE id = $3`,
		score, at, routeID)
	observability.ObserveDBOp("update_upes_score", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("pgrepo: update upes score: %w", err)
	}
	return nil
}

// ListRouteLines returns every saved route's origin/destination line, for
// the legacy blended-score recompute task.
func (r *Repo) ListRouteLines(ctx context.Context) ([]routescore.RouteLine, error) {
	start := time.Now()
	rows, err := r.pool.Query(ctx, `SELECT id, origin_lat, origin_lon, destination_lat, destination_lon FROM saved_routes`)
	observability.ObserveDBOp("list_route_lines", err, time.Since(start))
	if err != nil {
		return nil, fmt.Errorf("pgrepo: list route lines: %w", err)
	}
	defer rows.Close()

	var out []routescore.RouteLine
	for rows.Next() {
		var l routescore.RouteLine
		if err := rows.Scan(&l.ID, &l.OriginLat, &l.OriginLon, &l.DestLat, &l.DestLon); err != nil {
			return nil, fmt.Errorf("pgrepo: scan route line: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// UpdateLegacyScore records the route's recomputed legacy blended score.
func (r *Repo) UpdateLegacyScore(ctx context.Context, routeID string, score *float64, at time.Time) error {
	start := time.Now()
	_, err := r.pool.Exec(ctx, `
		UPDATE saved_routes SET last_computed_score = $1, last_computed_at = $2 WHERE id = $3`,
		score, at, routeID)
	observability.ObserveDBOp("update_legacy_score", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("pgrepo: update legacy score: %w", err)
	}
	return nil
}

// Append inserts one exposure history row.
func (r *Repo) Append(ctx context.Context, entry model.RouteExposureHistoryEntry) error {
	start := time.Now()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO route_exposure_history (id, route_id, ts, mean_upes, max_upes, source)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.RouteID, entry.Timestamp, entry.MeanUpes, entry.MaxUpes, entry.Source)
	observability.ObserveDBOp("append_history", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("pgrepo: append history: %w", err)
	}
	return nil
}

// Previous returns the second-most-recent history row's mean score — the
// most recent is the entry this run just appended.
func (r *Repo) Previous(ctx context.Context, routeID string) (float64, bool, error) {
	start := time.Now()
	row := r.pool.QueryRow(ctx, `
		SELECT mean_upes FROM route_exposure_history
		WHERE route_id = $1
		ORDER BY ts DESC
		OFFSET 1 LIMIT 1`, routeID)

	var score float64
	err := row.Scan(&score)
	observability.ObserveDBOp("previous_score", err, time.Since(start))
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("pgrepo: previous score: %w", err)
	}
	return score, true, nil
}

// Min24h returns the minimum mean score over the trailing 24 hours.
func (r *Repo) Min24h(ctx context.Context, routeID string) (float64, bool, error) {
	start := time.Now()
	row := r.pool.QueryRow(ctx, `
		SELECT MIN(mean_upes) FROM route_exposure_history
		WHERE route_id = $1 AND ts >= now() - interval '24 hours'`, routeID)

	var score *float64
	err := row.Scan(&score)
	observability.ObserveDBOp("min_24h_score", err, time.Since(start))
	if err != nil {
		return 0, false, fmt.Errorf("pgrepo: 24h min score: %w", err)
	}
	if score == nil {
		return 0, false, nil
	}
	return *score, true, nil
}

// Insert persists one fired alert.
func (r *Repo) Insert(ctx context.Context, entry model.AlertLogEntry) error {
	metadata, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("pgrepo: marshal alert metadata: %w", err)
	}

	start := time.Now()
	_, err = r.pool.Exec(ctx, `
		INSERT INTO alert_log (id, user_id, route_id, kind, score_before, score_after, threshold, metadata, created_at, notified_channels)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, entry.RouteID, string(entry.Kind),
		entry.ScoreBefore, entry.ScoreAfter, entry.Threshold, metadata, entry.CreatedAt, entry.NotifiedChannels)
	observability.ObserveDBOp("insert_alert", err, time.Since(start))
	if err != nil {
		return fmt.Errorf("pgrepo: insert alert: %w", err)
	}
	return nil
}
