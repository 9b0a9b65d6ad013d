// Command aeris-api runs the Admin/Ops Surface (component P): health,
// readiness, metrics, and the one on-demand route query endpoint that
// delegates to the Route graph builder (G) and Pathfinder (H).
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aeris-platform/aeris/internal/cache/redisstore"
	"github.com/aeris-platform/aeris/internal/core/config"
	"github.com/aeris-platform/aeris/internal/core/health"
	"github.com/aeris-platform/aeris/internal/core/middleware"
	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/core/observability"
	"github.com/aeris-platform/aeris/internal/exposure/sampler"
	"github.com/aeris-platform/aeris/internal/logger"
	"github.com/aeris-platform/aeris/internal/raster/gdalio"
	"github.com/aeris-platform/aeris/internal/raster/writer"
	"github.com/aeris-platform/aeris/internal/routing/graphio"
	"github.com/aeris-platform/aeris/internal/routing/pathfinder"
	"github.com/aeris-platform/aeris/internal/spatialstore/pgstore"
)

var Version = "dev"

func main() {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Scenario:  cfg.Scenario,
		Component: "api",
	}, os.Stdout)
	log := logger.NewSlog(&zl)
	log.Info("starting aeris-api", "addr", cfg.Addr, "version", Version)

	observability.Init(nil, true)
	observability.SetScenario(cfg.Scenario)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := pgstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect spatial store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	graphPath := os.Getenv("ROUTE_GRAPH_PATH")

	r := chi.NewRouter()
	r.Use(middleware.Recover())
	r.Use(middleware.Logging(log))

	r.Get("/healthz", health.Liveness())
	deps := map[string]health.Pinger{"spatial_store": store}
	if rdb, err := redisstore.New(ctx, cfg.RedisAddr); err != nil {
		log.Warn("redis unavailable at startup, readiness reports cache as down", "error", err)
		deps["cache"] = unreachable{err}
	} else {
		defer rdb.Close()
		deps["cache"] = rdb
	}
	r.Get("/readyz", health.Readiness(deps))
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	if cfg.RouteOptimizationEnabled {
		r.Get("/route", routeHandler(log, cfg, graphPath))
	} else {
		r.Get("/route", routeDisabledHandler())
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("http listen", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("signal received, shutting down")
	case err := <-errCh:
		log.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	log.Info("aeris-api stopped")
}

// routeHandler answers ?origin=lat,lon&dest=lat,lon&mode=commute|jog|cycle
// by loading the topology extract at graphPath, sampling it against the
// latest UPES final-score raster, and returning up to 3 ranked paths. A
// missing graph extract is a missing-prerequisite per §7, not a panic: the
// handler answers 503 instead. A missing raster is not an error; the graph
// is then built without raster sampling.
func routeHandler(log interface{ Warn(string, ...any) }, cfg config.Config, graphPath string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if graphPath == "" {
			http.Error(w, "route graph not configured", http.StatusServiceUnavailable)
			return
		}

		originLat, originLon, ok := parseLatLon(r.URL.Query().Get("origin"))
		if !ok {
			http.Error(w, "invalid origin", http.StatusBadRequest)
			return
		}
		destLat, destLon, ok := parseLatLon(r.URL.Query().Get("dest"))
		if !ok {
			http.Error(w, "invalid dest", http.StatusBadRequest)
			return
		}
		mode := model.NormalizeMode(r.URL.Query().Get("mode"))

		raw, err := graphio.Load(graphPath)
		if err != nil {
			log.Warn("route graph unavailable", "error", err)
			http.Error(w, "route graph not available", http.StatusServiceUnavailable)
			return
		}

		var raster sampler.PointReader
		if path, err := writer.LatestFinalScorePath(cfg.RasterOutputRoot); err == nil {
			if ds, err := gdalio.Open(path); err == nil {
				raster = ds
				defer ds.Close()
			}
		}

		g := graphio.Build(raw, mode, raster, 0)
		paths := pathfinder.FindPaths(g, originLat, originLon, destLat, destLon, 3)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(routeResponse(paths))
	}
}

// routeDisabledHandler answers 503 when ROUTE_OPTIMIZATION_ENABLED is false.
func routeDisabledHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "route optimization is disabled", http.StatusServiceUnavailable)
	}
}

type routePath struct {
	DistanceKm  float64     `json:"distance_km"`
	TimeMin     float64     `json:"time_min"`
	ExposureSum float64     `json:"exposure_sum"`
	Cost        float64     `json:"cost"`
	Line        [][2]float64 `json:"line"` // [lon, lat] pairs
}

func routeResponse(paths []pathfinder.Path) []routePath {
	out := make([]routePath, 0, len(paths))
	for _, p := range paths {
		var line [][2]float64
		if p.Line != nil {
			for _, c := range p.Line.Coords() {
				line = append(line, [2]float64{c[0], c[1]})
			}
		}
		out = append(out, routePath{
			DistanceKm:  p.DistanceKm,
			TimeMin:     p.TimeMin,
			ExposureSum: p.ExposureSum,
			Cost:        p.Cost,
			Line:        line,
		})
	}
	return out
}

func parseLatLon(s string) (lat, lon float64, ok bool) {
	if s == "" {
		return 0, 0, false
	}
	i := -1
	for idx := 0; idx < len(s); idx++ {
		if s[idx] == ',' {
			i = idx
			break
		}
	}
	if i < 0 {
		return 0, 0, false
	}
	latF, err1 := strconv.ParseFloat(s[:i], 64)
	lonF, err2 := strconv.ParseFloat(s[i+1:], 64)
	if err1 != nil || err2 != nil {
		return 0, 0, false
	}
	return latF, lonF, true
}

// unreachable is the readiness Pinger for a dependency that failed to
// connect at startup; it always reports that error.
type unreachable struct{ err error }

func (u unreachable) Ping() error { return u.err }
