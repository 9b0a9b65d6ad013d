// Command aeris-worker runs AERIS's background runtime: the hourly
// scheduler driving ingestion, UPES compute, legacy route rescoring, and
// the alert pipeline, plus the alert dispatch bus's webhook runner.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aeris-platform/aeris/internal/alerts/pipeline"
	"github.com/aeris-platform/aeris/internal/alerts/pipeline/pgrepo"
	"github.com/aeris-platform/aeris/internal/cache"
	"github.com/aeris-platform/aeris/internal/cache/redisstore"
	"github.com/aeris-platform/aeris/internal/core/config"
	"github.com/aeris-platform/aeris/internal/core/observability"
	"github.com/aeris-platform/aeris/internal/hotspot"
	"github.com/aeris-platform/aeris/internal/ingestion"
	"github.com/aeris-platform/aeris/internal/ingestion/broker"
	"github.com/aeris-platform/aeris/internal/logger"
	"github.com/aeris-platform/aeris/internal/objectstore"
	"github.com/aeris-platform/aeris/internal/routescore"
	"github.com/aeris-platform/aeris/internal/scheduler"
	"github.com/aeris-platform/aeris/internal/spatialstore/pgstore"
	"github.com/aeris-platform/aeris/internal/upes/compute"
	"github.com/aeris-platform/aeris/internal/upes/weather"
	"github.com/aeris-platform/aeris/pkg/alertbus"
)

var Version = "dev"

func main() {
	cfg := config.FromEnv()

	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Scenario:  cfg.Scenario,
		Component: "worker",
	}, os.Stdout)
	log := logger.NewSlog(&zl)
	log.Info("starting aeris-worker", "version", Version, "scenario", cfg.Scenario)

	observability.Init(prometheus.DefaultRegisterer, true)
	observability.SetScenario(cfg.Scenario)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := pgstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect spatial store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	routeRepo, err := pgrepo.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("connect route repo", "error", err)
		os.Exit(1)
	}
	defer routeRepo.Close()

	var cacheBackend cache.Backend
	rdb, err := redisstore.New(ctx, cfg.RedisAddr)
	if err != nil {
		log.Warn("redis unavailable, caching disabled for this process", "error", err)
	} else {
		defer rdb.Close()
		cacheBackend = rdb
	}
	cacheAdapter := cache.NewAdapter(cache.AdapterOptions{
		Backend:   cacheBackend,
		Overrides: cfg.CacheTTLOverrides,
	})

	var objStore *objectstore.Store
	if cfg.ObjectStoreBucket != "" {
		objStore, err = objectstore.Open(ctx, cfg.ObjectStoreEndpoint, cfg.ObjectStoreRegion, cfg.ObjectStoreBucket)
		if err != nil {
			log.Warn("object store unavailable, audit upload disabled", "error", err)
		}
	}

	brokerClient := broker.New(cfg.BrokerBaseURL, broker.Credentials{
		BearerToken: cfg.BrokerBearerToken,
		BasicUser:   cfg.BrokerBasicUser,
		BasicPass:   cfg.BrokerBasicPass,
	}, broker.Options{
		PollInterval: cfg.JobPollInterval,
		PollTimeout:  cfg.JobPollTimeout,
	})

	weatherClient := weather.New(cfg.WeatherAPIKey, weather.Options{Cache: cacheAdapter})

	ingestionDriver := ingestion.New(ingestion.Options{
		Logger:      log,
		Broker:      brokerClient,
		Collections: cfg.GasCollections,
		Store:       store,
		Cache:       cacheAdapter,
		ObjectStore: objStore,
		BBox:        cfg.IngestionBBox,
		CellCap:     cfg.UpesMaxCells,
		UploadAudit: cfg.PersistPollutionGrid,
	})

	upesCompute := compute.New(compute.Options{
		Logger:     log,
		Store:      store,
		Weather:    weatherClient,
		OutputRoot: cfg.RasterOutputRoot,
		BBox:       cfg.IngestionBBox,
		Res:        cfg.UpesRes,
		EMALambda:  cfg.UpesEMALambda,
		TFAlpha:    cfg.UpesTFAlpha,
	})

	legacyRouteScore := routescore.New(routescore.Options{
		Logger: log,
		Routes: routeRepo,
		Scores: routeRepo,
		Store:  store,
	})

	hotspotSource := hotspot.NewSource(hotspot.SourceOptions{
		Store: store,
		H3Res: cfg.HotspotH3Res,
	})

	busCfg := alertbus.FromEnv()
	var publisher pipeline.Publisher
	producer, err := alertbus.NewProducer(busCfg)
	if err != nil {
		log.Warn("alert dispatch bus producer unavailable, alerts will not be published", "error", err)
	} else {
		defer producer.Close()
		publisher = producer
	}

	alertPipeline := pipeline.New(pipeline.Options{
		Logger:    log,
		Routes:    routeRepo,
		History:   routeRepo,
		Alerts:    routeRepo,
		Weather:   weatherClient,
		Publisher: publisher,
		Thresholds: pipeline.Thresholds{
			DeteriorationBase:    cfg.DeteriorationBase,
			HazardThreshold:      cfg.HazardThreshold,
			TimeBasedMargin:      cfg.TimeBasedMargin,
			WindShiftMinKph:      cfg.WindShiftMinSpeedKph,
			WindShiftMaxAngleDeg: cfg.WindShiftMaxAngleDeg,
		},
		HotspotSearchRadiusKm: cfg.HotspotSearchRadiusKm,
	})

	sched, err := scheduler.New(scheduler.Options{
		Logger:        log,
		Ingestion:     ingestionDriver,
		Compute:       upesCompute,
		RouteScore:    legacyRouteScore,
		Alerts:        alertPipeline,
		Hotspots:      hotspotSource,
		RasterRoot:    cfg.RasterOutputRoot,
		UpesEnabled:   cfg.UpesEnabled,
		AlertsEnabled: cfg.AlertsEnabled,
	})
	if err != nil {
		log.Error("build scheduler", "error", err)
		os.Exit(1)
	}

	busRunner := alertbus.New(busCfg, alertbus.Options{
		Logger:   log,
		Register: prometheus.DefaultRegisterer,
	})
	if err := busRunner.Start(ctx); err != nil {
		log.Error("start alert dispatch bus runner", "error", err)
		os.Exit(1)
	}

	sched.Start()
	log.Info("aeris-worker ready")

	<-ctx.Done()
	log.Info("signal received, shutting down")
	sched.Stop()
	busRunner.Stop()
}
