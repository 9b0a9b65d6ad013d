// Package config loads AERIS settings from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aeris-platform/aeris/internal/core/model"
	"github.com/aeris-platform/aeris/internal/gas"
)

type Config struct {
	Addr     string
	LogLevel string
	Scenario string

	DatabaseURL string
	RedisAddr   string
	KafkaBrokers string

	ObjectStoreEndpoint string
	ObjectStoreBucket   string
	ObjectStoreRegion   string

	BrokerBaseURL    string
	BrokerBearerToken string
	BrokerBasicUser  string
	BrokerBasicPass  string
	WeatherAPIKey    string
	WebhookURL       string

	// GasCollections maps each gas to its broker collection id, read from
	// COLLECTION_ID_<GAS> (e.g. COLLECTION_ID_NO2). A gas with no id set
	// is skipped by the ingestion driver for that hour.
	GasCollections gas.Collections

	PersistPollutionGrid    bool
	UpesEnabled             bool
	RouteOptimizationEnabled bool
	AlertsEnabled           bool

	IngestionBBox    model.Extent
	UpesRes          float64
	UpesEMALambda    float64
	UpesTFAlpha      float64
	UpesMaxCells     int
	UpesChunkSize    int
	RasterOutputRoot string // directory the UPES raster writer emits hourly GeoTIFFs under

	HazardThreshold       float64
	DeteriorationBase     float64
	TimeBasedMargin       float64
	WindShiftMinSpeedKph  float64
	WindShiftMaxAngleDeg  float64
	HotspotSearchRadiusKm float64
	HotspotH3Res          int

	CacheTTLOverrides map[string]time.Duration

	HTTPTimeoutShort  time.Duration
	HTTPTimeoutLong   time.Duration
	JobPollInterval   time.Duration
	JobPollTimeout    time.Duration
}

func FromEnv() Config {
	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Scenario: getenv("SCENARIO", "production"),

		DatabaseURL:  getenv("DATABASE_URL", "postgres://localhost:5432/aeris"),
		RedisAddr:    getenv("REDIS_ADDR", "localhost:6379"),
		KafkaBrokers: getenv("KAFKA_BROKERS", "localhost:9092"),

		ObjectStoreEndpoint: getenv("OBJECT_STORE_ENDPOINT", ""),
		ObjectStoreBucket:   getenv("OBJECT_STORE_BUCKET", "aeris-audit"),
		ObjectStoreRegion:   getenv("OBJECT_STORE_REGION", "us-east-1"),

		BrokerBaseURL:     getenv("BROKER_BASE_URL", "https://harmony.earthdata.nasa.gov"),
		BrokerBearerToken: getenv("BROKER_BEARER_TOKEN", ""),
		BrokerBasicUser:   getenv("BROKER_BASIC_USER", ""),
		BrokerBasicPass:   getenv("BROKER_BASIC_PASS", ""),
		WeatherAPIKey:     getenv("WEATHER_API_KEY", ""),
		WebhookURL:        getenv("WEBHOOK_URL", ""),
		GasCollections:    gasCollectionsFromEnv(),

		PersistPollutionGrid:     getbool("PERSIST_POLLUTION_GRID", true),
		UpesEnabled:              getbool("UPES_ENABLED", true),
		RouteOptimizationEnabled: getbool("ROUTE_OPTIMIZATION_ENABLED", true),
		AlertsEnabled:            getbool("ALERTS_ENABLED", true),

		IngestionBBox: getextent("INGESTION_BBOX", model.Extent{West: -125.0, South: 24.0, East: -66.0, North: 50.0}),
		UpesRes:       getfloat("UPES_RES_DEG", 0.05),
		UpesEMALambda: getfloat("UPES_EMA_LAMBDA", 0.6),
		UpesTFAlpha:   getfloat("UPES_TF_ALPHA", 0.1),
		UpesMaxCells:     getint("UPES_MAX_CELLS", 5000),
		UpesChunkSize:    getint("UPES_CHUNK_SIZE", 2000),
		RasterOutputRoot: getenv("RASTER_OUTPUT_ROOT", "./var/rasters"),

		HazardThreshold:       getfloat("ALERT_HAZARD_THRESHOLD", 0.85),
		DeteriorationBase:     getfloat("ALERT_DETERIORATION_BASE", 0.15),
		TimeBasedMargin:       getfloat("ALERT_TIME_BASED_MARGIN", 0.15),
		WindShiftMinSpeedKph:  getfloat("ALERT_WIND_SHIFT_MIN_KPH", 5.0),
		WindShiftMaxAngleDeg:  getfloat("ALERT_WIND_SHIFT_MAX_ANGLE", 45.0),
		HotspotSearchRadiusKm: getfloat("HOTSPOT_SEARCH_RADIUS_KM", 50.0),
		HotspotH3Res:          getint("HOTSPOT_H3_RES", 7),

		CacheTTLOverrides: parseDurationMap(getenv("CACHE_TTL_OVERRIDES", "")),

		HTTPTimeoutShort: getduration("HTTP_TIMEOUT_SHORT", 10*time.Second),
		HTTPTimeoutLong:  getduration("HTTP_TIMEOUT_LONG", 120*time.Second),
		JobPollInterval:  getduration("JOB_POLL_INTERVAL", 10*time.Second),
		JobPollTimeout:   getduration("JOB_POLL_TIMEOUT", 3600*time.Second),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// getextent parses "west,south,east,north"; falls back to def on any error.
func getextent(k string, def model.Extent) model.Extent {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	if len(parts) != 4 {
		return def
	}
	nums := make([]float64, 4)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return def
		}
		nums[i] = f
	}
	return model.Extent{West: nums[0], South: nums[1], East: nums[2], North: nums[3]}
}

// gasCollectionsFromEnv reads one COLLECTION_ID_<GAS> var per gas in
// model.Gases, omitting any gas left unset.
func gasCollectionsFromEnv() gas.Collections {
	out := gas.Collections{}
	for _, g := range model.Gases {
		if v := os.Getenv("COLLECTION_ID_" + string(g)); v != "" {
			out[g] = v
		}
	}
	return out
}

// parse "key=5m,other=30s" into a duration map.
func parseDurationMap(s string) map[string]time.Duration {
	out := map[string]time.Duration{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out
	}
	parts := strings.SplitSeq(s, ",")
	for p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		k := strings.TrimSpace(kv[0])
		v := strings.TrimSpace(kv[1])
		if k == "" {
			continue
		}
		if d, err := time.ParseDuration(v); err == nil {
			out[k] = d
		}
	}
	return out
}
