// Package observability exposes the Prometheus collectors shared across AERIS components.
package observability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	enabled   atomic.Bool
	scenarioV atomic.Value
)

func Init(r prometheus.Registerer, isEnabled bool) {
	enabled.Store(isEnabled)
	if scenarioV.Load() == nil {
		scenarioV.Store("production")
	}
	if !isEnabled || r == nil {
		return
	}
	initCollectors(r)
}

func Enabled() bool { return enabled.Load() }

func SetScenario(s string) {
	if s == "" {
		s = "production"
	}
	scenarioV.Store(s)
}

var (
	ingestionCellsTotal      *prometheus.CounterVec
	ingestionGasOutcomeTotal *prometheus.CounterVec
	ingestionJobPollSeconds  *prometheus.HistogramVec
	brokerRetryTotal         *prometheus.CounterVec

	upesComputeSeconds prometheus.Histogram
	upesCellsWritten   *prometheus.GaugeVec
	upesMeanFinalScore prometheus.Gauge

	routeQueriesTotal    *prometheus.CounterVec
	routeQueryDuration   prometheus.Histogram
	pathfinderPathsFound prometheus.Histogram

	alertsFiredTotal     *prometheus.CounterVec
	alertDispatchTotal   *prometheus.CounterVec
	routesEvaluatedTotal prometheus.Counter

	cacheOpTotal   *prometheus.CounterVec
	cacheOpSeconds *prometheus.HistogramVec

	dbOpTotal   *prometheus.CounterVec
	dbOpSeconds *prometheus.HistogramVec

	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	schedulerTaskTotal   *prometheus.CounterVec
	schedulerTaskSeconds *prometheus.HistogramVec
)

var once sync.Once

func initCollectors(r prometheus.Registerer) {
	once.Do(func() {
		ingestionCellsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aeris_ingestion_cells_inserted_total", Help: "Grid cells inserted by gas."},
			[]string{"gas"},
		)
		ingestionGasOutcomeTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aeris_ingestion_gas_outcome_total", Help: "Per-gas ingestion outcome."},
			[]string{"gas", "outcome"},
		)
		ingestionJobPollSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "aeris_ingestion_job_poll_seconds", Help: "Time spent polling broker jobs.", Buckets: prometheus.ExponentialBuckets(1, 2, 12)},
			[]string{"gas"},
		)
		brokerRetryTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aeris_broker_retry_total", Help: "Broker HTTP retries by reason."},
			[]string{"gas", "reason"},
		)

		upesComputeSeconds = prometheus.NewHistogram(
			prometheus.HistogramOpts{Name: "aeris_upes_compute_seconds", Help: "Wall time of one UPES compute cycle.", Buckets: prometheus.ExponentialBuckets(0.1, 2, 12)},
		)
		upesCellsWritten = prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Name: "aeris_upes_grid_cells", Help: "Grid cell count of the most recent UPES frame."},
			[]string{"dimension"},
		)
		upesMeanFinalScore = prometheus.NewGauge(
			prometheus.GaugeOpts{Name: "aeris_upes_mean_final_score", Help: "Mean final UPES score of the most recent hour."},
		)

		routeQueriesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aeris_route_queries_total", Help: "Route queries by mode and outcome."},
			[]string{"mode", "outcome"},
		)
		routeQueryDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{Name: "aeris_route_query_seconds", Help: "Time to build graph + find paths.", Buckets: prometheus.ExponentialBuckets(0.01, 2, 14)},
		)
		pathfinderPathsFound = prometheus.NewHistogram(
			prometheus.HistogramOpts{Name: "aeris_pathfinder_paths_found", Help: "Number of alternative paths returned per query.", Buckets: prometheus.LinearBuckets(0, 1, 10)},
		)

		alertsFiredTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aeris_alerts_fired_total", Help: "Alerts fired by kind."},
			[]string{"kind"},
		)
		alertDispatchTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aeris_alert_dispatch_total", Help: "Webhook dispatch outcomes."},
			[]string{"outcome"},
		)
		routesEvaluatedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{Name: "aeris_routes_evaluated_total", Help: "Saved routes evaluated by the alert pipeline."},
		)

		cacheOpTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aeris_cache_op_total", Help: "Cache operations by op and outcome."},
			[]string{"op", "outcome"},
		)
		cacheOpSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "aeris_cache_op_seconds", Help: "Cache operation latency.", Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15)},
			[]string{"op"},
		)

		dbOpTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aeris_db_op_total", Help: "Spatial store operations by op and outcome."},
			[]string{"op", "outcome"},
		)
		dbOpSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "aeris_db_op_seconds", Help: "Spatial store operation latency.", Buckets: prometheus.ExponentialBuckets(0.001, 2, 15)},
			[]string{"op"},
		)

		httpRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aeris_http_requests_total", Help: "Admin-surface HTTP requests."},
			[]string{"method", "route", "status"},
		)
		httpRequestDurationSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "aeris_http_request_duration_seconds", Help: "Admin-surface HTTP request duration.", Buckets: prometheus.ExponentialBuckets(0.001, 2, 12)},
			[]string{"method", "route", "status"},
		)

		schedulerTaskTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "aeris_scheduler_task_total", Help: "Scheduled task runs by task and outcome."},
			[]string{"task", "outcome"},
		)
		schedulerTaskSeconds = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{Name: "aeris_scheduler_task_seconds", Help: "Scheduled task duration.", Buckets: prometheus.ExponentialBuckets(0.05, 2, 14)},
			[]string{"task"},
		)

		r.MustRegister(
			ingestionCellsTotal, ingestionGasOutcomeTotal, ingestionJobPollSeconds, brokerRetryTotal,
			upesComputeSeconds, upesCellsWritten, upesMeanFinalScore,
			routeQueriesTotal, routeQueryDuration, pathfinderPathsFound,
			alertsFiredTotal, alertDispatchTotal, routesEvaluatedTotal,
			cacheOpTotal, cacheOpSeconds,
			dbOpTotal, dbOpSeconds,
			httpRequestsTotal, httpRequestDurationSeconds,
			schedulerTaskTotal, schedulerTaskSeconds,
		)
	})
}

func AddIngestionCells(gas string, n int) {
	if !enabled.Load() || ingestionCellsTotal == nil || n <= 0 {
		return
	}
	ingestionCellsTotal.WithLabelValues(gas).Add(float64(n))
}

func ObserveIngestionOutcome(gas, outcome string) {
	if !enabled.Load() || ingestionGasOutcomeTotal == nil {
		return
	}
	ingestionGasOutcomeTotal.WithLabelValues(gas, outcome).Inc()
}

func ObserveJobPoll(gas string, d time.Duration) {
	if !enabled.Load() || ingestionJobPollSeconds == nil {
		return
	}
	ingestionJobPollSeconds.WithLabelValues(gas).Observe(d.Seconds())
}

func IncBrokerRetry(gas, reason string) {
	if !enabled.Load() || brokerRetryTotal == nil {
		return
	}
	brokerRetryTotal.WithLabelValues(gas, reason).Inc()
}

func ObserveUpesCompute(d time.Duration, nx, ny int, meanFinal float64) {
	if !enabled.Load() {
		return
	}
	if upesComputeSeconds != nil {
		upesComputeSeconds.Observe(d.Seconds())
	}
	if upesCellsWritten != nil {
		upesCellsWritten.WithLabelValues("nx").Set(float64(nx))
		upesCellsWritten.WithLabelValues("ny").Set(float64(ny))
	}
	if upesMeanFinalScore != nil {
		upesMeanFinalScore.Set(meanFinal)
	}
}

func ObserveRouteQuery(mode, outcome string, d time.Duration, pathsFound int) {
	if !enabled.Load() {
		return
	}
	if routeQueriesTotal != nil {
		routeQueriesTotal.WithLabelValues(mode, outcome).Inc()
	}
	if routeQueryDuration != nil {
		routeQueryDuration.Observe(d.Seconds())
	}
	if pathfinderPathsFound != nil {
		pathfinderPathsFound.Observe(float64(pathsFound))
	}
}

func IncAlertFired(kind string) {
	if !enabled.Load() || alertsFiredTotal == nil {
		return
	}
	alertsFiredTotal.WithLabelValues(kind).Inc()
}

func ObserveAlertDispatch(err error) {
	if !enabled.Load() || alertDispatchTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	alertDispatchTotal.WithLabelValues(outcome).Inc()
}

func AddRoutesEvaluated(n int) {
	if !enabled.Load() || routesEvaluatedTotal == nil || n <= 0 {
		return
	}
	routesEvaluatedTotal.Add(float64(n))
}

func ObserveCacheOp(op string, err error, d time.Duration) {
	if !enabled.Load() {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := "ok"
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
		default:
			outcome = "error"
		}
	}
	if cacheOpTotal != nil {
		cacheOpTotal.WithLabelValues(op, outcome).Inc()
	}
	if cacheOpSeconds != nil {
		cacheOpSeconds.WithLabelValues(op).Observe(d.Seconds())
	}
}

func ObserveDBOp(op string, err error, d time.Duration) {
	if !enabled.Load() {
		return
	}
	if op == "" {
		op = "unknown"
	}
	outcome := "ok"
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			outcome = "timeout"
		case errors.Is(err, context.Canceled):
			outcome = "canceled"
		default:
			outcome = "error"
		}
	}
	if dbOpTotal != nil {
		dbOpTotal.WithLabelValues(op, outcome).Inc()
	}
	if dbOpSeconds != nil {
		dbOpSeconds.WithLabelValues(op).Observe(d.Seconds())
	}
}

func ObserveHTTP(method, route string, status int, d time.Duration) {
	if !enabled.Load() || httpRequestsTotal == nil {
		return
	}
	st := statusString(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(d.Seconds())
}

func ObserveSchedulerTask(task string, err error, d time.Duration) {
	if !enabled.Load() || schedulerTaskTotal == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	schedulerTaskTotal.WithLabelValues(task, outcome).Inc()
	schedulerTaskSeconds.WithLabelValues(task).Observe(d.Seconds())
}

func statusString(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "2xx"
	case status >= 300 && status < 400:
		return "3xx"
	case status >= 400 && status < 500:
		return "4xx"
	case status >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
