package observability

import (
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var modeLabel atomic.Value

func init() {
	modeLabel.Store("cli")
}

// SetMode labels every series recorded afterwards with the run mode (cli or
// serve).
func SetMode(m string) {
	if m == "" {
		m = "cli"
	}
	modeLabel.Store(m)
}

func getMode() string {
	if v := modeLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "cli"
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status", "mode"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status", "mode"},
	)

	rasterOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raster_ops_total",
			Help: "Raster operations by result code.",
		},
		[]string{"op", "code", "mode"},
	)

	rasterOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "raster_op_duration_seconds",
			Help:    "Wall time of raster operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), // 1ms to ~4m
		},
		[]string{"op", "mode"},
	)

	rasterCellsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raster_cells_written_total",
			Help: "Cells written to output rasters.",
		},
		[]string{"op"},
	)

	metaCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "metacache_results_total",
			Help: "Raster metadata cache lookups by tier and outcome.",
		},
		[]string{"tier", "outcome"},
	)

	cacheOpDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Latency of Redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op", "result"},
	)

	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "raster_events_total",
			Help: "Raster-written events by direction and outcome.",
		},
		[]string{"direction", "outcome"},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	m := getMode()
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st, m).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st, m).Observe(durationSeconds)
}

// ObserveOp records one finished raster operation. code is the result code
// name, "ok" on success.
func ObserveOp(op, code string, durationSeconds float64) {
	m := getMode()
	rasterOpsTotal.WithLabelValues(op, code, m).Inc()
	rasterOpDurationSeconds.WithLabelValues(op, m).Observe(durationSeconds)
}

func AddCellsWritten(op string, n int) {
	if n <= 0 {
		return
	}
	rasterCellsTotal.WithLabelValues(op).Add(float64(n))
}

// IncMetaCache counts a metadata cache lookup. outcome is hit, miss, stale or
// error.
func IncMetaCache(tier, outcome string) {
	metaCacheResults.WithLabelValues(tier, outcome).Inc()
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	res := "ok"
	if err != nil {
		res = "error"
	}
	cacheOpDurationSeconds.WithLabelValues(op, res).Observe(durationSeconds)
}

// IncEvent counts a raster event. direction is publish or consume.
func IncEvent(direction, outcome string) {
	eventsTotal.WithLabelValues(direction, outcome).Inc()
}
