package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "canopyviz",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"method", "path"})

	httpResponseSize = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "canopyviz",
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 6),
	}, []string{"method", "path"})

	// Overpass ingestion. Errors are counted separately from empty
	// results so "fetch failed" and "no lines in this viewport" stay
	// distinguishable even though callers see the same empty collection.
	OverpassFetches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "overpass",
		Name:      "fetches_total",
		Help:      "Total Overpass queries issued",
	})

	OverpassFetchErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "overpass",
		Name:      "fetch_errors_total",
		Help:      "Total Overpass queries that degraded to an empty collection",
	}, []string{"reason"})

	OverpassFetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "canopyviz",
		Subsystem: "overpass",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of Overpass queries",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
	})

	OverpassWaysDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "overpass",
		Name:      "ways_dropped_total",
		Help:      "Total response elements dropped by the geometry filter",
	})

	// Viewport scheduling
	DebounceFired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "viewport",
		Name:      "debounce_fired_total",
		Help:      "Total debounce windows that reached ingestion",
	})

	DebounceSuperseded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "viewport",
		Name:      "debounce_superseded_total",
		Help:      "Total ingestion results discarded because a newer generation fired",
	})

	ZoomGateSkips = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "viewport",
		Name:      "zoom_gate_skips_total",
		Help:      "Total viewport changes answered empty below the minimum zoom",
	})

	// Proximity evaluation
	ProximityChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "proximity",
		Name:      "checks_total",
		Help:      "Total proximity checks by outcome",
	}, []string{"outcome"})

	FeaturesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "proximity",
		Name:      "features_skipped_total",
		Help:      "Total features skipped for degenerate geometry",
	})

	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "canopyviz",
		Subsystem: "ws",
		Name:      "active_connections",
		Help:      "Current number of active WebSocket connections",
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "cache",
		Name:      "hits_total",
		Help:      "Total cache hits",
	}, []string{"operation"})

	CacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "canopyviz",
		Subsystem: "cache",
		Name:      "misses_total",
		Help:      "Total cache misses",
	}, []string{"operation"})

	// Database pool metrics
	DBPoolConnsOpen = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "canopyviz",
		Subsystem: "db",
		Name:      "pool_conns_open",
		Help:      "Total connections open in the database pool",
	})

	DBPoolConnsAcquired = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "canopyviz",
		Subsystem: "db",
		Name:      "pool_conns_acquired",
		Help:      "Connections currently acquired from the database pool",
	})

	DBPoolConnsIdle = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "canopyviz",
		Subsystem: "db",
		Name:      "pool_conns_idle",
		Help:      "Idle connections in the database pool",
	})
)

// Middleware records request metrics.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Response().StatusCode())
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		method := c.Method()

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)
		httpResponseSize.WithLabelValues(method, path).Observe(float64(len(c.Response().Body())))

		return err
	}
}

// Handler returns a Fiber handler serving the Prometheus /metrics endpoint.
func Handler() fiber.Handler {
	handler := promhttp.Handler()
	return func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(handler)(c.Context())
		return nil
	}
}

// UpdateDBPoolMetrics updates database pool metrics from pgx pool stats.
// Reflection through a local interface keeps this package free of a
// pgxpool import.
func UpdateDBPoolMetrics(stat interface{}) {
	type poolStat interface {
		AcquiredConns() int32
		IdleConns() int32
		TotalConns() int32
	}

	if s, ok := stat.(poolStat); ok {
		DBPoolConnsAcquired.Set(float64(s.AcquiredConns()))
		DBPoolConnsIdle.Set(float64(s.IdleConns()))
		DBPoolConnsOpen.Set(float64(s.TotalConns()))
	}
}
