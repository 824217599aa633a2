package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollshutter_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rollshutter_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	assemblyDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "rollshutter_assembly_duration_seconds",
			Help:    "Time to assemble one photograph set.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	assembliesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollshutter_assemblies_total",
		Help: "Number of completed photograph assemblies.",
	})

	bladesSolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollshutter_blades_solved_total",
		Help: "Number of blades run through the intersection solver.",
	})

	pointsRetainedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollshutter_points_retained_total",
		Help: "Number of points that passed the disc filter.",
	})

	degeneratePointsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollshutter_degenerate_points_total",
		Help: "Number of samples where a blade was parallel to the shutter line.",
	})

	assemblyWorkers = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rollshutter_assembly_workers",
		Help: "Configured size of the solver worker pool.",
	})

	cacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollshutter_cache_hits_total",
		Help: "Photograph cache hits.",
	})

	cacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollshutter_cache_misses_total",
		Help: "Photograph cache misses.",
	})

	cacheEvictionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollshutter_cache_evictions_total",
		Help: "Photograph cache entries evicted.",
	})

	cacheEntries = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rollshutter_cache_entries",
		Help: "Photograph cache entry count.",
	})

	streamConnectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollshutter_stream_connections_total",
			Help: "Animation stream connect/disconnect events.",
		},
		[]string{"event"},
	)

	streamsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "rollshutter_streams_active",
		Help: "Animation streams currently open.",
	})

	streamMessagesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollshutter_stream_messages_total",
		Help: "SSE messages sent.",
	})

	streamBytesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rollshutter_stream_bytes_total",
		Help: "SSE bytes sent.",
	})

	streamErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollshutter_stream_errors_total",
			Help: "Animation stream errors by reason.",
		},
		[]string{"reason"},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpDurationSeconds,
		assemblyDurationSeconds,
		assembliesTotal,
		bladesSolvedTotal,
		pointsRetainedTotal,
		degeneratePointsTotal,
		assemblyWorkers,
		cacheHitsTotal,
		cacheMissesTotal,
		cacheEvictionsTotal,
		cacheEntries,
		streamConnectionsTotal,
		streamsActive,
		streamMessagesTotal,
		streamBytesTotal,
		streamErrorsTotal,
	)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordAssembly records one completed photograph assembly.
func RecordAssembly(d time.Duration, blades, retained, degenerate int) {
	assemblyDurationSeconds.Observe(d.Seconds())
	assembliesTotal.Inc()
	bladesSolvedTotal.Add(float64(blades))
	pointsRetainedTotal.Add(float64(retained))
	degeneratePointsTotal.Add(float64(degenerate))
}

// SetAssemblyWorkers publishes the worker pool size.
func SetAssemblyWorkers(n int) { assemblyWorkers.Set(float64(n)) }

func IncCacheHits()           { cacheHitsTotal.Inc() }
func IncCacheMisses()         { cacheMissesTotal.Inc() }
func AddCacheEvictions(n int) { cacheEvictionsTotal.Add(float64(n)) }
func SetCacheEntries(n int)   { cacheEntries.Set(float64(n)) }

func IncStreamConnections(event string) { streamConnectionsTotal.WithLabelValues(event).Inc() }
func IncStreamsActive()                 { streamsActive.Inc() }
func DecStreamsActive()                 { streamsActive.Dec() }
func IncStreamMessages()                { streamMessagesTotal.Inc() }
func AddStreamBytes(n int64)            { streamBytesTotal.Add(float64(n)) }
func IncStreamErrors(reason string)     { streamErrorsTotal.WithLabelValues(reason).Inc() }

// knownRoutes are recorded with their own path label.
var knownRoutes = map[string]bool{
	"/":                      true,
	"/healthz":               true,
	"/readyz":                true,
	"/metrics":               true,
	"/api/v1/timeline":       true,
	"/api/v1/photograph":     true,
	"/api/v1/photograph.png": true,
	"/api/v1/cache/stats":    true,
	"/api/v1/stream/frames":  true,
	"/static/app.js":         true,
	"/static/styles.css":     true,
}

// normalizeRoute maps a request path to a bounded set of labels so bots
// probing random paths cannot blow up metric cardinality.
func normalizeRoute(path string) string {
	if knownRoutes[path] {
		return path
	}
	if strings.HasPrefix(path, "/static/") {
		return "/static/{file}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush passes through to the underlying writer so SSE keeps working behind
// the middleware.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}
