// Package api wires the HTTP routes: the JSON and PNG photograph endpoints,
// the frame stream, probes, metrics and the embedded viewer.
package api

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dickie-roper/rolling-shutter/internal/auth"
	"github.com/dickie-roper/rolling-shutter/internal/cache"
	"github.com/dickie-roper/rolling-shutter/internal/health"
	"github.com/dickie-roper/rolling-shutter/internal/httputil"
	"github.com/dickie-roper/rolling-shutter/internal/metrics"
	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

// PhotoSource serves assembled photographs, normally the photo cache.
type PhotoSource interface {
	GetOrAssemble(ctx context.Context, cfg scene.Config) (*photo.Result, error)
	Stats() cache.CacheStats
}

// Config holds API configuration loaded from environment variables.
type Config struct {
	Addr       string
	MaxSteps   int  // Largest accepted steps parameter (default: 20000).
	TrustProxy bool // Read client IP from proxy headers when logging.
}

// Deps are the collaborators the routes are served from.
type Deps struct {
	Photos PhotoSource
	Stream http.HandlerFunc // GET /api/v1/stream/frames
	Ready  *health.Checker
	Web    fs.FS // index.html, app.js, styles.css
	Auth   auth.Config
}

// Server holds the HTTP server and its dependencies.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a configured HTTP server.
func NewServer(cfg Config, deps Deps, logger *slog.Logger) *Server {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 20000
	}
	h := &handlers{
		photos:   deps.Photos,
		maxSteps: cfg.MaxSteps,
		logger:   logger,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", health.Healthz)
	if deps.Ready != nil {
		mux.HandleFunc("GET /readyz", deps.Ready.Readyz)
	}
	mux.Handle("GET /metrics", metrics.Handler())

	mux.HandleFunc("GET /api/v1/timeline", h.timeline)
	mux.HandleFunc("GET /api/v1/photograph", h.photograph)
	mux.HandleFunc("GET /api/v1/photograph.png", h.photographPNG)
	mux.HandleFunc("GET /api/v1/cache/stats", h.cacheStats)
	if deps.Stream != nil {
		mux.HandleFunc("GET /api/v1/stream/frames", deps.Stream)
	}

	if deps.Web != nil {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(deps.Web)))
		mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
			http.ServeFileFS(w, r, deps.Web, "index.html")
		})
	}

	// Build middleware chain: metrics -> logging -> auth -> mux.
	var handler http.Handler = mux
	handler = auth.Middleware(deps.Auth)(handler)
	handler = loggingMiddleware(logger, cfg.TrustProxy)(handler)
	handler = metrics.Middleware(handler)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger: logger,
	}
}

// HTTPServer returns the underlying *http.Server for external control (e.g. shutdown).
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Handler returns the fully wrapped root handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// probePath returns true for health/readiness probe paths that should not log at INFO.
func probePath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics"
}

// statusRecorder captures the status code. It passes Flush through so the
// frame stream still works behind the logger.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

func loggingMiddleware(logger *slog.Logger, trustProxy bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sr := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(sr, r)

			duration := time.Since(start)
			level := slog.LevelInfo
			if probePath(r.URL.Path) {
				level = slog.LevelDebug
			}

			logger.Log(r.Context(), level, "request",
				"component", "api",
				"method", r.Method,
				"path", r.URL.Path,
				"status", strconv.Itoa(sr.statusCode),
				"duration_ms", duration.Milliseconds(),
				"remote_ip", httputil.ClientIP(r, trustProxy),
			)
		})
	}
}
