package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNormalizeRoute(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		// Known exact routes.
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/", "/"},
		{"/api/v1/timeline", "/api/v1/timeline"},
		{"/api/v1/photograph", "/api/v1/photograph"},
		{"/api/v1/photograph.png", "/api/v1/photograph.png"},
		{"/api/v1/cache/stats", "/api/v1/cache/stats"},
		{"/api/v1/stream/frames", "/api/v1/stream/frames"},

		// Static assets collapse to one label.
		{"/static/app.js", "/static/app.js"},
		{"/static/logo.svg", "/static/{file}"},
		{"/static/../../etc/passwd", "/static/{file}"},

		// Unknown/bot paths collapse to "other".
		{"/wp-admin", "other"},
		{"/robots.txt", "other"},
		{"/.env", "other"},
		{"/api/v2/photograph", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := normalizeRoute(tt.path)
			if got != tt.want {
				t.Errorf("normalizeRoute(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// TestMetricsCardinality verifies that 100 unique bot paths produce
// exactly 1 distinct path label, not 100.
func TestMetricsCardinality(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		label := normalizeRoute("/probe/" + string(rune('a'+i%26)) + string(rune('0'+i/26)))
		seen[label] = true
	}
	if len(seen) != 1 {
		t.Errorf("expected 1 unique label for unknown paths, got %d: %v", len(seen), seen)
	}
}

func TestMiddlewarePreservesStatusAndFlush(t *testing.T) {
	var flushed bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
			flushed = true
		}
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest("GET", "/healthz", nil))

	if w.Code != http.StatusTeapot {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTeapot)
	}
	if !flushed || !w.Flushed {
		t.Error("expected middleware writer to support Flush")
	}
}

func TestHandlerExposesAssemblyMetrics(t *testing.T) {
	RecordAssembly(3*time.Millisecond, 3, 100, 2)

	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))

	body := w.Body.String()
	for _, name := range []string{
		"rollshutter_assemblies_total",
		"rollshutter_points_retained_total",
		"rollshutter_degenerate_points_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}
