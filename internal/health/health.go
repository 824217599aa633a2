// Package health serves liveness and readiness probes.
package health

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"
)

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Probe reports whether a dependency can serve requests.
type Probe func(ctx context.Context) error

// Checker answers readiness. It is not ready until MarkReady is called
// (typically after cache warmup) and then only while the probe passes.
type Checker struct {
	ready   atomic.Bool
	probe   Probe
	timeout time.Duration
}

// NewChecker creates a checker. probe may be nil.
func NewChecker(probe Probe, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Checker{probe: probe, timeout: timeout}
}

// MarkReady flips the checker into the ready state.
func (c *Checker) MarkReady() {
	c.ready.Store(true)
}

// Readyz returns 200 "ready\n" or 503 with the reason.
func (c *Checker) Readyz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")

	if !c.ready.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("starting\n"))
		return
	}

	if c.probe != nil {
		ctx, cancel := context.WithTimeout(r.Context(), c.timeout)
		defer cancel()
		if err := c.probe(ctx); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("not ready: " + err.Error() + "\n"))
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready\n"))
}
