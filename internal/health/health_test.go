package health

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHealthz(t *testing.T) {
	w := httptest.NewRecorder()
	Healthz(w, httptest.NewRequest("GET", "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok\n", w.Body.String())
}

func TestReadyz(t *testing.T) {
	var probeErr error
	c := NewChecker(func(context.Context) error { return probeErr }, time.Second)

	get := func() *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		c.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
		return w
	}

	w := get()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "starting\n", w.Body.String())

	c.MarkReady()
	w = get()
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ready\n", w.Body.String())

	probeErr = errors.New("solver self-test failed")
	w = get()
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "solver self-test failed")
}

func TestReadyz_ProbeTimeout(t *testing.T) {
	c := NewChecker(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, 10*time.Millisecond)
	c.MarkReady()

	w := httptest.NewRecorder()
	c.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestReadyz_NilProbe(t *testing.T) {
	c := NewChecker(nil, 0)
	c.MarkReady()

	w := httptest.NewRecorder()
	c.Readyz(w, httptest.NewRequest("GET", "/readyz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
