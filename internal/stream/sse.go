// Package stream replays rolling-shutter animations over Server-Sent Events.
// Clients connect via GET /api/v1/stream/frames and receive one message per
// animation frame until the shutter has crossed the whole image.
//
// SSE message format. The first message is always metadata:
//
//	data: {"type":"metadata","session":"...","steps":200,"frames":200,...}\n\n
//
// then one message per frame. Only points exposed since the previous frame
// are sent; the client accumulates them:
//
//	data: {"type":"frame","n":3,"i":3,"t":0.015,"shutter":0.97,"blades":[[x,y,x,y],...],"new":[[[x,y]],...]}\n\n
//
// and finally:
//
//	data: {"type":"done","frames":200,"points":412}\n\n
//
// Keep-alive comments (:\n\n) are sent when no frame has gone out for
// KeepaliveInterval.
package stream

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/dickie-roper/rolling-shutter/internal/animation"
	"github.com/dickie-roper/rolling-shutter/internal/httputil"
	"github.com/dickie-roper/rolling-shutter/internal/metrics"
	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

// Config holds streaming configuration loaded from environment variables.
type Config struct {
	MaxConcurrentPerIP int           // Max concurrent streams per IP (default: 4).
	MaxConcurrent      int           // Max concurrent streams overall (default: 256).
	BandwidthLimit     int           // Bytes per second per stream, 0 disables (default: 1048576).
	KeepaliveInterval  time.Duration // Keep-alive ping interval (default: 15s).
	FrameInterval      time.Duration // Default time between frames (default: 40ms).
	MaxSteps           int           // Largest accepted steps parameter (default: 5000).
	TrustProxy         bool          // Read client IP from proxy headers.
}

// Source produces assembled photographs, typically through the cache.
type Source interface {
	GetOrAssemble(ctx context.Context, cfg scene.Config) (*photo.Result, error)
}

// Handler manages SSE streaming connections.
type Handler struct {
	source  Source
	config  Config
	limiter *streamLimiter
	logger  *slog.Logger
}

// NewHandler creates a new streaming handler.
func NewHandler(source Source, config Config, logger *slog.Logger) *Handler {
	if config.KeepaliveInterval <= 0 {
		config.KeepaliveInterval = 15 * time.Second
	}
	if config.FrameInterval <= 0 {
		config.FrameInterval = 40 * time.Millisecond
	}
	if config.MaxSteps <= 0 {
		config.MaxSteps = 5000
	}
	return &Handler{
		source:  source,
		config:  config,
		limiter: newStreamLimiter(config.MaxConcurrentPerIP, config.MaxConcurrent),
		logger:  logger,
	}
}

// Active returns the number of open streams.
func (h *Handler) Active() int {
	return h.limiter.active()
}

// request is a parsed stream query.
type request struct {
	scene    scene.Config
	stride   int
	interval time.Duration
}

// parseRequest reads the scene parameters plus stride (samples per frame,
// 1-1000) and interval_ms (1-10000).
func (h *Handler) parseRequest(r *http.Request) (request, error) {
	q := r.URL.Query()
	cfg, err := scene.FromQuery(q, scene.DefaultAnimation())
	if err != nil {
		return request{}, err
	}
	if err := cfg.Validate(); err != nil {
		return request{}, err
	}
	if cfg.Steps > h.config.MaxSteps {
		return request{}, &scene.ConfigError{Field: "steps", Value: cfg.Steps, Reason: "exceeds limit of " + strconv.Itoa(h.config.MaxSteps)}
	}

	req := request{scene: cfg, stride: 1, interval: h.config.FrameInterval}

	if v := q.Get("stride"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			return request{}, &scene.ConfigError{Field: "stride", Value: v, Reason: "must be an integer between 1 and 1000"}
		}
		req.stride = n
	}

	if v := q.Get("interval_ms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 10000 {
			return request{}, &scene.ConfigError{Field: "interval_ms", Value: v, Reason: "must be an integer between 1 and 10000"}
		}
		req.interval = time.Duration(n) * time.Millisecond
	}

	return req, nil
}

// HandleFrames serves the SSE animation stream.
// GET /api/v1/stream/frames?steps=200&frequency=1&blades=3&stride=1&interval_ms=40
func (h *Handler) HandleFrames(w http.ResponseWriter, r *http.Request) {
	req, err := h.parseRequest(r)
	if err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err)
		return
	}

	// Rate limiting: enforce concurrent stream limits.
	ip := httputil.ClientIP(r, h.config.TrustProxy)
	if limit := h.limiter.acquire(ip); limit != "" {
		metrics.IncStreamErrors("rate_limit")
		h.logger.Warn("stream rate limit exceeded",
			"remote_ip", ip,
			"limit", limit,
			"current_count", h.limiter.count(ip),
		)
		w.Header().Set("Retry-After", "30")
		httputil.WriteMessage(w, http.StatusTooManyRequests, "too many concurrent streams")
		return
	}
	defer h.limiter.release(ip)

	ctx := r.Context()

	// Assemble before committing to an event stream so failures still get a
	// proper status code.
	res, err := h.source.GetOrAssemble(ctx, req.scene)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		metrics.IncStreamErrors("assembly")
		h.logger.Error("stream assembly failed", "remote_ip", ip, "error", err)
		status := http.StatusInternalServerError
		if scene.IsConfigError(err) {
			status = http.StatusBadRequest
		}
		httputil.WriteError(w, status, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.WriteMessage(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	session := uuid.NewString()
	metrics.IncStreamConnections("connect")
	metrics.IncStreamsActive()

	startTime := time.Now()
	h.logger.Info("stream connected",
		"session", session,
		"remote_ip", ip,
		"user_agent", r.Header.Get("User-Agent"),
		"steps", req.scene.Steps,
		"blades", len(req.scene.Blades),
		"stride", req.stride,
	)

	c := &client{
		w:       w,
		flusher: flusher,
		rc:      http.NewResponseController(w),
		session: session,
		ip:      ip,
		logger:  h.logger,
		shaper:  newShaper(h.config.BandwidthLimit),
	}

	defer func() {
		metrics.IncStreamConnections("disconnect")
		metrics.DecStreamsActive()
		h.logger.Info("stream disconnected",
			"session", session,
			"remote_ip", ip,
			"messages", c.messagesSent,
			"bytes", c.bytesSent,
			"duration_seconds", int(time.Since(startTime).Seconds()),
		)
	}()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering.
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	// Clear the server's WriteTimeout for this long-lived response.
	if err := c.rc.SetWriteDeadline(time.Time{}); err != nil {
		h.logger.Debug("could not clear write deadline", "error", err)
	}

	// Jittered retry interval (3-7s) spreads reconnects after a restart.
	if err := c.sendRetry(3000 + rand.IntN(4000)); err != nil {
		metrics.IncStreamErrors("send_error")
		return
	}

	if err := h.play(ctx, c, res, req); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}
		metrics.IncStreamErrors("send_error")
		h.logger.Warn("stream send error", "session", session, "remote_ip", ip, "error", err)
	}
}

// play sends the metadata, every frame and the done message.
func (h *Handler) play(ctx context.Context, c *client, res *photo.Result, req request) error {
	player := animation.NewPlayer(res, req.stride)

	if err := c.sendJSON(ctx, buildMetadataMessage(c.session, res, req, player.Len())); err != nil {
		return err
	}

	ticker := time.NewTicker(req.interval)
	defer ticker.Stop()

	keepalive := time.NewTicker(h.config.KeepaliveInterval)
	defer keepalive.Stop()

	sent := make([]int, len(res.Photographs))
	var frames int
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			f, ok := player.Next()
			if !ok {
				return c.sendJSON(ctx, doneMessage{
					Type:   "done",
					Frames: frames,
					Points: res.PointCount(),
				})
			}
			if err := c.sendJSON(ctx, buildFrameMessage(f, sent)); err != nil {
				return err
			}
			frames++
			keepalive.Reset(h.config.KeepaliveInterval)

		case <-keepalive.C:
			if err := c.sendKeepalive(); err != nil {
				return err
			}
		}
	}
}

func buildMetadataMessage(session string, res *photo.Result, req request, frames int) metadataMessage {
	return metadataMessage{
		Type:       "metadata",
		Session:    session,
		Steps:      res.Config.Steps,
		Duration:   res.Config.ShutterDuration,
		Frequency:  res.Config.FrequencyHz,
		Phases:     res.Config.Phases(),
		Stride:     req.stride,
		Frames:     frames,
		IntervalMs: int(req.interval / time.Millisecond),
		Retained:   res.PointCount(),
		Degenerate: res.Degenerate,
	}
}

// buildFrameMessage formats f, including only the points each blade exposed
// since the previous frame. sent holds the per-blade count already sent and
// is updated.
func buildFrameMessage(f animation.Frame, sent []int) frameMessage {
	msg := frameMessage{
		Type:    "frame",
		N:       f.Number,
		Index:   f.Index,
		T:       f.Elapsed,
		Shutter: f.ShutterPosition,
		Blades:  make([][4]float64, len(f.Blades)),
		New:     make([][][2]float64, len(f.Exposed)),
		Final:   f.Final,
	}
	for i, seg := range f.Blades {
		msg.Blades[i] = [4]float64{seg.Tip.X, seg.Tip.Y, seg.Tail.X, seg.Tail.Y}
	}
	for i, pts := range f.Exposed {
		fresh := pts[sent[i]:]
		msg.New[i] = make([][2]float64, len(fresh))
		for j, pt := range fresh {
			msg.New[i][j] = [2]float64{pt.X(), pt.Y()}
		}
		sent[i] = len(pts)
	}
	return msg
}

// SSE message payload types.

type metadataMessage struct {
	Type       string    `json:"type"`
	Session    string    `json:"session"`
	Steps      int       `json:"steps"`
	Duration   float64   `json:"duration"`
	Frequency  float64   `json:"frequency"`
	Phases     []float64 `json:"phases"`
	Stride     int       `json:"stride"`
	Frames     int       `json:"frames"`
	IntervalMs int       `json:"interval_ms"`
	Retained   int       `json:"retained"`
	Degenerate int       `json:"degenerate"`
}

type frameMessage struct {
	Type    string         `json:"type"`
	N       int            `json:"n"`
	Index   int            `json:"i"`
	T       float64        `json:"t"`
	Shutter float64        `json:"shutter"`
	Blades  [][4]float64   `json:"blades"`
	New     [][][2]float64 `json:"new"`
	Final   bool           `json:"final,omitempty"`
}

type doneMessage struct {
	Type   string `json:"type"`
	Frames int    `json:"frames"`
	Points int    `json:"points"`
}
