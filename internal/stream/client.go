package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/dickie-roper/rolling-shutter/internal/metrics"
)

const writeTimeout = 30 * time.Second

// client writes SSE messages to one connection.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	session string
	ip      string
	logger  *slog.Logger
	shaper  *rate.Limiter // bytes per second; nil means unlimited

	messagesSent int64
	bytesSent    int64
}

// newShaper returns a byte-rate limiter for bytesPerSecond, or nil when the
// limit is disabled. The burst allows one full second of traffic.
func newShaper(bytesPerSecond int) *rate.Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)
}

// sendJSON marshals v and writes it as "data: {json}\n\n".
func (c *client) sendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	return c.sendRaw(ctx, data)
}

func (c *client) sendRaw(ctx context.Context, data []byte) error {
	msg := make([]byte, 0, len(data)+8)
	msg = append(msg, "data: "...)
	msg = append(msg, data...)
	msg = append(msg, '\n', '\n')

	if err := c.wait(ctx, len(msg)); err != nil {
		return err
	}

	n, err := c.write(msg)
	if err != nil {
		return err
	}

	c.messagesSent++
	metrics.IncStreamMessages()
	metrics.AddStreamBytes(int64(n))
	return nil
}

// sendRetry tells the browser how long to wait before reconnecting.
func (c *client) sendRetry(ms int) error {
	_, err := c.write(fmt.Appendf(nil, "retry: %d\n\n", ms))
	return err
}

// sendKeepalive writes an SSE comment line.
func (c *client) sendKeepalive() error {
	n, err := c.write([]byte(":\n\n"))
	if err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	metrics.AddStreamBytes(int64(n))
	return nil
}

func (c *client) write(b []byte) (int, error) {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	n, err := c.w.Write(b)
	if err != nil {
		return n, fmt.Errorf("write: %w", err)
	}
	c.flusher.Flush()
	c.bytesSent += int64(n)
	return n, nil
}

// wait blocks until the shaper admits n bytes. Messages larger than the
// burst are admitted in burst-sized chunks.
func (c *client) wait(ctx context.Context, n int) error {
	if c.shaper == nil {
		return nil
	}
	burst := c.shaper.Burst()
	for n > 0 {
		chunk := min(n, burst)
		if err := c.shaper.WaitN(ctx, chunk); err != nil {
			return fmt.Errorf("bandwidth wait: %w", err)
		}
		n -= chunk
	}
	return nil
}
