// Package photo assembles rolling-shutter photographs: it builds the shutter
// timeline once, solves every blade against it, and keeps the points that
// land inside the unit disc.
package photo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dickie-roper/rolling-shutter/internal/metrics"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
	"github.com/dickie-roper/rolling-shutter/internal/shutter"
)

// Assembler orchestrates photograph assembly.
type Assembler struct {
	pool   *WorkerPool
	config Config
	logger *slog.Logger
}

// NewAssembler creates a new assembly orchestrator.
func NewAssembler(config Config, logger *slog.Logger) *Assembler {
	pool := NewWorkerPool(config.Workers, logger)
	return &Assembler{
		pool:   pool,
		config: config,
		logger: logger,
	}
}

// Assemble produces one photograph per blade of cfg.
//
// Invalid parameters are rejected with a *scene.ConfigError before any work
// starts. If ctx is cancelled mid-way the partial result is discarded and
// ctx.Err() is returned.
func (a *Assembler) Assemble(ctx context.Context, cfg scene.Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tl, err := shutter.Build(cfg.Steps, cfg.ShutterDuration)
	if err != nil {
		return nil, fmt.Errorf("building timeline: %w", err)
	}

	a.logger.Debug("assembling",
		"steps", cfg.Steps,
		"duration_seconds", cfg.ShutterDuration,
		"frequency_hz", cfg.FrequencyHz,
		"blades", len(cfg.Blades),
		"workers", a.config.Workers,
	)

	start := time.Now()
	series := a.pool.SolveBatch(ctx, tl, cfg.FrequencyHz, cfg.Blades)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &Result{
		Config:      cfg,
		Timeline:    tl,
		Series:      series,
		Photographs: make([]Photograph, len(series)),
	}
	for i, s := range series {
		ph, degenerate := Develop(i, s, tl)
		result.Photographs[i] = ph
		result.Degenerate += degenerate
	}
	result.Duration = time.Since(start)

	metrics.RecordAssembly(result.Duration, len(cfg.Blades), result.PointCount(), result.Degenerate)

	a.logger.Debug("assembly complete",
		"points", result.PointCount(),
		"degenerate", result.Degenerate,
		"duration_ms", result.Duration.Milliseconds(),
	)

	return result, nil
}
