package photo

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dickie-roper/rolling-shutter/internal/scene"
	"github.com/dickie-roper/rolling-shutter/internal/shutter"
	"github.com/dickie-roper/rolling-shutter/internal/solver"
)

// solveJob is a unit of work for the worker pool: one blade over the whole
// timeline.
type solveJob struct {
	index int
	blade scene.Blade
}

// solveResult is the output of a single blade.
type solveResult struct {
	index  int
	series Series
}

// WorkerPool manages a fixed number of goroutines solving blades in parallel.
// Blades share nothing but the read-only timeline.
type WorkerPool struct {
	workers int
	logger  *slog.Logger
}

// NewWorkerPool creates a worker pool with the given number of workers.
// Values below 1 are treated as 1.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		workers: workers,
		logger:  logger,
	}
}

// SolveBatch computes the coordinate of every blade at every sample of tl.
// The returned slice is in blade order. Slots for blades that were not
// solved before ctx was cancelled have a nil Coordinates slice.
func (wp *WorkerPool) SolveBatch(ctx context.Context, tl shutter.Timeline, freqHz float64, blades []scene.Blade) []Series {
	if len(blades) == 0 {
		return nil
	}

	workers := wp.workers
	if workers > len(blades) {
		workers = len(blades)
	}

	jobs := make(chan solveJob, workers*2)
	results := make(chan solveResult, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				result := solveSingle(tl, freqHz, job)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, b := range blades {
			select {
			case jobs <- solveJob{index: i, blade: b}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	series := make([]Series, len(blades))
	for i, b := range blades {
		series[i].Blade = b
	}
	var solved int
	for result := range results {
		series[result.index] = result.series
		solved++
	}

	if solved < len(blades) {
		wp.logger.Debug("solve batch incomplete",
			"solved", solved,
			"blades", len(blades),
			"error", ctx.Err(),
		)
	}

	return series
}

// solveSingle runs the intersection solver for one blade over the timeline.
func solveSingle(tl shutter.Timeline, freqHz float64, job solveJob) solveResult {
	coords := make([]float64, tl.Len())
	for i := range coords {
		coords[i] = solver.RecordedCoordinate(tl.At(i), freqHz, job.blade.Phase)
	}
	return solveResult{
		index: job.index,
		series: Series{
			Blade:       job.blade,
			Coordinates: coords,
		},
	}
}
