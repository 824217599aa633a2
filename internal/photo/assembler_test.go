package photo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dickie-roper/rolling-shutter/internal/scene"
	"github.com/dickie-roper/rolling-shutter/internal/shutter"
	"github.com/dickie-roper/rolling-shutter/internal/solver"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func TestInsideDisc(t *testing.T) {
	tests := []struct {
		name       string
		coordinate float64
		position   float64
		want       bool
	}{
		{"inside near rim", 0.99, 0.1, true},
		{"on rim excluded", 1.0, 0, false},
		{"on rim vertical", 0, -1, false},
		{"origin", 0, 0, true},
		{"outside", 0.8, 0.8, false},
		{"positive infinity", math.Inf(1), 0.5, false},
		{"negative infinity", math.Inf(-1), 0, false},
		{"nan", math.NaN(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, InsideDisc(tt.coordinate, tt.position))
		})
	}
}

func TestAssemble_FiveStepScenario(t *testing.T) {
	a := NewAssembler(Config{Workers: 2}, testLogger())
	cfg := scene.Config{
		Steps:           5,
		ShutterDuration: 1,
		FrequencyHz:     1,
		Blades:          []scene.Blade{{Phase: 0}},
	}

	res, err := a.Assemble(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Photographs, 1)
	require.Len(t, res.Series, 1)
	require.Len(t, res.Series[0].Coordinates, 5)

	// Sample 0 is the parallel blade (+Inf), sample 4 is a huge finite value.
	assert.Equal(t, 1, res.Degenerate)

	ph := res.Photographs[0]
	require.Len(t, ph.Points, 3)
	for i, p := range ph.Points {
		assert.Equal(t, i+1, p.Index)
		assert.Equal(t, res.Timeline.At(p.Index).Position, p.Y())
		assert.InDelta(t, 0, p.X(), 1e-15)
	}
	assert.Equal(t, 3, res.PointCount())
}

func TestAssemble_ThreeBlades(t *testing.T) {
	a := NewAssembler(Config{Workers: 4}, testLogger())
	cfg := scene.Config{
		Steps:           700,
		ShutterDuration: 1,
		FrequencyHz:     1.5,
		Blades:          scene.EvenBlades(3),
	}

	res, err := a.Assemble(context.Background(), cfg)
	require.NoError(t, err)
	require.Len(t, res.Photographs, 3)

	for i, ph := range res.Photographs {
		assert.Equal(t, i, ph.BladeIndex)
		assert.Equal(t, cfg.Blades[i], ph.Blade)
		assert.LessOrEqual(t, len(ph.Points), 700)
		assert.NotEmpty(t, ph.Points, "blade %d", i)

		for j, p := range ph.Points {
			assert.True(t, InsideDisc(p.X(), p.Y()))
			if j > 0 {
				assert.Greater(t, p.Index, ph.Points[j-1].Index)
			}
		}
	}
}

func TestAssemble_MatchesSolver(t *testing.T) {
	cfg := scene.Config{
		Steps:           64,
		ShutterDuration: 0.8,
		FrequencyHz:     2.3,
		Blades:          scene.BladesFromPhases([]float64{0.1, 1.7, 3.9, 5.2}),
	}

	res, err := NewAssembler(Config{Workers: 3}, testLogger()).Assemble(context.Background(), cfg)
	require.NoError(t, err)

	for b, s := range res.Series {
		assert.Equal(t, cfg.Blades[b], s.Blade)
		for i, c := range s.Coordinates {
			want := solver.RecordedCoordinate(res.Timeline.At(i), cfg.FrequencyHz, cfg.Blades[b].Phase)
			assert.Equal(t, want, c, "blade %d sample %d", b, i)
		}
	}
}

func TestAssemble_WorkerCountDoesNotChangeResult(t *testing.T) {
	cfg := scene.Default()
	cfg.Blades = scene.EvenBlades(7)

	one, err := NewAssembler(Config{Workers: 1}, testLogger()).Assemble(context.Background(), cfg)
	require.NoError(t, err)
	many, err := NewAssembler(Config{Workers: 16}, testLogger()).Assemble(context.Background(), cfg)
	require.NoError(t, err)

	assert.Equal(t, one.Photographs, many.Photographs)
	assert.Equal(t, one.Degenerate, many.Degenerate)
}

func TestAssemble_ConfigError(t *testing.T) {
	a := NewAssembler(Config{Workers: 1}, testLogger())

	cfg := scene.Default()
	cfg.Steps = 1
	res, err := a.Assemble(context.Background(), cfg)
	assert.Nil(t, res)
	assert.True(t, scene.IsConfigError(err))

	cfg = scene.Default()
	cfg.FrequencyHz = math.NaN()
	_, err = a.Assemble(context.Background(), cfg)
	assert.True(t, scene.IsConfigError(err))
}

func TestAssemble_Cancelled(t *testing.T) {
	a := NewAssembler(Config{Workers: 2}, testLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := a.Assemble(ctx, scene.Default())
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDevelop_CountsDegenerate(t *testing.T) {
	tl, err := shutter.Build(4, 1)
	require.NoError(t, err)

	s := Series{
		Blade:       scene.Blade{Phase: 0},
		Coordinates: []float64{math.Inf(1), 0.2, math.NaN(), 5},
	}
	ph, degenerate := Develop(2, s, tl)
	assert.Equal(t, 2, degenerate)
	assert.Equal(t, 2, ph.BladeIndex)
	require.Len(t, ph.Points, 1)
	assert.Equal(t, 1, ph.Points[0].Index)
	assert.Equal(t, 0.2, ph.Points[0].Coordinate)
}

func TestWorkerPool_Empty(t *testing.T) {
	tl, err := shutter.Build(3, 1)
	require.NoError(t, err)
	pool := NewWorkerPool(0, testLogger())
	assert.Nil(t, pool.SolveBatch(context.Background(), tl, 1, nil))
}

func BenchmarkAssemble(b *testing.B) {
	a := NewAssembler(Config{Workers: 4}, testLogger())
	cfg := scene.Default()
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := a.Assemble(ctx, cfg); err != nil {
			b.Fatal(err)
		}
	}
}
