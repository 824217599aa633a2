package shutter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

func TestBuild_Shape(t *testing.T) {
	for _, n := range []int{2, 3, 5, 700, 1000} {
		for _, d := range []float64{0.01, 1, 3.7} {
			tl, err := Build(n, d)
			require.NoError(t, err)
			require.Equal(t, n, tl.Len())

			first, last := tl.At(0), tl.At(n-1)
			assert.Equal(t, Sample{Position: 1, Elapsed: 0}, first, "n=%d d=%v", n, d)
			assert.Equal(t, Sample{Position: -1, Elapsed: d}, last, "n=%d d=%v", n, d)

			for i := 1; i < n; i++ {
				prev, cur := tl.At(i-1), tl.At(i)
				assert.Less(t, cur.Position, prev.Position, "position not decreasing at %d", i)
				assert.Greater(t, cur.Elapsed, prev.Elapsed, "elapsed not increasing at %d", i)
			}
		}
	}
}

func TestBuild_FiveSteps(t *testing.T) {
	tl, err := Build(5, 1.0)
	require.NoError(t, err)

	wantPos := []float64{1, 0.5, 0, -0.5, -1}
	wantTime := []float64{0, 0.25, 0.5, 0.75, 1.0}
	for i := range wantPos {
		assert.Equal(t, wantPos[i], tl.At(i).Position)
		assert.Equal(t, wantTime[i], tl.At(i).Elapsed)
	}
}

func TestBuild_AffinePairing(t *testing.T) {
	tl, err := Build(37, 2.5)
	require.NoError(t, err)

	for i := 0; i < tl.Len(); i++ {
		s := tl.At(i)
		assert.InDelta(t, tl.PositionAt(s.Elapsed), s.Position, 1e-12, "sample %d", i)
	}
}

func TestBuild_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		steps    int
		duration float64
	}{
		{"zero steps", 0, 1},
		{"one step", 1, 1},
		{"negative steps", -3, 1},
		{"zero duration", 10, 0},
		{"negative duration", 10, -0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tl, err := Build(tt.steps, tt.duration)
			require.Error(t, err)
			assert.True(t, scene.IsConfigError(err))
			assert.Equal(t, 0, tl.Len())
		})
	}
}

func TestSamplesIsCopy(t *testing.T) {
	tl, err := Build(3, 1)
	require.NoError(t, err)

	s := tl.Samples()
	s[0].Position = 42
	assert.Equal(t, 1.0, tl.At(0).Position)
	assert.Equal(t, 1.0, tl.Duration())
}
