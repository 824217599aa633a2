// Package shutter builds the discretised sweep of a rolling shutter across
// the frame.
//
// The shutter line starts at the top of the frame (position +1) at time 0 and
// reaches the bottom (position -1) when the exposure ends. Position and time
// are tied by a fixed affine map for the whole sweep:
//
//	position(t) = 1 - 2·t/duration
package shutter

import (
	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

// Sample is one instant of the sweep.
type Sample struct {
	Position float64 // vertical position of the shutter line, in [-1, 1]
	Elapsed  float64 // seconds since the exposure started, in [0, duration]
}

// Timeline is an ordered, read-only sequence of samples. Position strictly
// decreases and Elapsed strictly increases with the index.
type Timeline struct {
	samples  []Sample
	duration float64
}

// Build returns steps evenly spaced samples. The first sample is exactly
// (1, 0) and the last exactly (-1, duration).
func Build(steps int, duration float64) (Timeline, error) {
	if err := scene.ValidateSweep(steps, duration); err != nil {
		return Timeline{}, err
	}

	positions := linspace(1, -1, steps)
	times := linspace(0, duration, steps)

	samples := make([]Sample, steps)
	for i := range samples {
		samples[i] = Sample{Position: positions[i], Elapsed: times[i]}
	}
	return Timeline{samples: samples, duration: duration}, nil
}

// linspace returns n values from start to stop inclusive. The last value is
// pinned to stop so rounding never moves the endpoint.
func linspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// Len returns the number of samples.
func (tl Timeline) Len() int {
	return len(tl.samples)
}

// At returns sample i. It panics if i is out of range, like a slice index.
func (tl Timeline) At(i int) Sample {
	return tl.samples[i]
}

// Duration returns the exposure length in seconds.
func (tl Timeline) Duration() float64 {
	return tl.duration
}

// Samples returns a copy of the samples.
func (tl Timeline) Samples() []Sample {
	out := make([]Sample, len(tl.samples))
	copy(out, tl.samples)
	return out
}

// PositionAt maps an elapsed time onto the shutter line position using the
// sweep's affine map.
func (tl Timeline) PositionAt(elapsed float64) float64 {
	return 1 - 2*elapsed/tl.duration
}
