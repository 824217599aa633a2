// Package solver finds where a rotating blade crosses the shutter line.
//
// The blade is an infinite line through the origin at the instantaneous
// rotation angle, so it covers both the tip and the opposite tip. The
// shutter is the horizontal line y = position. Their intersection has
//
//	x = position / gradient,  gradient = p.y / p.x
//
// where p is the blade position at the sample's elapsed time.
//
// When the blade is parallel to the shutter (p.y == 0) the gradient is zero
// and the intersection is undefined. The result is then whatever IEEE-754
// division gives: ±Inf, or NaN when the shutter is also at 0. That value is
// kept as-is. A physically faithful model would record a whole segment
// along the shutter instead of a point; the disc filter downstream drops
// the sentinel. When p.x == 0 the gradient is infinite and the coordinate
// is a signed zero.
package solver

import (
	"math"

	"github.com/dickie-roper/rolling-shutter/internal/rotation"
	"github.com/dickie-roper/rolling-shutter/internal/shutter"
)

// Coordinate returns the horizontal coordinate at which a blade with the
// given phase crosses the shutter line at height position, elapsed seconds
// into the exposure.
func Coordinate(elapsed, position, freqHz, phaseRad float64) float64 {
	p := rotation.Position(elapsed, freqHz, phaseRad)
	gradient := p.Y / p.X
	return position / gradient
}

// RecordedCoordinate is Coordinate applied to a shutter sample.
func RecordedCoordinate(s shutter.Sample, freqHz, phaseRad float64) float64 {
	return Coordinate(s.Elapsed, s.Position, freqHz, phaseRad)
}

// Degenerate reports whether v is the undefined-intersection sentinel.
func Degenerate(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
