// Package rotation models a point rotating on the unit circle.
package rotation

import "math"

// State is the position of a rotating point at a single instant.
// It is always on the unit circle.
type State struct {
	X, Y float64
}

// AngularVelocity converts a rotation frequency in revolutions per second
// to an angular velocity in rad/s.
func AngularVelocity(freqHz float64) float64 {
	return 2 * math.Pi * freqHz
}

// Angle returns the rotation angle in radians at time t:
//
//	θ(t) = ω·t + φ,  ω = 2π·f
//
// The result is not normalised to [0, 2π).
func Angle(t, freqHz, phaseRad float64) float64 {
	return AngularVelocity(freqHz)*t + phaseRad
}

// Position returns the location of a point rotating at freqHz with initial
// phase phaseRad, evaluated at time t (seconds).
//
// Defined for every real t and periodic with period 1/freqHz.
func Position(t, freqHz, phaseRad float64) State {
	theta := Angle(t, freqHz, phaseRad)
	return State{
		X: math.Cos(theta),
		Y: math.Sin(theta),
	}
}

// Opposite returns the diametrically opposite point, i.e. the back tip of a
// blade drawn through the origin.
func (s State) Opposite() State {
	return State{X: -s.X, Y: -s.Y}
}

// Radius returns the distance from the origin.
func (s State) Radius() float64 {
	return math.Hypot(s.X, s.Y)
}
