package photo

import (
	"github.com/dickie-roper/rolling-shutter/internal/shutter"
	"github.com/dickie-roper/rolling-shutter/internal/solver"
)

// InsideDisc reports whether (coordinate, position) lies strictly inside the
// unit disc. The comparison is exact: points on the rim are outside. Non-finite
// coordinates always fail because Inf² and NaN never compare below 1.
func InsideDisc(coordinate, position float64) bool {
	return coordinate*coordinate+position*position < 1
}

// Develop filters a blade's series down to its photograph and returns the
// number of degenerate samples it saw.
func Develop(index int, s Series, tl shutter.Timeline) (Photograph, int) {
	ph := Photograph{BladeIndex: index, Blade: s.Blade}
	var degenerate int

	for i, c := range s.Coordinates {
		if solver.Degenerate(c) {
			degenerate++
			continue
		}
		sample := tl.At(i)
		if !InsideDisc(c, sample.Position) {
			continue
		}
		ph.Points = append(ph.Points, Point{
			Blade:      s.Blade,
			Index:      i,
			Sample:     sample,
			Coordinate: c,
		})
	}
	return ph, degenerate
}
