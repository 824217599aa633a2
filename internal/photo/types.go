package photo

import (
	"time"

	"github.com/dickie-roper/rolling-shutter/internal/scene"
	"github.com/dickie-roper/rolling-shutter/internal/shutter"
)

// Point is one recorded crossing of a blade with the shutter line.
// Paired with Sample.Position it is a point in the final image.
type Point struct {
	Blade      scene.Blade
	Index      int // sample index in the timeline
	Sample     shutter.Sample
	Coordinate float64 // image x; not finite for degenerate geometry
}

// X returns the horizontal image coordinate.
func (p Point) X() float64 { return p.Coordinate }

// Y returns the vertical image coordinate (the shutter line position).
func (p Point) Y() float64 { return p.Sample.Position }

// Series holds the unfiltered coordinate of one blade for every sample of
// the timeline, index-aligned with it.
type Series struct {
	Blade       scene.Blade
	Coordinates []float64
}

// Photograph is the visible part of one blade's series: every point that
// lands strictly inside the unit disc.
type Photograph struct {
	BladeIndex int
	Blade      scene.Blade
	Points     []Point
}

// Result is the output of one assembly.
type Result struct {
	Config      scene.Config
	Timeline    shutter.Timeline
	Series      []Series     // one per blade, in blade order
	Photographs []Photograph // one per blade, in blade order
	Degenerate  int          // samples whose coordinate was not finite
	Duration    time.Duration
}

// PointCount returns the total number of retained points across blades.
func (r *Result) PointCount() int {
	var n int
	for _, ph := range r.Photographs {
		n += len(ph.Points)
	}
	return n
}

// Config holds assembler configuration.
type Config struct {
	Workers int // worker pool size (default: runtime.NumCPU())
}
