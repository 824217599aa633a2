// Package animation replays an assembled photograph as the shutter sweeps
// across the frame.
//
// Frame i shows the shutter line at sample i, every blade as a full diameter
// at that sample's elapsed time, and the points each blade has exposed so far
// (the photograph points with sample index <= i). The exposed prefix is the
// only state carried between frames and lives in the Player, so several
// players can replay the same result independently.
package animation

import (
	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/rotation"
)

// Segment is a blade drawn through the origin, from its tip to the opposite
// tip.
type Segment struct {
	Tip  rotation.State
	Tail rotation.State
}

// Frame is one step of the animation.
type Frame struct {
	Number          int // frame counter, starting at 0
	Index           int // sample index in the timeline
	Elapsed         float64
	ShutterPosition float64
	Blades          []Segment
	Exposed         [][]photo.Point // per blade; shares storage with the photograph
	Final           bool
}

// ExposedCount returns the total number of exposed points across blades.
func (f Frame) ExposedCount() int {
	var n int
	for _, pts := range f.Exposed {
		n += len(pts)
	}
	return n
}

// Player steps through the frames of a result. Not safe for concurrent use.
type Player struct {
	result  *photo.Result
	stride  int
	frame   int
	next    int   // next sample index, or -1 when done
	cursors []int // per blade: number of photograph points already exposed
}

// NewPlayer creates a player that advances stride samples per frame. The last
// sample is always shown, even when stride does not divide the timeline.
// Stride values below 1 are treated as 1.
func NewPlayer(res *photo.Result, stride int) *Player {
	if stride < 1 {
		stride = 1
	}
	p := &Player{
		result:  res,
		stride:  stride,
		cursors: make([]int, len(res.Photographs)),
	}
	p.Reset()
	return p
}

// Len returns the number of frames in a full replay.
func (p *Player) Len() int {
	return FrameCount(p.result.Timeline.Len(), p.stride)
}

// FrameCount returns how many frames a timeline of steps samples yields at
// the given stride.
func FrameCount(steps, stride int) int {
	if steps <= 0 {
		return 0
	}
	if stride < 1 {
		stride = 1
	}
	n := (steps-1)/stride + 1
	if (steps-1)%stride != 0 {
		n++
	}
	return n
}

// Reset rewinds the player to the first frame with nothing exposed.
func (p *Player) Reset() {
	p.frame = 0
	p.next = 0
	if p.result.Timeline.Len() == 0 {
		p.next = -1
	}
	for i := range p.cursors {
		p.cursors[i] = 0
	}
}

// Next returns the next frame. ok is false once the replay is finished.
func (p *Player) Next() (f Frame, ok bool) {
	if p.next < 0 {
		return Frame{}, false
	}

	tl := p.result.Timeline
	idx := p.next
	sample := tl.At(idx)
	last := tl.Len() - 1

	f = Frame{
		Number:          p.frame,
		Index:           idx,
		Elapsed:         sample.Elapsed,
		ShutterPosition: sample.Position,
		Blades:          make([]Segment, len(p.result.Config.Blades)),
		Exposed:         make([][]photo.Point, len(p.result.Photographs)),
		Final:           idx == last,
	}

	freq := p.result.Config.FrequencyHz
	for i, b := range p.result.Config.Blades {
		tip := rotation.Position(sample.Elapsed, freq, b.Phase)
		f.Blades[i] = Segment{Tip: tip, Tail: tip.Opposite()}
	}

	for i, ph := range p.result.Photographs {
		c := p.cursors[i]
		for c < len(ph.Points) && ph.Points[c].Index <= idx {
			c++
		}
		p.cursors[i] = c
		f.Exposed[i] = ph.Points[:c:c]
	}

	p.frame++
	switch {
	case idx == last:
		p.next = -1
	case idx+p.stride > last:
		p.next = last
	default:
		p.next = idx + p.stride
	}
	return f, true
}

// Frames replays the whole result from the start and returns every frame.
// The player is left rewound.
func (p *Player) Frames() []Frame {
	p.Reset()
	frames := make([]Frame, 0, p.Len())
	for {
		f, ok := p.Next()
		if !ok {
			break
		}
		frames = append(frames, f)
	}
	p.Reset()
	return frames
}
