package render

import (
	"context"
	"math"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/dickie-roper/rolling-shutter/internal/animation"
	"github.com/dickie-roper/rolling-shutter/internal/rotation"
)

// cellSetter is the part of tcell.Screen the frame painter needs.
type cellSetter interface {
	SetContent(x, y int, primary rune, combining []rune, style tcell.Style)
}

const (
	runeRim     = '·'
	runePoint   = '●'
	runeBlade   = '*'
	runeShutter = '─'
)

// viewport maps the [-1, 1] square onto a w×h character grid. Terminal cells
// are roughly twice as tall as they are wide, so x is stretched by two.
type viewport struct {
	cx, cy float64
	r      float64 // rows per unit
	w, h   int
}

func newViewport(w, h int) viewport {
	r := math.Min(float64(w-1)/4, float64(h-1)/2)
	if r < 1 {
		r = 1
	}
	return viewport{
		cx: float64(w-1) / 2,
		cy: float64(h-1) / 2,
		r:  r,
		w:  w,
		h:  h,
	}
}

func (v viewport) cell(x, y float64) (int, int, bool) {
	col := int(math.Round(v.cx + x*2*v.r))
	row := int(math.Round(v.cy - y*v.r))
	if col < 0 || row < 0 || col >= v.w || row >= v.h {
		return 0, 0, false
	}
	return col, row, true
}

// PaintFrame draws f onto a w×h grid. Later layers overwrite earlier ones:
// rim, shutter line, blades, exposed points.
func PaintFrame(s cellSetter, w, h int, f animation.Frame) {
	v := newViewport(w, h)
	base := tcell.StyleDefault

	rimStyle := base.Foreground(tcell.ColorGray)
	steps := int(2 * math.Pi * v.r * 2)
	for i := 0; i < steps; i++ {
		a := 2 * math.Pi * float64(i) / float64(steps)
		if col, row, ok := v.cell(math.Cos(a), math.Sin(a)); ok {
			s.SetContent(col, row, runeRim, nil, rimStyle)
		}
	}

	shutterStyle := base.Foreground(tcell.ColorRed)
	if _, row, ok := v.cell(0, f.ShutterPosition); ok {
		for col := 0; col < w; col++ {
			s.SetContent(col, row, runeShutter, nil, shutterStyle)
		}
	}

	bladeStyle := base.Foreground(tcell.ColorWhite).Bold(true)
	for _, seg := range f.Blades {
		paintSegment(s, v, seg.Tail, seg.Tip, bladeStyle)
	}

	for i, pts := range f.Exposed {
		c := BladeColor(i)
		style := base.Foreground(tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B)))
		for _, pt := range pts {
			if col, row, ok := v.cell(pt.X(), pt.Y()); ok {
				s.SetContent(col, row, runePoint, nil, style)
			}
		}
	}
}

func paintSegment(s cellSetter, v viewport, from, to rotation.State, style tcell.Style) {
	n := int(4 * v.r)
	for i := 0; i <= n; i++ {
		t := float64(i) / float64(n)
		x := from.X + (to.X-from.X)*t
		y := from.Y + (to.Y-from.Y)*t
		if col, row, ok := v.cell(x, y); ok {
			s.SetContent(col, row, runeBlade, nil, style)
		}
	}
}

// Terminal plays an animation on a tcell screen.
//
// Keys: q, Esc or Ctrl-C quit; space pauses; r restarts. When the replay
// ends the last frame stays on screen until the user quits or ctx is done.
type Terminal struct {
	screen   tcell.Screen
	player   *animation.Player
	interval time.Duration
	paused   bool
	last     animation.Frame
	haveLast bool
}

// NewTerminal wraps an initialised screen.
func NewTerminal(screen tcell.Screen, player *animation.Player, interval time.Duration) *Terminal {
	if interval <= 0 {
		interval = 33 * time.Millisecond
	}
	return &Terminal{
		screen:   screen,
		player:   player,
		interval: interval,
	}
}

// Run drives the draw loop until the user quits or ctx is cancelled.
func (t *Terminal) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	defer close(quit)
	go func() {
		for {
			ev := t.screen.PollEvent()
			if ev == nil {
				return
			}
			select {
			case events <- ev:
			case <-quit:
				return
			}
		}
	}()

	t.step()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if !t.handle(ev) {
				return nil
			}
		case <-ticker.C:
			if !t.paused {
				t.step()
			}
		}
	}
}

func (t *Terminal) handle(ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case ' ':
				t.paused = !t.paused
			case 'r':
				t.player.Reset()
				t.haveLast = false
				t.step()
			}
		}
	case *tcell.EventResize:
		t.screen.Sync()
		t.draw()
	}
	return true
}

// step advances one frame, holding the last one when the replay ends.
func (t *Terminal) step() {
	if f, ok := t.player.Next(); ok {
		t.last = f
		t.haveLast = true
	}
	t.draw()
}

func (t *Terminal) draw() {
	if !t.haveLast {
		return
	}
	t.screen.Clear()
	w, h := t.screen.Size()
	PaintFrame(t.screen, w, h, t.last)
	t.screen.Show()
}
