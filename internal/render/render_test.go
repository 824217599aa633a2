package render

import (
	"bytes"
	"context"
	"image/gif"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dickie-roper/rolling-shutter/internal/animation"
	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

func assemble(t *testing.T, cfg scene.Config) *photo.Result {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	res, err := photo.NewAssembler(photo.Config{Workers: 2}, logger).Assemble(context.Background(), cfg)
	require.NoError(t, err)
	return res
}

func smallScene() scene.Config {
	return scene.Config{
		Steps:           40,
		ShutterDuration: 1,
		FrequencyHz:     1,
		Blades:          scene.EvenBlades(3),
	}
}

func smallOptions() Options {
	opts := DefaultOptions()
	opts.Size = 2 * 72 // two inches in points
	opts.DPI = 36
	return opts
}

func TestWritePNG(t *testing.T) {
	res := assemble(t, smallScene())
	opts := smallOptions()

	p, err := Photograph(res, opts)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WritePNG(&buf, p, opts))
	require.Greater(t, buf.Len(), 8)
	assert.Equal(t, []byte("\x89PNG\r\n\x1a\n"), buf.Bytes()[:8])
}

func TestPhotograph_DefaultTitle(t *testing.T) {
	res := assemble(t, smallScene())
	p, err := Photograph(res, smallOptions())
	require.NoError(t, err)
	assert.Contains(t, p.Title.Text, "1 Hz")
	assert.Contains(t, p.Title.Text, "40 samples")
}

func TestImage_Size(t *testing.T) {
	res := assemble(t, smallScene())
	opts := smallOptions()
	f, ok := animation.NewPlayer(res, 1).Next()
	require.True(t, ok)

	p, err := Frame(res, f, opts)
	require.NoError(t, err)
	b := Image(p, opts).Bounds()
	assert.Equal(t, 72, b.Dx())
	assert.Equal(t, 72, b.Dy())
}

func TestWriteGIF(t *testing.T) {
	res := assemble(t, smallScene())
	frames := animation.NewPlayer(res, 10).Frames()
	require.Len(t, frames, 5)

	opts := DefaultGIFOptions()
	opts.Image = smallOptions()
	opts.Workers = 2

	var buf bytes.Buffer
	require.NoError(t, WriteGIF(context.Background(), &buf, res, frames, opts))

	g, err := gif.DecodeAll(&buf)
	require.NoError(t, err)
	require.Len(t, g.Image, len(frames))
	assert.Equal(t, 4, g.Delay[0])
	assert.Equal(t, 4+100, g.Delay[len(g.Delay)-1])
}

func TestWriteGIF_NoFrames(t *testing.T) {
	res := assemble(t, smallScene())
	err := WriteGIF(context.Background(), io.Discard, res, nil, DefaultGIFOptions())
	assert.Error(t, err)
}

func TestWriteGIF_Cancelled(t *testing.T) {
	res := assemble(t, smallScene())
	frames := animation.NewPlayer(res, 1).Frames()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultGIFOptions()
	opts.Image = smallOptions()
	err := WriteGIF(ctx, io.Discard, res, frames, opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCentiseconds(t *testing.T) {
	assert.Equal(t, 0, centiseconds(0))
	assert.Equal(t, 1, centiseconds(3*time.Millisecond))
	assert.Equal(t, 4, centiseconds(40*time.Millisecond))
	assert.Equal(t, 100, centiseconds(time.Second))
}

type grid struct {
	cells map[[2]int]rune
}

func newGrid() *grid { return &grid{cells: make(map[[2]int]rune)} }

func (g *grid) SetContent(x, y int, primary rune, _ []rune, _ tcell.Style) {
	g.cells[[2]int{x, y}] = primary
}

func (g *grid) count(r rune) int {
	var n int
	for _, c := range g.cells {
		if c == r {
			n++
		}
	}
	return n
}

func TestPaintFrame(t *testing.T) {
	res := assemble(t, smallScene())
	frames := animation.NewPlayer(res, 1).Frames()
	last := frames[len(frames)-1]
	require.True(t, last.Final)
	require.Positive(t, last.ExposedCount())

	const w, h = 81, 41
	g := newGrid()
	PaintFrame(g, w, h, last)

	for pos := range g.cells {
		assert.True(t, pos[0] >= 0 && pos[0] < w && pos[1] >= 0 && pos[1] < h, "cell %v out of bounds", pos)
	}
	assert.Positive(t, g.count(runeRim))
	assert.Positive(t, g.count(runeBlade))
	assert.Positive(t, g.count(runePoint))

	// The final sample puts the shutter on the bottom row.
	var shutterRows = map[int]bool{}
	for pos, r := range g.cells {
		if r == runeShutter {
			shutterRows[pos[1]] = true
		}
	}
	assert.Equal(t, map[int]bool{h - 1: true}, shutterRows)
}

func TestPaintFrame_FirstFrameHasNoPoints(t *testing.T) {
	res := assemble(t, smallScene())
	f, ok := animation.NewPlayer(res, 1).Next()
	require.True(t, ok)

	g := newGrid()
	PaintFrame(g, 41, 21, f)
	assert.Zero(t, g.count(runePoint))
	assert.Positive(t, g.count(runeShutter))
}

func TestViewport_Centre(t *testing.T) {
	v := newViewport(81, 41)
	col, row, ok := v.cell(0, 0)
	require.True(t, ok)
	assert.Equal(t, 40, col)
	assert.Equal(t, 20, row)

	_, _, ok = v.cell(5, 0)
	assert.False(t, ok)
}

func TestTerminal_QuitKey(t *testing.T) {
	s := tcell.NewSimulationScreen("")
	require.NoError(t, s.Init())
	defer s.Fini()
	s.SetSize(60, 30)

	player := animation.NewPlayer(assemble(t, smallScene()), 1)
	term := NewTerminal(s, player, time.Hour)

	s.InjectKey(tcell.KeyRune, 'q', tcell.ModNone)

	done := make(chan error, 1)
	go func() { done <- term.Run(context.Background()) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after q")
	}
}

func TestTerminal_ContextCancel(t *testing.T) {
	s := tcell.NewSimulationScreen("")
	require.NoError(t, s.Init())
	defer s.Fini()
	s.SetSize(60, 30)

	player := animation.NewPlayer(assemble(t, smallScene()), 1)
	term := NewTerminal(s, player, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, term.Run(ctx))
}
