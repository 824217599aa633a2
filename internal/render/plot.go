// Package render draws photographs and animation frames.
//
// Static images and animation frames are built as gonum plots on a fixed
// [-1, 1] square so every frame of an animation lines up. The terminal
// renderer maps the same square onto a character grid.
package render

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/dickie-roper/rolling-shutter/internal/animation"
	"github.com/dickie-roper/rolling-shutter/internal/photo"
)

// extent is the half-width of the plotted square; slightly larger than the
// unit disc so the rim is not clipped.
const extent = 1.05

var bladePalette = []color.RGBA{
	{R: 0x1f, G: 0x77, B: 0xb4, A: 0xff},
	{R: 0xff, G: 0x7f, B: 0x0e, A: 0xff},
	{R: 0x2c, G: 0xa0, B: 0x2c, A: 0xff},
	{R: 0xd6, G: 0x27, B: 0x28, A: 0xff},
	{R: 0x94, G: 0x67, B: 0xbd, A: 0xff},
	{R: 0x8c, G: 0x56, B: 0x4b, A: 0xff},
	{R: 0xe3, G: 0x77, B: 0xc2, A: 0xff},
	{R: 0x17, G: 0xbe, B: 0xcf, A: 0xff},
}

var (
	rimColor     = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	bladeColor   = color.RGBA{R: 0x20, G: 0x20, B: 0x20, A: 0xff}
	shutterColor = color.RGBA{R: 0xe0, G: 0x10, B: 0x10, A: 0xff}
)

// BladeColor returns the colour used for blade i.
func BladeColor(i int) color.RGBA {
	return bladePalette[i%len(bladePalette)]
}

// Options controls image output.
type Options struct {
	Size       vg.Length // width and height of the square image
	DPI        int
	PointSize  vg.Length
	Title      string
	HideLegend bool
}

// DefaultOptions returns a 6 inch, 96 DPI square.
func DefaultOptions() Options {
	return Options{
		Size:      6 * vg.Inch,
		DPI:       96,
		PointSize: vg.Points(1.2),
	}
}

// Photograph builds the static composite: one scatter per blade plus the
// rim of the disc.
func Photograph(res *photo.Result, opts Options) (*plot.Plot, error) {
	p := newSquarePlot(opts)
	if p.Title.Text == "" {
		p.Title.Text = fmt.Sprintf("%g Hz, %g s shutter, %d samples",
			res.Config.FrequencyHz, res.Config.ShutterDuration, res.Config.Steps)
	}

	if err := addRim(p); err != nil {
		return nil, err
	}

	for i, ph := range res.Photographs {
		s, err := scatter(ph.Points, BladeColor(i), opts.PointSize)
		if err != nil {
			return nil, fmt.Errorf("blade %d scatter: %w", i, err)
		}
		if s == nil {
			continue
		}
		p.Add(s)
		if !opts.HideLegend {
			p.Legend.Add(fmt.Sprintf("blade %d", i+1), s)
		}
	}

	fixRange(p)
	return p, nil
}

// Frame builds one animation frame: the exposed points so far, each blade as
// a diameter, and the shutter line.
func Frame(res *photo.Result, f animation.Frame, opts Options) (*plot.Plot, error) {
	p := newSquarePlot(opts)
	p.Title.Text = fmt.Sprintf("t = %.3f s", f.Elapsed)
	if opts.Title != "" {
		p.Title.Text = opts.Title + "  " + p.Title.Text
	}

	if err := addRim(p); err != nil {
		return nil, err
	}

	for i, pts := range f.Exposed {
		s, err := scatter(pts, BladeColor(i), opts.PointSize)
		if err != nil {
			return nil, fmt.Errorf("blade %d scatter: %w", i, err)
		}
		if s != nil {
			p.Add(s)
		}
	}

	for i, seg := range f.Blades {
		l, err := plotter.NewLine(plotter.XYs{
			{X: seg.Tip.X, Y: seg.Tip.Y},
			{X: seg.Tail.X, Y: seg.Tail.Y},
		})
		if err != nil {
			return nil, fmt.Errorf("blade %d segment: %w", i, err)
		}
		l.LineStyle.Color = bladeColor
		l.LineStyle.Width = vg.Points(2)
		p.Add(l)
	}

	shutter, err := plotter.NewLine(plotter.XYs{
		{X: -extent, Y: f.ShutterPosition},
		{X: extent, Y: f.ShutterPosition},
	})
	if err != nil {
		return nil, fmt.Errorf("shutter line: %w", err)
	}
	shutter.LineStyle.Color = shutterColor
	shutter.LineStyle.Width = vg.Points(1)
	shutter.LineStyle.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
	p.Add(shutter)

	fixRange(p)
	return p, nil
}

// WritePNG encodes p as a square PNG.
func WritePNG(w io.Writer, p *plot.Plot, opts Options) error {
	img := Rasterize(p, opts)
	c := vgimg.PngCanvas{Canvas: img}
	if _, err := c.WriteTo(w); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

// Rasterize draws p onto a fresh canvas.
func Rasterize(p *plot.Plot, opts Options) *vgimg.Canvas {
	dpi := opts.DPI
	if dpi <= 0 {
		dpi = 96
	}
	c := vgimg.NewWith(vgimg.UseWH(opts.Size, opts.Size), vgimg.UseDPI(dpi))
	p.Draw(draw.New(c))
	return c
}

// Image draws p and returns the resulting bitmap.
func Image(p *plot.Plot, opts Options) image.Image {
	return Rasterize(p, opts).Image()
}

func newSquarePlot(opts Options) *plot.Plot {
	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "recorded x"
	p.Y.Label.Text = "shutter position"
	p.Legend.Top = true
	return p
}

func addRim(p *plot.Plot) error {
	const n = 256
	pts := make(plotter.XYs, n+1)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / n
		pts[i] = plotter.XY{X: math.Cos(a), Y: math.Sin(a)}
	}
	l, err := plotter.NewLine(pts)
	if err != nil {
		return fmt.Errorf("disc rim: %w", err)
	}
	l.LineStyle.Color = rimColor
	l.LineStyle.Width = vg.Points(0.8)
	p.Add(l)
	return nil
}

// scatter returns nil when there is nothing to draw.
func scatter(points []photo.Point, c color.Color, radius vg.Length) (*plotter.Scatter, error) {
	if len(points) == 0 {
		return nil, nil
	}
	xys := make(plotter.XYs, len(points))
	for i, pt := range points {
		xys[i] = plotter.XY{X: pt.X(), Y: pt.Y()}
	}
	s, err := plotter.NewScatter(xys)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Color = c
	s.GlyphStyle.Shape = draw.CircleGlyph{}
	if radius > 0 {
		s.GlyphStyle.Radius = radius
	}
	return s, nil
}

func fixRange(p *plot.Plot) {
	p.X.Min, p.X.Max = -extent, extent
	p.Y.Min, p.Y.Max = -extent, extent
}
