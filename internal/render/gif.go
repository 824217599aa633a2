package render

import (
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"
	"io"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/plot/vg"

	"github.com/dickie-roper/rolling-shutter/internal/animation"
	"github.com/dickie-roper/rolling-shutter/internal/photo"
)

// GIFOptions controls animated GIF export.
type GIFOptions struct {
	Image      Options
	FrameDelay time.Duration // per frame; GIF resolution is 10ms
	HoldLast   time.Duration // extra time on the final frame
	Workers    int           // concurrent rasterisers (default: runtime.NumCPU())
	LoopCount  int           // 0 loops forever, -1 plays once
}

// DefaultGIFOptions returns a 4 inch, 72 DPI square with 40ms frames and a
// one second hold.
func DefaultGIFOptions() GIFOptions {
	opts := DefaultOptions()
	opts.Size = 4 * vg.Inch
	opts.DPI = 72
	return GIFOptions{
		Image:      opts,
		FrameDelay: 40 * time.Millisecond,
		HoldLast:   time.Second,
	}
}

// WriteGIF rasterises frames in parallel and encodes them as an animated GIF.
func WriteGIF(ctx context.Context, w io.Writer, res *photo.Result, frames []animation.Frame, opts GIFOptions) error {
	if len(frames) == 0 {
		return fmt.Errorf("no frames to encode")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	images := make([]*image.Paletted, len(frames))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, f := range frames {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p, err := Frame(res, f, opts.Image)
			if err != nil {
				return fmt.Errorf("frame %d: %w", i, err)
			}
			images[i] = quantize(Image(p, opts.Image))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	delay := centiseconds(opts.FrameDelay)
	anim := &gif.GIF{
		Image:     images,
		Delay:     make([]int, len(images)),
		LoopCount: opts.LoopCount,
	}
	for i := range anim.Delay {
		anim.Delay[i] = delay
	}
	anim.Delay[len(anim.Delay)-1] += centiseconds(opts.HoldLast)

	if err := gif.EncodeAll(w, anim); err != nil {
		return fmt.Errorf("encoding gif: %w", err)
	}
	return nil
}

// quantize maps img onto the Plan 9 palette with Floyd-Steinberg dithering.
func quantize(img image.Image) *image.Paletted {
	b := img.Bounds()
	pal := image.NewPaletted(b, palette.Plan9)
	draw.FloydSteinberg.Draw(pal, b, img, b.Min)
	return pal
}

func centiseconds(d time.Duration) int {
	cs := int(d / (10 * time.Millisecond))
	if cs < 1 && d > 0 {
		cs = 1
	}
	return cs
}
