package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/dickie-roper/rolling-shutter/internal/animation"
	"github.com/dickie-roper/rolling-shutter/internal/render"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

func newAnimateCmd(logger *slog.Logger) *cobra.Command {
	var (
		out      string
		tty      bool
		stride   int
		interval time.Duration
		hold     time.Duration
		size     int
	)

	cmd := &cobra.Command{
		Use:   "animate",
		Short: "Animate the exposure as a GIF or in the terminal",
		Long: `Replays the exposure frame by frame: the shutter line moves down the
frame, every blade is drawn as a full diameter, and the points each blade
has exposed so far accumulate into the final photograph.`,
		Example: `  rollshutter animate --out propeller.gif
  rollshutter animate --tty --interval 20ms
  rollshutter animate --steps 400 --stride 2 --blades 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if stride < 1 {
				return fmt.Errorf("--stride must be at least 1, got %d", stride)
			}
			if interval <= 0 {
				return fmt.Errorf("--interval must be positive, got %s", interval)
			}

			cfg, err := resolveScene(cmd, logger, scene.DefaultAnimation())
			if err != nil {
				return err
			}
			assembler, acfg, err := assemblerFor(cmd, logger)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			res, err := assembler.Assemble(ctx, cfg)
			if err != nil {
				return err
			}
			player := animation.NewPlayer(res, stride)

			if tty {
				if !isatty.IsTerminal(os.Stdout.Fd()) {
					return fmt.Errorf("--tty needs stdout to be a terminal")
				}
				return playTerminal(cmd, player, interval)
			}

			opts := render.DefaultGIFOptions()
			opts.FrameDelay = interval
			opts.HoldLast = hold
			opts.Workers = acfg.Workers
			if size > 0 {
				opts.Image.Size = vg.Length(size) / vg.Length(opts.Image.DPI) * vg.Inch
			}

			frames := player.Frames()
			start := time.Now()

			f, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("creating %s: %w", out, err)
			}
			if err := render.WriteGIF(ctx, f, res, frames, opts); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}

			logger.Info("animation written",
				"path", out,
				"frames", len(frames),
				"duration_ms", time.Since(start).Milliseconds(),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%d frames written to %s\n", len(frames), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "animation.gif", "output GIF path")
	cmd.Flags().BoolVar(&tty, "tty", false, "play in the terminal instead of writing a GIF")
	cmd.Flags().IntVar(&stride, "stride", 1, "shutter samples advanced per frame")
	cmd.Flags().DurationVar(&interval, "interval", 40*time.Millisecond, "time between frames")
	cmd.Flags().DurationVar(&hold, "hold", time.Second, "extra time on the final GIF frame")
	cmd.Flags().IntVar(&size, "size", 0, "GIF width and height in pixels (default 288)")
	return cmd
}

func playTerminal(cmd *cobra.Command, player *animation.Player, interval time.Duration) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("creating screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("initialising screen: %w", err)
	}
	defer screen.Fini()

	screen.SetStyle(tcell.StyleDefault)
	screen.HideCursor()

	return render.NewTerminal(screen, player, interval).Run(cmd.Context())
}
