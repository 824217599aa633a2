package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gonum.org/v1/plot/vg"

	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/render"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

func newPhotoCmd(logger *slog.Logger) *cobra.Command {
	var (
		out    string
		size   int
		title  string
		noPlot bool
	)

	cmd := &cobra.Command{
		Use:   "photo",
		Short: "Render the rolling-shutter photograph as a PNG",
		Example: `  rollshutter photo --out propeller.png
  rollshutter photo --steps 700 --frequency 1.5 --blades 5
  rollshutter photo --phases 0,0.5 --no-plot`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveScene(cmd, logger, scene.Default())
			if err != nil {
				return err
			}
			assembler, _, err := assemblerFor(cmd, logger)
			if err != nil {
				return err
			}

			res, err := assembler.Assemble(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			if err := printSummary(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			if noPlot {
				return nil
			}

			opts := render.DefaultOptions()
			opts.Title = title
			if size > 0 {
				opts.Size = vg.Length(size) / vg.Length(opts.DPI) * vg.Inch
			}
			if err := writePhotograph(out, res, opts); err != nil {
				return err
			}
			logger.Info("photograph written", "path", out, "points", res.PointCount())
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "photograph.png", "output PNG path")
	cmd.Flags().IntVar(&size, "size", 0, "image width and height in pixels (default 576)")
	cmd.Flags().StringVar(&title, "title", "", "plot title (default describes the scene)")
	cmd.Flags().BoolVar(&noPlot, "no-plot", false, "print the summary only")
	return cmd
}

func writePhotograph(path string, res *photo.Result, opts render.Options) error {
	p, err := render.Photograph(res, opts)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := render.WritePNG(f, p, opts); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// printSummary writes one row per blade plus totals.
func printSummary(w io.Writer, res *photo.Result) error {
	fmt.Fprintf(w, "steps %d, duration %g s, frequency %g Hz, %d blade(s)\n",
		res.Config.Steps, res.Config.ShutterDuration, res.Config.FrequencyHz, len(res.Config.Blades))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "BLADE\tPHASE (rad)\tPOINTS")
	for _, ph := range res.Photographs {
		fmt.Fprintf(tw, "%d\t%.4f\t%d\n", ph.BladeIndex+1, ph.Blade.Phase, len(ph.Points))
	}
	fmt.Fprintf(tw, "total\t\t%d\n", res.PointCount())
	if err := tw.Flush(); err != nil {
		return err
	}

	if res.Degenerate > 0 {
		fmt.Fprintf(w, "%d sample(s) had no finite crossing\n", res.Degenerate)
	}
	return nil
}
