// Command diag prints the solver output for a small exposure, one row per
// sample, so the numbers can be checked by hand.
//
//	go run ./cmd/diag -steps 5 -phases 0
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/rotation"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
	"github.com/dickie-roper/rolling-shutter/internal/solver"
)

func main() {
	steps := flag.Int("steps", 5, "shutter samples")
	duration := flag.Float64("duration", 1, "shutter duration in seconds")
	freq := flag.Float64("frequency", 1, "revolutions per second")
	phases := flag.String("phases", "0", "comma-separated blade phases in radians")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	var blades []scene.Blade
	for _, p := range strings.Split(*phases, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			fmt.Println("ERROR parsing phases:", err)
			os.Exit(1)
		}
		blades = append(blades, scene.Blade{Phase: v})
	}

	cfg := scene.Config{
		Steps:           *steps,
		ShutterDuration: *duration,
		FrequencyHz:     *freq,
		Blades:          blades,
	}

	res, err := photo.NewAssembler(photo.Config{Workers: 1}, logger).Assemble(context.Background(), cfg)
	if err != nil {
		fmt.Println("ERROR:", err)
		os.Exit(1)
	}

	fmt.Printf("steps=%d duration=%g frequency=%g\n\n", cfg.Steps, cfg.ShutterDuration, cfg.FrequencyHz)

	for bi, s := range res.Series {
		fmt.Printf("Blade %d (phase %.4f rad)\n", bi+1, s.Blade.Phase)
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', tabwriter.AlignRight)
		fmt.Fprintln(tw, "i\telapsed\tposition\tblade x\tblade y\tcoordinate\tc²+p²\tkept\t")
		for i, c := range s.Coordinates {
			sample := res.Timeline.At(i)
			p := rotation.Position(sample.Elapsed, cfg.FrequencyHz, s.Blade.Phase)
			kept := "yes"
			switch {
			case solver.Degenerate(c):
				kept = "degenerate"
			case !photo.InsideDisc(c, sample.Position):
				kept = "no"
			}
			fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.6g\t%.6g\t%.6g\t%s\t%s\t\n",
				i, sample.Elapsed, sample.Position, p.X, p.Y, c, radiusSquared(c, sample.Position), kept)
		}
		tw.Flush()
		fmt.Printf("  retained %d of %d\n\n", len(res.Photographs[bi].Points), len(s.Coordinates))
	}

	fmt.Printf("Total retained: %d, degenerate samples: %d\n", res.PointCount(), res.Degenerate)
}

func radiusSquared(c, p float64) string {
	r := c*c + p*p
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return "-"
	}
	return strconv.FormatFloat(r, 'g', 6, 64)
}
