package main

import (
	"fmt"
	"log/slog"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

// sceneFlags are the persistent flags that override a scene parameter. Each
// flag is named after its query parameter so both share scene.FromQuery.
var sceneFlags = []string{"steps", "duration", "frequency", "blades", "phases"}

func newRootCmd(logger *slog.Logger) *cobra.Command {
	root := &cobra.Command{
		Use:   "rollshutter",
		Short: "Simulate a rolling-shutter photograph of a spinning propeller",
		Long: `rollshutter models a propeller as rotating points on the unit circle and
a camera whose shutter line sweeps from the top of the frame to the bottom.
Each blade is photographed where it crosses the shutter line, which bends
straight blades into the familiar curved shapes.

Scene parameters are resolved in order: defaults, --config file,
ROLLSHUTTER_* environment variables, then flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "YAML scene file (steps, duration, frequency, blade_count, phases)")
	pf.Int("steps", 0, "shutter samples across the frame (>= 2)")
	pf.Float64("duration", 0, "shutter sweep time in seconds (> 0)")
	pf.Float64("frequency", 0, "propeller revolutions per second")
	pf.Int("blades", 0, "number of evenly spaced blades")
	pf.String("phases", "", "comma-separated blade phases in radians (overrides --blades)")
	pf.Int("workers", 0, "solver workers (default: ROLLSHUTTER_WORKERS or CPU count)")

	root.AddCommand(
		newPhotoCmd(logger),
		newAnimateCmd(logger),
		newServeCmd(logger),
	)
	return root
}

// resolveScene builds the scene for cmd starting from base.
func resolveScene(cmd *cobra.Command, logger *slog.Logger, base scene.Config) (scene.Config, error) {
	cfg := base

	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return cfg, err
	}
	if path != "" {
		cfg, err = scene.LoadFile(path, cfg)
		if err != nil {
			return cfg, err
		}
		logger.Debug("scene file applied", "path", path)
	}

	cfg = loadSceneEnv(logger, cfg)

	q := url.Values{}
	for _, name := range sceneFlags {
		if f := cmd.Flags().Lookup(name); f != nil && f.Changed {
			q.Set(name, f.Value.String())
		}
	}
	cfg, err = scene.FromQuery(q, cfg)
	if err != nil {
		return cfg, fmt.Errorf("flags: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// assemblerFor returns an assembler honouring --workers.
func assemblerFor(cmd *cobra.Command, logger *slog.Logger) (*photo.Assembler, photo.Config, error) {
	cfg := loadAssemblerConfig(logger)
	if f := cmd.Flags().Lookup("workers"); f != nil && f.Changed {
		n, err := cmd.Flags().GetInt("workers")
		if err != nil {
			return nil, cfg, err
		}
		if n < 1 {
			return nil, cfg, fmt.Errorf("--workers must be at least 1, got %d", n)
		}
		cfg.Workers = n
	}
	return photo.NewAssembler(cfg, logger), cfg, nil
}
