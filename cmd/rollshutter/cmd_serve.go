package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/dickie-roper/rolling-shutter/internal/api"
	"github.com/dickie-roper/rolling-shutter/internal/cache"
	"github.com/dickie-roper/rolling-shutter/internal/health"
	"github.com/dickie-roper/rolling-shutter/internal/metrics"
	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
	"github.com/dickie-roper/rolling-shutter/internal/shutter"
	"github.com/dickie-roper/rolling-shutter/internal/stream"
	"github.com/dickie-roper/rolling-shutter/web"
)

func newServeCmd(logger *slog.Logger) *cobra.Command {
	var (
		addr string
		warm bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve photographs, animation streams and the web viewer over HTTP",
		Long: `Starts the HTTP service. The scene flags set the scene that is
pre-assembled at startup; every request may override it with query
parameters.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			authCfg, err := loadAuthConfig(logger)
			if err != nil {
				return fmt.Errorf("invalid auth configuration: %w", err)
			}
			apiCfg := loadAPIConfig(logger)
			if cmd.Flags().Changed("addr") {
				apiCfg.Addr = addr
			}

			assembler, acfg, err := assemblerFor(cmd, logger)
			if err != nil {
				return err
			}
			metrics.SetAssemblyWorkers(acfg.Workers)

			photos := cache.NewPhotoCache(loadCacheConfig(logger), assembler, logger)
			frames := stream.NewHandler(photos, loadStreamConfig(logger), logger)
			ready := health.NewChecker(selfTest(logger), 2*time.Second)

			srv := api.NewServer(apiCfg, api.Deps{
				Photos: photos,
				Stream: frames.HandleFrames,
				Ready:  ready,
				Web:    web.Content,
				Auth:   authCfg,
			}, logger)

			// Start cache background worker.
			go photos.Start(ctx)

			go func() {
				if warm {
					scenes, err := warmScenes(cmd, logger)
					if err != nil {
						logger.Warn("skipping cache warmup", "error", err)
					} else {
						photos.Warm(ctx, scenes...)
					}
				}
				ready.MarkReady()
			}()

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting server", "addr", apiCfg.Addr, "auth_enabled", authCfg.Enabled, "workers", acfg.Workers)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
			}()

			select {
			case err := <-errCh:
				return fmt.Errorf("server listen error: %w", err)
			case <-ctx.Done():
			}
			logger.Info("shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.HTTPServer().Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("server shutdown error: %w", err)
			}

			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address (overrides ROLLSHUTTER_HTTP_ADDR)")
	cmd.Flags().BoolVar(&warm, "warm", true, "pre-assemble the configured photograph and animation scenes")
	return cmd
}

// warmScenes returns the photograph and animation scenes the viewer asks
// for first.
func warmScenes(cmd *cobra.Command, logger *slog.Logger) ([]scene.Config, error) {
	still, err := resolveScene(cmd, logger, scene.Default())
	if err != nil {
		return nil, err
	}
	anim, err := resolveScene(cmd, logger, scene.DefaultAnimation())
	if err != nil {
		return nil, err
	}
	return []scene.Config{still, anim}, nil
}

// selfTest solves the five-sample reference exposure and checks that three
// of its points land inside the frame. It drives the worker pool directly so
// readiness polls stay out of the assembly metrics.
func selfTest(logger *slog.Logger) health.Probe {
	ref := scene.Config{
		Steps:           5,
		ShutterDuration: 1,
		FrequencyHz:     1,
		Blades:          []scene.Blade{{Phase: 0}},
	}
	pool := photo.NewWorkerPool(1, logger)
	return func(ctx context.Context) error {
		tl, err := shutter.Build(ref.Steps, ref.ShutterDuration)
		if err != nil {
			return fmt.Errorf("solver self-test: %w", err)
		}
		series := pool.SolveBatch(ctx, tl, ref.FrequencyHz, ref.Blades)
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("solver self-test: %w", err)
		}
		ph, _ := photo.Develop(0, series[0], tl)
		if n := len(ph.Points); n != 3 {
			return fmt.Errorf("solver self-test: got %d points, want 3", n)
		}
		return nil
	}
}
