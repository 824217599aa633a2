package main

import (
	"errors"
	"log/slog"
	"net/url"
	"os"
	"runtime"
	"strconv"
	"time"

	"github.com/dickie-roper/rolling-shutter/internal/api"
	"github.com/dickie-roper/rolling-shutter/internal/auth"
	"github.com/dickie-roper/rolling-shutter/internal/cache"
	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
	"github.com/dickie-roper/rolling-shutter/internal/stream"
)

// sceneEnv maps scene parameters to their environment variables.
var sceneEnv = []struct {
	env, param string
}{
	{"ROLLSHUTTER_STEPS", "steps"},
	{"ROLLSHUTTER_DURATION", "duration"},
	{"ROLLSHUTTER_FREQUENCY", "frequency"},
	{"ROLLSHUTTER_BLADES", "blades"},
	{"ROLLSHUTTER_PHASES", "phases"},
}

func loadLogLevel() slog.Level {
	level := slog.LevelInfo
	if v := os.Getenv("ROLLSHUTTER_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			level = slog.LevelInfo
		}
	}
	return level
}

// loadSceneEnv overlays ROLLSHUTTER_* scene variables onto base. Malformed
// values are logged and skipped.
func loadSceneEnv(logger *slog.Logger, base scene.Config) scene.Config {
	cfg := base
	for _, e := range sceneEnv {
		v := os.Getenv(e.env)
		if v == "" {
			continue
		}
		next, err := scene.FromQuery(url.Values{e.param: {v}}, cfg)
		if err != nil {
			logger.Warn("invalid "+e.env+" value, ignoring", "value", v, "error", err)
			continue
		}
		cfg = next
	}
	return cfg
}

func loadAssemblerConfig(logger *slog.Logger) photo.Config {
	cfg := photo.Config{
		Workers: runtime.NumCPU(),
	}

	if v := os.Getenv("ROLLSHUTTER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROLLSHUTTER_WORKERS value, using default", "value", v, "default", cfg.Workers)
		} else {
			cfg.Workers = n
		}
	}

	return cfg
}

func loadAuthConfig(logger *slog.Logger) (auth.Config, error) {
	cfg := auth.Config{}

	enabledStr := os.Getenv("ROLLSHUTTER_AUTH_ENABLED")
	if enabledStr != "" {
		enabled, err := strconv.ParseBool(enabledStr)
		if err != nil {
			return cfg, errors.New("ROLLSHUTTER_AUTH_ENABLED must be a boolean value (true/false/1/0)")
		}
		cfg.Enabled = enabled
	}

	if cfg.Enabled {
		cfg.Token = os.Getenv("ROLLSHUTTER_AUTH_TOKEN")
		if cfg.Token == "" {
			return cfg, errors.New("ROLLSHUTTER_AUTH_TOKEN is required when auth is enabled")
		}
		logger.Info("auth enabled")
	}

	return cfg, nil
}

func loadAPIConfig(logger *slog.Logger) api.Config {
	cfg := api.Config{
		Addr:     ":8080",
		MaxSteps: 20000,
	}

	if v := os.Getenv("ROLLSHUTTER_HTTP_ADDR"); v != "" {
		cfg.Addr = v
	}

	if v := os.Getenv("ROLLSHUTTER_MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2 {
			logger.Warn("invalid ROLLSHUTTER_MAX_STEPS value, using default", "value", v, "default", cfg.MaxSteps)
		} else {
			cfg.MaxSteps = n
		}
	}

	cfg.TrustProxy = loadTrustProxy(logger)

	logger.Info("api config",
		"addr", cfg.Addr,
		"max_steps", cfg.MaxSteps,
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}

func loadTrustProxy(logger *slog.Logger) bool {
	v := os.Getenv("ROLLSHUTTER_TRUST_PROXY")
	if v == "" {
		return false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid ROLLSHUTTER_TRUST_PROXY value, defaulting to false", "value", v)
		return false
	}
	return b
}

func loadCacheConfig(logger *slog.Logger) cache.Config {
	cfg := cache.Config{
		TTL:             10 * time.Minute,
		MaxEntries:      64,
		SweepInterval:   30 * time.Second,
		AssemblyTimeout: 2 * time.Minute,
	}

	if v := os.Getenv("ROLLSHUTTER_CACHE_TTL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROLLSHUTTER_CACHE_TTL value, using default", "value", v, "default", 600)
		} else {
			cfg.TTL = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("ROLLSHUTTER_CACHE_MAX_ENTRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROLLSHUTTER_CACHE_MAX_ENTRIES value, using default", "value", v, "default", cfg.MaxEntries)
		} else {
			cfg.MaxEntries = n
		}
	}

	if v := os.Getenv("ROLLSHUTTER_CACHE_SWEEP_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROLLSHUTTER_CACHE_SWEEP_INTERVAL value, using default", "value", v, "default", 30)
		} else {
			cfg.SweepInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("ROLLSHUTTER_CACHE_ASSEMBLY_TIMEOUT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROLLSHUTTER_CACHE_ASSEMBLY_TIMEOUT value, using default", "value", v, "default", 120)
		} else {
			cfg.AssemblyTimeout = time.Duration(n) * time.Second
		}
	}

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: 4,
		MaxConcurrent:      256,
		BandwidthLimit:     1048576,
		KeepaliveInterval:  15 * time.Second,
		FrameInterval:      40 * time.Millisecond,
		MaxSteps:           5000,
	}

	if v := os.Getenv("ROLLSHUTTER_STREAM_MAX_CONCURRENT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROLLSHUTTER_STREAM_MAX_CONCURRENT value, using default", "value", v, "default", cfg.MaxConcurrentPerIP)
		} else {
			cfg.MaxConcurrentPerIP = n
		}
	}

	if v := os.Getenv("ROLLSHUTTER_STREAM_MAX_TOTAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROLLSHUTTER_STREAM_MAX_TOTAL value, using default", "value", v, "default", cfg.MaxConcurrent)
		} else {
			cfg.MaxConcurrent = n
		}
	}

	if v := os.Getenv("ROLLSHUTTER_STREAM_BANDWIDTH_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			logger.Warn("invalid ROLLSHUTTER_STREAM_BANDWIDTH_LIMIT value, using default", "value", v, "default", cfg.BandwidthLimit)
		} else {
			cfg.BandwidthLimit = n
		}
	}

	if v := os.Getenv("ROLLSHUTTER_STREAM_KEEPALIVE_INTERVAL"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROLLSHUTTER_STREAM_KEEPALIVE_INTERVAL value, using default", "value", v, "default", 15)
		} else {
			cfg.KeepaliveInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("ROLLSHUTTER_STREAM_FRAME_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			logger.Warn("invalid ROLLSHUTTER_STREAM_FRAME_INTERVAL_MS value, using default", "value", v, "default", 40)
		} else {
			cfg.FrameInterval = time.Duration(n) * time.Millisecond
		}
	}

	if v := os.Getenv("ROLLSHUTTER_STREAM_MAX_STEPS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 2 {
			logger.Warn("invalid ROLLSHUTTER_STREAM_MAX_STEPS value, using default", "value", v, "default", cfg.MaxSteps)
		} else {
			cfg.MaxSteps = n
		}
	}

	cfg.TrustProxy = loadTrustProxy(logger)

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_concurrent", cfg.MaxConcurrent,
		"bandwidth_limit", cfg.BandwidthLimit,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"frame_interval_ms", cfg.FrameInterval.Milliseconds(),
	)

	return cfg
}
