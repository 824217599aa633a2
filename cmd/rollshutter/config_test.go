package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dickie-roper/rolling-shutter/internal/photo"
	"github.com/dickie-roper/rolling-shutter/internal/scene"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

// parsedCmd returns the photo subcommand with args parsed against the full
// flag tree.
func parsedCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	root := newRootCmd(testLogger())
	cmd, rest, err := root.Find(append([]string{"photo"}, args...))
	require.NoError(t, err)
	require.NoError(t, cmd.ParseFlags(rest))
	return cmd
}

func TestResolveScene_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scene.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps: 300\nduration: 2\nfrequency: 3\nblade_count: 4\n"), 0o644))

	t.Setenv("ROLLSHUTTER_FREQUENCY", "5")
	t.Setenv("ROLLSHUTTER_DURATION", "0.5")

	cmd := parsedCmd(t, "--config", path, "--duration", "0.25")
	cfg, err := resolveScene(cmd, testLogger(), scene.Default())
	require.NoError(t, err)

	assert.Equal(t, 300, cfg.Steps, "file beats default")
	assert.Equal(t, 5.0, cfg.FrequencyHz, "env beats file")
	assert.Equal(t, 0.25, cfg.ShutterDuration, "flag beats env")
	assert.Len(t, cfg.Blades, 4)
}

func TestResolveScene_Defaults(t *testing.T) {
	cfg, err := resolveScene(parsedCmd(t), testLogger(), scene.DefaultAnimation())
	require.NoError(t, err)
	assert.Equal(t, scene.DefaultAnimation().Key(), cfg.Key())
}

func TestResolveScene_InvalidEnvIgnored(t *testing.T) {
	t.Setenv("ROLLSHUTTER_STEPS", "lots")

	cfg, err := resolveScene(parsedCmd(t), testLogger(), scene.Default())
	require.NoError(t, err)
	assert.Equal(t, scene.DefaultPhotoSteps, cfg.Steps)
}

func TestResolveScene_InvalidFlagRejected(t *testing.T) {
	_, err := resolveScene(parsedCmd(t, "--steps", "1"), testLogger(), scene.Default())
	require.Error(t, err)
	assert.True(t, scene.IsConfigError(err))

	_, err = resolveScene(parsedCmd(t, "--phases", "0,x"), testLogger(), scene.Default())
	require.Error(t, err)
	assert.True(t, scene.IsConfigError(err))
}

func TestResolveScene_PhasesFlag(t *testing.T) {
	cfg, err := resolveScene(parsedCmd(t, "--blades", "7", "--phases", "0,1.5"), testLogger(), scene.Default())
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1.5}, cfg.Phases())
}

func TestAssemblerFor_Workers(t *testing.T) {
	t.Setenv("ROLLSHUTTER_WORKERS", "3")

	_, cfg, err := assemblerFor(parsedCmd(t), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Workers)

	_, cfg, err = assemblerFor(parsedCmd(t, "--workers", "2"), testLogger())
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.Workers)

	_, _, err = assemblerFor(parsedCmd(t, "--workers", "0"), testLogger())
	assert.Error(t, err)
}

func TestLoadStreamConfig(t *testing.T) {
	t.Setenv("ROLLSHUTTER_STREAM_MAX_CONCURRENT", "2")
	t.Setenv("ROLLSHUTTER_STREAM_BANDWIDTH_LIMIT", "0")
	t.Setenv("ROLLSHUTTER_STREAM_FRAME_INTERVAL_MS", "-5")
	t.Setenv("ROLLSHUTTER_TRUST_PROXY", "true")

	cfg := loadStreamConfig(testLogger())
	assert.Equal(t, 2, cfg.MaxConcurrentPerIP)
	assert.Equal(t, 0, cfg.BandwidthLimit, "zero disables shaping")
	assert.Equal(t, 40*time.Millisecond, cfg.FrameInterval, "bad value keeps default")
	assert.True(t, cfg.TrustProxy)
}

func TestLoadAuthConfig(t *testing.T) {
	t.Setenv("ROLLSHUTTER_AUTH_ENABLED", "true")
	_, err := loadAuthConfig(testLogger())
	assert.Error(t, err, "token required")

	t.Setenv("ROLLSHUTTER_AUTH_TOKEN", "abc")
	cfg, err := loadAuthConfig(testLogger())
	require.NoError(t, err)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "abc", cfg.Token)

	t.Setenv("ROLLSHUTTER_AUTH_ENABLED", "sometimes")
	_, err = loadAuthConfig(testLogger())
	assert.Error(t, err)
}

func TestLoadCacheConfig(t *testing.T) {
	t.Setenv("ROLLSHUTTER_CACHE_TTL", "60")
	t.Setenv("ROLLSHUTTER_CACHE_MAX_ENTRIES", "nope")
	t.Setenv("ROLLSHUTTER_CACHE_ASSEMBLY_TIMEOUT", "30")

	cfg := loadCacheConfig(testLogger())
	assert.Equal(t, time.Minute, cfg.TTL)
	assert.Equal(t, 64, cfg.MaxEntries)
	assert.Equal(t, 30*time.Second, cfg.AssemblyTimeout)
}

func TestPrintSummary(t *testing.T) {
	res, err := photo.NewAssembler(photo.Config{Workers: 1}, testLogger()).Assemble(context.Background(), scene.Config{
		Steps:           5,
		ShutterDuration: 1,
		FrequencyHz:     1,
		Blades:          []scene.Blade{{Phase: 0}},
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, printSummary(&buf, res))
	out := buf.String()
	assert.Contains(t, out, "steps 5")
	assert.Contains(t, out, "BLADE")
	assert.Contains(t, out, "1 sample(s) had no finite crossing")
}

func TestSelfTest(t *testing.T) {
	probe := selfTest(testLogger())
	assert.NoError(t, probe(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, probe(ctx))
}

// counterValue reads a registered counter from the default gatherer.
func counterValue(t *testing.T, name string) float64 {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			return mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s not registered", name)
	return 0
}

func TestSelfTest_LeavesAssemblyMetricsAlone(t *testing.T) {
	probe := selfTest(testLogger())

	// Make sure the assembly series exist before reading them.
	_, err := photo.NewAssembler(photo.Config{Workers: 1}, testLogger()).Assemble(context.Background(), scene.Config{
		Steps:           5,
		ShutterDuration: 1,
		FrequencyHz:     1,
		Blades:          []scene.Blade{{Phase: 0}},
	})
	require.NoError(t, err)

	names := []string{
		"rollshutter_assemblies_total",
		"rollshutter_blades_solved_total",
		"rollshutter_points_retained_total",
		"rollshutter_degenerate_points_total",
	}
	before := make(map[string]float64, len(names))
	for _, n := range names {
		before[n] = counterValue(t, n)
	}

	for range 5 {
		require.NoError(t, probe(context.Background()))
	}

	for _, n := range names {
		assert.Equal(t, before[n], counterValue(t, n), n)
	}
}

func TestPhotoCommand_WritesPNG(t *testing.T) {
	out := filepath.Join(t.TempDir(), "p.png")

	root := newRootCmd(testLogger())
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{"photo", "--steps", "50", "--blades", "2", "--size", "128", "--out", out})
	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
	assert.Contains(t, stdout.String(), "total")
}

func TestAnimateCommand_WritesGIF(t *testing.T) {
	out := filepath.Join(t.TempDir(), "a.gif")

	root := newRootCmd(testLogger())
	root.SetOut(io.Discard)
	root.SetArgs([]string{"animate", "--steps", "12", "--stride", "4", "--size", "96", "--out", out})
	require.NoError(t, root.ExecuteContext(context.Background()))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("GIF89a")))
}
