// Package scene holds the parameters of a simulated exposure: how finely the
// shutter sweep is sampled, how long it lasts, how fast the propeller turns,
// and where each blade starts.
package scene

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Defaults for an exposure when nothing else is configured.
const (
	DefaultPhotoSteps     = 1000
	DefaultAnimationSteps = 200
	DefaultDuration       = 1.0 // seconds
	DefaultFrequency      = 1.0 // revolutions per second
	DefaultBladeCount     = 3
)

// Blade is one rotating point. All blades of a propeller share the
// frequency and time base and differ only by phase.
type Blade struct {
	Phase float64 // radians
}

// Config describes a single exposure.
type Config struct {
	Steps           int     // shutter samples, >= 2
	ShutterDuration float64 // seconds, > 0
	FrequencyHz     float64 // revolutions per second
	Blades          []Blade
}

// EvenBlades returns n blades spaced evenly around the circle, the first at
// phase 0. EvenBlades(3) gives 0, 2π/3, 4π/3.
func EvenBlades(n int) []Blade {
	if n <= 0 {
		return nil
	}
	blades := make([]Blade, n)
	for i := range blades {
		blades[i] = Blade{Phase: 2 * math.Pi * float64(i) / float64(n)}
	}
	return blades
}

// BladesFromPhases wraps raw phase offsets (radians).
func BladesFromPhases(phases []float64) []Blade {
	blades := make([]Blade, len(phases))
	for i, p := range phases {
		blades[i] = Blade{Phase: p}
	}
	return blades
}

// Default returns the static photograph defaults.
func Default() Config {
	return Config{
		Steps:           DefaultPhotoSteps,
		ShutterDuration: DefaultDuration,
		FrequencyHz:     DefaultFrequency,
		Blades:          EvenBlades(DefaultBladeCount),
	}
}

// DefaultAnimation returns the animation defaults. Only the step count
// differs from Default.
func DefaultAnimation() Config {
	cfg := Default()
	cfg.Steps = DefaultAnimationSteps
	return cfg
}

// Validate rejects parameters that cannot describe a sweep. It never clamps.
func (c Config) Validate() error {
	if err := ValidateSweep(c.Steps, c.ShutterDuration); err != nil {
		return err
	}
	if math.IsNaN(c.FrequencyHz) || math.IsInf(c.FrequencyHz, 0) {
		return &ConfigError{Field: "frequency", Value: c.FrequencyHz, Reason: "must be finite"}
	}
	if len(c.Blades) == 0 {
		return &ConfigError{Field: "blades", Value: 0, Reason: "at least one blade is required"}
	}
	for i, b := range c.Blades {
		if math.IsNaN(b.Phase) || math.IsInf(b.Phase, 0) {
			return &ConfigError{Field: fmt.Sprintf("blades[%d].phase", i), Value: b.Phase, Reason: "must be finite"}
		}
	}
	return nil
}

// ValidateSweep checks the two parameters that define a shutter timeline.
func ValidateSweep(steps int, duration float64) error {
	if steps < 2 {
		return &ConfigError{Field: "steps", Value: steps, Reason: "must be at least 2"}
	}
	if math.IsNaN(duration) || math.IsInf(duration, 0) || duration <= 0 {
		return &ConfigError{Field: "duration", Value: duration, Reason: "must be finite and greater than 0"}
	}
	return nil
}

// Phases returns the blade phase offsets in order.
func (c Config) Phases() []float64 {
	out := make([]float64, len(c.Blades))
	for i, b := range c.Blades {
		out[i] = b.Phase
	}
	return out
}

// Key identifies the exposure for memoisation. Two configs with equal keys
// produce identical photographs.
func (c Config) Key() string {
	var sb strings.Builder
	sb.WriteString(strconv.Itoa(c.Steps))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatFloat(c.ShutterDuration, 'g', -1, 64))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatFloat(c.FrequencyHz, 'g', -1, 64))
	for _, b := range c.Blades {
		sb.WriteByte('|')
		sb.WriteString(strconv.FormatFloat(b.Phase, 'g', -1, 64))
	}
	return sb.String()
}
