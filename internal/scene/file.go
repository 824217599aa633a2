package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk scene description. Every field is optional; missing
// fields keep the value of the config the file is applied to.
//
//	steps: 700
//	duration: 1.0
//	frequency: 1.5
//	blade_count: 3        # evenly spaced, ignored when phases is set
//	phases: [0, 2.0944]   # radians
type File struct {
	Steps      *int      `yaml:"steps"`
	Duration   *float64  `yaml:"duration"`
	Frequency  *float64  `yaml:"frequency"`
	BladeCount *int      `yaml:"blade_count"`
	Phases     []float64 `yaml:"phases"`
}

// Apply overlays the fields present in f onto base.
func (f File) Apply(base Config) Config {
	cfg := base
	if f.Steps != nil {
		cfg.Steps = *f.Steps
	}
	if f.Duration != nil {
		cfg.ShutterDuration = *f.Duration
	}
	if f.Frequency != nil {
		cfg.FrequencyHz = *f.Frequency
	}
	if len(f.Phases) > 0 {
		cfg.Blades = BladesFromPhases(f.Phases)
	} else if f.BladeCount != nil {
		cfg.Blades = EvenBlades(*f.BladeCount)
	}
	return cfg
}

// ParseFile decodes a scene description. Unknown keys are rejected so typos
// do not silently fall back to defaults.
func ParseFile(data []byte) (File, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return File{}, nil
		}
		return File{}, fmt.Errorf("decoding scene file: %w", err)
	}
	return f, nil
}

// LoadFile reads the scene file at path and applies it to base.
func LoadFile(path string, base Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("reading scene file: %w", err)
	}
	f, err := ParseFile(data)
	if err != nil {
		return base, err
	}
	return f.Apply(base), nil
}
