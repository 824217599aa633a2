package scene

import (
	"net/url"
	"strconv"
	"strings"
)

// MaxBladeCount bounds the blades query parameter.
const MaxBladeCount = 64

// FromQuery overlays exposure parameters from an HTTP query onto base:
//
//	steps=700&duration=1&frequency=1.5&blades=3
//	phases=0,2.0944,4.1888   (radians, overrides blades)
//
// Malformed values are reported as *ConfigError. The result is not
// validated; call Validate before use.
func FromQuery(q url.Values, base Config) (Config, error) {
	cfg := base

	if v := q.Get("steps"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return base, &ConfigError{Field: "steps", Value: v, Reason: "must be an integer"}
		}
		cfg.Steps = n
	}

	if v := q.Get("duration"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return base, &ConfigError{Field: "duration", Value: v, Reason: "must be a number"}
		}
		cfg.ShutterDuration = f
	}

	if v := q.Get("frequency"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return base, &ConfigError{Field: "frequency", Value: v, Reason: "must be a number"}
		}
		cfg.FrequencyHz = f
	}

	if v := q.Get("phases"); v != "" {
		parts := strings.Split(v, ",")
		if len(parts) > MaxBladeCount {
			return base, &ConfigError{Field: "phases", Value: len(parts), Reason: "too many blades"}
		}
		phases := make([]float64, len(parts))
		for i, p := range parts {
			f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
			if err != nil {
				return base, &ConfigError{Field: "phases", Value: p, Reason: "must be comma-separated numbers"}
			}
			phases[i] = f
		}
		cfg.Blades = BladesFromPhases(phases)
	} else if v := q.Get("blades"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxBladeCount {
			return base, &ConfigError{Field: "blades", Value: v, Reason: "must be an integer between 1 and " + strconv.Itoa(MaxBladeCount)}
		}
		cfg.Blades = EvenBlades(n)
	}

	return cfg, nil
}
