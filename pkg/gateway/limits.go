package gateway

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Capability names one of the three external services the gateway fronts.
type Capability string

const (
	CapGenerateText Capability = "generate_text"
	CapSearch       Capability = "search"
	CapExtract      Capability = "extract_content"
)

// CapabilityLimit is the per-window budget and pacing for one capability.
type CapabilityLimit struct {
	CallsPerWindow int
	MinInterval    time.Duration
	AttemptTimeout time.Duration
}

// Limits configures the gateway's windows and pacing.
type Limits struct {
	Window       time.Duration
	Default      CapabilityLimit
	Capabilities map[Capability]CapabilityLimit
}

// limitsFile is the YAML shape. Durations are plain integers so the file
// stays trivial to write by hand.
type limitsFile struct {
	WindowSeconds int                            `yaml:"window_seconds"`
	Default       capabilityLimitFile            `yaml:"default"`
	Capabilities  map[string]capabilityLimitFile `yaml:"capabilities"`
}

type capabilityLimitFile struct {
	CallsPerWindow        int `yaml:"calls_per_window"`
	MinIntervalMs         int `yaml:"min_interval_ms"`
	AttemptTimeoutSeconds int `yaml:"attempt_timeout_seconds"`
}

// DefaultLimits returns the budgets used when no limits file is supplied.
func DefaultLimits() Limits {
	return Limits{
		Window: time.Minute,
		Default: CapabilityLimit{
			CallsPerWindow: 30,
			MinInterval:    100 * time.Millisecond,
			AttemptTimeout: 60 * time.Second,
		},
		Capabilities: map[Capability]CapabilityLimit{
			CapGenerateText: {
				CallsPerWindow: 20,
				MinInterval:    500 * time.Millisecond,
				AttemptTimeout: 120 * time.Second,
			},
			CapSearch: {
				CallsPerWindow: 30,
				MinInterval:    250 * time.Millisecond,
				AttemptTimeout: 30 * time.Second,
			},
			CapExtract: {
				CallsPerWindow: 15,
				MinInterval:    500 * time.Millisecond,
				AttemptTimeout: 45 * time.Second,
			},
		},
	}
}

// LoadLimits reads a YAML limits file, layering it over the defaults.
// An empty path returns the defaults as-is.
func LoadLimits(path string) (Limits, error) {
	limits := DefaultLimits()
	if path == "" {
		return limits, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return limits, fmt.Errorf("reading limits file: %w", err)
	}

	var file limitsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return limits, fmt.Errorf("parsing limits file %s: %w", path, err)
	}

	if file.WindowSeconds > 0 {
		limits.Window = time.Duration(file.WindowSeconds) * time.Second
	}
	limits.Default = mergeLimit(limits.Default, file.Default)
	for name, fl := range file.Capabilities {
		c := Capability(name)
		base, ok := limits.Capabilities[c]
		if !ok {
			base = limits.Default
		}
		limits.Capabilities[c] = mergeLimit(base, fl)
	}
	return limits, nil
}

func mergeLimit(base CapabilityLimit, file capabilityLimitFile) CapabilityLimit {
	if file.CallsPerWindow > 0 {
		base.CallsPerWindow = file.CallsPerWindow
	}
	if file.MinIntervalMs > 0 {
		base.MinInterval = time.Duration(file.MinIntervalMs) * time.Millisecond
	}
	if file.AttemptTimeoutSeconds > 0 {
		base.AttemptTimeout = time.Duration(file.AttemptTimeoutSeconds) * time.Second
	}
	return base
}

// limitFor resolves a capability's limit, falling back to the default.
func (l Limits) limitFor(c Capability) CapabilityLimit {
	if cl, ok := l.Capabilities[c]; ok {
		return cl
	}
	return l.Default
}
