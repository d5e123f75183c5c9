package config

import (
	"math"
	"sort"
	"time"
)

// Presets are named, ready-to-run scenarios.
var Presets = map[string]func() *Config{
	"straight": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "straight"
		cfg.Description = "drive 48 units forward and settle"
		cfg.Steps = []Step{{Kind: StepPoint, X: 48, Timeout: 6 * time.Second}}
		return cfg
	},
	"reverse": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "reverse"
		cfg.Description = "back up 24 units while facing +Y"
		cfg.Start.Heading = math.Pi / 2
		cfg.Steps = []Step{{Kind: StepRelative, Distance: -24, Timeout: 5 * time.Second}}
		return cfg
	},
	"square": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "square"
		cfg.Description = "visit the corners of a 24 unit square, chaining async moves"
		cfg.Motion.EarlyExitRange = 2
		cfg.Steps = []Step{
			{Kind: StepPoint, X: 24, Timeout: 4 * time.Second, Async: true},
			{Kind: StepPoint, X: 24, Y: 24, Timeout: 4 * time.Second, Async: true},
			{Kind: StepPoint, Y: 24, Timeout: 4 * time.Second, Async: true},
			{Kind: StepPoint, Timeout: 4 * time.Second, Async: true},
			{Kind: StepWait},
		}
		return cfg
	},
	"dropout": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "dropout"
		cfg.Description = "unreliable sensors: dropped readings, drift and a failed calibration"
		cfg.Tracker.IMUs = []IMUConfig{{Scalar: 1, Weight: 1, Drift: 0.002, Dropout: 0.2, FailCalibrations: 1}}
		cfg.Tracker.Horizontals = []WheelConfig{{Offset: 2, Noise: 0.01, Dropout: 0.1}}
		cfg.Tracker.Verticals = []WheelConfig{{Offset: -5, Noise: 0.01, Dropout: 0.1}, {Offset: 5, Noise: 0.01}}
		cfg.Steps = []Step{
			{Kind: StepPoint, X: 36, Y: 12, Timeout: 6 * time.Second, Async: true},
			{Kind: StepWait, Distance: 18},
			{Kind: StepCancel},
			{Kind: StepRelative, Distance: -12, Timeout: 4 * time.Second},
		}
		return cfg
	},
	"two-imus": func() *Config {
		cfg := DefaultConfig()
		cfg.Name = "two-imus"
		cfg.Description = "two weighted IMUs with opposite drift, heading from IMUs only"
		cfg.Tracker.IMUWeight = 1
		cfg.Tracker.HorizontalWeight = 0
		cfg.Tracker.VerticalWeight = 0
		cfg.Tracker.IMUs = []IMUConfig{
			{Scalar: 1, Weight: 2, Drift: 0.004},
			{Scalar: 1, Weight: 1, Drift: -0.008},
		}
		cfg.Steps = []Step{
			{Kind: StepPoint, X: 24, Y: 24, Timeout: 6 * time.Second},
			{Kind: StepSleep, Duration: 200 * time.Millisecond},
			{Kind: StepRelative, Distance: 12, Timeout: 4 * time.Second},
		}
		return cfg
	},
}

// GetPreset returns a fresh copy of the named preset, or nil.
func GetPreset(name string) *Config {
	build, ok := Presets[name]
	if !ok {
		return nil
	}
	return build()
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
