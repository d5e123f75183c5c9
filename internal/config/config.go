package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/motionlab/internal/control"
	"github.com/san-kum/motionlab/internal/geom"
	"github.com/san-kum/motionlab/internal/motion"
)

const (
	DefaultTrackerPeriod = 10 * time.Millisecond
	DefaultWriteInterval = 5 * time.Millisecond
	DefaultPlantStep     = 5 * time.Millisecond
	DefaultTrackWidth    = 12.0
	DefaultMaxSpeed      = 60.0
	DefaultMotorLag      = 0.05
	DefaultLinearKp      = 0.1
	DefaultAngularKp     = 0.8
)

// Step kinds.
const (
	StepPoint    = "point"
	StepRelative = "relative"
	StepWait     = "wait"
	StepSleep    = "sleep"
	StepCancel   = "cancel"
)

type Config struct {
	Name        string              `yaml:"name" toml:"name"`
	Description string              `yaml:"description,omitempty" toml:"description,omitempty"`
	Start       geom.Pose           `yaml:"start" toml:"start"`
	Tracker     TrackerConfig       `yaml:"tracker" toml:"tracker"`
	Linear      PIDConfig           `yaml:"linear" toml:"linear"`
	Angular     PIDConfig           `yaml:"angular" toml:"angular"`
	Tolerances  []control.Tolerance `yaml:"tolerances" toml:"tolerances"`
	Motion      MotionConfig        `yaml:"motion" toml:"motion"`
	Plant       PlantConfig         `yaml:"plant" toml:"plant"`
	Steps       []Step              `yaml:"steps" toml:"steps"`
}

type TrackerConfig struct {
	Period           time.Duration `yaml:"period" toml:"period"`
	IMUWeight        float64       `yaml:"imu_weight" toml:"imu_weight"`
	HorizontalWeight float64       `yaml:"horizontal_weight" toml:"horizontal_weight"`
	VerticalWeight   float64       `yaml:"vertical_weight" toml:"vertical_weight"`
	IMUs             []IMUConfig   `yaml:"imus" toml:"imus"`
	Horizontals      []WheelConfig `yaml:"horizontals" toml:"horizontals"`
	Verticals        []WheelConfig `yaml:"verticals" toml:"verticals"`
}

// IMUConfig describes one inertial sensor. Drift, Dropout and
// FailCalibrations only affect the simulated sensor.
type IMUConfig struct {
	Scalar           float64 `yaml:"scalar" toml:"scalar"`
	Weight           float64 `yaml:"weight" toml:"weight"`
	Drift            float64 `yaml:"drift,omitempty" toml:"drift,omitempty"`
	Dropout          float64 `yaml:"dropout,omitempty" toml:"dropout,omitempty"`
	FailCalibrations int     `yaml:"fail_calibrations,omitempty" toml:"fail_calibrations,omitempty"`
}

type WheelConfig struct {
	Offset  float64 `yaml:"offset" toml:"offset"`
	Noise   float64 `yaml:"noise,omitempty" toml:"noise,omitempty"`
	Dropout float64 `yaml:"dropout,omitempty" toml:"dropout,omitempty"`
}

// PIDConfig selects a feedback controller. Kind is "pid" (the default) or
// "none".
type PIDConfig struct {
	Kind            string  `yaml:"kind,omitempty" toml:"kind,omitempty"`
	Kp              float64 `yaml:"kp" toml:"kp"`
	Ki              float64 `yaml:"ki" toml:"ki"`
	Kd              float64 `yaml:"kd" toml:"kd"`
	WindupRange     float64 `yaml:"windup_range" toml:"windup_range"`
	ResetOnSignFlip bool    `yaml:"reset_on_sign_flip" toml:"reset_on_sign_flip"`
}

// Build constructs the configured controller.
func (p PIDConfig) Build() (control.FeedbackController, error) {
	return control.New(p.Kind, p.Params())
}

// Params returns the gains in the form control.New expects.
func (p PIDConfig) Params() map[string]float64 {
	reset := 0.0
	if p.ResetOnSignFlip {
		reset = 1
	}
	return map[string]float64{
		"kp":                 p.Kp,
		"ki":                 p.Ki,
		"kd":                 p.Kd,
		"windup_range":       p.WindupRange,
		"reset_on_sign_flip": reset,
	}
}

// SetGain sets a controller gain addressed as "<loop>.<gain>", for example
// "linear.kp" or "angular.windup_range".
func (c *Config) SetGain(name string, value float64) error {
	loop, gain, ok := strings.Cut(name, ".")
	if !ok {
		return errors.Errorf("gain %q: want <loop>.<gain>", name)
	}
	var pid *PIDConfig
	switch loop {
	case "linear":
		pid = &c.Linear
	case "angular":
		pid = &c.Angular
	default:
		return errors.Errorf("gain %q: unknown loop %q", name, loop)
	}
	switch gain {
	case "kp":
		pid.Kp = value
	case "ki":
		pid.Ki = value
	case "kd":
		pid.Kd = value
	case "windup_range":
		pid.WindupRange = value
	default:
		return errors.Errorf("gain %q: unknown gain %q", name, gain)
	}
	return nil
}

type MotionConfig struct {
	motion.MoveToPointParameters `yaml:",inline"`
	WriteInterval                time.Duration `yaml:"write_interval" toml:"write_interval"`
}

// PlantConfig describes the simulated chassis. MaxSpeed is in distance units
// per second at a velocity fraction of 1.
type PlantConfig struct {
	TrackWidth float64       `yaml:"track_width" toml:"track_width"`
	MaxSpeed   float64       `yaml:"max_speed" toml:"max_speed"`
	MotorLag   float64       `yaml:"motor_lag" toml:"motor_lag"`
	Step       time.Duration `yaml:"step" toml:"step"`
	Seed       int64         `yaml:"seed" toml:"seed"`
}

// Step is one entry of a motion script. Nil motion fields fall back to the
// motion section; an explicit zero overrides it.
type Step struct {
	Kind        string        `yaml:"kind" toml:"kind"`
	X           float64       `yaml:"x,omitempty" toml:"x,omitempty"`
	Y           float64       `yaml:"y,omitempty" toml:"y,omitempty"`
	Distance    float64       `yaml:"distance,omitempty" toml:"distance,omitempty"`
	Duration    time.Duration `yaml:"duration,omitempty" toml:"duration,omitempty"`
	Timeout     time.Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`
	Async       bool          `yaml:"async,omitempty" toml:"async,omitempty"`
	Backwards   bool          `yaml:"backwards,omitempty" toml:"backwards,omitempty"`
	MinSpeed    *float64      `yaml:"min_speed,omitempty" toml:"min_speed,omitempty"`
	MaxSpeed    *float64      `yaml:"max_speed,omitempty" toml:"max_speed,omitempty"`
	EarlyExit   *float64      `yaml:"early_exit,omitempty" toml:"early_exit,omitempty"`
	LinearSlew  *float64      `yaml:"linear_slew,omitempty" toml:"linear_slew,omitempty"`
	AngularSlew *float64      `yaml:"angular_slew,omitempty" toml:"angular_slew,omitempty"`
}

// PointParams resolves the step's move-to-point parameters against defaults.
func (s Step) PointParams(defaults motion.MoveToPointParameters) motion.MoveToPointParameters {
	p := defaults
	if s.Backwards {
		p.Forwards = false
	}
	overrideIfSet(&p.MinLinearSpeed, s.MinSpeed)
	overrideIfSet(&p.MaxLinearSpeed, s.MaxSpeed)
	overrideIfSet(&p.EarlyExitRange, s.EarlyExit)
	overrideIfSet(&p.LinearSlew, s.LinearSlew)
	overrideIfSet(&p.AngularSlew, s.AngularSlew)
	return p
}

func (s Step) RelativeParams(defaults motion.MoveToPointParameters) motion.MoveRelativeParameters {
	p := s.PointParams(defaults)
	return motion.MoveRelativeParameters{
		MinLinearSpeed: p.MinLinearSpeed,
		MaxLinearSpeed: p.MaxLinearSpeed,
		EarlyExitRange: p.EarlyExitRange,
		LinearSlew:     p.LinearSlew,
	}
}

func overrideIfSet(dst, v *float64) {
	if v != nil {
		*dst = *v
	}
}

// Float returns a pointer to v, for step overrides.
func Float(v float64) *float64 {
	return &v
}

func DefaultConfig() *Config {
	return &Config{
		Name: "default",
		Tracker: TrackerConfig{
			Period:           DefaultTrackerPeriod,
			IMUWeight:        1,
			HorizontalWeight: 1,
			VerticalWeight:   1,
			IMUs:             []IMUConfig{{Scalar: 1, Weight: 1}},
			Horizontals:      []WheelConfig{{Offset: 2}},
			Verticals:        []WheelConfig{{Offset: -5}, {Offset: 5}},
		},
		Linear:     PIDConfig{Kp: DefaultLinearKp},
		Angular:    PIDConfig{Kp: DefaultAngularKp},
		Tolerances: []control.Tolerance{{Band: 1, Duration: 250 * time.Millisecond}},
		Motion: MotionConfig{
			MoveToPointParameters: motion.DefaultMoveToPointParameters(),
			WriteInterval:         DefaultWriteInterval,
		},
		Plant: PlantConfig{
			TrackWidth: DefaultTrackWidth,
			MaxSpeed:   DefaultMaxSpeed,
			MotorLag:   DefaultMotorLag,
			Step:       DefaultPlantStep,
			Seed:       1,
		},
		Steps: []Step{{Kind: StepPoint, X: 24, Timeout: 5 * time.Second}},
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load decodes the file at path onto DefaultConfig. Files ending in .toml are
// read as TOML, anything else as YAML.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if isTOML(path) {
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, errors.Wrapf(err, "decoding %s", path)
		}
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "decoding %s", path)
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	var data []byte
	if isTOML(path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(cfg); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
