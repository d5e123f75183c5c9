package motion

import (
	"time"

	"github.com/san-kum/motionlab/internal/control"
)

const (
	// DefaultNearThreshold is the linear error under which a motion counts as
	// near its target.
	DefaultNearThreshold = 5.0
	// DefaultNearMaxSpeed replaces the linear speed ceiling once near.
	DefaultNearMaxSpeed = 0.6
)

// MoveToPointParameters configure one move-to-point motion. Speeds are
// fractions of the drivetrain's full speed.
type MoveToPointParameters struct {
	Forwards        bool    `yaml:"forwards" toml:"forwards"`
	MinLinearSpeed  float64 `yaml:"min_linear_speed" toml:"min_linear_speed"`
	MaxLinearSpeed  float64 `yaml:"max_linear_speed" toml:"max_linear_speed"`
	MaxAngularSpeed float64 `yaml:"max_angular_speed" toml:"max_angular_speed"`
	EarlyExitRange  float64 `yaml:"early_exit_range" toml:"early_exit_range"`
	// Per-tick output change limits; zero disables slewing.
	LinearSlew  float64 `yaml:"linear_slew" toml:"linear_slew"`
	AngularSlew float64 `yaml:"angular_slew" toml:"angular_slew"`

	// NearThreshold and NearMaxSpeed tune the proximity latch: once the linear
	// error first drops below NearThreshold the linear ceiling becomes
	// NearMaxSpeed for the rest of the motion.
	NearThreshold float64 `yaml:"near_threshold" toml:"near_threshold"`
	NearMaxSpeed  float64 `yaml:"near_max_speed" toml:"near_max_speed"`
}

func DefaultMoveToPointParameters() MoveToPointParameters {
	return MoveToPointParameters{
		Forwards:        true,
		MinLinearSpeed:  0,
		MaxLinearSpeed:  1,
		MaxAngularSpeed: 1,
		EarlyExitRange:  0,
		NearThreshold:   DefaultNearThreshold,
		NearMaxSpeed:    DefaultNearMaxSpeed,
	}
}

// MoveRelativeParameters configure a move-relative motion. Direction comes
// from the sign of the distance.
type MoveRelativeParameters struct {
	MinLinearSpeed float64
	MaxLinearSpeed float64
	EarlyExitRange float64
	LinearSlew     float64
}

func DefaultMoveRelativeParameters() MoveRelativeParameters {
	d := DefaultMoveToPointParameters()
	return MoveRelativeParameters{
		MinLinearSpeed: d.MinLinearSpeed,
		MaxLinearSpeed: d.MaxLinearSpeed,
		EarlyExitRange: d.EarlyExitRange,
	}
}

// Settings hold the controllers a motion runs. They are reset at the start of
// every motion unless Persistent is set.
type Settings struct {
	Linear           control.FeedbackController
	Angular          control.FeedbackController
	LinearTolerances *control.ToleranceGroup
	Persistent       bool
}

func (s *Settings) Reset() {
	s.Linear.Reset()
	s.Angular.Reset()
	if s.LinearTolerances != nil {
		s.LinearTolerances.Reset()
	}
}

// MoveOptions configure a MoveToPoint call. Nil fields use the chassis
// defaults and a zero Timeout means no timeout.
type MoveOptions struct {
	Timeout  time.Duration
	Params   *MoveToPointParameters
	Settings *Settings
	// Blocking runs the control loop on the calling goroutine. By default the
	// loop runs on its own goroutine and the call returns once it has started.
	Blocking bool
}

type MoveRelativeOptions struct {
	Timeout  time.Duration
	Params   *MoveRelativeParameters
	Settings *Settings
	Blocking bool
}
