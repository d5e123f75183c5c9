package config

import (
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

var ErrInvalidConfig = errors.New("invalid config")

func invalid(format string, args ...interface{}) error {
	return errors.Wrapf(ErrInvalidConfig, format, args...)
}

// Validate reports every problem in the configuration at once.
func (c *Config) Validate() error {
	var errs error
	add := func(err error) { errs = multierr.Append(errs, err) }

	t := c.Tracker
	if t.Period <= 0 {
		add(invalid("tracker.period must be positive"))
	}
	for name, w := range map[string]float64{
		"imu_weight":        t.IMUWeight,
		"horizontal_weight": t.HorizontalWeight,
		"vertical_weight":   t.VerticalWeight,
	} {
		if w < 0 {
			add(invalid("tracker.%s must be non-negative", name))
		}
	}
	if t.IMUWeight <= 0 && t.HorizontalWeight <= 0 && t.VerticalWeight <= 0 {
		add(invalid("tracker needs at least one positive family weight"))
	}
	if len(t.Verticals) == 0 {
		add(invalid("tracker needs at least one vertical wheel"))
	}
	for i, imu := range t.IMUs {
		if imu.Scalar == 0 {
			add(invalid("tracker.imus[%d].scalar must be non-zero", i))
		}
		if imu.Weight < 0 {
			add(invalid("tracker.imus[%d].weight must be non-negative", i))
		}
		if !isProbability(imu.Dropout) {
			add(invalid("tracker.imus[%d].dropout must be within [0, 1]", i))
		}
	}
	add(validateWheels("horizontals", t.Horizontals))
	add(validateWheels("verticals", t.Verticals))

	add(validatePID("linear", c.Linear))
	add(validatePID("angular", c.Angular))

	for i, tol := range c.Tolerances {
		if tol.Band < 0 || tol.Duration < 0 || tol.Samples < 0 {
			add(invalid("tolerances[%d] must be non-negative", i))
		}
	}

	m := c.Motion
	if m.WriteInterval <= 0 {
		add(invalid("motion.write_interval must be positive"))
	}
	if m.MaxLinearSpeed <= 0 || m.MaxLinearSpeed > 1 {
		add(invalid("motion.max_linear_speed must be within (0, 1]"))
	}
	if m.MaxAngularSpeed <= 0 || m.MaxAngularSpeed > 1 {
		add(invalid("motion.max_angular_speed must be within (0, 1]"))
	}
	if m.MinLinearSpeed < 0 || m.MinLinearSpeed > m.MaxLinearSpeed {
		add(invalid("motion.min_linear_speed must be within [0, max_linear_speed]"))
	}
	if m.LinearSlew < 0 || m.AngularSlew < 0 || m.EarlyExitRange < 0 || m.NearThreshold < 0 {
		add(invalid("motion slews, early exit range and near threshold must be non-negative"))
	}

	p := c.Plant
	if p.TrackWidth <= 0 {
		add(invalid("plant.track_width must be positive"))
	}
	if p.MaxSpeed <= 0 {
		add(invalid("plant.max_speed must be positive"))
	}
	if p.MotorLag < 0 {
		add(invalid("plant.motor_lag must be non-negative"))
	}
	if p.Step <= 0 {
		add(invalid("plant.step must be positive"))
	}

	for i, step := range c.Steps {
		add(validateStep(i, step))
	}
	return errs
}

func isProbability(p float64) bool {
	return p >= 0 && p <= 1
}

func validateWheels(family string, wheels []WheelConfig) error {
	var errs error
	seen := make(map[float64]int, len(wheels))
	for i, w := range wheels {
		if j, ok := seen[w.Offset]; ok {
			errs = multierr.Append(errs, invalid("tracker.%s[%d] and [%d] share offset %v", family, j, i, w.Offset))
		}
		seen[w.Offset] = i
		if w.Noise < 0 {
			errs = multierr.Append(errs, invalid("tracker.%s[%d].noise must be non-negative", family, i))
		}
		if !isProbability(w.Dropout) {
			errs = multierr.Append(errs, invalid("tracker.%s[%d].dropout must be within [0, 1]", family, i))
		}
	}
	return errs
}

func validatePID(name string, p PIDConfig) error {
	var errs error
	if p.Kind != "" && p.Kind != "pid" && p.Kind != "none" {
		errs = multierr.Append(errs, invalid("%s.kind %q is not pid or none", name, p.Kind))
	}
	if p.WindupRange < 0 {
		errs = multierr.Append(errs, invalid("%s.windup_range must be non-negative", name))
	}
	return errs
}

func validateStep(i int, s Step) error {
	var errs error
	switch s.Kind {
	case StepPoint, StepRelative, StepWait, StepCancel:
	case StepSleep:
		if s.Duration <= 0 {
			errs = multierr.Append(errs, invalid("steps[%d]: sleep needs a positive duration", i))
		}
	default:
		errs = multierr.Append(errs, invalid("steps[%d]: unknown kind %q", i, s.Kind))
	}
	if s.Timeout < 0 {
		errs = multierr.Append(errs, invalid("steps[%d].timeout must be non-negative", i))
	}
	if negative(s.MaxSpeed, s.MinSpeed, s.EarlyExit, s.LinearSlew, s.AngularSlew) || (s.MaxSpeed != nil && *s.MaxSpeed > 1) {
		errs = multierr.Append(errs, invalid("steps[%d]: speeds and limits must be non-negative and speeds at most 1", i))
	}
	return errs
}

func negative(values ...*float64) bool {
	for _, v := range values {
		if v != nil && *v < 0 {
			return true
		}
	}
	return false
}
