package tracking

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// InertialSensor reports a cumulative, clockwise-positive heading in radians.
type InertialSensor interface {
	Heading() (float64, error)
	Calibrate(ctx context.Context) error
	SetHeading(heading float64) error
}

// TrackingWheel reports cumulative distance travelled. ok is false while the
// encoder is unavailable.
type TrackingWheel interface {
	Distance() (distance float64, ok bool)
	Offset() float64
}

// Inertial is an IMU together with its fusion settings.
type Inertial struct {
	Sensor InertialSensor
	// Scalar corrects the IMU's gain; larger values make it report more rotation.
	Scalar float64
	// Weight is this IMU's share among IMUs that produced a reading this tick.
	Weight float64
}

// SensorSet is the immutable sensor configuration shared by a Tracker.
type SensorSet struct {
	imus        []Inertial
	horizontals []TrackingWheel
	verticals   []TrackingWheel

	// Family weights. They need not sum to one; fusion normalizes over the
	// families that produced an estimate.
	imuWeight        float64
	horizontalWeight float64
	verticalWeight   float64
}

var ErrNoSensors = errors.New("tracking: sensor set is empty")

func NewSensorSet(
	imus []Inertial,
	horizontals, verticals []TrackingWheel,
	imuWeight, horizontalWeight, verticalWeight float64,
) *SensorSet {
	return &SensorSet{
		imus:             append([]Inertial(nil), imus...),
		horizontals:      append([]TrackingWheel(nil), horizontals...),
		verticals:        append([]TrackingWheel(nil), verticals...),
		imuWeight:        imuWeight,
		horizontalWeight: horizontalWeight,
		verticalWeight:   verticalWeight,
	}
}

func (s *SensorSet) IMUCount() int        { return len(s.imus) }
func (s *SensorSet) HorizontalCount() int { return len(s.horizontals) }
func (s *SensorSet) VerticalCount() int   { return len(s.verticals) }

// Validate reports configuration mistakes that would make fusion produce NaN
// or silently ignore a sensor. The tracker does not repeat these checks at
// runtime.
func (s *SensorSet) Validate() error {
	if len(s.imus)+len(s.horizontals)+len(s.verticals) == 0 {
		return ErrNoSensors
	}

	var err error
	for _, w := range []struct {
		name  string
		value float64
	}{
		{"imu weight", s.imuWeight},
		{"horizontal weight", s.horizontalWeight},
		{"vertical weight", s.verticalWeight},
	} {
		if w.value < 0 {
			err = multierr.Append(err, errors.Errorf("%s must be non-negative, got %f", w.name, w.value))
		}
	}
	for i, imu := range s.imus {
		if imu.Sensor == nil {
			err = multierr.Append(err, errors.Errorf("imu %d has no sensor", i))
		}
		if imu.Weight < 0 {
			err = multierr.Append(err, errors.Errorf("imu %d weight must be non-negative, got %f", i, imu.Weight))
		}
	}
	err = multierr.Append(err, validateOffsets("horizontal", s.horizontals))
	err = multierr.Append(err, validateOffsets("vertical", s.verticals))
	return err
}

func validateOffsets(family string, wheels []TrackingWheel) error {
	var err error
	for i := range wheels {
		if wheels[i] == nil {
			err = multierr.Append(err, errors.Errorf("%s wheel %d is nil", family, i))
			continue
		}
		for j := i + 1; j < len(wheels); j++ {
			if wheels[j] != nil && wheels[i].Offset() == wheels[j].Offset() {
				err = multierr.Append(err, errors.Errorf(
					"%s wheels %d and %d share offset %f", family, i, j, wheels[i].Offset()))
			}
		}
	}
	return err
}
