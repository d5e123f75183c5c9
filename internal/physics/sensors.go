package physics

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

var (
	ErrDropout           = errors.New("physics: sensor reading dropped")
	ErrCalibrationFailed = errors.New("physics: imu calibration failed")
)

// IMUModel describes the imperfections of a simulated inertial sensor.
type IMUModel struct {
	// Drift in radians per second of simulated time.
	Drift float64
	// Probability that a reading fails.
	Dropout float64
	// Number of calibration attempts that fail before one succeeds.
	FailCalibrations int
	CalibrationTime  time.Duration
}

// SimIMU reports the plant's heading the way a clockwise-positive gyro does.
// It implements tracking.InertialSensor.
type SimIMU struct {
	mu     sync.Mutex
	plant  *DiffDrive
	model  IMUModel
	rng    *rand.Rand
	clock  clock.Clock
	offset float64
}

func NewSimIMU(plant *DiffDrive, model IMUModel, seed int64) *SimIMU {
	return &SimIMU{
		plant: plant,
		model: model,
		rng:   rand.New(rand.NewSource(seed)),
		clock: clock.New(),
	}
}

func (s *SimIMU) WithClock(clk clock.Clock) *SimIMU {
	s.clock = clk
	return s
}

func (s *SimIMU) raw() float64 {
	return -s.plant.Heading() + s.model.Drift*s.plant.Time()
}

func (s *SimIMU) Heading() (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.model.Dropout > 0 && s.rng.Float64() < s.model.Dropout {
		return 0, ErrDropout
	}
	return s.raw() + s.offset, nil
}

func (s *SimIMU) Calibrate(ctx context.Context) error {
	s.mu.Lock()
	if s.model.FailCalibrations > 0 {
		s.model.FailCalibrations--
		s.mu.Unlock()
		return ErrCalibrationFailed
	}
	wait := s.model.CalibrationTime
	s.mu.Unlock()

	if wait > 0 {
		timer := s.clock.Timer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return s.SetHeading(0)
}

func (s *SimIMU) SetHeading(heading float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.offset = heading - s.raw()
	return nil
}

// WheelModel describes the imperfections of a simulated tracking wheel.
type WheelModel struct {
	// Standard deviation of the additive reading noise.
	Noise float64
	// Probability that a reading is unavailable.
	Dropout float64
}

// SimWheel is an unpowered tracking wheel riding on the plant. It implements
// tracking.TrackingWheel.
type SimWheel struct {
	mu       sync.Mutex
	plant    *DiffDrive
	offset   float64
	vertical bool
	model    WheelModel
	rng      *rand.Rand
}

func NewSimWheel(plant *DiffDrive, offset float64, vertical bool, model WheelModel, seed int64) *SimWheel {
	return &SimWheel{
		plant:    plant,
		offset:   offset,
		vertical: vertical,
		model:    model,
		rng:      rand.New(rand.NewSource(seed)),
	}
}

func (w *SimWheel) Distance() (float64, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.model.Dropout > 0 && w.rng.Float64() < w.model.Dropout {
		return 0, false
	}
	d := w.plant.WheelTravel(w.offset, w.vertical)
	if w.model.Noise > 0 {
		d += w.rng.NormFloat64() * w.model.Noise
	}
	if math.IsNaN(d) {
		return 0, false
	}
	return d, true
}

func (w *SimWheel) Offset() float64 {
	return w.offset
}
