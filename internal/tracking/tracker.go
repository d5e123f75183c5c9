package tracking

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/san-kum/motionlab/internal/geom"
)

// DefaultPeriod is the update period of the background task.
const DefaultPeriod = 10 * time.Millisecond

var ErrAlreadyRunning = errors.New("tracking: tracker already started")

// Tracker maintains the fused pose estimate. All methods are safe for
// concurrent use; the background task started by Init is the only writer
// apart from SetPosition.
type Tracker struct {
	mu      sync.Mutex
	sensors *SensorSet
	logger  *zap.Logger
	clock   clock.Clock
	period  time.Duration

	pose  geom.Pose
	delta geom.Pose

	prevIMU        []reading
	prevHorizontal []reading
	prevVertical   []reading

	cancel  context.CancelFunc
	workers sync.WaitGroup
}

type Option func(*Tracker)

func WithLogger(logger *zap.Logger) Option {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

func WithClock(clk clock.Clock) Option {
	return func(t *Tracker) { t.clock = clk }
}

func WithPeriod(period time.Duration) Option {
	return func(t *Tracker) {
		if period > 0 {
			t.period = period
		}
	}
}

func New(sensors *SensorSet, opts ...Option) *Tracker {
	t := &Tracker{
		sensors:        sensors,
		logger:         zap.NewNop(),
		clock:          clock.New(),
		period:         DefaultPeriod,
		prevIMU:        make([]reading, sensors.IMUCount()),
		prevHorizontal: make([]reading, sensors.HorizontalCount()),
		prevVertical:   make([]reading, sensors.VerticalCount()),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.logger = t.logger.Named("tracker")
	return t
}

func (t *Tracker) Position() geom.Pose {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pose
}

func (t *Tracker) SetPosition(pose geom.Pose) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pose = pose
}

// Delta returns the global displacement applied by the most recent Update.
func (t *Tracker) Delta() geom.Pose {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.delta
}

// Update advances the estimate by one tick.
func (t *Tracker) Update() {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.sensors

	imuReadings := make([]reading, len(s.imus))
	imuDeltas := make([]reading, len(s.imus))
	imuWeights := make([]float64, len(s.imus))
	for i, imu := range s.imus {
		heading, err := imu.Sensor.Heading()
		if err != nil {
			t.logger.Debug("imu read failed, holding last value", zap.Int("imu", i), zap.Error(err))
		}
		imuReadings[i] = holdLast(-heading*imu.Scalar, err == nil, t.prevIMU[i])
		imuDeltas[i] = delta(imuReadings[i], t.prevIMU[i])
		imuWeights[i] = imu.Weight
	}
	imuAngle, imuOK := weightedMean(imuDeltas, imuWeights)
	t.prevIMU = imuReadings

	horizontal, horizontalDeltas := readWheels(s.horizontals, t.prevHorizontal)
	vertical, verticalDeltas := readWheels(s.verticals, t.prevVertical)
	t.prevHorizontal = horizontal
	t.prevVertical = vertical

	horizontalAngle, horizontalOK := pairAngle(horizontalDeltas, s.horizontals)
	verticalAngle, verticalOK := pairAngle(verticalDeltas, s.verticals)

	deltaAngle := fuseFamilies(
		familyEstimate{angle: imuAngle, ok: imuOK, weight: s.imuWeight},
		familyEstimate{angle: horizontalAngle, ok: horizontalOK, weight: s.horizontalWeight},
		familyEstimate{angle: verticalAngle, ok: verticalOK, weight: s.verticalWeight},
	)

	localHorizontal := localDisplacement(horizontalDeltas, s.horizontals, deltaAngle)
	localVertical := localDisplacement(verticalDeltas, s.verticals, deltaAngle)

	// Mid-tick heading approximates the mean heading at constant velocity.
	sin, cos := math.Sincos(t.pose.Heading + deltaAngle/2)

	// Facing +X: (vertical, -horizontal). Facing +Y: (horizontal, vertical).
	t.delta = geom.Pose{
		X:       localVertical*cos + localHorizontal*sin,
		Y:       localVertical*sin - localHorizontal*cos,
		Heading: deltaAngle,
	}
	t.pose.X += t.delta.X
	t.pose.Y += t.delta.Y
	t.pose.Heading += deltaAngle
}

func readWheels(wheels []TrackingWheel, prev []reading) (current, deltas []reading) {
	current = make([]reading, len(wheels))
	deltas = make([]reading, len(wheels))
	for i, wheel := range wheels {
		distance, ok := wheel.Distance()
		current[i] = holdLast(distance, ok, prev[i])
		deltas[i] = delta(current[i], prev[i])
	}
	return current, deltas
}

// Init calibrates every IMU and starts the periodic update task. A failed
// calibration is retried once and the IMU is then zeroed; calibration failures
// are logged, never returned. The task runs until Close is called.
func (t *Tracker) Init(ctx context.Context) error {
	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		return ErrAlreadyRunning
	}
	taskCtx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()

	if err := t.calibrate(ctx); err != nil {
		t.logger.Warn("imu calibration degraded", zap.Error(err))
	}

	t.workers.Add(1)
	go func() {
		defer t.workers.Done()
		t.run(taskCtx)
	}()
	return nil
}

func (t *Tracker) calibrate(ctx context.Context) error {
	var errs error
	for i, imu := range t.sensors.imus {
		t.logger.Info("calibrating imu", zap.Int("imu", i))
		err := imu.Sensor.Calibrate(ctx)
		if err == nil {
			continue
		}
		t.logger.Warn("imu calibration failed, retrying", zap.Int("imu", i), zap.Error(err))
		if retryErr := imu.Sensor.Calibrate(ctx); retryErr != nil {
			err = multierr.Append(err, retryErr)
		}
		if zeroErr := imu.Sensor.SetHeading(0); zeroErr != nil {
			err = multierr.Append(err, zeroErr)
		}
		errs = multierr.Append(errs, errors.Wrapf(err, "imu %d", i))
	}
	return errs
}

func (t *Tracker) run(ctx context.Context) {
	ticker := t.clock.Ticker(t.period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Update()
		}
	}
}

// Close stops the periodic task and waits for it to exit.
func (t *Tracker) Close() {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	t.workers.Wait()
}
