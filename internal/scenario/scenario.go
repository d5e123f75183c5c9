// Package scenario assembles a simulated robot from a config and runs its
// motion script.
package scenario

import (
	"context"
	"sync"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/san-kum/motionlab/internal/config"
	"github.com/san-kum/motionlab/internal/control"
	"github.com/san-kum/motionlab/internal/geom"
	"github.com/san-kum/motionlab/internal/metrics"
	"github.com/san-kum/motionlab/internal/motion"
	"github.com/san-kum/motionlab/internal/physics"
	"github.com/san-kum/motionlab/internal/storage"
	"github.com/san-kum/motionlab/internal/tracking"
)

// Robot is a simulated chassis with its tracker and motion controller.
type Robot struct {
	Config    *config.Config
	Plant     *physics.DiffDrive
	Tracker   *tracking.Tracker
	Chassis   *motion.Chassis
	Collector *metrics.Collector
	Trace     *Recorder

	settings motion.Settings
	logger   *zap.Logger
}

var ErrNotTunable = errors.New("scenario: controller has no tunable gains")

func (r *Robot) controller(loop string) (control.Configurable, error) {
	var ctrl control.FeedbackController
	switch loop {
	case "linear":
		ctrl = r.settings.Linear
	case "angular":
		ctrl = r.settings.Angular
	default:
		return nil, errors.Errorf("unknown loop %q", loop)
	}
	c, ok := ctrl.(control.Configurable)
	if !ok {
		return nil, errors.Wrap(ErrNotTunable, loop)
	}
	return c, nil
}

// Gain reads a live controller parameter, for example ("linear", "Kp").
func (r *Robot) Gain(loop, param string) (float64, error) {
	c, err := r.controller(loop)
	if err != nil {
		return 0, err
	}
	v, ok := c.GetParams()[param]
	if !ok {
		return 0, errors.Errorf("%s controller has no parameter %q", loop, param)
	}
	return v, nil
}

// Tune changes a controller parameter while the robot runs. The change lasts
// until the controller is rebuilt; it is not written back to the config.
func (r *Robot) Tune(loop, param string, value float64) error {
	c, err := r.controller(loop)
	if err != nil {
		return err
	}
	if err := c.SetParam(param, value); err != nil {
		return err
	}
	r.logger.Info("tuned controller",
		zap.String("loop", loop),
		zap.String("param", param),
		zap.Float64("value", value))
	return nil
}

// Build validates cfg and wires the plant, simulated sensors, tracker and
// chassis together.
func Build(cfg *config.Config, logger *zap.Logger) (*Robot, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := cfg.Plant
	plant := physics.NewDiffDrive(p.TrackWidth, p.MaxSpeed, p.MotorLag)
	plant.SetPose(cfg.Start)

	sensors := buildSensors(cfg, plant)
	if err := sensors.Validate(); err != nil {
		return nil, err
	}
	tracker := tracking.New(sensors,
		tracking.WithLogger(logger),
		tracking.WithPeriod(cfg.Tracker.Period))
	tracker.SetPosition(cfg.Start)

	linear, err := cfg.Linear.Build()
	if err != nil {
		return nil, errors.Wrap(err, "linear controller")
	}
	angular, err := cfg.Angular.Build()
	if err != nil {
		return nil, errors.Wrap(err, "angular controller")
	}
	settings := motion.Settings{
		Linear:           linear,
		Angular:          angular,
		LinearTolerances: control.NewToleranceGroup(cfg.Tolerances...),
	}

	trace := NewRecorder()
	collector := metrics.NewCollector()
	chassis := motion.NewChassis(plant, tracker, settings,
		motion.WithLogger(logger),
		motion.WithWriteInterval(cfg.Motion.WriteInterval),
		motion.WithObserver(trace),
		motion.WithObserver(collector))

	return &Robot{
		Config:    cfg,
		Plant:     plant,
		Tracker:   tracker,
		Chassis:   chassis,
		Collector: collector,
		Trace:     trace,
		settings:  settings,
		logger:    logger.Named("scenario"),
	}, nil
}

// buildSensors derives one seed per sensor from the plant seed so runs are
// reproducible.
func buildSensors(cfg *config.Config, plant *physics.DiffDrive) *tracking.SensorSet {
	seed := cfg.Plant.Seed
	next := func() int64 {
		seed++
		return seed
	}

	t := cfg.Tracker
	imus := make([]tracking.Inertial, len(t.IMUs))
	for i, c := range t.IMUs {
		imu := physics.NewSimIMU(plant, physics.IMUModel{
			Drift:            c.Drift,
			Dropout:          c.Dropout,
			FailCalibrations: c.FailCalibrations,
		}, next())
		imus[i] = tracking.Inertial{Sensor: imu, Scalar: c.Scalar, Weight: c.Weight}
	}
	wheels := func(cs []config.WheelConfig, vertical bool) []tracking.TrackingWheel {
		out := make([]tracking.TrackingWheel, len(cs))
		for i, c := range cs {
			out[i] = physics.NewSimWheel(plant, c.Offset, vertical,
				physics.WheelModel{Noise: c.Noise, Dropout: c.Dropout}, next())
		}
		return out
	}
	return tracking.NewSensorSet(imus, wheels(t.Horizontals, false), wheels(t.Verticals, true),
		t.IMUWeight, t.HorizontalWeight, t.VerticalWeight)
}

// Result summarizes a finished run.
type Result struct {
	Name     string
	Seed     int64
	Trace    []motion.Tick
	Motions  []metrics.Summary
	Estimate geom.Pose
	Truth    geom.Pose
	Elapsed  time.Duration
}

// Drift is the distance between the tracked and the true position.
func (r *Result) Drift() float64 {
	return r.Estimate.DistanceTo(r.Truth)
}

func (r *Result) Metadata() storage.RunMetadata {
	return storage.RunMetadata{
		Name:     r.Name,
		Seed:     r.Seed,
		Estimate: r.Estimate,
		Truth:    r.Truth,
		Drift:    r.Drift(),
		Motions:  r.Motions,
	}
}

// Run starts the plant and the tracker, executes the motion script and stops
// everything once the last motion has finished or ctx is done.
func (r *Robot) Run(ctx context.Context) (*Result, error) {
	started := time.Now()
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return r.Plant.Run(gctx, r.Config.Plant.Step)
	})

	if err := r.Tracker.Init(gctx); err != nil {
		stop()
		_ = g.Wait()
		return nil, err
	}
	defer r.Tracker.Close()

	g.Go(func() error {
		defer stop()
		return r.runSteps(gctx)
	})
	err := g.Wait()
	r.Plant.Stop()

	result := &Result{
		Name:     r.Config.Name,
		Seed:     r.Config.Plant.Seed,
		Trace:    r.Trace.Ticks(),
		Motions:  r.Collector.Summaries(),
		Estimate: r.Tracker.Position(),
		Truth:    r.Plant.Pose(),
		Elapsed:  time.Since(started),
	}
	r.logger.Info("scenario finished",
		zap.String("name", result.Name),
		zap.Stringer("estimate", result.Estimate),
		zap.Stringer("truth", result.Truth),
		zap.Float64("drift", result.Drift()))
	return result, err
}

func (r *Robot) runSteps(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			r.Chassis.Cancel()
		}
		// Async motions ignore ctx; they stop on Cancel within one write
		// interval.
		waitErr := r.Chassis.WaitUntilComplete(ctx)
		if waitErr != nil {
			r.Chassis.Cancel()
			_ = r.Chassis.WaitUntilComplete(context.Background())
		}
		if err == nil {
			err = waitErr
		}
	}()

	for i, step := range r.Config.Steps {
		r.logger.Debug("step", zap.Int("index", i), zap.String("kind", step.Kind))
		if err := r.runStep(ctx, step); err != nil {
			return errors.Wrapf(err, "step %d (%s)", i, step.Kind)
		}
	}
	return nil
}

func (r *Robot) runStep(ctx context.Context, step config.Step) error {
	c := r.Chassis
	switch step.Kind {
	case config.StepPoint:
		params := step.PointParams(r.Config.Motion.MoveToPointParameters)
		return c.MoveToPoint(ctx, r2.Point{X: step.X, Y: step.Y}, motion.MoveOptions{
			Timeout:  step.Timeout,
			Params:   &params,
			Blocking: !step.Async,
		})
	case config.StepRelative:
		params := step.RelativeParams(r.Config.Motion.MoveToPointParameters)
		return c.MoveRelative(ctx, step.Distance, motion.MoveRelativeOptions{
			Timeout:  step.Timeout,
			Params:   &params,
			Blocking: !step.Async,
		})
	case config.StepWait:
		if step.Distance > 0 {
			return c.WaitUntil(ctx, step.Distance)
		}
		return c.WaitUntilComplete(ctx)
	case config.StepSleep:
		timer := time.NewTimer(step.Duration)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	case config.StepCancel:
		c.Cancel()
		return c.WaitUntilComplete(ctx)
	default:
		return errors.Errorf("unknown step kind %q", step.Kind)
	}
}

// Recorder keeps every tick of a run. It implements motion.Observer.
type Recorder struct {
	mu    sync.Mutex
	ticks []motion.Tick
	exits int
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnTick(tick motion.Tick) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, tick)
}

func (r *Recorder) OnExit(uint64, motion.ExitReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.exits++
}

func (r *Recorder) Ticks() []motion.Tick {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]motion.Tick(nil), r.ticks...)
}

// Last returns the most recent tick, if any.
func (r *Recorder) Last() (motion.Tick, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.ticks) == 0 {
		return motion.Tick{}, false
	}
	return r.ticks[len(r.ticks)-1], true
}

func (r *Recorder) Completed() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exits
}
