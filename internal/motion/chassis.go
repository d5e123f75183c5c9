package motion

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/san-kum/motionlab/internal/geom"
)

// DefaultWriteInterval is the pause between drivetrain writes.
const DefaultWriteInterval = 5 * time.Millisecond

var ErrMissingController = errors.New("motion: linear and angular controllers are required")

// Side selects one half of a differential drivetrain.
type Side int

const (
	Left Side = iota
	Right
)

func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Drivetrain accepts velocity commands as fractions of full speed in [-1, 1].
type Drivetrain interface {
	SetVelocityFraction(side Side, value float64) error
}

// PoseSource is the pose estimate a chassis steers by.
type PoseSource interface {
	Position() geom.Pose
	SetPosition(pose geom.Pose)
}

// Chassis couples a drivetrain with a pose source and runs motions on it.
type Chassis struct {
	drive    Drivetrain
	tracker  PoseSource
	handler  *Handler
	settings Settings
	logger   *zap.Logger
	clock    clock.Clock
	interval time.Duration

	distance      *atomic.Float64
	distanceValid *atomic.Bool

	observerMu sync.Mutex
	observers  []Observer
}

type ChassisOption func(*Chassis)

func WithLogger(logger *zap.Logger) ChassisOption {
	return func(c *Chassis) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithClock(clk clock.Clock) ChassisOption {
	return func(c *Chassis) { c.clock = clk }
}

func WithWriteInterval(interval time.Duration) ChassisOption {
	return func(c *Chassis) {
		if interval > 0 {
			c.interval = interval
		}
	}
}

// WithObserver registers an observer at construction time.
func WithObserver(o Observer) ChassisOption {
	return func(c *Chassis) { c.observers = append(c.observers, o) }
}

// NewChassis builds a chassis. settings are the controllers used by motions
// that do not bring their own.
func NewChassis(drive Drivetrain, tracker PoseSource, settings Settings, opts ...ChassisOption) *Chassis {
	c := &Chassis{
		drive:         drive,
		tracker:       tracker,
		handler:       NewHandler(),
		settings:      settings,
		logger:        zap.NewNop(),
		clock:         clock.New(),
		interval:      DefaultWriteInterval,
		distance:      atomic.NewFloat64(0),
		distanceValid: atomic.NewBool(false),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("chassis")
	return c
}

func (c *Chassis) Pose() geom.Pose {
	return c.tracker.Position()
}

func (c *Chassis) SetPose(pose geom.Pose) {
	c.tracker.SetPosition(pose)
}

func (c *Chassis) Handler() *Handler {
	return c.handler
}

func (c *Chassis) AddObserver(o Observer) {
	c.observerMu.Lock()
	defer c.observerMu.Unlock()
	c.observers = append(c.observers, o)
}

// DistanceTraveled reports the path length covered by the running motion.
// ok is false when no motion is running.
func (c *Chassis) DistanceTraveled() (distance float64, ok bool) {
	if !c.distanceValid.Load() {
		return 0, false
	}
	return c.distance.Load(), true
}

func (c *Chassis) IsInMotion() bool {
	return c.handler.IsInMotion()
}

// Cancel stops the running motion within one write interval.
func (c *Chassis) Cancel() {
	c.logger.Info("cancelling motion")
	c.handler.Cancel()
}

// WaitUntilComplete blocks until the current motion has ended.
func (c *Chassis) WaitUntilComplete(ctx context.Context) error {
	return c.handler.Wait(ctx)
}

// WaitUntil blocks until the running motion has covered at least distance,
// or until it ends.
func (c *Chassis) WaitUntil(ctx context.Context, distance float64) error {
	for {
		traveled, ok := c.DistanceTraveled()
		if !ok || traveled >= distance {
			return nil
		}
		if err := c.sleep(ctx); err != nil {
			return err
		}
	}
}

// MoveToPoint drives to target. It waits for the motion slot, then either
// runs the motion to completion (Blocking) or hands the slot to a new
// goroutine and returns once that goroutine has started. A blocking motion
// also ends when ctx is done and then returns ctx's error; an async motion
// only stops through Cancel, its timeout or its exit conditions.
func (c *Chassis) MoveToPoint(ctx context.Context, target r2.Point, opts MoveOptions) error {
	c.logger.Info("moving to point",
		zap.Float64("x", target.X),
		zap.Float64("y", target.Y),
		zap.Duration("timeout", opts.Timeout),
		zap.Bool("blocking", opts.Blocking))

	params := DefaultMoveToPointParameters()
	if opts.Params != nil {
		params = *opts.Params
	}
	settings := c.settings
	if opts.Settings != nil {
		settings = *opts.Settings
	}
	if settings.Linear == nil || settings.Angular == nil {
		return ErrMissingController
	}

	seq, err := c.handler.Acquire(ctx)
	if err != nil {
		return errors.Wrap(err, "waiting for motion slot")
	}
	c.logger.Debug("received motion slot", zap.Uint64("motion", seq))

	if opts.Blocking {
		return c.moveToPoint(ctx, seq, target, opts.Timeout, params, settings, nil)
	}
	started := make(chan struct{})
	go func() {
		if err := c.moveToPoint(context.WithoutCancel(ctx), seq, target, opts.Timeout, params, settings, started); err != nil {
			c.logger.Error("motion failed", zap.Uint64("motion", seq), zap.Error(err))
		}
	}()
	<-started
	return nil
}

// MoveRelative drives distance along the current heading; a negative distance
// drives backwards. It waits for any running motion first so the target is
// computed from the pose that motion leaves behind.
func (c *Chassis) MoveRelative(ctx context.Context, distance float64, opts MoveRelativeOptions) error {
	if c.handler.IsInMotion() {
		if err := c.WaitUntilComplete(ctx); err != nil {
			return err
		}
	}
	pose := c.tracker.Position()
	target := pose.Position().Add(geom.Rotate(r2.Point{X: distance}, pose.Heading))

	relative := DefaultMoveRelativeParameters()
	if opts.Params != nil {
		relative = *opts.Params
	}
	params := DefaultMoveToPointParameters()
	params.Forwards = distance > 0
	params.MinLinearSpeed = relative.MinLinearSpeed
	params.MaxLinearSpeed = relative.MaxLinearSpeed
	params.EarlyExitRange = relative.EarlyExitRange
	params.LinearSlew = relative.LinearSlew

	return c.MoveToPoint(ctx, target, MoveOptions{
		Timeout:  opts.Timeout,
		Params:   &params,
		Settings: opts.Settings,
		Blocking: opts.Blocking,
	})
}
