package motion

import (
	"context"
	"math"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/san-kum/motionlab/internal/geom"
)

// moveToPoint runs the control loop of one motion. The caller must hold the
// motion slot; it is released on return. started, when non-nil, is closed once
// the loop owns the slot and its telemetry is live.
func (c *Chassis) moveToPoint(
	ctx context.Context,
	seq uint64,
	target r2.Point,
	timeout time.Duration,
	params MoveToPointParameters,
	settings Settings,
	started chan struct{},
) error {
	logger := c.logger.With(zap.Uint64("motion", seq))
	reason := ExitTimeout
	defer func() {
		c.distanceValid.Store(false)
		c.distance.Store(0)
		if reason != ExitDriveError {
			if err := c.write(0, 0); err != nil {
				logger.Warn("stopping drive", zap.Error(err))
			}
		}
		logger.Info("motion finished", zap.Stringer("reason", reason))
		c.notifyExit(seq, reason)
		c.handler.End()
	}()

	if !settings.Persistent {
		settings.Reset()
	}
	c.distance.Store(0)
	c.distanceValid.Store(true)
	if started != nil {
		close(started)
	}

	start := c.clock.Now()
	prev := c.tracker.Position()
	near := false
	var prevLinear, prevAngular float64

	for {
		if timeout > 0 && c.clock.Since(start) >= timeout {
			reason = ExitTimeout
			return nil
		}
		if !c.handler.IsInMotion() {
			reason = ExitCancelled
			return nil
		}
		if err := ctx.Err(); err != nil {
			reason = ExitCancelled
			return err
		}

		pose := c.tracker.Position()
		traveled := c.distance.Add(pose.DistanceTo(prev))
		prev = pose

		frame := pose.Heading
		if !params.Forwards {
			frame += math.Pi
		}
		local := geom.Rotate(target.Sub(pose.Position()), -frame)
		linearError := local.Norm()
		cosineError := local.X
		angularError := math.Atan2(local.Y, local.X)

		if linearError < params.NearThreshold && !near {
			params.MaxLinearSpeed = params.NearMaxSpeed
			near = true
			logger.Debug("near target", zap.Float64("error", linearError))
		}

		if math.Abs(linearError) < params.EarlyExitRange {
			reason = ExitEarly
			return nil
		}
		if settings.LinearTolerances != nil && settings.LinearTolerances.UpdateAll(cosineError) && near {
			reason = ExitSettled
			return nil
		}

		linear := geom.Clamp(settings.Linear.Update(cosineError), -params.MaxLinearSpeed, params.MaxLinearSpeed)
		if math.Abs(linear) < params.MinLinearSpeed {
			linear = math.Copysign(params.MinLinearSpeed, linear)
		}
		if linear < 0 && !near {
			linear = 0
		}
		linear = geom.DeltaClamp(linear, prevLinear, params.LinearSlew)

		angular := geom.Clamp(settings.Angular.Update(angularError), -params.MaxAngularSpeed, params.MaxAngularSpeed)
		angular = geom.DeltaClamp(angular, prevAngular, params.AngularSlew)

		prevLinear, prevAngular = linear, angular

		drive := linear
		if !params.Forwards {
			drive = -drive
		}
		left, right := geom.ArcadeDesaturate(drive, angular)

		logger.Debug("tick",
			zap.Float64("linear_error", linearError),
			zap.Float64("angular_error", angularError),
			zap.Float64("left", left),
			zap.Float64("right", right))
		c.notifyTick(Tick{
			Seq:               seq,
			Time:              c.clock.Now(),
			Pose:              pose,
			Target:            target,
			LinearError:       linearError,
			CosineLinearError: cosineError,
			AngularError:      angularError,
			LinearOutput:      linear,
			AngularOutput:     angular,
			Left:              left,
			Right:             right,
			Near:              near,
			Distance:          traveled,
		})

		if err := c.write(left, right); err != nil {
			reason = ExitDriveError
			return err
		}

		if err := c.sleep(ctx); err != nil {
			reason = ExitCancelled
			return err
		}
	}
}

// sleep pauses for one write interval or until ctx is done.
func (c *Chassis) sleep(ctx context.Context) error {
	timer := c.clock.Timer(c.interval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Chassis) write(left, right float64) error {
	if err := c.drive.SetVelocityFraction(Left, left); err != nil {
		return errors.Wrap(err, "commanding left side")
	}
	if err := c.drive.SetVelocityFraction(Right, right); err != nil {
		return errors.Wrap(err, "commanding right side")
	}
	return nil
}

func (c *Chassis) snapshotObservers() []Observer {
	c.observerMu.Lock()
	defer c.observerMu.Unlock()
	return append([]Observer(nil), c.observers...)
}

func (c *Chassis) notifyTick(tick Tick) {
	for _, o := range c.snapshotObservers() {
		o.OnTick(tick)
	}
}

func (c *Chassis) notifyExit(seq uint64, reason ExitReason) {
	for _, o := range c.snapshotObservers() {
		o.OnExit(seq, reason)
	}
}
