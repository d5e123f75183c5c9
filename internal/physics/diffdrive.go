package physics

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"

	"github.com/san-kum/motionlab/internal/geom"
	"github.com/san-kum/motionlab/internal/motion"
)

var (
	ErrInvalidCommand = errors.New("physics: velocity command is not finite")
	ErrUnknownParam   = errors.New("physics: unknown parameter")
)

// State layout of DiffDrive.
const (
	idxX = iota
	idxY
	idxTheta
	idxLeft
	idxRight
	idxTravel
	diffDriveDim
)

// DiffDrive is a differential-drive chassis. Each side tracks its commanded
// velocity through a first-order lag; a MotorLag of zero makes the sides
// follow commands instantly. Heading is counter-clockwise positive.
//
// DiffDrive implements motion.Drivetrain and is safe for concurrent use.
type DiffDrive struct {
	mu         sync.Mutex
	trackWidth float64
	maxSpeed   float64
	motorLag   float64

	state   State
	command [2]float64
	t       float64
	rk4     *RK4
	clock   clock.Clock
}

func NewDiffDrive(trackWidth, maxSpeed, motorLag float64) *DiffDrive {
	return &DiffDrive{
		trackWidth: trackWidth,
		maxSpeed:   maxSpeed,
		motorLag:   motorLag,
		state:      make(State, diffDriveDim),
		rk4:        NewRK4(),
		clock:      clock.New(),
	}
}

// WithClock sets the clock Run ticks on.
func (d *DiffDrive) WithClock(clk clock.Clock) *DiffDrive {
	d.clock = clk
	return d
}

func (d *DiffDrive) StateDim() int   { return diffDriveDim }
func (d *DiffDrive) ControlDim() int { return 2 }

func (d *DiffDrive) Derive(x State, u Control, t float64) State {
	vl, vr := x[idxLeft], x[idxRight]
	v := (vl + vr) / 2
	omega := (vr - vl) / d.trackWidth

	dx := make(State, diffDriveDim)
	dx[idxX] = v * math.Cos(x[idxTheta])
	dx[idxY] = v * math.Sin(x[idxTheta])
	dx[idxTheta] = omega
	dx[idxTravel] = v
	if d.motorLag > 0 {
		dx[idxLeft] = (u[0]*d.maxSpeed - vl) / d.motorLag
		dx[idxRight] = (u[1]*d.maxSpeed - vr) / d.motorLag
	}
	return dx
}

// SetVelocityFraction commands one side; values are clamped to [-1, 1].
func (d *DiffDrive) SetVelocityFraction(side motion.Side, value float64) error {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.Wrapf(ErrInvalidCommand, "%s side: %v", side, value)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.command[side] = geom.Clamp(value, -1, 1)
	return nil
}

// Step advances the plant by dt seconds under the current command.
func (d *DiffDrive) Step(dt float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	u := Control{d.command[0], d.command[1]}
	if d.motorLag <= 0 {
		d.state[idxLeft] = u[0] * d.maxSpeed
		d.state[idxRight] = u[1] * d.maxSpeed
	}
	d.state = d.rk4.Step(d, d.state, u, d.t, dt)
	d.t += dt
}

// Run steps the plant in real time until ctx is done.
func (d *DiffDrive) Run(ctx context.Context, step time.Duration) error {
	ticker := d.clock.Ticker(step)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			d.Step(step.Seconds())
		}
	}
}

// Stop zeroes both commands.
func (d *DiffDrive) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.command = [2]float64{}
}

// Pose is the true pose of the chassis.
func (d *DiffDrive) Pose() geom.Pose {
	d.mu.Lock()
	defer d.mu.Unlock()
	return geom.NewPose(d.state[idxX], d.state[idxY], d.state[idxTheta])
}

func (d *DiffDrive) SetPose(p geom.Pose) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state[idxX] = p.X
	d.state[idxY] = p.Y
	d.state[idxTheta] = p.Heading
}

func (d *DiffDrive) Time() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.t
}

func (d *DiffDrive) Command() (left, right float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.command[0], d.command[1]
}

func (d *DiffDrive) Velocities() (left, right float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state[idxLeft], d.state[idxRight]
}

// WheelTravel is the distance rolled by an ideal tracking wheel. Vertical
// wheels roll along the heading and sit offset to the right of center;
// horizontal wheels roll sideways and sit offset behind center.
func (d *DiffDrive) WheelTravel(offset float64, vertical bool) float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	spin := offset * d.state[idxTheta]
	if vertical {
		return d.state[idxTravel] + spin
	}
	return spin
}

// Heading is the raw chassis heading in radians.
func (d *DiffDrive) Heading() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state[idxTheta]
}

func (d *DiffDrive) GetParams() map[string]float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return map[string]float64{
		"track_width": d.trackWidth,
		"max_speed":   d.maxSpeed,
		"motor_lag":   d.motorLag,
	}
}

func (d *DiffDrive) SetParam(name string, value float64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	switch name {
	case "track_width":
		if value <= 0 {
			return errors.Errorf("physics: track_width must be positive, got %v", value)
		}
		d.trackWidth = value
	case "max_speed":
		d.maxSpeed = value
	case "motor_lag":
		if value < 0 {
			return errors.Errorf("physics: motor_lag must be non-negative, got %v", value)
		}
		d.motorLag = value
	default:
		return errors.Wrap(ErrUnknownParam, name)
	}
	return nil
}
