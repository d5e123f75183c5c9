package control

import (
	"math"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/pkg/errors"
)

// PID is a positional PID controller. The time step is the wall time between
// consecutive Update calls, measured in milliseconds; gains are tuned against
// that unit.
type PID struct {
	mu sync.Mutex

	Kp float64
	Ki float64
	Kd float64

	// WindupRange zeroes the integral whenever |error| exceeds it. Zero
	// disables the check.
	WindupRange float64
	// ResetOnSignFlip zeroes the integral when the error changes sign.
	ResetOnSignFlip bool

	clock    clock.Clock
	integral float64
	prevErr  float64
	prevTime time.Time
	started  bool
}

func NewPID(kp, ki, kd, windupRange float64, resetOnSignFlip bool) *PID {
	return NewPIDWithClock(clock.New(), kp, ki, kd, windupRange, resetOnSignFlip)
}

func NewPIDWithClock(clk clock.Clock, kp, ki, kd, windupRange float64, resetOnSignFlip bool) *PID {
	return &PID{
		Kp:              kp,
		Ki:              ki,
		Kd:              kd,
		WindupRange:     windupRange,
		ResetOnSignFlip: resetOnSignFlip,
		clock:           clk,
	}
}

// Update returns Kp·e + Ki·∫e dt + Kd·de/dt. The first call after a reset has
// no previous timestamp, so dt is zero and the derivative divisor becomes +Inf,
// which makes the derivative term exactly zero.
func (p *PID) Update(err float64) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	dt := 0.0
	if p.started {
		dt = float64(now.Sub(p.prevTime)) / float64(time.Millisecond)
	}
	p.prevTime = now
	p.started = true

	p.integral += err * dt
	flipped := math.Signbit(err) != math.Signbit(p.prevErr)
	if (flipped && p.ResetOnSignFlip) || (p.WindupRange != 0 && math.Abs(err) > p.WindupRange) {
		p.integral = 0
	}

	divisor := dt
	if divisor == 0 {
		divisor = math.Inf(1)
	}
	derivative := (err - p.prevErr) / divisor

	p.prevErr = err
	return p.Kp*err + p.Ki*p.integral + p.Kd*derivative
}

// Reset clears integral and derivative state.
func (p *PID) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.integral = 0
	p.prevErr = 0
	p.started = false
}

func (p *PID) Integral() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.integral
}

// GetParams returns tunable parameters for live adjustment
func (p *PID) GetParams() map[string]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return map[string]float64{
		"Kp":          p.Kp,
		"Ki":          p.Ki,
		"Kd":          p.Kd,
		"WindupRange": p.WindupRange,
	}
}

// SetParam adjusts a PID parameter
func (p *PID) SetParam(name string, value float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	switch name {
	case "Kp":
		p.Kp = value
	case "Ki":
		p.Ki = value
	case "Kd":
		p.Kd = value
	case "WindupRange":
		if value < 0 {
			return errors.Errorf("windup range must be non-negative, got %f", value)
		}
		p.WindupRange = value
	default:
		return errors.Errorf("unknown param: %s", name)
	}
	return nil
}
