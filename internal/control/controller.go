package control

import (
	"github.com/pkg/errors"
)

// FeedbackController turns an error signal into a correction. Implementations
// keep state between calls; Reset clears it.
type FeedbackController interface {
	Update(err float64) float64
	Reset()
}

// Configurable is implemented by controllers whose gains can be changed while
// running.
type Configurable interface {
	GetParams() map[string]float64
	SetParam(name string, value float64) error
}

var ErrUnknownController = errors.New("control: unknown controller")

// New builds a controller by kind. PID reads kp, ki, kd, windup_range and
// reset_on_sign_flip (non-zero means true) from params.
func New(kind string, params map[string]float64) (FeedbackController, error) {
	switch kind {
	case "pid", "":
		return NewPID(
			params["kp"],
			params["ki"],
			params["kd"],
			params["windup_range"],
			params["reset_on_sign_flip"] != 0,
		), nil
	case "none":
		return NewNone(), nil
	default:
		return nil, errors.Wrapf(ErrUnknownController, "%q", kind)
	}
}
