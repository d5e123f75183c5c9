package metrics

import (
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/motionlab/internal/motion"
)

// ErrorSpread is the standard deviation of the angular error, a measure of
// how much the chassis weaved on its way to the target.
type ErrorSpread struct {
	errors []float64
}

func NewErrorSpread() *ErrorSpread { return &ErrorSpread{} }

func (e *ErrorSpread) Name() string { return "angular_error_stddev" }

func (e *ErrorSpread) Observe(tick motion.Tick) {
	e.errors = append(e.errors, tick.AngularError)
}

func (e *ErrorSpread) Value() float64 {
	if len(e.errors) < 2 {
		return 0
	}
	return stat.StdDev(e.errors, nil)
}

func (e *ErrorSpread) Reset() {
	e.errors = e.errors[:0]
}
