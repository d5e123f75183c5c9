package motion

import (
	"time"

	"github.com/golang/geo/r2"

	"github.com/san-kum/motionlab/internal/geom"
)

// ExitReason says why a motion's control loop stopped.
type ExitReason int

const (
	ExitTimeout ExitReason = iota
	ExitEarly
	ExitSettled
	ExitCancelled
	ExitDriveError
)

func (r ExitReason) String() string {
	switch r {
	case ExitTimeout:
		return "timeout"
	case ExitEarly:
		return "early_exit"
	case ExitSettled:
		return "settled"
	case ExitCancelled:
		return "cancelled"
	case ExitDriveError:
		return "drive_error"
	default:
		return "unknown"
	}
}

// Tick is the telemetry of one control tick.
type Tick struct {
	Seq               uint64
	Time              time.Time
	Pose              geom.Pose
	Target            r2.Point
	LinearError       float64
	CosineLinearError float64
	AngularError      float64
	LinearOutput      float64
	AngularOutput     float64
	Left              float64
	Right             float64
	Near              bool
	Distance          float64
}

// Observer receives motion telemetry on the control goroutine. It must not
// block.
type Observer interface {
	OnTick(tick Tick)
	OnExit(seq uint64, reason ExitReason)
}
