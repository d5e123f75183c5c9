package geom

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// Pose is a 2-D position and heading. Heading is continuous and is never
// wrapped to ±π by the tracker.
type Pose struct {
	X       float64 `json:"x" yaml:"x" toml:"x"`
	Y       float64 `json:"y" yaml:"y" toml:"y"`
	Heading float64 `json:"heading" yaml:"heading" toml:"heading"`
}

func NewPose(x, y, heading float64) Pose {
	return Pose{X: x, Y: y, Heading: heading}
}

func (p Pose) Position() r2.Point {
	return r2.Point{X: p.X, Y: p.Y}
}

func (p Pose) DistanceTo(other Pose) float64 {
	return p.Position().Sub(other.Position()).Norm()
}

func (p Pose) IsValid() bool {
	for _, v := range [...]float64{p.X, p.Y, p.Heading} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func (p Pose) String() string {
	return fmt.Sprintf("(%.3f, %.3f, %.2f°)", p.X, p.Y, ToDegrees(p.Heading))
}

// Rotate rotates v counter-clockwise by theta radians.
func Rotate(v r2.Point, theta float64) r2.Point {
	sin, cos := math.Sincos(theta)
	return r2.Point{
		X: v.X*cos - v.Y*sin,
		Y: v.X*sin + v.Y*cos,
	}
}

// Degrees converts degrees to radians.
func Degrees(d float64) float64 {
	return d * math.Pi / 180
}

func ToDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

// HeadingDegrees converts a compass heading in degrees (0 = +Y, clockwise
// positive) into a math-convention angle in radians.
func HeadingDegrees(d float64) float64 {
	return math.Pi/2 - Degrees(d)
}

// WrapAngle maps an angle into (-π, π].
func WrapAngle(a float64) float64 {
	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}
	return a - math.Pi
}
