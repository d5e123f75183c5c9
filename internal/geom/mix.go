package geom

import "math"

// DeltaClamp limits value to within maxDelta of previous. A maxDelta of zero
// or less disables limiting.
func DeltaClamp(value, previous, maxDelta float64) float64 {
	if maxDelta <= 0 {
		return value
	}
	return Clamp(value, previous-maxDelta, previous+maxDelta)
}

func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// ArcadeDesaturate mixes a linear and an angular command into left and right
// wheel fractions in [-1, 1]. Positive angular turns counter-clockwise. When
// either side would saturate both are scaled by the same factor so the
// commanded curvature is kept.
func ArcadeDesaturate(linear, angular float64) (left, right float64) {
	left = linear - angular
	right = linear + angular
	scale := math.Max(1, math.Max(math.Abs(left), math.Abs(right)))
	return left / scale, right / scale
}
