package tracking

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// reading is a sensor value that may be missing.
type reading struct {
	value float64
	ok    bool
}

func holdLast(current float64, ok bool, prev reading) reading {
	if ok {
		return reading{value: current, ok: true}
	}
	return prev
}

func delta(current, prev reading) reading {
	if !current.ok || !prev.ok {
		return reading{}
	}
	return reading{value: current.value - prev.value, ok: true}
}

// weightedMean averages the valid deltas by weight. It reports false when no
// valid delta carries positive total weight.
func weightedMean(deltas []reading, weights []float64) (float64, bool) {
	values := make([]float64, 0, len(deltas))
	used := make([]float64, 0, len(deltas))
	for i, d := range deltas {
		if d.ok {
			values = append(values, d.value)
			used = append(used, weights[i])
		}
	}
	total := floats.Sum(used)
	if total <= 0 {
		return 0, false
	}
	return floats.Dot(values, used) / total, true
}

// pairAngle estimates the heading change from every pair of wheels in a
// family with valid deltas. Fewer than two valid wheels yields no estimate.
// Identical offsets within a pair divide by zero.
func pairAngle(deltas []reading, wheels []TrackingWheel) (float64, bool) {
	var estimates []float64
	for i := 0; i < len(deltas); i++ {
		for j := i + 1; j < len(deltas); j++ {
			if !deltas[i].ok || !deltas[j].ok {
				continue
			}
			estimates = append(estimates,
				(deltas[i].value-deltas[j].value)/(wheels[i].Offset()-wheels[j].Offset()))
		}
	}
	if len(estimates) == 0 {
		return 0, false
	}
	return floats.Sum(estimates) / float64(len(estimates)), true
}

// localDisplacement averages a wheel family's travel along its axis. For a
// non-zero heading change each wheel's arc is converted to the chord travelled
// by the tracking center.
func localDisplacement(deltas []reading, wheels []TrackingWheel, deltaAngle float64) float64 {
	sum, count := 0.0, 0
	for i, d := range deltas {
		if !d.ok {
			continue
		}
		if deltaAngle == 0 {
			sum += d.value
		} else {
			sum += 2 * math.Sin(deltaAngle/2) * (d.value/deltaAngle - wheels[i].Offset())
		}
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

type familyEstimate struct {
	angle  float64
	ok     bool
	weight float64
}

// fuseFamilies combines the family heading estimates, normalizing over the
// families that produced one.
func fuseFamilies(families ...familyEstimate) float64 {
	total := 0.0
	for _, f := range families {
		if f.ok {
			total += f.weight
		}
	}
	if total <= 0 {
		return 0
	}
	fused := 0.0
	for _, f := range families {
		if f.ok {
			fused += f.angle * f.weight / total
		}
	}
	return fused
}
