package control

import (
	"math"
	"time"

	"github.com/benbjohnson/clock"
)

// Tolerance is satisfied once the error has stayed within Band for at least
// Duration and for at least Samples consecutive updates.
type Tolerance struct {
	Band     float64       `yaml:"band" toml:"band"`
	Duration time.Duration `yaml:"duration" toml:"duration"`
	Samples  int           `yaml:"samples" toml:"samples"`
}

type window struct {
	entered time.Time
	count   int
	inBand  bool
}

// ToleranceGroup is a set of tolerances checked together; the group reports
// settled when any one of them is satisfied. An empty group never settles.
type ToleranceGroup struct {
	clock      clock.Clock
	tolerances []Tolerance
	windows    []window
}

func NewToleranceGroup(tolerances ...Tolerance) *ToleranceGroup {
	return NewToleranceGroupWithClock(clock.New(), tolerances...)
}

func NewToleranceGroupWithClock(clk clock.Clock, tolerances ...Tolerance) *ToleranceGroup {
	return &ToleranceGroup{
		clock:      clk,
		tolerances: append([]Tolerance(nil), tolerances...),
		windows:    make([]window, len(tolerances)),
	}
}

// UpdateAll feeds one error sample to every tolerance and reports whether any
// of them is satisfied. Leaving a band restarts that tolerance's window.
func (g *ToleranceGroup) UpdateAll(err float64) bool {
	now := g.clock.Now()
	settled := false
	for i, tol := range g.tolerances {
		w := &g.windows[i]
		if math.Abs(err) > tol.Band {
			*w = window{}
			continue
		}
		if !w.inBand {
			w.inBand = true
			w.entered = now
			w.count = 0
		}
		w.count++
		if now.Sub(w.entered) >= tol.Duration && w.count >= tol.Samples {
			settled = true
		}
	}
	return settled
}

func (g *ToleranceGroup) Reset() {
	for i := range g.windows {
		g.windows[i] = window{}
	}
}

func (g *ToleranceGroup) Tolerances() []Tolerance {
	return append([]Tolerance(nil), g.tolerances...)
}

// Clone returns a group with the same tolerances and fresh windows.
func (g *ToleranceGroup) Clone() *ToleranceGroup {
	return NewToleranceGroupWithClock(g.clock, g.tolerances...)
}
