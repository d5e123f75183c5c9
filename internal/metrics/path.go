package metrics

import (
	"github.com/san-kum/motionlab/internal/motion"
)

// Ticks counts control ticks.
type Ticks struct {
	n int
}

func NewTicks() *Ticks { return &Ticks{} }

func (t *Ticks) Name() string        { return "ticks" }
func (t *Ticks) Observe(motion.Tick) { t.n++ }
func (t *Ticks) Value() float64      { return float64(t.n) }
func (t *Ticks) Reset()              { t.n = 0 }

// PathLength is the distance the tracked pose covered.
type PathLength struct {
	distance float64
}

func NewPathLength() *PathLength { return &PathLength{} }

func (p *PathLength) Name() string { return "path_length" }

func (p *PathLength) Observe(tick motion.Tick) {
	p.distance = tick.Distance
}

func (p *PathLength) Value() float64 { return p.distance }
func (p *PathLength) Reset()         { p.distance = 0 }

// FinalError is the linear error at the last tick.
type FinalError struct {
	last float64
}

func NewFinalError() *FinalError { return &FinalError{} }

func (f *FinalError) Name() string             { return "final_error" }
func (f *FinalError) Observe(tick motion.Tick) { f.last = tick.LinearError }
func (f *FinalError) Value() float64           { return f.last }
func (f *FinalError) Reset()                   { f.last = 0 }
