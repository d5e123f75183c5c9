// Package metrics scores motions from their tick telemetry.
package metrics

import (
	"sort"
	"sync"

	"github.com/san-kum/motionlab/internal/motion"
)

// Metric accumulates one figure over the ticks of a motion.
type Metric interface {
	Name() string
	Observe(tick motion.Tick)
	Value() float64
	Reset()
}

func Default() []Metric {
	return []Metric{
		NewTicks(),
		NewPathLength(),
		NewControlEffort(),
		NewFinalError(),
		NewErrorSpread(),
	}
}

// Summary holds the metric values of one finished motion.
type Summary struct {
	Seq    uint64             `json:"seq"`
	Reason string             `json:"reason"`
	Values map[string]float64 `json:"values"`
}

// Collector feeds ticks to its metrics and closes a Summary per motion. It
// implements motion.Observer.
type Collector struct {
	mu        sync.Mutex
	metrics   []Metric
	summaries []Summary
}

func NewCollector(metrics ...Metric) *Collector {
	if len(metrics) == 0 {
		metrics = Default()
	}
	return &Collector{metrics: metrics}
}

func (c *Collector) OnTick(tick motion.Tick) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, m := range c.metrics {
		m.Observe(tick)
	}
}

func (c *Collector) OnExit(seq uint64, reason motion.ExitReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	values := make(map[string]float64, len(c.metrics))
	for _, m := range c.metrics {
		values[m.Name()] = m.Value()
		m.Reset()
	}
	c.summaries = append(c.summaries, Summary{Seq: seq, Reason: reason.String(), Values: values})
}

// Summaries returns the finished motions in completion order.
func (c *Collector) Summaries() []Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Summary(nil), c.summaries...)
}

// Names lists the collector's metric names, sorted.
func (c *Collector) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, 0, len(c.metrics))
	for _, m := range c.metrics {
		names = append(names, m.Name())
	}
	sort.Strings(names)
	return names
}
