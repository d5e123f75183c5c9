// Package tui renders a running scenario in the terminal.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/golang/geo/r2"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/motionlab/internal/config"
	"github.com/san-kum/motionlab/internal/geom"
	"github.com/san-kum/motionlab/internal/motion"
	"github.com/san-kum/motionlab/internal/scenario"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
)

// tuneStep scales a proportional gain per key press.
const tuneStep = 1.1

var tuneKeys = map[string]struct {
	loop   string
	factor float64
}{
	"]": {"linear", tuneStep},
	"[": {"linear", 1 / tuneStep},
	"}": {"angular", tuneStep},
	"{": {"angular", 1 / tuneStep},
}

const (
	frameRate   = 30
	maxTrail    = 2000
	maxHistory  = 120
	minFieldFit = 20.0
)

// Robot is the part of a scenario robot the view reads.
type Robot interface {
	Estimate() geom.Pose
	Truth() geom.Pose
	LastTick() (motion.Tick, bool)
	Completed() int
	Cancel()
	Gain(loop, param string) (float64, error)
	Tune(loop, param string, value float64) error
}

type robotView struct{ r *scenario.Robot }

func (v robotView) Estimate() geom.Pose           { return v.r.Tracker.Position() }
func (v robotView) Truth() geom.Pose              { return v.r.Plant.Pose() }
func (v robotView) LastTick() (motion.Tick, bool) { return v.r.Trace.Last() }
func (v robotView) Completed() int                { return v.r.Trace.Completed() }
func (v robotView) Cancel()                       { v.r.Chassis.Cancel() }

func (v robotView) Gain(loop, param string) (float64, error) { return v.r.Gain(loop, param) }

func (v robotView) Tune(loop, param string, value float64) error {
	return v.r.Tune(loop, param, value)
}

type tickMsg time.Time

type doneMsg struct {
	result *scenario.Result
	err    error
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return tickMsg(t) })
}

type model struct {
	robot   Robot
	name    string
	steps   int
	targets []r2.Point

	estimate geom.Pose
	truth    geom.Pose
	last     motion.Tick
	hasTick  bool
	lastSeq  uint64

	trail      []r2.Point
	truthTrail []r2.Point
	history    []float64

	status string

	started time.Time
	elapsed time.Duration
	done    bool
	result  *scenario.Result
	err     error

	width  int
	height int
}

func newModel(robot Robot, cfg *config.Config) model {
	m := model{
		robot:   robot,
		name:    cfg.Name,
		steps:   len(cfg.Steps),
		started: time.Now(),
		width:   80,
		height:  24,
	}
	m.targets = append(m.targets, cfg.Start.Position())
	for _, s := range cfg.Steps {
		if s.Kind == config.StepPoint {
			m.targets = append(m.targets, r2.Point{X: s.X, Y: s.Y})
		}
	}
	return m
}

func (m model) Init() tea.Cmd { return tick() }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "c":
			m.robot.Cancel()
			m.status = "motion cancelled"
		default:
			if k, ok := tuneKeys[msg.String()]; ok {
				m.status = m.scaleGain(k.loop, k.factor)
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case doneMsg:
		m.done = true
		m.result = msg.result
		m.err = msg.err
		m.sample()
		return m, nil
	case tickMsg:
		if m.done {
			return m, nil
		}
		m.sample()
		return m, tick()
	}
	return m, nil
}

// scaleGain multiplies a loop's Kp and describes the outcome.
func (m *model) scaleGain(loop string, factor float64) string {
	kp, err := m.robot.Gain(loop, "Kp")
	if err == nil {
		kp *= factor
		err = m.robot.Tune(loop, "Kp", kp)
	}
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("%s kp = %.4f", loop, kp)
}

// sample copies the robot's current state into the model.
func (m *model) sample() {
	m.elapsed = time.Since(m.started)
	m.estimate = m.robot.Estimate()
	m.truth = m.robot.Truth()
	m.trail = appendCapped(m.trail, m.estimate.Position(), maxTrail)
	m.truthTrail = appendCapped(m.truthTrail, m.truth.Position(), maxTrail)

	last, ok := m.robot.LastTick()
	if !ok || (m.hasTick && last.Seq == m.lastSeq && last.Time.Equal(m.last.Time)) {
		return
	}
	if m.hasTick && last.Seq != m.lastSeq {
		m.history = m.history[:0]
	}
	m.last, m.hasTick, m.lastSeq = last, true, last.Seq
	m.history = appendCapped(m.history, last.LinearError, maxHistory)
}

func appendCapped[T any](s []T, v T, limit int) []T {
	s = append(s, v)
	if len(s) > limit {
		s = s[len(s)-limit:]
	}
	return s
}

func (m model) View() string {
	cw := m.width/2 - 4
	ch := m.height - 14
	if cw < 30 {
		cw = 30
	}
	if ch < 10 {
		ch = 10
	}

	canvas := NewCanvas(cw, ch)
	points := append(append(append([]r2.Point{}, m.targets...), m.trail...), m.truthTrail...)
	field := FitField(minFieldFit, points...)
	for _, t := range m.targets[1:] {
		field.Marker(canvas, t)
	}
	field.Path(canvas, m.truthTrail)
	field.Path(canvas, m.trail)

	var b strings.Builder

	statusIcon, statusText := green.Render("●"), green.Render("running")
	switch {
	case m.err != nil:
		statusIcon, statusText = yellow.Render("○"), yellow.Render("stopped")
	case m.done:
		statusIcon, statusText = cyan.Render("●"), cyan.Render("done")
	}
	b.WriteString(fmt.Sprintf("\n   %s %s  %s  %s\n\n",
		statusIcon, cyan.Render(m.name), statusText,
		dim.Render(fmt.Sprintf("%.1fs  motions %d/%d", m.elapsed.Seconds(), m.robot.Completed(), m.steps))))

	rows := strings.Split(strings.TrimRight(canvas.String(), "\n"), "\n")
	stats := m.stats()
	for i, row := range rows {
		line := "   " + white.Render(row)
		if i < len(stats) {
			line += "   " + stats[i]
		}
		b.WriteString(line + "\n")
	}

	if len(m.history) > 1 {
		graph := asciigraph.Plot(m.history,
			asciigraph.Height(5),
			asciigraph.Width(cw),
			asciigraph.Caption("linear error"))
		b.WriteString("\n" + indent(graph, "   ") + "\n")
	}

	if m.err != nil {
		b.WriteString("\n   " + yellow.Render(m.err.Error()) + "\n")
	}
	if m.status != "" {
		b.WriteString("\n   " + magenta.Render(m.status) + "\n")
	}
	b.WriteString("\n" + dim.Render("   [ ] linear kp  { } angular kp  c cancel motion  q quit") + "\n")
	return b.String()
}

func (m model) stats() []string {
	row := func(label, value string) string {
		return dim.Render(fmt.Sprintf("%-10s", label)) + value
	}
	lines := []string{
		row("estimate", white.Render(m.estimate.String())),
		row("truth", white.Render(m.truth.String())),
		row("drift", magenta.Render(fmt.Sprintf("%.3f", m.estimate.DistanceTo(m.truth)))),
		dimmer.Render(strings.Repeat("─", 30)),
	}
	if !m.hasTick {
		return append(lines, dim.Render("waiting for motion"))
	}
	t := m.last
	near := dim.Render("far")
	if t.Near {
		near = green.Render("near")
	}
	return append(lines,
		row("motion", white.Render(fmt.Sprintf("#%d", t.Seq))+"  "+near),
		row("target", white.Render(fmt.Sprintf("(%.2f, %.2f)", t.Target.X, t.Target.Y))),
		row("lin err", white.Render(fmt.Sprintf("%8.3f", t.LinearError))),
		row("ang err", white.Render(fmt.Sprintf("%8.3f", t.AngularError))),
		row("lin out", cyan.Render(fmt.Sprintf("%8.3f", t.LinearOutput))),
		row("ang out", cyan.Render(fmt.Sprintf("%8.3f", t.AngularOutput))),
		row("wheels", cyan.Render(fmt.Sprintf("%6.3f %6.3f", t.Left, t.Right))),
		row("distance", white.Render(fmt.Sprintf("%.2f", t.Distance))),
	)
}

func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}

// Run executes the robot's script while drawing it. Quitting the view stops
// the run; the result of the run is returned either way.
func Run(ctx context.Context, robot *scenario.Robot) (*scenario.Result, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(newModel(robotView{robot}, robot.Config), tea.WithAltScreen())
	finished := make(chan doneMsg, 1)
	go func() {
		result, err := robot.Run(ctx)
		msg := doneMsg{result: result, err: err}
		finished <- msg
		p.Send(msg)
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		return nil, err
	}
	cancel()
	msg := <-finished
	return msg.result, msg.err
}
