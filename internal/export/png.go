package export

import (
	"image/color"
	"io"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/san-kum/motionlab/internal/motion"
)

var (
	pathColor   = color.RGBA{R: 0x20, G: 0x9e, B: 0xa0, A: 0xff}
	targetColor = color.RGBA{R: 0xd0, G: 0x30, B: 0xc0, A: 0xff}
)

// PathPlot builds a plot of the tracked path with the motion targets marked.
func PathPlot(title string, trace []motion.Tick) (*plot.Plot, error) {
	if len(trace) == 0 {
		return nil, errors.New("export: empty trace")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	p.Add(plotter.NewGrid())

	path := make(plotter.XYs, len(trace))
	for i, tick := range trace {
		path[i] = plotter.XY{X: tick.Pose.X, Y: tick.Pose.Y}
	}
	line, err := plotter.NewLine(path)
	if err != nil {
		return nil, err
	}
	line.Width = vg.Points(1.5)
	line.Color = pathColor
	p.Add(line)
	p.Legend.Add("path", line)

	targets := Targets(trace)
	marks := make(plotter.XYs, len(targets))
	for i, t := range targets {
		marks[i] = plotter.XY{X: t.X, Y: t.Y}
	}
	scatter, err := plotter.NewScatter(marks)
	if err != nil {
		return nil, err
	}
	scatter.Color = targetColor
	scatter.Radius = vg.Points(3)
	p.Add(scatter)
	p.Legend.Add("targets", scatter)
	return p, nil
}

// PNG renders the path plot as a PNG image of the given size in inches.
func PNG(w io.Writer, title string, trace []motion.Tick, widthIn, heightIn float64) error {
	p, err := PathPlot(title, trace)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(vg.Length(widthIn)*vg.Inch, vg.Length(heightIn)*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
