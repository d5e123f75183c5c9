package export

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/san-kum/motionlab/internal/motion"
)

// HTML writes an interactive page with the path of the trace and its error
// history.
func HTML(w io.Writer, title string, trace []motion.Tick) error {
	path := make([]opts.ScatterData, len(trace))
	for i, tick := range trace {
		path[i] = opts.ScatterData{Value: []interface{}{tick.Pose.X, tick.Pose.Y}}
	}
	targets := Targets(trace)
	marks := make([]opts.ScatterData, len(targets))
	for i, t := range targets {
		marks[i] = opts.ScatterData{Value: []interface{}{t.X, t.Y}}
	}

	field := charts.NewScatter()
	field.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("ticks=%d motions=%d", len(trace), len(targets))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "X", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Y", NameLocation: "middle", NameGap: 30}),
	)
	field.AddSeries("path", path, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 3}))
	field.AddSeries("targets", marks, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 12}))

	index := make([]int, len(trace))
	linear := make([]opts.LineData, len(trace))
	angular := make([]opts.LineData, len(trace))
	for i, tick := range trace {
		index[i] = i
		linear[i] = opts.LineData{Value: tick.LinearError}
		angular[i] = opts.LineData{Value: tick.AngularError}
	}
	errs := charts.NewLine()
	errs.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Theme: "dark", Width: "900px", Height: "400px"}),
		charts.WithTitleOpts(opts.Title{Title: "Errors"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "tick"}),
	)
	errs.SetXAxis(index).
		AddSeries("linear", linear).
		AddSeries("angular", angular)

	page := components.NewPage()
	page.AddCharts(field, errs)
	return page.Render(w)
}
