// Package export renders recorded motion traces as SVG, HTML and PNG.
package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/golang/geo/r2"

	"github.com/san-kum/motionlab/internal/motion"
)

// Path returns the tracked positions of a trace.
func Path(trace []motion.Tick) []r2.Point {
	points := make([]r2.Point, len(trace))
	for i, tick := range trace {
		points[i] = tick.Pose.Position()
	}
	return points
}

// Targets returns the distinct motion targets of a trace in order.
func Targets(trace []motion.Tick) []r2.Point {
	var targets []r2.Point
	var seq uint64
	for i, tick := range trace {
		if i == 0 || tick.Seq != seq {
			targets = append(targets, tick.Target)
			seq = tick.Seq
		}
	}
	return targets
}

// bounds is the box holding points, padded by 10% on every side.
type bounds struct {
	minX, maxX, minY, maxY float64
}

func fit(points []r2.Point) bounds {
	b := bounds{math.Inf(1), math.Inf(-1), math.Inf(1), math.Inf(-1)}
	for _, p := range points {
		b.minX = math.Min(b.minX, p.X)
		b.maxX = math.Max(b.maxX, p.X)
		b.minY = math.Min(b.minY, p.Y)
		b.maxY = math.Max(b.maxY, p.Y)
	}
	rangeX := b.maxX - b.minX
	rangeY := b.maxY - b.minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	b.minX -= rangeX * 0.1
	b.maxX += rangeX * 0.1
	b.minY -= rangeY * 0.1
	b.maxY += rangeY * 0.1
	return b
}

func (b bounds) project(p r2.Point, width, height int) (float64, float64) {
	x := (p.X - b.minX) / (b.maxX - b.minX) * float64(width)
	y := float64(height) - (p.Y-b.minY)/(b.maxY-b.minY)*float64(height)
	return x, y
}

// TrajectoryToSVG draws points as a single polyline.
func TrajectoryToSVG(points []r2.Point, width, height int, strokeColor string) string {
	if len(points) < 2 {
		return ""
	}
	var sb strings.Builder
	writeHeader(&sb, width, height)
	writePath(&sb, points, fit(points), width, height, strokeColor)
	sb.WriteString("</svg>")
	return sb.String()
}

// TraceToSVG draws the tracked path of a trace with a marker on every target.
func TraceToSVG(trace []motion.Tick, width, height int) string {
	path := Path(trace)
	if len(path) < 2 {
		return ""
	}
	targets := Targets(trace)
	b := fit(append(append([]r2.Point{}, path...), targets...))

	var sb strings.Builder
	writeHeader(&sb, width, height)
	writePath(&sb, path, b, width, height, "#5fd7d7")
	sb.WriteString(`<g fill="#ff87ff">` + "\n")
	for _, t := range targets {
		x, y := b.project(t, width, height)
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="3"/>`+"\n", x, y))
	}
	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

func writeHeader(sb *strings.Builder, width, height int) {
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
`, width, height, width, height))
}

func writePath(sb *strings.Builder, points []r2.Point, b bounds, width, height int, stroke string) {
	sb.WriteString(fmt.Sprintf(`<path fill="none" stroke="%s" stroke-width="1.5" d="M`, stroke))
	for i, p := range points {
		x, y := b.project(p, width, height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}
	sb.WriteString(`"/>` + "\n")
}
