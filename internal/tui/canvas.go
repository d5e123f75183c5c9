package tui

import (
	"math"
	"strings"

	"github.com/golang/geo/r2"
)

// Braille cells hold 2x4 dots:
// 1 4
// 2 5
// 3 6
// 7 8
var pixelMap = [4][2]rune{
	{0x1, 0x8},
	{0x2, 0x10},
	{0x4, 0x20},
	{0x40, 0x80},
}

const blank = 0x2800

// Canvas is a braille dot grid. Dot coordinates run (Width*2) x (Height*4).
type Canvas struct {
	Width, Height int
	Grid          [][]rune
}

func NewCanvas(w, h int) *Canvas {
	c := &Canvas{Width: w, Height: h, Grid: make([][]rune, h)}
	for i := range c.Grid {
		c.Grid[i] = make([]rune, w)
	}
	c.Clear()
	return c
}

func (c *Canvas) Set(x, y int) {
	if x < 0 || y < 0 {
		return
	}
	col, row := x/2, y/4
	if col >= c.Width || row >= c.Height {
		return
	}
	c.Grid[row][col] |= pixelMap[y%4][x%2]
}

func (c *Canvas) IsSet(x, y int) bool {
	if x < 0 || y < 0 || x/2 >= c.Width || y/4 >= c.Height {
		return false
	}
	return c.Grid[y/4][x/2]&pixelMap[y%4][x%2] != 0
}

func (c *Canvas) Clear() {
	for i := range c.Grid {
		for j := range c.Grid[i] {
			c.Grid[i][j] = blank
		}
	}
}

// DrawLine draws a line using Bresenham's algorithm
func (c *Canvas) DrawLine(x0, y0, x1, y1 int) {
	dx := absInt(x1 - x0)
	dy := absInt(y1 - y0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx - dy
	for {
		c.Set(x0, y0)
		if x0 == x1 && y0 == y1 {
			break
		}
		e2 := 2 * err
		if e2 > -dy {
			err -= dy
			x0 += sx
		}
		if e2 < dx {
			err += dx
			y0 += sy
		}
	}
}

func (c *Canvas) String() string {
	var b strings.Builder
	for _, row := range c.Grid {
		b.WriteString(string(row) + "\n")
	}
	return b.String()
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// Field maps world coordinates onto a canvas, +Y up.
type Field struct {
	Min, Max r2.Point
}

// FitField returns the smallest square field holding every point, padded by
// 10% and at least minSpan wide.
func FitField(minSpan float64, points ...r2.Point) Field {
	if len(points) == 0 {
		h := minSpan / 2
		return Field{Min: r2.Point{X: -h, Y: -h}, Max: r2.Point{X: h, Y: h}}
	}
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		lo.X, lo.Y = math.Min(lo.X, p.X), math.Min(lo.Y, p.Y)
		hi.X, hi.Y = math.Max(hi.X, p.X), math.Max(hi.Y, p.Y)
	}
	span := math.Max(math.Max(hi.X-lo.X, hi.Y-lo.Y)*1.2, minSpan)
	center := lo.Add(hi).Mul(0.5)
	half := r2.Point{X: span / 2, Y: span / 2}
	return Field{Min: center.Sub(half), Max: center.Add(half)}
}

// Project returns the dot coordinates of p on c.
func (f Field) Project(c *Canvas, p r2.Point) (int, int) {
	w := float64(c.Width*2 - 1)
	h := float64(c.Height*4 - 1)
	x := (p.X - f.Min.X) / (f.Max.X - f.Min.X) * w
	y := (f.Max.Y - p.Y) / (f.Max.Y - f.Min.Y) * h
	return int(math.Round(x)), int(math.Round(y))
}

// Path draws consecutive points as connected segments.
func (f Field) Path(c *Canvas, points []r2.Point) {
	for i := 1; i < len(points); i++ {
		x0, y0 := f.Project(c, points[i-1])
		x1, y1 := f.Project(c, points[i])
		c.DrawLine(x0, y0, x1, y1)
	}
}

// Marker draws a small cross at p.
func (f Field) Marker(c *Canvas, p r2.Point) {
	x, y := f.Project(c, p)
	c.DrawLine(x-1, y, x+1, y)
	c.DrawLine(x, y-1, x, y+1)
}
