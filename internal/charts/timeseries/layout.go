// Package timeseries lays out the XP line chart and draws it onto pluggable
// surfaces (SVG markup, PNG raster).
package timeseries

import (
	"fmt"
	"math"
	"time"

	"xpdash/internal/progress/models"
)

const (
	DefaultWidth = 900.0
	MinWidth     = 320.0
	MinHeight    = 260.0
	MaxHeight    = 540.0
	aspect       = 0.52

	xTickCount = 6
	yTickCount = 6
	headroom   = 0.08

	EmptyMessage = "No XP data available."
)

// Margins around the plot area, in pixels.
type Margins struct {
	Top, Right, Bottom, Left float64
}

var DefaultMargins = Margins{Top: 24, Right: 24, Bottom: 40, Left: 56}

// Style holds the chart palette and marker sizes.
type Style struct {
	LineColor   string
	LineWidth   float64
	DotFill     string
	DotStroke   string
	DotRadius   float64
	HoverRadius float64
	GridColor   string
	AxisColor   string
	TextColor   string
}

var DefaultStyle = Style{
	LineColor:   "#37e2ff",
	LineWidth:   2.5,
	DotFill:     "#0ea5b7",
	DotStroke:   "#9ae6ff",
	DotRadius:   3.2,
	HoverRadius: 5,
	GridColor:   "rgba(148,163,184,0.15)",
	AxisColor:   "#6b7280",
	TextColor:   "#cfd6e3",
}

// Options selects the plotted series and the available width.
type Options struct {
	// Cumulative plots running totals; otherwise per-event amounts.
	Cumulative bool
	// Width is the space available to the chart; 0 means DefaultWidth.
	Width float64
	// Location is used for date labels; nil means UTC.
	Location *time.Location
	// Style overrides DefaultStyle when non-zero.
	Style *Style
}

// XTick is a date tick along the bottom axis.
type XTick struct {
	X     float64
	Time  time.Time
	Label string
}

// YTick is a value tick along the left axis. Grid is set for interior ticks.
type YTick struct {
	Y     float64
	Value float64
	Label string
	Grid  bool
}

// Marker is one dot on the line with its tooltip.
type Marker struct {
	X, Y    float64
	Point   Point
	Tooltip string
}

// Layout is the fully computed chart in plot-area coordinates.
type Layout struct {
	Width, Height           float64
	Margins                 Margins
	InnerWidth, InnerHeight float64
	Cumulative              bool
	Style                   Style

	TimeMin, TimeMax time.Time
	ValueMax         float64

	XTicks  []XTick
	YTicks  []YTick
	XLabel  string
	YLabel  string
	Path    string
	Markers []Marker
}

// Dimensions returns the chart size for an available width.
func Dimensions(available float64) (width, height float64) {
	if available <= 0 || math.IsNaN(available) || math.IsInf(available, 0) {
		available = DefaultWidth
	}
	width = math.Max(MinWidth, available)
	height = math.Max(MinHeight, math.Min(MaxHeight, math.Round(width*aspect)))
	return width, height
}

// linearScale maps [d0, d1] onto [r0, r1]. A zero-length domain maps as if
// it had length one.
func linearScale(d0, d1, r0, r1 float64) func(float64) float64 {
	d := d1 - d0
	if d == 0 {
		d = 1
	}
	r := r1 - r0
	return func(v float64) float64 {
		return r0 + (v-d0)/d*r
	}
}

// ComputeLayout positions every element of the chart. It reports false when
// there is nothing to plot.
func ComputeLayout(events []models.XPEvent, opts Options) (Layout, bool) {
	pts := Points(events)
	if len(pts) == 0 {
		return Layout{}, false
	}

	style := DefaultStyle
	if opts.Style != nil {
		style = *opts.Style
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	width, height := Dimensions(opts.Width)
	m := DefaultMargins
	l := Layout{
		Width:       width,
		Height:      height,
		Margins:     m,
		InnerWidth:  width - m.Left - m.Right,
		InnerHeight: height - m.Top - m.Bottom,
		Cumulative:  opts.Cumulative,
		Style:       style,
		TimeMin:     pts[0].Time,
		TimeMax:     pts[len(pts)-1].Time,
		XLabel:      "Date",
		YLabel:      "XP Amount",
	}
	if opts.Cumulative {
		l.YLabel = "Cumulative XP"
	}

	maxValue := math.Inf(-1)
	for _, p := range pts {
		maxValue = math.Max(maxValue, p.Value(opts.Cumulative))
	}
	l.ValueMax = maxValue * (1 + headroom)

	tMin := float64(l.TimeMin.UnixMilli())
	tMax := float64(l.TimeMax.UnixMilli())
	x := linearScale(tMin, tMax, 0, l.InnerWidth)
	y := linearScale(0, l.ValueMax, l.InnerHeight, 0)

	for i := 0; i <= xTickCount; i++ {
		tv := tMin + (tMax-tMin)*float64(i)/xTickCount
		t := time.UnixMilli(int64(tv)).In(loc)
		l.XTicks = append(l.XTicks, XTick{X: x(tv), Time: t, Label: t.Format("Jan 2006")})
	}
	for i := 0; i <= yTickCount; i++ {
		v := l.ValueMax * float64(i) / yTickCount
		l.YTicks = append(l.YTicks, YTick{
			Y:     y(v),
			Value: v,
			Label: FormatCompact(v),
			Grid:  i > 0 && i < yTickCount,
		})
	}

	path := make([]byte, 0, len(pts)*24)
	for i, p := range pts {
		px := x(float64(p.Time.UnixMilli()))
		py := y(p.Value(opts.Cumulative))
		cmd := "L"
		if i == 0 {
			cmd = "M"
		}
		if i > 0 {
			path = append(path, ' ')
		}
		path = fmt.Appendf(path, "%s%s %s", cmd, num(px), num(py))
		l.Markers = append(l.Markers, Marker{
			X:       px,
			Y:       py,
			Point:   p,
			Tooltip: tooltip(p, opts.Cumulative, loc),
		})
	}
	l.Path = string(path)
	return l, true
}

func tooltip(p Point, cumulative bool, loc *time.Location) string {
	name := p.Label
	if name == "" {
		name = "Unknown project"
	}
	value := fmt.Sprintf("Amount: %s", FormatGrouped(p.Amount))
	if cumulative {
		value = fmt.Sprintf("Total: %s", FormatGrouped(p.Total))
	}
	return fmt.Sprintf("%s\n%s\nDate: %s", name, value, p.Time.In(loc).Format("Jan 2, 2006"))
}
