package timeseries

import (
	"fmt"
	"io"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// PNGSurface rasterises the chart with go-chart.
type PNGSurface struct {
	w          io.Writer
	background drawing.Color
}

func NewPNGSurface(w io.Writer) *PNGSurface {
	return &PNGSurface{w: w, background: drawing.ColorFromHex("0f1013")}
}

func (s *PNGSurface) Empty(message string) error {
	width, height := Dimensions(0)
	r, err := chart.PNG(int(width), int(height))
	if err != nil {
		return fmt.Errorf("create png renderer: %w", err)
	}
	w, h := int(width), int(height)
	r.SetFillColor(s.background)
	r.MoveTo(0, 0)
	r.LineTo(w, 0)
	r.LineTo(w, h)
	r.LineTo(0, h)
	r.Close()
	r.Fill()

	font, err := chart.GetDefaultFont()
	if err != nil {
		return fmt.Errorf("load chart font: %w", err)
	}
	r.SetFont(font)
	r.SetFontColor(parseColor(DefaultStyle.TextColor))
	r.SetFontSize(14)
	box := r.MeasureText(message)
	r.Text(message, (w-box.Width())/2, h/2)
	return r.Save(s.w)
}

func (s *PNGSurface) Draw(l Layout) error {
	st := l.Style
	text := chart.Style{FontColor: parseColor(st.TextColor), StrokeColor: parseColor(st.AxisColor), FontSize: 9}

	times := make([]time.Time, 0, len(l.Markers))
	values := make([]float64, 0, len(l.Markers))
	for _, m := range l.Markers {
		times = append(times, m.Point.Time)
		values = append(values, m.Point.Value(l.Cumulative))
	}

	xMin, xMax := chart.TimeToFloat64(l.TimeMin), chart.TimeToFloat64(l.TimeMax)
	xTicks := make([]chart.Tick, 0, len(l.XTicks))
	for _, t := range l.XTicks {
		xTicks = append(xTicks, chart.Tick{Value: chart.TimeToFloat64(t.Time), Label: t.Label})
	}
	if xMax <= xMin {
		// A single instant has no span; widen by a day so the axis can render.
		next := l.TimeMin.Add(24 * time.Hour)
		times = append(times, times[len(times)-1])
		values = append(values, values[len(values)-1])
		xMax = chart.TimeToFloat64(next)
		xTicks = []chart.Tick{
			{Value: xMin, Label: l.XTicks[0].Label},
			{Value: xMax, Label: next.Format("Jan 2006")},
		}
	}

	yMax := l.ValueMax
	if yMax <= 0 {
		yMax = 1
	}
	yTicks := make([]chart.Tick, 0, len(l.YTicks))
	var grid []chart.GridLine
	for _, t := range l.YTicks {
		yTicks = append(yTicks, chart.Tick{Value: t.Value, Label: t.Label})
		if t.Grid {
			grid = append(grid, chart.GridLine{Value: t.Value})
		}
	}

	ch := chart.Chart{
		Width:  int(l.Width),
		Height: int(l.Height),
		Background: chart.Style{
			FillColor: s.background,
			Padding: chart.Box{
				Top:    int(l.Margins.Top),
				Right:  int(l.Margins.Right),
				Bottom: int(l.Margins.Bottom),
				Left:   int(l.Margins.Left),
			},
		},
		Canvas: chart.Style{FillColor: s.background},
		XAxis: chart.XAxis{
			Name:      l.XLabel,
			NameStyle: text,
			Style:     text,
			Range:     &chart.ContinuousRange{Min: xMin, Max: xMax},
			Ticks:     xTicks,
		},
		YAxis: chart.YAxis{
			Name:           l.YLabel,
			NameStyle:      text,
			Style:          text,
			Range:          &chart.ContinuousRange{Min: 0, Max: yMax},
			Ticks:          yTicks,
			GridLines:      grid,
			GridMajorStyle: chart.Style{StrokeColor: parseColor(st.GridColor), StrokeWidth: 1},
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    l.YLabel,
				XValues: times,
				YValues: values,
				Style: chart.Style{
					StrokeColor: parseColor(st.LineColor),
					StrokeWidth: st.LineWidth,
					DotColor:    parseColor(st.DotFill),
					DotWidth:    st.DotRadius,
				},
			},
		},
	}
	if err := ch.Render(chart.PNG, s.w); err != nil {
		return fmt.Errorf("render png chart: %w", err)
	}
	return nil
}

// parseColor accepts "#rrggbb" and "rgba(r,g,b,a)" with a in [0,1].
func parseColor(s string) drawing.Color {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if strings.HasPrefix(s, "rgba(") {
		var r, g, b uint8
		var a float64
		if _, err := fmt.Sscanf(s, "rgba(%d,%d,%d,%g)", &r, &g, &b, &a); err == nil {
			return drawing.Color{R: r, G: g, B: b, A: uint8(a*255 + 0.5)}
		}
		return drawing.ColorTransparent
	}
	return drawing.ColorFromHex(strings.TrimPrefix(s, "#"))
}
