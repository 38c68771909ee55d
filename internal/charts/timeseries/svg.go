package timeseries

import (
	"bufio"
	"fmt"
	"html"
	"io"
)

// SVGSurface writes standalone SVG markup. Tooltips are <title> children of
// each marker and hover enlargement is a CSS rule, so the output needs no
// script.
type SVGSurface struct {
	w io.Writer
}

func NewSVGSurface(w io.Writer) *SVGSurface {
	return &SVGSurface{w: w}
}

// Empty writes a short banner holding only the message.
func (s *SVGSurface) Empty(message string) error {
	width, _ := Dimensions(0)
	const height = 48
	bw := bufio.NewWriter(s.w)
	fmt.Fprintf(bw, `<svg xmlns="http://www.w3.org/2000/svg" class="xp-chart xp-chart-empty" width="%s" height="%d" viewBox="0 0 %s %d" style="display:block;max-width:100%%">`,
		num(width), height, num(width), height)
	fmt.Fprintf(bw, `<text x="%s" y="%d" text-anchor="middle" fill="%s" font-size="14">%s</text></svg>`,
		num(width/2), height/2, attr(DefaultStyle.TextColor), html.EscapeString(message))
	return bw.Flush()
}

func (s *SVGSurface) Draw(l Layout) error {
	st := l.Style
	bw := bufio.NewWriter(s.w)
	p := func(format string, args ...any) {
		fmt.Fprintf(bw, format, args...)
	}

	p(`<svg xmlns="http://www.w3.org/2000/svg" class="xp-chart" width="%s" height="%s" viewBox="0 0 %s %s" style="display:block;max-width:100%%">`,
		num(l.Width), num(l.Height), num(l.Width), num(l.Height))
	p(`<style>.xp-dot{cursor:pointer}.xp-dot:hover{r:%s}</style>`, num(st.HoverRadius))
	p(`<g transform="translate(%s,%s)">`, num(l.Margins.Left), num(l.Margins.Top))

	p(`<line x1="0" y1="%s" x2="%s" y2="%s" stroke="%s"/>`, num(l.InnerHeight), num(l.InnerWidth), num(l.InnerHeight), attr(st.AxisColor))
	for _, t := range l.XTicks {
		p(`<line x1="%s" y1="%s" x2="%s" y2="%s" stroke="%s"/>`, num(t.X), num(l.InnerHeight), num(t.X), num(l.InnerHeight+6), attr(st.AxisColor))
		p(`<text x="%s" y="%s" text-anchor="middle" fill="%s" font-size="10">%s</text>`, num(t.X), num(l.InnerHeight+18), attr(st.TextColor), html.EscapeString(t.Label))
	}

	p(`<line x1="0" y1="0" x2="0" y2="%s" stroke="%s"/>`, num(l.InnerHeight), attr(st.AxisColor))
	for _, t := range l.YTicks {
		p(`<line x1="-6" y1="%s" x2="0" y2="%s" stroke="%s"/>`, num(t.Y), num(t.Y), attr(st.AxisColor))
		if t.Grid {
			p(`<line class="xp-grid" x1="0" y1="%s" x2="%s" y2="%s" stroke="%s"/>`, num(t.Y), num(l.InnerWidth), num(t.Y), attr(st.GridColor))
		}
		p(`<text x="-8" y="%s" text-anchor="end" fill="%s" font-size="10">%s</text>`, num(t.Y+3), attr(st.TextColor), html.EscapeString(t.Label))
	}

	p(`<text x="%s" y="%s" text-anchor="middle" fill="%s" font-size="12">%s</text>`, num(l.InnerWidth/2), num(l.InnerHeight+34), attr(st.TextColor), html.EscapeString(l.XLabel))
	p(`<text transform="translate(-44 %s) rotate(-90)" text-anchor="middle" fill="%s" font-size="12">%s</text>`, num(l.InnerHeight/2), attr(st.TextColor), html.EscapeString(l.YLabel))

	p(`<path class="xp-line" d="%s" fill="none" stroke="%s" stroke-width="%s" stroke-linejoin="round" stroke-linecap="round"/>`,
		l.Path, attr(st.LineColor), num(st.LineWidth))

	for _, m := range l.Markers {
		p(`<circle class="xp-dot" cx="%s" cy="%s" r="%s" fill="%s" stroke="%s" stroke-width="1"><title>%s</title></circle>`,
			num(m.X), num(m.Y), num(st.DotRadius), attr(st.DotFill), attr(st.DotStroke), html.EscapeString(m.Tooltip))
	}

	p(`</g></svg>`)
	return bw.Flush()
}

func attr(s string) string {
	return html.EscapeString(s)
}
