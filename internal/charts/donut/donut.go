// Package donut renders the audit ratio as a two-colour SVG ring.
package donut

import (
	"fmt"
	"html"
	"io"
	"math"
	"strconv"
	"strings"
	"text/template"
)

const (
	DefaultSize           = 180.0
	DefaultRingWidth      = 16.0
	DefaultDoneColor      = "#00B2FF"
	DefaultReceivedColor  = "#FF5E00"
	DefaultBackgroundRing = "rgba(255,255,255,0.06)"

	// Infinity is the ratio label when audits were given but none received.
	Infinity = "∞"
	// ZeroRatio is the ratio label when nothing was given.
	ZeroRatio = "0.0"
)

// Options tunes the rendering. Zero fields fall back to the defaults.
type Options struct {
	Size           float64
	RingWidth      float64
	DoneColor      string
	ReceivedColor  string
	BackgroundRing string
	// IDPrefix namespaces the gradient and filter ids so several donuts can
	// share one document.
	IDPrefix string
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 || math.IsNaN(o.Size) || math.IsInf(o.Size, 0) {
		o.Size = DefaultSize
	}
	if o.RingWidth <= 0 || math.IsNaN(o.RingWidth) || o.RingWidth >= o.Size {
		o.RingWidth = DefaultRingWidth
	}
	if o.DoneColor == "" {
		o.DoneColor = DefaultDoneColor
	}
	if o.ReceivedColor == "" {
		o.ReceivedColor = DefaultReceivedColor
	}
	if o.BackgroundRing == "" {
		o.BackgroundRing = DefaultBackgroundRing
	}
	return o
}

// Geometry is everything the markup needs, computed without side effects.
type Geometry struct {
	Options
	Center        float64
	Radius        float64
	Circumference float64
	// DoneLength and ReceivedLength are arc lengths along the ring, each
	// clamped to [0, Circumference].
	DoneLength     float64
	ReceivedLength float64
	Ratio          string
	// Empty is set when both counters are zero; no arcs are drawn.
	Empty bool
}

// Compute derives the ring geometry for totalUp (done) and totalDown
// (received).
func Compute(totalUp, totalDown float64, opts Options) Geometry {
	opts = opts.withDefaults()
	up := sanitize(totalUp)
	down := sanitize(totalDown)
	total := up + down

	r := opts.Size/2 - opts.RingWidth/2
	c := 2 * math.Pi * r
	g := Geometry{
		Options:       opts,
		Center:        opts.Size / 2,
		Radius:        r,
		Circumference: c,
		Ratio:         ratioLabel(up, down),
	}
	if total == 0 {
		g.Empty = true
		g.Ratio = ZeroRatio
		return g
	}
	g.DoneLength = clamp(c*(up/total), 0, c)
	g.ReceivedLength = clamp(c*(down/total), 0, c)
	return g
}

// Render writes standalone SVG markup for the audit ratio to w.
func Render(w io.Writer, totalUp, totalDown float64, opts Options) error {
	g := Compute(totalUp, totalDown, opts)
	tpl := donutTemplate
	if g.Empty {
		tpl = emptyTemplate
	}
	if err := tpl.Execute(w, g); err != nil {
		return fmt.Errorf("render donut: %w", err)
	}
	return nil
}

// RenderRatioDonut returns the markup Render would write.
func RenderRatioDonut(totalUp, totalDown float64, opts Options) (string, error) {
	var b strings.Builder
	if err := Render(&b, totalUp, totalDown, opts); err != nil {
		return "", err
	}
	return b.String(), nil
}

func ratioLabel(up, down float64) string {
	if down == 0 {
		if up > 0 {
			return Infinity
		}
		return ZeroRatio
	}
	return strconv.FormatFloat(up/down, 'f', 1, 64)
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var funcs = template.FuncMap{
	"num":  num,
	"attr": html.EscapeString,
	"sub":  func(a, b float64) float64 { return a - b },
	"neg":  func(a float64) float64 { return -a },
	"add":  func(a, b float64) float64 { return a + b },
	"mul":  func(a, b float64) float64 { return a * b },
}

var emptyTemplate = template.Must(template.New("empty").Funcs(funcs).Parse(`
<svg width="{{num .Size}}" height="{{num .Size}}" viewBox="0 0 {{num .Size}} {{num .Size}}" preserveAspectRatio="xMidYMid meet" role="img" aria-label="No audit data">
  <circle cx="{{num .Center}}" cy="{{num .Center}}" r="{{num .Radius}}" fill="none" stroke="{{attr .BackgroundRing}}" stroke-width="{{num .RingWidth}}"/>
  <text x="{{num .Center}}" y="{{num .Center}}" text-anchor="middle" dominant-baseline="middle"
        font-family="Orbitron, system-ui, sans-serif" font-weight="900" font-size="{{num (mul .Size 0.22)}}"
        fill="#cfd6e3">{{.Ratio}}</text>
  <text x="{{num .Center}}" y="{{num (add .Center (mul .Size 0.16))}}" text-anchor="middle" dominant-baseline="middle"
        font-family="Rajdhani, system-ui, sans-serif" font-weight="700" font-size="{{num (mul .Size 0.10)}}"
        fill="#9aa3af">ratio</text>
</svg>`))

var donutTemplate = template.Must(template.New("donut").Funcs(funcs).Parse(`
<svg width="{{num .Size}}" height="{{num .Size}}" viewBox="0 0 {{num .Size}} {{num .Size}}" preserveAspectRatio="xMidYMid meet" role="img" aria-label="Audit ratio donut">
  <defs>
    <filter id="{{attr .IDPrefix}}softGlow" x="-50%" y="-50%" width="200%" height="200%">
      <feGaussianBlur stdDeviation="2.5" result="coloredBlur"/>
      <feMerge>
        <feMergeNode in="coloredBlur"/>
        <feMergeNode in="SourceGraphic"/>
      </feMerge>
    </filter>
    <linearGradient id="{{attr .IDPrefix}}gradDone" x1="0%" y1="0%" x2="100%" y2="0%">
      <stop offset="0%" stop-color="{{attr .DoneColor}}" stop-opacity="0.9"/>
      <stop offset="100%" stop-color="{{attr .DoneColor}}" stop-opacity="0.7"/>
    </linearGradient>
    <linearGradient id="{{attr .IDPrefix}}gradRecv" x1="0%" y1="0%" x2="100%" y2="0%">
      <stop offset="0%" stop-color="{{attr .ReceivedColor}}" stop-opacity="0.9"/>
      <stop offset="100%" stop-color="{{attr .ReceivedColor}}" stop-opacity="0.7"/>
    </linearGradient>
  </defs>
  <circle cx="{{num .Center}}" cy="{{num .Center}}" r="{{num .Radius}}" fill="none" stroke="{{attr .BackgroundRing}}" stroke-width="{{num .RingWidth}}"/>
  <g transform="rotate(-90 {{num .Center}} {{num .Center}})">
    <circle class="arc-received" cx="{{num .Center}}" cy="{{num .Center}}" r="{{num .Radius}}" fill="none"
            stroke="url(#{{attr .IDPrefix}}gradRecv)" stroke-width="{{num .RingWidth}}"
            stroke-linecap="butt" filter="url(#{{attr .IDPrefix}}softGlow)"
            stroke-dasharray="{{num .ReceivedLength}} {{num (sub .Circumference .ReceivedLength)}}"
            stroke-dashoffset="{{num (neg .DoneLength)}}"/>
    <circle class="arc-done" cx="{{num .Center}}" cy="{{num .Center}}" r="{{num .Radius}}" fill="none"
            stroke="url(#{{attr .IDPrefix}}gradDone)" stroke-width="{{num .RingWidth}}"
            stroke-linecap="butt" filter="url(#{{attr .IDPrefix}}softGlow)"
            stroke-dasharray="{{num .DoneLength}} {{num (sub .Circumference .DoneLength)}}"
            stroke-dashoffset="0"/>
  </g>
  <text x="{{num .Center}}" y="{{num (sub .Center (mul .Size 0.02))}}" text-anchor="middle" dominant-baseline="middle"
        font-family="Orbitron, system-ui, sans-serif" font-weight="900" font-size="{{num (mul .Size 0.24)}}"
        fill="#e7e9ee">{{.Ratio}}</text>
  <text x="{{num .Center}}" y="{{num (add .Center (mul .Size 0.16))}}" text-anchor="middle" dominant-baseline="middle"
        font-family="Rajdhani, system-ui, sans-serif" font-weight="700" font-size="{{num (mul .Size 0.10)}}"
        fill="#e3dacfff">ratio</text>
</svg>`))
