// Package colormap maps a numeric metric to fill colors using
// percentile clipping and a perceptually uniform ramp.
package colormap

import (
	"fmt"
	"math"
	"sort"

	colorful "github.com/lucasb-eyer/go-colorful"
)

const (
	// LowPercentile and HighPercentile bound the color range.
	LowPercentile  = 2.0
	HighPercentile = 98.0

	// Opacity is applied to every colored feature.
	Opacity = 0.7
	// MissingOpacity is applied to the gray used for missing values.
	MissingOpacity = 0.3
)

// Color is an RGBA fill color.
type Color struct {
	R, G, B uint8
	A       float64
}

// CSS renders the color as an rgba() string.
func (c Color) CSS() string {
	return fmt.Sprintf("rgba(%d, %d, %d, %.2f)", c.R, c.G, c.B, c.A)
}

// Missing is the fill for features without a value.
var Missing = Color{R: 189, G: 189, B: 189, A: MissingOpacity}

// stops is the five-stop viridis ramp at 0, 0.25, 0.5, 0.75 and 1.
var stops = [5]colorful.Color{
	rgb(68, 1, 84),
	rgb(59, 82, 139),
	rgb(33, 145, 140),
	rgb(94, 201, 98),
	rgb(253, 231, 37),
}

func rgb(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// Result holds per-value colors and the clip bounds used.
type Result struct {
	Colors   []Color
	LowClip  float64
	HighClip float64
}

// CSS returns the colors as rgba() strings.
func (r Result) CSS() []string {
	out := make([]string, len(r.Colors))
	for i, c := range r.Colors {
		out[i] = c.CSS()
	}
	return out
}

// Compute colors values. NaN and Inf are missing. The output always has
// len(values) entries and is independent of input order.
func Compute(values []float64) Result {
	present := make([]float64, 0, len(values))
	for _, v := range values {
		if !missing(v) {
			present = append(present, v)
		}
	}
	sort.Float64s(present)

	low, high := 0.0, 1.0
	if len(present) > 0 {
		low = percentile(present, LowPercentile)
		high = percentile(present, HighPercentile)
	}
	if low == high {
		high = low + 1
	}

	colors := make([]Color, len(values))
	for i, v := range values {
		if missing(v) {
			colors[i] = Missing
			continue
		}
		colors[i] = Ramp(normalize(v, low, high))
	}
	return Result{Colors: colors, LowClip: low, HighClip: high}
}

// Ramp interpolates the ramp at t in [0, 1].
func Ramp(t float64) Color {
	t = math.Max(0, math.Min(1, t))
	seg := int(t * 4)
	if seg >= 4 {
		seg = 3
	}
	local := t*4 - float64(seg)
	c := stops[seg].BlendRgb(stops[seg+1], local).Clamped()
	r, g, b := c.RGB255()
	return Color{R: r, G: g, B: b, A: Opacity}
}

func normalize(v, low, high float64) float64 {
	v = math.Max(low, math.Min(high, v))
	return (v - low) / (high - low)
}

// percentile uses linear interpolation between closest ranks.
// sorted must be non-empty and ascending.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	return sorted[lo] + (sorted[hi]-sorted[lo])*(rank-float64(lo))
}

func missing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
