// Package render draws assembled detector images: PNG heatmaps through
// gonum/plot and interactive HTML scatter charts through go-echarts.
package render

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"strings"
)

// ErrUnknownColormap is returned by ParseColormap.
var ErrUnknownColormap = errors.New("unknown colormap")

// Colormap selects how intensities map to colors.
type Colormap int

const (
	Cubehelix Colormap = iota
	CMRmap
	Gray
	GrayR
	Jet
)

var colormapNames = []string{"cubehelix", "CMRmap", "gray", "gray_r", "jet"}

// Colormaps lists every colormap in menu order.
func Colormaps() []Colormap {
	return []Colormap{Cubehelix, CMRmap, Gray, GrayR, Jet}
}

func (c Colormap) String() string {
	if c < 0 || int(c) >= len(colormapNames) {
		return fmt.Sprintf("Colormap(%d)", int(c))
	}
	return colormapNames[c]
}

// ParseColormap looks a colormap up by name, ignoring case. The empty
// string selects the default, cubehelix.
func ParseColormap(name string) (Colormap, error) {
	if name == "" {
		return Cubehelix, nil
	}
	for i, n := range colormapNames {
		if strings.EqualFold(n, name) {
			return Colormap(i), nil
		}
	}
	return 0, fmt.Errorf("%w %q (want one of %s)", ErrUnknownColormap, name, strings.Join(colormapNames, ", "))
}

// At returns the color for t in [0,1]; t is clamped.
func (c Colormap) At(t float64) color.RGBA {
	t = clamp01(t)
	var r, g, b float64
	switch c {
	case CMRmap:
		r = interp(cmrR, t)
		g = interp(cmrG, t)
		b = interp(cmrB, t)
	case Gray:
		r, g, b = t, t, t
	case GrayR:
		r, g, b = 1-t, 1-t, 1-t
	case Jet:
		r = clamp01(1.5 - math.Abs(4*t-3))
		g = clamp01(1.5 - math.Abs(4*t-2))
		b = clamp01(1.5 - math.Abs(4*t-1))
	default:
		r, g, b = cubehelix(t)
	}
	return color.RGBA{R: to8(r), G: to8(g), B: to8(b), A: 255}
}

// Colors samples n evenly spaced colors.
func (c Colormap) Colors(n int) []color.Color {
	out := make([]color.Color, n)
	for i := range out {
		t := 0.0
		if n > 1 {
			t = float64(i) / float64(n-1)
		}
		out[i] = c.At(t)
	}
	return out
}

// Hex samples n colors as "#rrggbb" strings.
func (c Colormap) Hex(n int) []string {
	out := make([]string, n)
	for i, col := range c.Colors(n) {
		rgba := col.(color.RGBA)
		out[i] = fmt.Sprintf("#%02x%02x%02x", rgba.R, rgba.G, rgba.B)
	}
	return out
}

// cubehelix is Green's (2011) scheme with start 0.5, one and a half
// backwards rotations and unit hue.
func cubehelix(t float64) (r, g, b float64) {
	const start, rot, hue = 0.5, -1.5, 1.0
	phi := 2 * math.Pi * (start/3 + 1 + rot*t)
	amp := hue * t * (1 - t) / 2
	cos, sin := math.Cos(phi), math.Sin(phi)
	r = t + amp*(-0.14861*cos+1.78277*sin)
	g = t + amp*(-0.29227*cos-0.90649*sin)
	b = t + amp*(1.97294*cos)
	return clamp01(r), clamp01(g), clamp01(b)
}

// CMRmap anchors at t = 0, 1/8, ..., 1.
var (
	cmrR = []float64{0, 0.15, 0.30, 0.60, 1.00, 0.90, 0.90, 0.90, 1}
	cmrG = []float64{0, 0.15, 0.15, 0.20, 0.25, 0.35, 0.50, 0.80, 1}
	cmrB = []float64{0, 0.50, 0.75, 0.80, 0.30, 0.00, 0.00, 0.50, 1}
)

func interp(anchors []float64, t float64) float64 {
	pos := t * float64(len(anchors)-1)
	i := int(pos)
	if i >= len(anchors)-1 {
		return anchors[len(anchors)-1]
	}
	f := pos - float64(i)
	return anchors[i]*(1-f) + anchors[i+1]*f
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

func to8(v float64) uint8 { return uint8(math.Round(v * 255)) }
