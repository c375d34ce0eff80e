// Package colormap maps voxel values to colours for the slice textures.
package colormap

import (
	"fmt"
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"mriview/pkg/gpu"
)

// Colormap maps a voxel value to RGBA. DimIn is the number of channels it
// reads: 1 for scalar and discrete maps, 3 for vector maps.
type Colormap interface {
	Apply(v []float64) gpu.Color
	DimIn() int
}

// Coloring maps [0, 1] to a colour.
type Coloring func(t float64) colorful.Color

// Names of the built-in colorings.
const (
	Grayscale = "grayscale"
	Hot       = "hot"
	RedGrad   = "redgrad"
	BlueGrad  = "bluegrad"
	Cool      = "cool"
	Warm      = "warm"
	Diverging = "diverging"
	Jet       = "jet"
	JetGray   = "jetgray"
	Turbo     = "turbo"
	Rainbow   = "rainbow"
)

var (
	coolEnd = colorful.Color{R: 0.2298057, G: 0.298717966, B: 0.753683153}
	midGray = colorful.Color{R: 0.865395197, G: 0.86541021, B: 0.865395561}
	warmEnd = colorful.Color{R: 0.705673158, G: 0.01555616, B: 0.150232812}
)

var colorings = map[string]Coloring{
	Grayscale: func(t float64) colorful.Color { return colorful.Color{R: t, G: t, B: t} },
	Hot: stops(
		colorful.Color{}, colorful.Color{R: 1}, colorful.Color{R: 1, G: 1}, colorful.Color{R: 1, G: 1, B: 1},
	),
	RedGrad:   stops(colorful.Color{R: 1}, colorful.Color{R: 1, G: 1}),
	BlueGrad:  stops(colorful.Color{B: 1}, colorful.Color{G: 1, B: 1}),
	Cool:      func(t float64) colorful.Color { return coolEnd.BlendLab(midGray, t).Clamped() },
	Warm:      func(t float64) colorful.Color { return warmEnd.BlendLab(midGray, t).Clamped() },
	Diverging: diverging,
	Jet:       jet,
	JetGray: func(t float64) colorful.Color {
		if t <= 0 || t >= 1 {
			return colorful.Color{R: 0.5, G: 0.5, B: 0.5}
		}
		return jet(t)
	},
	Turbo:   turbo,
	Rainbow: func(t float64) colorful.Color { return colorful.Hsv(359.99*t, 1, 1) },
}

// Colorings lists the built-in coloring names.
func Colorings() []string {
	out := make([]string, 0, len(colorings))
	for k := range colorings {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// LookupColoring returns a built-in coloring by name.
func LookupColoring(name string) (Coloring, error) {
	c, ok := colorings[name]
	if !ok {
		return nil, fmt.Errorf("unknown coloring %q", name)
	}
	return c, nil
}

// stops interpolates evenly spaced colours in RGB.
func stops(cs ...colorful.Color) Coloring {
	return func(t float64) colorful.Color {
		t = clamp01(t)
		f := t * float64(len(cs)-1)
		i := min(int(f), len(cs)-2)
		return cs[i].BlendRgb(cs[i+1], f-float64(i))
	}
}

func diverging(t float64) colorful.Color {
	t = clamp01(t)
	if t < 0.5 {
		return coolEnd.BlendLab(midGray, 2*t).Clamped()
	}
	return midGray.BlendLab(warmEnd, 2*t-1).Clamped()
}

func jet(t float64) colorful.Color {
	i4 := 4 * clamp01(t) * 255 / 256
	return colorful.Color{
		R: clamp01(math.Min(i4-1.5, -i4+4.5)),
		G: clamp01(math.Min(i4-0.5, -i4+3.5)),
		B: clamp01(math.Min(i4+0.5, -i4+2.5)),
	}
}

// turbo is the polynomial approximation by Mike Bostock.
func turbo(t float64) colorful.Color {
	x := clamp01(t)
	r := 34.61 + x*(1172.33-x*(10793.56-x*(33300.12-x*(38394.49-x*14825.05))))
	g := 23.31 + x*(557.33+x*(1225.33-x*(3574.96-x*(1073.77+x*707.56))))
	b := 27.2 + x*(3211.1-x*(15327.97-x*(27814-x*(22569.18-x*6838.66))))
	return colorful.Color{R: clamp01(r / 255), G: clamp01(g / 255), B: clamp01(b / 255)}
}

func toColor(c colorful.Color, a float64) gpu.Color {
	return gpu.Color{R: c.R, G: c.G, B: c.B, A: a}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(1, math.Max(0, v))
}
