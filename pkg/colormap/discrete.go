package colormap

import (
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"

	"mriview/pkg/gpu"
)

// goldenAngle spaces palette hues so neighbouring labels stay distinct.
const goldenAngle = 137.50776405003785

// Discrete maps integer labels to colours. Label 0 is transparent. With
// Periodic set, labels without an entry wrap around the table.
type Discrete struct {
	Name     string
	Periodic bool

	colors map[int]gpu.Color
	labels []int
}

// NewDiscrete creates a palette for labels 1..n.
func NewDiscrete(n int) *Discrete {
	d := &Discrete{Name: "labels", Periodic: true, colors: make(map[int]gpu.Color)}
	for i := 1; i <= n; i++ {
		hue := math.Mod(float64(i-1)*goldenAngle, 360)
		d.Set(i, toColor(colorful.Hsv(hue, 0.65, 0.95), 1))
	}
	return d
}

// Set assigns a colour to a label.
func (d *Discrete) Set(label int, c gpu.Color) {
	if _, ok := d.colors[label]; !ok {
		d.labels = append(d.labels, label)
		sort.Ints(d.labels)
	}
	d.colors[label] = c
}

// Labels returns the labels with an explicit colour.
func (d *Discrete) Labels() []int { return append([]int(nil), d.labels...) }

// Color returns the colour of a label.
func (d *Discrete) Color(label int) gpu.Color {
	if label == 0 {
		return gpu.Color{}
	}
	if c, ok := d.colors[label]; ok {
		return c
	}
	n := len(d.labels)
	if n == 0 || label < 0 {
		return gpu.Color{}
	}
	if d.Periodic {
		if c, ok := d.colors[label%n+1]; ok {
			return c
		}
	}
	return d.colors[d.labels[n-1]]
}

// Apply implements Colormap.
func (d *Discrete) Apply(v []float64) gpu.Color {
	if len(v) == 0 || math.IsNaN(v[0]) {
		return gpu.Color{}
	}
	return d.Color(int(math.Round(v[0])))
}

// DimIn implements Colormap.
func (d *Discrete) DimIn() int { return 1 }

// Vector maps the absolute value of three channels to red, green and blue,
// the usual direction encoding.
type Vector struct {
	// Scale divides each channel before clamping; zero means one
	Scale float64
}

// Apply implements Colormap.
func (v Vector) Apply(x []float64) gpu.Color {
	if len(x) < 3 {
		return gpu.Color{}
	}
	s := v.Scale
	if s == 0 {
		s = 1
	}
	return gpu.Color{
		R: clamp01(math.Abs(x[0]) / s),
		G: clamp01(math.Abs(x[1]) / s),
		B: clamp01(math.Abs(x[2]) / s),
		A: 1,
	}
}

// DimIn implements Colormap.
func (Vector) DimIn() int { return 3 }
