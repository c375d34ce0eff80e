package colormap

import (
	"fmt"
	"math"
	"sort"

	"mriview/internal/models"
	"mriview/pkg/gpu"
)

// Point is a control point of a transfer function, both coordinates in [0, 1].
type Point struct {
	X, Y float64
}

// Scalar maps one channel through ramp(min, max), a piecewise linear
// transfer function and a coloring.
type Scalar struct {
	Name     string
	Coloring string
	Min, Max float64
	Transfer []Point

	color Coloring
}

// NewScalar creates a [0, 1] ramp with an identity transfer function.
func NewScalar(coloring string) (*Scalar, error) {
	s := &Scalar{Name: coloring, Min: 0, Max: 1, Transfer: []Point{{0, 0}, {1, 1}}}
	if err := s.SetColoring(coloring); err != nil {
		return nil, err
	}
	return s, nil
}

// MustScalar is NewScalar for built-in names.
func MustScalar(coloring string) *Scalar {
	s, err := NewScalar(coloring)
	if err != nil {
		panic(err)
	}
	return s
}

// SetColoring switches the coloring.
func (s *Scalar) SetColoring(name string) error {
	c, err := LookupColoring(name)
	if err != nil {
		return err
	}
	s.Coloring, s.color = name, c
	return nil
}

// SetTransfer replaces the transfer function. Points must number at least
// two and lie in the unit square.
func (s *Scalar) SetTransfer(pts []Point) error {
	if len(pts) < 2 {
		return fmt.Errorf("transfer function needs two points, got %d", len(pts))
	}
	for _, p := range pts {
		if p.X < 0 || p.X > 1 || p.Y < 0 || p.Y > 1 {
			return fmt.Errorf("transfer point (%g, %g) outside of the unit square", p.X, p.Y)
		}
	}
	sorted := append([]Point(nil), pts...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].X < sorted[j].X })
	s.Transfer = sorted
	return nil
}

// AutoRange sets min and max from the finite values of a volume channel.
func (s *Scalar) AutoRange(v *models.Volume, channel int) {
	lo, hi := v.Range(channel)
	if lo == hi {
		hi = lo + 1
	}
	s.Min, s.Max = lo, hi
}

// Unit returns the value after the ramp and transfer function, in [0, 1].
func (s *Scalar) Unit(x float64) float64 {
	r := 0.0
	if s.Max != s.Min {
		r = (x - s.Min) / (s.Max - s.Min)
	}
	return s.transfer(clamp01(r))
}

func (s *Scalar) transfer(x float64) float64 {
	pts := s.Transfer
	if len(pts) < 2 {
		return x
	}
	if x <= pts[0].X {
		return pts[0].Y
	}
	for i := 1; i < len(pts); i++ {
		if x <= pts[i].X {
			a, b := pts[i-1], pts[i]
			if b.X == a.X {
				return b.Y
			}
			return a.Y + (b.Y-a.Y)*(x-a.X)/(b.X-a.X)
		}
	}
	return pts[len(pts)-1].Y
}

// Apply implements Colormap. NaN maps to transparent.
func (s *Scalar) Apply(v []float64) gpu.Color {
	if len(v) == 0 || math.IsNaN(v[0]) {
		return gpu.Color{}
	}
	return toColor(s.color(s.Unit(v[0])), 1)
}

// DimIn implements Colormap.
func (s *Scalar) DimIn() int { return 1 }
