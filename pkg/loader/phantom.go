package loader

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
)

// Phantom names accepted by NewPhantom.
const (
	PhantomSphere   = "sphere"
	PhantomGradient = "gradient"
	PhantomRings    = "rings"
)

// Phantoms lists the phantom names.
var Phantoms = []string{PhantomSphere, PhantomGradient, PhantomRings}

func cube(n int) models.Grid {
	return models.NewGrid(n, n, n, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{})
}

// NewPhantom returns an n^3 phantom volume by name, false for unknown
// names.
func NewPhantom(name string, n int) (*models.Volume, bool) {
	switch name {
	case PhantomSphere:
		return Sphere(n), true
	case PhantomGradient:
		return Gradient(n), true
	case PhantomRings:
		return Rings(n), true
	}
	return nil, false
}

// Sphere is a ball of radius 3n/8 with a soft one-voxel edge, 1 inside and 0
// outside.
func Sphere(n int) *models.Volume {
	g := cube(n)
	v := models.NewVolume(PhantomSphere, g, 1)
	c, radius := float64(n-1)/2, 3*float64(n)/8
	each(g, func(s models.Sample, idx int) {
		d := r3.Norm(r3.Sub(s.Vec(), r3.Vec{X: c, Y: c, Z: c}))
		v.Data[idx] = math.Max(0, math.Min(1, radius-d+0.5))
	})
	return v
}

// Gradient rises linearly from 0 at sample (0, 0, 0) to 1 at the opposite
// corner.
func Gradient(n int) *models.Volume {
	g := cube(n)
	v := models.NewVolume(PhantomGradient, g, 1)
	den := float64(3 * max(n-1, 1))
	each(g, func(s models.Sample, idx int) {
		v.Data[idx] = float64(s.I+s.J+s.K) / den
	})
	return v
}

// Rings holds one circle per slice along K, growing with the slice index.
func Rings(n int) *models.Volume {
	g := cube(n)
	v := models.NewVolume(PhantomRings, g, 1)
	c := float64(n-1) / 2
	each(g, func(s models.Sample, idx int) {
		radius := float64(n)/8 + float64(s.K)/4
		d := math.Hypot(float64(s.I)-c, float64(s.J)-c)
		if math.Abs(d-radius) < 1.5 {
			v.Data[idx] = 1
		}
	})
	return v
}

// SphereMask labels the voxels of Sphere above one half with label.
func SphereMask(n, label int) *models.Mask {
	src := Sphere(n)
	m := models.NewMask(PhantomSphere+"-mask", src.Grid)
	for i, x := range src.Data {
		if x > 0.5 {
			m.Labels[i] = label
		}
	}
	return m
}

func each(g models.Grid, fn func(s models.Sample, idx int)) {
	for k := 0; k < g.NumK(); k++ {
		for j := 0; j < g.NumJ(); j++ {
			for i := 0; i < g.NumI(); i++ {
				s := models.Sample{I: i, J: j, K: k}
				fn(s, g.Index(s))
			}
		}
	}
}
