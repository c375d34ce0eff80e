package transform

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

var (
	// ErrSingular is returned when the combined matrix cannot be inverted.
	ErrSingular = errors.New("projection is singular")

	// ErrFarPlane marks a depth readback that hit nothing.
	ErrFarPlane = errors.New("depth at far plane")
)

// Viewport is the pixel size of the region a renderer draws into. Window
// coordinates are relative to the region's bottom-left corner.
type Viewport struct {
	W, H int
}

// Project maps an object-space point to window coordinates: x and y in
// pixels from the bottom-left of the viewport, z the depth in [0, 1].
func Project(p r3.Vec, modelview, projection mat.Matrix, vp Viewport) (r3.Vec, bool) {
	ndc, w := Apply(Mul(projection, modelview), p)
	if w == 0 {
		return r3.Vec{}, false
	}
	return r3.Vec{
		X: float64(vp.W) * (ndc.X + 1) / 2,
		Y: float64(vp.H) * (ndc.Y + 1) / 2,
		Z: (ndc.Z + 1) / 2,
	}, true
}

// Unproject maps window coordinates back to object space.
func Unproject(win r3.Vec, modelview, projection mat.Matrix, vp Viewport) (r3.Vec, error) {
	if vp.W <= 0 || vp.H <= 0 {
		return r3.Vec{}, fmt.Errorf("unproject in %dx%d viewport: %w", vp.W, vp.H, ErrSingular)
	}
	var inv mat.Dense
	if err := inv.Inverse(Mul(projection, modelview)); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return r3.Vec{}, fmt.Errorf("unproject: %w", ErrSingular)
		}
	}
	ndc := r3.Vec{
		X: 2*win.X/float64(vp.W) - 1,
		Y: 2*win.Y/float64(vp.H) - 1,
		Z: 2*win.Z - 1,
	}
	out, w := Apply(&inv, ndc)
	if w == 0 || math.IsNaN(out.X) {
		return r3.Vec{}, fmt.Errorf("unproject: %w", ErrSingular)
	}
	return out, nil
}
