package camera

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/transform"
)

const (
	// ScaleMin2D is the smallest scale of a slice view.
	ScaleMin2D = 1.0

	// Fit2D normalises the volume extent of a slice view.
	Fit2D = 1.9
)

// Camera2D is the camera of one orthogonal slice view. The plane orientation
// is fixed per axis; only a translation and a scale are interactive.
type Camera2D struct {
	Plane models.Axis
	Pos   r3.Vec
	Scale float64

	// MinScale bounds Scale from below
	MinScale float64
}

// NewCamera2D returns the camera of the plane orthogonal to axis.
func NewCamera2D(plane models.Axis) *Camera2D {
	c := &Camera2D{Plane: plane, MinScale: ScaleMin2D}
	c.Reset()
	return c
}

// Reset restores the default translation and scale.
func (c *Camera2D) Reset() {
	c.Pos = r3.Vec{Z: ZPosDefault}
	c.Scale = ScaleDefault
}

// Translate moves the view in the plane; Z is fixed.
func (c *Camera2D) Translate(axis Axis, delta float64) {
	switch axis {
	case X:
		c.Pos.X += delta
	case Y:
		c.Pos.Y += delta
	}
}

// ScaleBy zooms about the view origin: the scale changes by delta, bounded by
// MinScale, and the in-plane translation follows by newScale/oldScale.
func (c *Camera2D) ScaleBy(delta float64) {
	floor := c.MinScale
	if floor <= 0 {
		floor = ScaleMin2D
	}
	old := c.Scale
	c.Scale = math.Max(floor, c.Scale+delta)
	if old == 0 {
		return
	}
	ratio := c.Scale / old
	c.Pos.X *= ratio
	c.Pos.Y *= ratio
}

// PlaneRotation returns the fixed rotation that faces the plane orthogonal to
// axis towards the viewer.
func PlaneRotation(axis models.Axis) *mat.Dense {
	switch axis {
	case models.AxisJ:
		return transform.RotationX(-math.Pi / 2)
	case models.AxisI:
		return transform.Mul(transform.RotationZ(-math.Pi/2), transform.RotationY(-math.Pi/2))
	}
	return transform.Identity3()
}

// ModelView returns the transform from world space into the view: the grid is
// brought back to its axis-aligned voxel frame, centred, normalised to Fit2D
// over its largest extent, then scaled, rotated and translated by the camera.
func (c *Camera2D) ModelView(grid models.Grid) *mat.Dense {
	size := r3.Vec{
		X: grid.Delta.X * float64(grid.NumI()),
		Y: grid.Delta.Y * float64(grid.NumJ()),
		Z: grid.Delta.Z * float64(grid.NumK()),
	}
	largest := math.Max(size.X, math.Max(size.Y, size.Z))
	fit := Fit2D
	if largest > 1e-12 {
		fit = Fit2D / largest
	}

	var unrotate mat.Matrix = transform.Identity3()
	if grid.Rotation != nil {
		unrotate = grid.Rotation.T()
	}

	return transform.Mul(
		transform.Translate(c.Pos),
		transform.Homogeneous(PlaneRotation(c.Plane)),
		transform.Scale(c.Scale),
		transform.Scale(fit),
		transform.Translate(r3.Scale(-0.5, size)),
		transform.Homogeneous(unrotate),
		transform.Translate(r3.Scale(-1, grid.Start)),
	)
}
