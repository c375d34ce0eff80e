// Package camera holds the per-viewport camera state of the 3D scene and of
// the three orthogonal slice views.
package camera

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/transform"
)

const (
	// ScaleMin is the smallest scale of the 3D camera.
	ScaleMin = 0.01

	// ScaleDefault is the scale after a reset.
	ScaleDefault = 1.0

	// ZPosDefault places the camera in front of the normalised scene cube.
	ZPosDefault = -1.5

	// FitDefault is the normalisation applied to a degenerate scene box.
	FitDefault = 0.5

	// orthonormalizeEvery bounds the number of compositions between
	// re-orthonormalisations of the accumulated rotation.
	orthonormalizeEvery = 64
)

// Axis names a camera-space translation axis.
type Axis int

const (
	X Axis = iota
	Y
	Z
)

// Camera3D is the camera of the 3D scene view: a translation, an accumulated
// rotation and a scale. Rotations are camera-relative, so each new rotation is
// pre-multiplied onto the current one.
type Camera3D struct {
	Pos   r3.Vec
	Rot   *mat.Dense
	Scale float64

	// MinScale bounds Scale from below
	MinScale float64

	compositions int
}

// NewCamera3D returns a camera in its default pose.
func NewCamera3D() *Camera3D {
	c := &Camera3D{MinScale: ScaleMin}
	c.Reset()
	return c
}

// Reset restores the default position, orientation and scale.
func (c *Camera3D) Reset() {
	c.Pos = r3.Vec{Z: ZPosDefault}
	c.Rot = transform.Identity3()
	c.Scale = ScaleDefault
	c.compositions = 0
}

// ZoomReset restores the default position and scale, keeping the rotation.
func (c *Camera3D) ZoomReset() {
	c.Pos = r3.Vec{Z: ZPosDefault}
	c.Scale = ScaleDefault
}

// Rotate pre-multiplies r onto the current rotation.
func (c *Camera3D) Rotate(r mat.Matrix) {
	var next mat.Dense
	next.Mul(r, c.Rot)
	c.Rot = &next

	c.compositions++
	if c.compositions >= orthonormalizeEvery {
		c.Rot = Orthonormalize(c.Rot)
		c.compositions = 0
	}
}

// RotateX rotates about the camera X axis by delta radians.
func (c *Camera3D) RotateX(delta float64) {
	c.Rotate(transform.RotationX(delta))
}

// RotateY rotates about the camera Y axis by delta radians.
func (c *Camera3D) RotateY(delta float64) {
	c.Rotate(transform.RotationY(delta))
}

// Translate moves the camera along one of its axes.
func (c *Camera3D) Translate(axis Axis, delta float64) {
	switch axis {
	case X:
		c.Pos.X += delta
	case Y:
		c.Pos.Y += delta
	case Z:
		c.Pos.Z += delta
	}
}

// ScaleBy adds delta to the scale, never going below MinScale.
func (c *Camera3D) ScaleBy(delta float64) {
	c.Scale = math.Max(c.minScale(), c.Scale+delta)
}

func (c *Camera3D) minScale() float64 {
	if c.MinScale <= 0 {
		return ScaleMin
	}
	return c.MinScale
}

// Pose replaces the accumulated rotation with the orientation given by an
// azimuth and an elevation in degrees: Rx(elevation) * Ry(azimuth).
func (c *Camera3D) Pose(azimuth, elevation float64) {
	c.Rot = transform.Mul(
		transform.RotationX(math.Pi*elevation/180),
		transform.RotationY(math.Pi*azimuth/180),
	)
	c.compositions = 0
}

// View names one of the canonical anatomical poses.
type View int

const (
	ViewTop View = iota
	ViewBottom
	ViewLeft
	ViewRight
	ViewFront
	ViewBack
)

var viewNames = map[View]string{
	ViewTop:    "top",
	ViewBottom: "bottom",
	ViewLeft:   "left",
	ViewRight:  "right",
	ViewFront:  "front",
	ViewBack:   "back",
}

func (v View) String() string { return viewNames[v] }

// ParseView returns the view with the given name.
func ParseView(name string) (View, bool) {
	for v, n := range viewNames {
		if n == name {
			return v, true
		}
	}
	return ViewTop, false
}

// ShowView resets the camera and turns it to a canonical pose.
func (c *Camera3D) ShowView(v View) {
	c.Reset()
	switch v {
	case ViewBottom:
		c.RotateY(math.Pi)
	case ViewLeft:
		c.RotateX(-math.Pi / 2)
		c.RotateY(math.Pi / 2)
	case ViewRight:
		c.RotateX(-math.Pi / 2)
		c.RotateY(-math.Pi / 2)
	case ViewFront:
		c.RotateX(-math.Pi / 2)
		c.RotateY(math.Pi)
	case ViewBack:
		c.RotateX(-math.Pi / 2)
	}
}

// Fit returns the normalisation that maps box into a unit-sized cube:
// 0.5 over the largest extent, or FitDefault for a degenerate box.
func Fit(box models.Box) float64 {
	largest := box.Largest()
	if box.IsEmpty() || largest < 1e-12 {
		return FitDefault
	}
	return FitDefault / largest
}

// ModelView returns T(pos) * R * S(scale) * S(fit(box)) * T(-centre(box)).
func (c *Camera3D) ModelView(box models.Box) *mat.Dense {
	center := r3.Vec{}
	if !box.IsEmpty() {
		center = box.Center()
	}
	return transform.Mul(
		transform.Translate(c.Pos),
		transform.Homogeneous(c.Rot),
		transform.Scale(c.Scale),
		transform.Scale(Fit(box)),
		transform.Translate(r3.Scale(-1, center)),
	)
}

// Orthonormalize returns the orthonormal matrix closest to r, U * V^T from
// its singular value decomposition.
func Orthonormalize(r mat.Matrix) *mat.Dense {
	var svd mat.SVD
	if !svd.Factorize(r, mat.SVDFull) {
		return mat.DenseCopyOf(r)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	var out mat.Dense
	out.Mul(&u, v.T())
	return &out
}
