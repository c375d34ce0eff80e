package camera

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/transform"
)

func assertOrthonormal(t *testing.T, r mat.Matrix, tol float64) {
	t.Helper()
	var rtr mat.Dense
	rtr.Mul(r.T(), r)
	assert.True(t, mat.EqualApprox(&rtr, transform.Identity3(), tol), "R^T R = %v", mat.Formatted(&rtr))
	assert.InDelta(t, 1.0, mat.Det(r), tol)
}

func TestCamera3DScaleNeverBelowMinimum(t *testing.T) {
	c := NewCamera3D()
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 500; i++ {
		c.ScaleBy((rng.Float64() - 0.7) * 10)
		require.GreaterOrEqual(t, c.Scale, ScaleMin)
	}
	c.ScaleBy(-1e9)
	assert.Equal(t, ScaleMin, c.Scale)
}

func TestCamera3DRotationStaysOrthonormal(t *testing.T) {
	c := NewCamera3D()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 5000; i++ {
		c.RotateX((rng.Float64() - 0.5) * 0.05)
		c.RotateY((rng.Float64() - 0.5) * 0.05)
	}
	assertOrthonormal(t, c.Rot, 1e-9)
}

func TestCamera3DRotationIsPreMultiplied(t *testing.T) {
	c := NewCamera3D()
	c.RotateX(0.3)
	c.RotateY(0.7)

	want := transform.Mul(transform.RotationY(0.7), transform.RotationX(0.3))
	assert.True(t, mat.EqualApprox(c.Rot, want, 1e-12))
}

func TestCamera3DPoseReplacesRotation(t *testing.T) {
	c := NewCamera3D()
	c.RotateX(1.2)
	c.Pose(90, 30)

	want := transform.Mul(transform.RotationX(math.Pi/6), transform.RotationY(math.Pi/2))
	assert.True(t, mat.EqualApprox(c.Rot, want, 1e-12))
}

func TestCamera3DShowView(t *testing.T) {
	c := NewCamera3D()
	c.Translate(X, 3)
	c.ScaleBy(4)

	for _, v := range []View{ViewTop, ViewBottom, ViewLeft, ViewRight, ViewFront, ViewBack} {
		c.ShowView(v)
		assert.Equal(t, r3.Vec{Z: ZPosDefault}, c.Pos, v.String())
		assert.Equal(t, ScaleDefault, c.Scale, v.String())
		assertOrthonormal(t, c.Rot, 1e-12)
	}

	v, ok := ParseView("front")
	assert.True(t, ok)
	assert.Equal(t, ViewFront, v)
}

func TestFit(t *testing.T) {
	box := models.NewBox(r3.Vec{}, r3.Vec{X: 10, Y: 4, Z: 2})
	assert.InDelta(t, 0.05, Fit(box), 1e-12)

	point := models.NewBox(r3.Vec{X: 1}, r3.Vec{X: 1})
	assert.Equal(t, FitDefault, Fit(point))
	assert.Equal(t, FitDefault, Fit(models.EmptyBox()))
}

func TestCamera3DModelViewCentresBox(t *testing.T) {
	c := NewCamera3D()
	box := models.NewBox(r3.Vec{X: 10, Y: 10, Z: 10}, r3.Vec{X: 30, Y: 20, Z: 14})

	p, _ := transform.Apply(c.ModelView(box), box.Center())
	assert.InDelta(t, 0, p.X, 1e-12)
	assert.InDelta(t, 0, p.Y, 1e-12)
	assert.InDelta(t, ZPosDefault, p.Z, 1e-12)

	corner, _ := transform.Apply(c.ModelView(box), box.Max)
	assert.InDelta(t, 0.25, corner.X, 1e-12)
}

func TestCamera2DZoomKeepsPositionRatio(t *testing.T) {
	c := NewCamera2D(models.AxisK)
	c.Translate(X, 0.2)
	c.Translate(Y, -0.1)
	c.ScaleBy(1)

	assert.InDelta(t, 2.0, c.Scale, 1e-12)
	assert.InDelta(t, 0.4, c.Pos.X, 1e-12)
	assert.InDelta(t, -0.2, c.Pos.Y, 1e-12)
	assert.InDelta(t, ZPosDefault, c.Pos.Z, 1e-12)

	c.ScaleBy(-100)
	assert.Equal(t, ScaleMin2D, c.Scale)
	assert.InDelta(t, 0.2, c.Pos.X, 1e-12)
}

func TestCamera2DScaleFloor(t *testing.T) {
	c := NewCamera2D(models.AxisJ)
	c.MinScale = 0.5
	c.ScaleBy(-100)
	assert.Equal(t, 0.5, c.Scale)

	c.MinScale = 0
	c.ScaleBy(-100)
	assert.Equal(t, ScaleMin2D, c.Scale, "an unset floor falls back to the default")
}

func TestPlaneRotationFacesAxis(t *testing.T) {
	for _, axis := range models.Axes {
		r := PlaneRotation(axis)
		assertOrthonormal(t, r, 1e-12)

		// the plane normal must map onto the view direction
		n := transform.ApplyLinear(r, axis.Unit())
		assert.InDelta(t, 1.0, math.Abs(n.Z), 1e-12, axis.String())
	}
}
