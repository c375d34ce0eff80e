// Package transform provides the matrix builders and the projections between
// screen, window and world coordinates used by every renderer.
package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Identity returns a new 4x4 identity matrix.
func Identity() *mat.Dense {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// Identity3 returns a new 3x3 identity matrix.
func Identity3() *mat.Dense {
	return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
}

// Translate returns the 4x4 translation by v.
func Translate(v r3.Vec) *mat.Dense {
	m := Identity()
	m.Set(0, 3, v.X)
	m.Set(1, 3, v.Y)
	m.Set(2, 3, v.Z)
	return m
}

// Scale returns the 4x4 uniform scaling by s.
func Scale(s float64) *mat.Dense {
	return ScaleVec(r3.Vec{X: s, Y: s, Z: s})
}

// ScaleVec returns the 4x4 scaling by the components of v.
func ScaleVec(v r3.Vec) *mat.Dense {
	m := Identity()
	m.Set(0, 0, v.X)
	m.Set(1, 1, v.Y)
	m.Set(2, 2, v.Z)
	return m
}

// RotationX returns the 3x3 rotation by theta radians about X.
func RotationX(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, c, -s,
		0, s, c,
	})
}

// RotationY returns the 3x3 rotation by theta radians about Y.
func RotationY(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, 0, s,
		0, 1, 0,
		-s, 0, c,
	})
}

// RotationZ returns the 3x3 rotation by theta radians about Z.
func RotationZ(theta float64) *mat.Dense {
	c, s := math.Cos(theta), math.Sin(theta)
	return mat.NewDense(3, 3, []float64{
		c, -s, 0,
		s, c, 0,
		0, 0, 1,
	})
}

// Homogeneous embeds a 3x3 linear map into a 4x4 matrix.
func Homogeneous(r mat.Matrix) *mat.Dense {
	m := Identity()
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, r.At(i, j))
		}
	}
	return m
}

// Mul returns the product of the matrices, left to right.
func Mul(ms ...mat.Matrix) *mat.Dense {
	if len(ms) == 0 {
		return Identity()
	}
	out := mat.DenseCopyOf(ms[0])
	for _, m := range ms[1:] {
		var next mat.Dense
		next.Mul(out, m)
		out = &next
	}
	return out
}

// Ortho returns the orthographic projection of the box [l,r]x[b,t]x[-n,-f].
func Ortho(l, r, b, t, n, f float64) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		2 / (r - l), 0, 0, -(r + l) / (r - l),
		0, 2 / (t - b), 0, -(t + b) / (t - b),
		0, 0, -2 / (f - n), -(f + n) / (f - n),
		0, 0, 0, 1,
	})
}

// Frustum returns the perspective projection of the frustum whose near plane
// spans [l,r]x[b,t] at distance n.
func Frustum(l, r, b, t, n, f float64) *mat.Dense {
	return mat.NewDense(4, 4, []float64{
		2 * n / (r - l), 0, (r + l) / (r - l), 0,
		0, 2 * n / (t - b), (t + b) / (t - b), 0,
		0, 0, -(f + n) / (f - n), -2 * f * n / (f - n),
		0, 0, -1, 0,
	})
}

// Apply transforms p by the 4x4 matrix m with perspective division. The
// second result is the homogeneous w before division.
func Apply(m mat.Matrix, p r3.Vec) (r3.Vec, float64) {
	x := m.At(0, 0)*p.X + m.At(0, 1)*p.Y + m.At(0, 2)*p.Z + m.At(0, 3)
	y := m.At(1, 0)*p.X + m.At(1, 1)*p.Y + m.At(1, 2)*p.Z + m.At(1, 3)
	z := m.At(2, 0)*p.X + m.At(2, 1)*p.Y + m.At(2, 2)*p.Z + m.At(2, 3)
	w := m.At(3, 0)*p.X + m.At(3, 1)*p.Y + m.At(3, 2)*p.Z + m.At(3, 3)
	if w == 0 {
		return r3.Vec{X: x, Y: y, Z: z}, 0
	}
	return r3.Vec{X: x / w, Y: y / w, Z: z / w}, w
}

// ApplyLinear multiplies the 3x3 matrix m with v.
func ApplyLinear(m mat.Matrix, v r3.Vec) r3.Vec {
	return r3.Vec{
		X: m.At(0, 0)*v.X + m.At(0, 1)*v.Y + m.At(0, 2)*v.Z,
		Y: m.At(1, 0)*v.X + m.At(1, 1)*v.Y + m.At(1, 2)*v.Z,
		Z: m.At(2, 0)*v.X + m.At(2, 1)*v.Y + m.At(2, 2)*v.Z,
	}
}

// Flatten returns the matrix in row-major order.
func Flatten(m mat.Matrix) [16]float64 {
	var out [16]float64
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[4*i+j] = m.At(i, j)
		}
	}
	return out
}
