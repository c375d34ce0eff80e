package models

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// GridTolerance is the tolerance used when comparing grid spacing, origin and orientation.
const GridTolerance = 1e-3

// ErrOutOfBounds is returned when a sample falls outside of a grid.
var ErrOutOfBounds = errors.New("sample outside of grid")

// Axis identifies one of the three voxel axes of a grid.
type Axis int

const (
	AxisI Axis = iota
	AxisJ
	AxisK
)

// Axes lists the axes in their canonical order.
var Axes = [3]Axis{AxisI, AxisJ, AxisK}

func (a Axis) String() string {
	switch a {
	case AxisI:
		return "I"
	case AxisJ:
		return "J"
	case AxisK:
		return "K"
	}
	return fmt.Sprintf("Axis(%d)", int(a))
}

// Unit returns the world-space unit vector associated with the axis.
func (a Axis) Unit() r3.Vec {
	switch a {
	case AxisI:
		return r3.Vec{X: 1}
	case AxisJ:
		return r3.Vec{Y: 1}
	}
	return r3.Vec{Z: 1}
}

// InPlane returns the two axes spanning the plane orthogonal to a, in texture
// order (width axis first).
func (a Axis) InPlane() (Axis, Axis) {
	switch a {
	case AxisI:
		return AxisJ, AxisK
	case AxisJ:
		return AxisI, AxisK
	}
	return AxisI, AxisJ
}

// Sample is an integer voxel coordinate.
type Sample struct {
	I, J, K int
}

// Get returns the coordinate along the given axis.
func (s Sample) Get(a Axis) int {
	switch a {
	case AxisI:
		return s.I
	case AxisJ:
		return s.J
	}
	return s.K
}

// With returns a copy of s with the coordinate along a replaced by v.
func (s Sample) With(a Axis, v int) Sample {
	switch a {
	case AxisI:
		s.I = v
	case AxisJ:
		s.J = v
	default:
		s.K = v
	}
	return s
}

// Vec returns the sample as a continuous voxel coordinate.
func (s Sample) Vec() r3.Vec {
	return r3.Vec{X: float64(s.I), Y: float64(s.J), Z: float64(s.K)}
}

func (s Sample) String() string {
	return fmt.Sprintf("(%d, %d, %d)", s.I, s.J, s.K)
}

// Grid describes a voxel lattice: dimensions, spacing, origin and orientation.
// Voxel centres sit at integer voxel coordinates.
type Grid struct {
	// Num holds the number of voxels along I, J and K
	Num [3]int

	// Delta is the voxel spacing in world units
	Delta r3.Vec

	// Start is the world position of voxel (0, 0, 0)
	Start r3.Vec

	// Rotation is the 3x3 orientation of the voxel axes; nil means identity
	Rotation *mat.Dense
}

// NewGrid creates an axis-aligned grid.
func NewGrid(ni, nj, nk int, delta, start r3.Vec) Grid {
	return Grid{
		Num:   [3]int{ni, nj, nk},
		Delta: delta,
		Start: start,
	}
}

// NumI returns the number of voxels along I.
func (g Grid) NumI() int { return g.Num[0] }

// NumJ returns the number of voxels along J.
func (g Grid) NumJ() int { return g.Num[1] }

// NumK returns the number of voxels along K.
func (g Grid) NumK() int { return g.Num[2] }

// NumAxis returns the number of voxels along the given axis.
func (g Grid) NumAxis(a Axis) int { return g.Num[a] }

// Size returns the number of voxels in the grid.
func (g Grid) Size() int { return g.Num[0] * g.Num[1] * g.Num[2] }

// Index returns the linear offset of the sample, I varying fastest.
func (g Grid) Index(s Sample) int {
	return s.K*g.Num[0]*g.Num[1] + s.J*g.Num[0] + s.I
}

// Contains reports whether the sample lies inside the grid.
func (g Grid) Contains(s Sample) bool {
	return g.ContainsAxis(AxisI, s.I) && g.ContainsAxis(AxisJ, s.J) && g.ContainsAxis(AxisK, s.K)
}

// ContainsAxis reports whether idx is a valid index along a.
func (g Grid) ContainsAxis(a Axis, idx int) bool {
	return idx >= 0 && idx < g.Num[a]
}

func (g Grid) rotation() mat.Matrix {
	if g.Rotation == nil {
		return eye3
	}
	return g.Rotation
}

var eye3 = mat.NewDiagDense(3, []float64{1, 1, 1})

// World maps a continuous voxel coordinate to world space.
func (g Grid) World(v r3.Vec) r3.Vec {
	scaled := mat.NewVecDense(3, []float64{v.X * g.Delta.X, v.Y * g.Delta.Y, v.Z * g.Delta.Z})
	var out mat.VecDense
	out.MulVec(g.rotation(), scaled)
	return r3.Add(g.Start, r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)})
}

// WorldSample maps a voxel sample to its world-space centre.
func (g Grid) WorldSample(s Sample) r3.Vec {
	return g.World(s.Vec())
}

// Voxel maps a world point to continuous voxel coordinates.
func (g Grid) Voxel(w r3.Vec) r3.Vec {
	d := r3.Sub(w, g.Start)
	var out mat.VecDense
	out.MulVec(g.rotation().T(), mat.NewVecDense(3, []float64{d.X, d.Y, d.Z}))
	return r3.Vec{
		X: safeDiv(out.AtVec(0), g.Delta.X),
		Y: safeDiv(out.AtVec(1), g.Delta.Y),
		Z: safeDiv(out.AtVec(2), g.Delta.Z),
	}
}

// Nearest returns the voxel closest to the world point. The result may lie
// outside of the grid; check with Contains.
func (g Grid) Nearest(w r3.Vec) Sample {
	v := g.Voxel(w)
	return Sample{
		I: int(math.Round(v.X)),
		J: int(math.Round(v.Y)),
		K: int(math.Round(v.Z)),
	}
}

// Clamp moves the sample to the closest voxel inside the grid.
func (g Grid) Clamp(s Sample) Sample {
	for _, a := range Axes {
		s = s.With(a, clampInt(s.Get(a), 0, g.Num[a]-1))
	}
	return s
}

// Bounds returns the world-space box enclosing every voxel, including the
// half-voxel border around the outermost centres.
func (g Grid) Bounds() Box {
	box := EmptyBox()
	for _, i := range []float64{-0.5, float64(g.Num[0]) - 0.5} {
		for _, j := range []float64{-0.5, float64(g.Num[1]) - 0.5} {
			for _, k := range []float64{-0.5, float64(g.Num[2]) - 0.5} {
				box = box.Extend(g.World(r3.Vec{X: i, Y: j, Z: k}))
			}
		}
	}
	return box
}

// Compatible reports whether two grids describe the same lattice within
// GridTolerance: equal dimensions, spacing, origin and orientation.
func (g Grid) Compatible(o Grid) bool {
	if g.Num != o.Num {
		return false
	}
	if r3.Norm(r3.Sub(g.Delta, o.Delta)) >= GridTolerance {
		return false
	}
	if r3.Norm(r3.Sub(g.Start, o.Start)) >= GridTolerance {
		return false
	}
	var diff mat.Dense
	diff.Sub(g.rotation(), o.rotation())
	return mat.Norm(&diff, 2) < GridTolerance
}

func (g Grid) String() string {
	return fmt.Sprintf("grid %dx%dx%d spacing (%g, %g, %g)",
		g.Num[0], g.Num[1], g.Num[2], g.Delta.X, g.Delta.Y, g.Delta.Z)
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
