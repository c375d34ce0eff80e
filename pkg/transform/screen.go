package transform

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// ScreenPoint is a pointer position in logical window units, origin at the
// top-left corner of the renderer's region.
type ScreenPoint struct {
	X, Y int
}

// WorldPoint is the unprojection of a ScreenPoint.
type WorldPoint struct {
	// Screen is the pointer position the point was computed from
	Screen ScreenPoint

	// Point lies on the near plane under the pointer
	Point r3.Vec

	// Hit lies on the geometry under the pointer, at the depth read back
	Hit r3.Vec

	// Up lies on the near plane at the left edge of the pointer's row
	Up r3.Vec

	// Reliable is false when the depth read failed or hit the far plane, in
	// which case Hit is only an approximation on the far plane
	Reliable bool
}

// Ray returns the unit direction from Point towards Hit.
func (w WorldPoint) Ray() r3.Vec {
	d := r3.Sub(w.Hit, w.Point)
	if r3.Norm(d) == 0 {
		return r3.Vec{Z: -1}
	}
	return r3.Unit(d)
}

// Context exposes the state of the active rendering context needed to map
// between screen and world: the current matrices, the viewport size in
// framebuffer pixels and a depth readback.
type Context interface {
	ModelView() *mat.Dense
	Projection() *mat.Dense
	ViewportSize() Viewport

	// ReadDepth returns the depth in [0, 1] at window pixel (x, y), origin
	// bottom-left of the viewport.
	ReadDepth(x, y int) (float64, error)
}

// ScreenToWorld unprojects a pointer position. width and height are the
// logical size of the region; they may differ from the viewport's pixel size
// on high-DPI displays, so the point is first normalised to [0, 1] and then
// rescaled to framebuffer pixels.
func ScreenToWorld(ctx Context, p ScreenPoint, width, height int) WorldPoint {
	out := WorldPoint{Screen: p}
	vp := ctx.ViewportSize()
	if width <= 0 || height <= 0 || vp.W <= 0 || vp.H <= 0 {
		return out
	}

	nx := float64(p.X) / float64(width)
	ny := float64(p.Y) / float64(height)
	winX := float64(vp.W) * nx
	winY := float64(vp.H) * (1 - ny)

	px := clamp(int(math.Floor(winX)), 0, vp.W-1)
	py := clamp(int(math.Floor(winY)), 0, vp.H-1)
	depth, err := ctx.ReadDepth(px, py)
	reliable := err == nil && depth < 1
	if err != nil {
		depth = 1
	}

	mv, pr := ctx.ModelView(), ctx.Projection()
	hit, herr := Unproject(r3.Vec{X: winX, Y: winY, Z: depth}, mv, pr, vp)
	point, perr := Unproject(r3.Vec{X: winX, Y: winY, Z: 0}, mv, pr, vp)
	up, _ := Unproject(r3.Vec{X: 0, Y: winY, Z: 0}, mv, pr, vp)
	if herr != nil || perr != nil {
		return out
	}

	out.Hit = hit
	out.Point = point
	out.Up = up
	out.Reliable = reliable
	return out
}

// WorldToScreen projects a world point to logical screen coordinates of a
// region of the given size.
func WorldToScreen(ctx Context, w r3.Vec, width, height int) ScreenPoint {
	vp := ctx.ViewportSize()
	if vp.W <= 0 || vp.H <= 0 {
		return ScreenPoint{}
	}
	win, ok := Project(w, ctx.ModelView(), ctx.Projection(), vp)
	if !ok {
		return ScreenPoint{}
	}
	sx := float64(width) / float64(vp.W)
	sy := float64(height) / float64(vp.H)
	return ScreenPoint{
		X: int(math.Round(sx * win.X)),
		Y: height - int(math.Round(sy*win.Y)),
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
