// Package layout partitions the window between the 3D scene and the slice
// views and routes pointer events to the region under the pointer.
package layout

import (
	"fmt"
	"image"
	"math"
	"strings"
)

// Layout is the closed set of window arrangements.
type Layout int

const (
	Single3D Layout = iota
	SliceI
	SliceJ
	SliceK
	SliceI3D
	SliceJ3D
	SliceK3D
	OneByThree
	TwoByTwo
)

var layoutNames = [...]string{
	Single3D:   "3d",
	SliceI:     "i",
	SliceJ:     "j",
	SliceK:     "k",
	SliceI3D:   "i3d",
	SliceJ3D:   "j3d",
	SliceK3D:   "k3d",
	OneByThree: "1x3",
	TwoByTwo:   "2x2",
}

// All lists every layout.
var All = []Layout{Single3D, SliceI, SliceJ, SliceK, SliceI3D, SliceJ3D, SliceK3D, OneByThree, TwoByTwo}

func (l Layout) String() string {
	if l >= 0 && int(l) < len(layoutNames) {
		return layoutNames[l]
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

// Parse returns the layout with the given name.
func Parse(name string) (Layout, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for i, n := range layoutNames {
		if n == name {
			return Layout(i), nil
		}
	}
	return Single3D, fmt.Errorf("unknown layout %q", name)
}

// View identifies the renderer a region is assigned to.
type View int

const (
	View3D View = iota
	ViewI
	ViewJ
	ViewK
)

func (v View) String() string {
	return [...]string{"3D", "I", "J", "K"}[v]
}

// Region is one rectangle of the window, in pixels with the origin at the
// top-left corner.
type Region struct {
	View View
	Rect image.Rectangle
}

// Ratios are the tunable split fractions.
type Ratios struct {
	// Horizontal is the width fraction of the 3D view in side-by-side layouts
	Horizontal float64

	// Vertical is the height fraction of the slice row in OneByThree
	Vertical float64
}

// DefaultRatios returns the default split fractions.
func DefaultRatios() Ratios {
	return Ratios{Horizontal: 0.5, Vertical: 0.33}
}

const (
	thirdLow  = 0.33
	thirdHigh = 0.66
)

// Partition splits a w x h window into non-overlapping regions covering it
// exactly. Regions are returned in render order, 3D first. Empty regions are
// omitted.
func Partition(l Layout, w, h int, r Ratios) []Region {
	if w <= 0 || h <= 0 {
		return nil
	}
	full := image.Rect(0, 0, w, h)
	var out []Region

	switch l {
	case Single3D:
		out = []Region{{View3D, full}}
	case SliceI:
		out = []Region{{ViewI, full}}
	case SliceJ:
		out = []Region{{ViewJ, full}}
	case SliceK:
		out = []Region{{ViewK, full}}
	case SliceI3D, SliceJ3D, SliceK3D:
		xs := cut(w, r.Horizontal)
		out = []Region{
			{View3D, image.Rect(0, 0, xs, h)},
			{sliceOf(l), image.Rect(xs, 0, w, h)},
		}
	case OneByThree:
		hs := cut(h, r.Vertical)
		top := h - hs
		x1 := cut(w, thirdLow)
		x2 := max(x1, cut(w, thirdHigh))
		out = []Region{
			{View3D, image.Rect(0, 0, w, top)},
			{ViewI, image.Rect(0, top, x1, h)},
			{ViewJ, image.Rect(x1, top, x2, h)},
			{ViewK, image.Rect(x2, top, w, h)},
		}
	case TwoByTwo:
		xh, yh := w/2, h/2
		out = []Region{
			{View3D, image.Rect(0, yh, xh, h)},
			{ViewI, image.Rect(xh, 0, w, yh)},
			{ViewJ, image.Rect(0, 0, xh, yh)},
			{ViewK, image.Rect(xh, yh, w, h)},
		}
	default:
		out = []Region{{View3D, full}}
	}

	kept := out[:0]
	for _, reg := range out {
		if !reg.Rect.Empty() {
			kept = append(kept, reg)
		}
	}
	return kept
}

// Route finds the region containing p and returns p relative to the region's
// origin, so the renderer sees coordinates as if it owned the whole window.
func Route(regions []Region, p image.Point) (Region, image.Point, bool) {
	for _, reg := range regions {
		if p.In(reg.Rect) {
			return reg, p.Sub(reg.Rect.Min), true
		}
	}
	return Region{}, image.Point{}, false
}

// Find returns the region assigned to v.
func Find(regions []Region, v View) (Region, bool) {
	for _, reg := range regions {
		if reg.View == v {
			return reg, true
		}
	}
	return Region{}, false
}

// Views lists the renderers a layout shows, in render order.
func (l Layout) Views() []View {
	regions := Partition(l, 16, 16, DefaultRatios())
	out := make([]View, len(regions))
	for i, reg := range regions {
		out[i] = reg.View
	}
	return out
}

func sliceOf(l Layout) View {
	switch l {
	case SliceI, SliceI3D:
		return ViewI
	case SliceJ, SliceJ3D:
		return ViewJ
	}
	return ViewK
}

// cut returns round(n * f) clamped to [0, n].
func cut(n int, f float64) int {
	if math.IsNaN(f) {
		f = 0.5
	}
	v := int(math.Round(float64(n) * f))
	return min(max(v, 0), n)
}
