package slice

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/colormap"
	"mriview/pkg/gesture"
	"mriview/pkg/scene"
	"mriview/pkg/slicer"
)

// Mask interaction modes.
const (
	ModeDraw  = "Draw"
	ModeErase = "Erase"
)

// Stencil shapes.
const (
	ShapeCircle = "circle"
	ShapeSquare = "square"
)

const (
	// HistorySize bounds the undo stack
	HistorySize = 10

	outlineLift = 0.1
)

// edit maps voxels to the values they held before a change.
type edit map[models.Sample][]float64

// MaskView renders a label mask and edits it with a stencil. Each stroke,
// from press to release, is one undoable edit.
type MaskView struct {
	*Renderer

	mask    *models.Mask
	labels  *colormap.Discrete
	undos   []edit
	redos   []edit
	stroke  edit
	erasing bool
	loops   []r3.Vec
	gens    [3]uint64
}

// NewMaskView creates the view of a mask.
func NewMaskView(m *models.Mask, slicers *slicer.Registry, opts Options, labels *colormap.Discrete) *MaskView {
	v := &MaskView{
		Renderer: New(m.Name, m, slicers, opts, labels),
		mask:     m,
		labels:   labels,
		stroke:   make(edit),
	}
	v.gens = v.generations()
	return v
}

// Mask returns the edited mask.
func (v *MaskView) Mask() *models.Mask { return v.mask }

// Modes implements scene.Renderable.
func (v *MaskView) Modes() []string {
	return append(v.Renderer.Modes(), ModeDraw, ModeErase)
}

// Display implements scene.Renderable.
func (v *MaskView) Display(ctx *scene.Context) error {
	v.syncHistory()
	err := v.Renderer.Display(ctx)
	v.displayLoops(ctx)
	return err
}

// DisplayPlane implements scene.Planar.
func (v *MaskView) DisplayPlane(ctx *scene.Context, axis models.Axis) error {
	v.syncHistory()
	err := v.Renderer.DisplayPlane(ctx, axis)
	v.displayLoops(ctx)
	return err
}

func (v *MaskView) displayLoops(ctx *scene.Context) {
	if len(v.loops) == 0 {
		return
	}
	c := v.labels.Color(ctx.Settings.Mask.Label)
	if v.erasing || c.A == 0 {
		c = red
	}
	ctx.Device.DrawLines(v.loops, c.WithAlpha(1), 1)
}

func (v *MaskView) parse(m gesture.WorldMouse, mode string) interaction {
	if m.Current == nil {
		return none
	}
	switch mode {
	case ModeDraw:
		return draw
	case ModeErase:
		return erase
	}
	if !m.Pick() || !m.Control() {
		return none
	}
	if m.Shift() {
		return erase
	}
	return draw
}

const (
	draw interaction = iota + drag + 1
	erase
)

// Handle implements scene.Renderable. Control-drags paint, control-shift
// drags erase; a released pointer ends the stroke. Anything else falls
// through to the slice interactions. An empty pointer, as sent by views
// the pointer is not in, leaves the stroke open.
func (v *MaskView) Handle(ctx *scene.Context, m gesture.WorldMouse, mode string) {
	v.syncHistory()
	switch v.parse(m, mode) {
	case draw:
		v.paint(ctx, m, false)
	case erase:
		v.paint(ctx, m, true)
	default:
		if m.Current != nil {
			if m.Press == nil {
				v.Commit()
			}
			v.loops = nil
		}
		v.Renderer.Handle(ctx, m, mode)
	}
}

// paint applies the stencil around the voxel under the pointer. Voxels are
// written only while the button is down; hovering draws the outline.
func (v *MaskView) paint(ctx *scene.Context, m gesture.WorldMouse, erasing bool) {
	v.erasing = erasing
	v.loops = v.loops[:0]

	g := v.Sampling()
	n := g.Nearest(m.Current.Hit)
	size := max(ctx.Settings.Mask.Size, 1)
	reach := size - 1
	radius := reach * reach
	circle := ctx.Settings.Mask.Shape != ShapeSquare
	label := float64(ctx.Settings.Mask.Label)
	if erasing {
		label = 0
	}

	var axes []models.Axis
	if ctx.Plane != nil {
		axes = []models.Axis{*ctx.Plane}
		n = n.With(*ctx.Plane, v.slicer.Index(*ctx.Plane))
	} else {
		for _, a := range v.slicer.ShownAxes() {
			if v.slicer.OnSlice(a, n) {
				axes = append(axes, a)
			}
		}
	}

	values := make(map[models.Sample][]float64)
	for _, a := range axes {
		wa, ha := a.InPlane()
		for da := -reach; da <= reach; da++ {
			for db := -reach; db <= reach; db++ {
				if circle && da*da+db*db > radius {
					continue
				}
				s := n.With(wa, n.Get(wa)+da).With(ha, n.Get(ha)+db)
				if !g.Contains(s) || !v.slicer.OnSlice(a, s) {
					continue
				}
				v.loops = append(v.loops, v.outline(s, a)...)
				if float64(v.mask.Label(s)) != label {
					values[s] = []float64{label}
				}
			}
		}
	}

	verb := "drawing"
	if erasing {
		verb = "erasing"
	}
	if m.Press == nil {
		ctx.SetStatus("clicking will start %s in stencil mode", verb)
		return
	}
	ctx.SetStatus("%s in stencil mode", verb)
	if len(values) == 0 {
		return
	}
	if len(v.stroke) == 0 {
		v.redos = nil
	}
	// the stroke keeps the value a voxel had before its first write
	for s, old := range v.SetValues(values) {
		if _, seen := v.stroke[s]; !seen {
			v.stroke[s] = old
		}
	}
}

// outline returns the square around a voxel on both sides of its plane.
func (v *MaskView) outline(s models.Sample, axis models.Axis) []r3.Vec {
	g := v.Sampling()
	wa, ha := axis.InPlane()
	var out []r3.Vec
	for _, lift := range []float64{-outlineLift, outlineLift} {
		at := func(du, dv float64) r3.Vec {
			var p r3.Vec
			setAxis(&p, axis, float64(s.Get(axis))+lift)
			setAxis(&p, wa, float64(s.Get(wa))+du)
			setAxis(&p, ha, float64(s.Get(ha))+dv)
			return g.World(p)
		}
		a, b, c, d := at(-0.5, -0.5), at(0.5, -0.5), at(0.5, 0.5), at(-0.5, 0.5)
		out = append(out, a, b, b, c, c, d, d, a)
	}
	return out
}

// Commit closes the current stroke, pushing it onto the undo stack.
func (v *MaskView) Commit() {
	if len(v.stroke) == 0 {
		return
	}
	v.push(&v.undos, v.stroke)
	v.stroke = make(edit)
}

func (v *MaskView) push(stack *[]edit, e edit) {
	*stack = append(*stack, e)
	if len(*stack) > HistorySize {
		*stack = (*stack)[len(*stack)-HistorySize:]
	}
}

// Undo reverts the last edit. It reports whether there was one.
func (v *MaskView) Undo() bool {
	v.Commit()
	if len(v.undos) == 0 {
		return false
	}
	last := v.undos[len(v.undos)-1]
	v.undos = v.undos[:len(v.undos)-1]
	v.push(&v.redos, v.SetValues(last))
	logrus.WithField("mask", v.mask.Name).Debug("undo")
	return true
}

// Redo reapplies the last undone edit. It reports whether there was one.
func (v *MaskView) Redo() bool {
	if len(v.redos) == 0 {
		return false
	}
	last := v.redos[len(v.redos)-1]
	v.redos = v.redos[:len(v.redos)-1]
	v.push(&v.undos, v.SetValues(last))
	logrus.WithField("mask", v.mask.Name).Debug("redo")
	return true
}

// History returns the depth of the undo and redo stacks.
func (v *MaskView) History() (undos, redos int) { return len(v.undos), len(v.redos) }

// ClearHistory drops every undo and redo step.
func (v *MaskView) ClearHistory() {
	v.undos, v.redos = nil, nil
	v.stroke = make(edit)
}

func (v *MaskView) generations() [3]uint64 {
	var out [3]uint64
	for _, a := range models.Axes {
		out[a] = v.slicer.Generation(a)
	}
	return out
}

// syncHistory drops the history once any slice moved.
func (v *MaskView) syncHistory() {
	if gens := v.generations(); gens != v.gens {
		v.gens = gens
		v.ClearHistory()
	}
}

// CopyFromOffset copies the labels of the slice delta slices away into the
// current slice of the 2D view's axis, or of the plane facing the camera.
// The copy is one undoable edit.
func (v *MaskView) CopyFromOffset(ctx *scene.Context, delta int) error {
	v.syncHistory()
	axis := models.AxisK
	if ctx.Plane != nil {
		axis = *ctx.Plane
	} else {
		l := ctx.View.Look
		dots := [3]float64{math.Abs(l.X), math.Abs(l.Y), math.Abs(l.Z)}
		for _, a := range models.Axes {
			b, c := a.InPlane()
			if dots[a] > dots[b] && dots[a] > dots[c] {
				axis = a
			}
		}
	}

	g := v.Sampling()
	idx := v.slicer.Index(axis)
	src := idx + delta
	if delta == 0 || !g.ContainsAxis(axis, src) {
		return fmt.Errorf("copy %s slice %d into %d: %w", axis, src, idx, models.ErrOutOfBounds)
	}

	w, h := planeSize(g, axis)
	values := make(map[models.Sample][]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			values[planeSample(axis, idx, x, y)] = v.mask.Value(planeSample(axis, src, x, y))
		}
	}
	v.Commit()
	v.redos = nil
	v.push(&v.undos, v.SetValues(values))
	ctx.SetStatus("copied %s slice %d into %d", axis, src, idx)
	return nil
}
