// Package view2d renders one orthogonal slice view: the reference dataset's
// plane, the overlays blended over it, a crosshair at the cursor and the
// mask tools.
package view2d

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/camera"
	"mriview/pkg/gesture"
	"mriview/pkg/gpu"
	"mriview/pkg/scene"
	"mriview/pkg/slice"
	"mriview/pkg/slicer"
	"mriview/pkg/transform"
)

const (
	// depthWindow is the half depth of the projection around the slice, in
	// voxels along the plane normal
	depthWindow = 2.0

	// crosshairGap keeps the crosshair this many voxels away from the cursor
	crosshairGap = 2

	dotWidth = 3
)

var planeColors = [3]gpu.Color{
	models.AxisI: gpu.RGB(1, 0, 0),
	models.AxisJ: gpu.RGB(0, 1, 0),
	models.AxisK: gpu.RGB(0, 0, 1),
}

// Renderer is the slice view of one plane.
type Renderer struct {
	Plane  models.Axis
	Camera *camera.Camera2D
	Mouse  gesture.ScreenMouse

	// Mode is the named interaction mode: Pan, Zoom or empty
	Mode string
}

// New returns the view of the plane orthogonal to axis.
func New(plane models.Axis) *Renderer {
	return &Renderer{Plane: plane, Camera: camera.NewCamera2D(plane)}
}

// Projection returns an orthographic projection of a w x h viewport that
// keeps depthWindow voxels on both sides of the current slice.
func (r *Renderer) Projection(mv *mat.Dense, g models.Grid, sl *slicer.Slicer, w, h int) *mat.Dense {
	aspect := float64(max(w, 1)) / float64(max(h, 1))
	l, rr, b, t := -1.0, 1.0, -1/aspect, 1/aspect
	if aspect > 1 {
		l, rr, b, t = -aspect, aspect, -1, 1
	}

	at := sl.Sample().Vec()
	depth := func(offset float64) float64 {
		v := at
		setAxis(&v, r.Plane, float64(sl.Index(r.Plane))+offset)
		p, _ := transform.Apply(mv, g.World(v))
		return -p.Z
	}
	d0, d1 := depth(-depthWindow), depth(depthWindow)
	near, far := math.Min(d0, d1), math.Max(d0, d1)
	if far-near < 1e-6 {
		near, far = near-1, far+1
	}
	return transform.Ortho(l, rr, b, t, near, far)
}

func setAxis(v *r3.Vec, a models.Axis, x float64) {
	switch a {
	case models.AxisI:
		v.X = x
	case models.AxisJ:
		v.Y = x
	default:
		v.Z = x
	}
}

// target returns the entry the view slices: the reference, or else the
// first visible entry that can be sliced.
func (r *Renderer) target(ctx *scene.Context) (*scene.Entry, scene.Planar) {
	if ref := ctx.Registry.Reference(); ref != nil {
		if p, ok := ref.Renderable.(scene.Planar); ok {
			return ref, p
		}
	}
	for _, e := range ctx.Registry.Visible() {
		if p, ok := e.Renderable.(scene.Planar); ok {
			return e, p
		}
	}
	return nil, nil
}

func editable(e *scene.Entry) bool {
	return slices.Contains(e.Renderable.Modes(), slice.ModeDraw)
}

// overlays returns the visible overlay entries drawable over ref, editable
// ones last. Entries on other grids are skipped.
func (r *Renderer) overlays(ctx *scene.Context, ref *scene.Entry, g models.Grid) []*scene.Entry {
	var plain, masks []*scene.Entry
	for _, e := range ctx.Registry.Visible() {
		if e == ref || !e.Overlay {
			continue
		}
		p, ok := e.Renderable.(scene.Planar)
		if !ok {
			continue
		}
		if err := slicer.Check(g, p.Sampling()); err != nil {
			logrus.WithFields(logrus.Fields{"dataset": e.Name, "axis": r.Plane.String()}).Debug("overlay skipped")
			continue
		}
		if editable(e) {
			masks = append(masks, e)
		} else {
			plain = append(plain, e)
		}
	}
	return append(plain, masks...)
}

// Render draws one frame into the device's current viewport. width and
// height are the logical size of the region the pointer coordinates refer
// to.
func (r *Renderer) Render(ctx *scene.Context, width, height int) error {
	dev := ctx.Device
	s := ctx.Settings
	vp := dev.ViewportSize()
	dev.Clear(gpu.RGB(s.Render.Background[0], s.Render.Background[1], s.Render.Background[2]))

	pctx := ctx.ForPlane(r.Plane)
	ref, planar := r.target(ctx)
	if ref == nil {
		r.displayTitle(pctx, nil)
		return nil
	}
	g, sl := planar.Sampling(), planar.Slicer()
	mv := r.Camera.ModelView(g)
	dev.SetMatrices(mv, r.Projection(mv, g, sl, vp.W, vp.H))

	var errs []error
	if ref.Visible {
		if err := planar.DisplayPlane(pctx, r.Plane); err != nil {
			errs = append(errs, fmt.Errorf("display %s: %w", ref.Name, err))
		}
	}
	overlays := r.overlays(ctx, ref, g)
	for _, e := range overlays {
		if err := e.Renderable.(scene.Planar).DisplayPlane(pctx, r.Plane); err != nil {
			errs = append(errs, fmt.Errorf("display %s: %w", e.Name, err))
		}
	}

	r.dispatch(pctx, ref, g, sl, overlays, width, height)
	if s.Overlay.Crosshair {
		r.displayCrosshair(pctx, g, sl)
	}
	r.displayTitle(pctx, sl)
	return errors.Join(errs...)
}

// dispatch applies the pointer: a plain press moves the cursor, pick+shift
// queries the reference, pick+control draws on the masks and
// pick+control+shift erases them.
func (r *Renderer) dispatch(ctx *scene.Context, ref *scene.Entry, g models.Grid, sl *slicer.Slicer, overlays []*scene.Entry, width, height int) {
	var world gesture.WorldMouse
	d := gesture.Decision{Action: gesture.None}
	if r.Mouse.Current != nil {
		world = r.Mouse.Unproject(ctx.Device, width, height)
		d = gesture.Resolve2D(r.event())
	}

	var masks []*scene.Entry
	for _, e := range overlays {
		if editable(e) {
			masks = append(masks, e)
		}
	}

	switch d.Action {
	case gesture.SetCursor:
		if world.Press == nil || !world.Current.Reliable {
			return
		}
		n := g.Nearest(world.Current.Hit).With(r.Plane, sl.Index(r.Plane))
		if g.Contains(n) && sl.SetSample(n) {
			ctx.SetStatus("cursor at %s", n)
		}
	case gesture.Query:
		if world.Press != nil {
			ref.Renderable.Handle(ctx, world, slice.ModeQuery)
		}
	case gesture.Draw, gesture.Erase:
		mode := slice.ModeDraw
		if d.Action == gesture.Erase {
			mode = slice.ModeErase
		}
		for _, e := range masks {
			if c, ok := e.Renderable.(interface{ Commit() }); ok && world.Press == nil {
				c.Commit()
			}
			e.Renderable.Handle(ctx, world, mode)
		}
	default:
		for _, e := range masks {
			if c, ok := e.Renderable.(interface{ Commit() }); ok && world.Press == nil {
				c.Commit()
			}
			e.Renderable.Handle(ctx, gesture.WorldMouse{Current: world.Current, Time: world.Time}, "")
		}
	}
}

func (r *Renderer) event() gesture.Event {
	return gesture.Event{Buttons: r.Mouse.Buttons, Mods: r.Mouse.Mods, Clicks: r.Mouse.Clicks, Mode: r.Mode}
}

// displayCrosshair dots the two in-plane lines through the cursor, leaving a
// gap around it.
func (r *Renderer) displayCrosshair(ctx *scene.Context, g models.Grid, sl *slicer.Slicer) {
	cur := sl.Sample()
	deltaMax := math.Max(g.Delta.X, math.Max(g.Delta.Y, g.Delta.Z))
	delta := [3]float64{g.Delta.X, g.Delta.Y, g.Delta.Z}

	var dots []r3.Vec
	wa, ha := r.Plane.InPlane()
	for _, a := range []models.Axis{wa, ha} {
		step := 1.0
		if delta[a] > 0 {
			step = math.Max(1, 2*deltaMax/delta[a])
		}
		c := float64(cur.Get(a))
		last := float64(g.NumAxis(a) - 1)
		for t := 0.0; t <= last; t += step {
			if t > c-crosshairGap && t < c+crosshairGap {
				continue
			}
			v := cur.Vec()
			setAxis(&v, a, t)
			p := g.World(v)
			dots = append(dots, p, p)
		}
	}
	ctx.Device.DrawLines(dots, gpu.RGB(1, 1, 1).WithAlpha(0.75), dotWidth)
}

// displayTitle writes the plane and slice index and underlines the view
// with the colour of its axis.
func (r *Renderer) displayTitle(ctx *scene.Context, sl *slicer.Slicer) {
	dev := ctx.Device
	vp := dev.ViewportSize()
	title := fmt.Sprintf("2D Slice %s", r.Plane)
	if sl != nil {
		title = fmt.Sprintf("2D Slice %s = %d", r.Plane, sl.Index(r.Plane))
	}
	dev.DrawText(8, vp.H-12, title, gpu.RGB(1, 1, 1).WithAlpha(0.75))

	dev.ClearDepth()
	dev.SetMatrices(transform.Identity(), transform.Identity())
	dev.DrawLines([]r3.Vec{{X: -0.65, Y: -0.97}, {X: 0.65, Y: -0.97}}, planeColors[r.Plane].WithAlpha(0.5), 5)
}

// Drag applies one drag tick: pan and zoom move the camera, a picked
// left drag steps the slice by the vertical motion.
func (r *Renderer) Drag(ctx *scene.Context, dx, dy int) {
	m := ctx.Settings.Mouse
	ev := r.event()
	switch gesture.Resolve2D(ev).Action {
	case gesture.Pan:
		r.Camera.Translate(camera.X, float64(dx)*m.XPos2D)
		r.Camera.Translate(camera.Y, -float64(dy)*m.YPos2D)
	case gesture.Zoom:
		r.Camera.ScaleBy(float64(dy) * m.Scale2D)
	case gesture.SelectSample:
		if ev.Buttons.Has(gesture.ButtonLeft) {
			r.Wheel(ctx, dy)
		}
	}
}

// Wheel moves the slice of this view by delta.
func (r *Renderer) Wheel(ctx *scene.Context, delta int) bool {
	e, p := r.target(ctx)
	if e == nil || delta == 0 {
		return false
	}
	sl := p.Slicer()
	if !sl.Step(r.Plane, delta) {
		return false
	}
	ctx.SetStatus("%s: %s", e.Name, sl)
	return true
}
