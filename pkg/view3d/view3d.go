// Package view3d renders the 3D scene: every visible entry under the scene
// camera, the reference overlays and the anatomical labels. It also turns
// pointer drags into camera motion and per-object interaction.
package view3d

import (
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/annotation"
	"mriview/pkg/camera"
	"mriview/pkg/gesture"
	"mriview/pkg/gpu"
	"mriview/pkg/scene"
	"mriview/pkg/screenshot"
	"mriview/pkg/slicer"
	"mriview/pkg/transform"
)

// Projection parameters.
const (
	// FOV is the vertical field of view in degrees
	FOV  = 25.0
	Near = 0.01
	Far  = 100.0
)

// Renderer is the 3D scene view.
type Renderer struct {
	Camera *camera.Camera3D
	Mouse  gesture.ScreenMouse

	// Mode is the named interaction mode: Rotate, Pan, Zoom or a custom
	// mode of the selected object
	Mode string

	// Legend is the colour bar of the reference volume
	Legend *annotation.Legend

	detail *models.Box
}

// New returns a scene view in the default pose.
func New() *Renderer {
	return &Renderer{Camera: camera.NewCamera3D(), Mode: gesture.ModeRotate, Legend: annotation.NewLegend()}
}

// Projection returns the projection of a w x h viewport restricted to one
// tile of a capture.
func Projection(perspective bool, w, h int, t screenshot.Tile) *mat.Dense {
	aspect := float64(max(w, 1)) / float64(max(h, 1))

	var l, r, b, top float64
	switch {
	case perspective:
		top = Near * math.Tan(FOV*math.Pi/360)
		b = -top
		l, r = b*aspect, top*aspect
	case aspect > 1:
		l, r, b, top = -aspect, aspect, -1, 1
	default:
		l, r, b, top = -1, 1, -1/aspect, 1/aspect
	}

	l, r, b, top = t.Frustum(l, r, b, top)
	if perspective {
		return transform.Frustum(l, r, b, top, Near, Far)
	}
	return transform.Ortho(l, r, b, top, Near, Far)
}

// Box returns the box the camera frames: the pinned detail box, or the
// union of the visible entries.
func (r *Renderer) Box(ctx *scene.Context) models.Box {
	if r.detail != nil {
		return *r.detail
	}
	return ctx.Registry.Bounds()
}

// ZoomDetail pins the union of the selected entries as the framed box.
func (r *Renderer) ZoomDetail(ctx *scene.Context) bool {
	box := scene.Union(ctx.Registry.Selected())
	if box.IsEmpty() {
		ctx.SetStatus("select an object to zoom on")
		return false
	}
	r.detail = &box
	r.Camera.ZoomReset()
	return true
}

// ZoomOverview frames every visible entry again.
func (r *Renderer) ZoomOverview() {
	r.detail = nil
	r.Camera.ZoomReset()
}

// Detail reports whether a detail box is pinned.
func (r *Renderer) Detail() bool { return r.detail != nil }

// Render draws one frame into the device's current viewport. width and
// height are the logical size of the region the pointer coordinates refer
// to.
func (r *Renderer) Render(ctx *scene.Context, width, height int) error {
	err := r.render(ctx, screenshot.Full, func() {
		r.updateView(ctx)
		r.dispatch(ctx, width, height)
	})
	r.displayTitle(ctx)
	if ctx.Settings.Overlay.Legend {
		if lerr := r.Legend.Draw(ctx); lerr != nil {
			err = errors.Join(err, fmt.Errorf("legend: %w", lerr))
		}
	}
	return err
}

// render draws the scene for one tile. Interactive frames pass interact,
// which runs once the entries are drawn; capture tiles reuse the last view
// so that every tile draws the same overlays.
func (r *Renderer) render(ctx *scene.Context, tile screenshot.Tile, interact func()) error {
	dev := ctx.Device
	s := ctx.Settings
	vp := dev.ViewportSize()

	bg := gpu.RGB(s.Render.Background[0], s.Render.Background[1], s.Render.Background[2])
	if s.Render.TransparentBackground && interact == nil {
		bg.A = 0
	}
	dev.Clear(bg)

	box := r.Box(ctx)
	dev.SetMatrices(r.Camera.ModelView(box), Projection(s.Render.Perspective, vp.W, vp.H, tile))

	var errs []error
	for _, e := range ctx.Registry.Visible() {
		if err := e.Renderable.Display(ctx); err != nil {
			errs = append(errs, fmt.Errorf("display %s: %w", e.Name, err))
		}
	}
	if interact != nil {
		interact()
	}

	if err := r.displayReference(ctx, box); err != nil {
		errs = append(errs, err)
	}
	if s.Overlay.Anatomical {
		r.displayLabels(ctx, box, tile)
	}
	return errors.Join(errs...)
}

// updateView recomputes look, up and eye by unprojecting the centre of the
// viewport at the depth drawn there.
func (r *Renderer) updateView(ctx *scene.Context) {
	dev := ctx.Device
	vp := dev.ViewportSize()
	if vp.W <= 0 || vp.H <= 0 {
		return
	}
	winX := math.Round(float64(vp.W) * 0.5)
	winY := math.Round(float64(vp.H) * 0.5)
	depth, err := dev.ReadDepth(min(int(winX), vp.W-1), min(int(winY), vp.H-1))
	if err != nil {
		depth = 1
	}

	mv, pr := dev.ModelView(), dev.Projection()
	hit, err1 := transform.Unproject(r3.Vec{X: winX, Y: winY, Z: depth}, mv, pr, vp)
	eye, err2 := transform.Unproject(r3.Vec{X: winX, Y: winY}, mv, pr, vp)
	low, err3 := transform.Unproject(r3.Vec{X: winX, Z: depth}, mv, pr, vp)
	if err := errors.Join(err1, err2, err3); err != nil {
		logrus.WithError(err).Debug("keeping previous view")
		return
	}

	look := r3.Sub(hit, eye)
	up := r3.Sub(hit, low)
	if r3.Norm(look) == 0 || r3.Norm(up) == 0 {
		return
	}
	look = r3.Unit(look)
	up = r3.Sub(up, r3.Scale(r3.Dot(up, look), look))
	if r3.Norm(up) == 0 {
		return
	}
	ctx.View = scene.View{Look: look, Up: r3.Unit(up), Eye: eye}
}

func (r *Renderer) displayTitle(ctx *scene.Context) {
	vp := ctx.Device.ViewportSize()
	ctx.Device.DrawText(8, vp.H-8, "3D", gpu.RGB(1, 1, 1).WithAlpha(0.75))
}

func (r *Renderer) selection(ctx *scene.Context) gesture.Selection {
	active := ctx.Registry.Active()
	if active == nil {
		return gesture.Selection{}
	}
	return gesture.Selection{Present: true, Modes: active.Renderable.Modes()}
}

func (r *Renderer) event() gesture.Event {
	return gesture.Event{
		Buttons: r.Mouse.Buttons,
		Mods:    r.Mouse.Mods,
		Clicks:  r.Mouse.Clicks,
		Mode:    r.Mode,
	}
}

// dispatch hands the pointer to the entries: a double-click selects the
// nearest one; otherwise the selected entries see the resolved mode and
// pick flag and every other entry sees an empty pointer.
func (r *Renderer) dispatch(ctx *scene.Context, width, height int) {
	if r.Mouse.Current == nil {
		return
	}
	world := r.Mouse.Unproject(ctx.Device, width, height)
	sel := r.selection(ctx)
	d := gesture.Resolve3D(r.event(), sel)

	if d.Action == gesture.SelectNearest {
		r.selectNearest(ctx, world)
		// the double-click is consumed
		r.Mouse.Clicks = 1
		return
	}

	mode, pick := d.Mode, d.Pick
	if d.Action == gesture.None && !r.Mouse.Mods.Has(gesture.Pick) && slices.Contains(sel.Modes, r.Mode) {
		mode, pick = r.Mode, true
	}
	if mode == "" {
		mode = gesture.ModeRotate
	}
	world.Mods &^= gesture.Pick
	if pick {
		world.Mods |= gesture.Pick
	}

	selected := ctx.Registry.Selected()
	for _, e := range ctx.Registry.Visible() {
		if slices.Contains(selected, e) {
			e.Renderable.Handle(ctx, world, mode)
		} else {
			e.Renderable.Handle(ctx, gesture.WorldMouse{}, gesture.ModeRotate)
		}
	}
}

func (r *Renderer) selectNearest(ctx *scene.Context, world gesture.WorldMouse) {
	e := ctx.Registry.Nearest(ctx, world)
	if e == nil {
		return
	}
	names := []string{e.Name}
	if world.Shift() {
		for _, s := range ctx.Registry.Selected() {
			if s != e {
				names = append(names, s.Name)
			}
		}
	}
	ctx.Registry.Select(names...)
	ctx.SetStatus("selected: %s", e.Name)
}

// Drag applies one drag tick of dx, dy pointer pixels to the camera. Ticks
// that resolve to per-object interaction leave the camera alone; the
// entries see them on the next frame.
func (r *Renderer) Drag(ctx *scene.Context, dx, dy int) {
	ev := r.event()
	ev.Clicks = min(ev.Clicks, 1)
	d := gesture.Resolve3D(ev, r.selection(ctx))
	m := ctx.Settings.Mouse
	fx, fy := float64(dx), float64(dy)

	switch d.Action {
	case gesture.Rotate:
		r.Camera.RotateY(fx * m.YRot)
		r.Camera.RotateX(fy * m.XRot)
	case gesture.Pan:
		r.Camera.Translate(camera.X, fx*m.XPos)
		r.Camera.Translate(camera.Y, -fy*m.YPos)
	case gesture.Zoom:
		if ctx.Settings.Render.Perspective {
			r.Camera.Translate(camera.Z, fy*m.ZPos)
		} else {
			r.Camera.ScaleBy(fy * m.Scale)
		}
	}
}

type stepper interface {
	scene.Sliceable
	ChangeSlice(ctx *scene.Context, delta int) bool
}

// Wheel moves the slice facing the camera by delta, on the selected entries
// or else on the reference entry. Entries sharing a cursor step it once.
func (r *Renderer) Wheel(ctx *scene.Context, delta int) bool {
	targets := ctx.Registry.Selected()
	if len(targets) == 0 {
		if ref := ctx.Registry.Reference(); ref != nil {
			targets = []*scene.Entry{ref}
		}
	}

	stepped := make(map[*slicer.Slicer]bool)
	moved := false
	for _, e := range targets {
		st, ok := e.Renderable.(stepper)
		if !ok || stepped[st.Slicer()] {
			continue
		}
		stepped[st.Slicer()] = true
		if st.ChangeSlice(ctx, delta) {
			moved = true
			ctx.SetStatus("%s: %s", e.Name, st.Slicer())
		}
	}
	return moved
}
