// Package slice draws the orthogonal planes of voxel data as textured quads
// and implements the slice interactions: selecting a plane, dragging it
// through the volume, querying values and painting masks.
package slice

import (
	"errors"
	"fmt"
	"image/color"
	"math"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/colormap"
	"mriview/pkg/config"
	"mriview/pkg/gesture"
	"mriview/pkg/gpu"
	"mriview/pkg/scene"
	"mriview/pkg/slicer"
	"mriview/pkg/texture"
)

// Interaction modes offered by slice renderers.
const (
	ModeQuery = "Query"
	ModeSlice = "Slice"
)

const (
	// gridLift raises grid lines off the plane, in voxels
	gridLift = 0.01

	tubeSides = 5
)

var (
	red    = gpu.RGB(1, 0, 0)
	nextID atomic.Int64
)

// Options are the per-dataset rendering parameters.
type Options struct {
	// Channel selects the channel fed to one-dimensional colormaps
	Channel int

	Slab     int
	SlabType SlabType

	Opacity         float64
	NoBackground    bool
	BackgroundLevel float64

	Smooth bool
	Grid   bool
	Tubes  bool
	Box    bool
}

// OptionsFrom reads the slice section of the settings.
func OptionsFrom(s *config.Settings) (Options, error) {
	kind, err := ParseSlabType(s.Slice.SlabType)
	if err != nil {
		return Options{}, err
	}
	return Options{
		Slab:            s.Slice.Slab,
		SlabType:        kind,
		Opacity:         s.Slice.Opacity,
		NoBackground:    s.Slice.NoBackground,
		BackgroundLevel: s.Slice.BackgroundLevel,
		Smooth:          s.Slice.Smooth,
		Grid:            s.Slice.Grid,
		Tubes:           s.Slice.Tubes,
	}, nil
}

// Selection is the plane picked for dragging.
type Selection struct {
	Voxel models.Sample
	Axis  models.Axis
}

// Stats counts the work done by a renderer.
type Stats struct {
	// Rasters counts full plane fills per axis
	Rasters [3]int

	// Patches counts texels rewritten from the edit queue
	Patches int
}

// Renderer draws the shown planes of one dataset. Each plane keeps a
// texture buffer that is refilled only when the shared slicer moved that
// axis or a parameter changed; voxel edits go through a queue and patch the
// affected texels in place.
type Renderer struct {
	name   string
	id     int64
	data   Data
	slicer *slicer.Slicer

	opts     Options
	cmap     colormap.Colormap
	which    map[int]bool
	mask     *models.Mask
	weight   *models.Volume
	opMap    *models.Volume
	opFn     *colormap.Scalar
	version  uint64
	buffers  [3]*texture.Buffer
	planes   [3]*plane
	seen     [3]uint64
	queue    []models.Sample
	picked   *Selection
	guide    []r3.Vec
	lastTime time.Time

	Stats Stats
}

// New creates a renderer for data, slicing through the cursor of its grid
// in the registry.
func New(name string, data Data, slicers *slicer.Registry, opts Options, cmap colormap.Colormap) *Renderer {
	r := &Renderer{
		name:   name,
		id:     nextID.Add(1),
		data:   data,
		slicer: slicers.Get(data.Sampling()),
		opts:   opts,
		cmap:   cmap,
	}
	for i := range r.buffers {
		r.buffers[i] = texture.NewBuffer()
	}
	return r
}

// Name returns the dataset name.
func (r *Renderer) Name() string { return r.name }

// Sampling implements scene.Sliceable.
func (r *Renderer) Sampling() models.Grid { return r.data.Sampling() }

// Slicer implements scene.Sliceable.
func (r *Renderer) Slicer() *slicer.Slicer { return r.slicer }

// Value implements scene.Sliceable.
func (r *Renderer) Value(s models.Sample) []float64 { return r.data.Value(s) }

// SetValue writes one voxel and queues the texels showing it.
func (r *Renderer) SetValue(s models.Sample, v []float64) error {
	if err := r.data.SetValue(s, v); err != nil {
		return err
	}
	r.queue = append(r.queue, s)
	return nil
}

// SetValues writes every voxel of values and returns their previous values.
// Samples outside of the grid are skipped.
func (r *Renderer) SetValues(values map[models.Sample][]float64) map[models.Sample][]float64 {
	prev := make(map[models.Sample][]float64, len(values))
	for s, v := range values {
		old := r.data.Value(s)
		if err := r.SetValue(s, v); err != nil {
			continue
		}
		prev[s] = old
	}
	return prev
}

// Options returns the rendering parameters.
func (r *Renderer) Options() Options { return r.opts }

// SetOptions replaces the rendering parameters and refills every plane.
func (r *Renderer) SetOptions(o Options) {
	r.opts = o
	r.Invalidate()
}

// Colormap returns the colormap.
func (r *Renderer) Colormap() colormap.Colormap { return r.cmap }

// SetColormap replaces the colormap.
func (r *Renderer) SetColormap(c colormap.Colormap) {
	r.cmap = c
	r.Invalidate()
}

// SetWhich restricts the drawn labels; an empty list draws all of them.
func (r *Renderer) SetWhich(labels []int) {
	r.which = nil
	if len(labels) > 0 {
		r.which = make(map[int]bool, len(labels))
		for _, l := range labels {
			r.which[l] = true
		}
	}
	r.Invalidate()
}

// SetMask restricts drawing to the foreground of m; nil removes the mask.
func (r *Renderer) SetMask(m *models.Mask) error {
	if m != nil {
		if err := slicer.Check(r.data.Sampling(), m.Sampling()); err != nil {
			return fmt.Errorf("mask %s on %s: %w", m.Name, r.name, err)
		}
	}
	r.mask = m
	r.Invalidate()
	return nil
}

// SetWeight multiplies every value by channel zero of w; nil removes it.
func (r *Renderer) SetWeight(w *models.Volume) error {
	if w != nil {
		if err := slicer.Check(r.data.Sampling(), w.Sampling()); err != nil {
			return fmt.Errorf("weight %s on %s: %w", w.Name, r.name, err)
		}
	}
	r.weight = w
	r.Invalidate()
	return nil
}

// SetOpacityMap modulates alpha by fn applied to the values of v, or to
// their norm when v has several channels; nil removes it.
func (r *Renderer) SetOpacityMap(v *models.Volume, fn *colormap.Scalar) error {
	if v != nil {
		if fn == nil {
			return errors.New("opacity map needs a transfer function")
		}
		if err := slicer.Check(r.data.Sampling(), v.Sampling()); err != nil {
			return fmt.Errorf("opacity map %s on %s: %w", v.Name, r.name, err)
		}
	}
	r.opMap, r.opFn = v, fn
	r.Invalidate()
	return nil
}

// Invalidate refills every plane on the next draw.
func (r *Renderer) Invalidate() {
	r.version++
	for _, b := range r.buffers {
		b.MarkDirty()
	}
}

// Buffer returns the texture buffer of an axis.
func (r *Renderer) Buffer(a models.Axis) *texture.Buffer { return r.buffers[a] }

// Stale reports whether the plane of an axis must be refilled before it is
// drawn again.
func (r *Renderer) Stale(a models.Axis) bool {
	return r.buffers[a].Dirty() || r.seen[a] != r.slicer.Generation(a)
}

// HasBounds implements scene.Renderable.
func (r *Renderer) HasBounds() bool { return true }

// Bounds implements scene.Renderable.
func (r *Renderer) Bounds() models.Box { return r.data.Sampling().Bounds() }

// Modes implements scene.Renderable.
func (r *Renderer) Modes() []string { return []string{ModeQuery, ModeSlice} }

// Display implements scene.Renderable. It draws the shown planes, the
// optional bounding box and the selection guide.
func (r *Renderer) Display(ctx *scene.Context) error {
	var errs []error
	for _, a := range r.slicer.ShownAxes() {
		if err := r.DisplayPlane(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	if r.opts.Box {
		r.displayBox(ctx)
	}
	r.displayGuide(ctx)
	return errors.Join(errs...)
}

// DisplayPlane implements scene.Planar.
func (r *Renderer) DisplayPlane(ctx *scene.Context, axis models.Axis) error {
	g := r.data.Sampling()
	w, h := planeSize(g, axis)
	if w <= 1 || h <= 1 {
		return nil
	}

	r.flush()
	if r.Stale(axis) {
		r.fill(axis)
	}
	buf := r.buffers[axis]
	if err := buf.Upload(ctx.Device, r.opts.Smooth); err != nil {
		return fmt.Errorf("plane %s of %s: %w", axis, r.name, err)
	}

	corners := r.corners(axis)
	su, sv := buf.UV()
	uv := [4][2]float64{{0, 0}, {su, 0}, {su, sv}, {0, sv}}
	if err := ctx.Device.DrawTexturedQuad(buf.Handle(), corners, uv, 1); err != nil {
		return fmt.Errorf("plane %s of %s: %w", axis, r.name, err)
	}

	if r.opts.Tubes {
		recipe := tubeRecipe{corners: corners, radius: r.tubeRadius()}
		err := ctx.Lists.Draw(ctx.Device, r.slot(axis, "tubes"), recipe, recipe.build)
		if err != nil {
			return err
		}
	}
	if r.opts.Grid {
		recipe := gridRecipe{corners: corners, w: w, h: h, color: scaleColor(ctx), width: ctx.Settings.Overlay.LineWidth}
		return ctx.Lists.Draw(ctx.Device, r.slot(axis, "grid"), recipe, recipe.build)
	}
	return nil
}

// Dispose implements scene.Renderable.
func (r *Renderer) Dispose(ctx *scene.Context) {
	for i, b := range r.buffers {
		b.Dispose(ctx.Device)
		for _, kind := range []string{"tubes", "grid"} {
			ctx.Lists.Invalidate(r.slot(models.Axis(i), kind))
		}
	}
}

type slotKey struct {
	owner int64
	axis  models.Axis
	kind  string
}

func (r *Renderer) slot(a models.Axis, kind string) slotKey {
	return slotKey{owner: r.id, axis: a, kind: kind}
}

// flush patches the queued voxels into the planes that show them. With a
// slab, a voxel also changes the texels of planes up to Slab slices away.
func (r *Renderer) flush() {
	if len(r.queue) == 0 {
		return
	}
	reach := 0
	if r.opts.Slab > 1 {
		reach = r.opts.Slab
	}
	for _, s := range r.queue {
		for _, a := range models.Axes {
			idx := r.slicer.Index(a)
			if abs(s.Get(a)-idx) > reach || r.Stale(a) {
				continue
			}
			p := r.planes[a]
			if p == nil || !p.current(r, a) {
				r.buffers[a].MarkDirty()
				continue
			}
			x, y := planeCoords(a, s)
			at := planeSample(a, idx, x, y)
			value := aggregate(r.data, a, at, r.opts.Slab, r.opts.SlabType)
			p.values[y*p.w+x] = value
			r.buffers[a].Set(x, y, r.texel(at, value))
			r.Stats.Patches++
		}
	}
	r.queue = r.queue[:0]
}

// fill rasterizes the whole plane of an axis into its buffer.
func (r *Renderer) fill(axis models.Axis) {
	p := r.plane(axis)
	buf := r.buffers[axis]
	buf.Resize(p.w, p.h)
	for y := 0; y < p.h; y++ {
		for x := 0; x < p.w; x++ {
			s := planeSample(axis, p.index, x, y)
			buf.Set(x, y, r.texel(s, p.values[y*p.w+x]))
		}
	}
	buf.MarkDirty()
	r.seen[axis] = r.slicer.Generation(axis)
	r.Stats.Rasters[axis]++
	logrus.WithFields(logrus.Fields{
		"dataset": r.name,
		"axis":    axis.String(),
		"index":   p.index,
	}).Trace("filled plane")
}

func (p *plane) current(r *Renderer, axis models.Axis) bool {
	return p.index == r.slicer.Index(axis) && p.version == r.version
}

// plane returns the slab values of the current slice of an axis.
func (r *Renderer) plane(axis models.Axis) *plane {
	if p := r.planes[axis]; p != nil && p.current(r, axis) {
		return p
	}
	g := r.data.Sampling()
	w, h := planeSize(g, axis)
	p := &plane{
		axis:    axis,
		index:   r.slicer.Index(axis),
		version: r.version,
		w:       w,
		h:       h,
		values:  make([][]float64, w*h),
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			s := planeSample(axis, p.index, x, y)
			p.values[y*w+x] = aggregate(r.data, axis, s, r.opts.Slab, r.opts.SlabType)
		}
	}
	r.planes[axis] = p
	return p
}

// texel colours one voxel, applying the mask, weight and opacity map.
func (r *Renderer) texel(s models.Sample, value []float64) color.NRGBA {
	if r.mask != nil && r.mask.Background(s) {
		return color.NRGBA{}
	}
	if r.weight != nil {
		wv := r.weight.At(s, 0)
		scaled := make([]float64, len(value))
		floats.ScaleTo(scaled, wv, value)
		value = scaled
	}
	op := 1.0
	if r.opMap != nil {
		ov := r.opMap.Value(s)
		x := 0.0
		switch {
		case len(ov) == 1:
			x = ov[0]
		case len(ov) > 1:
			x = floats.Norm(ov, 2)
		}
		op = r.opFn.Unit(x)
	}
	return r.pack(value, op)
}

// pack maps a value to a texel colour.
func (r *Renderer) pack(value []float64, op float64) color.NRGBA {
	if len(value) == 0 {
		return color.NRGBA{}
	}
	if !finite(value) {
		value = make([]float64, len(value))
	}
	if r.cmap == nil {
		return color.NRGBA{}
	}
	if r.which != nil && !r.which[int(math.Round(value[0]))] {
		return color.NRGBA{}
	}

	var in []float64
	if d := r.cmap.DimIn(); d > 1 {
		if len(value) < d {
			return color.NRGBA{}
		}
		in = value[:d]
	} else {
		ch := r.opts.Channel
		if ch < 0 || ch >= len(value) {
			return color.NRGBA{}
		}
		in = value[ch : ch+1]
	}

	c := r.cmap.Apply(in)
	alpha := r.opts.Opacity * op * c.A
	if r.opts.NoBackground && math.Abs(floats.Max(value)) <= r.opts.BackgroundLevel {
		alpha = 0
	}
	return c.WithAlpha(alpha).NRGBA()
}

// corners returns the world corners of the current plane of an axis, the
// outer faces of its border voxels.
func (r *Renderer) corners(axis models.Axis) [4]r3.Vec {
	g := r.data.Sampling()
	wa, ha := axis.InPlane()
	idx := float64(r.slicer.Index(axis))
	nw, nh := float64(g.NumAxis(wa))-0.5, float64(g.NumAxis(ha))-0.5
	at := func(u, v float64) r3.Vec {
		var p r3.Vec
		setAxis(&p, axis, idx)
		setAxis(&p, wa, u)
		setAxis(&p, ha, v)
		return g.World(p)
	}
	return [4]r3.Vec{at(-0.5, -0.5), at(nw, -0.5), at(nw, nh), at(-0.5, nh)}
}

func setAxis(p *r3.Vec, a models.Axis, v float64) {
	switch a {
	case models.AxisI:
		p.X = v
	case models.AxisJ:
		p.Y = v
	default:
		p.Z = v
	}
}

func (r *Renderer) tubeRadius() float64 {
	g := r.data.Sampling()
	d := math.Max(g.Delta.X, math.Max(g.Delta.Y, g.Delta.Z))
	n := math.Max(float64(g.Num[0]), math.Max(float64(g.Num[1]), float64(g.Num[2])))
	return 0.001 * d * n
}

func scaleColor(ctx *scene.Context) gpu.Color {
	c := ctx.Settings.Overlay.ScaleColor
	return gpu.RGB(c[0], c[1], c[2])
}

// tubeRecipe outlines a plane with prisms along its edges.
type tubeRecipe struct {
	corners [4]r3.Vec
	radius  float64
}

func (t tubeRecipe) build() gpu.Batch {
	var b gpu.Batch
	for i := range t.corners {
		a, c := t.corners[i], t.corners[(i+1)%4]
		prism(&b, a, c, t.radius, red)
	}
	return b
}

// prism appends the side faces of a prism of radius rad from a to b.
func prism(b *gpu.Batch, a, c r3.Vec, rad float64, col gpu.Color) {
	dir := r3.Sub(c, a)
	if r3.Norm(dir) == 0 {
		return
	}
	dir = r3.Unit(dir)
	ref := r3.Vec{X: 1}
	if math.Abs(dir.X) > 0.9 {
		ref = r3.Vec{Y: 1}
	}
	u := r3.Unit(r3.Cross(dir, ref))
	v := r3.Cross(dir, u)
	ring := func(center r3.Vec, k int) r3.Vec {
		theta := 2 * math.Pi * float64(k) / tubeSides
		off := r3.Add(r3.Scale(rad*math.Cos(theta), u), r3.Scale(rad*math.Sin(theta), v))
		return r3.Add(center, off)
	}
	for k := 0; k < tubeSides; k++ {
		p0, p1 := ring(a, k), ring(a, k+1)
		q0, q1 := ring(c, k), ring(c, k+1)
		b.AddTriangle(p0, p1, q1, col)
		b.AddTriangle(p0, q1, q0, col)
	}
}

// gridRecipe draws the voxel borders of a plane on both of its sides.
type gridRecipe struct {
	corners [4]r3.Vec
	w, h    int
	color   gpu.Color
	width   float64
}

func (g gridRecipe) build() gpu.Batch {
	a, bb, c, d := g.corners[0], g.corners[1], g.corners[2], g.corners[3]
	normal := r3.Cross(r3.Sub(bb, a), r3.Sub(d, a))
	if r3.Norm(normal) == 0 {
		return gpu.Batch{}
	}
	// the lift scales with the voxel size along the plane
	voxel := r3.Norm(r3.Sub(bb, a)) / float64(g.w)
	lift := r3.Scale(gridLift*voxel, r3.Unit(normal))

	b := gpu.Batch{LineWidth: g.width}
	for _, off := range []r3.Vec{lift, r3.Scale(-1, lift)} {
		for i := 0; i <= g.w; i++ {
			t := float64(i) / float64(g.w)
			b.AddLine(r3.Add(lerp(a, bb, t), off), r3.Add(lerp(d, c, t), off), g.color)
		}
		for j := 0; j <= g.h; j++ {
			t := float64(j) / float64(g.h)
			b.AddLine(r3.Add(lerp(a, d, t), off), r3.Add(lerp(bb, c, t), off), g.color)
		}
	}
	return b
}

func lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(a, r3.Scale(t, r3.Sub(b, a)))
}

// displayBox draws the outline of the voxel lattice.
func (r *Renderer) displayBox(ctx *scene.Context) {
	g := r.data.Sampling()
	var box []r3.Vec
	n := [3]float64{float64(g.Num[0]), float64(g.Num[1]), float64(g.Num[2])}
	corner := func(i, j, k int) r3.Vec {
		return g.World(r3.Vec{
			X: float64(i)*n[0] - 0.5,
			Y: float64(j)*n[1] - 0.5,
			Z: float64(k)*n[2] - 0.5,
		})
	}
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			box = append(box, corner(0, i, j), corner(1, i, j))
			box = append(box, corner(i, 0, j), corner(i, 1, j))
			box = append(box, corner(i, j, 0), corner(i, j, 1))
		}
	}
	c := ctx.Settings.Overlay.BoxColor
	ctx.Device.DrawLines(box, gpu.RGB(c[0], c[1], c[2]), ctx.Settings.Overlay.LineWidth)
}

// displayGuide draws the line through the selected voxel along the picked
// axis, with its end points.
func (r *Renderer) displayGuide(ctx *scene.Context) {
	if len(r.guide) != 3 {
		return
	}
	a, b, c := r.guide[0], r.guide[1], r.guide[2]
	ctx.Device.DrawLines([]r3.Vec{a, b, b, c}, red, 2)
	ctx.Device.DrawLines([]r3.Vec{a, a, b, b, c, c}, red, 5)
}

// Selected returns the picked plane, or nil.
func (r *Renderer) Selected() *Selection { return r.picked }

// ClearSelection drops the picked plane and its guide.
func (r *Renderer) ClearSelection() {
	r.picked = nil
	r.guide = nil
}

func (r *Renderer) setGuide(s models.Sample, axis models.Axis) {
	g := r.data.Sampling()
	r.guide = []r3.Vec{
		g.WorldSample(s.With(axis, 0)),
		g.WorldSample(s),
		g.WorldSample(s.With(axis, g.NumAxis(axis)-1)),
	}
}

// Distance implements scene.Renderable. A press counts when the point
// under the pointer lies on one of the shown slices.
func (r *Renderer) Distance(ctx *scene.Context, m gesture.WorldMouse) (float64, bool) {
	if m.Press == nil || m.Current == nil || !m.Current.Reliable {
		return 0, false
	}
	g := r.data.Sampling()
	n := g.Nearest(m.Current.Hit)
	if !g.Contains(n) || !r.slicer.Contains(n) {
		return 0, false
	}
	return r3.Norm(r3.Sub(m.Press.Hit, m.Press.Point)), true
}

// ChangeSlice steps the plane facing the camera, or the only shown plane,
// by delta slices. It reports whether a slice moved.
func (r *Renderer) ChangeSlice(ctx *scene.Context, delta int) bool {
	axis, ok := r.FrontAxis(ctx.View.Look)
	if !ok {
		return false
	}
	return r.slicer.Step(axis, delta)
}

// FrontAxis returns the shown axis most aligned with look, or the only
// shown axis.
func (r *Renderer) FrontAxis(look r3.Vec) (models.Axis, bool) {
	shown := r.slicer.ShownAxes()
	if len(shown) == 1 {
		return shown[0], true
	}
	dots := [3]float64{math.Abs(look.X), math.Abs(look.Y), math.Abs(look.Z)}
	for _, a := range shown {
		b, c := a.InPlane()
		if dots[a] > dots[b] && dots[a] > dots[c] {
			return a, true
		}
	}
	return 0, false
}

type interaction int

const (
	none interaction = iota
	selectPlane
	query
	drag
)

func (r *Renderer) parse(m gesture.WorldMouse, mode string) interaction {
	switch {
	case mode == ModeSlice && (r.picked == nil || m.Press == nil):
		return selectPlane
	case mode == ModeQuery:
		return query
	case mode == ModeSlice:
		return drag
	case mode == gesture.ModeRotate && m.Pick():
		if m.Shift() && !m.Control() {
			return query
		}
		if !m.Shift() && !m.Control() {
			if m.Press == nil || r.picked == nil {
				return selectPlane
			}
			return drag
		}
	}
	return none
}

// Handle implements scene.Renderable.
func (r *Renderer) Handle(ctx *scene.Context, m gesture.WorldMouse, mode string) {
	if !m.Pick() {
		r.ClearSelection()
	}
	if m.Current == nil {
		return
	}
	switch r.parse(m, mode) {
	case selectPlane:
		r.handleSelect(ctx, m)
	case query:
		r.handleQuery(ctx, m)
	case drag:
		r.handleDrag(ctx, m)
	default:
		r.ClearSelection()
	}
}

func (r *Renderer) handleSelect(ctx *scene.Context, m gesture.WorldMouse) {
	hit := m.Current.Hit
	if m.Press != nil {
		hit = m.Press.Hit
	}
	g := r.data.Sampling()
	n := g.Nearest(hit)
	if !g.Contains(n) {
		r.ClearSelection()
		return
	}

	axis, ok := nearestPlane(r.slicer, n)
	if !ok {
		r.ClearSelection()
		return
	}
	r.picked = &Selection{Voxel: n, Axis: axis}
	r.setGuide(n, axis)
	ctx.SetStatus("clicking will change selected slice")
}

// nearestPlane picks the shown axis whose current slice is strictly
// closest to the voxel, falling back to K.
func nearestPlane(sl *slicer.Slicer, n models.Sample) (models.Axis, bool) {
	d := [3]int{}
	for _, a := range models.Axes {
		d[a] = abs(n.Get(a) - sl.Index(a))
	}
	switch {
	case d[0] < d[1] && d[0] < d[2]:
		return models.AxisI, sl.Shown(models.AxisI)
	case d[1] < d[0] && d[1] < d[2]:
		return models.AxisJ, sl.Shown(models.AxisJ)
	}
	return models.AxisK, sl.Shown(models.AxisK)
}

func (r *Renderer) handleQuery(ctx *scene.Context, m gesture.WorldMouse) {
	r.ClearSelection()
	g := r.data.Sampling()
	n := g.Nearest(m.Current.Hit)
	if !g.Contains(n) {
		return
	}
	w := g.WorldSample(n)
	ctx.SetStatus("%s voxel %s at (%.2f, %.2f, %.2f): %v", r.name, n, w.X, w.Y, w.Z, r.data.Value(n))
}

func (r *Renderer) handleDrag(ctx *scene.Context, m gesture.WorldMouse) {
	if m.Press == nil || r.picked == nil {
		return
	}
	dx := m.Current.Screen.X - m.Press.Screen.X
	dy := m.Current.Screen.Y - m.Press.Screen.Y
	if dx == 0 && dy == 0 {
		return
	}
	if m.Time.Equal(r.lastTime) {
		return
	}
	r.lastTime = m.Time

	axis := r.picked.Axis
	n := r.picked.Voxel.Get(axis) + Delta(ctx.View, axis, dx, dy)
	if !r.data.Sampling().ContainsAxis(axis, n) || n == r.slicer.Index(axis) {
		return
	}
	r.slicer.SetIndex(axis, n)
	r.setGuide(r.picked.Voxel.With(axis, n), axis)
}

// Delta converts a screen drag into a slice offset along axis: the drag
// component matching the screen direction the axis projects to most.
func Delta(v scene.View, axis models.Axis, dx, dy int) int {
	dir := axis.Unit()
	dotCross := r3.Dot(dir, v.Cross())
	dotUp := r3.Dot(dir, v.Up)
	dotLook := r3.Dot(dir, v.Look)
	ac, au, al := math.Abs(dotCross), math.Abs(dotUp), math.Abs(dotLook)
	switch {
	case au > ac && au > al:
		if dotUp < 0 {
			return -dy
		}
		return dy
	case ac > au && ac > al:
		if dotCross < 0 {
			return -dx
		}
		return dx
	}
	return dy
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
