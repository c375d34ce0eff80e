package slice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/colormap"
	"mriview/pkg/config"
	"mriview/pkg/gesture"
	"mriview/pkg/gpu/soft"
	"mriview/pkg/scene"
	"mriview/pkg/transform"
)

func cube(n int) models.Grid {
	return models.NewGrid(n, n, n, r3.Vec{X: 1, Y: 1, Z: 1}, r3.Vec{})
}

// rampK fills a volume with its K index.
func rampK(t *testing.T, name string, g models.Grid) *models.Volume {
	v := models.NewVolume(name, g, 1)
	for i := 0; i < g.NumI(); i++ {
		for j := 0; j < g.NumJ(); j++ {
			for k := 0; k < g.NumK(); k++ {
				require.NoError(t, v.Set(models.Sample{I: i, J: j, K: k}, 0, float64(k)))
			}
		}
	}
	return v
}

func newContext() *scene.Context {
	dev := soft.New(16, 16)
	dev.SetMatrices(transform.Identity(), transform.Ortho(0, 16, 0, 16, -100, 100))
	return scene.NewContext(dev, config.DefaultSettings())
}

func defaultOptions() Options {
	return Options{Slab: 1, Opacity: 1}
}

func pressAt(hit r3.Vec, screen transform.ScreenPoint) *transform.WorldPoint {
	return &transform.WorldPoint{Screen: screen, Hit: hit, Point: r3.Add(hit, r3.Vec{Z: 10}), Reliable: true}
}

// TestRedrawIsIdempotent checks that an unchanged renderer uploads nothing
// on the second frame.
func TestRedrawIsIdempotent(t *testing.T) {
	ctx := newContext()
	g := cube(8)
	r := New("t1", rampK(t, "t1", g), ctx.Slicers, defaultOptions(), colormap.MustScalar("grayscale"))

	require.NoError(t, r.Display(ctx))
	require.NoError(t, r.Display(ctx))

	for _, a := range models.Axes {
		assert.Equal(t, 1, r.Buffer(a).Uploads, "axis %s", a)
		assert.Equal(t, 1, r.Stats.Rasters[a], "axis %s", a)
		assert.False(t, r.Stale(a))
	}
}

// TestSliceMoveRefillsOnlyThatAxis moves I from 10 to 20 with a volume, a
// mask and an overlay on the same grid: only the I planes are refilled.
func TestSliceMoveRefillsOnlyThatAxis(t *testing.T) {
	ctx := newContext()
	g := cube(64)
	vol := New("t1", rampK(t, "t1", g), ctx.Slicers, defaultOptions(), colormap.MustScalar("grayscale"))
	over := New("fa", rampK(t, "fa", g), ctx.Slicers, defaultOptions(), colormap.MustScalar("hot"))
	mask := NewMaskView(models.NewMask("seg", g), ctx.Slicers, defaultOptions(), colormap.NewDiscrete(4))
	all := []scene.Renderable{vol, over, mask}

	assert.Same(t, vol.Slicer(), mask.Slicer())
	assert.Equal(t, 1, ctx.Slicers.Len())

	vol.Slicer().SetIndex(models.AxisI, 10)
	for _, r := range all {
		require.NoError(t, r.Display(ctx))
	}
	vol.Slicer().SetIndex(models.AxisI, 20)
	for _, r := range []*Renderer{vol, over, mask.Renderer} {
		assert.True(t, r.Stale(models.AxisI))
		assert.False(t, r.Stale(models.AxisJ))
		assert.False(t, r.Stale(models.AxisK))
	}
	for _, r := range all {
		require.NoError(t, r.Display(ctx))
	}
	for _, r := range []*Renderer{vol, over, mask.Renderer} {
		assert.Equal(t, [3]int{2, 1, 1}, r.Stats.Rasters, r.Name())
		assert.Equal(t, 2, r.Buffer(models.AxisI).Uploads)
		assert.Equal(t, 1, r.Buffer(models.AxisJ).Uploads)
		assert.Equal(t, 1, r.Buffer(models.AxisK).Uploads)
	}
}

// TestPaintPatchesTexels checks that a stroke writes the mask and patches
// the visible texel without refilling the plane.
func TestPaintPatchesTexels(t *testing.T) {
	ctx := newContext()
	ctx.Settings.Mask.Label = 2
	ctx.Settings.Mask.Size = 1
	labels := colormap.NewDiscrete(4)
	m := models.NewMask("seg", cube(8))
	v := NewMaskView(m, ctx.Slicers, defaultOptions(), labels)
	require.NoError(t, v.Display(ctx))

	hit := r3.Vec{X: 3, Y: 4, Z: 0}
	mouse := gesture.WorldMouse{
		Current: pressAt(hit, transform.ScreenPoint{}),
		Press:   pressAt(hit, transform.ScreenPoint{}),
		Mods:    gesture.Pick | gesture.Control,
	}
	v.Handle(ctx, mouse, gesture.ModeRotate)

	s := models.Sample{I: 3, J: 4, K: 0}
	assert.Equal(t, 2, m.Label(s))
	assert.Equal(t, "drawing in stencil mode", ctx.Status())

	require.NoError(t, v.Display(ctx))
	assert.Equal(t, [3]int{1, 1, 1}, v.Stats.Rasters)
	assert.Positive(t, v.Stats.Patches)
	assert.Equal(t, labels.Color(2).NRGBA(), v.Buffer(models.AxisK).At(3, 4))

	// releasing ends the stroke
	mouse.Mods = gesture.Pick
	mouse.Press = nil
	v.Handle(ctx, mouse, gesture.ModeRotate)
	undos, _ := v.History()
	assert.Equal(t, 1, undos)

	require.True(t, v.Undo())
	assert.Equal(t, 0, m.Label(s))
	require.True(t, v.Redo())
	assert.Equal(t, 2, m.Label(s))
}

// TestStrokeSwitchesToErase checks that pressing shift during a held stroke
// erases the voxels the stroke drew, and that the undo step restores the
// labels from before the stroke.
func TestStrokeSwitchesToErase(t *testing.T) {
	ctx := newContext()
	ctx.Settings.Mask.Label = 2
	ctx.Settings.Mask.Size = 1
	m := models.NewMask("seg", cube(8))
	v := NewMaskView(m, ctx.Slicers, defaultOptions(), colormap.NewDiscrete(4))
	require.NoError(t, v.Display(ctx))
	s := models.Sample{I: 3, J: 4, K: 0}
	require.NoError(t, m.SetLabel(s, 1))

	hit := r3.Vec{X: 3, Y: 4, Z: 0}
	mouse := gesture.WorldMouse{
		Current: pressAt(hit, transform.ScreenPoint{}),
		Press:   pressAt(hit, transform.ScreenPoint{}),
		Mods:    gesture.Pick | gesture.Control,
	}
	v.Handle(ctx, mouse, gesture.ModeRotate)
	require.Equal(t, 2, m.Label(s))

	mouse.Mods |= gesture.Shift
	v.Handle(ctx, mouse, gesture.ModeRotate)
	assert.Equal(t, 0, m.Label(s))
	assert.Equal(t, "erasing in stencil mode", ctx.Status())

	mouse.Mods = gesture.Pick
	mouse.Press = nil
	v.Handle(ctx, mouse, gesture.ModeRotate)
	undos, _ := v.History()
	require.Equal(t, 1, undos)
	require.True(t, v.Undo())
	assert.Equal(t, 1, m.Label(s))
}

// TestHoverDoesNotPaint checks that a stencil without a press only outlines.
func TestHoverDoesNotPaint(t *testing.T) {
	ctx := newContext()
	m := models.NewMask("seg", cube(8))
	v := NewMaskView(m, ctx.Slicers, defaultOptions(), colormap.NewDiscrete(2))
	v.Handle(ctx, gesture.WorldMouse{
		Current: pressAt(r3.Vec{X: 1, Y: 1}, transform.ScreenPoint{}),
		Mods:    gesture.Pick | gesture.Control,
	}, gesture.ModeRotate)

	assert.Zero(t, m.Count(1))
	assert.NotEmpty(t, v.loops)
	assert.Equal(t, "clicking will start drawing in stencil mode", ctx.Status())
}

// TestStencilShapes checks the voxel count of circles and squares.
func TestStencilShapes(t *testing.T) {
	for shape, want := range map[string]int{ShapeCircle: 13, ShapeSquare: 25} {
		ctx := newContext()
		ctx.Settings.Mask.Shape = shape
		ctx.Settings.Mask.Size = 3
		m := models.NewMask("seg", cube(16))
		v := NewMaskView(m, ctx.Slicers, defaultOptions(), colormap.NewDiscrete(2))
		hit := r3.Vec{X: 8, Y: 8}
		v.Handle(ctx, gesture.WorldMouse{
			Current: pressAt(hit, transform.ScreenPoint{}),
			Press:   pressAt(hit, transform.ScreenPoint{}),
		}, ModeDraw)
		assert.Equal(t, want, m.Count(1), shape)
	}
}

// TestSliceChangeClearsHistory checks that moving a slice drops the undo
// stack.
func TestSliceChangeClearsHistory(t *testing.T) {
	ctx := newContext()
	m := models.NewMask("seg", cube(8))
	v := NewMaskView(m, ctx.Slicers, defaultOptions(), colormap.NewDiscrete(2))
	v.SetValues(map[models.Sample][]float64{{I: 1, J: 1}: {1}})
	v.stroke[models.Sample{I: 1, J: 1}] = []float64{0}
	v.Commit()
	undos, _ := v.History()
	require.Equal(t, 1, undos)

	v.Slicer().Step(models.AxisK, 1)
	require.NoError(t, v.Display(ctx))
	undos, redos := v.History()
	assert.Zero(t, undos)
	assert.Zero(t, redos)
}

// TestCopyFromOffset copies the previous slice into the current one.
func TestCopyFromOffset(t *testing.T) {
	ctx := newContext()
	m := models.NewMask("seg", cube(8))
	v := NewMaskView(m, ctx.Slicers, defaultOptions(), colormap.NewDiscrete(2))
	require.NoError(t, m.SetLabel(models.Sample{I: 2, J: 3, K: 0}, 1))
	v.Slicer().SetIndex(models.AxisK, 1)

	plane := ctx.ForPlane(models.AxisK)
	require.NoError(t, v.CopyFromOffset(plane, -1))
	assert.Equal(t, 1, m.Label(models.Sample{I: 2, J: 3, K: 1}))
	assert.Equal(t, 2, m.Count(1))

	require.True(t, v.Undo())
	assert.Equal(t, 0, m.Label(models.Sample{I: 2, J: 3, K: 1}))

	assert.Error(t, v.CopyFromOffset(plane, -5))
}

// TestSlabAggregate checks mean, min and max across a slab.
func TestSlabAggregate(t *testing.T) {
	g := cube(8)
	vol := rampK(t, "v", g)
	s := models.Sample{I: 1, J: 1, K: 3}

	assert.Equal(t, []float64{3}, aggregate(vol, models.AxisK, s, 1, SlabMean))
	assert.InDelta(t, 3.0, aggregate(vol, models.AxisK, s, 2, SlabMean)[0], 1e-12)
	assert.Equal(t, 1.0, aggregate(vol, models.AxisK, s, 2, SlabMin)[0])
	assert.Equal(t, 5.0, aggregate(vol, models.AxisK, s, 2, SlabMax)[0])

	// the slab is cut at the grid border
	edge := s.With(models.AxisK, 0)
	assert.InDelta(t, 1.0, aggregate(vol, models.AxisK, edge, 2, SlabMean)[0], 1e-12)
}

// TestSlabEditPatchesNearbyPlane checks that an edit within the slab of a
// plane recolours its texel the way a full refill does.
func TestSlabEditPatchesNearbyPlane(t *testing.T) {
	ctx := newContext()
	vol := models.NewVolume("t1", cube(8), 1)
	opts := Options{Slab: 2, SlabType: SlabMax, Opacity: 1}
	r := New("t1", vol, ctx.Slicers, opts, colormap.MustScalar("grayscale"))
	r.Slicer().SetSample(models.Sample{K: 4})
	require.NoError(t, r.Display(ctx))

	x, y := planeCoords(models.AxisK, models.Sample{I: 3, J: 4})
	before := r.Buffer(models.AxisK).At(x, y)
	require.NoError(t, r.SetValue(models.Sample{I: 3, J: 4, K: 5}, []float64{1}))
	require.NoError(t, r.Display(ctx))

	patched := r.Buffer(models.AxisK).At(x, y)
	assert.NotEqual(t, before, patched)
	assert.Equal(t, 1, r.Stats.Rasters[models.AxisK], "patched without a refill")

	other := newContext()
	fresh := New("t1", vol, other.Slicers, opts, colormap.MustScalar("grayscale"))
	fresh.Slicer().SetSample(models.Sample{K: 4})
	require.NoError(t, fresh.Display(other))
	assert.Equal(t, fresh.Buffer(models.AxisK).At(x, y), patched)

	// out of the slab nothing changes
	require.NoError(t, r.SetValue(models.Sample{I: 3, J: 4, K: 7}, []float64{0.5}))
	require.NoError(t, r.Display(ctx))
	assert.Equal(t, patched, r.Buffer(models.AxisK).At(x, y))
}

// TestPackBackgroundAndLabels checks the background and label filters.
func TestPackBackgroundAndLabels(t *testing.T) {
	ctx := newContext()
	opts := defaultOptions()
	opts.NoBackground = true
	opts.BackgroundLevel = 0.5
	r := New("v", rampK(t, "v", cube(4)), ctx.Slicers, opts, colormap.MustScalar("grayscale"))

	assert.Zero(t, r.pack([]float64{0.2}, 1).A)
	assert.Equal(t, uint8(255), r.pack([]float64{1}, 1).A)
	assert.Equal(t, uint8(128), r.pack([]float64{1}, 0.5).A)

	r.SetOptions(defaultOptions())
	r.SetWhich([]int{2})
	assert.Zero(t, r.pack([]float64{1}, 1).A)
	assert.NotZero(t, r.pack([]float64{2}, 1).A)
}

// TestMaskedVolume checks that background voxels of an attached mask are
// transparent.
func TestMaskedVolume(t *testing.T) {
	ctx := newContext()
	g := cube(4)
	r := New("v", rampK(t, "v", g), ctx.Slicers, defaultOptions(), colormap.MustScalar("grayscale"))
	m := models.NewMask("roi", g)
	require.NoError(t, m.SetLabel(models.Sample{I: 1, J: 1}, 1))
	require.NoError(t, r.SetMask(m))
	require.NoError(t, r.Display(ctx))

	buf := r.Buffer(models.AxisK)
	assert.Equal(t, uint8(255), buf.At(1, 1).A)
	assert.Zero(t, buf.At(2, 2).A)

	assert.Error(t, r.SetMask(models.NewMask("other", cube(5))))
}

// TestSelectAndDrag picks the I plane and drags it to the right.
func TestSelectAndDrag(t *testing.T) {
	ctx := newContext()
	ctx.View = scene.View{Look: r3.Vec{Z: -1}, Up: r3.Vec{Y: 1}}
	r := New("v", rampK(t, "v", cube(16)), ctx.Slicers, defaultOptions(), colormap.MustScalar("grayscale"))
	r.Slicer().SetIndex(models.AxisI, 2)

	hit := r3.Vec{X: 2, Y: 5, Z: 5}
	hover := gesture.WorldMouse{Current: pressAt(hit, transform.ScreenPoint{X: 10, Y: 10}), Mods: gesture.Pick}
	r.Handle(ctx, hover, gesture.ModeRotate)
	require.NotNil(t, r.Selected())
	assert.Equal(t, models.AxisI, r.Selected().Axis)
	assert.Equal(t, "clicking will change selected slice", ctx.Status())

	drag := gesture.WorldMouse{
		Current: pressAt(hit, transform.ScreenPoint{X: 15, Y: 10}),
		Press:   pressAt(hit, transform.ScreenPoint{X: 10, Y: 10}),
		Mods:    gesture.Pick,
		Time:    time.Unix(1, 0),
	}
	r.Handle(ctx, drag, gesture.ModeRotate)
	assert.Equal(t, 7, r.Slicer().Index(models.AxisI))

	// a duplicate event is ignored
	drag.Current.Screen.X = 20
	r.Handle(ctx, drag, gesture.ModeRotate)
	assert.Equal(t, 7, r.Slicer().Index(models.AxisI))

	r.Handle(ctx, gesture.WorldMouse{Current: hover.Current}, gesture.ModeRotate)
	assert.Nil(t, r.Selected())
}

// TestNearestPlaneNeedsStrictMinimum checks the tie rule of plane
// selection.
func TestNearestPlaneNeedsStrictMinimum(t *testing.T) {
	ctx := newContext()
	r := New("v", rampK(t, "v", cube(8)), ctx.Slicers, defaultOptions(), colormap.MustScalar("grayscale"))
	sl := r.Slicer()

	a, ok := nearestPlane(sl, models.Sample{I: 0, J: 0, K: 3})
	assert.True(t, ok)
	assert.Equal(t, models.AxisK, a)

	a, _ = nearestPlane(sl, models.Sample{I: 4, J: 1, K: 3})
	assert.Equal(t, models.AxisJ, a)

	sl.SetShown(models.AxisJ, false)
	_, ok = nearestPlane(sl, models.Sample{I: 4, J: 1, K: 3})
	assert.False(t, ok)
}

// TestDelta checks which drag component moves each axis.
func TestDelta(t *testing.T) {
	v := scene.View{Look: r3.Vec{Z: -1}, Up: r3.Vec{Y: 1}}
	assert.Equal(t, 5, Delta(v, models.AxisI, 5, -3))
	assert.Equal(t, -3, Delta(v, models.AxisJ, 5, -3))
	assert.Equal(t, -3, Delta(v, models.AxisK, 5, -3))

	flipped := scene.View{Look: r3.Vec{Z: 1}, Up: r3.Vec{Y: -1}}
	assert.Equal(t, 3, Delta(flipped, models.AxisJ, 5, -3))
}

// TestChangeSlice steps the plane facing the camera.
func TestChangeSlice(t *testing.T) {
	ctx := newContext()
	ctx.View = scene.View{Look: r3.Vec{X: 0.1, Y: 0.2, Z: -0.9}, Up: r3.Vec{Y: 1}}
	r := New("v", rampK(t, "v", cube(8)), ctx.Slicers, defaultOptions(), colormap.MustScalar("grayscale"))

	assert.True(t, r.ChangeSlice(ctx, 1))
	assert.Equal(t, 1, r.Slicer().Index(models.AxisK))
	assert.False(t, r.ChangeSlice(ctx, -5))

	r.Slicer().SetShown(models.AxisK, false)
	assert.False(t, r.ChangeSlice(ctx, 1))

	r.Slicer().SetShown(models.AxisI, false)
	assert.True(t, r.ChangeSlice(ctx, 2))
	assert.Equal(t, 2, r.Slicer().Index(models.AxisJ))
}

// TestDistance checks that only presses on a shown current slice count.
func TestDistance(t *testing.T) {
	ctx := newContext()
	r := New("v", rampK(t, "v", cube(8)), ctx.Slicers, defaultOptions(), colormap.MustScalar("grayscale"))
	r.Slicer().SetSample(models.Sample{I: 4, J: 4, K: 4})

	on := pressAt(r3.Vec{X: 4, Y: 1, Z: 2}, transform.ScreenPoint{})
	d, ok := r.Distance(ctx, gesture.WorldMouse{Current: on, Press: on})
	assert.True(t, ok)
	assert.InDelta(t, 10, d, 1e-12)

	off := pressAt(r3.Vec{X: 1, Y: 2, Z: 3}, transform.ScreenPoint{})
	_, ok = r.Distance(ctx, gesture.WorldMouse{Current: off, Press: off})
	assert.False(t, ok)

	_, ok = r.Distance(ctx, gesture.WorldMouse{Current: on})
	assert.False(t, ok)

	// a hidden plane does not catch presses
	r.Slicer().SetShown(models.AxisI, false)
	_, ok = r.Distance(ctx, gesture.WorldMouse{Current: on, Press: on})
	assert.False(t, ok)
	r.Slicer().SetShown(models.AxisI, true)
	_, ok = r.Distance(ctx, gesture.WorldMouse{Current: on, Press: on})
	assert.True(t, ok)
}
