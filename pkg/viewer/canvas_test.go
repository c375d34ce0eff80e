package viewer

import (
	"image"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mriview/internal/models"
	"mriview/pkg/colormap"
	"mriview/pkg/config"
	"mriview/pkg/gesture"
	"mriview/pkg/gpu/soft"
	"mriview/pkg/layout"
	"mriview/pkg/loader"
	"mriview/pkg/scene"
	"mriview/pkg/screenshot"
	"mriview/pkg/slice"
)

func newCanvas(t *testing.T, w, h int) *Canvas {
	s := config.DefaultSettings()
	s.Loader.Workers = 2
	s.Overlay.Anatomical = false
	c := New(soft.New(w, h), s)
	require.NotNil(t, c)
	return c
}

func TestQueue(t *testing.T) {
	var q Queue[int]
	assert.Empty(t, q.Drain())
	for i := range 3 {
		q.Push(i)
	}
	assert.Equal(t, 3, q.Len())
	assert.Equal(t, []int{0, 1, 2}, q.Drain())
	assert.Zero(t, q.Len())
}

func TestLoadRegistersOnNextFrame(t *testing.T) {
	c := newCanvas(t, 64, 64)
	c.RequestLoad(LoadRequest{Phantom: loader.PhantomSphere, Size: 8})
	c.RequestLoad(LoadRequest{Phantom: "teapot", Size: 8})

	require.NoError(t, c.Frame())
	c.WaitLoads()
	assert.Empty(t, c.Context().Registry.Entries(), "loads land on a later frame")

	require.NoError(t, c.Frame())
	entries := c.Context().Registry.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, loader.PhantomSphere, entries[0].Name)
	assert.Equal(t, loader.PhantomSphere, c.Context().Registry.Reference().Name)
	assert.False(t, entries[0].Overlay)
}

func TestRegisterMask(t *testing.T) {
	c := newCanvas(t, 64, 64)
	require.NoError(t, c.Register(Loaded{Volume: loader.Sphere(8)}))
	require.NoError(t, c.Register(Loaded{Mask: loader.SphereMask(8, 2)}))

	e := c.Context().Registry.Get("sphere-mask")
	require.NotNil(t, e)
	assert.True(t, e.Overlay, "masks are always drawn over the reference")
	assert.IsType(t, &slice.MaskView{}, e.Renderable)
	assert.Equal(t, "sphere", c.Context().Registry.Reference().Name)

	err := c.Register(Loaded{Err: os.ErrNotExist})
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Error(t, c.Register(Loaded{}))
}

func TestPointerRoutingAndCapture(t *testing.T) {
	c := newCanvas(t, 200, 200)
	c.SetLayout(layout.TwoByTwo)
	require.NoError(t, c.Register(Loaded{Volume: loader.Gradient(8)}))
	require.NoError(t, c.Frame())

	// bottom-right quarter is the K view
	k := c.Slices[models.AxisK]
	c.PointerDown(image.Pt(150, 130), gesture.ButtonLeft, 0, 1)
	require.NotNil(t, k.Mouse.Press)
	assert.Equal(t, 50, k.Mouse.Press.X)
	assert.Equal(t, 30, k.Mouse.Press.Y)

	// the drag stays with the K view outside of its region
	c.PointerMove(image.Pt(20, 20), 0)
	assert.Equal(t, -80, k.Mouse.Current.X)
	assert.Nil(t, c.Slices[models.AxisJ].Mouse.Current)

	c.PointerUp(image.Pt(20, 20), gesture.ButtonLeft, 0)
	assert.Nil(t, k.Mouse.Press)

	c.PointerMove(image.Pt(20, 20), 0)
	assert.Nil(t, k.Mouse.Current, "leaving a view forgets the pointer")
	require.NotNil(t, c.Slices[models.AxisJ].Mouse.Current)
	assert.Equal(t, 20, c.Slices[models.AxisJ].Mouse.Current.X)

	c.PointerLeave()
	assert.Nil(t, c.Slices[models.AxisJ].Mouse.Current)
}

func TestLogicalWindowSize(t *testing.T) {
	c := newCanvas(t, 200, 200)
	c.SetLayout(layout.SliceK3D)
	c.Resize(100, 100)

	c.PointerDown(image.Pt(75, 10), gesture.ButtonLeft, 0, 1)
	k := c.Slices[models.AxisK]
	require.NotNil(t, k.Mouse.Press)
	assert.Equal(t, 25, k.Mouse.Press.X)
}

func TestWheelStepsSlice(t *testing.T) {
	c := newCanvas(t, 100, 100)
	c.SetLayout(layout.SliceK)
	require.NoError(t, c.Register(Loaded{Volume: loader.Gradient(8)}))
	require.NoError(t, c.Frame())

	ref := c.Context().Registry.Reference().Renderable.(scene.Sliceable)
	assert.True(t, c.PointerWheel(image.Pt(50, 50), 2))
	assert.Equal(t, 2, ref.Slicer().Index(models.AxisK))
	assert.False(t, c.PointerWheel(image.Pt(500, 50), 1))
}

func TestScreenshot(t *testing.T) {
	c := newCanvas(t, 80, 60)
	require.NoError(t, c.Register(Loaded{Volume: loader.Sphere(8)}))
	path := filepath.Join(t.TempDir(), "shots", "scene.png")

	done := make(chan error, 1)
	c.RequestScreenshot(ScreenshotRequest{Path: path, Zoom: 2, Done: done})
	require.NoError(t, c.Frame())
	require.NoError(t, <-done)

	f, err := os.Open(path)
	require.NoError(t, err)
	cfg, _, err := image.DecodeConfig(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, 160, cfg.Width)
	assert.Equal(t, 120, cfg.Height)

	c.RequestScreenshot(ScreenshotRequest{Path: path, Done: done})
	require.NoError(t, c.Frame())
	assert.ErrorIs(t, <-done, screenshot.ErrExists)
	assert.Contains(t, c.Context().Status(), "confirm")

	require.True(t, c.ConfirmOverwrite())
	assert.False(t, c.ConfirmOverwrite())
	require.NoError(t, c.Frame())
	assert.NoError(t, <-done)
}

func TestScreenshotRestoresFrame(t *testing.T) {
	c := newCanvas(t, 80, 60)
	require.NoError(t, c.Register(Loaded{Volume: loader.Sphere(8)}))
	c.Context().Settings.Render.TransparentBackground = true
	require.NoError(t, c.Frame())
	before := c.Context().Device.ReadPixels()

	done := make(chan error, 1)
	c.RequestScreenshot(ScreenshotRequest{Path: filepath.Join(t.TempDir(), "a.png"), Done: done})
	require.NoError(t, c.Frame())
	require.NoError(t, <-done)

	after := c.Context().Device.ReadPixels()
	assert.Equal(t, before.RGBAAt(2, 58).A, after.RGBAAt(2, 58).A, "the window keeps its opaque background")
}

func TestScreenshotNeeds3DView(t *testing.T) {
	c := newCanvas(t, 40, 40)
	c.SetLayout(layout.SliceJ)
	done := make(chan error, 1)
	c.RequestScreenshot(ScreenshotRequest{Path: filepath.Join(t.TempDir(), "x.png"), Done: done})
	require.NoError(t, c.Frame())
	assert.Error(t, <-done)
	assert.Contains(t, c.Context().Status(), "warning")
}

type panicky struct{}

func (panicky) HasBounds() bool { return false }
func (panicky) Bounds() models.Box { return models.Box{} }
func (panicky) Display(ctx *scene.Context) error { panic("display exploded") }
func (panicky) Dispose(ctx *scene.Context) {}
func (panicky) Modes() []string { return nil }
func (panicky) Handle(*scene.Context, gesture.WorldMouse, string) {}
func (panicky) Distance(*scene.Context, gesture.WorldMouse) (float64, bool) {
	return 0, false
}

func TestFrameRecoversPanic(t *testing.T) {
	c := newCanvas(t, 40, 40)
	_, err := c.Context().Registry.Add("bad", panicky{})
	require.NoError(t, err)

	err = c.Frame()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "display exploded")
	assert.Contains(t, c.Context().Status(), "warning")

	require.True(t, c.Remove("bad"))
	assert.NoError(t, c.Frame())
}

func TestMaskHistory(t *testing.T) {
	c := newCanvas(t, 40, 40)
	assert.False(t, c.Undo())
	assert.Equal(t, "nothing to undo", c.Context().Status())
	assert.Error(t, c.CopyMaskSlice(1))

	mask := loader.SphereMask(8, 1)
	require.NoError(t, c.Register(Loaded{Mask: mask}))
	centre := models.Sample{I: 3, J: 3}
	require.Zero(t, mask.Label(centre))

	require.NoError(t, c.CopyMaskSlice(4))
	assert.Equal(t, 1, mask.Label(centre))

	require.True(t, c.Undo())
	assert.Zero(t, mask.Label(centre))
	require.True(t, c.Redo())
	assert.Equal(t, 1, mask.Label(centre))
	assert.False(t, c.Redo())
}

func TestUpdateSettings(t *testing.T) {
	c := newCanvas(t, 90, 90)
	require.NoError(t, c.Register(Loaded{Volume: loader.Gradient(8)}))

	s := c.Context().Settings.Clone()
	s.Layout.Name = "1x3"
	s.Slice.Coloring = colormap.Hot
	c.UpdateSettings(s)
	require.NoError(t, c.Frame())

	assert.Equal(t, layout.OneByThree, c.Layout())
	r := c.Context().Registry.Get("gradient").Renderable.(*slice.Renderer)
	assert.Equal(t, colormap.Hot, r.Colormap().(*colormap.Scalar).Coloring)

	bad := s.Clone()
	bad.Slice.SlabType = "median"
	c.UpdateSettings(bad)
	require.NoError(t, c.Frame())
	assert.Contains(t, c.Context().Status(), "settings rejected")
	assert.Same(t, s, c.Context().Settings)
}

// recorder is an entry that keeps the parameters pushed to it.
type recorder struct {
	opts  *slice.Options
	which []int
}

func (*recorder) HasBounds() bool { return false }
func (*recorder) Bounds() models.Box { return models.Box{} }
func (*recorder) Display(ctx *scene.Context) error { return nil }
func (*recorder) Dispose(ctx *scene.Context) {}
func (*recorder) Modes() []string { return nil }
func (*recorder) Handle(*scene.Context, gesture.WorldMouse, string) {}
func (*recorder) Distance(*scene.Context, gesture.WorldMouse) (float64, bool) {
	return 0, false
}
func (r *recorder) SetOptions(o slice.Options) { r.opts = &o }
func (*recorder) Mask() *models.Mask { return nil }
func (r *recorder) SetWhich(labels []int) { r.which = labels }

func TestUpdateSettingsReachesEntries(t *testing.T) {
	c := newCanvas(t, 40, 40)
	rec := &recorder{}
	_, err := c.Context().Registry.Add("rec", rec)
	require.NoError(t, err)

	s := c.Context().Settings.Clone()
	s.Mask.Which = []int{2}
	c.UpdateSettings(s)
	require.NoError(t, c.Frame())
	assert.Equal(t, []int{2}, rec.which)
	assert.Nil(t, rec.opts, "unchanged slice settings are not pushed")

	s = s.Clone()
	s.Slice.Slab = 3
	s.Slice.SlabType = "max"
	c.UpdateSettings(s)
	require.NoError(t, c.Frame())
	require.NotNil(t, rec.opts)
	assert.Equal(t, 3, rec.opts.Slab)
	assert.Equal(t, slice.SlabMax, rec.opts.SlabType)
}

func TestFPS(t *testing.T) {
	c := newCanvas(t, 20, 20)
	now := time.Unix(0, 0)
	c.now = func() time.Time { return now }
	for range 5 {
		require.NoError(t, c.Frame())
		now = now.Add(100 * time.Millisecond)
	}
	assert.InDelta(t, 10, c.FPS(), 1e-6)
}

func TestActions(t *testing.T) {
	c := newCanvas(t, 40, 40)
	require.NoError(t, c.ShowView("top"))
	assert.Error(t, c.ShowView("sideways"))

	c.SetMode(gesture.ModePan)
	assert.Equal(t, gesture.ModePan, c.View3D.Mode)
	assert.Equal(t, gesture.ModePan, c.Slices[models.AxisI].Mode)
	c.SetMode(slice.ModeDraw)
	assert.Equal(t, slice.ModeDraw, c.View3D.Mode)
	assert.Empty(t, c.Slices[models.AxisI].Mode)

	c.ZoomOverview()
	assert.False(t, c.View3D.Detail())
	c.ResetCameras()
}
