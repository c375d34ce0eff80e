// Package viewer is the canvas of the application: it drains the load,
// settings and screenshot queues, partitions the window between the 3D
// scene and the slice views, renders them one after the other and routes
// pointer events to the view under the pointer.
package viewer

import (
	"errors"
	"fmt"
	"image"
	"slices"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mriview/internal/models"
	"mriview/pkg/camera"
	"mriview/pkg/colormap"
	"mriview/pkg/config"
	"mriview/pkg/gesture"
	"mriview/pkg/gpu"
	"mriview/pkg/layout"
	"mriview/pkg/loader"
	"mriview/pkg/scene"
	"mriview/pkg/screenshot"
	"mriview/pkg/slice"
	"mriview/pkg/view2d"
	"mriview/pkg/view3d"
)

// LoadRequest asks for a dataset to be read in the background.
type LoadRequest struct {
	// Name of the entry; defaults to the directory or phantom name
	Name string

	// Dir is a slice stack directory
	Dir string

	// Phantom is a phantom name, used when Dir is empty
	Phantom string
	Size    int

	// Mask loads the phantom as a label mask
	Mask bool

	// Overlay blends the volume over the reference in slice views
	Overlay bool

	// Reference makes the entry the base layer of the slice views
	Reference bool
}

// Loaded is a dataset waiting to be registered by the render loop.
type Loaded struct {
	Request LoadRequest
	Volume  *models.Volume
	Mask    *models.Mask
	Err     error
}

// ScreenshotRequest asks for a capture of the 3D view.
type ScreenshotRequest struct {
	Path string

	// Zoom is the tile count per side; zero uses the settings
	Zoom int

	// Overwrite replaces an existing file without confirmation
	Overwrite bool

	// Done receives the outcome when not nil; it should be buffered
	Done chan<- error
}

// Canvas owns the renderers of every view and the render context.
type Canvas struct {
	ctx *scene.Context

	View3D *view3d.Renderer
	Slices [3]*view2d.Renderer

	layout layout.Layout
	ratios layout.Ratios

	// window is the logical window size; zero uses the framebuffer size
	window image.Point

	requests  Queue[LoadRequest]
	viewables Queue[Loaded]
	shots     Queue[ScreenshotRequest]
	settings  Queue[*config.Settings]

	loading sync.WaitGroup
	slots   chan struct{}

	// pending waits for the user to confirm an overwrite
	pending *ScreenshotRequest

	captured *layout.Region
	hovered  *layout.Region

	now       func() time.Time
	lastFrame time.Time
	fps       float64
}

// New creates a canvas drawing on dev with the given settings.
func New(dev gpu.Device, s *config.Settings) *Canvas {
	c := &Canvas{
		ctx:    scene.NewContext(dev, s),
		View3D: view3d.New(),
		now:    time.Now,
		slots:  make(chan struct{}, max(s.Loader.Workers, 1)),
	}
	for _, a := range models.Axes {
		c.Slices[a] = view2d.New(a)
	}
	c.applyLayout(s)
	return c
}

// Context returns the render context.
func (c *Canvas) Context() *scene.Context { return c.ctx }

// Layout returns the current layout.
func (c *Canvas) Layout() layout.Layout { return c.layout }

// SetLayout switches the layout.
func (c *Canvas) SetLayout(l layout.Layout) {
	c.layout = l
	c.ctx.Settings.Layout.Name = l.String()
	c.releasePointer()
	logrus.WithField("layout", l.String()).Debug("layout changed")
}

// Resize sets the logical window size, which may differ from the
// framebuffer size on high-DPI displays.
func (c *Canvas) Resize(w, h int) {
	c.window = image.Pt(w, h)
}

func (c *Canvas) applyLayout(s *config.Settings) {
	l, err := layout.Parse(s.Layout.Name)
	if err != nil {
		logrus.WithError(err).Warn("keeping layout")
		c.ctx.SetStatus("warning: %v", err)
		l = c.layout
	}
	c.layout = l
	c.ratios = layout.Ratios{Horizontal: s.Layout.Halve, Vertical: s.Layout.Split}
}

// RequestLoad queues a dataset to be read in the background. It may be
// called from any goroutine.
func (c *Canvas) RequestLoad(r LoadRequest) { c.requests.Push(r) }

// UpdateSettings queues new settings, applied at the start of the next
// frame. It may be called from any goroutine.
func (c *Canvas) UpdateSettings(s *config.Settings) { c.settings.Push(s) }

// RequestScreenshot queues a capture, taken at the end of the next frame.
// It may be called from any goroutine.
func (c *Canvas) RequestScreenshot(r ScreenshotRequest) { c.shots.Push(r) }

// Register adds a loaded dataset to the scene immediately. It must be
// called from the render loop.
func (c *Canvas) Register(l Loaded) error {
	return c.register(l)
}

// WaitLoads blocks until the loads started so far are queued for
// registration.
func (c *Canvas) WaitLoads() { c.loading.Wait() }

// ConfirmOverwrite retries the screenshot waiting for confirmation,
// replacing the existing file. It reports whether one was waiting.
func (c *Canvas) ConfirmOverwrite() bool {
	if c.pending == nil {
		return false
	}
	r := *c.pending
	r.Overwrite = true
	c.pending = nil
	c.shots.Push(r)
	return true
}

// Frame renders one frame. A failing view is reported in the status and
// the log; a panic abandons the frame, and the next one starts afresh.
func (c *Canvas) Frame() (err error) {
	c.ctx.Frame++
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("frame %d: %v", c.ctx.Frame, r)
			c.warn(err)
		}
	}()

	c.tick()
	shots := c.drain()

	dev := c.ctx.Device
	if err := dev.Err(); err != nil {
		return err
	}
	physical, logical := c.regions()
	for i, reg := range physical {
		dev.SetViewport(reg.Rect)
		dev.ClearDepth()
		lw, lh := logical[i].Rect.Dx(), logical[i].Rect.Dy()
		if err := c.pane(reg.View).Render(c.ctx, lw, lh); err != nil {
			c.warn(fmt.Errorf("%s view: %w", reg.View, err))
		}
	}

	for _, r := range shots {
		c.capture(physical, r)
	}

	fw, fh := dev.Size()
	dev.SetViewport(image.Rect(0, 0, fw, fh))
	c.displayStatus()
	return dev.Err()
}

// drain empties the queues before anything is drawn. Screenshot requests
// are returned to be taken once the views are rendered.
func (c *Canvas) drain() []ScreenshotRequest {
	if updates := c.settings.Drain(); len(updates) > 0 {
		c.apply(updates[len(updates)-1])
	}
	for _, l := range c.viewables.Drain() {
		if err := c.register(l); err != nil {
			c.warn(err)
		}
	}
	for _, r := range c.requests.Drain() {
		c.start(r)
	}
	return c.shots.Drain()
}

// regions partitions the framebuffer and the logical window alike, so that
// routing and rendering use the same arithmetic.
func (c *Canvas) regions() (physical, logical []layout.Region) {
	fw, fh := c.ctx.Device.Size()
	physical = layout.Partition(c.layout, fw, fh, c.ratios)
	w, h := c.windowSize()
	logical = layout.Partition(c.layout, w, h, c.ratios)
	if len(logical) != len(physical) {
		logical = physical
	}
	return physical, logical
}

func (c *Canvas) windowSize() (int, int) {
	if c.window.X > 0 && c.window.Y > 0 {
		return c.window.X, c.window.Y
	}
	return c.ctx.Device.Size()
}

type pane interface {
	Render(ctx *scene.Context, width, height int) error
	Drag(ctx *scene.Context, dx, dy int)
	Wheel(ctx *scene.Context, delta int) bool
}

func (c *Canvas) pane(v layout.View) pane {
	if v == layout.View3D {
		return c.View3D
	}
	return c.Slices[v-layout.ViewI]
}

func (c *Canvas) warn(err error) {
	logrus.WithError(err).WithField("frame", c.ctx.Frame).Warn("render failed")
	c.ctx.SetStatus("warning: %v", err)
}

// start reads a dataset on a worker goroutine; at most Loader.Workers
// loads run at once.
func (c *Canvas) start(r LoadRequest) {
	params := loader.Params{
		InputDir:   r.Dir,
		Name:       r.Name,
		NumWorkers: c.ctx.Settings.Loader.Workers,
		SliceGap:   c.ctx.Settings.Loader.SliceGap,
		PixelSize:  c.ctx.Settings.Loader.PixelSize,
	}
	c.loading.Add(1)
	go func() {
		defer c.loading.Done()
		c.slots <- struct{}{}
		defer func() { <-c.slots }()

		out := Loaded{Request: r}
		switch {
		case r.Dir != "":
			out.Volume, out.Err = loader.Load(params)
		case r.Mask:
			out.Mask = loader.SphereMask(max(r.Size, 2), 1)
		default:
			vol, ok := loader.NewPhantom(r.Phantom, max(r.Size, 2))
			if !ok {
				out.Err = fmt.Errorf("unknown phantom %q", r.Phantom)
			}
			out.Volume = vol
		}
		c.viewables.Push(out)
	}()
}

func (c *Canvas) register(l Loaded) error {
	if l.Err != nil {
		return fmt.Errorf("load failed: %w", l.Err)
	}
	s := c.ctx.Settings
	opts, err := slice.OptionsFrom(s)
	if err != nil {
		return err
	}

	var obj scene.Renderable
	name := l.Request.Name
	switch {
	case l.Mask != nil:
		if name == "" {
			name = l.Mask.Name
		}
		labels := max(s.Mask.Label, maxLabel(l.Mask))
		view := slice.NewMaskView(l.Mask, c.ctx.Slicers, opts, colormap.NewDiscrete(max(labels, 1)))
		view.SetWhich(s.Mask.Which)
		obj = view
	case l.Volume != nil:
		if name == "" {
			name = l.Volume.Name
		}
		cmap, err := colormap.NewScalar(s.Slice.Coloring)
		if err != nil {
			return err
		}
		cmap.AutoRange(l.Volume, 0)
		obj = slice.New(name, l.Volume, c.ctx.Slicers, opts, cmap)
	default:
		return errors.New("nothing was loaded")
	}

	e, err := c.ctx.Registry.Add(name, obj)
	if err != nil {
		return err
	}
	e.Overlay = l.Request.Overlay || l.Mask != nil
	if l.Request.Reference {
		if err := c.ctx.Registry.SetReference(name); err != nil {
			return err
		}
	}
	c.ctx.SetStatus("loaded %s", name)
	return nil
}

func maxLabel(m *models.Mask) int {
	if len(m.Labels) == 0 {
		return 0
	}
	return slices.Max(m.Labels)
}

// tunable takes the slice parameters of the settings.
type tunable interface {
	SetOptions(o slice.Options)
}

// labelled is a mask drawing a subset of its labels.
type labelled interface {
	Mask() *models.Mask
	SetWhich(labels []int)
}

// mapped colours its values through a colormap.
type mapped interface {
	Colormap() colormap.Colormap
}

// apply switches to new settings. Slice parameters and mask filters are
// pushed to the existing entries when they changed.
func (c *Canvas) apply(s *config.Settings) {
	if err := s.Validate(); err != nil {
		c.warn(fmt.Errorf("settings rejected: %w", err))
		return
	}
	old := c.ctx.Settings
	c.ctx.Settings = s
	c.applyLayout(s)

	opts, err := slice.OptionsFrom(s)
	if err != nil {
		c.warn(err)
		return
	}
	for _, e := range c.ctx.Registry.Entries() {
		if l, ok := e.Renderable.(labelled); ok && !slices.Equal(old.Mask.Which, s.Mask.Which) {
			l.SetWhich(s.Mask.Which)
		}
		if old.Slice == s.Slice {
			continue
		}
		if t, ok := e.Renderable.(tunable); ok {
			t.SetOptions(opts)
		}
		if m, ok := e.Renderable.(mapped); ok {
			if cmap, ok := m.Colormap().(*colormap.Scalar); ok && cmap.Coloring != s.Slice.Coloring {
				if err := cmap.SetColoring(s.Slice.Coloring); err != nil {
					c.warn(err)
				}
			}
		}
	}
	logrus.WithField("layout", c.layout.String()).Info("settings applied")
}

// capture takes a screenshot of the 3D region and restores the frame
// drawn underneath.
func (c *Canvas) capture(regions []layout.Region, r ScreenshotRequest) {
	err := c.screenshot(regions, r)
	switch {
	case errors.Is(err, screenshot.ErrExists):
		c.pending = &r
		c.ctx.SetStatus("%s exists, confirm to overwrite", r.Path)
	case err != nil:
		c.warn(fmt.Errorf("screenshot: %w", err))
	default:
		c.ctx.SetStatus("saved %s", r.Path)
	}
	if r.Done != nil {
		r.Done <- err
	}
}

func (c *Canvas) screenshot(regions []layout.Region, r ScreenshotRequest) error {
	reg, ok := layout.Find(regions, layout.View3D)
	if !ok {
		return fmt.Errorf("layout %s has no 3D view", c.layout)
	}
	zoom := r.Zoom
	if zoom <= 0 {
		zoom = c.ctx.Settings.Screenshot.Zoom
	}
	overwrite := r.Overwrite || c.ctx.Settings.Screenshot.Overwrite

	dev := c.ctx.Device
	frame := dev.ReadPixels()
	dev.SetViewport(reg.Rect)
	img, err := c.View3D.Screenshot(c.ctx, zoom)
	dev.DrawImage(0, 0, frame.SubImage(reg.Rect))
	if err != nil {
		return err
	}
	return screenshot.Save(r.Path, img, overwrite)
}

// tick updates the frame rate estimate.
func (c *Canvas) tick() {
	now := c.now()
	if !c.lastFrame.IsZero() {
		if dt := now.Sub(c.lastFrame).Seconds(); dt > 0 {
			if c.fps == 0 {
				c.fps = 1 / dt
			} else {
				c.fps = 0.9*c.fps + 0.1/dt
			}
		}
	}
	c.lastFrame = now
}

// FPS returns the smoothed frame rate.
func (c *Canvas) FPS() float64 { return c.fps }

func (c *Canvas) displayStatus() {
	dev := c.ctx.Device
	white := gpu.RGB(1, 1, 1).WithAlpha(0.9)
	y := 16
	if c.ctx.Settings.Render.ShowFPS {
		dev.DrawText(8, y, fmt.Sprintf("%.1f fps", c.fps), white)
		y += 16
	}
	if s := c.ctx.Status(); s != "" {
		dev.DrawText(8, y, s, white)
	}
}

// ShowView turns the 3D camera to a named pose: top, bottom, left, right,
// front or back.
func (c *Canvas) ShowView(name string) error {
	v, ok := camera.ParseView(name)
	if !ok {
		return fmt.Errorf("unknown view %q", name)
	}
	c.View3D.Camera.ShowView(v)
	return nil
}

// ResetCameras puts every view back in its default pose.
func (c *Canvas) ResetCameras() {
	c.View3D.Camera.Reset()
	for _, s := range c.Slices {
		s.Camera.Reset()
	}
}

// SetMode selects the named interaction mode. Slice views only follow the
// camera modes they support.
func (c *Canvas) SetMode(mode string) {
	c.View3D.Mode = mode
	for _, s := range c.Slices {
		s.Mode = ""
		if mode == gesture.ModePan || mode == gesture.ModeZoom {
			s.Mode = mode
		}
	}
}

// ActiveMask returns the selected mask, or else the first visible one.
func (c *Canvas) ActiveMask() *slice.MaskView {
	for _, e := range c.ctx.Registry.Selected() {
		if m, ok := e.Renderable.(*slice.MaskView); ok {
			return m
		}
	}
	for _, e := range c.ctx.Registry.Visible() {
		if m, ok := e.Renderable.(*slice.MaskView); ok {
			return m
		}
	}
	return nil
}

// Undo reverts the last edit of the active mask.
func (c *Canvas) Undo() bool {
	m := c.ActiveMask()
	if m == nil || !m.Undo() {
		c.ctx.SetStatus("nothing to undo")
		return false
	}
	c.ctx.SetStatus("undo on %s", m.Name())
	return true
}

// Redo reapplies the last undone edit of the active mask.
func (c *Canvas) Redo() bool {
	m := c.ActiveMask()
	if m == nil || !m.Redo() {
		c.ctx.SetStatus("nothing to redo")
		return false
	}
	c.ctx.SetStatus("redo on %s", m.Name())
	return true
}

// CopyMaskSlice copies the active mask's slice delta slices away into the
// current one, along the plane of the view under the pointer.
func (c *Canvas) CopyMaskSlice(delta int) error {
	m := c.ActiveMask()
	if m == nil {
		return errors.New("no mask to edit")
	}
	ctx := c.ctx
	if c.hovered != nil && c.hovered.View != layout.View3D {
		ctx = ctx.ForPlane(models.Axes[c.hovered.View-layout.ViewI])
	}
	return m.CopyFromOffset(ctx, delta)
}

// ZoomDetail frames the selected entries, or the reference entry.
func (c *Canvas) ZoomDetail() bool { return c.View3D.ZoomDetail(c.ctx) }

// ZoomOverview frames the whole scene again.
func (c *Canvas) ZoomOverview() { c.View3D.ZoomOverview() }

// Remove drops an entry from the scene and releases its resources.
func (c *Canvas) Remove(name string) bool {
	if !c.ctx.Registry.Remove(c.ctx, name) {
		return false
	}
	c.ctx.SetStatus("removed %s", name)
	return true
}
