// Package scene defines what the renderers draw: the Renderable contract, the
// registry of viewable entries and the context passed to every render and
// handle call.
package scene

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/config"
	"mriview/pkg/gesture"
	"mriview/pkg/gpu"
	"mriview/pkg/slicer"
	"mriview/pkg/texture"
)

// Renderable is implemented by every kind of object the 3D scene can show.
type Renderable interface {
	HasBounds() bool
	Bounds() models.Box

	// Display draws the object with the device's current matrices.
	Display(ctx *Context) error

	// Dispose releases the GPU resources of the object.
	Dispose(ctx *Context)

	// Distance returns how far the pointer is from the object, false when
	// it misses.
	Distance(ctx *Context, m gesture.WorldMouse) (float64, bool)

	// Handle receives picked pointer events and custom-mode drags.
	Handle(ctx *Context, m gesture.WorldMouse, mode string)

	// Modes lists the custom interaction modes of the object.
	Modes() []string
}

// Sliceable is implemented by data that the slice views can draw.
type Sliceable interface {
	Sampling() models.Grid
	Slicer() *slicer.Slicer
	Value(s models.Sample) []float64
	SetValue(s models.Sample, v []float64) error
}

// Planar is implemented by renderables that draw one orthogonal plane into
// a slice view.
type Planar interface {
	Sliceable
	DisplayPlane(ctx *Context, axis models.Axis) error
}

// View is the orientation of the 3D camera recomputed every frame.
type View struct {
	// Look points from the eye into the scene
	Look r3.Vec

	// Up is the screen up direction in world space
	Up r3.Vec

	Eye r3.Vec
}

// Cross returns the screen right direction.
func (v View) Cross() r3.Vec {
	return r3.Cross(v.Look, v.Up)
}

// Context bundles what a render or handle call may read or change. It
// replaces global state: everything an object needs comes through it.
type Context struct {
	Device   gpu.Device
	Settings *config.Settings
	Registry *Registry
	Slicers  *slicer.Registry
	Lists    *texture.Lists

	// View is the 3D orientation of the current frame
	View View

	// Plane is the axis of the slice view being drawn, nil in 3D
	Plane *models.Axis

	// Frame counts rendered frames
	Frame uint64

	status string
}

// NewContext returns a context with empty registries.
func NewContext(dev gpu.Device, s *config.Settings) *Context {
	return &Context{
		Device:   dev,
		Settings: s,
		Registry: NewRegistry(),
		Slicers:  slicer.NewRegistry(),
		Lists:    texture.NewLists(64),
	}
}

// SetStatus replaces the status message.
func (c *Context) SetStatus(format string, args ...any) {
	c.status = fmt.Sprintf(format, args...)
	logrus.WithField("frame", c.Frame).Debug(c.status)
}

// Status returns the current status message.
func (c *Context) Status() string { return c.status }

// ClearStatus empties the status message.
func (c *Context) ClearStatus() { c.status = "" }

// In2D reports whether a slice view is being drawn.
func (c *Context) In2D() bool { return c.Plane != nil }

// ForPlane returns a shallow copy of the context for one slice view.
func (c *Context) ForPlane(a models.Axis) *Context {
	out := *c
	out.Plane = &a
	return &out
}
