package viewer

import (
	"image"

	"mriview/pkg/gesture"
	"mriview/pkg/layout"
	"mriview/pkg/transform"
)

// Pointer events carry window coordinates in logical pixels. The view under
// the pointer at button-down keeps receiving events until every button is
// released, even when the pointer leaves its region.

func (c *Canvas) mouse(v layout.View) *gesture.ScreenMouse {
	if v == layout.View3D {
		return &c.View3D.Mouse
	}
	return &c.Slices[v-layout.ViewI].Mouse
}

// route returns the region receiving an event at p and p relative to it.
func (c *Canvas) route(p image.Point) (layout.Region, transform.ScreenPoint, bool) {
	_, logical := c.regions()
	if c.captured != nil {
		for _, reg := range logical {
			if reg.View == c.captured.View {
				local := p.Sub(reg.Rect.Min)
				return reg, transform.ScreenPoint{X: local.X, Y: local.Y}, true
			}
		}
		c.captured = nil
	}
	reg, local, ok := layout.Route(logical, p)
	if !ok {
		return layout.Region{}, transform.ScreenPoint{}, false
	}
	return reg, transform.ScreenPoint{X: local.X, Y: local.Y}, true
}

// hover tracks the region under the pointer and tells the previous one the
// pointer left it.
func (c *Canvas) hover(reg layout.Region) {
	if c.hovered != nil && c.hovered.View != reg.View {
		c.mouse(c.hovered.View).Leave()
	}
	c.hovered = &reg
}

// PointerDown records a button press at p with the current modifiers.
func (c *Canvas) PointerDown(p image.Point, b gesture.Button, mods gesture.Modifier, clicks int) {
	reg, sp, ok := c.route(p)
	if !ok {
		return
	}
	c.hover(reg)
	m := c.mouse(reg.View)
	m.Mods = mods
	m.Down(sp, b, clicks, c.now())
	c.captured = &reg
}

// PointerUp records a button release at p.
func (c *Canvas) PointerUp(p image.Point, b gesture.Button, mods gesture.Modifier) {
	reg, sp, ok := c.route(p)
	if !ok {
		return
	}
	m := c.mouse(reg.View)
	m.Mods = mods
	m.Up(sp, b, c.now())
	if m.Buttons == 0 {
		c.captured = nil
	}
}

// PointerMove records a motion to p. With a button held the motion is a
// drag tick of the captured view.
func (c *Canvas) PointerMove(p image.Point, mods gesture.Modifier) {
	reg, sp, ok := c.route(p)
	if !ok {
		c.PointerLeave()
		return
	}
	if c.captured == nil {
		c.hover(reg)
	}
	m := c.mouse(reg.View)
	m.Mods = mods
	dx, dy := m.Move(sp, c.now())
	if m.Buttons != 0 && (dx != 0 || dy != 0) {
		c.pane(reg.View).Drag(c.ctx, dx, dy)
	}
}

// PointerWheel steps the slice of the view under p. It reports whether a
// slice moved.
func (c *Canvas) PointerWheel(p image.Point, delta int) bool {
	reg, _, ok := c.route(p)
	if !ok || delta == 0 {
		return false
	}
	c.hover(reg)
	return c.pane(reg.View).Wheel(c.ctx, delta)
}

// PointerLeave forgets the pointer when it leaves the window.
func (c *Canvas) PointerLeave() {
	c.releasePointer()
}

func (c *Canvas) releasePointer() {
	c.View3D.Mouse.Leave()
	for _, s := range c.Slices {
		s.Mouse.Leave()
	}
	c.captured = nil
	c.hovered = nil
}
