// Package gesture turns raw pointer and modifier state into one abstract
// action per drag tick.
package gesture

import (
	"time"

	"mriview/pkg/transform"
)

// Button is a bitset of pressed mouse buttons.
type Button uint8

const (
	ButtonLeft Button = 1 << iota
	ButtonMiddle
	ButtonRight
)

// Has reports whether every button in o is pressed.
func (b Button) Has(o Button) bool { return b&o == o }

// Modifier is a bitset of modifier flags.
type Modifier uint8

const (
	Control Modifier = 1 << iota
	Shift
	// Pick switches from camera gestures to per-object interaction.
	Pick
)

// Has reports whether every flag in o is set.
func (m Modifier) Has(o Modifier) bool { return m&o == o }

// ScreenMouse is the pointer state of one renderer in screen coordinates.
// Press persists from button-down until button-up.
type ScreenMouse struct {
	Current *transform.ScreenPoint
	Press   *transform.ScreenPoint
	Buttons Button
	Mods    Modifier
	Clicks  int
	Time    time.Time
}

// Down records a button press at p.
func (m *ScreenMouse) Down(p transform.ScreenPoint, b Button, clicks int, at time.Time) {
	m.Current = &p
	press := p
	m.Press = &press
	m.Buttons |= b
	m.Clicks = clicks
	m.Time = at
}

// Up records a button release.
func (m *ScreenMouse) Up(p transform.ScreenPoint, b Button, at time.Time) {
	m.Current = &p
	m.Buttons &^= b
	if m.Buttons == 0 {
		m.Press = nil
	}
	m.Time = at
}

// Move records a pointer motion and returns the delta since the previous
// position. A motion without buttons clears the press.
func (m *ScreenMouse) Move(p transform.ScreenPoint, at time.Time) (dx, dy int) {
	if m.Current != nil {
		dx, dy = p.X-m.Current.X, p.Y-m.Current.Y
	}
	m.Current = &p
	if m.Buttons == 0 {
		m.Press = nil
	}
	m.Time = at
	return dx, dy
}

// Leave forgets the pointer position.
func (m *ScreenMouse) Leave() {
	m.Current = nil
	m.Press = nil
	m.Buttons = 0
}

// WorldMouse is the per-frame world-space snapshot of a ScreenMouse.
type WorldMouse struct {
	Current *transform.WorldPoint
	Press   *transform.WorldPoint
	Mods    Modifier
	Clicks  int
	Time    time.Time
}

// Pick reports whether the pick flag is set.
func (w WorldMouse) Pick() bool { return w.Mods.Has(Pick) }

// Control reports whether the control flag is set.
func (w WorldMouse) Control() bool { return w.Mods.Has(Control) }

// Shift reports whether the shift flag is set.
func (w WorldMouse) Shift() bool { return w.Mods.Has(Shift) }

// Unproject converts the screen snapshot using the active rendering context.
func (m *ScreenMouse) Unproject(ctx transform.Context, width, height int) WorldMouse {
	out := WorldMouse{Mods: m.Mods, Clicks: m.Clicks, Time: m.Time}
	if m.Current != nil {
		w := transform.ScreenToWorld(ctx, *m.Current, width, height)
		out.Current = &w
	}
	if m.Press != nil {
		w := transform.ScreenToWorld(ctx, *m.Press, width, height)
		out.Press = &w
	}
	return out
}
