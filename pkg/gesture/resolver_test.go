package gesture

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"mriview/pkg/transform"
)

func TestResolve3DCameraTable(t *testing.T) {
	sel := Selection{}
	cases := []struct {
		name    string
		buttons Button
		mods    Modifier
		want    Action
	}{
		{"left+control", ButtonLeft, Control, Zoom},
		{"left+shift", ButtonLeft, Shift, Pan},
		{"left+control+shift", ButtonLeft, Control | Shift, Rotate},
		{"middle", ButtonMiddle, 0, Pan},
		{"right", ButtonRight, 0, Zoom},
		{"middle+right", ButtonMiddle | ButtonRight, 0, Zoom},
		{"left in rotate mode", ButtonLeft, 0, Rotate},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := Resolve3D(Event{Buttons: c.buttons, Mods: c.mods, Mode: ModeRotate}, sel)
			assert.Equal(t, c.want, d.Action)
		})
	}
}

func TestResolve3DNamedModes(t *testing.T) {
	for mode, want := range map[string]Action{ModeRotate: Rotate, ModePan: Pan, ModeZoom: Zoom} {
		d := Resolve3D(Event{Buttons: ButtonLeft, Mode: mode}, Selection{})
		assert.Equal(t, want, d.Action, mode)
	}

	sel := Selection{Present: true, Modes: []string{"Draw", "Erase"}}
	d := Resolve3D(Event{Buttons: ButtonLeft, Mode: "Draw"}, sel)
	assert.Equal(t, Object, d.Action)
	assert.True(t, d.Pick)
	assert.Equal(t, "Draw", d.Mode)

	d = Resolve3D(Event{Buttons: ButtonLeft, Mode: "Draw"}, Selection{})
	assert.Equal(t, Rotate, d.Action, "custom mode without selection falls back to rotate")
}

func TestResolve3DPickEscape(t *testing.T) {
	sel := Selection{Present: true, Modes: []string{"Query", "Slice"}}

	d := Resolve3D(Event{Buttons: ButtonLeft, Mods: Pick, Mode: "Slice"}, sel)
	assert.Equal(t, Rotate, d.Action)
	assert.False(t, d.Pick)
	assert.Equal(t, ModeRotate, d.Mode)
}

func TestResolve3DPickActions(t *testing.T) {
	sel := Selection{Present: true, Modes: []string{"Query", "Slice"}}

	d := Resolve3D(Event{Buttons: ButtonLeft, Mods: Pick, Mode: ModeRotate}, sel)
	assert.Equal(t, SliceDrag, d.Action)
	assert.True(t, d.Pick)

	d = Resolve3D(Event{Buttons: ButtonLeft, Mods: Pick | Shift, Mode: ModeRotate}, sel)
	assert.Equal(t, Query, d.Action)

	d = Resolve3D(Event{Buttons: ButtonLeft, Mods: Pick | Control, Mode: ModeRotate}, sel)
	assert.Equal(t, Draw, d.Action)

	d = Resolve3D(Event{Buttons: ButtonLeft, Mods: Pick | Control | Shift, Mode: ModeRotate}, sel)
	assert.Equal(t, Erase, d.Action)

	d = Resolve3D(Event{Buttons: ButtonLeft, Mods: Pick, Mode: ModeRotate}, Selection{})
	assert.Equal(t, Rotate, d.Action, "pick without selection only rotates the camera")
}

func TestResolve3DDoubleClickWins(t *testing.T) {
	sel := Selection{Present: true, Modes: []string{"Slice"}}
	for _, mods := range []Modifier{0, Pick, Control | Shift, Pick | Control} {
		d := Resolve3D(Event{Buttons: ButtonLeft, Mods: mods, Clicks: 2, Mode: "Slice"}, sel)
		assert.Equal(t, SelectNearest, d.Action)
	}
}

func TestResolve2D(t *testing.T) {
	cases := []struct {
		name    string
		buttons Button
		mods    Modifier
		want    Action
	}{
		{"left+control", ButtonLeft, Control, Zoom},
		{"left+shift", ButtonLeft, Shift, Pan},
		{"left+control+shift has no rotation", ButtonLeft, Control | Shift, None},
		{"middle", ButtonMiddle, 0, Pan},
		{"right", ButtonRight, 0, Zoom},
		{"left", ButtonLeft, 0, SetCursor},
		{"pick+left", ButtonLeft, Pick, SelectSample},
		{"pick+shift", ButtonLeft, Pick | Shift, Query},
		{"pick+control", ButtonLeft, Pick | Control, Draw},
		{"pick+control+shift", ButtonLeft, Pick | Control | Shift, Erase},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := Resolve2D(Event{Buttons: c.buttons, Mods: c.mods, Mode: ModeRotate})
			assert.Equal(t, c.want, d.Action)
		})
	}
}

func TestScreenMousePressLifetime(t *testing.T) {
	var m ScreenMouse
	now := time.Now()

	m.Down(transform.ScreenPoint{X: 5, Y: 5}, ButtonLeft, 1, now)
	dx, dy := m.Move(transform.ScreenPoint{X: 8, Y: 3}, now)
	assert.Equal(t, 3, dx)
	assert.Equal(t, -2, dy)
	assert.NotNil(t, m.Press)
	assert.Equal(t, 5, m.Press.X)

	m.Up(transform.ScreenPoint{X: 8, Y: 3}, ButtonLeft, now)
	assert.Nil(t, m.Press)
	assert.Equal(t, Button(0), m.Buttons)
}
