package gesture

import "slices"

// Named interaction modes shared by every object.
const (
	ModeRotate = "Rotate"
	ModePan    = "Pan"
	ModeZoom   = "Zoom"
)

// Action is the canonical outcome of resolving one drag tick.
type Action int

const (
	None Action = iota
	Rotate
	Pan
	Zoom
	// SelectNearest selects the visible object nearest to the pointer.
	SelectNearest
	// Object hands the event to the selected object's custom mode.
	Object
	// SliceDrag repositions the slice cursor from the 3D view.
	SliceDrag
	// SelectSample moves the cursor to the sample under the pointer in 2D.
	SelectSample
	// SetCursor is the 2D left-drag without modifiers.
	SetCursor
	Query
	Draw
	Erase
)

var actionNames = [...]string{
	None:          "none",
	Rotate:        "rotate",
	Pan:           "pan",
	Zoom:          "zoom",
	SelectNearest: "select-nearest",
	Object:        "object",
	SliceDrag:     "slice-drag",
	SelectSample:  "select-sample",
	SetCursor:     "set-cursor",
	Query:         "query",
	Draw:          "draw",
	Erase:         "erase",
}

func (a Action) String() string {
	if int(a) < len(actionNames) {
		return actionNames[a]
	}
	return "unknown"
}

// Event is the raw input of one tick.
type Event struct {
	Buttons Button
	Mods    Modifier
	Clicks  int

	// Mode is the selected named interaction mode
	Mode string
}

// Selection describes the currently selected object, if any.
type Selection struct {
	// Present is false when nothing is selected
	Present bool

	// Modes lists the custom interaction modes of the selected object
	Modes []string
}

// Decision is the resolved action together with the flags the selected
// object should see when the action is forwarded to it.
type Decision struct {
	Action Action
	Mode   string
	Pick   bool
}

// Resolve3D classifies an event in the 3D view. Double-click selection has
// the highest priority; then, without pick, a fixed button and modifier table
// picks a camera gesture; with pick, a custom mode of the selected object is
// escaped to Rotate, and a plain left drag becomes a slice drag.
func Resolve3D(e Event, sel Selection) Decision {
	if e.Clicks > 1 {
		return Decision{Action: SelectNearest, Mode: e.Mode, Pick: e.Mods.Has(Pick)}
	}

	if !e.Mods.Has(Pick) {
		if a, ok := cameraTable(e, true); ok {
			return Decision{Action: a, Mode: ModeRotate}
		}
		if !e.Buttons.Has(ButtonLeft) {
			return Decision{Action: None, Mode: e.Mode}
		}
		switch e.Mode {
		case ModeRotate, "":
			return Decision{Action: Rotate, Mode: ModeRotate}
		case ModePan:
			return Decision{Action: Pan, Mode: ModePan}
		case ModeZoom:
			return Decision{Action: Zoom, Mode: ModeZoom}
		}
		if sel.Present && slices.Contains(sel.Modes, e.Mode) {
			// the custom mode behaves like a held pick
			return Decision{Action: Object, Mode: e.Mode, Pick: true}
		}
		return Decision{Action: Rotate, Mode: ModeRotate}
	}

	if !sel.Present {
		return Decision{Action: Rotate, Mode: ModeRotate}
	}
	if slices.Contains(sel.Modes, e.Mode) {
		return Decision{Action: Rotate, Mode: ModeRotate, Pick: false}
	}

	ctrl, shift := e.Mods.Has(Control), e.Mods.Has(Shift)
	switch {
	case !ctrl && !shift:
		if e.Buttons == ButtonLeft || e.Buttons == 0 {
			return Decision{Action: SliceDrag, Mode: ModeRotate, Pick: true}
		}
	case shift && !ctrl:
		return Decision{Action: Query, Mode: ModeRotate, Pick: true}
	case ctrl && !shift:
		return Decision{Action: Draw, Mode: ModeRotate, Pick: true}
	default:
		return Decision{Action: Erase, Mode: ModeRotate, Pick: true}
	}
	return Decision{Action: None, Mode: ModeRotate, Pick: true}
}

// Resolve2D classifies an event in a slice view. Slice views have no
// rotation: the camera table only yields pan and zoom.
func Resolve2D(e Event) Decision {
	ctrl, shift := e.Mods.Has(Control), e.Mods.Has(Shift)

	if !e.Mods.Has(Pick) {
		if a, ok := cameraTable(e, false); ok {
			return Decision{Action: a}
		}
		if e.Buttons == ButtonLeft && !ctrl && !shift {
			switch e.Mode {
			case ModePan:
				return Decision{Action: Pan, Mode: ModePan}
			case ModeZoom:
				return Decision{Action: Zoom, Mode: ModeZoom}
			}
			return Decision{Action: SetCursor, Mode: e.Mode}
		}
		return Decision{Action: None, Mode: e.Mode}
	}

	switch {
	case !ctrl && !shift:
		if e.Buttons == ButtonLeft || e.Buttons == 0 {
			return Decision{Action: SelectSample, Pick: true}
		}
	case shift && !ctrl:
		return Decision{Action: Query, Pick: true}
	case ctrl && !shift:
		return Decision{Action: Draw, Pick: true}
	default:
		return Decision{Action: Erase, Pick: true}
	}
	return Decision{Action: None, Pick: true}
}

// cameraTable applies the button and modifier table shared by both views;
// the first matching row wins.
func cameraTable(e Event, rotate bool) (Action, bool) {
	left := e.Buttons.Has(ButtonLeft)
	middle := e.Buttons.Has(ButtonMiddle)
	right := e.Buttons.Has(ButtonRight)
	ctrl, shift := e.Mods.Has(Control), e.Mods.Has(Shift)

	switch {
	case left && ctrl && !shift:
		return Zoom, true
	case left && !ctrl && shift:
		return Pan, true
	case left && ctrl && shift:
		if rotate {
			return Rotate, true
		}
		return None, true
	case middle && !right && !left:
		return Pan, true
	case right && !left:
		return Zoom, true
	}
	return None, false
}
