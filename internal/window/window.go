// Package window presents the canvas in a desktop window: it polls the
// pointer and keyboard, renders one frame of the canvas on the software
// device and blits the framebuffer as a texture.
package window

import (
	"context"
	"image"
	"image/color"
	"time"

	rl "github.com/gen2brain/raylib-go/raylib"
	"github.com/sirupsen/logrus"

	"mriview/pkg/gesture"
	"mriview/pkg/gpu/soft"
	"mriview/pkg/layout"
	"mriview/pkg/screenshot"
	"mriview/pkg/slice"
	"mriview/pkg/viewer"
)

// doubleClick is the longest delay between the presses of a double click.
const doubleClick = 300 * time.Millisecond

// Options configures the window.
type Options struct {
	Title         string
	Width, Height int
	FPS           int

	// ScreenshotPath is where the screenshot key saves the 3D view; it may
	// hold a time layout between braces, as in shot-{20060102-150405}.png
	ScreenshotPath string
}

// Window owns the native window and the texture the frames are shown in.
type Window struct {
	opts   Options
	canvas *viewer.Canvas
	dev    *soft.Device

	tex    rl.Texture2D
	pixels []color.RGBA

	pointer   image.Point
	inside    bool
	lastPress time.Time
	clicks    int
}

// Open creates the window and a canvas drawing on a device of the same
// size.
func Open(opts Options, setup func(dev *soft.Device) *viewer.Canvas) *Window {
	rl.SetConfigFlags(rl.FlagWindowResizable | rl.FlagWindowHighdpi)
	rl.InitWindow(int32(opts.Width), int32(opts.Height), opts.Title)
	rl.SetTargetFPS(int32(max(opts.FPS, 1)))

	w := &Window{opts: opts}
	w.dev = soft.New(rl.GetRenderWidth(), rl.GetRenderHeight())
	w.canvas = setup(w.dev)
	w.canvas.Resize(rl.GetScreenWidth(), rl.GetScreenHeight())
	w.loadTexture()

	logrus.WithFields(logrus.Fields{
		"width":  rl.GetScreenWidth(),
		"height": rl.GetScreenHeight(),
	}).Info("window opened")
	return w
}

// Canvas returns the canvas shown in the window.
func (w *Window) Canvas() *viewer.Canvas { return w.canvas }

// Run shows frames until the window is closed or ctx is done.
func (w *Window) Run(ctx context.Context) error {
	defer w.close()
	for !rl.WindowShouldClose() {
		if err := ctx.Err(); err != nil {
			return nil
		}
		if rl.IsWindowResized() {
			w.resize()
		}
		w.pollPointer()
		w.pollKeys()

		if err := w.canvas.Frame(); err != nil {
			logrus.WithError(err).Debug("frame failed")
		}
		w.present()
	}
	return nil
}

func (w *Window) close() {
	rl.UnloadTexture(w.tex)
	rl.CloseWindow()
}

func (w *Window) loadTexture() {
	fb := w.dev.Framebuffer()
	img := rl.NewImageFromImage(fb)
	w.tex = rl.LoadTextureFromImage(img)
	rl.UnloadImage(img)
	w.pixels = make([]color.RGBA, len(fb.Pix)/4)
}

func (w *Window) resize() {
	rw, rh := rl.GetRenderWidth(), rl.GetRenderHeight()
	w.dev.Resize(rw, rh)
	w.canvas.Resize(rl.GetScreenWidth(), rl.GetScreenHeight())
	rl.UnloadTexture(w.tex)
	w.loadTexture()
	logrus.WithFields(logrus.Fields{"width": rw, "height": rh}).Debug("framebuffer resized")
}

// present uploads the framebuffer and stretches it over the window.
func (w *Window) present() {
	fb := w.dev.Framebuffer()
	copyPixels(w.pixels, fb)
	rl.UpdateTexture(w.tex, w.pixels)

	rl.BeginDrawing()
	rl.ClearBackground(rl.Black)
	src := rl.NewRectangle(0, 0, float32(w.tex.Width), float32(w.tex.Height))
	dst := rl.NewRectangle(0, 0, float32(rl.GetScreenWidth()), float32(rl.GetScreenHeight()))
	rl.DrawTexturePro(w.tex, src, dst, rl.Vector2{}, 0, rl.White)
	rl.EndDrawing()
}

// copyPixels converts the framebuffer into the layout raylib uploads.
func copyPixels(dst []color.RGBA, fb *image.RGBA) {
	for i := range dst {
		p := fb.Pix[4*i : 4*i+4 : 4*i+4]
		dst[i] = color.RGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
	}
}

var buttons = []struct {
	rl rl.MouseButton
	b  gesture.Button
}{
	{rl.MouseLeftButton, gesture.ButtonLeft},
	{rl.MouseMiddleButton, gesture.ButtonMiddle},
	{rl.MouseRightButton, gesture.ButtonRight},
}

func modifiers() gesture.Modifier {
	var m gesture.Modifier
	if rl.IsKeyDown(rl.KeyLeftControl) || rl.IsKeyDown(rl.KeyRightControl) {
		m |= gesture.Control
	}
	if rl.IsKeyDown(rl.KeyLeftShift) || rl.IsKeyDown(rl.KeyRightShift) {
		m |= gesture.Shift
	}
	if rl.IsKeyDown(rl.KeyLeftAlt) || rl.IsKeyDown(rl.KeyRightAlt) {
		m |= gesture.Pick
	}
	return m
}

func (w *Window) pollPointer() {
	if !rl.IsCursorOnScreen() {
		if w.inside {
			w.canvas.PointerLeave()
			w.inside = false
		}
		return
	}
	w.inside = true

	pos := rl.GetMousePosition()
	p := image.Pt(int(pos.X), int(pos.Y))
	mods := modifiers()
	if p != w.pointer {
		w.pointer = p
		w.canvas.PointerMove(p, mods)
	}

	for _, b := range buttons {
		if rl.IsMouseButtonPressed(b.rl) {
			w.canvas.PointerDown(p, b.b, mods, w.countClick())
		}
		if rl.IsMouseButtonReleased(b.rl) {
			w.canvas.PointerUp(p, b.b, mods)
		}
	}
	if wheel := rl.GetMouseWheelMove(); wheel != 0 {
		step := 1
		if wheel < 0 {
			step = -1
		}
		w.canvas.PointerWheel(p, step)
	}
}

func (w *Window) countClick() int {
	now := time.Now()
	if now.Sub(w.lastPress) <= doubleClick {
		w.clicks++
	} else {
		w.clicks = 1
	}
	w.lastPress = now
	return w.clicks
}

var layoutKeys = []int32{rl.KeyOne, rl.KeyTwo, rl.KeyThree, rl.KeyFour, rl.KeyFive, rl.KeySix, rl.KeySeven, rl.KeyEight, rl.KeyNine}

var modeKeys = map[int32]string{
	rl.KeyF1: gesture.ModeRotate,
	rl.KeyF2: gesture.ModePan,
	rl.KeyF3: gesture.ModeZoom,
	rl.KeyF4: slice.ModeQuery,
	rl.KeyF5: slice.ModeSlice,
	rl.KeyF6: slice.ModeDraw,
	rl.KeyF7: slice.ModeErase,
}

var viewKeys = map[int32]string{
	rl.KeyT: "top",
	rl.KeyB: "bottom",
	rl.KeyL: "left",
	rl.KeyR: "right",
	rl.KeyF: "front",
	rl.KeyK: "back",
}

func (w *Window) pollKeys() {
	c := w.canvas
	ctrl := rl.IsKeyDown(rl.KeyLeftControl) || rl.IsKeyDown(rl.KeyRightControl)
	shift := rl.IsKeyDown(rl.KeyLeftShift) || rl.IsKeyDown(rl.KeyRightShift)

	for i, key := range layoutKeys {
		if rl.IsKeyPressed(key) && i < len(layout.All) {
			c.SetLayout(layout.All[i])
		}
	}
	for key, mode := range modeKeys {
		if rl.IsKeyPressed(key) {
			c.SetMode(mode)
			c.Context().SetStatus("mode: %s", mode)
		}
	}

	switch {
	case ctrl && rl.IsKeyPressed(rl.KeyZ):
		c.Undo()
	case ctrl && rl.IsKeyPressed(rl.KeyY):
		c.Redo()
	case ctrl && rl.IsKeyPressed(rl.KeyC):
		delta := -1
		if shift {
			delta = 1
		}
		if err := c.CopyMaskSlice(delta); err != nil {
			c.Context().SetStatus("warning: %v", err)
		}
	case rl.IsKeyPressed(rl.KeyHome):
		c.ResetCameras()
	case rl.IsKeyPressed(rl.KeyD):
		c.ZoomDetail()
	case rl.IsKeyPressed(rl.KeyO):
		c.ZoomOverview()
	case rl.IsKeyPressed(rl.KeyS) || rl.IsKeyPressed(rl.KeyF12):
		c.RequestScreenshot(viewer.ScreenshotRequest{Path: screenshot.Name(w.opts.ScreenshotPath, time.Now())})
	case rl.IsKeyPressed(rl.KeyEnter):
		c.ConfirmOverwrite()
	}
	if !ctrl {
		for key, name := range viewKeys {
			if rl.IsKeyPressed(key) {
				if err := c.ShowView(name); err != nil {
					c.Context().SetStatus("warning: %v", err)
				}
			}
		}
	}
}
