package view3d

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
	"mriview/pkg/gpu"
	"mriview/pkg/scene"
	"mriview/pkg/screenshot"
	"mriview/pkg/transform"
)

const (
	// labelMargin pushes the anatomical labels out of the box, as a
	// fraction of the half extent
	labelMargin = 0.2

	// axisLength is the length of the axis frame relative to the box
	axisLength = 1.25

	// maxScaleLines bounds the lines of the scale grid along one axis
	maxScaleLines = 1000
)

type overlaySlot string

// Fade is the opacity of an anatomical label pointing along dir when the
// camera looks along look. Labels fade out as dir turns towards or away from
// the viewer and are fully opaque when dir is across the screen.
func Fade(look, dir r3.Vec) float64 {
	n := r3.Norm(look) * r3.Norm(dir)
	if n == 0 {
		return 0
	}
	cos := math.Max(-1, math.Min(1, r3.Dot(look, dir)/n))
	angle := math.Acos(cos) * 2 / math.Pi

	order := 6.0
	if angle >= 1 {
		order = 3
		angle = 2 - angle
	}
	v := order*math.Pow(angle, order-1) - (order-1)*math.Pow(angle, order)
	return math.Max(0, math.Min(1, v))
}

// ScaleStep returns the spacing of the scale grid over a box whose largest
// extent is size. A positive configured step wins; otherwise a tenth of the
// size is rounded to a whole number, or to a power of ten below one.
func ScaleStep(configured, size float64) float64 {
	if configured > 0 {
		return configured
	}
	if size <= 0 {
		return 1
	}
	if s := math.Round(size / 10); s >= 1 {
		return s
	}
	return math.Pow(10, math.Floor(math.Log10(size/10)))
}

type boxRecipe struct {
	box   models.Box
	color gpu.Color
	width float64
}

func (b boxRecipe) build() gpu.Batch {
	out := gpu.Batch{LineWidth: b.width}
	addBox(&out, b.box, b.color)
	return out
}

// addBox appends the twelve edges of a box: every pair of corners that
// differ along exactly one axis.
func addBox(out *gpu.Batch, box models.Box, c gpu.Color) {
	corners := box.Corners()
	for i := range corners {
		for j := i + 1; j < len(corners); j++ {
			d := r3.Sub(corners[i], corners[j])
			diff := 0
			for _, v := range []float64{d.X, d.Y, d.Z} {
				if v != 0 {
					diff++
				}
			}
			if diff == 1 {
				out.AddLine(corners[i], corners[j], c)
			}
		}
	}
}

type scaleRecipe struct {
	start, end r3.Vec
	far        r3.Vec
	step       float64
	grid, box  bool
	color      gpu.Color
	width      float64
}

func (s scaleRecipe) build() gpu.Batch {
	out := gpu.Batch{LineWidth: s.width}
	if s.grid {
		for _, x := range ticks(s.start.X, s.end.X, s.step) {
			out.AddLine(r3.Vec{X: x, Y: s.far.Y, Z: s.start.Z}, r3.Vec{X: x, Y: s.far.Y, Z: s.end.Z}, s.color)
			out.AddLine(r3.Vec{X: x, Y: s.start.Y, Z: s.far.Z}, r3.Vec{X: x, Y: s.end.Y, Z: s.far.Z}, s.color)
		}
		for _, y := range ticks(s.start.Y, s.end.Y, s.step) {
			out.AddLine(r3.Vec{X: s.far.X, Y: y, Z: s.start.Z}, r3.Vec{X: s.far.X, Y: y, Z: s.end.Z}, s.color)
			out.AddLine(r3.Vec{X: s.start.X, Y: y, Z: s.far.Z}, r3.Vec{X: s.end.X, Y: y, Z: s.far.Z}, s.color)
		}
		for _, z := range ticks(s.start.Z, s.end.Z, s.step) {
			out.AddLine(r3.Vec{X: s.far.X, Y: s.start.Y, Z: z}, r3.Vec{X: s.far.X, Y: s.end.Y, Z: z}, s.color)
			out.AddLine(r3.Vec{X: s.start.X, Y: s.far.Y, Z: z}, r3.Vec{X: s.end.X, Y: s.far.Y, Z: z}, s.color)
		}
	}
	if s.box {
		addBox(&out, models.NewBox(s.start, s.end), s.color)
	}
	return out
}

func ticks(start, end, step float64) []float64 {
	n := int(math.Round((end - start) / step))
	if n < 0 || n > maxScaleLines {
		return nil
	}
	out := make([]float64, 0, n+1)
	for i := 0; i <= n; i++ {
		out = append(out, start+float64(i)*step)
	}
	return out
}

type axesRecipe struct {
	length float64
	width  float64
}

func (a axesRecipe) build() gpu.Batch {
	out := gpu.Batch{LineWidth: a.width}
	out.AddLine(r3.Vec{}, r3.Vec{X: a.length}, gpu.RGB(1, 0, 0))
	out.AddLine(r3.Vec{}, r3.Vec{Y: a.length}, gpu.RGB(0, 1, 0))
	out.AddLine(r3.Vec{}, r3.Vec{Z: a.length}, gpu.RGB(0, 0, 1))
	return out
}

func rgb(c [3]float64) gpu.Color { return gpu.RGB(c[0], c[1], c[2]) }

// displayReference draws the box wireframe, the scale grid on the walls
// farthest from the viewer, the scale box and the axis frame.
func (r *Renderer) displayReference(ctx *scene.Context, box models.Box) error {
	if box.IsEmpty() {
		return nil
	}
	o := ctx.Settings.Overlay
	dev := ctx.Device
	width := math.Max(o.LineWidth, 1)

	if o.ScaleGrid || o.ScaleBox {
		step := ScaleStep(o.ScaleStep, box.Largest())
		rec := scaleRecipe{
			step:  step,
			grid:  o.ScaleGrid,
			box:   o.ScaleBox,
			color: rgb(o.ScaleColor),
			width: width,
		}
		rec.start = r3.Vec{
			X: math.Floor(box.Min.X/step) * step,
			Y: math.Floor(box.Min.Y/step) * step,
			Z: math.Floor(box.Min.Z/step) * step,
		}
		rec.end = r3.Vec{
			X: math.Ceil(box.Max.X/step) * step,
			Y: math.Ceil(box.Max.Y/step) * step,
			Z: math.Ceil(box.Max.Z/step) * step,
		}
		eye := ctx.View.Eye
		farther := func(e, s, t float64) float64 {
			if math.Abs(e-s) > math.Abs(e-t) {
				return s
			}
			return t
		}
		rec.far = r3.Vec{
			X: farther(eye.X, rec.start.X, rec.end.X),
			Y: farther(eye.Y, rec.start.Y, rec.end.Y),
			Z: farther(eye.Z, rec.start.Z, rec.end.Z),
		}
		if err := ctx.Lists.Draw(dev, overlaySlot("scale"), rec, rec.build); err != nil {
			return err
		}
	}

	if o.Box {
		rec := boxRecipe{box: box, color: rgb(o.BoxColor), width: width}
		if err := ctx.Lists.Draw(dev, overlaySlot("box"), rec, rec.build); err != nil {
			return err
		}
	}

	if o.Axes {
		length := math.Max(box.Max.X, math.Max(box.Max.Y, box.Max.Z))
		if length <= 0 {
			length = box.Largest()
		}
		rec := axesRecipe{length: axisLength * length, width: width}
		if err := ctx.Lists.Draw(dev, overlaySlot("axes"), rec, rec.build); err != nil {
			return err
		}
	}
	return nil
}

type label struct {
	text string
	at   r3.Vec
	dir  r3.Vec
}

func anatomical(box models.Box) []label {
	cen, lo, hi := box.Center(), box.Min, box.Max
	high := r3.Add(hi, r3.Scale(labelMargin, r3.Sub(hi, cen)))
	low := r3.Sub(lo, r3.Scale(labelMargin, r3.Sub(cen, lo)))
	return []label{
		{"R", r3.Vec{X: high.X, Y: cen.Y, Z: cen.Z}, r3.Vec{X: 1}},
		{"L", r3.Vec{X: low.X, Y: cen.Y, Z: cen.Z}, r3.Vec{X: -1}},
		{"A", r3.Vec{X: cen.X, Y: high.Y, Z: cen.Z}, r3.Vec{Y: 1}},
		{"P", r3.Vec{X: cen.X, Y: low.Y, Z: cen.Z}, r3.Vec{Y: -1}},
		{"S", r3.Vec{X: cen.X, Y: cen.Y, Z: high.Z}, r3.Vec{Z: 1}},
		{"I", r3.Vec{X: cen.X, Y: cen.Y, Z: low.Z}, r3.Vec{Z: -1}},
	}
}

// displayLabels draws the anatomical direction letters around the box. The
// positions are computed in the frame of the whole capture and shifted by
// the tile origin, so that a tiled capture places each letter once.
func (r *Renderer) displayLabels(ctx *scene.Context, box models.Box, tile screenshot.Tile) {
	if box.IsEmpty() {
		return
	}
	dev := ctx.Device
	vp := dev.ViewportSize()
	n := max(tile.N, 1)
	full := transform.Viewport{W: vp.W * n, H: vp.H * n}
	proj := Projection(ctx.Settings.Render.Perspective, vp.W, vp.H, screenshot.Full)
	mv := dev.ModelView()
	origin := tile.Origin(vp.W, vp.H)

	for _, l := range anatomical(box) {
		alpha := Fade(ctx.View.Look, l.dir)
		if alpha <= 0 {
			continue
		}
		win, ok := transform.Project(l.at, mv, proj, full)
		if !ok {
			continue
		}
		x := int(math.Round(win.X)) - origin.X - textHalf
		y := full.H - int(math.Round(win.Y)) - origin.Y + textHalf
		dev.DrawText(x, y, l.text, gpu.RGB(1, 1, 1).WithAlpha(alpha))
	}
}

// textHalf centres a letter of the bitmap face on its anchor.
const textHalf = 4
