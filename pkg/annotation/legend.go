// Package annotation paints the colour bar legend of the reference volume.
package annotation

import (
	"fmt"
	"image"
	"math"

	"github.com/gogpu/gg"
	"github.com/sirupsen/logrus"

	"mriview/pkg/colormap"
	"mriview/pkg/gpu"
	"mriview/pkg/scene"
)

// Proportions of the colour bar relative to the legend image.
const (
	border   = 0.05
	barWidth = 0.25
	barTall  = 0.90

	majorTicks = 2
	minorTicks = 5

	// aspect is width over height of the legend image
	aspect = 2.0 / 3.0

	margin    = 8
	minHeight = 48
	maxHeight = 300
)

// Tick is one mark on the right side of the bar.
type Tick struct {
	// Y is the row in the legend image
	Y     int
	Major bool

	// Value is the data value at a major tick
	Value float64
}

// Geometry is the layout of a legend image.
type Geometry struct {
	W, H int

	// Bar is the coloured rectangle
	Bar image.Rectangle

	Stroke   float64
	MajorLen int
	MinorLen int
}

// NewGeometry lays out a w x h legend.
func NewGeometry(w, h int) Geometry {
	bw := int(math.Round(border * float64(w)))
	bh := int(math.Round(border * float64(h)))
	cw := max(int(math.Round(barWidth*float64(w))), 1)
	ch := max(int(math.Round(barTall*float64(h))), 2)
	return Geometry{
		W:        w,
		H:        h,
		Bar:      image.Rect(bw, bh, bw+cw, bh+ch),
		Stroke:   math.Max(1, math.Round(float64(h)/125)),
		MajorLen: max(2*bw, 2),
		MinorLen: max(bw, 1),
	}
}

// TickX is the column where ticks start.
func (g Geometry) TickX() int {
	return g.Bar.Max.X + int(g.Stroke/2)
}

// Ticks returns the major ticks at both ends of the bar, labelled with
// max at the top and min at the bottom, and the evenly spaced minor ticks
// between them.
func (g Geometry) Ticks(lo, hi float64) []Tick {
	top, ch := g.Bar.Min.Y, g.Bar.Dy()
	half := int(g.Stroke / 2)

	var out []Tick
	for i := 0; i < majorTicks; i++ {
		unit := float64(i) / float64(majorTicks-1)
		y := int(math.Round(float64(top) + float64(ch)*unit))

		if i < majorTicks-1 {
			next := int(math.Round(float64(top) + float64(ch)*float64(i+1)/float64(majorTicks-1)))
			step := int(math.Round(float64(next-y) / float64(minorTicks+1)))
			for j := 0; j < minorTicks; j++ {
				out = append(out, Tick{Y: y + step + j*step})
			}
		}

		switch {
		case y+half > top+ch:
			y -= half
		case y-half < top:
			y += half
		}
		out = append(out, Tick{Y: y, Major: true, Value: lo + (1-unit)*(hi-lo)})
	}
	return out
}

// Colorbar paints the bar and its ticks for a scalar colormap. The top row
// is the colormap's max, the bottom row its min.
func Colorbar(cmap *colormap.Scalar, g Geometry, fg gpu.Color) (*image.NRGBA, error) {
	dc := gg.NewContext(g.W, g.H)
	defer dc.Close()
	dc.Clear()

	ch := g.Bar.Dy()
	for j := 0; j < ch; j++ {
		unit := 1 - float64(j)/float64(ch-1)
		c := cmap.Apply([]float64{cmap.Min + unit*(cmap.Max-cmap.Min)})
		dc.SetRGBA(c.R, c.G, c.B, 1)
		dc.DrawRectangle(float64(g.Bar.Min.X), float64(g.Bar.Min.Y+j), float64(g.Bar.Dx()), 1)
		if err := dc.Fill(); err != nil {
			return nil, fmt.Errorf("painting colour bar: %w", err)
		}
	}

	dc.SetRGBA(fg.R, fg.G, fg.B, fg.A)
	dc.SetLineWidth(g.Stroke)
	x := float64(g.TickX())
	for _, t := range g.Ticks(cmap.Min, cmap.Max) {
		n := g.MinorLen
		if t.Major {
			n = g.MajorLen
		}
		y := float64(t.Y) + 0.5
		dc.DrawLine(x, y, x+float64(n), y)
		if err := dc.Stroke(); err != nil {
			return nil, fmt.Errorf("painting ticks: %w", err)
		}
	}

	// the pixmap holds straight alpha
	img, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, fmt.Errorf("unexpected legend image type %T", dc.Image())
	}
	return &image.NRGBA{Pix: img.Pix, Stride: img.Stride, Rect: img.Rect}, nil
}

// Label formats a tick value.
func Label(v float64) string {
	return fmt.Sprintf("%.4g", v)
}

type legendKey struct {
	coloring string
	lo, hi   float64
	transfer string
	w, h     int
	fg       gpu.Color
}

// Legend draws the colour bar of the reference volume in the top right
// corner of the viewport. The image is painted again only when the colormap,
// its range or the viewport height change.
type Legend struct {
	// Foreground colours ticks and labels
	Foreground gpu.Color

	key   legendKey
	img   *image.NRGBA
	geo   Geometry
	valid bool

	// Paints counts the images painted.
	Paints int
}

// NewLegend returns a legend with white ticks.
func NewLegend() *Legend {
	return &Legend{Foreground: gpu.RGB(1, 1, 1)}
}

type colored interface {
	Colormap() colormap.Colormap
}

// Scalar returns the scalar colormap of the reference entry, if any.
func Scalar(ctx *scene.Context) (*colormap.Scalar, bool) {
	ref := ctx.Registry.Reference()
	if ref == nil || !ref.Visible {
		return nil, false
	}
	c, ok := ref.Renderable.(colored)
	if !ok {
		return nil, false
	}
	s, ok := c.Colormap().(*colormap.Scalar)
	return s, ok
}

// Draw composites the legend over the current viewport. It draws nothing
// when the reference has no scalar colormap or the viewport is too small.
func (l *Legend) Draw(ctx *scene.Context) error {
	cmap, ok := Scalar(ctx)
	if !ok {
		return nil
	}
	vp := ctx.Device.ViewportSize()
	h := min(max(vp.H*2/5, minHeight), maxHeight)
	w := int(math.Round(aspect * float64(h)))
	if h+2*margin > vp.H || 2*w > vp.W {
		return nil
	}

	key := legendKey{
		coloring: cmap.Coloring,
		lo:       cmap.Min,
		hi:       cmap.Max,
		transfer: fmt.Sprint(cmap.Transfer),
		w:        w,
		h:        h,
		fg:       l.Foreground,
	}
	if !l.valid || key != l.key {
		geo := NewGeometry(w, h)
		img, err := Colorbar(cmap, geo, l.Foreground)
		if err != nil {
			l.valid = false
			return err
		}
		l.key, l.img, l.geo, l.valid = key, img, geo, true
		l.Paints++
		logrus.WithFields(logrus.Fields{"coloring": cmap.Coloring, "height": h}).Debug("painted legend")
	}

	ticks := l.geo.Ticks(cmap.Min, cmap.Max)
	labelOffset := l.geo.TickX() + l.geo.MajorLen + l.geo.MajorLen/2
	right := w
	for _, t := range ticks {
		if t.Major {
			right = max(right, labelOffset+glyphWidth*len(Label(t.Value)))
		}
	}

	x0, y0 := vp.W-right-margin, margin
	ctx.Device.DrawImage(x0, y0, l.img)
	for _, t := range ticks {
		if t.Major {
			ctx.Device.DrawText(x0+labelOffset, y0+t.Y+textHalf, Label(t.Value), l.Foreground)
		}
	}
	return nil
}

// Metrics of the bitmap face used for labels.
const (
	glyphWidth = 7
	textHalf   = 4
)
