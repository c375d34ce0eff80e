package soft

import (
	"fmt"
	"image/color"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"mriview/pkg/gpu"
)

// depthBias lets lines win over the surfaces they are drawn on.
const depthBias = 1e-4

type vertex struct {
	x, y, z float64 // window coordinates
	invW    float64
	u, v    float64
}

func (d *Device) toWindow(p r3.Vec) (vertex, bool) {
	m := &d.mvp
	x := m[0]*p.X + m[1]*p.Y + m[2]*p.Z + m[3]
	y := m[4]*p.X + m[5]*p.Y + m[6]*p.Z + m[7]
	z := m[8]*p.X + m[9]*p.Y + m[10]*p.Z + m[11]
	w := m[12]*p.X + m[13]*p.Y + m[14]*p.Z + m[15]
	if w <= 1e-12 {
		return vertex{}, false
	}
	vw, vh := float64(d.viewport.Dx()), float64(d.viewport.Dy())
	return vertex{
		x:    vw * (x/w + 1) / 2,
		y:    vh * (y/w + 1) / 2,
		z:    (z/w + 1) / 2,
		invW: 1 / w,
	}, true
}

// pixel returns the framebuffer offset and depth index of window pixel
// (wx, wy).
func (d *Device) pixel(wx, wy int) (int, int) {
	px, py := d.viewport.Min.X+wx, d.viewport.Max.Y-1-wy
	return d.fb.PixOffset(px, py), py*(d.fb.Stride/4) + px
}

func (d *Device) plot(wx, wy int, z float64, c color.NRGBA, bias float64) {
	if wx < 0 || wy < 0 || wx >= d.viewport.Dx() || wy >= d.viewport.Dy() || c.A == 0 {
		return
	}
	if z < 0 || z > 1 {
		return
	}
	off, di := d.pixel(wx, wy)
	if z-bias > d.depth[di] {
		return
	}
	blend(d.fb.Pix[off:off+4], c)
	d.depth[di] = z
}

func edge(a, b vertex, px, py float64) float64 {
	return (b.x-a.x)*(py-a.y) - (b.y-a.y)*(px-a.x)
}

// triangle rasterizes with pixel-centre sampling. shade receives the
// perspective-correct texture coordinates.
func (d *Device) triangle(a, b, c vertex, shade func(u, v float64) color.NRGBA) {
	area := edge(a, b, c.x, c.y)
	if area == 0 || math.IsNaN(area) {
		return
	}
	minX := max(0, int(math.Floor(min(a.x, b.x, c.x))))
	maxX := min(d.viewport.Dx()-1, int(math.Ceil(max(a.x, b.x, c.x))))
	minY := max(0, int(math.Floor(min(a.y, b.y, c.y))))
	maxY := min(d.viewport.Dy()-1, int(math.Ceil(max(a.y, b.y, c.y))))

	for wy := minY; wy <= maxY; wy++ {
		py := float64(wy) + 0.5
		for wx := minX; wx <= maxX; wx++ {
			px := float64(wx) + 0.5
			w0 := edge(b, c, px, py) / area
			w1 := edge(c, a, px, py) / area
			w2 := edge(a, b, px, py) / area
			if w0 < 0 || w1 < 0 || w2 < 0 {
				continue
			}
			z := w0*a.z + w1*b.z + w2*c.z
			iw := w0*a.invW + w1*b.invW + w2*c.invW
			u := (w0*a.u*a.invW + w1*b.u*b.invW + w2*c.u*c.invW) / iw
			v := (w0*a.v*a.invW + w1*b.v*b.invW + w2*c.v*c.invW) / iw
			d.plot(wx, wy, z, shade(u, v), 0)
		}
	}
}

// DrawTexturedQuad implements gpu.Device.
func (d *Device) DrawTexturedQuad(id gpu.TextureID, corners [4]r3.Vec, uv [4][2]float64, opacity float64) error {
	if d.lost {
		return gpu.ErrContextLost
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("draw texture %d: %w", id, gpu.ErrUnknownTexture)
	}
	if t.w == 0 || t.h == 0 {
		return nil
	}
	var vs [4]vertex
	for i, p := range corners {
		v, ok := d.toWindow(p)
		if !ok {
			return nil
		}
		v.u, v.v = uv[i][0], uv[i][1]
		vs[i] = v
	}
	shade := func(u, v float64) color.NRGBA {
		c := t.sample(u, v)
		c.A = uint8(float64(c.A)*clamp01(opacity) + 0.5)
		return c
	}
	d.triangle(vs[0], vs[1], vs[2], shade)
	d.triangle(vs[0], vs[2], vs[3], shade)
	d.Stats.Quads++
	return nil
}

// DrawTriangles implements gpu.Device. Triangles are flat shaded by the
// eye-space facing of their normal.
func (d *Device) DrawTriangles(vertices []r3.Vec, c gpu.Color) {
	if d.lost {
		d.logLost("triangles")
		return
	}
	for i := 0; i+2 < len(vertices); i += 3 {
		p0, p1, p2 := vertices[i], vertices[i+1], vertices[i+2]
		a, ok0 := d.toWindow(p0)
		b, ok1 := d.toWindow(p1)
		e, ok2 := d.toWindow(p2)
		if !ok0 || !ok1 || !ok2 {
			continue
		}
		lit := d.lambert(p0, p1, p2)
		shaded := gpu.Color{R: c.R * lit, G: c.G * lit, B: c.B * lit, A: c.A}.NRGBA()
		d.triangle(a, b, e, func(float64, float64) color.NRGBA { return shaded })
	}
}

func (d *Device) lambert(p0, p1, p2 r3.Vec) float64 {
	n := r3.Cross(r3.Sub(p1, p0), r3.Sub(p2, p0))
	m := d.modelview
	eye := r3.Vec{
		X: m.At(0, 0)*n.X + m.At(0, 1)*n.Y + m.At(0, 2)*n.Z,
		Y: m.At(1, 0)*n.X + m.At(1, 1)*n.Y + m.At(1, 2)*n.Z,
		Z: m.At(2, 0)*n.X + m.At(2, 1)*n.Y + m.At(2, 2)*n.Z,
	}
	l := r3.Norm(eye)
	if l == 0 {
		return 1
	}
	return 0.3 + 0.7*math.Abs(eye.Z/l)
}

// DrawLines implements gpu.Device. segments holds two vertices per line.
func (d *Device) DrawLines(segments []r3.Vec, c gpu.Color, width float64) {
	if d.lost {
		d.logLost("lines")
		return
	}
	col := c.NRGBA()
	half := int(math.Max(width, 1)-1) / 2
	for i := 0; i+1 < len(segments); i += 2 {
		a, ok0 := d.toWindow(segments[i])
		b, ok1 := d.toWindow(segments[i+1])
		if !ok0 || !ok1 {
			continue
		}
		dx, dy := b.x-a.x, b.y-a.y
		steps := int(math.Ceil(math.Max(math.Abs(dx), math.Abs(dy))))
		if steps > 8*(d.viewport.Dx()+d.viewport.Dy()) {
			steps = 8 * (d.viewport.Dx() + d.viewport.Dy())
		}
		for s := 0; s <= steps; s++ {
			f := 0.0
			if steps > 0 {
				f = float64(s) / float64(steps)
			}
			x := int(math.Floor(a.x + f*dx))
			y := int(math.Floor(a.y + f*dy))
			z := a.z + f*(b.z-a.z)
			for oy := -half; oy <= half; oy++ {
				for ox := -half; ox <= half; ox++ {
					d.plot(x+ox, y+oy, z, col, depthBias)
				}
			}
		}
	}
}

func (t *texture) texel(x, y int) [4]float64 {
	x = min(max(x, 0), t.w-1)
	y = min(max(y, 0), t.h-1)
	o := 4 * (y*t.w + x)
	p := t.data[o : o+4]
	return [4]float64{float64(p[0]), float64(p[1]), float64(p[2]), float64(p[3])}
}

// sample looks up (u, v) in [0, 1]; v = 0 is the first row.
func (t *texture) sample(u, v float64) color.NRGBA {
	if !t.smooth {
		tx := t.texel(int(math.Floor(u*float64(t.w))), int(math.Floor(v*float64(t.h))))
		return color.NRGBA{uint8(tx[0]), uint8(tx[1]), uint8(tx[2]), uint8(tx[3])}
	}
	fx := u*float64(t.w) - 0.5
	fy := v*float64(t.h) - 0.5
	x0, y0 := int(math.Floor(fx)), int(math.Floor(fy))
	ax, ay := fx-float64(x0), fy-float64(y0)
	t00, t10 := t.texel(x0, y0), t.texel(x0+1, y0)
	t01, t11 := t.texel(x0, y0+1), t.texel(x0+1, y0+1)
	var out [4]uint8
	for i := range out {
		top := t00[i]*(1-ax) + t10[i]*ax
		bottom := t01[i]*(1-ax) + t11[i]*ax
		out[i] = uint8(top*(1-ay) + bottom*ay + 0.5)
	}
	return color.NRGBA{out[0], out[1], out[2], out[3]}
}

func clamp01(v float64) float64 {
	return math.Min(1, math.Max(0, v))
}
