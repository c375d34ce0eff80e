// Package soft implements gpu.Device with a depth-buffered software
// rasterizer. It backs headless snapshots, tests and the desktop window.
package soft

import (
	"fmt"
	"image"
	"image/color"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"gonum.org/v1/gonum/mat"

	"mriview/pkg/gpu"
	"mriview/pkg/transform"
)

// DefaultMaxTextureSize is the texture size limit of a new device.
const DefaultMaxTextureSize = 16384

type texture struct {
	w, h   int
	data   []byte
	smooth bool
}

// Device is a software rendering context.
type Device struct {
	fb    *image.RGBA
	depth []float64

	viewport   image.Rectangle
	modelview  *mat.Dense
	projection *mat.Dense
	mvp        [16]float64

	textures map[gpu.TextureID]*texture
	lists    map[gpu.ListID]gpu.Batch
	nextTex  gpu.TextureID
	nextList gpu.ListID

	maxTexture int
	lost       bool

	// Stats counts device operations since creation.
	Stats Stats
}

// Stats holds operation counters.
type Stats struct {
	Uploads      int
	UploadBytes  int
	TexturesLive int
	ListsLive    int
	ListsCreated int
	Quads        int
}

// New creates a device with a w x h framebuffer.
func New(w, h int) *Device {
	d := &Device{
		textures:   make(map[gpu.TextureID]*texture),
		lists:      make(map[gpu.ListID]gpu.Batch),
		maxTexture: DefaultMaxTextureSize,
	}
	d.Resize(w, h)
	return d
}

// Resize reallocates the framebuffer and resets the viewport to cover it.
func (d *Device) Resize(w, h int) {
	w, h = max(w, 1), max(h, 1)
	d.fb = image.NewRGBA(image.Rect(0, 0, w, h))
	d.depth = make([]float64, w*h)
	d.viewport = d.fb.Bounds()
	d.SetMatrices(transform.Identity(), transform.Identity())
	d.ClearDepth()
}

// SetMaxTextureSize changes the texture size limit.
func (d *Device) SetMaxTextureSize(n int) { d.maxTexture = n }

// Lose simulates the loss of the context.
func (d *Device) Lose() { d.lost = true }

// Err implements gpu.Device.
func (d *Device) Err() error {
	if d.lost {
		return gpu.ErrContextLost
	}
	return nil
}

// Size implements gpu.Device.
func (d *Device) Size() (int, int) {
	b := d.fb.Bounds()
	return b.Dx(), b.Dy()
}

// SetViewport implements gpu.Device.
func (d *Device) SetViewport(r image.Rectangle) {
	d.viewport = r.Intersect(d.fb.Bounds())
}

// Viewport implements gpu.Device.
func (d *Device) Viewport() image.Rectangle { return d.viewport }

// ViewportSize implements transform.Context.
func (d *Device) ViewportSize() transform.Viewport {
	return transform.Viewport{W: d.viewport.Dx(), H: d.viewport.Dy()}
}

// SetMatrices implements gpu.Device.
func (d *Device) SetMatrices(modelview, projection *mat.Dense) {
	d.modelview = mat.DenseCopyOf(modelview)
	d.projection = mat.DenseCopyOf(projection)
	d.mvp = transform.Flatten(transform.Mul(d.projection, d.modelview))
}

// ModelView implements transform.Context.
func (d *Device) ModelView() *mat.Dense { return mat.DenseCopyOf(d.modelview) }

// Projection implements transform.Context.
func (d *Device) Projection() *mat.Dense { return mat.DenseCopyOf(d.projection) }

// ReadDepth implements transform.Context. (x, y) are window pixels with the
// origin at the bottom-left of the viewport.
func (d *Device) ReadDepth(x, y int) (float64, error) {
	if d.lost {
		return 1, gpu.ErrContextLost
	}
	px, py := d.viewport.Min.X+x, d.viewport.Max.Y-1-y
	if !(image.Point{px, py}).In(d.viewport) {
		return 1, fmt.Errorf("depth read at (%d, %d) outside of viewport %v", x, y, d.viewport)
	}
	return d.depth[py*d.fb.Stride/4+px], nil
}

// Clear implements gpu.Device.
func (d *Device) Clear(c gpu.Color) {
	draw.Draw(d.fb, d.viewport, image.NewUniform(c.NRGBA()), image.Point{}, draw.Src)
	d.ClearDepth()
}

// ClearDepth implements gpu.Device.
func (d *Device) ClearDepth() {
	w := d.fb.Stride / 4
	for y := d.viewport.Min.Y; y < d.viewport.Max.Y; y++ {
		row := d.depth[y*w+d.viewport.Min.X : y*w+d.viewport.Max.X]
		if len(row) == 0 {
			continue
		}
		row[0] = 1
		for i := 1; i < len(row); i *= 2 {
			copy(row[i:], row[:i])
		}
	}
}

// MaxTextureSize implements gpu.Device.
func (d *Device) MaxTextureSize() int { return d.maxTexture }

// CreateTexture implements gpu.Device.
func (d *Device) CreateTexture() (gpu.TextureID, error) {
	if d.lost {
		return 0, gpu.ErrContextLost
	}
	d.nextTex++
	d.textures[d.nextTex] = &texture{}
	d.Stats.TexturesLive++
	return d.nextTex, nil
}

// UploadTexture implements gpu.Device. The data is copied.
func (d *Device) UploadTexture(id gpu.TextureID, w, h int, rgba []byte, smooth bool) error {
	if d.lost {
		return gpu.ErrContextLost
	}
	t, ok := d.textures[id]
	if !ok {
		return fmt.Errorf("upload to texture %d: %w", id, gpu.ErrUnknownTexture)
	}
	if w > d.maxTexture || h > d.maxTexture {
		return fmt.Errorf("upload %dx%d, limit %d: %w", w, h, d.maxTexture, gpu.ErrTextureTooLarge)
	}
	if len(rgba) < 4*w*h {
		return fmt.Errorf("upload %dx%d with %d bytes", w, h, len(rgba))
	}
	if cap(t.data) < 4*w*h {
		t.data = make([]byte, 4*w*h)
	}
	t.data = t.data[:4*w*h]
	copy(t.data, rgba)
	t.w, t.h, t.smooth = w, h, smooth
	d.Stats.Uploads++
	d.Stats.UploadBytes += 4 * w * h
	return nil
}

// DeleteTexture implements gpu.Device.
func (d *Device) DeleteTexture(id gpu.TextureID) {
	if _, ok := d.textures[id]; ok {
		delete(d.textures, id)
		d.Stats.TexturesLive--
	}
}

// TextureData returns a copy of the last upload of a texture.
func (d *Device) TextureData(id gpu.TextureID) ([]byte, int, int, bool) {
	t, ok := d.textures[id]
	if !ok {
		return nil, 0, 0, false
	}
	return append([]byte(nil), t.data...), t.w, t.h, true
}

// CreateList implements gpu.Device.
func (d *Device) CreateList(b gpu.Batch) (gpu.ListID, error) {
	if d.lost {
		return 0, gpu.ErrContextLost
	}
	d.nextList++
	d.lists[d.nextList] = b
	d.Stats.ListsLive++
	d.Stats.ListsCreated++
	return d.nextList, nil
}

// DrawList implements gpu.Device.
func (d *Device) DrawList(id gpu.ListID) error {
	if d.lost {
		return gpu.ErrContextLost
	}
	b, ok := d.lists[id]
	if !ok {
		return fmt.Errorf("draw list %d: %w", id, gpu.ErrUnknownList)
	}
	for i := 0; i+2 < len(b.Triangles); i += 3 {
		d.DrawTriangles(b.Triangles[i:i+3], b.TriangleColors[i/3])
	}
	width := b.LineWidth
	if width <= 0 {
		width = 1
	}
	for i := 0; i+1 < len(b.Lines); i += 2 {
		d.DrawLines(b.Lines[i:i+2], b.LineColors[i/2], width)
	}
	return nil
}

// DeleteList implements gpu.Device.
func (d *Device) DeleteList(id gpu.ListID) {
	if _, ok := d.lists[id]; ok {
		delete(d.lists, id)
		d.Stats.ListsLive--
	}
}

// DrawText implements gpu.Device using a fixed 7x13 bitmap face.
func (d *Device) DrawText(x, y int, s string, c gpu.Color) {
	if d.lost || s == "" {
		return
	}
	dst, ok := d.fb.SubImage(d.viewport).(*image.RGBA)
	if !ok {
		return
	}
	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c.NRGBA()),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(d.viewport.Min.X+x, d.viewport.Min.Y+y),
	}
	drawer.DrawString(s)
}

// TextWidth returns the advance of s in the face used by DrawText.
func TextWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Round()
}

// DrawImage implements gpu.Device.
func (d *Device) DrawImage(x, y int, img image.Image) {
	if d.lost || img == nil {
		return
	}
	b := img.Bounds()
	r := image.Rect(0, 0, b.Dx(), b.Dy()).Add(d.viewport.Min).Add(image.Pt(x, y))
	clipped := r.Intersect(d.viewport)
	if clipped.Empty() {
		return
	}
	sp := b.Min.Add(clipped.Min.Sub(r.Min))
	draw.Draw(d.fb, clipped, img, sp, draw.Over)
}

// ReadPixels implements gpu.Device.
func (d *Device) ReadPixels() *image.RGBA {
	out := image.NewRGBA(d.fb.Bounds())
	copy(out.Pix, d.fb.Pix)
	return out
}

// Framebuffer exposes the colour buffer without copying.
func (d *Device) Framebuffer() *image.RGBA { return d.fb }

func (d *Device) logLost(op string) {
	logrus.WithField("op", op).Debug("skipping draw on lost context")
}

func blend(dst []uint8, c color.NRGBA) {
	if c.A == 0 {
		return
	}
	if c.A == 255 {
		dst[0], dst[1], dst[2], dst[3] = c.R, c.G, c.B, 255
		return
	}
	a := uint32(c.A)
	ia := 255 - a
	dst[0] = uint8((uint32(c.R)*a + uint32(dst[0])*ia + 127) / 255)
	dst[1] = uint8((uint32(c.G)*a + uint32(dst[1])*ia + 127) / 255)
	dst[2] = uint8((uint32(c.B)*a + uint32(dst[2])*ia + 127) / 255)
	dst[3] = uint8(min(255, a+uint32(dst[3])*ia/255))
}
