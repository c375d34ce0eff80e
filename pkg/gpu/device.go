// Package gpu defines the rendering device every renderer draws through.
// All calls must come from the render loop: devices are not safe for
// concurrent use.
package gpu

import (
	"errors"
	"image"
	"image/color"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/pkg/transform"
)

var (
	// ErrTextureTooLarge is returned when an upload exceeds MaxTextureSize.
	ErrTextureTooLarge = errors.New("texture exceeds device limit")

	// ErrContextLost is returned by every call after the device was lost.
	ErrContextLost = errors.New("rendering context lost")

	// ErrUnknownTexture is returned for handles the device does not own.
	ErrUnknownTexture = errors.New("unknown texture handle")

	// ErrUnknownList is returned for display list handles the device does not own.
	ErrUnknownList = errors.New("unknown display list handle")
)

// Color is a linear RGBA colour with components in [0, 1].
type Color struct {
	R, G, B, A float64
}

// RGB returns an opaque colour.
func RGB(r, g, b float64) Color { return Color{r, g, b, 1} }

// WithAlpha returns c with alpha replaced.
func (c Color) WithAlpha(a float64) Color {
	c.A = a
	return c
}

// NRGBA converts the colour to 8-bit non-premultiplied RGBA.
func (c Color) NRGBA() color.NRGBA {
	return color.NRGBA{R: to8(c.R), G: to8(c.G), B: to8(c.B), A: to8(c.A)}
}

func to8(v float64) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return uint8(v*255 + 0.5)
}

// TextureID is an opaque texture handle. Zero is never a valid handle.
type TextureID uint32

// ListID is an opaque display list handle. Zero is never a valid handle.
type ListID uint32

// Batch is replayable geometry recorded into a display list.
type Batch struct {
	// Triangles holds three vertices per triangle
	Triangles []r3.Vec

	// TriangleColors holds one colour per triangle
	TriangleColors []Color

	// Lines holds two vertices per segment
	Lines []r3.Vec

	// LineColors holds one colour per segment
	LineColors []Color

	LineWidth float64
}

// Empty reports whether the batch draws nothing.
func (b *Batch) Empty() bool {
	return len(b.Triangles) == 0 && len(b.Lines) == 0
}

// AddTriangle appends one triangle.
func (b *Batch) AddTriangle(p0, p1, p2 r3.Vec, c Color) {
	b.Triangles = append(b.Triangles, p0, p1, p2)
	b.TriangleColors = append(b.TriangleColors, c)
}

// AddLine appends one segment.
func (b *Batch) AddLine(p0, p1 r3.Vec, c Color) {
	b.Lines = append(b.Lines, p0, p1)
	b.LineColors = append(b.LineColors, c)
}

// Device is the rendering context. It extends transform.Context so that the
// screen/world mapping reads the device's current matrices and depth.
type Device interface {
	transform.Context

	// Size returns the framebuffer size in pixels.
	Size() (w, h int)

	// SetViewport scopes subsequent calls to r, in framebuffer pixels with the
	// origin at the top-left corner.
	SetViewport(r image.Rectangle)
	Viewport() image.Rectangle

	// SetMatrices replaces the current modelview and projection.
	SetMatrices(modelview, projection *mat.Dense)

	// Clear fills colour and depth inside the viewport.
	Clear(c Color)
	ClearDepth()

	MaxTextureSize() int
	CreateTexture() (TextureID, error)
	UploadTexture(id TextureID, w, h int, rgba []byte, smooth bool) error
	DeleteTexture(id TextureID)

	// DrawTexturedQuad draws the quad a, b, c, d with per-corner texture
	// coordinates, modulated by opacity.
	DrawTexturedQuad(id TextureID, corners [4]r3.Vec, uv [4][2]float64, opacity float64) error

	DrawLines(segments []r3.Vec, c Color, width float64)
	DrawTriangles(vertices []r3.Vec, c Color)

	CreateList(b Batch) (ListID, error)
	DrawList(id ListID) error
	DeleteList(id ListID)

	// DrawText draws s with its baseline at (x, y), viewport pixels from the
	// top-left corner.
	DrawText(x, y int, s string, c Color)

	// DrawImage composites img with its top-left corner at (x, y), viewport
	// pixels from the top-left corner.
	DrawImage(x, y int, img image.Image)

	// ReadPixels returns a copy of the framebuffer.
	ReadPixels() *image.RGBA

	// Err reports a lost context.
	Err() error
}
