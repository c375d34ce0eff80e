// Package texture manages the GPU resources of the slice renderers: staging
// buffers uploaded to textures and display lists bound to a recipe.
package texture

import (
	"fmt"
	"image/color"

	"mriview/pkg/gpu"
)

// Buffer owns one texture and its CPU staging copy. The staging buffer is
// sized to the next power of two of the data so that every device can hold
// it; the populated sub-region is reported by UV.
//
// A Buffer has two flags. Dirty asks the owner to re-rasterize the whole
// plane before the next upload. Patched records texel edits made through Set
// that only need an upload. Upload is a no-op when neither is set.
type Buffer struct {
	id      gpu.TextureID
	staging []byte

	width, height int
	texW, texH    int

	dirty   bool
	patched bool

	// Uploads counts the uploads made by this buffer.
	Uploads int
}

// NewBuffer returns an empty, dirty buffer.
func NewBuffer() *Buffer {
	return &Buffer{dirty: true}
}

// NextPow2 returns the smallest power of two >= n, and 1 for n <= 1.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Resize prepares the staging buffer for a w x h plane. The buffer is
// reallocated and marked dirty only when its power-of-two size changes.
func (b *Buffer) Resize(w, h int) {
	tw, th := NextPow2(w), NextPow2(h)
	b.width, b.height = w, h
	if tw == b.texW && th == b.texH && b.staging != nil {
		return
	}
	b.texW, b.texH = tw, th
	b.staging = make([]byte, 4*tw*th)
	b.dirty = true
}

// Size returns the populated size.
func (b *Buffer) Size() (int, int) { return b.width, b.height }

// TextureSize returns the power-of-two size.
func (b *Buffer) TextureSize() (int, int) { return b.texW, b.texH }

// UV returns the texture coordinates of the populated corner.
func (b *Buffer) UV() (float64, float64) {
	if b.texW == 0 || b.texH == 0 {
		return 0, 0
	}
	return float64(b.width) / float64(b.texW), float64(b.height) / float64(b.texH)
}

// Pixels exposes the staging buffer, row-major with 4 bytes per texel.
func (b *Buffer) Pixels() []byte { return b.staging }

// Offset returns the byte offset of texel (x, y).
func (b *Buffer) Offset(x, y int) int { return 4 * (b.texW*y + x) }

// Set patches one texel and schedules an upload without a re-rasterization.
func (b *Buffer) Set(x, y int, c color.NRGBA) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	o := b.Offset(x, y)
	b.staging[o], b.staging[o+1], b.staging[o+2], b.staging[o+3] = c.R, c.G, c.B, c.A
	b.patched = true
}

// At returns texel (x, y) of the staging buffer.
func (b *Buffer) At(x, y int) color.NRGBA {
	o := b.Offset(x, y)
	p := b.staging[o : o+4]
	return color.NRGBA{R: p[0], G: p[1], B: p[2], A: p[3]}
}

// MarkDirty requests a full re-rasterization.
func (b *Buffer) MarkDirty() { b.dirty = true }

// Dirty reports whether the owner must re-rasterize.
func (b *Buffer) Dirty() bool { return b.dirty }

// Pending reports whether the next Upload will transfer data.
func (b *Buffer) Pending() bool { return b.dirty || b.patched }

// Handle returns the texture handle, zero before the first upload.
func (b *Buffer) Handle() gpu.TextureID { return b.id }

// Upload transfers the staging buffer when something changed. The handle is
// created on the first upload. On failure the flags are kept so the next
// frame retries.
func (b *Buffer) Upload(dev gpu.Device, smooth bool) error {
	if !b.Pending() {
		return nil
	}
	if b.texW > dev.MaxTextureSize() || b.texH > dev.MaxTextureSize() {
		return fmt.Errorf("%dx%d texture: %w", b.texW, b.texH, gpu.ErrTextureTooLarge)
	}
	if b.id == 0 {
		id, err := dev.CreateTexture()
		if err != nil {
			return err
		}
		b.id = id
	}
	if err := dev.UploadTexture(b.id, b.texW, b.texH, b.staging, smooth); err != nil {
		return err
	}
	b.dirty, b.patched = false, false
	b.Uploads++
	return nil
}

// Dispose frees the texture. The staging buffer is kept and marked dirty so
// the buffer can be reused on another device.
func (b *Buffer) Dispose(dev gpu.Device) {
	if b.id != 0 {
		dev.DeleteTexture(b.id)
		b.id = 0
	}
	b.dirty = true
}
