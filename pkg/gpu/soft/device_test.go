package soft

import (
	"errors"
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/pkg/gpu"
	"mriview/pkg/transform"
)

var _ gpu.Device = (*Device)(nil)

// orthoDevice maps world [0,w]x[0,h] onto the pixels of a w x h device.
func orthoDevice(w, h int) *Device {
	d := New(w, h)
	d.SetMatrices(transform.Identity(), transform.Ortho(0, float64(w), 0, float64(h), -1, 1))
	d.Clear(gpu.RGB(0, 0, 0))
	return d
}

// TestClearResetsDepth checks that clear fills colour and far depth.
func TestClearResetsDepth(t *testing.T) {
	d := New(5, 3)
	d.Clear(gpu.RGB(1, 0, 0))
	img := d.ReadPixels()
	assert.Equal(t, uint8(255), img.RGBAAt(4, 2).R)
	for y := 0; y < 3; y++ {
		for x := 0; x < 5; x++ {
			z, err := d.ReadDepth(x, y)
			require.NoError(t, err)
			assert.Equal(t, 1.0, z)
		}
	}
}

// TestTexturedQuadCoversViewport checks texel placement: row 0 of the texture
// is at v = 0, which the quad maps to the bottom of the window.
func TestTexturedQuadCoversViewport(t *testing.T) {
	d := orthoDevice(2, 2)
	id, err := d.CreateTexture()
	require.NoError(t, err)
	data := []byte{
		255, 0, 0, 255, 0, 255, 0, 255,
		0, 0, 255, 255, 255, 255, 255, 255,
	}
	require.NoError(t, d.UploadTexture(id, 2, 2, data, false))

	corners := [4]r3.Vec{{X: 0, Y: 0}, {X: 2, Y: 0}, {X: 2, Y: 2}, {X: 0, Y: 2}}
	uv := [4][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	require.NoError(t, d.DrawTexturedQuad(id, corners, uv, 1))

	img := d.ReadPixels()
	// Framebuffer rows are top-down.
	assert.Equal(t, uint8(255), img.RGBAAt(0, 1).R)
	assert.Equal(t, uint8(255), img.RGBAAt(1, 1).G)
	assert.Equal(t, uint8(255), img.RGBAAt(0, 0).B)
	assert.Equal(t, uint8(255), img.RGBAAt(1, 0).R)
	assert.Equal(t, uint8(255), img.RGBAAt(1, 0).G)

	z, err := d.ReadDepth(0, 0)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, z, 1e-9)
}

// TestTransparentTexelsKeepDepth checks that fully transparent fragments do
// not occlude.
func TestTransparentTexelsKeepDepth(t *testing.T) {
	d := orthoDevice(1, 1)
	id, _ := d.CreateTexture()
	require.NoError(t, d.UploadTexture(id, 1, 1, []byte{255, 255, 255, 0}, false))
	corners := [4]r3.Vec{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 1, Y: 1}, {X: 0, Y: 1}}
	require.NoError(t, d.DrawTexturedQuad(id, corners, [4][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}}, 1))
	z, _ := d.ReadDepth(0, 0)
	assert.Equal(t, 1.0, z)
}

// TestUploadErrors checks the device limits.
func TestUploadErrors(t *testing.T) {
	d := New(4, 4)
	d.SetMaxTextureSize(8)
	id, _ := d.CreateTexture()
	err := d.UploadTexture(id, 16, 1, make([]byte, 64), false)
	assert.True(t, errors.Is(err, gpu.ErrTextureTooLarge))

	err = d.UploadTexture(99, 1, 1, make([]byte, 4), false)
	assert.True(t, errors.Is(err, gpu.ErrUnknownTexture))

	d.Lose()
	assert.ErrorIs(t, d.Err(), gpu.ErrContextLost)
	_, err = d.CreateTexture()
	assert.ErrorIs(t, err, gpu.ErrContextLost)
	_, err = d.ReadDepth(0, 0)
	assert.ErrorIs(t, err, gpu.ErrContextLost)
}

// TestDisplayListReplay checks that a recorded batch draws like the direct
// calls and that deletion is tracked.
func TestDisplayListReplay(t *testing.T) {
	d := orthoDevice(4, 4)
	var b gpu.Batch
	b.AddLine(r3.Vec{X: 0, Y: 1.5}, r3.Vec{X: 4, Y: 1.5}, gpu.RGB(0, 1, 0))
	id, err := d.CreateList(b)
	require.NoError(t, err)
	require.NoError(t, d.DrawList(id))

	img := d.ReadPixels()
	assert.Equal(t, uint8(255), img.RGBAAt(2, 2).G)
	assert.Equal(t, 1, d.Stats.ListsLive)

	d.DeleteList(id)
	assert.Equal(t, 0, d.Stats.ListsLive)
	assert.ErrorIs(t, d.DrawList(id), gpu.ErrUnknownList)
}

// TestViewportScopesDrawing checks that the viewport offsets window
// coordinates and clips.
func TestViewportScopesDrawing(t *testing.T) {
	d := New(4, 2)
	d.Clear(gpu.RGB(0, 0, 0))
	d.SetViewport(image.Rect(2, 0, 4, 2))
	d.SetMatrices(transform.Identity(), transform.Ortho(0, 2, 0, 2, -1, 1))
	d.Clear(gpu.RGB(0, 0, 1))

	img := d.ReadPixels()
	assert.Equal(t, uint8(0), img.RGBAAt(1, 0).B)
	assert.Equal(t, uint8(255), img.RGBAAt(2, 0).B)
	assert.Equal(t, transform.Viewport{W: 2, H: 2}, d.ViewportSize())
}

// TestBlendHalfAlpha checks source-over blending.
func TestBlendHalfAlpha(t *testing.T) {
	d := orthoDevice(1, 1)
	d.DrawTriangles([]r3.Vec{{X: -1, Y: -1}, {X: 3, Y: -1}, {X: -1, Y: 3}}, gpu.Color{R: 1, A: 0.5})
	px := d.ReadPixels().RGBAAt(0, 0)
	assert.InDelta(t, 128, int(px.R), 1)
}

// TestTextWidth checks the fixed advance of the label face.
func TestTextWidth(t *testing.T) {
	assert.Equal(t, 21, TextWidth("abc"))
}
