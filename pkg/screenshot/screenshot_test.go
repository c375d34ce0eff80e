package screenshot

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTilesCoverFrustumExactly(t *testing.T) {
	l, r, b, top := -1.3, 1.3, -0.7, 0.9
	for _, n := range []int{1, 2, 3, 5} {
		tiles := Tiles(n)
		require.Len(t, tiles, n*n)
		for _, tile := range tiles {
			tl, tr, tb, tt := tile.Frustum(l, r, b, top)
			if tile.Col == 0 {
				assert.Equal(t, l, tl)
			}
			if tile.Col == n-1 {
				assert.Equal(t, r, tr)
			}
			if tile.Row == 0 {
				assert.Equal(t, b, tb)
			}
			if tile.Row == n-1 {
				assert.Equal(t, top, tt)
			}
			if tile.Col+1 < n {
				nl, _, _, _ := Tile{Col: tile.Col + 1, Row: tile.Row, N: n}.Frustum(l, r, b, top)
				assert.Equal(t, tr, nl, "shared edge")
			}
		}
	}

	tl, tr, tb, tt := Full.Frustum(l, r, b, top)
	assert.Equal(t, [4]float64{l, r, b, top}, [4]float64{tl, tr, tb, tt})
}

func TestTileOriginFlipsRows(t *testing.T) {
	assert.Equal(t, image.Pt(0, 20), Tile{Col: 0, Row: 0, N: 2}.Origin(10, 20))
	assert.Equal(t, image.Pt(10, 0), Tile{Col: 1, Row: 1, N: 2}.Origin(10, 20))
	assert.Equal(t, image.Pt(0, 0), Full.Origin(10, 20))
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestPlaceAndDownsample(t *testing.T) {
	m := Mosaic(2, 2, 2)
	require.Equal(t, image.Rect(0, 0, 4, 4), m.Bounds())

	Place(m, Tile{Col: 0, Row: 0, N: 2}, solid(2, 2, color.RGBA{R: 200, A: 255}))
	Place(m, Tile{Col: 1, Row: 1, N: 2}, solid(2, 2, color.RGBA{G: 100, A: 255}))

	// bottom-left tile lands in the lower half
	assert.Equal(t, color.RGBA{R: 200, A: 255}, m.RGBAAt(0, 3))
	assert.Equal(t, color.RGBA{G: 100, A: 255}, m.RGBAAt(3, 0))
	assert.Equal(t, color.RGBA{}, m.RGBAAt(0, 0))

	d := Downsample(m, 2)
	require.Equal(t, image.Rect(0, 0, 2, 2), d.Bounds())
	assert.Equal(t, color.RGBA{R: 200, A: 255}, d.RGBAAt(0, 1))
	assert.Equal(t, color.RGBA{G: 100, A: 255}, d.RGBAAt(1, 0))

	assert.Same(t, m, Downsample(m, 1))
}

func TestDiff(t *testing.T) {
	a := solid(2, 2, color.RGBA{R: 10, A: 255})
	b := solid(2, 2, color.RGBA{R: 14, A: 255})
	hi, mean, err := Diff(a, b)
	require.NoError(t, err)
	assert.Equal(t, 4.0, hi)
	assert.InDelta(t, 1.0, mean, 1e-12)

	_, _, err = Diff(a, solid(3, 2, color.RGBA{}))
	assert.Error(t, err)
}

func TestSaveRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shots", "view.png")
	img := solid(3, 2, color.RGBA{B: 255, A: 255})

	require.NoError(t, Save(path, img, false))
	assert.ErrorIs(t, Save(path, img, false), ErrExists)
	require.NoError(t, Save(path, img, true))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
}

func TestEncodeFormats(t *testing.T) {
	img := solid(2, 2, color.RGBA{R: 1, A: 255})
	for _, ext := range []string{".png", ".tif", ".TIFF", ".bmp"} {
		var buf bytes.Buffer
		assert.NoError(t, Encode(&buf, ext, img), ext)
		assert.NotZero(t, buf.Len(), ext)
	}
	assert.ErrorIs(t, Encode(&bytes.Buffer{}, ".jpg", img), ErrFormat)
}

func TestName(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	assert.Equal(t, "shots/scene-20240309-140507.png", Name("shots/scene-{20060102-150405}.png", at))
	assert.Equal(t, "scene.png", Name("scene.png", at))
	assert.Equal(t, "a}b{.png", Name("a}b{.png", at))
}
