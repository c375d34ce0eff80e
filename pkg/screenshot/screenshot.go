// Package screenshot plans super-sampled captures as tiles of the view
// frustum, composes the tiles into one image and writes it losslessly.
package screenshot

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/stat"

	"mriview/pkg/config"
)

var (
	// ErrExists is returned by Save when the output exists and overwriting
	// was not confirmed.
	ErrExists = errors.New("output file exists")

	// ErrFormat is returned for extensions without a lossless encoder.
	ErrFormat = errors.New("unsupported screenshot format")
)

// Tile is one cell of an N x N capture. Row 0 is the bottom row, matching the
// orientation of the frustum.
type Tile struct {
	Col, Row, N int
}

// Tiles returns the n x n tiles of a capture, bottom row first.
func Tiles(n int) []Tile {
	n = max(n, 1)
	out := make([]Tile, 0, n*n)
	for row := 0; row < n; row++ {
		for col := 0; col < n; col++ {
			out = append(out, Tile{Col: col, Row: row, N: n})
		}
	}
	return out
}

// Full is the single tile covering the whole frustum.
var Full = Tile{N: 1}

// Frustum returns the exact fractional slice of the bounds l, r, b, t that
// the tile covers. Neighbouring tiles share their edges bit for bit.
func (t Tile) Frustum(l, r, b, top float64) (float64, float64, float64, float64) {
	n := max(t.N, 1)
	at := func(lo, hi float64, i int) float64 {
		if i >= n {
			return hi
		}
		return lo + (hi-lo)*float64(i)/float64(n)
	}
	return at(l, r, t.Col), at(l, r, t.Col+1), at(b, top, t.Row), at(b, top, t.Row+1)
}

// Origin returns the top-left corner of the tile in the composed image,
// each tile being w x h pixels.
func (t Tile) Origin(w, h int) image.Point {
	return image.Pt(t.Col*w, (max(t.N, 1)-1-t.Row)*h)
}

// Mosaic allocates the composed image of n x n tiles of w x h pixels.
func Mosaic(w, h, n int) *image.RGBA {
	n = max(n, 1)
	return image.NewRGBA(image.Rect(0, 0, n*w, n*h))
}

// Place copies a rendered tile into the composed image.
func Place(dst *image.RGBA, t Tile, img image.Image) {
	b := img.Bounds()
	at := t.Origin(b.Dx(), b.Dy())
	draw.Draw(dst, image.Rectangle{Min: at, Max: at.Add(b.Size())}, img, b.Min, draw.Src)
}

// Downsample averages n x n pixel blocks, undoing the super-sampling of an
// n-tile capture.
func Downsample(img *image.RGBA, n int) *image.RGBA {
	if n <= 1 {
		return img
	}
	b := img.Bounds()
	w, h := b.Dx()/n, b.Dy()/n
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	area := uint32(n * n)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [4]uint32
			for dy := 0; dy < n; dy++ {
				i := img.PixOffset(b.Min.X+x*n, b.Min.Y+y*n+dy)
				for dx := 0; dx < n; dx++ {
					for c := 0; c < 4; c++ {
						sum[c] += uint32(img.Pix[i+4*dx+c])
					}
				}
			}
			o := out.PixOffset(x, y)
			for c := 0; c < 4; c++ {
				out.Pix[o+c] = uint8((sum[c] + area/2) / area)
			}
		}
	}
	return out
}

// Diff compares two images of the same size channel by channel and returns
// the largest and the mean absolute difference, in 8-bit units.
func Diff(a, b *image.RGBA) (maxDelta, meanDelta float64, err error) {
	if a.Bounds().Size() != b.Bounds().Size() {
		return 0, 0, fmt.Errorf("diff %v against %v: size mismatch", a.Bounds().Size(), b.Bounds().Size())
	}
	deltas := make([]float64, 0, len(a.Pix))
	ab, bb := a.Bounds(), b.Bounds()
	for y := 0; y < ab.Dy(); y++ {
		ia := a.PixOffset(ab.Min.X, ab.Min.Y+y)
		ib := b.PixOffset(bb.Min.X, bb.Min.Y+y)
		for x := 0; x < 4*ab.Dx(); x++ {
			d := float64(a.Pix[ia+x]) - float64(b.Pix[ib+x])
			if d < 0 {
				d = -d
			}
			maxDelta = max(maxDelta, d)
			deltas = append(deltas, d)
		}
	}
	if len(deltas) == 0 {
		return 0, 0, nil
	}
	return maxDelta, stat.Mean(deltas, nil), nil
}

// Encode writes img in the format named by ext (png, tif, tiff or bmp).
func Encode(w io.Writer, ext string, img image.Image) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png", "":
		return png.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	case "bmp":
		return bmp.Encode(w, img)
	}
	return fmt.Errorf("%q: %w", ext, ErrFormat)
}

// Save writes img to path, creating its directory. An existing file is only
// replaced when overwrite is set; otherwise ErrExists is returned so that
// the caller can ask for confirmation.
func Save(path string, img image.Image, overwrite bool) error {
	path, err := config.Expand(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("%s: %w", path, ErrExists)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating screenshot directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating screenshot: %w", err)
	}
	if err := Encode(f, filepath.Ext(path), img); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("error encoding screenshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("error writing screenshot: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"path":   path,
		"width":  img.Bounds().Dx(),
		"height": img.Bounds().Dy(),
	}).Info("screenshot saved")
	return nil
}

// Name expands the time layout between braces in pattern, so that
// "shot-{20060102-150405}.png" names one file per second. Patterns without
// braces are returned unchanged.
func Name(pattern string, at time.Time) string {
	start := strings.Index(pattern, "{")
	end := strings.LastIndex(pattern, "}")
	if start < 0 || end < start {
		return pattern
	}
	return pattern[:start] + at.Format(pattern[start+1:end]) + pattern[end+1:]
}
