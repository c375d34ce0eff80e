// Package loader builds volumes from stacks of 2D slice images and
// generates phantom volumes for demos and tests.
package loader

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/h2non/filetype"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"gonum.org/v1/gonum/spatial/r3"

	"mriview/internal/models"
)

var (
	// ErrNoSlices is returned when a directory holds no readable slice image.
	ErrNoSlices = errors.New("no slice images found")

	// ErrUnsupported is returned for files that are not a supported image.
	ErrUnsupported = errors.New("unsupported image format")
)

// headerSize is the number of bytes content sniffing needs.
const headerSize = 262

// Params holds the slice stack loading parameters.
type Params struct {
	// InputDir is the directory containing the 2D slice images.
	// Files are ordered by the numbers in their names, so that slice_2
	// comes before slice_10.
	InputDir string

	// Name identifies the volume in the scene; the directory name when empty.
	Name string

	// NumWorkers specifies how many goroutines decode slices.
	NumWorkers int

	// SliceGap represents the physical distance between consecutive slices in mm.
	// This is the voxel size along K.
	SliceGap float64

	// PixelSize is the in-plane voxel size in mm.
	PixelSize float64

	// Resample inserts linearly interpolated slices between the decoded ones
	// so that the voxel size along K is close to PixelSize.
	Resample bool
}

// Load reads every slice image of params.InputDir into a one-channel volume
// with values in [0, 1]. Image columns map to I and rows to J with the top
// row at the highest J; the stacking order maps to K.
func Load(params Params) (*models.Volume, error) {
	start := time.Now()
	files, err := List(params.InputDir)
	if err != nil {
		return nil, err
	}

	slices, err := decodeAll(files, params.NumWorkers)
	if err != nil {
		return nil, err
	}
	w, h := slices[0].Image.Bounds().Dx(), slices[0].Image.Bounds().Dy()
	for _, s := range slices[1:] {
		b := s.Image.Bounds()
		if b.Dx() != w || b.Dy() != h {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d", s.Filename, b.Dx(), b.Dy(), w, h)
		}
	}

	name := params.Name
	if name == "" {
		name = filepath.Base(filepath.Clean(params.InputDir))
	}
	pixel := positive(params.PixelSize)
	gap := positive(params.SliceGap)

	perGap := 1
	if params.Resample {
		perGap = max(1, int(math.Round(gap/pixel)))
	}
	depth := (len(slices)-1)*perGap + 1
	grid := models.NewGrid(w, h, depth, r3.Vec{X: pixel, Y: pixel, Z: gap / float64(perGap)}, r3.Vec{})
	vol := models.NewVolume(name, grid, 1)

	planes := make([][]float64, len(slices))
	for i, s := range slices {
		planes[i] = luminance(s.Image)
	}
	fill(vol, planes, perGap, params.NumWorkers)

	logrus.WithFields(logrus.Fields{
		"dataset": name,
		"slices":  len(slices),
		"grid":    grid.String(),
		"ms":      time.Since(start).Milliseconds(),
	}).Info("loaded slice stack")
	return vol, nil
}

func positive(v float64) float64 {
	if v <= 0 {
		return 1
	}
	return v
}

// List returns the slice images of dir in natural order. Files are kept by
// their content, not their extension.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("error reading slice directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if _, err := Sniff(path); err != nil {
			logrus.WithField("file", e.Name()).Debug("skipping non-image file")
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%s: %w", dir, ErrNoSlices)
	}

	sort.SliceStable(names, func(i, j int) bool { return NaturalLess(names[i], names[j]) })
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(dir, n)
	}
	return out, nil
}

// Sniff returns the format of an image file from its header: jpg, png, tif
// or bmp.
func Sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	kind, err := filetype.Match(head[:n])
	if err != nil || kind == filetype.Unknown {
		return "", fmt.Errorf("%s: %w", path, ErrUnsupported)
	}
	switch kind.Extension {
	case "jpg", "png", "tif", "bmp":
		return kind.Extension, nil
	}
	return "", fmt.Errorf("%s is %s: %w", path, kind.Extension, ErrUnsupported)
}

// Decode reads one slice image.
func Decode(path string) (image.Image, error) {
	format, err := Sniff(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var img image.Image
	switch format {
	case "jpg":
		img, err = jpeg.Decode(f)
	case "png":
		img, err = png.Decode(f)
	case "tif":
		img, err = tiff.Decode(f)
	case "bmp":
		img, err = bmp.Decode(f)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

// decodeAll decodes the files with up to workers goroutines, each taking a
// contiguous run of files.
func decodeAll(files []string, workers int) ([]models.Slice, error) {
	workers = max(1, min(workers, len(files)))
	perWorker := (len(files) + workers - 1) / workers

	out := make([]models.Slice, len(files))
	errs := make([]error, len(files))
	var wg sync.WaitGroup
	for c := 0; c < workers; c++ {
		first, last := c*perWorker, min((c+1)*perWorker, len(files))
		if first >= last {
			continue
		}
		wg.Add(1)
		go func(first, last int) {
			defer wg.Done()
			for i := first; i < last; i++ {
				img, err := Decode(files[i])
				if err != nil {
					errs[i] = err
					continue
				}
				out[i] = models.Slice{Image: img, Index: i, Filename: filepath.Base(files[i])}
			}
		}(first, last)
	}
	wg.Wait()

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return out, nil
}

// luminance converts an image to gray values in [0, 1], row 0 at the
// bottom.
func luminance(img image.Image) []float64 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float64, w*h)
	for y := 0; y < h; y++ {
		row := (h - 1 - y) * w
		for x := 0; x < w; x++ {
			g := color.Gray16Model.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.Gray16)
			out[row+x] = float64(g.Y) / 65535.0
		}
	}
	return out
}

// fill copies the planes into the volume, every perGap slices along K, and
// interpolates linearly between them. Workers take contiguous runs of
// planes.
func fill(vol *models.Volume, planes [][]float64, perGap, workers int) {
	g := vol.Grid
	size := g.NumI() * g.NumJ()
	n := len(planes)
	workers = max(1, min(workers, n))
	perWorker := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for c := 0; c < workers; c++ {
		first, last := c*perWorker, min((c+1)*perWorker, n)
		if first >= last {
			continue
		}
		wg.Add(1)
		go func(first, last int) {
			defer wg.Done()
			for i := first; i < last; i++ {
				k := i * perGap
				copy(vol.Data[k*size:(k+1)*size], planes[i])
				if i == n-1 {
					continue
				}
				for z := 1; z < perGap; z++ {
					t := float64(z) / float64(perGap)
					dst := vol.Data[(k+z)*size : (k+z+1)*size]
					for p := range dst {
						dst[p] = (1-t)*planes[i][p] + t*planes[i+1][p]
					}
				}
			}
		}(first, last)
	}
	wg.Wait()
}

// NaturalLess orders names by their text with digit runs compared as
// numbers.
func NaturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		ca, cb := a[i], b[j]
		if isDigit(ca) && isDigit(cb) {
			si, sj := i, j
			for i < len(a) && isDigit(a[i]) {
				i++
			}
			for j < len(b) && isDigit(b[j]) {
				j++
			}
			na, nb := trimZeros(a[si:i]), trimZeros(b[sj:j])
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			continue
		}
		if ca != cb {
			return ca < cb
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
